// Package vcf provides VCF file parsing functionality.
package vcf

import "strconv"

// INFO keys that carry per-variant query context supplied by upstream tools.
const (
	InfoStrand         = "STRAND"  // feature strand, "1"/"+1"/"+" or "-1"/"-"
	InfoTranscriptHGVS = "HGVS_ID" // transcript-level HGVS identifier, e.g. "NM_000546.6:c.215C>G"
)

// Variant represents a single genomic variant from a VCF file.
type Variant struct {
	Chrom  string                 // Chromosome name (e.g., "12", "chr12")
	Pos    int64                  // 1-based genomic position
	ID     string                 // Variant identifier (e.g., rs ID)
	Ref    string                 // Reference allele
	Alt    string                 // Alternate allele (single allele after splitting)
	Qual   float64                // Quality score
	Filter string                 // Filter status (PASS or filter name)
	Info   map[string]interface{} // INFO field key-value pairs

	RawInfo string // INFO column as read, "." when empty
	Line    int    // input line the variant was read from, 0 when unknown
}

// End returns the 1-based inclusive end coordinate spanned by the reference allele.
func (v *Variant) End() int64 {
	if len(v.Ref) == 0 {
		return v.Pos
	}
	return v.Pos + int64(len(v.Ref)) - 1
}

// IsSNV returns true if the variant is a single nucleotide variant.
func (v *Variant) IsSNV() bool {
	return len(v.Ref) == 1 && len(v.Alt) == 1
}

// IsIndel returns true if the variant is an insertion or deletion.
func (v *Variant) IsIndel() bool {
	return len(v.Ref) != len(v.Alt)
}

// NormalizeChrom returns the chromosome name without "chr" prefix.
func (v *Variant) NormalizeChrom() string {
	if len(v.Chrom) > 3 && v.Chrom[:3] == "chr" {
		return v.Chrom[3:]
	}
	return v.Chrom
}

// Strand returns the feature strand recorded in INFO, defaulting to +1.
func (v *Variant) Strand() int8 {
	raw, ok := v.Info[InfoStrand].(string)
	if !ok {
		return 1
	}
	switch raw {
	case "-", "-1":
		return -1
	}
	if n, err := strconv.Atoi(raw); err == nil && n < 0 {
		return -1
	}
	return 1
}

// TranscriptHGVS returns the transcript HGVS identifier recorded in INFO, if any.
func (v *Variant) TranscriptHGVS() string {
	s, _ := v.Info[InfoTranscriptHGVS].(string)
	return s
}
