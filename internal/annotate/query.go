package annotate

import "github.com/stekaz/VEP-plugins/internal/vcf"

// Query is the per-allele request handed to every Source.
//
// Ref is always on the forward strand. Allele is on the feature strand given
// by Strand: for Strand -1 it is the reverse complement of the forward-strand
// alternate. Sources that match forward-strand data use ForwardAllele.
type Query struct {
	Chrom          string // chromosome as given by the input, e.g. "chr1" or "1"
	Start          int64  // 1-based first reference base
	End            int64  // 1-based last reference base (Start for a single base)
	Ref            string // reference allele on the forward strand
	Allele         string // queried allele on the feature strand
	Strand         int8   // feature strand, +1 or -1
	TranscriptHGVS string // optional transcript HGVS identifier
}

// NewQuery builds the query for a single-allele variant. VCF ALT and MAF
// Tumor_Seq_Allele2 are forward-strand alleles, so the allele is reverse
// complemented when the variant records a minus-strand feature.
func NewQuery(v *vcf.Variant) Query {
	strand := v.Strand()
	allele := v.Alt
	if strand < 0 {
		allele = ReverseComplement(allele)
	}
	return Query{
		Chrom:          v.Chrom,
		Start:          v.Pos,
		End:            v.End(),
		Ref:            v.Ref,
		Allele:         allele,
		Strand:         strand,
		TranscriptHGVS: v.TranscriptHGVS(),
	}
}

// IsSingleBase reports whether the query covers exactly one reference base.
func (q Query) IsSingleBase() bool {
	return q.Start == q.End && len(q.Ref) == 1
}

// ForwardAllele returns the queried allele on the forward strand.
func (q Query) ForwardAllele() string {
	if q.Strand < 0 {
		return ReverseComplement(q.Allele)
	}
	return q.Allele
}

// ReverseComplement returns the reverse complement of a nucleotide sequence.
// Case is preserved; characters other than ACGTN are kept as is.
func ReverseComplement(seq string) string {
	out := make([]byte, len(seq))
	for i := 0; i < len(seq); i++ {
		out[len(seq)-1-i] = complementBase(seq[i])
	}
	return string(out)
}

func complementBase(b byte) byte {
	switch b {
	case 'A':
		return 'T'
	case 'T':
		return 'A'
	case 'C':
		return 'G'
	case 'G':
		return 'C'
	case 'a':
		return 't'
	case 't':
		return 'a'
	case 'c':
		return 'g'
	case 'g':
		return 'c'
	}
	return b
}
