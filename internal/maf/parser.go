// Package maf provides MAF (Mutation Annotation Format) file parsing functionality.
package maf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/stekaz/VEP-plugins/internal/vcf"
)

// Standard MAF column names
const (
	ColChromosome       = "Chromosome"
	ColStartPosition    = "Start_Position"
	ColReferenceAllele  = "Reference_Allele"
	ColTumorSeqAllele2  = "Tumor_Seq_Allele2"
	ColTranscriptID     = "Transcript_ID"
	ColHGVSc            = "HGVSc"
	ColTranscriptStrand = "TRANSCRIPT_STRAND"
)

// ColumnIndices holds the indices of the MAF columns used for lookups.
// Optional columns are -1 when absent.
type ColumnIndices struct {
	Chromosome       int
	StartPosition    int
	ReferenceAllele  int
	TumorSeqAllele2  int
	TranscriptID     int
	HGVSc            int
	TranscriptStrand int
}

// Parser reads variants from a MAF file.
type Parser struct {
	reader     *bufio.Reader
	closers    []io.Closer
	lineNumber int
	columns    ColumnIndices
	headerLine string
}

// NewParser creates a new MAF parser for the given file.
// Supports both plain MAF and gzipped MAF (.maf.gz) files.
func NewParser(path string) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin)
	}

	r, closers, err := vcf.OpenMaybeGzip(path)
	if err != nil {
		return nil, fmt.Errorf("open maf file: %w", err)
	}

	p := &Parser{reader: r, closers: closers}
	if err := p.parseHeader(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader (e.g., stdin).
func NewParserFromReader(r io.Reader) (*Parser, error) {
	p := &Parser{reader: bufio.NewReader(r)}
	if err := p.parseHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

// parseHeader skips comment lines and parses the column header.
func (p *Parser) parseHeader() error {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return &ParseError{Line: p.lineNumber, Message: "no header line found"}
			}
			return fmt.Errorf("read header: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p.headerLine = line
		return p.parseColumnIndices(line)
	}
}

// parseColumnIndices parses the header line to find column indices.
func (p *Parser) parseColumnIndices(headerLine string) error {
	p.columns = ColumnIndices{
		Chromosome:       -1,
		StartPosition:    -1,
		ReferenceAllele:  -1,
		TumorSeqAllele2:  -1,
		TranscriptID:     -1,
		HGVSc:            -1,
		TranscriptStrand: -1,
	}

	for i, col := range strings.Split(headerLine, "\t") {
		switch col {
		case ColChromosome:
			p.columns.Chromosome = i
		case ColStartPosition:
			p.columns.StartPosition = i
		case ColReferenceAllele:
			p.columns.ReferenceAllele = i
		case ColTumorSeqAllele2:
			p.columns.TumorSeqAllele2 = i
		case ColTranscriptID:
			p.columns.TranscriptID = i
		case ColHGVSc:
			p.columns.HGVSc = i
		case ColTranscriptStrand:
			p.columns.TranscriptStrand = i
		}
	}

	required := []struct {
		name string
		idx  int
	}{
		{ColChromosome, p.columns.Chromosome},
		{ColStartPosition, p.columns.StartPosition},
		{ColReferenceAllele, p.columns.ReferenceAllele},
		{ColTumorSeqAllele2, p.columns.TumorSeqAllele2},
	}
	for _, r := range required {
		if r.idx == -1 {
			return &ParseError{
				Line:    p.lineNumber,
				Message: fmt.Sprintf("required column '%s' not found in header", r.name),
			}
		}
	}

	return nil
}

// Next reads the next variant from the MAF file.
// Returns nil, nil when there are no more variants.
func (p *Parser) Next() (*vcf.Variant, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return nil, nil
			}
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return p.parseLine(line)
	}
}

// parseLine parses a single MAF data line into a Variant. The transcript
// identifier and strand are carried in the variant's INFO map under the same
// keys the VCF parser uses.
func (p *Parser) parseLine(line string) (*vcf.Variant, error) {
	fields := strings.Split(line, "\t")

	minCols := max(p.columns.Chromosome, p.columns.StartPosition, p.columns.ReferenceAllele, p.columns.TumorSeqAllele2)
	if len(fields) <= minCols {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("expected at least %d columns, found %d", minCols+1, len(fields)),
		}
	}

	pos, err := strconv.ParseInt(fields[p.columns.StartPosition], 10, 64)
	if err != nil {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("invalid position: %s", fields[p.columns.StartPosition]),
		}
	}

	ref := fields[p.columns.ReferenceAllele]
	alt := fields[p.columns.TumorSeqAllele2]

	// MAF uses "-" for the empty side of an indel
	if alt == "-" {
		alt = ""
	}
	if ref == "-" {
		ref = ""
	}

	info := make(map[string]interface{})
	if hgvs := transcriptHGVS(p.field(fields, p.columns.TranscriptID), p.field(fields, p.columns.HGVSc)); hgvs != "" {
		info[vcf.InfoTranscriptHGVS] = hgvs
	}
	if strand := p.field(fields, p.columns.TranscriptStrand); strand != "" {
		info[vcf.InfoStrand] = strand
	}

	return &vcf.Variant{
		Chrom:  fields[p.columns.Chromosome],
		Pos:    pos,
		ID:     ".",
		Ref:    ref,
		Alt:    alt,
		Filter: ".",
		Info:   info,
		Line:   p.lineNumber,
	}, nil
}

func (p *Parser) field(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}

// transcriptHGVS joins a transcript ID and a c. notation into a full
// transcript HGVS identifier. HGVSc values that already carry the transcript
// prefix are returned unchanged.
func transcriptHGVS(transcriptID, hgvsc string) string {
	if hgvsc == "" {
		return ""
	}
	if strings.Contains(hgvsc, ":") || transcriptID == "" {
		return hgvsc
	}
	return transcriptID + ":" + hgvsc
}

// Header returns the MAF header line.
func (p *Parser) Header() string {
	return p.headerLine
}

// Columns returns the parsed column indices.
func (p *Parser) Columns() ColumnIndices {
	return p.columns
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	var firstErr error
	for _, c := range p.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.closers = nil
	return firstErr
}

// ParseError represents an error during MAF parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("maf parse error at line %d: %s", e.Line, e.Message)
}
