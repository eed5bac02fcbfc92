// Package output provides annotation output formatters.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/stekaz/VEP-plugins/internal/annotate"
	"github.com/stekaz/VEP-plugins/internal/vcf"
)

// missing marks an absent value in tabular output.
const missing = "-"

// TabWriter writes annotations in tab-delimited format, one row per variant
// allele and one column per advertised field.
type TabWriter struct {
	w      *bufio.Writer
	fields []string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{w: bufio.NewWriter(w)}
}

// WriteHeader writes the header line and fixes the column order.
func (tw *TabWriter) WriteHeader(fields []annotate.FieldDef) error {
	tw.fields = make([]string, len(fields))
	cols := []string{"#Uploaded_variation", "Location", "Allele"}
	for i, f := range fields {
		tw.fields[i] = f.Name
		cols = append(cols, f.Name)
	}
	_, err := tw.w.WriteString(strings.Join(cols, "\t") + "\n")
	return err
}

// Write writes a single annotated allele.
func (tw *TabWriter) Write(v *vcf.Variant, res annotate.Result) error {
	var b strings.Builder
	b.Grow(64 + 16*len(tw.fields))

	b.WriteString(uploadedVariation(v))
	b.WriteByte('\t')
	b.WriteString(location(v))
	b.WriteByte('\t')
	b.WriteString(v.Alt)
	for _, name := range tw.fields {
		b.WriteByte('\t')
		if val, ok := res[name]; ok && val != "" {
			b.WriteString(val)
		} else {
			b.WriteString(missing)
		}
	}
	b.WriteByte('\n')

	_, err := tw.w.WriteString(b.String())
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

// uploadedVariation returns the variant ID, or chrom_pos_ref/alt when the
// input carries none.
func uploadedVariation(v *vcf.Variant) string {
	if v.ID != "" && v.ID != "." {
		return v.ID
	}
	return v.Chrom + "_" + strconv.FormatInt(v.Pos, 10) + "_" + v.Ref + "/" + v.Alt
}

// location formats chrom:start or chrom:start-end for multi-base references.
func location(v *vcf.Variant) string {
	loc := v.Chrom + ":" + strconv.FormatInt(v.Pos, 10)
	if end := v.End(); end > v.Pos {
		loc += "-" + strconv.FormatInt(end, 10)
	}
	return loc
}
