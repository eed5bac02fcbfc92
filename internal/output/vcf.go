package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/stekaz/VEP-plugins/internal/annotate"
	"github.com/stekaz/VEP-plugins/internal/vcf"
)

// infoEscaper makes values safe inside a VCF INFO column.
var infoEscaper = strings.NewReplacer(
	" ", "_",
	";", "%3B",
	"=", "%3D",
	",", "&",
)

// VCFWriter writes annotations as VCF with one INFO key per advertised field
// (Number=A, one value per ALT allele). Split alleles of the same input row
// are buffered and written back as a single line.
type VCFWriter struct {
	w           *bufio.Writer
	headerLines []string // original VCF header lines (## and #CHROM)
	fields      []annotate.FieldDef
	fieldSet    map[string]bool

	// Buffered state for the current row.
	current *vcf.Variant
	alts    []string
	results []annotate.Result
}

// NewVCFWriter creates a new VCF output writer. headerLines are the input's
// header lines; when empty a minimal header is written.
func NewVCFWriter(w io.Writer, headerLines []string) *VCFWriter {
	return &VCFWriter{
		w:           bufio.NewWriter(w),
		headerLines: headerLines,
	}
}

// WriteHeader writes the original header with an ##INFO line per field
// inserted before #CHROM.
func (vw *VCFWriter) WriteHeader(fields []annotate.FieldDef) error {
	vw.fields = fields
	vw.fieldSet = make(map[string]bool, len(fields))
	for _, f := range fields {
		vw.fieldSet[f.Name] = true
	}

	lines := vw.headerLines
	if len(lines) == 0 {
		lines = []string{"##fileformat=VCFv4.2", "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO"}
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "#CHROM") {
			for _, f := range fields {
				if _, err := vw.w.WriteString(infoHeaderLine(f) + "\n"); err != nil {
					return err
				}
			}
			// Sites-only output: drop FORMAT and sample columns.
			if cols := strings.Split(line, "\t"); len(cols) > 8 {
				line = strings.Join(cols[:8], "\t")
			}
		} else if id, ok := infoHeaderID(line); ok && vw.fieldSet[id] {
			continue
		}
		if _, err := vw.w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Write buffers one annotated allele. A new row starts when the allele comes
// from a different input line, or when chrom, pos or ref change.
func (vw *VCFWriter) Write(v *vcf.Variant, res annotate.Result) error {
	if vw.current != nil && !sameRow(vw.current, v) {
		if err := vw.flushVariant(); err != nil {
			return err
		}
	}
	if vw.current == nil {
		vw.current = v
	}
	vw.alts = append(vw.alts, v.Alt)
	vw.results = append(vw.results, res)
	return nil
}

// Flush writes any buffered row and flushes the underlying writer.
func (vw *VCFWriter) Flush() error {
	if err := vw.flushVariant(); err != nil {
		return err
	}
	return vw.w.Flush()
}

// sameRow reports whether b is another allele of the input row holding a.
// Line numbers decide when both are known.
func sameRow(a, b *vcf.Variant) bool {
	if a.Line != 0 && b.Line != 0 && a.Line != b.Line {
		return false
	}
	return a.Chrom == b.Chrom && a.Pos == b.Pos && a.Ref == b.Ref
}

// flushVariant writes the buffered row.
func (vw *VCFWriter) flushVariant() error {
	if vw.current == nil {
		return nil
	}
	v := vw.current

	var lb strings.Builder
	lb.Grow(256)

	lb.WriteString(v.Chrom)
	lb.WriteByte('\t')
	lb.WriteString(strconv.FormatInt(v.Pos, 10))
	lb.WriteByte('\t')
	lb.WriteString(orDot(v.ID))
	lb.WriteByte('\t')
	lb.WriteString(v.Ref)
	lb.WriteByte('\t')
	lb.WriteString(strings.Join(vw.alts, ","))
	lb.WriteByte('\t')
	if v.Qual != 0 {
		lb.WriteString(strconv.FormatFloat(v.Qual, 'g', -1, 64))
	} else {
		lb.WriteByte('.')
	}
	lb.WriteByte('\t')
	lb.WriteString(orDot(v.Filter))
	lb.WriteByte('\t')
	lb.WriteString(vw.formatInfo(v.RawInfo))
	lb.WriteByte('\n')

	vw.current = nil
	vw.alts = nil
	vw.results = nil

	_, err := vw.w.WriteString(lb.String())
	return err
}

// formatInfo strips existing keys that collide with output fields and
// appends the annotation values of the buffered alleles.
func (vw *VCFWriter) formatInfo(rawInfo string) string {
	var parts []string
	if rawInfo != "" && rawInfo != "." {
		for _, kv := range strings.Split(rawInfo, ";") {
			key, _, _ := strings.Cut(kv, "=")
			if kv == "" || vw.fieldSet[key] {
				continue
			}
			parts = append(parts, kv)
		}
	}

	for _, f := range vw.fields {
		vals := make([]string, len(vw.results))
		present := false
		for i, res := range vw.results {
			val := res[f.Name]
			if val == "" {
				vals[i] = "."
				continue
			}
			vals[i] = infoEscaper.Replace(val)
			present = true
		}
		if present {
			parts = append(parts, f.Name+"="+strings.Join(vals, ","))
		}
	}

	if len(parts) == 0 {
		return "."
	}
	return strings.Join(parts, ";")
}

func infoHeaderLine(f annotate.FieldDef) string {
	desc := strings.ReplaceAll(f.Description, `"`, `'`)
	return fmt.Sprintf(`##INFO=<ID=%s,Number=A,Type=String,Description="%s">`, f.Name, desc)
}

// infoHeaderID returns the ID of an ##INFO header line.
func infoHeaderID(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, "##INFO=<ID=")
	if !ok {
		return "", false
	}
	id, _, _ := strings.Cut(rest, ",")
	return strings.TrimSuffix(id, ">"), true
}

func orDot(s string) string {
	if s == "" {
		return "."
	}
	return s
}
