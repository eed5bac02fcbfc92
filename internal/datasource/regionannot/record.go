package regionannot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stekaz/VEP-plugins/internal/vcf"
)

// Record is one allele of a source file line.
type Record struct {
	Chrom  string
	Start  int64 // 1-based POS
	End    int64 // 1-based last reference base
	Ref    string
	Alt    string
	Type   string            // variant type tag
	Fields map[string]string // INFO key=value pairs, type tag excluded
}

// ParseRecords parses a VCF data line into one Record per ALT allele.
// typeField names the INFO key holding the variant type tag. Flag INFO
// entries carry no value and are not kept.
func ParseRecords(line, typeField string) ([]Record, error) {
	cols := strings.Split(line, "\t")
	if len(cols) < 8 {
		return nil, fmt.Errorf("expected at least 8 columns, found %d", len(cols))
	}

	pos, err := strconv.ParseInt(cols[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid position %q", cols[1])
	}
	ref := cols[3]
	end := pos
	if len(ref) > 1 {
		end = pos + int64(len(ref)) - 1
	}

	fields := make(map[string]string)
	var typeTag string
	for k, v := range vcf.ParseInfo(cols[7]) {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if k == typeField {
			typeTag = s
			continue
		}
		fields[k] = s
	}

	alts := strings.Split(cols[4], ",")
	recs := make([]Record, 0, len(alts))
	for _, alt := range alts {
		recs = append(recs, Record{
			Chrom:  cols[0],
			Start:  pos,
			End:    end,
			Ref:    ref,
			Alt:    alt,
			Type:   typeTag,
			Fields: fields,
		})
	}
	return recs, nil
}
