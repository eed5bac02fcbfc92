package regionannot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/carbocation/vcfgo"
)

// Field is one INFO key declared in a source file's header.
type Field struct {
	Name        string
	Description string
}

// Schema is the ordered set of INFO fields a source file declares.
type Schema struct {
	fields []Field
	index  map[string]int
}

func newSchema() *Schema {
	return &Schema{index: make(map[string]int)}
}

func (s *Schema) add(f Field) {
	if _, ok := s.index[f.Name]; ok {
		return
	}
	s.index[f.Name] = len(s.fields)
	s.fields = append(s.fields, f)
}

// Len returns the number of declared fields.
func (s *Schema) Len() int { return len(s.fields) }

// Fields returns the declared fields in header order.
func (s *Schema) Fields() []Field { return s.fields }

// Has reports whether name is declared.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// ParseSchema extracts INFO field declarations from VCF header lines.
// Lines that are not well-formed INFO declarations are skipped.
func ParseSchema(header []string) (*Schema, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("empty header")
	}

	var (
		kept  = []string{"##fileformat=VCFv4.2"} // fileformat line, then INFO lines
		order []string
		chrom = "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO"
	)
	for _, line := range header {
		switch {
		case strings.HasPrefix(line, "##fileformat="):
			kept[0] = line
		case strings.HasPrefix(line, "#CHROM"):
			chrom = line
		case strings.HasPrefix(line, "##INFO=<") && strings.HasSuffix(line, ">"):
			id, ok := infoID(line)
			if !ok {
				continue
			}
			kept = append(kept, line)
			order = append(order, id)
		}
	}

	infos, err := parseInfos(kept[0], kept[1:], chrom)
	if err != nil {
		// One bad declaration can sink the whole header; retry line by line
		// so that only the malformed lines are dropped.
		infos = make(map[string]*vcfgo.Info)
		for _, line := range kept[1:] {
			one, err := parseInfos(kept[0], []string{line}, chrom)
			if err != nil {
				continue
			}
			for id, info := range one {
				infos[id] = info
			}
		}
	}

	s := newSchema()
	for _, id := range order {
		if info, ok := infos[id]; ok {
			s.add(Field{Name: id, Description: info.Description})
		}
	}

	// Declarations vcfgo accepted that the quick scan did not order.
	var rest []string
	for id := range infos {
		if !s.Has(id) {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		s.add(Field{Name: id, Description: infos[id].Description})
	}

	return s, nil
}

// parseInfos runs a minimal header through vcfgo and returns its INFO table.
func parseInfos(fileformat string, infoLines []string, chrom string) (map[string]*vcfgo.Info, error) {
	lines := make([]string, 0, len(infoLines)+2)
	lines = append(lines, fileformat)
	lines = append(lines, infoLines...)
	lines = append(lines, chrom)

	rdr, err := vcfgo.NewReader(strings.NewReader(strings.Join(lines, "\n")+"\n"), true)
	if rdr == nil {
		if err == nil {
			err = fmt.Errorf("no header")
		}
		return nil, fmt.Errorf("parse header: %w", err)
	}
	return rdr.Header.Infos, nil
}

// infoID returns the ID attribute of an ##INFO=<...> line.
func infoID(line string) (string, bool) {
	body := strings.TrimSuffix(strings.TrimPrefix(line, "##INFO=<"), ">")
	if !strings.HasPrefix(body, "ID=") {
		return "", false
	}
	id := strings.TrimPrefix(body, "ID=")
	if i := strings.IndexByte(id, ','); i >= 0 {
		id = id[:i]
	}
	return id, id != ""
}
