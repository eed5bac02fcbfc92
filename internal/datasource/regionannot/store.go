// Package regionannot annotates variants from tabix-indexed VCF files keyed
// by genomic region. A dataset may be split into a simple-variant file and a
// complex-variant file sharing one INFO schema; records from both are
// matched on exact coordinates and allele, ranked, and merged.
package regionannot

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/stekaz/VEP-plugins/internal/annotate"
)

// Synthesized output fields, not present in the underlying files.
const (
	TranscriptMatchField = "TRANSCRIPT_MATCH"
	AdditionalTypesField = "ADDITIONAL_VARIANT_TYPES"

	// TranscriptMatchValue is the only value TRANSCRIPT_MATCH takes.
	TranscriptMatchValue = "YES"
)

// Partition identifies which file of a dataset a source is.
type Partition int

const (
	Simple Partition = iota
	Complex
)

func (p Partition) String() string {
	if p == Complex {
		return "complex"
	}
	return "simple"
}

// Options configure record interpretation. Use DefaultOptions and override fields.
type Options struct {
	Label      string   // output prefix
	TypeField  string   // INFO key carrying the variant type tag
	SimpleType string   // type tag of authoritative simple-variant records
	HGVSFields []string // INFO keys holding '|'-separated transcript HGVS lists

	// ChrPrefix selects "chr1" style chromosome names in queries; otherwise
	// names are queried without the prefix ("1").
	ChrPrefix bool

	// Querier performs region retrieval. When nil, the tabix utility on PATH
	// is used.
	Querier RegionQuerier

	Logger *zap.Logger
}

// DefaultOptions returns the standard options.
func DefaultOptions() Options {
	return Options{
		Label:      "RegionAnnot",
		TypeField:  "TYPE",
		SimpleType: "Variant",
		HGVSFields: []string{"HGVSc", "HGVSnc"},
	}
}

// source is one region-indexed file of the dataset.
type source struct {
	partition Partition
	path      string
	schema    *Schema
}

// Store looks up region annotations. It is safe for concurrent use when its
// querier is.
type Store struct {
	opts    Options
	sources []source
	fields  []annotate.FieldDef
	querier RegionQuerier
	logger  *zap.Logger
}

// Open prepares a store over a required simple-variant file and an optional
// complex-variant file (empty string for none).
func Open(simplePath, complexPath string, opts Options) (*Store, error) {
	if opts.Label == "" {
		opts.Label = DefaultOptions().Label
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfgErr := func(msg string, err error) error {
		return &annotate.ConfigError{Source: opts.Label, Message: msg, Err: err}
	}

	q := opts.Querier
	if q == nil {
		tq, err := NewTabixQuerier("")
		if err != nil {
			return nil, cfgErr("region query utility", err)
		}
		q = tq
	}

	s := &Store{opts: opts, querier: q, logger: logger}

	paths := map[Partition]string{Simple: simplePath}
	if complexPath != "" {
		paths[Complex] = complexPath
	}

	for _, part := range []Partition{Simple, Complex} {
		path, ok := paths[part]
		if !ok {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return nil, cfgErr(part.String()+" file not found", err)
		}
		if !indexExists(path) {
			return nil, cfgErr(fmt.Sprintf("no tabix index for %s", path), nil)
		}
		header, err := q.Header(path)
		if err != nil {
			return nil, cfgErr("read header of "+path, err)
		}
		schema, err := ParseSchema(header)
		if err != nil {
			return nil, cfgErr("parse header of "+path, err)
		}
		s.sources = append(s.sources, source{partition: part, path: path, schema: schema})
	}

	if n := s.sources[0].schema.Len(); n < 2 {
		return nil, cfgErr(fmt.Sprintf("%s declares %d INFO fields, need at least 2", simplePath, n), nil)
	}
	if len(s.sources) == 2 && s.sources[0].schema.Len() != s.sources[1].schema.Len() {
		return nil, cfgErr(fmt.Sprintf("simple and complex files declare different fields (%d vs %d)",
			s.sources[0].schema.Len(), s.sources[1].schema.Len()), nil)
	}

	s.fields = s.buildFields()

	logger.Info("opened region annotation source",
		zap.String("source", opts.Label),
		zap.Int("files", len(s.sources)),
		zap.Int("fields", len(s.fields)))

	return s, nil
}

// buildFields merges the partition schemas and appends the synthesized fields.
func (s *Store) buildFields() []annotate.FieldDef {
	merged := newSchema()
	for _, src := range s.sources {
		for _, f := range src.schema.Fields() {
			if f.Name == s.opts.TypeField {
				continue
			}
			merged.add(f)
		}
	}

	fields := make([]annotate.FieldDef, 0, merged.Len()+2)
	for _, f := range merged.Fields() {
		fields = append(fields, annotate.FieldDef{
			Name:        annotate.FieldName(s.opts.Label, f.Name),
			Description: f.Description,
		})
	}
	return append(fields,
		annotate.FieldDef{
			Name:        annotate.FieldName(s.opts.Label, TranscriptMatchField),
			Description: "Queried transcript HGVS matches an HGVS notation of the record",
		},
		annotate.FieldDef{
			Name:        annotate.FieldName(s.opts.Label, AdditionalTypesField),
			Description: "Variant types of other records at the same position and allele",
		},
	)
}

// Name returns the output label.
func (s *Store) Name() string { return s.opts.Label }

// Fields implements annotate.Source.
func (s *Store) Fields() []annotate.FieldDef { return s.fields }

// Schema returns the schema parsed from the file of the given partition, or
// nil when that file was not configured.
func (s *Store) Schema(p Partition) *Schema {
	for _, src := range s.sources {
		if src.partition == p {
			return src.schema
		}
	}
	return nil
}

// Lookup implements annotate.Source. It returns nil when no record matches
// the query's coordinates and allele.
func (s *Store) Lookup(q annotate.Query) map[string]string {
	recs := s.matching(q)
	if len(recs) == 0 {
		return nil
	}

	ranked := rank(recs, s.opts.SimpleType)
	primary := ranked[0]

	out := make(map[string]string, len(primary.Fields)+2)
	for k, v := range primary.Fields {
		out[annotate.FieldName(s.opts.Label, k)] = v
	}

	if len(ranked) > 1 {
		if types := distinctTypes(ranked[1:]); len(types) > 0 {
			out[annotate.FieldName(s.opts.Label, AdditionalTypesField)] = strings.Join(types, ";")
		}
	}

	if q.TranscriptHGVS != "" && hgvsMatch(primary, s.opts.HGVSFields, q.TranscriptHGVS) {
		out[annotate.FieldName(s.opts.Label, TranscriptMatchField)] = TranscriptMatchValue
	}

	return out
}

// matching queries every file for [Start-1, End) and keeps the records whose
// coordinates and forward-strand allele equal the query's. Chromosome names
// are compared without their "chr" prefix.
func (s *Store) matching(q annotate.Query) []Record {
	if q.Start < 1 || q.End < q.Start {
		return nil
	}

	chrom := s.chromName(q.Chrom)
	loc := NewLocus(chrom, uint32(q.Start-1), uint32(q.End))

	bare := strings.TrimPrefix(chrom, "chr")
	alt := q.ForwardAllele()

	var out []Record
	for _, src := range s.sources {
		lines, err := s.querier.Query(src.path, loc)
		if err != nil {
			s.logger.Debug("region query failed",
				zap.String("file", src.path),
				zap.Stringer("region", loc),
				zap.Error(err))
			continue
		}
		for _, line := range lines {
			recs, err := ParseRecords(line, s.opts.TypeField)
			if err != nil {
				s.logger.Debug("skipping malformed record",
					zap.String("file", src.path),
					zap.Error(err))
				continue
			}
			for _, r := range recs {
				if strings.TrimPrefix(r.Chrom, "chr") == bare && r.Start == q.Start && r.End == q.End && r.Alt == alt {
					out = append(out, r)
				}
			}
		}
	}
	return out
}

// chromName converts a query chromosome to the naming style of the files.
func (s *Store) chromName(chrom string) string {
	bare := strings.TrimPrefix(chrom, "chr")
	if s.opts.ChrPrefix {
		return "chr" + bare
	}
	return bare
}

// rank orders records simple-type first, keeping file order within each group.
func rank(recs []Record, simpleType string) []Record {
	ranked := make([]Record, 0, len(recs))
	var other []Record
	for _, r := range recs {
		if r.Type == simpleType {
			ranked = append(ranked, r)
		} else {
			other = append(other, r)
		}
	}
	return append(ranked, other...)
}

// distinctTypes returns the sorted, de-duplicated non-empty type tags of recs.
func distinctTypes(recs []Record) []string {
	seen := make(map[string]bool)
	var types []string
	for _, r := range recs {
		if r.Type == "" || seen[r.Type] {
			continue
		}
		seen[r.Type] = true
		types = append(types, r.Type)
	}
	sort.Strings(types)
	return types
}

// hgvsMatch reports whether id is one of the '|'-separated HGVS notations in
// the record's HGVS fields.
func hgvsMatch(r Record, hgvsFields []string, id string) bool {
	for _, f := range hgvsFields {
		for _, tok := range strings.Split(r.Fields[f], "|") {
			if tok != "" && tok == id {
				return true
			}
		}
	}
	return false
}

var _ annotate.Describer = (*Store)(nil)

// Files returns the data files and their indexes.
func (s *Store) Files() []string {
	var out []string
	for _, src := range s.sources {
		out = append(out, src.path)
		if idx := indexPath(src.path); idx != "" {
			out = append(out, idx)
		}
	}
	return out
}

// Settings returns the options that shape lookups.
func (s *Store) Settings() map[string]string {
	return map[string]string{
		"type_field":  s.opts.TypeField,
		"simple_type": s.opts.SimpleType,
		"hgvs_fields": strings.Join(s.opts.HGVSFields, ","),
		"chr_prefix":  strconv.FormatBool(s.opts.ChrPrefix),
	}
}

// Close releases the querier.
func (s *Store) Close() error {
	return s.querier.Close()
}
