package annotate

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stekaz/VEP-plugins/internal/vcf"
)

// posSource echoes the queried position.
type posSource struct{ closed bool }

func (s *posSource) Name() string { return "Pos" }
func (s *posSource) Fields() []FieldDef {
	return []FieldDef{{Name: "Pos_value", Description: "queried position"}}
}
func (s *posSource) Lookup(q Query) map[string]string {
	return map[string]string{"Pos_value": fmt.Sprint(q.Start)}
}
func (s *posSource) Close() error { s.closed = true; return nil }

// snvSource only answers single-base substitutions on chromosome 1.
type snvSource struct{}

func (snvSource) Name() string { return "SNV" }
func (snvSource) Fields() []FieldDef {
	return []FieldDef{{Name: "SNV_allele", Description: "queried allele"}}
}
func (snvSource) Lookup(q Query) map[string]string {
	if !q.IsSingleBase() || len(q.Allele) != 1 || q.Chrom != "1" {
		return nil
	}
	return map[string]string{"SNV_allele": q.Allele}
}
func (snvSource) Close() error { return assert.AnError }

// sliceParser replays a fixed list of variants.
type sliceParser struct {
	variants []*vcf.Variant
	err      error
	i        int
}

func (p *sliceParser) Next() (*vcf.Variant, error) {
	if p.i >= len(p.variants) {
		return nil, p.err
	}
	v := p.variants[p.i]
	p.i++
	return v, nil
}
func (p *sliceParser) Close() error    { return nil }
func (p *sliceParser) LineNumber() int { return p.i }

// recordingWriter keeps everything written to it.
type recordingWriter struct {
	rows    []string
	flushed bool
}

func (w *recordingWriter) WriteHeader(fields []FieldDef) error { return nil }
func (w *recordingWriter) Write(v *vcf.Variant, res Result) error {
	w.rows = append(w.rows, fmt.Sprintf("%s:%d:%s=%s", v.Chrom, v.Pos, v.Alt, res["SNV_allele"]))
	return nil
}
func (w *recordingWriter) Flush() error { w.flushed = true; return nil }

func TestAnnotator_Annotate_MergesSources(t *testing.T) {
	ann := NewAnnotator(&posSource{}, snvSource{})

	res, err := ann.Annotate(&vcf.Variant{Chrom: "1", Pos: 42, Ref: "A", Alt: "G"})
	require.NoError(t, err)
	assert.Equal(t, Result{"Pos_value": "42", "SNV_allele": "G"}, res)

	res, err = ann.Annotate(&vcf.Variant{Chrom: "2", Pos: 42, Ref: "AT", Alt: "G"})
	require.NoError(t, err)
	assert.Equal(t, Result{"Pos_value": "42"}, res)

	_, err = ann.Annotate(nil)
	assert.Error(t, err)
}

func TestAnnotator_Fields(t *testing.T) {
	ann := NewAnnotator(&posSource{}, snvSource{})

	var names []string
	for _, f := range ann.Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Pos_value", "SNV_allele"}, names)
}

func TestAnnotator_AnnotateAll(t *testing.T) {
	ann := NewAnnotator(snvSource{})
	ann.SetWorkers(3)

	parser := &sliceParser{variants: []*vcf.Variant{
		{Chrom: "1", Pos: 10, Ref: "A", Alt: "C,T"},
		{Chrom: "1", Pos: 11, Ref: "AT", Alt: "A"},
		{Chrom: "1", Pos: 12, Ref: "G", Alt: "A"},
	}}
	w := &recordingWriter{}

	require.NoError(t, ann.AnnotateAll(parser, w))
	assert.True(t, w.flushed)
	assert.Equal(t, []string{
		"1:10:C=C",
		"1:10:T=T",
		"1:11:A=",
		"1:12:A=A",
	}, w.rows)
}

func TestAnnotator_AnnotateAll_ParseError(t *testing.T) {
	ann := NewAnnotator(snvSource{})
	parser := &sliceParser{
		variants: []*vcf.Variant{{Chrom: "1", Pos: 10, Ref: "A", Alt: "C"}},
		err:      &vcf.ParseError{Line: 2, Message: "bad line"},
	}

	err := ann.AnnotateAll(parser, &recordingWriter{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "bad line"))
}

func TestAnnotator_Close(t *testing.T) {
	pos := &posSource{}
	ann := NewAnnotator(pos, snvSource{})

	err := ann.Close()
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, pos.closed)
}

// memCache is an in-memory ResultCache keyed by chrom:pos:allele.
type memCache struct {
	mu      sync.Mutex
	entries map[string]Result
	puts    int
	getErr  error
}

func cacheKey(q Query) string { return fmt.Sprintf("%s:%d:%s", q.Chrom, q.Start, q.Allele) }

func (c *memCache) Get(q Query) (Result, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	res, ok := c.entries[cacheKey(q)]
	return res, ok, nil
}

func (c *memCache) Put(entries []CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	for _, e := range entries {
		c.entries[cacheKey(e.Query)] = e.Result
	}
	return nil
}

func TestAnnotator_Cache(t *testing.T) {
	cache := &memCache{entries: map[string]Result{
		"1:10:G": {"SNV_allele": "cached"},
	}}
	ann := NewAnnotator(snvSource{})
	ann.SetCache(cache)
	ann.SetWorkers(2)

	parser := &sliceParser{variants: []*vcf.Variant{
		{Chrom: "1", Pos: 10, Ref: "A", Alt: "G"},
		{Chrom: "1", Pos: 11, Ref: "A", Alt: "T"},
	}}
	w := &recordingWriter{}
	require.NoError(t, ann.AnnotateAll(parser, w))

	assert.Equal(t, []string{"1:10:G=cached", "1:11:T=T"}, w.rows)
	assert.Equal(t, 1, cache.puts)
	assert.Equal(t, Result{"SNV_allele": "T"}, cache.entries["1:11:T"])
}

func TestAnnotator_CacheErrorFallsBackToSources(t *testing.T) {
	cache := &memCache{entries: map[string]Result{}, getErr: assert.AnError}
	ann := NewAnnotator(snvSource{})
	ann.SetCache(cache)

	res, err := ann.Annotate(&vcf.Variant{Chrom: "1", Pos: 10, Ref: "A", Alt: "G"})
	require.NoError(t, err)
	assert.Equal(t, Result{"SNV_allele": "G"}, res)
}
