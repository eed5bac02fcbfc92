// Package annotate dispatches variant alleles to precomputed annotation
// sources and merges their results.
package annotate

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/stekaz/VEP-plugins/internal/vcf"
)

// Result is the merged output of all sources for one variant allele.
type Result map[string]string

// Annotator runs every configured Source against each variant allele.
type Annotator struct {
	sources []Source
	workers int
	cache   ResultCache
	logger  *zap.Logger
}

// NewAnnotator creates a new annotator over the given sources.
func NewAnnotator(sources ...Source) *Annotator {
	return &Annotator{
		sources: sources,
		logger:  zap.NewNop(),
	}
}

// SetLogger sets the logger for warning and info messages.
func (a *Annotator) SetLogger(l *zap.Logger) {
	a.logger = l
}

// SetWorkers sets the worker count used by AnnotateAll. Zero means runtime.NumCPU().
func (a *Annotator) SetWorkers(n int) {
	a.workers = n
}

// SetCache enables a result cache consulted before the sources.
func (a *Annotator) SetCache(c ResultCache) {
	a.cache = c
}

// Fields returns the output fields of all sources, in source order.
func (a *Annotator) Fields() []FieldDef {
	var fields []FieldDef
	for _, s := range a.sources {
		fields = append(fields, s.Fields()...)
	}
	return fields
}

// Annotate looks up a single-allele variant in every source and merges the
// results. The result is empty when no source has anything to report.
func (a *Annotator) Annotate(v *vcf.Variant) (Result, error) {
	res, _, err := a.annotate(v)
	return res, err
}

// annotate is Annotate, also reporting whether the result came from the cache.
func (a *Annotator) annotate(v *vcf.Variant) (Result, bool, error) {
	if v == nil {
		return nil, false, fmt.Errorf("annotate: nil variant")
	}

	q := NewQuery(v)
	if a.cache != nil {
		res, ok, err := a.cache.Get(q)
		if err != nil {
			a.logger.Warn("result cache lookup failed", zap.Error(err))
		} else if ok {
			return res, true, nil
		}
	}

	res := make(Result)
	for _, s := range a.sources {
		for k, val := range s.Lookup(q) {
			res[k] = val
		}
	}
	return res, false, nil
}

// AnnotateAll annotates all variants from a parser.
// The parser can be any type that implements vcf.VariantParser (VCF, MAF, etc.).
func (a *Annotator) AnnotateAll(parser vcf.VariantParser, writer AnnotationWriter) error {
	workers := a.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	items := make(chan WorkItem, 2*workers)
	var parseErr error
	variantCount := 0

	go func() {
		defer close(items)
		seq := 0
		for {
			v, err := parser.Next()
			if err != nil {
				parseErr = fmt.Errorf("read variant: %w", err)
				return
			}
			if v == nil {
				return
			}
			variantCount++

			// Split multi-allelic variants, each gets its own sequence number.
			for _, variant := range vcf.SplitMultiAllelic(v) {
				items <- WorkItem{Seq: seq, Variant: variant}
				seq++
			}
		}
	}()

	results := a.ParallelAnnotate(items, workers)

	annotated, cached := 0, 0
	var pending []CacheEntry
	flushCache := func() error {
		if a.cache == nil || len(pending) == 0 {
			return nil
		}
		if err := a.cache.Put(pending); err != nil {
			return fmt.Errorf("write result cache: %w", err)
		}
		pending = pending[:0]
		return nil
	}

	if err := OrderedCollect(results, func(r WorkResult) error {
		if r.Err != nil {
			a.logger.Warn("failed to annotate variant",
				zap.String("chrom", r.Variant.Chrom),
				zap.Int64("pos", r.Variant.Pos),
				zap.Error(r.Err))
			return nil
		}
		if len(r.Result) > 0 {
			annotated++
		}
		if r.Cached {
			cached++
		} else if a.cache != nil {
			pending = append(pending, CacheEntry{Query: NewQuery(r.Variant), Result: r.Result})
			if len(pending) >= cacheBatchSize {
				if err := flushCache(); err != nil {
					return err
				}
			}
		}
		if err := writer.Write(r.Variant, r.Result); err != nil {
			return fmt.Errorf("write annotation: %w", err)
		}
		return nil
	}); err != nil {
		return err
	}
	if err := flushCache(); err != nil {
		return err
	}

	if parseErr != nil {
		return parseErr
	}

	a.logger.Info("annotation finished",
		zap.Int("variants", variantCount),
		zap.Int("annotated_alleles", annotated),
		zap.Int("cached_alleles", cached))

	return writer.Flush()
}

// Close closes every source, returning the first error.
func (a *Annotator) Close() error {
	var firstErr error
	for _, s := range a.sources {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", s.Name(), err)
		}
	}
	return firstErr
}

// AnnotationWriter defines the interface for writing annotations.
type AnnotationWriter interface {
	WriteHeader(fields []FieldDef) error
	Write(v *vcf.Variant, res Result) error
	Flush() error
}
