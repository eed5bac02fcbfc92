// Package offsetscore provides precomputed substitution score lookups from
// direct-addressed binary files, one file per chromosome. Each 1-based
// position occupies a fixed-width record holding one quantized score byte per
// possible alternate base.
package offsetscore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/stekaz/VEP-plugins/internal/annotate"
)

// Chromosomes looked for at construction, in file-name form.
var chromosomes = [...]string{
	"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12",
	"13", "14", "15", "16", "17", "18", "19", "20", "21", "22",
	"X", "Y", "M",
}

// Options configure score decoding. Use DefaultOptions and override fields.
type Options struct {
	Label            string  // output prefix
	BytesPerPosition int     // bytes per genomic position
	MinScore         float64 // score of byte value 0
	Step             float64 // score increment per byte value
	Sentinel         byte    // byte value meaning "no score"

	// BaseOrder is the order in which alternates are laid out inside a
	// position record; the reference base itself is skipped.
	BaseOrder string

	// Offsets, when set, replaces the table derived from BaseOrder.
	Offsets map[string]map[string]int

	Logger *zap.Logger
}

// DefaultOptions returns the standard decode parameters.
func DefaultOptions() Options {
	return Options{
		Label:            "OffsetScore",
		BytesPerPosition: 3,
		MinScore:         -1.5,
		Step:             0.01,
		Sentinel:         255,
		BaseOrder:        bases,
	}
}

// chromFile is an open per-chromosome score file. The mutex serializes the
// seek+read pair against the shared file cursor.
type chromFile struct {
	mu   sync.Mutex
	f    *os.File
	path string
	size int64
}

// Store provides score lookups over a directory of per-chromosome files.
// It is safe for concurrent use.
type Store struct {
	opts    Options
	offsets offsetTable
	files   [len(chromosomes)]*chromFile
	prec    int // decimal places used when formatting scores
	logger  *zap.Logger
}

// Open opens every per-chromosome file found in dir. Chromosomes without a
// file are skipped. A missing directory or an unusable offset table is a
// configuration error.
func Open(dir string, opts Options) (*Store, error) {
	label := opts.Label
	if label == "" {
		label = DefaultOptions().Label
		opts.Label = label
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, &annotate.ConfigError{Source: label, Message: "score directory not found", Err: err}
	}
	if !info.IsDir() {
		return nil, &annotate.ConfigError{Source: label, Message: fmt.Sprintf("%s is not a directory", dir)}
	}

	var (
		table offsetTable
		ok    bool
	)
	if opts.Offsets != nil {
		table, ok = tableFromMap(opts.Offsets, opts.BytesPerPosition)
	} else {
		table, ok = buildOffsetTable(opts.BaseOrder, opts.BytesPerPosition)
	}
	if !ok {
		return nil, &annotate.ConfigError{
			Source:  label,
			Message: fmt.Sprintf("no substitution offset table for %d bytes per position", opts.BytesPerPosition),
		}
	}
	if opts.Step <= 0 {
		return nil, &annotate.ConfigError{Source: label, Message: "score step must be positive"}
	}

	s := &Store{
		opts:    opts,
		offsets: table,
		prec:    decimalPlaces(opts.Step),
		logger:  logger,
	}

	for i, chrom := range chromosomes {
		f, err := os.Open(filepath.Join(dir, chrom))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			s.Close()
			return nil, &annotate.ConfigError{Source: label, Message: "open score file " + chrom, Err: err}
		}
		st, err := f.Stat()
		if err != nil {
			f.Close()
			s.Close()
			return nil, &annotate.ConfigError{Source: label, Message: "stat score file " + chrom, Err: err}
		}
		s.files[i] = &chromFile{f: f, path: f.Name(), size: st.Size()}
	}

	logger.Info("opened score files",
		zap.String("source", label),
		zap.String("dir", dir),
		zap.Strings("chromosomes", s.Chromosomes()))

	return s, nil
}

// Chromosomes returns the labels that have an open score file.
func (s *Store) Chromosomes() []string {
	var out []string
	for i, cf := range s.files {
		if cf != nil {
			out = append(out, chromosomes[i])
		}
	}
	return out
}

// Score returns the decoded score for a single-base substitution, or false
// when the variant is unsupported, unmapped, out of range, or carries the
// sentinel byte. The allele is complemented back to the forward strand for
// minus-strand queries. Bases are matched case-insensitively.
func (s *Store) Score(q annotate.Query) (float64, bool) {
	if !q.IsSingleBase() || len(q.Allele) != 1 {
		return 0, false
	}

	ref := upper(q.Ref[0])
	allele := upper(q.Allele[0])
	if q.Strand < 0 {
		allele = complement(allele)
	}
	if _, ok := baseIndex(allele); !ok {
		return 0, false
	}

	idx, ok := chromosomeIndex(q.Chrom)
	if !ok || s.files[idx] == nil {
		return 0, false
	}

	within, ok := s.offsets.lookup(ref, allele)
	if !ok || q.Start < 1 {
		return 0, false
	}
	offset := (q.Start-1)*int64(s.opts.BytesPerPosition) + int64(within)

	b, ok := s.files[idx].readByte(offset)
	if !ok {
		s.logger.Debug("score byte unreadable",
			zap.String("chrom", q.Chrom),
			zap.Int64("pos", q.Start),
			zap.Int64("offset", offset))
		return 0, false
	}
	return s.decode(b)
}

// decode maps a stored byte to a score; the sentinel means no score.
func (s *Store) decode(b byte) (float64, bool) {
	if b == s.opts.Sentinel {
		return 0, false
	}
	return float64(b)*s.opts.Step + s.opts.MinScore, true
}

// readByte performs one seek and one single-byte read under the file lock.
func (cf *chromFile) readByte(offset int64) (byte, bool) {
	if offset < 0 || offset >= cf.size {
		return 0, false
	}

	cf.mu.Lock()
	defer cf.mu.Unlock()

	if _, err := cf.f.Seek(offset, io.SeekStart); err != nil {
		return 0, false
	}
	var buf [1]byte
	if _, err := io.ReadFull(cf.f, buf[:]); err != nil {
		return 0, false
	}
	return buf[0], true
}

var _ annotate.Describer = (*Store)(nil)

// Files returns the paths of the open score files.
func (s *Store) Files() []string {
	var out []string
	for _, cf := range s.files {
		if cf != nil {
			out = append(out, cf.path)
		}
	}
	return out
}

// Settings returns the decode parameters.
func (s *Store) Settings() map[string]string {
	settings := map[string]string{
		"bytes_per_position": strconv.Itoa(s.opts.BytesPerPosition),
		"min":                strconv.FormatFloat(s.opts.MinScore, 'g', -1, 64),
		"step":               strconv.FormatFloat(s.opts.Step, 'g', -1, 64),
		"sentinel":           strconv.Itoa(int(s.opts.Sentinel)),
		"base_order":         s.opts.BaseOrder,
	}
	if s.opts.Offsets != nil {
		settings["offsets"] = fmt.Sprint(s.opts.Offsets)
	}
	return settings
}

// Name returns the output label.
func (s *Store) Name() string { return s.opts.Label }

// Fields implements annotate.Source.
func (s *Store) Fields() []annotate.FieldDef {
	return []annotate.FieldDef{{
		Name:        annotate.FieldName(s.opts.Label, "score"),
		Description: "Precomputed substitution score",
	}}
}

// Lookup implements annotate.Source.
func (s *Store) Lookup(q annotate.Query) map[string]string {
	score, ok := s.Score(q)
	if !ok {
		return nil
	}
	return map[string]string{
		annotate.FieldName(s.opts.Label, "score"): strconv.FormatFloat(score, 'f', s.prec, 64),
	}
}

// Close releases every open score file.
func (s *Store) Close() error {
	var firstErr error
	for i, cf := range s.files {
		if cf == nil {
			continue
		}
		if err := cf.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.files[i] = nil
	}
	return firstErr
}

// chromosomeIndex maps a chromosome name ("chr1", "1", "MT", ...) to its slot.
func chromosomeIndex(chrom string) (int, bool) {
	chrom = strings.TrimPrefix(chrom, "chr")
	if chrom == "MT" {
		chrom = "M"
	}
	for i, c := range chromosomes {
		if c == chrom {
			return i, true
		}
	}
	return 0, false
}

// decimalPlaces returns the number of fractional digits in step, so that
// formatted scores do not carry floating-point noise.
func decimalPlaces(step float64) int {
	s := strconv.FormatFloat(step, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}
