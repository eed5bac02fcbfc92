package offsetscore

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stekaz/VEP-plugins/internal/annotate"
)

// writeScores writes one per-chromosome score file into dir.
func writeScores(t *testing.T, dir, chrom string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, chrom), data, 0644))
}

func snv(chrom string, pos int64, ref, alt string, strand int8) annotate.Query {
	return annotate.Query{Chrom: chrom, Start: pos, End: pos, Ref: ref, Allele: alt, Strand: strand}
}

func openStore(t *testing.T, dir string, opts Options) *Store {
	t.Helper()
	s, err := Open(dir, opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_FindsChromosomeFiles(t *testing.T) {
	dir := t.TempDir()
	writeScores(t, dir, "1", []byte{0, 0, 0})
	writeScores(t, dir, "X", []byte{0, 0, 0})
	writeScores(t, dir, "M", []byte{0, 0, 0})
	writeScores(t, dir, "chr2", []byte{0, 0, 0}) // not a recognised file name

	s := openStore(t, dir, DefaultOptions())
	assert.Equal(t, []string{"1", "X", "M"}, s.Chromosomes())
}

func TestStore_Describe(t *testing.T) {
	dir := t.TempDir()
	writeScores(t, dir, "2", []byte{0, 0, 0})
	writeScores(t, dir, "Y", []byte{0, 0, 0})

	s := openStore(t, dir, DefaultOptions())
	assert.Equal(t, []string{filepath.Join(dir, "2"), filepath.Join(dir, "Y")}, s.Files())
	assert.Equal(t, map[string]string{
		"bytes_per_position": "3",
		"min":                "-1.5",
		"step":               "0.01",
		"sentinel":           "255",
		"base_order":         "ACGT",
	}, s.Settings())
}

func TestOpen_MissingDirectory(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"), DefaultOptions())
	require.Error(t, err)
	assert.True(t, annotate.IsConfigError(err))
}

func TestOpen_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	_, err := Open(path, DefaultOptions())
	assert.True(t, annotate.IsConfigError(err))
}

func TestOpen_UnsupportedGranularity(t *testing.T) {
	opts := DefaultOptions()
	opts.BytesPerPosition = 4

	_, err := Open(t.TempDir(), opts)
	require.Error(t, err)
	assert.True(t, annotate.IsConfigError(err))
	assert.Contains(t, err.Error(), "offset table")
}

func TestOpen_InvalidOffsetOverride(t *testing.T) {
	opts := DefaultOptions()
	opts.Offsets = map[string]map[string]int{"A": {"C": 1, "G": 2, "T": 0}}

	_, err := Open(t.TempDir(), opts)
	assert.True(t, annotate.IsConfigError(err))
}

func TestOpen_NonPositiveStep(t *testing.T) {
	opts := DefaultOptions()
	opts.Step = 0

	_, err := Open(t.TempDir(), opts)
	assert.True(t, annotate.IsConfigError(err))
}

// The worked example: position 1, A>C, with A's alternates laid out T, C, G.
func TestScore_WorkedExample(t *testing.T) {
	dir := t.TempDir()
	writeScores(t, dir, "1", []byte{255, 0, 50})

	opts := DefaultOptions()
	opts.BaseOrder = "ATCG"
	s := openStore(t, dir, opts)

	score, ok := s.Score(snv("1", 1, "A", "C", 1))
	require.True(t, ok)
	assert.Equal(t, -1.5, score)

	score, ok = s.Score(snv("1", 1, "A", "G", 1))
	require.True(t, ok)
	assert.InDelta(t, -1.0, score, 1e-9)

	_, ok = s.Score(snv("1", 1, "A", "T", 1))
	assert.False(t, ok, "sentinel byte means no score")
}

func TestScore_DecodeRange(t *testing.T) {
	dir := t.TempDir()
	writeScores(t, dir, "2", []byte{0, 254, 255})
	s := openStore(t, dir, DefaultOptions())

	score, ok := s.Score(snv("2", 1, "A", "C", 1))
	require.True(t, ok)
	assert.Equal(t, -1.5, score)

	score, ok = s.Score(snv("2", 1, "A", "G", 1))
	require.True(t, ok)
	assert.InDelta(t, -1.5+254*0.01, score, 1e-9)

	_, ok = s.Score(snv("2", 1, "A", "T", 1))
	assert.False(t, ok)
}

func TestScore_OffsetWithinPositionRecord(t *testing.T) {
	// Every byte value is its own offset, so the decoded score reveals which
	// byte was read.
	const positions = 10
	data := make([]byte, positions*3)
	for i := range data {
		data[i] = byte(i)
	}
	dir := t.TempDir()
	writeScores(t, dir, "7", data)
	s := openStore(t, dir, DefaultOptions())

	for pos := int64(1); pos <= positions; pos++ {
		for r := 0; r < numBases; r++ {
			seen := map[int64]bool{}
			for a := 0; a < numBases; a++ {
				if r == a {
					continue
				}
				score, ok := s.Score(snv("7", pos, string(bases[r]), string(bases[a]), 1))
				require.True(t, ok)
				offset := int64((score-DefaultOptions().MinScore)/DefaultOptions().Step + 0.5)
				assert.GreaterOrEqual(t, offset, (pos-1)*3)
				assert.Less(t, offset, (pos-1)*3+3)
				seen[offset] = true
			}
			assert.Len(t, seen, 3)
		}
	}
}

func TestScore_ReverseStrand(t *testing.T) {
	data := make([]byte, 3*4)
	for i := range data {
		data[i] = byte(10 * i)
	}
	dir := t.TempDir()
	writeScores(t, dir, "3", data)
	s := openStore(t, dir, DefaultOptions())

	for _, ref := range []string{"A", "C", "G", "T"} {
		for _, alt := range []string{"A", "C", "G", "T"} {
			minus, okMinus := s.Score(snv("3", 2, ref, alt, -1))
			plus, okPlus := s.Score(snv("3", 2, ref, string(complement(alt[0])), 1))
			assert.Equal(t, okPlus, okMinus, "%s>%s", ref, alt)
			assert.Equal(t, plus, minus, "%s>%s", ref, alt)
		}
	}
}

func TestScore_LowerCaseBases(t *testing.T) {
	dir := t.TempDir()
	writeScores(t, dir, "12", []byte{10, 20, 30, 40, 50, 60})
	s := openStore(t, dir, DefaultOptions())

	want, ok := s.Score(snv("12", 2, "C", "T", 1))
	require.True(t, ok)

	got, ok := s.Score(snv("12", 2, "c", "t", 1))
	require.True(t, ok)
	assert.Equal(t, want, got)

	got, ok = s.Score(snv("12", 2, "C", "a", -1))
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestScore_Misses(t *testing.T) {
	dir := t.TempDir()
	writeScores(t, dir, "1", []byte{1, 2, 3})
	writeScores(t, dir, "M", []byte{1, 2, 3})
	s := openStore(t, dir, DefaultOptions())

	tests := []struct {
		name string
		q    annotate.Query
	}{
		{"multi-base", annotate.Query{Chrom: "1", Start: 1, End: 2, Ref: "AC", Allele: "GT", Strand: 1}},
		{"insertion allele", snv("1", 1, "A", "AT", 1)},
		{"non-nucleotide allele", snv("1", 1, "A", "N", 1)},
		{"non-nucleotide ref", snv("1", 1, "N", "A", 1)},
		{"self substitution", snv("1", 1, "A", "A", 1)},
		{"self after strand flip", snv("1", 1, "A", "T", -1)},
		{"unmapped chromosome", snv("5", 1, "A", "C", 1)},
		{"unknown chromosome", snv("GL000220.1", 1, "A", "C", 1)},
		{"beyond end of file", snv("1", 2, "A", "C", 1)},
		{"position zero", snv("1", 0, "A", "C", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := s.Score(tt.q)
			assert.False(t, ok)
			assert.Empty(t, s.Lookup(tt.q))
		})
	}
}

func TestScore_ShortFile(t *testing.T) {
	dir := t.TempDir()
	writeScores(t, dir, "1", []byte{0, 0, 0, 7})
	s := openStore(t, dir, DefaultOptions())

	score, ok := s.Score(snv("1", 2, "A", "C", 1))
	require.True(t, ok)
	assert.InDelta(t, -1.43, score, 1e-9)

	_, ok = s.Score(snv("1", 2, "A", "G", 1))
	assert.False(t, ok, "truncated record")
}

func TestScore_ChromosomeAliases(t *testing.T) {
	dir := t.TempDir()
	writeScores(t, dir, "M", []byte{100, 0, 0})
	writeScores(t, dir, "1", []byte{100, 0, 0})
	s := openStore(t, dir, DefaultOptions())

	for _, chrom := range []string{"M", "MT", "chrM", "chrMT"} {
		_, ok := s.Score(snv(chrom, 1, "A", "C", 1))
		assert.True(t, ok, chrom)
	}
	_, ok := s.Score(snv("chr1", 1, "A", "C", 1))
	assert.True(t, ok)
}

func TestLookup_Format(t *testing.T) {
	dir := t.TempDir()
	writeScores(t, dir, "1", []byte{3, 200, 255})
	opts := DefaultOptions()
	opts.Label = "Blosum"
	s := openStore(t, dir, opts)

	assert.Equal(t, map[string]string{"Blosum_score": "-1.47"}, s.Lookup(snv("1", 1, "A", "C", 1)))
	assert.Equal(t, map[string]string{"Blosum_score": "0.50"}, s.Lookup(snv("1", 1, "A", "G", 1)))
	assert.Nil(t, s.Lookup(snv("1", 1, "A", "T", 1)))

	require.Len(t, s.Fields(), 1)
	assert.Equal(t, "Blosum_score", s.Fields()[0].Name)
	assert.Equal(t, "Blosum", s.Name())
}

func TestScore_Concurrent(t *testing.T) {
	const positions = 200
	data := make([]byte, positions*3)
	for i := range data {
		data[i] = byte(i % 250)
	}
	dir := t.TempDir()
	writeScores(t, dir, "1", data)
	s := openStore(t, dir, DefaultOptions())

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pos := int64(1); pos <= positions; pos++ {
				got := s.Lookup(snv("1", pos, "C", "A", 1))
				want := strconv.FormatFloat(float64(data[(pos-1)*3])*0.01-1.5, 'f', 2, 64)
				assert.Equal(t, want, got["OffsetScore_score"])
			}
		}()
	}
	wg.Wait()
}

func TestClose(t *testing.T) {
	dir := t.TempDir()
	writeScores(t, dir, "1", []byte{0, 0, 0})
	s, err := Open(dir, DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.Empty(t, s.Chromosomes())
	_, ok := s.Score(snv("1", 1, "A", "C", 1))
	assert.False(t, ok)
}

func TestDecimalPlaces(t *testing.T) {
	assert.Equal(t, 2, decimalPlaces(0.01))
	assert.Equal(t, 3, decimalPlaces(0.005))
	assert.Equal(t, 0, decimalPlaces(1))
}
