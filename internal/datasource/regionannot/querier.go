package regionannot

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/brentp/irelate/interfaces"
	"github.com/carbocation/bix"
	"github.com/carbocation/vcfgo"

	"github.com/stekaz/VEP-plugins/internal/vcf"
)

// Backends for region retrieval.
const (
	BackendTabix = "tabix" // external tabix utility, one process per query
	BackendBix   = "bix"   // in-process tabix index reader
)

// Locus is a 0-based half-open region, the convention tabix indexes use.
type Locus struct {
	chrom      string
	start, end uint32
}

var _ interfaces.IPosition = Locus{}

// NewLocus returns the region [start, end) on chrom.
func NewLocus(chrom string, start, end uint32) Locus {
	return Locus{chrom: chrom, start: start, end: end}
}

func (l Locus) Chrom() string  { return l.chrom }
func (l Locus) Start() uint32  { return l.start }
func (l Locus) End() uint32    { return l.end }
func (l Locus) String() string { return fmt.Sprintf("%s:%d-%d", l.chrom, l.start, l.end) }

// RegionQuerier retrieves raw records from a region-indexed file.
type RegionQuerier interface {
	// Header returns the file's metadata header lines, ending with #CHROM.
	Header(path string) ([]string, error)
	// Query returns the raw text lines of records overlapping loc.
	Query(path string, loc Locus) ([]string, error)
	Close() error
}

// NewQuerier returns the querier for a backend name. tabixPath names the
// external utility used by BackendTabix.
func NewQuerier(backend, tabixPath string) (RegionQuerier, error) {
	switch backend {
	case "", BackendTabix:
		return NewTabixQuerier(tabixPath)
	case BackendBix:
		return NewBixQuerier(), nil
	default:
		return nil, fmt.Errorf("unknown region backend %q", backend)
	}
}

// TabixQuerier shells out to the tabix utility.
type TabixQuerier struct {
	bin string
}

// NewTabixQuerier resolves the tabix executable on PATH.
func NewTabixQuerier(bin string) (*TabixQuerier, error) {
	if bin == "" {
		bin = "tabix"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("tabix utility not available: %w", err)
	}
	return &TabixQuerier{bin: path}, nil
}

// Header runs "tabix -H".
func (t *TabixQuerier) Header(path string) ([]string, error) {
	out, err := t.run("-H", path)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// Query runs "tabix <file> chrom:start-end". tabix regions are 1-based and
// inclusive, so the 0-based start is passed through unchanged: the region
// begins one base early and the caller's exact-match filter drops the extra.
func (t *TabixQuerier) Query(path string, loc Locus) ([]string, error) {
	start := loc.Start()
	if start < 1 {
		start = 1
	}
	region := loc.Chrom() + ":" + strconv.FormatUint(uint64(start), 10) + "-" + strconv.FormatUint(uint64(loc.End()), 10)
	out, err := t.run(path, region)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

func (t *TabixQuerier) run(args ...string) ([]byte, error) {
	cmd := exec.Command(t.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("tabix %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Close is a no-op; tabix processes exit after each query.
func (t *TabixQuerier) Close() error { return nil }

// BixQuerier reads tabix-indexed VCF files in process. One handle is kept
// per file; queries on the same handle are serialized.
type BixQuerier struct {
	mu      sync.Mutex
	handles map[string]*bixHandle
}

type bixHandle struct {
	mu  sync.Mutex
	tbx *bix.Bix
}

// NewBixQuerier returns an in-process querier.
func NewBixQuerier() *BixQuerier {
	return &BixQuerier{handles: make(map[string]*bixHandle)}
}

func (b *BixQuerier) handle(path string) (*bixHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if h, ok := b.handles[path]; ok {
		return h, nil
	}
	tbx, err := bix.New(path)
	if err != nil {
		return nil, fmt.Errorf("open tabix index for %s: %w", path, err)
	}
	h := &bixHandle{tbx: tbx}
	b.handles[path] = h
	return h, nil
}

// Header opens the index (failing if it is absent) and returns the header
// lines of the compressed file.
func (b *BixQuerier) Header(path string) ([]string, error) {
	if _, err := b.handle(path); err != nil {
		return nil, err
	}
	p, err := vcf.NewParser(path)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.Header(), nil
}

// Query returns the overlapping records re-serialized as VCF lines.
func (b *BixQuerier) Query(path string, loc Locus) ([]string, error) {
	h, err := b.handle(path)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	vals, err := h.tbx.Query(loc)
	if err != nil {
		return nil, err
	}
	defer vals.Close()

	var lines []string
	for {
		v, err := vals.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		// Unwrap to the underlying vcfgo.Variant.
		wrapped, ok := v.(interfaces.VarWrap)
		if !ok {
			return nil, fmt.Errorf("%s: unexpected record type %T", loc, v)
		}
		variant, ok := wrapped.IVariant.(*vcfgo.Variant)
		if !ok {
			return nil, fmt.Errorf("%s: unexpected variant type %T", loc, wrapped.IVariant)
		}
		lines = append(lines, variantLine(variant))
	}
	return lines, nil
}

// variantLine renders the site columns of a variant as a VCF data line.
func variantLine(v *vcfgo.Variant) string {
	return strings.Join([]string{
		v.Chrom(),
		strconv.FormatUint(v.Pos, 10),
		v.Id(),
		v.Ref(),
		strings.Join(v.Alt(), ","),
		".",
		".",
		string(v.Info().Bytes()),
	}, "\t")
}

// Close releases every open index handle.
func (b *BixQuerier) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for path, h := range b.handles {
		if err := h.tbx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(b.handles, path)
	}
	return firstErr
}

// splitLines splits process output into non-empty lines.
func splitLines(out []byte) []string {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if line := strings.TrimRight(sc.Text(), "\r"); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// indexExists reports whether a tabix (.tbi) or CSI (.csi) index sits next to path.
func indexExists(path string) bool {
	return indexPath(path) != ""
}

// indexPath returns the tabix or CSI index next to path, or "".
func indexPath(path string) string {
	for _, ext := range []string{".tbi", ".csi"} {
		if _, err := os.Stat(path + ext); err == nil {
			return path + ext
		}
	}
	return ""
}
