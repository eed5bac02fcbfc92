package vcf

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVCF = `##fileformat=VCFv4.2
##INFO=<ID=STRAND,Number=1,Type=Integer,Description="Feature strand">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO
12	25245351	rs121913529	C	A	.	PASS	STRAND=-1;HGVS_ID=ENST00000256078.10:c.34G>T
17	7675088	.	C	T,G	50	PASS	DB

1	100	.	A	G	.	.	.
`

func writeVCF(t *testing.T, name, content string, gz bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if !gz {
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func readAll(t *testing.T, p *Parser) []*Variant {
	t.Helper()
	var out []*Variant
	for {
		v, err := p.Next()
		require.NoError(t, err)
		if v == nil {
			return out
		}
		out = append(out, v)
	}
}

func TestParser_Variants(t *testing.T) {
	for _, gz := range []bool{false, true} {
		name := "plain"
		if gz {
			name = "gzip"
		}
		t.Run(name, func(t *testing.T) {
			p, err := NewParser(writeVCF(t, "in.vcf", testVCF, gz))
			require.NoError(t, err)
			defer p.Close()

			variants := readAll(t, p)
			require.Len(t, variants, 3)

			v := variants[0]
			assert.Equal(t, "12", v.Chrom)
			assert.Equal(t, int64(25245351), v.Pos)
			assert.Equal(t, "C", v.Ref)
			assert.Equal(t, "A", v.Alt)
			assert.Equal(t, int8(-1), v.Strand())
			assert.Equal(t, "ENST00000256078.10:c.34G>T", v.TranscriptHGVS())

			assert.Equal(t, "T,G", variants[1].Alt)
			assert.Equal(t, 50.0, variants[1].Qual)
			assert.Equal(t, true, variants[1].Info["DB"])

			assert.Equal(t, int8(1), variants[2].Strand())
			assert.Empty(t, variants[2].Info)

			assert.Equal(t, 4, variants[0].Line)
			assert.Equal(t, 5, variants[1].Line)
			assert.Equal(t, 7, variants[2].Line)
		})
	}
}

func TestParser_Header(t *testing.T) {
	p, err := NewParserFromReader(strings.NewReader(testVCF))
	require.NoError(t, err)

	header := p.Header()
	require.Len(t, header, 3)
	assert.Equal(t, "##fileformat=VCFv4.2", header[0])
	assert.True(t, strings.HasPrefix(header[2], "#CHROM"))
}

func TestParser_MissingChromLine(t *testing.T) {
	_, err := NewParserFromReader(strings.NewReader("##fileformat=VCFv4.2\n1\t100\t.\tA\tG\t.\t.\t.\n"))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Line)
}

func TestParser_InvalidLine(t *testing.T) {
	p, err := NewParserFromReader(strings.NewReader("#CHROM\tPOS\n1\tabc\t.\tA\tG\t.\t.\t.\n"))
	require.NoError(t, err)

	_, err = p.Next()
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "invalid position")
}

func TestParser_NotFound(t *testing.T) {
	_, err := NewParser("/nonexistent/input.vcf")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseInfo(t *testing.T) {
	info := ParseInfo("CLNSIG=Pathogenic;DB;GENEINFO=TP53:7157")
	assert.Equal(t, "Pathogenic", info["CLNSIG"])
	assert.Equal(t, true, info["DB"])
	assert.Equal(t, "TP53:7157", info["GENEINFO"])

	assert.Empty(t, ParseInfo("."))
}

func TestSplitMultiAllelic(t *testing.T) {
	v := &Variant{Chrom: "1", Pos: 10, Ref: "A", Alt: "C,T", Line: 12}
	split := SplitMultiAllelic(v)
	require.Len(t, split, 2)
	assert.Equal(t, "C", split[0].Alt)
	assert.Equal(t, "T", split[1].Alt)
	assert.Equal(t, 12, split[1].Line)

	single := SplitMultiAllelic(&Variant{Alt: "G"})
	require.Len(t, single, 1)
}
