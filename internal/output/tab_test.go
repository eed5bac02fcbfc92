package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stekaz/VEP-plugins/internal/annotate"
	"github.com/stekaz/VEP-plugins/internal/vcf"
)

var testFields = []annotate.FieldDef{
	{Name: "OffsetScore_score", Description: "score"},
	{Name: "RegionAnnot_CLNSIG", Description: "Clinical significance"},
}

func TestTabWriter_WriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.WriteHeader(testFields))
	require.NoError(t, w.Flush())

	assert.Equal(t, "#Uploaded_variation\tLocation\tAllele\tOffsetScore_score\tRegionAnnot_CLNSIG\n", buf.String())
}

func TestTabWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	v := &vcf.Variant{Chrom: "12", Pos: 25245351, ID: "rs121913529", Ref: "C", Alt: "A"}
	res := annotate.Result{
		"OffsetScore_score":  "0.87",
		"RegionAnnot_CLNSIG": "Pathogenic",
	}

	require.NoError(t, w.WriteHeader(testFields))
	require.NoError(t, w.Write(v, res))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"rs121913529", "12:25245351", "A", "0.87", "Pathogenic"}, strings.Split(lines[1], "\t"))
}

func TestTabWriter_Write_Missing(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	v := &vcf.Variant{Chrom: "7", Pos: 100, ID: ".", Ref: "ACG", Alt: "A"}

	require.NoError(t, w.WriteHeader(testFields))
	require.NoError(t, w.Write(v, annotate.Result{"RegionAnnot_CLNSIG": ""}))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"7_100_ACG/A", "7:100-102", "A", "-", "-"}, strings.Split(lines[1], "\t"))
}

func TestTabWriter_IgnoresUnadvertisedFields(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	v := &vcf.Variant{Chrom: "1", Pos: 5, ID: "x", Ref: "A", Alt: "G"}

	require.NoError(t, w.WriteHeader(testFields[:1]))
	require.NoError(t, w.Write(v, annotate.Result{"Other_field": "1", "OffsetScore_score": "-1.50"}))
	require.NoError(t, w.Flush())

	assert.True(t, strings.HasSuffix(buf.String(), "x\t1:5\tG\t-1.50\n"))
}
