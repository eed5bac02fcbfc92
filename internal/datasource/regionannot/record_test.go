package regionannot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecords(t *testing.T) {
	recs, err := ParseRecords(vcfLine("1", "100", "rs1", "ACT", "A,AC", ".", ".", "TYPE=Deletion;CLNSIG=Benign;SOMATIC"), "TYPE")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "1", recs[0].Chrom)
	assert.Equal(t, int64(100), recs[0].Start)
	assert.Equal(t, int64(102), recs[0].End)
	assert.Equal(t, "ACT", recs[0].Ref)
	assert.Equal(t, "A", recs[0].Alt)
	assert.Equal(t, "AC", recs[1].Alt)
	assert.Equal(t, "Deletion", recs[0].Type)
	assert.Equal(t, map[string]string{"CLNSIG": "Benign"}, recs[0].Fields)
}

func TestParseRecords_SingleBase(t *testing.T) {
	recs, err := ParseRecords(vcfLine("X", "5", ".", "G", "T", ".", ".", "."), "TYPE")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, recs[0].Start, recs[0].End)
	assert.Empty(t, recs[0].Type)
	assert.Empty(t, recs[0].Fields)
}

func TestParseRecords_Errors(t *testing.T) {
	_, err := ParseRecords("1\t100\t.\tA\tG", "TYPE")
	assert.Error(t, err)

	_, err = ParseRecords(vcfLine("1", "pos", ".", "A", "G", ".", ".", "."), "TYPE")
	assert.Error(t, err)
}
