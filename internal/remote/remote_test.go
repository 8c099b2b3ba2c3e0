package remote

import (
	"testing"

	"github.com/Spok95/bom-tracker/internal/domain/bom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath(t *testing.T) {
	p, err := Path("bom", "CAP-100", bom.FieldBrand)
	require.NoError(t, err)
	assert.Equal(t, "bom/CAP-100/Brand", p)

	for _, bad := range [][3]string{
		{"", "A", "f"},
		{"bom", "", "f"},
		{"bom", "A/B", "f"},
		{"bom", "A", " "},
	} {
		_, err := Path(bad[0], bad[1], bad[2])
		assert.ErrorIs(t, err, ErrInvalidPath, "%v", bad)
	}
}

func TestParsePath(t *testing.T) {
	c, id, f, err := ParsePath("bom/X1/Transfer_Status")
	require.NoError(t, err)
	assert.Equal(t, "bom", c)
	assert.Equal(t, "X1", id)
	assert.Equal(t, "Transfer_Status", f)

	for _, bad := range []string{"", "bom/X1", "bom//f", "a/b/c/d"} {
		_, _, _, err := ParsePath(bad)
		assert.ErrorIs(t, err, ErrInvalidPath, bad)
	}
}

func TestGroupByDocument(t *testing.T) {
	patches, err := GroupByDocument("bom", Updates{
		"bom/A/NotToTransferReason": "customer owned",
		"bom/A/Brand":               "Acme",
		"bom/B/Expected_Completion": nil,
	})
	require.NoError(t, err)
	require.Len(t, patches, 2)

	assert.Equal(t, map[string]any{"NotToTransferReason": "customer owned", "Brand": "Acme"}, patches["A"].Set)
	assert.Empty(t, patches["A"].Remove)
	assert.Empty(t, patches["B"].Set)
	assert.Equal(t, []string{"Expected_Completion"}, patches["B"].Remove)

	_, err = GroupByDocument("bom", Updates{"other/A/Brand": "x"})
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestPatchApply(t *testing.T) {
	doc := bom.RawRecord{"Brand": "old", "Expected_Completion": "2026-01-01", "Total_Qty": 3.0}
	p := &Patch{Set: map[string]any{"Brand": "new"}, Remove: []string{"Expected_Completion"}}

	out := p.Apply(doc)
	assert.Equal(t, bom.RawRecord{"Brand": "new", "Total_Qty": 3.0}, out)
	assert.Equal(t, "old", doc["Brand"], "input untouched")

	created := p.Apply(nil)
	assert.Equal(t, bom.RawRecord{"Brand": "new"}, created)
}
