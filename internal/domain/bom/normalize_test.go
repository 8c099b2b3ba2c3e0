package bom

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeImages struct {
	urls  map[string]string
	fail  map[string]bool
	hang  map[string]bool
	calls atomic.Int32
}

func (f *fakeImages) ResolveImage(ctx context.Context, id string) (string, bool, error) {
	f.calls.Add(1)
	if f.hang[id] {
		<-ctx.Done()
		return "", false, ctx.Err()
	}
	if f.fail[id] {
		return "", false, errors.New("storage unavailable")
	}
	u, ok := f.urls[id]
	return u, ok, nil
}

func TestNormalize_OneItemPerKeySorted(t *testing.T) {
	n := NewNormalizer(nil, 0, zaptest.NewLogger(t))
	raw := map[string]RawRecord{
		"RES-200": {FieldStandardPrice: "1"},
		"CAP-100": {FieldStandardPrice: "2"},
		"IC-7":    nil,
	}

	items, err := n.Normalize(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "CAP-100", items[0].ComponentMaterial)
	assert.Equal(t, "IC-7", items[1].ComponentMaterial)
	assert.Equal(t, "RES-200", items[2].ComponentMaterial)
	assert.Equal(t, StatusNotStart, items[1].TransferStatus)
}

func TestNormalize_EmptyAndNil(t *testing.T) {
	n := NewNormalizer(&fakeImages{}, time.Second, nil)

	items, err := n.Normalize(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestNormalize_ImageFailuresAreIsolated(t *testing.T) {
	images := &fakeImages{
		urls: map[string]string{"A": "https://img/A.jpg", "C": "https://img/C.jpg"},
		fail: map[string]bool{"B": true},
		hang: map[string]bool{"D": true},
	}
	n := NewNormalizer(images, 50*time.Millisecond, zaptest.NewLogger(t))
	raw := map[string]RawRecord{"A": {}, "B": {}, "C": {}, "D": {}, "E": {}}

	items, err := n.Normalize(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, items, 5)
	assert.EqualValues(t, 5, images.calls.Load())

	require.NotNil(t, items[0].ImageURL)
	assert.Equal(t, "https://img/A.jpg", *items[0].ImageURL)
	assert.Nil(t, items[1].ImageURL, "error => nil")
	require.NotNil(t, items[2].ImageURL)
	assert.Nil(t, items[3].ImageURL, "timeout => nil")
	assert.Nil(t, items[4].ImageURL, "miss => nil")
}

func TestNormalize_CancelledBatch(t *testing.T) {
	images := &fakeImages{hang: map[string]bool{"A": true}}
	n := NewNormalizer(images, 0, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	items, err := n.Normalize(ctx, map[string]RawRecord{"A": {}, "B": {}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, items)
}

func TestNormalize_ValueIsPriceTimesQty(t *testing.T) {
	n := NewNormalizer(nil, 0, nil)
	raw := map[string]RawRecord{
		"A": {FieldStandardPrice: "0.1", FieldTotalQty: "3"},
		"B": {FieldStandardPrice: "oops", FieldTotalQty: "3"},
		"C": {FieldStandardPrice: 19.99, FieldTotalQty: "x"},
	}
	items, err := n.Normalize(context.Background(), raw)
	require.NoError(t, err)
	for _, it := range items {
		assert.Equal(t, it.StandardPrice*float64(it.TotalQty), it.Value, it.ComponentMaterial)
	}
}
