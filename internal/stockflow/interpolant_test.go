package stockflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linearSegment builds a one-piece segment for y = y0 + slope*(t-start).
// With k1 = k2 = slope the dense formula reduces to the straight line.
func linearSegment(start, end, y0, slope float64) *Segment {
	h := end - start
	return &Segment{
		Start: start,
		End:   end,
		pieces: []densePiece{{
			t0: start,
			h:  h,
			y0: []float64{y0},
			y1: []float64{y0 + slope*h},
			k1: []float64{slope},
			k2: []float64{slope},
		}},
	}
}

func TestInterpolantAppend(t *testing.T) {
	var ip Interpolant
	assert.Equal(t, 0.0, ip.End())

	require.NoError(t, ip.Append(linearSegment(0, 2, 0, 1)))
	require.NoError(t, ip.Append(linearSegment(2, 5, 2, -1)))
	assert.Equal(t, 2, ip.Len())
	assert.Equal(t, 5.0, ip.End())

	err := ip.Append(linearSegment(6, 7, 0, 0))
	assert.Error(t, err, "gap in the chain")

	err = ip.Append(&Segment{Start: 5, End: 6})
	assert.Error(t, err, "empty segment")
	assert.Equal(t, 2, ip.Len())
}

func TestInterpolantAt(t *testing.T) {
	var ip Interpolant
	require.NoError(t, ip.Append(linearSegment(0, 2, 0, 1)))
	require.NoError(t, ip.Append(linearSegment(2, 5, 2, -1)))

	tests := []struct {
		t    float64
		want float64
		ok   bool
	}{
		{0, 0, true},
		{1, 1, true},
		{2, 2, true},
		{3.5, 0.5, true},
		{5, -1, true},
		{-0.5, 0, false},
		{5.01, 0, false},
	}
	dst := make([]float64, 1)
	for _, tt := range tests {
		dst[0] = 0
		ok := ip.At(tt.t, dst)
		assert.Equal(t, tt.ok, ok, "t=%g", tt.t)
		if tt.ok {
			assert.InDelta(t, tt.want, dst[0], 1e-12, "t=%g", tt.t)
		}
	}
}

func TestSegmentAtPieceEnds(t *testing.T) {
	seg := &Segment{Start: 0, End: 2, pieces: []densePiece{
		{t0: 0, h: 1, y0: []float64{0}, y1: []float64{1}, k1: []float64{1}, k2: []float64{1}},
		{t0: 1, h: 1, y0: []float64{1}, y1: []float64{3}, k1: []float64{2}, k2: []float64{2}},
	}}
	assert.Equal(t, 2, seg.Steps())
	assert.Equal(t, StockVector{3}, seg.Final())

	dst := make([]float64, 1)
	seg.At(1, dst)
	assert.Equal(t, 1.0, dst[0])
	seg.At(2, dst)
	assert.Equal(t, 3.0, dst[0])
	seg.At(1.5, dst)
	assert.InDelta(t, 2.0, dst[0], 1e-12)
}
