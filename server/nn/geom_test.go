package nn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRectIOU(t *testing.T) {
	a := Rect{0, 0, 10, 10}
	require.Equal(t, float32(1), a.IOU(a))
	require.Equal(t, float32(0), a.IOU(Rect{20, 20, 10, 10}))

	b := Rect{5, 0, 10, 10}
	// intersection 50, union 150
	require.InDelta(t, 1.0/3.0, a.IOU(b), 1e-5)
}

func TestRectClip(t *testing.T) {
	r := Rect{-5, -5, 20, 20}.Clip(10, 10)
	require.Equal(t, Rect{0, 0, 10, 10}, r)

	r = Rect{5, 5, 20, 20}.Clip(10, 10)
	require.Equal(t, Rect{5, 5, 5, 5}, r)

	r = Rect{50, 50, 5, 5}.Clip(10, 10)
	require.Equal(t, 0, r.Area())
}

func TestNumCandidates(t *testing.T) {
	require.Equal(t, 8400, numCandidates(640, 640))
}
