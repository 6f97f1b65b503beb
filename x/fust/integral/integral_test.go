package integral

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func directSumI32(plane []int32, width, x0, y0, x1, y1 int) int64 {
	var sum int64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			sum += int64(plane[y*width+x])
		}
	}
	return sum
}

func TestInPlaceI32RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const w, h = 17, 13
	raw := make([]int32, w*h)
	for i := range raw {
		raw[i] = int32(rng.Intn(256))
	}

	integral := make([]int32, len(raw))
	copy(integral, raw)
	InPlaceI32(integral, w, h)

	for i := 0; i < 20; i++ {
		x0 := rng.Intn(w)
		y0 := rng.Intn(h)
		x1 := x0 + 1 + rng.Intn(w-x0)
		y1 := y0 + 1 + rng.Intn(h-y0)

		want := directSumI32(raw, w, x0, y0, x1, y1)
		got := RectSumI32(integral, w, x0, y0, x1, y1)
		assert.Equal(t, want, got)
	}
}

func TestInPlaceU32Wraps(t *testing.T) {
	// Values chosen so the running sum exceeds 2^32 and must wrap rather
	// than panic or saturate.
	const w, h = 2, 1
	data := []uint32{1<<31 + 1, 1 << 31}
	InPlaceU32(data, w, h)
	assert.Equal(t, uint32(1<<31+1), data[0])
	assert.Equal(t, uint32(1), data[1]) // (2^31+1) + 2^31 == 2^32+1 -> wraps to 1
}

func TestInPlaceSingleCell(t *testing.T) {
	data := []int32{7}
	InPlaceI32(data, 1, 1)
	assert.Equal(t, int32(7), data[0])
}
