package imaging

import (
	"math"
	"testing"

	"github.com/gofust/facedetect/x/fust/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResizeFastPathIsByteIdentical(t *testing.T) {
	src := geom.ImageView{Pixels: []uint8{1, 2, 3, 4, 5, 6}, Width: 3, Height: 2}
	dst := make([]uint8, 6)
	Resize(src, dst, 3, 2)
	assert.Equal(t, src.Pixels, dst)
}

func TestPyramidTerminationCount(t *testing.T) {
	const k = 8
	p := NewPyramid()
	p.MaxScale = 1
	p.MinScale = 1.0 / k
	p.ScaleStep = 0.8
	p.Reset(geom.ImageView{Pixels: make([]uint8, 200*200), Width: 200, Height: 200})

	count := 0
	var scales []float32
	for {
		_, scale, ok := p.Next()
		if !ok {
			break
		}
		scales = append(scales, scale)
		count++
	}

	want := int(math.Ceil(math.Log(1.0/k)/math.Log(0.8))) + 1
	require.Equal(t, want, count)

	for i := 1; i < len(scales); i++ {
		assert.Less(t, scales[i], scales[i-1])
	}
}

func TestPyramidEmptyWhenMinAboveMax(t *testing.T) {
	p := NewPyramid()
	p.MaxScale = 1
	p.MinScale = 2
	p.Reset(geom.ImageView{Pixels: make([]uint8, 100), Width: 10, Height: 10})

	_, _, ok := p.Next()
	assert.False(t, ok)
}
