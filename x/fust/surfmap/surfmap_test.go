package surfmap

import (
	"math"
	"testing"

	"github.com/gofust/facedetect/x/fust/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeaturePoolDimMatchesCellGrid(t *testing.T) {
	pool := NewFeaturePool()
	require.Greater(t, pool.Size(), 0)

	for id := 0; id < pool.Size(); id++ {
		f := pool.Feature(id)
		want := int(f.NumCellPerRow) * int(f.NumCellPerCol) * NumChannels
		assert.Equal(t, want, pool.Dim(id))
		assert.Equal(t, want, f.Dim())
	}
}

func TestFeaturePoolIsDeterministic(t *testing.T) {
	a := NewFeaturePool()
	b := NewFeaturePool()
	require.Equal(t, a.Size(), b.Size())
	for i := 0; i < a.Size(); i++ {
		assert.Equal(t, a.Feature(i), b.Feature(i))
	}
}

func TestFeaturePoolPatchesFitInsideSample(t *testing.T) {
	pool := NewFeaturePool()
	for id := 0; id < pool.Size(); id++ {
		f := pool.Feature(id)
		assert.LessOrEqual(t, f.Patch.X+int32(f.Patch.Width), int32(sampleWidth))
		assert.LessOrEqual(t, f.Patch.Y+int32(f.Patch.Height), int32(sampleHeight))
	}
}

func TestNormalizeZeroVectorStaysZero(t *testing.T) {
	raw := []int32{0, 0, 0, 0}
	dst := make([]float32, 4)
	normalize(raw, dst)
	assert.Equal(t, []float32{0, 0, 0, 0}, dst)
}

func TestNormalizeUnitNorm(t *testing.T) {
	raw := []int32{3, 4, 0, 0}
	dst := make([]float32, 4)
	normalize(raw, dst)

	var sumSq float64
	for _, v := range dst {
		sumSq += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSq), 1e-5)
}

func TestFeatureVectorNormalizedOrZero(t *testing.T) {
	view := geom.ImageView{Pixels: make([]uint8, 40*40), Width: 40, Height: 40}
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			view.Pixels[y*40+x] = uint8((x*7 + y*13) % 256)
		}
	}

	m := New()
	m.Compute(view)

	roi := geom.Rectangle{X: 0, Y: 0, Width: 40, Height: 40}
	for id := 0; id < m.Pool.Size(); id++ {
		dst := make([]float32, m.Pool.Dim(id))
		m.FeatureVector(id, roi, dst)

		var sumSq float64
		for _, v := range dst {
			sumSq += float64(v) * float64(v)
		}
		norm := math.Sqrt(sumSq)
		if norm == 0 {
			continue
		}
		assert.InDelta(t, 1.0, norm, 1e-4)
	}
}

func TestComputePanicsOnZeroDimension(t *testing.T) {
	assert.Panics(t, func() {
		New().Compute(geom.ImageView{Pixels: nil, Width: 0, Height: 0})
	})
}

func TestParallelGradientMatchesSerial(t *testing.T) {
	view := geom.ImageView{Pixels: make([]uint8, 200*200), Width: 200, Height: 200}
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			view.Pixels[y*200+x] = uint8((x*3 + y*11) % 256)
		}
	}

	serial := New()
	serial.Compute(view)

	parallel := New()
	parallel.SetWorkers(4)
	defer parallel.SetWorkers(0)
	parallel.Compute(view)

	assert.Equal(t, serial.gradY, parallel.gradY)
	assert.Equal(t, serial.intImg, parallel.intImg)
}
