package labmap

import (
	"testing"

	"github.com/gofust/facedetect/x/fust/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(width, height int, fill uint8) geom.ImageView {
	pixels := make([]uint8, width*height)
	for i := range pixels {
		pixels[i] = fill
	}
	return geom.ImageView{Pixels: pixels, Width: width, Height: height}
}

func setBlock(view geom.ImageView, x0, y0, w, h int, v uint8) {
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			view.Pixels[y*view.Width+x] = v
		}
	}
}

func TestFeatureMapAllBitsSetWhenCenterBrightest(t *testing.T) {
	view := solidImage(10, 10, 0)
	setBlock(view, 3, 3, 3, 3, 255)

	fm := New()
	fm.Compute(view)

	got := fm.FeatureAt(0, 0, geom.Rectangle{X: 0, Y: 0, Width: 10, Height: 10})
	assert.Equal(t, uint8(0xFF), got)
}

func TestFeatureMapNoBitsSetWhenCenterDimmest(t *testing.T) {
	view := solidImage(10, 10, 10)
	setBlock(view, 3, 3, 3, 3, 0)

	fm := New()
	fm.Compute(view)

	got := fm.FeatureAt(0, 0, geom.Rectangle{X: 0, Y: 0, Width: 10, Height: 10})
	assert.Equal(t, uint8(0x00), got)
}

func TestFeatureMapTiesSetTheBit(t *testing.T) {
	// white >= neighbor uses a non-strict comparison, so a flat image
	// must produce an all-ones byte everywhere a code is computed.
	view := solidImage(10, 10, 42)

	fm := New()
	fm.Compute(view)

	got := fm.FeatureAt(0, 0, geom.Rectangle{X: 0, Y: 0, Width: 10, Height: 10})
	assert.Equal(t, uint8(0xFF), got)
}

func TestStdDevUniformImageIsZero(t *testing.T) {
	view := solidImage(20, 20, 77)

	fm := New()
	fm.Compute(view)

	got := fm.StdDev(geom.Rectangle{X: 2, Y: 2, Width: 6, Height: 6})
	assert.InDelta(t, 0, got, 1e-9)
}

func TestStdDevMatchesDirectComputation(t *testing.T) {
	view := geom.ImageView{
		Pixels: []uint8{
			10, 20, 30, 40,
			50, 60, 70, 80,
			90, 100, 110, 120,
			130, 140, 150, 160,
		},
		Width: 4, Height: 4,
	}

	fm := New()
	fm.Compute(view)

	roi := geom.Rectangle{X: 1, Y: 1, Width: 2, Height: 2}
	values := []float64{60, 70, 100, 110}
	var sum, sumSq float64
	for _, v := range values {
		sum += v
		sumSq += v * v
	}
	mean := sum / 4
	want := sumSq/4 - mean*mean

	got := fm.StdDev(roi)
	require.InDelta(t, want, got*got, 1e-6)
}

func TestFeatureMapEmptyWhenImageTooSmall(t *testing.T) {
	view := solidImage(5, 5, 1)

	fm := New()
	fm.Compute(view)

	for _, b := range fm.featMap {
		assert.Equal(t, uint8(0), b)
	}
}

func TestComputePanicsOnMismatchedView(t *testing.T) {
	assert.Panics(t, func() {
		New().Compute(geom.ImageView{Pixels: make([]uint8, 3), Width: 2, Height: 2})
	})
}
