// Package labmap implements the LAB (Locally Assembled Binary) feature map:
// an 8-bit code per pixel built from 3x3-rect-sum comparisons against a
// center rect, plus the per-ROI mean/stddev queries the LAB-boosted
// classifier and its grouped lookup tables rely on.
package labmap

import (
	"fmt"
	"math"

	"github.com/gofust/facedetect/x/fust/geom"
	"github.com/gofust/facedetect/x/fust/integral"
	"github.com/gofust/facedetect/x/fust/kernel"
)

const (
	rectWidth  = 3
	rectHeight = 3
	numRect    = 3
)

// FeatureMap is the LAB feature map over the current input. Its buffers are
// reused across every Compute call; it grows them only when a larger image
// arrives.
type FeatureMap struct {
	width, height int

	featMap  []uint8
	intImg   []int32
	sqIntImg []uint32
}

// New returns an empty feature map ready for its first Compute call.
func New() *FeatureMap {
	return &FeatureMap{}
}

// Compute rebuilds the feature map over view. It must be called once per
// scanned pyramid image or cropped refinement window before any query
// against that image.
func (m *FeatureMap) Compute(view geom.ImageView) {
	if !view.Valid() {
		panic(fmt.Sprintf("labmap: illegal image %dx%d (%d pixels)", view.Width, view.Height, len(view.Pixels)))
	}

	m.reshape(view.Width, view.Height)
	m.computeIntegralImages(view.Pixels)
	m.computeFeatureMap()
}

func (m *FeatureMap) reshape(width, height int) {
	m.width, m.height = width, height
	n := width * height

	m.featMap = growU8(m.featMap, n)
	m.intImg = growI32(m.intImg, n)
	m.sqIntImg = growU32(m.sqIntImg, n)

	for i := range m.featMap {
		m.featMap[i] = 0
	}
}

func (m *FeatureMap) computeIntegralImages(pixels []uint8) {
	kernel.WidenU8ToI32(pixels, m.intImg)
	kernel.SquareI32ToU32(m.intImg, m.sqIntImg)
	integral.InPlaceI32(m.intImg, m.width, m.height)
	integral.InPlaceU32(m.sqIntImg, m.width, m.height)
}

// rectSumAt returns the sum of the rectWidth x rectHeight block anchored
// with its top-left corner at (x, y).
func (m *FeatureMap) rectSumAt(x, y int) int32 {
	return int32(integral.RectSumI32(m.intImg, m.width, x, y, x+rectWidth, y+rectHeight))
}

func (m *FeatureMap) computeFeatureMap() {
	validWidth := m.width - rectWidth*numRect
	validHeight := m.height - rectHeight*numRect
	if validWidth <= 0 || validHeight <= 0 {
		return
	}

	for r := 0; r < validHeight; r++ {
		for c := 0; c < validWidth; c++ {
			white := m.rectSumAt(c+rectWidth, r+rectHeight)

			var code uint8
			if white >= m.rectSumAt(c, r) {
				code |= 0x80 // top-left
			}
			if white >= m.rectSumAt(c+rectWidth, r) {
				code |= 0x40 // top-mid
			}
			if white >= m.rectSumAt(c+2*rectWidth, r) {
				code |= 0x20 // top-right
			}
			if white >= m.rectSumAt(c+2*rectWidth, r+rectHeight) {
				code |= 0x08 // mid-right
			}
			if white >= m.rectSumAt(c+2*rectWidth, r+2*rectHeight) {
				code |= 0x01 // bottom-right
			}
			if white >= m.rectSumAt(c+rectWidth, r+2*rectHeight) {
				code |= 0x02 // bottom-mid
			}
			if white >= m.rectSumAt(c, r+2*rectHeight) {
				code |= 0x04 // bottom-left
			}
			if white >= m.rectSumAt(c, r+rectHeight) {
				code |= 0x10 // mid-left
			}

			m.featMap[r*m.width+c] = code
		}
	}
}

// FeatureAt reads the LAB byte at (roi.X+offsetX, roi.Y+offsetY).
func (m *FeatureMap) FeatureAt(offsetX, offsetY int32, roi geom.Rectangle) uint8 {
	x := int(roi.X + offsetX)
	y := int(roi.Y + offsetY)
	return m.featMap[y*m.width+x]
}

// StdDev returns the standard deviation of pixel intensity over roi,
// computed from the intensity and intensity-squared integrals via the
// shared rect-sum helpers, which already treat an out-of-bounds corner as
// zero and wrap the squared-integral subtraction the same way the forward
// integral pass wrapped it.
func (m *FeatureMap) StdDev(roi geom.Rectangle) float64 {
	x0, y0 := int(roi.X), int(roi.Y)
	x1, y1 := x0+int(roi.Width), y0+int(roi.Height)
	area := float64(roi.Width) * float64(roi.Height)

	sum := integral.RectSumI32(m.intImg, m.width, x0, y0, x1, y1)
	sqSum := integral.RectSumU32(m.sqIntImg, m.width, x0, y0, x1, y1)

	mean := float64(sum) / area
	meanSq := float64(sqSum) / area
	v := meanSq - mean*mean
	if v < 0 {
		v = 0
	}
	return math.Sqrt(v)
}

func growU8(buf []uint8, n int) []uint8 {
	if cap(buf) < n {
		return make([]uint8, n)
	}
	return buf[:n]
}

func growI32(buf []int32, n int) []int32 {
	if cap(buf) < n {
		return make([]int32, n)
	}
	return buf[:n]
}

func growU32(buf []uint32, n int) []uint32 {
	if cap(buf) < n {
		return make([]uint32, n)
	}
	return buf[:n]
}
