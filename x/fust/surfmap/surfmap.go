// Package surfmap implements the 8-channel SURF-like gradient-integral
// feature map: per-pixel signed/absolute gradient channels, a sign-masked
// integral over them, and per-feature pooled, L2-normalized descriptor
// vectors queried by the SURF-MLP classifier.
package surfmap

import (
	"fmt"
	"math"

	"github.com/gofust/facedetect/x/fust/geom"
	"github.com/gofust/facedetect/x/fust/kernel"
	"github.com/gofust/facedetect/x/math/primitive/generics/helpers"
)

// minRowsPerChunk keeps the vertical-gradient worker pool from being
// dispatched over images too small for chunking to pay for itself.
const minRowsPerChunk = 64

// xor masks applied, per channel slot within a group of four, to gate a
// channel on or off by the sign test for that group.
var xorBits = [4]int32{-1, -1, 0, 0} // -1 == 0xFFFFFFFF as int32

// FeatureMap is the SURF gradient-integral feature map over the current
// input. Its buffers are reused across Compute calls, growing only when a
// larger image arrives.
type FeatureMap struct {
	Pool *FeaturePool

	width, height int

	gradX, gradY []int32
	widened      []int32
	absScratch   []int32
	intImg       []int32 // width*height*NumChannels, interleaved per pixel

	rawVectors  [][]int32
	normVectors [][]float32

	workers *helpers.WorkerPool
}

// New returns an empty SURF feature map with the fixed five-patch-format
// pool used throughout this system.
func New() *FeatureMap {
	pool := NewFeaturePool()
	m := &FeatureMap{Pool: pool}
	m.rawVectors = make([][]int32, pool.Size())
	m.normVectors = make([][]float32, pool.Size())
	for i := 0; i < pool.Size(); i++ {
		dim := pool.Dim(i)
		m.rawVectors[i] = make([]int32, dim)
		m.normVectors[i] = make([]float32, dim)
	}
	return m
}

// SetWorkers gates the vertical-gradient pass's interior-row chunking onto a
// worker pool sized n. n <= 1 (the default) keeps the pass single-threaded,
// which is what every cascade.Detector uses unless told otherwise — gradY's
// row order doesn't affect the result, but tests and score reproducibility
// checks are easiest to reason about against a serial trace.
func (m *FeatureMap) SetWorkers(n int) {
	if m.workers != nil {
		m.workers.Close()
		m.workers = nil
	}
	if n <= 1 {
		return
	}
	m.workers = &helpers.WorkerPool{Size: n}
	if err := m.workers.Init(); err != nil {
		m.workers = nil
	}
}

// Compute rebuilds the gradient and integral planes over view.
func (m *FeatureMap) Compute(view geom.ImageView) {
	if !view.Valid() {
		panic(fmt.Sprintf("surfmap: illegal image %dx%d (%d pixels)", view.Width, view.Height, len(view.Pixels)))
	}

	m.reshape(view.Width, view.Height)
	kernel.WidenU8ToI32(view.Pixels, m.widened)
	m.computeGradX()
	m.computeGradY()
	m.computeIntegralImages()
}

func (m *FeatureMap) reshape(width, height int) {
	m.width, m.height = width, height
	n := width * height

	m.gradX = growI32(m.gradX, n)
	m.gradY = growI32(m.gradY, n)
	m.widened = growI32(m.widened, n)
	m.absScratch = growI32(m.absScratch, n)
	m.intImg = growI32(m.intImg, n*NumChannels)
}

// computeGradX fills the horizontal gradient: each row's first element is
// 2*(src[1]-src[0]), interior elements are src[i+1]-src[i-1], and the last
// element is 2*(src[w-1]-src[w-2]).
func (m *FeatureMap) computeGradX() {
	w := m.width
	for r := 0; r < m.height; r++ {
		row := r * w
		src := m.widened[row : row+w]
		dst := m.gradX[row : row+w]

		dst[0] = (src[1] - src[0]) << 1
		if w > 2 {
			kernel.VecSubI32(src[2:w], src[0:w-2], dst[1:w-1])
		}
		dst[w-1] = (src[w-1] - src[w-2]) << 1
	}
}

// computeGradY fills the vertical gradient analogously over columns: the
// first and last rows use the doubled one-sided difference, interior rows
// use the centered difference one row above/below. Interior rows are
// independent of each other, so when a worker pool is configured (SetWorkers)
// they are computed in parallel chunks; the default is the serial loop.
func (m *FeatureMap) computeGradY() {
	w, h := m.width, m.height

	kernel.VecSubI32(m.widened[w:2*w], m.widened[0:w], m.gradY[0:w])
	kernel.VecAddI32(m.gradY[0:w], m.gradY[0:w], m.gradY[0:w])

	interior := h - 2
	computeRow := func(r int) {
		above := (r - 1) * w
		dst := r * w
		kernel.VecSubI32(m.widened[above+2*w:above+3*w], m.widened[above:above+w], m.gradY[dst:dst+w])
	}

	if m.workers != nil && interior >= minRowsPerChunk {
		err := m.workers.Execute(interior, func(start, end int) error {
			for r := start + 1; r < end+1; r++ {
				computeRow(r)
			}
			return nil
		})
		if err != nil {
			for r := 1; r < h-1; r++ {
				computeRow(r)
			}
		}
	} else {
		for r := 1; r < h-1; r++ {
			computeRow(r)
		}
	}

	last := (h - 1) * w
	kernel.VecSubI32(m.widened[last:last+w], m.widened[last-w:last], m.gradY[last:last+w])
	kernel.VecAddI32(m.gradY[last:last+w], m.gradY[last:last+w], m.gradY[last:last+w])
}

func (m *FeatureMap) computeIntegralImages() {
	m.fillChannel(m.gradX, 0)
	m.fillChannel(m.gradY, 4)
	kernel.AbsI32(m.gradX, m.absScratch)
	m.fillChannel(m.absScratch, 1)
	kernel.AbsI32(m.gradY, m.absScratch)
	m.fillChannel(m.absScratch, 5)

	m.maskChannels()
	m.integrate()
}

// fillChannel writes two copies of src into channels ch and ch+2 of every
// pixel, matching the teacher-agnostic but source-faithful layout: dx goes
// into channels 0 and 2, |dx| into 1 and 3, dy into 4 and 6, |dy| into 5
// and 7, before the sign mask below splits each pair into a positive and
// negative half.
func (m *FeatureMap) fillChannel(src []int32, ch int) {
	for i, v := range src {
		base := i*NumChannels + ch
		m.intImg[base] = v
		m.intImg[base+2] = v
	}
}

// maskChannels applies the sign-dependent XOR mask from the source: the
// first four channels of a pixel (the dx pair) are gated by the sign of
// that pixel's vertical gradient, and the last four (the dy pair) by the
// sign of its horizontal gradient. This cross-gating looks backwards next
// to the channel names but is exactly what the trained model expects —
// reproduced literally rather than "corrected".
func (m *FeatureMap) maskChannels() {
	n := m.width * m.height
	for i := 0; i < n; i++ {
		base := i * NumChannels

		var cmp int32
		if m.gradY[i] < 0 {
			cmp = -1
		}
		for j := 0; j < 4; j++ {
			m.intImg[base+j] &= cmp ^ xorBits[j]
		}

		cmp = 0
		if m.gradX[i] < 0 {
			cmp = -1
		}
		for j := 0; j < 4; j++ {
			m.intImg[base+4+j] &= cmp ^ xorBits[j]
		}
	}
}

// integrate runs a vertical cumulative sum row by row, then a horizontal
// cumulative sum in groups of NumChannels within each row.
func (m *FeatureMap) integrate() {
	rowLen := m.width * NumChannels

	for r := 0; r < m.height-1; r++ {
		row1 := r * rowLen
		row2 := row1 + rowLen
		kernel.VecAddI32(m.intImg[row1:row1+rowLen], m.intImg[row2:row2+rowLen], m.intImg[row2:row2+rowLen])
	}

	for r := 0; r < m.height; r++ {
		row := r * rowLen
		cols := m.width - 1
		for c := 0; c < cols; c++ {
			col1 := row + c*NumChannels
			col2 := col1 + NumChannels
			kernel.VecAddI32(m.intImg[col1:col1+NumChannels], m.intImg[col2:col2+NumChannels], m.intImg[col2:col2+NumChannels])
		}
	}
}

// channelCorner returns the integral value of channel ch at pixel (x, y),
// treating x < 0 or y < 0 as zero (the missing corner of a rect sum
// touching the image edge).
func (m *FeatureMap) channelCorner(x, y, ch int) int64 {
	if x < 0 || y < 0 {
		return 0
	}
	return int64(m.intImg[(y*m.width+x)*NumChannels+ch])
}

// channelRectSum sums channel ch over [x0,x1) x [y0,y1) via the standard
// four-corner formula.
func (m *FeatureMap) channelRectSum(x0, y0, x1, y1, ch int) int64 {
	br := m.channelCorner(x1-1, y1-1, ch)
	tr := m.channelCorner(x1-1, y0-1, ch)
	bl := m.channelCorner(x0-1, y1-1, ch)
	tl := m.channelCorner(x0-1, y0-1, ch)
	return br - tr - bl + tl
}

// FeatureVector computes, normalizes and writes feature featureID's
// descriptor (evaluated over roi) into dst, which must be at least
// Pool.Dim(featureID) long.
func (m *FeatureMap) FeatureVector(featureID int, roi geom.Rectangle, dst []float32) {
	feature := m.Pool.Feature(featureID)
	raw := m.rawVectors[featureID]

	initX := int(roi.X) + int(feature.Patch.X)
	initY := int(roi.Y) + int(feature.Patch.Y)
	cellW := int(feature.Patch.Width) / int(feature.NumCellPerRow)
	cellH := int(feature.Patch.Height) / int(feature.NumCellPerCol)

	idx := 0
	for cr := 0; cr < int(feature.NumCellPerCol); cr++ {
		y0 := initY + cr*cellH
		y1 := y0 + cellH
		for cc := 0; cc < int(feature.NumCellPerRow); cc++ {
			x0 := initX + cc*cellW
			x1 := x0 + cellW
			for ch := 0; ch < NumChannels; ch++ {
				raw[idx] = int32(m.channelRectSum(x0, y0, x1, y1, ch))
				idx++
			}
		}
	}

	normalize(raw, m.normVectors[featureID])
	copy(dst, m.normVectors[featureID])
}

func normalize(raw []int32, dst []float32) {
	var sumSq float64
	for _, v := range raw {
		sumSq += float64(v) * float64(v)
	}

	if sumSq == 0 {
		for i := range dst {
			dst[i] = 0
		}
		return
	}

	norm := float32(math.Sqrt(sumSq))
	for i, v := range raw {
		dst[i] = float32(v) / norm
	}
}

func growI32(buf []int32, n int) []int32 {
	if cap(buf) < n {
		return make([]int32, n)
	}
	return buf[:n]
}
