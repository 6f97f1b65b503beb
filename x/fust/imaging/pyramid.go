// Package imaging implements the multi-scale image pyramid the cascade scans
// and the bilinear resampler it shares with window cropping.
package imaging

import (
	"github.com/gofust/facedetect/x/fust/geom"
)

// Pyramid yields progressively downscaled copies of a source image, from
// MaxScale down to (but not below) MinScale, multiplying the running scale
// factor by ScaleStep after every image it hands out. It owns its scratch
// buffers and reuses them across calls to Reset, growing them only when a
// larger input arrives.
type Pyramid struct {
	MaxScale  float32
	MinScale  float32
	ScaleStep float32

	width1x, height1x int
	buf1x             []uint8

	scaleFactor float32
	scratch     []uint8
}

// NewPyramid returns a pyramid with the default max scale of 1 and a scale
// step of 0.8; callers set MinScale (the cascade driver uses its window size
// divided by the image's smaller side, capped by the max face size) before
// iterating.
func NewPyramid() *Pyramid {
	return &Pyramid{MaxScale: 1, ScaleStep: 0.8}
}

// Reset points the pyramid at a new source image and rewinds the scale
// factor to MaxScale. The source is not copied; callers must keep src
// stable across the subsequent Next calls (the cascade driver holds the
// 1x frame for the whole detect call, which satisfies this).
func (p *Pyramid) Reset(src geom.ImageView) {
	p.width1x = src.Width
	p.height1x = src.Height
	p.buf1x = src.Pixels
	p.scaleFactor = p.MaxScale

	maxW := int(float32(p.width1x)*p.MaxScale + 0.5)
	maxH := int(float32(p.height1x)*p.MaxScale + 0.5)
	if needed := maxW * maxH; cap(p.scratch) < needed {
		p.scratch = make([]uint8, needed)
	}
}

// Next returns the next scaled view and its scale factor, or ok == false
// once the scale factor has dropped below MinScale. The returned view
// aliases the pyramid's internal scratch buffer and is only valid until the
// next call to Next or Reset.
func (p *Pyramid) Next() (view geom.ImageView, scale float32, ok bool) {
	if p.scaleFactor < p.MinScale {
		return geom.ImageView{}, 0, false
	}

	scale = p.scaleFactor
	w := int(float32(p.width1x) * scale)
	h := int(float32(p.height1x) * scale)
	dst := p.scratch[:w*h]

	Resize(geom.ImageView{Pixels: p.buf1x, Width: p.width1x, Height: p.height1x}, dst, w, h)

	p.scaleFactor *= p.ScaleStep
	return geom.ImageView{Pixels: dst, Width: w, Height: h}, scale, true
}

// Resize writes a bilinear resampling of src into dst (which must be at
// least width*height long) at the given target dimensions. When the target
// size matches the source size exactly, this is a pure copy.
func Resize(src geom.ImageView, dst []uint8, width, height int) {
	if src.Width == width && src.Height == height {
		copy(dst, src.Pixels[:width*height])
		return
	}

	scaleX := float64(src.Width) / float64(width)
	scaleY := float64(src.Height) / float64(height)

	for y := 0; y < height; y++ {
		srcY := scaleY * float64(y)
		ny := int(srcY)
		if max := src.Height - 2; ny > max {
			ny = max
		}
		wy := srcY - float64(ny)

		for x := 0; x < width; x++ {
			srcX := scaleX * float64(x)
			nx := int(srcX)
			if max := src.Width - 2; nx > max {
				nx = max
			}
			wx := srcX - float64(nx)

			d1 := float64(src.At(nx, ny))
			d2 := float64(src.At(nx+1, ny))
			d3 := float64(src.At(nx, ny+1))
			d4 := float64(src.At(nx+1, ny+1))

			top := (1-wx)*d1 + wx*d2
			bottom := (1-wx)*d3 + wx*d4
			val := (1-wy)*top + wy*bottom

			dst[y*width+x] = uint8(val)
		}
	}
}
