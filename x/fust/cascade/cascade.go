// Package cascade implements the FuSt (Funnel-Structured) cascade driver:
// the stage-0 pyramid scan, the hierarchy walk that threads proposals
// through later-stage classifiers via wnd_src routing, window crop/pad/
// resize, bbox regression and non-maximum suppression.
package cascade

import (
	"fmt"
	"math"

	"github.com/gofust/facedetect/pkg/logger"
	"github.com/gofust/facedetect/x/fust/classifier"
	"github.com/gofust/facedetect/x/fust/geom"
	"github.com/gofust/facedetect/x/fust/imaging"
	"github.com/gofust/facedetect/x/fust/labmap"
	"github.com/gofust/facedetect/x/fust/model"
	"github.com/gofust/facedetect/x/fust/surfmap"
	"github.com/gofust/facedetect/x/options"
)

// minWindowSize is the floor set_window_size and set_min_face_size both
// enforce.
const minWindowSize = 20

var log = logger.Named("cascade")

// Detector runs one loaded Model's cascade over 8-bit grayscale images. A
// Detector owns every scratch buffer its detect pass touches (the pyramid,
// the padded-window scratch, the canonical 40x40 window, the feature-map
// planes, the MLP ping-pong buffers) and reuses them across calls; it is
// not safe for concurrent use by multiple goroutines.
type Detector struct {
	Model *model.Model

	WndSize     int32
	SlideStepX  int32
	SlideStepY  int32
	MinFaceSize int32
	MaxFaceSize int32
	ScaleFactor float32
	ClsThresh   float64

	labFM   *labmap.FeatureMap
	surfFM  *surfmap.FeatureMap
	surfBuf *classifier.SurfMlpBuffers
	pyramid *imaging.Pyramid

	padBuf  []uint8
	wndData []uint8
	mlpOut  [4]float32
}

// New builds a Detector over an already-parsed model with the cascade's
// standard defaults (40x40 window, step (4,4), min face 20, max face
// disabled, scale step 0.8, score threshold 3.85), then applies opts.
func New(m *model.Model, opts ...options.Option) *Detector {
	d := &Detector{
		Model:       m,
		WndSize:     40,
		SlideStepX:  4,
		SlideStepY:  4,
		MinFaceSize: minWindowSize,
		MaxFaceSize: 0,
		ScaleFactor: 0.8,
		ClsThresh:   3.85,

		labFM:   labmap.New(),
		surfFM:  surfmap.New(),
		surfBuf: &classifier.SurfMlpBuffers{},
		pyramid: imaging.NewPyramid(),
	}
	options.ApplyOptions(d, opts...)
	return d
}

// WithWindowSize overrides the default 40x40 canonical window size.
func WithWindowSize(w int32) options.Option {
	return func(cfg interface{}) { cfg.(*Detector).SetWindowSize(w) }
}

// WithSlideStep overrides the default (4,4) stage-0 scan step.
func WithSlideStep(x, y int32) options.Option {
	return func(cfg interface{}) { cfg.(*Detector).SetSlideWindowStep(x, y) }
}

// WithMinFaceSize overrides the default minimum face size of 20.
func WithMinFaceSize(f int32) options.Option {
	return func(cfg interface{}) { cfg.(*Detector).SetMinFaceSize(f) }
}

// WithMaxFaceSize overrides the default (disabled, meaning "use image
// size") maximum face size.
func WithMaxFaceSize(f int32) options.Option {
	return func(cfg interface{}) { cfg.(*Detector).SetMaxFaceSize(f) }
}

// WithScaleFactor overrides the default pyramid scale step of 0.8.
func WithScaleFactor(s float32) options.Option {
	return func(cfg interface{}) { cfg.(*Detector).SetPyramidScaleFactor(s) }
}

// WithScoreThresh overrides the default score threshold of 3.85.
func WithScoreThresh(t float64) options.Option {
	return func(cfg interface{}) { cfg.(*Detector).SetScoreThresh(t) }
}

// WithWorkers gates the SURF gradient pass and the SURF-MLP forward pass
// onto worker pools sized n. The default (n <= 1, or never calling this
// option) runs both single-threaded. Each parallel chunk writes only its own
// rows or neurons, so n > 1 produces the same output as the serial passes.
func WithWorkers(n int) options.Option {
	return func(cfg interface{}) { cfg.(*Detector).SetWorkers(n) }
}

// SetWindowSize sets the canonical sliding-window and regression-target
// size. Panics if w < 20, per spec §6 — configuration errors are fatal to
// the call, not recoverable.
func (d *Detector) SetWindowSize(w int32) {
	if w < minWindowSize {
		panic(fmt.Sprintf("cascade: illegal window size: %d", w))
	}
	d.WndSize = w
}

// SetSlideWindowStep sets the stage-0 scan step. Panics if either step is
// non-positive.
func (d *Detector) SetSlideWindowStep(x, y int32) {
	if x <= 0 {
		panic(fmt.Sprintf("cascade: illegal horizontal step: %d", x))
	}
	if y <= 0 {
		panic(fmt.Sprintf("cascade: illegal vertical step: %d", y))
	}
	d.SlideStepX, d.SlideStepY = x, y
}

// SetMinFaceSize records the minimum face size. Panics if f < 20. Detect
// does not read MinFaceSize: the pyramid always starts at scale 1.
func (d *Detector) SetMinFaceSize(f int32) {
	if f < minWindowSize {
		panic(fmt.Sprintf("cascade: illegal min face size: %d", f))
	}
	d.MinFaceSize = f
}

// SetWorkers configures the worker-pool size used by the SURF gradient pass
// and the SURF-MLP forward pass. n <= 1 forces both back to single-threaded.
func (d *Detector) SetWorkers(n int) {
	d.surfFM.SetWorkers(n)
	d.surfBuf.SetWorkers(n)
}

// SetMaxFaceSize sets the largest face size to search for; 0 disables the
// cap and uses the full image size.
func (d *Detector) SetMaxFaceSize(f int32) {
	d.MaxFaceSize = f
}

// SetPyramidScaleFactor sets the per-level pyramid scale step. Panics
// outside (0.01, 0.99).
func (d *Detector) SetPyramidScaleFactor(s float32) {
	if s <= 0.01 || s >= 0.99 {
		panic(fmt.Sprintf("cascade: illegal scale factor: %v", s))
	}
	d.ScaleFactor = s
}

// SetScoreThresh sets the minimum final score a detection must clear.
// Panics if t <= 0.
func (d *Detector) SetScoreThresh(t float64) {
	if t <= 0 {
		panic(fmt.Sprintf("cascade: illegal threshold: %v", t))
	}
	d.ClsThresh = t
}

// Detect runs the full cascade over view and returns surviving faces on
// the 1x frame, filtered to ClsThresh. Panics on a malformed view
// (non-positive dimensions or a pixel buffer of the wrong length) — this
// is a configuration error in spec terms, not a recoverable one.
func (d *Detector) Detect(view geom.ImageView) []geom.FaceInfo {
	if !view.Valid() {
		panic(fmt.Sprintf("cascade: illegal image: %dx%d (%d pixels)", view.Width, view.Height, len(view.Pixels)))
	}

	minImgSize := view.Width
	if view.Height < minImgSize {
		minImgSize = view.Height
	}
	if d.MaxFaceSize > 0 && int(d.MaxFaceSize) < minImgSize {
		minImgSize = int(d.MaxFaceSize)
	}

	d.pyramid.MaxScale = 1
	d.pyramid.MinScale = float32(d.WndSize) / float32(minImgSize)
	d.pyramid.ScaleStep = d.ScaleFactor
	d.pyramid.Reset(view)

	results := d.detectImpl(view)

	out := make([]geom.FaceInfo, 0, len(results))
	for _, r := range results {
		if r.Score >= d.ClsThresh {
			out = append(out, r)
		}
	}
	log.Debug().Int("raw", len(results)).Int("kept", len(out)).Msg("detect complete")
	return out
}

func (d *Detector) classify(v classifier.Variant, roi geom.Rectangle, out []float32) classifier.Score {
	switch v.Kind {
	case classifier.KindLabBoosted:
		return v.Lab.Classify(d.labFM, roi)
	case classifier.KindSurfMlp:
		return v.Surf.Classify(d.surfFM, d.surfBuf, roi, out)
	default:
		panic(fmt.Sprintf("cascade: unknown classifier kind %d", v.Kind))
	}
}

func (d *Detector) computeFeatureMaps(view geom.ImageView, kinds map[classifier.Kind]bool) {
	if kinds[classifier.KindLabBoosted] {
		d.labFM.Compute(view)
	}
	if kinds[classifier.KindSurfMlp] {
		d.surfFM.Compute(view)
	}
}

func (d *Detector) detectImpl(view geom.ImageView) []geom.FaceInfo {
	firstSize := int(d.Model.HierarchySizes[0])
	proposals := make([][]geom.FaceInfo, firstSize)
	proposalsNms := make([][]geom.FaceInfo, firstSize)

	stage0Kinds := map[classifier.Kind]bool{}
	for i := 0; i < firstSize; i++ {
		stage0Kinds[d.Model.Classifiers[i].Kind] = true
	}

	for {
		scaled, scale, ok := d.pyramid.Next()
		if !ok {
			break
		}
		d.computeFeatureMaps(scaled, stage0Kinds)
		d.scanStage0(scaled, scale, firstSize, proposals)
	}

	for i := 0; i < firstSize; i++ {
		proposalsNms[i] = NonMaxSuppression(proposals[i], 0.8)
		proposals[i] = proposals[i][:0]
	}

	d.refineHierarchies(view, firstSize, proposals, proposalsNms)

	return proposalsNms[0]
}

func (d *Detector) scanStage0(scaled geom.ImageView, scale float32, firstSize int, proposals [][]geom.FaceInfo) {
	maxX := scaled.Width - int(d.WndSize)
	maxY := scaled.Height - int(d.WndSize)

	for y := 0; y <= maxY; y += int(d.SlideStepY) {
		for x := 0; x <= maxX; x += int(d.SlideStepX) {
			rect := geom.Rectangle{X: int32(x), Y: int32(y), Width: uint32(d.WndSize), Height: uint32(d.WndSize)}

			for i := 0; i < firstSize; i++ {
				score := d.classify(d.Model.Classifiers[i], rect, nil)
				if !score.Positive {
					continue
				}

				w := roundHalfUp(float32(d.WndSize) / scale)
				proposals[i] = append(proposals[i], geom.FaceInfo{
					Bbox: geom.Rectangle{
						X:      roundHalfUp(float32(x) / scale),
						Y:      roundHalfUp(float32(y) / scale),
						Width:  uint32(w),
						Height: uint32(w),
					},
					Score: float64(score.Value),
				})
			}
		}
	}
}

func (d *Detector) refineHierarchies(view geom.ImageView, firstSize int, proposals, proposalsNms [][]geom.FaceInfo) {
	clsIdx := firstSize
	modelIdx := firstSize
	var bufIdx []int32
	hierarchyCount := d.Model.HierarchyCount()

	for h := 1; h < hierarchyCount; h++ {
		hSize := int(d.Model.HierarchySizes[h])
		if len(bufIdx) < hSize {
			grown := make([]int32, hSize)
			copy(grown, bufIdx)
			bufIdx = grown
		}

		for j := 0; j < hSize; j++ {
			wndSrc := d.Model.WndSrc[clsIdx]
			r := int(wndSrc[0])
			bufIdx[j] = int32(r)

			proposals[r] = proposals[r][:0]
			for _, k := range wndSrc {
				proposals[r] = append(proposals[r], proposalsNms[k]...)
			}

			kMax := int(d.Model.NumStages[clsIdx])
			for k := 0; k < kMax; k++ {
				proposals[r] = d.runStage(view, proposals[r], d.Model.Classifiers[modelIdx])

				if k < kMax-1 {
					proposalsNms[r] = NonMaxSuppression(proposals[r], 0.8)
					proposals[r] = append(proposals[r][:0], proposalsNms[r]...)
				} else if h == hierarchyCount-1 {
					proposalsNms[r] = NonMaxSuppression(proposals[r], 0.3)
					proposals[r] = append(proposals[r][:0], proposalsNms[r]...)
				}

				modelIdx++
			}

			clsIdx++
		}

		for j := 0; j < hSize; j++ {
			proposalsNms[j] = append([]geom.FaceInfo(nil), proposals[bufIdx[j]]...)
		}
	}
}

// runStage classifies every surviving proposal in bboxes against one
// refinement-stage classifier, regressing and compacting in place, per
// spec §4.8.3.
func (d *Detector) runStage(view geom.ImageView, bboxes []geom.FaceInfo, v classifier.Variant) []geom.FaceInfo {
	bboxID := 0

	for m := 0; m < len(bboxes); m++ {
		b := bboxes[m].Bbox
		if b.X+int32(b.Width) <= 0 || b.Y+int32(b.Height) <= 0 {
			continue
		}

		wnd := b
		d.cropAndPad(view, &wnd)
		tempView := geom.ImageView{Pixels: d.wndData[:int(d.WndSize)*int(d.WndSize)], Width: int(d.WndSize), Height: int(d.WndSize)}

		switch v.Kind {
		case classifier.KindLabBoosted:
			d.labFM.Compute(tempView)
		case classifier.KindSurfMlp:
			d.surfFM.Compute(tempView)
		}

		rect := geom.Rectangle{X: 0, Y: 0, Width: uint32(d.WndSize), Height: uint32(d.WndSize)}
		score := d.classify(v, rect, d.mlpOut[:])
		if !score.Positive {
			continue
		}

		x := float32(b.X)
		y := float32(b.Y)
		w := float32(b.Width)
		ht := float32(b.Height)

		bboxW := float32(math.Floor(float64((d.mlpOut[3]*2-1)*w + w + 0.5)))
		newX := float32(math.Floor(float64((d.mlpOut[1]*2-1)*w + x + (w-bboxW)*0.5 + 0.5)))
		newY := float32(math.Floor(float64((d.mlpOut[2]*2-1)*ht + y + (ht-bboxW)*0.5 + 0.5)))

		bboxes[bboxID] = geom.FaceInfo{
			Bbox: geom.Rectangle{
				X:      int32(newX),
				Y:      int32(newY),
				Width:  uint32(bboxW),
				Height: uint32(bboxW),
			},
			Score: float64(score.Value),
		}
		bboxID++
	}

	return bboxes[:bboxID]
}

// cropAndPad crops the region wnd out of view, zero-filling any part that
// falls outside the image, and bilinearly resamples the result into the
// detector's canonical WndSize x WndSize scratch buffer. wnd's origin is
// clamped to zero in place, matching the source's padded-copy bookkeeping.
func (d *Detector) cropAndPad(view geom.ImageView, wnd *geom.Rectangle) {
	roiWidth := int32(wnd.Width)
	roiHeight := int32(wnd.Height)
	imgWidth := int32(view.Width)
	imgHeight := int32(view.Height)

	padRight := maxI32(wnd.X+roiWidth-imgWidth, 0)
	var padLeft int32
	if wnd.X >= 0 {
		padLeft = 0
	} else {
		padLeft = -wnd.X
		wnd.X = 0
	}
	padBottom := maxI32(wnd.Y+roiHeight-imgHeight, 0)
	var padTop int32
	if wnd.Y >= 0 {
		padTop = 0
	} else {
		padTop = -wnd.Y
		wnd.Y = 0
	}

	need := int(roiWidth) * int(roiHeight)
	d.padBuf = growU8(d.padBuf, need)
	buf := d.padBuf[:need]

	rowLen := int(roiWidth)
	len2 := int(roiWidth - padLeft - padRight)

	destRow := 0
	if padTop > 0 {
		zero(buf[:int(padTop)*rowLen])
		destRow = int(padTop)
	}

	srcY := int(wnd.Y)
	for y := int(padTop); y < int(roiHeight-padBottom); y++ {
		destOff := destRow * rowLen
		srcOff := srcY*view.Width + int(wnd.X)

		switch {
		case padLeft == 0 && padRight == 0:
			copy(buf[destOff:destOff+rowLen], view.Pixels[srcOff:srcOff+rowLen])
		case padLeft == 0:
			copy(buf[destOff:destOff+len2], view.Pixels[srcOff:srcOff+len2])
			zero(buf[destOff+len2 : destOff+rowLen])
		case padRight == 0:
			zero(buf[destOff : destOff+int(padLeft)])
			copy(buf[destOff+int(padLeft):destOff+int(padLeft)+len2], view.Pixels[srcOff:srcOff+len2])
		default:
			zero(buf[destOff : destOff+int(padLeft)])
			copy(buf[destOff+int(padLeft):destOff+int(padLeft)+len2], view.Pixels[srcOff:srcOff+len2])
			zero(buf[destOff+rowLen-int(padRight) : destOff+rowLen])
		}

		destRow++
		srcY++
	}

	if padBottom > 0 {
		zero(buf[destRow*rowLen:])
	}

	d.wndData = growU8(d.wndData, int(d.WndSize)*int(d.WndSize))
	imaging.Resize(geom.ImageView{Pixels: buf, Width: int(roiWidth), Height: int(roiHeight)}, d.wndData[:int(d.WndSize)*int(d.WndSize)], int(d.WndSize), int(d.WndSize))
}

func zero(s []uint8) {
	for i := range s {
		s[i] = 0
	}
}

func growU8(buf []uint8, n int) []uint8 {
	if cap(buf) < n {
		return make([]uint8, n)
	}
	return buf[:n]
}

func maxI32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func minI32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

// roundHalfUp matches the source's `(v + 0.5) as i32` back-projection
// rounding; every value it is applied to here is non-negative.
func roundHalfUp(v float32) int32 {
	return int32(v + 0.5)
}
