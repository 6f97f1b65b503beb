package surfmap

import "github.com/gofust/facedetect/x/fust/geom"

// NumChannels is the width of the interleaved gradient-integral plane per
// pixel: two copies each of signed dx, |dx|, signed dy, |dy|, later split
// by sign mask into a positive/negative half of each.
const NumChannels = 8

const (
	sampleWidth      = 40
	sampleHeight     = 40
	patchMoveStepX   = 16
	patchMoveStepY   = 16
	patchSizeIncStep = 1
	patchMinWidth    = 16
	patchMinHeight   = 16
)

// PatchFormat is one of the five fixed cell-partition shapes a patch
// geometry can be generated from.
type PatchFormat struct {
	Width, Height             uint32
	NumCellPerRow, NumCellPerCol uint32
}

// Feature is a single pooled feature: a patch rectangle (relative to the
// 40x40 canonical sample) and the cell grid it is partitioned into.
type Feature struct {
	Patch         geom.Rectangle
	NumCellPerRow uint32
	NumCellPerCol uint32
}

// Dim is the feature's output vector length: one 8-channel sum per cell.
func (f Feature) Dim() int {
	return int(f.NumCellPerRow) * int(f.NumCellPerCol) * NumChannels
}

// FeaturePool enumerates every patch geometry the five patch formats
// produce over the 40x40 sample, at a fixed move step. It is built once
// and never mutated afterward.
type FeaturePool struct {
	features []Feature
}

// NewFeaturePool builds the pool with the five patch formats the SURF-MLP
// feature map is trained against.
func NewFeaturePool() *FeaturePool {
	formats := []PatchFormat{
		{Width: 1, Height: 1, NumCellPerRow: 2, NumCellPerCol: 2},
		{Width: 1, Height: 2, NumCellPerRow: 2, NumCellPerCol: 2},
		{Width: 2, Height: 1, NumCellPerRow: 2, NumCellPerCol: 2},
		{Width: 2, Height: 3, NumCellPerRow: 2, NumCellPerCol: 2},
		{Width: 3, Height: 2, NumCellPerRow: 2, NumCellPerCol: 2},
	}

	p := &FeaturePool{}

	// sampleHeight-patchMinHeight <= sampleWidth-patchMinWidth holds for the
	// fixed 40x40/16x16 constants above, so generation walks candidate
	// heights first and derives width from the patch format's aspect ratio
	// (the mirror branch, walking widths first, is dead for these constants
	// and is not worth carrying since neither sample size nor the format
	// list is configurable at runtime).
	for _, format := range formats {
		for h := uint32(patchMinHeight); h <= sampleHeight; h += patchSizeIncStep {
			if h%format.NumCellPerCol != 0 || h%format.Height != 0 {
				continue
			}
			w := h / format.Height * format.Width
			if w%format.NumCellPerRow != 0 || w < patchMinWidth || w > sampleWidth {
				continue
			}
			p.collect(w, h, format.NumCellPerRow, format.NumCellPerCol)
		}
	}

	return p
}

func (p *FeaturePool) collect(width, height, numCellPerRow, numCellPerCol uint32) {
	yLim := sampleHeight - height
	xLim := sampleWidth - width

	for y := uint32(0); y <= yLim; y += patchMoveStepY {
		for x := uint32(0); x <= xLim; x += patchMoveStepX {
			p.features = append(p.features, Feature{
				Patch:         geom.Rectangle{X: int32(x), Y: int32(y), Width: width, Height: height},
				NumCellPerRow: numCellPerRow,
				NumCellPerCol: numCellPerCol,
			})
		}
	}
}

// Size is the number of pooled features.
func (p *FeaturePool) Size() int {
	return len(p.features)
}

// Feature returns the pooled feature at id.
func (p *FeaturePool) Feature(id int) Feature {
	return p.features[id]
}

// Dim returns the feature vector dimension for id.
func (p *FeaturePool) Dim(id int) int {
	return p.features[id].Dim()
}
