package cascade

import (
	"sort"

	"github.com/gofust/facedetect/x/fust/geom"
)

// NonMaxSuppression reproduces spec §4.8.4 exactly: boxes are sorted
// descending by score (stable on ties), then greedily selected; any later
// unmerged box whose integer-corner IoU with the current selection exceeds
// iouThresh is folded into it by *adding* its score to the selection's
// running score rather than discarding it. bboxes is not mutated; the
// result is a new slice.
func NonMaxSuppression(bboxes []geom.FaceInfo, iouThresh float64) []geom.FaceInfo {
	if len(bboxes) == 0 {
		return nil
	}

	sorted := make([]geom.FaceInfo, len(bboxes))
	copy(sorted, bboxes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	merged := make([]bool, len(sorted))
	out := make([]geom.FaceInfo, 0, len(sorted))

	for i := range sorted {
		if merged[i] {
			continue
		}
		merged[i] = true

		b1 := sorted[i].Bbox
		area1 := float64(b1.Width) * float64(b1.Height)
		x1, y1 := b1.X, b1.Y
		x2, y2 := b1.Right(), b1.Bottom()
		score := sorted[i].Score

		for j := i + 1; j < len(sorted); j++ {
			if merged[j] {
				continue
			}
			b2 := sorted[j].Bbox

			x := maxI32(x1, b2.X)
			y := maxI32(y1, b2.Y)
			w := minI32(x2, b2.Right()) - x + 1
			h := minI32(y2, b2.Bottom()) - y + 1
			if w <= 0 || h <= 0 {
				continue
			}

			area2 := float64(b2.Width) * float64(b2.Height)
			intersect := float64(w) * float64(h)
			union := area1 + area2 - intersect
			if intersect/union > iouThresh {
				merged[j] = true
				score += sorted[j].Score
			}
		}

		entry := sorted[i]
		entry.Score = score
		out = append(out, entry)
	}

	return out
}
