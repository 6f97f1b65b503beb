package classifier

import (
	"github.com/gofust/facedetect/x/fust/geom"
	"github.com/gofust/facedetect/x/fust/labmap"
)

// groupSize is K_FEAT_GROUP_SIZE: base classifiers are consumed in fixed
// groups of 10, with an early-exit threshold check after every group.
const groupSize = 10

// Probe is a single LAB lookup-table site: an offset into the feature map
// relative to a window's origin.
type Probe struct {
	OffsetX, OffsetY int32
}

// BaseClassifier is one weak learner in the LAB-boosted ensemble: a
// per-byte-value weight table (257 entries, indexed 0..255 plus one spare
// the source always allocates) and the cumulative threshold that ends its
// group's early-exit check.
type BaseClassifier struct {
	Weights []float32
	Thresh  float32
}

// LabBoostedClassifier is an ordered probe list plus an ordered base
// classifier list, consumed 10 at a time. The caller (the model reader)
// guarantees len(BaseClassifiers) is a multiple of groupSize; that
// invariant is enforced at model load time, not here.
type LabBoostedClassifier struct {
	Probes          []Probe
	BaseClassifiers []BaseClassifier
}

// Classify runs the grouped lookup-table sum against fm over roi, per
// spec §4.5: a group of 10 base classifiers contributes its weighted
// lookups, then the group's trailing classifier's threshold decides
// whether to exit early with a negative verdict. Surviving every group,
// the window must also clear a standard-deviation floor.
func (c *LabBoostedClassifier) Classify(fm *labmap.FeatureMap, roi geom.Rectangle) Score {
	var score float32
	idx := 0

	for idx < len(c.BaseClassifiers) {
		groupEnd := idx + groupSize
		for ; idx < groupEnd; idx++ {
			base := c.BaseClassifiers[idx]
			probe := c.Probes[idx]
			v := fm.FeatureAt(probe.OffsetX, probe.OffsetY, roi)
			score += base.Weights[v]
		}
		if score < c.BaseClassifiers[idx-1].Thresh {
			return Score{Positive: false, Value: score}
		}
	}

	return Score{Positive: fm.StdDev(roi) > 10.0, Value: score}
}
