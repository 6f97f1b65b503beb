// Package classifier implements the two cascade classifier kinds — the
// LAB-boosted proposal classifier and the SURF-MLP verification/refinement
// classifier — as a closed, tagged-variant pair the cascade driver
// dispatches on directly, rather than a virtual-dispatch class hierarchy.
package classifier

// Kind distinguishes the two classifier variants a model can contain.
type Kind int

const (
	KindLabBoosted Kind = iota
	KindSurfMlp
)

// Score is a classify result: whether the window is positive for this
// stage, and the stage's own notion of confidence (a summed LAB weight, or
// an MLP sigmoid output).
type Score struct {
	Positive bool
	Value    float32
}

// Variant is one classifier in the model's flattened list, tagged by Kind.
// Exactly one of Lab/Surf is set, matching the kind. The cascade driver
// switches on Kind to pick both the classify call and the feature map
// instance (of the matching kind) to pass it.
type Variant struct {
	Kind Kind
	Lab  *LabBoostedClassifier
	Surf *SurfMlpClassifier
}
