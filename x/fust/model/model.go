// Package model reads the little-endian cascade model file format (spec
// §4.7) into a flat, cascade-ready in-memory shape. The wire format is a
// depth-first walk of hierarchies, each holding a run of classifiers in
// which every classifier is immediately followed by its own window-source
// routing record; this package
// flattens that walk into parallel slices the cascade driver can index by a
// single running classifier position.
package model

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/gofust/facedetect/x/fust/classifier"
)

const (
	classifierKindLab     = 0
	classifierKindSurfMlp = 1

	// labGroupSize mirrors classifier.groupSize: for a model whose LAB base
	// classifier count isn't a multiple of it, Classify's group loop would
	// index past the end of the partial last group, so such a model is
	// rejected at load time rather than panicking at the first detect call.
	labGroupSize = 10
)

// Model is the flattened result of parsing a cascade model file.
//
// Classifiers is the depth-first concatenation of every *stage* of every
// classifier slot across every hierarchy, addressed by its own running
// index ("model_idx" in the cascade driver) that advances once per stage.
// HierarchySizes, NumStages and WndSrc are parallel to a separate,
// coarser flat index over classifier *slots* ("cls_idx" in the cascade
// driver): HierarchySizes holds one entry per hierarchy (how many slots
// belong to it, in order); NumStages and WndSrc hold one entry per slot —
// NumStages giving the number of consecutive entries in Classifiers that
// slot owns.
type Model struct {
	Classifiers    []classifier.Variant
	HierarchySizes []int32
	NumStages      []int32
	WndSrc         [][]int32
}

// HierarchyCount reports how many hierarchy levels the model defines.
func (m *Model) HierarchyCount() int {
	return len(m.HierarchySizes)
}

// Load parses buf as a cascade model file.
func Load(buf []byte) (*Model, error) {
	r := &reader{buf: buf}
	return r.readModel()
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) readI32() (int32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, fmt.Errorf("model: read i32 at offset %d: %w", r.pos, io.ErrUnexpectedEOF)
	}
	v := int32(binary.LittleEndian.Uint32(r.buf[r.pos:]))
	r.pos += 4
	return v, nil
}

func (r *reader) readF32() (float32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, fmt.Errorf("model: read f32 at offset %d: %w", r.pos, io.ErrUnexpectedEOF)
	}
	bits := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return math.Float32frombits(bits), nil
}

func (r *reader) readI32s(n int32) ([]int32, error) {
	out := make([]int32, n)
	for i := range out {
		v, err := r.readI32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (r *reader) readF32s(n int32) ([]float32, error) {
	out := make([]float32, n)
	for i := range out {
		v, err := r.readF32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (r *reader) readModel() (*Model, error) {
	numHierarchy, err := r.readI32()
	if err != nil {
		return nil, fmt.Errorf("model: num_hierarchy: %w", err)
	}

	m := &Model{
		HierarchySizes: make([]int32, 0, numHierarchy),
	}

	for h := int32(0); h < numHierarchy; h++ {
		size, err := r.readI32()
		if err != nil {
			return nil, fmt.Errorf("model: hierarchy %d size: %w", h, err)
		}
		m.HierarchySizes = append(m.HierarchySizes, size)

		for c := int32(0); c < size; c++ {
			stages, err := r.readClassifier()
			if err != nil {
				return nil, fmt.Errorf("model: hierarchy %d classifier %d: %w", h, c, err)
			}
			m.Classifiers = append(m.Classifiers, stages...)
			m.NumStages = append(m.NumStages, int32(len(stages)))

			wndSrc, err := r.readWndSrc()
			if err != nil {
				return nil, fmt.Errorf("model: hierarchy %d classifier %d wnd_src: %w", h, c, err)
			}
			m.WndSrc = append(m.WndSrc, wndSrc)
		}
	}

	return m, nil
}

// readClassifier reads one classifier slot's run of stages. A slot in the
// wire format is itself a small stage cascade (`num_stages:i32
// stage{num_stages}`), and the cascade driver classifies with every stage
// in turn (one refinement pass per stage, advancing its own flat
// classifier index independently of the slot index) rather than only the
// last, so every stage's Variant is returned here in order.
func (r *reader) readClassifier() ([]classifier.Variant, error) {
	numStages, err := r.readI32()
	if err != nil {
		return nil, fmt.Errorf("num_stages: %w", err)
	}

	stages := make([]classifier.Variant, 0, numStages)
	for s := int32(0); s < numStages; s++ {
		kindID, err := r.readI32()
		if err != nil {
			return nil, fmt.Errorf("stage %d kind: %w", s, err)
		}

		switch kindID {
		case classifierKindLab:
			lab, err := r.readLabBoosted()
			if err != nil {
				return nil, fmt.Errorf("stage %d lab: %w", s, err)
			}
			stages = append(stages, classifier.Variant{Kind: classifier.KindLabBoosted, Lab: lab})
		case classifierKindSurfMlp:
			surf, err := r.readSurfMlp()
			if err != nil {
				return nil, fmt.Errorf("stage %d surfmlp: %w", s, err)
			}
			stages = append(stages, classifier.Variant{Kind: classifier.KindSurfMlp, Surf: surf})
		default:
			return nil, fmt.Errorf("stage %d: unknown classifier kind id %d", s, kindID)
		}
	}

	return stages, nil
}

func (r *reader) readLabBoosted() (*classifier.LabBoostedClassifier, error) {
	numBase, err := r.readI32()
	if err != nil {
		return nil, fmt.Errorf("num_base_classifier: %w", err)
	}
	if numBase%labGroupSize != 0 {
		return nil, fmt.Errorf("num_base_classifier %d is not a multiple of %d", numBase, labGroupSize)
	}
	numBin, err := r.readI32()
	if err != nil {
		return nil, fmt.Errorf("num_bin: %w", err)
	}

	probes := make([]classifier.Probe, numBase)
	for i := range probes {
		x, err := r.readI32()
		if err != nil {
			return nil, fmt.Errorf("probe %d x: %w", i, err)
		}
		y, err := r.readI32()
		if err != nil {
			return nil, fmt.Errorf("probe %d y: %w", i, err)
		}
		probes[i] = classifier.Probe{OffsetX: x, OffsetY: y}
	}

	thresh, err := r.readF32s(numBase)
	if err != nil {
		return nil, fmt.Errorf("thresh: %w", err)
	}

	bases := make([]classifier.BaseClassifier, numBase)
	for i := range bases {
		weights, err := r.readF32s(numBin + 1)
		if err != nil {
			return nil, fmt.Errorf("base classifier %d weights: %w", i, err)
		}
		bases[i] = classifier.BaseClassifier{Weights: weights, Thresh: thresh[i]}
	}

	return &classifier.LabBoostedClassifier{Probes: probes, BaseClassifiers: bases}, nil
}

func (r *reader) readSurfMlp() (*classifier.SurfMlpClassifier, error) {
	numLayers, err := r.readI32()
	if err != nil {
		return nil, fmt.Errorf("num_layer: %w", err)
	}
	numFeat, err := r.readI32()
	if err != nil {
		return nil, fmt.Errorf("num_feat: %w", err)
	}

	featIDs32, err := r.readI32s(numFeat)
	if err != nil {
		return nil, fmt.Errorf("feature ids: %w", err)
	}
	featIDs := make([]int, len(featIDs32))
	for i, v := range featIDs32 {
		featIDs[i] = int(v)
	}

	thresh, err := r.readF32()
	if err != nil {
		return nil, fmt.Errorf("threshold: %w", err)
	}

	inputDim, err := r.readI32()
	if err != nil {
		return nil, fmt.Errorf("input_dim: %w", err)
	}

	layers := make([]classifier.Layer, 0, numLayers-1)
	for i := int32(1); i < numLayers; i++ {
		outputDim, err := r.readI32()
		if err != nil {
			return nil, fmt.Errorf("layer %d output_dim: %w", i, err)
		}

		weights, err := r.readF32s(inputDim * outputDim)
		if err != nil {
			return nil, fmt.Errorf("layer %d weights: %w", i, err)
		}
		biases, err := r.readF32s(outputDim)
		if err != nil {
			return nil, fmt.Errorf("layer %d biases: %w", i, err)
		}

		activation := classifier.ActivationReLU
		if i == numLayers-1 {
			activation = classifier.ActivationSigmoid
		}

		layers = append(layers, classifier.Layer{
			InputDim:   int(inputDim),
			Weights:    weights,
			Biases:     biases,
			Activation: activation,
		})
		inputDim = outputDim
	}

	return &classifier.SurfMlpClassifier{FeatureIDs: featIDs, Thresh: thresh, Layers: layers}, nil
}

func (r *reader) readWndSrc() ([]int32, error) {
	n, err := r.readI32()
	if err != nil {
		return nil, fmt.Errorf("n: %w", err)
	}
	if n <= 0 {
		return nil, nil
	}
	return r.readI32s(n)
}
