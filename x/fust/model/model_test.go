package model

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/gofust/facedetect/x/fust/classifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blobWriter struct {
	buf bytes.Buffer
}

func (w *blobWriter) i32(v int32) *blobWriter {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	w.buf.Write(b[:])
	return w
}

func (w *blobWriter) f32(v float32) *blobWriter {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	w.buf.Write(b[:])
	return w
}

// buildSyntheticModel emits one hierarchy containing one LAB stage
// (10 base classifiers, 2 bins) followed by one SURF-MLP stage
// (2 features of dim irrelevant here, a single hidden->output layer);
// the LAB classifier has an empty wnd_src and the SURF-MLP classifier a
// one-entry wnd_src of [0] — matching §8.9's "one LAB stage and one
// SURF-MLP stage" scenario.
func buildSyntheticModel() []byte {
	w := &blobWriter{}
	w.i32(1) // num_hierarchy

	w.i32(2) // hierarchy size: 2 classifiers

	// classifier 0: single LAB stage
	w.i32(1)                  // num_stages
	w.i32(classifierKindLab)  // kind
	w.i32(10)                 // num_base_classifier
	w.i32(2)                  // num_bin
	for i := 0; i < 10; i++ { // probes
		w.i32(int32(i)).i32(int32(i + 1))
	}
	for i := 0; i < 10; i++ { // thresholds
		w.f32(float32(i) * 0.5)
	}
	for i := 0; i < 10; i++ { // weights, num_bin+1 = 3 each
		w.f32(1).f32(2).f32(3)
	}
	w.i32(0) // wnd_src n=0

	// classifier 1: single SURF-MLP stage
	w.i32(1)                     // num_stages
	w.i32(classifierKindSurfMlp) // kind
	w.i32(2)                     // num_layer
	w.i32(2)                     // num_feat
	w.i32(0).i32(1)              // feature ids
	w.f32(0.5)                   // threshold
	w.i32(3)                     // input_dim
	w.i32(4)                     // layer 1 out_dim
	for i := 0; i < 3*4; i++ {
		w.f32(0.1)
	}
	for i := 0; i < 4; i++ {
		w.f32(0.0)
	}
	w.i32(1) // wnd_src n=1
	w.i32(0) // wnd_src[0] = 0

	return w.buf.Bytes()
}

func TestLoadSyntheticModel(t *testing.T) {
	m, err := Load(buildSyntheticModel())
	require.NoError(t, err)

	assert.Equal(t, []int32{2}, m.HierarchySizes)
	require.Len(t, m.Classifiers, 2)
	assert.Equal(t, []int32{1, 1}, m.NumStages)

	require.Equal(t, classifier.KindLabBoosted, m.Classifiers[0].Kind)
	require.NotNil(t, m.Classifiers[0].Lab)
	assert.Len(t, m.Classifiers[0].Lab.BaseClassifiers, 10)
	assert.Len(t, m.Classifiers[0].Lab.BaseClassifiers[0].Weights, 3)
	assert.Nil(t, m.WndSrc[0])

	require.Equal(t, classifier.KindSurfMlp, m.Classifiers[1].Kind)
	require.NotNil(t, m.Classifiers[1].Surf)
	assert.Equal(t, []int{0, 1}, m.Classifiers[1].Surf.FeatureIDs)
	require.Len(t, m.Classifiers[1].Surf.Layers, 1)
	assert.Equal(t, 3, m.Classifiers[1].Surf.Layers[0].InputDim)
	assert.Equal(t, classifier.ActivationSigmoid, m.Classifiers[1].Surf.Layers[0].Activation)
	assert.Equal(t, []int32{0}, m.WndSrc[1])
}

func TestLoadRejectsNonMultipleOfTenLabBaseClassifierCount(t *testing.T) {
	w := &blobWriter{}
	w.i32(1) // num_hierarchy
	w.i32(1) // hierarchy size
	w.i32(1) // num_stages
	w.i32(classifierKindLab)
	w.i32(7) // num_base_classifier, not a multiple of 10

	_, err := Load(w.buf.Bytes())
	assert.Error(t, err)
}

func TestLoadRejectsUnknownClassifierKind(t *testing.T) {
	w := &blobWriter{}
	w.i32(1)
	w.i32(1)
	w.i32(1)
	w.i32(99) // unknown kind id

	_, err := Load(w.buf.Bytes())
	assert.Error(t, err)
}

func TestLoadRejectsTruncatedStream(t *testing.T) {
	full := buildSyntheticModel()
	_, err := Load(full[:len(full)-8])
	assert.Error(t, err)
}

// TestLoadFlattensMultiStageSlotAcrossClassifiers covers a single-hierarchy
// model whose one slot has two LAB stages: both stages must land as separate, consecutive
// entries in m.Classifiers (addressed by the cascade driver's per-stage
// model_idx), while m.NumStages/m.WndSrc keep exactly one entry for the
// slot itself (addressed by its coarser cls_idx).
func TestLoadFlattensMultiStageSlotAcrossClassifiers(t *testing.T) {
	w := &blobWriter{}
	w.i32(1) // num_hierarchy
	w.i32(1) // hierarchy size: 1 classifier slot

	w.i32(2) // num_stages = 2
	for s := 0; s < 2; s++ {
		w.i32(classifierKindLab)
		w.i32(10) // num_base_classifier
		w.i32(2)  // num_bin
		for i := 0; i < 10; i++ {
			w.i32(int32(i)).i32(int32(i + 1))
		}
		for i := 0; i < 10; i++ {
			w.f32(float32(i) * 0.5)
		}
		for i := 0; i < 10; i++ {
			w.f32(1).f32(2).f32(3)
		}
	}
	w.i32(0) // wnd_src n=0

	m, err := Load(w.buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, []int32{1}, m.HierarchySizes)
	assert.Equal(t, []int32{2}, m.NumStages)
	require.Len(t, m.WndSrc, 1)
	require.Len(t, m.Classifiers, 2)
	assert.Equal(t, classifier.KindLabBoosted, m.Classifiers[0].Kind)
	assert.Equal(t, classifier.KindLabBoosted, m.Classifiers[1].Kind)
}

func TestHierarchyCount(t *testing.T) {
	m, err := Load(buildSyntheticModel())
	require.NoError(t, err)
	assert.Equal(t, 1, m.HierarchyCount())
}
