package classifier

import (
	"math"

	"github.com/gofust/facedetect/x/fust/geom"
	"github.com/gofust/facedetect/x/fust/kernel"
	"github.com/gofust/facedetect/x/fust/surfmap"
	"github.com/gofust/facedetect/x/math/primitive/generics/helpers"
)

// minNeuronsPerChunk keeps a layer's worker pool from being dispatched over
// output widths too small for chunking to pay for itself.
const minNeuronsPerChunk = 64

// Activation is one of the two fixed activation functions a layer can use;
// there are only ever these two kinds, so this module uses a byte tag
// rather than a closure field (closures over loaded model data would have
// to be reconstructed on every load anyway).
type Activation int

const (
	ActivationReLU Activation = iota
	ActivationSigmoid
)

func (a Activation) apply(x float32) float32 {
	switch a {
	case ActivationReLU:
		if x > 0 {
			return x
		}
		return 0
	case ActivationSigmoid:
		return float32(1 / (1 + math.Exp(-float64(x))))
	default:
		panic("classifier: unknown activation")
	}
}

// Layer is one dense layer: InputDim must equal the previous layer's
// OutputDim (or the concatenated feature vector's length, for the first
// layer). Weights are laid out output-major: the i-th output neuron's
// weights occupy Weights[i*InputDim : (i+1)*InputDim].
type Layer struct {
	InputDim   int
	Weights    []float32
	Biases     []float32
	Activation Activation
}

// OutputDim is the number of neurons this layer produces.
func (l Layer) OutputDim() int {
	return len(l.Biases)
}

// Compute writes this layer's forward pass of input into output, which
// must be at least OutputDim long. Each output neuron's dot product is
// independent of every other, so when workers is non-nil and the layer is
// wide enough to be worth chunking, neurons are computed in parallel.
func (l Layer) Compute(input, output []float32, workers *helpers.WorkerPool) {
	computeNeuron := func(i int) {
		weights := l.Weights[i*l.InputDim : (i+1)*l.InputDim]
		x := kernel.InnerProductF32(input, weights) + l.Biases[i]
		output[i] = l.Activation.apply(x)
	}

	n := len(l.Biases)
	if workers != nil && n >= minNeuronsPerChunk {
		err := workers.Execute(n, func(start, end int) error {
			for i := start; i < end; i++ {
				computeNeuron(i)
			}
			return nil
		})
		if err == nil {
			return
		}
	}

	for i := 0; i < n; i++ {
		computeNeuron(i)
	}
}

// SurfMlpClassifier concatenates a fixed set of pooled SURF feature
// vectors into an MLP input and runs a forward pass: every layer but the
// last uses ReLU, the last uses sigmoid.
type SurfMlpClassifier struct {
	FeatureIDs []int
	Thresh     float32
	Layers     []Layer
}

// SurfMlpBuffers holds the reusable scratch an MLP forward pass needs: the
// concatenated input vector, kept separate from the ping-pong pair of
// hidden-layer buffers so a layer never reads and writes the same backing
// array. One instance is shared by every SurfMlpClassifier in a detector,
// since the cascade driver serializes classify calls (see Design Notes on
// feature-map ownership).
type SurfMlpBuffers struct {
	input    []float32
	pingpong [2][]float32

	workers *helpers.WorkerPool
}

// SetWorkers gates every Layer.Compute call made through buf onto a worker
// pool sized n. n <= 1 (the default) keeps the forward pass single-threaded.
func (buf *SurfMlpBuffers) SetWorkers(n int) {
	if buf.workers != nil {
		buf.workers.Close()
		buf.workers = nil
	}
	if n <= 1 {
		return
	}
	buf.workers = &helpers.WorkerPool{Size: n}
	if err := buf.workers.Init(); err != nil {
		buf.workers = nil
	}
}

func grow(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}

// Classify concatenates this classifier's feature vectors (read from fm
// over roi), runs the forward pass through buf's ping-pong buffers, and
// reports whether the first output neuron clears Thresh. If out is
// non-nil, the full final-layer output is copied into it (the bbox
// regression deltas used by the refinement stage, §4.8.3).
func (c *SurfMlpClassifier) Classify(fm *surfmap.FeatureMap, buf *SurfMlpBuffers, roi geom.Rectangle, out []float32) Score {
	cur := c.gatherInput(fm, roi, buf)

	for i, layer := range c.Layers {
		dst := buf.pingpong[i%2]
		dst = grow(dst, layer.OutputDim())
		buf.pingpong[i%2] = dst
		layer.Compute(cur, dst, buf.workers)
		cur = dst
	}

	score := cur[0]
	if out != nil {
		copy(out, cur)
	}
	return Score{Positive: score > c.Thresh, Value: score}
}

func (c *SurfMlpClassifier) gatherInput(fm *surfmap.FeatureMap, roi geom.Rectangle, buf *SurfMlpBuffers) []float32 {
	total := 0
	for _, id := range c.FeatureIDs {
		total += fm.Pool.Dim(id)
	}

	buf.input = grow(buf.input, total)
	offset := 0
	for _, id := range c.FeatureIDs {
		dim := fm.Pool.Dim(id)
		fm.FeatureVector(id, roi, buf.input[offset:offset+dim])
		offset += dim
	}
	return buf.input
}
