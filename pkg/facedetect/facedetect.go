// Package facedetect is the public face-detection API: load a cascade
// model, configure the detector, run it over grayscale images. It is a
// thin boundary over x/fust/cascade that translates the cascade driver's
// plain panics and errors into the two typed error classes spec §7 calls
// for, without duplicating any detection logic.
package facedetect

import (
	"fmt"
	"os"

	"github.com/gofust/facedetect/pkg/logger"
	"github.com/gofust/facedetect/x/fust/cascade"
	"github.com/gofust/facedetect/x/fust/geom"
	"github.com/gofust/facedetect/x/fust/model"
	"github.com/gofust/facedetect/x/options"
)

var log = logger.Named("facedetect")

// ConfigError marks a class-1 violation per spec §7: an illegal parameter
// or a malformed image. Detector methods panic with *ConfigError rather
// than returning it, since construction-time misuse is a programmer error
// with no recovery path — the typed value just lets a caller's own
// recover loop tell a configuration mistake apart from anything else.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "facedetect: " + e.Msg }

// ModelError marks a class-2 failure per spec §7: the model path could not
// be read, or its stream was malformed or used an unknown classifier kind.
// NewDetector returns it; no partial Detector is ever returned alongside.
type ModelError struct {
	Err error
}

func (e *ModelError) Error() string { return fmt.Sprintf("facedetect: model error: %v", e.Err) }
func (e *ModelError) Unwrap() error { return e.Err }

// Detector is the public face-detection handle.
type Detector struct {
	cascade *cascade.Detector
}

// NewDetector loads a model file from path and builds a Detector over it.
// Fails with *ModelError if the path is unreadable or the stream is
// malformed; no Detector is returned in that case.
func NewDetector(path string, opts ...options.Option) (*Detector, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, &ModelError{Err: err}
	}

	m, err := model.Load(buf)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("model load failed")
		return nil, &ModelError{Err: err}
	}

	return NewDetectorWithModel(m, opts...), nil
}

// NewDetectorWithModel builds a Detector over an already-parsed model,
// for callers that load or construct a Model themselves.
func NewDetectorWithModel(m *model.Model, opts ...options.Option) *Detector {
	return &Detector{cascade: cascade.New(m, opts...)}
}

// asConfigError runs f and, if it panics, re-panics with the original
// message wrapped in a *ConfigError — the cascade driver's own panics
// already carry the spec-mandated validation messages, so this boundary
// only needs to retype them, not re-derive them.
func asConfigError(f func()) {
	defer func() {
		if r := recover(); r != nil {
			panic(&ConfigError{Msg: fmt.Sprint(r)})
		}
	}()
	f()
}

// SetWindowSize requires w >= 20.
func (d *Detector) SetWindowSize(w int32) {
	asConfigError(func() { d.cascade.SetWindowSize(w) })
}

// SetSlideWindowStep requires both steps positive.
func (d *Detector) SetSlideWindowStep(x, y int32) {
	asConfigError(func() { d.cascade.SetSlideWindowStep(x, y) })
}

// SetMinFaceSize requires f >= 20.
func (d *Detector) SetMinFaceSize(f int32) {
	asConfigError(func() { d.cascade.SetMinFaceSize(f) })
}

// SetMaxFaceSize accepts 0 to mean "use image size".
func (d *Detector) SetMaxFaceSize(f int32) {
	d.cascade.SetMaxFaceSize(f)
}

// SetPyramidScaleFactor requires 0.01 < s < 0.99.
func (d *Detector) SetPyramidScaleFactor(s float32) {
	asConfigError(func() { d.cascade.SetPyramidScaleFactor(s) })
}

// SetScoreThresh requires t > 0.
func (d *Detector) SetScoreThresh(t float64) {
	asConfigError(func() { d.cascade.SetScoreThresh(t) })
}

// Detect returns every face found in view, as rectangles on the 1x frame,
// with score >= the configured threshold. Panics with *ConfigError on a
// malformed view.
func (d *Detector) Detect(view geom.ImageView) []geom.FaceInfo {
	var faces []geom.FaceInfo
	asConfigError(func() { faces = d.cascade.Detect(view) })
	return faces
}

// With* re-exports let callers configure a Detector at construction time
// without importing x/fust/cascade directly.
var (
	WithWindowSize  = cascade.WithWindowSize
	WithSlideStep   = cascade.WithSlideStep
	WithMinFaceSize = cascade.WithMinFaceSize
	WithMaxFaceSize = cascade.WithMaxFaceSize
	WithScaleFactor = cascade.WithScaleFactor
	WithScoreThresh = cascade.WithScoreThresh
	WithWorkers     = cascade.WithWorkers
)
