package detection

import (
	"context"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/hough-circles/internal/imaging"
)

// Result is the output of one detection run.
//
// Circles is always set (possibly empty). The remaining fields are the
// intermediate artifacts of each stage and are only populated when the
// detector was built WithDiagnostics(true).
type Result struct {
	Circles     []Circle
	Grayscale   *imaging.Gray
	Blurred     *imaging.Gray
	Edges       *imaging.EdgeMap
	Gradient    *imaging.GradientField
	Accumulator *Accumulator
}

// Option customizes a Detector.
type Option func(*options)

type options struct {
	diagnostics bool
	refine      bool
	build       BuildOptions
	logger      logrus.FieldLogger
}

// WithDiagnostics keeps the intermediate artifacts in the Result.
func WithDiagnostics(keep bool) Option {
	return func(o *options) { o.diagnostics = keep }
}

// WithRefinement enables sub-pixel refinement of the detected circles
// (see RefineCircles).
func WithRefinement(refine bool) Option {
	return func(o *options) { o.refine = refine }
}

// WithWorkers bounds the goroutines used by the parallel stages. Zero or a
// negative value means one per CPU. Results never depend on this value.
func WithWorkers(n int) Option {
	return func(o *options) { o.build.Workers = n }
}

// WithAccumulatorMode forces dense or sparse accumulator storage.
func WithAccumulatorMode(mode AccumulatorMode) Option {
	return func(o *options) { o.build.Mode = mode }
}

// WithDenseCellLimit sets the cell count above which auto mode switches to
// sparse storage.
func WithDenseCellLimit(cells int) Option {
	return func(o *options) { o.build.DenseCellLimit = cells }
}

// WithLogger sets the logger used for per-stage debug output.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) { o.logger = logger }
}

// Detector finds circles with the Hough gradient method.
//
// A Detector holds only its validated configuration, so one instance may be
// shared by concurrent callers; every call allocates its own intermediates.
type Detector struct {
	params DetectionParams
	opts   options
}

// NewDetector validates params and returns a detector. Invalid parameters
// wrap ErrInvalidConfig.
func NewDetector(params DetectionParams, opts ...Option) (*Detector, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.build.Mode < AccumulatorAuto || o.build.Mode > AccumulatorSparse {
		return nil, fmt.Errorf("%w: unknown accumulator mode %d", ErrInvalidConfig, o.build.Mode)
	}
	if o.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.logger = l
	}
	return &Detector{params: params, opts: o}, nil
}

// Detect is a convenience wrapper that builds a detector and runs it once.
func Detect(img image.Image, params DetectionParams, opts ...Option) (*Result, error) {
	d, err := NewDetector(params, opts...)
	if err != nil {
		return nil, err
	}
	return d.Detect(img)
}

// Params returns the detector's configuration.
func (d *Detector) Params() DetectionParams {
	return d.params
}

// Detect runs the full pipeline on img.
func (d *Detector) Detect(img image.Image) (*Result, error) {
	return d.DetectContext(context.Background(), img)
}

// DetectContext runs the full pipeline on img, checking ctx between stages.
//
// # Pipeline
//
//  1. Prepare: grayscale conversion and Gaussian smoothing
//  2. ExtractEdges: Sobel gradients, non-maximum suppression, hysteresis
//  3. BuildAccumulator: gradient-directed center voting per radius
//  4. ExtractPeaks: thresholding, ordering and center-distance suppression
//  5. RefineCircles: optional sub-pixel fit
//
// Stages never run out of order. On error, or when ctx is done at a stage
// boundary, no partial result is returned.
func (d *Detector) DetectContext(ctx context.Context, img image.Image) (*Result, error) {
	p := d.params
	log := d.opts.logger
	started := time.Now()

	gray, blurred, err := imaging.Prepare(img, p.BlurSigma)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"stage":   "prepare",
		"width":   gray.Width,
		"height":  gray.Height,
		"elapsed": time.Since(started),
	}).Debug("stage complete")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stage := time.Now()
	edges, grad, err := imaging.ExtractEdges(blurred, p.LowThreshold, p.HighThreshold, p.Connectivity)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"stage":       "edges",
		"edge_pixels": edges.Count(),
		"elapsed":     time.Since(stage),
	}).Debug("stage complete")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stage = time.Now()
	acc, err := BuildAccumulator(edges, grad, p.RadiusMin, p.RadiusMax, p.RadiusStep, d.opts.build)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"stage":   "accumulate",
		"mode":    acc.Mode().String(),
		"radii":   acc.NumRadii(),
		"elapsed": time.Since(stage),
	}).Debug("stage complete")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stage = time.Now()
	circles, err := ExtractPeaks(acc, p.AccumulatorThreshold, p.MinCenterDistance, d.opts.build.Workers)
	if err != nil {
		return nil, err
	}
	if d.opts.refine {
		circles = RefineCircles(circles, edges, p)
	}
	log.WithFields(logrus.Fields{
		"stage":   "peaks",
		"circles": len(circles),
		"refined": d.opts.refine,
		"elapsed": time.Since(stage),
	}).Debug("stage complete")

	offset := img.Bounds().Min
	for i := range circles {
		circles[i].X += float64(offset.X)
		circles[i].Y += float64(offset.Y)
	}

	log.WithFields(logrus.Fields{
		"circles": len(circles),
		"elapsed": time.Since(started),
	}).Debug("detection complete")

	res := &Result{Circles: circles}
	if d.opts.diagnostics {
		res.Grayscale = gray
		res.Blurred = blurred
		res.Edges = edges
		res.Gradient = grad
		res.Accumulator = acc
	}
	return res, nil
}
