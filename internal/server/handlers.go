package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/hough-circles/internal/detection"
	"github.com/ironsheep/hough-circles/internal/imaging"
	"github.com/ironsheep/hough-circles/internal/reference"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "circles_detect").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Arguments that fail validation return code -32602; any other tool failure
// returns code -32000.
func (s *Server) handleToolsCall(ctx context.Context, log logrus.FieldLogger, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	log = log.WithField("tool", params.Name)
	started := time.Now()
	result, err := s.executeTool(ctx, log, params.Name, params.Arguments)
	if err != nil {
		log.WithError(err).Warn("tool call failed")
		if errors.Is(err, detection.ErrInvalidInput) || errors.Is(err, detection.ErrInvalidConfig) {
			return s.errorResponse(req.ID, codeInvalidParams, "Invalid arguments", err.Error())
		}
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}
	log.WithField("elapsed", time.Since(started)).Info("tool call completed")

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Fills unset parameters from the server configuration
//  3. Resolves the image from the request or the cache
//  4. Runs the requested pipeline stages
//  5. Returns the result or error
func (s *Server) executeTool(ctx context.Context, log logrus.FieldLogger, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Image Cache
	case "image_load":
		return s.handleImageLoad(args)
	case "image_release":
		return s.handleImageRelease(args)

	// Detection
	case "circles_detect":
		return s.handleCirclesDetect(ctx, log, args)

	// Pipeline Stages
	case "circles_edge_map":
		return s.handleCirclesEdgeMap(args)
	case "circles_accumulator":
		return s.handleCirclesAccumulator(args)

	// Test Images
	case "circles_synthesize":
		return s.handleCirclesSynthesize(args)

	// Cross-checking
	case "circles_reference":
		return s.handleCirclesReference(ctx, log, args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// unmarshalArgs decodes tool arguments. Missing arguments decode as an empty
// object.
func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: invalid arguments: %v", detection.ErrInvalidInput, err)
	}
	return nil
}

// === Shared Arguments ===

type regionArgs struct {
	Name string `json:"name"`
	X1   int    `json:"x1"`
	Y1   int    `json:"y1"`
	X2   int    `json:"x2"`
	Y2   int    `json:"y2"`
}

type imageSourceArgs struct {
	Image   string      `json:"image"`
	ImageID string      `json:"image_id"`
	Region  *regionArgs `json:"region"`
}

type edgeParamArgs struct {
	LowThreshold  *float64 `json:"low_threshold"`
	HighThreshold *float64 `json:"high_threshold"`
	BlurSigma     *float64 `json:"blur_sigma"`
	Connectivity  *int     `json:"connectivity"`
}

type voteParamArgs struct {
	RadiusMin       *int   `json:"radius_min"`
	RadiusMax       *int   `json:"radius_max"`
	RadiusStep      *int   `json:"radius_step"`
	AccumulatorMode string `json:"accumulator_mode"`
}

type peakParamArgs struct {
	AccumulatorThreshold *int     `json:"accumulator_threshold"`
	MinCenterDistance    *float64 `json:"min_center_distance"`
}

// resolveImage returns the image named by a, cropped to its region if any.
func (s *Server) resolveImage(a imageSourceArgs) (image.Image, error) {
	var img image.Image
	switch {
	case a.ImageID != "":
		cached, err := s.cache.Get(a.ImageID)
		if err != nil {
			return nil, err
		}
		img = cached.Image
	case a.Image != "":
		decoded, err := imaging.DecodeBase64(a.Image, s.cfg.MaxImagePixels)
		if err != nil {
			return nil, err
		}
		img = decoded.Image
	default:
		return nil, fmt.Errorf("%w: either image or image_id is required", detection.ErrInvalidInput)
	}

	if a.Region == nil {
		return img, nil
	}
	if a.Region.Name != "" {
		return imaging.CropQuadrant(img, a.Region.Name)
	}
	return imaging.Crop(img, a.Region.X1, a.Region.Y1, a.Region.X2, a.Region.Y2)
}

// params overlays the arguments that were set on the configured defaults.
// When only the high threshold is given, the low one follows the
// high = 2 × low convention.
func (s *Server) params(e edgeParamArgs, v voteParamArgs, p peakParamArgs) detection.DetectionParams {
	out := s.cfg.Params
	if e.HighThreshold != nil {
		if e.LowThreshold == nil {
			out = out.WithHighThreshold(*e.HighThreshold)
		} else {
			out.HighThreshold = *e.HighThreshold
		}
	}
	if e.LowThreshold != nil {
		out.LowThreshold = *e.LowThreshold
	}
	if e.BlurSigma != nil {
		out.BlurSigma = *e.BlurSigma
	}
	if e.Connectivity != nil {
		out.Connectivity = imaging.Connectivity(*e.Connectivity)
	}
	if v.RadiusMin != nil {
		out.RadiusMin = *v.RadiusMin
	}
	if v.RadiusMax != nil {
		out.RadiusMax = *v.RadiusMax
	}
	if v.RadiusStep != nil {
		out.RadiusStep = *v.RadiusStep
	}
	if p.AccumulatorThreshold != nil {
		out.AccumulatorThreshold = *p.AccumulatorThreshold
	}
	if p.MinCenterDistance != nil {
		out.MinCenterDistance = *p.MinCenterDistance
	}
	return out
}

// accumulatorMode resolves the requested storage, falling back to the
// configured one.
func (s *Server) accumulatorMode(requested string) (detection.AccumulatorMode, error) {
	if requested == "" {
		return s.cfg.AccumulatorMode, nil
	}
	return detection.ParseAccumulatorMode(requested)
}

// === Image Cache Handlers ===

type imageLoadArgs struct {
	Image string `json:"image"`
}

type imageLoadResult struct {
	ImageID string            `json:"image_id"`
	Info    imaging.ImageInfo `json:"info"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	decoded, err := imaging.DecodeBase64(a.Image, s.cfg.MaxImagePixels)
	if err != nil {
		return nil, err
	}
	return &imageLoadResult{ImageID: s.cache.Put(decoded), Info: decoded.Info}, nil
}

type imageReleaseArgs struct {
	ImageID string `json:"image_id"`
}

func (s *Server) handleImageRelease(args json.RawMessage) (interface{}, error) {
	var a imageReleaseArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if _, err := s.cache.Get(a.ImageID); err != nil {
		return nil, err
	}
	s.cache.Evict(a.ImageID)
	return map[string]interface{}{"image_id": a.ImageID, "released": true}, nil
}

// === Detection Handlers ===

type circlesDetectArgs struct {
	imageSourceArgs
	edgeParamArgs
	voteParamArgs
	peakParamArgs
	Refine      *bool `json:"refine"`
	Diagnostics bool  `json:"diagnostics"`
}

type diagnosticImages struct {
	Grayscale   *imaging.EncodedImage `json:"grayscale"`
	Blurred     *imaging.EncodedImage `json:"blurred"`
	Edges       *imaging.EncodedImage `json:"edges"`
	Accumulator *imaging.EncodedImage `json:"accumulator"`
}

type circlesDetectResult struct {
	Circles     []detection.Circle        `json:"circles"`
	Count       int                       `json:"count"`
	Bounds      image.Rectangle           `json:"bounds"`
	Params      detection.DetectionParams `json:"params"`
	Refined     bool                      `json:"refined"`
	ElapsedMS   int64                     `json:"elapsed_ms"`
	Diagnostics *diagnosticImages         `json:"diagnostics,omitempty"`
}

// detect runs a full detection with the detector options implied by the
// configuration and the request.
func (s *Server) detect(ctx context.Context, log logrus.FieldLogger, img image.Image, params detection.DetectionParams, mode string, refine *bool, diagnostics bool) (*detection.Result, bool, error) {
	accMode, err := s.accumulatorMode(mode)
	if err != nil {
		return nil, false, err
	}
	doRefine := s.cfg.Refine
	if refine != nil {
		doRefine = *refine
	}

	opts := append(s.cfg.DetectorOptions(),
		detection.WithAccumulatorMode(accMode),
		detection.WithRefinement(doRefine),
		detection.WithDiagnostics(diagnostics),
		detection.WithLogger(log),
	)
	d, err := detection.NewDetector(params, opts...)
	if err != nil {
		return nil, false, err
	}
	res, err := d.DetectContext(ctx, img)
	if err != nil {
		return nil, false, err
	}
	return res, doRefine, nil
}

func (s *Server) handleCirclesDetect(ctx context.Context, log logrus.FieldLogger, args json.RawMessage) (interface{}, error) {
	var a circlesDetectArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.resolveImage(a.imageSourceArgs)
	if err != nil {
		return nil, err
	}
	params := s.params(a.edgeParamArgs, a.voteParamArgs, a.peakParamArgs)

	started := time.Now()
	res, refined, err := s.detect(ctx, log, img, params, a.AccumulatorMode, a.Refine, a.Diagnostics)
	if err != nil {
		return nil, err
	}

	out := &circlesDetectResult{
		Circles:   res.Circles,
		Count:     len(res.Circles),
		Bounds:    img.Bounds(),
		Params:    params,
		Refined:   refined,
		ElapsedMS: time.Since(started).Milliseconds(),
	}
	if a.Diagnostics {
		out.Diagnostics, err = encodeDiagnostics(res)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func encodeDiagnostics(res *detection.Result) (*diagnosticImages, error) {
	var diag diagnosticImages
	var err error
	if diag.Grayscale, err = imaging.EncodePNGBase64(res.Grayscale.Image()); err != nil {
		return nil, err
	}
	if diag.Blurred, err = imaging.EncodePNGBase64(res.Blurred.Image()); err != nil {
		return nil, err
	}
	if diag.Edges, err = imaging.EncodePNGBase64(res.Edges.Image()); err != nil {
		return nil, err
	}
	if diag.Accumulator, err = imaging.EncodePNGBase64(res.Accumulator.ProjectionImage()); err != nil {
		return nil, err
	}
	return &diag, nil
}

// === Pipeline Stage Handlers ===

type circlesEdgeMapArgs struct {
	imageSourceArgs
	edgeParamArgs
}

type circlesEdgeMapResult struct {
	Width      int                   `json:"width"`
	Height     int                   `json:"height"`
	EdgePixels int                   `json:"edge_pixels"`
	Edges      *imaging.EncodedImage `json:"edges"`
}

// edges runs preprocessing and edge extraction.
func (s *Server) edges(img image.Image, params detection.DetectionParams) (*imaging.EdgeMap, *imaging.GradientField, error) {
	if err := params.Validate(); err != nil {
		return nil, nil, err
	}
	_, blurred, err := imaging.Prepare(img, params.BlurSigma)
	if err != nil {
		return nil, nil, err
	}
	return imaging.ExtractEdges(blurred, params.LowThreshold, params.HighThreshold, params.Connectivity)
}

func (s *Server) handleCirclesEdgeMap(args json.RawMessage) (interface{}, error) {
	var a circlesEdgeMapArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.resolveImage(a.imageSourceArgs)
	if err != nil {
		return nil, err
	}
	edges, _, err := s.edges(img, s.params(a.edgeParamArgs, voteParamArgs{}, peakParamArgs{}))
	if err != nil {
		return nil, err
	}
	encoded, err := imaging.EncodePNGBase64(edges.Image())
	if err != nil {
		return nil, err
	}
	return &circlesEdgeMapResult{
		Width:      edges.Width,
		Height:     edges.Height,
		EdgePixels: edges.Count(),
		Edges:      encoded,
	}, nil
}

type circlesAccumulatorArgs struct {
	imageSourceArgs
	edgeParamArgs
	voteParamArgs
}

type circlesAccumulatorResult struct {
	Mode       string                `json:"mode"`
	Radii      []int                 `json:"radii"`
	SliceMax   []int                 `json:"slice_max"`
	MaxVotes   int                   `json:"max_votes"`
	TotalVotes int64                 `json:"total_votes"`
	EdgePixels int                   `json:"edge_pixels"`
	Projection *imaging.EncodedImage `json:"projection"`
}

func (s *Server) handleCirclesAccumulator(args json.RawMessage) (interface{}, error) {
	var a circlesAccumulatorArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.resolveImage(a.imageSourceArgs)
	if err != nil {
		return nil, err
	}
	mode, err := s.accumulatorMode(a.AccumulatorMode)
	if err != nil {
		return nil, err
	}
	params := s.params(a.edgeParamArgs, a.voteParamArgs, peakParamArgs{})
	edges, grad, err := s.edges(img, params)
	if err != nil {
		return nil, err
	}

	acc, err := detection.BuildAccumulator(edges, grad, params.RadiusMin, params.RadiusMax, params.RadiusStep, detection.BuildOptions{
		Mode:           mode,
		DenseCellLimit: s.cfg.DenseCellLimit,
		Workers:        s.cfg.Workers,
	})
	if err != nil {
		return nil, err
	}
	projection, err := imaging.EncodePNGBase64(acc.ProjectionImage())
	if err != nil {
		return nil, err
	}
	return &circlesAccumulatorResult{
		Mode:       acc.Mode().String(),
		Radii:      acc.Radii(),
		SliceMax:   acc.SliceMax(),
		MaxVotes:   acc.Max(),
		TotalVotes: acc.Total(),
		EdgePixels: edges.Count(),
		Projection: projection,
	}, nil
}

// === Test Image Handlers ===

type circlesSynthesizeArgs struct {
	Width     int                     `json:"width"`
	Height    int                     `json:"height"`
	Circles   []detection.SceneCircle `json:"circles"`
	Thickness *int                    `json:"thickness"`
}

type circlesSynthesizeResult struct {
	Circles   []detection.SceneCircle `json:"circles"`
	Thickness int                     `json:"thickness"`
	Image     *imaging.EncodedImage   `json:"image"`

	// SuggestedParams is set for the demo scene, whose thin outlines need a
	// lower accumulator threshold than the defaults.
	SuggestedParams *detection.DetectionParams `json:"suggested_params,omitempty"`
}

func (s *Server) handleCirclesSynthesize(args json.RawMessage) (interface{}, error) {
	var a circlesSynthesizeArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Width == 0 {
		a.Width = 500
	}
	if a.Height == 0 {
		a.Height = 500
	}
	demo := len(a.Circles) == 0
	if demo {
		a.Circles = detection.DemoCircles
	}
	thickness := 2
	if a.Thickness != nil {
		thickness = *a.Thickness
	}
	// Compare by division; width*height can overflow int.
	if a.Width > 0 && a.Height > 0 && a.Width > s.cfg.MaxImagePixels/a.Height {
		return nil, fmt.Errorf("%w: %dx%d exceeds the %d pixel limit", detection.ErrInvalidInput, a.Width, a.Height, s.cfg.MaxImagePixels)
	}

	img, err := detection.SyntheticScene(a.Width, a.Height, a.Circles, thickness)
	if err != nil {
		return nil, err
	}
	encoded, err := imaging.EncodePNGBase64(img)
	if err != nil {
		return nil, err
	}
	out := &circlesSynthesizeResult{Circles: a.Circles, Thickness: thickness, Image: encoded}
	if demo && thickness > 0 {
		params := detection.DemoParams()
		out.SuggestedParams = &params
	}
	return out, nil
}

// === Cross-checking Handlers ===

type circlesReferenceArgs struct {
	imageSourceArgs
	edgeParamArgs
	voteParamArgs
	peakParamArgs
	MedianBlur      int      `json:"median_blur"`
	CenterTolerance *float64 `json:"center_tolerance"`
	RadiusTolerance *float64 `json:"radius_tolerance"`
}

type circlesReferenceResult struct {
	Ours      []detection.Circle `json:"ours"`
	Theirs    []detection.Circle `json:"theirs"`
	Reference reference.Params   `json:"reference_params"`
	Report    *reference.Report  `json:"report"`
}

func (s *Server) handleCirclesReference(ctx context.Context, log logrus.FieldLogger, args json.RawMessage) (interface{}, error) {
	var a circlesReferenceArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if !reference.Available {
		return nil, reference.ErrUnavailable
	}
	img, err := s.resolveImage(a.imageSourceArgs)
	if err != nil {
		return nil, err
	}
	params := s.params(a.edgeParamArgs, a.voteParamArgs, a.peakParamArgs)

	ours, _, err := s.detect(ctx, log, img, params, a.AccumulatorMode, nil, false)
	if err != nil {
		return nil, err
	}

	refParams := reference.FromDetection(params)
	refParams.MedianBlur = a.MedianBlur
	theirs, err := reference.HoughCircles(img, refParams)
	if err != nil {
		return nil, err
	}

	tol := reference.DefaultTolerance
	if a.CenterTolerance != nil {
		tol.Center = *a.CenterTolerance
	}
	if a.RadiusTolerance != nil {
		tol.Radius = *a.RadiusTolerance
	}
	report, err := reference.Compare(ours.Circles, theirs, tol)
	if err != nil {
		return nil, err
	}
	return &circlesReferenceResult{
		Ours:      ours.Circles,
		Theirs:    theirs,
		Reference: refParams,
		Report:    report,
	}, nil
}
