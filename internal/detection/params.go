package detection

import (
	"fmt"
	"math"

	"github.com/ironsheep/hough-circles/internal/imaging"
)

// Error kinds returned by the detector. They are the same values as the ones
// returned by the imaging stages, so errors.Is works across packages.
var (
	ErrInvalidInput  = imaging.ErrInvalidInput
	ErrInvalidConfig = imaging.ErrInvalidConfig
)

// DefaultThresholdRatio is the conventional low/high hysteresis ratio
// (high = 2 × low).
const DefaultThresholdRatio = 0.5

// DetectionParams configures a circle detection run.
//
// Thresholds apply to the Sobel gradient magnitude of 0-255 intensities.
// Radii are in pixels of the input image.
type DetectionParams struct {
	// LowThreshold is the lower hysteresis threshold. Lower values keep more
	// and fainter edges, raising the false-positive risk.
	LowThreshold float64 `json:"low_threshold"`

	// HighThreshold is the upper hysteresis threshold. Edges at or above it
	// always survive.
	HighThreshold float64 `json:"high_threshold"`

	// RadiusMin is the smallest radius searched. Must be at least 1.
	RadiusMin int `json:"radius_min"`

	// RadiusMax is the largest radius searched (inclusive).
	RadiusMax int `json:"radius_max"`

	// RadiusStep is the spacing between searched radii. Smaller steps give
	// finer radius resolution at a roughly linear cost in time and memory.
	RadiusStep int `json:"radius_step"`

	// AccumulatorThreshold is the minimum number of votes for a center to be
	// considered. Raising it reduces false positives but may miss faint circles.
	AccumulatorThreshold int `json:"accumulator_threshold"`

	// MinCenterDistance is the deduplication radius: a candidate whose center
	// is closer than this to an already accepted circle is dropped.
	MinCenterDistance float64 `json:"min_center_distance"`

	// BlurSigma is the Gaussian smoothing sigma. Zero disables smoothing.
	BlurSigma float64 `json:"blur_sigma"`

	// Connectivity is the neighborhood used to link weak edges (4 or 8).
	Connectivity imaging.Connectivity `json:"connectivity"`
}

// DefaultParams returns parameters suited to clean, high-contrast images with
// circles between 10 and 100 pixels in radius.
func DefaultParams() DetectionParams {
	return DetectionParams{
		LowThreshold:         50,
		HighThreshold:        100,
		RadiusMin:            10,
		RadiusMax:            100,
		RadiusStep:           1,
		AccumulatorThreshold: 30,
		MinCenterDistance:    20,
		BlurSigma:            imaging.DefaultBlurSigma,
		Connectivity:         imaging.Connectivity8,
	}
}

// WithHighThreshold returns a copy of p with the high threshold set to high
// and the low threshold derived from DefaultThresholdRatio.
func (p DetectionParams) WithHighThreshold(high float64) DetectionParams {
	p.HighThreshold = high
	p.LowThreshold = high * DefaultThresholdRatio
	return p
}

// Validate checks every ordering and positivity constraint. All violations
// wrap ErrInvalidConfig.
func (p DetectionParams) Validate() error {
	if err := imaging.ValidateThresholds(p.LowThreshold, p.HighThreshold); err != nil {
		return err
	}
	if err := validateRadii(p.RadiusMin, p.RadiusMax, p.RadiusStep); err != nil {
		return err
	}
	if p.AccumulatorThreshold <= 0 {
		return fmt.Errorf("%w: accumulator threshold must be > 0, got %d", ErrInvalidConfig, p.AccumulatorThreshold)
	}
	if err := validateMinDistance(p.MinCenterDistance); err != nil {
		return err
	}
	if p.BlurSigma < 0 || math.IsNaN(p.BlurSigma) || math.IsInf(p.BlurSigma, 0) {
		return fmt.Errorf("%w: blur sigma must be a finite value >= 0, got %v", ErrInvalidConfig, p.BlurSigma)
	}
	if !p.Connectivity.Valid() {
		return fmt.Errorf("%w: connectivity must be 4 or 8, got %d", ErrInvalidConfig, p.Connectivity)
	}
	return nil
}

func validateRadii(min, max, step int) error {
	if min < 1 {
		return fmt.Errorf("%w: radius min must be >= 1, got %d", ErrInvalidConfig, min)
	}
	if min > max {
		return fmt.Errorf("%w: radius min %d exceeds radius max %d", ErrInvalidConfig, min, max)
	}
	if step <= 0 {
		return fmt.Errorf("%w: radius step must be > 0, got %d", ErrInvalidConfig, step)
	}
	return nil
}

func validateMinDistance(d float64) error {
	if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return fmt.Errorf("%w: min center distance must be a finite value >= 0, got %v", ErrInvalidConfig, d)
	}
	return nil
}
