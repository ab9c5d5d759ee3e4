package reference

import (
	"errors"

	"github.com/ironsheep/hough-circles/internal/detection"
)

// ErrUnavailable is returned by HoughCircles in builds without OpenCV support.
var ErrUnavailable = errors.New("reference detector unavailable: built without the gocv tag")

// Params configures the OpenCV reference detector. The fields mirror the
// arguments of cv::HoughCircles.
type Params struct {
	// DP is the inverse ratio of the accumulator resolution to the image
	// resolution. 1 means the same resolution.
	DP float64 `json:"dp"`

	// MinDist is the minimum distance between detected centers.
	MinDist float64 `json:"min_dist"`

	// CannyHigh is the upper Canny threshold; the lower one is half of it.
	CannyHigh float64 `json:"canny_high"`

	// AccumulatorThreshold is the vote threshold for centers.
	AccumulatorThreshold float64 `json:"accumulator_threshold"`

	MinRadius int `json:"min_radius"`
	MaxRadius int `json:"max_radius"`

	// MedianBlur is the aperture of the median filter applied before
	// detection. Zero disables it; otherwise it must be odd.
	MedianBlur int `json:"median_blur"`
}

// FromDetection maps detector parameters to the closest OpenCV settings.
// OpenCV derives its low Canny threshold as half the high one, so only the
// high threshold carries over. A zero minimum distance becomes 1, the
// smallest value OpenCV accepts.
func FromDetection(p detection.DetectionParams) Params {
	minDist := p.MinCenterDistance
	if minDist < 1 {
		minDist = 1
	}
	return Params{
		DP:                   1,
		MinDist:              minDist,
		CannyHigh:            p.HighThreshold,
		AccumulatorThreshold: float64(p.AccumulatorThreshold),
		MinRadius:            p.RadiusMin,
		MaxRadius:            p.RadiusMax,
	}
}
