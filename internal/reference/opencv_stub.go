//go:build !gocv
// +build !gocv

package reference

import (
	"image"

	"github.com/ironsheep/hough-circles/internal/detection"
)

// Available reports whether HoughCircles is backed by OpenCV in this build.
const Available = false

// HoughCircles returns ErrUnavailable when built without the gocv tag.
func HoughCircles(image.Image, Params) ([]detection.Circle, error) {
	return nil, ErrUnavailable
}
