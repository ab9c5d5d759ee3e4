//go:build gocv
// +build gocv

package reference

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ironsheep/hough-circles/internal/detection"
)

// Available reports whether HoughCircles is backed by OpenCV in this build.
const Available = true

// HoughCircles detects circles with OpenCV's Hough gradient implementation.
//
// Results use the coordinate space of img and come back in OpenCV's order
// (strongest accumulator response first). OpenCV does not report vote counts,
// so Votes is always zero.
func HoughCircles(img image.Image, p Params) ([]detection.Circle, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: image is empty", detection.ErrInvalidInput)
	}
	if p.MedianBlur != 0 && p.MedianBlur%2 == 0 {
		return nil, fmt.Errorf("%w: median blur aperture must be odd, got %d", detection.ErrInvalidConfig, p.MedianBlur)
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("%w: converting image: %v", detection.ErrInvalidInput, err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	src := gray
	if p.MedianBlur > 0 {
		blurred := gocv.NewMat()
		defer blurred.Close()
		gocv.MedianBlur(gray, &blurred, p.MedianBlur)
		src = blurred
	}

	circles := gocv.NewMat()
	defer circles.Close()
	gocv.HoughCirclesWithParams(src, &circles, gocv.HoughGradient,
		p.DP, p.MinDist, p.CannyHigh, p.AccumulatorThreshold, p.MinRadius, p.MaxRadius)

	offset := img.Bounds().Min
	out := make([]detection.Circle, 0, circles.Cols())
	for i := 0; i < circles.Cols(); i++ {
		v := circles.GetVecfAt(0, i)
		out = append(out, detection.Circle{
			X:      float64(v[0]) + float64(offset.X),
			Y:      float64(v[1]) + float64(offset.Y),
			Radius: float64(v[2]),
		})
	}
	return out, nil
}
