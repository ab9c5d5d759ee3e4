package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Crop extracts a rectangular region of interest from an image.
//
// Unlike a plain copy, the returned image keeps the coordinates of the source:
// its bounds are exactly (x1,y1)-(x2,y2), so anything detected in it is
// reported in the coordinate space of the full image.
func Crop(img image.Image, x1, y1, x2, y2 int) (*image.NRGBA, error) {
	bounds := img.Bounds()

	// Validate coordinates
	if x1 < bounds.Min.X || y1 < bounds.Min.Y || x2 > bounds.Max.X || y2 > bounds.Max.Y {
		return nil, fmt.Errorf("%w: crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			ErrInvalidInput, x1, y1, x2, y2, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}
	if x1 >= x2 || y1 >= y2 {
		return nil, fmt.Errorf("%w: invalid crop region: x1 must be < x2, y1 must be < y2", ErrInvalidInput)
	}

	rect := image.Rect(x1, y1, x2, y2)
	cropped := imaging.Crop(img, rect)
	cropped.Rect = rect
	return cropped, nil
}

// CropQuadrant extracts a named region of an image: top-left, top-right,
// bottom-left, bottom-right, top-half, bottom-half, left-half, right-half or
// center (the middle 50% in each direction).
func CropQuadrant(img image.Image, region string) (*image.NRGBA, error) {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	midX := w / 2
	midY := h / 2

	var x1, y1, x2, y2 int

	switch region {
	case "top-left":
		x1, y1, x2, y2 = 0, 0, midX, midY
	case "top-right":
		x1, y1, x2, y2 = midX, 0, w, midY
	case "bottom-left":
		x1, y1, x2, y2 = 0, midY, midX, h
	case "bottom-right":
		x1, y1, x2, y2 = midX, midY, w, h
	case "top-half":
		x1, y1, x2, y2 = 0, 0, w, midY
	case "bottom-half":
		x1, y1, x2, y2 = 0, midY, w, h
	case "left-half":
		x1, y1, x2, y2 = 0, 0, midX, h
	case "right-half":
		x1, y1, x2, y2 = midX, 0, w, h
	case "center":
		qW := w / 4
		qH := h / 4
		x1, y1, x2, y2 = qW, qH, w-qW, h-qH
	default:
		return nil, fmt.Errorf("%w: unknown region: %s", ErrInvalidInput, region)
	}

	origin := bounds.Min
	return Crop(img, origin.X+x1, origin.Y+y1, origin.X+x2, origin.Y+y2)
}
