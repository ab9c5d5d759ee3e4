package detection

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
)

// SceneCircle describes a circle to draw in a synthetic scene.
type SceneCircle struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Radius int `json:"radius"`
}

// DemoCircles are the five outline circles of the demo scene.
var DemoCircles = []SceneCircle{
	{X: 100, Y: 100, Radius: 30},
	{X: 250, Y: 250, Radius: 50},
	{X: 400, Y: 150, Radius: 25},
	{X: 150, Y: 350, Radius: 40},
	{X: 350, Y: 400, Radius: 35},
}

// SyntheticScene draws black circles on a white canvas.
//
// A thickness of zero draws filled disks (every pixel whose center is within
// the radius). A positive thickness draws outlines: pixels whose distance to
// the center is within thickness/2 of the radius.
func SyntheticScene(width, height int, circles []SceneCircle, thickness int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: scene size must be positive, got %dx%d", ErrInvalidInput, width, height)
	}
	if thickness < 0 {
		return nil, fmt.Errorf("%w: thickness must be >= 0, got %d", ErrInvalidConfig, thickness)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	half := float64(thickness) / 2
	for _, c := range circles {
		r := float64(c.Radius)
		reach := c.Radius + thickness + 1
		for y := max(0, c.Y-reach); y < min(height, c.Y+reach+1); y++ {
			for x := max(0, c.X-reach); x < min(width, c.X+reach+1); x++ {
				d := math.Hypot(float64(x-c.X), float64(y-c.Y))
				inside := d <= r
				if thickness > 0 {
					inside = math.Abs(d-r) <= half
				}
				if inside {
					img.Set(x, y, color.Black)
				}
			}
		}
	}
	return img, nil
}

// DemoScene returns the 500x500 demo image with DemoCircles drawn as
// 2-pixel outlines.
func DemoScene() *image.RGBA {
	img, _ := SyntheticScene(500, 500, DemoCircles, 2)
	return img
}

// DemoParams returns parameters tuned for DemoScene. A 2-pixel outline has an
// inner and an outer edge whose votes land in neighbouring radius slices, so
// each peak collects roughly half the votes of a filled disk of the same size.
func DemoParams() DetectionParams {
	p := DefaultParams()
	p.RadiusMin = 20
	p.RadiusMax = 60
	p.AccumulatorThreshold = 20
	return p
}
