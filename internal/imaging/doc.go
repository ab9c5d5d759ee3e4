// Package imaging provides the raster stages of the circle detector.
//
// This package turns an arbitrary image.Image into the inputs of the Hough
// voting stage: a grayscale raster, its Gaussian-smoothed copy, a binary edge
// map and the Sobel gradient field the edges were derived from. It also holds
// the in-memory decoding, cropping and PNG encoding helpers used by the server.
//
// # Coordinate System
//
// Rasters produced here (Gray, EdgeMap, GradientField) always have their
// origin at (0, 0), whatever the bounds of the source image:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel), growing downward
//
// Callers translate back to image coordinates by adding Bounds().Min.
//
// # Intensity Scale
//
// Grayscale values use the 0-255 scale of 8-bit images and are stored as
// float64. Gradient magnitudes are raw Sobel responses on that scale, so a
// sharp black-to-white step yields about 1020.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Every other function is a
// pure function of its arguments and may be called concurrently. Prepare and
// the gradient computation split work across goroutines by row ranges; their
// output does not depend on the number of goroutines.
//
// # Error Handling
//
// Functions return errors wrapping one of two sentinels:
//   - ErrInvalidInput: nil or zero-size images, undecodable data, bad regions
//   - ErrInvalidConfig: negative sigma, bad hysteresis thresholds or
//     connectivity
package imaging
