// Package detection finds circles in images with the Hough gradient method.
//
// The detector runs a fixed pipeline, each stage consuming the previous
// stage's output:
//
//  1. Preprocessing: grayscale conversion and Gaussian smoothing (imaging.Prepare)
//  2. Edge extraction: Sobel gradients, non-maximum suppression and
//     hysteresis thresholding (imaging.ExtractEdges)
//  3. Accumulation: every edge pixel votes, for every searched radius, for the
//     two candidate centers lying along its gradient (BuildAccumulator)
//  4. Peak extraction: cells above the vote threshold are ordered by strength
//     and deduplicated by center distance (ExtractPeaks)
//
// An optional fifth stage fits each detected circle to its supporting edge
// pixels for sub-pixel accuracy (RefineCircles).
//
// # Basic Usage
//
//	params := detection.DefaultParams()
//	params.RadiusMin, params.RadiusMax = 20, 60
//	d, err := detection.NewDetector(params)
//	if err != nil {
//	    return err
//	}
//	res, err := d.Detect(img)
//
// # Coordinate System
//
// Circle centers and radii are reported in the coordinate space of the input
// image: origin at its Bounds().Min, X rightward, Y downward.
//
// # Determinism
//
// For a given image and parameters, Detect returns bit-identical circles in
// the same order, whatever the worker count or accumulator storage. Ties in
// vote count are broken by smaller radius, then by y, then by x.
//
// # Choosing Parameters
//
//   - Edge thresholds apply to the Sobel magnitude on the 0-255 scale. The
//     usual convention is high = 2 × low (see WithHighThreshold).
//   - A circle of radius r produces at most about 2πr votes at its center;
//     AccumulatorThreshold is typically a fraction of that for the smallest
//     radius of interest.
//   - MinCenterDistance is typically close to RadiusMin: two detections
//     closer than that are treated as the same circle.
//
// # Memory
//
// A dense accumulator needs 4 bytes per (radius, y, x) cell. Above
// DefaultDenseCellLimit cells the detector switches to a sparse map holding
// only cells that received votes.
package detection
