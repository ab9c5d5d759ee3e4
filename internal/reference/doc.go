// Package reference compares detection results against an independent
// implementation of the Hough gradient method.
//
// HoughCircles runs OpenCV's detector through gocv. It is only available in
// binaries built with the gocv tag (go build -tags gocv), which needs the
// OpenCV shared libraries at build and run time. Without the tag it returns
// ErrUnavailable.
//
// Compare is pure Go and always available: it pairs two circle lists by
// center and radius distance and reports what matched and what did not.
package reference
