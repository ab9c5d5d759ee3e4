package imaging

import "errors"

// Error kinds shared by every stage of the detection pipeline.
//
// Callers should test for them with errors.Is; the returned errors are always
// wrapped with a description of the offending value.
var (
	// ErrInvalidInput reports a zero-dimension, nil, or otherwise malformed
	// image or raster.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig reports parameter values that violate an ordering or
	// positivity constraint.
	ErrInvalidConfig = errors.New("invalid config")
)
