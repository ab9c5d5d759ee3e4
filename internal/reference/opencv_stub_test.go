//go:build !gocv
// +build !gocv

package reference

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHoughCircles_Unavailable(t *testing.T) {
	assert.False(t, Available)

	_, err := HoughCircles(image.NewGray(image.Rect(0, 0, 4, 4)), Params{})
	assert.True(t, errors.Is(err, ErrUnavailable))
}
