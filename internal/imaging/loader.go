package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// ImageCache holds decoded images keyed by an opaque identifier so that a
// client can upload an image once and run several detections against it.
//
// ImageCache is safe for concurrent use by multiple goroutines.
//
// # Memory Management
//
// Cached images remain in memory until explicitly removed via Evict() or Clear().
// For long-running processes handling many images, consider periodic cleanup to
// prevent unbounded memory growth.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]*DecodedImage
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]*DecodedImage),
	}
}

// Put stores a decoded image and returns the identifier assigned to it.
func (c *ImageCache) Put(img *DecodedImage) string {
	id := uuid.NewString()
	c.mu.Lock()
	c.images[id] = img
	c.mu.Unlock()
	return id
}

// Get returns the image stored under id.
func (c *ImageCache) Get(id string) (*DecodedImage, error) {
	c.mu.RLock()
	img, ok := c.images[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown image id: %s", ErrInvalidInput, id)
	}
	return img, nil
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Clear removes all images from the cache, freeing the associated memory.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]*DecodedImage)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache.
// If the id is not in the cache, this method does nothing.
func (c *ImageCache) Evict(id string) {
	c.mu.Lock()
	delete(c.images, id)
	c.mu.Unlock()
}

// DecodedImage is an image together with metadata about its encoding.
type DecodedImage struct {
	Image image.Image
	Info  ImageInfo
}

// ImageInfo contains metadata about an encoded image.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the format name reported by the decoder: "png", "jpeg",
	// "gif", "bmp", "tiff" or "webp".
	Format string `json:"format"`

	// ColorDepth indicates the bit depth per channel: "8-bit" or "16-bit".
	ColorDepth string `json:"color_depth"`

	// HasAlpha indicates whether the image has an alpha (transparency) channel.
	HasAlpha bool `json:"has_alpha"`

	// SizeBytes is the size of the encoded image in bytes.
	SizeBytes int `json:"size_bytes"`
}

// Decode decodes an encoded image held in memory.
//
// Parameters:
//   - data: The encoded image bytes.
//   - maxPixels: Upper bound on width*height; zero disables the check. The
//     bound is enforced from the header before the pixels are decoded.
//
// Returns ErrInvalidInput when the data is empty, not a supported format, too
// large, or decodes to a zero-size image.
//
// # Color Depth Detection
//
// Color depth is determined by the Go image type:
//   - *image.RGBA64, *image.NRGBA64, *image.Gray16 -> "16-bit"
//   - All other types -> "8-bit"
func Decode(data []byte, maxPixels int) (*DecodedImage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image data", ErrInvalidInput)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read image header: %v", ErrInvalidInput, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: image has zero size %dx%d", ErrInvalidInput, cfg.Width, cfg.Height)
	}
	if maxPixels > 0 && cfg.Width*cfg.Height > maxPixels {
		return nil, fmt.Errorf("%w: image %dx%d exceeds the %d pixel limit", ErrInvalidInput, cfg.Width, cfg.Height, maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %v", ErrInvalidInput, err)
	}

	hasAlpha := false
	colorDepth := "8-bit"
	switch img.(type) {
	case *image.RGBA, *image.NRGBA:
		hasAlpha = true
	case *image.RGBA64, *image.NRGBA64:
		hasAlpha = true
		colorDepth = "16-bit"
	case *image.Gray16:
		colorDepth = "16-bit"
	}

	bounds := img.Bounds()
	return &DecodedImage{
		Image: img,
		Info: ImageInfo{
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
			Format:     format,
			ColorDepth: colorDepth,
			HasAlpha:   hasAlpha,
			SizeBytes:  len(data),
		},
	}, nil
}

// DecodeBase64 decodes a base64 string (standard alphabet, optionally
// prefixed with a "data:<mime>;base64," URI header) into an image.
func DecodeBase64(encoded string, maxPixels int) (*DecodedImage, error) {
	if i := strings.Index(encoded, ";base64,"); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 image data: %v", ErrInvalidInput, err)
	}
	return Decode(data, maxPixels)
}
