package webpexport

import (
	"fmt"

	"github.com/deepteams/webpexport/codec"
	"github.com/deepteams/webpexport/internal/container"
	"github.com/deepteams/webpexport/internal/pool"
)

// LayerRef identifies a layer within a Source.
type LayerRef int

// Layer is one entry of an export. TimestampMs is the time at which the
// layer starts to show when exported as an animation frame; it is ignored
// for still images.
type Layer struct {
	Ref         LayerRef
	TimestampMs int
}

// ColorType is the pixel layout of a layer.
type ColorType int

const (
	RGB ColorType = iota
	RGBA
)

// BytesPerPixel returns 3 for RGB and 4 for RGBA.
func (c ColorType) BytesPerPixel() int {
	if c == RGB {
		return 3
	}
	return 4
}

// String returns "RGB" or "RGBA".
func (c ColorType) String() string {
	if c == RGB {
		return "RGB"
	}
	return "RGBA"
}

// Source is the host's view of its layers. Implementations live in the
// source package.
type Source interface {
	// Dimensions returns the pixel size of a layer.
	Dimensions(ref LayerRef) (width, height int, err error)
	// ColorType reports whether the layer carries alpha.
	ColorType(ref LayerRef) (ColorType, error)
	// ReadPixels fills dst, which has the layer's size and color type.
	ReadPixels(ref LayerRef, dst *PixelBuffer) error
}

// ProfileProvider supplies an optional ICC color profile.
type ProfileProvider interface {
	ICCProfile() ([]byte, bool)
}

// ProgressReporter receives export progress as a fraction in [0, 1].
type ProgressReporter interface {
	ReportProgress(fraction float64)
}

// ProgressFunc adapts a function to ProgressReporter.
type ProgressFunc func(fraction float64)

// ReportProgress calls f(fraction).
func (f ProgressFunc) ReportProgress(fraction float64) { f(fraction) }

// PixelBuffer is a packed block of pixels with no row padding.
type PixelBuffer struct {
	Width         int
	Height        int
	BytesPerPixel int
	Stride        int
	Pix           []byte

	pooled bool
}

// NewPixelBuffer allocates a zeroed buffer for a width x height layer of
// the given color type. The buffer must be handed back with Release.
func NewPixelBuffer(width, height int, ct ColorType) (*PixelBuffer, error) {
	bpp := ct.BytesPerPixel()
	if width < 1 || height < 1 || width > MaxDimension || height > MaxDimension {
		return nil, memoryError(fmt.Errorf("%w: %dx%d", ErrBufferSize, width, height))
	}
	pix, err := pool.Get(width * height * bpp)
	if err != nil {
		return nil, memoryError(fmt.Errorf("%w: %v", ErrBufferSize, err))
	}
	return &PixelBuffer{
		Width:         width,
		Height:        height,
		BytesPerPixel: bpp,
		Stride:        width * bpp,
		Pix:           pix,
		pooled:        true,
	}, nil
}

// MaxDimension is the largest width or height a WebP image can have.
const MaxDimension = container.MaxDimension

// Validate checks the buffer geometry before it is imported.
func (b *PixelBuffer) Validate() error {
	switch {
	case b == nil || b.Pix == nil:
		return fmt.Errorf("%w: nil buffer", ErrBufferSize)
	case b.Width < 1 || b.Height < 1:
		return fmt.Errorf("%w: %dx%d", ErrBufferSize, b.Width, b.Height)
	case b.BytesPerPixel != 3 && b.BytesPerPixel != 4:
		return fmt.Errorf("%w: %d bytes per pixel", ErrBufferSize, b.BytesPerPixel)
	case b.Stride != b.Width*b.BytesPerPixel:
		return fmt.Errorf("%w: stride %d for width %d", ErrBufferSize, b.Stride, b.Width)
	case len(b.Pix) != b.Width*b.Height*b.BytesPerPixel:
		return fmt.Errorf("%w: %d bytes for %dx%dx%d", ErrBufferSize, len(b.Pix), b.Width, b.Height, b.BytesPerPixel)
	}
	return nil
}

// ColorType derives the color type from BytesPerPixel.
func (b *PixelBuffer) ColorType() ColorType {
	if b.BytesPerPixel == 3 {
		return RGB
	}
	return RGBA
}

// Release returns pooled storage. It is safe to call more than once.
func (b *PixelBuffer) Release() {
	if b == nil || b.Pix == nil {
		return
	}
	if b.pooled {
		pool.Put(b.Pix)
	}
	b.Pix = nil
}

// picture imports the buffer into a new codec picture. The picture must be
// freed by the caller.
func (b *PixelBuffer) picture() (*codec.Picture, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	pic, err := codec.NewPicture(b.Width, b.Height)
	if err != nil {
		return nil, err
	}
	if b.BytesPerPixel == 3 {
		err = pic.ImportRGB(b.Pix, b.Stride)
	} else {
		err = pic.ImportRGBA(b.Pix, b.Stride)
	}
	if err != nil {
		pic.Free()
		return nil, err
	}
	return pic, nil
}
