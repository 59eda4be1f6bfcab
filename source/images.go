// Package source provides pixel sources for webpexport: in-memory images,
// image files decoded on demand and the composited frames of animated GIFs,
// plus ICC profile providers.
package source

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/deepteams/webpexport"
)

// Images serves layers from decoded images; layer i is Images[i].
type Images []image.Image

// NewImages wraps imgs as a Source.
func NewImages(imgs ...image.Image) Images {
	return Images(imgs)
}

func (s Images) layer(ref webpexport.LayerRef) (image.Image, error) {
	if ref < 0 || int(ref) >= len(s) || s[ref] == nil {
		return nil, fmt.Errorf("%w: %d of %d", ErrNoLayer, ref, len(s))
	}
	return s[ref], nil
}

// Dimensions implements webpexport.Source.
func (s Images) Dimensions(ref webpexport.LayerRef) (int, int, error) {
	img, err := s.layer(ref)
	if err != nil {
		return 0, 0, err
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}

// ColorType implements webpexport.Source.
func (s Images) ColorType(ref webpexport.LayerRef) (webpexport.ColorType, error) {
	img, err := s.layer(ref)
	if err != nil {
		return webpexport.RGBA, err
	}
	return colorTypeOf(img.ColorModel()), nil
}

// ReadPixels implements webpexport.Source.
func (s Images) ReadPixels(ref webpexport.LayerRef, dst *webpexport.PixelBuffer) error {
	img, err := s.layer(ref)
	if err != nil {
		return err
	}
	return readInto(img, dst)
}

// colorTypeOf reports RGB for color models that cannot carry alpha.
func colorTypeOf(m color.Model) webpexport.ColorType {
	if p, ok := m.(color.Palette); ok {
		for _, c := range p {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return webpexport.RGBA
			}
		}
		return webpexport.RGB
	}
	switch m {
	case color.GrayModel, color.Gray16Model, color.YCbCrModel, color.CMYKModel:
		return webpexport.RGB
	}
	return webpexport.RGBA
}

// readInto converts img to non-premultiplied pixels packed into dst.
func readInto(img image.Image, dst *webpexport.PixelBuffer) error {
	b := img.Bounds()
	if dst == nil || dst.Width != b.Dx() || dst.Height != b.Dy() {
		return fmt.Errorf("%w: buffer does not match %dx%d layer", webpexport.ErrBufferSize, b.Dx(), b.Dy())
	}
	if err := dst.Validate(); err != nil {
		return err
	}
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Rect, img, b.Min, draw.Src)
	}
	bpp := dst.BytesPerPixel
	for y := 0; y < dst.Height; y++ {
		src := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+dst.Width*4]
		row := dst.Pix[y*dst.Stride : (y+1)*dst.Stride]
		if bpp == 4 {
			copy(row, src)
			continue
		}
		for x := 0; x < dst.Width; x++ {
			copy(row[x*3:x*3+3], src[x*4:x*4+3])
		}
	}
	return nil
}
