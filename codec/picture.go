package codec

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/deepteams/webpexport/internal/container"
	"github.com/deepteams/webpexport/internal/pool"
)

// ErrImportSize is returned when an import buffer does not match the
// picture's geometry.
var ErrImportSize = errors.New("codec: pixel buffer does not match picture size")

// Picture holds the pixels handed to an encoder. Pixels are stored as
// non-premultiplied RGBA; an RGB import fills alpha with 255.
type Picture struct {
	img      *image.NRGBA
	hasAlpha bool
}

// NewPicture allocates a width x height picture. The backing store comes
// from a shared pool and is returned by Free.
func NewPicture(width, height int) (*Picture, error) {
	if width < 1 || height < 1 || width > container.MaxDimension || height > container.MaxDimension {
		return nil, newError(BadDimension, fmt.Errorf("codec: %dx%d picture", width, height))
	}
	pix, err := pool.Get(width * height * 4)
	if err != nil {
		return nil, newError(OutOfMemory, err)
	}
	return &Picture{img: &image.NRGBA{
		Pix:    pix,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}}, nil
}

// PictureFromImage copies img into a new picture. The picture carries alpha
// unless img is opaque.
func PictureFromImage(img image.Image) (*Picture, error) {
	b := img.Bounds()
	pic, err := NewPicture(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	draw.Draw(pic.img, pic.img.Rect, img, b.Min, draw.Src)
	if o, ok := img.(interface{ Opaque() bool }); !ok || !o.Opaque() {
		pic.hasAlpha = true
	}
	return pic, nil
}

// Width returns the picture width in pixels.
func (p *Picture) Width() int { return p.img.Rect.Dx() }

// Height returns the picture height in pixels.
func (p *Picture) Height() int { return p.img.Rect.Dy() }

// HasAlpha reports whether the picture was imported with an alpha channel.
func (p *Picture) HasAlpha() bool { return p.hasAlpha }

// Image exposes the pixels as an image.Image. The result aliases the picture
// and is only valid until Free.
func (p *Picture) Image() *image.NRGBA { return p.img }

// ImportRGB copies packed 3-byte pixels with the given row stride.
func (p *Picture) ImportRGB(buf []byte, stride int) error {
	if err := p.checkImport(buf, stride, 3); err != nil {
		return err
	}
	w, h := p.Width(), p.Height()
	for y := 0; y < h; y++ {
		src := buf[y*stride : y*stride+w*3]
		dst := p.img.Pix[y*p.img.Stride:]
		for x := 0; x < w; x++ {
			dst[x*4] = src[x*3]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 0xff
		}
	}
	p.hasAlpha = false
	return nil
}

// ImportRGBA copies packed 4-byte non-premultiplied pixels with the given
// row stride.
func (p *Picture) ImportRGBA(buf []byte, stride int) error {
	if err := p.checkImport(buf, stride, 4); err != nil {
		return err
	}
	w, h := p.Width(), p.Height()
	for y := 0; y < h; y++ {
		copy(p.img.Pix[y*p.img.Stride:y*p.img.Stride+w*4], buf[y*stride:])
	}
	p.hasAlpha = true
	return nil
}

func (p *Picture) checkImport(buf []byte, stride, bpp int) error {
	if p == nil || p.img == nil || buf == nil {
		return newError(NullParameter, nil)
	}
	w, h := p.Width(), p.Height()
	if stride < w*bpp || len(buf) < (h-1)*stride+w*bpp {
		return fmt.Errorf("%w: %d bytes, stride %d for %dx%dx%d", ErrImportSize, len(buf), stride, w, h, bpp)
	}
	return nil
}

// Free releases the pixel storage. The picture must not be used afterwards.
func (p *Picture) Free() {
	if p == nil || p.img == nil {
		return
	}
	pool.Put(p.img.Pix)
	p.img = nil
}
