//go:build cgo

package codec

import (
	"image"
	"io"

	chai2010 "github.com/chai2010/webp"
)

func init() {
	register("libwebp", func(Options) Encoder { return Libwebp{} })
}

// Libwebp encodes with the reference C library through cgo.
type Libwebp struct{}

// Encode implements Encoder.
func (Libwebp) Encode(pic *Picture, cfg Config, w io.Writer, hook ProgressHook) error {
	return run(compressLibwebp, pic, cfg, w, hook)
}

func compressLibwebp(w io.Writer, img *image.NRGBA, cfg Config) error {
	// chai2010 premultiplies every image type except *image.RGBA, whose
	// bytes go to libwebp untouched. libwebp expects straight alpha, so the
	// NRGBA pixels are passed under an RGBA header.
	straight := &image.RGBA{Pix: img.Pix, Stride: img.Stride, Rect: img.Rect}
	return chai2010.Encode(w, straight, &chai2010.Options{
		Lossless: cfg.Lossless,
		Quality:  cfg.Quality,
		Exact:    cfg.Exact,
	})
}
