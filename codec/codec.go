package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/deepteams/webpexport/internal/container"
)

// ProgressHook receives encode progress as a percentage in [0, 100].
// Returning false aborts the encode with UserAbort.
type ProgressHook func(percent int) bool

// Encoder is the encode primitive: it compresses pic according to cfg and
// streams a complete WebP file into w.
//
// Output reaches w in contiguous chunks of at most ChunkSize bytes. A write
// error aborts with BadWrite. hook may be nil.
type Encoder interface {
	Encode(pic *Picture, cfg Config, w io.Writer, hook ProgressHook) error
}

// EncoderFunc adapts an ordinary function to the Encoder interface.
type EncoderFunc func(pic *Picture, cfg Config, w io.Writer, hook ProgressHook) error

// Encode calls f(pic, cfg, w, hook).
func (f EncoderFunc) Encode(pic *Picture, cfg Config, w io.Writer, hook ProgressHook) error {
	return f(pic, cfg, w, hook)
}

// ChunkSize is the largest slice handed to the output writer in one call.
const ChunkSize = 64 << 10

// MaxOutputSize is the largest file a RIFF container can describe.
const MaxOutputSize = int64(container.MaxRIFFSize) + container.ChunkHeaderSize

// compressFunc is the library-specific step: it encodes img into a complete
// WebP file.
type compressFunc func(w io.Writer, img *image.NRGBA, cfg Config) error

// encodeProgress marks the point at which the library call has returned;
// the remaining share is spent streaming the output.
const encodeProgress = 50

// run wraps a library call with the checks, alpha handling, progress
// reporting and chunked output that every backend shares.
func run(compress compressFunc, pic *Picture, cfg Config, w io.Writer, hook ProgressHook) error {
	if pic == nil || pic.img == nil || w == nil {
		return newError(NullParameter, nil)
	}
	if err := cfg.Validate(); err != nil {
		return newError(InvalidConfiguration, err)
	}
	cfg = cfg.Sanitize()
	width, height := pic.Width(), pic.Height()
	if width < 1 || height < 1 || width > container.MaxDimension || height > container.MaxDimension {
		return newError(BadDimension, fmt.Errorf("codec: %dx%d picture", width, height))
	}
	if !report(hook, 0) {
		return newError(UserAbort, nil)
	}

	img := pic.img
	if !cfg.Lossless && pic.hasAlpha {
		img = reduceAlpha(img, cfg.AlphaQuality)
	}

	var buf bytes.Buffer
	if err := compress(&buf, img, cfg); err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			return err
		}
		return newError(Unknown, err)
	}
	if !report(hook, encodeProgress) {
		return newError(UserAbort, nil)
	}
	if int64(buf.Len()) > MaxOutputSize {
		return newError(FileTooBig, nil)
	}
	return stream(w, buf.Bytes(), hook)
}

// stream delivers out to w in ChunkSize pieces, reporting progress after
// each piece.
func stream(w io.Writer, out []byte, hook ProgressHook) error {
	total := len(out)
	for written := 0; written < total; {
		n := min(ChunkSize, total-written)
		if _, err := w.Write(out[written : written+n]); err != nil {
			return newError(BadWrite, err)
		}
		written += n
		if !report(hook, encodeProgress+(100-encodeProgress)*written/total) {
			return newError(UserAbort, nil)
		}
	}
	return nil
}

func report(hook ProgressHook, percent int) bool {
	return hook == nil || hook(percent)
}
