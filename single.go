package webpexport

import (
	"fmt"
	"io"

	"github.com/deepteams/webpexport/codec"
)

// EncodeSingleFrame encodes buf as a still image and streams the file into
// w. ct selects RGB or RGBA import and must agree with the buffer layout.
// The caller keeps ownership of buf.
//
// On failure the bytes already written to w are not a valid image.
func (x *Exporter) EncodeSingleFrame(w io.Writer, buf *PixelBuffer, ct ColorType, params Params) error {
	if buf != nil && buf.BytesPerPixel != ct.BytesPerPixel() {
		return memoryError(fmt.Errorf("%w: %s layer with %d bytes per pixel", ErrBufferSize, ct, buf.BytesPerPixel))
	}
	pic, err := buf.picture()
	if err != nil {
		return asError(err)
	}
	defer pic.Free()

	if err := x.codec.Encode(pic, params.Config(), w, x.progressHook(0, 1)); err != nil {
		return encodeError(err)
	}
	return nil
}

// encodeLayer reads one layer from src and encodes it as a still image.
func (x *Exporter) encodeLayer(w io.Writer, src Source, ref LayerRef, params Params) error {
	buf, err := readLayer(src, ref)
	if err != nil {
		return asError(err)
	}
	defer buf.Release()
	return x.EncodeSingleFrame(w, buf, buf.ColorType(), params)
}

// readLayer allocates a buffer matching the layer and fills it from src.
func readLayer(src Source, ref LayerRef) (*PixelBuffer, error) {
	width, height, err := src.Dimensions(ref)
	if err != nil {
		return nil, fmt.Errorf("layer %d: %w", ref, err)
	}
	ct, err := src.ColorType(ref)
	if err != nil {
		return nil, fmt.Errorf("layer %d: %w", ref, err)
	}
	buf, err := NewPixelBuffer(width, height, ct)
	if err != nil {
		return nil, err
	}
	if err := src.ReadPixels(ref, buf); err != nil {
		buf.Release()
		return nil, fmt.Errorf("layer %d: %w", ref, err)
	}
	return buf, nil
}

// progressHook maps codec progress onto [base, base+span] of the overall
// export and polls the abort callback.
func (x *Exporter) progressHook(base, span float64) codec.ProgressHook {
	return func(percent int) bool {
		if x.progress != nil {
			x.progress.ReportProgress(base + span*float64(percent)/100)
		}
		return x.abort == nil || !x.abort()
	}
}
