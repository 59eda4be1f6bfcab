package codec

import (
	"image"
	"io"

	gowebp "github.com/deepteams/webp"
)

func init() {
	register("go", func(Options) Encoder { return PureGo{} })
}

// PureGo encodes with a pure Go VP8/VP8L encoder (github.com/deepteams/webp).
// It is the only backend that applies the preset tuning in Config.
type PureGo struct{}

// Encode implements Encoder.
func (PureGo) Encode(pic *Picture, cfg Config, w io.Writer, hook ProgressHook) error {
	return run(compressPureGo, pic, cfg, w, hook)
}

func compressPureGo(w io.Writer, img *image.NRGBA, cfg Config) error {
	return gowebp.Encode(w, img, pureGoOptions(cfg))
}

// pureGoOptions starts from the library's own preset table and overlays the
// tuning carried in cfg. Alpha reduction has already happened in run.
func pureGoOptions(cfg Config) *gowebp.EncoderOptions {
	opts := gowebp.OptionsForPreset(gowebp.Preset(cfg.Preset), cfg.Quality)
	opts.Lossless = cfg.Lossless
	opts.Method = cfg.Method
	opts.Exact = cfg.Exact
	opts.SNSStrength = cfg.SNSStrength
	opts.FilterStrength = cfg.FilterStrength
	opts.FilterSharpness = cfg.FilterSharpness
	opts.Segments = cfg.Segments
	return opts
}
