package codec

import (
	"image"
	"io"

	gen2brain "github.com/gen2brain/webp"
)

func init() {
	register("wasm", func(o Options) Encoder {
		if o.Logger != nil {
			o.Logger.Named("wasm").Debug("libwebp binding", "path", WASMPath())
		}
		return WASM{}
	})
}

// WASM encodes with github.com/gen2brain/webp. On unix, darwin and windows
// that package first loads a shared libwebp from the host through purego and
// only falls back to libwebp compiled to WebAssembly (run on wazero) when
// none is found. Build with the nodynamic tag to always use WebAssembly.
// Either way no cgo is needed. Method and Exact are honoured.
type WASM struct{}

// WASMPath reports which libwebp the WASM backend runs: "shared" for a host
// library, "wasm" for the embedded WebAssembly module.
func WASMPath() string {
	if gen2brain.Dynamic() == nil {
		return "shared"
	}
	return "wasm"
}

// Encode implements Encoder.
func (WASM) Encode(pic *Picture, cfg Config, w io.Writer, hook ProgressHook) error {
	return run(compressWASM, pic, cfg, w, hook)
}

func compressWASM(w io.Writer, img *image.NRGBA, cfg Config) error {
	return gen2brain.Encode(w, img, gen2brain.Options{
		Quality:  int(cfg.Quality + 0.5),
		Lossless: cfg.Lossless,
		Method:   cfg.Method,
		Exact:    cfg.Exact,
	})
}
