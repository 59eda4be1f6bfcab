package codec

import (
	"image"
	"io"
	"sync"

	"github.com/HugoSmits86/nativewebp"
	"github.com/hashicorp/go-hclog"
)

func init() {
	register("native", func(o Options) Encoder { return NewNative(o.Logger) })
}

// Native is a pure Go encoder. It only produces lossless VP8L; lossy
// requests are encoded losslessly.
type Native struct {
	logger hclog.Logger
	once   sync.Once
}

// NewNative returns a Native encoder that reports the lossy fallback on
// logger. A nil logger discards it.
func NewNative(logger hclog.Logger) *Native {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Native{logger: logger.Named("native")}
}

// Encode implements Encoder.
func (n *Native) Encode(pic *Picture, cfg Config, w io.Writer, hook ProgressHook) error {
	if !cfg.Lossless {
		n.once.Do(func() {
			n.logger.Warn("lossy encoding not supported, encoding losslessly", "quality", cfg.Quality)
		})
		// The alpha plane is kept exact as well.
		cfg.Lossless = true
	}
	return run(compressNative, pic, cfg, w, hook)
}

func compressNative(w io.Writer, img *image.NRGBA, _ Config) error {
	return nativewebp.Encode(w, img, nil)
}
