package webpexport

import (
	"errors"
	"image/color"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/deepteams/webpexport/codec"
)

// Policy decides what a failed animation frame does to the export.
type Policy int

const (
	// PolicyBestEffort logs failed frames and keeps going.
	PolicyBestEffort Policy = iota
	// PolicyStrict aborts the export on the first failed frame.
	PolicyStrict
)

// String returns "best-effort" or "strict".
func (p Policy) String() string {
	if p == PolicyStrict {
		return "strict"
	}
	return "best-effort"
}

// Exporter writes layers to WebP files. The zero configuration from New
// uses codec.Default, discards logs and reports no progress.
//
// An Exporter holds no per-export state and may be reused; it is not safe
// for concurrent exports.
type Exporter struct {
	codec      codec.Encoder
	logger     hclog.Logger
	progress   ProgressReporter
	profile    ProfileProvider
	policy     Policy
	background *color.NRGBA
	minimize   bool
	kmax       int
	abort      func() bool
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithCodec selects the encode primitive.
func WithCodec(enc codec.Encoder) Option {
	return func(x *Exporter) { x.codec = enc }
}

// WithLogger sets the logger for frame warnings and muxing failures.
func WithLogger(logger hclog.Logger) Option {
	return func(x *Exporter) { x.logger = logger }
}

// WithProgress reports encode progress to r as a fraction in [0, 1].
func WithProgress(r ProgressReporter) Option {
	return func(x *Exporter) { x.progress = r }
}

// WithProfile attaches an ICC color profile to every export.
func WithProfile(p ProfileProvider) Option {
	return func(x *Exporter) { x.profile = p }
}

// WithPolicy chooses how animation frame failures are handled. The default
// is PolicyBestEffort.
func WithPolicy(p Policy) Option {
	return func(x *Exporter) { x.policy = p }
}

// WithBackground sets the animation background color.
func WithBackground(c color.NRGBA) Option {
	return func(x *Exporter) { x.background = &c }
}

// WithMinimize crops animation frames to their changed area, forcing a full
// frame at least every kmax frames (kmax <= 0 never forces one).
func WithMinimize(kmax int) Option {
	return func(x *Exporter) {
		x.minimize = true
		x.kmax = kmax
	}
}

// WithAbort installs a callback polled during encoding; returning true
// cancels the export with a UserAbort error.
func WithAbort(abort func() bool) Option {
	return func(x *Exporter) { x.abort = abort }
}

// New creates an Exporter.
func New(opts ...Option) *Exporter {
	x := &Exporter{}
	for _, opt := range opts {
		opt(x)
	}
	if x.codec == nil {
		x.codec = codec.Default()
	}
	if x.logger == nil {
		x.logger = hclog.NewNullLogger()
	}
	x.logger = x.logger.Named("export")
	return x
}

// Export writes layers to path. A single layer, or several layers without
// params.Animation, are written as a still image of the layer (respectively
// the primary layer); several layers with params.Animation become an
// animation.
//
// The file is created only when there is something to export. It is removed
// again when the export fails, except for ErrNoFramesEncoded, where the
// empty animation is kept.
func (x *Exporter) Export(path string, src Source, layers []Layer, primary LayerRef, params Params) (err error) {
	if len(layers) == 0 {
		return exportError(ErrNoLayers)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return openError(path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = writeError(path, cerr)
		}
		if err != nil && !errors.Is(err, ErrNoFramesEncoded) {
			if rerr := os.Remove(path); rerr != nil {
				x.logger.Warn("could not remove partial file", "path", path, "error", rerr)
			}
		}
	}()

	if len(layers) > 1 && params.Animation {
		x.logger.Info("exporting animation", "path", path, "layers", len(layers), "policy", x.policy)
		return x.exportAnimation(f, src, layers, params)
	}
	ref := layers[0].Ref
	if len(layers) > 1 {
		ref = primary
	}
	x.logger.Info("exporting still image", "path", path, "layer", ref)
	return x.exportSingle(f, src, ref, params)
}

// ExportImage runs Export and reports the outcome as a success flag plus
// error detail.
func (x *Exporter) ExportImage(path string, src Source, layers []Layer, primary LayerRef, params Params) (bool, *Error) {
	if err := x.Export(path, src, layers, primary, params); err != nil {
		return false, asError(err)
	}
	return true, nil
}

func (x *Exporter) exportSingle(f *os.File, src Source, ref LayerRef, params Params) error {
	if err := x.encodeLayer(f, src, ref, params); err != nil {
		return err
	}
	icc, ok := x.iccProfile()
	if !ok {
		return nil
	}
	return x.spliceProfile(f, icc)
}

// spliceProfile re-reads the streamed file and rewrites it with the ICC
// profile. A file that cannot be muxed is left as it is.
func (x *Exporter) spliceProfile(f *os.File, icc []byte) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return writeError(f.Name(), err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return writeError(f.Name(), err)
	}
	out, err := InjectChunks(data, icc, nil)
	if err != nil {
		x.logger.Warn("color profile not written", "path", f.Name(), "error", err)
		return nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return writeError(f.Name(), err)
	}
	if _, err := f.Write(out); err != nil {
		return writeError(f.Name(), err)
	}
	if err := f.Truncate(int64(len(out))); err != nil {
		return writeError(f.Name(), err)
	}
	return nil
}

func (x *Exporter) exportAnimation(f *os.File, src Source, layers []Layer, params Params) error {
	res, err := x.EncodeAnimation(src, layers, params)
	if res == nil {
		return err
	}
	if _, werr := f.Write(res.Container); werr != nil {
		return writeError(f.Name(), werr)
	}
	if res.Failed > 0 {
		x.logger.Warn("animation written with missing frames", "encoded", res.Encoded, "failed", res.Failed)
	}
	return err
}

func (x *Exporter) iccProfile() ([]byte, bool) {
	if x.profile == nil {
		return nil, false
	}
	icc, ok := x.profile.ICCProfile()
	return icc, ok && len(icc) > 0
}
