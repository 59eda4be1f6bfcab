package webpexport

import (
	"fmt"

	"github.com/deepteams/webpexport/animation"
	"github.com/deepteams/webpexport/codec"
)

// defaultFrameGap is the duration given to the last frame when the layer
// timestamps do not suggest one.
const defaultFrameGap = 100

// AnimationResult is the outcome of EncodeAnimation.
type AnimationResult struct {
	// Container is the assembled file, metadata included.
	Container []byte

	Encoded int // frames present in Container
	Merged  int // layers identical to their predecessor
	Failed  int // layers dropped because their frame failed

	// FrameErrors holds one entry per failed layer, in order.
	FrameErrors []error
}

// EncodeAnimation encodes layers as the frames of one animation. The canvas
// takes the size of the first layer; each layer is shown from its
// TimestampMs until the next layer's.
//
// Under PolicyBestEffort a failed frame is logged and skipped. A result is
// returned even when every frame failed, together with ErrNoFramesEncoded.
func (x *Exporter) EncodeAnimation(src Source, layers []Layer, params Params) (*AnimationResult, error) {
	if len(layers) == 0 {
		return nil, exportError(ErrNoLayers)
	}
	width, height, err := src.Dimensions(layers[0].Ref)
	if err != nil {
		return nil, asError(fmt.Errorf("layer %d: %w", layers[0].Ref, err))
	}
	enc, err := animation.New(width, height, animation.Options{
		Codec:    x.codec,
		Minimize: x.minimize,
		Kmax:     x.kmax,
		Logger:   x.logger,
	})
	if err != nil {
		return nil, memoryError(fmt.Errorf("%w: %v", ErrBufferSize, err))
	}
	defer enc.Close()

	cfg := params.Config()
	res := &AnimationResult{}
	n := float64(len(layers))
	for i, l := range layers {
		enc.SetProgressHook(x.progressHook(float64(i)/n, 1/n))
		err := x.addFrame(enc, src, l, width, height, cfg)
		if err == nil {
			continue
		}
		if isFatalFrameError(err) || x.policy == PolicyStrict {
			return nil, asError(err)
		}
		x.logger.Warn("skipping animation frame", "frame", i, "timestamp_ms", l.TimestampMs, "error", err)
		res.Failed++
		res.FrameErrors = append(res.FrameErrors, err)
	}

	if err := enc.Add(nil, terminatorTimestamp(layers), cfg); err != nil {
		return nil, encodeError(err)
	}
	data, err := enc.Assemble()
	if err != nil {
		return nil, encodeError(err)
	}
	stats := enc.Stats()
	res.Encoded, res.Merged = stats.Encoded, stats.Merged

	icc, _ := x.iccProfile()
	res.Container, err = InjectChunks(data, icc, &AnimationParams{
		LoopCount:  LoopCountFor(params.Loop),
		Background: x.background,
	})
	if err != nil {
		x.logger.Warn("animation parameters not written", "error", err)
	}
	if res.Encoded == 0 {
		return res, exportError(ErrNoFramesEncoded)
	}
	return res, nil
}

// addFrame reads one layer and hands it to the animation encoder. The pixel
// buffer is released as soon as it has been imported.
func (x *Exporter) addFrame(enc *animation.Encoder, src Source, l Layer, width, height int, cfg codec.Config) error {
	w, h, err := src.Dimensions(l.Ref)
	if err != nil {
		return fmt.Errorf("layer %d: %w", l.Ref, err)
	}
	if w != width || h != height {
		return fmt.Errorf("layer %d: %w: %dx%d on %dx%d canvas", l.Ref, animation.ErrFrameSize, w, h, width, height)
	}
	pic, err := importLayer(src, l.Ref)
	if err != nil {
		return err
	}
	defer pic.Free()
	return enc.Add(pic, l.TimestampMs, cfg)
}

func importLayer(src Source, ref LayerRef) (*codec.Picture, error) {
	buf, err := readLayer(src, ref)
	if err != nil {
		return nil, err
	}
	defer buf.Release()
	return buf.picture()
}

// terminatorTimestamp closes the last frame one inter-frame gap after the
// latest timestamp, or defaultFrameGap when there is no usable gap.
func terminatorTimestamp(layers []Layer) int {
	latest := 0
	for _, l := range layers {
		latest = max(latest, l.TimestampMs)
	}
	gap := defaultFrameGap
	if n := len(layers); n > 1 {
		if d := layers[n-1].TimestampMs - layers[n-2].TimestampMs; d > 0 {
			gap = d
		}
	}
	return latest + gap
}
