// Package animation implements an incremental animated WebP encoder.
//
// Frames are added one at a time with an explicit timestamp; each frame's
// duration is the distance to the next timestamp, so the sequence is closed
// by a terminating Add(nil, ts) that fixes the last duration. Assemble then
// produces a single animated container:
//
//	enc, err := animation.New(w, h, animation.Options{Codec: codec.Default()})
//	defer enc.Close()
//	for i, pic := range pictures {
//		err = enc.Add(pic, i*100, cfg)
//	}
//	err = enc.Add(nil, len(pictures)*100, cfg)
//	data, err := enc.Assemble()
//
// Each frame is compressed through a codec.Encoder and its bitstream is
// lifted out of the encoder's RIFF output with mux.Demuxer. Consecutive
// identical frames are merged by extending the previous duration; with
// Options.Minimize, frames after the first are cropped to the rectangle
// that changed.
package animation

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/hashicorp/go-hclog"

	"github.com/deepteams/webpexport/codec"
	"github.com/deepteams/webpexport/internal/container"
	"github.com/deepteams/webpexport/mux"
)

var (
	// ErrState is returned when an operation is not valid in the encoder's
	// current state.
	ErrState = errors.New("animation: operation not valid in current state")
	// ErrTimestamp is returned for negative or decreasing timestamps.
	ErrTimestamp = errors.New("animation: timestamp out of order")
	// ErrFrameSize is returned for frames whose size differs from the canvas.
	ErrFrameSize = errors.New("animation: frame size does not match canvas")
)

// Options configures an Encoder.
type Options struct {
	// Codec compresses individual frames. Defaults to codec.Default().
	Codec codec.Encoder

	// LoopCount is the number of times to play the animation; 0 loops forever.
	LoopCount int

	// Background is the canvas background color hint stored in ANIM.
	Background color.NRGBA

	// Minimize crops frames after the first to the changed rectangle.
	Minimize bool

	// Kmax is the maximum distance between full-canvas keyframes when
	// Minimize is set. Zero or negative disables forced keyframes.
	Kmax int

	Logger hclog.Logger
}

type state int

const (
	stateInit state = iota
	stateFrames
	stateFlushed
	stateAssembled
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateFrames:
		return "frames"
	case stateFlushed:
		return "flushed"
	case stateAssembled:
		return "assembled"
	default:
		return "closed"
	}
}

// Stats counts what happened to the frames handed to Add.
type Stats struct {
	Encoded   int // frames written to the container
	Merged    int // frames folded into their predecessor
	Keyframes int // full-canvas frames among Encoded
}

// Encoder is an incremental animation-encoding context. It is not safe for
// concurrent use.
type Encoder struct {
	opts   Options
	logger hclog.Logger
	muxer  *mux.Muxer
	width  int
	height int
	state  state
	hook   codec.ProgressHook

	prevCanvas    *image.NRGBA // canvas after the last committed frame
	lastTimestamp int          // timestamp of the last accepted Add
	frameStart    int          // timestamp at which the last muxed frame starts
	sinceKeyframe int
	stats         Stats
}

// New creates an encoder for a width x height canvas.
func New(width, height int, opts Options) (*Encoder, error) {
	if width < 1 || height < 1 || width > container.MaxDimension || height > container.MaxDimension {
		return nil, fmt.Errorf("animation: invalid canvas %dx%d", width, height)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default()
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	m := mux.NewMuxer()
	m.SetAnimation(true)
	m.SetCanvasSize(width, height)
	m.SetLoopCount(opts.LoopCount)
	m.SetBackgroundColor(PackBackground(opts.Background))
	return &Encoder{
		opts:   opts,
		logger: opts.Logger.Named("animation"),
		muxer:  m,
		width:  width,
		height: height,
	}, nil
}

// PackBackground packs c into the ANIM chunk's ARGB word (stored on disk in
// B, G, R, A byte order).
func PackBackground(c color.NRGBA) uint32 {
	return uint32(c.A)<<24 | uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// UnpackBackground is the inverse of PackBackground.
func UnpackBackground(argb uint32) color.NRGBA {
	return color.NRGBA{R: uint8(argb >> 16), G: uint8(argb >> 8), B: uint8(argb), A: uint8(argb >> 24)}
}

// SetProgressHook installs the hook passed to the codec for subsequent
// frames. A nil hook disables progress reporting.
func (e *Encoder) SetProgressHook(hook codec.ProgressHook) {
	e.hook = hook
}

// Stats returns frame counters accumulated so far.
func (e *Encoder) Stats() Stats {
	return e.stats
}

// Add appends a frame shown from timestampMs until the next frame's
// timestamp. A nil pic terminates the sequence: its timestamp sets the
// duration of the last frame and no further frames are accepted.
//
// A failed frame leaves the encoder usable; the previous frame simply
// stays on screen until the next accepted one.
func (e *Encoder) Add(pic *codec.Picture, timestampMs int, cfg codec.Config) error {
	if e.state != stateInit && e.state != stateFrames {
		return fmt.Errorf("%w: add in state %s", ErrState, e.state)
	}
	if timestampMs < 0 || (e.state == stateFrames && timestampMs < e.lastTimestamp) {
		return fmt.Errorf("%w: %d ms after %d ms", ErrTimestamp, timestampMs, e.lastTimestamp)
	}
	if pic == nil {
		e.closeDuration(timestampMs)
		e.state = stateFlushed
		return nil
	}
	if pic.Width() != e.width || pic.Height() != e.height {
		return fmt.Errorf("%w: %dx%d on %dx%d canvas", ErrFrameSize, pic.Width(), pic.Height(), e.width, e.height)
	}

	curr := pic.Image()
	if e.stats.Encoded > 0 && isCanvasIdentical(e.prevCanvas, curr) {
		e.lastTimestamp = timestampMs
		e.state = stateFrames
		e.stats.Merged++
		e.logger.Trace("merged identical frame", "timestamp_ms", timestampMs)
		return nil
	}

	cfg.Exact = true
	data, fo, err := e.encodeFrame(pic, curr, cfg)
	if err != nil {
		return fmt.Errorf("animation: frame at %d ms: %w", timestampMs, err)
	}

	e.closeDuration(timestampMs)
	if err := e.muxer.AddFrame(data, &fo); err != nil {
		return err
	}
	e.prevCanvas = cloneNRGBA(curr)
	e.frameStart = timestampMs
	e.lastTimestamp = timestampMs
	e.state = stateFrames
	e.stats.Encoded++
	return nil
}

// closeDuration sets the duration of the last muxed frame to end at ts.
func (e *Encoder) closeDuration(ts int) {
	if n := e.muxer.NumFrames(); n > 0 {
		e.muxer.SetFrameDuration(n-1, ts-e.frameStart)
	}
}

// encodeFrame picks between a full keyframe and a cropped sub-frame and
// returns the frame payload with its placement.
func (e *Encoder) encodeFrame(pic *codec.Picture, curr *image.NRGBA, cfg codec.Config) ([]byte, mux.FrameOptions, error) {
	fo := mux.FrameOptions{BlendMode: mux.BlendNone, DisposeMode: mux.DisposeNone}

	keyframe := !e.opts.Minimize || e.stats.Encoded == 0 ||
		(e.opts.Kmax > 0 && e.sinceKeyframe+1 >= e.opts.Kmax)
	if !keyframe {
		rect := snapToEven(findChangedRect(e.prevCanvas, curr)).Intersect(curr.Rect)
		if rect.Dx()*rect.Dy() <= e.width*e.height*9/10 {
			sub, err := codec.PictureFromImage(extractSubImage(curr, rect))
			if err != nil {
				return nil, fo, err
			}
			defer sub.Free()
			data, err := e.encodeBitstream(sub, cfg)
			if err != nil {
				return nil, fo, err
			}
			fo.OffsetX, fo.OffsetY = rect.Min.X, rect.Min.Y
			e.sinceKeyframe++
			return data, fo, nil
		}
	}

	data, err := e.encodeBitstream(pic, cfg)
	if err != nil {
		return nil, fo, err
	}
	e.sinceKeyframe = 0
	e.stats.Keyframes++
	return data, fo, nil
}

// encodeBitstream runs the codec and lifts the frame payload (VP8L, or
// ALPH followed by VP8) out of the resulting file.
func (e *Encoder) encodeBitstream(pic *codec.Picture, cfg codec.Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.opts.Codec.Encode(pic, cfg, &buf, e.hook); err != nil {
		return nil, err
	}
	d, err := mux.NewDemuxer(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("animation: reading encoded frame: %w", err)
	}
	fi, err := d.Frame(0)
	if err != nil {
		return nil, fmt.Errorf("animation: reading encoded frame: %w", err)
	}
	return fi.Payload(), nil
}

// Assemble returns the animated container. It must follow the terminating
// Add(nil, ...) call. An animation without any encoded frame still yields a
// valid container holding only VP8X and ANIM.
func (e *Encoder) Assemble() ([]byte, error) {
	if e.state != stateFlushed {
		return nil, fmt.Errorf("%w: assemble in state %s", ErrState, e.state)
	}
	data, err := e.muxer.Bytes()
	if err != nil {
		return nil, fmt.Errorf("animation: assemble: %w", err)
	}
	e.state = stateAssembled
	e.logger.Debug("assembled animation", "frames", e.stats.Encoded, "merged", e.stats.Merged,
		"keyframes", e.stats.Keyframes, "bytes", len(data))
	return data, nil
}

// Close releases the encoding context. It is safe to call more than once.
func (e *Encoder) Close() error {
	e.muxer = nil
	e.prevCanvas = nil
	e.hook = nil
	e.state = stateClosed
	return nil
}
