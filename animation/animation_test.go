package animation

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"io"
	"testing"

	xwebp "golang.org/x/image/webp"

	"github.com/deepteams/webpexport/codec"
	"github.com/deepteams/webpexport/internal/container"
	"github.com/deepteams/webpexport/mux"
)

// fakeCodec emits a minimal VP8L file whose header carries the picture size,
// recording the size of every picture it was asked to encode.
type fakeCodec struct {
	calls []image.Rectangle
	cfgs  []codec.Config
	fail  map[int]error // call index -> error
}

func (f *fakeCodec) Encode(pic *codec.Picture, cfg codec.Config, w io.Writer, hook codec.ProgressHook) error {
	idx := len(f.calls)
	f.calls = append(f.calls, pic.Image().Rect)
	f.cfgs = append(f.cfgs, cfg)
	if err := f.fail[idx]; err != nil {
		return err
	}
	bs := make([]byte, 5)
	bs[0] = container.VP8LMagicByte
	binary.LittleEndian.PutUint32(bs[1:], uint32(pic.Width()-1)|uint32(pic.Height()-1)<<14)
	m := mux.NewMuxer()
	if err := m.AddFrame(bs, nil); err != nil {
		return err
	}
	return m.Assemble(w)
}

func solidNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func picture(t *testing.T, img *image.NRGBA) *codec.Picture {
	t.Helper()
	pic, err := codec.PictureFromImage(img)
	if err != nil {
		t.Fatalf("PictureFromImage: %v", err)
	}
	t.Cleanup(pic.Free)
	return pic
}

func newEncoder(t *testing.T, w, h int, opts Options) *Encoder {
	t.Helper()
	enc, err := New(w, h, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { enc.Close() })
	return enc
}

func mustAdd(t *testing.T, enc *Encoder, pic *codec.Picture, ts int) {
	t.Helper()
	if err := enc.Add(pic, ts, codec.DefaultConfig()); err != nil {
		t.Fatalf("Add(ts=%d): %v", ts, err)
	}
}

func demux(t *testing.T, data []byte) *mux.Demuxer {
	t.Helper()
	d, err := mux.NewDemuxer(data)
	if err != nil {
		t.Fatalf("NewDemuxer: %v", err)
	}
	return d
}

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

func TestDurationsFromTimestamps(t *testing.T) {
	fc := &fakeCodec{}
	enc := newEncoder(t, 8, 8, Options{Codec: fc, LoopCount: 1})

	mustAdd(t, enc, picture(t, solidNRGBA(8, 8, red)), 0)
	mustAdd(t, enc, picture(t, solidNRGBA(8, 8, blue)), 40)
	mustAdd(t, enc, picture(t, solidNRGBA(8, 8, red)), 100)
	mustAdd(t, enc, nil, 250)

	data, err := enc.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	d := demux(t, data)
	if d.LoopCount() != 1 {
		t.Errorf("LoopCount = %d, want 1", d.LoopCount())
	}
	want := []int{40, 60, 150}
	if d.NumFrames() != len(want) {
		t.Fatalf("NumFrames = %d, want %d", d.NumFrames(), len(want))
	}
	for i, dur := range want {
		fi, _ := d.Frame(i)
		if fi.Duration != dur {
			t.Errorf("frame %d duration = %d, want %d", i, fi.Duration, dur)
		}
	}
	for i, cfg := range fc.cfgs {
		if !cfg.Exact {
			t.Errorf("frame %d encoded without Exact", i)
		}
	}
}

func TestIdenticalFramesMerged(t *testing.T) {
	fc := &fakeCodec{}
	enc := newEncoder(t, 6, 6, Options{Codec: fc})
	frame := picture(t, solidNRGBA(6, 6, red))

	mustAdd(t, enc, frame, 0)
	mustAdd(t, enc, frame, 50)
	mustAdd(t, enc, frame, 100)
	mustAdd(t, enc, nil, 150)

	if len(fc.calls) != 1 {
		t.Fatalf("codec calls = %d, want 1", len(fc.calls))
	}
	if s := enc.Stats(); s.Encoded != 1 || s.Merged != 2 {
		t.Errorf("stats = %+v", s)
	}
	data, err := enc.Assemble()
	if err != nil {
		t.Fatal(err)
	}
	fi, _ := demux(t, data).Frame(0)
	if fi.Duration != 150 {
		t.Errorf("merged duration = %d, want 150", fi.Duration)
	}
}

func TestMinimizeCropsToChangedRect(t *testing.T) {
	fc := &fakeCodec{}
	enc := newEncoder(t, 20, 20, Options{Codec: fc, Minimize: true})

	base := solidNRGBA(20, 20, red)
	changed := cloneNRGBA(base)
	for y := 5; y < 8; y++ {
		for x := 3; x < 9; x++ {
			changed.SetNRGBA(x, y, blue)
		}
	}
	mustAdd(t, enc, picture(t, base), 0)
	mustAdd(t, enc, picture(t, changed), 100)
	mustAdd(t, enc, nil, 200)

	if len(fc.calls) != 2 {
		t.Fatalf("codec calls = %d, want 2", len(fc.calls))
	}
	// (3,5)-(9,8) snaps to (2,4)-(9,8).
	if got := fc.calls[1]; got.Dx() != 7 || got.Dy() != 4 {
		t.Errorf("sub-frame size = %dx%d, want 7x4", got.Dx(), got.Dy())
	}
	data, err := enc.Assemble()
	if err != nil {
		t.Fatal(err)
	}
	fi, _ := demux(t, data).Frame(1)
	if fi.OffsetX != 2 || fi.OffsetY != 4 || fi.Width != 7 || fi.Height != 4 {
		t.Errorf("sub-frame placement = %+v", fi)
	}
	if fi.BlendMode != mux.BlendNone {
		t.Error("sub-frame must not blend")
	}
}

func TestKmaxForcesKeyframes(t *testing.T) {
	fc := &fakeCodec{}
	enc := newEncoder(t, 10, 10, Options{Codec: fc, Minimize: true, Kmax: 2})

	for i := 0; i < 4; i++ {
		img := solidNRGBA(10, 10, red)
		img.SetNRGBA(i, i, blue)
		mustAdd(t, enc, picture(t, img), i*10)
	}
	mustAdd(t, enc, nil, 40)
	// Frames 0 and 2 are keyframes, 1 and 3 are cropped.
	if s := enc.Stats(); s.Keyframes != 2 || s.Encoded != 4 {
		t.Errorf("stats = %+v, want 2 keyframes of 4", s)
	}
}

func TestFrameErrorsAreRecoverable(t *testing.T) {
	abort := &codec.Error{Code: codec.UserAbort}
	fc := &fakeCodec{fail: map[int]error{1: &codec.Error{Code: codec.BadDimension}}}
	enc := newEncoder(t, 4, 4, Options{Codec: fc})

	mustAdd(t, enc, picture(t, solidNRGBA(4, 4, red)), 0)
	err := enc.Add(picture(t, solidNRGBA(4, 4, blue)), 30, codec.DefaultConfig())
	if !errors.Is(err, &codec.Error{Code: codec.BadDimension}) {
		t.Fatalf("err = %v, want BadDimension", err)
	}
	if errors.Is(err, abort) {
		t.Error("unexpected UserAbort match")
	}
	mustAdd(t, enc, picture(t, solidNRGBA(4, 4, color.NRGBA{G: 255, A: 255})), 60)
	mustAdd(t, enc, nil, 90)

	data, err := enc.Assemble()
	if err != nil {
		t.Fatal(err)
	}
	d := demux(t, data)
	if d.NumFrames() != 2 {
		t.Fatalf("NumFrames = %d, want 2", d.NumFrames())
	}
	f0, _ := d.Frame(0)
	if f0.Duration != 60 {
		t.Errorf("frame 0 duration = %d, want 60 (covers the failed frame)", f0.Duration)
	}
}

func TestZeroFramesAssemble(t *testing.T) {
	fc := &fakeCodec{fail: map[int]error{0: &codec.Error{Code: codec.OutOfMemory}}}
	enc := newEncoder(t, 16, 9, Options{Codec: fc})
	if err := enc.Add(picture(t, solidNRGBA(16, 9, red)), 0, codec.DefaultConfig()); err == nil {
		t.Fatal("expected frame error")
	}
	mustAdd(t, enc, nil, 0)
	data, err := enc.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	d := demux(t, data)
	f := d.Features()
	if !f.HasAnimation || f.Width != 16 || f.Height != 9 || d.NumFrames() != 0 {
		t.Errorf("features = %+v, frames = %d", f, d.NumFrames())
	}
}

func TestStateMachine(t *testing.T) {
	enc := newEncoder(t, 4, 4, Options{Codec: &fakeCodec{}})
	if _, err := enc.Assemble(); !errors.Is(err, ErrState) {
		t.Errorf("Assemble before terminator: err = %v, want ErrState", err)
	}
	mustAdd(t, enc, picture(t, solidNRGBA(4, 4, red)), 10)
	if err := enc.Add(picture(t, solidNRGBA(4, 4, blue)), 5, codec.DefaultConfig()); !errors.Is(err, ErrTimestamp) {
		t.Errorf("decreasing timestamp: err = %v, want ErrTimestamp", err)
	}
	if err := enc.Add(picture(t, solidNRGBA(5, 4, blue)), 20, codec.DefaultConfig()); !errors.Is(err, ErrFrameSize) {
		t.Errorf("mismatched size: err = %v, want ErrFrameSize", err)
	}
	mustAdd(t, enc, nil, 20)
	if err := enc.Add(picture(t, solidNRGBA(4, 4, blue)), 30, codec.DefaultConfig()); !errors.Is(err, ErrState) {
		t.Errorf("Add after terminator: err = %v, want ErrState", err)
	}
	if _, err := enc.Assemble(); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if _, err := enc.Assemble(); !errors.Is(err, ErrState) {
		t.Errorf("second Assemble: err = %v, want ErrState", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal("Close must be idempotent")
	}
	if err := enc.Add(nil, 40, codec.DefaultConfig()); !errors.Is(err, ErrState) {
		t.Errorf("Add after Close: err = %v, want ErrState", err)
	}
}

func TestNewRejectsBadCanvas(t *testing.T) {
	for _, sz := range [][2]int{{0, 1}, {1, 0}, {container.MaxDimension + 1, 1}} {
		if _, err := New(sz[0], sz[1], Options{}); err == nil {
			t.Errorf("New(%d, %d) succeeded", sz[0], sz[1])
		}
	}
}

func TestBackgroundPacking(t *testing.T) {
	c := color.NRGBA{R: 0x11, G: 0x22, B: 0x33, A: 0xff}
	argb := PackBackground(c)
	if argb != 0xff112233 {
		t.Errorf("PackBackground = %#x, want 0xff112233", argb)
	}
	if got := UnpackBackground(argb); got != c {
		t.Errorf("UnpackBackground = %v, want %v", got, c)
	}
	enc := newEncoder(t, 2, 2, Options{Codec: &fakeCodec{}, Background: c})
	mustAdd(t, enc, nil, 0)
	data, err := enc.Assemble()
	if err != nil {
		t.Fatal(err)
	}
	// ANIM payload follows RIFF header (12) + VP8X chunk (18) + ANIM header (8).
	if got := data[38:42]; !bytes.Equal(got, []byte{0x33, 0x22, 0x11, 0xff}) {
		t.Errorf("ANIM background bytes = % x, want 33 22 11 ff", got)
	}
}

func TestRealCodecRoundTrip(t *testing.T) {
	enc := newEncoder(t, 12, 8, Options{Codec: codec.WASM{}})
	cfg := codec.ConfigForPreset(codec.PresetDrawing, 80)
	cfg.Lossless = true
	for i, c := range []color.NRGBA{red, blue, {G: 200, A: 128}} {
		if err := enc.Add(picture(t, solidNRGBA(12, 8, c)), i*100, cfg); err != nil {
			t.Fatalf("Add %d: %v", i, err)
		}
	}
	mustAdd(t, enc, nil, 300)
	data, err := enc.Assemble()
	if err != nil {
		t.Fatal(err)
	}
	d := demux(t, data)
	if d.NumFrames() != 3 {
		t.Fatalf("NumFrames = %d, want 3", d.NumFrames())
	}
	// Each lifted frame must still be a decodable still image on its own.
	fi, _ := d.Frame(2)
	m := mux.NewMuxer()
	if err := m.AddFrame(fi.Payload(), nil); err != nil {
		t.Fatal(err)
	}
	still, err := m.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	img, err := xwebp.Decode(bytes.NewReader(still))
	if err != nil {
		t.Fatalf("decode lifted frame: %v", err)
	}
	if img.Bounds().Dx() != 12 || img.Bounds().Dy() != 8 {
		t.Errorf("lifted frame bounds = %v", img.Bounds())
	}
}
