package source

import (
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"io"
	"os"

	"github.com/deepteams/webpexport"
)

// defaultGIFDelay is used for frames without a delay, in milliseconds.
const defaultGIFDelay = 100

// GIF is an animated GIF expanded into full-canvas frames. Each frame is
// the canvas as displayed, after the previous frames' disposal.
type GIF struct {
	Images

	// Timestamps holds the start time of each frame in milliseconds.
	Timestamps []int
	// Duration is the total play time of one loop.
	Duration int
	// LoopCount is the number of plays, 0 for forever.
	LoopCount int
}

// OpenGIF reads and expands the GIF at path.
func OpenGIF(path string) (*GIF, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeGIF(f)
}

// DecodeGIF reads an animated GIF from r and composites its frames.
func DecodeGIF(r io.Reader) (*GIF, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, fmt.Errorf("source: decoding GIF: %w", err)
	}
	if len(g.Image) == 0 {
		return nil, ErrNoFrames
	}

	canvasW, canvasH := g.Config.Width, g.Config.Height
	if canvasW == 0 || canvasH == 0 {
		canvasW = g.Image[0].Bounds().Dx()
		canvasH = g.Image[0].Bounds().Dy()
	}
	canvas := image.NewNRGBA(image.Rect(0, 0, canvasW, canvasH))

	out := &GIF{
		Images:     make(Images, 0, len(g.Image)),
		Timestamps: make([]int, 0, len(g.Image)),
		LoopCount:  loopCountOf(g.LoopCount),
	}
	ts := 0
	for i, frame := range g.Image {
		b := frame.Bounds()
		var disposal byte
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		var saved []uint8
		if disposal == gif.DisposalPrevious {
			saved = saveRect(canvas, b)
		}

		draw.Draw(canvas, b, frame, b.Min, draw.Over)
		out.Images = append(out.Images, cloneCanvas(canvas))
		out.Timestamps = append(out.Timestamps, ts)

		delay := defaultGIFDelay
		if i < len(g.Delay) && g.Delay[i] > 0 {
			delay = g.Delay[i] * 10
		}
		ts += delay

		switch disposal {
		case gif.DisposalBackground:
			clearRect(canvas, b)
		case gif.DisposalPrevious:
			restoreRect(canvas, b, saved)
		}
	}
	out.Duration = ts
	return out, nil
}

// loopCountOf converts the GIF convention (0 forever, -1 once, n repeats)
// to a play count.
func loopCountOf(n int) int {
	switch {
	case n == 0:
		return 0
	case n < 0:
		return 1
	default:
		return n + 1
	}
}

// Layers lists every frame with its timestamp.
func (g *GIF) Layers() []webpexport.Layer {
	layers := make([]webpexport.Layer, len(g.Images))
	for i := range layers {
		layers[i] = webpexport.Layer{Ref: webpexport.LayerRef(i), TimestampMs: g.Timestamps[i]}
	}
	return layers
}

// Loop reports whether the GIF repeats forever.
func (g *GIF) Loop() bool { return g.LoopCount == 0 }

func cloneCanvas(canvas *image.NRGBA) *image.NRGBA {
	snap := image.NewNRGBA(canvas.Rect)
	copy(snap.Pix, canvas.Pix)
	return snap
}

func saveRect(canvas *image.NRGBA, r image.Rectangle) []uint8 {
	r = r.Intersect(canvas.Rect)
	if r.Empty() {
		return nil
	}
	w := r.Dx() * 4
	saved := make([]uint8, r.Dy()*w)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := canvas.PixOffset(r.Min.X, y)
		copy(saved[(y-r.Min.Y)*w:], canvas.Pix[off:off+w])
	}
	return saved
}

func restoreRect(canvas *image.NRGBA, r image.Rectangle, saved []uint8) {
	r = r.Intersect(canvas.Rect)
	if r.Empty() || saved == nil {
		return
	}
	w := r.Dx() * 4
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := canvas.PixOffset(r.Min.X, y)
		copy(canvas.Pix[off:off+w], saved[(y-r.Min.Y)*w:])
	}
}

// clearRect makes r transparent black.
func clearRect(canvas *image.NRGBA, r image.Rectangle) {
	r = r.Intersect(canvas.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := canvas.PixOffset(r.Min.X, y)
		clear(canvas.Pix[off : off+r.Dx()*4])
	}
}
