package source

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepteams/webpexport"
)

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

func fill(img *image.NRGBA, c color.NRGBA) *image.NRGBA {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func read(t *testing.T, src webpexport.Source, ref webpexport.LayerRef) *webpexport.PixelBuffer {
	t.Helper()
	w, h, err := src.Dimensions(ref)
	require.NoError(t, err)
	ct, err := src.ColorType(ref)
	require.NoError(t, err)
	buf, err := webpexport.NewPixelBuffer(w, h, ct)
	require.NoError(t, err)
	t.Cleanup(buf.Release)
	require.NoError(t, src.ReadPixels(ref, buf))
	return buf
}

func TestImagesColorType(t *testing.T) {
	opaque := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{red, blue})
	holey := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{red, color.NRGBA{}})
	src := NewImages(
		image.NewNRGBA(image.Rect(0, 0, 2, 2)),
		image.NewYCbCr(image.Rect(0, 0, 2, 2), image.YCbCrSubsampleRatio420),
		image.NewGray(image.Rect(0, 0, 2, 2)),
		opaque,
		holey,
	)
	want := []webpexport.ColorType{webpexport.RGBA, webpexport.RGB, webpexport.RGB, webpexport.RGB, webpexport.RGBA}
	for i, w := range want {
		got, err := src.ColorType(webpexport.LayerRef(i))
		require.NoError(t, err)
		assert.Equal(t, w, got, "layer %d", i)
	}

	_, err := src.ColorType(9)
	assert.ErrorIs(t, err, ErrNoLayer)
	_, _, err = src.Dimensions(-1)
	assert.ErrorIs(t, err, ErrNoLayer)
}

func TestImagesReadPixels(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}
	img.Pix[3], img.Pix[7] = 255, 255

	t.Run("rgba", func(t *testing.T) {
		buf := read(t, NewImages(img), 0)
		assert.Equal(t, img.Pix, buf.Pix)
	})

	t.Run("rgb", func(t *testing.T) {
		gray := image.NewGray(image.Rect(0, 0, 2, 1))
		gray.Pix[0], gray.Pix[1] = 10, 200
		buf := read(t, NewImages(gray), 0)
		assert.Equal(t, []byte{10, 10, 10, 200, 200, 200}, buf.Pix)
	})

	t.Run("offset bounds", func(t *testing.T) {
		big := fill(image.NewNRGBA(image.Rect(0, 0, 6, 6)), red)
		fill(big.SubImage(image.Rect(2, 2, 4, 4)).(*image.NRGBA), blue)
		sub := big.SubImage(image.Rect(2, 2, 5, 4))

		buf := read(t, NewImages(sub), 0)
		assert.Equal(t, 3, buf.Width)
		assert.Equal(t, 2, buf.Height)
		assert.Equal(t, []byte{0, 0, 255, 255}, buf.Pix[0:4])
		assert.Equal(t, []byte{255, 0, 0, 255}, buf.Pix[8:12])
	})

	t.Run("mismatched buffer", func(t *testing.T) {
		buf, err := webpexport.NewPixelBuffer(2, 2, webpexport.RGBA)
		require.NoError(t, err)
		defer buf.Release()
		assert.ErrorIs(t, NewImages(img).ReadPixels(0, buf), webpexport.ErrBufferSize)
	})
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, encode func(*os.File) error) string {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, encode(f))
		require.NoError(t, f.Close())
		return path
	}

	rgba := fill(image.NewNRGBA(image.Rect(0, 0, 5, 3)), color.NRGBA{R: 10, G: 20, B: 30, A: 128})
	pngPath := write("a.png", func(f *os.File) error { return png.Encode(f, rgba) })
	jpgPath := write("b.jpg", func(f *os.File) error {
		return jpeg.Encode(f, image.NewGray(image.Rect(0, 0, 8, 4)), nil)
	})
	src := NewFiles(pngPath, jpgPath, filepath.Join(dir, "missing.png"))
	assert.Equal(t, 3, src.Len())

	w, h, err := src.Dimensions(0)
	require.NoError(t, err)
	assert.Equal(t, 5, w)
	assert.Equal(t, 3, h)
	ct, err := src.ColorType(0)
	require.NoError(t, err)
	assert.Equal(t, webpexport.RGBA, ct)
	buf := read(t, src, 0)
	assert.Equal(t, rgba.Pix, buf.Pix)

	ct, err = src.ColorType(1)
	require.NoError(t, err)
	assert.Equal(t, webpexport.RGB, ct)
	buf = read(t, src, 1)
	assert.Equal(t, 8*4*3, len(buf.Pix))

	_, _, err = src.Dimensions(2)
	assert.Error(t, err)
	_, _, err = src.Dimensions(3)
	assert.ErrorIs(t, err, ErrNoLayer)

	layers := src.Layers(40)
	require.Len(t, layers, 3)
	assert.Equal(t, webpexport.Layer{Ref: 2, TimestampMs: 80}, layers[2])
}

func testGIF(t *testing.T) []byte {
	t.Helper()
	pal := color.Palette{color.RGBA{}, color.RGBA{R: 255, A: 255}, color.RGBA{B: 255, A: 255}}
	frame := func(r image.Rectangle, idx uint8) *image.Paletted {
		p := image.NewPaletted(r, pal)
		for i := range p.Pix {
			p.Pix[i] = idx
		}
		return p
	}
	g := &gif.GIF{
		Image: []*image.Paletted{
			frame(image.Rect(0, 0, 4, 4), 1),
			frame(image.Rect(0, 0, 2, 2), 2),
			frame(image.Rect(2, 2, 4, 4), 0),
		},
		Delay:    []int{5, 0, 20},
		Disposal: []byte{gif.DisposalNone, gif.DisposalBackground, gif.DisposalNone},
		Config:   image.Config{ColorModel: pal, Width: 4, Height: 4},
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))
	return buf.Bytes()
}

func TestDecodeGIF(t *testing.T) {
	g, err := DecodeGIF(bytes.NewReader(testGIF(t)))
	require.NoError(t, err)

	require.Len(t, g.Images, 3)
	assert.Equal(t, []int{0, 50, 150}, g.Timestamps)
	assert.Equal(t, 350, g.Duration)
	assert.True(t, g.Loop())

	at := func(frame, x, y int) color.NRGBA {
		return g.Images[frame].(*image.NRGBA).NRGBAAt(x, y)
	}
	assert.Equal(t, red, at(0, 0, 0))
	assert.Equal(t, blue, at(1, 1, 1))
	assert.Equal(t, red, at(1, 3, 3))
	// Frame 1 was disposed to background; frame 2 draws only transparency.
	assert.Equal(t, color.NRGBA{}, at(2, 0, 0))
	assert.Equal(t, red, at(2, 3, 3))

	layers := g.Layers()
	require.Len(t, layers, 3)
	assert.Equal(t, webpexport.Layer{Ref: 1, TimestampMs: 50}, layers[1])

	ct, err := g.ColorType(0)
	require.NoError(t, err)
	assert.Equal(t, webpexport.RGBA, ct)

	_, err = DecodeGIF(bytes.NewReader([]byte("GIF89a")))
	assert.Error(t, err)
}

func TestLoopCountOf(t *testing.T) {
	assert.Equal(t, 0, loopCountOf(0))
	assert.Equal(t, 1, loopCountOf(-1))
	assert.Equal(t, 4, loopCountOf(3))
}

func TestICCFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "srgb.icc")
	require.NoError(t, os.WriteFile(path, []byte("profile bytes"), 0o644))

	p, err := ICCFile(path)
	require.NoError(t, err)
	icc, ok := p.ICCProfile()
	assert.True(t, ok)
	assert.Equal(t, []byte("profile bytes"), icc)

	empty := filepath.Join(dir, "empty.icc")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = ICCFile(empty)
	assert.Error(t, err)

	_, err = ICCFile(filepath.Join(dir, "nope.icc"))
	assert.Error(t, err)

	_, ok = StaticProfile(nil).ICCProfile()
	assert.False(t, ok)
}

func TestDominantColor(t *testing.T) {
	green := color.NRGBA{G: 200, A: 255}
	src := NewImages(fill(image.NewNRGBA(image.Rect(0, 0, 16, 16)), green))

	got, err := DominantColor(src, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0, int(got.R), 2)
	assert.InDelta(t, 200, int(got.G), 2)
	assert.InDelta(t, 0, int(got.B), 2)
	assert.Equal(t, uint8(255), got.A)

	_, err = DominantColor(src, 1)
	assert.ErrorIs(t, err, ErrNoLayer)
}
