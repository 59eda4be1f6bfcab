package source

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/cenkalti/dominantcolor"

	"github.com/deepteams/webpexport"
)

// StaticProfile is an ICC profile held in memory. A nil or empty profile
// reports none.
type StaticProfile []byte

// ICCProfile implements webpexport.ProfileProvider.
func (p StaticProfile) ICCProfile() ([]byte, bool) {
	return p, len(p) > 0
}

// ICCFile reads an ICC profile from path.
func ICCFile(path string) (StaticProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("source: reading ICC profile: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("source: ICC profile %s is empty", path)
	}
	return StaticProfile(data), nil
}

// DominantColor returns the most prominent opaque color of a layer, used
// as an animation background.
func DominantColor(src webpexport.Source, ref webpexport.LayerRef) (color.NRGBA, error) {
	w, h, err := src.Dimensions(ref)
	if err != nil {
		return color.NRGBA{}, err
	}
	buf, err := webpexport.NewPixelBuffer(w, h, webpexport.RGBA)
	if err != nil {
		return color.NRGBA{}, err
	}
	defer buf.Release()
	if err := src.ReadPixels(ref, buf); err != nil {
		return color.NRGBA{}, err
	}
	img := &image.NRGBA{Pix: buf.Pix, Stride: buf.Stride, Rect: image.Rect(0, 0, w, h)}
	candidates := dominantcolor.FindWeight(img, 1)
	if len(candidates) == 0 {
		return color.NRGBA{R: 128, G: 128, B: 128, A: 255}, nil
	}
	c := candidates[0].RGBA
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}, nil
}
