package webpexport

import (
	"image/color"

	"github.com/deepteams/webpexport/animation"
	"github.com/deepteams/webpexport/mux"
)

// AnimationParams are written into the ANIM chunk of an animated container.
type AnimationParams struct {
	// LoopCount is the number of plays; 0 repeats forever.
	LoopCount int
	// Background replaces the canvas background color when set.
	Background *color.NRGBA
}

// InjectChunks rewrites an encoded container with an ICC profile and, for
// animations, the loop count and background color. Pixel data is not
// re-encoded.
//
// When the container cannot be parsed or reassembled, the original bytes
// are returned unchanged together with a DomainMux error; callers treat
// that error as a warning.
func InjectChunks(data []byte, icc []byte, anim *AnimationParams) ([]byte, error) {
	if len(icc) == 0 && anim == nil {
		return data, nil
	}
	m, err := mux.Parse(data)
	if err != nil {
		return data, muxError(err)
	}
	if len(icc) > 0 {
		m.SetICCProfile(icc)
	}
	if anim != nil {
		m.SetLoopCount(anim.LoopCount)
		if anim.Background != nil {
			m.SetBackgroundColor(animation.PackBackground(*anim.Background))
		}
	}
	out, err := m.Bytes()
	if err != nil {
		return data, muxError(err)
	}
	return out, nil
}
