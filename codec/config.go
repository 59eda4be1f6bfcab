// Package codec defines the contract of the WebP encode primitive and binds
// it to the available encoder libraries.
//
// An Encoder turns a Picture plus a Config into a complete WebP file that is
// streamed to an io.Writer in contiguous chunks. Failures are reported as
// *Error values drawn from a closed set of codes with fixed messages, so
// callers can surface them verbatim.
//
// Four backends are provided:
//
//   - Libwebp, the reference C library through cgo (github.com/chai2010/webp);
//   - WASM, libwebp without cgo (github.com/gen2brain/webp), either a shared
//     host library or, failing that, an embedded WebAssembly build;
//   - PureGo, a pure Go lossy and lossless encoder (github.com/deepteams/webp),
//     the only one that applies preset tuning;
//   - Native, a pure Go lossless encoder (github.com/HugoSmits86/nativewebp).
//
// Default picks Libwebp when the binary is built with cgo and PureGo otherwise.
package codec

import (
	"fmt"
	"math"
	"strings"
)

// Preset selects a set of encoding parameters tuned for specific content types.
type Preset int

const (
	PresetDefault Preset = iota
	PresetPicture
	PresetPhoto
	PresetDrawing
	PresetIcon
	PresetText
)

var presetNames = [...]string{"default", "picture", "photo", "drawing", "icon", "text"}

// String returns the preset name as accepted by ParsePreset.
func (p Preset) String() string {
	if p < PresetDefault || p > PresetText {
		return fmt.Sprintf("Preset(%d)", int(p))
	}
	return presetNames[p]
}

// ParsePreset maps a preset name to its value. Matching is case-insensitive
// and unknown names select PresetDefault.
func ParsePreset(name string) Preset {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range presetNames {
		if n == name {
			return Preset(i)
		}
	}
	return PresetDefault
}

// Config holds the parameters for a single encode.
type Config struct {
	Preset Preset

	// Quality is the compression quality (0-100). For lossless encoding it
	// controls compression effort.
	Quality float32

	// Lossless selects VP8L lossless encoding.
	Lossless bool

	// AlphaQuality controls lossy alpha compression (0-100). Below 100 the
	// alpha plane is reduced to fewer levels before encoding.
	AlphaQuality int

	// Method controls encoding effort (0 = fastest, 6 = slowest/best).
	Method int

	// Exact preserves RGB values under fully transparent pixels.
	Exact bool

	// Preset tuning. Only PureGo exposes these knobs; the other backends
	// encode with their library defaults.
	SNSStrength     int
	FilterStrength  int
	FilterSharpness int
	Segments        int
}

// Default configuration values.
const (
	DefaultQuality      = 75
	DefaultMethod       = 4
	DefaultAlphaQuality = 100
	BestMethod          = 6
)

// DefaultConfig returns the library defaults.
func DefaultConfig() Config {
	return Config{
		Preset:         PresetDefault,
		Quality:        DefaultQuality,
		AlphaQuality:   DefaultAlphaQuality,
		Method:         DefaultMethod,
		SNSStrength:    50,
		FilterStrength: 60,
		Segments:       4,
	}
}

// ConfigForPreset returns a configuration tuned for the given preset and
// quality, matching libwebp's WebPConfigPreset.
func ConfigForPreset(preset Preset, quality float32) Config {
	cfg := DefaultConfig()
	cfg.Preset = preset
	cfg.Quality = quality

	switch preset {
	case PresetPicture:
		cfg.SNSStrength = 80
		cfg.FilterSharpness = 4
		cfg.FilterStrength = 35
	case PresetPhoto:
		cfg.SNSStrength = 80
		cfg.FilterSharpness = 3
		cfg.FilterStrength = 30
	case PresetDrawing:
		cfg.SNSStrength = 25
		cfg.FilterSharpness = 6
		cfg.FilterStrength = 10
	case PresetIcon:
		cfg.SNSStrength = 0
		cfg.FilterStrength = 0
	case PresetText:
		cfg.SNSStrength = 0
		cfg.FilterStrength = 0
		cfg.Segments = 2
	}
	return cfg
}

// Validate reports configuration values that cannot be brought into range.
func (c Config) Validate() error {
	if math.IsNaN(float64(c.Quality)) || math.IsInf(float64(c.Quality), 0) {
		return fmt.Errorf("codec: invalid quality %v", c.Quality)
	}
	return nil
}

// Sanitize returns a copy of c with every field clamped into its valid range.
func (c Config) Sanitize() Config {
	if c.Preset < PresetDefault || c.Preset > PresetText {
		c.Preset = PresetDefault
	}
	c.Quality = float32(math.Max(0, math.Min(100, float64(c.Quality))))
	c.AlphaQuality = clamp(c.AlphaQuality, 0, 100)
	c.Method = clamp(c.Method, 0, BestMethod)
	c.SNSStrength = clamp(c.SNSStrength, 0, 100)
	c.FilterStrength = clamp(c.FilterStrength, 0, 100)
	c.FilterSharpness = clamp(c.FilterSharpness, 0, 7)
	c.Segments = clamp(c.Segments, 1, 4)
	return c
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
