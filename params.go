package webpexport

import (
	"github.com/deepteams/webpexport/codec"
)

// Preset selects encoder heuristics tuned for a kind of content.
type Preset = codec.Preset

const (
	PresetDefault = codec.PresetDefault
	PresetPicture = codec.PresetPicture
	PresetPhoto   = codec.PresetPhoto
	PresetDrawing = codec.PresetDrawing
	PresetIcon    = codec.PresetIcon
	PresetText    = codec.PresetText
)

// ParsePreset maps a preset name to its value; unknown names select
// PresetDefault.
func ParsePreset(name string) Preset {
	return codec.ParsePreset(name)
}

// Params are the user-facing export settings. Out-of-range values are
// clamped by the codec rather than rejected.
type Params struct {
	// Quality is the compression quality, 0-100.
	Quality float32

	// Lossless selects VP8L encoding.
	Lossless bool

	// AlphaQuality is the lossy alpha plane quality, 0-100.
	AlphaQuality int

	Preset Preset

	// Animation exports a multi-layer image as an animation instead of
	// flattening it to the primary layer.
	Animation bool

	// Loop plays the animation forever; otherwise it plays once.
	Loop bool
}

// DefaultParams returns quality 90, full alpha quality, the default preset
// and an endlessly looping animation.
func DefaultParams() Params {
	return Params{
		Quality:      90,
		AlphaQuality: 100,
		Preset:       PresetDefault,
		Loop:         true,
	}
}

// Config translates p into a codec configuration at the highest effort
// level.
func (p Params) Config() codec.Config {
	cfg := codec.ConfigForPreset(p.Preset, p.Quality)
	cfg.Lossless = p.Lossless
	cfg.AlphaQuality = p.AlphaQuality
	cfg.Method = codec.BestMethod
	return cfg
}

// LoopCountFor returns the ANIM loop count for the loop setting: 0 repeats
// forever, 1 plays once.
func LoopCountFor(loop bool) int {
	if loop {
		return 0
	}
	return 1
}
