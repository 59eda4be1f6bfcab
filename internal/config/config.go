// Package config loads export settings from YAML.
package config

import (
	"fmt"
	"image/color"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"

	"github.com/deepteams/webpexport"
	"github.com/deepteams/webpexport/codec"
)

// BackgroundAuto selects the dominant color of the first layer as the
// animation background.
const BackgroundAuto = "auto"

// Config holds every export setting a run can take from a file.
type Config struct {
	// Encoding
	Quality      float32 `yaml:"quality"`
	Lossless     bool    `yaml:"lossless"`
	AlphaQuality int     `yaml:"alpha_quality"`
	Preset       string  `yaml:"preset"`
	Codec        string  `yaml:"codec"`

	// Animation
	Animation  bool   `yaml:"animation"`
	Loop       bool   `yaml:"loop"`
	DelayMs    int    `yaml:"delay_ms"`
	Background string `yaml:"background"`
	Minimize   bool   `yaml:"minimize"`
	Kmax       int    `yaml:"kmax"`
	Policy     string `yaml:"policy"`

	// Metadata
	ICC string `yaml:"icc"`
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Config {
	p := webpexport.DefaultParams()
	return Config{
		Quality:      p.Quality,
		AlphaQuality: p.AlphaQuality,
		Preset:       p.Preset.String(),
		Loop:         p.Loop,
		DelayMs:      100,
		Policy:       webpexport.PolicyBestEffort.String(),
	}
}

// LoadFromFile reads path over the defaults; keys missing from the file
// keep their default value.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings that cannot be clamped into range.
func (c Config) Validate() error {
	if c.DelayMs <= 0 {
		return fmt.Errorf("delay_ms must be positive, got %d", c.DelayMs)
	}
	if c.Kmax < 0 {
		return fmt.Errorf("kmax must not be negative, got %d", c.Kmax)
	}
	if _, err := c.ExportPolicy(); err != nil {
		return err
	}
	if name := strings.ToLower(strings.TrimSpace(c.Codec)); name != "" && !slices.Contains(codec.Names(), name) {
		return fmt.Errorf("unknown codec %q (available: %s)", c.Codec, strings.Join(codec.Names(), ", "))
	}
	if c.Background != "" && c.Background != BackgroundAuto {
		if _, err := ParseBackground(c.Background); err != nil {
			return err
		}
	}
	return nil
}

// Params returns the encoder parameters.
func (c Config) Params() webpexport.Params {
	return webpexport.Params{
		Quality:      c.Quality,
		Lossless:     c.Lossless,
		AlphaQuality: c.AlphaQuality,
		Preset:       webpexport.ParsePreset(c.Preset),
		Animation:    c.Animation,
		Loop:         c.Loop,
	}
}

// ExportPolicy parses the policy name.
func (c Config) ExportPolicy() (webpexport.Policy, error) {
	switch strings.ToLower(c.Policy) {
	case "", "best-effort", "besteffort":
		return webpexport.PolicyBestEffort, nil
	case "strict":
		return webpexport.PolicyStrict, nil
	}
	return webpexport.PolicyBestEffort, fmt.Errorf("unknown policy %q", c.Policy)
}

// ParseBackground parses "#rrggbb" or "#rrggbbaa".
func ParseBackground(s string) (color.NRGBA, error) {
	alpha := uint64(255)
	if len(s) == 9 {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid background %q: %w", s, err)
		}
		alpha, s = a, s[:7]
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid background %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: uint8(alpha)}, nil
}
