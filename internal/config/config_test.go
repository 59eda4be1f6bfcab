package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepteams/webpexport"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, webpexport.DefaultParams(), cfg.Params())
	assert.Equal(t, 100, cfg.DelayMs)

	policy, err := cfg.ExportPolicy()
	require.NoError(t, err)
	assert.Equal(t, webpexport.PolicyBestEffort, policy)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
quality: 55
lossless: true
preset: Drawing
animation: true
loop: false
delay_ms: 40
background: "#102030"
policy: strict
codec: native
minimize: true
kmax: 9
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	p := cfg.Params()
	assert.Equal(t, float32(55), p.Quality)
	assert.True(t, p.Lossless)
	assert.Equal(t, webpexport.PresetDrawing, p.Preset)
	assert.True(t, p.Animation)
	assert.False(t, p.Loop)
	assert.Equal(t, 100, p.AlphaQuality, "unset keys keep their default")
	assert.Equal(t, 40, cfg.DelayMs)
	assert.Equal(t, 9, cfg.Kmax)
	assert.True(t, cfg.Minimize)

	policy, err := cfg.ExportPolicy()
	require.NoError(t, err)
	assert.Equal(t, webpexport.PolicyStrict, policy)
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadFromFile(writeConfig(t, "quality: [1, 2"))
	assert.Error(t, err)

	_, err = LoadFromFile(writeConfig(t, "policy: sometimes"))
	assert.ErrorContains(t, err, "unknown policy")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero delay", func(c *Config) { c.DelayMs = 0 }, false},
		{"negative kmax", func(c *Config) { c.Kmax = -1 }, false},
		{"unknown codec", func(c *Config) { c.Codec = "gpu" }, false},
		{"known codec", func(c *Config) { c.Codec = "WASM" }, true},
		{"padded codec", func(c *Config) { c.Codec = " wasm\t" }, true},
		{"blank codec", func(c *Config) { c.Codec = "  " }, true},
		{"auto background", func(c *Config) { c.Background = BackgroundAuto }, true},
		{"bad background", func(c *Config) { c.Background = "red" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			if tt.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestParseBackground(t *testing.T) {
	c, err := ParseBackground("#ff8000")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 255, G: 128, A: 255}, c)

	c, err = ParseBackground("#00ff0040")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{G: 255, A: 0x40}, c)

	_, err = ParseBackground("#00ff00zz")
	assert.Error(t, err)
	_, err = ParseBackground("orange")
	assert.Error(t, err)
}
