package source

import (
	"fmt"
	"image"
	"os"

	// Decoders available to Files.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/deepteams/webpexport"
)

// Files serves one image file per layer. Only headers are read to answer
// Dimensions and ColorType; pixels are decoded by each ReadPixels call and
// dropped afterwards.
type Files struct {
	paths   []string
	configs map[webpexport.LayerRef]image.Config
}

// NewFiles returns a source over paths; layer i is paths[i].
func NewFiles(paths ...string) *Files {
	return &Files{paths: paths, configs: make(map[webpexport.LayerRef]image.Config)}
}

// Len returns the number of layers.
func (s *Files) Len() int { return len(s.paths) }

// Layers lists every file as a layer, delayMs apart.
func (s *Files) Layers(delayMs int) []webpexport.Layer {
	layers := make([]webpexport.Layer, len(s.paths))
	for i := range layers {
		layers[i] = webpexport.Layer{Ref: webpexport.LayerRef(i), TimestampMs: i * delayMs}
	}
	return layers
}

func (s *Files) path(ref webpexport.LayerRef) (string, error) {
	if ref < 0 || int(ref) >= len(s.paths) {
		return "", fmt.Errorf("%w: %d of %d", ErrNoLayer, ref, len(s.paths))
	}
	return s.paths[ref], nil
}

func (s *Files) config(ref webpexport.LayerRef) (image.Config, error) {
	if cfg, ok := s.configs[ref]; ok {
		return cfg, nil
	}
	path, err := s.path(ref)
	if err != nil {
		return image.Config{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Config{}, fmt.Errorf("source: %s: %w", path, err)
	}
	s.configs[ref] = cfg
	return cfg, nil
}

// Dimensions implements webpexport.Source.
func (s *Files) Dimensions(ref webpexport.LayerRef) (int, int, error) {
	cfg, err := s.config(ref)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// ColorType implements webpexport.Source.
func (s *Files) ColorType(ref webpexport.LayerRef) (webpexport.ColorType, error) {
	cfg, err := s.config(ref)
	if err != nil {
		return webpexport.RGBA, err
	}
	return colorTypeOf(cfg.ColorModel), nil
}

// ReadPixels implements webpexport.Source.
func (s *Files) ReadPixels(ref webpexport.LayerRef, dst *webpexport.PixelBuffer) error {
	img, err := s.Decode(ref)
	if err != nil {
		return err
	}
	return readInto(img, dst)
}

// Decode decodes the file behind ref.
func (s *Files) Decode(ref webpexport.LayerRef) (image.Image, error) {
	path, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("source: %s: %w", path, err)
	}
	return img, nil
}
