package source

import "errors"

var (
	// ErrNoLayer is returned for a LayerRef outside the source.
	ErrNoLayer = errors.New("source: no such layer")
	// ErrNoFrames is returned for an animated GIF without frames.
	ErrNoFrames = errors.New("source: GIF has no frames")
)
