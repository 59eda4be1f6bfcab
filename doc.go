// Package webpexport writes layered raster images as WebP files.
//
// An export takes an ordered list of layers from a Source and produces either
// a still image or an animation:
//
//   - no layers fails with ErrNoLayers before any file is created;
//   - a single layer is encoded as a still image;
//   - several layers without Params.Animation are flattened to the primary
//     layer and encoded as a still image;
//   - several layers with Params.Animation become one animated WebP, each
//     layer shown from its TimestampMs until the next one.
//
// Compression itself is delegated to a codec.Encoder. This package drives
// pixel buffers through it, assembles animation frames, and splices the
// optional ICC profile and the animation loop count and background color
// into the finished container.
//
// Basic usage:
//
//	x := webpexport.New(webpexport.WithLogger(logger))
//	err := x.Export("out.webp", source.NewImages(frames), layers, 0, webpexport.DefaultParams())
//
// Errors are reported as *Error values carrying a domain, a code and a
// human-readable message. Failures of individual animation frames and of
// metadata injection are logged and do not abort the export unless
// PolicyStrict is selected.
package webpexport
