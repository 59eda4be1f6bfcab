//go:build cgo

package codec

// Default returns the preferred backend for this build: libwebp via cgo.
func Default() Encoder {
	return Libwebp{}
}
