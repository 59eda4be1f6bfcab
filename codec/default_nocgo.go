//go:build !cgo

package codec

// Default returns the preferred backend for this build: the pure Go encoder,
// which needs neither cgo nor a host libwebp.
func Default() Encoder {
	return PureGo{}
}
