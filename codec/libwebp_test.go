//go:build cgo

package codec

func init() {
	losslessBackends["libwebp"] = func() Encoder { return Libwebp{} }
}
