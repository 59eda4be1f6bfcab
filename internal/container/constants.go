// Package container defines constants for the WebP/RIFF container format:
// FourCC values, chunk sizes, VP8X feature flags and container limits.
package container

// FourCC creates a FourCC value from four bytes (little-endian).
func FourCC(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

// Container FourCC values.
var (
	FourCCRIFF = FourCC('R', 'I', 'F', 'F')
	FourCCWEBP = FourCC('W', 'E', 'B', 'P')
	FourCCVP8  = FourCC('V', 'P', '8', ' ')
	FourCCVP8L = FourCC('V', 'P', '8', 'L')
	FourCCVP8X = FourCC('V', 'P', '8', 'X')
	FourCCALPH = FourCC('A', 'L', 'P', 'H')
	FourCCANIM = FourCC('A', 'N', 'I', 'M')
	FourCCANMF = FourCC('A', 'N', 'M', 'F')
	FourCCICCP = FourCC('I', 'C', 'C', 'P')
	FourCCEXIF = FourCC('E', 'X', 'I', 'F')
	FourCCXMP  = FourCC('X', 'M', 'P', ' ')
)

// Bitstream signatures.
const (
	VP8Signature0 = 0x9d
	VP8Signature1 = 0x01
	VP8Signature2 = 0x2a
	VP8LMagicByte = 0x2f
)

// Container structure sizes.
const (
	TagSize         = 4  // Size of a chunk tag (e.g. "VP8L")
	ChunkHeaderSize = 8  // Size of a chunk header
	RIFFHeaderSize  = 12 // Size of the RIFF header ("RIFFnnnnWEBP")
	ANMFChunkSize   = 16 // Size of an ANMF chunk
	ANIMChunkSize   = 6  // Size of an ANIM chunk
	VP8XChunkSize   = 10 // Size of a VP8X chunk
)

// VP8X feature flags (first byte of the VP8X payload).
const (
	AnimationFlag byte = 0x02
	XMPFlag       byte = 0x04
	EXIFFlag      byte = 0x08
	AlphaFlag     byte = 0x10
	ICCPFlag      byte = 0x20
)

// Limits.
const (
	MaxDimension    = 16383 // VP8/VP8L bitstream width/height limit
	MaxCanvasSize   = 1 << 24
	MaxLoopCount    = 0xFFFF
	MaxDuration     = 0xFFFFFF
	MaxRIFFSize     = ^uint32(0) - ChunkHeaderSize - 1
	MaxChunkPayload = ^uint32(0) - ChunkHeaderSize - 1
)
