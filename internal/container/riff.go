package container

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrInvalidRIFF   = errors.New("webp: invalid RIFF header")
	ErrInvalidWebP   = errors.New("webp: invalid WEBP signature")
	ErrTruncated     = errors.New("webp: truncated data")
	ErrTooLarge      = errors.New("webp: file too large")
	ErrInvalidFourCC = errors.New("webp: FourCC must be exactly 4 bytes")
)

// RIFFHeader holds the parsed RIFF container header.
type RIFFHeader struct {
	FileSize uint32 // RIFF payload size (excludes the 8-byte "RIFF"+size prefix)
}

// ParseRIFFHeader validates and parses the 12-byte RIFF/WEBP header from data.
// Returns the header and the number of bytes consumed.
func ParseRIFFHeader(data []byte) (RIFFHeader, int, error) {
	if len(data) < RIFFHeaderSize {
		return RIFFHeader{}, 0, ErrTruncated
	}
	if binary.LittleEndian.Uint32(data[0:4]) != FourCCRIFF {
		return RIFFHeader{}, 0, ErrInvalidRIFF
	}
	fileSize := binary.LittleEndian.Uint32(data[4:8])
	if fileSize < TagSize+ChunkHeaderSize {
		return RIFFHeader{}, 0, ErrInvalidRIFF
	}
	if fileSize > MaxRIFFSize {
		return RIFFHeader{}, 0, ErrTooLarge
	}
	if binary.LittleEndian.Uint32(data[8:12]) != FourCCWEBP {
		return RIFFHeader{}, 0, ErrInvalidWebP
	}
	return RIFFHeader{FileSize: fileSize}, RIFFHeaderSize, nil
}

// HasSignature reports whether data begins with "RIFF" and carries the "WEBP"
// form type at offset 8.
func HasSignature(data []byte) bool {
	return len(data) >= RIFFHeaderSize &&
		binary.LittleEndian.Uint32(data[0:4]) == FourCCRIFF &&
		binary.LittleEndian.Uint32(data[8:12]) == FourCCWEBP
}

// PaddedSize returns the payload size padded to an even number of bytes,
// as required by the RIFF format.
func PaddedSize(size uint32) uint32 {
	return size + (size & 1)
}

// FourCCString returns a human-readable string for a FourCC value.
func FourCCString(fourcc uint32) string {
	b := [4]byte{
		byte(fourcc),
		byte(fourcc >> 8),
		byte(fourcc >> 16),
		byte(fourcc >> 24),
	}
	return string(b[:])
}

// ParseFourCC converts a 4-character tag such as "ICCP" to its FourCC value.
func ParseFourCC(tag string) (uint32, error) {
	if len(tag) != TagSize {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFourCC, tag)
	}
	return FourCC(tag[0], tag[1], tag[2], tag[3]), nil
}
