// Package mux reads and writes the WebP RIFF container.
//
// Demuxer splits a file into its chunks (bitstream, alpha, animation frames,
// ICC profile, EXIF and XMP). Muxer assembles chunks into a file. Parse
// bridges the two: it turns an encoded file into a Muxer so metadata and
// animation parameters can be edited without re-encoding any pixels.
package mux

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/deepteams/webpexport/internal/container"
)

// Chunk is one RIFF chunk. Data aliases the parsed input.
type Chunk struct {
	ID   uint32
	Data []byte
}

// Tag returns the chunk's FourCC as a string.
func (c Chunk) Tag() string {
	return container.FourCCString(c.ID)
}

var (
	// ErrShortChunk is returned when fewer bytes remain than a chunk header needs.
	ErrShortChunk = errors.New("mux: truncated chunk header")
	// ErrChunkTooLarge is returned for a declared size the container cannot hold.
	ErrChunkTooLarge = errors.New("mux: chunk payload exceeds container limits")
)

// ReadChunk decodes the chunk at the start of data and reports how many
// bytes it occupies, including the pad byte after an odd payload when one
// is present.
func ReadChunk(data []byte) (Chunk, int, error) {
	if len(data) < container.ChunkHeaderSize {
		return Chunk{}, 0, ErrShortChunk
	}
	id := binary.LittleEndian.Uint32(data)
	size := binary.LittleEndian.Uint32(data[4:])
	if size > container.MaxChunkPayload {
		return Chunk{}, 0, fmt.Errorf("%w: %s declares %d bytes", ErrChunkTooLarge, container.FourCCString(id), size)
	}
	end := container.ChunkHeaderSize + int(size)
	if end > len(data) {
		return Chunk{}, 0, fmt.Errorf("mux: %s chunk truncated: %d of %d payload bytes",
			container.FourCCString(id), len(data)-container.ChunkHeaderSize, size)
	}
	c := Chunk{ID: id, Data: data[container.ChunkHeaderSize:end]}
	if size&1 == 1 && end < len(data) {
		end++
	}
	return c, end, nil
}

// BlendMode specifies how a frame is blended with the previous canvas.
type BlendMode int

const (
	BlendAlpha BlendMode = 0 // Alpha-blend with previous canvas.
	BlendNone  BlendMode = 1 // Do not blend; overwrite.
)

// DisposeMode specifies how the frame area is treated after rendering.
type DisposeMode int

const (
	DisposeNone       DisposeMode = 0 // Leave as-is.
	DisposeBackground DisposeMode = 1 // Fill with background color.
)

// Format describes the encoding format of a WebP file.
type Format int

const (
	FormatUndefined Format = 0
	FormatLossy     Format = 1
	FormatLossless  Format = 2
	FormatExtended  Format = 3
)

// String returns the chunk name that identifies the format.
func (f Format) String() string {
	switch f {
	case FormatLossy:
		return "VP8"
	case FormatLossless:
		return "VP8L"
	case FormatExtended:
		return "VP8X"
	default:
		return "undefined"
	}
}

// Features describes the features present in a WebP file.
type Features struct {
	Width        int
	Height       int
	HasAlpha     bool
	HasAnimation bool
	HasICC       bool
	HasEXIF      bool
	HasXMP       bool
	Format       Format
}

// FrameInfo holds data and metadata for a single animation frame (or the sole image).
type FrameInfo struct {
	Data        []byte // VP8/VP8L bitstream data.
	AlphaData   []byte // ALPH chunk payload for lossy frames, if any.
	Width       int
	Height      int
	OffsetX     int
	OffsetY     int
	Duration    int // Milliseconds (0 for still images).
	HasAlpha    bool
	BlendMode   BlendMode
	DisposeMode DisposeMode
}

// Payload returns the frame's image data in the form Muxer.AddFrame expects:
// the bitstream, prefixed by a complete ALPH chunk when the frame carries
// separate alpha data.
func (fi *FrameInfo) Payload() []byte {
	if len(fi.AlphaData) == 0 {
		return fi.Data
	}
	out := make([]byte, 0, chunkSize(uint32(len(fi.AlphaData)))+uint32(len(fi.Data)))
	out = appendChunk(out, container.FourCCALPH, fi.AlphaData)
	return append(out, fi.Data...)
}

// Demuxer parses a WebP RIFF container.
type Demuxer struct {
	data     []byte
	chunks   []Chunk
	unknown  []Chunk
	features Features
	frames   []FrameInfo
	iccData  []byte
	exifData []byte
	xmpData  []byte
	// ANIM parameters.
	bgColor   uint32
	loopCount int
}

// maxMetadataSize is the maximum allowed size for a single metadata chunk
// (ICC, EXIF, XMP).
const maxMetadataSize = 100 * 1024 * 1024

// maxFrames is the maximum number of animation frames accepted.
const maxFrames = 10000

var (
	ErrInvalidRIFF      = errors.New("mux: not a valid WebP file (bad RIFF header)")
	ErrNoImage          = errors.New("mux: no image data found")
	ErrInvalidVP8X      = errors.New("mux: invalid VP8X chunk")
	ErrInvalidANIM      = errors.New("mux: invalid ANIM chunk")
	ErrInvalidANMF      = errors.New("mux: invalid ANMF chunk")
	ErrInvalidFrame     = errors.New("mux: invalid frame bitstream")
	ErrFrameOutRange    = errors.New("mux: frame index out of range")
	ErrChunkNotFound    = errors.New("mux: chunk not found")
	ErrMetadataTooLarge = errors.New("mux: metadata chunk too large")
	ErrTooManyFrames    = errors.New("mux: too many frames")
)

// NewDemuxer parses a WebP file from data and returns a Demuxer.
func NewDemuxer(data []byte) (*Demuxer, error) {
	d := &Demuxer{data: data}
	if err := d.parse(); err != nil {
		return nil, err
	}
	return d, nil
}

// Features returns the features extracted from the WebP file.
func (d *Demuxer) Features() Features {
	return d.features
}

// NumFrames returns the number of frames.
func (d *Demuxer) NumFrames() int {
	return len(d.frames)
}

// Frame returns frame info for the given 0-based index.
func (d *Demuxer) Frame(index int) (*FrameInfo, error) {
	if index < 0 || index >= len(d.frames) {
		return nil, ErrFrameOutRange
	}
	fi := d.frames[index]
	return &fi, nil
}

// Chunk returns the payload of the first top-level chunk tagged tag
// (for example "ICCP", "EXIF" or "ANIM").
func (d *Demuxer) Chunk(tag string) ([]byte, error) {
	id, err := container.ParseFourCC(tag)
	if err != nil {
		return nil, err
	}
	switch id {
	case container.FourCCICCP:
		if d.iccData != nil {
			return d.iccData, nil
		}
	case container.FourCCEXIF:
		if d.exifData != nil {
			return d.exifData, nil
		}
	case container.FourCCXMP:
		if d.xmpData != nil {
			return d.xmpData, nil
		}
	default:
		for _, c := range d.chunks {
			if c.ID == id {
				return c.Data, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrChunkNotFound, tag)
}

// LoopCount returns the animation loop count (0 = infinite).
func (d *Demuxer) LoopCount() int {
	return d.loopCount
}

// BackgroundColor returns the ANIM background color (ARGB).
func (d *Demuxer) BackgroundColor() uint32 {
	return d.bgColor
}

// parse validates the RIFF header and iterates through all chunks.
func (d *Demuxer) parse() error {
	hdr, _, err := container.ParseRIFFHeader(d.data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRIFF, err)
	}
	totalSize := int(hdr.FileSize) + 8
	if totalSize > len(d.data) {
		// Work with what we have; truncated trailing chunks are skipped.
		totalSize = len(d.data)
	}
	payload := d.data[container.RIFFHeaderSize:totalSize]

	if len(payload) < container.ChunkHeaderSize {
		return ErrNoImage
	}
	switch binary.LittleEndian.Uint32(payload[0:4]) {
	case container.FourCCVP8X:
		return d.parseExtended(payload)
	case container.FourCCVP8:
		return d.parseSimple(payload, false)
	case container.FourCCVP8L:
		return d.parseSimple(payload, true)
	default:
		return fmt.Errorf("mux: unknown first chunk %s", container.FourCCString(binary.LittleEndian.Uint32(payload[0:4])))
	}
}

// parseSimple handles a non-extended lossy or lossless WebP file.
func (d *Demuxer) parseSimple(payload []byte, lossless bool) error {
	c, _, err := ReadChunk(payload)
	if err != nil {
		return err
	}
	var (
		w, h     int
		hasAlpha bool
		format   = FormatLossy
	)
	if lossless {
		w, h, hasAlpha, err = parseVP8LDimensions(c.Data)
		format = FormatLossless
	} else {
		w, h, err = parseVP8Dimensions(c.Data)
	}
	if err != nil {
		return err
	}
	d.features = Features{Width: w, Height: h, HasAlpha: hasAlpha, Format: format}
	d.frames = []FrameInfo{{Data: c.Data, Width: w, Height: h, HasAlpha: hasAlpha}}
	d.chunks = []Chunk{c}
	return nil
}

// parseExtended handles VP8X-extended WebP files.
func (d *Demuxer) parseExtended(payload []byte) error {
	vp8x, consumed, err := ReadChunk(payload)
	if err != nil {
		return err
	}
	if vp8x.Size < container.VP8XChunkSize {
		return ErrInvalidVP8X
	}

	flags := vp8x.Data[0]
	d.features = Features{
		Width:        getLE24(vp8x.Data[4:7]) + 1,
		Height:       getLE24(vp8x.Data[7:10]) + 1,
		HasAlpha:     flags&container.AlphaFlag != 0,
		HasAnimation: flags&container.AnimationFlag != 0,
		HasICC:       flags&container.ICCPFlag != 0,
		HasEXIF:      flags&container.EXIFFlag != 0,
		HasXMP:       flags&container.XMPFlag != 0,
		Format:       FormatExtended,
	}
	d.chunks = append(d.chunks, vp8x)

	var alphaData []byte
	pos := consumed
	for pos+container.ChunkHeaderSize <= len(payload) {
		c, n, err := ReadChunk(payload[pos:])
		if err != nil {
			break
		}
		d.chunks = append(d.chunks, c)
		switch c.ID {
		case container.FourCCICCP, container.FourCCEXIF, container.FourCCXMP:
			if len(c.Data) > maxMetadataSize {
				return fmt.Errorf("%w: %s chunk %d bytes, max %d", ErrMetadataTooLarge, c.Tag(), len(c.Data), maxMetadataSize)
			}
			switch c.ID {
			case container.FourCCICCP:
				d.iccData = c.Data
			case container.FourCCEXIF:
				d.exifData = c.Data
			default:
				d.xmpData = c.Data
			}
		case container.FourCCANIM:
			if err := d.parseANIM(c.Data); err != nil {
				return err
			}
		case container.FourCCANMF:
			if err := d.parseANMF(c.Data); err != nil {
				return err
			}
		case container.FourCCALPH:
			alphaData = c.Data
		case container.FourCCVP8, container.FourCCVP8L:
			if !d.features.HasAnimation && len(d.frames) == 0 {
				d.addStillFrame(c, alphaData)
			}
		default:
			d.unknown = append(d.unknown, c)
		}
		pos += n
	}

	// An animation may legitimately carry zero frames; a still image may not.
	if len(d.frames) == 0 && !d.features.HasAnimation {
		return ErrNoImage
	}
	return nil
}

// addStillFrame records the sole image of a non-animated extended file.
func (d *Demuxer) addStillFrame(c Chunk, alphaData []byte) {
	fi := FrameInfo{
		Data:   c.Data,
		Width:  d.features.Width,
		Height: d.features.Height,
	}
	if c.ID == container.FourCCVP8 {
		// ALPH only pairs with a lossy bitstream.
		fi.AlphaData = alphaData
	}
	fi.HasAlpha = len(fi.AlphaData) > 0 || frameDataHasAlpha(c.Data)
	d.frames = []FrameInfo{fi}
}

// parseANIM extracts animation parameters (background color, loop count).
func (d *Demuxer) parseANIM(data []byte) error {
	if len(data) < container.ANIMChunkSize {
		return ErrInvalidANIM
	}
	d.bgColor = binary.LittleEndian.Uint32(data[0:4])
	d.loopCount = int(binary.LittleEndian.Uint16(data[4:6]))
	return nil
}

// parseANMF extracts a single animation frame from an ANMF chunk payload.
func (d *Demuxer) parseANMF(data []byte) error {
	if len(data) < container.ANMFChunkSize {
		return ErrInvalidANMF
	}
	if len(d.frames) >= maxFrames {
		return fmt.Errorf("%w: exceeded limit of %d", ErrTooManyFrames, maxFrames)
	}
	fi := FrameInfo{
		OffsetX:  getLE24(data[0:3]) * 2,
		OffsetY:  getLE24(data[3:6]) * 2,
		Width:    getLE24(data[6:9]) + 1,
		Height:   getLE24(data[9:12]) + 1,
		Duration: getLE24(data[12:15]),
	}
	if data[15]&0x01 != 0 {
		fi.DisposeMode = DisposeBackground
	}
	if data[15]&0x02 != 0 {
		fi.BlendMode = BlendNone
	}

	sub := data[container.ANMFChunkSize:]
	pos := 0
	for pos+container.ChunkHeaderSize <= len(sub) {
		c, n, err := ReadChunk(sub[pos:])
		if err != nil {
			break
		}
		switch c.ID {
		case container.FourCCVP8, container.FourCCVP8L:
			fi.Data = c.Data
		case container.FourCCALPH:
			fi.AlphaData = c.Data
		}
		pos += n
	}
	if fi.Data == nil {
		return fmt.Errorf("%w: frame %d has no bitstream", ErrInvalidANMF, len(d.frames))
	}
	fi.HasAlpha = len(fi.AlphaData) > 0 || frameDataHasAlpha(fi.Data)
	d.frames = append(d.frames, fi)
	return nil
}

// parseVP8Dimensions extracts width/height from a VP8 bitstream header.
func parseVP8Dimensions(data []byte) (int, int, error) {
	// VP8 keyframe: 3-byte frame tag, 3-byte signature, then 14-bit sizes.
	if len(data) < 10 {
		return 0, 0, ErrInvalidFrame
	}
	if data[3] != container.VP8Signature0 || data[4] != container.VP8Signature1 || data[5] != container.VP8Signature2 {
		return 0, 0, ErrInvalidFrame
	}
	width := int(binary.LittleEndian.Uint16(data[6:8])) & 0x3fff
	height := int(binary.LittleEndian.Uint16(data[8:10])) & 0x3fff
	return width, height, nil
}

// parseVP8LDimensions extracts width/height/alpha from a VP8L bitstream header.
func parseVP8LDimensions(data []byte) (int, int, bool, error) {
	if len(data) < 5 || data[0] != container.VP8LMagicByte {
		return 0, 0, false, ErrInvalidFrame
	}
	bits := binary.LittleEndian.Uint32(data[1:5])
	width := int(bits&0x3fff) + 1
	height := int((bits>>14)&0x3fff) + 1
	return width, height, (bits>>28)&0x1 != 0, nil
}

// frameDataHasAlpha reports the VP8L header's alpha hint. Lossy bitstreams
// never carry alpha themselves; it lives in a separate ALPH chunk.
func frameDataHasAlpha(data []byte) bool {
	if len(data) < 5 || data[0] != container.VP8LMagicByte {
		return false
	}
	return (binary.LittleEndian.Uint32(data[1:5])>>28)&0x1 != 0
}

func getLE24(b []byte) int {
	return int(b[0]) | int(b[1])<<8 | int(b[2])<<16
}
