package mux

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/deepteams/webpexport/internal/container"
)

// FrameOptions specifies per-frame parameters for animated WebP.
type FrameOptions struct {
	Duration    int
	OffsetX     int
	OffsetY     int
	BlendMode   BlendMode
	DisposeMode DisposeMode
}

type muxFrame struct {
	data []byte // VP8/VP8L bitstream, optionally prefixed by a complete ALPH chunk.
	opts FrameOptions
}

// Muxer is a mutable representation of a WebP container. It is built either
// from scratch (NewMuxer + AddFrame) or from an existing file (Parse), edited
// in place and serialised again with Assemble or Bytes.
type Muxer struct {
	frames   []muxFrame
	iccData  []byte
	exifData []byte
	xmpData  []byte
	extra    []Chunk // unknown chunks, written back verbatim after the image data
	// ANIM parameters.
	animated  bool
	bgColor   uint32
	loopCount int
	// Explicit canvas dimensions (VP8X). When set (>0) they take priority over
	// the canvas size computed from frame extents.
	canvasWidth  int
	canvasHeight int
}

var (
	ErrNoFrames      = errors.New("mux: no frames to assemble")
	ErrFrameEmpty    = errors.New("mux: frame data is empty")
	ErrMuxValidation = errors.New("mux: validation failed")
	ErrReservedChunk = errors.New("mux: chunk is managed by the muxer")
	ErrFileTooLarge  = errors.New("mux: container exceeds 4GiB")
)

// NewMuxer creates an empty Muxer.
func NewMuxer() *Muxer {
	return &Muxer{}
}

// Parse reads an encoded WebP file into a Muxer. The frame bitstreams and
// metadata payloads alias data; no pixels are decoded.
func Parse(data []byte) (*Muxer, error) {
	d, err := NewDemuxer(data)
	if err != nil {
		return nil, err
	}
	f := d.Features()
	m := &Muxer{
		iccData:   d.iccData,
		exifData:  d.exifData,
		xmpData:   d.xmpData,
		extra:     d.unknown,
		animated:  f.HasAnimation,
		bgColor:   d.bgColor,
		loopCount: d.loopCount,
	}
	if f.Format == FormatExtended {
		m.canvasWidth, m.canvasHeight = f.Width, f.Height
	}
	for i := range d.frames {
		fi := &d.frames[i]
		m.frames = append(m.frames, muxFrame{
			data: fi.Payload(),
			opts: FrameOptions{
				Duration:    fi.Duration,
				OffsetX:     fi.OffsetX,
				OffsetY:     fi.OffsetY,
				BlendMode:   fi.BlendMode,
				DisposeMode: fi.DisposeMode,
			},
		})
	}
	return m, nil
}

// SetICCProfile sets the ICC color profile data. A nil slice removes it.
func (m *Muxer) SetICCProfile(data []byte) {
	m.iccData = data
}

// SetEXIF sets the EXIF metadata.
func (m *Muxer) SetEXIF(data []byte) {
	m.exifData = data
}

// SetXMP sets the XMP metadata.
func (m *Muxer) SetXMP(data []byte) {
	m.xmpData = data
}

// SetAnimation marks the container as animated regardless of its frame
// count. An animated container with no frames is still valid: it carries
// VP8X and ANIM only.
func (m *Muxer) SetAnimation(animated bool) {
	m.animated = animated
}

// SetBackgroundColor sets the ANIM background color (ARGB).
func (m *Muxer) SetBackgroundColor(color uint32) {
	m.bgColor = color
}

// BackgroundColor returns the ANIM background color (ARGB).
func (m *Muxer) BackgroundColor() uint32 {
	return m.bgColor
}

// SetLoopCount sets the animation loop count (0 = infinite).
// Values are clamped to [0, 65535].
func (m *Muxer) SetLoopCount(count int) {
	m.loopCount = max(0, min(count, container.MaxLoopCount))
}

// LoopCount returns the animation loop count.
func (m *Muxer) LoopCount() int {
	return m.loopCount
}

// SetCanvasSize explicitly sets the VP8X canvas dimensions.
func (m *Muxer) SetCanvasSize(width, height int) {
	m.canvasWidth = width
	m.canvasHeight = height
}

// SetChunk sets or replaces the top-level chunk tagged tag. ICCP, EXIF and
// XMP map onto the dedicated metadata slots; any other tag that the muxer
// does not derive itself is kept as an extra chunk. A nil payload removes
// the chunk.
func (m *Muxer) SetChunk(tag string, data []byte) error {
	id, err := container.ParseFourCC(tag)
	if err != nil {
		return err
	}
	switch id {
	case container.FourCCICCP:
		m.iccData = data
	case container.FourCCEXIF:
		m.exifData = data
	case container.FourCCXMP:
		m.xmpData = data
	case container.FourCCVP8, container.FourCCVP8L, container.FourCCVP8X, container.FourCCALPH, container.FourCCANIM, container.FourCCANMF:
		return fmt.Errorf("%w: %s", ErrReservedChunk, tag)
	default:
		for i := range m.extra {
			if m.extra[i].ID == id {
				if data == nil {
					m.extra = append(m.extra[:i], m.extra[i+1:]...)
				} else {
					m.extra[i] = Chunk{ID: id, Data: data}
				}
				return nil
			}
		}
		if data != nil {
			m.extra = append(m.extra, Chunk{ID: id, Data: data})
		}
	}
	return nil
}

// Chunk returns the payload of the metadata or extra chunk tagged tag.
func (m *Muxer) Chunk(tag string) ([]byte, bool) {
	id, err := container.ParseFourCC(tag)
	if err != nil {
		return nil, false
	}
	switch id {
	case container.FourCCICCP:
		return m.iccData, m.iccData != nil
	case container.FourCCEXIF:
		return m.exifData, m.exifData != nil
	case container.FourCCXMP:
		return m.xmpData, m.xmpData != nil
	}
	for _, c := range m.extra {
		if c.ID == id {
			return c.Data, true
		}
	}
	return nil, false
}

// AddFrame adds a frame. data is the VP8/VP8L bitstream, optionally prefixed
// by an ALPH chunk. opts may be nil for still images. Duration is clamped to
// [0, 0xFFFFFF].
func (m *Muxer) AddFrame(data []byte, opts *FrameOptions) error {
	if len(data) == 0 {
		return ErrFrameEmpty
	}
	fo := FrameOptions{}
	if opts != nil {
		fo = *opts
	}
	fo.Duration = clampDuration(fo.Duration)
	m.frames = append(m.frames, muxFrame{data: data, opts: fo})
	return nil
}

// SetFrameDuration updates the duration (in milliseconds) of an already-added
// frame. index is 0-based.
func (m *Muxer) SetFrameDuration(index int, durationMS int) {
	if index >= 0 && index < len(m.frames) {
		m.frames[index].opts.Duration = clampDuration(durationMS)
	}
}

// FrameDuration returns the duration of the frame at index, or 0 when the
// index is out of range.
func (m *Muxer) FrameDuration(index int) int {
	if index >= 0 && index < len(m.frames) {
		return m.frames[index].opts.Duration
	}
	return 0
}

// NumFrames returns the number of frames added so far.
func (m *Muxer) NumFrames() int {
	return len(m.frames)
}

func clampDuration(d int) int {
	return max(0, min(d, container.MaxDuration))
}

// isAnimated reports whether the container is written with ANIM/ANMF.
func (m *Muxer) isAnimated() bool {
	if m.animated || len(m.frames) > 1 {
		return true
	}
	return len(m.frames) == 1 && m.frames[0].opts.Duration > 0
}

// needsVP8X reports whether the file requires the extended format header.
func (m *Muxer) needsVP8X() bool {
	if m.isAnimated() || m.iccData != nil || m.exifData != nil || m.xmpData != nil || len(m.extra) > 0 {
		return true
	}
	alpha, _ := splitAlphaAndBitstream(m.frames[0].data)
	return alpha != nil
}

// Bytes assembles the container into a new byte slice.
func (m *Muxer) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Assemble(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Assemble writes the complete WebP file to w.
func (m *Muxer) Assemble(w io.Writer) error {
	if err := m.validate(); err != nil {
		return err
	}
	if !m.needsVP8X() {
		return m.assembleSimple(w)
	}
	return m.assembleExtended(w)
}

// validate checks the muxer state for consistency before assembling.
func (m *Muxer) validate() error {
	animated := m.isAnimated()
	if len(m.frames) == 0 && !animated {
		return ErrNoFrames
	}
	if !animated && len(m.frames) != 1 {
		return fmt.Errorf("%w: still image must have exactly 1 frame", ErrMuxValidation)
	}
	canvasW, canvasH := m.canvasSize()
	if canvasW > container.MaxCanvasSize || canvasH > container.MaxCanvasSize {
		return fmt.Errorf("%w: canvas %dx%d too large", ErrMuxValidation, canvasW, canvasH)
	}
	for i, f := range m.frames {
		fw, fh := frameDimensions(f.data)
		if fw == 0 || fh == 0 {
			continue
		}
		if f.opts.OffsetX < 0 || f.opts.OffsetY < 0 {
			return fmt.Errorf("%w: frame %d has negative offset", ErrMuxValidation, i)
		}
		if f.opts.OffsetX+fw > canvasW || f.opts.OffsetY+fh > canvasH {
			return fmt.Errorf("%w: frame %d (%dx%d at %d,%d) exceeds canvas (%dx%d)",
				ErrMuxValidation, i, fw, fh, f.opts.OffsetX, f.opts.OffsetY, canvasW, canvasH)
		}
	}
	return nil
}

// hasAlpha reports whether any frame carries alpha, either as an ALPH
// prefix or through the VP8L header hint.
func (m *Muxer) hasAlpha() bool {
	for _, f := range m.frames {
		alpha, bs := splitAlphaAndBitstream(f.data)
		if alpha != nil || frameDataHasAlpha(bs) {
			return true
		}
	}
	return false
}

// assembleSimple writes a simple (non-extended) WebP file.
func (m *Muxer) assembleSimple(w io.Writer) error {
	frame := m.frames[0]
	size := uint64(container.TagSize) + uint64(chunkSize(uint32(len(frame.data))))
	if size > uint64(container.MaxRIFFSize) {
		return ErrFileTooLarge
	}
	var hdr [container.RIFFHeaderSize]byte
	writeRIFFHeader(hdr[:], uint32(size))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	return writeDataChunk(w, detectBitstreamType(frame.data), frame.data)
}

// extendedSize returns the RIFF payload size of the extended layout.
func (m *Muxer) extendedSize(animated bool) uint64 {
	size := uint64(container.TagSize) + container.ChunkHeaderSize + container.VP8XChunkSize
	if m.iccData != nil {
		size += uint64(chunkSize(uint32(len(m.iccData))))
	}
	if animated {
		size += container.ChunkHeaderSize + container.ANIMChunkSize
	}
	for _, f := range m.frames {
		alpha, bs := splitAlphaAndBitstream(f.data)
		sub := uint64(frameSubChunksSize(alpha, bs))
		if animated {
			sub = uint64(chunkSize(uint32(container.ANMFChunkSize + sub)))
		}
		size += sub
	}
	for _, c := range m.extra {
		size += uint64(chunkSize(uint32(len(c.Data))))
	}
	if m.exifData != nil {
		size += uint64(chunkSize(uint32(len(m.exifData))))
	}
	if m.xmpData != nil {
		size += uint64(chunkSize(uint32(len(m.xmpData))))
	}
	return size
}

// assembleExtended writes an extended (VP8X) WebP file. Chunk order is
// VP8X, ICCP, ANIM, image data, extra chunks, EXIF, XMP.
func (m *Muxer) assembleExtended(w io.Writer) error {
	animated := m.isAnimated()
	size := m.extendedSize(animated)
	if size > uint64(container.MaxRIFFSize) {
		return ErrFileTooLarge
	}

	var flags byte
	if animated {
		flags |= container.AnimationFlag
	}
	if m.iccData != nil {
		flags |= container.ICCPFlag
	}
	if m.exifData != nil {
		flags |= container.EXIFFlag
	}
	if m.xmpData != nil {
		flags |= container.XMPFlag
	}
	if m.hasAlpha() {
		flags |= container.AlphaFlag
	}
	canvasW, canvasH := m.canvasSize()

	hdr := make([]byte, container.RIFFHeaderSize+container.ChunkHeaderSize+container.VP8XChunkSize)
	writeRIFFHeader(hdr[0:12], uint32(size))
	putChunkHeader(hdr[12:20], container.FourCCVP8X, container.VP8XChunkSize)
	hdr[20] = flags
	putLE24(hdr[24:27], canvasW-1)
	putLE24(hdr[27:30], canvasH-1)
	if _, err := w.Write(hdr); err != nil {
		return err
	}

	if m.iccData != nil {
		if err := writeDataChunk(w, container.FourCCICCP, m.iccData); err != nil {
			return err
		}
	}

	if animated {
		var anim [container.ChunkHeaderSize + container.ANIMChunkSize]byte
		putChunkHeader(anim[0:8], container.FourCCANIM, container.ANIMChunkSize)
		binary.LittleEndian.PutUint32(anim[8:12], m.bgColor)
		binary.LittleEndian.PutUint16(anim[12:14], uint16(m.loopCount))
		if _, err := w.Write(anim[:]); err != nil {
			return err
		}
	}

	for _, f := range m.frames {
		var err error
		if animated {
			err = writeANMFChunk(w, f)
		} else {
			err = writeImageChunks(w, f.data)
		}
		if err != nil {
			return err
		}
	}

	for _, c := range m.extra {
		if err := writeDataChunk(w, c.ID, c.Data); err != nil {
			return err
		}
	}
	if m.exifData != nil {
		if err := writeDataChunk(w, container.FourCCEXIF, m.exifData); err != nil {
			return err
		}
	}
	if m.xmpData != nil {
		if err := writeDataChunk(w, container.FourCCXMP, m.xmpData); err != nil {
			return err
		}
	}
	return nil
}

// splitAlphaAndBitstream separates frame data into optional ALPH chunk data
// and the VP8/VP8L bitstream. If the frame data starts with an ALPH chunk
// header, it extracts the alpha payload and the remainder as the bitstream.
// Otherwise, alphaData is nil and bitstream is the full frame data.
func splitAlphaAndBitstream(data []byte) (alphaData, bitstream []byte) {
	if len(data) < container.ChunkHeaderSize || binary.LittleEndian.Uint32(data[0:4]) != container.FourCCALPH {
		return nil, data
	}
	c, n, err := ReadChunk(data)
	if err != nil {
		return nil, data
	}
	return c.Data, data[n:]
}

// writeImageChunks writes the optional ALPH chunk followed by the VP8/VP8L chunk.
func writeImageChunks(w io.Writer, data []byte) error {
	alpha, bs := splitAlphaAndBitstream(data)
	if alpha != nil {
		if err := writeDataChunk(w, container.FourCCALPH, alpha); err != nil {
			return err
		}
	}
	return writeDataChunk(w, detectBitstreamType(bs), bs)
}

// writeANMFChunk writes an ANMF wrapper around a frame's image data:
// the 16-byte frame header, then ALPH (if any), then VP8/VP8L.
func writeANMFChunk(w io.Writer, f muxFrame) error {
	alpha, bs := splitAlphaAndBitstream(f.data)
	payload := uint32(container.ANMFChunkSize) + frameSubChunksSize(alpha, bs)

	var hdr [container.ChunkHeaderSize + container.ANMFChunkSize]byte
	putChunkHeader(hdr[0:8], container.FourCCANMF, payload)
	putLE24(hdr[8:11], f.opts.OffsetX/2)
	putLE24(hdr[11:14], f.opts.OffsetY/2)
	if fw, fh := frameDimensions(f.data); fw > 0 && fh > 0 {
		putLE24(hdr[14:17], fw-1)
		putLE24(hdr[17:20], fh-1)
	}
	putLE24(hdr[20:23], f.opts.Duration)
	if f.opts.DisposeMode == DisposeBackground {
		hdr[23] |= 0x01
	}
	if f.opts.BlendMode == BlendNone {
		hdr[23] |= 0x02
	}
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if err := writeImageChunks(w, f.data); err != nil {
		return err
	}
	if payload%2 != 0 {
		_, err := w.Write([]byte{0})
		return err
	}
	return nil
}

// canvasSize returns the explicit canvas when set, otherwise the maximum
// extent of all frames (1x1 when there are none).
func (m *Muxer) canvasSize() (int, int) {
	if m.canvasWidth > 0 && m.canvasHeight > 0 {
		return m.canvasWidth, m.canvasHeight
	}
	maxW, maxH := 1, 1
	for _, f := range m.frames {
		fw, fh := frameDimensions(f.data)
		endX, endY := f.opts.OffsetX+fw, f.opts.OffsetY+fh
		if endX < f.opts.OffsetX {
			endX = math.MaxInt
		}
		if endY < f.opts.OffsetY {
			endY = math.MaxInt
		}
		maxW, maxH = max(maxW, endX), max(maxH, endY)
	}
	return maxW, maxH
}

// frameDimensions reads width/height from a (possibly ALPH-prefixed)
// bitstream, returning 0, 0 when the header cannot be parsed.
func frameDimensions(data []byte) (int, int) {
	_, bs := splitAlphaAndBitstream(data)
	if len(bs) > 0 && bs[0] == container.VP8LMagicByte {
		if w, h, _, err := parseVP8LDimensions(bs); err == nil {
			return w, h
		}
		return 0, 0
	}
	if w, h, err := parseVP8Dimensions(bs); err == nil {
		return w, h
	}
	return 0, 0
}

// detectBitstreamType returns the chunk ID for the given bitstream data.
func detectBitstreamType(data []byte) uint32 {
	if len(data) > 0 && data[0] == container.VP8LMagicByte {
		return container.FourCCVP8L
	}
	return container.FourCCVP8
}

// frameSubChunksSize returns the size of a frame's image chunks (optional
// ALPH + VP8/VP8L) including headers and padding.
func frameSubChunksSize(alphaData, bitstream []byte) uint32 {
	size := chunkSize(uint32(len(bitstream)))
	if alphaData != nil {
		size += chunkSize(uint32(len(alphaData)))
	}
	return size
}

func writeRIFFHeader(buf []byte, payloadSize uint32) {
	binary.LittleEndian.PutUint32(buf[0:4], container.FourCCRIFF)
	binary.LittleEndian.PutUint32(buf[4:8], payloadSize)
	binary.LittleEndian.PutUint32(buf[8:12], container.FourCCWEBP)
}

// writeDataChunk writes a chunk header + data + optional padding.
func writeDataChunk(w io.Writer, id uint32, data []byte) error {
	var hdr [container.ChunkHeaderSize]byte
	putChunkHeader(hdr[:], id, uint32(len(data)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if len(data)%2 != 0 {
		if _, err := w.Write([]byte{0}); err != nil {
			return err
		}
	}
	return nil
}

// putLE24 writes a 24-bit little-endian value into buf[0:3].
func putLE24(buf []byte, v int) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
}

// chunkSize is the space a chunk with n payload bytes takes on disk.
func chunkSize(n uint32) uint32 {
	return container.ChunkHeaderSize + container.PaddedSize(n)
}

func putChunkHeader(b []byte, id, n uint32) {
	binary.LittleEndian.PutUint32(b, id)
	binary.LittleEndian.PutUint32(b[4:], n)
}

// appendChunk appends id's header, data and any pad byte to dst.
func appendChunk(dst []byte, id uint32, data []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, id)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(data)))
	dst = append(dst, data...)
	if len(data)&1 == 1 {
		dst = append(dst, 0)
	}
	return dst
}
