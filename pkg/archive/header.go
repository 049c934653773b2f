// Package archive stores named byte entries in a zstd-compressed bundle
// behind a fixed binary header. Compiled projects use it to dump their
// intermediate streams for inspection.
package archive

import (
	"encoding/binary"
	"fmt"
)

// Magic bytes identifying a bundle header.
var Magic = [4]byte{0x56, 0x42, 0x41, 0x42} // "VBAB"

// HeaderSize is the fixed binary size of a bundle header.
const HeaderSize = 28 // 4 + 4 + 4 + 8 + 8 bytes

// headerLength is the number of header bytes after the length field.
const headerLength = HeaderSize - 8

// entryOverhead is the framing written before each entry's bytes: a
// uint16 name length and a uint64 data length.
const entryOverhead = 2 + 8

// Header precedes the compressed entry table of a bundle.
type Header struct {
	Magic            [4]byte
	HeaderLength     uint32
	EntryCount       uint32
	Length           uint64 // entry table bytes before compression
	CompressedLength uint64
}

// Validate rejects headers that cannot describe a bundle.
func (h *Header) Validate() error {
	if h.Magic != Magic {
		return fmt.Errorf("not a bundle: magic %q", h.Magic[:])
	}
	if h.HeaderLength != headerLength {
		return fmt.Errorf("bundle header length %d, want %d", h.HeaderLength, headerLength)
	}
	if floor := uint64(h.EntryCount) * entryOverhead; h.Length < floor {
		return fmt.Errorf("entry table of %d bytes cannot hold %d entries", h.Length, h.EntryCount)
	}
	if h.CompressedLength == 0 {
		return fmt.Errorf("bundle has no compressed data")
	}
	return nil
}

// MarshalBinary returns the HeaderSize-byte encoding of h.
func (h *Header) MarshalBinary() ([]byte, error) {
	out := make([]byte, HeaderSize)
	h.EncodeTo(out)
	return out, nil
}

// EncodeTo stores h in the first HeaderSize bytes of buf.
func (h *Header) EncodeTo(buf []byte) {
	copy(buf[:4], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.HeaderLength)
	binary.LittleEndian.PutUint32(buf[8:12], h.EntryCount)
	binary.LittleEndian.PutUint64(buf[12:20], h.Length)
	binary.LittleEndian.PutUint64(buf[20:28], h.CompressedLength)
}

// UnmarshalBinary decodes and validates a header.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("bundle header is %d bytes, want %d", len(data), HeaderSize)
	}
	h.DecodeFrom(data)
	return h.Validate()
}

// DecodeFrom loads h from buf without validating it.
func (h *Header) DecodeFrom(data []byte) {
	copy(h.Magic[:], data[:4])
	h.HeaderLength = binary.LittleEndian.Uint32(data[4:8])
	h.EntryCount = binary.LittleEndian.Uint32(data[8:12])
	h.Length = binary.LittleEndian.Uint64(data[12:20])
	h.CompressedLength = binary.LittleEndian.Uint64(data[20:28])
}

// NewHeader creates a bundle header with the given counts and sizes.
func NewHeader(entryCount uint32, uncompressedSize, compressedSize uint64) *Header {
	return &Header{
		Magic:            Magic,
		HeaderLength:     headerLength,
		EntryCount:       entryCount,
		Length:           uncompressedSize,
		CompressedLength: compressedSize,
	}
}
