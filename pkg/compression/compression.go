// Package compression implements the MS-OVBA compression codec used for the
// dir stream and module streams of a VBA project.
//
// A compressed container is a signature byte followed by chunks. Each chunk
// holds at most 4096 decompressed bytes and is either a token sequence
// (literal bytes and back-references) or a raw copy of the input.
package compression

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// SignatureByte starts every compressed container.
	SignatureByte = 0x01

	// ChunkSize is the maximum number of decompressed bytes per chunk.
	ChunkSize = 4096

	chunkSignature      = 0b011 << 12
	chunkSignatureMask  = 0b111 << 12
	chunkCompressedFlag = 1 << 15
	chunkSizeMask       = 0x0FFF

	minMatchLength = 3
)

var (
	// ErrInvalidSignature is returned when the container does not start with SignatureByte.
	ErrInvalidSignature = errors.New("compression: invalid signature byte")

	// ErrCorruptChunk is returned when a chunk header or token points outside the data.
	ErrCorruptChunk = errors.New("compression: corrupt chunk")
)

// Compress returns the compressed container for data. An empty input yields
// a container holding only the signature byte.
func Compress(data []byte) []byte {
	out := make([]byte, 0, len(data)/2+ChunkSize/8)
	out = append(out, SignatureByte)
	for start := 0; start < len(data); start += ChunkSize {
		end := min(start+ChunkSize, len(data))
		out = appendChunk(out, data[start:end])
	}
	return out
}

// appendChunk compresses a single chunk of at most ChunkSize bytes. When the
// token sequence would not fit the chunk is stored raw.
func appendChunk(dst, chunk []byte) []byte {
	body := make([]byte, 0, ChunkSize+ChunkSize/8+1)

	for pos := 0; pos < len(chunk); {
		flagIndex := len(body)
		body = append(body, 0)

		for bit := 0; bit < 8 && pos < len(chunk); bit++ {
			offset, length := longestMatch(chunk, pos)
			if length == 0 {
				body = append(body, chunk[pos])
				pos++
				continue
			}

			body = binary.LittleEndian.AppendUint16(body, packCopyToken(pos, offset, length))
			body[flagIndex] |= 1 << bit
			pos += length
		}
	}

	if len(body) > ChunkSize {
		// Raw chunks always hold a full chunk; a short final chunk is zero padded.
		dst = binary.LittleEndian.AppendUint16(dst, uint16(ChunkSize-1)|chunkSignature)
		dst = append(dst, chunk...)
		return append(dst, make([]byte, ChunkSize-len(chunk))...)
	}

	header := uint16(len(body)-1) | chunkSignature | chunkCompressedFlag
	dst = binary.LittleEndian.AppendUint16(dst, header)
	return append(dst, body...)
}

// longestMatch finds the longest earlier occurrence of the bytes at pos.
// Ties go to the nearest candidate. It returns a zero length when no match of
// at least three bytes exists.
func longestMatch(chunk []byte, pos int) (offset, length int) {
	_, _, maxLength := copyTokenHelp(pos)
	limit := min(len(chunk)-pos, maxLength)

	best, bestCandidate := 0, 0
	for candidate := pos - 1; candidate >= 0; candidate-- {
		n := 0
		for n < limit && chunk[candidate+n] == chunk[pos+n] {
			n++
		}
		if n > best {
			best, bestCandidate = n, candidate
			if best == limit {
				break
			}
		}
	}

	if best < minMatchLength {
		return 0, 0
	}
	return pos - bestCandidate, best
}

// copyTokenHelp returns the layout of a copy token emitted at the given
// distance from the start of the decompressed chunk.
func copyTokenHelp(difference int) (bitCount uint, lengthMask uint16, maxLength int) {
	bitCount = 4
	for 1<<bitCount < difference {
		bitCount++
	}
	lengthMask = 0xFFFF >> bitCount
	return bitCount, lengthMask, int(lengthMask) + minMatchLength
}

func packCopyToken(pos, offset, length int) uint16 {
	bitCount, _, _ := copyTokenHelp(pos)
	return uint16(offset-1)<<(16-bitCount) | uint16(length-minMatchLength)
}

// Decompress reverses Compress. It also accepts containers produced by
// Office, including raw chunks. A raw chunk always yields 4096 bytes, so
// the output of a padded final chunk ends in its zero padding.
func Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 || data[0] != SignatureByte {
		return nil, ErrInvalidSignature
	}

	out := make([]byte, 0, len(data)*2)
	pos := 1
	for pos < len(data) {
		if pos+2 > len(data) {
			return nil, fmt.Errorf("%w: truncated header at offset %d", ErrCorruptChunk, pos)
		}

		header := binary.LittleEndian.Uint16(data[pos:])
		if header&chunkSignatureMask != chunkSignature {
			return nil, fmt.Errorf("%w: bad chunk signature 0x%04X at offset %d", ErrCorruptChunk, header, pos)
		}

		end := min(pos+int(header&chunkSizeMask)+3, len(data))
		pos += 2

		if header&chunkCompressedFlag == 0 {
			n := min(ChunkSize, len(data)-pos)
			out = append(out, data[pos:pos+n]...)
			pos += n
			continue
		}

		var err error
		if out, pos, err = decompressChunk(out, data, pos, end); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func decompressChunk(out, data []byte, pos, end int) ([]byte, int, error) {
	chunkStart := len(out)

	for pos < end {
		flags := data[pos]
		pos++

		for bit := 0; bit < 8 && pos < end; bit++ {
			if flags&(1<<bit) == 0 {
				out = append(out, data[pos])
				pos++
				continue
			}

			if pos+2 > end {
				return nil, 0, fmt.Errorf("%w: truncated copy token at offset %d", ErrCorruptChunk, pos)
			}
			token := binary.LittleEndian.Uint16(data[pos:])
			pos += 2

			bitCount, lengthMask, _ := copyTokenHelp(len(out) - chunkStart)
			length := int(token&lengthMask) + minMatchLength
			offset := int(token>>(16-bitCount)) + 1
			if offset > len(out)-chunkStart {
				return nil, 0, fmt.Errorf("%w: copy offset %d before chunk start", ErrCorruptChunk, offset)
			}

			src := len(out) - offset
			for i := 0; i < length; i++ {
				out = append(out, out[src+i])
			}
		}
	}

	return out, pos, nil
}
