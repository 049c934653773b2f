package archive

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/DataDog/zstd"
)

const (
	// DefaultCompressionLevel is the default compression level for encoding.
	DefaultCompressionLevel = zstd.BestSpeed
)

// Reader decompresses the entries of a bundle.
type Reader struct {
	header    *Header
	zReader   io.ReadCloser
	read      uint32
	consumed  uint64
	headerBuf [HeaderSize]byte
}

// NewReader reads and validates the header, then returns a reader
// positioned at the first entry.
func NewReader(r io.Reader) (*Reader, error) {
	reader := &Reader{
		header: &Header{},
	}

	if _, err := io.ReadFull(r, reader.headerBuf[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	if err := reader.header.UnmarshalBinary(reader.headerBuf[:]); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}

	reader.zReader = zstd.NewReader(r)
	return reader, nil
}

// Header returns the bundle header.
func (r *Reader) Header() *Header {
	return r.header
}

// EntryCount returns the number of entries in the bundle.
func (r *Reader) EntryCount() int {
	return int(r.header.EntryCount)
}

// Next returns the next entry, or io.EOF after the last one.
func (r *Reader) Next() (*Entry, error) {
	if r.read == r.header.EntryCount {
		return nil, io.EOF
	}

	var frame [entryOverhead]byte
	if _, err := io.ReadFull(r.zReader, frame[:2]); err != nil {
		return nil, fmt.Errorf("read entry %d: %w", r.read, err)
	}
	name := make([]byte, binary.LittleEndian.Uint16(frame[:2]))
	if _, err := io.ReadFull(r.zReader, name); err != nil {
		return nil, fmt.Errorf("read entry %d name: %w", r.read, err)
	}
	if _, err := io.ReadFull(r.zReader, frame[2:]); err != nil {
		return nil, fmt.Errorf("read entry %q: %w", name, err)
	}

	size := binary.LittleEndian.Uint64(frame[2:])
	r.consumed += uint64(entryOverhead + len(name))
	if r.consumed > r.header.Length || size > r.header.Length-r.consumed {
		return nil, fmt.Errorf("entry %q of %d bytes overruns bundle", name, size)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(r.zReader, data); err != nil {
		return nil, fmt.Errorf("read entry %q: %w", name, err)
	}
	r.consumed += size
	r.read++

	return &Entry{Name: string(name), Data: data}, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.zReader.Close()
}

// ReadBundle reads every entry of a bundle in write order.
func ReadBundle(r io.Reader) ([]Entry, error) {
	reader, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	entries := make([]Entry, 0, min(reader.EntryCount(), 1024))
	for {
		e, err := reader.Next()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
}
