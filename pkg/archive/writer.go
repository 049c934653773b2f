package archive

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/DataDog/zstd"
)

// Entry is one named blob of a bundle.
type Entry struct {
	Name string
	Data []byte
}

// Writer streams entries through a zstd compressor into an io.WriteSeeker.
// The header is rewritten with the final counts on Close.
type Writer struct {
	dst     io.WriteSeeker
	zWriter *zstd.Writer
	header  *Header
	level   int
	start   int64
	closed  bool
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithCompressionLevel sets the compression level for the writer.
func WithCompressionLevel(level int) WriterOption {
	return func(w *Writer) {
		w.level = level
	}
}

// NewWriter starts a bundle at the current position of dst.
func NewWriter(dst io.WriteSeeker, opts ...WriterOption) (*Writer, error) {
	w := &Writer{
		dst:    dst,
		level:  DefaultCompressionLevel,
		header: NewHeader(0, 0, 0),
	}

	for _, opt := range opts {
		opt(w)
	}

	start, err := dst.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}
	w.start = start

	// Placeholder, rewritten by Close.
	headerBytes, err := w.header.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}
	if _, err := dst.Write(headerBytes); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	w.zWriter = zstd.NewWriterLevel(dst, w.level)
	return w, nil
}

// WriteEntry appends one named entry.
func (w *Writer) WriteEntry(name string, data []byte) error {
	if name == "" {
		return fmt.Errorf("entry name is empty")
	}
	if len(name) > math.MaxUint16 {
		return fmt.Errorf("entry name of %d bytes exceeds %d", len(name), math.MaxUint16)
	}
	if w.header.EntryCount == math.MaxUint32 {
		return fmt.Errorf("too many entries")
	}

	var frame [entryOverhead]byte
	binary.LittleEndian.PutUint16(frame[0:2], uint16(len(name)))
	if _, err := w.zWriter.Write(frame[:2]); err != nil {
		return fmt.Errorf("write entry %q: %w", name, err)
	}
	if _, err := io.WriteString(w.zWriter, name); err != nil {
		return fmt.Errorf("write entry %q: %w", name, err)
	}
	binary.LittleEndian.PutUint64(frame[2:10], uint64(len(data)))
	if _, err := w.zWriter.Write(frame[2:10]); err != nil {
		return fmt.Errorf("write entry %q: %w", name, err)
	}
	if _, err := w.zWriter.Write(data); err != nil {
		return fmt.Errorf("write entry %q: %w", name, err)
	}

	w.header.EntryCount++
	w.header.Length += uint64(entryOverhead + len(name) + len(data))
	return nil
}

// Close finalizes the bundle by updating the header with the entry count
// and sizes. Calls after the first return nil.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.zWriter.Close(); err != nil {
		return fmt.Errorf("close compressor: %w", err)
	}

	pos, err := w.dst.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("get position: %w", err)
	}

	w.header.CompressedLength = uint64(pos-w.start-HeaderSize)

	if _, err := w.dst.Seek(w.start, io.SeekStart); err != nil {
		return fmt.Errorf("seek to start: %w", err)
	}

	headerBytes, err := w.header.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}

	if _, err := w.dst.Write(headerBytes); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if _, err := w.dst.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}

	return nil
}

// abort releases the compressor without rewriting the header.
func (w *Writer) abort() {
	if w.closed {
		return
	}
	w.closed = true
	w.zWriter.Close()
}

// WriteBundle writes entries as a complete bundle to dst. The compressor is
// released on every return path.
func WriteBundle(dst io.WriteSeeker, entries []Entry, opts ...WriterOption) error {
	w, err := NewWriter(dst, opts...)
	if err != nil {
		return err
	}
	defer w.abort()

	for _, e := range entries {
		if err := w.WriteEntry(e.Name, e.Data); err != nil {
			return err
		}
	}

	return w.Close()
}
