package compression

import (
	"errors"
	"fmt"
	"io"
)

// Writer compresses data written to it into a container on dst. Chunks are
// independent, so each full chunk is flushed as soon as it is buffered.
type Writer struct {
	dst     io.Writer
	pending []byte
	started bool
	closed  bool
}

// NewWriter creates a Writer that writes a compressed container to dst.
func NewWriter(dst io.Writer) *Writer {
	return &Writer{
		dst:     dst,
		pending: make([]byte, 0, ChunkSize),
	}
}

// Write buffers p and flushes every completed chunk.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("compression: write after close")
	}

	written := 0
	for len(p) > 0 {
		n := min(ChunkSize-len(w.pending), len(p))
		w.pending = append(w.pending, p[:n]...)
		p = p[n:]
		written += n

		if len(w.pending) == ChunkSize {
			if err := w.flush(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Close flushes the final partial chunk. A Writer that received no data
// still emits the signature byte.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if len(w.pending) > 0 || !w.started {
		return w.flush()
	}
	return nil
}

func (w *Writer) flush() error {
	var out []byte
	if !w.started {
		out = append(out, SignatureByte)
		w.started = true
	}
	if len(w.pending) > 0 {
		out = appendChunk(out, w.pending)
	}
	w.pending = w.pending[:0]

	if _, err := w.dst.Write(out); err != nil {
		return fmt.Errorf("write chunk: %w", err)
	}
	return nil
}
