package cfb

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/richardlehane/mscfb"
)

// Read parses a compound file into a File tree. Stream contents are loaded
// into memory.
func Read(r io.ReaderAt) (*File, error) {
	doc, err := mscfb.New(r)
	if err != nil {
		return nil, fmt.Errorf("open compound file: %w", err)
	}

	f := New()
	for {
		item, err := doc.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read directory: %w", err)
		}

		path := item.Path
		if len(path) > 0 && path[0] == RootName {
			path = path[1:]
		}
		if len(path) == 0 && item.Name == RootName && item.FileInfo().IsDir() {
			continue
		}

		parent, err := f.mkdirAll(path)
		if err != nil {
			return nil, err
		}

		if item.FileInfo().IsDir() {
			if _, err := parent.ensureStorage(item.Name); err != nil {
				return nil, err
			}
			continue
		}

		data := make([]byte, item.Size)
		if _, err := io.ReadFull(item, data); err != nil {
			return nil, fmt.Errorf("read stream %q: %w", item.Name, err)
		}
		if err := parent.CreateStream(item.Name, data); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// ReadBytes parses an in-memory container.
func ReadBytes(data []byte) (*File, error) {
	return Read(bytes.NewReader(data))
}

func (f *File) mkdirAll(path []string) (*Storage, error) {
	s := f.root
	for _, name := range path {
		var err error
		if s, err = s.ensureStorage(name); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Storage) ensureStorage(name string) (*Storage, error) {
	if e := s.lookup(name); e != nil {
		if !e.isStorage() {
			return nil, fmt.Errorf("%w: %q is a stream", ErrDuplicateName, name)
		}
		return e.storage, nil
	}
	return s.CreateStorage(name)
}
