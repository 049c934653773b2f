// Package cfb builds and reads Compound File Binary (OLE2) containers.
//
// A File is an in-memory tree of storages and streams. WriteTo lays the tree
// out as a version 3 compound file with 512-byte sectors; Read parses an
// existing container back into the same tree.
package cfb

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf16"
)

const (
	// SectorSize is the size of a regular sector in a version 3 file.
	SectorSize = 512

	// MiniSectorSize is the size of a sector in the mini stream.
	MiniSectorSize = 64

	// MiniStreamCutoff is the size below which streams live in the mini stream.
	MiniStreamCutoff = 0x1000

	// DirEntrySize is the size of a directory entry.
	DirEntrySize = 128

	// MaxNameLength is the maximum entry name length in UTF-16 code units.
	MaxNameLength = 31

	// RootName is the fixed name of the root storage entry.
	RootName = "Root Entry"
)

var (
	// ErrDuplicateName is returned when a sibling with the same name exists.
	ErrDuplicateName = errors.New("cfb: duplicate entry name")

	// ErrInvalidName is returned for empty, too long or reserved-character names.
	ErrInvalidName = errors.New("cfb: invalid entry name")

	// ErrNotFound is returned when a looked-up entry does not exist.
	ErrNotFound = errors.New("cfb: entry not found")
)

// File is a compound file under construction or read from disk.
type File struct {
	root  *Storage
	clock func() time.Time
}

// Option configures a File.
type Option func(*File)

// WithClock sets the clock used to stamp storage entries when writing.
func WithClock(clock func() time.Time) Option {
	return func(f *File) {
		f.clock = clock
	}
}

// New creates an empty compound file.
func New(opts ...Option) *File {
	f := &File{
		root:  &Storage{name: RootName},
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Root returns the root storage.
func (f *File) Root() *Storage {
	return f.root
}

// Storage is a directory inside the compound file. Children keep their
// insertion order; the on-disk sibling tree is sorted at write time.
type Storage struct {
	name    string
	entries []*entry
}

type entry struct {
	name    string
	data    []byte
	storage *Storage
}

func (e *entry) isStorage() bool {
	return e.storage != nil
}

// Name returns the storage name.
func (s *Storage) Name() string {
	return s.name
}

// CreateStream adds a stream holding data. The slice is retained, not copied.
func (s *Storage) CreateStream(name string, data []byte) error {
	if err := s.checkNewName(name); err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	s.entries = append(s.entries, &entry{name: name, data: data})
	return nil
}

// CreateStorage adds a child storage and returns it.
func (s *Storage) CreateStorage(name string) (*Storage, error) {
	if err := s.checkNewName(name); err != nil {
		return nil, err
	}
	child := &Storage{name: name}
	s.entries = append(s.entries, &entry{name: name, storage: child})
	return child, nil
}

// Stream returns the content of a child stream. Names compare case-insensitively.
func (s *Storage) Stream(name string) ([]byte, error) {
	e := s.lookup(name)
	if e == nil || e.isStorage() {
		return nil, fmt.Errorf("%w: stream %q in %q", ErrNotFound, name, s.name)
	}
	return e.data, nil
}

// Storage returns a child storage.
func (s *Storage) Storage(name string) (*Storage, error) {
	e := s.lookup(name)
	if e == nil || !e.isStorage() {
		return nil, fmt.Errorf("%w: storage %q in %q", ErrNotFound, name, s.name)
	}
	return e.storage, nil
}

// Names lists child names in insertion order.
func (s *Storage) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.name
	}
	return names
}

func (s *Storage) lookup(name string) *entry {
	for _, e := range s.entries {
		if compareNames(e.name, name) == 0 {
			return e
		}
	}
	return nil
}

func (s *Storage) checkNewName(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if s.lookup(name) != nil {
		return fmt.Errorf("%w: %q in %q", ErrDuplicateName, name, s.name)
	}
	return nil
}

// ValidateName reports whether name can be used for a stream or storage.
func ValidateName(name string) error {
	n := len(utf16.Encode([]rune(name)))
	switch {
	case n == 0:
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	case n > MaxNameLength:
		return fmt.Errorf("%w: %q is %d characters, limit is %d", ErrInvalidName, name, n, MaxNameLength)
	case strings.ContainsAny(name, "/\\:!"):
		return fmt.Errorf("%w: %q contains a reserved character", ErrInvalidName, name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidName, name)
	}
	return nil
}

// compareNames orders names the way the directory tree requires: shorter
// names first, then by uppercased UTF-16 code unit.
func compareNames(a, b string) int {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	if len(ua) != len(ub) {
		if len(ua) < len(ub) {
			return -1
		}
		return 1
	}
	for i := range ua {
		ca, cb := upper(ua[i]), upper(ub[i])
		if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}
	}
	return 0
}

func upper(c uint16) uint16 {
	if utf16.IsSurrogate(rune(c)) {
		return c
	}
	u := unicode.ToUpper(rune(c))
	if u > 0xFFFF {
		return c
	}
	return uint16(u)
}
