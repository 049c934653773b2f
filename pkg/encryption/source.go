package encryption

import (
	"crypto/rand"
	"fmt"
)

// Source supplies the non-zero random bytes used for seeds and padding.
type Source interface {
	NonZeroBytes(p []byte) error
}

// CryptoSource draws bytes from crypto/rand, discarding zeros.
type CryptoSource struct{}

// NonZeroBytes fills p with random non-zero bytes.
func (CryptoSource) NonZeroBytes(p []byte) error {
	var buf [1]byte
	for i := range p {
		for {
			if _, err := rand.Read(buf[:]); err != nil {
				return fmt.Errorf("read random: %w", err)
			}
			if buf[0] != 0 {
				p[i] = buf[0]
				break
			}
		}
	}
	return nil
}

// Fixed fills every requested byte with the same non-zero value.
type Fixed byte

// NonZeroBytes fills p with f.
func (f Fixed) NonZeroBytes(p []byte) error {
	if f == 0 {
		return fmt.Errorf("fixed source value must be non-zero")
	}
	for i := range p {
		p[i] = byte(f)
	}
	return nil
}

// Sequence is a repeatable source producing (i*17+31)%255+1 for the i-th
// byte it hands out. The zero value starts at index 0.
type Sequence struct {
	index int
}

// NonZeroBytes fills p with the next bytes of the sequence.
func (s *Sequence) NonZeroBytes(p []byte) error {
	for i := range p {
		p[i] = byte((s.index*17+31)%255 + 1)
		s.index++
	}
	return nil
}
