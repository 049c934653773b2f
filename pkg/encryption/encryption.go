// Package encryption implements the reversible data encryption applied to the
// CMG, DPB and GC properties of a VBA PROJECT stream.
//
// The scheme only obfuscates. It is keyed by the project identifier string
// and a random seed, and anybody holding the output can reverse it.
package encryption

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Version is the fixed encryption version byte.
const Version = 2

// headerSize covers the seed, version and project key bytes.
const headerSize = 3

var (
	// ErrTruncated is returned when encrypted data ends early.
	ErrTruncated = errors.New("encryption: data truncated")

	// ErrKeyMismatch is returned when the data was not encrypted with the given key.
	ErrKeyMismatch = errors.New("encryption: project key mismatch")

	// ErrLengthMismatch is returned when the embedded length disagrees with the payload.
	ErrLengthMismatch = errors.New("encryption: length mismatch")

	// ErrVersion is returned for an unknown encryption version.
	ErrVersion = errors.New("encryption: unsupported version")
)

// ProjectKey sums the bytes of the project identifier string.
func ProjectKey(id string) byte {
	var key byte
	for i := 0; i < len(id); i++ {
		key += id[i]
	}
	return key
}

// state carries the rolling bytes shared by encryption and decryption.
type state struct {
	encByte1    byte
	encByte2    byte
	unencrypted byte
}

func newState(seed, key byte) state {
	return state{
		encByte1:    seed ^ key,
		encByte2:    seed ^ Version,
		unencrypted: key,
	}
}

func (s *state) encrypt(b byte) byte {
	enc := b ^ (s.encByte2 + s.unencrypted)
	s.roll(enc, b)
	return enc
}

func (s *state) decrypt(enc byte) byte {
	b := enc ^ (s.encByte2 + s.unencrypted)
	s.roll(enc, b)
	return b
}

func (s *state) roll(enc, plain byte) {
	s.encByte2 = s.encByte1
	s.encByte1 = enc
	s.unencrypted = plain
}

func ignoredLength(seed byte) int {
	return int(seed&6) / 2
}

// Encrypt encrypts data with the given seed and project identifier string.
// The ignored padding bytes are drawn from src.
func Encrypt(seed byte, id string, data []byte, src Source) ([]byte, error) {
	key := ProjectKey(id)
	st := newState(seed, key)

	padding := make([]byte, ignoredLength(seed))
	if len(padding) > 0 {
		if err := src.NonZeroBytes(padding); err != nil {
			return nil, fmt.Errorf("read padding: %w", err)
		}
	}

	out := make([]byte, 0, headerSize+len(padding)+4+len(data))
	out = append(out, seed, seed^Version, seed^key)

	for _, b := range padding {
		out = append(out, st.encrypt(b))
	}

	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(data)))
	for _, b := range length {
		out = append(out, st.encrypt(b))
	}

	for _, b := range data {
		out = append(out, st.encrypt(b))
	}

	return out, nil
}

// EncryptHex draws a fresh seed from src, encrypts data and returns the
// result as uppercase hex, the form stored in the PROJECT stream.
func EncryptHex(id string, data []byte, src Source) (string, error) {
	var seed [1]byte
	if err := src.NonZeroBytes(seed[:]); err != nil {
		return "", fmt.Errorf("read seed: %w", err)
	}

	enc, err := Encrypt(seed[0], id, data, src)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(enc)), nil
}

// Decrypt recovers the data encrypted by Encrypt. The seed is read from the
// first byte of enc.
func Decrypt(id string, enc []byte) ([]byte, error) {
	if len(enc) < headerSize {
		return nil, ErrTruncated
	}

	seed := enc[0]
	if enc[1]^seed != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, enc[1]^seed)
	}

	key := ProjectKey(id)
	if enc[2]^seed != key {
		return nil, ErrKeyMismatch
	}

	st := newState(seed, key)
	rest := enc[headerSize:]

	skip := ignoredLength(seed)
	if len(rest) < skip+4 {
		return nil, ErrTruncated
	}
	for _, b := range rest[:skip] {
		st.decrypt(b)
	}
	rest = rest[skip:]

	var length [4]byte
	for i := range length {
		length[i] = st.decrypt(rest[i])
	}
	rest = rest[4:]

	n := binary.LittleEndian.Uint32(length[:])
	if uint64(n) != uint64(len(rest)) {
		return nil, fmt.Errorf("%w: header says %d, got %d", ErrLengthMismatch, n, len(rest))
	}

	data := make([]byte, len(rest))
	for i, b := range rest {
		data[i] = st.decrypt(b)
	}
	return data, nil
}

// DecryptHex decodes a hex string from the PROJECT stream and decrypts it.
func DecryptHex(id, s string) ([]byte, error) {
	enc, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return Decrypt(id, enc)
}
