package vba

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// DefaultCodePage is the Windows Western European code page.
const DefaultCodePage = 1252

var codePages = map[uint16]*charmap.Charmap{
	437:   charmap.CodePage437,
	850:   charmap.CodePage850,
	874:   charmap.Windows874,
	1250:  charmap.Windows1250,
	1251:  charmap.Windows1251,
	1252:  charmap.Windows1252,
	1253:  charmap.Windows1253,
	1254:  charmap.Windows1254,
	1255:  charmap.Windows1255,
	1256:  charmap.Windows1256,
	1257:  charmap.Windows1257,
	1258:  charmap.Windows1258,
	10000: charmap.Macintosh,
	28591: charmap.ISO8859_1,
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Encoding converts strings to the two byte forms stored in a VBA project:
// a single-byte ANSI code page and UTF-16LE.
type Encoding struct {
	codePage uint16
	charmap  *charmap.Charmap
}

// NewEncoding returns the encoding for a Windows code page.
func NewEncoding(codePage uint16) (*Encoding, error) {
	cm, ok := codePages[codePage]
	if !ok {
		return nil, validationErrorf("CodePage", "code page %d is not supported", codePage)
	}
	return &Encoding{codePage: codePage, charmap: cm}, nil
}

// CodePage returns the Windows code page number.
func (e *Encoding) CodePage() uint16 {
	return e.codePage
}

// ANSI encodes s in the code page. Characters the code page cannot
// represent become '?'.
func (e *Encoding) ANSI(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < utf8.RuneSelf {
			out = append(out, byte(r))
			continue
		}
		if b, ok := e.charmap.EncodeRune(r); ok {
			out = append(out, b)
			continue
		}
		out = append(out, '?')
	}
	return out
}

// DecodeANSI decodes code page bytes.
func (e *Encoding) DecodeANSI(b []byte) (string, error) {
	s, err := e.charmap.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode code page %d: %w", e.codePage, err)
	}
	return string(s), nil
}

// UTF16 encodes s as UTF-16LE without a byte order mark. Invalid UTF-8 is
// encoded as U+FFFD.
func UTF16(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 0, len(units)*2)
	for _, u := range units {
		out = binary.LittleEndian.AppendUint16(out, u)
	}
	return out
}

// DecodeUTF16 decodes UTF-16LE bytes.
func DecodeUTF16(b []byte) (string, error) {
	s, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode utf-16: %w", err)
	}
	return string(s), nil
}

func hasNUL(b []byte) bool {
	return bytes.IndexByte(b, 0) >= 0
}
