package archive

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/DataDog/zstd"
)

// BenchmarkCompression compares zstd levels on module-like text.
func BenchmarkCompression(b *testing.B) {
	data := bytes.Repeat([]byte("Attribute VB_Name = \"Module1\"\r\nSub Main()\r\n    Debug.Print 1\r\nEnd Sub\r\n"), 4096)

	for _, level := range []int{zstd.BestSpeed, zstd.DefaultCompression} {
		b.Run(fmt.Sprintf("Level%d", level), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			for i := 0; i < b.N; i++ {
				if _, err := zstd.CompressLevel(nil, data, level); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkHeader measures encoding and validating a bundle header.
func BenchmarkHeader(b *testing.B) {
	header := NewHeader(8, 1024*1024, 512*1024)

	b.Run("EncodeTo", func(b *testing.B) {
		buf := make([]byte, HeaderSize)
		for i := 0; i < b.N; i++ {
			header.EncodeTo(buf)
		}
	})

	data, _ := header.MarshalBinary()

	b.Run("Unmarshal", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			h := &Header{}
			if err := h.UnmarshalBinary(data); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkBundle writes and reads sixteen module-sized entries.
func BenchmarkBundle(b *testing.B) {
	entries := make([]Entry, 16)
	for i := range entries {
		entries[i] = Entry{
			Name: fmt.Sprintf("modules/Module%d.bas", i),
			Data: bytes.Repeat([]byte("Debug.Print \"hello\"\r\n"), 2048),
		}
	}

	b.Run("Write", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var buf bytes.Buffer
			if err := WriteBundle(&seekableBuffer{Buffer: &buf}, entries); err != nil {
				b.Fatal(err)
			}
		}
	})

	var buf bytes.Buffer
	if err := WriteBundle(&seekableBuffer{Buffer: &buf}, entries); err != nil {
		b.Fatal(err)
	}
	encoded := buf.Bytes()

	b.Run("Read", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := ReadBundle(bytes.NewReader(encoded)); err != nil {
				b.Fatal(err)
			}
		}
	})
}
