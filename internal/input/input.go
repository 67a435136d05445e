// Package input reads the data argument of the command line tool.
package input

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Origin tells where a data argument came from.
type Origin int

const (
	FromStdin Origin = iota
	FromFile
	FromLiteral
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Read resolves a data argument: "" or "-" reads stdin, "@path" reads a
// file and anything else is returned as literal text. File and stdin
// contents are transparently decompressed when they carry a gzip or zstd
// header.
func Read(arg string, stdin io.Reader) ([]byte, Origin, error) {
	var (
		data   []byte
		origin Origin
		err    error
	)
	switch {
	case arg == "" || arg == "-":
		origin = FromStdin
		data, err = io.ReadAll(stdin)
	case strings.HasPrefix(arg, "@"):
		origin = FromFile
		data, err = os.ReadFile(arg[1:])
	default:
		return []byte(arg), FromLiteral, nil
	}
	if err != nil {
		return nil, origin, fmt.Errorf("read input: %w", err)
	}
	data, err = Decompress(data)
	return data, origin, err
}

// Decompress inflates gzip or zstd framed data and returns anything else
// unchanged.
func Decompress(b []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(b, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return out, nil
	case bytes.HasPrefix(b, zstdMagic):
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		out, err := dec.DecodeAll(b, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return out, nil
	}
	return b, nil
}

// DecodeBase64 decodes a base64 literal in the standard or URL-safe
// alphabet, with or without padding. Surrounding whitespace is ignored.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("base64: %w", firstErr)
}
