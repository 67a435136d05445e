// Package json provides the encoding/json backed token source.
package json

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"

	eng "github.com/reoring/protoskema/internal/engine"
)

type jsonSource struct {
	dec        *json.Decoder
	framer     eng.Framer
	lastOffset int64
}

// NewReader wraps an io.Reader into an engine.TokenSource for JSON.
func NewReader(r io.Reader) eng.TokenSource {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &jsonSource{dec: dec, lastOffset: -1}
}

// NewBytes wraps a byte slice into an engine.TokenSource for JSON.
func NewBytes(b []byte) eng.TokenSource { return NewReader(bytes.NewReader(b)) }

func (s *jsonSource) NextToken() (eng.Token, error) {
	tok, err := s.dec.Token()
	if err != nil {
		return eng.Token{}, s.wrapErr(err)
	}
	s.lastOffset = s.dec.InputOffset()
	off := s.lastOffset

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			s.framer.Open(true)
			return eng.Token{Kind: eng.KindBeginObject, Offset: off}, nil
		case '[':
			s.framer.Open(false)
			return eng.Token{Kind: eng.KindBeginArray, Offset: off}, nil
		case '}':
			s.framer.Close()
			return eng.Token{Kind: eng.KindEndObject, Offset: off}, nil
		default:
			s.framer.Close()
			return eng.Token{Kind: eng.KindEndArray, Offset: off}, nil
		}
	case string:
		if s.framer.Key() {
			return eng.Token{Kind: eng.KindKey, String: v, Offset: off}, nil
		}
		s.framer.Value()
		return eng.Token{Kind: eng.KindString, String: v, Offset: off}, nil
	case bool:
		s.framer.Value()
		return eng.Token{Kind: eng.KindBool, Bool: v, Offset: off}, nil
	case json.Number:
		s.framer.Value()
		return eng.Token{Kind: eng.KindNumber, Number: string(v), Offset: off}, nil
	case float64:
		s.framer.Value()
		return eng.Token{Kind: eng.KindNumber, Number: strconv.FormatFloat(v, 'g', -1, 64), Offset: off}, nil
	}
	s.framer.Value()
	return eng.Token{Kind: eng.KindNull, Offset: off}, nil
}

func (s *jsonSource) wrapErr(err error) error {
	if err == io.EOF {
		return io.EOF
	}
	var se *json.SyntaxError
	if errors.As(err, &se) {
		return &eng.SyntaxError{Msg: se.Error(), Offset: se.Offset}
	}
	if err == io.ErrUnexpectedEOF {
		return &eng.SyntaxError{Msg: "unexpected end of JSON input", Offset: s.dec.InputOffset()}
	}
	return &eng.SyntaxError{Msg: err.Error(), Offset: s.dec.InputOffset()}
}

func (s *jsonSource) Location() int64 { return s.lastOffset }
