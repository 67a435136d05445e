// Package gojson provides a JSON driver backed by goccy/go-json.
package gojson

import (
	"bytes"
	"errors"
	"io"
	"strconv"

	j "github.com/goccy/go-json"

	protoskema "github.com/reoring/protoskema"
	eng "github.com/reoring/protoskema/internal/engine"
)

// Driver returns a protoskema.JSONDriver backed by goccy/go-json.
func Driver() protoskema.JSONDriver { return driverGoJSON{} }

type driverGoJSON struct{}

func (driverGoJSON) NewReader(r io.Reader) protoskema.Source { return NewReader(r) }
func (driverGoJSON) NewBytes(b []byte) protoskema.Source     { return NewBytes(b) }
func (driverGoJSON) Name() string                            { return "go-json" }

type source struct {
	dec    *j.Decoder
	framer eng.Framer
}

// NewReader wraps an io.Reader into an engine.TokenSource for JSON using go-json.
func NewReader(r io.Reader) eng.TokenSource {
	dec := j.NewDecoder(r)
	dec.UseNumber()
	return &source{dec: dec}
}

// NewBytes wraps a byte slice into an engine.TokenSource for JSON using go-json.
func NewBytes(b []byte) eng.TokenSource { return NewReader(bytes.NewReader(b)) }

func (s *source) NextToken() (eng.Token, error) {
	tok, err := s.dec.Token()
	if err != nil {
		if err == io.EOF {
			return eng.Token{}, io.EOF
		}
		var se *j.SyntaxError
		if errors.As(err, &se) {
			return eng.Token{}, &eng.SyntaxError{Msg: se.Error(), Offset: se.Offset}
		}
		return eng.Token{}, &eng.SyntaxError{Msg: err.Error(), Offset: -1}
	}
	switch v := tok.(type) {
	case j.Delim:
		switch v {
		case '{':
			s.framer.Open(true)
			return eng.Token{Kind: eng.KindBeginObject, Offset: -1}, nil
		case '[':
			s.framer.Open(false)
			return eng.Token{Kind: eng.KindBeginArray, Offset: -1}, nil
		case '}':
			s.framer.Close()
			return eng.Token{Kind: eng.KindEndObject, Offset: -1}, nil
		default:
			s.framer.Close()
			return eng.Token{Kind: eng.KindEndArray, Offset: -1}, nil
		}
	case string:
		if s.framer.Key() {
			return eng.Token{Kind: eng.KindKey, String: v, Offset: -1}, nil
		}
		s.framer.Value()
		return eng.Token{Kind: eng.KindString, String: v, Offset: -1}, nil
	case bool:
		s.framer.Value()
		return eng.Token{Kind: eng.KindBool, Bool: v, Offset: -1}, nil
	case j.Number:
		s.framer.Value()
		return eng.Token{Kind: eng.KindNumber, Number: string(v), Offset: -1}, nil
	case float64:
		s.framer.Value()
		return eng.Token{Kind: eng.KindNumber, Number: strconv.FormatFloat(v, 'g', -1, 64), Offset: -1}, nil
	}
	s.framer.Value()
	return eng.Token{Kind: eng.KindNull, Offset: -1}, nil
}

// Location is unknown for go-json tokens.
func (s *source) Location() int64 { return -1 }
