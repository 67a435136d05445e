package engine

import (
	"errors"
	"io"
)

// Kind represents token kinds from a generic source.
type Kind int

const (
	KindBeginObject Kind = iota
	KindEndObject
	KindBeginArray
	KindEndArray
	KindKey
	KindString
	KindNumber
	KindBool
	KindNull
)

var kindNames = [...]string{
	KindBeginObject: "'{'",
	KindEndObject:   "'}'",
	KindBeginArray:  "'['",
	KindEndArray:    "']'",
	KindKey:         "key",
	KindString:      "string",
	KindNumber:      "number",
	KindBool:        "bool",
	KindNull:        "null",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Token represents a streaming token with approximate input offset.
type Token struct {
	Kind   Kind
	String string
	Number string
	Bool   bool
	Offset int64
}

// TokenSource is a minimal interface required by the engine.
type TokenSource interface {
	NextToken() (Token, error)
	Location() int64
}

// ErrUnexpectedToken is returned by SkipValue when the stream is not
// positioned at the start of a value.
var ErrUnexpectedToken = errors.New("engine: unexpected token")

// SkipValue consumes the remainder of the value that begins with tok,
// including every nested container.
func SkipValue(src TokenSource, tok Token) error {
	switch tok.Kind {
	case KindString, KindNumber, KindBool, KindNull:
		return nil
	case KindBeginObject, KindBeginArray:
	default:
		return ErrUnexpectedToken
	}
	depth := 1
	for depth > 0 {
		t, err := src.NextToken()
		if err != nil {
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		switch t.Kind {
		case KindBeginObject, KindBeginArray:
			depth++
		case KindEndObject, KindEndArray:
			depth--
		}
	}
	return nil
}
