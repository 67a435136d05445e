package engine

import "strconv"

// Framer tracks container nesting for drivers that sit on top of a decoder
// whose Token API does not distinguish object keys from string values.
type Framer struct {
	stack []frameState
}

type frameState struct {
	object       bool
	expectingKey bool
}

// Open records the start of an object or array.
func (f *Framer) Open(object bool) {
	f.stack = append(f.stack, frameState{object: object, expectingKey: object})
}

// Close records the end of the innermost container, which is itself a value
// of its parent.
func (f *Framer) Close() {
	if n := len(f.stack); n > 0 {
		f.stack = f.stack[:n-1]
	}
	f.Value()
}

// Key reports whether the next string token is an object key and, if so,
// flips the enclosing object to expect its value.
func (f *Framer) Key() bool {
	if n := len(f.stack); n > 0 {
		top := &f.stack[n-1]
		if top.object && top.expectingKey {
			top.expectingKey = false
			return true
		}
	}
	return false
}

// Value marks a scalar (or closed container) as consumed.
func (f *Framer) Value() {
	if n := len(f.stack); n > 0 {
		top := &f.stack[n-1]
		if top.object && !top.expectingKey {
			top.expectingKey = true
		}
	}
}

// SyntaxError is the driver-neutral form of a JSON lexing error.
type SyntaxError struct {
	Msg    string
	Offset int64 // -1 when the driver cannot tell
}

func (e *SyntaxError) Error() string {
	if e.Offset < 0 {
		return e.Msg
	}
	return e.Msg + " (offset " + strconv.FormatInt(e.Offset, 10) + ")"
}
