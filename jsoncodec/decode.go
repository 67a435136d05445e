package jsoncodec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"math"
	"strconv"
	"unicode/utf8"

	protoskema "github.com/reoring/protoskema"
	"github.com/reoring/protoskema/dynamic"
	eng "github.com/reoring/protoskema/internal/engine"
	"github.com/reoring/protoskema/schema"
)

// UnmarshalOptions configures Unmarshal. The zero value strips unknown keys,
// lets the last duplicate key win and uses the current JSON driver.
type UnmarshalOptions struct {
	// Unknown decides whether keys without a matching field are dropped or
	// rejected.
	Unknown protoskema.UnknownPolicy
	// Strictness configures duplicate key handling.
	Strictness protoskema.Strictness
	// MaxDepth bounds JSON container nesting (0 = unlimited).
	MaxDepth int
	// MaxBytes bounds the consumed input (0 = unlimited).
	MaxBytes int64
	// RecursionLimit bounds message nesting. Zero means
	// protoskema.DefaultRecursionLimit.
	RecursionLimit int
	// Driver overrides protoskema.CurrentJSONDriver.
	Driver protoskema.JSONDriver
	// IssueSink receives duplicate key warnings under Strictness Warn.
	IssueSink func(protoskema.Issue)
}

// Unmarshal parses a JSON object into a new message of type md with default
// options.
func Unmarshal(md *schema.MessageDescriptor, data []byte) (*dynamic.Message, error) {
	return UnmarshalOptions{}.Unmarshal(md, data)
}

// Unmarshal parses a JSON object into a new message of type md. On error no
// message is returned.
func (opts UnmarshalOptions) Unmarshal(md *schema.MessageDescriptor, data []byte) (*dynamic.Message, error) {
	m := dynamic.New(md)
	if err := opts.decode(m, data); err != nil {
		return nil, err
	}
	return m, nil
}

// UnmarshalInto merges a JSON object into m. Keys present in the input
// replace the corresponding fields. On error m is left unchanged.
func (opts UnmarshalOptions) UnmarshalInto(m *dynamic.Message, data []byte) error {
	work := m.Clone()
	if err := opts.decode(work, data); err != nil {
		return err
	}
	return m.Swap(work)
}

func (opts UnmarshalOptions) decode(m *dynamic.Message, data []byte) error {
	if off := invalidUTF8(data); off >= 0 {
		return protoskema.NewIssue(protoskema.CodeInvalidUTF8, int64(off), "input is not valid UTF-8")
	}
	if off := loneSurrogate(data); off >= 0 {
		return protoskema.NewIssue(protoskema.CodeInvalidUTF8, int64(off), "string escape encodes an unpaired surrogate")
	}
	drv := opts.Driver
	if drv == nil {
		drv = protoskema.CurrentJSONDriver()
	}
	eo := eng.EnforceOptions{MaxDepth: opts.MaxDepth, MaxBytes: opts.MaxBytes}
	switch opts.Strictness.OnDuplicateKey {
	case protoskema.Warn:
		eo.OnDuplicate = eng.DupWarn
	case protoskema.Error:
		eo.OnDuplicate = eng.DupError
	}
	if opts.IssueSink != nil {
		eo.IssueSink = func(si eng.SimpleIssue) {
			opts.IssueSink(protoskema.Issue{Code: si.Code, Message: si.Message, Path: si.Path, Offset: si.Offset})
		}
	}
	src := eng.WrapWithEnforcement(drv.NewBytes(data), eo)
	d := &decoder{src: src, opts: opts, size: int64(len(data)), limit: opts.RecursionLimit}
	if pt, ok := src.(eng.PathTracker); ok {
		d.path = pt
	}
	if d.limit <= 0 {
		d.limit = protoskema.DefaultRecursionLimit
	}

	tok, err := d.next()
	if err != nil {
		return err
	}
	if tok.Kind != eng.KindBeginObject {
		return d.errorf(protoskema.CodeTypeMismatch, tok, "expected a JSON object, got %s", tok.Kind)
	}
	if err := d.message(m, 1); err != nil {
		return err
	}
	tok, err = d.src.NextToken()
	switch {
	case err == io.EOF:
		return nil
	case err != nil:
		return d.convert(err)
	}
	return d.errorf(protoskema.CodeJSONSyntax, tok, "unexpected %s after top-level value", tok.Kind)
}

// invalidUTF8 returns the offset of the first invalid sequence or -1.
func invalidUTF8(b []byte) int {
	if utf8.Valid(b) {
		return -1
	}
	for i := 0; i < len(b); {
		r, n := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && n == 1 {
			return i
		}
		i += n
	}
	return -1
}

// loneSurrogate returns the offset of the first \u escape inside a string
// literal that encodes half of a surrogate pair without its other half, or
// -1. Malformed escapes are left to the tokenizer.
func loneSurrogate(b []byte) int {
	if !bytes.Contains(b, []byte(`\u`)) {
		return -1
	}
	in := false
	for i := 0; i < len(b); i++ {
		switch c := b[i]; {
		case c == '"':
			in = !in
		case c == '\\' && in && i+1 < len(b):
			if b[i+1] != 'u' {
				i++
				continue
			}
			r, ok := hex4(b, i+2)
			if !ok {
				i++
				continue
			}
			switch {
			case r >= 0xDC00 && r <= 0xDFFF:
				return i
			case r >= 0xD800 && r <= 0xDBFF:
				lo, ok := -1, false
				if i+11 < len(b) && b[i+6] == '\\' && b[i+7] == 'u' {
					lo, ok = hex4(b, i+8)
				}
				if !ok || lo < 0xDC00 || lo > 0xDFFF {
					return i
				}
				i += 11
			default:
				i += 5
			}
		}
	}
	return -1
}

func hex4(b []byte, at int) (int, bool) {
	if at+4 > len(b) {
		return 0, false
	}
	v := 0
	for _, c := range b[at : at+4] {
		switch {
		case '0' <= c && c <= '9':
			v = v<<4 | int(c-'0')
		case 'a' <= c && c <= 'f':
			v = v<<4 | int(c-'a'+10)
		case 'A' <= c && c <= 'F':
			v = v<<4 | int(c-'A'+10)
		default:
			return 0, false
		}
	}
	return v, true
}

type decoder struct {
	src   eng.TokenSource
	path  eng.PathTracker
	opts  UnmarshalOptions
	size  int64
	limit int
}

func (d *decoder) pointer() string {
	if d.path == nil {
		return ""
	}
	return d.path.Pointer()
}

func (d *decoder) errorf(code string, tok eng.Token, format string, args ...any) error {
	iss := protoskema.NewIssue(code, tok.Offset, format, args...)
	iss[0].Path = d.pointer()
	return iss
}

// next returns the next token; end of input is a syntax error since callers
// only ask for tokens a complete document must contain.
func (d *decoder) next() (eng.Token, error) {
	tok, err := d.src.NextToken()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return eng.Token{}, d.convert(err)
	}
	return tok, nil
}

func (d *decoder) convert(err error) error {
	var ie eng.IssueError
	if errors.As(err, &ie) {
		return protoskema.Issues{{Code: ie.Code, Message: ie.Message, Path: ie.Path, Offset: ie.Offset}}
	}
	var se *eng.SyntaxError
	if errors.As(err, &se) {
		return protoskema.Issues{{Code: protoskema.CodeJSONSyntax, Message: se.Msg, Path: d.pointer(), Offset: se.Offset, Cause: err}}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return protoskema.Issues{{Code: protoskema.CodeJSONSyntax, Message: "unexpected end of JSON input", Path: d.pointer(), Offset: d.size, Cause: err}}
	}
	return protoskema.Issues{{Code: protoskema.CodeJSONSyntax, Message: err.Error(), Path: d.pointer(), Offset: -1, Cause: err}}
}

func (d *decoder) lookup(md *schema.MessageDescriptor, key string) *schema.FieldDescriptor {
	if fd := md.FieldByName(key); fd != nil {
		return fd
	}
	return md.FieldByJSONName(key)
}

// message decodes object members into m. The opening brace has been read.
func (d *decoder) message(m *dynamic.Message, depth int) error {
	if depth > d.limit {
		return protoskema.Issues{{Code: protoskema.CodeDepthExceeded, Message: "message nesting exceeds " + strconv.Itoa(d.limit), Path: d.pointer(), Offset: d.src.Location()}}
	}
	md := m.Descriptor()
	for {
		tok, err := d.next()
		if err != nil {
			return err
		}
		if tok.Kind == eng.KindEndObject {
			return nil
		}
		fd := d.lookup(md, tok.String)
		if fd == nil {
			if d.opts.Unknown == protoskema.UnknownStrict {
				return d.errorf(protoskema.CodeUnknownKey, tok, "unknown key %q for %s", tok.String, md.FullName)
			}
			vt, err := d.next()
			if err != nil {
				return err
			}
			if err := eng.SkipValue(d.src, vt); err != nil {
				return d.convert(err)
			}
			continue
		}
		vt, err := d.next()
		if err != nil {
			return err
		}
		if vt.Kind == eng.KindNull {
			if fd.IsList() || fd.IsMap() {
				return d.errorf(protoskema.CodeTypeMismatch, vt, "null is not allowed for %s", fd.FullName)
			}
			m.Clear(fd.Number)
			continue
		}
		if err := d.field(m, fd, vt, depth); err != nil {
			return err
		}
	}
}

func (d *decoder) field(m *dynamic.Message, fd *schema.FieldDescriptor, tok eng.Token, depth int) error {
	switch {
	case fd.IsMap():
		if tok.Kind != eng.KindBeginObject {
			return d.errorf(protoskema.CodeTypeMismatch, tok, "expected object for map field %s, got %s", fd.FullName, tok.Kind)
		}
		m.Clear(fd.Number)
		mp, err := m.MutableMap(fd.Number)
		if err != nil {
			return err
		}
		return d.mapEntries(mp, fd, depth)
	case fd.IsList():
		if tok.Kind != eng.KindBeginArray {
			return d.errorf(protoskema.CodeTypeMismatch, tok, "expected array for repeated field %s, got %s", fd.FullName, tok.Kind)
		}
		m.Clear(fd.Number)
		l, err := m.MutableList(fd.Number)
		if err != nil {
			return err
		}
		return d.list(l, fd, depth)
	case fd.Kind == schema.KindMessage:
		if tok.Kind != eng.KindBeginObject {
			return d.errorf(protoskema.CodeTypeMismatch, tok, "expected object for %s, got %s", fd.FullName, tok.Kind)
		}
		m.Clear(fd.Number)
		sub, err := m.MutableMessage(fd.Number)
		if err != nil {
			return err
		}
		return d.message(sub, depth+1)
	}
	v, err := d.scalar(fd, tok)
	if err != nil {
		return err
	}
	return m.Set(fd.Number, v)
}

func (d *decoder) list(l *dynamic.List, fd *schema.FieldDescriptor, depth int) error {
	for {
		tok, err := d.next()
		if err != nil {
			return err
		}
		switch tok.Kind {
		case eng.KindEndArray:
			return nil
		case eng.KindNull:
			return d.errorf(protoskema.CodeTypeMismatch, tok, "null element in repeated field %s", fd.FullName)
		}
		if fd.Kind == schema.KindMessage {
			if tok.Kind != eng.KindBeginObject {
				return d.errorf(protoskema.CodeTypeMismatch, tok, "expected object in %s, got %s", fd.FullName, tok.Kind)
			}
			sub, err := l.AppendMessage()
			if err != nil {
				return err
			}
			if err := d.message(sub, depth+1); err != nil {
				return err
			}
			continue
		}
		v, err := d.scalar(fd, tok)
		if err != nil {
			return err
		}
		if err := l.Append(v); err != nil {
			return err
		}
	}
}

func (d *decoder) mapEntries(mp *dynamic.Map, fd *schema.FieldDescriptor, depth int) error {
	for {
		tok, err := d.next()
		if err != nil {
			return err
		}
		if tok.Kind == eng.KindEndObject {
			return nil
		}
		k, err := d.mapKey(fd.MapKey, tok)
		if err != nil {
			return err
		}
		vt, err := d.next()
		if err != nil {
			return err
		}
		if vt.Kind == eng.KindNull {
			return d.errorf(protoskema.CodeTypeMismatch, vt, "null value in map field %s", fd.FullName)
		}
		var v any
		if fd.MapValue.Kind == schema.KindMessage {
			if vt.Kind != eng.KindBeginObject {
				return d.errorf(protoskema.CodeTypeMismatch, vt, "expected object in %s, got %s", fd.FullName, vt.Kind)
			}
			sub := dynamic.New(fd.MapValue.Message)
			if err := d.message(sub, depth+1); err != nil {
				return err
			}
			v = sub
		} else if v, err = d.scalar(fd.MapValue, vt); err != nil {
			return err
		}
		if err := mp.Put(k, v); err != nil {
			return err
		}
	}
}

func (d *decoder) mapKey(fd *schema.FieldDescriptor, tok eng.Token) (any, error) {
	s := tok.String
	switch fd.Kind {
	case schema.KindString:
		return s, nil
	case schema.KindBool:
		switch s {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, d.errorf(protoskema.CodeTypeMismatch, tok, "invalid bool map key %q", s)
	case schema.KindInt32, schema.KindSint32, schema.KindSfixed32, schema.KindInt64, schema.KindSint64, schema.KindSfixed64:
		bits := 64
		if !fd.Kind.Is64Bit() {
			bits = 32
		}
		n, err := strconv.ParseInt(s, 10, bits)
		if err != nil {
			return nil, d.numErr(tok, err, "invalid integer map key %q", s)
		}
		if bits == 32 {
			return int32(n), nil
		}
		return n, nil
	default:
		bits := 64
		if !fd.Kind.Is64Bit() {
			bits = 32
		}
		n, err := strconv.ParseUint(s, 10, bits)
		if err != nil {
			return nil, d.numErr(tok, err, "invalid unsigned map key %q", s)
		}
		if bits == 32 {
			return uint32(n), nil
		}
		return n, nil
	}
}

func (d *decoder) numErr(tok eng.Token, err error, format string, args ...any) error {
	if errors.Is(err, strconv.ErrRange) {
		return d.errorf(protoskema.CodeOverflow, tok, format, args...)
	}
	return d.errorf(protoskema.CodeTypeMismatch, tok, format, args...)
}

// numberText returns the literal of a number or quoted number token.
func (d *decoder) numberText(fd *schema.FieldDescriptor, tok eng.Token) (string, error) {
	switch tok.Kind {
	case eng.KindNumber:
		return tok.Number, nil
	case eng.KindString:
		return tok.String, nil
	}
	return "", d.errorf(protoskema.CodeTypeMismatch, tok, "expected %s for %s, got %s", fd.Kind, fd.FullName, tok.Kind)
}

func (d *decoder) scalar(fd *schema.FieldDescriptor, tok eng.Token) (any, error) {
	switch fd.Kind {
	case schema.KindBool:
		if tok.Kind != eng.KindBool {
			return nil, d.errorf(protoskema.CodeTypeMismatch, tok, "expected bool for %s, got %s", fd.FullName, tok.Kind)
		}
		return tok.Bool, nil
	case schema.KindString:
		if tok.Kind != eng.KindString {
			return nil, d.errorf(protoskema.CodeTypeMismatch, tok, "expected string for %s, got %s", fd.FullName, tok.Kind)
		}
		return tok.String, nil
	case schema.KindBytes:
		if tok.Kind != eng.KindString {
			return nil, d.errorf(protoskema.CodeTypeMismatch, tok, "expected base64 string for %s, got %s", fd.FullName, tok.Kind)
		}
		b, ok := decodeBase64(tok.String)
		if !ok {
			return nil, d.errorf(protoskema.CodeTypeMismatch, tok, "invalid base64 for %s", fd.FullName)
		}
		return b, nil
	case schema.KindEnum:
		switch tok.Kind {
		case eng.KindString:
			ev := fd.Enum.ValueByName(tok.String)
			if ev == nil {
				return nil, d.errorf(protoskema.CodeInvalidEnum, tok, "%q is not a value of %s", tok.String, fd.Enum.FullName)
			}
			return ev.Number, nil
		case eng.KindNumber:
			n, err := parseInt(tok.Number, 32)
			if err != nil {
				return nil, d.numErr(tok, err, "invalid enum number %s for %s", tok.Number, fd.FullName)
			}
			return schema.EnumNumber(n), nil
		}
		return nil, d.errorf(protoskema.CodeTypeMismatch, tok, "expected enum name or number for %s, got %s", fd.FullName, tok.Kind)
	case schema.KindFloat, schema.KindDouble:
		bits := 64
		if fd.Kind == schema.KindFloat {
			bits = 32
		}
		var f float64
		switch {
		case tok.Kind == eng.KindString && tok.String == "NaN":
			f = math.NaN()
		case tok.Kind == eng.KindString && tok.String == "Infinity":
			f = math.Inf(1)
		case tok.Kind == eng.KindString && tok.String == "-Infinity":
			f = math.Inf(-1)
		default:
			s, err := d.numberText(fd, tok)
			if err != nil {
				return nil, err
			}
			if f, err = strconv.ParseFloat(s, bits); err != nil {
				return nil, d.numErr(tok, err, "invalid %s value %q for %s", fd.Kind, s, fd.FullName)
			}
		}
		if bits == 32 {
			return float32(f), nil
		}
		return f, nil
	}

	s, err := d.numberText(fd, tok)
	if err != nil {
		return nil, err
	}
	bits := 64
	if !fd.Kind.Is64Bit() {
		bits = 32
	}
	switch fd.Kind {
	case schema.KindUint32, schema.KindFixed32, schema.KindUint64, schema.KindFixed64:
		n, err := parseUint(s, bits)
		if err != nil {
			return nil, d.numErr(tok, err, "invalid %s value %q for %s", fd.Kind, s, fd.FullName)
		}
		if bits == 32 {
			return uint32(n), nil
		}
		return n, nil
	}
	n, err := parseInt(s, bits)
	if err != nil {
		return nil, d.numErr(tok, err, "invalid %s value %q for %s", fd.Kind, s, fd.FullName)
	}
	if bits == 32 {
		return int32(n), nil
	}
	return n, nil
}

// parseInt accepts decimal integers and integral floating point literals
// such as 1e3 or 5.0.
func parseInt(s string, bits int) (int64, error) {
	n, err := strconv.ParseInt(s, 10, bits)
	if err == nil || errors.Is(err, strconv.ErrRange) {
		return n, err
	}
	f, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil || f != math.Trunc(f) {
		return 0, strconv.ErrSyntax
	}
	limit := math.Ldexp(1, bits-1)
	if f < -limit || f >= limit {
		return 0, strconv.ErrRange
	}
	return int64(f), nil
}

func parseUint(s string, bits int) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, bits)
	if err == nil || errors.Is(err, strconv.ErrRange) {
		return n, err
	}
	f, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil || f != math.Trunc(f) {
		return 0, strconv.ErrSyntax
	}
	if f < 0 || f >= math.Ldexp(1, bits) {
		return 0, strconv.ErrRange
	}
	return uint64(f), nil
}

// decodeBase64 accepts standard and URL-safe alphabets, padded or not.
func decodeBase64(s string) ([]byte, bool) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, true
		}
	}
	return nil, false
}
