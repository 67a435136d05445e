package wire

import (
	"errors"
	"fmt"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	protoskema "github.com/reoring/protoskema"
	"github.com/reoring/protoskema/dynamic"
	"github.com/reoring/protoskema/schema"
)

// UnmarshalOptions configures Unmarshal.
type UnmarshalOptions struct {
	// RecursionLimit bounds message nesting. Zero means
	// protoskema.DefaultRecursionLimit.
	RecursionLimit int
}

// Unmarshal decodes b as a message of type md with default options.
func Unmarshal(md *schema.MessageDescriptor, b []byte) (*dynamic.Message, error) {
	return UnmarshalOptions{}.Unmarshal(md, b)
}

// Unmarshal decodes b as a message of type md. Records with undeclared
// numbers, or with a wire type that does not fit the declared kind, are kept
// verbatim as unknown records. On error no message is returned.
func (o UnmarshalOptions) Unmarshal(md *schema.MessageDescriptor, b []byte) (*dynamic.Message, error) {
	d := decoder{limit: o.RecursionLimit}
	if d.limit <= 0 {
		d.limit = protoskema.DefaultRecursionLimit
	}
	m := dynamic.New(md)
	if err := d.message(m, b, 0, 1, ""); err != nil {
		return nil, err
	}
	return m, nil
}

type decoder struct {
	limit int
}

func wireErr(code string, off int64, path, format string, args ...any) error {
	iss := protoskema.NewIssue(code, off, format, args...)
	iss[0].Path = path
	return iss
}

// consumeErr turns a negative protowire length for a value read from b
// into an issue.
func consumeErr(n int, b []byte, off int64, path string) error {
	err := protowire.ParseError(n)
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF):
		return wireErr(protoskema.CodeTruncated, off, path, "truncated input")
	case overlongVarint(b):
		return wireErr(protoskema.CodeInvalidVarint, off, path, "varint longer than 10 bytes")
	}
	return wireErr(protoskema.CodeInvalidTag, off, path, "%v", err)
}

// overlongVarint reports whether b starts with a varint that does not fit in
// 64 bits: ten bytes with the continuation bit set, or a tenth byte above 1.
func overlongVarint(b []byte) bool {
	if len(b) < protowire.SizeVarint(math.MaxUint64) {
		return false
	}
	for _, c := range b[:9] {
		if c < 0x80 {
			return false
		}
	}
	return b[9] > 1
}

// message decodes the records of b into m. base is the absolute offset of
// b[0] in the input.
func (d *decoder) message(m *dynamic.Message, b []byte, base int64, depth int, path string) error {
	if depth > d.limit {
		return wireErr(protoskema.CodeDepthExceeded, base, path, "message nesting exceeds %d", d.limit)
	}
	md := m.Descriptor()
	for pos := 0; pos < len(b); {
		off := base + int64(pos)
		rest := b[pos:]
		v, tagLen := protowire.ConsumeVarint(rest)
		if tagLen < 0 {
			return consumeErr(tagLen, rest, off, path)
		}
		num, typ := protowire.DecodeTag(v)
		if num < protowire.MinValidNumber || num > protowire.MaxValidNumber {
			return wireErr(protoskema.CodeInvalidTag, off, path, "invalid field number %d", int64(v>>3))
		}
		if typ == protowire.EndGroupType || typ > protowire.Fixed32Type {
			return wireErr(protoskema.CodeInvalidTag, off, path, "unexpected wire type %d", typ)
		}
		fd := md.FieldByNumber(int32(num))
		if fd == nil || !fits(fd, typ) {
			n := protowire.ConsumeFieldValue(num, typ, rest[tagLen:])
			if n < 0 {
				return consumeErr(n, rest[tagLen:], off+int64(tagLen), path)
			}
			m.AppendUnknown(rest[:tagLen+n])
			pos += tagLen + n
			continue
		}
		n, err := d.field(m, fd, typ, rest[tagLen:], off+int64(tagLen), depth, joinPath(path, fd.Name))
		if err != nil {
			return err
		}
		pos += tagLen + n
	}
	return nil
}

// fits reports whether a record of wire type typ can carry a value of fd.
func fits(fd *schema.FieldDescriptor, typ protowire.Type) bool {
	if fd.IsMap() {
		return typ == protowire.BytesType
	}
	if fd.IsList() && fd.Kind.Packable() && typ == protowire.BytesType {
		return true
	}
	return typ == fd.Kind.WireType()
}

// field decodes one record value for fd and returns its length.
func (d *decoder) field(m *dynamic.Message, fd *schema.FieldDescriptor, typ protowire.Type, b []byte, off int64, depth int, path string) (int, error) {
	num := fd.Number
	switch {
	case fd.IsMap():
		payload, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, consumeErr(n, b, off, path)
		}
		mp, err := m.MutableMap(num)
		if err != nil {
			return 0, err
		}
		if err := d.mapEntry(mp, fd, payload, off+int64(n-len(payload)), depth, path); err != nil {
			return 0, err
		}
		return n, nil

	case fd.IsList():
		l, err := m.MutableList(num)
		if err != nil {
			return 0, err
		}
		if typ == protowire.BytesType && fd.Kind.Packable() {
			payload, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, consumeErr(n, b, off, path)
			}
			start := off + int64(n-len(payload))
			for p := 0; p < len(payload); {
				v, vn, err := scalar(fd.Kind, payload[p:], start+int64(p), path)
				if err != nil {
					return 0, err
				}
				if err := l.Append(v); err != nil {
					return 0, err
				}
				p += vn
			}
			return n, nil
		}
		if fd.Kind == schema.KindMessage {
			payload, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, consumeErr(n, b, off, path)
			}
			child, err := l.AppendMessage()
			if err != nil {
				return 0, err
			}
			path = fmt.Sprintf("%s[%d]", path, l.Len()-1)
			return n, d.message(child, payload, off+int64(n-len(payload)), depth+1, path)
		}
		v, n, err := scalar(fd.Kind, b, off, path)
		if err != nil {
			return 0, err
		}
		return n, l.Append(v)

	case fd.Kind == schema.KindMessage:
		payload, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, consumeErr(n, b, off, path)
		}
		child, err := m.MutableMessage(num)
		if err != nil {
			return 0, err
		}
		return n, d.message(child, payload, off+int64(n-len(payload)), depth+1, path)
	}

	v, n, err := scalar(fd.Kind, b, off, path)
	if err != nil {
		return 0, err
	}
	return n, m.Set(num, v)
}

// mapEntry decodes one key/value entry. Missing parts take their defaults.
func (d *decoder) mapEntry(mp *dynamic.Map, fd *schema.FieldDescriptor, b []byte, base int64, depth int, path string) error {
	if depth+1 > d.limit {
		return wireErr(protoskema.CodeDepthExceeded, base, path, "message nesting exceeds %d", d.limit)
	}
	key := fd.MapKey.Default()
	var val any
	var valMsg *dynamic.Message
	for pos := 0; pos < len(b); {
		off := base + int64(pos)
		num, typ, tagLen := protowire.ConsumeTag(b[pos:])
		if tagLen < 0 {
			return consumeErr(tagLen, b[pos:], off, path)
		}
		rest := b[pos+tagLen:]
		var part *schema.FieldDescriptor
		switch num {
		case 1:
			part = fd.MapKey
		case 2:
			part = fd.MapValue
		}
		if part == nil || typ != part.Kind.WireType() {
			n := protowire.ConsumeFieldValue(num, typ, rest)
			if n < 0 {
				return consumeErr(n, rest, off+int64(tagLen), path)
			}
			pos += tagLen + n
			continue
		}
		if part.Kind == schema.KindMessage {
			payload, n := protowire.ConsumeBytes(rest)
			if n < 0 {
				return consumeErr(n, rest, off+int64(tagLen), path)
			}
			if valMsg == nil {
				valMsg = dynamic.New(part.Message)
			}
			if err := d.message(valMsg, payload, off+int64(tagLen+n-len(payload)), depth+2, path); err != nil {
				return err
			}
			pos += tagLen + n
			continue
		}
		v, n, err := scalar(part.Kind, rest, off+int64(tagLen), path)
		if err != nil {
			return err
		}
		if num == 1 {
			key = v
		} else {
			val = v
		}
		pos += tagLen + n
	}
	switch {
	case fd.MapValue.Kind == schema.KindMessage:
		if valMsg == nil {
			valMsg = dynamic.New(fd.MapValue.Message)
		}
		val = valMsg
	case val == nil:
		val = fd.MapValue.Default()
	}
	return mp.Put(key, val)
}

// scalar decodes one non-message value of kind k.
func scalar(k schema.Kind, b []byte, off int64, path string) (any, int, error) {
	switch k.WireType() {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, 0, consumeErr(n, b, off, path)
		}
		switch k {
		case schema.KindInt32:
			return int32(v), n, nil
		case schema.KindInt64:
			return int64(v), n, nil
		case schema.KindUint32:
			return uint32(v), n, nil
		case schema.KindUint64:
			return v, n, nil
		case schema.KindSint32:
			return int32(protowire.DecodeZigZag(v & math.MaxUint32)), n, nil
		case schema.KindSint64:
			return protowire.DecodeZigZag(v), n, nil
		case schema.KindBool:
			return protowire.DecodeBool(v), n, nil
		default:
			return schema.EnumNumber(int32(v)), n, nil
		}
	case protowire.Fixed32Type:
		v, n := protowire.ConsumeFixed32(b)
		if n < 0 {
			return nil, 0, consumeErr(n, b, off, path)
		}
		switch k {
		case schema.KindSfixed32:
			return int32(v), n, nil
		case schema.KindFloat:
			return math.Float32frombits(v), n, nil
		default:
			return v, n, nil
		}
	case protowire.Fixed64Type:
		v, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return nil, 0, consumeErr(n, b, off, path)
		}
		switch k {
		case schema.KindSfixed64:
			return int64(v), n, nil
		case schema.KindDouble:
			return math.Float64frombits(v), n, nil
		default:
			return v, n, nil
		}
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, consumeErr(n, b, off, path)
	}
	if k == schema.KindString {
		return string(v), n, nil
	}
	return append([]byte{}, v...), n, nil
}
