package dynamic

import (
	"bytes"
	"math"

	protoskema "github.com/reoring/protoskema"
	"github.com/reoring/protoskema/schema"
)

func mismatch(fd *schema.FieldDescriptor, v any) error {
	iss := protoskema.NewIssue(protoskema.CodeTypeMismatch, -1, "cannot use %T as %s value for field %s", v, kindName(fd), fd.FullName)
	iss[0].Path = fd.Name
	return iss
}

func unknownField(md *schema.MessageDescriptor, n int32) error {
	return protoskema.NewIssue(protoskema.CodeUnknownField, -1, "%s has no field number %d", md.FullName, n)
}

func kindName(fd *schema.FieldDescriptor) string {
	switch fd.Kind {
	case schema.KindMessage:
		if fd.Message != nil {
			return fd.Message.FullName
		}
	case schema.KindEnum:
		if fd.Enum != nil {
			return fd.Enum.FullName
		}
	}
	return fd.Kind.String()
}

// checkScalar validates that v has the Go shape of a single value of fd's
// kind and returns it ready for storage. Messages are deep-copied.
func checkScalar(fd *schema.FieldDescriptor, v any) (any, error) {
	ok := false
	switch fd.Kind {
	case schema.KindInt32, schema.KindSint32, schema.KindSfixed32:
		_, ok = v.(int32)
	case schema.KindInt64, schema.KindSint64, schema.KindSfixed64:
		_, ok = v.(int64)
	case schema.KindUint32, schema.KindFixed32:
		_, ok = v.(uint32)
	case schema.KindUint64, schema.KindFixed64:
		_, ok = v.(uint64)
	case schema.KindFloat:
		_, ok = v.(float32)
	case schema.KindDouble:
		_, ok = v.(float64)
	case schema.KindBool:
		_, ok = v.(bool)
	case schema.KindString:
		_, ok = v.(string)
	case schema.KindBytes:
		if b, isBytes := v.([]byte); isBytes {
			return append([]byte(nil), b...), nil
		}
	case schema.KindEnum:
		switch e := v.(type) {
		case schema.EnumNumber:
			ok = true
		case int32:
			return schema.EnumNumber(e), nil
		}
	case schema.KindMessage:
		if m, isMsg := v.(*Message); isMsg && m != nil && sameType(m.desc, fd.Message) {
			return m.Clone(), nil
		}
	}
	if !ok {
		return nil, mismatch(fd, v)
	}
	return v, nil
}

func sameType(a, b *schema.MessageDescriptor) bool {
	return a == b || (a != nil && b != nil && a.FullName == b.FullName)
}

// isDefault reports whether a stored singular value equals the field default.
func isDefault(fd *schema.FieldDescriptor, v any) bool {
	switch x := v.(type) {
	case float32:
		d, _ := fd.Default().(float32)
		return math.Float32bits(x) == math.Float32bits(d)
	case float64:
		d, _ := fd.Default().(float64)
		return math.Float64bits(x) == math.Float64bits(d)
	case []byte:
		d, _ := fd.Default().([]byte)
		return bytes.Equal(x, d)
	case *Message:
		return x == nil
	}
	return v == fd.Default()
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return append([]byte(nil), x...)
	case *Message:
		return x.Clone()
	case *List:
		return x.clone()
	case *Map:
		return x.clone()
	}
	return v
}

func equalValue(a, b any) bool {
	switch x := a.(type) {
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	case *Message:
		y, ok := b.(*Message)
		return ok && Equal(x, y)
	case *List:
		y, ok := b.(*List)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for i := range x.items {
			if !equalValue(x.items[i], y.items[i]) {
				return false
			}
		}
		return true
	case *Map:
		y, ok := b.(*Map)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for i, k := range x.keys {
			yv, found := y.Get(k)
			if !found || !equalValue(x.vals[i], yv) {
				return false
			}
		}
		return true
	}
	return a == b
}
