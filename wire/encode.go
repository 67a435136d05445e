// Package wire encodes and decodes dynamic messages in the protobuf binary
// wire format.
package wire

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	protoskema "github.com/reoring/protoskema"
	"github.com/reoring/protoskema/dynamic"
	"github.com/reoring/protoskema/schema"
)

// MarshalOptions configures Marshal.
type MarshalOptions struct {
	// RecursionLimit bounds message nesting. Zero means
	// protoskema.DefaultRecursionLimit.
	RecursionLimit int
}

// Marshal encodes m with default options.
func Marshal(m *dynamic.Message) ([]byte, error) { return MarshalOptions{}.Marshal(m) }

// Marshal encodes m. Known fields are written in field-number order,
// followed by the unknown records in their original order. Repeated scalars
// are always packed.
func (o MarshalOptions) Marshal(m *dynamic.Message) ([]byte, error) {
	return o.appendMessage(nil, m, 1, "")
}

func (o MarshalOptions) limit() int {
	if o.RecursionLimit > 0 {
		return o.RecursionLimit
	}
	return protoskema.DefaultRecursionLimit
}

func (o MarshalOptions) appendMessage(b []byte, m *dynamic.Message, depth int, path string) ([]byte, error) {
	if depth > o.limit() {
		iss := protoskema.NewIssue(protoskema.CodeDepthExceeded, -1, "message nesting exceeds %d", o.limit())
		iss[0].Path = path
		return nil, iss
	}
	var err error
	m.Range(func(fd *schema.FieldDescriptor, v any) bool {
		b, err = o.appendField(b, fd, v, depth, joinPath(path, fd.Name))
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return append(b, m.Unknown()...), nil
}

func (o MarshalOptions) appendField(b []byte, fd *schema.FieldDescriptor, v any, depth int, path string) ([]byte, error) {
	num := protowire.Number(fd.Number)
	switch x := v.(type) {
	case *dynamic.List:
		if fd.Kind.Packable() {
			var payload []byte
			for i := 0; i < x.Len(); i++ {
				payload = appendScalar(payload, fd.Kind, x.Get(i))
			}
			b = protowire.AppendTag(b, num, protowire.BytesType)
			return protowire.AppendBytes(b, payload), nil
		}
		for i := 0; i < x.Len(); i++ {
			var err error
			if b, err = o.appendSingle(b, num, fd, x.Get(i), depth, path); err != nil {
				return nil, err
			}
		}
		return b, nil
	case *dynamic.Map:
		var err error
		x.Range(func(k, val any) bool {
			var entry []byte
			entry, err = o.appendSingle(entry, 1, fd.MapKey, k, depth, path)
			if err != nil {
				return false
			}
			if entry, err = o.appendSingle(entry, 2, fd.MapValue, val, depth, path); err != nil {
				return false
			}
			b = protowire.AppendTag(b, num, protowire.BytesType)
			b = protowire.AppendBytes(b, entry)
			return true
		})
		return b, err
	}
	return o.appendSingle(b, num, fd, v, depth, path)
}

func (o MarshalOptions) appendSingle(b []byte, num protowire.Number, fd *schema.FieldDescriptor, v any, depth int, path string) ([]byte, error) {
	b = protowire.AppendTag(b, num, fd.Kind.WireType())
	if fd.Kind != schema.KindMessage {
		return appendScalar(b, fd.Kind, v), nil
	}
	child, _ := v.(*dynamic.Message)
	if child == nil {
		child = dynamic.New(fd.Message)
	}
	payload, err := o.appendMessage(nil, child, depth+1, path)
	if err != nil {
		return nil, err
	}
	return protowire.AppendBytes(b, payload), nil
}

// appendScalar writes the value without a tag.
func appendScalar(b []byte, k schema.Kind, v any) []byte {
	switch k {
	case schema.KindInt32:
		return protowire.AppendVarint(b, uint64(int64(v.(int32))))
	case schema.KindInt64:
		return protowire.AppendVarint(b, uint64(v.(int64)))
	case schema.KindUint32:
		return protowire.AppendVarint(b, uint64(v.(uint32)))
	case schema.KindUint64:
		return protowire.AppendVarint(b, v.(uint64))
	case schema.KindSint32:
		return protowire.AppendVarint(b, protowire.EncodeZigZag(int64(v.(int32))))
	case schema.KindSint64:
		return protowire.AppendVarint(b, protowire.EncodeZigZag(v.(int64)))
	case schema.KindBool:
		return protowire.AppendVarint(b, protowire.EncodeBool(v.(bool)))
	case schema.KindEnum:
		return protowire.AppendVarint(b, uint64(int64(v.(schema.EnumNumber))))
	case schema.KindFixed32:
		return protowire.AppendFixed32(b, v.(uint32))
	case schema.KindSfixed32:
		return protowire.AppendFixed32(b, uint32(v.(int32)))
	case schema.KindFloat:
		return protowire.AppendFixed32(b, math.Float32bits(v.(float32)))
	case schema.KindFixed64:
		return protowire.AppendFixed64(b, v.(uint64))
	case schema.KindSfixed64:
		return protowire.AppendFixed64(b, uint64(v.(int64)))
	case schema.KindDouble:
		return protowire.AppendFixed64(b, math.Float64bits(v.(float64)))
	case schema.KindString:
		return protowire.AppendString(b, v.(string))
	case schema.KindBytes:
		return protowire.AppendBytes(b, v.([]byte))
	}
	return b
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}
