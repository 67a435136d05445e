// Package jsoncodec converts dynamic messages to and from JSON text.
package jsoncodec

import (
	"bytes"
	"encoding/base64"
	"math"
	"strconv"
	"unicode/utf8"

	json "github.com/goccy/go-json"

	protoskema "github.com/reoring/protoskema"
	"github.com/reoring/protoskema/dynamic"
	"github.com/reoring/protoskema/schema"
)

// MarshalOptions configures Marshal. The zero value writes compact JSON with
// lowerCamelCase keys, enum names and absent fields omitted.
type MarshalOptions struct {
	// PreserveFieldNames uses the declared field names instead of JSON names.
	PreserveFieldNames bool
	// AlwaysPrintPrimitiveFields prints absent singular scalar and enum
	// fields outside oneofs with their default value.
	AlwaysPrintPrimitiveFields bool
	// AlwaysPrintEnumsAsInts prints enum numbers instead of names.
	AlwaysPrintEnumsAsInts bool
	// AddWhitespace pretty-prints the output.
	AddWhitespace bool
	// Indent is the indentation unit used with AddWhitespace (default two
	// spaces).
	Indent string
	// RecursionLimit bounds message nesting. Zero means
	// protoskema.DefaultRecursionLimit.
	RecursionLimit int
}

// Marshal renders m as compact JSON with default options.
func Marshal(m *dynamic.Message) ([]byte, error) { return MarshalOptions{}.Marshal(m) }

// Marshal renders m as JSON. Fields are written in declaration order and map
// entries in insertion order.
func (opts MarshalOptions) Marshal(m *dynamic.Message) ([]byte, error) {
	e := &encoder{opts: opts, limit: opts.RecursionLimit}
	if e.limit <= 0 {
		e.limit = protoskema.DefaultRecursionLimit
	}
	if err := e.message(m, 1, ""); err != nil {
		return nil, err
	}
	if !opts.AddWhitespace {
		return e.buf, nil
	}
	indent := opts.Indent
	if indent == "" {
		indent = "  "
	}
	var out bytes.Buffer
	if err := json.Indent(&out, e.buf, "", indent); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

type encoder struct {
	opts  MarshalOptions
	limit int
	buf   []byte
}

func (e *encoder) fieldKey(fd *schema.FieldDescriptor) string {
	if e.opts.PreserveFieldNames {
		return fd.Name
	}
	return fd.JSONName
}

// forced reports whether an absent field is printed under
// AlwaysPrintPrimitiveFields.
func forced(fd *schema.FieldDescriptor) bool {
	return fd.Label == schema.LabelSingular && fd.Kind != schema.KindMessage && fd.Oneof == nil && !fd.Proto3Optional
}

func (e *encoder) message(m *dynamic.Message, depth int, path string) error {
	if depth > e.limit {
		iss := protoskema.NewIssue(protoskema.CodeDepthExceeded, -1, "message nesting exceeds %d", e.limit)
		iss[0].Path = path
		return iss
	}
	e.buf = append(e.buf, '{')
	first := true
	for _, fd := range m.Descriptor().Fields {
		if !m.Has(fd.Number) && !(e.opts.AlwaysPrintPrimitiveFields && forced(fd)) {
			continue
		}
		if !first {
			e.buf = append(e.buf, ',')
		}
		first = false
		key := e.fieldKey(fd)
		if err := e.quote(key, path); err != nil {
			return err
		}
		e.buf = append(e.buf, ':')
		if err := e.field(fd, m.Get(fd.Number), depth, path+"/"+key); err != nil {
			return err
		}
	}
	e.buf = append(e.buf, '}')
	return nil
}

func (e *encoder) field(fd *schema.FieldDescriptor, v any, depth int, path string) error {
	switch x := v.(type) {
	case *dynamic.List:
		e.buf = append(e.buf, '[')
		for i := 0; i < x.Len(); i++ {
			if i > 0 {
				e.buf = append(e.buf, ',')
			}
			if err := e.single(fd, x.Get(i), depth, path+"/"+strconv.Itoa(i)); err != nil {
				return err
			}
		}
		e.buf = append(e.buf, ']')
		return nil
	case *dynamic.Map:
		e.buf = append(e.buf, '{')
		i := 0
		var err error
		x.Range(func(k, val any) bool {
			if i > 0 {
				e.buf = append(e.buf, ',')
			}
			i++
			ks := mapKeyString(k)
			if err = e.quote(ks, path); err != nil {
				return false
			}
			e.buf = append(e.buf, ':')
			err = e.single(fd.MapValue, val, depth, path+"/"+ks)
			return err == nil
		})
		e.buf = append(e.buf, '}')
		return err
	}
	return e.single(fd, v, depth, path)
}

func mapKeyString(k any) string {
	switch x := k.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	}
	return ""
}

func (e *encoder) single(fd *schema.FieldDescriptor, v any, depth int, path string) error {
	switch x := v.(type) {
	case int32:
		e.buf = strconv.AppendInt(e.buf, int64(x), 10)
	case uint32:
		e.buf = strconv.AppendUint(e.buf, uint64(x), 10)
	case int64:
		e.buf = append(strconv.AppendInt(append(e.buf, '"'), x, 10), '"')
	case uint64:
		e.buf = append(strconv.AppendUint(append(e.buf, '"'), x, 10), '"')
	case float32:
		e.float(float64(x), 32)
	case float64:
		e.float(x, 64)
	case bool:
		e.buf = strconv.AppendBool(e.buf, x)
	case string:
		return e.quote(x, path)
	case []byte:
		e.buf = append(e.buf, '"')
		e.buf = base64.StdEncoding.AppendEncode(e.buf, x)
		e.buf = append(e.buf, '"')
	case schema.EnumNumber:
		if ev := fd.Enum.ValueByNumber(x); ev != nil && !e.opts.AlwaysPrintEnumsAsInts {
			e.buf = append(append(append(e.buf, '"'), ev.Name...), '"')
		} else {
			e.buf = strconv.AppendInt(e.buf, int64(x), 10)
		}
	case *dynamic.Message:
		if x == nil {
			x = dynamic.New(fd.Message)
		}
		return e.message(x, depth+1, path)
	case nil:
		if fd.Kind == schema.KindMessage {
			return e.message(dynamic.New(fd.Message), depth+1, path)
		}
		e.buf = append(e.buf, "null"...)
	}
	return nil
}

func (e *encoder) float(f float64, bits int) {
	switch {
	case math.IsNaN(f):
		e.buf = append(e.buf, `"NaN"`...)
	case math.IsInf(f, 1):
		e.buf = append(e.buf, `"Infinity"`...)
	case math.IsInf(f, -1):
		e.buf = append(e.buf, `"-Infinity"`...)
	default:
		e.buf = strconv.AppendFloat(e.buf, f, 'g', -1, bits)
	}
}

func (e *encoder) quote(s, path string) error {
	if !utf8.ValidString(s) {
		iss := protoskema.NewIssue(protoskema.CodeInvalidUTF8, -1, "string field holds invalid UTF-8")
		iss[0].Path = path
		return iss
	}
	q, err := json.MarshalWithOption(s, json.DisableHTMLEscape())
	if err != nil {
		return err
	}
	e.buf = append(e.buf, q...)
	return nil
}
