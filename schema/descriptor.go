package schema

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// Kind is the declared scalar or composite type of a field. Values match
// google.protobuf.FieldDescriptorProto.Type.
type Kind int

const (
	KindInvalid  Kind = 0
	KindDouble   Kind = 1
	KindFloat    Kind = 2
	KindInt64    Kind = 3
	KindUint64   Kind = 4
	KindInt32    Kind = 5
	KindFixed64  Kind = 6
	KindFixed32  Kind = 7
	KindBool     Kind = 8
	KindString   Kind = 9
	KindMessage  Kind = 11
	KindBytes    Kind = 12
	KindUint32   Kind = 13
	KindEnum     Kind = 14
	KindSfixed32 Kind = 15
	KindSfixed64 Kind = 16
	KindSint32   Kind = 17
	KindSint64   Kind = 18
)

var scalarKinds = map[string]Kind{
	"double":   KindDouble,
	"float":    KindFloat,
	"int64":    KindInt64,
	"uint64":   KindUint64,
	"int32":    KindInt32,
	"fixed64":  KindFixed64,
	"fixed32":  KindFixed32,
	"bool":     KindBool,
	"string":   KindString,
	"bytes":    KindBytes,
	"uint32":   KindUint32,
	"sfixed32": KindSfixed32,
	"sfixed64": KindSfixed64,
	"sint32":   KindSint32,
	"sint64":   KindSint64,
}

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindEnum:
		return "enum"
	}
	for name, sk := range scalarKinds {
		if sk == k {
			return name
		}
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// WireType returns the wire type a single value of this kind is encoded with.
func (k Kind) WireType() protowire.Type {
	switch k {
	case KindDouble, KindFixed64, KindSfixed64:
		return protowire.Fixed64Type
	case KindFloat, KindFixed32, KindSfixed32:
		return protowire.Fixed32Type
	case KindString, KindBytes, KindMessage:
		return protowire.BytesType
	default:
		return protowire.VarintType
	}
}

// Packable reports whether repeated values of this kind may use the packed
// encoding.
func (k Kind) Packable() bool {
	switch k {
	case KindString, KindBytes, KindMessage, KindInvalid:
		return false
	}
	return true
}

// Is64Bit reports whether the kind holds a 64-bit integer.
func (k Kind) Is64Bit() bool {
	switch k {
	case KindInt64, KindUint64, KindSint64, KindFixed64, KindSfixed64:
		return true
	}
	return false
}

// Label is the cardinality of a field.
type Label int

const (
	LabelSingular Label = iota
	LabelRepeated
	LabelMap
)

// EnumNumber is the numeric value of an enum constant. Dynamic messages store
// enum fields with this type.
type EnumNumber int32

// Position locates a declaration in a schema file. Line and Column are 1-based.
type Position struct {
	File   string
	Line   int
	Column int
	Offset int
}

func (p Position) String() string { return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column) }

// Range is an inclusive range of field numbers.
type Range struct {
	Start, End int32
}

// Contains reports whether n lies in the range.
func (r Range) Contains(n int32) bool { return n >= r.Start && n <= r.End }

// FieldDescriptor describes one field of a message, or one extension.
type FieldDescriptor struct {
	Name     string
	JSONName string
	FullName string
	Number   int32
	Kind     Kind
	Label    Label
	// TypeName is the type reference as written for message and enum kinds.
	TypeName string
	Message  *MessageDescriptor // message type, or the entry type for maps
	Enum     *EnumDescriptor
	// MapKey and MapValue are the entry fields of a map.
	MapKey, MapValue *FieldDescriptor
	Oneof            *OneofDescriptor
	// Proto3Optional is set for proto3 fields declared with "optional".
	Proto3Optional bool
	Required       bool
	// Packed records an explicit [packed = ...] option.
	Packed *bool
	// Extendee is set for fields declared in an extend block.
	Extendee        string
	ExtendeeMessage *MessageDescriptor
	Parent          *MessageDescriptor
	File            *File
	Pos             Position

	explicitJSONName bool
	defaultText      string
	defaultQuoted    bool
	defaultPos       Position
	hasDefault       bool
	defaultValue     any
}

// IsMap reports whether the field is a map.
func (f *FieldDescriptor) IsMap() bool { return f.Label == LabelMap }

// IsList reports whether the field is a repeated (non-map) field.
func (f *FieldDescriptor) IsList() bool { return f.Label == LabelRepeated }

// HasPresence reports whether the field tracks presence independently of its
// value: proto2 singular fields, proto3 optional, message fields and oneof
// members.
func (f *FieldDescriptor) HasPresence() bool {
	if f.Label != LabelSingular {
		return false
	}
	if f.Kind == KindMessage || f.Oneof != nil || f.Proto3Optional {
		return true
	}
	return f.File != nil && f.File.Syntax == "proto2"
}

// HasDefault reports whether an explicit [default = ...] was declared.
func (f *FieldDescriptor) HasDefault() bool { return f.hasDefault }

// Default returns the value a singular field reads as while absent. Message
// fields default to nil.
func (f *FieldDescriptor) Default() any {
	if f.hasDefault {
		return f.defaultValue
	}
	return zeroValue(f.Kind, f.Enum)
}

// IsPacked reports whether repeated values use the packed encoding. Encoding
// always packs packable kinds; this only reflects the declaration.
func (f *FieldDescriptor) IsPacked() bool {
	if f.Label != LabelRepeated || !f.Kind.Packable() {
		return false
	}
	if f.Packed != nil {
		return *f.Packed
	}
	return f.File == nil || f.File.Syntax == "proto3"
}

func zeroValue(k Kind, ed *EnumDescriptor) any {
	switch k {
	case KindInt32, KindSint32, KindSfixed32:
		return int32(0)
	case KindInt64, KindSint64, KindSfixed64:
		return int64(0)
	case KindUint32, KindFixed32:
		return uint32(0)
	case KindUint64, KindFixed64:
		return uint64(0)
	case KindFloat:
		return float32(0)
	case KindDouble:
		return float64(0)
	case KindBool:
		return false
	case KindString:
		return ""
	case KindBytes:
		return []byte(nil)
	case KindEnum:
		if ed != nil && len(ed.Values) > 0 {
			return ed.Values[0].Number
		}
		return EnumNumber(0)
	}
	return nil
}

// OneofDescriptor groups fields of which at most one is set.
type OneofDescriptor struct {
	Name   string
	Parent *MessageDescriptor
	Fields []*FieldDescriptor
	Pos    Position
}

// MessageDescriptor describes a message type.
type MessageDescriptor struct {
	Name     string
	FullName string
	File     *File
	Parent   *MessageDescriptor
	// Fields are in declaration order.
	Fields          []*FieldDescriptor
	Messages        []*MessageDescriptor
	Enums           []*EnumDescriptor
	Oneofs          []*OneofDescriptor
	Extensions      []*FieldDescriptor
	ReservedRanges  []Range
	ReservedNames   []string
	ExtensionRanges []Range
	MapEntry        bool
	Pos             Position

	byNumber map[int32]*FieldDescriptor
	byName   map[string]*FieldDescriptor
	byJSON   map[string]*FieldDescriptor
	ordered  []*FieldDescriptor
}

// FieldByNumber returns the field with the given number, or nil.
func (m *MessageDescriptor) FieldByNumber(n int32) *FieldDescriptor { return m.byNumber[n] }

// FieldByName returns the field with the given proto name, or nil.
func (m *MessageDescriptor) FieldByName(name string) *FieldDescriptor { return m.byName[name] }

// FieldByJSONName returns the field with the given JSON name, or nil.
func (m *MessageDescriptor) FieldByJSONName(name string) *FieldDescriptor { return m.byJSON[name] }

// FieldsByNumber returns the fields sorted by field number.
func (m *MessageDescriptor) FieldsByNumber() []*FieldDescriptor { return m.ordered }

func (m *MessageDescriptor) index() {
	m.byNumber = make(map[int32]*FieldDescriptor, len(m.Fields))
	m.byName = make(map[string]*FieldDescriptor, len(m.Fields))
	m.byJSON = make(map[string]*FieldDescriptor, len(m.Fields))
	m.ordered = make([]*FieldDescriptor, 0, len(m.Fields))
	for _, f := range m.Fields {
		m.byNumber[f.Number] = f
		m.byName[f.Name] = f
		m.byJSON[f.JSONName] = f
		m.ordered = append(m.ordered, f)
	}
	sort.Slice(m.ordered, func(i, j int) bool { return m.ordered[i].Number < m.ordered[j].Number })
}

// EnumValueDescriptor is one named constant of an enum.
type EnumValueDescriptor struct {
	Name   string
	Number EnumNumber
	Pos    Position
}

// EnumDescriptor describes an enum type.
type EnumDescriptor struct {
	Name     string
	FullName string
	File     *File
	Parent   *MessageDescriptor
	// Values are in declaration order; aliases share a number.
	Values         []*EnumValueDescriptor
	AllowAlias     bool
	ReservedRanges []Range
	ReservedNames  []string
	Pos            Position

	byName   map[string]*EnumValueDescriptor
	byNumber map[EnumNumber]*EnumValueDescriptor
}

// ValueByName returns the constant with the given name, or nil.
func (e *EnumDescriptor) ValueByName(name string) *EnumValueDescriptor { return e.byName[name] }

// ValueByNumber returns the first declared constant with the given number,
// or nil.
func (e *EnumDescriptor) ValueByNumber(n EnumNumber) *EnumValueDescriptor { return e.byNumber[n] }

func (e *EnumDescriptor) index() {
	e.byName = make(map[string]*EnumValueDescriptor, len(e.Values))
	e.byNumber = make(map[EnumNumber]*EnumValueDescriptor, len(e.Values))
	for _, v := range e.Values {
		e.byName[v.Name] = v
		if _, ok := e.byNumber[v.Number]; !ok {
			e.byNumber[v.Number] = v
		}
	}
}

// MethodDescriptor describes one rpc of a service.
type MethodDescriptor struct {
	Name            string
	InputName       string
	OutputName      string
	Input           *MessageDescriptor
	Output          *MessageDescriptor
	ClientStreaming bool
	ServerStreaming bool
	Pos             Position
}

// ServiceDescriptor describes a service declaration.
type ServiceDescriptor struct {
	Name     string
	FullName string
	File     *File
	Methods  []*MethodDescriptor
	Pos      Position
}

// Import is one import statement of a file.
type Import struct {
	Path   string
	Public bool
	Weak   bool
	Pos    Position
}

// Option is a file-level option, kept verbatim.
type Option struct {
	Name  string
	Value string
}

// File is a parsed schema file. It owns its declarations.
type File struct {
	Path       string
	Syntax     string
	Package    string
	Imports    []Import
	Options    []Option
	Messages   []*MessageDescriptor
	Enums      []*EnumDescriptor
	Services   []*ServiceDescriptor
	Extensions []*FieldDescriptor
}

// Option returns the value of the named file option.
func (f *File) Option(name string) (string, bool) {
	for _, o := range f.Options {
		if o.Name == name {
			return o.Value, true
		}
	}
	return "", false
}

// walkMessages visits every message in the file, nested ones included.
func (f *File) walkMessages(fn func(*MessageDescriptor)) {
	var walk func([]*MessageDescriptor)
	walk = func(ms []*MessageDescriptor) {
		for _, m := range ms {
			fn(m)
			walk(m.Messages)
		}
	}
	walk(f.Messages)
}

// walkEnums visits every enum in the file, nested ones included.
func (f *File) walkEnums(fn func(*EnumDescriptor)) {
	for _, e := range f.Enums {
		fn(e)
	}
	f.walkMessages(func(m *MessageDescriptor) {
		for _, e := range m.Enums {
			fn(e)
		}
	})
}
