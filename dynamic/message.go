// Package dynamic implements messages whose shape comes from a schema
// descriptor loaded at run time.
package dynamic

import (
	"bytes"

	protoskema "github.com/reoring/protoskema"
	"github.com/reoring/protoskema/schema"
)

// Message is an instance of a MessageDescriptor. Fields are addressed by
// number. Values use these Go shapes: int32, int64, uint32, uint64, float32,
// float64, bool, string, []byte, schema.EnumNumber and *Message; repeated
// fields hold a *List and map fields a *Map.
//
// A Message is not safe for concurrent mutation.
type Message struct {
	desc    *schema.MessageDescriptor
	fields  map[int32]any
	unknown []byte
}

// New returns an empty message of the given type.
func New(md *schema.MessageDescriptor) *Message {
	return &Message{desc: md, fields: make(map[int32]any)}
}

// Descriptor returns the message type.
func (m *Message) Descriptor() *schema.MessageDescriptor { return m.desc }

func (m *Message) field(n int32) (*schema.FieldDescriptor, error) {
	fd := m.desc.FieldByNumber(n)
	if fd == nil {
		return nil, unknownField(m.desc, n)
	}
	return fd, nil
}

// Get returns the value of field n, or its default when absent: the declared
// default for scalars, nil for messages and an empty read-only List or Map
// for repeated and map fields. Get returns nil for undeclared numbers.
func (m *Message) Get(n int32) any {
	fd := m.desc.FieldByNumber(n)
	if fd == nil {
		return nil
	}
	if v, ok := m.fields[n]; ok {
		return v
	}
	switch {
	case fd.IsList():
		return &List{field: fd, readOnly: true}
	case fd.IsMap():
		return &Map{field: fd, readOnly: true}
	}
	return fd.Default()
}

// Set assigns field n. Composite values are deep-copied. Setting a member
// of a oneof clears the other members.
func (m *Message) Set(n int32, v any) error {
	fd, err := m.field(n)
	if err != nil {
		return err
	}
	var stored any
	switch {
	case fd.IsList():
		l, ok := v.(*List)
		if !ok || l == nil {
			return mismatch(fd, v)
		}
		nl := newList(fd)
		for _, it := range l.items {
			if err := nl.Append(it); err != nil {
				return err
			}
		}
		stored = nl
	case fd.IsMap():
		mp, ok := v.(*Map)
		if !ok || mp == nil {
			return mismatch(fd, v)
		}
		nm := newMap(fd)
		for i, k := range mp.keys {
			if err := nm.Put(k, mp.vals[i]); err != nil {
				return err
			}
		}
		stored = nm
	default:
		if stored, err = checkScalar(fd, v); err != nil {
			return err
		}
	}
	m.clearOneof(fd)
	m.fields[n] = stored
	return nil
}

func (m *Message) clearOneof(fd *schema.FieldDescriptor) {
	if fd.Oneof == nil {
		return
	}
	for _, other := range fd.Oneof.Fields {
		if other != fd {
			delete(m.fields, other.Number)
		}
	}
}

// Has reports whether field n is present. Fields with explicit presence
// report whether they were set, even to a zero value; other singular fields
// report whether they differ from the default; repeated and map fields
// report whether they are non-empty.
func (m *Message) Has(n int32) bool {
	fd := m.desc.FieldByNumber(n)
	if fd == nil {
		return false
	}
	v, ok := m.fields[n]
	if !ok {
		return false
	}
	switch x := v.(type) {
	case *List:
		return x.Len() > 0
	case *Map:
		return x.Len() > 0
	}
	if fd.HasPresence() {
		return true
	}
	return !isDefault(fd, v)
}

// Clear makes field n absent.
func (m *Message) Clear(n int32) { delete(m.fields, n) }

// WhichOneof returns the member of the named oneof that is set, or nil.
func (m *Message) WhichOneof(o *schema.OneofDescriptor) *schema.FieldDescriptor {
	for _, fd := range o.Fields {
		if _, ok := m.fields[fd.Number]; ok {
			return fd
		}
	}
	return nil
}

// Mutable returns the stored *Message, *List or *Map of a composite field,
// allocating it first when absent.
func (m *Message) Mutable(n int32) (any, error) {
	fd, err := m.field(n)
	if err != nil {
		return nil, err
	}
	if v, ok := m.fields[n]; ok {
		return v, nil
	}
	var v any
	switch {
	case fd.IsList():
		v = newList(fd)
	case fd.IsMap():
		v = newMap(fd)
	case fd.Kind == schema.KindMessage:
		v = New(fd.Message)
	default:
		return nil, protoskema.NewIssue(protoskema.CodeTypeMismatch, -1, "field %s is not a message, list or map", fd.FullName)
	}
	m.clearOneof(fd)
	m.fields[n] = v
	return v, nil
}

// MutableMessage is Mutable for singular message fields.
func (m *Message) MutableMessage(n int32) (*Message, error) {
	v, err := m.Mutable(n)
	if err != nil {
		return nil, err
	}
	child, ok := v.(*Message)
	if !ok {
		return nil, mismatch(m.desc.FieldByNumber(n), &Message{})
	}
	return child, nil
}

// MutableList is Mutable for repeated fields.
func (m *Message) MutableList(n int32) (*List, error) {
	v, err := m.Mutable(n)
	if err != nil {
		return nil, err
	}
	l, ok := v.(*List)
	if !ok {
		return nil, mismatch(m.desc.FieldByNumber(n), &List{})
	}
	return l, nil
}

// MutableMap is Mutable for map fields.
func (m *Message) MutableMap(n int32) (*Map, error) {
	v, err := m.Mutable(n)
	if err != nil {
		return nil, err
	}
	mp, ok := v.(*Map)
	if !ok {
		return nil, mismatch(m.desc.FieldByNumber(n), &Map{})
	}
	return mp, nil
}

// Append adds v to repeated field n.
func (m *Message) Append(n int32, v any) error {
	l, err := m.MutableList(n)
	if err != nil {
		return err
	}
	return l.Append(v)
}

// Len returns the number of elements of repeated or map field n.
func (m *Message) Len(n int32) int {
	switch x := m.fields[n].(type) {
	case *List:
		return x.Len()
	case *Map:
		return x.Len()
	}
	return 0
}

// Index returns element i of repeated field n, or nil when out of range.
func (m *Message) Index(n int32, i int) any {
	l, ok := m.fields[n].(*List)
	if !ok || i < 0 || i >= l.Len() {
		return nil
	}
	return l.Get(i)
}

// MapPut stores k -> v in map field n. An existing key keeps its position.
func (m *Message) MapPut(n int32, k, v any) error {
	mp, err := m.MutableMap(n)
	if err != nil {
		return err
	}
	return mp.Put(k, v)
}

// MapGet looks k up in map field n.
func (m *Message) MapGet(n int32, k any) (any, bool) {
	mp, ok := m.fields[n].(*Map)
	if !ok {
		return nil, false
	}
	return mp.Get(k)
}

// Range calls fn for each present field in field-number order until fn
// returns false.
func (m *Message) Range(fn func(fd *schema.FieldDescriptor, v any) bool) {
	for _, fd := range m.desc.FieldsByNumber() {
		if !m.Has(fd.Number) {
			continue
		}
		if !fn(fd, m.fields[fd.Number]) {
			return
		}
	}
}

// Unknown returns the raw wire records of fields the schema does not
// declare, in the order they were read.
func (m *Message) Unknown() []byte { return m.unknown }

// SetUnknown replaces the unknown records.
func (m *Message) SetUnknown(b []byte) { m.unknown = append([]byte(nil), b...) }

// AppendUnknown adds raw records after the existing unknown ones.
func (m *Message) AppendUnknown(b []byte) { m.unknown = append(m.unknown, b...) }

// Clone returns a deep copy of m.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := &Message{desc: m.desc, fields: make(map[int32]any, len(m.fields))}
	for n, v := range m.fields {
		c.fields[n] = cloneValue(v)
	}
	if m.unknown != nil {
		c.unknown = append([]byte(nil), m.unknown...)
	}
	return c
}

// Swap exchanges the field state of m and o, which must share a message
// type.
func (m *Message) Swap(o *Message) error {
	if !sameType(m.desc, o.desc) {
		return protoskema.NewIssue(protoskema.CodeTypeMismatch, -1, "cannot swap %s with %s", m.desc.FullName, o.desc.FullName)
	}
	m.fields, o.fields = o.fields, m.fields
	m.unknown, o.unknown = o.unknown, m.unknown
	return nil
}

// Equal reports whether a and b have the same type, the same present
// fields with equal values and identical unknown records. Map fields compare
// without regard to entry order.
func Equal(a, b *Message) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !sameType(a.desc, b.desc) || !bytes.Equal(a.unknown, b.unknown) {
		return false
	}
	for _, fd := range a.desc.Fields {
		ha, hb := a.Has(fd.Number), b.Has(fd.Number)
		if ha != hb {
			return false
		}
		if ha && !equalValue(a.fields[fd.Number], b.fields[fd.Number]) {
			return false
		}
	}
	return true
}
