package dynamic

import (
	protoskema "github.com/reoring/protoskema"
	"github.com/reoring/protoskema/schema"
)

// List holds the elements of a repeated field in insertion order.
type List struct {
	field    *schema.FieldDescriptor
	items    []any
	readOnly bool
}

// NewList returns an empty list for the repeated field fd.
func NewList(fd *schema.FieldDescriptor) *List { return newList(fd) }

func newList(fd *schema.FieldDescriptor) *List { return &List{field: fd} }

// Field returns the repeated field the list belongs to.
func (l *List) Field() *schema.FieldDescriptor { return l.field }

// Len returns the number of elements.
func (l *List) Len() int { return len(l.items) }

// Get returns element i.
func (l *List) Get(i int) any { return l.items[i] }

func (l *List) writable() error {
	if l.readOnly {
		return protoskema.NewIssue(protoskema.CodeTypeMismatch, -1, "list for %s is read-only; use Mutable", l.field.FullName)
	}
	return nil
}

// Append validates v and adds it at the end.
func (l *List) Append(v any) error {
	if err := l.writable(); err != nil {
		return err
	}
	sv, err := checkScalar(l.field, v)
	if err != nil {
		return err
	}
	l.items = append(l.items, sv)
	return nil
}

// AppendMessage adds a new empty element to a list of messages and returns
// it.
func (l *List) AppendMessage() (*Message, error) {
	if err := l.writable(); err != nil {
		return nil, err
	}
	if l.field.Kind != schema.KindMessage {
		return nil, mismatch(l.field, &Message{})
	}
	m := New(l.field.Message)
	l.items = append(l.items, m)
	return m, nil
}

// Set replaces element i.
func (l *List) Set(i int, v any) error {
	if err := l.writable(); err != nil {
		return err
	}
	sv, err := checkScalar(l.field, v)
	if err != nil {
		return err
	}
	l.items[i] = sv
	return nil
}

func (l *List) clone() *List {
	c := &List{field: l.field, items: make([]any, len(l.items))}
	for i, v := range l.items {
		c.items[i] = cloneValue(v)
	}
	return c
}
