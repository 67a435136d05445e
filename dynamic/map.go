package dynamic

import (
	protoskema "github.com/reoring/protoskema"
	"github.com/reoring/protoskema/schema"
)

// Map holds the entries of a map field. Keys are unique and iteration
// follows first-insertion order.
type Map struct {
	field    *schema.FieldDescriptor
	keys     []any
	vals     []any
	index    map[any]int
	readOnly bool
}

// NewMap returns an empty map for the map field fd.
func NewMap(fd *schema.FieldDescriptor) *Map { return newMap(fd) }

func newMap(fd *schema.FieldDescriptor) *Map {
	return &Map{field: fd, index: make(map[any]int)}
}

// Field returns the map field the map belongs to.
func (mp *Map) Field() *schema.FieldDescriptor { return mp.field }

// Len returns the number of entries.
func (mp *Map) Len() int { return len(mp.keys) }

// Get returns the value stored under k.
func (mp *Map) Get(k any) (any, bool) {
	i, ok := mp.index[k]
	if !ok {
		return nil, false
	}
	return mp.vals[i], true
}

// Put validates and stores k -> v. Re-putting a key replaces the value and
// keeps the original position.
func (mp *Map) Put(k, v any) error {
	if mp.readOnly {
		return protoskema.NewIssue(protoskema.CodeTypeMismatch, -1, "map for %s is read-only; use Mutable", mp.field.FullName)
	}
	sk, err := checkScalar(mp.field.MapKey, k)
	if err != nil {
		return err
	}
	sv, err := checkScalar(mp.field.MapValue, v)
	if err != nil {
		return err
	}
	if i, ok := mp.index[sk]; ok {
		mp.vals[i] = sv
		return nil
	}
	mp.index[sk] = len(mp.keys)
	mp.keys = append(mp.keys, sk)
	mp.vals = append(mp.vals, sv)
	return nil
}

// Delete removes k.
func (mp *Map) Delete(k any) {
	i, ok := mp.index[k]
	if !ok || mp.readOnly {
		return
	}
	mp.keys = append(mp.keys[:i], mp.keys[i+1:]...)
	mp.vals = append(mp.vals[:i], mp.vals[i+1:]...)
	delete(mp.index, k)
	for j := i; j < len(mp.keys); j++ {
		mp.index[mp.keys[j]] = j
	}
}

// Range calls fn for each entry in insertion order until fn returns false.
func (mp *Map) Range(fn func(k, v any) bool) {
	for i, k := range mp.keys {
		if !fn(k, mp.vals[i]) {
			return
		}
	}
}

func (mp *Map) clone() *Map {
	c := &Map{
		field: mp.field,
		keys:  append([]any(nil), mp.keys...),
		vals:  make([]any, len(mp.vals)),
		index: make(map[any]int, len(mp.index)),
	}
	for i, v := range mp.vals {
		c.vals[i] = cloneValue(v)
	}
	for k, i := range mp.index {
		c.index[k] = i
	}
	return c
}
