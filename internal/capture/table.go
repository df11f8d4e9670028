package capture

import (
	"slices"
	"strings"
)

// HeaderTable maps header names to their values in write order. Names are
// case-sensitive as given and iterate in first-insertion order.
type HeaderTable struct {
	names  []string
	values map[string][]string
}

// Set replaces any values for name with the single value.
func (t *HeaderTable) Set(name, value string) {
	t.replace(name, []string{value})
}

// Add appends value to name, creating the entry if needed.
func (t *HeaderTable) Add(name, value string) {
	if t.values == nil {
		t.values = make(map[string][]string)
	}
	if _, ok := t.values[name]; !ok {
		t.names = append(t.names, name)
	}
	t.values[name] = append(t.values[name], value)
}

func (t *HeaderTable) replace(name string, vals []string) {
	if t.values == nil {
		t.values = make(map[string][]string)
	}
	if _, ok := t.values[name]; !ok {
		t.names = append(t.names, name)
	}
	t.values[name] = slices.Clone(vals)
}

// setFold sets name, reusing a stored spelling that differs only in case.
func (t *HeaderTable) setFold(name, value string) {
	if stored, ok := t.nameFold(name); ok {
		name = stored
	}
	t.Set(name, value)
}

// Del removes every entry whose name matches under case folding, the way
// the wire header is removed.
func (t *HeaderTable) Del(name string) {
	t.names = slices.DeleteFunc(t.names, func(n string) bool {
		if strings.EqualFold(n, name) {
			delete(t.values, n)
			return true
		}
		return false
	})
}

func (t *HeaderTable) clone() HeaderTable {
	c := HeaderTable{names: slices.Clone(t.names)}
	if t.values != nil {
		c.values = make(map[string][]string, len(t.values))
		for k, v := range t.values {
			c.values[k] = slices.Clone(v)
		}
	}
	return c
}

// Names returns a copy of the header names in insertion order.
func (t *HeaderTable) Names() []string { return slices.Clone(t.names) }

// Values returns a copy of the values for name, or nil.
func (t *HeaderTable) Values(name string) []string {
	return slices.Clone(t.values[name])
}

// nameFold returns the stored name equal to name under case folding.
func (t *HeaderTable) nameFold(name string) (string, bool) {
	for _, n := range t.names {
		if strings.EqualFold(n, name) {
			return n, true
		}
	}
	return "", false
}

func (t *HeaderTable) Len() int { return len(t.names) }
