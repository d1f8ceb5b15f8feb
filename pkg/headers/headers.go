// Package headers implements the insertion-ordered, case-insensitive
// header multimap shared by Request and Response: iteration preserves
// insertion order (the wire contract), while lookup is case-insensitive.
package headers

import "strings"

// entry is one stored header pair, in the case it was set with.
type entry struct {
	key   string
	value string
}

// Map is an insertion-ordered multimap from header name to a single value.
// Duplicate Set calls replace the previous value under the same
// case-insensitive key rather than appending a second entry, matching the
// "single value per key" header model used throughout the client.
type Map struct {
	order []string // lowercase keys, in insertion order
	store map[string]entry
}

// New creates an empty header map.
func New() *Map {
	return &Map{store: make(map[string]entry)}
}

// Set stores value under key, replacing any previous value for the same
// case-insensitive key. The first-seen casing of the key is preserved for
// wire iteration.
func (m *Map) Set(key, value string) {
	if m.store == nil {
		m.store = make(map[string]entry)
	}
	lower := strings.ToLower(key)
	if old, ok := m.store[lower]; ok {
		old.value = value
		m.store[lower] = old
		return
	}
	m.store[lower] = entry{key: key, value: value}
	m.order = append(m.order, lower)
}

// Get looks up a header value case-insensitively. The bool reports whether
// the key was present.
func (m *Map) Get(key string) (string, bool) {
	if m.store == nil {
		return "", false
	}
	e, ok := m.store[strings.ToLower(key)]
	return e.value, ok
}

// Has reports whether key is present, case-insensitively.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Del removes key, case-insensitively. A no-op if absent.
func (m *Map) Del(key string) {
	lower := strings.ToLower(key)
	if _, ok := m.store[lower]; !ok {
		return
	}
	delete(m.store, lower)
	for i, k := range m.order {
		if k == lower {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of distinct headers stored.
func (m *Map) Len() int {
	return len(m.order)
}

// Range calls fn for every header in insertion order, using the casing it
// was originally set with. Stops early if fn returns false.
func (m *Map) Range(fn func(key, value string) bool) {
	for _, lower := range m.order {
		e := m.store[lower]
		if !fn(e.key, e.value) {
			return
		}
	}
}

// Clone returns an independent copy with the same entries and order.
func (m *Map) Clone() *Map {
	c := New()
	m.Range(func(k, v string) bool {
		c.Set(k, v)
		return true
	})
	return c
}
