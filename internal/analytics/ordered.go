package analytics

// Number is the value type an OrderedMap can accumulate.
type Number interface {
	~int | ~float64
}

// OrderedMap is a string-keyed map that remembers insertion order.
// Each aggregation builds its own instance; it is never shared between callers.
type OrderedMap[V Number] struct {
	keys   []string
	values map[string]V
}

// NewOrderedMap returns an empty map.
func NewOrderedMap[V Number]() *OrderedMap[V] {
	return &OrderedMap[V]{values: make(map[string]V)}
}

// Add adds delta to key, inserting the key at the end if it is new.
func (m *OrderedMap[V]) Add(key string, delta V) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] += delta
}

// Set stores v under key, inserting the key at the end if it is new.
func (m *OrderedMap[V]) Set(key string, v V) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the value of key and whether it is present.
func (m *OrderedMap[V]) Get(key string) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *OrderedMap[V]) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of keys.
func (m *OrderedMap[V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Each calls fn for every entry in insertion order.
func (m *OrderedMap[V]) Each(fn func(key string, v V)) {
	for _, k := range m.keys {
		fn(k, m.values[k])
	}
}

// Max returns the largest value, or false when the map is empty.
func (m *OrderedMap[V]) Max() (V, bool) {
	var best V
	if m.Len() == 0 {
		return best, false
	}
	for i, k := range m.keys {
		if v := m.values[k]; i == 0 || v > best {
			best = v
		}
	}
	return best, true
}
