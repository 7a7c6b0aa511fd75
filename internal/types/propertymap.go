package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PropertyMap is a string-to-string map that remembers the order in which
// keys were first assigned. Dynamic product properties and offer properties
// are stored as JSON objects, and downstream consumers rely on the columns
// appearing in the order the supplier's file produced them, so plain Go maps
// (randomized iteration) are not usable here.
type PropertyMap struct {
	keys   []string
	values map[string]string
}

// NewPropertyMap returns an empty property map.
func NewPropertyMap() *PropertyMap {
	return &PropertyMap{values: make(map[string]string)}
}

// Set assigns value to key. The first assignment fixes the key's position;
// later assignments overwrite in place.
func (m *PropertyMap) Set(key, value string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key and whether it is present.
func (m *PropertyMap) Get(key string) (string, bool) {
	if m == nil || m.values == nil {
		return "", false
	}
	v, ok := m.values[key]
	return v, ok
}

// Len returns the number of keys.
func (m *PropertyMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order. The returned slice is a copy.
func (m *PropertyMap) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Clone returns a deep copy.
func (m *PropertyMap) Clone() *PropertyMap {
	if m == nil {
		return nil
	}
	out := NewPropertyMap()
	for _, k := range m.keys {
		out.Set(k, m.values[k])
	}
	return out
}

// MarshalJSON encodes the map as a JSON object with keys in insertion order.
// Strings are not HTML-escaped: the output lands in catalog columns, where
// "Dolce & Gabbana" must stay readable.
func (m *PropertyMap) MarshalJSON() ([]byte, error) {
	if m == nil || len(m.keys) == 0 {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	writeString := func(s string) error {
		if err := enc.Encode(s); err != nil {
			return err
		}
		buf.Truncate(buf.Len() - 1) // Encode appends a newline
		return nil
	}
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeString(m.values[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving the document's key order.
func (m *PropertyMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("property map: expected JSON object, got %v", tok)
	}
	m.keys = nil
	m.values = make(map[string]string)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("property map: non-string key %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("property map: value for %q: %w", key, err)
		}
		m.Set(key, value)
	}
	// consume closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
