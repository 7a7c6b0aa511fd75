// Package bag implements the property bag that carries a row's working
// state through the action pipeline.
//
// Keys are case-insensitive: a value written as "EAN" is readable as "ean".
// The first write fixes the display casing and the key's position in
// iteration order. Array outputs are stored as sibling keys ("Out[0]",
// "Out[1]", "Out.Length"), and cleaned inputs as "<Key>.Clean" siblings, so
// every downstream reference resolves through the same flat namespace.
package bag

import (
	"strconv"
	"strings"
)

// Bag holds the properties accumulated while parsing one row. A bag lives
// for exactly one row; presence of a key means it was written during that
// row's pipeline.
type Bag struct {
	values map[string]string // canonical key -> value
	names  map[string]string // canonical key -> display casing of first write
	order  []string          // canonical keys in first-write order

	trace   []TraceEntry
	traceOn bool
}

// New returns an empty bag.
func New() *Bag {
	return &Bag{
		values: make(map[string]string),
		names:  make(map[string]string),
	}
}

func canonical(key string) string {
	return strings.ToLower(key)
}

// Set writes value under key. Overwrites keep the position and display
// casing of the first write.
func (b *Bag) Set(key, value string) {
	ck := canonical(key)
	if _, ok := b.values[ck]; !ok {
		b.order = append(b.order, ck)
		b.names[ck] = key
	}
	b.values[ck] = value
}

// SetAll writes an array result: values land under "key[0]"..."key[n-1]"
// and the count under "key.Length". A single-element array also writes the
// bare key so later refs can use either form.
func (b *Bag) SetAll(key string, values []string) {
	for i, v := range values {
		b.Set(key+"["+strconv.Itoa(i)+"]", v)
	}
	b.Set(key+".Length", strconv.Itoa(len(values)))
	if len(values) > 0 {
		b.Set(key, values[0])
	}
}

// Get returns the value for key and whether the key has been written.
func (b *Bag) Get(key string) (string, bool) {
	v, ok := b.values[canonical(key)]
	return v, ok
}

// Value returns the value for key, or "" when the key is absent.
func (b *Bag) Value(key string) string {
	return b.values[canonical(key)]
}

// Has reports whether key was written during this row.
func (b *Bag) Has(key string) bool {
	_, ok := b.values[canonical(key)]
	return ok
}

// Delete removes key. A deleted key reads as never written.
func (b *Bag) Delete(key string) {
	ck := canonical(key)
	if _, ok := b.values[ck]; !ok {
		return
	}
	delete(b.values, ck)
	delete(b.names, ck)
	for i, k := range b.order {
		if k == ck {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Keys returns the display-cased keys in first-write order.
func (b *Bag) Keys() []string {
	out := make([]string, 0, len(b.order))
	for _, ck := range b.order {
		out = append(out, b.names[ck])
	}
	return out
}

// Len returns the number of keys.
func (b *Bag) Len() int {
	return len(b.order)
}

// TraceEntry records one action execution for diagnostics.
type TraceEntry struct {
	Action  string `json:"action"`
	Input   string `json:"input"`
	Output  string `json:"output"`
	Matched bool   `json:"matched"`
	Success bool   `json:"success"`
}

// EnableTrace turns on trace recording for this bag.
func (b *Bag) EnableTrace() {
	b.traceOn = true
}

// Tracing reports whether trace recording is on.
func (b *Bag) Tracing() bool {
	return b.traceOn
}

// AddTrace appends an entry when tracing is enabled, otherwise does nothing.
func (b *Bag) AddTrace(e TraceEntry) {
	if !b.traceOn {
		return
	}
	b.trace = append(b.trace, e)
}

// Trace returns the recorded entries in execution order.
func (b *Bag) Trace() []TraceEntry {
	return b.trace
}
