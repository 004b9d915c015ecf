// Package histogram extracts the bitstring to count mapping from an
// executor's raw response and serves it through fixed-size buffer reads.
package histogram

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"sort"
	"strings"
)

// ValueSize is the width in bytes of one encoded count.
const ValueSize = 8

// Separator delimits bitstrings in a keys read; Terminator replaces the last one.
const (
	Separator  = ','
	Terminator = 0
)

// ErrShortBuffer is returned when a destination buffer cannot hold the
// full encoding. Nothing is written in that case.
var ErrShortBuffer = errors.New("histogram: destination buffer too small")

// Histogram maps outcome bitstrings to observed counts. It is immutable
// once built and safe for concurrent reads.
type Histogram struct {
	keys   []string
	counts map[string]uint64
}

// New builds a histogram from a counts map. The map is copied.
func New(counts map[string]uint64) *Histogram {
	h := &Histogram{
		keys:   make([]string, 0, len(counts)),
		counts: make(map[string]uint64, len(counts)),
	}
	for k, v := range counts {
		h.keys = append(h.keys, k)
		h.counts[k] = v
	}
	sort.Strings(h.keys)
	return h
}

// Empty returns a histogram with no entries.
func Empty() *Histogram {
	return New(nil)
}

// Len returns the number of distinct bitstrings.
func (h *Histogram) Len() int { return len(h.keys) }

// Keys returns the bitstrings in sorted order.
func (h *Histogram) Keys() []string {
	out := make([]string, len(h.keys))
	copy(out, h.keys)
	return out
}

// Count returns the count recorded for a bitstring.
func (h *Histogram) Count(key string) (uint64, bool) {
	v, ok := h.counts[key]
	return v, ok
}

// Counts returns a copy of the underlying mapping.
func (h *Histogram) Counts() map[string]uint64 {
	out := make(map[string]uint64, len(h.counts))
	for k, v := range h.counts {
		out[k] = v
	}
	return out
}

// Total returns the sum of all counts.
func (h *Histogram) Total() uint64 {
	var total uint64
	for _, v := range h.counts {
		total += v
	}
	return total
}

// KeysSize returns the bytes needed for a keys read: every bitstring plus one
// separator byte each.
func (h *Histogram) KeysSize() int {
	n := 0
	for _, k := range h.keys {
		n += len(k) + 1
	}
	return n
}

// ValuesSize returns the bytes needed for a values read.
func (h *Histogram) ValuesSize() int {
	return len(h.keys) * ValueSize
}

// ReadKeys writes the bitstrings in sorted order, comma separated, with the
// final separator replaced by a zero byte. A nil dst is a size query.
func (h *Histogram) ReadKeys(dst []byte) (int, error) {
	need := h.KeysSize()
	if dst == nil {
		return need, nil
	}
	if len(dst) < need {
		return need, ErrShortBuffer
	}
	off := 0
	for _, k := range h.keys {
		off += copy(dst[off:], k)
		dst[off] = Separator
		off++
	}
	if off > 0 {
		dst[off-1] = Terminator
	}
	return need, nil
}

// ReadValues writes the counts as little-endian uint64 values in the same
// order as ReadKeys. A nil dst is a size query.
func (h *Histogram) ReadValues(dst []byte) (int, error) {
	need := h.ValuesSize()
	if dst == nil {
		return need, nil
	}
	if len(dst) < need {
		return need, ErrShortBuffer
	}
	for i, k := range h.keys {
		binary.LittleEndian.PutUint64(dst[i*ValueSize:], h.counts[k])
	}
	return need, nil
}

// String renders the keys read without its terminator, for logs.
func (h *Histogram) String() string {
	return strings.Join(h.keys, string(Separator))
}

// MarshalJSON encodes the histogram as a JSON object of counts.
func (h *Histogram) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.counts)
}
