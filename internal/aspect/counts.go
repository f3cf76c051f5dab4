package aspect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"

	dErrors "cardforge/pkg/domain-errors"
)

// Entry is one aspect and how many icons of it a card costs.
type Entry struct {
	Aspect Aspect
	Count  int
}

// Counts is a card's aspect multiplicity map.
//
// Entries are kept in registry order with unrecognized keys appended in the
// order they were first seen. Unknown keys are tolerated and round-trip
// unchanged; they never set identity bits. The zero value is an empty map.
//
// Counts is a value type: Increment and Decrement return a new Counts and
// never modify the receiver.
type Counts struct {
	entries []Entry
}

// NewCounts builds a Counts from entries. A repeated aspect keeps its first
// position and its last count.
func NewCounts(entries ...Entry) Counts {
	var c Counts
	for _, e := range entries {
		c.entries = c.set(e.Aspect, e.Count)
	}
	c.sort()
	return c
}

// FromMap builds a Counts from a Go map. Unknown keys are ordered by name
// because map iteration order carries no meaning.
func FromMap(m map[Aspect]int) Counts {
	keys := make([]Aspect, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, Entry{Aspect: k, Count: m[k]})
	}
	return NewCounts(entries...)
}

// Get returns the count for a, or 0 if absent.
func (c Counts) Get(a Aspect) int {
	if i := c.index(a); i >= 0 {
		return c.entries[i].Count
	}
	return 0
}

// Has reports whether a has an entry, even a zero one.
func (c Counts) Has(a Aspect) bool {
	return c.index(a) >= 0
}

// Entries returns a copy of the entries in canonical order.
func (c Counts) Entries() []Entry {
	return slices.Clone(c.entries)
}

func (c Counts) Len() int {
	return len(c.entries)
}

func (c Counts) IsEmpty() bool {
	return len(c.entries) == 0
}

// Map returns the counts as a plain map.
func (c Counts) Map() map[Aspect]int {
	m := make(map[Aspect]int, len(c.entries))
	for _, e := range c.entries {
		m[e.Aspect] = e.Count
	}
	return m
}

// Equal reports whether both maps hold the same entries in the same order.
func (c Counts) Equal(other Counts) bool {
	return slices.Equal(c.entries, other.entries)
}

// IconTotal is the number of icon slots the cost occupies. Every positive
// non-neutral count adds its value; the neutral category adds at most one
// slot however large its count.
func (c Counts) IconTotal() int {
	total := 0
	for _, e := range c.entries {
		if e.Count <= 0 {
			continue
		}
		if e.Aspect.IsNeutral() {
			total++
			continue
		}
		total += e.Count
	}
	return total
}

// Increment adds one icon of a. Incrementing the neutral category is always
// allowed. Any other aspect is refused once IconTotal reaches MaxIcons; a
// refusal returns the receiver unchanged and false.
func (c Counts) Increment(a Aspect) (Counts, bool) {
	if !a.IsNeutral() && c.IconTotal() >= MaxIcons {
		return c, false
	}
	next := Counts{entries: slices.Clone(c.entries)}
	next.entries = next.set(a, next.Get(a)+1)
	next.sort()
	return next, true
}

// Decrement removes one icon of a. A count of one removes the key; an absent
// or non-positive count is left alone.
func (c Counts) Decrement(a Aspect) Counts {
	i := c.index(a)
	if i < 0 || c.entries[i].Count <= 0 {
		return c
	}
	next := Counts{entries: slices.Clone(c.entries)}
	if next.entries[i].Count == 1 {
		next.entries = slices.Delete(next.entries, i, i+1)
	} else {
		next.entries[i].Count--
	}
	next.sort()
	return next
}

// Validate rejects negative counts.
func (c Counts) Validate() error {
	for _, e := range c.entries {
		if e.Count < 0 {
			return dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("aspect count for %s must not be negative", e.Aspect))
		}
		if e.Aspect == "" {
			return dErrors.New(dErrors.CodeValidation, "aspect name must not be empty")
		}
	}
	return nil
}

func (c Counts) index(a Aspect) int {
	for i, e := range c.entries {
		if e.Aspect == a {
			return i
		}
	}
	return -1
}

// set writes a count in place or appends a new entry, returning the slice.
func (c Counts) set(a Aspect, count int) []Entry {
	if i := c.index(a); i >= 0 {
		c.entries[i].Count = count
		return c.entries
	}
	return append(c.entries, Entry{Aspect: a, Count: count})
}

func (c *Counts) sort() {
	sort.SliceStable(c.entries, func(i, j int) bool {
		return rank(c.entries[i].Aspect) < rank(c.entries[j].Aspect)
	})
}

// rank places registry aspects by ordinal and every unknown key after them.
func rank(a Aspect) int {
	if i, ok := OrdinalOf(a); ok {
		return i
	}
	return len(registry)
}

// MarshalJSON writes an object whose key order is the canonical order.
func (c Counts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range c.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(e.Aspect))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(e.Count))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object of aspect name to count, keeping document
// order for unknown keys. Integral floats such as 2.0 are accepted; any other
// non-integer count is rejected.
func (c *Counts) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = Counts{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("aspect counts must be a JSON object")
	}

	var next Counts
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var n json.Number
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("aspect count for %q must be a number", key)
		}
		count, err := toCount(n)
		if err != nil {
			return fmt.Errorf("aspect count for %q: %w", key, err)
		}
		next.entries = next.set(Aspect(key), count)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	next.sort()
	*c = next
	return nil
}

func toCount(n json.Number) (int, error) {
	if i, err := n.Int64(); err == nil {
		if i > math.MaxInt32 || i < math.MinInt32 {
			return 0, fmt.Errorf("out of range")
		}
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("must be an integer")
	}
	return int(f), nil
}
