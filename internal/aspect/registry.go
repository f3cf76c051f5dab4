// Package aspect models the elemental aspects a card can cost.
//
// The registry order is part of the persisted format: the aspect at ordinal i
// owns bit i of every stored identity mask. Never reorder or insert into
// registry; append only.
package aspect

import (
	"strings"

	dErrors "cardforge/pkg/domain-errors"
)

// Aspect names one elemental category, or the neutral Fundamental category.
type Aspect string

const (
	Bloom       Aspect = "BLOOM"
	Callous     Aspect = "CALLOUS"
	Grace       Aspect = "GRACE"
	Law         Aspect = "LAW"
	Mythic      Aspect = "MYTHIC"
	Relic       Aspect = "RELIC"
	Tide        Aspect = "TIDE"
	Weird       Aspect = "WEIRD"
	Xeno        Aspect = "XENO"
	Zeal        Aspect = "ZEAL"
	Fundamental Aspect = "FUNDAMENTAL"
)

// Neutral is the category excluded from identity masks.
const Neutral = Fundamental

// MaxIcons caps the number of cost icons a card can display.
const MaxIcons = 20

var registry = [...]Aspect{
	Bloom,
	Callous,
	Grace,
	Law,
	Mythic,
	Relic,
	Tide,
	Weird,
	Xeno,
	Zeal,
	Fundamental,
}

var ordinals = func() map[Aspect]int {
	m := make(map[Aspect]int, len(registry))
	for i, a := range registry {
		m[a] = i
	}
	return m
}()

// All returns every aspect in registry order, including Fundamental.
func All() []Aspect {
	out := make([]Aspect, len(registry))
	copy(out, registry[:])
	return out
}

// Elemental returns the aspects that participate in identity masks.
func Elemental() []Aspect {
	out := make([]Aspect, 0, len(registry)-1)
	for _, a := range registry {
		if a != Neutral {
			out = append(out, a)
		}
	}
	return out
}

// OrdinalOf returns the registry index of a.
func OrdinalOf(a Aspect) (int, bool) {
	i, ok := ordinals[a]
	return i, ok
}

// NameAt returns the aspect at registry index i.
func NameAt(i int) (Aspect, bool) {
	if i < 0 || i >= len(registry) {
		return "", false
	}
	return registry[i], true
}

// Known reports whether a is in the registry.
func Known(a Aspect) bool {
	_, ok := ordinals[a]
	return ok
}

// IsNeutral reports whether a is the neutral category.
func (a Aspect) IsNeutral() bool {
	return a == Neutral
}

func (a Aspect) String() string {
	return string(a)
}

// Parse resolves a case-insensitive aspect name.
func Parse(s string) (Aspect, error) {
	a := Aspect(strings.ToUpper(strings.TrimSpace(s)))
	if !Known(a) {
		return "", dErrors.New(dErrors.CodeValidation, "unknown aspect: "+s)
	}
	return a, nil
}
