package aspect

import (
	"fmt"
	"math/bits"

	dErrors "cardforge/pkg/domain-errors"
)

// Mask is a card's identity: bit i is set when the aspect at ordinal i has a
// positive count. The neutral category never has a bit.
type Mask uint32

// ValidBits covers every elemental ordinal.
var ValidBits = func() Mask {
	var m Mask
	for i, a := range registry {
		if !a.IsNeutral() {
			m |= 1 << i
		}
	}
	return m
}()

// Encode returns the identity mask for a card. A non-zero explicit mask is
// authoritative and returned as is, even if it disagrees with counts.
// Otherwise the mask is derived from counts; unknown keys and non-positive
// counts contribute nothing.
func Encode(explicit Mask, counts Counts) Mask {
	if explicit != 0 {
		return explicit
	}
	return Derive(counts)
}

// Derive computes the mask from counts alone, ignoring any stored value.
func Derive(counts Counts) Mask {
	var value Mask
	for i, a := range registry {
		if a.IsNeutral() {
			continue
		}
		if counts.Get(a) > 0 {
			value |= 1 << i
		}
	}
	return value
}

// MaskOf sets the bit of every given elemental aspect.
func MaskOf(aspects ...Aspect) Mask {
	var m Mask
	for _, a := range aspects {
		if a.IsNeutral() {
			continue
		}
		if i, ok := OrdinalOf(a); ok {
			m |= 1 << i
		}
	}
	return m
}

// Has reports whether a's bit is set.
func (m Mask) Has(a Aspect) bool {
	i, ok := OrdinalOf(a)
	if !ok || a.IsNeutral() {
		return false
	}
	return m&(1<<i) != 0
}

// Contains reports whether every bit of sub is set in m.
func (m Mask) Contains(sub Mask) bool {
	return m&sub == sub
}

// Aspects lists the aspects whose bits are set, in registry order.
func (m Mask) Aspects() []Aspect {
	out := make([]Aspect, 0, bits.OnesCount32(uint32(m)))
	for i, a := range registry {
		if a.IsNeutral() {
			continue
		}
		if m&(1<<i) != 0 {
			out = append(out, a)
		}
	}
	return out
}

// Validate rejects bits outside the elemental ordinals.
func (m Mask) Validate() error {
	if m&^ValidBits != 0 {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("aspect mask %d sets bits outside the elemental aspects", m))
	}
	return nil
}
