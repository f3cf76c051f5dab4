package aspect

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "cardforge/pkg/domain-errors"
)

func TestRegistry(t *testing.T) {
	t.Run("order is fixed and ends with the neutral category", func(t *testing.T) {
		all := All()
		require.Len(t, all, 11)
		assert.Equal(t, Bloom, all[0])
		assert.Equal(t, Zeal, all[9])
		assert.Equal(t, Fundamental, all[10])
	})

	t.Run("ordinal and name are inverse", func(t *testing.T) {
		for i, a := range All() {
			got, ok := OrdinalOf(a)
			require.True(t, ok)
			assert.Equal(t, i, got)

			name, ok := NameAt(i)
			require.True(t, ok)
			assert.Equal(t, a, name)
		}
	})

	t.Run("out of range lookups fail", func(t *testing.T) {
		_, ok := NameAt(-1)
		assert.False(t, ok)
		_, ok = NameAt(11)
		assert.False(t, ok)
		_, ok = OrdinalOf("EXHAUST")
		assert.False(t, ok)
	})

	t.Run("All returns a copy", func(t *testing.T) {
		all := All()
		all[0] = "MUTATED"
		assert.Equal(t, Bloom, All()[0])
	})

	t.Run("elemental excludes the neutral category", func(t *testing.T) {
		assert.Len(t, Elemental(), 10)
		assert.NotContains(t, Elemental(), Fundamental)
	})

	t.Run("parse is case-insensitive", func(t *testing.T) {
		a, err := Parse(" tide ")
		require.NoError(t, err)
		assert.Equal(t, Tide, a)

		_, err = Parse("plasma")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestEncode(t *testing.T) {
	t.Run("empty map encodes to zero", func(t *testing.T) {
		assert.Equal(t, Mask(0), Encode(0, Counts{}))
	})

	t.Run("each elemental aspect owns its ordinal bit", func(t *testing.T) {
		for i, a := range All() {
			if a.IsNeutral() {
				continue
			}
			assert.Equal(t, Mask(1)<<i, Encode(0, NewCounts(Entry{a, 1})), "aspect %s", a)
		}
	})

	t.Run("encoding is idempotent", func(t *testing.T) {
		counts := NewCounts(Entry{Law, 3}, Entry{Xeno, 1}, Entry{Fundamental, 2})
		first := Encode(0, counts)
		second := Encode(0, counts)
		assert.Equal(t, first, second)
	})

	t.Run("explicit mask short-circuits", func(t *testing.T) {
		counts := NewCounts(Entry{Bloom, 4})
		for _, m := range []Mask{1, 0b1000, 0b1111111111, 12345} {
			assert.Equal(t, m, Encode(m, counts))
			assert.Equal(t, m, Encode(m, Counts{}))
		}
	})

	t.Run("neutral category is excluded", func(t *testing.T) {
		assert.Equal(t, Mask(0), Encode(0, NewCounts(Entry{Fundamental, 5})))
	})

	t.Run("non-positive counts and unknown keys set no bits", func(t *testing.T) {
		counts := NewCounts(Entry{Grace, 0}, Entry{Relic, -2}, Entry{"EXHAUST", 3})
		assert.Equal(t, Mask(0), Encode(0, counts))
		assert.Equal(t, 3, counts.Get("EXHAUST"), "unknown key is preserved")
	})

	t.Run("bloom and zeal set exactly their bits", func(t *testing.T) {
		m := Encode(0, NewCounts(Entry{Bloom, 2}, Entry{Zeal, 1}))
		assert.Equal(t, MaskOf(Bloom, Zeal), m)
		assert.Equal(t, []Aspect{Bloom, Zeal}, m.Aspects())
		assert.True(t, m.Has(Bloom))
		assert.True(t, m.Has(Zeal))
		assert.False(t, m.Has(Callous))
	})
}

func TestMask(t *testing.T) {
	t.Run("contains is a superset test", func(t *testing.T) {
		card := Mask(0b0110)
		assert.True(t, card.Contains(0b0010))
		assert.True(t, card.Contains(0b0110))
		assert.True(t, card.Contains(0))
		assert.False(t, card.Contains(0b1000))
		assert.False(t, card.Contains(0b1110))
	})

	t.Run("validate rejects the neutral bit and higher bits", func(t *testing.T) {
		require.NoError(t, Mask(0).Validate())
		require.NoError(t, ValidBits.Validate())
		assert.Error(t, Mask(1<<10).Validate())
		assert.Error(t, Mask(1<<20).Validate())
	})

	t.Run("mask of ignores neutral", func(t *testing.T) {
		assert.Equal(t, MaskOf(Tide), MaskOf(Tide, Fundamental))
	})
}

func TestIncrement(t *testing.T) {
	t.Run("adds an entry and keeps registry order", func(t *testing.T) {
		c, ok := Counts{}.Increment(Zeal)
		require.True(t, ok)
		c, ok = c.Increment(Bloom)
		require.True(t, ok)
		c, ok = c.Increment(Zeal)
		require.True(t, ok)

		assert.Equal(t, []Entry{{Bloom, 1}, {Zeal, 2}}, c.Entries())
	})

	t.Run("does not modify the receiver", func(t *testing.T) {
		orig := NewCounts(Entry{Law, 1})
		_, _ = orig.Increment(Law)
		assert.Equal(t, 1, orig.Get(Law))
	})

	t.Run("stops at the icon budget across distinct aspects", func(t *testing.T) {
		c := Counts{}
		elemental := Elemental()
		for i := 0; i < MaxIcons+1; i++ {
			c, _ = c.Increment(elemental[i%len(elemental)])
		}
		assert.Equal(t, MaxIcons, c.IconTotal())
	})

	t.Run("rejection returns false and the same map", func(t *testing.T) {
		c := NewCounts(Entry{Mythic, MaxIcons})
		next, ok := c.Increment(Weird)
		assert.False(t, ok)
		assert.True(t, next.Equal(c))
	})

	t.Run("neutral is never blocked", func(t *testing.T) {
		c := NewCounts(Entry{Mythic, MaxIcons})
		for i := 0; i < 5; i++ {
			var ok bool
			c, ok = c.Increment(Fundamental)
			require.True(t, ok)
		}
		assert.Equal(t, 5, c.Get(Fundamental))
	})

	t.Run("neutral contributes one slot however large", func(t *testing.T) {
		c := NewCounts(Entry{Fundamental, 7}, Entry{Callous, MaxIcons - 2})
		assert.Equal(t, MaxIcons-1, c.IconTotal())

		c, ok := c.Increment(Callous)
		require.True(t, ok)
		_, ok = c.Increment(Callous)
		assert.False(t, ok)
	})

	t.Run("unknown keys stay after registry keys in original order", func(t *testing.T) {
		c := NewCounts(Entry{"ZZZ", 1}, Entry{"AAA", 1}, Entry{Tide, 1})
		c, _ = c.Increment(Bloom)
		assert.Equal(t, []Entry{{Bloom, 1}, {Tide, 1}, {"ZZZ", 1}, {"AAA", 1}}, c.Entries())
	})
}

func TestDecrement(t *testing.T) {
	t.Run("count above one decreases", func(t *testing.T) {
		c := NewCounts(Entry{Grace, 3}).Decrement(Grace)
		assert.Equal(t, 2, c.Get(Grace))
	})

	t.Run("count of one removes the key", func(t *testing.T) {
		c := NewCounts(Entry{Grace, 1}, Entry{Tide, 2}).Decrement(Grace)
		assert.False(t, c.Has(Grace))
		assert.Equal(t, []Entry{{Tide, 2}}, c.Entries())
	})

	t.Run("absent aspect is a no-op", func(t *testing.T) {
		orig := NewCounts(Entry{Tide, 2})
		c := orig.Decrement(Relic)
		assert.True(t, c.Equal(orig))
	})

	t.Run("never goes negative", func(t *testing.T) {
		c := NewCounts(Entry{Relic, 1})
		for i := 0; i < 3; i++ {
			c = c.Decrement(Relic)
		}
		assert.Equal(t, 0, c.Get(Relic))
		assert.True(t, c.IsEmpty())
	})
}

func TestCountsJSON(t *testing.T) {
	t.Run("marshals in canonical order", func(t *testing.T) {
		c := NewCounts(Entry{Zeal, 1}, Entry{"CUSTOM", 4}, Entry{Bloom, 2})
		data, err := json.Marshal(c)
		require.NoError(t, err)
		assert.Equal(t, `{"BLOOM":2,"ZEAL":1,"CUSTOM":4}`, string(data))
	})

	t.Run("unmarshal sorts registry keys and keeps unknown key order", func(t *testing.T) {
		var c Counts
		require.NoError(t, json.Unmarshal([]byte(`{"ZETA":1,"TIDE":2,"ALPHA":3,"BLOOM":1}`), &c))
		assert.Equal(t, []Entry{{Bloom, 1}, {Tide, 2}, {"ZETA", 1}, {"ALPHA", 3}}, c.Entries())
	})

	t.Run("null and empty object decode to empty", func(t *testing.T) {
		var c Counts
		require.NoError(t, json.Unmarshal([]byte(`null`), &c))
		assert.True(t, c.IsEmpty())
		require.NoError(t, json.Unmarshal([]byte(`{}`), &c))
		assert.True(t, c.IsEmpty())
	})

	t.Run("integral floats are coerced", func(t *testing.T) {
		var c Counts
		require.NoError(t, json.Unmarshal([]byte(`{"LAW":2.0}`), &c))
		assert.Equal(t, 2, c.Get(Law))
	})

	t.Run("fractional and non-numeric counts are rejected", func(t *testing.T) {
		var c Counts
		assert.Error(t, json.Unmarshal([]byte(`{"LAW":1.5}`), &c))
		assert.Error(t, json.Unmarshal([]byte(`{"LAW":"many"}`), &c))
		assert.Error(t, json.Unmarshal([]byte(`{"LAW":true}`), &c))
		assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &c))
	})

	t.Run("validate rejects negative counts", func(t *testing.T) {
		var c Counts
		require.NoError(t, json.Unmarshal([]byte(`{"LAW":-1}`), &c))
		err := c.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestPalette(t *testing.T) {
	tests := []struct {
		name   string
		mask   Mask
		counts Counts
		want   PaletteKind
	}{
		{"no aspects", 0, Counts{}, PaletteFundamental},
		{"only neutral", 0, NewCounts(Entry{Fundamental, 3}), PaletteFundamental},
		{"single aspect", 0, NewCounts(Entry{Tide, 2}), PaletteMono},
		{"two aspects", 0, NewCounts(Entry{Tide, 1}, Entry{Law, 1}), PaletteDual},
		{"three from mask", MaskOf(Bloom, Grace, Xeno), Counts{}, PaletteTri},
		{"four from mask", MaskOf(Bloom, Grace, Xeno, Zeal), Counts{}, PalettePoly},
		{"mask wins over counts", MaskOf(Relic), NewCounts(Entry{Tide, 1}, Entry{Law, 1}), PaletteMono},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PaletteOf(tt.mask, tt.counts).Kind)
		})
	}

	t.Run("aspects follow registry order", func(t *testing.T) {
		p := PaletteOf(0, NewCounts(Entry{Zeal, 1}, Entry{Callous, 1}))
		assert.Equal(t, []Aspect{Callous, Zeal}, p.Aspects)
	})
}
