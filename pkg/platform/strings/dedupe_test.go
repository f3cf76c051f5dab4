package strings

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupe(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		fold     func(string) string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: []string{}},
		{name: "trims whitespace", input: []string{"  bloom ", "zeal  "}, expected: []string{"bloom", "zeal"}},
		{name: "keeps first occurrence order", input: []string{"b", "a", "b", "c", "a"}, expected: []string{"b", "a", "c"}},
		{name: "drops blanks", input: []string{"", "  ", "x"}, expected: []string{"x"}},
		{name: "case sensitive without fold", input: []string{"Rare", "rare"}, expected: []string{"Rare", "rare"}},
		{name: "fold applied before comparison", input: []string{"Rare", "rare", "RARE"}, fold: strings.ToUpper, expected: []string{"RARE"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Dedupe(tt.input, tt.fold))
		})
	}
}

func TestDedupeFold(t *testing.T) {
	assert.Equal(t, []string{"promo", "foil"}, DedupeFold([]string{" Promo", "FOIL", "promo ", ""}))
}
