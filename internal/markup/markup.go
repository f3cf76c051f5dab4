// Package markup tokenizes card rules text.
//
// Descriptions embed icon codes of the form {x}, where x is a single letter,
// and an optional {lore} marker that separates rules text from flavour text.
// Storage treats descriptions as opaque strings; only this package parses
// them.
package markup

import (
	"strings"
	"unicode/utf8"

	"cardforge/internal/aspect"
)

// Exhaust is an icon with no aspect behind it.
const Exhaust = "EXHAUST"

// LoreMarker separates rules text from lore.
const LoreMarker = "{lore}"

var codes = map[string]string{
	"{e}": Exhaust,
	"{b}": string(aspect.Bloom),
	"{c}": string(aspect.Callous),
	"{g}": string(aspect.Grace),
	"{l}": string(aspect.Law),
	"{m}": string(aspect.Mythic),
	"{r}": string(aspect.Relic),
	"{t}": string(aspect.Tide),
	"{w}": string(aspect.Weird),
	"{x}": string(aspect.Xeno),
	"{z}": string(aspect.Zeal),
	"{f}": string(aspect.Fundamental),
}

var reverse = func() map[string]string {
	m := make(map[string]string, len(codes))
	for code, icon := range codes {
		m[icon] = code
	}
	return m
}()

// IconFor returns the icon a code stands for.
func IconFor(code string) (string, bool) {
	icon, ok := codes[code]
	return icon, ok
}

// CodeFor returns the code that renders icon.
func CodeFor(icon string) (string, bool) {
	code, ok := reverse[strings.ToUpper(icon)]
	return code, ok
}

// TokenKind distinguishes the token variants.
type TokenKind string

const (
	KindText        TokenKind = "text"
	KindIcon        TokenKind = "icon"
	KindFundamental TokenKind = "fundamental"
)

// Token is one piece of rendered rules text. Text is set for KindText, Icon
// for KindIcon, and Count for KindFundamental, which stands for a run of
// adjacent {f} codes drawn as a single numbered icon.
type Token struct {
	Kind  TokenKind `json:"kind"`
	Text  string    `json:"text,omitempty"`
	Icon  string    `json:"icon,omitempty"`
	Count int       `json:"count,omitempty"`
}

// Tokenize splits text into text and icon tokens. Braced sequences that are
// not known codes stay in the text.
func Tokenize(text string) []Token {
	var (
		tokens []Token
		plain  strings.Builder
	)
	flush := func() {
		if plain.Len() > 0 {
			tokens = append(tokens, Token{Kind: KindText, Text: plain.String()})
			plain.Reset()
		}
	}

	for i := 0; i < len(text); {
		if text[i] == '{' && i+3 <= len(text) && text[i+2] == '}' {
			if icon, ok := codes[text[i:i+3]]; ok {
				flush()
				if icon == string(aspect.Fundamental) {
					if n := len(tokens); n > 0 && tokens[n-1].Kind == KindFundamental {
						tokens[n-1].Count++
					} else {
						tokens = append(tokens, Token{Kind: KindFundamental, Icon: icon, Count: 1})
					}
				} else {
					tokens = append(tokens, Token{Kind: KindIcon, Icon: icon})
				}
				i += 3
				continue
			}
		}
		plain.WriteByte(text[i])
		i++
	}
	flush()
	return tokens
}

// Description is a parsed card description.
type Description struct {
	Rules   []Token `json:"rules"`
	Lore    string  `json:"lore"`
	HasLore bool    `json:"hasLore"`
}

// Parse splits a description at the first lore marker and tokenizes the rules
// part. Lore text is returned raw.
func Parse(description string) Description {
	rules, lore, found := strings.Cut(description, LoreMarker)
	return Description{
		Rules:   Tokenize(rules),
		Lore:    lore,
		HasLore: found,
	}
}

// InsertIcon inserts code at a rune cursor and returns the new text and the
// cursor just after the inserted code. Cursors outside the text are clamped.
func InsertIcon(text string, cursor int, code string) (string, int) {
	runes := utf8.RuneCountInString(text)
	if cursor < 0 {
		cursor = 0
	}
	if cursor > runes {
		cursor = runes
	}

	offset := 0
	for n := 0; n < cursor; n++ {
		_, size := utf8.DecodeRuneInString(text[offset:])
		offset += size
	}
	return text[:offset] + code + text[offset:], cursor + utf8.RuneCountInString(code)
}
