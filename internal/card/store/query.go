package store

import (
	"slices"
	"strconv"
	"strings"

	"cardforge/internal/aspect"
	"cardforge/internal/card/models"
)

// Predicate is one compiled search constraint. Each predicate renders itself
// as a parameterized SQL fragment and also evaluates against a card in memory,
// so both stores apply identical semantics.
type Predicate interface {
	Match(c *models.Card) bool
	render(p *params) string
}

// params accumulates positional arguments. Values never reach the SQL text.
type params struct {
	values []any
}

func (p *params) add(v any) string {
	p.values = append(p.values, v)
	return "$" + strconv.Itoa(len(p.values))
}

// Stat names an integer card column that supports range predicates.
type Stat int

const (
	StatOffence Stat = iota
	StatDefence
	StatRegeneration
)

func (s Stat) column() string {
	switch s {
	case StatDefence:
		return "defence"
	case StatRegeneration:
		return "regeneration"
	default:
		return "offence"
	}
}

func (s Stat) value(c *models.Card) int {
	switch s {
	case StatDefence:
		return c.Defence
	case StatRegeneration:
		return c.Regeneration
	default:
		return c.Offence
	}
}

type nameContains struct{ sub string }

// NameContains matches names containing sub, ignoring case.
func NameContains(sub string) Predicate { return nameContains{sub: sub} }

func (n nameContains) Match(c *models.Card) bool {
	return strings.Contains(strings.ToLower(c.Name), strings.ToLower(n.sub))
}

func (n nameContains) render(p *params) string {
	return "name ILIKE " + p.add("%"+escapeLike(n.sub)+"%") + ` ESCAPE '\'`
}

type categoryIs struct{ category models.Category }

// CategoryIs matches cards of exactly one category.
func CategoryIs(c models.Category) Predicate { return categoryIs{category: c} }

func (e categoryIs) Match(c *models.Card) bool { return c.Category == e.category }

func (e categoryIs) render(p *params) string {
	return "category = " + p.add(string(e.category))
}

type accessoryIs struct{ accessory models.Accessory }

// AccessoryIs matches cards carrying the given accessory.
func AccessoryIs(a models.Accessory) Predicate { return accessoryIs{accessory: a} }

func (e accessoryIs) Match(c *models.Card) bool {
	return c.Accessory != nil && *c.Accessory == e.accessory
}

func (e accessoryIs) render(p *params) string {
	return "accessory = " + p.add(string(e.accessory))
}

type atLeast struct {
	stat  Stat
	bound int
}

// AtLeast matches cards whose stat is >= bound.
func AtLeast(s Stat, bound int) Predicate { return atLeast{stat: s, bound: bound} }

func (a atLeast) Match(c *models.Card) bool { return a.stat.value(c) >= a.bound }

func (a atLeast) render(p *params) string {
	return a.stat.column() + " >= " + p.add(a.bound)
}

type atMost struct {
	stat  Stat
	bound int
}

// AtMost matches cards whose stat is <= bound.
func AtMost(s Stat, bound int) Predicate { return atMost{stat: s, bound: bound} }

func (a atMost) Match(c *models.Card) bool { return a.stat.value(c) <= a.bound }

func (a atMost) render(p *params) string {
	return a.stat.column() + " <= " + p.add(a.bound)
}

type maskSuperset struct{ mask aspect.Mask }

// MaskSuperset matches cards whose identity contains every bit of mask.
func MaskSuperset(m aspect.Mask) Predicate { return maskSuperset{mask: m} }

func (m maskSuperset) Match(c *models.Card) bool { return c.IdentityMask.Contains(m.mask) }

func (m maskSuperset) render(p *params) string {
	ref := p.add(int64(m.mask))
	return "(identity_mask & " + ref + ") = " + ref
}

type artPresent struct{ present bool }

// ArtPresent matches cards with (true) or without (false) an art reference.
func ArtPresent(present bool) Predicate { return artPresent{present: present} }

func (a artPresent) Match(c *models.Card) bool { return (c.Art != "") == a.present }

func (a artPresent) render(*params) string {
	if a.present {
		return "art <> ''"
	}
	return "art = ''"
}

type hasTag struct{ tag string }

// HasTag matches cards carrying tag. Tags are stored normalized.
func HasTag(tag string) Predicate { return hasTag{tag: tag} }

func (h hasTag) Match(c *models.Card) bool { return slices.Contains(c.Tags, h.tag) }

func (h hasTag) render(p *params) string {
	return p.add(h.tag) + " = ANY(tags)"
}

// Compile turns a validated filter into predicates. An empty filter compiles
// to no predicates and matches every card.
func Compile(f models.Filter) []Predicate {
	var preds []Predicate
	if f.Name != "" {
		preds = append(preds, NameContains(f.Name))
	}
	if f.Category != nil {
		preds = append(preds, CategoryIs(*f.Category))
	}
	if f.Accessory != nil {
		preds = append(preds, AccessoryIs(*f.Accessory))
	}
	for _, tag := range f.Tags {
		preds = append(preds, HasTag(tag))
	}
	preds = appendRange(preds, StatOffence, f.Offence)
	preds = appendRange(preds, StatDefence, f.Defence)
	preds = appendRange(preds, StatRegeneration, f.Regeneration)
	if f.AspectMask != 0 {
		preds = append(preds, MaskSuperset(f.AspectMask))
	}
	if f.HasArt != nil {
		preds = append(preds, ArtPresent(*f.HasArt))
	}
	return preds
}

func appendRange(preds []Predicate, s Stat, r models.Range) []Predicate {
	if r.Min != nil {
		preds = append(preds, AtLeast(s, *r.Min))
	}
	if r.Max != nil {
		preds = append(preds, AtMost(s, *r.Max))
	}
	return preds
}

// MatchAll reports whether c satisfies every predicate.
func MatchAll(preds []Predicate, c *models.Card) bool {
	for _, pred := range preds {
		if !pred.Match(c) {
			return false
		}
	}
	return true
}

// whereClause renders predicates joined with AND. It returns an empty clause
// when there is nothing to filter on.
func whereClause(preds []Predicate) (string, []any) {
	if len(preds) == 0 {
		return "", nil
	}
	var p params
	parts := make([]string, 0, len(preds))
	for _, pred := range preds {
		parts = append(parts, pred.render(&p))
	}
	return " WHERE " + strings.Join(parts, " AND "), p.values
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
