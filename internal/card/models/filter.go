package models

import (
	"strings"

	"cardforge/internal/aspect"
	dErrors "cardforge/pkg/domain-errors"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// isAnyValue reports whether s disables an enum filter. Browse clients send
// "all" and search clients send "any".
func isAnyValue(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any", "all":
		return true
	}
	return false
}

// Range is an inclusive bound on one stat. Either side may be open.
type Range struct {
	Min *int
	Max *int
}

func (r Range) IsSet() bool {
	return r.Min != nil || r.Max != nil
}

func (r Range) validate(field string) error {
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return dErrors.New(dErrors.CodeValidation, field+" min must not exceed max")
	}
	return nil
}

// Filter is a validated search configuration. Every field is optional; an
// unset field adds no constraint.
type Filter struct {
	Name         string
	Category     *Category
	Accessory    *Accessory
	Tags         []string
	Offence      Range
	Defence      Range
	Regeneration Range
	AspectMask   aspect.Mask
	HasArt       *bool
}

// RawFilter is the loosely typed filter as received on the wire.
type RawFilter struct {
	Name            string
	Type            string
	AccessoryTag    string
	Tags            []string
	OffenceMin      *int
	OffenceMax      *int
	DefenceMin      *int
	DefenceMax      *int
	RegenerationMin *int
	RegenerationMax *int
	AspectMask      *int64
	HasArt          *bool
}

// ParseFilter validates a raw filter into a Filter. Enum values are
// case-normalized; "any" disables the predicate.
func ParseFilter(raw RawFilter) (Filter, error) {
	f := Filter{
		Name:         strings.TrimSpace(raw.Name),
		Tags:         NormalizeTags(raw.Tags),
		Offence:      Range{Min: raw.OffenceMin, Max: raw.OffenceMax},
		Defence:      Range{Min: raw.DefenceMin, Max: raw.DefenceMax},
		Regeneration: Range{Min: raw.RegenerationMin, Max: raw.RegenerationMax},
		HasArt:       raw.HasArt,
	}
	if len(f.Name) > maxNameLength {
		return Filter{}, dErrors.New(dErrors.CodeValidation, "name filter must be 128 characters or less")
	}
	if len(f.Tags) > maxTags {
		return Filter{}, dErrors.New(dErrors.CodeValidation, "at most 32 tags may be filtered on")
	}

	if !isAnyValue(raw.Type) {
		c, err := ParseCategory(raw.Type)
		if err != nil {
			return Filter{}, err
		}
		f.Category = &c
	}
	if !isAnyValue(raw.AccessoryTag) {
		a, err := ParseAccessory(raw.AccessoryTag)
		if err != nil {
			return Filter{}, err
		}
		f.Accessory = &a
	}

	if err := f.Offence.validate("offence"); err != nil {
		return Filter{}, err
	}
	if err := f.Defence.validate("defence"); err != nil {
		return Filter{}, err
	}
	if err := f.Regeneration.validate("regeneration"); err != nil {
		return Filter{}, err
	}

	if raw.AspectMask != nil {
		if *raw.AspectMask < 0 || *raw.AspectMask > int64(aspect.ValidBits) {
			return Filter{}, dErrors.New(dErrors.CodeValidation, "aspectMask is out of range")
		}
		m := aspect.Mask(*raw.AspectMask)
		if err := m.Validate(); err != nil {
			return Filter{}, err
		}
		f.AspectMask = m
	}
	return f, nil
}

// Page is a one-based page request.
type Page struct {
	Number int
	Size   int
}

// NewPage applies defaults and bounds. Zero values take the defaults.
func NewPage(number, size int) (Page, error) {
	if number == 0 {
		number = 1
	}
	if size == 0 {
		size = DefaultPageSize
	}
	if number < 1 {
		return Page{}, dErrors.New(dErrors.CodeValidation, "page must be at least 1")
	}
	if size < 1 || size > MaxPageSize {
		return Page{}, dErrors.New(dErrors.CodeValidation, "pageSize must be between 1 and 100")
	}
	return Page{Number: number, Size: size}, nil
}

// Offset is the number of rows skipped before this page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Pagination describes a page within a result set.
type Pagination struct {
	CurrentPage     int
	TotalPages      int
	TotalCards      int
	CardsPerPage    int
	HasNextPage     bool
	HasPreviousPage bool
}

// Paginate computes the page block for total matches.
func Paginate(p Page, total int) Pagination {
	pages := 0
	if p.Size > 0 {
		pages = (total + p.Size - 1) / p.Size
	}
	return Pagination{
		CurrentPage:     p.Number,
		TotalPages:      pages,
		TotalCards:      total,
		CardsPerPage:    p.Size,
		HasNextPage:     p.Number < pages,
		HasPreviousPage: p.Number > 1,
	}
}
