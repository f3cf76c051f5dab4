package models

import (
	"strings"
	"time"

	"cardforge/internal/aspect"
	id "cardforge/pkg/domain"
	dErrors "cardforge/pkg/domain-errors"
	strs "cardforge/pkg/platform/strings"
)

// Category is the closed set of card types.
type Category string

const (
	CategoryCreature    Category = "CREATURE"
	CategoryEnchantment Category = "ENCHANTMENT"
	CategoryDevice      Category = "DEVICE"
	CategoryReaction    Category = "REACTION"
	CategoryFast        Category = "FAST"
	CategorySlow        Category = "SLOW"
	CategoryGem         Category = "GEM"
)

var categories = []Category{
	CategoryCreature,
	CategoryEnchantment,
	CategoryDevice,
	CategoryReaction,
	CategoryFast,
	CategorySlow,
	CategoryGem,
}

// Categories lists every valid category.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

func (c Category) IsValid() bool {
	for _, v := range categories {
		if v == c {
			return true
		}
	}
	return false
}

// ParseCategory normalizes case and validates membership.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "type must be one of CREATURE, ENCHANTMENT, DEVICE, REACTION, FAST, SLOW, GEM")
	}
	return c, nil
}

// Accessory is the optional secondary classification.
type Accessory string

const (
	AccessoryUnique    Accessory = "UNIQUE"
	AccessoryObjective Accessory = "OBJECTIVE"
)

func (a Accessory) IsValid() bool {
	return a == AccessoryUnique || a == AccessoryObjective
}

// ParseAccessory normalizes case and validates membership.
func ParseAccessory(s string) (Accessory, error) {
	a := Accessory(strings.ToUpper(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "accessory must be UNIQUE or OBJECTIVE")
	}
	return a, nil
}

const (
	maxNameLength        = 128
	maxDescriptionLength = 4000
	maxArtLength         = 2048
	maxTags              = 32
	maxTagLength         = 64
)

// Card is the authored card entity.
//
// Invariants:
//   - Category is in the closed set; Accessory is nil or in its closed set
//   - AspectCounts holds no negative counts
//   - IdentityMask only sets elemental bits
//   - Tags are lowercase, trimmed, and unique
//
// OwnerID is nil for cards created before accounts existed; those may be
// edited by any authenticated user.
type Card struct {
	ID                   id.CardID
	OwnerID              id.UserID
	Category             Category
	Accessory            *Accessory
	Name                 string
	Description          string
	ObjectiveDescription string
	Offence              int
	Defence              int
	Regeneration         int
	Tags                 []string
	Art                  string
	AspectCounts         aspect.Counts
	IdentityMask         aspect.Mask
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewDraft returns a card with every field at its default.
func NewDraft() *Card {
	return &Card{Category: CategoryCreature}
}

// Validate checks the closed sets and field bounds.
func (c *Card) Validate() error {
	if !c.Category.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "type must be one of CREATURE, ENCHANTMENT, DEVICE, REACTION, FAST, SLOW, GEM")
	}
	if c.Accessory != nil && !c.Accessory.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "accessory must be UNIQUE or OBJECTIVE")
	}
	if len(c.Name) > maxNameLength {
		return dErrors.New(dErrors.CodeValidation, "name must be 128 characters or less")
	}
	if len(c.Description) > maxDescriptionLength || len(c.ObjectiveDescription) > maxDescriptionLength {
		return dErrors.New(dErrors.CodeValidation, "description must be 4000 characters or less")
	}
	if len(c.Art) > maxArtLength {
		return dErrors.New(dErrors.CodeValidation, "art must be 2048 characters or less")
	}
	if len(c.Tags) > maxTags {
		return dErrors.New(dErrors.CodeValidation, "a card may have at most 32 tags")
	}
	for _, tag := range c.Tags {
		if len(tag) > maxTagLength {
			return dErrors.New(dErrors.CodeValidation, "tags must be 64 characters or less")
		}
	}
	if err := c.AspectCounts.Validate(); err != nil {
		return err
	}
	return c.IdentityMask.Validate()
}

// RecomputeIdentity applies the identity rule: a non-zero explicit mask is
// kept, otherwise the mask is derived from the aspect counts.
func (c *Card) RecomputeIdentity(explicit aspect.Mask) {
	c.IdentityMask = aspect.Encode(explicit, c.AspectCounts)
}

// IsOwnedBy reports whether userID may edit the card.
func (c *Card) IsOwnedBy(userID id.UserID) bool {
	return c.OwnerID.IsNil() || c.OwnerID == userID
}

// NormalizeTags lowercases, trims, and de-duplicates tags, keeping first
// occurrence order and dropping empties.
func NormalizeTags(tags []string) []string {
	return strs.DedupeFold(tags)
}

// Summary is the listing projection of a card.
type Summary struct {
	ID       id.CardID
	Name     string
	Category Category
}
