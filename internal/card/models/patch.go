package models

import (
	"cardforge/internal/aspect"
)

// Patch is a partial update. Nil fields are left untouched.
//
// ClearAccessory distinguishes "set accessory to null" from "leave it alone",
// since a nil Accessory pointer already means the latter.
type Patch struct {
	Category             *Category
	Accessory            *Accessory
	ClearAccessory       bool
	Name                 *string
	Description          *string
	ObjectiveDescription *string
	Offence              *int
	Defence              *int
	Regeneration         *int
	Tags                 []string
	SetTags              bool
	Art                  *string
	AspectCounts         *aspect.Counts
	IdentityMask         *aspect.Mask
}

// Apply merges the patch into c and returns the explicit mask the caller
// supplied, or zero when the mask should be derived.
func (p Patch) Apply(c *Card) aspect.Mask {
	if p.Category != nil {
		c.Category = *p.Category
	}
	if p.ClearAccessory {
		c.Accessory = nil
	} else if p.Accessory != nil {
		acc := *p.Accessory
		c.Accessory = &acc
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.ObjectiveDescription != nil {
		c.ObjectiveDescription = *p.ObjectiveDescription
	}
	if p.Offence != nil {
		c.Offence = *p.Offence
	}
	if p.Defence != nil {
		c.Defence = *p.Defence
	}
	if p.Regeneration != nil {
		c.Regeneration = *p.Regeneration
	}
	if p.SetTags {
		c.Tags = NormalizeTags(p.Tags)
	}
	if p.Art != nil {
		c.Art = *p.Art
	}
	if p.AspectCounts != nil {
		c.AspectCounts = *p.AspectCounts
	}
	if p.IdentityMask != nil {
		return *p.IdentityMask
	}
	return 0
}
