package handler

import (
	"bytes"
	"encoding/json"
	"strings"

	"cardforge/internal/aspect"
	"cardforge/internal/card/models"
	"cardforge/internal/markup"
	dErrors "cardforge/pkg/domain-errors"
)

// nullableString distinguishes an absent field from an explicit null.
type nullableString struct {
	Set   bool
	Value *string
}

func (n *nullableString) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// CardRequest is the body for POST /api/cards and PUT /api/cards/{id}. Every
// field is optional; on update only the fields present are changed.
type CardRequest struct {
	Type                 *string        `json:"type"`
	Accessory            nullableString `json:"accessory"`
	Name                 *string        `json:"name"`
	Description          *string        `json:"description"`
	ObjectiveDescription *string        `json:"objectiveDescription"`
	Offence              *int           `json:"offence"`
	Defence              *int           `json:"defence"`
	Regeneration         *int           `json:"regeneration"`
	Tags                 *[]string      `json:"tags"`
	Art                  *string        `json:"art"`
	AspectList           *aspect.Counts `json:"aspectList"`
	AspectMask           *int64         `json:"aspectMask"`

	patch models.Patch
}

// Validate parses the enum fields and the mask, and builds the patch.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CardRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	p := models.Patch{
		Name:                 r.Name,
		Description:          r.Description,
		ObjectiveDescription: r.ObjectiveDescription,
		Offence:              r.Offence,
		Defence:              r.Defence,
		Regeneration:         r.Regeneration,
		Art:                  r.Art,
		AspectCounts:         r.AspectList,
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
	}

	if r.Type != nil {
		category, err := models.ParseCategory(*r.Type)
		if err != nil {
			return err
		}
		p.Category = &category
	}

	if r.Accessory.Set {
		if r.Accessory.Value == nil || strings.TrimSpace(*r.Accessory.Value) == "" {
			p.ClearAccessory = true
		} else {
			acc, err := models.ParseAccessory(*r.Accessory.Value)
			if err != nil {
				return err
			}
			p.Accessory = &acc
		}
	}

	if r.Tags != nil {
		p.SetTags = true
		p.Tags = *r.Tags
	}

	if r.AspectMask != nil {
		if *r.AspectMask < 0 || *r.AspectMask > int64(aspect.ValidBits) {
			return dErrors.New(dErrors.CodeValidation, "aspectMask is out of range")
		}
		mask := aspect.Mask(*r.AspectMask)
		if err := mask.Validate(); err != nil {
			return err
		}
		p.IdentityMask = &mask
	}

	r.patch = p
	return nil
}

// Patch returns the validated patch.
func (r *CardRequest) Patch() models.Patch {
	return r.patch
}

// SearchRequest is the body for POST /api/cards/search.
type SearchRequest struct {
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	AccessoryTag    string   `json:"accessoryTag"`
	Tags            []string `json:"tags"`
	OffenceMin      *int     `json:"offenceMin"`
	OffenceMax      *int     `json:"offenceMax"`
	DefenceMin      *int     `json:"defenceMin"`
	DefenceMax      *int     `json:"defenceMax"`
	RegenerationMin *int     `json:"regenerationMin"`
	RegenerationMax *int     `json:"regenerationMax"`
	AspectMask      *int64   `json:"aspectMask"`
	HasArt          *bool    `json:"hasArt"`
	Page            int      `json:"page"`
	PageSize        int      `json:"pageSize"`
}

// Validate rejects negative paging. Filter semantics are checked by the
// service so every caller gets the same rules.
func (r *SearchRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Page < 0 || r.PageSize < 0 {
		return dErrors.New(dErrors.CodeValidation, "page and pageSize must not be negative")
	}
	return nil
}

func (r *SearchRequest) Filter() models.RawFilter {
	return models.RawFilter{
		Name:            r.Name,
		Type:            r.Type,
		AccessoryTag:    r.AccessoryTag,
		Tags:            r.Tags,
		OffenceMin:      r.OffenceMin,
		OffenceMax:      r.OffenceMax,
		DefenceMin:      r.DefenceMin,
		DefenceMax:      r.DefenceMax,
		RegenerationMin: r.RegenerationMin,
		RegenerationMax: r.RegenerationMax,
		AspectMask:      r.AspectMask,
		HasArt:          r.HasArt,
	}
}

// PreviewRequest is the body for POST /api/markup/preview. When Insert is
// set, the icon code is inserted at Cursor before the text is tokenized.
type PreviewRequest struct {
	Text   string `json:"text"`
	Insert string `json:"insert"`
	Cursor int    `json:"cursor"`
}

func (r *PreviewRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Text) > 4000 {
		return dErrors.New(dErrors.CodeValidation, "text must be 4000 characters or less")
	}
	if r.Insert != "" {
		if _, ok := markup.IconFor(r.Insert); !ok {
			return dErrors.New(dErrors.CodeValidation, "insert must be a known icon code")
		}
	}
	return nil
}
