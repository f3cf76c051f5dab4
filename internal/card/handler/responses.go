package handler

import (
	"time"

	"cardforge/internal/aspect"
	"cardforge/internal/card/models"
	"cardforge/internal/card/service"
	"cardforge/internal/markup"
)

// CardResponse is the wire shape of a card.
type CardResponse struct {
	ID                   string          `json:"id"`
	OwnerID              *string         `json:"ownerId"`
	Type                 string          `json:"type"`
	Accessory            *string         `json:"accessory"`
	Name                 string          `json:"name"`
	AspectList           aspect.Counts   `json:"aspectList"`
	AspectMask           uint32          `json:"aspectMask"`
	Art                  string          `json:"art"`
	Description          string          `json:"description"`
	ObjectiveDescription string          `json:"objectiveDescription"`
	Offence              int             `json:"offence"`
	Defence              int             `json:"defence"`
	Regeneration         int             `json:"regeneration"`
	Tags                 []string        `json:"tags"`
	Palette              PaletteResponse `json:"palette"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// PaletteResponse names the aspects that theme the card.
type PaletteResponse struct {
	Kind    string   `json:"kind"`
	Aspects []string `json:"aspects"`
}

// FromCard converts a domain card to its wire shape.
func FromCard(c *models.Card) *CardResponse {
	resp := &CardResponse{
		ID:                   c.ID.String(),
		Type:                 string(c.Category),
		Name:                 c.Name,
		AspectList:           c.AspectCounts,
		AspectMask:           uint32(c.IdentityMask),
		Art:                  c.Art,
		Description:          c.Description,
		ObjectiveDescription: c.ObjectiveDescription,
		Offence:              c.Offence,
		Defence:              c.Defence,
		Regeneration:         c.Regeneration,
		Tags:                 c.Tags,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if !c.OwnerID.IsNil() {
		owner := c.OwnerID.String()
		resp.OwnerID = &owner
	}
	if c.Accessory != nil {
		acc := string(*c.Accessory)
		resp.Accessory = &acc
	}

	palette := aspect.PaletteOf(c.IdentityMask, c.AspectCounts)
	resp.Palette = PaletteResponse{Kind: string(palette.Kind), Aspects: make([]string, 0, len(palette.Aspects))}
	for _, a := range palette.Aspects {
		resp.Palette.Aspects = append(resp.Palette.Aspects, string(a))
	}
	return resp
}

// AdjustResponse is returned by the increment and decrement endpoints.
type AdjustResponse struct {
	Applied bool          `json:"applied"`
	Card    *CardResponse `json:"card"`
}

// PaginationResponse mirrors models.Pagination on the wire.
type PaginationResponse struct {
	CurrentPage     int  `json:"currentPage"`
	TotalPages      int  `json:"totalPages"`
	TotalCards      int  `json:"totalCards"`
	CardsPerPage    int  `json:"cardsPerPage"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

func fromPagination(p models.Pagination) PaginationResponse {
	return PaginationResponse(p)
}

// IDsResponse is one page of card IDs.
type IDsResponse struct {
	IDs        []string           `json:"ids"`
	Pagination PaginationResponse `json:"pagination"`
}

func fromSearch(res *service.SearchResult) *IDsResponse {
	ids := make([]string, 0, len(res.IDs))
	for _, cardID := range res.IDs {
		ids = append(ids, cardID.String())
	}
	return &IDsResponse{IDs: ids, Pagination: fromPagination(res.Pagination)}
}

// SummaryResponse is one row of the card listing.
type SummaryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// ListResponse is one page of the card listing.
type ListResponse struct {
	Cards      []SummaryResponse  `json:"cards"`
	Pagination PaginationResponse `json:"pagination"`
}

func fromList(res *service.ListResult) *ListResponse {
	cards := make([]SummaryResponse, 0, len(res.Cards))
	for _, s := range res.Cards {
		cards = append(cards, SummaryResponse{ID: s.ID.String(), Name: s.Name, Type: string(s.Category)})
	}
	return &ListResponse{Cards: cards, Pagination: fromPagination(res.Pagination)}
}

// TextResponse is the tokenized rules text of a card.
type TextResponse struct {
	Rules     []markup.Token `json:"rules"`
	Lore      string         `json:"lore"`
	HasLore   bool           `json:"hasLore"`
	Objective []markup.Token `json:"objective"`
}

func fromText(c *models.Card) *TextResponse {
	desc := markup.Parse(c.Description)
	return &TextResponse{
		Rules:     tokensOrEmpty(desc.Rules),
		Lore:      desc.Lore,
		HasLore:   desc.HasLore,
		Objective: tokensOrEmpty(markup.Tokenize(c.ObjectiveDescription)),
	}
}

// PreviewResponse is the edited text and its tokenization.
type PreviewResponse struct {
	Text    string         `json:"text"`
	Cursor  int            `json:"cursor"`
	Rules   []markup.Token `json:"rules"`
	Lore    string         `json:"lore"`
	HasLore bool           `json:"hasLore"`
}

func tokensOrEmpty(tokens []markup.Token) []markup.Token {
	if tokens == nil {
		return []markup.Token{}
	}
	return tokens
}
