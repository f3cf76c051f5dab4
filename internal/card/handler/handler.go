package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cardforge/internal/aspect"
	"cardforge/internal/card/models"
	"cardforge/internal/card/service"
	"cardforge/internal/markup"
	id "cardforge/pkg/domain"
	dErrors "cardforge/pkg/domain-errors"
	"cardforge/pkg/platform/httputil"
	"cardforge/pkg/requestcontext"
)

// Service defines the card operations the handler exposes.
type Service interface {
	Create(ctx context.Context, input models.Patch) (*models.Card, error)
	Get(ctx context.Context, cardID id.CardID) (*models.Card, error)
	Update(ctx context.Context, cardID id.CardID, patch models.Patch) (*models.Card, error)
	Delete(ctx context.Context, cardID id.CardID) error
	AdjustAspect(ctx context.Context, cardID id.CardID, a aspect.Aspect, dir service.Direction) (*service.AdjustResult, error)
	Search(ctx context.Context, raw models.RawFilter, pageNumber, pageSize int) (*service.SearchResult, error)
	List(ctx context.Context, pageNumber, pageSize int) (*service.ListResult, error)
}

// Handler wires card endpoints to the card service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a card handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts card endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/cards", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/ids", h.HandleListIDs)
		r.Post("/search", h.HandleSearch)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
		r.Get("/{id}/text", h.HandleText)
		r.Post("/{id}/aspects/{aspect}/{direction}", h.HandleAdjustAspect)
	})
	r.Post("/api/markup/preview", h.HandlePreview)
}

// HandleCreate handles POST /api/cards.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CardRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	card, err := h.service.Create(ctx, req.Patch())
	if err != nil {
		h.logFailure(ctx, "create card failed", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "card created",
		"request_id", requestID,
		"card_id", card.ID.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromCard(card))
}

// HandleGet handles GET /api/cards/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cardID, err := id.ParseCardID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	card, err := h.service.Get(ctx, cardID)
	if err != nil {
		h.logFailure(ctx, "get card failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCard(card))
}

// HandleUpdate handles PUT /api/cards/{id}. Fields omitted from the body are
// left unchanged.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	cardID, err := id.ParseCardID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[CardRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	card, err := h.service.Update(ctx, cardID, req.Patch())
	if err != nil {
		h.logFailure(ctx, "update card failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCard(card))
}

// HandleDelete handles DELETE /api/cards/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cardID, err := id.ParseCardID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Delete(ctx, cardID); err != nil {
		h.logFailure(ctx, "delete card failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAdjustAspect handles POST /api/cards/{id}/aspects/{aspect}/{direction}.
// A refused increment is a 200 with applied=false.
func (h *Handler) HandleAdjustAspect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cardID, err := id.ParseCardID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := aspect.Parse(chi.URLParam(r, "aspect"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	dir := service.Direction(chi.URLParam(r, "direction"))
	if dir != service.Increment && dir != service.Decrement {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "unknown aspect operation"))
		return
	}

	res, err := h.service.AdjustAspect(ctx, cardID, a, dir)
	if err != nil {
		h.logFailure(ctx, "adjust aspect failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &AdjustResponse{Applied: res.Applied, Card: FromCard(res.Card)})
}

// HandleSearch handles POST /api/cards/search.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SearchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Search(ctx, req.Filter(), req.Page, req.PageSize)
	if err != nil {
		h.logFailure(ctx, "card search failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromSearch(res))
}

// HandleListIDs handles GET /api/cards/ids: every card ID, newest first.
func (h *Handler) HandleListIDs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pageNumber, pageSize, err := pageParams(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.Search(ctx, models.RawFilter{}, pageNumber, pageSize)
	if err != nil {
		h.logFailure(ctx, "list card ids failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromSearch(res))
}

// HandleList handles GET /api/cards.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pageNumber, pageSize, err := pageParams(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.List(ctx, pageNumber, pageSize)
	if err != nil {
		h.logFailure(ctx, "list cards failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromList(res))
}

// HandleText handles GET /api/cards/{id}/text.
func (h *Handler) HandleText(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cardID, err := id.ParseCardID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	card, err := h.service.Get(ctx, cardID)
	if err != nil {
		h.logFailure(ctx, "get card text failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromText(card))
}

// HandlePreview handles POST /api/markup/preview.
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[PreviewRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	text, cursor := req.Text, req.Cursor
	if req.Insert != "" {
		text, cursor = markup.InsertIcon(text, cursor, req.Insert)
	}
	desc := markup.Parse(text)
	httputil.WriteJSON(w, http.StatusOK, &PreviewResponse{
		Text:    text,
		Cursor:  cursor,
		Rules:   tokensOrEmpty(desc.Rules),
		Lore:    desc.Lore,
		HasLore: desc.HasLore,
	})
}

// pageParams reads page and pageSize from the query string. limit is
// accepted as an alias for pageSize.
func pageParams(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	pageNumber, err := queryInt(q.Get("page"), "page")
	if err != nil {
		return 0, 0, err
	}
	sizeParam := q.Get("pageSize")
	if sizeParam == "" {
		sizeParam = q.Get("limit")
	}
	pageSize, err := queryInt(sizeParam, "pageSize")
	if err != nil {
		return 0, 0, err
	}
	return pageNumber, pageSize, nil
}

func queryInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, name+" must be an integer")
	}
	return v, nil
}

// logFailure logs server-side failures at error level and client mistakes at
// debug level.
func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	level := slog.LevelDebug
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"user_id", requestcontext.UserID(ctx).String(),
		"error", err,
	)
}
