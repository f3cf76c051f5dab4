package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cardforge/internal/aspect"
	"cardforge/internal/audit"
	"cardforge/internal/card/metrics"
	"cardforge/internal/card/models"
	"cardforge/internal/card/store"
	id "cardforge/pkg/domain"
	dErrors "cardforge/pkg/domain-errors"
	"cardforge/pkg/platform/sentinel"
	"cardforge/pkg/requestcontext"
)

// Store is the persistence gateway the service depends on.
type Store interface {
	FindByID(ctx context.Context, cardID id.CardID) (*models.Card, error)
	Insert(ctx context.Context, card *models.Card) error
	Update(ctx context.Context, card *models.Card) error
	Delete(ctx context.Context, cardID id.CardID) error
	Query(ctx context.Context, preds []store.Predicate, page models.Page) ([]id.CardID, int, error)
	ListSummaries(ctx context.Context, page models.Page) ([]models.Summary, int, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Direction selects increment or decrement for AdjustAspect.
type Direction string

const (
	Increment Direction = "increment"
	Decrement Direction = "decrement"
)

// SearchResult is one page of matching card IDs.
type SearchResult struct {
	IDs        []id.CardID
	Pagination models.Pagination
}

// ListResult is one page of the summary listing.
type ListResult struct {
	Cards      []models.Summary
	Pagination models.Pagination
}

// AdjustResult reports the card after an aspect adjustment. Applied is false
// when an increment was refused because the icon budget is spent.
type AdjustResult struct {
	Card    *models.Card
	Applied bool
}

// Service orchestrates the card lifecycle: authoring, identity classification,
// ownership checks, and search.
type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service.
func New(cards Store, opts ...Option) (*Service, error) {
	if cards == nil {
		return nil, errors.New("card store is required")
	}
	s := &Service{
		store:  cards,
		logger: slog.Default(),
		tracer: otel.Tracer("cardforge/card"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create authors a new card owned by the caller. Unset fields take the draft
// defaults.
func (s *Service) Create(ctx context.Context, input models.Patch) (*models.Card, error) {
	ctx, span := s.tracer.Start(ctx, "card.Create")
	defer span.End()

	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	card := models.NewDraft()
	explicit := input.Apply(card)
	card.ID = id.NewCardID()
	card.OwnerID = userID
	card.Tags = models.NormalizeTags(card.Tags)
	card.RecomputeIdentity(explicit)
	if err := card.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx).UTC()
	card.CreatedAt = now
	card.UpdatedAt = now

	if err := s.store.Insert(ctx, card); err != nil {
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save card"))
	}
	span.SetAttributes(attribute.String("card.id", card.ID.String()))

	s.metrics.IncCreated()
	s.emit(ctx, audit.EventCardCreated, userID, card.ID)
	s.logger.InfoContext(ctx, "card created",
		"card_id", card.ID.String(),
		"owner_id", userID.String(),
		"identity_mask", uint32(card.IdentityMask),
	)
	return card, nil
}

// Get loads one card.
func (s *Service) Get(ctx context.Context, cardID id.CardID) (*models.Card, error) {
	ctx, span := s.tracer.Start(ctx, "card.Get", trace.WithAttributes(attribute.String("card.id", cardID.String())))
	defer span.End()

	card, err := s.store.FindByID(ctx, cardID)
	if err != nil {
		return nil, s.fail(span, translateFindErr(err))
	}
	return card, nil
}

// Update merges a partial patch into an existing card and recomputes its
// identity. A non-zero mask in the patch overrides the derived one.
func (s *Service) Update(ctx context.Context, cardID id.CardID, patch models.Patch) (*models.Card, error) {
	ctx, span := s.tracer.Start(ctx, "card.Update", trace.WithAttributes(attribute.String("card.id", cardID.String())))
	defer span.End()

	userID, card, err := s.loadOwned(ctx, cardID)
	if err != nil {
		return nil, s.fail(span, err)
	}

	explicit := patch.Apply(card)
	card.Tags = models.NormalizeTags(card.Tags)
	card.RecomputeIdentity(explicit)
	if err := card.Validate(); err != nil {
		return nil, err
	}
	card.UpdatedAt = requestcontext.Now(ctx).UTC()

	if err := s.save(ctx, card); err != nil {
		return nil, s.fail(span, err)
	}

	s.metrics.IncUpdated()
	s.emit(ctx, audit.EventCardUpdated, userID, card.ID)
	return card, nil
}

// Delete removes a card. Deleting a card that does not exist succeeds.
func (s *Service) Delete(ctx context.Context, cardID id.CardID) error {
	ctx, span := s.tracer.Start(ctx, "card.Delete", trace.WithAttributes(attribute.String("card.id", cardID.String())))
	defer span.End()

	userID, _, err := s.loadOwned(ctx, cardID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil
		}
		return s.fail(span, err)
	}

	if err := s.store.Delete(ctx, cardID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete card"))
	}

	s.metrics.IncDeleted()
	s.emit(ctx, audit.EventCardDeleted, userID, cardID)
	return nil
}

// AdjustAspect increments or decrements one aspect count and persists the
// result with a recomputed identity. A refused increment is reported through
// AdjustResult.Applied and leaves the stored card untouched.
func (s *Service) AdjustAspect(ctx context.Context, cardID id.CardID, a aspect.Aspect, dir Direction) (*AdjustResult, error) {
	ctx, span := s.tracer.Start(ctx, "card.AdjustAspect", trace.WithAttributes(
		attribute.String("card.id", cardID.String()),
		attribute.String("aspect", string(a)),
		attribute.String("direction", string(dir)),
	))
	defer span.End()

	userID, card, err := s.loadOwned(ctx, cardID)
	if err != nil {
		return nil, s.fail(span, err)
	}

	applied := true
	switch dir {
	case Increment:
		card.AspectCounts, applied = card.AspectCounts.Increment(a)
	case Decrement:
		card.AspectCounts = card.AspectCounts.Decrement(a)
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, "direction must be increment or decrement")
	}
	s.metrics.ObserveAdjustment(string(dir), applied)
	if !applied {
		return &AdjustResult{Card: card, Applied: false}, nil
	}

	card.RecomputeIdentity(0)
	card.UpdatedAt = requestcontext.Now(ctx).UTC()
	if err := s.save(ctx, card); err != nil {
		return nil, s.fail(span, err)
	}

	s.emit(ctx, audit.EventCardAspectAdjusted, userID, card.ID)
	return &AdjustResult{Card: card, Applied: true}, nil
}

// Resave recomputes a card's identity from its aspect counts, ignoring the
// stored mask, and writes it back only when the mask changed.
func (s *Service) Resave(ctx context.Context, cardID id.CardID) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "card.Resave", trace.WithAttributes(attribute.String("card.id", cardID.String())))
	defer span.End()

	card, err := s.store.FindByID(ctx, cardID)
	if err != nil {
		return false, s.fail(span, translateFindErr(err))
	}

	derived := aspect.Derive(card.AspectCounts)
	if derived == card.IdentityMask {
		return false, nil
	}
	card.IdentityMask = derived
	card.UpdatedAt = requestcontext.Now(ctx).UTC()
	if err := s.save(ctx, card); err != nil {
		return false, s.fail(span, err)
	}

	s.metrics.IncResaved()
	s.emit(ctx, audit.EventCardIdentityResaved, id.UserID{}, card.ID)
	return true, nil
}

// Search validates a raw filter, compiles it, and returns one page of
// matching IDs plus the total. Filters with no constraints match every card.
func (s *Service) Search(ctx context.Context, raw models.RawFilter, pageNumber, pageSize int) (*SearchResult, error) {
	ctx, span := s.tracer.Start(ctx, "card.Search")
	defer span.End()
	start := time.Now()

	filter, err := models.ParseFilter(raw)
	if err != nil {
		return nil, err
	}
	page, err := models.NewPage(pageNumber, pageSize)
	if err != nil {
		return nil, err
	}

	preds := store.Compile(filter)
	span.SetAttributes(attribute.Int("search.predicates", len(preds)))

	ids, total, err := s.store.Query(ctx, preds, page)
	if err != nil {
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search cards"))
	}
	s.metrics.ObserveSearch(start, total)

	return &SearchResult{IDs: ids, Pagination: models.Paginate(page, total)}, nil
}

// List returns one page of card summaries, newest first.
func (s *Service) List(ctx context.Context, pageNumber, pageSize int) (*ListResult, error) {
	ctx, span := s.tracer.Start(ctx, "card.List")
	defer span.End()

	page, err := models.NewPage(pageNumber, pageSize)
	if err != nil {
		return nil, err
	}
	summaries, total, err := s.store.ListSummaries(ctx, page)
	if err != nil {
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list cards"))
	}
	return &ListResult{Cards: summaries, Pagination: models.Paginate(page, total)}, nil
}

// loadOwned loads a card and checks that the caller may edit it.
func (s *Service) loadOwned(ctx context.Context, cardID id.CardID) (id.UserID, *models.Card, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return id.UserID{}, nil, err
	}
	card, err := s.store.FindByID(ctx, cardID)
	if err != nil {
		return id.UserID{}, nil, translateFindErr(err)
	}
	if !card.IsOwnedBy(userID) {
		return id.UserID{}, nil, dErrors.New(dErrors.CodeForbidden, "card belongs to another user")
	}
	return userID, card, nil
}

func (s *Service) save(ctx context.Context, card *models.Card) error {
	if err := s.store.Update(ctx, card); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "card not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save card")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, userID id.UserID, cardID id.CardID) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		UserID:  userID,
		Subject: cardID.String(),
		Action:  string(event),
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", string(event),
			"card_id", cardID.String(),
			"error", err,
		)
	}
}

// fail marks the span as failed for internal errors. Client errors are
// expected outcomes and leave the span status alone.
func (s *Service) fail(span trace.Span, err error) error {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func requireUser(ctx context.Context) (id.UserID, error) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return userID, nil
}

func translateFindErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "card not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load card")
}
