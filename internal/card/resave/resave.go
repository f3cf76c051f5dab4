// Package resave recomputes every card's identity mask from its aspect
// counts. It backs the cmd/resave tool and the admin endpoint.
package resave

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"cardforge/internal/card/models"
	"cardforge/internal/card/service"
	id "cardforge/pkg/domain"
)

const (
	defaultConcurrency = 8
	defaultPageSize    = 100
)

// Cards is the slice of the card service the runner drives.
type Cards interface {
	Search(ctx context.Context, raw models.RawFilter, pageNumber, pageSize int) (*service.SearchResult, error)
	Resave(ctx context.Context, cardID id.CardID) (bool, error)
}

// Report summarizes one pass.
type Report struct {
	Scanned int `json:"scanned"`
	Changed int `json:"changed"`
	Failed  int `json:"failed"`
}

type Runner struct {
	cards       Cards
	logger      *slog.Logger
	concurrency int
	pageSize    int
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func WithPageSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.pageSize = min(n, models.MaxPageSize)
		}
	}
}

func New(cards Cards, opts ...Option) *Runner {
	r := &Runner{
		cards:       cards,
		logger:      slog.Default(),
		concurrency: defaultConcurrency,
		pageSize:    defaultPageSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run pages through every card, newest first, and resaves each one. A card
// that fails is logged and counted; the pass continues. Run stops early only
// when listing fails or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	var scanned, changed, failed atomic.Int64

	for pageNumber := 1; ; pageNumber++ {
		res, err := r.cards.Search(ctx, models.RawFilter{}, pageNumber, r.pageSize)
		if err != nil {
			return r.report(&scanned, &changed, &failed), err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.concurrency)
		for _, cardID := range res.IDs {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				scanned.Add(1)
				didChange, err := r.cards.Resave(gctx, cardID)
				if err != nil {
					failed.Add(1)
					r.logger.ErrorContext(gctx, "resave failed",
						"card_id", cardID.String(),
						"error", err,
					)
					return nil
				}
				if didChange {
					changed.Add(1)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return r.report(&scanned, &changed, &failed), err
		}

		r.logger.InfoContext(ctx, "resave page done",
			"page", pageNumber,
			"total_pages", res.Pagination.TotalPages,
		)
		if !res.Pagination.HasNextPage {
			break
		}
	}
	return r.report(&scanned, &changed, &failed), nil
}

func (r *Runner) report(scanned, changed, failed *atomic.Int64) *Report {
	return &Report{
		Scanned: int(scanned.Load()),
		Changed: int(changed.Load()),
		Failed:  int(failed.Load()),
	}
}
