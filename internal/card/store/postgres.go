package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"cardforge/internal/aspect"
	"cardforge/internal/card/models"
	id "cardforge/pkg/domain"
	"cardforge/pkg/platform/sentinel"
)

const cardColumns = `id, owner_id, category, accessory, name, description, objective_description,
	offence, defence, regeneration, tags, art, aspect_counts, identity_mask, created_at, updated_at`

// newestFirst is the ordering for every listing. id breaks ties so paging is
// stable when timestamps collide.
const newestFirst = " ORDER BY created_at DESC, id DESC"

// PostgresStore persists cards in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed card store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByID(ctx context.Context, cardID id.CardID) (*models.Card, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = $1`, uuid.UUID(cardID))
	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find card by id: %w", err)
	}
	return card, nil
}

func (s *PostgresStore) Insert(ctx context.Context, card *models.Card) error {
	counts, err := json.Marshal(card.AspectCounts)
	if err != nil {
		return fmt.Errorf("marshal aspect counts: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cards (`+cardColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		uuid.UUID(card.ID),
		nullableOwner(card.OwnerID),
		string(card.Category),
		nullableAccessory(card.Accessory),
		card.Name,
		card.Description,
		card.ObjectiveDescription,
		card.Offence,
		card.Defence,
		card.Regeneration,
		pq.Array(tagsOrEmpty(card.Tags)),
		card.Art,
		string(counts),
		int64(card.IdentityMask),
		card.CreatedAt,
		card.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

// Update overwrites every mutable column. Concurrent writers race and the
// last one wins.
func (s *PostgresStore) Update(ctx context.Context, card *models.Card) error {
	counts, err := json.Marshal(card.AspectCounts)
	if err != nil {
		return fmt.Errorf("marshal aspect counts: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE cards SET
			category = $2,
			accessory = $3,
			name = $4,
			description = $5,
			objective_description = $6,
			offence = $7,
			defence = $8,
			regeneration = $9,
			tags = $10,
			art = $11,
			aspect_counts = $12,
			identity_mask = $13,
			updated_at = $14
		WHERE id = $1
	`,
		uuid.UUID(card.ID),
		string(card.Category),
		nullableAccessory(card.Accessory),
		card.Name,
		card.Description,
		card.ObjectiveDescription,
		card.Offence,
		card.Defence,
		card.Regeneration,
		pq.Array(tagsOrEmpty(card.Tags)),
		card.Art,
		string(counts),
		int64(card.IdentityMask),
		card.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	return requireOneRow(res, "update card")
}

func (s *PostgresStore) Delete(ctx context.Context, cardID id.CardID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, uuid.UUID(cardID))
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return requireOneRow(res, "delete card")
}

// Query returns one page of matching card IDs and the total match count. The
// count and the page run concurrently; either failing fails the whole query.
func (s *PostgresStore) Query(ctx context.Context, preds []Predicate, page models.Page) ([]id.CardID, int, error) {
	where, args := whereClause(preds)

	var (
		total int
		ids   []id.CardID
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.db.QueryRowContext(gctx, `SELECT COUNT(*) FROM cards`+where, args...).Scan(&total); err != nil {
			return fmt.Errorf("count cards: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		limit := len(args) + 1
		query := fmt.Sprintf(`SELECT id FROM cards%s%s LIMIT $%d OFFSET $%d`, where, newestFirst, limit, limit+1)
		pageArgs := append(append([]any(nil), args...), page.Size, page.Offset())

		rows, err := s.db.QueryContext(gctx, query, pageArgs...)
		if err != nil {
			return fmt.Errorf("query card ids: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var raw uuid.UUID
			if err := rows.Scan(&raw); err != nil {
				return fmt.Errorf("scan card id: %w", err)
			}
			ids = append(ids, id.CardID(raw))
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate card ids: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if ids == nil {
		ids = []id.CardID{}
	}
	return ids, total, nil
}

// ListSummaries returns one page of the lightweight listing projection.
func (s *PostgresStore) ListSummaries(ctx context.Context, page models.Page) ([]models.Summary, int, error) {
	var (
		total     int
		summaries []models.Summary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.db.QueryRowContext(gctx, `SELECT COUNT(*) FROM cards`).Scan(&total); err != nil {
			return fmt.Errorf("count cards: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		rows, err := s.db.QueryContext(gctx,
			`SELECT id, name, category FROM cards`+newestFirst+` LIMIT $1 OFFSET $2`,
			page.Size, page.Offset())
		if err != nil {
			return fmt.Errorf("list card summaries: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				raw      uuid.UUID
				summary  models.Summary
				category string
			)
			if err := rows.Scan(&raw, &summary.Name, &category); err != nil {
				return fmt.Errorf("scan card summary: %w", err)
			}
			summary.ID = id.CardID(raw)
			summary.Category = models.Category(category)
			summaries = append(summaries, summary)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate card summaries: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if summaries == nil {
		summaries = []models.Summary{}
	}
	return summaries, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*models.Card, error) {
	var (
		card      models.Card
		rawID     uuid.UUID
		owner     uuid.NullUUID
		category  string
		accessory sql.NullString
		tags      pq.StringArray
		counts    []byte
		mask      int64
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(
		&rawID, &owner, &category, &accessory,
		&card.Name, &card.Description, &card.ObjectiveDescription,
		&card.Offence, &card.Defence, &card.Regeneration,
		&tags, &card.Art, &counts, &mask, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	card.ID = id.CardID(rawID)
	if owner.Valid {
		card.OwnerID = id.UserID(owner.UUID)
	}
	card.Category = models.Category(category)
	if accessory.Valid {
		acc := models.Accessory(accessory.String)
		card.Accessory = &acc
	}
	card.Tags = []string(tags)
	if card.Tags == nil {
		card.Tags = []string{}
	}
	if len(counts) > 0 {
		if err := json.Unmarshal(counts, &card.AspectCounts); err != nil {
			return nil, fmt.Errorf("unmarshal aspect counts: %w", err)
		}
	}
	card.IdentityMask = aspect.Mask(mask)
	card.CreatedAt = createdAt
	card.UpdatedAt = updatedAt
	return &card, nil
}

func requireOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullableOwner(owner id.UserID) uuid.NullUUID {
	if owner.IsNil() {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(owner), Valid: true}
}

func nullableAccessory(a *models.Accessory) sql.NullString {
	if a == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*a), Valid: true}
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
