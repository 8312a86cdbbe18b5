package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastcalorie/nutridb/internal/common"
	"github.com/fastcalorie/nutridb/internal/entity"
)

// RestaurantRepository reads restaurants and applies the aggregate
// mutations the review surface needs. General restaurant CRUD belongs to
// the back office, not this service.
type RestaurantRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.Restaurant, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	IncrementItemCount(ctx context.Context, id uuid.UUID, delta int) error
	SetLastIngestionAt(ctx context.Context, id uuid.UUID, ts time.Time) error
	// ActivateIfDraft promotes a draft restaurant to active; the first
	// successful ingestion activates a restaurant. No-op otherwise.
	ActivateIfDraft(ctx context.Context, id uuid.UUID) error
}

type restaurantRepo struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewRestaurantRepository(pool *pgxpool.Pool, log *slog.Logger) RestaurantRepository {
	return &restaurantRepo{pool: pool, log: log}
}

func (r *restaurantRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Restaurant, error) {
	var rest entity.Restaurant
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, slug, status, item_count, last_ingestion_at, created_at, updated_at
		FROM restaurants WHERE id = $1`, id).
		Scan(&rest.ID, &rest.Name, &rest.Slug, &rest.Status, &rest.ItemCount,
			&rest.LastIngestionAt, &rest.CreatedAt, &rest.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("restaurant %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		r.log.Error("restaurant get failed", "restaurant_id", id, "error", err)
		return nil, err
	}
	return &rest, nil
}

func (r *restaurantRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM restaurants WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		r.log.Error("restaurant exists check failed", "restaurant_id", id, "error", err)
		return false, err
	}
	return exists, nil
}

func (r *restaurantRepo) IncrementItemCount(ctx context.Context, id uuid.UUID, delta int) error {
	return r.exec(ctx, id,
		`UPDATE restaurants SET item_count = item_count + $2, updated_at = now() WHERE id = $1`, delta)
}

func (r *restaurantRepo) SetLastIngestionAt(ctx context.Context, id uuid.UUID, ts time.Time) error {
	return r.exec(ctx, id,
		`UPDATE restaurants SET last_ingestion_at = $2, updated_at = now() WHERE id = $1`, ts)
}

func (r *restaurantRepo) ActivateIfDraft(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE restaurants SET status = 'active', updated_at = now()
		 WHERE id = $1 AND status = 'draft'`, id)
	if err != nil {
		r.log.Error("restaurant activation failed", "restaurant_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() > 0 {
		r.log.Info("restaurant activated", "restaurant_id", id)
	}
	return nil
}

func (r *restaurantRepo) exec(ctx context.Context, id uuid.UUID, q string, args ...any) error {
	full := append([]any{id}, args...)
	tag, err := r.pool.Exec(ctx, q, full...)
	if err != nil {
		r.log.Error("restaurant update failed", "restaurant_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("restaurant %s: %w", id, common.ErrNotFound)
	}
	return nil
}
