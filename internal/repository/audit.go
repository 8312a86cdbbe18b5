package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastcalorie/nutridb/constants"
)

// AuditRepository records who did what to which entity, with optional
// before/after snapshots. Callers treat it as best-effort: an audit write
// failing must never fail the admin action that produced it.
type AuditRepository interface {
	Record(ctx context.Context, actorID uuid.UUID, entityType string, entityID uuid.UUID,
		action constants.AuditAction, before, after any) error
}

type auditRepo struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewAuditRepository(pool *pgxpool.Pool, log *slog.Logger) AuditRepository {
	return &auditRepo{pool: pool, log: log}
}

func (r *auditRepo) Record(ctx context.Context, actorID uuid.UUID, entityType string, entityID uuid.UUID,
	action constants.AuditAction, before, after any) error {
	beforeB, err := marshalSnapshot(before)
	if err != nil {
		return err
	}
	afterB, err := marshalSnapshot(after)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_logs (admin_id, entity_type, entity_id, action, before_data, after_data)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		actorID, entityType, entityID, action, beforeB, afterB)
	if err != nil {
		r.log.Error("audit record failed", "admin_id", actorID,
			"entity_type", entityType, "entity_id", entityID, "action", action, "error", err)
		return err
	}
	return nil
}

func marshalSnapshot(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal audit snapshot: %w", err)
	}
	return b, nil
}
