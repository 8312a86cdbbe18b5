package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastcalorie/nutridb/constants"
	"github.com/fastcalorie/nutridb/internal/common"
	"github.com/fastcalorie/nutridb/internal/entity"
)

// JobRepository persists ingestion jobs. StructuredData and the validation
// report are stored as JSONB and always written through methods that keep
// the two arrays index-aligned.
type JobRepository interface {
	Create(ctx context.Context, restaurantID, adminID uuid.UUID, pdfPath string) (*entity.IngestionJob, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.IngestionJob, error)
	List(ctx context.Context, restaurantID *uuid.UUID, limit int) ([]entity.JobSummary, error)
	SetStatus(ctx context.Context, id uuid.UUID, status constants.JobStatus) error
	SetProgress(ctx context.Context, id uuid.UUID, p entity.PipelineProgress) error
	SaveRawText(ctx context.Context, id uuid.UUID, text string) error
	SaveStructuredData(ctx context.Context, id uuid.UUID, items []entity.ExtractedItem) error
	SaveValidationReport(ctx context.Context, id uuid.UUID, report []entity.ValidationResult) error
	SaveReviewEdit(ctx context.Context, id uuid.UUID, items []entity.ExtractedItem, report []entity.ValidationResult) error
	// FinishApproval adds approvedDelta to the job's approved counter under a
	// row lock and moves the job to approved when the counter reaches the
	// extracted total. Returns the new counter and resulting status.
	FinishApproval(ctx context.Context, id uuid.UUID, approvedDelta int) (int, constants.JobStatus, error)
	Fail(ctx context.Context, id uuid.UUID, message string) error
}

type jobRepo struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewJobRepository(pool *pgxpool.Pool, log *slog.Logger) JobRepository {
	return &jobRepo{pool: pool, log: log}
}

const jobColumns = `id, restaurant_id, admin_id, pdf_path, status, progress, raw_text,
	structured_data, validation_report, items_extracted, items_approved, error_log,
	created_at, completed_at`

func (r *jobRepo) Create(ctx context.Context, restaurantID, adminID uuid.UUID, pdfPath string) (*entity.IngestionJob, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO ingestion_jobs (restaurant_id, admin_id, pdf_path, status)
		VALUES ($1, $2, $3, $4)
		RETURNING `+jobColumns,
		restaurantID, adminID, pdfPath, constants.JobStatusPending)
	job, err := scanJob(row)
	if err != nil {
		r.log.Error("job create failed", "restaurant_id", restaurantID, "error", err)
		return nil, err
	}
	r.log.Info("ingestion job created", "job_id", job.ID, "restaurant_id", restaurantID)
	return job, nil
}

func (r *jobRepo) Get(ctx context.Context, id uuid.UUID) (*entity.IngestionJob, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM ingestion_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ingestion job %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		r.log.Error("job get failed", "job_id", id, "error", err)
		return nil, err
	}
	return job, nil
}

func (r *jobRepo) List(ctx context.Context, restaurantID *uuid.UUID, limit int) ([]entity.JobSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `
		SELECT j.id, j.restaurant_id, COALESCE(r.name, ''), j.status,
		       j.items_extracted, j.items_approved, j.error_log, j.created_at
		FROM ingestion_jobs j
		LEFT JOIN restaurants r ON r.id = j.restaurant_id`
	args := []any{limit}
	if restaurantID != nil {
		q += ` WHERE j.restaurant_id = $2`
		args = append(args, *restaurantID)
	}
	q += ` ORDER BY j.created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		r.log.Error("job list failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []entity.JobSummary
	for rows.Next() {
		var s entity.JobSummary
		if err := rows.Scan(&s.ID, &s.RestaurantID, &s.RestaurantName, &s.Status,
			&s.ItemsExtracted, &s.ItemsApproved, &s.ErrorLog, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *jobRepo) SetStatus(ctx context.Context, id uuid.UUID, status constants.JobStatus) error {
	err := r.exec(ctx, id, `UPDATE ingestion_jobs SET status = $2 WHERE id = $1`, status)
	if err == nil {
		r.log.Info("job status updated", "job_id", id, "status", status)
	}
	return err
}

func (r *jobRepo) SetProgress(ctx context.Context, id uuid.UUID, p entity.PipelineProgress) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	return r.exec(ctx, id, `UPDATE ingestion_jobs SET progress = $2 WHERE id = $1`, b)
}

func (r *jobRepo) SaveRawText(ctx context.Context, id uuid.UUID, text string) error {
	return r.exec(ctx, id, `UPDATE ingestion_jobs SET raw_text = $2 WHERE id = $1`, text)
}

func (r *jobRepo) SaveStructuredData(ctx context.Context, id uuid.UUID, items []entity.ExtractedItem) error {
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal structured data: %w", err)
	}
	return r.exec(ctx, id,
		`UPDATE ingestion_jobs SET structured_data = $2, items_extracted = $3 WHERE id = $1`,
		b, len(items))
}

func (r *jobRepo) SaveValidationReport(ctx context.Context, id uuid.UUID, report []entity.ValidationResult) error {
	b, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal validation report: %w", err)
	}
	return r.exec(ctx, id, `UPDATE ingestion_jobs SET validation_report = $2 WHERE id = $1`, b)
}

func (r *jobRepo) SaveReviewEdit(ctx context.Context, id uuid.UUID, items []entity.ExtractedItem, report []entity.ValidationResult) error {
	ib, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal structured data: %w", err)
	}
	rb, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal validation report: %w", err)
	}
	// Both arrays in one statement: the index-alignment invariant must hold
	// even if the process dies between writes.
	return r.exec(ctx, id,
		`UPDATE ingestion_jobs SET structured_data = $2, validation_report = $3 WHERE id = $1`,
		ib, rb)
}

func (r *jobRepo) FinishApproval(ctx context.Context, id uuid.UUID, approvedDelta int) (int, constants.JobStatus, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var extracted, approved int
	err = tx.QueryRow(ctx,
		`SELECT items_extracted, items_approved FROM ingestion_jobs WHERE id = $1 FOR UPDATE`,
		id).Scan(&extracted, &approved)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, "", fmt.Errorf("ingestion job %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return 0, "", err
	}

	newTotal := approved + approvedDelta
	status := constants.JobStatusReview
	var completedAt *time.Time
	if newTotal >= extracted {
		status = constants.JobStatusApproved
		now := time.Now().UTC()
		completedAt = &now
	}

	if _, err := tx.Exec(ctx,
		`UPDATE ingestion_jobs
		 SET items_approved = $2, status = $3, completed_at = COALESCE($4, completed_at)
		 WHERE id = $1`,
		id, newTotal, status, completedAt); err != nil {
		return 0, "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, "", err
	}

	r.log.Info("job approval recorded", "job_id", id, "approved_delta", approvedDelta,
		"total_approved", newTotal, "status", status)
	return newTotal, status, nil
}

func (r *jobRepo) Fail(ctx context.Context, id uuid.UUID, message string) error {
	err := r.exec(ctx, id, `UPDATE ingestion_jobs SET status = $2, error_log = $3 WHERE id = $1`,
		constants.JobStatusFailed, message)
	if err != nil {
		r.log.Error("job fail-write failed", "job_id", id, "error", err)
		return err
	}
	r.log.Warn("job marked failed", "job_id", id, "error_log", message)
	return nil
}

func (r *jobRepo) exec(ctx context.Context, id uuid.UUID, q string, args ...any) error {
	full := append([]any{id}, args...)
	tag, err := r.pool.Exec(ctx, q, full...)
	if err != nil {
		r.log.Error("job update failed", "job_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ingestion job %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func scanJob(row pgx.Row) (*entity.IngestionJob, error) {
	var (
		j            entity.IngestionJob
		progressB    []byte
		structuredB  []byte
		reportB      []byte
	)
	if err := row.Scan(&j.ID, &j.RestaurantID, &j.AdminID, &j.PDFPath, &j.Status,
		&progressB, &j.RawText, &structuredB, &reportB,
		&j.ItemsExtracted, &j.ItemsApproved, &j.ErrorLog,
		&j.CreatedAt, &j.CompletedAt); err != nil {
		return nil, err
	}
	if len(progressB) > 0 {
		var p entity.PipelineProgress
		if err := json.Unmarshal(progressB, &p); err != nil {
			return nil, fmt.Errorf("decode progress: %w", err)
		}
		j.Progress = &p
	}
	if len(structuredB) > 0 {
		if err := json.Unmarshal(structuredB, &j.StructuredData); err != nil {
			return nil, fmt.Errorf("decode structured data: %w", err)
		}
	}
	if len(reportB) > 0 {
		if err := json.Unmarshal(reportB, &j.ValidationReport); err != nil {
			return nil, fmt.Errorf("decode validation report: %w", err)
		}
	}
	return &j, nil
}
