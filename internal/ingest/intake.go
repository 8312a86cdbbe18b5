// Package ingest guards the boundary between raw uploads and the pipeline:
// nothing that is not a plausible PDF for a known restaurant gets a job.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/fastcalorie/nutridb/constants"
	"github.com/fastcalorie/nutridb/internal/async"
	"github.com/fastcalorie/nutridb/internal/common"
	"github.com/fastcalorie/nutridb/internal/repository"
)

// Service accepts uploaded nutrition PDFs, spools them to disk, creates the
// ingestion job, and hands it to the queue.
type Service struct {
	restaurants repository.RestaurantRepository
	jobs        repository.JobRepository
	queue       async.Queue
	uploadDir   string
	logger      *slog.Logger
}

func NewService(restaurants repository.RestaurantRepository, jobs repository.JobRepository,
	queue async.Queue, uploadDir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{restaurants: restaurants, jobs: jobs, queue: queue, uploadDir: uploadDir, logger: logger}
}

// UploadRequest is one candidate upload, already read into memory by the
// HTTP layer (the size cap makes that safe).
type UploadRequest struct {
	RestaurantID uuid.UUID
	AdminID      uuid.UUID
	ContentType  string
	Data         []byte
}

// AcceptUpload validates the upload, persists it, and enqueues the
// pipeline run. Returns the new job id. Validation failures carry
// common.ErrInvalidInput / common.ErrNotFound for the server layer to map.
func (s *Service) AcceptUpload(ctx context.Context, req UploadRequest) (uuid.UUID, error) {
	if req.RestaurantID == uuid.Nil {
		return uuid.Nil, common.InvalidInputf("restaurant_id is required")
	}

	exists, err := s.restaurants.Exists(ctx, req.RestaurantID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("check restaurant: %w", err)
	}
	if !exists {
		return uuid.Nil, common.NotFoundf("restaurant %s", req.RestaurantID)
	}

	if len(req.Data) == 0 {
		return uuid.Nil, common.InvalidInputf("file is required")
	}
	if len(req.Data) > constants.MaxUploadBytes {
		return uuid.Nil, common.InvalidInputf("file size exceeds %dMB limit", constants.MaxUploadBytes>>20)
	}
	if req.ContentType != constants.PDFContentType {
		return uuid.Nil, common.InvalidInputf("file must be %s (got %q)", constants.PDFContentType, req.ContentType)
	}
	// Declared type is not enough; truncated and mislabeled files must not
	// reach the splitter.
	if len(req.Data) < len(constants.PDFMagic) || !bytes.HasPrefix(req.Data, constants.PDFMagic) {
		return uuid.Nil, common.InvalidInputf("file does not appear to be a valid PDF")
	}

	fileID := uuid.New()
	path := filepath.Join(s.uploadDir, fileID.String()+".pdf")
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return uuid.Nil, fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(path, req.Data, 0o644); err != nil {
		return uuid.Nil, fmt.Errorf("write upload: %w", err)
	}

	job, err := s.jobs.Create(ctx, req.RestaurantID, req.AdminID, path)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create job: %w", err)
	}

	if err := s.queue.Enqueue(ctx, async.Job{JobID: job.ID, SubmittedAt: time.Now()}); err != nil {
		s.logger.Error("enqueue failed", "job_id", job.ID, "error", err)
		return uuid.Nil, fmt.Errorf("enqueue job: %w", err)
	}

	s.logger.Info("upload accepted", "job_id", job.ID, "restaurant_id", req.RestaurantID,
		"admin_id", req.AdminID, "bytes", len(req.Data))
	return job.ID, nil
}
