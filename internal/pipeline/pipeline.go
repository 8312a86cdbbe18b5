// Package pipeline turns an uploaded nutrition PDF into review-ready
// structured records: split into units, fan extraction out across them,
// merge, validate, and park the job in review. The driver owns the job's
// status transitions; everything it learns is persisted as it goes so a
// crash leaves a diagnosable job behind.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/fastcalorie/nutridb/constants"
	"github.com/fastcalorie/nutridb/internal/entity"
	"github.com/fastcalorie/nutridb/internal/repository"
	"github.com/fastcalorie/nutridb/internal/split"
	"github.com/fastcalorie/nutridb/internal/validation"
)

// Driver runs one ingestion job from pending to review (or failed).
type Driver struct {
	jobs        repository.JobRepository
	restaurants repository.RestaurantRepository
	splitter    split.Splitter
	orch        *Orchestrator
	logger      *slog.Logger
}

func NewDriver(jobs repository.JobRepository, restaurants repository.RestaurantRepository,
	splitter split.Splitter, orch *Orchestrator, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{jobs: jobs, restaurants: restaurants, splitter: splitter, orch: orch, logger: logger}
}

// Run executes the pipeline for jobID. Any failure is captured onto the job
// record (status=failed, error_log set) and returned; there is no automatic
// retry. Retrying means an operator uploads again under a new job.
func (d *Driver) Run(ctx context.Context, jobID uuid.UUID) error {
	if err := d.run(ctx, jobID); err != nil {
		d.logger.Error("pipeline.failed", "job_id", jobID, "error", err)
		// The job must reach a terminal state even when ctx is already
		// done (e.g. worker timeout mid-stage).
		if ferr := d.jobs.Fail(context.WithoutCancel(ctx), jobID, err.Error()); ferr != nil {
			d.logger.Error("pipeline.fail_write_failed", "job_id", jobID, "error", ferr)
		}
		return err
	}
	return nil
}

func (d *Driver) run(ctx context.Context, jobID uuid.UUID) error {
	// A missing job or restaurant here is a data-integrity problem, not a
	// transient one; fail immediately.
	job, err := d.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	restaurant, err := d.restaurants.Get(ctx, job.RestaurantID)
	if err != nil {
		return fmt.Errorf("load restaurant: %w", err)
	}

	if err := d.jobs.SetStatus(ctx, jobID, constants.JobStatusProcessing); err != nil {
		return fmt.Errorf("set processing: %w", err)
	}
	d.setProgress(ctx, jobID, entity.PipelineProgress{Stage: entity.StageSplitting})

	units, err := d.splitter.Split(ctx, job.PDFPath)
	if err != nil {
		return fmt.Errorf("split document: %w", err)
	}
	d.logger.Info("pipeline.split_ok", "job_id", jobID, "units", len(units))

	result, err := d.orch.Run(ctx, units, restaurant.Name, func(p entity.PipelineProgress) {
		d.setProgress(ctx, jobID, p)
	})
	if err != nil {
		return fmt.Errorf("extraction: %w", err)
	}

	// Persist extraction output before validation runs, so a validation
	// crash still leaves the extracted data inspectable.
	if err := d.jobs.SaveRawText(ctx, jobID, extractionSummary(len(units), result.FailedUnits)); err != nil {
		return fmt.Errorf("save extraction summary: %w", err)
	}
	if err := d.jobs.SaveStructuredData(ctx, jobID, result.Items); err != nil {
		return fmt.Errorf("save structured data: %w", err)
	}
	d.logger.Info("pipeline.extraction_ok", "job_id", jobID,
		"items", len(result.Items), "failed_units", len(result.FailedUnits))

	d.setProgress(ctx, jobID, entity.PipelineProgress{Stage: entity.StageValidating})
	report := validation.RunValidation(result.Items)
	if err := d.jobs.SaveValidationReport(ctx, jobID, report); err != nil {
		return fmt.Errorf("save validation report: %w", err)
	}

	d.setProgress(ctx, jobID, entity.PipelineProgress{Stage: entity.StageComplete})
	if err := d.jobs.SetStatus(ctx, jobID, constants.JobStatusReview); err != nil {
		return fmt.Errorf("set review: %w", err)
	}
	d.logger.Info("pipeline.review_ready", "job_id", jobID, "items", len(result.Items))
	return nil
}

// setProgress is informational only; a failed write never fails the run.
func (d *Driver) setProgress(ctx context.Context, jobID uuid.UUID, p entity.PipelineProgress) {
	if err := d.jobs.SetProgress(ctx, jobID, p); err != nil {
		d.logger.Warn("pipeline.progress_write_failed", "job_id", jobID, "error", err)
	}
}

func extractionSummary(unitCount int, failedUnits []int) string {
	if len(failedUnits) == 0 {
		return fmt.Sprintf("Extraction complete. All %d units processed successfully.", unitCount)
	}
	idx := make([]string, len(failedUnits))
	for i, u := range failedUnits {
		idx[i] = strconv.Itoa(u)
	}
	return fmt.Sprintf("Extraction complete. %d of %d units processed. Failed units: %s",
		unitCount-len(failedUnits), unitCount, strings.Join(idx, ", "))
}
