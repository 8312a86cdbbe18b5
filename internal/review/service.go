// Package review consumes validation results and admin approvals to turn a
// job's extracted candidates into permanent menu records.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fastcalorie/nutridb/constants"
	"github.com/fastcalorie/nutridb/internal/common"
	"github.com/fastcalorie/nutridb/internal/entity"
	"github.com/fastcalorie/nutridb/internal/repository"
	"github.com/fastcalorie/nutridb/internal/validation"
)

// Service handles the approve/edit sub-protocol for jobs in review.
type Service struct {
	jobs        repository.JobRepository
	restaurants repository.RestaurantRepository
	menuItems   repository.MenuItemRepository
	audit       repository.AuditRepository
	logger      *slog.Logger
}

func NewService(jobs repository.JobRepository, restaurants repository.RestaurantRepository,
	menuItems repository.MenuItemRepository, audit repository.AuditRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, restaurants: restaurants, menuItems: menuItems, audit: audit, logger: logger}
}

// ApproveResult reports the outcome of one approve-subset call.
type ApproveResult struct {
	Approved       int                 `json:"approved"`
	TotalApproved  int                 `json:"total_approved"`
	TotalItems     int                 `json:"total_items"`
	Status         constants.JobStatus `json:"status"`
	CreatedItemIDs []uuid.UUID         `json:"created_item_ids"`
}

// ApproveItems materializes MenuItems for the given item indices of a job
// in review. The request is checked in full before anything is created: any
// out-of-range index, or any index whose current validation status is
// error, rejects the whole request with no partial effect. Items flagged
// warning are approvable; errors must be fixed or excluded first.
func (s *Service) ApproveItems(ctx context.Context, jobID, actorID uuid.UUID, itemIndexes []int) (*ApproveResult, error) {
	if len(itemIndexes) == 0 {
		return nil, common.InvalidInputf("item_indexes must be a non-empty array")
	}

	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != constants.JobStatusReview {
		return nil, common.InvalidInputf("job is not in review status (current: %s)", job.Status)
	}
	if len(job.StructuredData) == 0 || len(job.ValidationReport) == 0 {
		return nil, common.InvalidInputf("job has no structured data or validation report")
	}

	// An index must resolve in both arrays; a report shorter than the item
	// list (a partially written job) must not slip past the range check.
	for _, idx := range itemIndexes {
		if idx < 0 || idx >= len(job.StructuredData) || idx >= len(job.ValidationReport) {
			return nil, common.InvalidInputf("item index %d is out of range", idx)
		}
	}

	var errorIndexes []int
	for _, idx := range itemIndexes {
		if job.ValidationReport[idx].Status == entity.CheckError {
			errorIndexes = append(errorIndexes, idx)
		}
	}
	if len(errorIndexes) > 0 {
		return nil, common.InvalidInputf("cannot approve items with validation errors (indexes %v)", errorIndexes)
	}

	createdIDs := make([]uuid.UUID, 0, len(itemIndexes))
	for _, idx := range itemIndexes {
		item := job.StructuredData[idx]
		created, err := s.menuItems.Create(ctx, materialize(job, item))
		if err != nil {
			return nil, fmt.Errorf("create menu item for index %d: %w", idx, err)
		}
		createdIDs = append(createdIDs, created.ID)
		s.recordAudit(ctx, actorID, "menu_item", created.ID, constants.AuditActionCreate, nil, item)
	}

	if err := s.restaurants.IncrementItemCount(ctx, job.RestaurantID, len(itemIndexes)); err != nil {
		s.logger.Error("restaurant item count update failed", "restaurant_id", job.RestaurantID, "error", err)
	}
	if err := s.restaurants.SetLastIngestionAt(ctx, job.RestaurantID, time.Now().UTC()); err != nil {
		s.logger.Error("restaurant last ingestion stamp failed", "restaurant_id", job.RestaurantID, "error", err)
	}
	if err := s.restaurants.ActivateIfDraft(ctx, job.RestaurantID); err != nil {
		s.logger.Error("restaurant activation failed", "restaurant_id", job.RestaurantID, "error", err)
	}

	totalApproved, status, err := s.jobs.FinishApproval(ctx, jobID, len(itemIndexes))
	if err != nil {
		return nil, fmt.Errorf("record approval: %w", err)
	}

	s.recordAudit(ctx, actorID, "ingestion_job", jobID, constants.AuditActionApprove, nil, map[string]any{
		"approvedIndexes": itemIndexes,
		"approvedCount":   len(itemIndexes),
		"totalApproved":   totalApproved,
	})

	s.logger.Info("items approved", "job_id", jobID, "actor_id", actorID,
		"approved", len(itemIndexes), "total_approved", totalApproved, "status", status)

	return &ApproveResult{
		Approved:       len(itemIndexes),
		TotalApproved:  totalApproved,
		TotalItems:     len(job.StructuredData),
		Status:         status,
		CreatedItemIDs: createdIDs,
	}, nil
}

// EditResult carries the merged item and its fresh validation result.
type EditResult struct {
	Item       entity.ExtractedItem    `json:"item"`
	Validation entity.ValidationResult `json:"validation"`
}

// EditItem merges a partial field update into one extracted item of a job
// in review, re-validates just that index against the full current list,
// and persists both arrays together.
func (s *Service) EditItem(ctx context.Context, jobID, actorID uuid.UUID, itemIndex int, patch json.RawMessage) (*EditResult, error) {
	if itemIndex < 0 {
		return nil, common.InvalidInputf("invalid item index %d", itemIndex)
	}

	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != constants.JobStatusReview {
		return nil, common.InvalidInputf("job is not in review status (current: %s)", job.Status)
	}
	if itemIndex >= len(job.StructuredData) || itemIndex >= len(job.ValidationReport) {
		return nil, common.InvalidInputf("item index %d is out of range", itemIndex)
	}

	before := job.StructuredData[itemIndex]
	updated, err := before.MergePatch(patch)
	if err != nil {
		return nil, common.InvalidInputf("apply item update: %v", err)
	}

	items := make([]entity.ExtractedItem, len(job.StructuredData))
	copy(items, job.StructuredData)
	items[itemIndex] = updated

	result := validation.ValidateSingleItem(updated, itemIndex, items)

	report := make([]entity.ValidationResult, len(job.ValidationReport))
	copy(report, job.ValidationReport)
	report[itemIndex] = result

	if err := s.jobs.SaveReviewEdit(ctx, jobID, items, report); err != nil {
		return nil, fmt.Errorf("persist edit: %w", err)
	}

	s.recordAudit(ctx, actorID, "ingestion_job", jobID, constants.AuditActionUpdate,
		map[string]any{"itemIndex": itemIndex, "item": before},
		map[string]any{"itemIndex": itemIndex, "item": updated})

	s.logger.Info("item edited", "job_id", jobID, "actor_id", actorID,
		"item_index", itemIndex, "validation_status", result.Status)

	return &EditResult{Item: updated, Validation: result}, nil
}

// materialize maps one approved candidate onto a permanent menu record.
func materialize(job *entity.IngestionJob, item entity.ExtractedItem) entity.MenuItem {
	calories := 0
	if item.Calories != nil {
		calories = *item.Calories
	}
	pdfPath := job.PDFPath
	ingestionID := job.ID
	return entity.MenuItem{
		RestaurantID:  job.RestaurantID,
		Name:          item.Name,
		Category:      item.Category,
		ServingSize:   item.ServingSize,
		Calories:      calories,
		TotalFatG:     item.TotalFatG,
		SaturatedFatG: item.SaturatedFatG,
		TransFatG:     item.TransFatG,
		CholesterolMg: item.CholesterolMg,
		SodiumMg:      item.SodiumMg,
		TotalCarbsG:   item.TotalCarbsG,
		DietaryFiberG: item.DietaryFiberG,
		SugarsG:       item.SugarsG,
		ProteinG:      item.ProteinG,
		IsAvailable:   true,
		SourcePDFPath: &pdfPath,
		IngestionID:   &ingestionID,
	}
}

// recordAudit is best-effort: a failed audit write logs and never fails the
// admin action.
func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, entityType string, entityID uuid.UUID,
	action constants.AuditAction, before, after any) {
	if err := s.audit.Record(ctx, actorID, entityType, entityID, action, before, after); err != nil {
		s.logger.Error("audit write failed", "entity_type", entityType,
			"entity_id", entityID, "action", action, "error", err)
	}
}
