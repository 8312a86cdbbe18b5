package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/fastcalorie/nutridb/constants"
)

// ProgressStage labels the phase recorded in a job's progress descriptor.
type ProgressStage string

const (
	StageSplitting  ProgressStage = "splitting"
	StageProcessing ProgressStage = "processing"
	StageMerging    ProgressStage = "merging"
	StageValidating ProgressStage = "validating"
	StageComplete   ProgressStage = "complete"
)

// PipelineProgress is the coarse progress descriptor persisted on the job
// while the pipeline runs. Purely informational for pollers.
type PipelineProgress struct {
	TotalUnits     int           `json:"totalUnits"`
	CompletedUnits int           `json:"completedUnits"`
	CurrentUnit    int           `json:"currentUnit"`
	Stage          ProgressStage `json:"stage"`
}

// IngestionJob represents one uploaded nutrition PDF moving through the
// pipeline. StructuredData and ValidationReport are index-aligned at all
// times: ValidationReport[i] describes StructuredData[i].
type IngestionJob struct {
	ID               uuid.UUID           `json:"id"`
	RestaurantID     uuid.UUID           `json:"restaurant_id"`
	AdminID          uuid.UUID           `json:"admin_id"`
	PDFPath          string              `json:"pdf_path"`
	Status           constants.JobStatus `json:"status"`
	Progress         *PipelineProgress   `json:"progress,omitempty"`
	RawText          *string             `json:"raw_text,omitempty"`
	StructuredData   []ExtractedItem     `json:"structured_data,omitempty"`
	ValidationReport []ValidationResult  `json:"validation_report,omitempty"`
	ItemsExtracted   int                 `json:"items_extracted"`
	ItemsApproved    int                 `json:"items_approved"`
	ErrorLog         *string             `json:"error_log,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	CompletedAt      *time.Time          `json:"completed_at,omitempty"`
}

// JobSummary is the list-view projection of a job, with the restaurant name
// joined in for the back-office dashboard.
type JobSummary struct {
	ID             uuid.UUID           `json:"id"`
	RestaurantID   uuid.UUID           `json:"restaurant_id"`
	RestaurantName string              `json:"restaurant_name"`
	Status         constants.JobStatus `json:"status"`
	ItemsExtracted int                 `json:"items_extracted"`
	ItemsApproved  int                 `json:"items_approved"`
	ErrorLog       *string             `json:"error_log,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}
