package constants

// JobStatus is the canonical lifecycle status for rows in ingestion_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusPending    JobStatus = "pending"    // created, not yet picked up
	JobStatusProcessing JobStatus = "processing" // pipeline running
	JobStatusReview     JobStatus = "review"     // awaiting admin approval
	JobStatusApproved   JobStatus = "approved"   // terminal: all items approved
	JobStatusFailed     JobStatus = "failed"     // terminal failure
)

// Terminal reports whether no further transition is allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusApproved || s == JobStatusFailed
}

// RestaurantStatus is the publication state for rows in restaurants.
type RestaurantStatus string

const (
	RestaurantStatusDraft    RestaurantStatus = "draft"
	RestaurantStatusActive   RestaurantStatus = "active"
	RestaurantStatusArchived RestaurantStatus = "archived"
)

// Confidence is the extractor's self-reported confidence tag on one item.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// AuditAction names the mutation recorded in the audit log.
type AuditAction string

const (
	AuditActionCreate  AuditAction = "create"
	AuditActionUpdate  AuditAction = "update"
	AuditActionDelete  AuditAction = "delete"
	AuditActionApprove AuditAction = "approve"
)
