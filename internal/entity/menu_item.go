package entity

import (
	"time"

	"github.com/google/uuid"
)

// MenuItem is the permanent menu record materialized from an approved
// ExtractedItem. Numeric nutrition fields stay *float64 in memory; the
// repository serializes them to NUMERIC at the storage boundary.
type MenuItem struct {
	ID            uuid.UUID  `json:"id"`
	RestaurantID  uuid.UUID  `json:"restaurant_id"`
	Name          string     `json:"name"`
	Category      string     `json:"category"`
	ServingSize   *string    `json:"serving_size,omitempty"`
	Calories      int        `json:"calories"`
	TotalFatG     *float64   `json:"total_fat_g,omitempty"`
	SaturatedFatG *float64   `json:"saturated_fat_g,omitempty"`
	TransFatG     *float64   `json:"trans_fat_g,omitempty"`
	CholesterolMg *float64   `json:"cholesterol_mg,omitempty"`
	SodiumMg      *float64   `json:"sodium_mg,omitempty"`
	TotalCarbsG   *float64   `json:"total_carbs_g,omitempty"`
	DietaryFiberG *float64   `json:"dietary_fiber_g,omitempty"`
	SugarsG       *float64   `json:"sugars_g,omitempty"`
	ProteinG      *float64   `json:"protein_g,omitempty"`
	IsAvailable   bool       `json:"is_available"`
	SourcePDFPath *string    `json:"source_pdf_path,omitempty"`
	IngestionID   *uuid.UUID `json:"ingestion_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
