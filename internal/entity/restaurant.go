package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/fastcalorie/nutridb/constants"
)

// Restaurant represents a restaurant record for data transfer between layers.
type Restaurant struct {
	ID              uuid.UUID                  `json:"id"`
	Name            string                     `json:"name"`
	Slug            string                     `json:"slug"`
	Status          constants.RestaurantStatus `json:"status"`
	ItemCount       int                        `json:"item_count"`
	LastIngestionAt *time.Time                 `json:"last_ingestion_at,omitempty"`
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
}
