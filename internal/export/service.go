package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/fastcalorie/nutridb/internal/repository"
)

// Service produces XLSX workbooks for back-office exports.
type Service struct {
	restaurants repository.RestaurantRepository
	menuItems   repository.MenuItemRepository
	logger      *slog.Logger
}

func NewService(restaurants repository.RestaurantRepository, menuItems repository.MenuItemRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{restaurants: restaurants, menuItems: menuItems, logger: logger}
}

// ExportMenuXLSX returns an XLSX workbook (as bytes) with every menu item
// of the given restaurant.
func (s *Service) ExportMenuXLSX(ctx context.Context, restaurantID uuid.UUID) ([]byte, string, error) {
	start := time.Now()

	restaurant, err := s.restaurants.Get(ctx, restaurantID)
	if err != nil {
		return nil, "", err
	}
	items, err := s.menuItems.ListByRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, "", fmt.Errorf("query menu items: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Menu"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, "", fmt.Errorf("rename sheet: %w", err)
	}

	headers := []string{"Name", "Category", "Serving Size", "Calories",
		"Total Fat (g)", "Saturated Fat (g)", "Trans Fat (g)", "Cholesterol (mg)",
		"Sodium (mg)", "Total Carbs (g)", "Dietary Fiber (g)", "Sugars (g)", "Protein (g)",
		"Available"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, "", fmt.Errorf("write header: %w", err)
		}
	}

	for row, it := range items {
		values := []any{
			it.Name, it.Category, deref(it.ServingSize), it.Calories,
			derefF(it.TotalFatG), derefF(it.SaturatedFatG), derefF(it.TransFatG),
			derefF(it.CholesterolMg), derefF(it.SodiumMg), derefF(it.TotalCarbsG),
			derefF(it.DietaryFiberG), derefF(it.SugarsG), derefF(it.ProteinG),
			it.IsAvailable,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, "", fmt.Errorf("write row %d: %w", row+2, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("serialize workbook: %w", err)
	}

	filename := fmt.Sprintf("%s-menu.xlsx", restaurant.Slug)
	s.logger.Info("menu export generated", "restaurant_id", restaurantID,
		"items", len(items), "bytes", buf.Len(), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), filename, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// derefF keeps empty cells empty rather than writing zeros for unstated
// values.
func derefF(f *float64) any {
	if f == nil {
		return ""
	}
	return *f
}
