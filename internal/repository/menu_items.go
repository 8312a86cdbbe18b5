package repository

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fastcalorie/nutridb/internal/entity"
)

// MenuItemRepository materializes and reads permanent menu records. The
// in-memory model keeps nutrition numbers as *float64; this is the only
// place they become NUMERIC(7,2) decimals, and the only place they come
// back.
type MenuItemRepository interface {
	Create(ctx context.Context, item entity.MenuItem) (*entity.MenuItem, error)
	ListByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]entity.MenuItem, error)
}

type menuItemRepo struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewMenuItemRepository(pool *pgxpool.Pool, log *slog.Logger) MenuItemRepository {
	return &menuItemRepo{pool: pool, log: log}
}

const menuItemColumns = `id, restaurant_id, name, category, serving_size, calories,
	total_fat_g, saturated_fat_g, trans_fat_g, cholesterol_mg, sodium_mg,
	total_carbs_g, dietary_fiber_g, sugars_g, protein_g,
	is_available, source_pdf_path, ingestion_id, created_at, updated_at`

func (r *menuItemRepo) Create(ctx context.Context, item entity.MenuItem) (*entity.MenuItem, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO menu_items (restaurant_id, name, category, serving_size, calories,
			total_fat_g, saturated_fat_g, trans_fat_g, cholesterol_mg, sodium_mg,
			total_carbs_g, dietary_fiber_g, sugars_g, protein_g,
			is_available, source_pdf_path, ingestion_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING `+menuItemColumns,
		item.RestaurantID, item.Name, item.Category, item.ServingSize, item.Calories,
		toDecimal(item.TotalFatG), toDecimal(item.SaturatedFatG), toDecimal(item.TransFatG),
		toDecimal(item.CholesterolMg), toDecimal(item.SodiumMg), toDecimal(item.TotalCarbsG),
		toDecimal(item.DietaryFiberG), toDecimal(item.SugarsG), toDecimal(item.ProteinG),
		item.IsAvailable, item.SourcePDFPath, item.IngestionID)

	created, err := scanMenuItem(row)
	if err != nil {
		r.log.Error("menu item create failed", "restaurant_id", item.RestaurantID,
			"name", item.Name, "error", err)
		return nil, err
	}
	r.log.Info("menu item created", "menu_item_id", created.ID,
		"restaurant_id", created.RestaurantID, "name", created.Name)
	return created, nil
}

func (r *menuItemRepo) ListByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]entity.MenuItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+menuItemColumns+`
		FROM menu_items WHERE restaurant_id = $1
		ORDER BY category, name`, restaurantID)
	if err != nil {
		r.log.Error("menu item list failed", "restaurant_id", restaurantID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []entity.MenuItem
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

// toDecimal converts an optional float to a NUMERIC(7,2) value, preserving
// null for "not stated".
func toDecimal(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f).Round(2)
	return &d
}

func fromDecimal(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f, _ := d.Float64()
	return &f
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMenuItem(row rowScanner) (*entity.MenuItem, error) {
	var (
		m    entity.MenuItem
		nums [9]*decimal.Decimal
	)
	if err := row.Scan(&m.ID, &m.RestaurantID, &m.Name, &m.Category, &m.ServingSize, &m.Calories,
		&nums[0], &nums[1], &nums[2], &nums[3], &nums[4], &nums[5], &nums[6], &nums[7], &nums[8],
		&m.IsAvailable, &m.SourcePDFPath, &m.IngestionID, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.TotalFatG = fromDecimal(nums[0])
	m.SaturatedFatG = fromDecimal(nums[1])
	m.TransFatG = fromDecimal(nums[2])
	m.CholesterolMg = fromDecimal(nums[3])
	m.SodiumMg = fromDecimal(nums[4])
	m.TotalCarbsG = fromDecimal(nums[5])
	m.DietaryFiberG = fromDecimal(nums[6])
	m.SugarsG = fromDecimal(nums[7])
	m.ProteinG = fromDecimal(nums[8])
	return &m, nil
}
