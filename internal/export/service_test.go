package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/fastcalorie/nutridb/constants"
	"github.com/fastcalorie/nutridb/internal/common"
	"github.com/fastcalorie/nutridb/internal/entity"
)

type stubRestaurants struct {
	restaurant *entity.Restaurant
}

func (s *stubRestaurants) Get(_ context.Context, id uuid.UUID) (*entity.Restaurant, error) {
	if s.restaurant == nil || s.restaurant.ID != id {
		return nil, common.NotFoundf("restaurant %s", id)
	}
	return s.restaurant, nil
}

func (s *stubRestaurants) Exists(context.Context, uuid.UUID) (bool, error) { return true, nil }
func (s *stubRestaurants) IncrementItemCount(context.Context, uuid.UUID, int) error {
	return nil
}
func (s *stubRestaurants) SetLastIngestionAt(context.Context, uuid.UUID, time.Time) error {
	return nil
}
func (s *stubRestaurants) ActivateIfDraft(context.Context, uuid.UUID) error { return nil }

type stubMenuItems struct {
	items []entity.MenuItem
	err   error
}

func (s *stubMenuItems) Create(_ context.Context, item entity.MenuItem) (*entity.MenuItem, error) {
	return &item, nil
}

func (s *stubMenuItems) ListByRestaurant(context.Context, uuid.UUID) ([]entity.MenuItem, error) {
	return s.items, s.err
}

func fptr(f float64) *float64 { return &f }
func sptr(s string) *string   { return &s }

func TestExportMenuXLSX(t *testing.T) {
	restaurantID := uuid.New()
	restaurants := &stubRestaurants{restaurant: &entity.Restaurant{
		ID: restaurantID, Name: "Testaurant", Slug: "testaurant",
		Status: constants.RestaurantStatusActive,
	}}
	menuItems := &stubMenuItems{items: []entity.MenuItem{
		{
			Name: "Classic Burger", Category: "Burgers", ServingSize: sptr("1 sandwich"),
			Calories: 500, TotalFatG: fptr(22), SodiumMg: fptr(900), ProteinG: fptr(25),
			IsAvailable: true,
		},
		{
			Name: "Side Salad", Category: "Salads", Calories: 120, IsAvailable: false,
		},
	}}

	svc := NewService(restaurants, menuItems, nil)
	data, filename, err := svc.ExportMenuXLSX(context.Background(), restaurantID)
	require.NoError(t, err)
	assert.Equal(t, "testaurant-menu.xlsx", filename)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Menu")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Name", rows[0][0])
	assert.Equal(t, "Calories", rows[0][3])

	assert.Equal(t, "Classic Burger", rows[1][0])
	assert.Equal(t, "Burgers", rows[1][1])
	assert.Equal(t, "500", rows[1][3])
	assert.Equal(t, "22", rows[1][4])

	assert.Equal(t, "Side Salad", rows[2][0])
	// Unstated nutrition values stay blank, never zero.
	assert.Equal(t, "", rows[2][4])
}

func TestExportUnknownRestaurant(t *testing.T) {
	svc := NewService(&stubRestaurants{}, &stubMenuItems{}, nil)
	_, _, err := svc.ExportMenuXLSX(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestExportListFailure(t *testing.T) {
	restaurantID := uuid.New()
	restaurants := &stubRestaurants{restaurant: &entity.Restaurant{ID: restaurantID, Slug: "x"}}
	svc := NewService(restaurants, &stubMenuItems{err: errors.New("pool closed")}, nil)

	_, _, err := svc.ExportMenuXLSX(context.Background(), restaurantID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool closed")
}
