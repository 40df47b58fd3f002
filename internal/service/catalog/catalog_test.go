package catalog

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/prowisla/shop/internal/models"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}))

	return &Service{DB: db}, db
}

func seedProduct(t *testing.T, db *gorm.DB, stock int) *models.Product {
	t.Helper()

	p := models.Product{
		Name:    "Kolye",
		Price:   decimal.RequireFromString("100.00"),
		Stock:   stock,
		InStock: true,
	}
	require.NoError(t, db.Create(&p).Error)
	return &p
}

func TestFindByIDUnknown(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.FindByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDecrementStockGuard(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, db, 5)

	require.NoError(t, svc.DecrementStock(ctx, p.ID, 3))

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", p.ID).Error)
	require.Equal(t, 2, reloaded.Stock)
	require.True(t, reloaded.InStock)

	// More than remains: nothing changes.
	err := svc.DecrementStock(ctx, p.ID, 3)
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.NoError(t, db.First(&reloaded, "id = ?", p.ID).Error)
	require.Equal(t, 2, reloaded.Stock)
}

func TestDecrementStockDepletionFlipsFlag(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, db, 2)

	require.NoError(t, svc.DecrementStock(ctx, p.ID, 2))

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", p.ID).Error)
	require.Equal(t, 0, reloaded.Stock)
	require.False(t, reloaded.InStock)

	err := svc.DecrementStock(ctx, p.ID, 1)
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestDecrementStockUnknownProduct(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.DecrementStock(context.Background(), uuid.New(), 1)
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestDecrementStockRejectsNonPositiveQuantity(t *testing.T) {
	svc, db := newTestService(t)
	p := seedProduct(t, db, 5)

	err := svc.DecrementStock(context.Background(), p.ID, 0)
	require.ErrorIs(t, err, ErrInsufficientStock)

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", p.ID).Error)
	require.Equal(t, 5, reloaded.Stock)
}
