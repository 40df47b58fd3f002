// Package catalog is the lookup boundary the cart and checkout paths use to
// resolve products and adjust stock. Catalog management itself (creation,
// search, categories) lives outside this service.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/prowisla/shop/internal/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Service struct {
	DB *gorm.DB
}

func (s *Service) FindByID(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := s.DB.WithContext(ctx).First(&p, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %s: %w", productID, ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

// DecrementStock subtracts quantity in a single guarded statement so
// concurrent checkouts of the same product cannot lose updates or drive the
// counter negative. Zero affected rows means the product is missing or does
// not have enough stock, and nothing was changed.
func (s *Service) DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive: %w", ErrInsufficientStock)
	}

	res := s.DB.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, quantity).
		UpdateColumn("stock", gorm.Expr("stock - ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product %s: %w", productID, ErrInsufficientStock)
	}

	// One-way transition at checkout time: a depleted product is flagged out
	// of stock and is not re-enabled by this pipeline.
	return s.DB.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock <= 0", productID).
		UpdateColumn("in_stock", false).Error
}
