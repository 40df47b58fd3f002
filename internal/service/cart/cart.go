package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/prowisla/shop/internal/models"
	"github.com/prowisla/shop/internal/money"
	"github.com/prowisla/shop/internal/service/catalog"
)

var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("not found")
)

// OwnerKey scopes a cart to exactly one owner: a registered user or an
// anonymous session. Construct it through UserKey or SessionKey.
type OwnerKey struct {
	userID    *uuid.UUID
	sessionID *string
}

func UserKey(id uuid.UUID) OwnerKey {
	return OwnerKey{userID: &id}
}

func SessionKey(id string) OwnerKey {
	return OwnerKey{sessionID: &id}
}

func (k OwnerKey) IsZero() bool {
	return k.userID == nil && (k.sessionID == nil || *k.sessionID == "")
}

type Service struct {
	DB      *gorm.DB
	Catalog *catalog.Service
}

func (s *Service) scope(key OwnerKey) (string, any) {
	if key.userID != nil {
		return "user_id = ?", *key.userID
	}
	return "session_id = ?", *key.sessionID
}

// GetOrCreate returns the owner's cart, lazily creating an empty one on first
// access. Creation is upsert-by-key: a concurrent create for the same owner
// loses on the unique index and falls back to reloading the winner's row.
func (s *Service) GetOrCreate(ctx context.Context, key OwnerKey) (*models.Cart, error) {
	if key.IsZero() {
		return nil, fmt.Errorf("cart owner required: %w", ErrValidation)
	}

	cond, arg := s.scope(key)

	var cart models.Cart
	err := s.DB.WithContext(ctx).Preload("Items").Where(cond, arg).First(&cart).Error
	if err == nil {
		return &cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cart = models.Cart{UserID: key.userID, SessionID: key.sessionID}
	if err := s.DB.WithContext(ctx).Create(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing models.Cart
			if err := s.DB.WithContext(ctx).Preload("Items").Where(cond, arg).First(&existing).Error; err != nil {
				return nil, err
			}
			return &existing, nil
		}
		return nil, err
	}
	return &cart, nil
}

// AddItem resolves the current catalog price (sale price wins over list
// price) and either merges into the existing (product, variant) line or
// inserts a new one.
func (s *Service) AddItem(ctx context.Context, key OwnerKey, productID uuid.UUID, variantID *uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", ErrValidation)
	}

	cart, err := s.GetOrCreate(ctx, key)
	if err != nil {
		return nil, err
	}

	product, err := s.Catalog.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, fmt.Errorf("product not found: %w", ErrNotFound)
		}
		return nil, err
	}
	price := product.CurrentPrice()

	var item models.CartItem
	q := s.DB.WithContext(ctx).Where("cart_id = ? AND product_id = ?", cart.ID, productID)
	if variantID != nil {
		q = q.Where("variant_id = ?", *variantID)
	} else {
		q = q.Where("variant_id IS NULL")
	}
	err = q.First(&item).Error
	switch {
	case err == nil:
		item.Quantity += quantity
		item.TotalPrice = money.Line(item.Price, item.Quantity)
		if err := s.DB.WithContext(ctx).Save(&item).Error; err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		item = models.CartItem{
			CartID:     cart.ID,
			ProductID:  productID,
			VariantID:  variantID,
			Quantity:   quantity,
			Price:      price,
			TotalPrice: money.Line(price, quantity),
		}
		if err := s.DB.WithContext(ctx).Create(&item).Error; err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return s.recomputeTotals(ctx, cart.ID)
}

// UpdateItemQuantity sets the line quantity; zero or negative removes the
// line entirely. The line total is re-derived from the captured price, never
// from the current catalog price.
func (s *Service) UpdateItemQuantity(ctx context.Context, key OwnerKey, itemID uuid.UUID, quantity int) (*models.Cart, error) {
	cart, err := s.GetOrCreate(ctx, key)
	if err != nil {
		return nil, err
	}

	var item models.CartItem
	err = s.DB.WithContext(ctx).Where("id = ? AND cart_id = ?", itemID, cart.ID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("cart item not found: %w", ErrNotFound)
		}
		return nil, err
	}

	if quantity <= 0 {
		if err := s.DB.WithContext(ctx).Delete(&item).Error; err != nil {
			return nil, err
		}
	} else {
		item.Quantity = quantity
		item.TotalPrice = money.Line(item.Price, quantity)
		if err := s.DB.WithContext(ctx).Save(&item).Error; err != nil {
			return nil, err
		}
	}

	return s.recomputeTotals(ctx, cart.ID)
}

// RemoveItem deletes the line if present. Removing an absent item is a
// silent no-op so client retries stay simple.
func (s *Service) RemoveItem(ctx context.Context, key OwnerKey, itemID uuid.UUID) (*models.Cart, error) {
	cart, err := s.GetOrCreate(ctx, key)
	if err != nil {
		return nil, err
	}

	if err := s.DB.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cart.ID).
		Delete(&models.CartItem{}).Error; err != nil {
		return nil, err
	}

	return s.recomputeTotals(ctx, cart.ID)
}

// Clear removes every line. Clearing an already-empty cart is a no-op.
func (s *Service) Clear(ctx context.Context, key OwnerKey) (*models.Cart, error) {
	cart, err := s.GetOrCreate(ctx, key)
	if err != nil {
		return nil, err
	}

	if err := s.DB.WithContext(ctx).
		Where("cart_id = ?", cart.ID).
		Delete(&models.CartItem{}).Error; err != nil {
		return nil, err
	}

	return s.recomputeTotals(ctx, cart.ID)
}

// MergeGuest replays every guest line against the user's cart through
// AddItem, preserving merge-not-duplicate semantics, then deletes the guest
// cart. A missing or empty guest cart still yields the user's cart.
func (s *Service) MergeGuest(ctx context.Context, sessionID string, userID uuid.UUID) (*models.Cart, error) {
	var guest models.Cart
	err := s.DB.WithContext(ctx).Preload("Items").Where("session_id = ?", sessionID).First(&guest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.GetOrCreate(ctx, UserKey(userID))
		}
		return nil, err
	}

	for _, item := range guest.Items {
		if _, err := s.AddItem(ctx, UserKey(userID), item.ProductID, item.VariantID, item.Quantity); err != nil {
			return nil, err
		}
	}

	if err := s.DB.WithContext(ctx).Where("cart_id = ?", guest.ID).Delete(&models.CartItem{}).Error; err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Delete(&guest).Error; err != nil {
		return nil, err
	}

	return s.GetOrCreate(ctx, UserKey(userID))
}

// recomputeTotals re-derives the cached totals from the persisted line items.
// Every mutation ends here; totals are never patched incrementally.
func (s *Service) recomputeTotals(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := s.DB.WithContext(ctx).Preload("Items").First(&cart, "id = ?", cartID).Error; err != nil {
		return nil, err
	}

	total := decimal.Zero
	count := 0
	for _, item := range cart.Items {
		total = total.Add(item.TotalPrice)
		count += item.Quantity
	}

	cart.TotalAmount = total
	cart.ItemCount = count
	if err := s.DB.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cart.ID).
		Updates(map[string]any{"total_amount": total, "item_count": count}).Error; err != nil {
		return nil, err
	}

	return &cart, nil
}
