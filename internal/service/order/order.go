package order

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/prowisla/shop/internal/events"
	"github.com/prowisla/shop/internal/logging"
	"github.com/prowisla/shop/internal/metrics"
	"github.com/prowisla/shop/internal/models"
	"github.com/prowisla/shop/internal/money"
	"github.com/prowisla/shop/internal/service/cart"
	"github.com/prowisla/shop/internal/service/catalog"
	"github.com/prowisla/shop/internal/service/settings"
	"github.com/prowisla/shop/internal/util"
)

var (
	ErrValidation   = errors.New("validation")
	ErrInvalidState = errors.New("invalid state")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

const (
	orderNumberPrefix = "PRW"

	// Bounded retries against order-number collisions; the unique constraint
	// is the real guard, the generator only makes collisions unlikely.
	createAttempts = 3

	SettingFreeShippingThreshold = "shipping.free_threshold"
	SettingShippingFee           = "shipping.flat_fee"
	SettingCODFee                = "payment.cod_fee"

	PaymentMethodCOD = "cod"
)

var (
	defaultFreeShippingThreshold = decimal.RequireFromString("500")
	defaultShippingFee           = decimal.RequireFromString("29.99")
	defaultCODFee                = decimal.RequireFromString("9.90")
)

type Service struct {
	DB       *gorm.DB
	Cart     *cart.Service
	Catalog  *catalog.Service
	Settings *settings.Service
	Events   *events.Producer
	Metrics  *metrics.Metrics
}

type CheckoutInput struct {
	ShippingAddress models.Address
	BillingAddress  *models.Address
	PaymentMethod   string
	Notes           string
}

// GuestItem is a caller-supplied checkout line. The price is taken as given;
// only product existence is re-validated against the catalog.
type GuestItem struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
	Price     decimal.Decimal
}

// Checkout converts the user's cart into an order: snapshot every line,
// decrement stock, clear the cart. Order and item rows are written in one
// transaction; stock decrements happen after it and are not rolled back on
// failure — failed lines are flagged for operator reconciliation instead.
func (s *Service) Checkout(ctx context.Context, userID uuid.UUID, in CheckoutInput) (*models.Order, error) {
	c, err := s.Cart.GetOrCreate(ctx, cart.UserKey(userID))
	if err != nil {
		return nil, err
	}
	if len(c.Items) == 0 {
		return nil, fmt.Errorf("cart is empty: %w", ErrInvalidState)
	}

	items := make([]models.OrderItem, 0, len(c.Items))
	for _, line := range c.Items {
		product, err := s.Catalog.FindByID(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, fmt.Errorf("product %s no longer available: %w", line.ProductID, ErrNotFound)
			}
			return nil, err
		}
		items = append(items, models.OrderItem{
			ProductID:    line.ProductID,
			VariantID:    line.VariantID,
			ProductName:  product.Name,
			ProductImage: product.MainImage,
			Quantity:     line.Quantity,
			Price:        line.Price,
			TotalPrice:   line.TotalPrice,
		})
	}

	shipping := s.shippingCost(ctx, c.TotalAmount)
	order := &models.Order{
		UserID:          &userID,
		Items:           items,
		Subtotal:        c.TotalAmount,
		ShippingCost:    shipping,
		TotalAmount:     money.Sum(c.TotalAmount, shipping),
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		PaymentMethod:   in.PaymentMethod,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  billingOrShipping(in),
		Notes:           in.Notes,
	}

	if err := s.createWithUniqueNumber(ctx, order); err != nil {
		return nil, err
	}

	s.decrementStock(ctx, order)

	if _, err := s.Cart.Clear(ctx, cart.UserKey(userID)); err != nil {
		logging.FromContext(ctx).Error("cart clear after checkout failed",
			"order_number", order.OrderNumber, "error", err)
	}

	s.publishCreated(ctx, order, "user")
	return order, nil
}

// GuestCheckout builds an order from an explicit item list; there is no cart
// to clear. Cash-on-delivery adds a fixed surcharge.
func (s *Service) GuestCheckout(ctx context.Context, guestItems []GuestItem, in CheckoutInput) (*models.Order, error) {
	if len(guestItems) == 0 {
		return nil, fmt.Errorf("at least one item is required: %w", ErrInvalidState)
	}

	subtotal := decimal.Zero
	items := make([]models.OrderItem, 0, len(guestItems))
	for _, gi := range guestItems {
		if gi.Quantity < 1 {
			return nil, fmt.Errorf("quantity must be at least 1: %w", ErrValidation)
		}
		product, err := s.Catalog.FindByID(ctx, gi.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, fmt.Errorf("product %s not found: %w", gi.ProductID, ErrNotFound)
			}
			return nil, err
		}

		lineTotal := money.Line(gi.Price, gi.Quantity)
		subtotal = subtotal.Add(lineTotal)
		items = append(items, models.OrderItem{
			ProductID:    gi.ProductID,
			VariantID:    gi.VariantID,
			ProductName:  product.Name,
			ProductImage: product.MainImage,
			Quantity:     gi.Quantity,
			Price:        gi.Price.Round(2),
			TotalPrice:   lineTotal,
		})
	}

	shipping := s.shippingCost(ctx, subtotal)
	total := money.Sum(subtotal, shipping)
	if in.PaymentMethod == PaymentMethodCOD {
		total = money.Sum(total, s.Settings.GetDecimal(ctx, SettingCODFee, defaultCODFee))
	}

	order := &models.Order{
		Items:           items,
		Subtotal:        subtotal,
		ShippingCost:    shipping,
		TotalAmount:     total,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		PaymentMethod:   in.PaymentMethod,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  billingOrShipping(in),
		Notes:           in.Notes,
	}

	if err := s.createWithUniqueNumber(ctx, order); err != nil {
		return nil, err
	}

	s.decrementStock(ctx, order)

	s.publishCreated(ctx, order, "guest")
	return order, nil
}

// FindByID is owner-gated: a non-admin caller must match the order's owner.
// Guest orders (no owner) are accessible to any authenticated caller, since
// the payment flow needs them.
func (s *Service) FindByID(ctx context.Context, id uuid.UUID, requester *uuid.UUID, isAdmin bool) (*models.Order, error) {
	var order models.Order
	if err := s.DB.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order not found: %w", ErrNotFound)
		}
		return nil, err
	}

	if !isAdmin && order.UserID != nil {
		if requester == nil || *requester != *order.UserID {
			return nil, fmt.Errorf("order belongs to another user: %w", ErrUnauthorized)
		}
	}
	return &order, nil
}

// FindByOrderNumber is deliberately ungated: guest orders have no owner and
// must stay discoverable through the number handed to the customer.
func (s *Service) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).Preload("Items").First(&order, "order_number = ?", orderNumber).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order not found: %w", ErrNotFound)
		}
		return nil, err
	}
	return &order, nil
}

func (s *Service) ListMine(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := s.DB.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func (s *Service) ListAdmin(ctx context.Context, status models.OrderStatus, page, limit int) ([]models.Order, int64, error) {
	q := s.DB.WithContext(ctx).Model(&models.Order{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, size := util.Paginate(page, limit)
	var orders []models.Order
	err := q.Preload("Items").
		Order("created_at DESC").
		Offset(offset).Limit(size).
		Find(&orders).Error
	return orders, total, err
}

// UpdateStatus is admin tooling and accepts any known status for any order;
// no transition table is enforced so operators can correct missed steps.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	if !status.Known() {
		return nil, fmt.Errorf("unknown status %q: %w", status, ErrValidation)
	}

	order, err := s.FindByID(ctx, id, nil, true)
	if err != nil {
		return nil, err
	}
	order.Status = status
	if err := s.DB.WithContext(ctx).Model(order).Update("status", status).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// MarkPaid records a verified paid callback: payment status moves to paid and
// a pending order advances to confirmed in the same write, so confirmed
// fulfillment never precedes confirmed payment.
func (s *Service) MarkPaid(ctx context.Context, orderNumber, paymentID string) (*models.Order, error) {
	order, err := s.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	order.PaymentStatus = models.PaymentStatusPaid
	if paymentID != "" {
		order.PaymentID = paymentID
	}
	if order.Status == models.OrderStatusPending {
		order.Status = models.OrderStatusConfirmed
	}

	updates := map[string]any{
		"payment_status": order.PaymentStatus,
		"payment_id":     order.PaymentID,
		"status":         order.Status,
	}
	if err := s.DB.WithContext(ctx).Model(order).Updates(updates).Error; err != nil {
		return nil, err
	}

	if err := s.Events.Publish(ctx, events.TopicPayment, order.OrderNumber, map[string]any{
		"type":         "payment_received",
		"order_number": order.OrderNumber,
		"payment_id":   order.PaymentID,
		"amount":       order.TotalAmount,
	}); err != nil {
		logging.FromContext(ctx).Error("publish payment_received failed", "error", err)
	}
	return order, nil
}

// AddTracking sets shipped unconditionally; operators use it to correct
// missed transitions.
func (s *Service) AddTracking(ctx context.Context, id uuid.UUID, trackingNumber, shippingCompany string) (*models.Order, error) {
	if trackingNumber == "" {
		return nil, fmt.Errorf("tracking number required: %w", ErrValidation)
	}

	order, err := s.FindByID(ctx, id, nil, true)
	if err != nil {
		return nil, err
	}
	order.TrackingNumber = trackingNumber
	order.ShippingCompany = shippingCompany
	order.Status = models.OrderStatusShipped

	updates := map[string]any{
		"tracking_number":  trackingNumber,
		"shipping_company": shippingCompany,
		"status":           models.OrderStatusShipped,
	}
	if err := s.DB.WithContext(ctx).Model(order).Updates(updates).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// createWithUniqueNumber writes the order and its item snapshots in one
// transaction. The unique constraint on order_number is the collision guard;
// a duplicate gets a fresh number, and exhausted attempts surface as a
// retryable conflict.
func (s *Service) createWithUniqueNumber(ctx context.Context, order *models.Order) error {
	for attempt := 0; attempt < createAttempts; attempt++ {
		order.OrderNumber = generateOrderNumber()
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Create(order).Error
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			order.ID = uuid.Nil
			for i := range order.Items {
				order.Items[i].ID = uuid.Nil
				order.Items[i].OrderID = uuid.Nil
			}
			continue
		}
		return err
	}
	return fmt.Errorf("order number collision persisted: %w", ErrConflict)
}

// decrementStock runs after the order exists. Failures do not roll the order
// back; each failed line is logged, counted and published so an operator can
// reconcile it.
func (s *Service) decrementStock(ctx context.Context, order *models.Order) {
	l := logging.FromContext(ctx)
	for _, item := range order.Items {
		err := s.Catalog.DecrementStock(ctx, item.ProductID, item.Quantity)
		if err == nil {
			continue
		}

		l.Error("stock decrement failed after order creation",
			"order_number", order.OrderNumber,
			"product_id", item.ProductID,
			"quantity", item.Quantity,
			"error", err)
		if s.Metrics != nil {
			s.Metrics.StockDecrementFailures.Inc()
		}
		if err := s.Events.Publish(ctx, events.TopicOrder, order.OrderNumber, map[string]any{
			"type":         "stock_decrement_failed",
			"order_number": order.OrderNumber,
			"product_id":   item.ProductID,
			"quantity":     item.Quantity,
		}); err != nil {
			l.Error("publish stock_decrement_failed failed", "error", err)
		}
	}
}

func (s *Service) publishCreated(ctx context.Context, order *models.Order, kind string) {
	if s.Metrics != nil {
		s.Metrics.OrdersCreated.WithLabelValues(kind).Inc()
	}
	if err := s.Events.Publish(ctx, events.TopicOrder, order.OrderNumber, map[string]any{
		"type":         "order_created",
		"order_number": order.OrderNumber,
		"kind":         kind,
		"total":        order.TotalAmount,
		"item_count":   len(order.Items),
	}); err != nil {
		logging.FromContext(ctx).Error("publish order_created failed", "error", err)
	}
}

func (s *Service) shippingCost(ctx context.Context, subtotal decimal.Decimal) decimal.Decimal {
	threshold := s.Settings.GetDecimal(ctx, SettingFreeShippingThreshold, defaultFreeShippingThreshold)
	if subtotal.GreaterThanOrEqual(threshold) {
		return decimal.Zero
	}
	return s.Settings.GetDecimal(ctx, SettingShippingFee, defaultShippingFee)
}

func billingOrShipping(in CheckoutInput) models.Address {
	if in.BillingAddress != nil {
		return *in.BillingAddress
	}
	return in.ShippingAddress
}

// generateOrderNumber builds a short human-legible token: store tag, base-36
// millisecond timestamp, base-36 random suffix. Uniqueness is enforced by the
// database, not here.
func generateOrderNumber() string {
	ts := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))

	const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	suffix := make([]byte, 4)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			// crypto/rand failing is unrecoverable for request handling;
			// fall back to a timestamp-derived digit instead of panicking.
			suffix[i] = alphabet[time.Now().UnixNano()%int64(len(alphabet))]
			continue
		}
		suffix[i] = alphabet[n.Int64()]
	}
	return fmt.Sprintf("%s-%s-%s", orderNumberPrefix, ts, suffix)
}
