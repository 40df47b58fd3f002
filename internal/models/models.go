package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

func (s OrderStatus) Known() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"     json:"id"`
	Email        string    `gorm:"uniqueIndex;not null"     json:"email"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Role         string    `gorm:"not null;default:user"    json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type Product struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey"       json:"id"`
	Name        string           `gorm:"not null"                   json:"name"`
	Description string           `json:"description"`
	Price       decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"price"`
	SalePrice   *decimal.Decimal `gorm:"type:decimal(10,2)"          json:"sale_price,omitempty"`
	Stock       int              `gorm:"not null;default:0"          json:"stock"`
	InStock     bool             `gorm:"not null;default:true"       json:"in_stock"`
	MainImage   string           `json:"main_image"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// CurrentPrice is the price captured into a cart line at add time: the sale
// price when one is set, the list price otherwise.
func (p *Product) CurrentPrice() decimal.Decimal {
	if p.SalePrice != nil && p.SalePrice.IsPositive() {
		return *p.SalePrice
	}
	return p.Price
}

// Cart belongs to exactly one owner: a registered user or an anonymous
// session. TotalAmount and ItemCount are caches, recomputed from the current
// line items after every mutation and never written independently.
type Cart struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"        json:"id"`
	UserID      *uuid.UUID      `gorm:"type:uuid;uniqueIndex"       json:"user_id,omitempty"`
	SessionID   *string         `gorm:"uniqueIndex"                 json:"session_id,omitempty"`
	Items       []CartItem      `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"total_amount"`
	ItemCount   int             `gorm:"not null;default:0"          json:"item_count"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CartItem captures Price at add time; later catalog re-pricing does not
// touch existing lines. At most one line exists per (cart, product, variant).
type CartItem struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"                                 json:"id"`
	CartID     uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_cart_line"   json:"cart_id"`
	ProductID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_cart_line"         json:"product_id"`
	VariantID  *uuid.UUID      `gorm:"type:uuid;uniqueIndex:idx_cart_line"                  json:"variant_id,omitempty"`
	Quantity   int             `gorm:"not null;check:quantity > 0"                          json:"quantity"`
	Price      decimal.Decimal `gorm:"type:decimal(10,2);not null"                          json:"price"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(10,2);not null"                          json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (i *CartItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

type Address struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	District   string `json:"district"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
}

// Order business facts (number, address snapshot, items, amounts) are fixed
// at creation. Only Status, PaymentStatus, PaymentID, TrackingNumber and
// ShippingCompany change afterwards. A nil UserID marks a guest order, which
// stays reachable through its OrderNumber.
type Order struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"        json:"id"`
	OrderNumber     string          `gorm:"uniqueIndex;not null"        json:"order_number"`
	UserID          *uuid.UUID      `gorm:"type:uuid;index"             json:"user_id,omitempty"`
	Items           []OrderItem     `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	ShippingCost    decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"shipping_cost"`
	Discount        decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"discount"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	Status          OrderStatus     `gorm:"not null;default:pending"    json:"status"`
	PaymentStatus   PaymentStatus   `gorm:"not null;default:pending"    json:"payment_status"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentID       string          `json:"payment_id,omitempty"`
	ShippingAddress Address         `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	BillingAddress  Address         `gorm:"embedded;embeddedPrefix:billing_"  json:"billing_address"`
	TrackingNumber  string          `json:"tracking_number,omitempty"`
	ShippingCompany string          `json:"shipping_company,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	AdminNotes      string          `json:"admin_notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem is a snapshot of a purchased line. ProductID is a plain column,
// not an association: deleting or editing the catalog entry later must not
// alter historical order content.
type OrderItem struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"        json:"id"`
	OrderID      uuid.UUID       `gorm:"type:uuid;not null;index"    json:"order_id"`
	ProductID    uuid.UUID       `gorm:"type:uuid;not null"          json:"product_id"`
	VariantID    *uuid.UUID      `gorm:"type:uuid"                   json:"variant_id,omitempty"`
	ProductName  string          `gorm:"not null"                    json:"product_name"`
	VariantName  string          `json:"variant_name,omitempty"`
	ProductImage string          `json:"product_image,omitempty"`
	Quantity     int             `gorm:"not null"                    json:"quantity"`
	Price        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	TotalPrice   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_price"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

type Setting struct {
	ID        uint      `gorm:"primaryKey"          json:"id"`
	Key       string    `gorm:"uniqueIndex;not null" json:"key"`
	Value     string    `gorm:"not null"             json:"value"`
	Group     string    `gorm:"index"                json:"group"`
	UpdatedAt time.Time `json:"updated_at"`
}
