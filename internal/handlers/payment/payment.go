// Package payment exposes the gateway endpoints: payment form creation, the
// provider's dual callback receivers, and the public methods listing. The
// callback handlers reconcile verified results against orders and always
// answer the provider with a redirect, never an error.
package payment

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/prowisla/shop/internal/logging"
	"github.com/prowisla/shop/internal/metrics"
	authmw "github.com/prowisla/shop/internal/middleware/auth"
	"github.com/prowisla/shop/internal/payment"
	ordersvc "github.com/prowisla/shop/internal/service/order"
)

type Handler struct {
	Gateway     *payment.Gateway
	Orders      *ordersvc.Service
	FrontendURL string
	Metrics     *metrics.Metrics
}

type createPaymentRequest struct {
	OrderID uuid.UUID `json:"order_id"`
}

// CreateShopierPayment builds the signed form for an order the caller may
// pay: their own order, or a guest order (which has no owner to check).
func (h *Handler) CreateShopierPayment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.create")

	if !h.Gateway.Enabled() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "payment provider not configured")
	}

	userID, ok := authmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var req createPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	order, err := h.Orders.FindByID(ctx, req.OrderID, &userID, false)
	if err != nil {
		switch {
		case errors.Is(err, ordersvc.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		case errors.Is(err, ordersvc.ErrUnauthorized):
			return echo.NewHTTPError(http.StatusForbidden, "order belongs to another user")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	buyerEmail := order.ShippingAddress.Email
	if buyerEmail == "" {
		buyerEmail = "guest@prowisla.com"
	}
	postalCode := order.ShippingAddress.PostalCode
	if postalCode == "" {
		postalCode = "00000"
	}

	address := payment.Address{
		Address:    order.ShippingAddress.Address,
		City:       order.ShippingAddress.City,
		Country:    "Türkiye",
		PostalCode: postalCode,
	}
	form := h.Gateway.BuildPaymentForm(payment.FormRequest{
		Buyer: payment.Buyer{
			ID:        userID.String(),
			FirstName: order.ShippingAddress.FirstName,
			LastName:  order.ShippingAddress.LastName,
			Email:     buyerEmail,
			Phone:     order.ShippingAddress.Phone,
		},
		BillingAddress:  address,
		ShippingAddress: address,
		Order: payment.OrderInfo{
			OrderNumber: order.OrderNumber,
			Amount:      order.TotalAmount,
			Currency:    "TRY",
		},
		Product: payment.ProductInfo{
			Name: fmt.Sprintf("Prowisla Sipariş #%s", order.OrderNumber),
			Type: 0,
		},
	})

	l.Info("payment_form_created", "order_number", order.OrderNumber)
	return c.JSON(http.StatusOK, map[string]any{
		"success":     true,
		"form_html":   form.FormHTML,
		"payment_url": form.PaymentURL,
		"form_data":   form.FormData,
	})
}

// Callback receives the provider's POST with a form body.
func (h *Handler) Callback(c echo.Context) error {
	params, err := c.FormParams()
	if err != nil {
		params = url.Values{}
	}
	return h.handleCallback(c, params)
}

// CallbackGet handles the provider quirk of sending the same callback via
// GET query parameters; both entry points reduce to one verification path.
func (h *Handler) CallbackGet(c echo.Context) error {
	return h.handleCallback(c, c.QueryParams())
}

func (h *Handler) handleCallback(c echo.Context, params url.Values) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.callback")

	result := h.Gateway.VerifyCallback(params)
	if !result.Valid {
		l.Warn("callback rejected", "reason", "invalid_signature")
		h.count("invalid")
		return h.redirectFailure(c, "", "invalid_signature")
	}

	if result.Status != payment.StatusPaid {
		l.Info("callback reported failed payment", "order_number", result.OrderNumber)
		h.count("failed")
		return h.redirectFailure(c, result.OrderNumber, "payment_failed")
	}

	order, err := h.Orders.MarkPaid(ctx, result.OrderNumber, result.PaymentID)
	if err != nil {
		l.Error("callback reconciliation failed", "order_number", result.OrderNumber, "error", err)
		h.count("error")
		return h.redirectFailure(c, result.OrderNumber, "processing_error")
	}

	l.Info("payment confirmed", "order_number", order.OrderNumber, "payment_id", result.PaymentID)
	h.count("paid")

	q := url.Values{}
	q.Set("order", order.OrderNumber)
	q.Set("payment", result.PaymentID)
	return c.Redirect(http.StatusFound, h.FrontendURL+"/odeme/basarili?"+q.Encode())
}

func (h *Handler) redirectFailure(c echo.Context, orderNumber, reason string) error {
	q := url.Values{}
	if orderNumber != "" {
		q.Set("order", orderNumber)
	}
	q.Set("reason", reason)
	return c.Redirect(http.StatusFound, h.FrontendURL+"/odeme/basarisiz?"+q.Encode())
}

func (h *Handler) count(outcome string) {
	if h.Metrics != nil {
		h.Metrics.PaymentCallbacks.WithLabelValues(outcome).Inc()
	}
}

// Methods lists the payment options the storefront can offer; the card
// option depends on provider credentials being configured.
func (h *Handler) Methods(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"methods": []map[string]any{
			{
				"id":          "shopier",
				"name":        "Kredi/Banka Kartı (Shopier)",
				"description": "Güvenli ödeme ile kredi veya banka kartınızla ödeyin",
				"icon":        "credit-card",
				"enabled":     h.Gateway.Enabled(),
			},
			{
				"id":          "bank_transfer",
				"name":        "Havale/EFT",
				"description": "Banka havalesi ile ödeme yapın",
				"icon":        "bank",
				"enabled":     true,
			},
			{
				"id":          "cod",
				"name":        "Kapıda Ödeme",
				"description": "Teslimat sırasında nakit veya kart ile ödeyin",
				"icon":        "truck",
				"enabled":     true,
			},
		},
	})
}
