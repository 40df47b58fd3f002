package order

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/prowisla/shop/internal/logging"
	authmw "github.com/prowisla/shop/internal/middleware/auth"
	"github.com/prowisla/shop/internal/models"
	ordersvc "github.com/prowisla/shop/internal/service/order"
)

type Handler struct {
	Svc *ordersvc.Service
}

type addressRequest struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	District   string `json:"district"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
}

func (a addressRequest) toModel() models.Address {
	return models.Address(a)
}

type createOrderRequest struct {
	ShippingAddress addressRequest  `json:"shipping_address"`
	BillingAddress  *addressRequest `json:"billing_address,omitempty"`
	PaymentMethod   string          `json:"payment_method"`
	Notes           string          `json:"notes"`
}

type guestItemRequest struct {
	ProductID uuid.UUID       `json:"product_id"`
	VariantID *uuid.UUID      `json:"variant_id,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type createGuestOrderRequest struct {
	createOrderRequest
	Items []guestItemRequest `json:"items"`
}

func (r createOrderRequest) checkoutInput() ordersvc.CheckoutInput {
	in := ordersvc.CheckoutInput{
		ShippingAddress: r.ShippingAddress.toModel(),
		PaymentMethod:   r.PaymentMethod,
		Notes:           r.Notes,
	}
	if r.BillingAddress != nil {
		billing := r.BillingAddress.toModel()
		in.BillingAddress = &billing
	}
	return in
}

func (h *Handler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create")

	userID, ok := authmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_order_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	order, err := h.Svc.Checkout(ctx, userID, req.checkoutInput())
	if err != nil {
		l.Warn("create_order_error", "error", err)
		return httpError(err)
	}

	l.Info("create_order_success", "order_number", order.OrderNumber)
	return c.JSON(http.StatusCreated, order)
}

func (h *Handler) CreateGuest(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_guest")

	var req createGuestOrderRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_guest_order_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	items := make([]ordersvc.GuestItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, ordersvc.GuestItem{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}

	order, err := h.Svc.GuestCheckout(ctx, items, req.checkoutInput())
	if err != nil {
		l.Warn("create_guest_order_error", "error", err)
		return httpError(err)
	}

	l.Info("create_guest_order_success", "order_number", order.OrderNumber)
	return c.JSON(http.StatusCreated, order)
}

func (h *Handler) ListMine(c echo.Context) error {
	userID, ok := authmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	orders, err := h.Svc.ListMine(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *Handler) GetByID(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	var requester *uuid.UUID
	if userID, ok := authmw.UserID(c); ok {
		requester = &userID
	}
	isAdmin := authmw.Role(c) == "admin"

	order, err := h.Svc.FindByID(c.Request().Context(), id, requester, isAdmin)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, order)
}

// GetByOrderNumber is open on purpose: guest orders carry no owner and the
// post-payment redirect looks them up by number.
func (h *Handler) GetByOrderNumber(c echo.Context) error {
	order, err := h.Svc.FindByOrderNumber(c.Request().Context(), c.Param("orderNumber"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *Handler) AdminList(c echo.Context) error {
	status := models.OrderStatus(c.QueryParam("status"))
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	orders, total, err := h.Svc.ListAdmin(c.Request().Context(), status, page, limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"orders": orders,
		"total":  total,
	})
}

func (h *Handler) AdminUpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	var req struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	order, err := h.Svc.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *Handler) AdminAddTracking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	var req struct {
		TrackingNumber  string `json:"tracking_number"`
		ShippingCompany string `json:"shipping_company"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	order, err := h.Svc.AddTracking(c.Request().Context(), id, req.TrackingNumber, req.ShippingCompany)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, order)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ordersvc.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ordersvc.ErrInvalidState), errors.Is(err, ordersvc.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ordersvc.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ordersvc.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
