package cart

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/prowisla/shop/internal/events"
	"github.com/prowisla/shop/internal/logging"
	authmw "github.com/prowisla/shop/internal/middleware/auth"
	cartsvc "github.com/prowisla/shop/internal/service/cart"
)

type Handler struct {
	Svc      *cartsvc.Service
	Producer *events.Producer
}

type addItemRequest struct {
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int        `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// ownerKey resolves the cart owner from the request: the authenticated user
// when present, the guest session header otherwise.
func ownerKey(c echo.Context) (cartsvc.OwnerKey, error) {
	if userID, ok := authmw.UserID(c); ok {
		return cartsvc.UserKey(userID), nil
	}
	if sid := authmw.SessionID(c); sid != "" {
		return cartsvc.SessionKey(sid), nil
	}
	return cartsvc.OwnerKey{}, echo.NewHTTPError(http.StatusBadRequest, "session id required")
}

func (h *Handler) GetCart(c echo.Context) error {
	key, err := ownerKey(c)
	if err != nil {
		return err
	}

	cart, err := h.Svc.GetOrCreate(c.Request().Context(), key)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *Handler) AddItem(c echo.Context) error {
	key, err := ownerKey(c)
	if err != nil {
		return err
	}

	var req addItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	ctx := c.Request().Context()
	cart, err := h.Svc.AddItem(ctx, key, req.ProductID, req.VariantID, req.Quantity)
	if err != nil {
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":       "cart_item_added",
		"cart_id":    cart.ID,
		"product_id": req.ProductID,
		"quantity":   req.Quantity,
	})
	return c.JSON(http.StatusOK, cart)
}

func (h *Handler) UpdateItemQuantity(c echo.Context) error {
	key, err := ownerKey(c)
	if err != nil {
		return err
	}

	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}

	var req updateQuantityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	cart, err := h.Svc.UpdateItemQuantity(c.Request().Context(), key, itemID, req.Quantity)
	if err != nil {
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":     "cart_item_updated",
		"cart_id":  cart.ID,
		"item_id":  itemID,
		"quantity": req.Quantity,
	})
	return c.JSON(http.StatusOK, cart)
}

func (h *Handler) RemoveItem(c echo.Context) error {
	key, err := ownerKey(c)
	if err != nil {
		return err
	}

	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}

	cart, err := h.Svc.RemoveItem(c.Request().Context(), key, itemID)
	if err != nil {
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":    "cart_item_removed",
		"cart_id": cart.ID,
		"item_id": itemID,
	})
	return c.JSON(http.StatusOK, cart)
}

func (h *Handler) Clear(c echo.Context) error {
	key, err := ownerKey(c)
	if err != nil {
		return err
	}

	cart, err := h.Svc.Clear(c.Request().Context(), key)
	if err != nil {
		return httpError(err)
	}

	h.publish(c, map[string]any{"type": "cart_cleared", "cart_id": cart.ID})
	return c.JSON(http.StatusOK, cart)
}

// Merge folds the guest session cart into the authenticated user's cart.
func (h *Handler) Merge(c echo.Context) error {
	userID, ok := authmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	sid := authmw.SessionID(c)
	if sid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id required")
	}

	cart, err := h.Svc.MergeGuest(c.Request().Context(), sid, userID)
	if err != nil {
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":    "cart_merged",
		"cart_id": cart.ID,
		"user_id": userID,
	})
	return c.JSON(http.StatusOK, cart)
}

func (h *Handler) publish(c echo.Context, event map[string]any) {
	ctx := c.Request().Context()
	if err := h.Producer.Publish(ctx, events.TopicCart, c.RealIP(), event); err != nil {
		logging.FromContext(ctx).Error("publish cart event failed", "error", err)
	}
}

func httpError(err error) error {
	switch {
	case errors.Is(err, cartsvc.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, cartsvc.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
