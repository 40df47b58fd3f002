package cart

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/prowisla/shop/internal/models"
	authmw "github.com/prowisla/shop/internal/middleware/auth"
	cartsvc "github.com/prowisla/shop/internal/service/cart"
	"github.com/prowisla/shop/internal/service/catalog"
)

func newTestHandler(t *testing.T) (*Handler, *gorm.DB, *echo.Echo) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{}, &models.Cart{}, &models.CartItem{},
	))

	svc := &cartsvc.Service{DB: db, Catalog: &catalog.Service{DB: db}}
	return &Handler{Svc: svc}, db, echo.New()
}

func seedProduct(t *testing.T, db *gorm.DB, price string) *models.Product {
	t.Helper()

	p := models.Product{
		Name:    "Kolye",
		Price:   decimal.RequireFromString(price),
		Stock:   10,
		InStock: true,
	}
	require.NoError(t, db.Create(&p).Error)
	return &p
}

func jsonRequest(e *echo.Echo, method, target, body, sessionID string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if sessionID != "" {
		req.Header.Set(authmw.SessionHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestGetCartRequiresOwner(t *testing.T) {
	h, _, e := newTestHandler(t)

	c, _ := jsonRequest(e, http.MethodGet, "/api/v1/cart", "", "")
	err := h.GetCart(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestGetCartForGuestSession(t *testing.T) {
	h, _, e := newTestHandler(t)

	c, rec := jsonRequest(e, http.MethodGet, "/api/v1/cart", "", "sess-1")
	require.NoError(t, h.GetCart(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"items"`)
}

func TestAddItemDefaultsQuantityToOne(t *testing.T) {
	h, db, e := newTestHandler(t)
	p := seedProduct(t, db, "25.00")

	c, rec := jsonRequest(e, http.MethodPost, "/api/v1/cart/items",
		`{"product_id":"`+p.ID.String()+`"}`, "sess-1")
	require.NoError(t, h.AddItem(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"item_count":1`)
}

func TestAddItemUnknownProductIs404(t *testing.T) {
	h, _, e := newTestHandler(t)

	c, _ := jsonRequest(e, http.MethodPost, "/api/v1/cart/items",
		`{"product_id":"`+uuid.NewString()+`","quantity":1}`, "sess-1")
	err := h.AddItem(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusNotFound, httpErr.Code)
}

func TestAuthenticatedUserIgnoresSessionHeader(t *testing.T) {
	h, db, e := newTestHandler(t)
	p := seedProduct(t, db, "10.00")
	userID := uuid.New()

	// Both identities present: the cart belongs to the user, not the session.
	c, _ := jsonRequest(e, http.MethodPost, "/api/v1/cart/items",
		`{"product_id":"`+p.ID.String()+`","quantity":1}`, "sess-1")
	c.Set("user_id", userID)
	require.NoError(t, h.AddItem(c))

	var userCart models.Cart
	require.NoError(t, db.First(&userCart, "user_id = ?", userID).Error)

	var sessionCart models.Cart
	err := db.First(&sessionCart, "session_id = ?", "sess-1").Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUpdateItemQuantityInvalidID(t *testing.T) {
	h, _, e := newTestHandler(t)

	c, _ := jsonRequest(e, http.MethodPut, "/api/v1/cart/items/not-a-uuid",
		`{"quantity":2}`, "sess-1")
	c.SetParamNames("itemId")
	c.SetParamValues("not-a-uuid")
	err := h.UpdateItemQuantity(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestMergeRequiresAuthentication(t *testing.T) {
	h, _, e := newTestHandler(t)

	c, _ := jsonRequest(e, http.MethodPost, "/api/v1/cart/merge", "", "sess-1")
	err := h.Merge(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestMergeRequiresSessionHeader(t *testing.T) {
	h, _, e := newTestHandler(t)

	c, _ := jsonRequest(e, http.MethodPost, "/api/v1/cart/merge", "", "")
	c.Set("user_id", uuid.New())
	err := h.Merge(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestMergeFoldsGuestCartIntoUserCart(t *testing.T) {
	h, db, e := newTestHandler(t)
	p := seedProduct(t, db, "10.00")
	userID := uuid.New()

	c, _ := jsonRequest(e, http.MethodPost, "/api/v1/cart/items",
		`{"product_id":"`+p.ID.String()+`","quantity":2}`, "sess-merge")
	require.NoError(t, h.AddItem(c))

	c, rec := jsonRequest(e, http.MethodPost, "/api/v1/cart/merge", "", "sess-merge")
	c.Set("user_id", userID)
	require.NoError(t, h.Merge(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"item_count":2`)
}
