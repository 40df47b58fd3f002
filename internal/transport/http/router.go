package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/prowisla/shop/internal/handlers/auth"
	"github.com/prowisla/shop/internal/handlers/cart"
	"github.com/prowisla/shop/internal/handlers/order"
	"github.com/prowisla/shop/internal/handlers/payment"
	"github.com/prowisla/shop/internal/metrics"
	authmw "github.com/prowisla/shop/internal/middleware/auth"
)

type Deps struct {
	JWT            *authmw.JWT
	AuthHandler    *auth.Handler
	CartHandler    *cart.Handler
	OrderHandler   *order.Handler
	PaymentHandler *payment.Handler
	Metrics        *metrics.Metrics
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)

	// Cart endpoints serve guests (session header) and users alike.
	cartGroup := v1.Group("/cart", d.JWT.Optional)
	cartGroup.GET("", d.CartHandler.GetCart)
	cartGroup.POST("/items", d.CartHandler.AddItem)
	cartGroup.PUT("/items/:itemId", d.CartHandler.UpdateItemQuantity)
	cartGroup.DELETE("/items/:itemId", d.CartHandler.RemoveItem)
	cartGroup.DELETE("", d.CartHandler.Clear)
	cartGroup.POST("/merge", d.CartHandler.Merge, d.JWT.Require)

	orders := v1.Group("/orders")
	orders.POST("", d.OrderHandler.Create, d.JWT.Require)
	orders.POST("/guest", d.OrderHandler.CreateGuest)
	orders.GET("", d.OrderHandler.ListMine, d.JWT.Require)
	orders.GET("/number/:orderNumber", d.OrderHandler.GetByOrderNumber)
	orders.GET("/:id", d.OrderHandler.GetByID, d.JWT.Require)

	admin := v1.Group("/admin", d.JWT.AdminOnly)
	admin.GET("/orders", d.OrderHandler.AdminList)
	admin.PUT("/orders/:id/status", d.OrderHandler.AdminUpdateStatus)
	admin.PUT("/orders/:id/tracking", d.OrderHandler.AdminAddTracking)

	payments := v1.Group("/payments")
	payments.POST("/shopier/create", d.PaymentHandler.CreateShopierPayment, d.JWT.Require)
	payments.POST("/shopier/callback", d.PaymentHandler.Callback)
	payments.GET("/shopier/callback", d.PaymentHandler.CallbackGet)
	payments.GET("/methods", d.PaymentHandler.Methods)
}
