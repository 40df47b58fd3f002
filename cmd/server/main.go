package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/prowisla/shop/internal/config"
	"github.com/prowisla/shop/internal/db"
	"github.com/prowisla/shop/internal/events"
	authhandler "github.com/prowisla/shop/internal/handlers/auth"
	carthandler "github.com/prowisla/shop/internal/handlers/cart"
	orderhandler "github.com/prowisla/shop/internal/handlers/order"
	paymenthandler "github.com/prowisla/shop/internal/handlers/payment"
	"github.com/prowisla/shop/internal/logging"
	"github.com/prowisla/shop/internal/metrics"
	authmw "github.com/prowisla/shop/internal/middleware/auth"
	loggingmw "github.com/prowisla/shop/internal/middleware/logging"
	"github.com/prowisla/shop/internal/payment"
	cartsvc "github.com/prowisla/shop/internal/service/cart"
	"github.com/prowisla/shop/internal/service/catalog"
	ordersvc "github.com/prowisla/shop/internal/service/order"
	"github.com/prowisla/shop/internal/service/settings"
	httpserver "github.com/prowisla/shop/internal/transport/http"
)

func main() {
	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTSecret, "JWT_SECRET")

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()
	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	producer := events.NewProducer(cfg.KafkaBrokers)
	m := metrics.New()

	catalogSvc := &catalog.Service{DB: database}
	settingsSvc := &settings.Service{DB: database}
	cartService := &cartsvc.Service{DB: database, Catalog: catalogSvc}
	orderService := &ordersvc.Service{
		DB:       database,
		Cart:     cartService,
		Catalog:  catalogSvc,
		Settings: settingsSvc,
		Events:   producer,
		Metrics:  m,
	}
	gateway := &payment.Gateway{
		APIKey:      cfg.ShopierAPIKey,
		APISecret:   cfg.ShopierAPISecret,
		CallbackURL: cfg.ShopierCallbackURL,
	}

	jwtMW := &authmw.JWT{Secret: cfg.JWTSecret}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger, m))

	deps := httpserver.Deps{
		JWT:         jwtMW,
		AuthHandler: &authhandler.Handler{DB: database, JWTSecret: cfg.JWTSecret},
		CartHandler: &carthandler.Handler{Svc: cartService, Producer: producer},
		OrderHandler: &orderhandler.Handler{
			Svc: orderService,
		},
		PaymentHandler: &paymenthandler.Handler{
			Gateway:     gateway,
			Orders:      orderService,
			FrontendURL: cfg.FrontendURL,
			Metrics:     m,
		},
		Metrics: m,
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	logger.Info("server started", "port", cfg.ServerPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := database.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}

	if err := producer.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}

	logger.Info("shutdown complete")
}
