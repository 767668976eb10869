package main

import (
	"context"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hstoff/storefront/config"
	"github.com/hstoff/storefront/internal/auth"
	handler "github.com/hstoff/storefront/internal/handler/http"
	"github.com/hstoff/storefront/internal/invoice"
	"github.com/hstoff/storefront/internal/mailer"
	"github.com/hstoff/storefront/internal/middleware"
	"github.com/hstoff/storefront/internal/payment"
	"github.com/hstoff/storefront/internal/repository"
	"github.com/hstoff/storefront/internal/repository/postgres"
	"github.com/hstoff/storefront/internal/service"
	"github.com/hstoff/storefront/internal/worker"
)

// newLogger creates logger with log level
func newLogger(level string) (*zap.Logger, error) {

	loggerLvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	loggerCfg := zap.NewProductionConfig()
	loggerCfg.Level = loggerLvl

	return loggerCfg.Build()
}

func main() {

	// create new config
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// initialize logger
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer logger.Sync()

	// create context cancelled on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// initialize database
	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("Error initializing database", zap.Error(err))
	}
	defer db.Close()

	// migrate database
	if err := db.Migrate(); err != nil {
		logger.Fatal("Error migrating database", zap.Error(err))
	}

	tokenKey, err := hex.DecodeString(cfg.AuthTokenKey)
	if err != nil {
		logger.Fatal("Error extracting token key", zap.Error(err))
	}
	token := auth.NewAuthToken(tokenKey)

	// dependency injection
	orderRepo := repository.NewOrderRepository(db, cfg.IdempotencyWindow)

	renderer := invoice.New(cfg.InvoiceDir, invoice.DefaultMerchant(), logger)

	orderMailer := mailer.New(mailer.Config{
		Host:      cfg.SMTPHost,
		Port:      cfg.SMTPPort,
		User:      cfg.SMTPUser,
		Password:  cfg.SMTPPassword,
		From:      cfg.ShopEmail,
		ShopEmail: cfg.ShopEmail,
	}, logger)

	gateway := payment.NewClient(payment.Config{
		BaseURL:      cfg.PayPalBaseURL,
		ClientID:     cfg.PayPalClientID,
		ClientSecret: cfg.PayPalClientSecret,
		FrontendURL:  cfg.FrontendURL,
		Timeout:      cfg.GatewayTimeout,
	}, logger)

	// checkout
	checkoutService := service.NewCheckoutService(orderRepo, renderer, orderMailer, gateway, logger)
	checkoutHandler := handler.NewCheckoutHandler(checkoutService)

	// admin
	adminService := service.NewAdminService(orderRepo, orderMailer, checkoutService, logger)
	adminHandler := handler.NewAdminHandler(adminService)

	// auth
	authService := service.NewAuthService(cfg.AdminUser, cfg.AdminPasswordHash, token)
	authHandler := handler.NewAuthHandler(authService)

	router := chi.NewRouter()

	router.Use(middleware.Logging(logger))

	router.Post("/api/checkout", checkoutHandler.SubmitCheckout())
	router.Post("/api/checkout/capture/{orderNumber}", checkoutHandler.CaptureCheckout())
	router.Get("/api/checkout/order/{orderNumber}", checkoutHandler.GetOrder())
	router.Post("/api/auth/login", authHandler.Login())

	// routes that require authentication
	router.Group(func(group chi.Router) {
		group.Use(middleware.Auth(token))
		group.Get("/api/orders/admin", adminHandler.ListOrders())
		group.Get("/api/orders/admin/{orderNumber}", adminHandler.GetOrder())
		group.Patch("/api/orders/admin/{orderNumber}", adminHandler.UpdateOrder())
		group.Get("/api/orders/admin/{orderNumber}/invoice", adminHandler.GetInvoice())
	})

	// background reconciliation of indeterminate payments
	reconciler := worker.NewPaymentReconciler(checkoutService, cfg.ReconcileInterval, cfg.ReconcileMinAge, logger)
	go reconciler.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: router,
	}

	go func() {
		logger.Info("Running server", zap.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Error starting server", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down server", zap.Error(err))
	}
}
