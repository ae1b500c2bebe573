package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"bizrent_ledger/internal/app"
	"bizrent_ledger/internal/config"
	"bizrent_ledger/internal/handlers"
	"bizrent_ledger/internal/middleware"
	"bizrent_ledger/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()

	// Run auto-migration
	if err := services.AutoMigrate(a.DB); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewValidator()
	e.HTTPErrorHandler = middleware.ErrorHandler

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())
	e.Use(echoMiddleware.BodyLimit(bodyLimit(cfg.MaxProofSize)))

	if cfg.StorageDriver == "local" {
		e.Static("/uploads", cfg.UploadDir)
	}

	// Initialize handlers
	h := handlers.Handlers{
		Auth:        handlers.NewAuthHandler(services.NewAccountService(a.DB, a.Tokens)),
		Preferences: handlers.NewUserPreferenceHandler(services.NewPreferenceService(a.DB)),
		Dashboard:   handlers.NewDashboardHandler(a.Ledger, a.Cache),
		Invoices:    handlers.NewInvoiceHandler(a.Ledger),
		Payments:    handlers.NewPaymentHandler(a.Ledger, a.Cache, cfg.MaxProofSize),
		Properties:  handlers.NewPropertyHandler(a.Ledger),
		Users:       handlers.NewUserHandler(a.Ledger),
		Public:      handlers.NewPublicHandler(a.Ledger, a.DB),
	}
	handlers.RegisterRoutes(e, h, a.Auth)

	go func() {
		log.Infof("Server starting on port %s", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Graceful shutdown failed: %v", err)
	}
}

// bodyLimit leaves room for the multipart envelope around a proof upload
func bodyLimit(maxProof int64) string {
	mb := maxProof/(1024*1024) + 1
	return strconv.FormatInt(mb, 10) + "M"
}
