package app

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"github.com/labstack/gommon/log"
	"gorm.io/gorm"

	"bizrent_ledger/internal/config"
	"bizrent_ledger/internal/ledger"
	"bizrent_ledger/internal/middleware"
	"bizrent_ledger/internal/services"
	"bizrent_ledger/internal/tasks"
)

// EventPublisher is a ledger publisher that holds a connection
type EventPublisher interface {
	ledger.Publisher
	Close() error
}

// App holds the infrastructure shared by the server, the worker and the CLI
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Cache    *services.RedisCache
	Firebase *firebase.App
	Files    ledger.FileStore
	Events   EventPublisher
	Ledger   *ledger.Ledger
	Tokens   *services.TokenService
	Auth     middleware.Authenticator
}

// New connects to every configured backend and builds the ledger
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	// Initialize Database
	db, err := services.InitDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.DB = db

	// Redis is optional
	if cfg.RedisURL != "" {
		cache, err := services.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Warnf("Redis unavailable, caching disabled: %v", err)
		} else {
			a.Cache = cache
		}
	}

	// Initialize Firebase only when a feature needs it
	if cfg.AuthProvider == "firebase" || cfg.StorageDriver == "firebase" {
		a.Firebase, err = services.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseStorageBucket)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initialize firebase: %w", err)
		}
	}

	if err := a.initFiles(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.KafkaBroker != "" {
		a.Events = services.NewKafkaPublisher(cfg.KafkaBroker, cfg.KafkaTopic)
	} else {
		a.Events = services.LogPublisher{}
	}

	a.Tokens, err = services.NewTokenService(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("token service: %w", err)
	}
	if err := a.initAuth(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.Ledger = ledger.New(ledger.Options{
		DB:           db,
		Files:        a.Files,
		Events:       a.Events,
		Notifier:     tasks.NewNotifier(),
		Cache:        a.cacheInvalidator(),
		DueDay:       cfg.InvoiceDueDay,
		AppURL:       cfg.AppURL,
		MaxProofSize: cfg.MaxProofSize,
	})
	return a, nil
}

func (a *App) initFiles(ctx context.Context) error {
	switch a.Config.StorageDriver {
	case "firebase":
		store, err := services.NewFirebaseFileStore(ctx, a.Firebase, a.Config.FirebaseStorageBucket)
		if err != nil {
			return fmt.Errorf("initialize firebase storage: %w", err)
		}
		a.Files = store
	case "local", "":
		store, err := services.NewLocalFileStore(a.Config.UploadDir, a.Config.AppURL)
		if err != nil {
			return fmt.Errorf("initialize upload dir: %w", err)
		}
		a.Files = store
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", a.Config.StorageDriver)
	}
	return nil
}

func (a *App) initAuth(ctx context.Context) error {
	switch a.Config.AuthProvider {
	case "firebase":
		auth, err := services.NewFirebaseAuthenticator(ctx, a.Firebase, a.DB)
		if err != nil {
			return fmt.Errorf("initialize firebase auth: %w", err)
		}
		a.Auth = auth
	case "jwt", "":
		a.Auth = services.NewJWTAuthenticator(a.DB, a.Tokens)
	default:
		return fmt.Errorf("unsupported AUTH_PROVIDER %q", a.Config.AuthProvider)
	}
	return nil
}

// cacheInvalidator avoids handing the ledger a typed nil
func (a *App) cacheInvalidator() ledger.CacheInvalidator {
	if a.Cache == nil {
		return nil
	}
	return a.Cache
}

// TaskDeps returns the collaborators scheduled tasks run with
func (a *App) TaskDeps() *tasks.Deps {
	return &tasks.Deps{
		DB:       a.DB,
		Ledger:   a.Ledger,
		Email:    services.NewEmailService(a.Config),
		Whatsapp: services.NewWahaService(a.Config),
	}
}

// Close releases every connection the app opened
func (a *App) Close() {
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			log.Warnf("close event publisher: %v", err)
		}
	}
	if err := a.Cache.Close(); err != nil {
		log.Warnf("close redis: %v", err)
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
