package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server, worker and CLI read from the environment
type Config struct {
	Env  string
	Port string

	DatabaseDriver string // "postgres" or "sqlite"
	DatabaseURL    string
	RedisURL       string

	AuthProvider            string // "jwt" or "firebase"
	JWTSecret               string
	JWTExpiry               time.Duration
	FirebaseCredentialsPath string

	StorageDriver         string // "local" or "firebase"
	FirebaseStorageBucket string
	UploadDir             string
	MaxProofSize          int64

	AppURL        string
	InvoiceDueDay int

	KafkaBroker string
	KafkaTopic  string

	SMTPHost  string
	SMTPPort  string
	SMTPUser  string
	SMTPPass  string
	EmailFrom string

	WahaBaseURL     string
	WahaAPIKey      string
	WahaSession     string
	WahaCountryCode string

	WorkerInterval   time.Duration
	OverdueSweepRule string
}

// Load reads .env (if present) and the process environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                     getEnvOrDefault("ENV", "development"),
		Port:                    getEnvOrDefault("PORT", "8080"),
		DatabaseDriver:          getEnvOrDefault("DATABASE_DRIVER", "postgres"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		RedisURL:                os.Getenv("REDIS_URL"),
		AuthProvider:            getEnvOrDefault("AUTH_PROVIDER", "jwt"),
		JWTSecret:               os.Getenv("JWT_SECRET"),
		FirebaseCredentialsPath: getEnvOrDefault("FIREBASE_CREDENTIALS_PATH", "./firebase-service-account.json"),
		StorageDriver:           getEnvOrDefault("STORAGE_DRIVER", "local"),
		FirebaseStorageBucket:   os.Getenv("FIREBASE_STORAGE_BUCKET"),
		UploadDir:               getEnvOrDefault("UPLOAD_DIR", "./uploads"),
		AppURL:                  getEnvOrDefault("APP_URL", "http://localhost:8080"),
		KafkaBroker:             os.Getenv("KAFKA_BROKER"),
		KafkaTopic:              getEnvOrDefault("KAFKA_TOPIC", "bizrent.ledger"),
		SMTPHost:                os.Getenv("SMTP_HOST"),
		SMTPPort:                os.Getenv("SMTP_PORT"),
		SMTPUser:                os.Getenv("SMTP_USER"),
		SMTPPass:                os.Getenv("SMTP_PASS"),
		EmailFrom:               os.Getenv("EMAIL_FROM"),
		WahaBaseURL:             getEnvOrDefault("WAHA_BASE_URL", "http://waha:3000"),
		WahaAPIKey:              os.Getenv("WAHA_API_KEY"),
		WahaSession:             getEnvOrDefault("WAHA_SESSION", "default"),
		WahaCountryCode:         getEnvOrDefault("WAHA_COUNTRY_CODE", "62"),
		OverdueSweepRule:        getEnvOrDefault("OVERDUE_SWEEP_RULE", "FREQ=HOURLY"),
	}

	var err error
	if cfg.JWTExpiry, err = durationEnv("JWT_EXPIRY", 72*time.Hour); err != nil {
		return nil, err
	}
	if cfg.WorkerInterval, err = durationEnv("WORKER_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.InvoiceDueDay, err = intEnv("INVOICE_DUE_DAY", 5); err != nil {
		return nil, err
	}
	if cfg.InvoiceDueDay < 1 || cfg.InvoiceDueDay > 31 {
		return nil, fmt.Errorf("INVOICE_DUE_DAY must be between 1 and 31, got %d", cfg.InvoiceDueDay)
	}
	maxProof, err := intEnv("MAX_PROOF_SIZE", 5*1024*1024)
	if err != nil {
		return nil, err
	}
	cfg.MaxProofSize = int64(maxProof)

	return cfg, nil
}

// IsProduction reports whether ENV=production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
