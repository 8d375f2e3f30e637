package config // package config loads application configuration from environment variables

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable; defaults are given in the struct tags.
type Config struct {
	Env  string `envconfig:"APP_ENV" default:"dev"`  // application environment (dev, test, prod)
	Port string `envconfig:"APP_PORT" default:"8080"` // HTTP port to listen on

	// Store selects the backing store: memory, mysql or postgres.
	Store       string `envconfig:"STORE" default:"memory"`
	CatalogSeed string `envconfig:"CATALOG_SEED"` // seed file for the memory store; empty = built-in demo data

	DBUser string `envconfig:"DB_USER"`
	DBPass string `envconfig:"DB_PASS"`
	DBHost string `envconfig:"DB_HOST" default:"localhost"`
	DBPort string `envconfig:"DB_PORT"`
	DBName string `envconfig:"DB_NAME" default:"quickcourt"`
	DBSSL  string `envconfig:"DB_SSLMODE" default:"disable"` // postgres only
	// Migrate creates missing tables at startup.
	Migrate bool `envconfig:"DB_MIGRATE" default:"true"`

	JWTSecret      string `envconfig:"JWT_SECRET" required:"true"`
	AccessTTLMin   int    `envconfig:"ACCESS_TOKEN_TTL_MIN" default:"15"`
	RefreshTTLDays int    `envconfig:"REFRESH_TOKEN_TTL_DAYS" default:"7"`
	BcryptCost     int    `envconfig:"BCRYPT_COST" default:"10"`
	// Sign-up codes: lifetime and failed attempts before a code is discarded.
	OTPTTL         time.Duration `envconfig:"OTP_TTL" default:"10m"`
	OTPMaxAttempts int           `envconfig:"OTP_MAX_ATTEMPTS" default:"5"`

	ServiceFeeCents int64         `envconfig:"SERVICE_FEE_CENTS" default:"500"`
	MinLeadTime     time.Duration `envconfig:"MIN_LEAD_TIME" default:"0s"`
	CancelCutoff    time.Duration `envconfig:"CANCEL_CUTOFF" default:"0s"`
	SweepInterval   time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`

	RabbitURL      string `envconfig:"RABBITMQ_URL"`
	RabbitExchange string `envconfig:"RABBITMQ_EXCHANGE" default:"quickcourt.reservations"`
	AuditLogPath   string `envconfig:"AUDIT_LOG_PATH" default:"logs/reservations.log"`

	WindowCacheTTL time.Duration `envconfig:"WINDOW_CACHE_TTL" default:"5m"`

	Redis     RedisConfig
	RateLimit RateLimitConfig `envconfig:"RATE_LIMIT"`
	Cache     CacheConfig     `envconfig:"CACHE"`
}

// Load reads an optional .env file and then the process environment.
// Missing required variables or malformed values stop the program.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// Parse builds a Config from the environment without touching .env files.
func Parse() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must not be empty")
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	switch cfg.Store {
	case "memory":
	case "mysql", "postgres":
		if cfg.DBUser == "" {
			return Config{}, fmt.Errorf("DB_USER is required for store %q", cfg.Store)
		}
		if cfg.DBPort == "" {
			cfg.DBPort = map[string]string{"mysql": "3306", "postgres": "5432"}[cfg.Store]
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE %q (want memory, mysql or postgres)", cfg.Store)
	}
	if cfg.ServiceFeeCents < 0 {
		return Config{}, fmt.Errorf("SERVICE_FEE_CENTS must not be negative")
	}
	cfg.RateLimit.normalize()
	return cfg, nil
}

func (c Config) IsProduction() bool { return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production") }
