package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	ServerPort     int    `env:"PORT,default=8080"`
	AppEnv         string `env:"APP_ENV,default=development"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`
	DatabaseDriver string `env:"DATABASE_DRIVER,default=sqlite"`
	DatabaseURL    string `env:"DATABASE_URL,default=./feedhub.db"`
	DBMaxOpen      int    `env:"DB_MAX_OPEN,default=25"`

	JWTSecret string        `env:"JWT_SECRET,required"`
	JWTTTL    time.Duration `env:"JWT_TTL,default=1h"`

	ImagesDir          string        `env:"IMAGES_DIR,default=./images"`
	ImageSweepSchedule string        `env:"IMAGE_SWEEP_SCHEDULE,default=@every 1h"`
	ImageSweepGrace    time.Duration `env:"IMAGE_SWEEP_GRACE,default=24h"`

	FeedPageSize   int           `env:"FEED_PAGE_SIZE,default=2"`
	CORSOrigins    string        `env:"CORS_ORIGINS,default=*"`
	AuthRateLimit  int           `env:"AUTH_RATE_LIMIT,default=5"`
	AuthRateBurst  int           `env:"AUTH_RATE_BURST,default=10"`
	StatsInterval  time.Duration `env:"STATS_INTERVAL,default=15s"`
	ShutdownPeriod time.Duration `env:"SHUTDOWN_PERIOD,default=5s"`
}

// Load reads an optional .env file and decodes the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.FeedPageSize <= 0 {
		return fmt.Errorf("FEED_PAGE_SIZE must be positive, got %d", c.FeedPageSize)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	return nil
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
