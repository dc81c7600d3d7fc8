package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	FeedPostgres = "postgres"
	FeedNATS     = "nats"
)

type Config struct {
	Env      string
	Addr     string
	LogLevel string

	Store     string
	DBDSN     string
	DBMigrate bool

	// FetchTimeout bounds every store call a sync hook makes.
	FetchTimeout time.Duration

	ChangeFeed string
	NATSURL    string
	NATSPrefix string

	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	MediaPublicURL string

	AllowedOrigins []string
}

// Load reads the process environment, filling unset variables from ./.env
// when the file exists.
func Load() (Config, error) {
	if err := loadDotEnvFile(".env", os.Setenv, os.Getenv); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf(".env: %w", err)
	}
	return LoadFromEnv(os.Getenv)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:            getenv("APP_ENV"),
		Addr:           getenv("APP_ADDR"),
		LogLevel:       getenv("APP_LOG_LEVEL"),
		Store:          strings.ToLower(strings.TrimSpace(getenv("APP_STORE"))),
		DBDSN:          getenv("APP_DB_DSN"),
		ChangeFeed:     strings.ToLower(strings.TrimSpace(getenv("APP_CHANGE_FEED"))),
		NATSURL:        getenv("APP_NATS_URL"),
		NATSPrefix:     strings.TrimSpace(getenv("APP_NATS_SUBJECT_PREFIX")),
		S3Endpoint:     getenv("APP_S3_ENDPOINT"),
		S3Region:       getenv("APP_S3_REGION"),
		S3AccessKey:    getenv("APP_S3_ACCESS_KEY"),
		S3SecretKey:    getenv("APP_S3_SECRET_KEY"),
		MediaPublicURL: getenv("APP_MEDIA_PUBLIC_URL"),
		AllowedOrigins: parseCSV(getenv("APP_ALLOWED_ORIGINS")),
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if cfg.S3Region == "" {
		cfg.S3Region = "us-east-1"
	}
	if cfg.NATSPrefix == "" {
		cfg.NATSPrefix = "campus.changes"
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	if cfg.Store == "" {
		cfg.Store = StoreMemory
		if cfg.DBDSN != "" {
			cfg.Store = StorePostgres
		}
	}
	switch cfg.Store {
	case StoreMemory:
	case StorePostgres:
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required when APP_STORE=postgres")
		}
	default:
		return Config{}, errors.New("APP_STORE: must be postgres or memory")
	}

	if raw := getenv("APP_DB_MIGRATE"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_DB_MIGRATE: %w", err)
		}
		cfg.DBMigrate = v
	}

	timeoutRaw := getenv("APP_FETCH_TIMEOUT")
	if timeoutRaw == "" {
		cfg.FetchTimeout = 10 * time.Second
	} else {
		d, err := time.ParseDuration(timeoutRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_FETCH_TIMEOUT: %w", err)
		}
		if d <= 0 {
			return Config{}, errors.New("APP_FETCH_TIMEOUT: must be > 0")
		}
		cfg.FetchTimeout = d
	}

	if cfg.ChangeFeed == "" {
		cfg.ChangeFeed = FeedPostgres
	}
	switch cfg.ChangeFeed {
	case FeedPostgres:
	case FeedNATS:
		if cfg.NATSURL == "" {
			return Config{}, errors.New("APP_NATS_URL: required when APP_CHANGE_FEED=nats")
		}
	default:
		return Config{}, errors.New("APP_CHANGE_FEED: must be postgres or nats")
	}

	if cfg.MediaPublicURL != "" {
		if err := validateHTTPURL(cfg.MediaPublicURL); err != nil {
			return Config{}, fmt.Errorf("APP_MEDIA_PUBLIC_URL: %w", err)
		}
	}
	if cfg.S3Endpoint != "" {
		if err := validateHTTPURL(cfg.S3Endpoint); err != nil {
			return Config{}, fmt.Errorf("APP_S3_ENDPOINT: %w", err)
		}
	}

	if cfg.IsProd() {
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required in prod")
		}
		if cfg.Store != StorePostgres {
			return Config{}, errors.New("APP_STORE: must be postgres in prod")
		}
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

// MediaEnabled reports whether object storage is configured.
func (c Config) MediaEnabled() bool { return c.S3Endpoint != "" || c.S3AccessKey != "" }

func validateHTTPURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return errors.New("must be an absolute URL")
	}
	switch parsed.Scheme {
	case "http", "https":
		return nil
	default:
		return errors.New("scheme must be http or https")
	}
}

// loadDotEnvFile sets every variable from path that is not already set.
// Empty values are skipped.
func loadDotEnvFile(path string, setenv func(string, string) error, getenv func(string) string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		return err
	}
	for k, v := range values {
		if v == "" || getenv(k) != "" {
			continue
		}
		if err := setenv(k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}

func parseCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
