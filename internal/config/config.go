package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/guarzo/ctgap/internal/cardtrader"
	"github.com/guarzo/ctgap/internal/ratelimit"
)

const (
	TokenEnvVar    = "CARDTRADER_TOKEN"
	ConfigFileName = "config.json"
)

// ErrNoToken is returned by TokenSource when neither the environment nor
// config.json carry a token.
var ErrNoToken = errors.New("no CardTrader token configured")

type Config struct {
	BaseURL       string
	DataDir       string
	Game          string
	FetchTimeout  time.Duration
	Pacing        time.Duration
	WatchSchedule string
	HistoryDB     string
	LogLevel      string
}

// LoadEnvFile loads a .env file from the working directory if present.
func LoadEnvFile(paths ...string) {
	if err := godotenv.Load(paths...); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded, using process environment")
	}
}

// Load reads settings from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		BaseURL:       getEnv("CARDTRADER_BASE_URL", cardtrader.DefaultBaseURL),
		DataDir:       getEnv("CTGAP_DATA_DIR", "data"),
		Game:          strings.ToLower(getEnv("CTGAP_GAME", "onepiece")),
		WatchSchedule: getEnv("CTGAP_WATCH_SCHEDULE", "@every 30m"),
		LogLevel:      getEnv("CTGAP_LOG_LEVEL", "info"),
	}

	var err error
	if cfg.FetchTimeout, err = getEnvDuration("CTGAP_FETCH_TIMEOUT", cardtrader.DefaultTimeout); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout <= 0 {
		return nil, fmt.Errorf("CTGAP_FETCH_TIMEOUT must be positive, got %s", cfg.FetchTimeout)
	}

	if cfg.Pacing, err = getEnvDuration("CTGAP_PACING", ratelimit.MinScanDelay); err != nil {
		return nil, err
	}
	if cfg.Pacing < ratelimit.MinScanDelay {
		log.Warn().Dur("requested", cfg.Pacing).Dur("floor", ratelimit.MinScanDelay).Msg("pacing below marketplace floor, raising")
		cfg.Pacing = ratelimit.MinScanDelay
	}

	cfg.HistoryDB = getEnv("CTGAP_HISTORY_DB", filepath.Join(cfg.DataDir, "history.db"))

	return cfg, nil
}

// Tokens returns the token provider for this configuration.
func (c *Config) Tokens() *TokenSource {
	return &TokenSource{
		EnvVar: TokenEnvVar,
		Path:   filepath.Join(c.DataDir, ConfigFileName),
	}
}

// TokenSource resolves the API token on every call, so a token added while
// a scan runs is picked up by the next fetch.
type TokenSource struct {
	EnvVar string
	Path   string
}

func (t *TokenSource) Token() (string, error) {
	if t.EnvVar != "" {
		if v := strings.TrimSpace(os.Getenv(t.EnvVar)); v != "" {
			return v, nil
		}
	}
	if t.Path == "" {
		return "", ErrNoToken
	}

	data, err := os.ReadFile(t.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", t.Path, err)
	}

	var file struct {
		JWTToken string `json:"jwt_token"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return "", fmt.Errorf("parse %s: %w", t.Path, err)
	}
	if strings.TrimSpace(file.JWTToken) == "" {
		return "", ErrNoToken
	}
	return strings.TrimSpace(file.JWTToken), nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return d, nil
}
