// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// minSecretLen is the minimum signing secret length accepted at startup.
// HS256 keys shorter than the hash output weaken the MAC.
const minSecretLen = 32

type Config struct {
	Env      string
	HTTPAddr string

	// Host classification
	RootDomain string // e.g. "vendora.shop"
	DevDomain  string // local alias treated like a second root, e.g. "localhost"

	// Token signing
	SigningSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	// Tenant resolver
	TenantCacheTTL time.Duration

	// Abuse control
	RateLimitCeiling  int
	RateSweepInterval time.Duration

	// HTTP surface
	AllowedOrigins []string
	SensitivePaths []string

	// Security event stream (redis)
	SecurityStream string

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string
}

// fileOverlay is the optional YAML config file (GATEWAY_CONFIG_FILE).
// Env vars win for scalar settings; the file is the usual home for the
// origin and sensitive-path lists.
type fileOverlay struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	SensitivePaths []string `yaml:"sensitive_paths"`
}

// Load reads process configuration. A missing or short signing secret is a
// startup error, never a per-request condition.
func Load() (Config, error) {
	_ = godotenv.Load()
	cfg := Config{
		Env:               env("VENDORA_ENV", "dev"),
		HTTPAddr:          env("VENDORA_HTTP_ADDR", ":8080"),
		RootDomain:        env("ROOT_DOMAIN", "vendora.shop"),
		DevDomain:         env("DEV_DOMAIN", "localhost"),
		SigningSecret:     os.Getenv("SIGNING_SECRET"),
		AccessTTL:         envDur("ACCESS_TTL_MIN", 15) * time.Minute,
		RefreshTTL:        envDur("REFRESH_TTL_HOURS", 30*24) * time.Hour,
		TenantCacheTTL:    envDur("TENANT_CACHE_TTL_MIN", 5) * time.Minute,
		RateLimitCeiling:  envInt("RATE_LIMIT_CEILING", 100000),
		RateSweepInterval: envDur("RATE_SWEEP_INTERVAL_SEC", 60) * time.Second,
		AllowedOrigins:    envList("ALLOWED_ORIGINS", nil),
		SensitivePaths:    envList("SENSITIVE_PATHS", []string{"/wallet/topup", "/account/settings"}),
		SecurityStream:    env("SECURITY_STREAM", "vendora:security-events"),
		RedisURL:          env("REDIS_URL", ""),
		DatabaseURL:       env("DATABASE_URL", ""),
	}
	if path := os.Getenv("GATEWAY_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	if cfg.SigningSecret == "" {
		return Config{}, errors.New("SIGNING_SECRET is required")
	}
	if len(cfg.SigningSecret) < minSecretLen {
		return Config{}, fmt.Errorf("SIGNING_SECRET must be at least %d bytes", minSecretLen)
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f fileOverlay
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return err
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = f.AllowedOrigins
	}
	if len(f.SensitivePaths) > 0 {
		c.SensitivePaths = f.SensitivePaths
	}
	return nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envDur(k string, def int) time.Duration {
	return time.Duration(envInt(k, def))
}

func envList(k string, def []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
