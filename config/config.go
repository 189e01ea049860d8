package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"agent-bounty-market/services"
	"agent-bounty-market/utils"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DatabaseURL    string
	AllowedOrigins []string

	IdentityBaseURL      string
	IdentityServiceToken string
	IdentitySyncInterval time.Duration // 0 disables the profile sync worker

	InternalServiceToken string

	RateLimits         map[services.Tier]services.TierLimit
	QuotaSweepInterval time.Duration

	R2 utils.R2Options
	// EvidenceDir stores evidence on local disk when R2 is not configured. Empty disables it.
	EvidenceDir string
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading environment variables directly")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function so tests can supply their own.
func FromEnv(lookup func(string) string) (Config, error) {
	getenv := func(key, def string) string {
		if v := strings.TrimSpace(lookup(key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Port:                 getenv("PORT", "5300"),
		DatabaseURL:          getenv("DATABASE_URL", ""),
		IdentityBaseURL:      strings.TrimRight(getenv("IDENTITY_BASE_URL", ""), "/"),
		IdentityServiceToken: getenv("IDENTITY_SERVICE_TOKEN", ""),
		InternalServiceToken: getenv("INTERNAL_SERVICE_TOKEN", ""),
		RateLimits:           map[services.Tier]services.TierLimit{},
		EvidenceDir:          getenv("EVIDENCE_DIR", ""),
		R2: utils.R2Options{
			AccountID:       getenv("CLOUDFLARE_ACCOUNT_ID", ""),
			AccessKeyID:     getenv("R2_ACCESS_KEY_ID", ""),
			AccessKeySecret: getenv("R2_ACCESS_KEY_SECRET", ""),
			Bucket:          getenv("R2_BUCKET_NAME", ""),
			CDNBaseURL:      getenv("CDN_BASE_URL", ""),
		},
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if cfg.IdentityBaseURL == "" {
		return Config{}, fmt.Errorf("IDENTITY_BASE_URL environment variable not set")
	}

	for _, origin := range strings.Split(getenv("ALLOWED_ORIGINS", "http://localhost:3000"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	var err error
	if cfg.IdentitySyncInterval, err = parseDuration("IDENTITY_SYNC_INTERVAL", getenv("IDENTITY_SYNC_INTERVAL", "0")); err != nil {
		return Config{}, err
	}
	if cfg.QuotaSweepInterval, err = parseDuration("QUOTA_SWEEP_INTERVAL", getenv("QUOTA_SWEEP_INTERVAL", "1m")); err != nil {
		return Config{}, err
	}
	if cfg.QuotaSweepInterval <= 0 {
		return Config{}, fmt.Errorf("QUOTA_SWEEP_INTERVAL must be positive")
	}
	if cfg.IdentitySyncInterval > 0 && cfg.IdentityServiceToken == "" {
		return Config{}, fmt.Errorf("IDENTITY_SYNC_INTERVAL requires IDENTITY_SERVICE_TOKEN")
	}

	tierKeys := map[services.Tier]string{
		services.TierRead:        "RATE_LIMIT_READ",
		services.TierWrite:       "RATE_LIMIT_WRITE",
		services.TierSensitive:   "RATE_LIMIT_SENSITIVE",
		services.TierAuth:        "RATE_LIMIT_AUTH",
		services.TierAuthFailure: "RATE_LIMIT_AUTH_FAILURE",
	}
	for tier, key := range tierKeys {
		raw := getenv(key, "")
		if raw == "" {
			continue
		}
		limit, err := services.ParseTierLimit(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", key, err)
		}
		cfg.RateLimits[tier] = limit
	}

	return cfg, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}
