package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	infisical "github.com/infisical/go-sdk"
)

type Config struct {
	Port           string
	FrontendOrigin string

	// Backend KPI store
	DatabaseURL string
	JWTSecret   string
	TokenTTL    time.Duration

	// Dashboard
	BackendURL          string
	BlockfrostURL       string
	BlockfrostProjectID string

	// Alert watcher
	AlertInterval  time.Duration
	RedisURL       string
	RedisPassword  string
	TelegramToken  string
	TelegramChatID int64
}

func Load() Config {
	cfg := Config{
		Port:                envOr("PORT", "8080"),
		FrontendOrigin:      envOr("FRONTEND_ORIGIN", "*"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		TokenTTL:            durationOr("TOKEN_TTL", time.Hour),
		BackendURL:          envOr("BACKEND_URL", "http://localhost:5000"),
		BlockfrostURL:       envOr("BLOCKFROST_URL", "https://cardano-mainnet.blockfrost.io/api/v0"),
		BlockfrostProjectID: os.Getenv("BLOCKFROST_PROJECT_ID"),
		AlertInterval:       durationOr("ALERT_INTERVAL", 0),
		RedisURL:            envOr("REDIS_URL", "redis://localhost:6379/0"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		TelegramToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TelegramChatID = id
		} else {
			slog.Warn("invalid TELEGRAM_CHAT_ID, ignoring", "value", v)
		}
	}

	// If Infisical credentials are available, fetch secrets from Infisical
	clientID := os.Getenv("INFISICAL_CLIENT_ID")
	clientSecret := os.Getenv("INFISICAL_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		loadFromInfisical(&cfg, clientID, clientSecret)
	}

	return cfg
}

func loadFromInfisical(cfg *Config, clientID, clientSecret string) {
	siteURL := envOr("INFISICAL_SITE_URL", "https://app.infisical.com")
	projectID := os.Getenv("INFISICAL_PROJECT_ID")
	envSlug := envOr("INFISICAL_ENV", "prod")

	if projectID == "" {
		slog.Warn("INFISICAL_PROJECT_ID not set, skipping Infisical")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          siteURL,
		AutoTokenRefresh: false,
	})

	_, err := client.Auth().UniversalAuthLogin(clientID, clientSecret)
	if err != nil {
		slog.Error("infisical auth failed", "error", err)
		return
	}

	for key, target := range cfg.secrets() {
		if *target != "" {
			continue // env var already set, skip
		}
		secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
			SecretKey:   key,
			Environment: envSlug,
			ProjectID:   projectID,
			SecretPath:  "/",
		})
		if err != nil {
			slog.Warn("failed to retrieve secret from infisical", "key", key, "error", err)
			continue
		}
		*target = secret.SecretValue
		slog.Info("loaded secret from infisical", "key", key)
	}
}

// secrets maps the secret names that may come from Infisical to their fields.
func (c *Config) secrets() map[string]*string {
	return map[string]*string{
		"DATABASE_URL":          &c.DatabaseURL,
		"JWT_SECRET":            &c.JWTSecret,
		"BLOCKFROST_PROJECT_ID": &c.BlockfrostProjectID,
		"REDIS_PASSWORD":        &c.RedisPassword,
		"TELEGRAM_BOT_TOKEN":    &c.TelegramToken,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// durationOr accepts Go durations ("90s") or bare seconds ("3600").
func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("invalid duration, using default", "key", key, "value", v)
	return fallback
}
