package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
)

// SandboxConfig configures the local merchant-backend stand-in.
type SandboxConfig struct {
	Env       string
	HTTPAddr  string
	PublicURL string // base for problem type URIs

	// Credentials the sandbox accepts on the access-token endpoint.
	ClientID     string
	ClientSecret string
	MerchantID   string

	SigningKey   string
	TokenIssuer  string
	TokenTTL     time.Duration
	PaymentLimit float64

	AccessTokenPath string
	SessionKeyPath  string
	PaymentPath     string

	RedisURL    string
	DatabaseURL string
}

func LoadSandbox() SandboxConfig {
	_ = godotenv.Load()
	cfg := SandboxConfig{
		Env:             env("SANDBOX_ENV", "dev"),
		HTTPAddr:        env("SANDBOX_HTTP_ADDR", ":8090"),
		PublicURL:       env("SANDBOX_PUBLIC_URL", "http://localhost:8090"),
		ClientID:        env("SANDBOX_CLIENT_ID", "demo-client"),
		ClientSecret:    env("SANDBOX_CLIENT_SECRET", "demo-secret"),
		MerchantID:      env("SANDBOX_MERCHANT_ID", "demo-merchant"),
		SigningKey:      env("SANDBOX_SIGNING_KEY", ""),
		TokenIssuer:     env("SANDBOX_TOKEN_ISSUER", "linkpay-sandbox"),
		TokenTTL:        envDur("SANDBOX_TOKEN_TTL_SEC", 3600) * time.Second,
		PaymentLimit:    envFloat("SANDBOX_PAYMENT_LIMIT", 10000),
		AccessTokenPath: env("SANDBOX_ACCESS_TOKEN_PATH", "/v1/oauth/token"),
		SessionKeyPath:  env("SANDBOX_SESSION_KEY_PATH", "/v1/link/sessions"),
		PaymentPath:     env("SANDBOX_PAYMENT_PATH", "/v1/payments"),
		RedisURL:        env("REDIS_URL", ""),
		DatabaseURL:     env("DATABASE_URL", ""),
	}
	if cfg.SigningKey == "" {
		log.Println("[WARN] SANDBOX_SIGNING_KEY not set; using a random per-process key")
	}
	if cfg.DatabaseURL == "" && cfg.RedisURL == "" {
		log.Println("[WARN] neither DATABASE_URL nor REDIS_URL set; using in-memory sandbox store")
	}
	return cfg
}
