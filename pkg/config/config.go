// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment selects which account-linking host the session key is handed to.
type Environment string

const (
	Sandbox    Environment = "sandbox"
	Production Environment = "production"
)

// ParseEnvironment maps "production" to Production and anything else to Sandbox.
func ParseEnvironment(s string) Environment {
	if s == string(Production) {
		return Production
	}
	return Sandbox
}

// Settings is the merchant backend configuration read from the settings file.
type Settings struct {
	ClientID        string `yaml:"client_id"         validate:"required"`
	ClientSecret    string `yaml:"client_secret"     validate:"required"`
	MerchantID      string `yaml:"merchant_id"       validate:"required"`
	BaseURL         string `yaml:"base_url"          validate:"required,url"`
	AccessTokenPath string `yaml:"access_token_path" validate:"required"`
	SessionKeyPath  string `yaml:"session_key_path"  validate:"required"`
	PaymentPath     string `yaml:"payment_path"      validate:"required"`
	LinkEnvironment string `yaml:"link_environment"`
}

func (s Settings) Environment() Environment { return ParseEnvironment(s.LinkEnvironment) }

type Config struct {
	Env          string // dev | prod, drives logger
	SettingsFile string
	Merchant     Settings

	// RequireSettings turns missing or incomplete settings into a load error
	// instead of a warning with empty defaults.
	RequireSettings bool

	HTTPTimeout time.Duration // 0 keeps the http.Client default
	ErrorPath   string        // JMESPath selecting the message in error bodies
	MetricsAddr string

	// Account linking
	LinkCallbackAddr  string
	LinkSandboxURL    string
	LinkProductionURL string
	LinkCustomerID    string // when set, linking is skipped and this id is used
}

// Load reads .env, the settings file and LINKPAY_* overrides. Configuration is
// loaded once at process start and passed down by value.
func Load() (Config, error) {
	_ = godotenv.Load()
	cfg := Config{
		Env:               env("LINKPAY_ENV", "dev"),
		SettingsFile:      env("LINKPAY_SETTINGS", "app_config.yaml"),
		RequireSettings:   envBool("LINKPAY_REQUIRE_SETTINGS", false),
		HTTPTimeout:       envDur("LINKPAY_HTTP_TIMEOUT_SEC", 0) * time.Second,
		ErrorPath:         env("LINKPAY_ERROR_PATH", "error"),
		MetricsAddr:       env("LINKPAY_METRICS_ADDR", ""),
		LinkCallbackAddr:  env("LINKPAY_LINK_CALLBACK_ADDR", "127.0.0.1:8765"),
		LinkSandboxURL:    env("LINKPAY_LINK_SANDBOX_URL", "http://localhost:8090/link"),
		LinkProductionURL: env("LINKPAY_LINK_PRODUCTION_URL", ""),
		LinkCustomerID:    env("LINKPAY_LINK_CUSTOMER_ID", ""),
	}

	settings, err := LoadSettings(cfg.SettingsFile)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && !cfg.RequireSettings:
		log.Printf("[WARN] settings file %q not found; merchant settings default to empty values", cfg.SettingsFile)
	case !cfg.RequireSettings:
		log.Printf("[WARN] settings file %q unreadable (%v); merchant settings default to empty values", cfg.SettingsFile, err)
	default:
		return cfg, err
	}
	cfg.Merchant = overrideFromEnv(settings)

	if verr := Validate(cfg.Merchant); verr != nil {
		if cfg.RequireSettings {
			return cfg, verr
		}
		log.Printf("[WARN] incomplete merchant settings: %v", verr)
	}
	return cfg, nil
}

// LoadSettings decodes a YAML settings file. Keys absent from the file stay empty.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	b, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Settings{}, fmt.Errorf("yaml parse: %w", err)
	}
	return s, nil
}

// Validate reports the settings fields that are missing or malformed.
func Validate(s Settings) error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("settings validation failed: %w", err)
	}
	return nil
}

func overrideFromEnv(s Settings) Settings {
	s.ClientID = env("LINKPAY_CLIENT_ID", s.ClientID)
	s.ClientSecret = env("LINKPAY_CLIENT_SECRET", s.ClientSecret)
	s.MerchantID = env("LINKPAY_MERCHANT_ID", s.MerchantID)
	s.BaseURL = env("LINKPAY_BASE_URL", s.BaseURL)
	s.AccessTokenPath = env("LINKPAY_ACCESS_TOKEN_PATH", s.AccessTokenPath)
	s.SessionKeyPath = env("LINKPAY_SESSION_KEY_PATH", s.SessionKeyPath)
	s.PaymentPath = env("LINKPAY_PAYMENT_PATH", s.PaymentPath)
	s.LinkEnvironment = env("LINKPAY_LINK_ENVIRONMENT", s.LinkEnvironment)
	return s
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, _ := strconv.ParseBool(v)
		return b
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
func envFloat(k string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
