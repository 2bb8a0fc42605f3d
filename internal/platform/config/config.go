// Package config loads service configuration from defaults, an optional JSON
// file, and DOCEXTRACT_-prefixed environment variables, in increasing
// priority. main owns the loaded value and passes pieces down; nothing in
// here is a process-wide singleton.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Configuration for the document extraction service.
type Configuration struct {
	Addr     string `koanf:"addr" validate:"required"`
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	DatabaseURL string `koanf:"database_url"` // empty selects the in-memory store
	RedisURL    string `koanf:"redis_url"`    // empty disables the routing cache

	JWTSigningKey string `koanf:"jwt_signing_key" validate:"required"`
	JWTIssuer     string `koanf:"jwt_issuer" validate:"required"`

	OpenAIAPIKey      string  `koanf:"openai_api_key"`
	OpenAIBaseURL     string  `koanf:"openai_base_url"`
	OpenAIModel       string  `koanf:"openai_model" validate:"required"`
	OpenAITemperature float32 `koanf:"openai_temperature" validate:"gte=0,lte=2"`

	ConfidenceThreshold float64 `koanf:"confidence_threshold" validate:"gt=0,lte=1"`
	ClassifyTimeoutSec  int     `koanf:"classify_timeout_sec" validate:"min=1,max=3600"`
	GenerateTimeoutSec  int     `koanf:"generate_timeout_sec" validate:"min=1,max=3600"`
	ExtractTimeoutSec   int     `koanf:"extract_timeout_sec" validate:"min=1,max=3600"`
	RequestTimeoutSec   int     `koanf:"request_timeout_sec" validate:"min=1,max=3600"`

	RoutingCacheTTLSec int   `koanf:"routing_cache_ttl_sec" validate:"min=1"`
	MaxUploadBytes     int64 `koanf:"max_upload_bytes" validate:"min=1"`
}

// Defaults mirror the original deployment's behavior.
func Defaults() map[string]any {
	return map[string]any{
		"addr":                  ":8080",
		"log_level":             "info",
		"jwt_signing_key":       "dev-secret-key-change-in-production",
		"jwt_issuer":            "docextract",
		"openai_model":          "gpt-4o-mini",
		"openai_temperature":    0.0,
		"confidence_threshold":  0.8,
		"classify_timeout_sec":  240,
		"generate_timeout_sec":  240,
		"extract_timeout_sec":   120,
		"request_timeout_sec":   300,
		"routing_cache_ttl_sec": 300,
		"max_upload_bytes":      32 << 20,
	}
}

// Load builds the configuration. Priority: env > config file > defaults.
func Load(configPath string) (*Configuration, error) {
	k := koanf.New(".")

	for key, value := range Defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), json.Parser()); err != nil {
				return nil, fmt.Errorf("load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider("DOCEXTRACT_", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Configuration
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envTransform maps DOCEXTRACT_DATABASE_URL to database_url.
func envTransform(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, "DOCEXTRACT_"))
}

func (c *Configuration) ClassifyTimeout() time.Duration {
	return time.Duration(c.ClassifyTimeoutSec) * time.Second
}

func (c *Configuration) GenerateTimeout() time.Duration {
	return time.Duration(c.GenerateTimeoutSec) * time.Second
}

func (c *Configuration) ExtractTimeout() time.Duration {
	return time.Duration(c.ExtractTimeoutSec) * time.Second
}

func (c *Configuration) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

func (c *Configuration) RoutingCacheTTL() time.Duration {
	return time.Duration(c.RoutingCacheTTLSec) * time.Second
}
