package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"gowa-gateway/internal/helper"
)

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	Port string

	// credential store
	CredentialBackend  string
	SessionDir         string
	DBConnectionString string
	SessionPrefix      string

	// normalisasi nomor tujuan
	CountryCode string
	JIDDomain   string

	WebhookURL     string
	WebhookSecret  string
	WebhookTimeout time.Duration

	ReconnectBase time.Duration
	ReconnectMax  time.Duration

	CORSAllowOrigins []string
	RateLimit        int
	RateBurst        int
	RateWindow       time.Duration
	JWTSecret        string

	LogLevel  string
	LogFormat string

	PrintQR    bool
	DeviceName string
}

// Load membaca konfigurasi dari environment. Kalau GATEWAY_CONFIG_FILE diisi,
// nilai dari file YAML dipakai untuk key yang belum ada di environment.
func Load() (*Config, error) {
	if path := os.Getenv("GATEWAY_CONFIG_FILE"); path != "" {
		if err := applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Port:               getEnv("PORT", "2121"),
		CredentialBackend:  strings.ToLower(getEnv("CREDENTIAL_BACKEND", BackendSQLite)),
		SessionDir:         getEnv("SESSION_DIR", "./sessions"),
		DBConnectionString: getEnv("DATABASE_URL", ""),
		SessionPrefix:      getEnv("SESSION_PREFIX", "auth_info_"),
		CountryCode:        getEnv("COUNTRY_CODE", "62"),
		JIDDomain:          getEnv("JID_DOMAIN", "s.whatsapp.net"),
		WebhookURL:         getEnv("WEBHOOK_URL", ""),
		WebhookSecret:      getEnv("WEBHOOK_SECRET", ""),
		WebhookTimeout:     helper.GetEnvAsDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		ReconnectBase:      helper.GetEnvAsDuration("RECONNECT_BACKOFF_BASE", 0),
		ReconnectMax:       helper.GetEnvAsDuration("RECONNECT_BACKOFF_MAX", time.Minute),
		CORSAllowOrigins:   splitList(getEnv("CORS_ALLOW_ORIGINS", "*")),
		RateLimit:          helper.GetEnvAsInt("RATE_LIMIT_PER_SECOND", 10),
		RateBurst:          helper.GetEnvAsInt("RATE_LIMIT_BURST", 10),
		RateWindow:         time.Duration(helper.GetEnvAsInt("RATE_LIMIT_WINDOW_MINUTES", 3)) * time.Minute,
		JWTSecret:          getEnv("API_JWT_SECRET", ""),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "console")),
		PrintQR:            helper.GetEnvAsBool("PRINT_QR", false),
		DeviceName:         getEnv("DEVICE_NAME", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.CredentialBackend {
	case BackendSQLite:
		if c.SessionDir == "" {
			return fmt.Errorf("SESSION_DIR is required for sqlite backend")
		}
	case BackendPostgres:
		if c.DBConnectionString == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres backend")
		}
	default:
		return fmt.Errorf("unknown CREDENTIAL_BACKEND %q", c.CredentialBackend)
	}

	if c.WebhookURL != "" {
		u, err := url.Parse(c.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("WEBHOOK_URL must be an http(s) url, got %q", c.WebhookURL)
		}
	}

	if c.ReconnectBase < 0 || c.ReconnectMax < 0 {
		return fmt.Errorf("reconnect backoff must not be negative")
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

// applyFile membaca YAML berisi pasangan KEY: value. ${VAR} di dalam file
// diganti dengan nilai environment. Environment yang sudah ada tidak ditimpa.
func applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var values map[string]any
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &values); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	for key, v := range values {
		key = strings.ToUpper(key)
		if _, set := os.LookupEnv(key); set {
			continue
		}
		var value string
		switch t := v.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(t))
			for _, p := range t {
				parts = append(parts, fmt.Sprint(p))
			}
			value = strings.Join(parts, ",")
		default:
			value = fmt.Sprint(t)
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("apply %s: %w", key, err)
		}
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
