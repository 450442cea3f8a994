package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/minelink/internal/link/service"
)

type Config struct {
	// Provider describes the external OAuth2 identity provider.
	AuthorizeURL string // Required: provider authorization endpoint
	TokenURL     string // Required: provider token endpoint
	UserInfoURL  string // Required: provider userinfo endpoint
	ClientID     string // Required
	ClientSecret string // Required
	Scope        string // Optional: space-delimited scopes (e.g. "identify email")

	// ExternalURL is the public base URL of this service as seen by the
	// player's browser. The redirect URI registered with the provider is
	// ExternalURL + CallbackPath.
	ExternalURL  string // Required
	CallbackPath string // Optional (default: /callback)

	// Profile field extraction paths (dotted, e.g. "data.user.id").
	FieldID       string   // Optional (default: id)
	FieldUsername string   // Optional (default: name)
	FieldEmail    string   // Optional (default: email)
	FieldCustom   []string // Optional: name=path pairs

	DatabaseDriver string // Optional: sqlite or postgres (default: sqlite)
	DatabaseFile   string // Optional: SQLite file path (default: ./link.db)
	DatabaseURL    string // Required for postgres: connection string

	APISecret string // Required: HS256 secret shared with the host
	NotifyURL string // Optional: host webhook for link outcome notifications

	PendingTTL          time.Duration // Optional: pending authorization lifetime (default: 10m)
	ProviderTimeout     time.Duration // Optional: provider HTTP timeout (default: 15s)
	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8280)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		AuthorizeURL: os.Getenv("LINK_OAUTH_AUTHORIZE_URL"),
		TokenURL:     os.Getenv("LINK_OAUTH_TOKEN_URL"),
		UserInfoURL:  os.Getenv("LINK_OAUTH_USERINFO_URL"),
		ClientID:     os.Getenv("LINK_OAUTH_CLIENT_ID"),
		ClientSecret: os.Getenv("LINK_OAUTH_CLIENT_SECRET"),
		Scope:        os.Getenv("LINK_OAUTH_SCOPE"),

		ExternalURL:  os.Getenv("LINK_EXTERNAL_URL"),
		CallbackPath: getEnvOrDefault("LINK_CALLBACK_PATH", "/callback"),

		FieldID:       getEnvOrDefault("LINK_FIELD_ID", "id"),
		FieldUsername: getEnvOrDefault("LINK_FIELD_USERNAME", "name"),
		FieldEmail:    getEnvOrDefault("LINK_FIELD_EMAIL", "email"),
		FieldCustom:   splitNonEmpty(os.Getenv("LINK_FIELD_CUSTOM")),

		DatabaseDriver: getEnvOrDefault("LINK_DATABASE_DRIVER", "sqlite"),
		DatabaseFile:   getEnvOrDefault("LINK_DATABASE_FILE", "link.db"),
		DatabaseURL:    os.Getenv("LINK_DATABASE_URL"),

		APISecret: os.Getenv("LINK_API_SECRET"),
		NotifyURL: os.Getenv("LINK_NOTIFY_URL"),

		PendingTTL:          getEnvDurationOrDefault("LINK_PENDING_TTL", 10*time.Minute),
		ProviderTimeout:     getEnvDurationOrDefault("LINK_PROVIDER_TIMEOUT", 15*time.Second),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8280),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

// Validate checks that required settings are present before any component is
// constructed. A misconfigured service refuses to start rather than failing
// on the first callback.
func (c Config) Validate() error {
	var missing []string
	for _, req := range []struct {
		name, value string
	}{
		{"LINK_OAUTH_AUTHORIZE_URL", c.AuthorizeURL},
		{"LINK_OAUTH_TOKEN_URL", c.TokenURL},
		{"LINK_OAUTH_USERINFO_URL", c.UserInfoURL},
		{"LINK_OAUTH_CLIENT_ID", c.ClientID},
		{"LINK_OAUTH_CLIENT_SECRET", c.ClientSecret},
		{"LINK_EXTERNAL_URL", c.ExternalURL},
		{"LINK_API_SECRET", c.APISecret},
	} {
		if req.value == "" {
			missing = append(missing, req.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	switch c.DatabaseDriver {
	case "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("LINK_DATABASE_URL is required when LINK_DATABASE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver %q (want sqlite or postgres)", c.DatabaseDriver)
	}

	if !strings.HasPrefix(c.CallbackPath, "/") {
		return fmt.Errorf("LINK_CALLBACK_PATH must start with a slash, got %q", c.CallbackPath)
	}

	if _, err := c.CustomFields(); err != nil {
		return err
	}

	return nil
}

// RedirectURI is the callback URL registered with the provider.
func (c Config) RedirectURI() string {
	return strings.TrimSuffix(c.ExternalURL, "/") + c.CallbackPath
}

// CustomFields parses the name=path pairs from LINK_FIELD_CUSTOM.
func (c Config) CustomFields() ([]service.CustomField, error) {
	fields := make([]service.CustomField, 0, len(c.FieldCustom))
	for _, pair := range c.FieldCustom {
		name, path, ok := strings.Cut(pair, "=")
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("LINK_FIELD_CUSTOM entry %q is not name=path", pair)
		}
		fields = append(fields, service.CustomField{Name: name, Path: path})
	}
	return fields, nil
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
