package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"production"`

	// Database
	DatabaseURL            string `env:"DATABASE_URL,required"`
	DatabaseMaxConns       int32  `env:"DATABASE_MAX_CONNS" envDefault:"25"`
	DatabaseSimpleProtocol bool   `env:"DATABASE_SIMPLE_PROTOCOL" envDefault:"true"`

	// Redis
	RedisURL string `env:"REDIS_URL,required"`

	// JWT Configuration
	JWTHS256Secret      string `env:"JWT_HS256_SECRET,required"`    // Base64-encoded HMAC secret
	JWTAllowedIssuers   string `env:"JWT_ALLOWED_ISSUERS,required"` // CSV list of allowed issuers (e.g., "forms-web,forms-admin")
	JWTAudience         string `env:"JWT_AUDIENCE,required"`        // Expected JWT audience
	JWTClockSkewSeconds int    `env:"JWT_CLOCK_SKEW_SECONDS" envDefault:"60"`
	JWTPublicKeyRS256   string `env:"JWT_PUBLIC_KEY_RS256"` // PEM, optional
	JWTRS256Issuer      string `env:"JWT_RS256_ISSUER" envDefault:"forms-sso"`

	// S2S (Service-to-Service) Tokens
	S2STokenBackoffice string `env:"S2S_TOKEN_BACKOFFICE"`

	// OpenTelemetry
	OTELEnabled          bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELExporterEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTELServiceName      string  `env:"OTEL_SERVICE_NAME" envDefault:"forms-api"`
	OTELSamplingRatio    float64 `env:"OTEL_SAMPLING_RATIO" envDefault:"0.1"`

	// Server
	Port         string `env:"PORT" envDefault:"3002"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsToken string `env:"METRICS_TOKEN"` // empty leaves /metrics open

	// Rate Limiting
	RateLimitPerActorPerMin          int `env:"RATE_LIMIT_PER_ACTOR_PER_MIN" envDefault:"120"`
	RateLimitPublicSubmissionsPerMin int `env:"RATE_LIMIT_PUBLIC_SUBMISSIONS_PER_MIN" envDefault:"30"`

	// Authorization
	AdminGroupName            string `env:"ADMIN_GROUP_NAME" envDefault:"admin"`
	PermissionCacheTTLSeconds int    `env:"PERMISSION_CACHE_TTL_SECONDS" envDefault:"30"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// DatabaseConfig is the subset used by the migrate, cleanup and seed commands.
type DatabaseConfig struct {
	DatabaseURL     string `env:"DATABASE_URL,required"`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"forms-api"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	AdminGroupName  string `env:"ADMIN_GROUP_NAME" envDefault:"admin"`
}

// LoadDatabaseConfig loads DatabaseConfig without requiring JWT or Redis settings.
func LoadDatabaseConfig() (*DatabaseConfig, error) {
	cfg := &DatabaseConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

// Validate performs custom validation on the configuration
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWTHS256Secret == "" {
		return fmt.Errorf("JWT_HS256_SECRET is required")
	}

	issuers := c.GetAllowedIssuers()
	if len(issuers) == 0 {
		return fmt.Errorf("JWT_ALLOWED_ISSUERS must contain at least one valid issuer")
	}

	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.JWTAudience == "" {
		return fmt.Errorf("JWT_AUDIENCE is required")
	}

	if c.OTELSamplingRatio < 0 || c.OTELSamplingRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLING_RATIO must be between 0 and 1")
	}

	if c.JWTClockSkewSeconds < 0 {
		return fmt.Errorf("JWT_CLOCK_SKEW_SECONDS must be non-negative")
	}

	if c.RateLimitPerActorPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_ACTOR_PER_MIN must be positive")
	}

	if c.RateLimitPublicSubmissionsPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PUBLIC_SUBMISSIONS_PER_MIN must be positive")
	}

	if strings.TrimSpace(c.AdminGroupName) == "" {
		return fmt.Errorf("ADMIN_GROUP_NAME must not be empty")
	}

	if c.PermissionCacheTTLSeconds < 0 {
		return fmt.Errorf("PERMISSION_CACHE_TTL_SECONDS must be non-negative")
	}

	return nil
}

// GetAllowedIssuers returns the list of allowed JWT issuers
func (c *Config) GetAllowedIssuers() []string {
	issuers := strings.Split(c.JWTAllowedIssuers, ",")
	result := make([]string, 0, len(issuers))
	for _, issuer := range issuers {
		trimmed := strings.TrimSpace(issuer)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// TelemetryEnabled reports whether OTLP export should be initialized.
func (c *Config) TelemetryEnabled() bool {
	return c.OTELEnabled && strings.TrimSpace(c.OTELExporterEndpoint) != ""
}

// IsDevelopment reports whether dev-only routes may be mounted.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "dev" || c.AppEnv == "development"
}

// PermissionCacheTTL returns the actor permission cache TTL. Zero disables caching.
func (c *Config) PermissionCacheTTL() time.Duration {
	return time.Duration(c.PermissionCacheTTLSeconds) * time.Second
}
