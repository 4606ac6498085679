package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for ekaya-regwatch.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// MigrationsPath is the directory holding golang-migrate SQL files.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`

	Auth     AuthConfig     `yaml:"auth"`
	Cron     CronConfig     `yaml:"cron"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	LLM      LLMConfig      `yaml:"llm"`
	Registry RegistryConfig `yaml:"registry"`
	Storage  StorageConfig  `yaml:"storage"`
	Render   RenderConfig   `yaml:"render"`
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	// EnableVerification controls whether JWT signatures are validated.
	// Set to false for local development.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// Issuer is the expected iss claim. Empty skips the issuer check.
	Issuer string `yaml:"issuer" env:"AUTH_ISSUER" env-default:""`

	// JWTSecret is the HS256 signing key shared with the identity provider.
	JWTSecret string `yaml:"-" env:"AUTH_JWT_SECRET"` // Secret - not in YAML
}

// CronConfig holds the shared secret for scheduled trigger endpoints.
type CronConfig struct {
	Secret string `yaml:"-" env:"CRON_SECRET"` // Secret - not in YAML

	// PollLockTTL bounds how long one poll cycle can hold the Redis lease.
	PollLockTTL time.Duration `yaml:"poll_lock_ttl" env:"CRON_POLL_LOCK_TTL" env-default:"10m"`

	// ProcessBatchSize is how many pending base outputs the process-outputs trigger drains per call.
	ProcessBatchSize int `yaml:"process_batch_size" env:"CRON_PROCESS_BATCH_SIZE" env-default:"3"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"regwatch"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"regwatch"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds Redis configuration. An empty host disables Redis.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// LLMConfig selects the generative model provider and default models.
type LLMConfig struct {
	// Provider is "anthropic" or "openai".
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"anthropic"`
	// Endpoint overrides the provider base URL (required for self-hosted OpenAI-compatible endpoints).
	Endpoint string `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:""`
	APIKey   string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML

	BaseMemoModel      string `yaml:"base_memo_model" env:"LLM_BASE_MEMO_MODEL" env-default:"claude-opus-4-5-20251101"`
	BaseSlideModel     string `yaml:"base_slide_model" env:"LLM_BASE_SLIDE_MODEL" env-default:"claude-sonnet-4-20250514"`
	CustomizationModel string `yaml:"customization_model" env:"LLM_CUSTOMIZATION_MODEL" env-default:"claude-haiku-4-5-20251001"`

	MemoMaxTokens  int `yaml:"memo_max_tokens" env:"LLM_MEMO_MAX_TOKENS" env-default:"4000"`
	SlideMaxTokens int `yaml:"slide_max_tokens" env:"LLM_SLIDE_MAX_TOKENS" env-default:"16000"`

	// MaxInputChars caps extracted text before it is sent to the base call.
	MaxInputChars int `yaml:"max_input_chars" env:"LLM_MAX_INPUT_CHARS" env-default:"180000"`

	// MaxConcurrent bounds parallel customization calls.
	MaxConcurrent  int           `yaml:"max_concurrent" env:"LLM_MAX_CONCURRENT" env-default:"4"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"LLM_REQUEST_TIMEOUT" env-default:"5m"`
}

// RegistryConfig configures the Federal Register and newsroom feed clients.
type RegistryConfig struct {
	BaseURL     string        `yaml:"base_url" env:"REGISTRY_BASE_URL" env-default:"https://www.federalregister.gov/api/v1"`
	Timeout     time.Duration `yaml:"timeout" env:"REGISTRY_TIMEOUT" env-default:"30s"`
	PDFTimeout  time.Duration `yaml:"pdf_timeout" env:"REGISTRY_PDF_TIMEOUT" env-default:"2m"`
	MaxPDFBytes int64         `yaml:"max_pdf_bytes" env:"REGISTRY_MAX_PDF_BYTES" env-default:"52428800"`
	UserAgent   string        `yaml:"user_agent" env:"REGISTRY_USER_AGENT" env-default:"Mozilla/5.0 (compatible; Regulatory Monitor/1.0)"`
}

// StorageConfig configures the blob store root.
type StorageConfig struct {
	Root string `yaml:"root" env:"STORAGE_ROOT" env-default:"./data/blobs"`
}

// RenderConfig configures artifact rendering.
type RenderConfig struct {
	// MemoFontPath is a TrueType font for memo PDFs. Empty uses Helvetica,
	// which has no glyphs outside cp1252.
	MemoFontPath string `yaml:"memo_font_path" env:"MEMO_FONT_PATH" env-default:""`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Secrets (PGPASSWORD, CRON_SECRET, LLM_API_KEY, AUTH_JWT_SECRET) must come from
// environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.resolveServiceHosts()

	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// validate ensures secrets needed by enabled features are present.
func (c *Config) validate() error {
	if c.Cron.Secret == "" {
		return fmt.Errorf("CRON_SECRET must be set")
	}
	if c.Auth.EnableVerification && c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET must be set when auth verification is enabled")
	}
	switch c.LLM.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}
	if c.LLM.Provider == "openai" && c.LLM.Endpoint == "" {
		return fmt.Errorf("llm.endpoint is required for the openai provider")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
