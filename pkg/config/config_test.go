package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// chdirTemp writes config.yaml (when content is non-empty) into a temp dir and
// switches to it for the duration of the test.
func chdirTemp(t *testing.T, content string) {
	t.Helper()
	tmpDir := t.TempDir()
	if content != "" {
		if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
	}

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(originalDir)
	})
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	chdirTemp(t, `
port: "3443"
env: "test"
database:
  host: "db.example.com"
  port: 5432
  user: "testuser"
  database: "testdb"
llm:
  max_input_chars: 1000
registry:
  timeout: 5s
`)

	os.Unsetenv("PGHOST")
	os.Unsetenv("BASE_URL")
	t.Setenv("PORT", "4443")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("CRON_SECRET", "cron-secret")
	t.Setenv("AUTH_JWT_SECRET", "jwt-secret")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "4443" {
		t.Errorf("expected Port=4443 (from env), got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("expected Env=production (from env), got %s", cfg.Env)
	}
	if cfg.Database.Host != "db.example.com" {
		t.Errorf("expected Database.Host from YAML, got %s", cfg.Database.Host)
	}
	if cfg.LLM.MaxInputChars != 1000 {
		t.Errorf("expected MaxInputChars=1000, got %d", cfg.LLM.MaxInputChars)
	}
	if cfg.Registry.Timeout != 5*time.Second {
		t.Errorf("expected Registry.Timeout=5s, got %s", cfg.Registry.Timeout)
	}
	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}
	if cfg.BaseURL != "http://localhost:4443" {
		t.Errorf("expected derived BaseURL, got %s", cfg.BaseURL)
	}
	if cfg.Cron.Secret != "cron-secret" {
		t.Errorf("expected cron secret from env")
	}
}

func TestLoad_DefaultsWithoutYAML(t *testing.T) {
	chdirTemp(t, "")
	t.Setenv("CRON_SECRET", "cron-secret")
	t.Setenv("AUTH_ENABLE_VERIFICATION", "false")

	cfg, err := Load("dev")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("expected default provider anthropic, got %s", cfg.LLM.Provider)
	}
	if cfg.LLM.MaxInputChars != 180000 {
		t.Errorf("expected default MaxInputChars=180000, got %d", cfg.LLM.MaxInputChars)
	}
	if cfg.LLM.CustomizationModel != "claude-haiku-4-5-20251001" {
		t.Errorf("unexpected customization model %s", cfg.LLM.CustomizationModel)
	}
	if cfg.Registry.BaseURL != "https://www.federalregister.gov/api/v1" {
		t.Errorf("unexpected registry base url %s", cfg.Registry.BaseURL)
	}
}

func TestLoad_MissingCronSecret(t *testing.T) {
	chdirTemp(t, "")
	t.Setenv("CRON_SECRET", "")
	t.Setenv("AUTH_ENABLE_VERIFICATION", "false")

	if _, err := Load("dev"); err == nil {
		t.Fatal("expected error when CRON_SECRET is missing")
	}
}

func TestLoad_OpenAIRequiresEndpoint(t *testing.T) {
	chdirTemp(t, "")
	t.Setenv("CRON_SECRET", "cron-secret")
	t.Setenv("AUTH_ENABLE_VERIFICATION", "false")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("LLM_ENDPOINT", "")

	if _, err := Load("dev"); err == nil {
		t.Fatal("expected error for openai provider without endpoint")
	}
}

func TestConnectionString(t *testing.T) {
	c := &DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "regwatch",
		Password: "secret",
		Database: "regwatch",
		SSLMode:  "disable",
	}
	want := "host=localhost port=5432 user=regwatch password=secret dbname=regwatch sslmode=disable"
	if got := c.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}
