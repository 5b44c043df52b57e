package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// loadFromString writes yaml to a temp file and loads it, failing the test
// on error.
func loadFromString(t *testing.T, yaml string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, yaml)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func loadStringErr(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return Load(path)
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", cfg.HTTPPort, DefaultHTTPPort)
	}
	if cfg.Upstream.BaseURL != DefaultBaseURL {
		t.Errorf("base_url: got %q, want %q", cfg.Upstream.BaseURL, DefaultBaseURL)
	}
	if cfg.Upstream.ResultPath != DefaultResultPath {
		t.Errorf("result_path: got %q", cfg.Upstream.ResultPath)
	}
	if cfg.Upstream.AuthHeader != DefaultAuthHeader {
		t.Errorf("auth_header: got %q", cfg.Upstream.AuthHeader)
	}
	if cfg.Upstream.Timeout != DefaultTimeout {
		t.Errorf("timeout: got %v, want %v", cfg.Upstream.Timeout, DefaultTimeout)
	}
	if !cfg.Upstream.VerifyTLS {
		t.Error("verify_tls must default to true")
	}
	if cfg.Jobs.Workers != DefaultWorkers {
		t.Errorf("workers: got %d, want %d", cfg.Jobs.Workers, DefaultWorkers)
	}
	if cfg.Jobs.DelayMin != DefaultDelayMin || cfg.Jobs.DelayMax != DefaultDelayMax {
		t.Errorf("delay bounds: got %v–%v, want %v–%v",
			cfg.Jobs.DelayMin, cfg.Jobs.DelayMax, DefaultDelayMin, DefaultDelayMax)
	}
}

func TestLoad_FileOverlay(t *testing.T) {
	yaml := `
http_port: 9090
upstream:
  base_url: "https://main.example.com/"
  auth_scheme: "Bearer"
  timeout: 3s
  verify_tls: false
jobs:
  workers: 2
  delay_min: 1s
  delay_max: 2s
`
	cfg := loadFromString(t, yaml)

	if cfg.HTTPPort != 9090 {
		t.Errorf("http_port: got %d", cfg.HTTPPort)
	}
	// Trailing slash is trimmed during normalization.
	if cfg.Upstream.BaseURL != "https://main.example.com" {
		t.Errorf("base_url: got %q", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.AuthScheme != "Bearer" {
		t.Errorf("auth_scheme: got %q", cfg.Upstream.AuthScheme)
	}
	if cfg.Upstream.Timeout != 3*time.Second {
		t.Errorf("timeout: got %v", cfg.Upstream.Timeout)
	}
	if cfg.Upstream.VerifyTLS {
		t.Error("verify_tls: got true, want false")
	}
	// Fields absent from the file keep their defaults.
	if cfg.Upstream.ResultPath != DefaultResultPath {
		t.Errorf("result_path: got %q, want default", cfg.Upstream.ResultPath)
	}
	if cfg.Jobs.Workers != 2 {
		t.Errorf("workers: got %d", cfg.Jobs.Workers)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("MAIN_SERVICE_BASE_URL", "https://env.example.com/")
	t.Setenv("CALLBACK_AUTH_TOKEN", "sekrit")
	t.Setenv("CALLBACK_AUTH_HEADER", "Authorization")
	t.Setenv("CALLBACK_AUTH_SCHEME", "Bearer")
	t.Setenv("MAIN_SERVICE_TIMEOUT_SECONDS", "7")
	t.Setenv("ASYNC_MAX_WORKERS", "3")
	t.Setenv("MAIN_SERVICE_VERIFY_TLS", "off")

	cfg := loadFromString(t, `
upstream:
  base_url: "https://file.example.com"
  auth_token: "from-file"
`)

	if cfg.Upstream.BaseURL != "https://env.example.com" {
		t.Errorf("base_url: got %q, want env value", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.AuthToken != "sekrit" {
		t.Errorf("auth_token: got %q", cfg.Upstream.AuthToken)
	}
	if cfg.Upstream.AuthHeader != "Authorization" {
		t.Errorf("auth_header: got %q", cfg.Upstream.AuthHeader)
	}
	if cfg.Upstream.AuthScheme != "Bearer" {
		t.Errorf("auth_scheme: got %q", cfg.Upstream.AuthScheme)
	}
	if cfg.Upstream.Timeout != 7*time.Second {
		t.Errorf("timeout: got %v", cfg.Upstream.Timeout)
	}
	if cfg.Jobs.Workers != 3 {
		t.Errorf("workers: got %d", cfg.Jobs.Workers)
	}
	if cfg.Upstream.VerifyTLS {
		t.Error("verify_tls: got true, want false via env")
	}
}

func TestLoad_InvalidEnvValueIgnored(t *testing.T) {
	t.Setenv("ASYNC_MAX_WORKERS", "many")
	t.Setenv("MAIN_SERVICE_TIMEOUT_SECONDS", "soon")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Jobs.Workers != DefaultWorkers {
		t.Errorf("workers: got %d, want default %d", cfg.Jobs.Workers, DefaultWorkers)
	}
	if cfg.Upstream.Timeout != DefaultTimeout {
		t.Errorf("timeout: got %v, want default %v", cfg.Upstream.Timeout, DefaultTimeout)
	}
}

func TestLoad_EnvBoolSemantics(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"0", false},
		{"false", false},
		{"FALSE", false},
		{"no", false},
		{"off", false},
		{"1", true},
		{"true", true},
		{"yes", true},
		{"anything", true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("MAIN_SERVICE_VERIFY_TLS", tt.value)
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Upstream.VerifyTLS != tt.want {
				t.Errorf("verify_tls with %q: got %v, want %v", tt.value, cfg.Upstream.VerifyTLS, tt.want)
			}
		})
	}
}

func TestLoad_DelayBoundsNormalized(t *testing.T) {
	t.Setenv("ASYNC_DELAY_MIN_SECONDS", "9")
	t.Setenv("ASYNC_DELAY_MAX_SECONDS", "2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Inverted bounds are swapped, not rejected.
	if cfg.Jobs.DelayMin != 2*time.Second || cfg.Jobs.DelayMax != 9*time.Second {
		t.Errorf("delay bounds: got %v–%v, want 2s–9s", cfg.Jobs.DelayMin, cfg.Jobs.DelayMax)
	}
}

func TestLoad_NegativeDelayClamped(t *testing.T) {
	cfg := loadFromString(t, `
jobs:
  delay_min: -3s
  delay_max: -1s
`)
	if cfg.Jobs.DelayMin != 0 || cfg.Jobs.DelayMax != 0 {
		t.Errorf("delay bounds: got %v–%v, want 0–0", cfg.Jobs.DelayMin, cfg.Jobs.DelayMax)
	}
}

func TestLoad_ResultPathLeadingSlash(t *testing.T) {
	t.Setenv("MAIN_SERVICE_ASYNC_RESULT_PATH", "api/results/{identifier}")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upstream.ResultPath != "/api/results/{identifier}" {
		t.Errorf("result_path: got %q", cfg.Upstream.ResultPath)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"port out of range", "http_port: 70000"},
		{"negative workers", "jobs:\n  workers: -1"},
		{"negative timeout", "upstream:\n  timeout: -1s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadStringErr(t, tt.yaml); err == nil {
				t.Fatalf("Load accepted invalid config:\n%s", tt.yaml)
			}
		})
	}
}

func TestLoad_EmptyBaseURLRejected(t *testing.T) {
	// A bare "/" normalizes to the empty string and must fail validation.
	t.Setenv("MAIN_SERVICE_BASE_URL", "/")
	if _, err := Load(""); err == nil {
		t.Fatal("Load accepted an empty base URL")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load accepted a missing config file")
	}
}
