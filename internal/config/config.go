package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when neither the config file nor the environment
// provides a setting. The defaults form a complete development configuration
// so the process is runnable with no config at all.
const (
	DefaultHTTPPort   = 8080
	DefaultBaseURL    = "https://localhost:3000"
	DefaultResultPath = "/api/beam_deflections/{identifier}/async_result"
	DefaultAuthHeader = "X-Async-Token"
	DefaultAuthToken  = "12345678"
	DefaultTimeout    = 10 * time.Second
	DefaultDelayMin   = 5 * time.Second
	DefaultDelayMax   = 10 * time.Second
	DefaultWorkers    = 5
)

// Config is the full process configuration. It is built once at startup and
// passed by reference into the dispatcher, sender and API handler — never
// mutated afterwards.
type Config struct {
	// HTTPPort is the port the inbound HTTP API listens on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Upstream configures outbound callback delivery.
	Upstream Upstream `yaml:"upstream"`

	// Jobs configures the worker pool and the artificial computation delay.
	Jobs Jobs `yaml:"jobs"`
}

// Upstream holds everything the callback sender needs to reach the
// triggering system.
type Upstream struct {
	// BaseURL is the upstream service's base URL, without a trailing slash.
	BaseURL string `yaml:"base_url"`

	// ResultPath is the callback path template. The literal "{identifier}"
	// is replaced with the request identifier at delivery time.
	ResultPath string `yaml:"result_path"`

	// AuthHeader is the name of the authentication header sent with every
	// callback (default "X-Async-Token").
	AuthHeader string `yaml:"auth_header"`

	// AuthScheme is an optional prefix for the header value, e.g. "Bearer".
	// Empty means the token is sent bare.
	AuthScheme string `yaml:"auth_scheme"`

	// AuthToken is the shared secret the upstream expects. Usually supplied
	// via the CALLBACK_AUTH_TOKEN environment variable rather than the file.
	AuthToken string `yaml:"auth_token"`

	// Timeout bounds one delivery attempt, connection setup included.
	Timeout time.Duration `yaml:"timeout"`

	// VerifyTLS controls certificate verification on the callback
	// connection. Disable only against local self-signed endpoints.
	VerifyTLS bool `yaml:"verify_tls"`
}

// Jobs holds the dispatcher settings.
type Jobs struct {
	// Workers is the size of the worker pool (default 5).
	Workers int `yaml:"workers"`

	// DelayMin and DelayMax bound the artificial per-job delay drawn
	// uniformly before a job computes. Set both to 0 to disable the delay.
	DelayMin time.Duration `yaml:"delay_min"`
	DelayMax time.Duration `yaml:"delay_max"`
}

// Load builds the configuration: defaults, overlaid by the YAML file at path
// (skipped when path is empty), overlaid by environment variables.
// Delay bounds are normalized rather than rejected; everything structurally
// impossible fails validation.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	applyEnv(cfg)
	normalize(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with the development defaults.
func defaults() *Config {
	return &Config{
		HTTPPort: DefaultHTTPPort,
		Upstream: Upstream{
			BaseURL:    DefaultBaseURL,
			ResultPath: DefaultResultPath,
			AuthHeader: DefaultAuthHeader,
			AuthToken:  DefaultAuthToken,
			Timeout:    DefaultTimeout,
			VerifyTLS:  true,
		},
		Jobs: Jobs{
			Workers:  DefaultWorkers,
			DelayMin: DefaultDelayMin,
			DelayMax: DefaultDelayMax,
		},
	}
}

// applyEnv overlays environment variables onto cfg. Variable names follow
// the upstream service's deployment contract. An unset variable keeps the
// current value; a set-but-unparsable numeric value is ignored the same way.
func applyEnv(cfg *Config) {
	envStr("MAIN_SERVICE_BASE_URL", &cfg.Upstream.BaseURL)
	envStr("MAIN_SERVICE_ASYNC_RESULT_PATH", &cfg.Upstream.ResultPath)
	envStr("CALLBACK_AUTH_TOKEN", &cfg.Upstream.AuthToken)
	envStr("CALLBACK_AUTH_HEADER", &cfg.Upstream.AuthHeader)
	envStr("CALLBACK_AUTH_SCHEME", &cfg.Upstream.AuthScheme)
	envBool("MAIN_SERVICE_VERIFY_TLS", &cfg.Upstream.VerifyTLS)
	envSeconds("MAIN_SERVICE_TIMEOUT_SECONDS", &cfg.Upstream.Timeout)
	envSeconds("ASYNC_DELAY_MIN_SECONDS", &cfg.Jobs.DelayMin)
	envSeconds("ASYNC_DELAY_MAX_SECONDS", &cfg.Jobs.DelayMax)
	envInt("ASYNC_MAX_WORKERS", &cfg.Jobs.Workers)
	envInt("HTTP_PORT", &cfg.HTTPPort)
}

func envStr(name string, dst *string) {
	if v, ok := os.LookupEnv(name); ok {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = n
}

func envSeconds(name string, dst *time.Duration) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = time.Duration(n) * time.Second
}

// envBool treats "0", "false", "no" and "off" (any case) as false and any
// other non-empty value as true, matching the upstream deployment contract.
func envBool(name string, dst *bool) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return
	}
	switch strings.ToLower(v) {
	case "0", "false", "no", "off":
		*dst = false
	default:
		*dst = true
	}
}

// normalize fixes values that are tolerated rather than rejected: the base
// URL's trailing slash, the result path's leading slash, and delay bounds
// that are negative or inverted.
func normalize(cfg *Config) {
	cfg.Upstream.BaseURL = strings.TrimRight(cfg.Upstream.BaseURL, "/")
	if cfg.Upstream.ResultPath != "" && !strings.HasPrefix(cfg.Upstream.ResultPath, "/") {
		cfg.Upstream.ResultPath = "/" + cfg.Upstream.ResultPath
	}
	if cfg.Jobs.DelayMin < 0 {
		cfg.Jobs.DelayMin = 0
	}
	if cfg.Jobs.DelayMax < 0 {
		cfg.Jobs.DelayMax = 0
	}
	if cfg.Jobs.DelayMin > cfg.Jobs.DelayMax {
		cfg.Jobs.DelayMin, cfg.Jobs.DelayMax = cfg.Jobs.DelayMax, cfg.Jobs.DelayMin
	}
}

// validate checks structural constraints on the final configuration.
func validate(cfg *Config) error {
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("http_port %d is out of range [1, 65535]", cfg.HTTPPort)
	}
	if cfg.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if cfg.Upstream.ResultPath == "" {
		return fmt.Errorf("upstream.result_path is required")
	}
	if cfg.Upstream.AuthHeader == "" {
		return fmt.Errorf("upstream.auth_header is required")
	}
	if cfg.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	if cfg.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs.workers must be positive")
	}
	return nil
}
