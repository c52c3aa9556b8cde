package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"time"

	"go.yaml.in/yaml/v2"

	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/operation"
)

const (
	// DefaultWasmPath is where the Ghostscript module is looked for
	// when the config does not name one.
	DefaultWasmPath = "./gs.wasm"

	// DefaultUserAgent identifies the upload client to remote endpoints.
	DefaultUserAgent = "gspdf/1.0 (ghostscript pdf processor)"
)

// Config is the top-level configuration for the processing service.
type Config struct {
	Engine     EngineConfig      `yaml:"engine"`
	Operations []OperationConfig `yaml:"operations,omitempty"`
	Cache      CacheConfig       `yaml:"cache"`
	Upload     UploadConfig      `yaml:"upload"`
	Server     ServerConfig      `yaml:"server"`
}

// New returns a Config with sensible defaults.
func New() *Config {
	return &Config{
		Engine: EngineConfig{
			WasmPath: DefaultWasmPath,
		},
		Cache: CacheConfig{
			TTL: Duration(time.Hour),
		},
	}
}

// Load reads and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// EngineConfig controls the Ghostscript worker pool.
type EngineConfig struct {
	WasmPath   string   `yaml:"wasm_path,omitempty"`
	MinIdle    int      `yaml:"min_idle,omitempty"`
	MaxIdle    int      `yaml:"max_idle,omitempty"`
	MaxTotal   int      `yaml:"max_total,omitempty"`
	RunTimeout Duration `yaml:"run_timeout,omitempty"`
}

// GetWasmPath returns the module path with the default applied.
func (e *EngineConfig) GetWasmPath() string {
	if e.WasmPath != "" {
		return e.WasmPath
	}
	return DefaultWasmPath
}

// GetMaxTotal returns the worker cap with a default of 2.
func (e *EngineConfig) GetMaxTotal() int {
	if e.MaxTotal > 0 {
		return e.MaxTotal
	}
	return 2
}

// GetMaxIdle returns retained idle workers with a default of 1.
func (e *EngineConfig) GetMaxIdle() int {
	if e.MaxIdle > 0 {
		return e.MaxIdle
	}
	return 1
}

// GetRunTimeout returns the per-run limit with a default of 2 minutes.
func (e *EngineConfig) GetRunTimeout() time.Duration {
	if e.RunTimeout > 0 {
		return e.RunTimeout.Std()
	}
	return 2 * time.Minute
}

// OperationConfig overrides Ghostscript arguments for one operation.
type OperationConfig struct {
	Name               string   `yaml:"name"`
	PDFSettings        string   `yaml:"pdf_settings,omitempty"`
	CompatibilityLevel string   `yaml:"compatibility_level,omitempty"`
	ExtraArgs          []string `yaml:"extra_args,omitempty"`
}

// OperationFor returns the merged override for a named operation.
// Later entries with the same name override earlier ones field by field.
func (c *Config) OperationFor(name string) OperationConfig {
	resolved := OperationConfig{Name: name}
	for _, oc := range c.Operations {
		if oc.Name != name {
			continue
		}
		if oc.PDFSettings != "" {
			resolved.PDFSettings = oc.PDFSettings
		}
		if oc.CompatibilityLevel != "" {
			resolved.CompatibilityLevel = oc.CompatibilityLevel
		}
		if len(oc.ExtraArgs) > 0 {
			resolved.ExtraArgs = oc.ExtraArgs
		}
	}
	return resolved
}

// CacheConfig controls the artifact cache.
type CacheConfig struct {
	TTL    Duration `yaml:"ttl,omitempty"`
	Prefix string   `yaml:"prefix,omitempty"`
}

// IsEnabled returns true when caching is configured.
func (c *CacheConfig) IsEnabled() bool {
	return c.TTL > 0
}

// UploadConfig controls the remote upload variant.
type UploadConfig struct {
	Endpoint  string          `yaml:"endpoint,omitempty"`
	Timeout   Duration        `yaml:"timeout,omitempty"`
	UserAgent string          `yaml:"user_agent,omitempty"`
	RateLimit RateLimitConfig `yaml:"rate_limit,omitempty"`
	Retry     RetryConfig     `yaml:"retry,omitempty"`
}

// GetTimeout returns the upload timeout with a default of 60 seconds.
func (u *UploadConfig) GetTimeout() time.Duration {
	if u.Timeout > 0 {
		return u.Timeout.Std()
	}
	return 60 * time.Second
}

// GetUserAgent returns the configured user agent or the default.
func (u *UploadConfig) GetUserAgent() string {
	if u.UserAgent != "" {
		return u.UserAgent
	}
	return DefaultUserAgent
}

// RateLimitConfig bounds outbound upload requests.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
	Burst             int     `yaml:"burst,omitempty"`
	MaxConcurrent     int     `yaml:"max_concurrent,omitempty"`
	RespectRetryAfter bool    `yaml:"respect_retry_after,omitempty"`
}

// IsEnabled returns true if any rate limiting is configured.
func (r *RateLimitConfig) IsEnabled() bool {
	return r.RequestsPerSecond > 0 || r.MaxConcurrent > 0 || r.RespectRetryAfter
}

// GetBurst returns the burst size with a default of 1.
func (r *RateLimitConfig) GetBurst() int {
	if r.Burst > 0 {
		return r.Burst
	}
	return 1
}

// RetryConfig defines retry and exponential backoff behavior for
// failed uploads.
type RetryConfig struct {
	MaxRetries   int      `yaml:"max_retries,omitempty"`
	InitialDelay Duration `yaml:"initial_delay,omitempty"`
	MaxDelay     Duration `yaml:"max_delay,omitempty"`
	Multiplier   float64  `yaml:"multiplier,omitempty"`
	RetryOn      []int    `yaml:"retry_on,omitempty"`
}

// GetMaxRetries returns the max retries with a default of 0 (no retries).
func (r *RetryConfig) GetMaxRetries() int {
	if r.MaxRetries < 0 {
		return 0
	}
	return r.MaxRetries
}

// GetInitialDelay returns the initial delay with a default of 1 second.
func (r *RetryConfig) GetInitialDelay() time.Duration {
	if r.InitialDelay > 0 {
		return r.InitialDelay.Std()
	}
	return time.Second
}

// GetMaxDelay returns the max delay with a default of 30 seconds.
func (r *RetryConfig) GetMaxDelay() time.Duration {
	if r.MaxDelay > 0 {
		return r.MaxDelay.Std()
	}
	return 30 * time.Second
}

// GetMultiplier returns the backoff multiplier with a default of 2.0.
func (r *RetryConfig) GetMultiplier() float64 {
	if r.Multiplier > 0 {
		return r.Multiplier
	}
	return 2.0
}

// GetRetryOn returns the status codes to retry on with defaults
// [429, 500, 502, 503, 504].
func (r *RetryConfig) GetRetryOn() []int {
	if len(r.RetryOn) > 0 {
		return r.RetryOn
	}
	return []int{429, 500, 502, 503, 504}
}

// ShouldRetry returns true if the given status code should be retried.
func (r *RetryConfig) ShouldRetry(statusCode int) bool {
	return slices.Contains(r.GetRetryOn(), statusCode)
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr              string   `yaml:"addr,omitempty"`
	MaxUploadBytes    int64    `yaml:"max_upload_bytes,omitempty"`
	RateLimitRequests int      `yaml:"rate_limit_requests,omitempty"`
	RateLimitWindow   Duration `yaml:"rate_limit_window,omitempty"`
}

// GetMaxUploadBytes returns the request size cap with a default of 100 MiB.
func (s *ServerConfig) GetMaxUploadBytes() int64 {
	if s.MaxUploadBytes > 0 {
		return s.MaxUploadBytes
	}
	return 100 << 20
}

// Validate checks the configuration for errors and conflicts.
func (c *Config) Validate() error {
	if c.Engine.MinIdle < 0 {
		return fmt.Errorf("engine: 'min_idle' must be >= 0")
	}
	if c.Engine.MaxTotal < 0 || c.Engine.MaxIdle < 0 {
		return fmt.Errorf("engine: pool sizes must be >= 0")
	}
	if c.Engine.MaxTotal > 0 && c.Engine.MinIdle > c.Engine.MaxTotal {
		return fmt.Errorf("engine: 'min_idle' (%d) cannot exceed 'max_total' (%d)",
			c.Engine.MinIdle, c.Engine.MaxTotal)
	}
	if c.Engine.RunTimeout < 0 {
		return fmt.Errorf("engine: 'run_timeout' must be >= 0")
	}

	for i, oc := range c.Operations {
		if oc.Name == "" {
			return fmt.Errorf("operations[%d]: name cannot be empty", i)
		}
		if _, err := operation.Parse(oc.Name); err != nil {
			return fmt.Errorf("operations[%d]: %w", i, err)
		}
	}

	if err := c.validateUpload(); err != nil {
		return err
	}

	if c.Server.MaxUploadBytes < 0 {
		return fmt.Errorf("server: 'max_upload_bytes' must be >= 0")
	}
	if c.Server.RateLimitRequests < 0 {
		return fmt.Errorf("server: 'rate_limit_requests' must be >= 0")
	}

	return nil
}

func (c *Config) validateUpload() error {
	u := c.Upload

	if u.Endpoint != "" {
		if err := ValidateEndpoint(u.Endpoint); err != nil {
			return fmt.Errorf("upload: %w", err)
		}
	}
	if u.Timeout < 0 {
		return fmt.Errorf("upload: 'timeout' must be >= 0")
	}

	r := u.Retry
	if r.Multiplier > 0 && r.Multiplier < 1.0 {
		return fmt.Errorf("upload.retry: 'multiplier' must be >= 1.0 (got %.2f)", r.Multiplier)
	}
	if r.MaxRetries < 0 {
		return fmt.Errorf("upload.retry: 'max_retries' must be >= 0")
	}
	if r.MaxDelay > 0 && r.InitialDelay > r.MaxDelay {
		return fmt.Errorf("upload.retry: 'initial_delay' (%s) cannot be greater than 'max_delay' (%s)",
			r.InitialDelay, r.MaxDelay)
	}
	for _, code := range r.RetryOn {
		if code < 100 || code > 599 {
			return fmt.Errorf("upload.retry: invalid HTTP status code %d in 'retry_on'", code)
		}
	}

	rl := u.RateLimit
	if rl.Burst > 0 && rl.RequestsPerSecond == 0 {
		return fmt.Errorf("upload.rate_limit: 'burst' requires 'requests_per_second'")
	}
	if rl.MaxConcurrent < 0 {
		return fmt.Errorf("upload.rate_limit: 'max_concurrent' must be >= 0")
	}

	return nil
}

// ValidateEndpoint checks that a remote upload endpoint is an absolute
// http(s) URL with a host.
func ValidateEndpoint(endpoint string) error {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("endpoint must use http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("endpoint is missing a host")
	}
	return nil
}
