package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete service configuration, read from the
// environment by Provider.
type Config struct {
	Environment string
	ServiceName string
	LogLevel    string
	Version     string

	HTTP      HTTPConfig
	Handler   HandlerConfig
	Tools     ToolsConfig
	Relay     RelayConfig
	Progress  ProgressConfig
	Batch     BatchConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
	UI        UIConfig
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

// HandlerConfig selects the middleware wrapped around JSON operations.
type HandlerConfig struct {
	Timeout        time.Duration
	MaxRequestSize int64
	EnableHealth   bool
	EnableMetrics  bool
	EnableTracing  bool
	Retry          RetryConfig
}

// RetryConfig configures retries of JSON operations that failed with a
// retryable error. MaxAttempts 0 disables retrying.
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// ToolsConfig holds the external tool locations and invocation limits
type ToolsConfig struct {
	ExtractorPath   string
	TranscoderPath  string
	MetadataTimeout time.Duration
	ExtraArgs       []string
	KillGracePeriod time.Duration
}

// RelayConfig controls the streaming download relay
type RelayConfig struct {
	ChunkSize      int
	ProgressEvery  int
	MaxDuration    time.Duration // 0 disables the hard limit
	AudioExtension string
	DefaultTitle   string
}

// ProgressConfig controls progress record eviction and history retention
type ProgressConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	HistoryLimit  int
	RecentLimit   int
}

// BatchConfig controls background batch processing
type BatchConfig struct {
	MaxItems    int
	ItemFormat  string
	SearchLimit int
	MaxSearch   int
}

// StorageConfig holds artifact storage configuration
type StorageConfig struct {
	Provider   string // "fs" or "s3"
	BasePath   string
	MaxRetries int
	Timeout    time.Duration
	S3         S3Config
}

// S3Config locates the artifact bucket. Empty credentials fall back to
// the default AWS chain.
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	UsePathStyle    bool
}

// RateLimitConfig configures the per-client token bucket
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// UIConfig holds user-facing presentation settings
type UIConfig struct {
	Locale string
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, problem string) {
		if !ok {
			problems = append(problems, problem)
		}
	}

	check(c.ServiceName != "", "SERVICE_NAME is required")
	check(c.HTTP.Addr != "", "HTTP_ADDR is required")
	check(c.Handler.Timeout > 0, "HANDLER_TIMEOUT must be positive")
	check(c.Handler.MaxRequestSize > 0, "HANDLER_MAX_REQUEST_SIZE must be positive")
	check(c.Handler.Retry.MaxAttempts >= 0, "HANDLER_MAX_RETRIES cannot be negative")
	check(c.Tools.ExtractorPath != "", "EXTRACTOR_PATH is required")
	check(c.Relay.ChunkSize > 0, "RELAY_CHUNK_SIZE must be positive")
	check(c.Relay.ProgressEvery > 0, "RELAY_PROGRESS_EVERY must be positive")
	check(c.Relay.MaxDuration >= 0, "RELAY_MAX_DURATION cannot be negative")
	check(c.Progress.HistoryLimit >= c.Progress.RecentLimit, "HISTORY_LIMIT must be >= HISTORY_RECENT_LIMIT")
	check(c.Batch.MaxItems > 0, "BATCH_MAX_ITEMS must be positive")
	check(!c.RateLimit.Enabled || c.RateLimit.RequestsPerSecond > 0,
		"RATE_LIMIT_RPS must be positive when rate limiting is enabled")

	switch c.Storage.Provider {
	case "fs":
		check(c.Storage.BasePath != "", "STORAGE_BASE_PATH is required for the fs provider")
	case "s3":
		check(c.Storage.S3.Bucket != "", "S3_BUCKET is required for the s3 provider")
	default:
		check(false, fmt.Sprintf("unsupported STORAGE_PROVIDER %q", c.Storage.Provider))
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("configuration errors: %s", strings.Join(problems, "; "))
}

// applyDefaults adjusts settings that depend on the environment.
func (c *Config) applyDefaults() {
	switch {
	case c.IsProduction():
		// a wedged extractor must not hold a relay open forever
		if c.Relay.MaxDuration == 0 {
			c.Relay.MaxDuration = 4 * time.Hour
		}
		c.Handler.EnableMetrics = true
		c.RateLimit.Enabled = true
	case c.IsLocal():
		c.Handler.EnableTracing = false
	}

	if c.UI.Locale == "" {
		c.UI.Locale = "ar"
	}
}

var environmentAliases = map[string]string{
	"local":       "local",
	"development": "local",
	"dev":         "local",
	"production":  "production",
	"prod":        "production",
	"test":        "test",
	"testing":     "test",
}

func (c *Config) environment() string {
	return environmentAliases[strings.ToLower(c.Environment)]
}

// IsLocal matches local, development and dev.
func (c *Config) IsLocal() bool { return c.environment() == "local" }

// IsProduction matches production and prod.
func (c *Config) IsProduction() bool { return c.environment() == "production" }

// IsTest matches test and testing.
func (c *Config) IsTest() bool { return c.environment() == "test" }
