package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

// ErrNotLoaded is returned by Get before a successful Load.
var ErrNotLoaded = errors.New("configuration not loaded; call Load() first")

// Provider holds the process configuration. Use GetProvider.
type Provider struct {
	mu     sync.RWMutex
	config *Config
}

var (
	instance *Provider
	once     sync.Once
)

// GetProvider returns the process wide provider.
func GetProvider() *Provider {
	once.Do(func() {
		instance = &Provider{}
	})
	return instance
}

// Load reads the .env files and the environment once. Later calls are
// no-ops; use Reload to read again.
func (p *Provider) Load() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config != nil {
		return nil
	}
	if err := loadEnvFiles(); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return p.build()
}

// MustLoad is Load for program start, where a bad configuration is fatal.
func (p *Provider) MustLoad() {
	if err := p.Load(); err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
}

// Reload re-reads the environment, without the .env files.
func (p *Provider) Reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.build()
}

// build parses and validates; the previous configuration survives a failure.
func (p *Provider) build() error {
	cfg := fromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	p.config = cfg
	return nil
}

// Get returns the loaded configuration.
func (p *Provider) Get() (*Config, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.config == nil {
		return nil, ErrNotLoaded
	}
	return p.config, nil
}

// MustGet is Get that panics before Load.
func (p *Provider) MustGet() *Config {
	cfg, err := p.Get()
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

// Reset forgets the loaded configuration. Tests only.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.config = nil
}

// IsLoaded reports whether Load has succeeded.
func (p *Provider) IsLoaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config != nil
}

// envFiles lists the optional .env files, lowest precedence first.
func envFiles() []string {
	files := []string{".env"}

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = os.Getenv("ENV")
	}
	if env != "" {
		files = append(files, ".env."+env)
	}

	return append(files, ".env.local")
}

// loadEnvFiles applies the files that exist. Variables already set in the
// process win over .env; the environment specific and local files
// override both.
func loadEnvFiles() error {
	for i, file := range envFiles() {
		if _, err := os.Stat(file); err != nil {
			continue
		}

		load := godotenv.Overload
		if i == 0 {
			load = godotenv.Load
		}
		if err := load(file); err != nil {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// fromEnv builds a configuration from the environment over DefaultConfig.
func fromEnv() *Config {
	d := DefaultConfig()

	cfg := &Config{
		Environment: envString("ENVIRONMENT", d.Environment),
		ServiceName: envString("SERVICE_NAME", d.ServiceName),
		LogLevel:    envString("LOG_LEVEL", d.LogLevel),
		Version:     envString("SERVICE_VERSION", d.Version),

		HTTP: HTTPConfig{
			Addr:              envString("HTTP_ADDR", d.HTTP.Addr),
			ReadHeaderTimeout: envDuration("HTTP_READ_HEADER_TIMEOUT", d.HTTP.ReadHeaderTimeout),
			IdleTimeout:       envDuration("HTTP_IDLE_TIMEOUT", d.HTTP.IdleTimeout),
			ShutdownTimeout:   envDuration("HTTP_SHUTDOWN_TIMEOUT", d.HTTP.ShutdownTimeout),
		},

		Handler: HandlerConfig{
			Timeout:        envDuration("HANDLER_TIMEOUT", d.Handler.Timeout),
			MaxRequestSize: envInt64("HANDLER_MAX_REQUEST_SIZE", d.Handler.MaxRequestSize),
			EnableHealth:   envBool("HANDLER_ENABLE_HEALTH", d.Handler.EnableHealth),
			EnableMetrics:  envBool("HANDLER_ENABLE_METRICS", d.Handler.EnableMetrics),
			EnableTracing:  envBool("HANDLER_ENABLE_TRACING", d.Handler.EnableTracing),
			Retry: RetryConfig{
				MaxAttempts:       envInt("HANDLER_MAX_RETRIES", d.Handler.Retry.MaxAttempts),
				InitialBackoff:    envDuration("HANDLER_RETRY_BACKOFF", d.Handler.Retry.InitialBackoff),
				MaxBackoff:        envDuration("HANDLER_RETRY_MAX_BACKOFF", d.Handler.Retry.MaxBackoff),
				BackoffMultiplier: envFloat("HANDLER_RETRY_MULTIPLIER", d.Handler.Retry.BackoffMultiplier),
			},
		},

		Tools: ToolsConfig{
			ExtractorPath:   envString("EXTRACTOR_PATH", d.Tools.ExtractorPath),
			TranscoderPath:  envString("TRANSCODER_PATH", d.Tools.TranscoderPath),
			MetadataTimeout: envDuration("EXTRACTOR_METADATA_TIMEOUT", d.Tools.MetadataTimeout),
			ExtraArgs:       envFields("EXTRACTOR_EXTRA_ARGS"),
			KillGracePeriod: envDuration("TOOL_KILL_GRACE_PERIOD", d.Tools.KillGracePeriod),
		},

		Relay: RelayConfig{
			ChunkSize:      envInt("RELAY_CHUNK_SIZE", d.Relay.ChunkSize),
			ProgressEvery:  envInt("RELAY_PROGRESS_EVERY", d.Relay.ProgressEvery),
			MaxDuration:    envDuration("RELAY_MAX_DURATION", d.Relay.MaxDuration),
			AudioExtension: envString("RELAY_AUDIO_EXTENSION", d.Relay.AudioExtension),
			DefaultTitle:   envString("RELAY_DEFAULT_TITLE", d.Relay.DefaultTitle),
		},

		Progress: ProgressConfig{
			TTL:           envDuration("PROGRESS_TTL", d.Progress.TTL),
			SweepInterval: envDuration("PROGRESS_SWEEP_INTERVAL", d.Progress.SweepInterval),
			HistoryLimit:  envInt("HISTORY_LIMIT", d.Progress.HistoryLimit),
			RecentLimit:   envInt("HISTORY_RECENT_LIMIT", d.Progress.RecentLimit),
		},

		Batch: BatchConfig{
			MaxItems:    envInt("BATCH_MAX_ITEMS", d.Batch.MaxItems),
			ItemFormat:  envString("BATCH_ITEM_FORMAT", d.Batch.ItemFormat),
			SearchLimit: envInt("SEARCH_DEFAULT_LIMIT", d.Batch.SearchLimit),
			MaxSearch:   envInt("SEARCH_MAX_LIMIT", d.Batch.MaxSearch),
		},

		Storage: StorageConfig{
			Provider:   envString("STORAGE_PROVIDER", d.Storage.Provider),
			BasePath:   envString("STORAGE_BASE_PATH", d.Storage.BasePath),
			MaxRetries: envInt("STORAGE_MAX_RETRIES", d.Storage.MaxRetries),
			Timeout:    envDuration("STORAGE_TIMEOUT", d.Storage.Timeout),
			S3: S3Config{
				Region:          envString("AWS_REGION", d.Storage.S3.Region),
				Bucket:          envString("S3_BUCKET", d.Storage.S3.Bucket),
				AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
				Endpoint:        os.Getenv("S3_ENDPOINT"),
				UsePathStyle:    envBool("S3_USE_PATH_STYLE", d.Storage.S3.UsePathStyle),
			},
		},

		RateLimit: RateLimitConfig{
			Enabled:           envBool("RATE_LIMIT_ENABLED", d.RateLimit.Enabled),
			RequestsPerSecond: envFloat("RATE_LIMIT_RPS", d.RateLimit.RequestsPerSecond),
			Burst:             envInt("RATE_LIMIT_BURST", d.RateLimit.Burst),
		},

		UI: UIConfig{
			Locale: os.Getenv("UI_LOCALE"),
		},
	}

	cfg.applyDefaults()
	return cfg
}
