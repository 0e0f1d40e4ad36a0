package config

import "time"

// DefaultHTTPConfig returns sensible defaults for the HTTP server
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Addr:              ":8080",
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   30 * time.Second,
	}
}

// DefaultHandlerConfig returns sensible defaults for handler configuration
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		Timeout:        2 * time.Minute,
		MaxRequestSize: 1 * 1024 * 1024, // 1MB
		EnableHealth:   true,
		EnableMetrics:  true,
		EnableTracing:  true,
		Retry:          DefaultRetryConfig(),
	}
}

// DefaultRetryConfig returns the retry defaults. Retrying is off unless
// HANDLER_MAX_RETRIES is set.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       0,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// DefaultToolsConfig returns defaults for the external extractor and transcoder
func DefaultToolsConfig() ToolsConfig {
	return ToolsConfig{
		ExtractorPath:   "yt-dlp",
		TranscoderPath:  "ffmpeg",
		MetadataTimeout: 90 * time.Second,
		KillGracePeriod: 5 * time.Second,
	}
}

// DefaultRelayConfig returns defaults for the streaming relay
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		ChunkSize:      8192,
		ProgressEvery:  128,
		AudioExtension: "mp3",
		DefaultTitle:   "video",
	}
}

// DefaultProgressConfig returns defaults for progress tracking
func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{
		TTL:           time.Hour,
		SweepInterval: 5 * time.Minute,
		HistoryLimit:  1000,
		RecentLimit:   20,
	}
}

// DefaultBatchConfig returns defaults for batch processing
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxItems:    100,
		ItemFormat:  "best",
		SearchLimit: 10,
		MaxSearch:   50,
	}
}

// DefaultStorageConfig returns sensible defaults for artifact storage
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Provider:   "fs",
		BasePath:   "./artifacts",
		MaxRetries: 3,
		Timeout:    30 * time.Second,
		S3: S3Config{
			Region: "us-east-2",
		},
	}
}

// DefaultRateLimitConfig returns defaults for API rate limiting
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:           false,
		RequestsPerSecond: 5,
		Burst:             20,
	}
}

// DefaultConfig returns a complete configuration with sensible defaults
// This is useful for testing or when you want to start with defaults and override specific parts
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		ServiceName: "streamrelay",
		LogLevel:    "info",
		Version:     "dev",

		HTTP:      DefaultHTTPConfig(),
		Handler:   DefaultHandlerConfig(),
		Tools:     DefaultToolsConfig(),
		Relay:     DefaultRelayConfig(),
		Progress:  DefaultProgressConfig(),
		Batch:     DefaultBatchConfig(),
		Storage:   DefaultStorageConfig(),
		RateLimit: DefaultRateLimitConfig(),
		UI:        UIConfig{Locale: "ar"},
	}
}
