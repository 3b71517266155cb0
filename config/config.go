// Package config loads pipeline configuration from a YAML file with
// environment overrides. A missing file is fine: defaults are always valid
// and every knob can be set through VOICETRA_* variables alone.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full pipeline configuration.
type Config struct {
	API       APIConfig       `yaml:"api"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Queue     QueueConfig     `yaml:"queue"`
	Cache     CacheConfig     `yaml:"cache"`
	Backoff   BackoffConfig   `yaml:"backoff"`
	Log       LogConfig       `yaml:"log"`
}

type APIConfig struct {
	BaseURL          string `yaml:"base_url"`
	ServiceID        string `yaml:"service_id"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
	MaxRetryAttempts int    `yaml:"max_retry_attempts"`
}

type RateLimitConfig struct {
	Limit         int `yaml:"limit"`
	WindowSeconds int `yaml:"window_seconds"`
}

type QueueConfig struct {
	Capacity int `yaml:"capacity"`
}

type CacheConfig struct {
	Dir            string `yaml:"dir"`
	MemoryMaxItems int    `yaml:"memory_max_items"`
	MemoryMaxBytes int64  `yaml:"memory_max_bytes"`
	DiskMaxBytes   int64  `yaml:"disk_max_bytes"`
}

type BackoffConfig struct {
	MaxRetries  int `yaml:"max_retries"`
	BaseDelayMS int `yaml:"base_delay_ms"`
	MaxDelayMS  int `yaml:"max_delay_ms"`
}

type LogConfig struct {
	Path     string `yaml:"path"`
	AuditLog string `yaml:"audit_log"`
	Verbose  bool   `yaml:"verbose"`
}

// Default returns the configuration used when nothing else is provided.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:          "https://api.voicetra.app/v1",
			ServiceID:        "translation-api",
			TimeoutSeconds:   25,
			MaxRetryAttempts: 2,
		},
		RateLimit: RateLimitConfig{
			Limit:         60,
			WindowSeconds: 60,
		},
		Queue: QueueConfig{
			Capacity: 100,
		},
		Cache: CacheConfig{
			Dir:            defaultCacheDir(),
			MemoryMaxItems: 100,
			MemoryMaxBytes: 50 << 20,
			DiskMaxBytes:   100 << 20,
		},
		Backoff: BackoffConfig{
			MaxRetries:  5,
			BaseDelayMS: 1000,
			MaxDelayMS:  32000,
		},
		Log: LogConfig{
			AuditLog: "voicetra_recovery.log",
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty or missing),
// then applies environment overrides on top of defaults. A .env file in the
// working directory is loaded first, best effort.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Timeout returns the per-attempt request timeout.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// Window returns the rate limit window size.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// BaseDelay returns the initial backoff delay.
func (b BackoffConfig) BaseDelay() time.Duration {
	return time.Duration(b.BaseDelayMS) * time.Millisecond
}

// MaxDelay returns the backoff delay ceiling.
func (b BackoffConfig) MaxDelay() time.Duration {
	return time.Duration(b.MaxDelayMS) * time.Millisecond
}

func (c Config) validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("config: api.base_url is required")
	}
	if c.RateLimit.Limit <= 0 || c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("config: rate_limit.limit and window_seconds must be positive")
	}
	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("config: queue.capacity must be positive")
	}
	if c.Cache.DiskMaxBytes <= 0 {
		return fmt.Errorf("config: cache.disk_max_bytes must be positive")
	}
	return nil
}

// applyEnv overlays VOICETRA_* variables onto cfg.
func applyEnv(cfg *Config) {
	setString(&cfg.API.BaseURL, "VOICETRA_API_BASE_URL")
	setString(&cfg.API.ServiceID, "VOICETRA_API_SERVICE_ID")
	setInt(&cfg.API.TimeoutSeconds, "VOICETRA_API_TIMEOUT_SECONDS")
	setInt(&cfg.API.MaxRetryAttempts, "VOICETRA_API_MAX_RETRY_ATTEMPTS")

	setInt(&cfg.RateLimit.Limit, "VOICETRA_RATE_LIMIT")
	setInt(&cfg.RateLimit.WindowSeconds, "VOICETRA_RATE_WINDOW_SECONDS")

	setInt(&cfg.Queue.Capacity, "VOICETRA_QUEUE_CAPACITY")

	setString(&cfg.Cache.Dir, "VOICETRA_CACHE_DIR")
	setInt(&cfg.Cache.MemoryMaxItems, "VOICETRA_CACHE_MEMORY_MAX_ITEMS")
	setInt64(&cfg.Cache.MemoryMaxBytes, "VOICETRA_CACHE_MEMORY_MAX_BYTES")
	setInt64(&cfg.Cache.DiskMaxBytes, "VOICETRA_CACHE_DISK_MAX_BYTES")

	setInt(&cfg.Backoff.MaxRetries, "VOICETRA_BACKOFF_MAX_RETRIES")
	setInt(&cfg.Backoff.BaseDelayMS, "VOICETRA_BACKOFF_BASE_DELAY_MS")
	setInt(&cfg.Backoff.MaxDelayMS, "VOICETRA_BACKOFF_MAX_DELAY_MS")

	setString(&cfg.Log.Path, "VOICETRA_LOG_PATH")
	setString(&cfg.Log.AuditLog, "VOICETRA_AUDIT_LOG")
	setBool(&cfg.Log.Verbose, "VOICETRA_LOG_VERBOSE")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// defaultCacheDir places the disk tier under the user cache directory,
// falling back to a local directory when the platform reports none.
func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + "/voicetra/translations"
	}
	return ".voicetra-cache"
}
