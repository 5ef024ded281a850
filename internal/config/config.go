// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Flat snake_case keys shared by YAML files and WEARSENSE_* env vars.
// - New() builds a Config with defaults; Load layers file and env on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Storage drivers accepted by storage_driver.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Retention scopes accepted by retention_scope.
const (
	ScopeGlobal  = "global"
	ScopeSession = "session"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StorageDriver selects the record store: memory, sqlite or mysql.
	StorageDriver string `koanf:"storage_driver"`

	// StorageDSN is the gorm DSN (sqlite file path or mysql DSN).
	StorageDSN string `koanf:"storage_dsn"`

	// MediaRoot is served under /media/; UploadDir and DetectedDir live below it.
	MediaRoot   string `koanf:"media_root"`
	UploadDir   string `koanf:"upload_dir"`
	DetectedDir string `koanf:"detected_dir"`

	// Retention policy for the watched directories.
	RetentionMaxFiles int    `koanf:"retention_max_files"`
	RetentionBatch    int    `koanf:"retention_batch"`
	RetentionScope    string `koanf:"retention_scope"`

	// Inference dispatcher.
	InferenceTimeoutMS int `koanf:"inference_timeout_ms"`
	InferenceWorkers   int `koanf:"inference_workers"`
	InferenceQueueSize int `koanf:"inference_queue_size"`

	// DetectionURL and ClassifierURL point at the model services. Empty means
	// the in-process simulated models are used.
	DetectionURL       string `koanf:"detection_url"`
	ClassifierURL      string `koanf:"classifier_url"`
	DetectionLatencyMS int    `koanf:"detection_latency_ms"`

	// SessionCacheTTLSec bounds how long resolved sessions stay cached.
	SessionCacheTTLSec int `koanf:"session_cache_ttl_sec"`

	// Secret policies for the direct ingestion endpoints.
	SensorRequiresRegisteredSecret  bool `koanf:"sensor_requires_registered_secret"`
	ComfortRequiresRegisteredSecret bool `koanf:"comfort_requires_registered_secret"`

	// MaxUploadBytes caps multipart bodies on /api/predict.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// MQTT sensor telemetry. Disabled when MQTTBroker is empty.
	MQTTBroker   string `koanf:"mqtt_broker"`
	MQTTTopic    string `koanf:"mqtt_topic"`
	MQTTClientID string `koanf:"mqtt_client_id"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                        "info",
		LogFormat:                       "text",
		Addr:                            ":9080",
		StorageDriver:                   DriverMemory,
		StorageDSN:                      "wearsense.db",
		MediaRoot:                       "media",
		UploadDir:                       "uploads",
		DetectedDir:                     "detected_images",
		RetentionMaxFiles:               10,
		RetentionBatch:                  5,
		RetentionScope:                  ScopeGlobal,
		InferenceTimeoutMS:              30_000,
		InferenceWorkers:                runtime.NumCPU(),
		InferenceQueueSize:              256,
		DetectionLatencyMS:              50,
		SessionCacheTTLSec:              300,
		SensorRequiresRegisteredSecret:  false,
		ComfortRequiresRegisteredSecret: true,
		MaxUploadBytes:                  10 << 20,
		MQTTTopic:                       "wearsense/sensors",
		MQTTClientID:                    "wearsense",
	}
}

// InferenceTimeout returns the dispatcher wait bound.
func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.InferenceTimeoutMS) * time.Millisecond
}

// DetectionLatency returns the simulated detector latency.
func (c *Config) DetectionLatency() time.Duration {
	return time.Duration(c.DetectionLatencyMS) * time.Millisecond
}

// SessionCacheTTL returns the session cache expiry.
func (c *Config) SessionCacheTTL() time.Duration {
	return time.Duration(c.SessionCacheTTLSec) * time.Second
}

// Validate checks invariants that defaults alone cannot guarantee.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch strings.ToLower(c.StorageDriver) {
	case DriverMemory, DriverSQLite, DriverMySQL:
	default:
		return fmt.Errorf("%w: unknown storage_driver %q", ErrInvalidConfig, c.StorageDriver)
	}
	if c.StorageDriver != DriverMemory && c.StorageDSN == "" {
		return fmt.Errorf("%w: storage_dsn is required for %s", ErrInvalidConfig, c.StorageDriver)
	}
	switch c.RetentionScope {
	case ScopeGlobal, ScopeSession:
	default:
		return fmt.Errorf("%w: unknown retention_scope %q", ErrInvalidConfig, c.RetentionScope)
	}
	if c.RetentionMaxFiles <= 0 || c.RetentionBatch <= 0 {
		return fmt.Errorf("%w: retention_max_files and retention_batch must be positive", ErrInvalidConfig)
	}
	if c.InferenceTimeoutMS <= 0 {
		return fmt.Errorf("%w: inference_timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.InferenceWorkers <= 0 || c.InferenceQueueSize <= 0 {
		return fmt.Errorf("%w: inference_workers and inference_queue_size must be positive", ErrInvalidConfig)
	}
	if c.MediaRoot == "" || c.UploadDir == "" || c.DetectedDir == "" {
		return fmt.Errorf("%w: media_root, upload_dir and detected_dir must be set", ErrInvalidConfig)
	}
	if c.MQTTBroker != "" && c.MQTTTopic == "" {
		return fmt.Errorf("%w: mqtt_topic is required when mqtt_broker is set", ErrInvalidConfig)
	}
	return nil
}
