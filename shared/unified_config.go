package shared

import (
	"time"

	"github.com/sirupsen/logrus"
)

// UnifiedConfiguration holds the runtime parameters shared by every component
type UnifiedConfiguration struct {
	Service   ServiceConfig   `json:"service"`
	Database  DatabaseConfig  `json:"database"`
	Cache     CacheConfig     `json:"cache"`
	Validator ValidatorConfig `json:"validator"`
	Logging   LoggingConfig   `json:"logging"`
}

// ServiceConfig holds upstream call configuration
type ServiceConfig struct {
	BackendTimeout       time.Duration `json:"backend_timeout"`
	EnrichmentTimeout    time.Duration `json:"enrichment_timeout"`
	KoiosRequestsPerSec  float64       `json:"koios_requests_per_second"`
	EpochDurationSeconds int64         `json:"epoch_duration_seconds"`
	MaxConcurrency       int           `json:"max_concurrency"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	PingTimeout     time.Duration `json:"ping_timeout"`
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	Enabled    bool          `json:"enabled"`
	MaxEntries int           `json:"max_entries"`
	IdleTTL    time.Duration `json:"idle_ttl"`
	MaxTTL     time.Duration `json:"max_ttl"`
}

// ValidatorConfig holds metadata validation configuration
type ValidatorConfig struct {
	IPFSGateway      string        `json:"ipfs_gateway"`
	MaxBytes         int64         `json:"max_bytes"`
	Timeout          time.Duration `json:"timeout"`
	VerifierEnabled  bool          `json:"verifier_enabled"`
	VerifierEndpoint string        `json:"verifier_endpoint"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `json:"level"`
	Format      string `json:"format"`
	ServiceName string `json:"service_name"`
}

const (
	DefaultIPFSGateway      = "https://ipfs.io/ipfs/"
	DefaultVerifierEndpoint = "https://verifycardanomessage.cardanofoundation.org/api/verify-cip100"
	DefaultEpochDuration    = 432000
)

// NewDefaultUnifiedConfiguration returns production-ready default configuration
func NewDefaultUnifiedConfiguration() *UnifiedConfiguration {
	return &UnifiedConfiguration{
		Service: ServiceConfig{
			BackendTimeout:       10 * time.Second,
			EnrichmentTimeout:    15 * time.Second,
			KoiosRequestsPerSec:  5,
			EpochDurationSeconds: DefaultEpochDuration,
			MaxConcurrency:       8,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			PingTimeout:     5 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: 10000,
			IdleTTL:    300 * time.Second,
			MaxTTL:     600 * time.Second,
		},
		Validator: ValidatorConfig{
			IPFSGateway:      DefaultIPFSGateway,
			MaxBytes:         5 * 1024 * 1024,
			Timeout:          10 * time.Second,
			VerifierEndpoint: DefaultVerifierEndpoint,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "govdash-backend",
		},
	}
}

// ValidateAndApplyDefaults validates configuration and applies defaults for invalid values
func (c *UnifiedConfiguration) ValidateAndApplyDefaults() {
	logger := logrus.WithField("component", "UnifiedConfiguration")
	defaults := NewDefaultUnifiedConfiguration()

	if c.Service.BackendTimeout <= 0 {
		c.Service.BackendTimeout = defaults.Service.BackendTimeout
		logger.Debug("Applied default Service.BackendTimeout")
	}
	if c.Service.EnrichmentTimeout <= 0 {
		c.Service.EnrichmentTimeout = defaults.Service.EnrichmentTimeout
		logger.Debug("Applied default Service.EnrichmentTimeout")
	}
	if c.Service.KoiosRequestsPerSec <= 0 {
		c.Service.KoiosRequestsPerSec = defaults.Service.KoiosRequestsPerSec
		logger.Debug("Applied default Service.KoiosRequestsPerSec")
	}
	if c.Service.EpochDurationSeconds <= 0 {
		c.Service.EpochDurationSeconds = defaults.Service.EpochDurationSeconds
		logger.Debug("Applied default Service.EpochDurationSeconds")
	}
	if c.Service.MaxConcurrency <= 0 {
		c.Service.MaxConcurrency = defaults.Service.MaxConcurrency
		logger.Debug("Applied default Service.MaxConcurrency")
	}

	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
		logger.Debug("Applied default Database.MaxOpenConns")
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
		logger.Debug("Applied default Database.MaxIdleConns")
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = defaults.Database.ConnMaxLifetime
		logger.Debug("Applied default Database.ConnMaxLifetime")
	}
	if c.Database.ConnMaxIdleTime <= 0 {
		c.Database.ConnMaxIdleTime = defaults.Database.ConnMaxIdleTime
		logger.Debug("Applied default Database.ConnMaxIdleTime")
	}
	if c.Database.PingTimeout <= 0 {
		c.Database.PingTimeout = defaults.Database.PingTimeout
		logger.Debug("Applied default Database.PingTimeout")
	}

	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = defaults.Cache.MaxEntries
		logger.Debug("Applied default Cache.MaxEntries")
	}
	if c.Cache.IdleTTL <= 0 {
		c.Cache.IdleTTL = defaults.Cache.IdleTTL
		logger.Debug("Applied default Cache.IdleTTL")
	}
	if c.Cache.MaxTTL <= 0 {
		c.Cache.MaxTTL = defaults.Cache.MaxTTL
		logger.Debug("Applied default Cache.MaxTTL")
	}

	if c.Validator.IPFSGateway == "" {
		c.Validator.IPFSGateway = defaults.Validator.IPFSGateway
		logger.Debug("Applied default Validator.IPFSGateway")
	}
	if c.Validator.MaxBytes <= 0 {
		c.Validator.MaxBytes = defaults.Validator.MaxBytes
		logger.Debug("Applied default Validator.MaxBytes")
	}
	if c.Validator.Timeout <= 0 {
		c.Validator.Timeout = defaults.Validator.Timeout
		logger.Debug("Applied default Validator.Timeout")
	}
	if c.Validator.VerifierEndpoint == "" {
		c.Validator.VerifierEndpoint = defaults.Validator.VerifierEndpoint
		logger.Debug("Applied default Validator.VerifierEndpoint")
	}

	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
		logger.Debug("Applied default Logging.Level")
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
		logger.Debug("Applied default Logging.Format")
	}
	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = defaults.Logging.ServiceName
		logger.Debug("Applied default Logging.ServiceName")
	}
}
