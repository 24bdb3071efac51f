package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fenilmodi00/govdash-backend/shared"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	DataSourceProviders = "providers"
	DataSourceIndexer   = "indexer"
)

type Config struct {
	ServerPort  string `envconfig:"PORT" default:"8080"`
	BackendPort string `envconfig:"BACKEND_PORT"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBHost      string `envconfig:"DB_HOST"`
	DBPort      string `envconfig:"DB_PORT" default:"5432"`
	DBName      string `envconfig:"DB_NAME"`
	DBUser      string `envconfig:"DB_USER"`
	DBPassword  string `envconfig:"DB_PASSWORD"`

	DataSource     string `envconfig:"DATA_SOURCE" default:"providers"`
	CardanoNetwork string `envconfig:"CARDANO_NETWORK" default:"mainnet"`

	KoiosBaseURL        string  `envconfig:"KOIOS_BASE_URL"`
	KoiosAPIKey         string  `envconfig:"KOIOS_API_KEY"`
	KoiosRequestsPerSec float64 `envconfig:"KOIOS_REQUESTS_PER_SECOND" default:"5"`
	BlockfrostBaseURL   string  `envconfig:"BLOCKFROST_BASE_URL"`
	BlockfrostProjectID string  `envconfig:"BLOCKFROST_PROJECT_ID"`
	BackendTimeoutSecs  int     `envconfig:"BACKEND_TIMEOUT_SECONDS" default:"10"`

	CacheEnabled       bool `envconfig:"CACHE_ENABLED" default:"true"`
	CacheMaxEntries    int  `envconfig:"CACHE_MAX_ENTRIES" default:"10000"`
	CacheIdleSeconds   int  `envconfig:"CACHE_IDLE_SECONDS" default:"300"`
	CacheMaxTTLSeconds int  `envconfig:"CACHE_MAX_TTL_SECONDS" default:"600"`

	GovToolsEnabled bool   `envconfig:"GOVTOOLS_ENABLED" default:"false"`
	GovToolsBaseURL string `envconfig:"GOVTOOLS_BASE_URL" default:"https://be.gov.tools"`

	IPFSGateway         string `envconfig:"METADATA_IPFS_GATEWAY" default:"https://ipfs.io/ipfs/"`
	MetadataMaxBytes    int64  `envconfig:"METADATA_MAX_BYTES" default:"5242880"`
	MetadataTimeoutSecs int    `envconfig:"METADATA_TIMEOUT_SECONDS" default:"10"`
	VerifierEnabled     bool   `envconfig:"CARDANO_VERIFIER_ENABLED" default:"false"`
	VerifierEndpoint    string `envconfig:"CARDANO_VERIFIER_ENDPOINT" default:"https://verifycardanomessage.cardanofoundation.org/api/verify-cip100"`

	EpochDurationSeconds int64 `envconfig:"EPOCH_DURATION_SECONDS" default:"432000"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

var koiosURLs = map[string]string{
	"mainnet": "https://api.koios.rest/api/v1",
	"preprod": "https://preprod.koios.rest/api/v1",
	"preview": "https://preview.koios.rest/api/v1",
}

var blockfrostURLs = map[string]string{
	"mainnet": "https://cardano-mainnet.blockfrost.io/api/v0",
	"preprod": "https://cardano-preprod.blockfrost.io/api/v0",
	"preview": "https://cardano-preview.blockfrost.io/api/v0",
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) resolve() error {
	// BACKEND_PORT wins only when PORT was not set explicitly
	if _, set := os.LookupEnv("PORT"); !set && c.BackendPort != "" {
		c.ServerPort = c.BackendPort
	}

	c.CardanoNetwork = strings.ToLower(c.CardanoNetwork)
	if _, ok := koiosURLs[c.CardanoNetwork]; !ok {
		return fmt.Errorf("unsupported CARDANO_NETWORK %q", c.CardanoNetwork)
	}
	if c.KoiosBaseURL == "" {
		c.KoiosBaseURL = koiosURLs[c.CardanoNetwork]
	}
	if c.BlockfrostBaseURL == "" {
		c.BlockfrostBaseURL = blockfrostURLs[c.CardanoNetwork]
	}

	if c.DatabaseURL == "" && c.DBHost != "" {
		c.DatabaseURL = (&url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.DBUser, c.DBPassword),
			Host:     c.DBHost + ":" + c.DBPort,
			Path:     "/" + c.DBName,
			RawQuery: "sslmode=disable",
		}).String()
	}

	c.DataSource = strings.ToLower(c.DataSource)
	switch c.DataSource {
	case DataSourceProviders:
	case DataSourceIndexer:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATA_SOURCE=indexer requires DATABASE_URL or DB_HOST")
		}
	default:
		return fmt.Errorf("unsupported DATA_SOURCE %q", c.DataSource)
	}
	return nil
}

// Unified converts the environment settings into the runtime configuration
// shared by the services, with defaults applied to anything invalid.
func (c *Config) Unified() *shared.UnifiedConfiguration {
	u := shared.NewDefaultUnifiedConfiguration()
	u.Service.BackendTimeout = time.Duration(c.BackendTimeoutSecs) * time.Second
	u.Service.KoiosRequestsPerSec = c.KoiosRequestsPerSec
	u.Service.EpochDurationSeconds = c.EpochDurationSeconds
	u.Cache.Enabled = c.CacheEnabled
	u.Cache.MaxEntries = c.CacheMaxEntries
	u.Cache.IdleTTL = time.Duration(c.CacheIdleSeconds) * time.Second
	u.Cache.MaxTTL = time.Duration(c.CacheMaxTTLSeconds) * time.Second
	u.Validator.IPFSGateway = c.IPFSGateway
	u.Validator.MaxBytes = c.MetadataMaxBytes
	u.Validator.Timeout = time.Duration(c.MetadataTimeoutSecs) * time.Second
	u.Validator.VerifierEnabled = c.VerifierEnabled
	u.Validator.VerifierEndpoint = c.VerifierEndpoint
	u.Logging.Level = c.LogLevel
	u.Logging.Format = c.LogFormat
	u.ValidateAndApplyDefaults()
	return u
}

// ConfigureLogging applies level and formatter to the global logrus logger.
func ConfigureLogging(cfg shared.LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.Warnf("Invalid LOG_LEVEL value: %s, using info", cfg.Level)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(cfg.Format, "text") {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})
}
