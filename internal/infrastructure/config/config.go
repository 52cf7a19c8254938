package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. FRAUD_SERVER_PORT
const EnvPrefix = "FRAUD_"

// DefaultPath is read when no explicit config file is given
const DefaultPath = "configs/config.yaml"

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment" validate:"oneof=development staging production test"`
	LogLevel    string `koanf:"log_level" validate:"oneof=debug info warn error"`

	Server    ServerConfig    `koanf:"server"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Model     ModelConfig     `koanf:"model"`
	Storage   StorageConfig   `koanf:"storage"`
}

type ServerConfig struct {
	Port               int             `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout        time.Duration   `koanf:"read_timeout" validate:"min=0"`
	WriteTimeout       time.Duration   `koanf:"write_timeout" validate:"min=0"`
	IdleTimeout        time.Duration   `koanf:"idle_timeout" validate:"min=0"`
	ShutdownTimeout    time.Duration   `koanf:"shutdown_timeout" validate:"min=0"`
	RequestTimeout     time.Duration   `koanf:"request_timeout" validate:"min=0"`
	MaxBodyBytes       int64           `koanf:"max_body_bytes" validate:"min=1"`
	ContractValidation bool            `koanf:"contract_validation"`
	CORS               CORSConfig      `koanf:"cors"`
	RateLimit          RateLimitConfig `koanf:"rate_limit"`
	// Forwarding headers are honored only from these peers (IPs or CIDRs)
	TrustedProxies     []string        `koanf:"trusted_proxies" validate:"dive,cidr|ip"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type RateLimitConfig struct {
	Enabled           bool          `koanf:"enabled"`
	RequestsPerSecond int           `koanf:"requests_per_second" validate:"min=1"`
	BurstSize         int           `koanf:"burst_size" validate:"min=1"`
	MaxClients        int           `koanf:"max_clients" validate:"min=1"`
	IdleTTL           time.Duration `koanf:"idle_ttl" validate:"min=0"`
}

type TelemetryConfig struct {
	Enabled        bool          `koanf:"enabled"`
	ServiceName    string        `koanf:"service_name" validate:"required"`
	OTLPEndpoint   string        `koanf:"otlp_endpoint" validate:"required_if=Enabled true"`
	Insecure       bool          `koanf:"insecure"`
	SamplingRate   float64       `koanf:"sampling_rate" validate:"min=0,max=1"`
	ExportTimeout  time.Duration `koanf:"export_timeout"`
	BatchTimeout   time.Duration `koanf:"batch_timeout"`
	MetricInterval time.Duration `koanf:"metric_interval"`
}

type ModelConfig struct {
	Store            string          `koanf:"store" validate:"oneof=file redis s3 postgres"`
	MerchantHashSeed uint64          `koanf:"merchant_hash_seed"`
	History          HistoryConfig   `koanf:"history"`
	Bootstrap        BootstrapConfig `koanf:"bootstrap"`
}

type HistoryConfig struct {
	Provider string `koanf:"provider" validate:"oneof=synthetic static"`
	// Seed of 0 draws a random seed at startup
	Seed uint64 `koanf:"seed"`
}

type BootstrapConfig struct {
	Seed            uint64  `koanf:"seed"`
	Samples         int     `koanf:"samples" validate:"min=100"`
	Algorithm       string  `koanf:"algorithm" validate:"oneof=random_forest logistic_regression"`
	Trees           int     `koanf:"trees" validate:"min=1"`
	MaxDepth        int     `koanf:"max_depth" validate:"min=1"`
	MinSamplesSplit int     `koanf:"min_samples_split" validate:"min=2"`
	TestFraction    float64 `koanf:"test_fraction" validate:"gt=0,lt=1"`
	LabelNoise      float64 `koanf:"label_noise" validate:"min=0,max=1"`
	MinFraud        int     `koanf:"min_fraud" validate:"min=0"`
	FraudTopUp      int     `koanf:"fraud_top_up" validate:"min=0"`
	Workers         int     `koanf:"workers" validate:"min=0"`
}

type StorageConfig struct {
	File     FileStoreConfig `koanf:"file"`
	Redis    RedisConfig     `koanf:"redis"`
	S3       S3Config        `koanf:"s3"`
	Postgres PostgresConfig  `koanf:"postgres"`
}

type FileStoreConfig struct {
	Dir string `koanf:"dir"`
}

type RedisConfig struct {
	URL          string        `koanf:"url"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	KeyPrefix    string        `koanf:"key_prefix"`
	PoolSize     int           `koanf:"pool_size"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type S3Config struct {
	Bucket   string `koanf:"bucket"`
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"` // MinIO / LocalStack
	Prefix   string `koanf:"prefix"`
}

type PostgresConfig struct {
	URL      string `koanf:"url"`
	MaxConns int32  `koanf:"max_conns"`
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:               8080,
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       15 * time.Second,
			IdleTimeout:        60 * time.Second,
			ShutdownTimeout:    30 * time.Second,
			RequestTimeout:     5 * time.Second,
			MaxBodyBytes:       1 << 20,
			ContractValidation: true,
			CORS: CORSConfig{
				AllowedOrigins: []string{"*"},
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerSecond: 200,
				BurstSize:         400,
				MaxClients:        10000,
				IdleTTL:           10 * time.Minute,
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "fraud-scoring-service",
			OTLPEndpoint:   "localhost:4317",
			Insecure:       true,
			SamplingRate:   0.1,
			ExportTimeout:  30 * time.Second,
			BatchTimeout:   5 * time.Second,
			MetricInterval: 30 * time.Second,
		},
		Model: ModelConfig{
			Store:            "file",
			MerchantHashSeed: 0x9e3779b97f4a7c15,
			History: HistoryConfig{
				Provider: "synthetic",
			},
			Bootstrap: BootstrapConfig{
				Seed:            42,
				Samples:         10000,
				Algorithm:       "random_forest",
				Trees:           100,
				MaxDepth:        10,
				MinSamplesSplit: 2,
				TestFraction:    0.2,
				LabelNoise:      0.05,
				MinFraud:        100,
				FraudTopUp:      200,
			},
		},
		Storage: StorageConfig{
			File: FileStoreConfig{
				Dir: "models",
			},
			Redis: RedisConfig{
				URL:          "localhost:6379",
				KeyPrefix:    "fraud:model:",
				PoolSize:     10,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
			S3: S3Config{
				Region: "us-east-1",
				Prefix: "models/",
			},
			Postgres: PostgresConfig{
				MaxConns: 4,
			},
		},
	}
}

// Load reads defaults, the optional YAML file at DefaultPath and FRAUD_*
// environment overrides.
func Load() (*Config, error) {
	return LoadFile(DefaultPath)
}

// LoadFile is Load with an explicit config file path. A missing file is not
// an error.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// FRAUD_SERVER_READ_TIMEOUT must resolve to server.read_timeout, so env
	// names are matched against the known keys instead of splitting on "_".
	envKeys := make(map[string]string)
	for _, key := range k.Keys() {
		envKeys[strings.ToUpper(strings.ReplaceAll(key, ".", "_"))] = key
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return envKeys[strings.TrimPrefix(s, EnvPrefix)]
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
