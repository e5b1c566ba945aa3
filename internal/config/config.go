package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/wms-platform/stockcount-service/pkg/kafka"
	"github.com/wms-platform/stockcount-service/pkg/mongodb"
)

// Lock backends
const (
	LockBackendRedis = "redis"
	LockBackendLocal = "local"
)

// Config holds application configuration
type Config struct {
	ServiceName string `yaml:"serviceName"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"logLevel"`
	ServerAddr  string `yaml:"serverAddr"`

	MongoDB MongoDBConfig `yaml:"mongodb"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Redis   RedisConfig   `yaml:"redis"`
	Lock    LockConfig    `yaml:"lock"`
	ERP     ERPConfig     `yaml:"erp"`
	Tracing TracingConfig `yaml:"tracing"`

	AuditRoles    []string `yaml:"auditRoles"`
	BulkBatchSize int      `yaml:"bulkBatchSize"`
}

// MongoDBConfig holds storage settings
type MongoDBConfig struct {
	URI       string        `yaml:"uri"`
	Database  string        `yaml:"database"`
	TxTimeout time.Duration `yaml:"txTimeout"`
}

// KafkaConfig holds event publishing settings
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
}

// RedisConfig holds the distributed lock store settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LockConfig selects the lock backend
type LockConfig struct {
	Backend     string        `yaml:"backend"`
	TTL         time.Duration `yaml:"ttl"`
	WaitTimeout time.Duration `yaml:"waitTimeout"`
}

// ERPConfig holds the outbound ERP client settings
type ERPConfig struct {
	BaseURL   string        `yaml:"baseUrl"`
	Timeout   time.Duration `yaml:"timeout"`
	BatchSize int           `yaml:"batchSize"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlpEndpoint"`
}

// Default returns the built-in defaults
func Default() *Config {
	return &Config{
		ServiceName: "stockcount-service",
		Environment: "development",
		LogLevel:    "info",
		ServerAddr:  ":8012",
		MongoDB: MongoDBConfig{
			URI:       "mongodb://localhost:27017",
			Database:  "stockcount_db",
			TxTimeout: 10 * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled: true,
			Brokers: []string{"localhost:9092"},
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Lock: LockConfig{
			Backend:     LockBackendRedis,
			TTL:         10 * time.Second,
			WaitTimeout: 5 * time.Second,
		},
		ERP: ERPConfig{
			Timeout:   10 * time.Second,
			BatchSize: 100,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
		},
		AuditRoles:    []string{"admin", "auditor", "inventory_manager"},
		BulkBatchSize: 100,
	}
}

// Load resolves configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables (optionally preloaded from .env).
// Later sources win.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.ServerAddr = getEnv("SERVER_ADDR", c.ServerAddr)
	c.MongoDB.URI = getEnv("MONGODB_URI", c.MongoDB.URI)
	c.MongoDB.Database = getEnv("MONGODB_DATABASE", c.MongoDB.Database)
	c.Kafka.Brokers = getEnvList("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Lock.Backend = getEnv("LOCK_BACKEND", c.Lock.Backend)
	c.ERP.BaseURL = getEnv("ERP_BASE_URL", c.ERP.BaseURL)
	c.Tracing.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.OTLPEndpoint)
	c.AuditRoles = getEnvList("AUDIT_ROLES", c.AuditRoles)

	var err error
	if c.Kafka.Enabled, err = getEnvBool("KAFKA_ENABLED", c.Kafka.Enabled); err != nil {
		return err
	}
	if c.Tracing.Enabled, err = getEnvBool("TRACING_ENABLED", c.Tracing.Enabled); err != nil {
		return err
	}
	if c.MongoDB.TxTimeout, err = getEnvDuration("MONGODB_TX_TIMEOUT", c.MongoDB.TxTimeout); err != nil {
		return err
	}
	if c.Lock.TTL, err = getEnvDuration("LOCK_TTL", c.Lock.TTL); err != nil {
		return err
	}
	if c.Lock.WaitTimeout, err = getEnvDuration("LOCK_WAIT_TIMEOUT", c.Lock.WaitTimeout); err != nil {
		return err
	}
	if c.ERP.Timeout, err = getEnvDuration("ERP_TIMEOUT", c.ERP.Timeout); err != nil {
		return err
	}
	if c.ERP.BatchSize, err = getEnvInt("ERP_BATCH_SIZE", c.ERP.BatchSize); err != nil {
		return err
	}
	if c.BulkBatchSize, err = getEnvInt("BULK_BATCH_SIZE", c.BulkBatchSize); err != nil {
		return err
	}
	if c.Redis.DB, err = getEnvInt("REDIS_DB", c.Redis.DB); err != nil {
		return err
	}
	return nil
}

// Validate rejects configurations the service cannot run with
func (c *Config) Validate() error {
	switch c.Lock.Backend {
	case LockBackendRedis, LockBackendLocal:
	default:
		return fmt.Errorf("LOCK_BACKEND must be %q or %q, got %q", LockBackendRedis, LockBackendLocal, c.Lock.Backend)
	}
	if c.Lock.TTL <= 0 || c.Lock.WaitTimeout <= 0 {
		return fmt.Errorf("LOCK_TTL and LOCK_WAIT_TIMEOUT must be positive")
	}
	if c.ERP.Timeout <= 0 {
		return fmt.Errorf("ERP_TIMEOUT must be positive")
	}
	if c.ERP.BatchSize <= 0 || c.BulkBatchSize <= 0 {
		return fmt.Errorf("batch sizes must be positive")
	}
	if len(c.AuditRoles) == 0 {
		return fmt.Errorf("AUDIT_ROLES must name at least one role")
	}
	return nil
}

// MongoDBClientConfig converts to the platform client config
func (c *Config) MongoDBClientConfig() *mongodb.Config {
	mc := mongodb.DefaultConfig()
	mc.URI = c.MongoDB.URI
	mc.Database = c.MongoDB.Database
	mc.TransactionTimeout = c.MongoDB.TxTimeout
	return mc
}

// KafkaProducerConfig converts to the platform producer config
func (c *Config) KafkaProducerConfig() *kafka.Config {
	kc := kafka.DefaultConfig()
	kc.Brokers = c.Kafka.Brokers
	kc.ClientID = c.ServiceName
	return kc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
