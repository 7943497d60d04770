// Package config defines all configuration structures for the OPD claims
// platform.  No I/O or parsing logic lives here — only plain data types and
// validation.
package config

import (
	"fmt"
	"time"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
}

// KafkaConfig holds Apache Kafka producer/consumer parameters.
type KafkaConfig struct {
	Brokers          []string `mapstructure:"brokers"`
	GroupID          string   `mapstructure:"group_id"`
	AutoOffsetReset  string   `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	ProducerRetries  int      `mapstructure:"producer_retries"`
	BatchSize        int      `mapstructure:"batch_size"`
	AutoCreateTopics bool     `mapstructure:"auto_create_topics"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters.
type MinIOConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Bucket        string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// ExtractionConfig holds parameters for the external document-extraction
// service that turns uploaded prescriptions and bills into structured fields.
type ExtractionConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// PolicyConfig holds the adjudication policy table.  Every number the engine
// compares against lives here so the engine itself stays free of product
// constants.  Monetary values are whole rupees; the engine converts to minor
// units at resolve time.
type PolicyConfig struct {
	WaitingPeriodDays     int              `mapstructure:"waiting_period_days"`
	AnnualLimit           int64            `mapstructure:"annual_limit"`
	MinClaimAmount        int64            `mapstructure:"min_claim_amount"`
	CategoryCaps          map[string]int64 `mapstructure:"category_caps"`
	NonNetworkCopayPct    int64            `mapstructure:"non_network_copay_pct"`
	DateWindowDays        int              `mapstructure:"date_window_days"`
	ManualReviewThreshold float64          `mapstructure:"manual_review_threshold"`
	WarningPenalty        float64          `mapstructure:"warning_penalty"`
	NetworkHospitals      []string         `mapstructure:"network_hospitals"`
	RejectUnknownHospital bool             `mapstructure:"reject_unknown_hospital"`
	PreauthTreatments     []string         `mapstructure:"preauth_treatments"`
	PreauthAmount         int64            `mapstructure:"preauth_amount"`
	HighAmountThreshold   int64            `mapstructure:"high_amount_threshold"`
	SameDayClaimWarnAt    int              `mapstructure:"same_day_claim_warn_at"`
	MonthlyClaimWarnAt    int              `mapstructure:"monthly_claim_warn_at"`
}

// WorkerConfig holds background-worker execution parameters.
type WorkerConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBackoffMS time.Duration `mapstructure:"retry_backoff_ms"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string `mapstructure:"format"` // "json" | "text"
	Output           string `mapstructure:"output"`
	EnableCaller     bool   `mapstructure:"enable_caller"`
	EnableStacktrace bool   `mapstructure:"enable_stacktrace"`
}

// Config is the root configuration structure for the entire service.
// Every infrastructure component and application service reads its settings
// from the relevant sub-struct.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Policy     PolicyConfig     `mapstructure:"policy"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Log        LogConfig        `mapstructure:"log"`
}

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	// Database
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be ≥ 1, got %d", c.Database.MaxConns)
	}

	// Redis
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
	}

	// Kafka
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("config: kafka.group_id is required")
	}

	// Extraction
	if c.Extraction.BaseURL == "" {
		return fmt.Errorf("config: extraction.base_url is required")
	}

	// Policy
	if err := c.Policy.Validate(); err != nil {
		return err
	}

	// Worker
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be ≥ 1, got %d", c.Worker.Concurrency)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|text", c.Log.Format)
	}

	return nil
}

// Validate checks the policy table for values the engine cannot work with.
func (p *PolicyConfig) Validate() error {
	if p.WaitingPeriodDays < 0 {
		return fmt.Errorf("config: policy.waiting_period_days must be ≥ 0, got %d", p.WaitingPeriodDays)
	}
	if p.AnnualLimit < 1 {
		return fmt.Errorf("config: policy.annual_limit must be ≥ 1, got %d", p.AnnualLimit)
	}
	if p.NonNetworkCopayPct < 0 || p.NonNetworkCopayPct > 100 {
		return fmt.Errorf("config: policy.non_network_copay_pct %d is out of range [0, 100]", p.NonNetworkCopayPct)
	}
	if p.ManualReviewThreshold < 0 || p.ManualReviewThreshold > 1 {
		return fmt.Errorf("config: policy.manual_review_threshold %.2f is out of range [0, 1]", p.ManualReviewThreshold)
	}
	if p.WarningPenalty < 0 || p.WarningPenalty > 1 {
		return fmt.Errorf("config: policy.warning_penalty %.2f is out of range [0, 1]", p.WarningPenalty)
	}
	if p.DateWindowDays < 0 {
		return fmt.Errorf("config: policy.date_window_days must be ≥ 0, got %d", p.DateWindowDays)
	}
	for cat, cap := range p.CategoryCaps {
		if cap < 0 {
			return fmt.Errorf("config: policy.category_caps[%s] must be ≥ 0, got %d", cat, cap)
		}
	}
	return nil
}
