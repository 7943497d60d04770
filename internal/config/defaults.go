// Package config provides configuration loading, defaults, and validation for
// the OPD claims platform.
package config

import "time"

const (
	DefaultServerPort = 8080
	DefaultServerMode = "debug"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "opdclaims"
	DefaultDBMaxConns = 25

	DefaultRedisAddr    = "localhost:6379"
	DefaultRedisDB      = 0
	DefaultRedisLockTTL = 30 * time.Second

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "opdclaims-group"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "claim-documents"

	DefaultExtractionBaseURL = "http://localhost:8200"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultWorkerConcurrency = 10
)

// Default policy table.  Monetary values are whole rupees.
const (
	DefaultWaitingPeriodDays     = 90
	DefaultAnnualLimit           = 50000
	DefaultMinClaimAmount        = 100
	DefaultNonNetworkCopayPct    = 20
	DefaultDateWindowDays        = 1
	DefaultManualReviewThreshold = 0.7
	DefaultWarningPenalty        = 0.05
	DefaultPreauthAmount         = 10000
	DefaultHighAmountThreshold   = 4500
	DefaultSameDayClaimWarnAt    = 2
	DefaultMonthlyClaimWarnAt    = 5
)

// DefaultCategoryCaps returns the per-category reimbursement caps in rupees.
func DefaultCategoryCaps() map[string]int64 {
	return map[string]int64{
		"consultation":         1500,
		"diagnostic_tests":     5000,
		"pharmacy":             3000,
		"dental":               5000,
		"vision":               3000,
		"alternative_medicine": 2000,
	}
}

// DefaultNetworkHospitals returns the insurer's preferred hospital chains.
// Matching is case-insensitive substring, so "Apollo Clinic Indiranagar"
// matches "Apollo".
func DefaultNetworkHospitals() []string {
	return []string{"Apollo", "Fortis", "Max", "Manipal", "Narayana"}
}

// DefaultPreauthTreatments returns treatment/test name fragments that require
// pre-authorisation above the preauth amount threshold.
func DefaultPreauthTreatments() []string {
	return []string{"mri", "ct scan"}
}

// ApplyDefaults fills every zero-value field in cfg with the service default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// Server
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = "migrations"
	}

	// Redis
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "opdclaims"
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = DefaultRedisLockTTL
	}
	// DB is an int; 0 is a valid explicit value so we cannot distinguish "not
	// set" from "set to 0".  We leave it as-is (0 is also the default).

	// Kafka
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}

	// MinIO
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}
	if cfg.MinIO.PresignExpiry == 0 {
		cfg.MinIO.PresignExpiry = 15 * time.Minute
	}

	// Extraction
	if cfg.Extraction.BaseURL == "" {
		cfg.Extraction.BaseURL = DefaultExtractionBaseURL
	}
	if cfg.Extraction.Timeout == 0 {
		cfg.Extraction.Timeout = 30 * time.Second
	}
	if cfg.Extraction.MaxRetries == 0 {
		cfg.Extraction.MaxRetries = 2
	}

	// Policy
	applyPolicyDefaults(&cfg.Policy)

	// Worker
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = 3
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

func applyPolicyDefaults(p *PolicyConfig) {
	if p.WaitingPeriodDays == 0 {
		p.WaitingPeriodDays = DefaultWaitingPeriodDays
	}
	if p.AnnualLimit == 0 {
		p.AnnualLimit = DefaultAnnualLimit
	}
	if p.MinClaimAmount == 0 {
		p.MinClaimAmount = DefaultMinClaimAmount
	}
	if len(p.CategoryCaps) == 0 {
		p.CategoryCaps = DefaultCategoryCaps()
	}
	if p.NonNetworkCopayPct == 0 {
		p.NonNetworkCopayPct = DefaultNonNetworkCopayPct
	}
	if p.DateWindowDays == 0 {
		p.DateWindowDays = DefaultDateWindowDays
	}
	if p.ManualReviewThreshold == 0 {
		p.ManualReviewThreshold = DefaultManualReviewThreshold
	}
	if p.WarningPenalty == 0 {
		p.WarningPenalty = DefaultWarningPenalty
	}
	if len(p.NetworkHospitals) == 0 {
		p.NetworkHospitals = DefaultNetworkHospitals()
	}
	if len(p.PreauthTreatments) == 0 {
		p.PreauthTreatments = DefaultPreauthTreatments()
	}
	if p.PreauthAmount == 0 {
		p.PreauthAmount = DefaultPreauthAmount
	}
	if p.HighAmountThreshold == 0 {
		p.HighAmountThreshold = DefaultHighAmountThreshold
	}
	if p.SameDayClaimWarnAt == 0 {
		p.SameDayClaimWarnAt = DefaultSameDayClaimWarnAt
	}
	if p.MonthlyClaimWarnAt == 0 {
		p.MonthlyClaimWarnAt = DefaultMonthlyClaimWarnAt
	}
}
