package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	MinIO      MinIOConfig      `yaml:"minio"`
	Extractor  ExtractorConfig  `yaml:"extractor"`
	Matching   MatchingConfig   `yaml:"matching"`
	Processing ProcessingConfig `yaml:"processing"`
	Retention  RetentionConfig  `yaml:"retention"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type ExtractorConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type MatchingConfig struct {
	// MatchThreshold is the minimum similarity (1/(1+L2 distance)) for a
	// face match to become a claim candidate.
	MatchThreshold float64 `yaml:"match_threshold"`
	// AutoApproveThreshold is the similarity above which a claim is created
	// approved instead of pending manual review.
	AutoApproveThreshold float64 `yaml:"auto_approve_threshold"`
	TopK                 int     `yaml:"top_k"`
	// TieEpsilon is the L2 distance within which two neighbors count as
	// equidistant; the most recently enrolled embedding wins.
	TieEpsilon float64 `yaml:"tie_epsilon"`
	// Index selects the nearest-neighbor backend: "postgres" queries
	// pgvector directly, "memory" serves from a periodically rebuilt
	// in-process HNSW graph.
	Index                string        `yaml:"index"`
	IndexRebuildInterval time.Duration `yaml:"index_rebuild_interval"`
}

type ProcessingConfig struct {
	WorkerCount   int           `yaml:"worker_count"`
	MaxRetries    int           `yaml:"max_retries"`
	BackoffBase   time.Duration `yaml:"backoff_base"`
	BackoffFactor int           `yaml:"backoff_factor"`
	UnitTimeout   time.Duration `yaml:"unit_timeout"`
	// StaleResetAge: photos stuck in processing longer than this are reset
	// to failed by the scanner so they can be re-enqueued.
	StaleResetAge time.Duration `yaml:"stale_reset_age"`
	ScanInterval  time.Duration `yaml:"scan_interval"`
}

// BackoffDelay returns the retry delay for the given attempt (1-based):
// base, base*factor, base*factor², capped at one hour.
func (p ProcessingConfig) BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= time.Duration(p.BackoffFactor)
		if delay >= time.Hour {
			return time.Hour
		}
	}
	return delay
}

type RetentionConfig struct {
	Window        time.Duration `yaml:"window"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// SweepApprovedClaims allows the sweeper to purge photos that carry an
	// approved claim. Off by default: deleting a claimed photo breaks the
	// claim guarantee, so operators must opt in.
	SweepApprovedClaims bool `yaml:"sweep_approved_claims"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Extractor.Timeout == 0 {
		cfg.Extractor.Timeout = 30 * time.Second
	}
	if cfg.Matching.MatchThreshold == 0 {
		cfg.Matching.MatchThreshold = 0.5
	}
	if cfg.Matching.AutoApproveThreshold == 0 {
		cfg.Matching.AutoApproveThreshold = 0.8
	}
	if cfg.Matching.TopK == 0 {
		cfg.Matching.TopK = 5
	}
	if cfg.Matching.TieEpsilon == 0 {
		cfg.Matching.TieEpsilon = 1e-3
	}
	if cfg.Matching.Index == "" {
		cfg.Matching.Index = "postgres"
	}
	if cfg.Matching.IndexRebuildInterval == 0 {
		cfg.Matching.IndexRebuildInterval = time.Minute
	}
	if cfg.Processing.WorkerCount == 0 {
		cfg.Processing.WorkerCount = 8
	}
	if cfg.Processing.MaxRetries == 0 {
		cfg.Processing.MaxRetries = 3
	}
	if cfg.Processing.BackoffBase == 0 {
		cfg.Processing.BackoffBase = 30 * time.Second
	}
	if cfg.Processing.BackoffFactor == 0 {
		cfg.Processing.BackoffFactor = 2
	}
	if cfg.Processing.UnitTimeout == 0 {
		cfg.Processing.UnitTimeout = 2 * time.Minute
	}
	if cfg.Processing.StaleResetAge == 0 {
		cfg.Processing.StaleResetAge = 10 * time.Minute
	}
	if cfg.Processing.ScanInterval == 0 {
		cfg.Processing.ScanInterval = time.Minute
	}
	if cfg.Retention.Window == 0 {
		cfg.Retention.Window = 30 * 24 * time.Hour
	}
	if cfg.Retention.SweepInterval == 0 {
		cfg.Retention.SweepInterval = time.Hour
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PC_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PC_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("PC_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("PC_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("PC_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("PC_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("PC_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PC_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("PC_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("PC_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("PC_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("PC_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("PC_EXTRACTOR_URL"); v != "" {
		cfg.Extractor.BaseURL = v
	}
	if v := os.Getenv("PC_MATCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matching.MatchThreshold = f
		}
	}
	if v := os.Getenv("PC_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Processing.WorkerCount = n
		}
	}
	if v := os.Getenv("PC_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Processing.MaxRetries = n
		}
	}
	if v := os.Getenv("PC_SWEEP_APPROVED_CLAIMS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Retention.SweepApprovedClaims = b
		}
	}
}
