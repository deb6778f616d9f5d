package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Worker    WorkerConfig    `yaml:"worker"`
	Retention RetentionConfig `yaml:"retention"`
	Tools     ToolsConfig     `yaml:"tools"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection.
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the job-table connection settings.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifeMins int    `yaml:"conn_max_life_mins"`
}

// ConnMaxLifetime returns the connection max lifetime as a duration.
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifeMins) * time.Minute
}

// StorageConfig holds artifact-store configuration. Type selects the
// backend: "s3" for production, "local" for development and tests.
type StorageConfig struct {
	Type            string `yaml:"type"`
	LocalPath       string `yaml:"local_path"`
	AWSRegion       string `yaml:"aws_region"`
	AWSProfile      string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
	RawBucket       string `yaml:"raw_bucket"`
	ProcessedBucket string `yaml:"processed_bucket"`
	PublicBaseURL   string `yaml:"public_base_url"`
}

// GetAWSProfile returns the AWS profile, with environment variable override.
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// RedisConfig holds the optional redis connection used for the rolling
// job-duration sample behind the submit ETA.
type RedisConfig struct {
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// WorkerConfig holds worker-fleet settings.
type WorkerConfig struct {
	Count                 int `yaml:"count"`
	PollIntervalSeconds   int `yaml:"poll_interval_seconds"`
	HandlerTimeoutMins    int `yaml:"handler_timeout_mins"`
	OfficeTimeoutMins     int `yaml:"office_timeout_mins"`
	AverageJobTimeSeconds int `yaml:"average_job_time_seconds"`
}

// PollInterval returns the worker sleep when the queue is empty.
func (c WorkerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// HandlerTimeout returns the soft deadline for conversion/compression tools.
func (c WorkerConfig) HandlerTimeout() time.Duration {
	return time.Duration(c.HandlerTimeoutMins) * time.Minute
}

// OfficeTimeout returns the soft deadline for Office conversions.
func (c WorkerConfig) OfficeTimeout() time.Duration {
	return time.Duration(c.OfficeTimeoutMins) * time.Minute
}

// AverageJobTime returns the static ETA multiplier used when no duration
// sample is available.
func (c WorkerConfig) AverageJobTime() time.Duration {
	return time.Duration(c.AverageJobTimeSeconds) * time.Second
}

// RetentionConfig governs when stored artifacts and terminal jobs are
// removed.
type RetentionConfig struct {
	WindowMins          int `yaml:"window_mins"`
	CleanupIntervalMins int `yaml:"cleanup_interval_mins"`
	AccessThreshold     int `yaml:"access_threshold"`
}

// Window returns the age at which terminal jobs are swept.
func (c RetentionConfig) Window() time.Duration {
	return time.Duration(c.WindowMins) * time.Minute
}

// CleanupInterval returns the sweeper tick.
func (c RetentionConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMins) * time.Minute
}

// ToolsConfig holds paths to the external tool binaries the handlers spawn.
type ToolsConfig struct {
	Ghostscript string `yaml:"ghostscript"`
	QPDF        string `yaml:"qpdf"`
	Soffice     string `yaml:"soffice"`
	PDFToPPM    string `yaml:"pdftoppm"`
	Img2PDF     string `yaml:"img2pdf"`
	PDF2Docx    string `yaml:"pdf2docx"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifeMins == 0 {
		cfg.Database.ConnMaxLifeMins = 5
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "./data/artifacts"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-west-2"
	}
	if cfg.Storage.RawBucket == "" {
		cfg.Storage.RawBucket = "raw-inputs"
	}
	if cfg.Storage.ProcessedBucket == "" {
		cfg.Storage.ProcessedBucket = "processed-pdfs"
	}
	if cfg.Worker.Count == 0 {
		cfg.Worker.Count = 2
	}
	if cfg.Worker.PollIntervalSeconds == 0 {
		cfg.Worker.PollIntervalSeconds = 5
	}
	if cfg.Worker.HandlerTimeoutMins == 0 {
		cfg.Worker.HandlerTimeoutMins = 5
	}
	if cfg.Worker.OfficeTimeoutMins == 0 {
		cfg.Worker.OfficeTimeoutMins = 10
	}
	if cfg.Worker.AverageJobTimeSeconds == 0 {
		cfg.Worker.AverageJobTimeSeconds = 30
	}
	if cfg.Retention.WindowMins == 0 {
		cfg.Retention.WindowMins = 10
	}
	if cfg.Retention.CleanupIntervalMins == 0 {
		cfg.Retention.CleanupIntervalMins = 10
	}
	if cfg.Retention.AccessThreshold == 0 {
		cfg.Retention.AccessThreshold = 3
	}
	if cfg.Tools.Ghostscript == "" {
		cfg.Tools.Ghostscript = "gs"
	}
	if cfg.Tools.QPDF == "" {
		cfg.Tools.QPDF = "qpdf"
	}
	if cfg.Tools.Soffice == "" {
		cfg.Tools.Soffice = "soffice"
	}
	if cfg.Tools.PDFToPPM == "" {
		cfg.Tools.PDFToPPM = "pdftoppm"
	}
	if cfg.Tools.Img2PDF == "" {
		cfg.Tools.Img2PDF = "img2pdf"
	}
	if cfg.Tools.PDF2Docx == "" {
		cfg.Tools.PDF2Docx = "pdf2docx"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("S3_RAW_BUCKET"); v != "" {
		cfg.Storage.RawBucket = v
	}
	if v := os.Getenv("S3_PROCESSED_BUCKET"); v != "" {
		cfg.Storage.ProcessedBucket = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		cfg.Storage.AWSRegion = v
	}
	if v := os.Getenv("STORAGE_PUBLIC_BASE_URL"); v != "" {
		cfg.Storage.PublicBaseURL = v
	}
	if v := os.Getenv("WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Worker.Count = n
		}
	}
	if v := os.Getenv("WORKER_POLL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Worker.PollIntervalSeconds = n
		}
	}

	return cfg, nil
}
