package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config holds the process configuration loaded from environment variables.
type Config struct {
	// AppEnv is the running environment (development/production).
	AppEnv string
	// Connection is the source database the binaries run queries against.
	Connection Connection
	// ConnectionFile optionally points at a YAML/JSON/TOML file holding the
	// connection options. It takes precedence over the SOURCE_* variables.
	ConnectionFile string
	// BatchSize is the number of rows fetched per round trip.
	BatchSize int
	// CountRows runs the COUNT(*) query ahead of streaming.
	CountRows bool
	// StorageType determines where exports are written: "local" or "s3".
	StorageType string
	// LocalStoragePath is the directory for local exports.
	LocalStoragePath string
	// AWSRegion is the AWS region for S3 uploads.
	AWSRegion string
	// S3Bucket is the target S3 bucket name.
	S3Bucket string
	// S3Endpoint is an optional custom endpoint (MinIO and friends).
	S3Endpoint string
	// S3PathStyle enables path-style addressing.
	S3PathStyle bool
	// ExportFormat is the default encoder: csv, json, excel or pdf.
	ExportFormat string
	// Compression gzips exported files.
	Compression bool
	// WorkerCount is the number of reports run concurrently.
	WorkerCount int
	// MaxDBConcurrency restricts the number of queries open at once.
	MaxDBConcurrency int64
	// DefaultTimeout bounds a single report run.
	DefaultTimeout time.Duration
	// ReactorURL is the websocket endpoint the agent dials.
	ReactorURL string
	// AgentKey identifies the agent to the reactor.
	AgentKey string
	// AgentSecret verifies the signature of job commands.
	AgentSecret string
}

// LogLevel enables debug logs in development.
func (c *Config) LogLevel() slog.Level {
	if c.AppEnv == "development" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func Load() *Config {
	return &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Connection:       ConnectionFromEnv(),
		ConnectionFile:   getEnv("CONNECTION_FILE", ""),
		BatchSize:        getEnvInt("BATCH_SIZE", 100000),
		CountRows:        getEnvBool("COUNT_ROWS", true),
		StorageType:      getEnv("STORAGE_TYPE", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./exports"),
		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:         getEnv("S3_BUCKET", ""),
		S3Endpoint:       getEnv("S3_ENDPOINT", ""),
		S3PathStyle:      getEnvBool("S3_PATH_STYLE", false),
		ExportFormat:     getEnv("EXPORT_FORMAT", "csv"),
		Compression:      getEnvBool("COMPRESSION", false),
		WorkerCount:      getEnvInt("WORKER_COUNT", 4),
		MaxDBConcurrency: int64(getEnvInt("MAX_DB_CONCURRENCY", 2)),
		DefaultTimeout:   getEnvDuration("DEFAULT_TIMEOUT", 15*time.Minute),
		ReactorURL:       getEnv("REACTOR_URL", ""),
		AgentKey:         getEnv("AGENT_KEY", ""),
		AgentSecret:      getEnv("AGENT_SECRET", ""),
	}
}

// ConnectionFromEnv reads the SOURCE_* variables.
func ConnectionFromEnv() Connection {
	return Connection{
		Backend:       getEnv("SOURCE_BACKEND", "oracle"),
		ConnectString: getEnv("SOURCE_CONNECT_STRING", ""),
		User:          getEnv("SOURCE_USER", ""),
		Password:      getEnv("SOURCE_PASSWORD", ""),
		ExternalAuth:  getEnvBool("SOURCE_EXTERNAL_AUTH", false),
		ThickMode:     getEnvBool("SOURCE_THICK_MODE", false),
		LibDir:        getEnv("SOURCE_LIB_DIR", ""),
		ConfigDir:     getEnv("SOURCE_CONFIG_DIR", ""),
		ReadOnlyGuard: getEnvBool("SOURCE_READ_ONLY_GUARD", false),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// SourceConnection returns the connection from ConnectionFile when set,
// otherwise the one read from the SOURCE_* variables.
func (c *Config) SourceConnection() (Connection, error) {
	if c.ConnectionFile == "" {
		return c.Connection, nil
	}
	return LoadConnection(c.ConnectionFile)
}
