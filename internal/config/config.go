package config

import (
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	ApplicationName    string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// TemporalConfig selects the durable workflow backend. An empty HostPort
// keeps workflows in-process.
type TemporalConfig struct {
	HostPort        string
	Namespace       string
	TaskQueue       string
	OcrWaitTimeout  time.Duration
	ActivityTimeout time.Duration
}

// OCRConfig configures the text-extraction job endpoint.
type OCRConfig struct {
	Endpoint    string
	APIKey      string
	MaxAttempts int
}

// ExtractorConfig configures the question-extraction endpoint.
type ExtractorConfig struct {
	Endpoint string
	APIKey   string
}

// ProviderConfig holds catalog endpoints and the process-wide fallback keys.
type ProviderConfig struct {
	SamGovBaseURL string
	SamGovAPIKey  string
	DibbsBaseURL  string
	DibbsAPIKey   string
}

// FetcherConfig bounds outbound attachment downloads.
type FetcherConfig struct {
	Timeout  time.Duration
	MaxBytes int64
}

// SchedulerConfig controls the recurring saved-search pass.
type SchedulerConfig struct {
	Interval    time.Duration
	ImportCap   int
	LookbackDay int
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level string
	File  string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost      string
	Port         string
	StoreBackend string
	Database     DatabaseConfig
	MinIO        MinIOConfig
	Temporal     TemporalConfig
	OCR          OCRConfig
	Extractor    ExtractorConfig
	Providers    ProviderConfig
	Fetcher      FetcherConfig
	Scheduler    SchedulerConfig
	Log          LogConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
func Load() *AppConfig {
	return &AppConfig{
		AppHost:      getEnv("APP_HOST", "localhost:8080"),
		Port:         getEnv("PORT", "8080"),
		StoreBackend: getEnv("STORE_BACKEND", "postgres"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			ApplicationName:    getEnv("DB_APPLICATION_NAME", "bidflow"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Temporal: TemporalConfig{
			HostPort:        getEnv("TEMPORAL_HOST_PORT", ""),
			Namespace:       getEnv("TEMPORAL_NAMESPACE", "default"),
			TaskQueue:       getEnv("TEMPORAL_TASK_QUEUE", "document-ingestion"),
			OcrWaitTimeout:  getEnvDuration("TEMPORAL_OCR_WAIT_TIMEOUT", 72*time.Hour),
			ActivityTimeout: getEnvDuration("TEMPORAL_ACTIVITY_TIMEOUT", 10*time.Minute),
		},
		OCR: OCRConfig{
			Endpoint:    getEnv("OCR_ENDPOINT", ""),
			APIKey:      getEnv("OCR_API_KEY", ""),
			MaxAttempts: getEnvInt("OCR_SUBMIT_MAX_ATTEMPTS", 5),
		},
		Extractor: ExtractorConfig{
			Endpoint: getEnv("EXTRACTOR_ENDPOINT", ""),
			APIKey:   getEnv("EXTRACTOR_API_KEY", ""),
		},
		Providers: ProviderConfig{
			SamGovBaseURL: getEnv("SAMGOV_BASE_URL", "https://api.sam.gov"),
			SamGovAPIKey:  getEnv("SAMGOV_API_KEY", ""),
			DibbsBaseURL:  getEnv("DIBBS_BASE_URL", ""),
			DibbsAPIKey:   getEnv("DIBBS_API_KEY", ""),
		},
		Fetcher: FetcherConfig{
			Timeout:  getEnvDuration("FETCH_TIMEOUT", 60*time.Second),
			MaxBytes: int64(getEnvInt("FETCH_MAX_BYTES", 100<<20)),
		},
		Scheduler: SchedulerConfig{
			Interval:    getEnvDuration("SCHEDULER_INTERVAL", 0),
			ImportCap:   getEnvInt("SCHEDULER_IMPORT_CAP", 25),
			LookbackDay: getEnvInt("SCHEDULER_LOOKBACK_DAYS", 30),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}
