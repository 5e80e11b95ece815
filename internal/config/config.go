package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Log        LogConfig `mapstructure:"log"`
	Database   DatabaseConfig
	Redis      RedisConfig
	AI         AIConfig
	Embedding  EmbeddingConfig `mapstructure:"embedding"`
	Storage    StorageConfig
	Tracing    TracingConfig    `mapstructure:"tracing"`
	CORS       CORSConfig       `mapstructure:"cors"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Capability CapabilityConfig `mapstructure:"capability"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Speech     SpeechConfig     `mapstructure:"speech"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`

	// Runtime flags set from the command line, never read from the file.
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type AIConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"`
	// TimeoutSeconds bounds a single generation call
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

type EmbeddingConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	// Driver is mysql or sqlite; sqlite takes DBName as the file path or DSN.
	Driver    string
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type TracingConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	ServiceName       string  `mapstructure:"service_name"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"`
	SampleRatio       float64 `mapstructure:"sample_ratio"`
}

// LogConfig controls the rotating JSON log file. An empty Level follows the
// server mode.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// CapabilityConfig holds the scoring tunables. All of them can be changed at
// runtime through the config watcher.
type CapabilityConfig struct {
	Baseline          int      `mapstructure:"baseline"`
	Step              int      `mapstructure:"step"`
	SimplifyPenalty   int      `mapstructure:"simplify_penalty"`
	Window            int      `mapstructure:"window"`
	LowMax            int      `mapstructure:"low_max"`
	MediumMax         int      `mapstructure:"medium_max"`
	ConfusionKeywords []string `mapstructure:"confusion_keywords"`
}

type CacheConfig struct {
	RedisTTLMinutes  int    `mapstructure:"redis_ttl_minutes"`
	MaxIdleDays      int    `mapstructure:"max_idle_days"`
	EvictionSchedule string `mapstructure:"eviction_schedule"`
}

type SpeechConfig struct {
	Workers           int    `mapstructure:"workers"`
	BinaryPath        string `mapstructure:"binary_path"`
	ModelPath         string `mapstructure:"model_path"`
	Language          string `mapstructure:"language"`
	TempDir           string `mapstructure:"temp_dir"`
	JobTimeoutSeconds int    `mapstructure:"job_timeout_seconds"`
	MaxAudioBytes     int64  `mapstructure:"max_audio_bytes"`
	NormalizeAudio    bool   `mapstructure:"normalize_audio"`
	ArchiveAudio      bool   `mapstructure:"archive_audio"`
}

type RetrievalConfig struct {
	TeachingLimit int `mapstructure:"teaching_limit"`
	DoubtLimit    int `mapstructure:"doubt_limit"`
	FallbackLimit int `mapstructure:"fallback_limit"`
}

func (c SpeechConfig) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSeconds) * time.Second
}

func (c CacheConfig) RedisTTL() time.Duration {
	return time.Duration(c.RedisTTLMinutes) * time.Minute
}

func (c CacheConfig) MaxIdle() time.Duration {
	return time.Duration(c.MaxIdleDays) * 24 * time.Hour
}

var defaultConfusionKeywords = []string{
	"മനസ്സിലായില്ല",
	"അറിയില്ല",
	"confused",
	"don't understand",
	"dont understand",
	"again",
	"repeat",
	"what",
	"why",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("tracing.service_name", "vidyabot-backend")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)

	v.SetDefault("ai.model", "llama-3.3-70b-versatile")
	v.SetDefault("ai.language", "ml")
	v.SetDefault("ai.timeout_seconds", 60)
	v.SetDefault("embedding.model", "text-embedding-004")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "uploads")

	v.SetDefault("rate_limit.max_requests", 600)
	v.SetDefault("rate_limit.window_minutes", 1)

	v.SetDefault("capability.baseline", 70)
	v.SetDefault("capability.step", 5)
	v.SetDefault("capability.simplify_penalty", 10)
	v.SetDefault("capability.window", 20)
	v.SetDefault("capability.low_max", 30)
	v.SetDefault("capability.medium_max", 60)
	v.SetDefault("capability.confusion_keywords", defaultConfusionKeywords)

	v.SetDefault("cache.redis_ttl_minutes", 60)
	v.SetDefault("cache.max_idle_days", 30)
	v.SetDefault("cache.eviction_schedule", "30 3 * * *")

	v.SetDefault("speech.workers", 3)
	v.SetDefault("speech.binary_path", "whisper-cli")
	v.SetDefault("speech.model_path", "models/ggml-base.bin")
	v.SetDefault("speech.language", "ml")
	v.SetDefault("speech.job_timeout_seconds", 60)
	v.SetDefault("speech.max_audio_bytes", 10<<20)

	v.SetDefault("retrieval.teaching_limit", 4)
	v.SetDefault("retrieval.doubt_limit", 3)
	v.SetDefault("retrieval.fallback_limit", 3)
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("VIDYABOT")
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("log.level", "LOG_LEVEL")

	// AI
	v.BindEnv("ai.base_url", "AI_BASE_URL")
	v.BindEnv("ai.api_key", "AI_API_KEY")
	v.BindEnv("ai.model", "AI_MODEL")
	v.BindEnv("embedding.api_key", "GEMINI_API_KEY")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// Speech
	v.BindEnv("speech.binary_path", "WHISPER_BINARY_PATH")
	v.BindEnv("speech.model_path", "WHISPER_MODEL_PATH")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// Validate rejects tunables that would make scoring or the speech pool meaningless.
func (c *Config) Validate() error {
	cp := c.Capability
	if cp.Step < 0 || cp.SimplifyPenalty < 0 {
		return fmt.Errorf("capability step and simplify_penalty must not be negative")
	}
	if cp.Window <= 0 {
		return fmt.Errorf("capability window must be positive, got %d", cp.Window)
	}
	if cp.LowMax < 0 || cp.MediumMax <= cp.LowMax || cp.MediumMax >= 100 {
		return fmt.Errorf("capability thresholds must satisfy 0 <= low_max < medium_max < 100, got %d/%d", cp.LowMax, cp.MediumMax)
	}
	if c.Speech.Workers <= 0 {
		return fmt.Errorf("speech workers must be positive, got %d", c.Speech.Workers)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample_ratio must be within [0, 1], got %v", c.Tracing.SampleRatio)
	}
	if c.Speech.JobTimeoutSeconds <= 0 {
		return fmt.Errorf("speech job_timeout_seconds must be positive")
	}
	return nil
}
