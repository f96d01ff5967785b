package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	AWS        AWSConfig
	Storage    StorageConfig
	Pipeline   PipelineConfig
	AssemblyAI AssemblyAIConfig
	LLM        LLMConfig
	OCR        OCRConfig
	Media      MediaConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadHeaderTimeout  int
	ReadTimeout        int // 0 disables; uploads get their own deadline
	WriteTimeout       int // 0 disables; long media streams need it off or generous
	UploadReadTimeout  int // per-request body deadline for /upload
	CORSAllowedOrigins string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // used as-is when set
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds token validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds the S3 archive settings. Archiving is off when Bucket is empty.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	Bucket               string
	Endpoint             string
	PresignExpireMinutes int
}

// StorageConfig holds local media storage settings.
type StorageConfig struct {
	UploadDir   string
	MaxUploadMB int
	ScratchDir  string // parent of per-run OCR scratch dirs; empty = os.TempDir()
}

// PipelineConfig holds processing settings.
type PipelineConfig struct {
	Workers   int
	Timeout   time.Duration
	InProcess bool // run workers inside the API server
}

// AssemblyAIConfig holds speech-to-text settings.
type AssemblyAIConfig struct {
	APIKey       string
	PollInterval time.Duration
	Timeout      time.Duration
}

// LLMConfig selects and configures the summarization model.
type LLMConfig struct {
	Provider     string // "openrouter" (any OpenAI-compatible endpoint) or "gemini"
	APIKey       string
	BaseURL      string
	Model        string
	Referer      string
	Title        string
	GeminiAPIKey string
	GeminiModel  string
}

// OCRConfig holds slide extraction settings.
type OCRConfig struct {
	Enabled             bool
	FrameIntervalSec    float64
	ConfidenceThreshold float64
	TesseractBin        string
	Language            string
}

// MediaConfig holds ffmpeg binary locations.
type MediaConfig struct {
	FFmpegBin  string
	FFprobeBin string
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// MaxUploadBytes is the upload size limit in bytes.
func (c StorageConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()
	_ = godotenv.Load("env")

	provider := strings.ToLower(getEnv("LLM_PROVIDER", "openrouter"))
	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadHeaderTimeout:  getEnvInt("READ_HEADER_TIMEOUT_SEC", 30),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 0),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 0),
			UploadReadTimeout:  getEnvInt("UPLOAD_READ_TIMEOUT_SEC", 1800),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "lecturely"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Bucket:               getEnv("AWS_S3_BUCKET", ""),
			Endpoint:             getEnv("AWS_S3_ENDPOINT", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Storage: StorageConfig{
			UploadDir:   getEnv("UPLOAD_DIR", "uploads"),
			MaxUploadMB: getEnvInt("MAX_UPLOAD_MB", 500),
			ScratchDir:  getEnv("SCRATCH_DIR", ""),
		},
		Pipeline: PipelineConfig{
			Workers:   getEnvInt("PIPELINE_WORKERS", 2),
			Timeout:   getEnvDuration("PIPELINE_TIMEOUT", 2*time.Hour),
			InProcess: getEnvBool("PIPELINE_IN_PROCESS", false),
		},
		AssemblyAI: AssemblyAIConfig{
			APIKey:       getEnv("ASSEMBLYAI_API_KEY", ""),
			PollInterval: getEnvDuration("TRANSCRIPTION_POLL_INTERVAL", 5*time.Second),
			Timeout:      getEnvDuration("TRANSCRIPTION_TIMEOUT", 30*time.Minute),
		},
		LLM: LLMConfig{
			Provider:     provider,
			APIKey:       getEnv("OPENROUTER_API_KEY", getEnv("OPENAI_API_KEY", "")),
			BaseURL:      getEnv("LLM_BASE_URL", defaultLLMBaseURL(provider)),
			Model:        getEnv("LLM_MODEL", "deepseek/deepseek-chat"),
			Referer:      getEnv("LLM_REFERER", "http://localhost:3000"),
			Title:        getEnv("LLM_TITLE", "Lecturely"),
			GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
			GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		OCR: OCRConfig{
			Enabled:             getEnvBool("OCR_ENABLED", true),
			FrameIntervalSec:    getEnvFloat("OCR_FRAME_INTERVAL_SEC", 30),
			ConfidenceThreshold: getEnvFloat("OCR_CONFIDENCE_THRESHOLD", 0.7),
			TesseractBin:        getEnv("TESSERACT_BIN", "tesseract"),
			Language:            getEnv("OCR_LANGUAGE", "eng"),
		},
		Media: MediaConfig{
			FFmpegBin:  getEnv("FFMPEG_BIN", "ffmpeg"),
			FFprobeBin: getEnv("FFPROBE_BIN", "ffprobe"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot start with. Provider keys are checked
// where the provider is built so the API server can run without them.
func (c *Config) Validate() error {
	var errs []error
	if c.Pipeline.Workers < 1 {
		errs = append(errs, errors.New("PIPELINE_WORKERS must be at least 1"))
	}
	if c.Pipeline.Timeout <= 0 {
		errs = append(errs, errors.New("PIPELINE_TIMEOUT must be positive"))
	}
	if c.OCR.FrameIntervalSec <= 0 {
		errs = append(errs, errors.New("OCR_FRAME_INTERVAL_SEC must be positive"))
	}
	if c.OCR.ConfidenceThreshold < 0 || c.OCR.ConfidenceThreshold > 1 {
		errs = append(errs, errors.New("OCR_CONFIDENCE_THRESHOLD must be within [0,1]"))
	}
	switch c.LLM.Provider {
	case "openrouter", "openai", "gemini":
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLM.Provider))
	}
	if c.Storage.UploadDir == "" {
		errs = append(errs, errors.New("UPLOAD_DIR is required"))
	}
	return errors.Join(errs...)
}

// defaultLLMBaseURL is OpenRouter unless the official OpenAI API is selected.
func defaultLLMBaseURL(provider string) string {
	if provider == "openai" {
		return ""
	}
	return "https://openrouter.ai/api/v1"
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s", "2h") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
