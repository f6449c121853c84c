package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"guru/internal/domain"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	JWTSecret        string
	StoreDriver      string
	DBMaxConns       int
	BlobDriver       string
	BlobFSRoot       string
	StorageBaseURL   string
	BlobS3Bucket     string
	BlobS3Region     string
	BlobS3Endpoint   string
	BlobS3PathStyle  bool
	GeoIPDBPath      string
	PlanCatalogPath  string
	AnswerProvider   string
	AnswerBaseURL    string
	AnswerTimeout    time.Duration
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIBaseURL    string
	OpenAIOrg        string
	Verifier         string
	VerifierAccount  string
	MatchThreshold   int
	VerifyRetries    int
	ResetInterval    time.Duration
	VerifyPoll       time.Duration
	VerifyBatch      int
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	DefaultMedium    string
	CORSOrigins      []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             port,
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		StoreDriver:      strings.ToLower(os.Getenv("STORE_DRIVER")),
		DBMaxConns:       getEnvInt("DB_MAX_CONNS", 10),
		BlobDriver:       strings.ToLower(getEnv("BLOB_DRIVER", "fs")),
		BlobFSRoot:       getEnv("BLOB_FS_ROOT", "./data/slips"),
		StorageBaseURL:   getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/files"),
		BlobS3Bucket:     os.Getenv("BLOB_S3_BUCKET"),
		BlobS3Region:     getEnv("BLOB_S3_REGION", "ap-south-1"),
		BlobS3Endpoint:   os.Getenv("BLOB_S3_ENDPOINT"),
		BlobS3PathStyle:  getEnvBool("BLOB_S3_PATH_STYLE", false),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		PlanCatalogPath:  os.Getenv("PLAN_CATALOG_PATH"),
		AnswerProvider:   strings.ToLower(getEnv("ANSWER_PROVIDER", "static")),
		AnswerBaseURL:    os.Getenv("ANSWER_BASE_URL"),
		AnswerTimeout:    time.Second * time.Duration(getEnvInt("ANSWER_TIMEOUT_SECONDS", 60)),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:        os.Getenv("OPENAI_ORG"),
		Verifier:         strings.ToLower(getEnv("VERIFIER", "sms")),
		VerifierAccount:  os.Getenv("VERIFIER_ACCOUNT_SUFFIX"),
		MatchThreshold:   getEnvInt("VERIFIER_MATCH_THRESHOLD", 70),
		VerifyRetries:    getEnvInt("VERIFIER_MAX_TRIES", 3),
		ResetInterval:    time.Second * time.Duration(getEnvInt("RESET_INTERVAL_SECONDS", 60)),
		VerifyPoll:       time.Second * time.Duration(getEnvInt("VERIFY_POLL_SECONDS", 15)),
		VerifyBatch:      getEnvInt("VERIFY_BATCH_SIZE", 10),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 90)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		DefaultMedium:    getEnv("DEFAULT_MEDIUM", domain.MediumSinhala),
		CORSOrigins:      getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	if cfg.StoreDriver == "" {
		cfg.StoreDriver = "memory"
		if cfg.DatabaseURL != "" {
			cfg.StoreDriver = "postgres"
		}
	}

	switch cfg.StoreDriver {
	case "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	medium := domain.NormalizeMedium(cfg.DefaultMedium)
	if medium == "" {
		return nil, fmt.Errorf("DEFAULT_MEDIUM must be sinhala, english or tamil, got %q", cfg.DefaultMedium)
	}
	cfg.DefaultMedium = medium

	if cfg.MatchThreshold < 0 || cfg.MatchThreshold > 100 {
		return nil, fmt.Errorf("VERIFIER_MATCH_THRESHOLD must be within 0..100")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
