package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// Server
	Port       string
	AdminToken string
	LogLevel   string

	// Database
	DatabaseDriver string
	DatabaseURL    string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Storage
	StorageBackend         string
	MediaRoot              string
	MediaBaseURL           string
	SupabaseURL            string
	SupabaseServiceKey     string
	SupabaseStorageBucket  string
	SupabaseStorageBaseURL string

	// Gemini / Vertex AI
	GeminiAPIKeys           []string
	GeminiModel             string
	VertexAIProject         string
	VertexAILocation        string
	VertexAICredentialsJSON string
	VertexAICredentialsPath string
	GatewayTimeout          time.Duration
	ConvertWebP             bool
	WebPQuality             float32

	// Auth
	JWTSecret   string
	JWTTokenTTL time.Duration

	// Payment
	StripeSecretKey     string
	StripeWebhookSecret string
	CreditPerDollar     int

	// Credit
	WardrobeCost int
	StudioCost   int

	// Worker
	WorkerConcurrency int
	StaleJobAfter     time.Duration
}

var globalConfig *Config

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, using environment variables")
	}

	cfg := &Config{
		Port:       getEnv("PORT", "8080"),
		AdminToken: getEnv("ADMIN_TOKEN", ""),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		DatabaseDriver: getEnv("DATABASE_DRIVER", "pgx"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   getEnvBool("REDIS_USE_TLS", false),

		StorageBackend:         getEnv("STORAGE_BACKEND", "supabase"),
		MediaRoot:              getEnv("MEDIA_ROOT", "./media"),
		MediaBaseURL:           getEnv("MEDIA_BASE_URL", "/media/"),
		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:     getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket:  getEnv("SUPABASE_STORAGE_BUCKET", "pixelweave"),
		SupabaseStorageBaseURL: getEnv("SUPABASE_STORAGE_BASE_URL", ""),

		GeminiAPIKeys:           splitList(getEnv("GEMINI_API_KEYS", getEnv("GEMINI_API_KEY", ""))),
		GeminiModel:             getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		VertexAIProject:         getEnv("VERTEXAI_PROJECT", ""),
		VertexAILocation:        getEnv("VERTEXAI_LOCATION", "us-central1"),
		VertexAICredentialsJSON: getEnv("VERTEXAI_CREDENTIALS_JSON", ""),
		VertexAICredentialsPath: getEnv("VERTEXAI_CREDENTIALS_PATH", ""),
		GatewayTimeout:          getEnvDuration("GATEWAY_TIMEOUT", 3*time.Minute),
		ConvertWebP:             getEnvBool("CONVERT_WEBP", true),
		WebPQuality:             float32(getEnvInt("WEBP_QUALITY", 90)),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTTokenTTL: getEnvDuration("JWT_TOKEN_TTL", 24*time.Hour),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		CreditPerDollar:     getEnvInt("CREDIT_PER_DOLLAR", 10),

		WardrobeCost: getEnvInt("WARDROBE_COST", 2),
		StudioCost:   getEnvInt("STUDIO_COST", 2),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
		StaleJobAfter:     getEnvDuration("STALE_JOB_AFTER", 15*time.Minute),
	}

	// 필수 환경변수 검증
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	globalConfig = cfg

	log.Println("✅ Configuration loaded successfully")
	log.Printf("   Database: %s", cfg.DatabaseDriver)
	log.Printf("   Redis: %s:%s (TLS: %v)", cfg.RedisHost, cfg.RedisPort, cfg.RedisUseTLS)
	log.Printf("   Storage: %s", cfg.StorageBackend)
	log.Printf("   Gemini: %s (keys: %d, vertex: %v)", cfg.GeminiModel, len(cfg.GeminiAPIKeys), cfg.UseVertexAI())
	log.Printf("   Credit: wardrobe=%d studio=%d, %d per dollar", cfg.WardrobeCost, cfg.StudioCost, cfg.CreditPerDollar)

	return cfg, nil
}

// GetConfig - 로드된 설정 가져오기
func GetConfig() *Config {
	if globalConfig == nil {
		log.Fatal("❌ Config not loaded. Call LoadConfig() first.")
	}
	return globalConfig
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DatabaseDriver != "pgx" && c.DatabaseDriver != "sqlite3" {
		return fmt.Errorf("DATABASE_DRIVER must be pgx or sqlite3, got %q", c.DatabaseDriver)
	}
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.StorageBackend {
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required for supabase storage")
		}
	case "local":
	default:
		return fmt.Errorf("STORAGE_BACKEND must be supabase or local, got %q", c.StorageBackend)
	}
	if len(c.GeminiAPIKeys) == 0 && !c.UseVertexAI() {
		return fmt.Errorf("GEMINI_API_KEYS or VERTEXAI_PROJECT is required")
	}
	if c.WardrobeCost <= 0 || c.StudioCost <= 0 {
		return fmt.Errorf("WARDROBE_COST and STUDIO_COST must be positive")
	}
	if c.CreditPerDollar <= 0 {
		return fmt.Errorf("CREDIT_PER_DOLLAR must be positive")
	}
	if c.StaleJobAfter <= c.JobBudget() {
		return fmt.Errorf("STALE_JOB_AFTER (%s) must exceed GATEWAY_TIMEOUT plus %s (%s)",
			c.StaleJobAfter, jobOverhead, c.JobBudget())
	}
	return nil
}

// 결과 저장 / 완료 커밋 재시도 여유
const jobOverhead = 2 * time.Minute

// JobBudget - 작업 하나가 PROCESSING 에 머물 수 있는 최대 시간
// sweep 은 이보다 오래된 PROCESSING 만 실패 처리해야 함
func (c *Config) JobBudget() time.Duration {
	return c.GatewayTimeout + jobOverhead
}

// UseVertexAI - Vertex AI 백엔드 사용 여부
func (c *Config) UseVertexAI() bool {
	return c.VertexAIProject != ""
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Printf("⚠️  Invalid %s=%q, using default %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		log.Printf("⚠️  Invalid %s=%q, using default %s", key, value, defaultValue)
	}
	return defaultValue
}

// splitList - 쉼표로 구분된 값 (API 키 목록 등)
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
