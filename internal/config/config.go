// Package config reads process configuration from the environment. A .env
// file is honored in development; values are resolved once at startup and
// never reloaded.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/homelend/platform/pkg/auth"
	"github.com/homelend/platform/pkg/blob"
	"github.com/homelend/platform/pkg/llm"
	"github.com/homelend/platform/pkg/postgres"
)

// Config is the full process configuration.
type Config struct {
	HTTPPort    int
	MetricsPort int
	LogLevel    string
	LogFormat   string

	LendingDB    postgres.Config
	ComplianceDB postgres.Config
	MigrationsDir string

	Auth auth.VerifierConfig

	Blob blob.StoreConfig

	LLM llm.Config

	KafkaBrokers []string
	RedisAddr    string

	SeedOnStart bool
}

// Load reads the environment, honoring a .env file when present.
func Load() Config {
	_ = godotenv.Load()

	lending := postgres.Config{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("LENDING_DB_USER", "lending_app"),
		Password: getEnv("LENDING_DB_PASSWORD", ""),
		Database: getEnv("DB_NAME", "homelend"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
		MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
	}
	compliance := lending
	compliance.User = getEnv("COMPLIANCE_DB_USER", "compliance_app")
	compliance.Password = getEnv("COMPLIANCE_DB_PASSWORD", "")
	compliance.MaxConns = int32(getEnvInt("COMPLIANCE_DB_MAX_CONNS", 4))

	return Config{
		HTTPPort:    getEnvInt("HTTP_PORT", 8080),
		MetricsPort: getEnvInt("METRICS_PORT", 9090),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),

		LendingDB:     lending,
		ComplianceDB:  compliance,
		MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),

		Auth: auth.VerifierConfig{
			JWKSURL: getEnv("AUTH_JWKS_URL", ""),
			Secret:  getEnv("AUTH_DEV_SECRET", ""),
			Issuer:  getEnv("AUTH_ISSUER", ""),
		},

		Blob: blob.StoreConfig{
			Bucket:   getEnv("BLOB_BUCKET", "homelend-documents"),
			Region:   getEnv("BLOB_REGION", "us-east-1"),
			Endpoint: getEnv("BLOB_ENDPOINT", ""),
		},

		LLM: llm.Config{
			Endpoint:       getEnv("LLM_ENDPOINT", ""),
			APIKey:         getEnv("LLM_API_KEY", ""),
			ChatModel:      getEnv("LLM_CHAT_MODEL", ""),
			EmbeddingModel: getEnv("LLM_EMBEDDING_MODEL", ""),
			SafetyModel:    getEnv("LLM_SAFETY_MODEL", ""),
			Timeout:        getEnvDuration("LLM_TIMEOUT", 120*time.Second),
		},

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		RedisAddr:    getEnv("REDIS_ADDR", ""),

		SeedOnStart: getEnvBool("SEED_ON_START", false),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
