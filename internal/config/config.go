package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port    string
	GinMode string

	VerifyToken string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBPath     string

	GraphBaseURL       string
	GraphAPIVersion    string
	HTTPClientTimeout  time.Duration
	DefaultCountryCode string

	JWTSecret   string
	JWTAudience string

	// TenantResolver selects how webhook traffic is routed to a profile:
	// "phone_number_id" (default) or "business_account_id".
	TenantResolver string

	CORSAllowedOrigins []string

	LogLevel  string
	LogFormat string

	AMQPURL      string
	AMQPExchange string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file loaded, using process environment")
	}

	return &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "release"),

		VerifyToken: getEnv("VERIFY_TOKEN", ""),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "postgres"),
		DBSSLMode:  getEnv("DB_SSLMODE", "require"),
		DBPath:     getEnv("DB_PATH", "./whatsapp.db"),

		GraphBaseURL:       strings.TrimRight(getEnv("GRAPH_API_BASE_URL", "https://graph.facebook.com"), "/"),
		GraphAPIVersion:    getEnv("GRAPH_API_VERSION", "v21.0"),
		HTTPClientTimeout:  getDuration("HTTP_CLIENT_TIMEOUT", 15*time.Second),
		DefaultCountryCode: getEnv("DEFAULT_COUNTRY_CODE", "91"),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTAudience: getEnv("JWT_AUDIENCE", "authenticated"),

		TenantResolver: getEnv("TENANT_RESOLVER", "phone_number_id"),

		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "whatsapp.events"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("Invalid duration, using default")
		return fallback
	}
	return d
}

func getList(key string, fallback []string) []string {
	raw, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(raw) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
