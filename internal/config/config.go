package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	Timezone      string
	ShutdownGrace time.Duration

	// WhatsApp Cloud API
	WhatsAppAccessToken   string
	WhatsAppPhoneNumberID string
	WhatsAppAPIVersion    string
	WhatsAppBaseURL       string
	WhatsAppVerifyToken   string

	// Dialogue engine
	MenuImageURL     string
	GreetingPhrases  []string
	GreetingMinScore float64
	OracleSentinel   string

	// Intent oracle (Gemini)
	GeminiAPIKey  string
	GeminiModelID string

	// Session store
	UseRedisSessions bool
	RedisAddr        string
	RedisPassword    string
	RedisTLS         bool

	// Staff API
	StaffJWTSecret string
	StaffJWTTTL    time.Duration

	// HTTP surface
	CORSAllowedOrigins []string
	WebhookRateLimit   float64
	WebhookBurst       int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		Timezone:      getEnv("TIMEZONE", "Africa/Harare"),
		ShutdownGrace: getEnvAsDuration("SHUTDOWN_GRACE", 10*time.Second),

		WhatsAppAccessToken:   getEnv("WHATSAPP_CLOUD_ACCESS_TOKEN", ""),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_CLOUD_PHONE_NUMBER_ID", ""),
		WhatsAppAPIVersion:    getEnv("WHATSAPP_CLOUD_VERSION", "v21.0"),
		WhatsAppBaseURL:       getEnv("WHATSAPP_CLOUD_BASE_URL", ""),
		WhatsAppVerifyToken:   getEnv("WHATSAPP_CLOUD_VERIFICATION", ""),

		MenuImageURL:     getEnv("MENU_IMAGE_URL", "https://cancerzimbabwe.org/images/logo.png"),
		GreetingPhrases:  getEnvAsList("GREETING_PHRASES", "hi,hello,hey,hie,greetings,good morning,good afternoon,good evening,makadii,mhoro"),
		GreetingMinScore: getEnvAsFloat("GREETING_MIN_SCORE", 0.7),
		OracleSentinel:   getEnv("ORACLE_SENTINEL", "sorry"),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModelID: getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		UseRedisSessions: getEnvAsBool("USE_REDIS_SESSIONS", false),
		RedisAddr:        getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisTLS:         getEnvAsBool("REDIS_TLS", false),

		StaffJWTSecret: getEnv("STAFF_JWT_SECRET", ""),
		StaffJWTTTL:    getEnvAsDuration("STAFF_JWT_TTL", 12*time.Hour),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", ""),
		WebhookRateLimit:   getEnvAsFloat("WEBHOOK_RATE_LIMIT", 10),
		WebhookBurst:       getEnvAsInt("WEBHOOK_BURST", 20),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated environment variable, trimming blanks.
func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
