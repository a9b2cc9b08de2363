package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
}

// Enabled reports whether attachments should go to R2 instead of process memory.
func (r R2) Enabled() bool {
	return r.AccountID != "" && r.AccessKey != "" && r.SecretKey != "" && r.BucketName != ""
}

// Services holds the endpoints of the external verify, generate and publish services.
// An empty VerifyURL disables credential verification.
type Services struct {
	VerifyURL      string
	GenerateURL    string
	PublishURL     string
	Token          string
	Timeout        time.Duration
	RatePerSecond  float64
	BreakerTimeout time.Duration
}

type Config struct {
	Port               string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	PostgresURI        string
	FrontendURL        string
	R2                 R2
	Services           Services
	SecretKey          string
	CookieName         string
	SessionTTL         time.Duration
	DraftIdleTTL       time.Duration
	LogLevel           string
}

func LoadConfig() *Config {
	return &Config{
		Port:               getEnv("PORT", "3000"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "http://localhost:3000/login/callback"),
		PostgresURI:        getEnv("POSTGRES_URI", ""),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
		},
		Services: Services{
			VerifyURL:      getEnv("VERIFY_URL", ""),
			GenerateURL:    getEnv("GENERATE_URL", "http://localhost:5000/generate"),
			PublishURL:     getEnv("PUBLISH_URL", "http://localhost:5000/publish"),
			Token:          getEnv("SERVICES_TOKEN", ""),
			Timeout:        getEnvDuration("SERVICES_TIMEOUT", 30*time.Second),
			RatePerSecond:  getEnvFloat("SERVICES_RATE", 5),
			BreakerTimeout: getEnvDuration("SERVICES_BREAKER_TIMEOUT", 15*time.Second),
		},
		SecretKey:    getEnv("SECRET_KEY", ""),
		CookieName:   getEnv("COOKIE_NAME", "postify_session"),
		SessionTTL:   getEnvDuration("SESSION_TTL", 24*time.Hour),
		DraftIdleTTL: getEnvDuration("DRAFT_IDLE_TTL", 2*time.Hour),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
