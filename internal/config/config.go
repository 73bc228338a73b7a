package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	// PublicBaseURL is the externally reachable base URL, used when composing
	// the doctor-view link returned after a successful verification.
	PublicBaseURL string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	// Doctor-access challenge tuning.
	OTPTTL         time.Duration
	OTPMaxAttempts int

	// Minimum interval between two owner notifications for the same
	// (profile, event type) pair.
	NotifyCooldown time.Duration

	// SessionTTL bounds browser sessions and with them all challenge and
	// grant state.
	SessionTTL time.Duration

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Profiles   string
	AccessLogs string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:       getEnv("APP_PORT", "3000"),
		AppEnv:        getEnv("APP_ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Profiles:   getEnv("DYNAMO_TABLE_PROFILES", "medical_profiles"),
			AccessLogs: getEnv("DYNAMO_TABLE_ACCESS_LOGS", "access_logs"),
		},

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SNSRegion: getEnv("SNS_REGION", "us-east-1"),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,

		OTPTTL:         time.Duration(getEnvInt("OTP_TTL_MINUTES", 5)) * time.Minute,
		OTPMaxAttempts: getEnvInt("OTP_MAX_ATTEMPTS", 5),
		NotifyCooldown: time.Duration(getEnvInt("ACCESS_NOTIFY_COOLDOWN_MINUTES", 30)) * time.Minute,
		SessionTTL:     time.Duration(getEnvInt("SESSION_TTL_HOURS", 12)) * time.Hour,

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
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
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
