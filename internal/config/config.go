package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT sessions
	JwtSecret       string
	JwtTTL          time.Duration
	CaptchaTokenTTL time.Duration

	// Server
	ApiPort        string
	ServiceApiPort string

	// Backend call budget (applies to Mongo reads backing role
	// resolution and listing search)
	BackendTimeout time.Duration

	// Admin console
	AdminLoginSecret string
	AdminUsersPerPage int
	AdminUsersMaxPages int

	// Cloudflare Turnstile
	CloudflareTurnstileSecretKey string
	CloudflareSiteVerifyURL      string

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string

	// AWS S3
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	MediaBaseURL       string
	AvatarMaxDimension       int
	ListingPhotoMaxDimension int
	ImageMaxSizeMB           int

	// Search
	SearchPageSize         int
	SnapshotRefreshPeriod  time.Duration

	// Local demo store (likes/comments), an on-device SQLite file
	LocalStorePath string

	// App Defaults
	AppName        string
	PasswordRegexp *regexp.Regexp

	// Rate Limiting Defaults
	RateLimitSoftBucketSize int
	RateLimitSoftRefillRate int // tokens per second
	RateLimitHardBucketSize int
	RateLimitHardRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

	cfg := &Config{
		RunMode: runMode, // Set from flag
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "digicode_immo")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.AdminLoginSecret = getEnv("ADMIN_LOGIN_SECRET", "")
	cfg.CloudflareTurnstileSecretKey = getEnv("CLOUDFLARE_TURNSTILE_SECRET_KEY", "")
	cfg.CloudflareSiteVerifyURL = getEnv("CLOUDFLARE_SITEVERIFY_URL", "https://challenges.cloudflare.com/turnstile/v0/siteverify")
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "noreply@digicode-immo.example.com")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.MediaBaseURL = getEnv("MEDIA_BASE_URL", "")
	cfg.LocalStorePath = getEnv("LOCAL_STORE_PATH", "digicode-immo-local.db")
	cfg.AppName = getEnv("APP_NAME", "DigiCode Immo")
	cfg.PasswordRegexp, err = regexp.Compile(getEnv("PASSWORD_REGEXP", "^.{8,}$"))
	if err != nil {
		return nil, fmt.Errorf("invalid PASSWORD_REGEXP: %w", err)
	}

	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	jwtTTLSeconds, err := strconv.ParseInt(getEnv("JWT_TTL_SECONDS", "3600"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL_SECONDS: %w", err)
	}
	cfg.JwtTTL = time.Duration(jwtTTLSeconds) * time.Second

	captchaTTLSeconds, err := strconv.ParseInt(getEnv("CAPTCHA_TOKEN_TTL", "1200"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CAPTCHA_TOKEN_TTL: %w", err)
	}
	cfg.CaptchaTokenTTL = time.Duration(captchaTTLSeconds) * time.Second

	backendTimeoutSeconds, err := strconv.ParseInt(getEnv("BACKEND_TIMEOUT_SECONDS", "10"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid BACKEND_TIMEOUT_SECONDS: %w", err)
	}
	cfg.BackendTimeout = time.Duration(backendTimeoutSeconds) * time.Second

	cfg.SmtpPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	cfg.AdminUsersPerPage, err = strconv.Atoi(getEnv("ADMIN_USERS_PER_PAGE", "200"))
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_USERS_PER_PAGE: %w", err)
	}

	cfg.AdminUsersMaxPages, err = strconv.Atoi(getEnv("ADMIN_USERS_MAX_PAGES", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_USERS_MAX_PAGES: %w", err)
	}

	cfg.AvatarMaxDimension, err = strconv.Atoi(getEnv("AVATAR_MAX_DIMENSION", "512"))
	if err != nil {
		return nil, fmt.Errorf("invalid AVATAR_MAX_DIMENSION: %w", err)
	}

	cfg.ListingPhotoMaxDimension, err = strconv.Atoi(getEnv("LISTING_PHOTO_MAX_DIMENSION", "1600"))
	if err != nil {
		return nil, fmt.Errorf("invalid LISTING_PHOTO_MAX_DIMENSION: %w", err)
	}

	cfg.ImageMaxSizeMB, err = strconv.Atoi(getEnv("IMAGE_MAX_SIZE_MB", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_MAX_SIZE_MB: %w", err)
	}

	cfg.SearchPageSize, err = strconv.Atoi(getEnv("SEARCH_PAGE_SIZE", "12"))
	if err != nil {
		return nil, fmt.Errorf("invalid SEARCH_PAGE_SIZE: %w", err)
	}

	snapshotRefreshMinutes, err := strconv.ParseInt(getEnv("SNAPSHOT_REFRESH_MINUTES", "5"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SNAPSHOT_REFRESH_MINUTES: %w", err)
	}
	cfg.SnapshotRefreshPeriod = time.Duration(snapshotRefreshMinutes) * time.Minute

	// Rate Limiting
	cfg.RateLimitSoftBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_SOFT_BUCKET_SIZE", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_SOFT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitSoftRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_SOFT_REFILL_RATE", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_SOFT_REFILL_RATE: %w", err)
	}
	cfg.RateLimitHardBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_HARD_BUCKET_SIZE", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_HARD_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitHardRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_HARD_REFILL_RATE", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_HARD_REFILL_RATE: %w", err)
	}

	return cfg, nil
}
