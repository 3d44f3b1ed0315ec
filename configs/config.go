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
	PublicBase string
}

type Dispatcher struct {
	PollInterval       time.Duration
	BatchSize          int
	ClaimTimeout       time.Duration
	AdapterTimeout     time.Duration
	MaxConcurrentPosts int
	MaxAutoRetries     int
	RetryBackoff       []time.Duration
}

type Config struct {
	InstagramClientID     string
	InstagramClientSecret string
	InstagramRedirectURI  string
	TiktokClientKey       string
	TiktokClientSecret    string
	TiktokRedirectURI     string
	FacebookClientID      string
	FacebookClientSecret  string
	FacebookRedirectURI   string
	PostgresURI           string
	RedisURI              string
	FrontendURL           string
	MetricsAddr           string
	R2                    R2
	Dispatcher            Dispatcher
	MonthlyPostLimit      int
	SecretKey             string
	CookieName            string
	LogLevel              string
}

func LoadConfig() *Config {
	return &Config{
		InstagramClientID:     getEnv("INSTAGRAM_CLIENT_ID", ""),
		InstagramClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
		InstagramRedirectURI:  getEnv("INSTAGRAM_REDIRECT_URI", ""),
		TiktokClientKey:       getEnv("TIKTOK_CLIENT_KEY", ""),
		TiktokClientSecret:    getEnv("TIKTOK_CLIENT_SECRET", ""),
		TiktokRedirectURI:     getEnv("TIKTOK_REDIRECT_URI", ""),
		FacebookClientID:      getEnv("FACEBOOK_CLIENT_ID", ""),
		FacebookClientSecret:  getEnv("FACEBOOK_CLIENT_SECRET", ""),
		FacebookRedirectURI:   getEnv("FACEBOOK_REDIRECT_URI", ""),
		PostgresURI:           getEnv("POSTGRES_URI", ""),
		RedisURI:              getEnv("REDIS_URI", ""),
		FrontendURL:           getEnv("FRONTEND_URL", "http://localhost:5173"),
		MetricsAddr:           getEnv("METRICS_ADDR", ":9091"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicBase: getEnv("R2_PUBLIC_BASE", ""),
		},
		Dispatcher: Dispatcher{
			PollInterval:       getEnvDuration("DISPATCH_POLL_INTERVAL", time.Minute),
			BatchSize:          getEnvInt("DISPATCH_BATCH_SIZE", 50),
			ClaimTimeout:       getEnvDuration("DISPATCH_CLAIM_TIMEOUT", 5*time.Minute),
			AdapterTimeout:     getEnvDuration("DISPATCH_ADAPTER_TIMEOUT", 30*time.Second),
			MaxConcurrentPosts: getEnvInt("DISPATCH_MAX_CONCURRENT_POSTS", 10),
			MaxAutoRetries:     getEnvInt("DISPATCH_MAX_AUTO_RETRIES", 3),
			RetryBackoff: []time.Duration{
				getEnvDuration("DISPATCH_RETRY_BACKOFF_1", 5*time.Minute),
				getEnvDuration("DISPATCH_RETRY_BACKOFF_2", 20*time.Minute),
				getEnvDuration("DISPATCH_RETRY_BACKOFF_3", 60*time.Minute),
			},
		},
		MonthlyPostLimit: getEnvInt("MONTHLY_POST_LIMIT", 100),
		SecretKey:        getEnv("SECRET_KEY", ""),
		CookieName:       getEnv("COOKIE_NAME", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
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
