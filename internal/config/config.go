package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/adapter/cache"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/adapter/file"
	oauthadapter "github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/adapter/oauth"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/aliexpress"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/domain"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/signer"
)

// Config contains runtime configuration values.
type Config struct {
	Environment string
	HTTPPort    string
	ServiceName string

	Credentials     domain.Credentials
	SignMode        signer.Mode
	SignPathPrefix  string
	TimestampFormat aliexpress.TimestampFormat
	ClockSync       bool
	APIBaseURL      string
	APIUsePOST      bool
	APIVersion      string
	OAuthBaseURL    string
	TrackingID      string

	HTTPClientTimeout time.Duration

	TokenFile     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTokenKey string

	RateLimitRPM         int
	TelemetryEndpoint    string
	TelemetryInsecure    bool
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// Load reads configuration from the environment, .env and config.env.
// Credentials have no embedded defaults; a missing one is an error.
func Load() (Config, error) {
	_ = godotenv.Load()
	_ = godotenv.Load("config.env")

	appKey := firstEnv("APP_KEY", "ALIEXPRESS_APP_KEY")
	if appKey == "" {
		return Config{}, fmt.Errorf("APP_KEY is required")
	}
	appSecret := firstEnv("APP_SECRET", "ALIEXPRESS_APP_SECRET")
	if appSecret == "" {
		return Config{}, fmt.Errorf("APP_SECRET is required")
	}
	redirectURI := firstEnv("REDIRECT_URI", "ALIEXPRESS_REDIRECT_URI")
	if redirectURI == "" {
		return Config{}, fmt.Errorf("REDIRECT_URI is required")
	}

	signMode, err := signer.ParseMode(getEnv("SIGN_MODE", "hmac"))
	if err != nil {
		return Config{}, fmt.Errorf("SIGN_MODE: %w", err)
	}
	timestampFormat, err := aliexpress.ParseTimestampFormat(getEnv("TIMESTAMP_FORMAT", "epoch-seconds"))
	if err != nil {
		return Config{}, fmt.Errorf("TIMESTAMP_FORMAT: %w", err)
	}
	var usePOST bool
	switch transport := strings.ToLower(strings.TrimSpace(getEnv("API_TRANSPORT", "get"))); transport {
	case "get":
	case "post":
		usePOST = true
	default:
		return Config{}, fmt.Errorf("API_TRANSPORT must be get or post, got %q", transport)
	}

	port := getEnv("HTTP_PORT", "")
	if port == "" {
		port = getEnv("PORT", "8080")
	}

	cfg := Config{
		Environment: getEnv("APP_ENV", "development"),
		HTTPPort:    port,
		ServiceName: getEnv("SERVICE_NAME", "aliexpress-dropshipping-api"),
		Credentials: domain.Credentials{
			AppKey:      appKey,
			AppSecret:   appSecret,
			RedirectURI: redirectURI,
		},
		SignMode:             signMode,
		SignPathPrefix:       os.Getenv("SIGN_PATH_PREFIX"),
		TimestampFormat:      timestampFormat,
		ClockSync:            getBool("CLOCK_SYNC", false),
		APIBaseURL:           getEnv("API_BASE_URL", aliexpress.DefaultBaseURL),
		APIUsePOST:           usePOST,
		APIVersion:           getEnv("API_VERSION", aliexpress.DefaultVersion),
		OAuthBaseURL:         getEnv("OAUTH_BASE_URL", oauthadapter.DefaultBaseURL),
		TrackingID:           firstEnv("TRACKING_ID", "ALIEXPRESS_TRACKING_ID"),
		HTTPClientTimeout:    getDuration("HTTP_CLIENT_TIMEOUT", 15*time.Second),
		TokenFile:            getEnv("TOKEN_FILE", file.DefaultTokenPath),
		RedisAddr:            strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0),
		RedisTokenKey:        getEnv("REDIS_TOKEN_KEY", cache.DefaultTokenKey),
		RateLimitRPM:         getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Content-Type", "X-Request-ID"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	if cfg.HTTPClientTimeout <= 0 {
		return Config{}, fmt.Errorf("HTTP_CLIENT_TIMEOUT must be positive")
	}

	return cfg, nil
}

// firstEnv returns the first non-blank value among keys.
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		var cleaned []string
		for _, p := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
