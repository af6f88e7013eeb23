// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort string
	LogLevel   string

	// Token
	JWTSigningKey   string // base64。空の場合は起動ごとに生成する
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// CORS
	CORSAllowedOrigin string // カンマ区切りの許可リスト。"*"で全許可

	// リバースプロキシ配下で転送ヘッダーを信頼するか
	TrustProxyHeaders bool

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitLogin   int

	// Weather
	WeatherAPIBaseURL string
	WeatherAPIKey     string
	WeatherPolyID     string

	// Twilio
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string
	TwilioBaseURL     string

	// Prediction
	PredictionServiceURL string

	// Outbound
	OutboundTimeout time.Duration
	OutboundMaxSize int64
	TrustedCIDRs    []string

	// Worker
	SensorRetentionDays       int
	CleanupInterval           time.Duration
	PredictionRefreshInterval time.Duration
	PredictionMaxConcurrent   int
}

// LoadDotEnv はカレントディレクトリの.envを環境変数に読み込む。
// ファイルが存在しない場合は何もしない。既に設定済みの環境変数は上書きしない。
func LoadDotEnv(filenames ...string) error {
	err := godotenv.Load(filenames...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("PORT", "8080")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.JWTSigningKey = os.Getenv("JWT_SIGNING_KEY")
	cfg.AccessTokenTTL = getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute)
	cfg.RefreshTokenTTL = getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.TrustProxyHeaders = getEnvBool("TRUST_PROXY_HEADERS", false)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.WeatherAPIBaseURL = getEnvString("WEATHER_API_BASE_URL", "https://api.agromonitoring.com/agro/1.0")
	cfg.WeatherAPIKey = os.Getenv("WEATHER_API_KEY")
	cfg.WeatherPolyID = os.Getenv("WEATHER_POLY_ID")
	cfg.TwilioAccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	cfg.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	cfg.TwilioPhoneNumber = os.Getenv("TWILIO_PHONE_NUMBER")
	cfg.TwilioBaseURL = getEnvString("TWILIO_BASE_URL", "https://api.twilio.com")
	cfg.PredictionServiceURL = os.Getenv("PREDICTION_SERVICE_URL")
	cfg.OutboundTimeout = getEnvDuration("OUTBOUND_TIMEOUT", 10*time.Second)
	cfg.OutboundMaxSize = getEnvInt64("OUTBOUND_MAX_SIZE", 1048576)
	cfg.TrustedCIDRs = getEnvList("TRUSTED_CIDRS")
	cfg.SensorRetentionDays = getEnvInt("SENSOR_RETENTION_DAYS", 90)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.PredictionRefreshInterval = getEnvDuration("PREDICTION_REFRESH_INTERVAL", 6*time.Hour)
	cfg.PredictionMaxConcurrent = getEnvInt("PREDICTION_MAX_CONCURRENT", 4)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの環境変数を空要素を除いて返す。
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
