package env

import (
	"fmt"
	"os"
	"strings"
	"time"

	cenv "github.com/caarlos0/env/v10"
)

const (
	AppEnv                     = "APP_ENV"
	LogLevel                   = "LOG_LEVEL"
	LogFormat                  = "LOG_FORMAT"
	AWSRegion                  = "AWS_REGION"
	AWSID                      = "AWS_ID"
	AWSSecret                  = "AWS_SECRET"
	AWSToken                   = "AWS_TOKEN"
	DynamoDBEndpoint           = "DYNAMODB_ENDPOINT"
	UserSecretKey              = "USER_SECRET"
	ChatRedisURL               = "CHAT_REDIS_URL"
	ChatRedisPass              = "CHAT_REDIS_PASS"
	AIWebhookURL               = "AI_WEBHOOK_URL"
	AIWebhookSecret            = "AI_WEBHOOK_SECRET"
	AIWebhookTimeout           = "AI_WEBHOOK_TIMEOUT"
	InitialOrganizationCredits = "INITIAL_ORGANIZATION_CREDITS"
	EmbedRateLimitMax          = "EMBED_RATE_LIMIT_MAX"
	EmbedRateLimitWindow       = "EMBED_RATE_LIMIT_WINDOW"
	CORSAllowedOrigins         = "CORS_ALLOWED_ORIGINS"
	RequestQueueSize           = "REQUEST_QUEUE_SIZE"
	RequestQueueWorkers        = "REQUEST_QUEUE_WORKERS"
	AppListenAddr              = "APP_LISTEN_ADDR"
	PublicListenAddr           = "PUBLIC_LISTEN_ADDR"
	WSListenAddr               = "WS_LISTEN_ADDR"
	PlatformAdminUserID        = "PLATFORM_ADMIN_USER_ID"
	PlatformAdminEmail         = "PLATFORM_ADMIN_EMAIL"
)

// Config is the typed view of the process environment shared by every server binary.
type Config struct {
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	AWSRegion        string `env:"AWS_REGION" envDefault:"eu-central-1"`
	AWSID            string `env:"AWS_ID"`
	AWSSecret        string `env:"AWS_SECRET"`
	AWSToken         string `env:"AWS_TOKEN"`
	DynamoDBEndpoint string `env:"DYNAMODB_ENDPOINT"`

	UserSecret string `env:"USER_SECRET"`

	ChatRedisURL  string `env:"CHAT_REDIS_URL"`
	ChatRedisPass string `env:"CHAT_REDIS_PASS"`

	AIWebhookURL     string        `env:"AI_WEBHOOK_URL"`
	AIWebhookSecret  string        `env:"AI_WEBHOOK_SECRET"`
	AIWebhookTimeout time.Duration `env:"AI_WEBHOOK_TIMEOUT" envDefault:"90s"`

	InitialOrganizationCredits int64 `env:"INITIAL_ORGANIZATION_CREDITS" envDefault:"0"`

	EmbedRateLimitMax    int           `env:"EMBED_RATE_LIMIT_MAX" envDefault:"30"`
	EmbedRateLimitWindow time.Duration `env:"EMBED_RATE_LIMIT_WINDOW" envDefault:"60s"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	RequestQueueSize    int `env:"REQUEST_QUEUE_SIZE" envDefault:"10"`
	RequestQueueWorkers int `env:"REQUEST_QUEUE_WORKERS" envDefault:"10"`

	AppListenAddr    string `env:"APP_LISTEN_ADDR" envDefault:":81"`
	PublicListenAddr string `env:"PUBLIC_LISTEN_ADDR" envDefault:":82"`
	WSListenAddr     string `env:"WS_LISTEN_ADDR" envDefault:":83"`

	// Seeded by bootstrap-tables when set.
	PlatformAdminUserID string `env:"PLATFORM_ADMIN_USER_ID"`
	PlatformAdminEmail  string `env:"PLATFORM_ADMIN_EMAIL"`
}

// Load parses the environment into Config.
func Load() (Config, error) {
	var cfg Config
	if err := cenv.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}

	cfg.AIWebhookURL = strings.TrimSpace(cfg.AIWebhookURL)
	cfg.AIWebhookSecret = strings.TrimSpace(cfg.AIWebhookSecret)

	if cfg.InitialOrganizationCredits < 0 {
		return Config{}, fmt.Errorf("%s must be a non-negative integer", InitialOrganizationCredits)
	}
	if cfg.EmbedRateLimitMax <= 0 {
		return Config{}, fmt.Errorf("%s must be positive", EmbedRateLimitMax)
	}
	if cfg.EmbedRateLimitWindow <= 0 {
		return Config{}, fmt.Errorf("%s must be positive", EmbedRateLimitWindow)
	}
	if cfg.RequestQueueWorkers <= 0 {
		cfg.RequestQueueWorkers = 1
	}
	if cfg.RequestQueueSize < 0 {
		cfg.RequestQueueSize = 0
	}

	return cfg, nil
}

// MustLoad loads the config and panics when any of the required keys is unset.
func MustLoad(required ...string) Config {
	for _, key := range required {
		MustGet(key)
	}
	cfg, err := Load()
	if err != nil {
		panic("env: " + err.Error())
	}
	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func MustGet(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic("env: required environment variable not set: " + key)
	}
	return val
}
