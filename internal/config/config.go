package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// AppConfig is the full process configuration, loaded from a YAML file
// named by CHECKOUT_CONFIG_PATH and overridable by environment variables,
// the same two-stage pattern the teacher uses for its order-service config.
type AppConfig struct {
	Env        string `yaml:"env" env:"ENV" env-default:"dev"`
	HTTPServer `yaml:"http_server"`
	DB         `yaml:"db"`
	LogConfig  `yaml:"log_config"`
	Provider   `yaml:"provider"`
	Platform   `yaml:"platform"`
	KafkaConfig `yaml:"kafka"`
	Session    `yaml:"session"`
	Encryption `yaml:"encryption"`
}

type HTTPServer struct {
	Host         string        `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port         string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
}

type DB struct {
	Dsn string `yaml:"dsn" env:"DB_DSN"`
}

type LogConfig struct {
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:"json"`
	LogOutput string `yaml:"log_output" env:"LOG_OUTPUT" env-default:"stdout"`
}

// Provider is the payment provider this deployment authorizes/captures
// cards against (spec.md §4.4).
type Provider struct {
	BaseURL       string `yaml:"base_url" env:"PROVIDER_BASE_URL"`
	SecretKey     string `yaml:"secret_key" env:"PROVIDER_SECRET_KEY"`
	WebhookSecret string `yaml:"webhook_secret" env:"PROVIDER_WEBHOOK_SECRET"`
}

// Platform is the commerce platform (storefront/checkout) this deployment
// is installed into (spec.md §4.7).
type Platform struct {
	BaseURL       string `yaml:"base_url" env:"PLATFORM_BASE_URL"`
	WebhookSecret string `yaml:"webhook_secret" env:"PLATFORM_WEBHOOK_SECRET"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `yaml:"operator_alerts_topic" env:"KAFKA_OPERATOR_ALERTS_TOPIC" env-default:"operator-alerts"`
}

type Session struct {
	TTL           time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"30m"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SESSION_SWEEP_INTERVAL" env-default:"1m"`
}

// Encryption holds the at-rest key for store.access_token (spec.md §3).
// KeyBase64 must decode to exactly 32 bytes (AES-256).
type Encryption struct {
	KeyBase64 string `yaml:"access_token_key" env:"ACCESS_TOKEN_ENCRYPTION_KEY"`
}

// MustLoad reads the YAML file at CHECKOUT_CONFIG_PATH, applying a
// sibling .env file first (if present) so local development doesn't need
// real environment variables exported, then lets process environment
// variables override individual fields — the same layering as the
// teacher's MustLoad, generalized to this service's settings.
func MustLoad() *AppConfig {
	_ = godotenv.Load()

	configPath := os.Getenv("CHECKOUT_CONFIG_PATH")
	if configPath == "" {
		log.Fatalf("CHECKOUT_CONFIG_PATH was not found\n")
	}

	if _, err := os.Stat(configPath); err != nil {
		log.Fatalf("failed to find config file: %v\n", err)
	}

	var cfg AppConfig
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}

	return &cfg
}
