package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port              string `envconfig:"PORT" default:"8080"`
	AWSRegion         string `envconfig:"AWS_REGION" default:"eu-central-1"`
	OrderTableName    string `envconfig:"ORDER_TABLE_NAME" default:"orders"`
	DynamoDBEndpoint  string `envconfig:"DYNAMODB_ENDPOINT" default:""` // DynamoDB Local endpoint
	KafkaBrokers      string `envconfig:"KAFKA_BROKERS" default:""`
	OrderEventsTopic  string `envconfig:"ORDER_EVENTS_TOPIC" default:"order-events"`
	CompensationTopic string `envconfig:"COMPENSATION_TOPIC" default:"compensation-events"`
	LogLevel          string `envconfig:"LOG_LEVEL" default:"info"`

	CarServiceURL          string        `envconfig:"CAR_SERVICE_URL" required:"true"`
	CarServiceRetries      int           `envconfig:"CAR_SERVICE_RETRIES" default:"3"`
	CarServiceRetryWaitMin time.Duration `envconfig:"CAR_SERVICE_RETRY_WAIT_MIN" default:"100ms"`
	CarServiceRetryWaitMax time.Duration `envconfig:"CAR_SERVICE_RETRY_WAIT_MAX" default:"2s"`
	CarServiceTimeout      time.Duration `envconfig:"CAR_SERVICE_TIMEOUT" default:"5s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.CarServiceRetries < 0 {
		return nil, fmt.Errorf("CAR_SERVICE_RETRIES must not be negative, got %d", cfg.CarServiceRetries)
	}
	cfg.CarServiceURL = strings.TrimRight(strings.TrimSpace(cfg.CarServiceURL), "/")
	if cfg.CarServiceURL == "" {
		return nil, fmt.Errorf("CAR_SERVICE_URL is required")
	}
	return &cfg, nil
}

// Brokers splits KafkaBrokers into its non-empty addresses.
func (c *Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

type CarConfig struct {
	Port        string `envconfig:"PORT" default:"8080"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	AWSRegion      string        `envconfig:"AWS_REGION" default:"eu-central-1"`
	S3Endpoint     string        `envconfig:"S3_ENDPOINT" default:""` // MinIO or LocalStack endpoint
	ImagesBucket   string        `envconfig:"CAR_IMAGES_BUCKET" required:"true"`
	ImageURLExpiry time.Duration `envconfig:"IMAGE_URL_EXPIRY" default:"1h"`
}

func LoadCar() (*CarConfig, error) {
	var cfg CarConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if strings.TrimSpace(cfg.ImagesBucket) == "" {
		return nil, fmt.Errorf("CAR_IMAGES_BUCKET is required")
	}
	if cfg.ImageURLExpiry <= 0 {
		return nil, fmt.Errorf("IMAGE_URL_EXPIRY must be positive, got %s", cfg.ImageURLExpiry)
	}
	return &cfg, nil
}

type UserConfig struct {
	Port             string `envconfig:"PORT" default:"8080"`
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info"`
	AWSRegion        string `envconfig:"AWS_REGION" default:"eu-central-1"`
	DynamoDBEndpoint string `envconfig:"DYNAMODB_ENDPOINT" default:""`
	UserTableName    string `envconfig:"USER_TABLE_NAME" default:"users"`
	UserEmailIndex   string `envconfig:"USER_EMAIL_INDEX" default:"email-index"`

	JWTSecret       string        `envconfig:"AUTH_JWT_SECRET_KEY" required:"true"`
	AccessTokenTTL  time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"15m"`
	RefreshTokenTTL time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"720h"`
	MailTokenTTL    time.Duration `envconfig:"MAIL_TOKEN_TTL" default:"15m"`

	MailServer   string `envconfig:"MAIL_SERVER" required:"true"`
	MailPort     int    `envconfig:"MAIL_PORT" default:"465"`
	MailUsername string `envconfig:"MAIL_USERNAME"`
	MailPassword string `envconfig:"MAIL_PASSWORD"`
	MailSender   string `envconfig:"MAIL_SENDER" required:"true"`
	// InternalUserURL is the public base URL put into mailed links.
	InternalUserURL string `envconfig:"INTERNAL_USER_URL" required:"true"`
}

func LoadUser() (*UserConfig, error) {
	var cfg UserConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("AUTH_JWT_SECRET_KEY must be at least 32 bytes")
	}
	for name, ttl := range map[string]time.Duration{
		"ACCESS_TOKEN_TTL":  cfg.AccessTokenTTL,
		"REFRESH_TOKEN_TTL": cfg.RefreshTokenTTL,
		"MAIL_TOKEN_TTL":    cfg.MailTokenTTL,
	} {
		if ttl <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %s", name, ttl)
		}
	}
	cfg.InternalUserURL = strings.TrimRight(strings.TrimSpace(cfg.InternalUserURL), "/")
	return &cfg, nil
}
