package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port     string
	LogLevel string

	MySQL MySQLConfig

	RedisAddr    string
	PubSubDriver string

	RabbitMQURL    string
	NotifyExchange string

	KafkaBrokers      []string
	OrderChangesTopic string
	KafkaGroupID      string

	RestaurantID      string
	CancelReasonDelay time.Duration
	RefundSyncRetries int

	RateLimitRPS   float64
	RateLimitBurst int
}

type MySQLConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Database string
}

// DSN reports matched rather than changed rows so that a conditional update
// rewriting identical values still counts as a match.
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// Load reads the configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     getenv("PORT", "8080"),
		LogLevel: getenv("LOG_LEVEL", "info"),
		MySQL: MySQLConfig{
			User:     os.Getenv("MYSQL_USER"),
			Password: os.Getenv("MYSQL_PASSWORD"),
			Host:     getenv("MYSQL_HOST", "localhost"),
			Port:     getenv("MYSQL_PORT", "3306"),
			Database: os.Getenv("MYSQL_DATABASE"),
		},
		RedisAddr:         getenv("REDIS_HOST", "localhost") + ":" + getenv("REDIS_PORT", "6379"),
		PubSubDriver:      getenv("PUBSUB_DRIVER", "redis"),
		RabbitMQURL:       os.Getenv("RABBITMQ_URL"),
		NotifyExchange:    getenv("NOTIFY_EXCHANGE", "order.notifications"),
		KafkaBrokers:      splitList(getenv("KAFKA_BROKERS", "localhost:9092")),
		OrderChangesTopic: getenv("ORDER_CHANGES_TOPIC", "orders.changes"),
		KafkaGroupID:      getenv("KAFKA_GROUP_ID", "tablesync-notifier"),
		RestaurantID:      os.Getenv("RESTAURANT_ID"),
	}

	var err error
	if cfg.CancelReasonDelay, err = time.ParseDuration(getenv("CANCEL_REASON_DELAY", "1s")); err != nil {
		return nil, fmt.Errorf("CANCEL_REASON_DELAY: %w", err)
	}
	if cfg.RefundSyncRetries, err = strconv.Atoi(getenv("REFUND_SYNC_RETRIES", "5")); err != nil {
		return nil, fmt.Errorf("REFUND_SYNC_RETRIES: %w", err)
	}
	if cfg.RateLimitRPS, err = strconv.ParseFloat(getenv("RATE_LIMIT_RPS", "20"), 64); err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_RPS: %w", err)
	}
	if cfg.RateLimitBurst, err = strconv.Atoi(getenv("RATE_LIMIT_BURST", "40")); err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_BURST: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.MySQL.User == "" {
		errs = append(errs, errors.New("MYSQL_USER is required"))
	}
	if c.MySQL.Database == "" {
		errs = append(errs, errors.New("MYSQL_DATABASE is required"))
	}
	switch c.PubSubDriver {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("PUBSUB_DRIVER must be redis or memory, got %q", c.PubSubDriver))
	}
	if c.RefundSyncRetries < 1 {
		errs = append(errs, errors.New("REFUND_SYNC_RETRIES must be at least 1"))
	}
	return errors.Join(errs...)
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
