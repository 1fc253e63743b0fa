package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort int
	LogLevel string

	DBConfig struct {
		Host     string
		Port     int
		User     string
		Password string
		Name     string
		SSLMode  string
	}
	DBQueryTimeout time.Duration
	MigrationsPath string

	KafkaEnabled            bool
	KafkaBrokerURL          string
	KafkaOrderEventsTopic   string
	KafkaPaymentStatusTopic string
	KafkaConsumerGroup      string

	OutboxPollInterval time.Duration
	OutboxPollTimeout  time.Duration

	PaymentGateway struct {
		URL           string
		SecretKey     string
		Timeout       time.Duration
		PixExpiration time.Duration
		BoletoDueDays int
	}

	Mail struct {
		APIURL  string
		APIKey  string
		From    string
		Timeout time.Duration
	}

	ShippingRatesFile string
	ShippingRates     *ShippingRates

	CORSAllowedOrigins []string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.HTTPPort = getEnvAsInt("HTTP_PORT", 8080)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.DBConfig.Host = getEnvOrDefault("STOREFRONT_DB_HOST", "localhost")
	cfg.DBConfig.Port = getEnvAsInt("STOREFRONT_DB_PORT", 5432)
	cfg.DBConfig.User = getEnvOrDefault("STOREFRONT_DB_USER", "postgres")
	cfg.DBConfig.Password = getEnvOrDefault("STOREFRONT_DB_PASSWORD", "postgres")
	cfg.DBConfig.Name = getEnvOrDefault("STOREFRONT_DB_NAME", "storefront_db")
	cfg.DBConfig.SSLMode = getEnvOrDefault("STOREFRONT_DB_SSLMODE", "disable")
	cfg.DBQueryTimeout = getEnvAsDuration("DB_QUERY_TIMEOUT", 5*time.Second)
	cfg.MigrationsPath = getEnvOrDefault("MIGRATIONS_PATH", "file:///app/migrations")

	cfg.KafkaEnabled = getEnvAsBool("KAFKA_ENABLED", true)
	cfg.KafkaBrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaOrderEventsTopic = getEnvOrDefault("KAFKA_ORDER_EVENTS_TOPIC", "order_events")
	cfg.KafkaPaymentStatusTopic = getEnvOrDefault("KAFKA_PAYMENT_STATUS_TOPIC", "payment_status_updates")
	cfg.KafkaConsumerGroup = getEnvOrDefault("KAFKA_CONSUMER_GROUP", "storefront-service-group")

	cfg.OutboxPollInterval = getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second)
	cfg.OutboxPollTimeout = getEnvAsDuration("OUTBOX_POLL_TIMEOUT", 5*time.Second)

	cfg.PaymentGateway.URL = getEnvOrDefault("PAYMENT_GATEWAY_URL", "")
	cfg.PaymentGateway.SecretKey = getEnvOrDefault("PAYMENT_GATEWAY_SECRET_KEY", "")
	cfg.PaymentGateway.Timeout = getEnvAsDuration("PAYMENT_GATEWAY_TIMEOUT", 15*time.Second)
	cfg.PaymentGateway.PixExpiration = getEnvAsDuration("PIX_EXPIRATION", 30*time.Minute)
	cfg.PaymentGateway.BoletoDueDays = getEnvAsInt("BOLETO_DUE_DAYS", 3)

	cfg.Mail.APIURL = getEnvOrDefault("MAIL_API_URL", "")
	cfg.Mail.APIKey = getEnvOrDefault("MAIL_API_KEY", "")
	cfg.Mail.From = getEnvOrDefault("MAIL_FROM", "Loja <pedidos@example.com>")
	cfg.Mail.Timeout = getEnvAsDuration("MAIL_TIMEOUT", 10*time.Second)

	cfg.ShippingRatesFile = getEnvOrDefault("SHIPPING_RATES_FILE", "")
	if cfg.ShippingRatesFile != "" {
		rates, err := LoadShippingRates(cfg.ShippingRatesFile)
		if err != nil {
			return nil, fmt.Errorf("invalid SHIPPING_RATES_FILE: %w", err)
		}
		cfg.ShippingRates = rates
	} else {
		cfg.ShippingRates = DefaultShippingRates()
	}

	origins := getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	return cfg, nil
}

func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.User, c.DBConfig.Password, c.DBConfig.Name, c.DBConfig.SSLMode)
}

func (c *Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBConfig.User, c.DBConfig.Password, c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.Name, c.DBConfig.SSLMode)
}

func (c *Config) GetKafkaBrokers() []string {
	return strings.Split(c.KafkaBrokerURL, ",")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnvOrDefault(key, strconv.FormatBool(defaultValue))
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
