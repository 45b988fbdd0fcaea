package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Stripe      StripeConfig
	Sanity      SanityConfig
	Checkout    CheckoutConfig
	Inventory   InventoryConfig
	DeadLetter  DeadLetterConfig
	Cart        CartConfig
	LogLevel    string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the lib/pq connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type KafkaConfig struct {
	Brokers    []string
	OrderTopic string
}

// Enabled reports whether any broker was configured
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type SanityConfig struct {
	ProjectID  string
	Dataset    string
	APIVersion string
	Token      string
}

type CheckoutConfig struct {
	VercelURL          string
	BaseURL            string
	ExpressShippingFee decimal.Decimal
}

type InventoryConfig struct {
	MaxItems int
}

type DeadLetterConfig struct {
	MaxAttempts  int
	PollInterval time.Duration
}

type CartConfig struct {
	Policy string
	// Dir holds file-backed carts when Redis is not configured
	Dir string
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if .env doesn't exist, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	expressFee, err := decimal.NewFromString(getEnvOrViper("EXPRESS_SHIPPING_FEE", "15"))
	if err != nil {
		return nil, fmt.Errorf("EXPRESS_SHIPPING_FEE must be a number: %w", err)
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8080"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		Database: DatabaseConfig{
			Host:     getEnvOrViper("DB_HOST", "localhost"),
			Port:     getEnvOrViper("DB_PORT", "5432"),
			User:     getEnvOrViper("DB_USER", "postgres"),
			Password: getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrViper("DB_NAME", "storefront"),
			SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrViper("REDIS_ADDR", ""),
			Password: getEnvOrViper("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(getEnvOrViper("KAFKA_BROKERS", "")),
			OrderTopic: getEnvOrViper("KAFKA_ORDER_TOPIC", "order.created"),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnvOrViper("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnvOrViper("STRIPE_WEBHOOK_SECRET", ""),
		},
		Sanity: SanityConfig{
			ProjectID:  getEnvOrViper("SANITY_PROJECT_ID", ""),
			Dataset:    getEnvOrViper("SANITY_DATASET", "production"),
			APIVersion: getEnvOrViper("SANITY_API_VERSION", "2023-08-01"),
			Token:      getEnvOrViper("SANITY_TOKEN", ""),
		},
		Checkout: CheckoutConfig{
			VercelURL:          getEnvOrViper("VERCEL_URL", ""),
			BaseURL:            getEnvOrViper("BASE_URL", ""),
			ExpressShippingFee: expressFee,
		},
		Inventory: InventoryConfig{
			MaxItems: getIntOrDefault("INVENTORY_MAX_ITEMS", 250),
		},
		DeadLetter: DeadLetterConfig{
			MaxAttempts:  getIntOrDefault("DEAD_LETTER_MAX_ATTEMPTS", 8),
			PollInterval: getDurationOrDefault("DEAD_LETTER_POLL_INTERVAL", 30*time.Second),
		},
		Cart: CartConfig{
			Policy: getEnvOrViper("CART_POLICY", "increment"),
			Dir:    getEnvOrViper("CART_DIR", ""),
		},
		LogLevel: getEnvOrViper("LOG_LEVEL", "info"),
	}

	// Validate required fields
	if cfg.Stripe.SecretKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if cfg.Stripe.WebhookSecret == "" {
		return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}
	if cfg.Sanity.ProjectID == "" {
		return nil, fmt.Errorf("SANITY_PROJECT_ID is required")
	}
	if cfg.Sanity.Token == "" {
		return nil, fmt.Errorf("SANITY_TOKEN is required")
	}

	return cfg, nil
}

// ResolveBaseURL picks the public URL used in checkout redirects.
// A Vercel deployment URL wins; otherwise BASE_URL must be an absolute http(s) URL.
func (c CheckoutConfig) ResolveBaseURL() (string, error) {
	if c.VercelURL != "" {
		return "https://" + strings.TrimSuffix(c.VercelURL, "/"), nil
	}
	if c.BaseURL == "" {
		return "", fmt.Errorf("BASE_URL environment variable is not defined")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return "", fmt.Errorf("BASE_URL must start with http:// or https://")
	}
	return strings.TrimSuffix(c.BaseURL, "/"), nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnvOrViper(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnvOrViper(key, ""))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
