package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server              ServerConfig
	Database            DatabaseConfig
	Redis               RedisConfig
	Kafka               KafkaConfig
	PaymentService      ServiceConfig
	NotificationService ServiceConfig
	Fees                FeeConfig
	Minimums            MinimumConfig
	Cutoff              CutoffConfig
	Pickup              PickupConfig
	Ledger              LedgerConfig
	Features            FeatureFlags
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

func (d DatabaseConfig) ConnectionString() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	OrdersTopic   string
	PaymentsTopic string
	ConsumerGroup string
}

type ServiceConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// FeeConfig is the platform fee schedule. Percent values are fractions
// (0.065 = 6.5%), flat values are cents charged once per order side.
type FeeConfig struct {
	BuyerPercent    float64
	BuyerFlatCents  int64
	VendorPercent   float64
	VendorFlatCents int64
}

// MinimumConfig holds per-vertical order minimums in cents with a global
// fallback.
type MinimumConfig struct {
	DefaultCents int64
	ByVertical   map[string]int64
}

// CutoffConfig holds per-market-type cutoff and closing-soon defaults in
// hours. Explicit per-market overrides always win.
type CutoffConfig struct {
	TraditionalHours            int
	DirectHours                 int
	TraditionalClosingSoonHours int
	DirectClosingSoonHours      int
}

type PickupConfig struct {
	ConfirmationWindow time.Duration
}

// LedgerConfig controls when a vendor's fee balance demands payment.
type LedgerConfig struct {
	BalanceThresholdCents int64
	MaxUnpaidAge          time.Duration
}

type FeatureFlags struct {
	EnableOrderCaching bool
	EnableOrderEvents  bool
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 8084),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT", 30)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT", 30)) * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnvString("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnvString("DB_USER", "stallside"),
			Password:     getEnvString("DB_PASSWORD", "stallside"),
			Name:         getEnvString("DB_NAME", "stallside_orders"),
			SSLMode:      getEnvString("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      time.Duration(getEnvInt("REDIS_TTL_SECONDS", 300)) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{getEnvString("KAFKA_BROKER", "localhost:9092")},
			OrdersTopic:   getEnvString("KAFKA_ORDERS_TOPIC", "stallside.orders"),
			PaymentsTopic: getEnvString("KAFKA_PAYMENTS_TOPIC", "stallside.payments"),
			ConsumerGroup: getEnvString("KAFKA_CONSUMER_GROUP", "orders-service"),
		},
		PaymentService: ServiceConfig{
			BaseURL: getEnvString("PAYMENT_SERVICE_URL", "http://localhost:8085"),
			APIKey:  getEnvString("PAYMENT_SERVICE_API_KEY", ""),
			Timeout: time.Duration(getEnvInt("PAYMENT_SERVICE_TIMEOUT", 30)) * time.Second,
		},
		NotificationService: ServiceConfig{
			BaseURL: getEnvString("NOTIFICATION_SERVICE_URL", "http://localhost:8086"),
			APIKey:  getEnvString("NOTIFICATION_SERVICE_API_KEY", ""),
			Timeout: time.Duration(getEnvInt("NOTIFICATION_SERVICE_TIMEOUT", 10)) * time.Second,
		},
		Fees: FeeConfig{
			BuyerPercent:    getEnvFloat("FEE_BUYER_PERCENT", 0.065),
			BuyerFlatCents:  int64(getEnvInt("FEE_BUYER_FLAT_CENTS", 15)),
			VendorPercent:   getEnvFloat("FEE_VENDOR_PERCENT", 0.065),
			VendorFlatCents: int64(getEnvInt("FEE_VENDOR_FLAT_CENTS", 15)),
		},
		Minimums: MinimumConfig{
			DefaultCents: int64(getEnvInt("MIN_ORDER_DEFAULT_CENTS", 500)),
			ByVertical: map[string]int64{
				"farmers_market": int64(getEnvInt("MIN_ORDER_FARMERS_MARKET_CENTS", 500)),
				"food_truck":     int64(getEnvInt("MIN_ORDER_FOOD_TRUCK_CENTS", 800)),
				"fireworks":      int64(getEnvInt("MIN_ORDER_FIREWORKS_CENTS", 2000)),
			},
		},
		Cutoff: CutoffConfig{
			TraditionalHours:            getEnvInt("CUTOFF_TRADITIONAL_HOURS", 12),
			DirectHours:                 getEnvInt("CUTOFF_DIRECT_HOURS", 2),
			TraditionalClosingSoonHours: getEnvInt("CLOSING_SOON_TRADITIONAL_HOURS", 6),
			DirectClosingSoonHours:      getEnvInt("CLOSING_SOON_DIRECT_HOURS", 1),
		},
		Pickup: PickupConfig{
			ConfirmationWindow: time.Duration(getEnvInt("PICKUP_CONFIRMATION_WINDOW_SECONDS", 30)) * time.Second,
		},
		Ledger: LedgerConfig{
			BalanceThresholdCents: int64(getEnvInt("LEDGER_BALANCE_THRESHOLD_CENTS", 2500)),
			MaxUnpaidAge:          time.Duration(getEnvInt("LEDGER_MAX_UNPAID_AGE_DAYS", 30)) * 24 * time.Hour,
		},
		Features: FeatureFlags{
			EnableOrderCaching: getEnvBool("ENABLE_ORDER_CACHING", true),
			EnableOrderEvents:  getEnvBool("ENABLE_ORDER_EVENTS", true),
		},
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
