package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config captures runtime configuration for the checkout API service.
type Config struct {
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Idempotency IdempotencyConfig
	Integrity   IntegrityConfig
	Pricing     PricingConfig
	Telemetry   TelemetryConfig
	Service     ServiceConfig
}

type HTTPConfig struct {
	Port          int
	MetricsPath   string
	ShutdownGrace int
}

type DatabaseConfig struct {
	URL            string
	AutoMigrate    bool
	MigrationsPath string
}

// RedisConfig is only consulted when CacheBackend is "redis".
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type IdempotencyConfig struct {
	CacheBackend  string // "memory" or "redis"
	TTL           time.Duration
	SweepInterval time.Duration
	WaitBudget    time.Duration
	PollInterval  time.Duration
}

type IntegrityConfig struct {
	Secret string
}

type PricingConfig struct {
	ShippingFlat decimal.Decimal
	TaxRate      decimal.Decimal
}

type TelemetryConfig struct {
	LogLevel      string
	OTelEndpoint  string
	EnableTracing bool
	EnableMetrics bool
	SampleRate    float64
}

type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
}

const (
	defaultHTTPPort       = 8080
	defaultMetricsPath    = "/metrics"
	defaultShutdownGrace  = 15
	defaultMigrationsPath = "migrations"
	defaultAutoMigrate    = true
	defaultCacheBackend   = "memory"
	defaultTTL            = 24 * time.Hour
	defaultSweepInterval  = time.Hour
	defaultWaitBudget     = 2 * time.Second
	defaultPollInterval   = 50 * time.Millisecond
	defaultShippingFlat   = "60.00"
	defaultTaxRate        = "0.05"
	defaultServiceName    = "checkout-api"
	defaultServiceVersion = "0.1.0"
	defaultEnvironment    = "development"
	defaultLogLevel       = "info"
	defaultOTelSampleRate = 1.0

	// Only used outside production-like environments so local development
	// works without setup.
	devIntegritySecret = "dev-only-integrity-secret-not-for-production"

	minSecretLength = 32
)

// Load reads configuration from environment variables, applying defaults when
// needed. The integrity secret is validated eagerly: a weak or missing secret
// outside development aborts startup.
func Load() (*Config, error) {
	httpCfg, err := loadHTTPConfig()
	if err != nil {
		return nil, fmt.Errorf("loading HTTP config: %w", err)
	}

	dbCfg := loadDatabaseConfig()
	redisCfg, err := loadRedisConfig()
	if err != nil {
		return nil, fmt.Errorf("loading redis config: %w", err)
	}

	idemCfg, err := loadIdempotencyConfig()
	if err != nil {
		return nil, fmt.Errorf("loading idempotency config: %w", err)
	}

	pricingCfg, err := loadPricingConfig()
	if err != nil {
		return nil, fmt.Errorf("loading pricing config: %w", err)
	}

	telCfg, err := loadTelemetryConfig()
	if err != nil {
		return nil, fmt.Errorf("loading telemetry config: %w", err)
	}

	serviceCfg := loadServiceConfig()

	integrityCfg, err := loadIntegrityConfig(serviceCfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("loading integrity config: %w", err)
	}

	return &Config{
		HTTP:        httpCfg,
		Database:    dbCfg,
		Redis:       redisCfg,
		Idempotency: idemCfg,
		Integrity:   integrityCfg,
		Pricing:     pricingCfg,
		Telemetry:   telCfg,
		Service:     serviceCfg,
	}, nil
}

func loadHTTPConfig() (HTTPConfig, error) {
	port := defaultHTTPPort
	if value, ok := os.LookupEnv("API_HTTP_PORT"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return HTTPConfig{}, fmt.Errorf("invalid API_HTTP_PORT: %w", err)
		}
		port = parsed
	}

	shutdownGrace := defaultShutdownGrace
	if value, ok := os.LookupEnv("API_SHUTDOWN_GRACE_SECONDS"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return HTTPConfig{}, fmt.Errorf("invalid API_SHUTDOWN_GRACE_SECONDS: %w", err)
		}
		shutdownGrace = parsed
	}

	metricsPath := getEnvOrDefault("API_METRICS_PATH", defaultMetricsPath)

	return HTTPConfig{
		Port:          port,
		MetricsPath:   metricsPath,
		ShutdownGrace: shutdownGrace,
	}, nil
}

func loadDatabaseConfig() DatabaseConfig {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = buildDatabaseURL()
	}

	autoMigrate := defaultAutoMigrate
	if value, ok := os.LookupEnv("AUTO_MIGRATE"); ok {
		autoMigrate = value == "true"
	}

	migrationsPath := getEnvOrDefault("MIGRATIONS_PATH", defaultMigrationsPath)

	return DatabaseConfig{
		URL:            databaseURL,
		AutoMigrate:    autoMigrate,
		MigrationsPath: migrationsPath,
	}
}

func loadRedisConfig() (RedisConfig, error) {
	db := 0
	if value, ok := os.LookupEnv("REDIS_DB"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return RedisConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		db = parsed
	}

	return RedisConfig{
		Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}, nil
}

func loadIdempotencyConfig() (IdempotencyConfig, error) {
	backend := getEnvOrDefault("IDEMPOTENCY_CACHE_BACKEND", defaultCacheBackend)
	if backend != "memory" && backend != "redis" {
		return IdempotencyConfig{}, fmt.Errorf("invalid IDEMPOTENCY_CACHE_BACKEND %q: must be memory or redis", backend)
	}

	ttl, err := getDurationEnv("IDEMPOTENCY_TTL", defaultTTL)
	if err != nil {
		return IdempotencyConfig{}, err
	}

	sweep, err := getDurationEnv("IDEMPOTENCY_SWEEP_INTERVAL", defaultSweepInterval)
	if err != nil {
		return IdempotencyConfig{}, err
	}

	wait, err := getDurationEnv("IDEMPOTENCY_WAIT_BUDGET", defaultWaitBudget)
	if err != nil {
		return IdempotencyConfig{}, err
	}

	poll, err := getDurationEnv("IDEMPOTENCY_POLL_INTERVAL", defaultPollInterval)
	if err != nil {
		return IdempotencyConfig{}, err
	}

	return IdempotencyConfig{
		CacheBackend:  backend,
		TTL:           ttl,
		SweepInterval: sweep,
		WaitBudget:    wait,
		PollInterval:  poll,
	}, nil
}

func loadIntegrityConfig(environment string) (IntegrityConfig, error) {
	secret := os.Getenv("INTEGRITY_SECRET")

	if secret == "" {
		if environment != "development" {
			return IntegrityConfig{}, fmt.Errorf("INTEGRITY_SECRET is required in %s", environment)
		}
		secret = devIntegritySecret
	}

	if environment != "development" && len(secret) < minSecretLength {
		return IntegrityConfig{}, fmt.Errorf("INTEGRITY_SECRET must be at least %d bytes", minSecretLength)
	}

	return IntegrityConfig{Secret: secret}, nil
}

func loadPricingConfig() (PricingConfig, error) {
	shipping, err := getDecimalEnv("PRICING_SHIPPING_FLAT", defaultShippingFlat)
	if err != nil {
		return PricingConfig{}, err
	}

	taxRate, err := getDecimalEnv("PRICING_TAX_RATE", defaultTaxRate)
	if err != nil {
		return PricingConfig{}, err
	}

	return PricingConfig{
		ShippingFlat: shipping,
		TaxRate:      taxRate,
	}, nil
}

func loadTelemetryConfig() (TelemetryConfig, error) {
	logLevel := getEnvOrDefault("LOG_LEVEL", defaultLogLevel)
	otelEndpoint := getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	enableTracing := getBoolEnv("OTEL_ENABLE_TRACING", true)
	enableMetrics := getBoolEnv("OTEL_ENABLE_METRICS", true)

	sampleRate := defaultOTelSampleRate
	if value, ok := os.LookupEnv("OTEL_SAMPLE_RATE"); ok {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return TelemetryConfig{}, fmt.Errorf("invalid OTEL_SAMPLE_RATE: %w", err)
		}
		sampleRate = parsed
	}

	return TelemetryConfig{
		LogLevel:      logLevel,
		OTelEndpoint:  otelEndpoint,
		EnableTracing: enableTracing,
		EnableMetrics: enableMetrics,
		SampleRate:    sampleRate,
	}, nil
}

func loadServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:        getEnvOrDefault("API_SERVICE_NAME", defaultServiceName),
		Version:     getEnvOrDefault("SERVICE_VERSION", defaultServiceVersion),
		Environment: getEnvOrDefault("ENVIRONMENT", defaultEnvironment),
	}
}

func buildDatabaseURL() string {
	host := getEnvOrDefault("DB_HOST", "localhost")
	port := getEnvOrDefault("DB_PORT", "5432")
	user := getEnvOrDefault("DB_USER", "postgres")
	password := getEnvOrDefault("DB_PASSWORD", "postgres")
	dbName := getEnvOrDefault("DB_NAME", "checkout")
	sslMode := getEnvOrDefault("DB_SSLMODE", "disable")

	maxConns := getEnvOrDefault("DB_MAX_CONNS", "25")
	minConns := getEnvOrDefault("DB_MIN_CONNS", "5")
	maxLifetime := getEnvOrDefault("DB_MAX_CONN_LIFETIME", "5m")

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&pool_max_conns=%s&pool_min_conns=%s&pool_max_conn_lifetime=%s",
		user, password, host, port, dbName, sslMode, maxConns, minConns, maxLifetime,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		return value == "true"
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getDecimalEnv(key, defaultValue string) (decimal.Decimal, error) {
	value := getEnvOrDefault(key, defaultValue)

	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
