package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the onboarding services
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Facade      FacadeConfig
	Persistence PersistenceConfig
	Wizard      WizardConfig
	Capture     CaptureConfig
	Validation  ValidationConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
	// AllowedOrigins lists the browser origins served by this backend
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds the audit database connection configuration.
// An empty URL and Host disables the audit repository.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Enabled reports whether an audit database is configured
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != "" || c.Host != ""
}

// DSN returns the PostgreSQL connection string.
// URL takes precedence over the individual fields when it parses.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		if dsn, err := urlToDSN(c.URL); err == nil {
			return dsn
		}
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func urlToDSN(raw string) (string, error) {
	u, err := url.Parse(strings.Replace(raw, "postgresql://", "postgres://", 1))
	if err != nil {
		return "", fmt.Errorf("failed to parse database URL: %w", err)
	}
	if u.Scheme != "postgres" {
		return "", fmt.Errorf("invalid database URL scheme: %s", u.Scheme)
	}

	port := u.Port()
	if port == "" {
		port = "5432"
	}
	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}
	password, _ := u.User.Password()

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		u.Hostname(), port, u.User.Username(), password, strings.TrimPrefix(u.Path, "/"), sslMode,
	), nil
}

// RabbitMQConfig holds RabbitMQ connection configuration.
// An empty URL disables event publishing.
type RabbitMQConfig struct {
	URL            string        `mapstructure:"url"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	MaxRetries     int           `mapstructure:"max_retries"`
	PrefetchCount  int           `mapstructure:"prefetch_count"`
}

// RedisConfig holds the Redis connection used by the redis persistence backend
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig holds session token configuration
type JWTConfig struct {
	Secret        string        `mapstructure:"secret"`
	SessionExpiry time.Duration `mapstructure:"session_expiry"`
	Issuer        string        `mapstructure:"issuer"`
}

// FacadeConfig describes the remote banking API the wizard submits to
type FacadeConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	UploadTimeout time.Duration `mapstructure:"upload_timeout"`
	MaxRetries    uint64        `mapstructure:"max_retries"`
}

// Persistence backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// PersistenceConfig selects the store behind the persistence bridge
type PersistenceConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	// PersistPayloads also stores captured binary payloads, not only their descriptors
	PersistPayloads bool   `mapstructure:"persist_payloads"`
	SQLitePath      string `mapstructure:"sqlite_path"`
}

// WizardConfig holds step engine tunables
type WizardConfig struct {
	OTPResendSeconds int `mapstructure:"otp_resend_seconds"`
	// ReviewAllowedEmails optionally restricts who may open a back-office review session
	ReviewAllowedEmails []string `mapstructure:"review_allowed_emails"`
}

// CaptureConfig holds evidence capture limits
type CaptureConfig struct {
	MaxUploadBytes   int64         `mapstructure:"max_upload_bytes"`
	JPEGQuality      int           `mapstructure:"jpeg_quality"`
	VideoMaxDuration time.Duration `mapstructure:"video_max_duration"`
}

// ValidationConfig points at optional rule extensions
type ValidationConfig struct {
	PhoneRulesFile string `mapstructure:"phone_rules_file"`
}

// Load loads configuration from environment and config files.
// Development defaults are always applied.
func Load(serviceName string) (*Config, error) {
	return loadConfig(serviceName)
}

// LoadWithValidation loads configuration and validates it for the current environment.
// Use this in service main() for fail-fast behavior.
func LoadWithValidation(serviceName string) (*Config, error) {
	cfg, err := loadConfig(serviceName)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate enforces production requirements
func (c *Config) Validate() error {
	env := c.Server.Environment
	if env != EnvProduction && env != EnvStaging {
		return nil
	}

	if c.JWT.Secret == "" || c.JWT.Secret == defaultJWTSecret {
		return errors.New("ONBOARDING_JWT_SECRET must be set to a secure value in " + env)
	}
	if c.Facade.BaseURL == "" || strings.Contains(c.Facade.BaseURL, "localhost") {
		return errors.New("ONBOARDING_FACADE_BASE_URL must be set to a non-localhost value in " + env)
	}
	if c.Persistence.Backend == BackendMemory {
		return errors.New("memory persistence backend is not allowed in " + env)
	}

	switch c.Persistence.Backend {
	case BackendMemory, BackendRedis, BackendSQLite:
	default:
		return fmt.Errorf("unknown persistence backend %q", c.Persistence.Backend)
	}

	return nil
}

const defaultJWTSecret = "dev-secret-change-in-production"

func loadConfig(serviceName string) (*Config, error) {
	v := viper.New()
	setDefaults(v, serviceName)

	v.SetEnvPrefix("ONBOARDING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName(serviceName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/onboarding")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Server.Environment = strings.ToLower(cfg.Server.Environment)

	return &cfg, nil
}

func setDefaults(v *viper.Viper, serviceName string) {
	v.SetDefault("server.port", getDefaultPort(serviceName))
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.environment", EnvDevelopment)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:3001"})

	// Audit database is optional; leave host empty to disable it
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "onboarding")
	v.SetDefault("database.password", "devpassword")
	v.SetDefault("database.database", "onboarding")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.reconnect_delay", 5*time.Second)
	v.SetDefault("rabbitmq.max_retries", 5)
	v.SetDefault("rabbitmq.prefetch_count", 10)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret", defaultJWTSecret)
	v.SetDefault("jwt.session_expiry", 2*time.Hour)
	v.SetDefault("jwt.issuer", "agb-onboarding")

	v.SetDefault("facade.base_url", "http://localhost:5000")
	v.SetDefault("facade.timeout", 10*time.Second)
	v.SetDefault("facade.upload_timeout", 30*time.Second)
	v.SetDefault("facade.max_retries", 3)

	v.SetDefault("persistence.backend", BackendMemory)
	v.SetDefault("persistence.ttl", 24*time.Hour)
	v.SetDefault("persistence.persist_payloads", false)
	v.SetDefault("persistence.sqlite_path", "onboarding.db")

	v.SetDefault("wizard.otp_resend_seconds", 180)
	v.SetDefault("wizard.review_allowed_emails", []string{})

	v.SetDefault("capture.max_upload_bytes", 5<<20)
	v.SetDefault("capture.jpeg_quality", 90)
	v.SetDefault("capture.video_max_duration", 10*time.Second)

	v.SetDefault("validation.phone_rules_file", "")
}

func getDefaultPort(serviceName string) int {
	ports := map[string]int{
		"wizard-service": 8090,
		"onboardctl":     8090,
	}
	if port, ok := ports[serviceName]; ok {
		return port
	}
	return 8080
}
