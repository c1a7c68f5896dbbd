package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Classifier modes for Layer-2 analysis.
const (
	ClassifierRules = "rules"
	ClassifierHTTP  = "http"
	ClassifierBoth  = "both"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Server     ServerConfig
	Slack      SlackConfig
	Log        LogConfig
	Policy     PolicyConfig
	Classifier ClassifierConfig
	RateLimit  RateLimitConfig
	// Store selects where tickets and audit events live: "memory" or "postgres".
	Store string
	// AuditPath is the JSONL audit file used with the memory store.
	AuditPath string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings. An empty Addr disables
// event publishing and the WebSocket streams.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// JWTConfig holds caller token settings.
type JWTConfig struct {
	Secret string //nolint:gosec // G117: JWT signing secret config
	TTL    time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// SlackConfig holds reviewer notification settings.
type SlackConfig struct {
	BotToken      string
	ReviewChannel string
}

// LogConfig holds zerolog settings.
type LogConfig struct {
	Level  string
	Format string // "json" or "text"
}

// PolicyConfig holds rule and decision settings.
type PolicyConfig struct {
	RulesPath          string
	HardRejectSeverity int
}

// ClassifierConfig holds Layer-2 classifier settings.
type ClassifierConfig struct {
	Mode    string
	URL     string
	APIKey  string //nolint:gosec // G117: classifier credential config
	Model   string
	Timeout time.Duration
}

// RateLimitConfig bounds request rates. RPS and Burst apply per
// authenticated user; IPRPS and IPBurst apply per client address before
// authentication.
type RateLimitConfig struct {
	RPS     float64
	Burst   int
	IPRPS   float64
	IPBurst int
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("PRIME_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("PRIME_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("PRIME_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	jwtTTL, err := getEnvDuration("PRIME_JWT_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("PRIME_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("PRIME_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	hardReject, err := getEnvInt("PRIME_HARD_REJECT_SEVERITY", 4)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	classifierTimeout, err := getEnvDuration("PRIME_CLASSIFIER_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rps, err := getEnvFloat("PRIME_RATE_LIMIT_RPS", 10)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	burst, err := getEnvInt("PRIME_RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	ipRPS, err := getEnvFloat("PRIME_RATE_LIMIT_IP_RPS", 50)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	ipBurst, err := getEnvInt("PRIME_RATE_LIMIT_IP_BURST", 100)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("PRIME_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("PRIME_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("PRIME_DB_USER", "prime"),
			Password: getEnv("PRIME_DB_PASSWORD", ""),
			DBName:   getEnv("PRIME_DB_NAME", "prime_dev"),
			SSLMode:  getEnv("PRIME_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("PRIME_REDIS_ADDR", ""),
			Password: getEnv("PRIME_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret: getEnv("PRIME_JWT_SECRET", ""),
			TTL:    jwtTTL,
		},
		Server: ServerConfig{
			Addr:         getEnv("PRIME_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
		},
		Slack: SlackConfig{
			BotToken:      getEnv("PRIME_SLACK_BOT_TOKEN", ""),
			ReviewChannel: getEnv("PRIME_SLACK_REVIEW_CHANNEL", ""),
		},
		Log: loadLog(),
		Policy: PolicyConfig{
			RulesPath:          getEnv("PRIME_RULES_PATH", ""),
			HardRejectSeverity: hardReject,
		},
		Classifier: ClassifierConfig{
			Mode:    getEnv("PRIME_CLASSIFIER", ClassifierRules),
			URL:     getEnv("PRIME_CLASSIFIER_URL", ""),
			APIKey:  getEnv("PRIME_CLASSIFIER_API_KEY", ""),
			Model:   getEnv("PRIME_CLASSIFIER_MODEL", ""),
			Timeout: classifierTimeout,
		},
		RateLimit: RateLimitConfig{
			RPS:     rps,
			Burst:   burst,
			IPRPS:   ipRPS,
			IPBurst: ipBurst,
		},
		Store:     getEnv("PRIME_STORE", StoreMemory),
		AuditPath: getEnv("PRIME_AUDIT_PATH", "prime-audit.jsonl"),
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("PRIME_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("PRIME_JWT_SECRET must be at least 32 characters")
	}

	switch c.Store {
	case StoreMemory:
		if c.AuditPath == "" {
			return errors.New("PRIME_AUDIT_PATH is required with the memory store")
		}
	case StorePostgres:
		if c.Database.SSLMode == "disable" {
			log.Warn().Msg("PRIME_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("PRIME_DB_PORT must be 1-65535, got %d", c.Database.Port)
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("PRIME_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
		}
	default:
		return fmt.Errorf("PRIME_STORE must be %q or %q, got %q", StoreMemory, StorePostgres, c.Store)
	}

	if !slices.Contains([]string{ClassifierRules, ClassifierHTTP, ClassifierBoth}, c.Classifier.Mode) {
		return fmt.Errorf("PRIME_CLASSIFIER must be rules, http or both, got %q", c.Classifier.Mode)
	}
	if c.Classifier.Mode != ClassifierRules {
		if c.Classifier.URL == "" {
			return errors.New("PRIME_CLASSIFIER_URL is required when PRIME_CLASSIFIER uses http")
		}
		if c.Classifier.Model == "" {
			return errors.New("PRIME_CLASSIFIER_MODEL is required when PRIME_CLASSIFIER uses http")
		}
	}
	if c.Classifier.Timeout <= 0 {
		return fmt.Errorf("PRIME_CLASSIFIER_TIMEOUT must be positive, got %s", c.Classifier.Timeout)
	}

	if c.Policy.HardRejectSeverity < 1 || c.Policy.HardRejectSeverity > 5 {
		return fmt.Errorf("PRIME_HARD_REJECT_SEVERITY must be 1-5, got %d", c.Policy.HardRejectSeverity)
	}

	if c.Slack.BotToken != "" && c.Slack.ReviewChannel == "" {
		return errors.New("PRIME_SLACK_REVIEW_CHANNEL is required when PRIME_SLACK_BOT_TOKEN is set")
	}

	if err := c.Log.validate(); err != nil {
		return err
	}

	// Bounds checks.
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("PRIME_JWT_TTL must be positive, got %s", c.JWT.TTL)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("PRIME_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("PRIME_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.RateLimit.RPS <= 0 {
		return fmt.Errorf("PRIME_RATE_LIMIT_RPS must be positive, got %g", c.RateLimit.RPS)
	}
	if c.RateLimit.Burst < 1 {
		return fmt.Errorf("PRIME_RATE_LIMIT_BURST must be >= 1, got %d", c.RateLimit.Burst)
	}
	if c.RateLimit.IPRPS <= 0 {
		return fmt.Errorf("PRIME_RATE_LIMIT_IP_RPS must be positive, got %g", c.RateLimit.IPRPS)
	}
	if c.RateLimit.IPBurst < 1 {
		return fmt.Errorf("PRIME_RATE_LIMIT_IP_BURST must be >= 1, got %d", c.RateLimit.IPBurst)
	}

	return nil
}

// LoadLog reads and validates only the logging settings. Commands that need
// no other configuration use it to set up logging.
func LoadLog() (LogConfig, error) {
	c := loadLog()
	if err := c.validate(); err != nil {
		return LogConfig{}, fmt.Errorf("config.LoadLog: %w", err)
	}
	return c, nil
}

func loadLog() LogConfig {
	return LogConfig{
		Level:  getEnv("PRIME_LOG_LEVEL", "info"),
		Format: getEnv("PRIME_LOG_FORMAT", "json"),
	}
}

func (c LogConfig) validate() error {
	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("PRIME_LOG_LEVEL: %w", err)
	}
	if c.Format != "json" && c.Format != "text" {
		return fmt.Errorf("PRIME_LOG_FORMAT must be json or text, got %q", c.Format)
	}
	return nil
}

// ZerologLevel returns the parsed level, defaulting to info.
func (c LogConfig) ZerologLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
