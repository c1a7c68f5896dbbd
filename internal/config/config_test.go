package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-at-least-32ch"

// ---------------------------------------------------------------------------
// Helper function tests
// ---------------------------------------------------------------------------

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string // nil = don't set; pointer to distinguish "" from unset
		fallback string
		want     string
	}{
		{name: "returns fallback when unset", key: "PRIME_TEST_GETENV_UNSET", setVal: nil, fallback: "default", want: "default"},
		{name: "returns env value when set", key: "PRIME_TEST_GETENV_SET", setVal: strPtr("custom"), fallback: "default", want: "custom"},
		{name: "returns fallback when empty string", key: "PRIME_TEST_GETENV_EMPTY", setVal: strPtr(""), fallback: "default", want: "default"},
		{name: "preserves whitespace", key: "PRIME_TEST_GETENV_WS", setVal: strPtr("  spaced  "), fallback: "x", want: "  spaced  "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			assert.Equal(t, tc.want, getEnv(tc.key, tc.fallback))
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback int
		want     int
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "PRIME_TEST_INT_UNSET", setVal: nil, fallback: 42, want: 42},
		{name: "parses valid int", key: "PRIME_TEST_INT_VALID", setVal: strPtr("8080"), fallback: 0, want: 8080},
		{name: "parses negative int", key: "PRIME_TEST_INT_NEG", setVal: strPtr("-1"), fallback: 0, want: -1},
		{name: "returns fallback for empty string", key: "PRIME_TEST_INT_EMPTY", setVal: strPtr(""), fallback: 25, want: 25},
		{name: "errors on non-numeric", key: "PRIME_TEST_INT_NAN", setVal: strPtr("abc"), fallback: 0, wantErr: true},
		{name: "errors on float", key: "PRIME_TEST_INT_FLOAT", setVal: strPtr("3.14"), fallback: 0, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvInt(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvFloat(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback float64
		want     float64
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "PRIME_TEST_FLOAT_UNSET", setVal: nil, fallback: 2.5, want: 2.5},
		{name: "parses fraction", key: "PRIME_TEST_FLOAT_FRAC", setVal: strPtr("0.5"), fallback: 0, want: 0.5},
		{name: "parses integer", key: "PRIME_TEST_FLOAT_INT", setVal: strPtr("10"), fallback: 0, want: 10},
		{name: "errors on text", key: "PRIME_TEST_FLOAT_BAD", setVal: strPtr("fast"), fallback: 0, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvFloat(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback time.Duration
		want     time.Duration
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "PRIME_TEST_DUR_UNSET", setVal: nil, fallback: time.Minute, want: time.Minute},
		{name: "parses seconds", key: "PRIME_TEST_DUR_SEC", setVal: strPtr("30s"), fallback: 0, want: 30 * time.Second},
		{name: "parses compound", key: "PRIME_TEST_DUR_MIX", setVal: strPtr("1h30m"), fallback: 0, want: 90 * time.Minute},
		{name: "errors on bare number", key: "PRIME_TEST_DUR_BARE", setVal: strPtr("30"), fallback: 0, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvDuration(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("PRIME_TEST_LIST", " https://a.example , ,https://b.example")

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, getEnvList("PRIME_TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, getEnvList("PRIME_TEST_LIST_UNSET", []string{"x"}))
}

// ---------------------------------------------------------------------------
// Load() error cases
// ---------------------------------------------------------------------------

func TestLoad_MissingJWTSecret(t *testing.T) {
	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "PRIME_JWT_SECRET")
}

func TestLoad_InvalidEnvVars(t *testing.T) {
	tests := []struct {
		name string
		envs map[string]string
		want string
	}{
		{name: "short secret", envs: map[string]string{"PRIME_JWT_SECRET": "short"}, want: "PRIME_JWT_SECRET"},
		{name: "unknown store", envs: map[string]string{"PRIME_STORE": "sqlite"}, want: "PRIME_STORE"},
		{name: "DB_PORT not a number", envs: map[string]string{"PRIME_DB_PORT": "abc"}, want: "PRIME_DB_PORT"},
		{name: "DB_PORT out of range", envs: map[string]string{"PRIME_STORE": "postgres", "PRIME_DB_PORT": "65536"}, want: "PRIME_DB_PORT"},
		{name: "DB_MAX_CONNS zero", envs: map[string]string{"PRIME_STORE": "postgres", "PRIME_DB_MAX_CONNS": "0"}, want: "PRIME_DB_MAX_CONNS"},
		{name: "REDIS_DB not a number", envs: map[string]string{"PRIME_REDIS_DB": "abc"}, want: "PRIME_REDIS_DB"},
		{name: "JWT_TTL zero", envs: map[string]string{"PRIME_JWT_TTL": "0s"}, want: "PRIME_JWT_TTL"},
		{name: "SERVER_READ_TIMEOUT invalid", envs: map[string]string{"PRIME_SERVER_READ_TIMEOUT": "soon"}, want: "PRIME_SERVER_READ_TIMEOUT"},
		{name: "SERVER_WRITE_TIMEOUT zero", envs: map[string]string{"PRIME_SERVER_WRITE_TIMEOUT": "0s"}, want: "PRIME_SERVER_WRITE_TIMEOUT"},
		{name: "severity too high", envs: map[string]string{"PRIME_HARD_REJECT_SEVERITY": "6"}, want: "PRIME_HARD_REJECT_SEVERITY"},
		{name: "severity zero", envs: map[string]string{"PRIME_HARD_REJECT_SEVERITY": "0"}, want: "PRIME_HARD_REJECT_SEVERITY"},
		{name: "unknown classifier", envs: map[string]string{"PRIME_CLASSIFIER": "oracle"}, want: "PRIME_CLASSIFIER"},
		{name: "http classifier without url", envs: map[string]string{"PRIME_CLASSIFIER": "http", "PRIME_CLASSIFIER_MODEL": "m"}, want: "PRIME_CLASSIFIER_URL"},
		{name: "both without model", envs: map[string]string{"PRIME_CLASSIFIER": "both", "PRIME_CLASSIFIER_URL": "http://llm"}, want: "PRIME_CLASSIFIER_MODEL"},
		{name: "classifier timeout invalid", envs: map[string]string{"PRIME_CLASSIFIER_TIMEOUT": "-1s"}, want: "PRIME_CLASSIFIER_TIMEOUT"},
		{name: "slack token without channel", envs: map[string]string{"PRIME_SLACK_BOT_TOKEN": "xoxb-1"}, want: "PRIME_SLACK_REVIEW_CHANNEL"},
		{name: "log format", envs: map[string]string{"PRIME_LOG_FORMAT": "xml"}, want: "PRIME_LOG_FORMAT"},
		{name: "log level", envs: map[string]string{"PRIME_LOG_LEVEL": "loud"}, want: "PRIME_LOG_LEVEL"},
		{name: "rate limit rps", envs: map[string]string{"PRIME_RATE_LIMIT_RPS": "0"}, want: "PRIME_RATE_LIMIT_RPS"},
		{name: "rate limit burst", envs: map[string]string{"PRIME_RATE_LIMIT_BURST": "0"}, want: "PRIME_RATE_LIMIT_BURST"},
		{name: "ip rate limit rps", envs: map[string]string{"PRIME_RATE_LIMIT_IP_RPS": "-1"}, want: "PRIME_RATE_LIMIT_IP_RPS"},
		{name: "ip rate limit burst", envs: map[string]string{"PRIME_RATE_LIMIT_IP_BURST": "0"}, want: "PRIME_RATE_LIMIT_IP_BURST"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Always set a valid secret so failures come from the vars under test.
			t.Setenv("PRIME_JWT_SECRET", testSecret)
			for k, v := range tc.envs {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

// ---------------------------------------------------------------------------
// Load() happy paths
// ---------------------------------------------------------------------------

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PRIME_JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "prime-audit.jsonl", cfg.AuditPath)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "prime", cfg.Database.User)
	assert.Equal(t, "prime_dev", cfg.Database.DBName)
	assert.Equal(t, 25, cfg.Database.MaxConns)

	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, time.Hour, cfg.JWT.TTL)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.CORSOrigins)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Empty(t, cfg.Policy.RulesPath)
	assert.Equal(t, 4, cfg.Policy.HardRejectSeverity)

	assert.Equal(t, ClassifierRules, cfg.Classifier.Mode)
	assert.Equal(t, 10*time.Second, cfg.Classifier.Timeout)

	assert.InDelta(t, 10.0, cfg.RateLimit.RPS, 1e-9)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.InDelta(t, 50.0, cfg.RateLimit.IPRPS, 1e-9)
	assert.Equal(t, 100, cfg.RateLimit.IPBurst)

	assert.Empty(t, cfg.Slack.BotToken)
}

func TestLoad_AllCustomValues(t *testing.T) {
	envs := map[string]string{
		"PRIME_JWT_SECRET":           testSecret,
		"PRIME_JWT_TTL":              "15m",
		"PRIME_STORE":                "postgres",
		"PRIME_DB_HOST":              "db.prod.internal",
		"PRIME_DB_PORT":              "5433",
		"PRIME_DB_USER":              "prod_user",
		"PRIME_DB_PASSWORD":          "s3cret!",
		"PRIME_DB_NAME":              "prime_prod",
		"PRIME_DB_SSLMODE":           "require",
		"PRIME_DB_MAX_CONNS":         "50",
		"PRIME_REDIS_ADDR":           "redis.prod:6380",
		"PRIME_REDIS_DB":             "3",
		"PRIME_SERVER_ADDR":          ":9090",
		"PRIME_CORS_ORIGINS":         "https://review.example.com",
		"PRIME_LOG_LEVEL":            "debug",
		"PRIME_LOG_FORMAT":           "text",
		"PRIME_RULES_PATH":           "/etc/prime/rules.yaml",
		"PRIME_HARD_REJECT_SEVERITY": "5",
		"PRIME_CLASSIFIER":           "both",
		"PRIME_CLASSIFIER_URL":       "https://llm.internal/v1/chat/completions",
		"PRIME_CLASSIFIER_API_KEY":   "sk-test",
		"PRIME_CLASSIFIER_MODEL":     "guard-large",
		"PRIME_CLASSIFIER_TIMEOUT":   "3s",
		"PRIME_SLACK_BOT_TOKEN":      "xoxb-test",
		"PRIME_SLACK_REVIEW_CHANNEL": "C0REVIEW",
		"PRIME_RATE_LIMIT_RPS":       "2.5",
		"PRIME_RATE_LIMIT_BURST":     "5",
		"PRIME_RATE_LIMIT_IP_RPS":    "20",
		"PRIME_RATE_LIMIT_IP_BURST":  "40",
	}
	for k, v := range envs {
		t.Setenv(k, v)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, 15*time.Minute, cfg.JWT.TTL)
	assert.Equal(t, "host=db.prod.internal port=5433 user=prod_user password=s3cret! dbname=prime_prod sslmode=require", cfg.Database.DSN())
	assert.Equal(t, 50, cfg.Database.MaxConns)
	assert.Equal(t, "redis.prod:6380", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"https://review.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, LogConfig{Level: "debug", Format: "text"}, cfg.Log)
	assert.Equal(t, PolicyConfig{RulesPath: "/etc/prime/rules.yaml", HardRejectSeverity: 5}, cfg.Policy)
	assert.Equal(t, ClassifierConfig{
		Mode:    ClassifierBoth,
		URL:     "https://llm.internal/v1/chat/completions",
		APIKey:  "sk-test",
		Model:   "guard-large",
		Timeout: 3 * time.Second,
	}, cfg.Classifier)
	assert.Equal(t, SlackConfig{BotToken: "xoxb-test", ReviewChannel: "C0REVIEW"}, cfg.Slack)
	assert.Equal(t, RateLimitConfig{RPS: 2.5, Burst: 5, IPRPS: 20, IPBurst: 40}, cfg.RateLimit)
}

// ---------------------------------------------------------------------------
// DSN() output format
// ---------------------------------------------------------------------------

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "default dev values",
			cfg: DatabaseConfig{
				Host: "localhost", Port: 5432, User: "prime",
				Password: "", DBName: "prime_dev", SSLMode: "disable",
			},
			want: "host=localhost port=5432 user=prime password= dbname=prime_dev sslmode=disable",
		},
		{
			name: "special characters in password",
			cfg: DatabaseConfig{
				Host: "h", Port: 1, User: "u",
				Password: "p=a&b c", DBName: "d", SSLMode: "s",
			},
			want: "host=h port=1 user=u password=p=a&b c dbname=d sslmode=s",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.cfg.DSN())
		})
	}
}

// ---------------------------------------------------------------------------
// validate() direct tests
// ---------------------------------------------------------------------------

func TestValidate(t *testing.T) {
	t.Parallel()

	validBase := func() *Config {
		return &Config{
			Database:   DatabaseConfig{Port: 5432, MaxConns: 25, SSLMode: "require"},
			JWT:        JWTConfig{Secret: testSecret, TTL: time.Hour},
			Server:     ServerConfig{ReadTimeout: 10 * time.Second, WriteTimeout: 30 * time.Second},
			Log:        LogConfig{Level: "info", Format: "json"},
			Policy:     PolicyConfig{HardRejectSeverity: 4},
			Classifier: ClassifierConfig{Mode: ClassifierRules, Timeout: 10 * time.Second},
			RateLimit:  RateLimitConfig{RPS: 10, Burst: 20, IPRPS: 50, IPBurst: 100},
			Store:      StoreMemory,
			AuditPath:  "audit.jsonl",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid base", mutate: func(*Config) {}},
		{name: "secret exactly 32 chars", mutate: func(c *Config) { c.JWT.Secret = "abcdefghijklmnopqrstuvwxyz012345" }},
		{name: "secret 31 chars", mutate: func(c *Config) { c.JWT.Secret = "abcdefghijklmnopqrstuvwxyz01234" }, wantErr: "at least 32"},
		{name: "memory store needs audit path", mutate: func(c *Config) { c.AuditPath = "" }, wantErr: "PRIME_AUDIT_PATH"},
		{name: "postgres ignores audit path", mutate: func(c *Config) { c.Store = StorePostgres; c.AuditPath = "" }},
		{name: "db port ignored for memory store", mutate: func(c *Config) { c.Database.Port = 0 }},
		{name: "db port checked for postgres", mutate: func(c *Config) { c.Store = StorePostgres; c.Database.Port = 0 }, wantErr: "PRIME_DB_PORT"},
		{name: "http classifier complete", mutate: func(c *Config) {
			c.Classifier.Mode = ClassifierHTTP
			c.Classifier.URL = "http://llm"
			c.Classifier.Model = "m"
		}},
		{name: "severity 1 allowed", mutate: func(c *Config) { c.Policy.HardRejectSeverity = 1 }},
		{name: "slack fully configured", mutate: func(c *Config) {
			c.Slack = SlackConfig{BotToken: "xoxb", ReviewChannel: "C1"}
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := validBase()
			tc.mutate(c)
			err := c.validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

// ---------------------------------------------------------------------------
// LoadLog()
// ---------------------------------------------------------------------------

func TestLoadLog(t *testing.T) {
	tests := []struct {
		name      string
		envs      map[string]string
		wantLevel zerolog.Level
		wantErr   string
	}{
		{name: "defaults", wantLevel: zerolog.InfoLevel},
		{name: "debug text", envs: map[string]string{"PRIME_LOG_LEVEL": "debug", "PRIME_LOG_FORMAT": "text"}, wantLevel: zerolog.DebugLevel},
		{name: "bad level", envs: map[string]string{"PRIME_LOG_LEVEL": "loud"}, wantErr: "PRIME_LOG_LEVEL"},
		{name: "bad format", envs: map[string]string{"PRIME_LOG_FORMAT": "xml"}, wantErr: "PRIME_LOG_FORMAT"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("PRIME_LOG_LEVEL", "")
			t.Setenv("PRIME_LOG_FORMAT", "")
			for k, v := range tc.envs {
				t.Setenv(k, v)
			}

			c, err := LoadLog()
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantLevel, c.ZerologLevel())
		})
	}
}

func strPtr(s string) *string {
	return &s
}
