// Package config loads process configuration from an optional YAML file
// and the environment. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Member is one staff login.
type Member struct {
	Username     string   `yaml:"username"`
	PasswordHash string   `yaml:"password_hash"`
	Roles        []string `yaml:"roles"`
}

// Config holds every runtime knob.
type Config struct {
	HTTPAddr          string              `yaml:"http_addr"`
	TLSCert           string              `yaml:"tls_cert"`
	TLSKey            string              `yaml:"tls_key"`
	ShutdownTimeout   time.Duration       `yaml:"shutdown_timeout"`
	DatabaseURL       string              `yaml:"database_url"`
	DBDriver          string              `yaml:"db_driver"`
	RedisAddr         string              `yaml:"redis_addr"`
	AMQPURL           string              `yaml:"amqp_url"`
	AMQPExchange      string              `yaml:"amqp_exchange"`
	OTELHost          string              `yaml:"otel_host"`
	TraceProbability  float64             `yaml:"trace_probability"`
	SettingsBackend   string              `yaml:"settings_backend"`
	SettingsFile      string              `yaml:"settings_file"`
	SettingsKey       string              `yaml:"settings_key"`
	LogLevel          string              `yaml:"log_level"`
	ReleaseOnTerminal bool                `yaml:"release_on_terminal"`
	SessionTTL        time.Duration       `yaml:"session_ttl"`
	Staff             []Member            `yaml:"staff"`
	Permissions       map[string][]string `yaml:"permissions"`
}

// DefaultPermissions maps each operation to the roles that may run it.
func DefaultPermissions() map[string][]string {
	return map[string][]string{
		"create_order":    {"admin", "waiter"},
		"list_orders":     {"*"},
		"get_order":       {"*"},
		"add_item":        {"admin", "waiter"},
		"remove_item":     {"admin", "waiter"},
		"change_state":    {"admin", "waiter", "chef"},
		"process_payment": {"admin", "cashier"},
		"get_payment":     {"admin", "cashier"},
		"get_settings":    {"*"},
		"update_settings": {"admin"},
	}
}

func defaults() Config {
	return Config{
		HTTPAddr:         ":8443",
		ShutdownTimeout:  15 * time.Second,
		DBDriver:         "postgres",
		RedisAddr:        "localhost:6379",
		AMQPExchange:     "order_events",
		TraceProbability: 1.0,
		SettingsBackend:  "file",
		SettingsFile:     "restaurant_config.json",
		SettingsKey:      "restaurant_config",
		LogLevel:         "info",
		SessionTTL:       time.Hour,
	}
}

// Load builds a Config from defaults, then path (if non-empty), then the
// environment.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	cfg.HTTPAddr = getenv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.TLSCert = getenv("TLS_CERT", cfg.TLSCert)
	cfg.TLSKey = getenv("TLS_KEY", cfg.TLSKey)
	cfg.DatabaseURL = getenv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DBDriver = getenv("DB_DRIVER", cfg.DBDriver)
	cfg.RedisAddr = getenv("REDIS_ADDR", cfg.RedisAddr)
	cfg.AMQPURL = getenv("AMQP_URL", cfg.AMQPURL)
	cfg.OTELHost = getenv("OTEL_HOST", cfg.OTELHost)
	cfg.SettingsBackend = getenv("SETTINGS_BACKEND", cfg.SettingsBackend)
	cfg.SettingsFile = getenv("SETTINGS_FILE", cfg.SettingsFile)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.ReleaseOnTerminal = boolenv("RELEASE_ON_TERMINAL", cfg.ReleaseOnTerminal)
	cfg.SessionTTL = durenv("SESSION_TTL", cfg.SessionTTL)

	if pw := os.Getenv("ADMIN_PASSWORD"); pw != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
		if err != nil {
			return Config{}, fmt.Errorf("hash admin password: %w", err)
		}
		cfg.Staff = append(cfg.Staff, Member{Username: "admin", PasswordHash: string(hash), Roles: []string{"admin"}})
	}
	if len(cfg.Permissions) == 0 {
		cfg.Permissions = DefaultPermissions()
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.DBDriver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("config: db_driver %q: want postgres or pgx", c.DBDriver)
	}
	switch c.SettingsBackend {
	case "file", "redis":
	default:
		return fmt.Errorf("config: settings_backend %q: want file or redis", c.SettingsBackend)
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("config: redis_addr is required for sessions")
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("config: tls_cert and tls_key must be set together")
	}
	return nil
}

// Authenticate checks a staff login and returns the member on success.
func (c Config) Authenticate(username, password string) (Member, bool) {
	for _, m := range c.Staff {
		if m.Username != username {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(password)) != nil {
			return Member{}, false
		}
		return m, true
	}
	return Member{}, false
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func boolenv(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

func durenv(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
