// Package config loads and validates indexer configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Site    SiteConfig    `mapstructure:"site"`
	Solverr SolverrConfig `mapstructure:"solverr"`
	DB      DBConfig      `mapstructure:"db"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SiteConfig points at the catalogue site being indexed.
type SiteConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// SolverrConfig controls the anti-bot bypass service.
type SolverrConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	URL          string `mapstructure:"url"`
	MaxTimeoutMs int    `mapstructure:"max_timeout_ms"`
	MaxParallel  int    `mapstructure:"max_parallel"`
}

// DBConfig controls access to the relational database. All connection
// parameters are required; Validate fails fast when one is absent.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ServerConfig controls the browse API server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPSAMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	v.SetDefault("site.timeout_seconds", 30)
	v.SetDefault("solverr.enabled", true)
	v.SetDefault("solverr.max_timeout_ms", 60000)
	v.SetDefault("solverr.max_parallel", 2)
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if c.Solverr.Enabled && c.Solverr.URL == "" {
		return fmt.Errorf("solverr.url is required when solverr is enabled")
	}
	if c.Solverr.Enabled && c.Solverr.MaxParallel <= 0 {
		return fmt.Errorf("solverr.max_parallel must be > 0 when solverr is enabled")
	}
	if c.DB.Host == "" {
		return fmt.Errorf("db.host is required")
	}
	if c.DB.Port <= 0 {
		return fmt.Errorf("db.port must be > 0")
	}
	if c.DB.Name == "" {
		return fmt.Errorf("db.name is required")
	}
	if c.DB.User == "" {
		return fmt.Errorf("db.user is required")
	}
	if c.DB.Password == "" {
		return fmt.Errorf("db.password is required")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}

// DSN assembles the Postgres connection string from the DB parameters.
func (c DBConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Name,
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// SiteTimeout converts the site timeout config into a duration.
func (c Config) SiteTimeout() time.Duration {
	return time.Duration(c.Site.TimeoutSeconds) * time.Second
}

// SolveBudget converts the bypass solve budget into a duration.
func (c Config) SolveBudget() time.Duration {
	return time.Duration(c.Solverr.MaxTimeoutMs) * time.Millisecond
}
