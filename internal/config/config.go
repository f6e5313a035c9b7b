package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "PLANADMIN"

// DefaultVersion is reported by the version tag when the config does not override it.
const DefaultVersion = "0.3.0"

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `mapstructure:"basic_config"`
	Databases   map[string]DatabaseConfig `mapstructure:"databases"`
	Redis       RedisConfig               `mapstructure:"redis"`
	Session     SessionConfig             `mapstructure:"session"`
	Crumbs      CrumbsConfig              `mapstructure:"crumbs"`
	Log         LogConfig                 `mapstructure:"log"`
}

type BasicConfig struct {
	ServerAddress string `mapstructure:"server_address"`
	Database      string `mapstructure:"database"`
	Version       string `mapstructure:"version"`
	TokenTTLHours int    `mapstructure:"token_ttl_hours"`
}

type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Params   string `mapstructure:"params"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SessionConfig controls the server-side web session.
type SessionConfig struct {
	Store                string `mapstructure:"store"`
	CookieName           string `mapstructure:"cookie_name"`
	TTLMinutes           int    `mapstructure:"ttl_minutes"`
	SweepIntervalMinutes int    `mapstructure:"sweep_interval_minutes"`
}

// CrumbsConfig holds the breadcrumb trail settings.
type CrumbsConfig struct {
	HomeURL   string `mapstructure:"home_url"`
	HomeTitle string `mapstructure:"home_title"`
	Separator string `mapstructure:"separator"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("basic_config.server_address", ":8090")
	v.SetDefault("basic_config.database", "sqlite3")
	v.SetDefault("basic_config.version", DefaultVersion)
	v.SetDefault("basic_config.token_ttl_hours", 24)
	v.SetDefault("databases.sqlite3.dsn", "planadmin.db")
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("session.store", "sql")
	v.SetDefault("session.cookie_name", "sessionid")
	v.SetDefault("session.ttl_minutes", 14*24*60)
	v.SetDefault("session.sweep_interval_minutes", 60)
	v.SetDefault("crumbs.home_url", "/admin/")
	v.SetDefault("crumbs.home_title", "Home")
	v.SetDefault("crumbs.separator", " > ")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from the provided path. An empty path searches for
// config.{json,yaml} in the working directory; a missing file falls back to defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var baseDir string
	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		v.SetConfigFile(absPath)
		baseDir = filepath.Dir(absPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", absPath, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else {
			baseDir = filepath.Dir(v.ConfigFileUsed())
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Relative sqlite files live next to the config file.
	if db, ok := cfg.Databases["sqlite3"]; ok && baseDir != "" && isFileDSN(db.DSN) && !filepath.IsAbs(db.DSN) {
		db.DSN = filepath.Join(baseDir, db.DSN)
		cfg.Databases["sqlite3"] = db
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, ok := c.Databases[c.BasicConfig.Database]; !ok {
		return fmt.Errorf("database config for %s not found", c.BasicConfig.Database)
	}
	switch c.Session.Store {
	case "sql":
	case "redis":
		if !c.Redis.Enabled {
			return errors.New("session store redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("unsupported session store: %s", c.Session.Store)
	}
	if c.Session.CookieName == "" {
		return errors.New("session.cookie_name must be configured")
	}
	return nil
}

func isFileDSN(dsn string) bool {
	return dsn != "" && !strings.HasPrefix(dsn, ":memory:") && !strings.HasPrefix(dsn, "file:")
}
