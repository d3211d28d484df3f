package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PlaceholderAnonKey is the value shipped in the sample config.
const PlaceholderAnonKey = "YOUR_SUPABASE_ANON_KEY_HERE"

type Config struct {
	App struct {
		Name string `mapstructure:"name"`
		Port string `mapstructure:"port"`
		Env  string `mapstructure:"env"`
	} `mapstructure:"app"`
	Backend struct {
		Driver  string        `mapstructure:"driver"`
		URL     string        `mapstructure:"url"`
		AnonKey string        `mapstructure:"anon_key"`
		Table   string        `mapstructure:"table"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"backend"`
	Database struct {
		Host         string `mapstructure:"host"`
		Port         string `mapstructure:"port"`
		User         string `mapstructure:"user"`
		Password     string `mapstructure:"password"`
		Name         string `mapstructure:"name"`
		Sslmode      string `mapstructure:"sslmode"`
		Timezone     string `mapstructure:"timezone"`
		MaxIdleConns int    `mapstructure:"max_idle_conns"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
	} `mapstructure:"database"`
	Redis struct {
		Enabled  bool   `mapstructure:"enabled"`
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Session struct {
		Secret     string        `mapstructure:"secret"`
		CookieName string        `mapstructure:"cookie_name"`
		TTL        time.Duration `mapstructure:"ttl"`
		Secure     bool          `mapstructure:"secure"`
	} `mapstructure:"session"`
	Admin struct {
		Email    string `mapstructure:"email"`
		Password string `mapstructure:"password"`
	} `mapstructure:"admin"`
	Feed struct {
		RecentLimit  int           `mapstructure:"recent_limit"`
		ExcerptLimit int           `mapstructure:"excerpt_limit"`
		PageTTL      time.Duration `mapstructure:"page_ttl"`
		ImportLimit  int           `mapstructure:"import_limit"`
	} `mapstructure:"feed"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "PressGO")
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "production")

	v.SetDefault("backend.driver", "rest")
	v.SetDefault("backend.url", "")
	v.SetDefault("backend.anon_key", "")
	v.SetDefault("backend.table", "articles")
	v.SetDefault("backend.timeout", 10*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "pressgo")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("session.secret", "")
	v.SetDefault("session.cookie_name", "pressgo_session")
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.secure", false)

	// Keys must be known to viper for PRESSGO_* overrides to reach Unmarshal.
	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")

	v.SetDefault("feed.recent_limit", 10)
	v.SetDefault("feed.excerpt_limit", 150)
	v.SetDefault("feed.page_ttl", 30*time.Minute)
	v.SetDefault("feed.import_limit", 5)
}

// Load reads config.yaml from the given directories (./config and . when
// none are given) and overlays PRESSGO_* environment variables. A missing
// file is fine; a malformed one is not.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./config", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("PRESSGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Backend.Driver {
	case "rest":
		if c.Backend.URL == "" {
			return errors.New("config: backend.url is required for the rest driver")
		}
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown backend.driver %q", c.Backend.Driver)
	}
	if c.Session.Secret == "" {
		return errors.New("config: session.secret is required")
	}
	if c.Feed.RecentLimit <= 0 {
		return errors.New("config: feed.recent_limit must be positive")
	}
	return nil
}

// AnonKeyConfigured reports whether a real anon key was provided.
func (c *Config) AnonKeyConfigured() bool {
	return c.Backend.AnonKey != "" && c.Backend.AnonKey != PlaceholderAnonKey
}

func InitConfig() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}
