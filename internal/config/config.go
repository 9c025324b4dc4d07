// Package config wraps viper for the dashboard. Values come from an
// optional YAML file and LIBRADESK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/HerbHall/libradesk/pkg/models"
)

// EnvPrefix is prepended to environment variable names, e.g.
// LIBRADESK_API_BASE_URL.
const EnvPrefix = "LIBRADESK"

// Config is a read-only view of configuration values.
type Config struct {
	v *viper.Viper
}

// New wraps v. A nil v behaves as an empty configuration.
func New(v *viper.Viper) *Config {
	if v == nil {
		v = viper.New()
	}
	return &Config{v: v}
}

func (c *Config) GetString(key string) string          { return c.v.GetString(key) }
func (c *Config) GetInt(key string) int                { return c.v.GetInt(key) }
func (c *Config) GetBool(key string) bool              { return c.v.GetBool(key) }
func (c *Config) GetFloat64(key string) float64        { return c.v.GetFloat64(key) }
func (c *Config) GetDuration(key string) time.Duration { return c.v.GetDuration(key) }
func (c *Config) IsSet(key string) bool                { return c.v.IsSet(key) }

// Sub returns the subtree at key. A missing subtree yields an empty
// Config rather than nil.
func (c *Config) Sub(key string) *Config {
	return New(c.v.Sub(key))
}

// Unmarshal decodes the whole configuration into target using
// mapstructure tags.
func (c *Config) Unmarshal(target any) error {
	return c.v.Unmarshal(target)
}

// Settings is the typed configuration every component is built from.
type Settings struct {
	API struct {
		BaseURL    string        `mapstructure:"base_url"`
		PageOrigin string        `mapstructure:"page_origin"`
		Timeout    time.Duration `mapstructure:"timeout"`
		RateLimit  float64       `mapstructure:"rate_limit"`
		RateBurst  int           `mapstructure:"rate_burst"`
	} `mapstructure:"api"`
	Lists struct {
		Debounce        time.Duration `mapstructure:"debounce"`
		DefaultPageSize int           `mapstructure:"default_page_size"`
	} `mapstructure:"lists"`
	Stats struct {
		TopN     int    `mapstructure:"top_n"`
		PerPage  int    `mapstructure:"per_page"`
		Location string `mapstructure:"location"`
	} `mapstructure:"stats"`
	Session struct {
		DBPath     string `mapstructure:"db_path"`
		Passphrase string `mapstructure:"passphrase"`
	} `mapstructure:"session"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// Location returns the stats time zone, or UTC when unset.
func (s *Settings) Location() (*time.Location, error) {
	if s.Stats.Location == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Stats.Location)
	if err != nil {
		return nil, fmt.Errorf("stats.location: %w", err)
	}
	return loc, nil
}

// SetDefaults registers the default value of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8000/api")
	v.SetDefault("api.page_origin", "")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.rate_limit", 10.0)
	v.SetDefault("api.rate_burst", 20)
	v.SetDefault("lists.debounce", 350*time.Millisecond)
	v.SetDefault("lists.default_page_size", 10)
	v.SetDefault("stats.top_n", 10)
	v.SetDefault("stats.per_page", 1000)
	v.SetDefault("stats.location", "UTC")
	v.SetDefault("session.db_path", defaultDBPath())
	v.SetDefault("session.passphrase", "")
	v.SetDefault("log.level", "info")
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "libradesk.db"
	}
	return dir + string(os.PathSeparator) + "libradesk" + string(os.PathSeparator) + "session.db"
}

// Load reads path (optional; empty means search the working directory and
// the user config dir for libradesk.yaml) plus the environment.
func Load(path string) (*Settings, *Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("libradesk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(dir + string(os.PathSeparator) + "libradesk")
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, nil, fmt.Errorf("decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}
	return &s, New(v), nil
}

// Validate rejects settings no component can run with.
func (s *Settings) Validate() error {
	var errs []error
	if !models.ValidPageSize(s.Lists.DefaultPageSize) {
		errs = append(errs, fmt.Errorf("lists.default_page_size must be one of %v", models.PageSizes))
	}
	if s.Lists.Debounce < 0 {
		errs = append(errs, errors.New("lists.debounce must not be negative"))
	}
	if s.Stats.TopN <= 0 {
		errs = append(errs, errors.New("stats.top_n must be positive"))
	}
	if s.Stats.PerPage <= 0 {
		errs = append(errs, errors.New("stats.per_page must be positive"))
	}
	if _, err := s.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
