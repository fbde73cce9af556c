package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rycus86/localbus/pkg/cache"
	"github.com/rycus86/localbus/pkg/timetables"
	"gopkg.in/yaml.v3"
)

type Config struct {
	RemoteURL    string        `yaml:"remote_url" validate:"omitempty,url"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" validate:"gt=0"`

	Cache  CacheConfig  `yaml:"cache"`
	Server ServerConfig `yaml:"server"`
	Notify NotifyConfig `yaml:"notify"`
	Log    LogConfig    `yaml:"log"`
}

type CacheConfig struct {
	Backend string            `yaml:"backend" validate:"oneof=file redis memory"`
	Dir     string            `yaml:"dir" validate:"required_if=Backend file"`
	Key     string            `yaml:"key" validate:"required"`
	Redis   cache.RedisConfig `yaml:"redis"`
}

type ServerConfig struct {
	Listen          string        `yaml:"listen" validate:"required"`
	RefreshInterval time.Duration `yaml:"refresh_interval" validate:"gte=0"`
}

type NotifyConfig struct {
	NATSURL     string `yaml:"nats_url" validate:"omitempty,url"`
	Subject     string `yaml:"subject" validate:"required"`
	LeadMinutes int    `yaml:"lead_minutes" validate:"gte=0"`
}

type LogConfig struct {
	Format string `yaml:"format" validate:"omitempty,oneof=JSON CONSOLE"`
	Debug  bool   `yaml:"debug"`
}

func Default() *Config {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}

	return &Config{
		RemoteURL:    timetables.DefaultRemoteURL,
		FetchTimeout: 30 * time.Second,
		Cache: CacheConfig{
			Backend: "file",
			Dir:     cacheDir + string(os.PathSeparator) + "localbus",
			Key:     cache.DefaultKey,
			Redis: cache.RedisConfig{
				Address: "localhost:6379",
			},
		},
		Server: ServerConfig{
			Listen:          ":8080",
			RefreshInterval: 5 * time.Minute,
		},
		Notify: NotifyConfig{
			Subject:     "localbus.reminders",
			LeadMinutes: 5,
		},
		Log: LogConfig{
			Format: "CONSOLE",
		},
	}
}

// Load applies, in order: defaults, the YAML file at path (skipped when path
// is empty), a .env file if present, then LOCALBUS_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	_ = godotenv.Load()

	if err := applyEnvironment(cfg); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnvironment(cfg *Config) error {
	setString(&cfg.RemoteURL, "LOCALBUS_REMOTE_URL")
	setString(&cfg.Cache.Backend, "LOCALBUS_CACHE_BACKEND")
	setString(&cfg.Cache.Dir, "LOCALBUS_CACHE_DIR")
	setString(&cfg.Cache.Key, "LOCALBUS_CACHE_KEY")
	setString(&cfg.Cache.Redis.Address, "LOCALBUS_REDIS_ADDRESS")
	setString(&cfg.Cache.Redis.Password, "LOCALBUS_REDIS_PASSWORD")
	setString(&cfg.Server.Listen, "LOCALBUS_LISTEN")
	setString(&cfg.Notify.NATSURL, "LOCALBUS_NATS_URL")
	setString(&cfg.Notify.Subject, "LOCALBUS_NATS_SUBJECT")
	setString(&cfg.Log.Format, "LOCALBUS_LOG_FORMAT")

	if v := os.Getenv("LOCALBUS_DEBUG"); v != "" {
		cfg.Log.Debug = strings.EqualFold(v, "YES") || strings.EqualFold(v, "true") || v == "1"
	}

	var errs []error

	if v := os.Getenv("LOCALBUS_REDIS_DATABASE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.Redis.Database = n
		} else {
			errs = append(errs, fmt.Errorf("invalid LOCALBUS_REDIS_DATABASE: %q", v))
		}
	}

	if v := os.Getenv("LOCALBUS_LEAD_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Notify.LeadMinutes = n
		} else {
			errs = append(errs, fmt.Errorf("invalid LOCALBUS_LEAD_MINUTES: %q", v))
		}
	}

	for name, target := range map[string]*time.Duration{
		"LOCALBUS_FETCH_TIMEOUT":    &cfg.FetchTimeout,
		"LOCALBUS_REFRESH_INTERVAL": &cfg.Server.RefreshInterval,
	} {
		if v := os.Getenv(name); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*target = d
			} else {
				errs = append(errs, fmt.Errorf("invalid %s: %q", name, v))
			}
		}
	}

	return errors.Join(errs...)
}

func setString(target *string, name string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*target = v
	}
}
