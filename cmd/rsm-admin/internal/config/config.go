// Package config loads rsm-admin settings with viper: defaults, then an
// optional .rsm-admin.yaml, then RSM_* environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/redseamarket/adminkit"
	"github.com/redseamarket/adminkit/route"
	"github.com/redseamarket/adminkit/storage"
)

// Storage drivers.
const (
	DriverRedis    = "redis"
	DriverEmbedded = "embedded"
	DriverFile     = "file"
)

// Settings is the complete rsm-admin configuration.
type Settings struct {
	API     APISettings     `mapstructure:"api"`
	Storage StorageSettings `mapstructure:"storage"`
	Persist PersistSettings `mapstructure:"persist"`
	Demo    DemoSettings    `mapstructure:"demo"`
	Routes  RouteSettings   `mapstructure:"routes"`
	Log     LogSettings     `mapstructure:"log"`
	Output  OutputSettings  `mapstructure:"output"`
}

// APISettings points the client at the marketplace backend.
type APISettings struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	VerboseLogging bool          `mapstructure:"verbose_logging"`
}

// StorageSettings selects the durable store.
type StorageSettings struct {
	Driver    string `mapstructure:"driver"`
	RedisAddr string `mapstructure:"redis_addr"`
	Prefix    string `mapstructure:"prefix"`
	FilePath  string `mapstructure:"file_path"`
}

// PersistSettings tunes state persistence.
type PersistSettings struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// DemoSettings are the credentials used when login flags are omitted.
type DemoSettings struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// RouteSettings configures the route guard.
type RouteSettings struct {
	SignIn    string       `mapstructure:"sign_in"`
	Landing   string       `mapstructure:"landing"`
	Forbidden string       `mapstructure:"forbidden"`
	Public    []string     `mapstructure:"public"`
	Rules     []route.Rule `mapstructure:"rules"`
}

// LogSettings sets the slog level.
type LogSettings struct {
	Level string `mapstructure:"level"`
}

// OutputSettings controls terminal output.
type OutputSettings struct {
	Colors bool `mapstructure:"colors"`
}

// Load reads settings. cfgFile overrides the search for .rsm-admin.yaml.
func Load(cfgFile string) (*Settings, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".rsm-admin")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/rsm-admin")
	}

	v.SetEnvPrefix("RSM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := validate(&s); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	def := adminkit.DefaultConfig()

	v.SetDefault("api.base_url", def.API.BaseURL)
	v.SetDefault("api.timeout", def.API.Timeout)
	v.SetDefault("api.verbose_logging", false)

	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.redis_addr", "localhost:6379")
	v.SetDefault("storage.prefix", "rsm")
	v.SetDefault("storage.file_path", ".rsm-admin-session.json")

	v.SetDefault("persist.debounce", def.Persist.Debounce)

	v.SetDefault("demo.email", "mike1218@gmail.com")
	v.SetDefault("demo.password", "Hesoyam1218@")

	v.SetDefault("routes.sign_in", def.Routes.SignIn)
	v.SetDefault("routes.landing", def.Routes.Landing)
	v.SetDefault("routes.forbidden", def.Routes.Forbidden)
	v.SetDefault("routes.public", []string{})

	v.SetDefault("log.level", "warn")
	v.SetDefault("output.colors", true)
}

func validate(s *Settings) error {
	switch s.Storage.Driver {
	case DriverRedis:
		if s.Storage.RedisAddr == "" {
			return errors.New("storage.redis_addr is required for the redis driver")
		}
	case DriverEmbedded:
	case DriverFile:
		if s.Storage.FilePath == "" {
			return errors.New("storage.file_path is required for the file driver")
		}
	default:
		return fmt.Errorf("invalid storage.driver %q (must be redis, embedded or file)", s.Storage.Driver)
	}
	if _, err := ParseLevel(s.Log.Level); err != nil {
		return err
	}
	cfg := s.ClientConfig()
	return cfg.Validate()
}

// ParseLevel maps a log.level value to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log.level %q (must be debug, info, warn or error)", level)
	}
}

// ClientConfig maps the settings onto an adminkit configuration.
func (s *Settings) ClientConfig() adminkit.Config {
	cfg := adminkit.DefaultConfig()
	cfg.API.BaseURL = s.API.BaseURL
	cfg.API.Timeout = s.API.Timeout
	cfg.API.VerboseLogging = s.API.VerboseLogging
	cfg.Persist.Debounce = s.Persist.Debounce
	cfg.Routes.SignIn = s.Routes.SignIn
	cfg.Routes.Landing = s.Routes.Landing
	cfg.Routes.Forbidden = s.Routes.Forbidden
	cfg.Routes.Public = s.Routes.Public
	cfg.Routes.Rules = s.Routes.Rules
	return cfg
}

// OpenStorage connects the configured driver. The returned func releases it.
func (s *Settings) OpenStorage(ctx context.Context) (storage.Storage, func(), error) {
	switch s.Storage.Driver {
	case DriverRedis:
		client := redis.NewClient(&redis.Options{Addr: s.Storage.RedisAddr})
		store := storage.NewRedis(client, s.Storage.Prefix)
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, func() { _ = client.Close() }, nil
	case DriverEmbedded:
		store, err := storage.NewEmbedded(s.Storage.Prefix)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return storage.NewFile(s.Storage.FilePath), func() {}, nil
	}
}
