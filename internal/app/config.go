package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"eventchat/internal/logging"
	"eventchat/internal/poller"
	"eventchat/internal/rsvp"
)

const EnvPrefix = "EVENTCHAT"

// Config is everything the client needs for one server and event.
type Config struct {
	BaseURL    string `mapstructure:"base_url" validate:"required,url"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	Event      int64  `mapstructure:"event" validate:"gte=0"`
	ActiveChat int64  `mapstructure:"active_chat" validate:"gte=0"`

	PollInterval      time.Duration `mapstructure:"poll_interval" validate:"min=100ms"`
	SearchDebounce    time.Duration `mapstructure:"search_debounce" validate:"gte=0"`
	SearchMinChars    int           `mapstructure:"search_min_chars" validate:"gte=0"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" validate:"min=100ms"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`

	// SessionCookie and CSRFCookie seed the jar, e.g. with values copied
	// from a browser, instead of logging in.
	SessionCookie string `mapstructure:"session_cookie"`
	CSRFCookie    string `mapstructure:"csrf_cookie"`

	StatePath string `mapstructure:"state_path" validate:"required"`
	LogFile   string `mapstructure:"log_file"`
	LogLevel  string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Timezone  string `mapstructure:"timezone"`
	Quiet     bool   `mapstructure:"quiet"`
}

var validate = validator.New()

// SetDefaults registers every key with its default so env overrides apply
// even without a config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "http://localhost:8000")
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("event", 0)
	v.SetDefault("active_chat", 0)
	v.SetDefault("poll_interval", poller.DefaultInterval)
	v.SetDefault("search_debounce", rsvp.DefaultDebounce)
	v.SetDefault("search_min_chars", rsvp.DefaultMinChars)
	v.SetDefault("request_timeout", 10*time.Second)
	v.SetDefault("requests_per_second", 10.0)
	v.SetDefault("session_cookie", "")
	v.SetDefault("csrf_cookie", "")
	v.SetDefault("state_path", DefaultStatePath())
	v.SetDefault("log_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("timezone", "")
	v.SetDefault("quiet", false)
}

// LoadConfig reads file (optional), EVENTCHAT_* variables and whatever flags
// were bound on v, then validates the result.
func LoadConfig(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("eventchat")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Dir(DefaultStatePath()))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(filepath.Dir(cfg.StatePath), "eventchat.log")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location is where timestamps are displayed; empty means the local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Logging maps the log settings onto the logger. Debug level switches to the
// human-readable development encoder.
func (c Config) Logging() logging.Config {
	return logging.Config{
		Level:       c.LogLevel,
		File:        c.LogFile,
		Development: strings.EqualFold(c.LogLevel, "debug"),
	}
}

// RequireEvent fails when no event was configured.
func (c Config) RequireEvent() error {
	if c.Event <= 0 {
		return errors.New("no event selected: pass --event or set EVENTCHAT_EVENT")
	}
	return nil
}

// DefaultStatePath returns a per-user data path for the bundled SQLite file.
func DefaultStatePath() string {
	if env := os.Getenv("EVENTCHAT_STATE_PATH"); env != "" {
		return env
	}
	if env := os.Getenv("EVENTCHAT_DATA_DIR"); env != "" {
		return filepath.Join(env, "eventchat.db")
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "eventchat", "eventchat.db")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Eventchat", "eventchat.db")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "Application Support", "Eventchat", "eventchat.db")
		}
		return filepath.Join(home, ".local", "share", "eventchat", "eventchat.db")
	}
	return filepath.Join(".", ".eventchat", "eventchat.db")
}
