package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // часовые пояса в scratch-образе

	"github.com/Spok95/bom-tracker/internal/domain/bom"
	"github.com/Spok95/bom-tracker/internal/images"
	"github.com/Spok95/bom-tracker/internal/remote"
	"github.com/Spok95/bom-tracker/internal/views"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Store struct {
		Driver       string
		Collection   string
		SQLitePath   string        `mapstructure:"sqlite_path"`
		PollInterval time.Duration `mapstructure:"poll_interval"`
	} `mapstructure:"store"`

	Images struct {
		Driver          string
		Dir             string
		PublicBaseURL   string `mapstructure:"public_base_url"`
		Bucket          string
		Region          string
		Endpoint        string
		PathStyle       bool   `mapstructure:"path_style"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		Prefix          string
		Extensions      []string
		PresignExpiry   time.Duration `mapstructure:"presign_expiry"`
		CacheSize       int           `mapstructure:"cache_size"`
		CacheTTL        time.Duration `mapstructure:"cache_ttl"`
		LookupTimeout   time.Duration `mapstructure:"lookup_timeout"`
	} `mapstructure:"images"`

	Views struct {
		CurrentBoM string `mapstructure:"current_bom"`
		KanbanMode string `mapstructure:"kanban_mode"`
	} `mapstructure:"views"`

	Auth struct {
		JWTSecret string        `mapstructure:"jwt_secret"`
		TokenTTL  time.Duration `mapstructure:"token_ttl"`
	} `mapstructure:"auth"`

	Telegram struct {
		Enabled     bool
		Token       string
		AdminChatID int64 `mapstructure:"admin_chat_id"`
	} `mapstructure:"telegram"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("app.env", "prod")
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("store.driver", string(remote.DriverPostgres))
	v.SetDefault("store.collection", "bom")
	v.SetDefault("store.sqlite_path", "data/bom-tracker.db")
	v.SetDefault("store.poll_interval", time.Second)
	v.SetDefault("images.driver", string(images.DriverNone))
	v.SetDefault("images.dir", "")
	v.SetDefault("images.public_base_url", "")
	v.SetDefault("images.bucket", "")
	v.SetDefault("images.region", "")
	v.SetDefault("images.endpoint", "")
	v.SetDefault("images.path_style", false)
	v.SetDefault("images.access_key_id", "")
	v.SetDefault("images.secret_access_key", "")
	v.SetDefault("images.prefix", "")
	v.SetDefault("images.extensions", images.DefaultExtensions)
	v.SetDefault("images.presign_expiry", 15*time.Minute)
	v.SetDefault("images.cache_size", 4096)
	v.SetDefault("images.cache_ttl", 10*time.Minute)
	v.SetDefault("images.lookup_timeout", 3*time.Second)
	v.SetDefault("views.current_bom", views.CurrentOpen.Name)
	v.SetDefault("views.kanban_mode", string(bom.KanbanStrict))
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 30*24*time.Hour)
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_chat_id", 0)
	v.SetDefault("metrics.enabled", true)
}

// Load читает .env (если есть), затем YAML, затем APP_* из окружения:
// APP_POSTGRES_DSN перекрывает postgres.dsn.
func Load(path string) (Config, error) {
	var c Config
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return c, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	defaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if c.Store.Collection == "" || strings.Contains(c.Store.Collection, "/") {
		errs = append(errs, fmt.Errorf("store.collection %q is invalid", c.Store.Collection))
	}
	switch remote.Driver(c.Store.Driver) {
	case remote.DriverPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required for the postgres driver"))
		}
	case remote.DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite driver"))
		}
	case remote.DriverMemory:
		// наполнить memory-хранилище извне нечем
		if c.App.Env != "dev" {
			errs = append(errs, fmt.Errorf("store.driver memory is allowed only with app.env=dev, got %q", c.App.Env))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is unknown", c.Store.Driver))
	}

	switch images.Driver(c.Images.Driver) {
	case images.DriverNone:
	case images.DriverFS:
		if c.Images.Dir == "" {
			errs = append(errs, errors.New("images.dir is required for the fs driver"))
		}
	case images.DriverS3:
		if c.Images.Bucket == "" {
			errs = append(errs, errors.New("images.bucket is required for the s3 driver"))
		}
		if c.Images.PublicBaseURL == "" && c.Images.CacheTTL >= c.Images.PresignExpiry {
			errs = append(errs, errors.New("images.cache_ttl must be shorter than images.presign_expiry"))
		}
	default:
		errs = append(errs, fmt.Errorf("images.driver %q is unknown", c.Images.Driver))
	}
	if c.Images.LookupTimeout <= 0 {
		errs = append(errs, errors.New("images.lookup_timeout must be positive"))
	}

	if _, err := c.ViewOptions(); err != nil {
		errs = append(errs, err)
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required when telegram is enabled"))
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("app.timezone: %w", err))
	}
	return errors.Join(errs...)
}

// ViewOptions настройки вычисления вкладок и дашборда.
func (c Config) ViewOptions() (views.Options, error) {
	comp, err := views.ParseComposition(c.Views.CurrentBoM)
	if err != nil {
		return views.Options{}, err
	}
	mode := bom.KanbanMode(c.Views.KanbanMode)
	switch mode {
	case bom.KanbanStrict, bom.KanbanLenient:
	default:
		return views.Options{}, fmt.Errorf("views.kanban_mode %q is unknown", c.Views.KanbanMode)
	}
	return views.Options{Current: comp, Kanban: mode}, nil
}

func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
