package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"markalloc/internal/bootstrap/logging"
	"markalloc/internal/errs"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Allocation AllocationConfig `mapstructure:"allocation"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type AllocationConfig struct {
	// ScoringWorkers bounds concurrent scoring oracle calls during a run.
	ScoringWorkers int `mapstructure:"scoring_workers"`
	// ResponseWindow is added to the notification time when no deadline is given.
	ResponseWindow time.Duration `mapstructure:"response_window"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type TracingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Output  string `mapstructure:"output"`
}

const envPrefix = "MA"

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	if err := loadDotEnv(logCtx); err != nil {
		return Config{}, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		case configFile != "" && errors.Is(err, os.ErrNotExist):
			logging.Warn(logCtx, "config file missing, fallback to defaults and env", slog.String("path", configFile))
		default:
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.Int("scoring_workers", cfg.Allocation.ScoringWorkers),
	)

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if c.Allocation.ScoringWorkers < 1 {
		return fmt.Errorf("allocation.scoring_workers must be >= 1, got %d", c.Allocation.ScoringWorkers)
	}
	if c.Allocation.ResponseWindow <= 0 {
		return fmt.Errorf("allocation.response_window must be positive, got %s", c.Allocation.ResponseWindow)
	}
	return nil
}

// loadDotEnv exports variables from ./.env when present. Variables already set
// in the process environment win.
func loadDotEnv(ctx context.Context) error {
	if _, err := os.Stat(".env"); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errs.Wrap(err, "stat .env")
	}
	if err := godotenv.Load(".env"); err != nil {
		return errs.Wrap(err, "load .env")
	}
	logging.Info(ctx, "loaded environment from .env")
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "markalloc")
	v.SetDefault("app.env", "local")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".data/markalloc.sqlite")
	v.SetDefault("allocation.scoring_workers", 4)
	v.SetDefault("allocation.response_window", "168h")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.output", "")
}
