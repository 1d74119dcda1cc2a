package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"lrucache/internal/errs"
	"lrucache/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. LRUCACHE_CACHE_CAPACITY.
const EnvPrefix = "LRUCACHE"

type Config struct {
	Cache    CacheConfig    `mapstructure:"cache"`
	Server   ServerConfig   `mapstructure:"server"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Log      LogConfig      `mapstructure:"log"`
}

type CacheConfig struct {
	Capacity        int           `mapstructure:"capacity"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type ServerConfig struct {
	Socket      string `mapstructure:"socket"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// SnapshotConfig points at the bbolt file; an empty Path disables snapshots.
type SnapshotConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads defaults, then the config file (configFile, or lrucache.yaml in
// the working directory when present), then LRUCACHE_* environment variables.
func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("lrucache")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Debug(logCtx, "config file not found, using defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Debug(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the invariants the rest of the program relies on.
func (c Config) Validate() error {
	if c.Cache.Capacity < 1 {
		return fmt.Errorf("cache.capacity must be at least 1, got %d", c.Cache.Capacity)
	}
	if c.Cache.CleanupInterval < 0 {
		return fmt.Errorf("cache.cleanup_interval must not be negative, got %s", c.Cache.CleanupInterval)
	}
	if strings.TrimSpace(c.Server.Socket) == "" {
		return errors.New("server.socket is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.capacity", 1024)
	v.SetDefault("cache.cleanup_interval", time.Minute)
	v.SetDefault("server.socket", filepath.Join(stateDir(), "cache.sock"))
	v.SetDefault("server.metrics_addr", "")
	v.SetDefault("snapshot.path", filepath.Join(stateDir(), "snapshot.bbolt"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func stateDir() string {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "."
	}
	return filepath.Join(home, ".cache", "lrucache")
}
