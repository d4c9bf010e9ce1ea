package config

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	u "github.com/moratsam/clbin/util"
)

const (
	KeySource       = "source"
	KeyCacheDir     = "cache-dir"
	KeyBuildOptions = "build-options"
	KeyLogLevel     = "log-level"
	KeyMetricsFile  = "metrics-file"

	EnvPrefix     = "CLBIN"
	DefaultSource = "src/unlm.cl"
)

type Config struct {
	Source       string `mapstructure:"source"`        // Kernel source file.
	CacheDir     string `mapstructure:"cache-dir"`     // Where binaries go; next to the source when empty.
	BuildOptions string `mapstructure:"build-options"` // Passed verbatim to the compiler.
	LogLevel     string `mapstructure:"log-level"`
	MetricsFile  string `mapstructure:"metrics-file"` // Prometheus textfile; disabled when empty.
}

// SetDefaults registers defaults and the CLBIN_* environment mapping on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeySource, DefaultSource)
	v.SetDefault(KeyCacheDir, "")
	v.SetDefault(KeyBuildOptions, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyMetricsFile, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// Load reads the config file set on v, if any, and unmarshals the merged view
// of defaults, file, environment and bound flags.
func Load(v *viper.Viper) (*Config, error) {
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, u.WrapErr("read config", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, u.WrapErr("unmarshal config", err)
	}
	if _, err := zap.ParseAtomicLevel(cfg.LogLevel); err != nil {
		return nil, u.WrapErr("log level", err)
	}
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	return &cfg, nil
}
