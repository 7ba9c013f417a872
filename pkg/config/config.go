// Package config loads config.yaml with RSQL_ environment overrides. Nested
// keys map to env vars with "." replaced by "_", so redis.addr becomes
// RSQL_REDIS_ADDR.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"

	"github.com/vantutran2k1/rsql/pkg/logger"
)

const EnvPrefix = "RSQL"

// Load reads path, or ./config.yaml when path is empty. A missing file is not
// an error.
func Load(path string) (*viper.Viper, error) {
	v := viper.New()
	if path == "" {
		path = "config.yaml"
	}
	v.SetConfigFile(path)
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// SetConfigFile bypasses viper's search, so a missing file surfaces as
		// an fs error.
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.Warn("config file not found, using defaults and env vars", "path", path)
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("compiler.max_depth", 32)
	v.SetDefault("nats.audit_subject", "rsql.audit.compile")
}

// Logger returns the logger config from the "log" section.
func Logger(v *viper.Viper) logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = logger.ParseLevel(v.GetString("log.level"))
	if format := v.GetString("log.format"); format == "text" || format == "json" {
		cfg.Format = format
	}
	cfg.AddSource = v.GetBool("log.add_source")
	return cfg
}
