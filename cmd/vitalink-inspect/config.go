package main

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"
)

type config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level" default:"info"`

	// FailOnUnresolvedImport makes an unresolved stub produce a nonzero
	// exit status. The warning is printed to the report either way.
	FailOnUnresolvedImport bool `mapstructure:"fail_on_unresolved_import" default:"false"`
}

func loadConfig(path string) (*config, error) {
	cfg := &config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to set config defaults: %w", err)
	}

	if path == "" {
		return cfg, nil
	}

	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config from '%s': %w", path, err)
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}
