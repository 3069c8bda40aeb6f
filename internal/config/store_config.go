package config

import (
	"fmt"
	"github.com/spf13/viper"
)

type Backend string

const (
	BackendJSON   Backend = "json"
	BackendSQLite Backend = "sqlite"
)

type StoreConfig struct {
	Backend    Backend `mapstructure:"backend"`
	Path       string  `mapstructure:"path"`
	MaxAgeDays int     `mapstructure:"max_age_days"`
}

func (config StoreConfig) validate() error {
	if config.Backend != BackendJSON && config.Backend != BackendSQLite {
		return fmt.Errorf("unknown store backend %q", config.Backend)
	}
	if config.Path == "" {
		return fmt.Errorf("missing variable: store path")
	}
	if config.MaxAgeDays <= 0 {
		return fmt.Errorf("max_age_days must be greater than zero")
	}
	return nil
}

func (config StoreConfig) bindEnvironmentVariables(v *viper.Viper) error {
	if err := v.BindEnv("store.backend", "SEEN_STORE_BACKEND"); err != nil {
		return err
	}
	return v.BindEnv("store.path", "SEEN_STORE_PATH")
}
