package config

import (
	"fmt"
	"github.com/spf13/viper"
	"time"
)

type SourcesConfig struct {
	// Enabled lists source tags in invocation order; empty means every known source.
	Enabled      []string      `mapstructure:"enabled"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Concurrency  int           `mapstructure:"concurrency"`
	UserAgent    string        `mapstructure:"user_agent"`
	JHUFile      string        `mapstructure:"jhu_file"`
	JHUStaleDays int           `mapstructure:"jhu_stale_days"`
}

func (config SourcesConfig) validate() error {
	if config.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", config.Timeout)
	}
	if config.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", config.Concurrency)
	}
	return nil
}

func (config SourcesConfig) bindEnvironmentVariables(v *viper.Viper) error {
	if err := v.BindEnv("sources.jhu_file", "JHU_FILE"); err != nil {
		return err
	}
	return v.BindEnv("sources.timeout", "SOURCE_TIMEOUT")
}
