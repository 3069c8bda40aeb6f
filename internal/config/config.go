package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/spf13/viper"
	"os"
	"time"
)

type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger"`
	Profile  ProfileConfig  `mapstructure:"profile"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Store    StoreConfig    `mapstructure:"store"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Schedule string         `mapstructure:"schedule"`
}

const (
	configPathEnv  = "CONFIG_PATH"
	profileJSONEnv = "PROFILE_JSON"
)

var DefaultConfigFile = "./configs/config.yaml"

// FilePath returns the config file location, honouring CONFIG_PATH.
func FilePath() string {
	if value, ok := os.LookupEnv(configPathEnv); ok && value != "" {
		return value
	}
	return DefaultConfigFile
}

// Load builds the configuration from defaults, an optional yaml file, PROFILE_JSON and env variables.
// A missing file is not an error; an unreadable or invalid one is.
func Load(file string) (*Config, error) {

	v := viper.New()
	setDefaults(v)

	if err := bindEnvironmentVariables(v); err != nil {
		return nil, err
	}

	if file != "" {
		if _, err := os.Stat(file); err == nil {
			v.SetConfigFile(file)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", file, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error accessing config file %s: %w", file, err)
		}
	}

	if err := mergeProfileJSON(v, os.Getenv(profileJSONEnv)); err != nil {
		return nil, err
	}

	config := Config{}
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}

	config.Profile.normalize()

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func mergeProfileJSON(v *viper.Viper, raw string) error {
	if raw == "" {
		return nil
	}

	var profile map[string]any
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return fmt.Errorf("%s is not a valid JSON object: %w", profileJSONEnv, err)
	}

	allowed := map[string]bool{
		"keywords": true, "disciplines": true, "academic_level": true,
		"citizenship": true, "score_threshold": true,
	}
	overrides := map[string]any{}
	for key, value := range profile {
		if allowed[key] {
			overrides[key] = value
		}
	}

	return v.MergeConfigMap(map[string]any{"profile": overrides})
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.log_level", string(LevelInfo))
	v.SetDefault("logger.app_name", "funding-digest")

	v.SetDefault("profile.keywords", DefaultKeywords)
	v.SetDefault("profile.disciplines", DefaultDisciplines)
	v.SetDefault("profile.academic_level", string(PhDStudent))
	v.SetDefault("profile.citizenship", string(USCitizen))
	v.SetDefault("profile.score_threshold", 10)

	v.SetDefault("sources.timeout", 30*time.Second)
	v.SetDefault("sources.concurrency", 4)
	v.SetDefault("sources.user_agent", "funding-digest/1.0")
	v.SetDefault("sources.jhu_file", "data/jhu_early_career.xlsx")
	v.SetDefault("sources.jhu_stale_days", 120)

	v.SetDefault("store.backend", string(BackendJSON))
	v.SetDefault("store.path", "data/seen.json")
	v.SetDefault("store.max_age_days", 180)

	v.SetDefault("dispatch.channel", string(ChannelEmail))
	v.SetDefault("dispatch.mail.smtp_host", "smtp.gmail.com")
	v.SetDefault("dispatch.mail.smtp_port", 587)

	v.SetDefault("metrics.job_name", "funding_digest")
}

func bindEnvironmentVariables(v *viper.Viper) error {
	var errs []error

	logger, sources, store, dispatch, metrics := LoggerConfig{}, SourcesConfig{}, StoreConfig{}, DispatchConfig{}, MetricsConfig{}

	if err := logger.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("LoggerConfig: %w", err))
	}

	if err := sources.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("SourcesConfig: %w", err))
	}

	if err := store.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("StoreConfig: %w", err))
	}

	if err := dispatch.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("DispatchConfig: %w", err))
	}

	if err := metrics.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("MetricsConfig: %w", err))
	}

	if err := v.BindEnv("schedule", "SCHEDULE"); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}

func (config Config) validate() error {
	var errs []error

	if err := config.Logger.validate(); err != nil {
		errs = append(errs, fmt.Errorf("LoggerConfig: %w", err))
	}

	if err := config.Profile.validate(); err != nil {
		errs = append(errs, fmt.Errorf("ProfileConfig: %w", err))
	}

	if err := config.Sources.validate(); err != nil {
		errs = append(errs, fmt.Errorf("SourcesConfig: %w", err))
	}

	if err := config.Store.validate(); err != nil {
		errs = append(errs, fmt.Errorf("StoreConfig: %w", err))
	}

	if err := config.Dispatch.validate(); err != nil {
		errs = append(errs, fmt.Errorf("DispatchConfig: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}
