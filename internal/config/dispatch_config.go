package config

import (
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelTelegram Channel = "telegram"
)

type DispatchConfig struct {
	Channel  Channel        `mapstructure:"channel"`
	Mail     MailConfig     `mapstructure:"mail"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// MailConfig is checked with Validate only when a digest is about to be sent.
type MailConfig struct {
	SMTPHost       string `mapstructure:"smtp_host" validate:"required"`
	SMTPPort       int    `mapstructure:"smtp_port" validate:"gt=0"`
	SenderEmail    string `mapstructure:"sender_email" validate:"required,email"`
	RecipientEmail string `mapstructure:"recipient_email" validate:"required,email"`
	AppPassword    string `mapstructure:"app_password" validate:"required"`
}

func (config MailConfig) Validate() error {
	return validator.New().Struct(config)
}

type TelegramConfig struct {
	Token  string `mapstructure:"token" validate:"required"`
	ChatID int64  `mapstructure:"chat_id" validate:"required"`
}

func (config TelegramConfig) Validate() error {
	return validator.New().Struct(config)
}

func (config DispatchConfig) validate() error {
	if config.Channel != ChannelEmail && config.Channel != ChannelTelegram {
		return fmt.Errorf("unknown dispatch channel %q", config.Channel)
	}
	return nil
}

func (config DispatchConfig) bindEnvironmentVariables(v *viper.Viper) error {
	bindings := map[string]string{
		"dispatch.channel":              "DISPATCH_CHANNEL",
		"dispatch.mail.sender_email":    "SENDER_EMAIL",
		"dispatch.mail.recipient_email": "RECIPIENT_EMAIL",
		"dispatch.mail.app_password":    "GMAIL_APP_PASSWORD",
		"dispatch.telegram.token":       "TELEGRAM_TOKEN",
		"dispatch.telegram.chat_id":     "TELEGRAM_CHAT_ID",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}
