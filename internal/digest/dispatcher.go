package digest

import (
	"context"
	"fmt"
	"github.com/maxaizer/funding-digest/internal/config"
	"github.com/maxaizer/funding-digest/internal/entities"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrMisconfigured is returned at send time when the delivery credentials are incomplete.
var ErrMisconfigured = errors.New("digest channel is not configured")

type Dispatcher interface {
	Send(ctx context.Context, opportunities []entities.ScoredOpportunity) error
}

func NewDispatcher(cfg config.DispatchConfig, log logrus.FieldLogger) (Dispatcher, error) {
	switch cfg.Channel {
	case config.ChannelEmail:
		return NewMailSender(cfg.Mail, log), nil
	case config.ChannelTelegram:
		return NewTelegramSender(cfg.Telegram, log), nil
	default:
		return nil, fmt.Errorf("unknown dispatch channel %q", cfg.Channel)
	}
}

func misconfigured(err error) error {
	return fmt.Errorf("%w: %w", ErrMisconfigured, err)
}
