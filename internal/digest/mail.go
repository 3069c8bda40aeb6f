package digest

import (
	"context"
	"github.com/maxaizer/funding-digest/internal/config"
	"github.com/maxaizer/funding-digest/internal/entities"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
	"time"
)

type mailDialer interface {
	DialAndSend(messages ...*gomail.Message) error
}

// MailSender delivers the digest as one multipart e-mail over SMTP with STARTTLS.
type MailSender struct {
	cfg       config.MailConfig
	newDialer func(cfg config.MailConfig) mailDialer
	now       func() time.Time
	log       logrus.FieldLogger
}

func NewMailSender(cfg config.MailConfig, log logrus.FieldLogger) *MailSender {
	return &MailSender{
		cfg: cfg,
		newDialer: func(cfg config.MailConfig) mailDialer {
			return gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SenderEmail, cfg.AppPassword)
		},
		now: time.Now,
		log: log.WithField("component", "mail"),
	}
}

func (s *MailSender) Send(ctx context.Context, opportunities []entities.ScoredOpportunity) error {
	if err := s.cfg.Validate(); err != nil {
		return misconfigured(err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	digest, err := Render(opportunities, entities.Today(s.now()))
	if err != nil {
		return err
	}

	message := gomail.NewMessage()
	message.SetHeader("From", s.cfg.SenderEmail)
	message.SetHeader("To", s.cfg.RecipientEmail)
	message.SetHeader("Subject", digest.Subject)
	message.SetBody("text/plain", digest.Text)
	message.AddAlternative("text/html", digest.HTML)

	if err := s.newDialer(s.cfg).DialAndSend(message); err != nil {
		return errors.Wrapf(err, "send mail via %s", s.cfg.SMTPHost)
	}

	s.log.WithFields(logrus.Fields{"to": s.cfg.RecipientEmail, "count": len(opportunities)}).Info("digest e-mail sent")
	return nil
}
