package digest

import (
	"context"
	"fmt"
	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maxaizer/funding-digest/internal/config"
	"github.com/maxaizer/funding-digest/internal/entities"
	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"html"
	"strings"
	"time"
	"unicode/utf8"
)

const telegramMessageLimit = 4096

type apiInterface interface {
	Send(chattable botApi.Chattable) (botApi.Message, error)
}

// TelegramSender posts the digest to one chat, split into as few messages as the size limit allows.
type TelegramSender struct {
	cfg    config.TelegramConfig
	newAPI func(token string) (apiInterface, error)
	now    func() time.Time
	log    logrus.FieldLogger
}

func NewTelegramSender(cfg config.TelegramConfig, log logrus.FieldLogger) *TelegramSender {
	return &TelegramSender{
		cfg: cfg,
		newAPI: func(token string) (apiInterface, error) {
			api, err := botApi.NewBotAPI(token)
			if err != nil {
				return nil, err
			}
			return api, nil
		},
		now: time.Now,
		log: log.WithField("component", "telegram"),
	}
}

func (s *TelegramSender) Send(ctx context.Context, opportunities []entities.ScoredOpportunity) error {
	if err := s.cfg.Validate(); err != nil {
		return misconfigured(err)
	}

	api, err := s.newAPI(s.cfg.Token)
	if err != nil {
		return errors.Wrap(err, "telegram authorization")
	}

	header := "<b>" + html.EscapeString(Subject(len(opportunities), entities.Today(s.now()))) + "</b>"
	blocks := make([]string, 0, len(opportunities))
	for i, o := range opportunities {
		blocks = append(blocks, telegramBlock(i+1, o))
	}

	messages := chunk(header, blocks, telegramMessageLimit)
	for i, text := range messages {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg := botApi.NewMessage(s.cfg.ChatID, text)
		msg.ParseMode = botApi.ModeHTML
		msg.DisableWebPagePreview = true

		if _, err := api.Send(msg); err != nil {
			return errors.Wrapf(err, "send telegram message %d of %d", i+1, len(messages))
		}
	}

	s.log.WithFields(logrus.Fields{"chat_id": s.cfg.ChatID, "messages": len(messages)}).Info("digest sent to telegram")
	return nil
}

func telegramBlock(n int, o entities.ScoredOpportunity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d. <a href=\"%s\">%s</a> (score %d)\n", n, html.EscapeString(o.URL), html.EscapeString(o.Title), o.Score)
	if o.Organization != "" {
		fmt.Fprintf(&b, "%s\n", html.EscapeString(o.Organization))
	}
	fmt.Fprintf(&b, "Deadline: %s | %s\n", deadline(o.Opportunity), html.EscapeString(o.Source))
	if o.Amount != "" {
		fmt.Fprintf(&b, "Amount: %s\n", html.EscapeString(o.Amount))
	}
	if o.Notes != "" {
		fmt.Fprintf(&b, "<i>%s</i>\n", html.EscapeString(o.Notes))
	}
	return b.String()
}

// chunk packs the header and blocks into messages of at most limit characters, never splitting a block.
// A block that alone exceeds the limit is sent as plain truncated text.
func chunk(header string, blocks []string, limit int) []string {
	var messages []string
	current := header

	for _, block := range blocks {
		if utf8.RuneCountInString(block) > limit-1 {
			block = truncateEscaped(stripTags(block), limit/2)
		}
		if utf8.RuneCountInString(current)+1+utf8.RuneCountInString(block) > limit {
			messages = append(messages, current)
			current = block
			continue
		}
		if current == "" {
			current = block
		} else {
			current += "\n" + block
		}
	}

	if current != "" {
		messages = append(messages, current)
	}
	return messages
}

// truncateEscaped HTML-escapes s and cuts it to at most n characters of escaped text, never inside an entity.
func truncateEscaped(s string, n int) string {
	escaped := html.EscapeString(s)
	if utf8.RuneCountInString(escaped) <= n {
		return escaped
	}

	var b strings.Builder
	width := 0
	for _, r := range s {
		piece := html.EscapeString(string(r))
		pieceWidth := utf8.RuneCountInString(piece)
		if width+pieceWidth > n-3 {
			break
		}
		b.WriteString(piece)
		width += pieceWidth
	}
	return b.String() + "..."
}

var tagPolicy = bluemonday.StrictPolicy()

func stripTags(s string) string {
	return html.UnescapeString(tagPolicy.Sanitize(s))
}
