package logger

import (
	"context"
	"fmt"
	"github.com/maxaizer/funding-digest/pkg/loki"
	"github.com/sirupsen/logrus"
	"os"
)

// loki reports its own failures to stderr; routing them through the logger would loop back into the hook.
type stderrReporter struct{}

func (stderrReporter) Error(msg string, args ...any) {
	_, _ = fmt.Fprintln(os.Stderr, append([]any{"loki:", msg}, args...)...)
}

type lokiHook struct {
	pusher *loki.Pusher
	levels []logrus.Level
}

func (h *lokiHook) Fire(entry *logrus.Entry) error {
	fields := make(map[string]string, len(entry.Data))
	for key, value := range entry.Data {
		fields[key] = fmt.Sprint(value)
	}

	h.pusher.Push(loki.LogEntry{
		Level:   entry.Level.String(),
		Message: entry.Message,
		Fields:  fields,
		Time:    entry.Time,
	})
	return nil
}

func (h *lokiHook) Levels() []logrus.Level {
	return h.levels
}

func addLokiHook(ctx context.Context, log *logrus.Logger, cfg loki.Config) (*loki.Pusher, error) {
	pusher, err := loki.New(ctx, cfg, stderrReporter{})
	if err != nil {
		return nil, err
	}

	var levels []logrus.Level
	for _, level := range logrus.AllLevels {
		if level <= log.GetLevel() {
			levels = append(levels, level)
		}
	}

	log.AddHook(&lokiHook{pusher: pusher, levels: levels})
	log.Info("Loki logging enabled")
	return pusher, nil
}
