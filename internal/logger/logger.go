package logger

import (
	"context"
	"github.com/maxaizer/funding-digest/internal/config"
	"github.com/maxaizer/funding-digest/pkg/loki"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
	"io"
	"os"
	"path/filepath"
)

const ErrorTypeField = "error_type"

const (
	ErrorTypeSource   = "source"
	ErrorTypeStore    = "store"
	ErrorTypeDispatch = "dispatch"
	ErrorTypeConfig   = "config"
)

// New builds the run logger. The returned cleanup flushes pending loki batches and closes the log file.
func New(ctx context.Context, cfg config.LoggerConfig) (*logrus.Logger, func(), error) {
	log := logrus.New()
	log.SetLevel(parseLevel(cfg.LogLevel))
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000 -0700",
	})

	cleanups := []func(){}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var out io.Writer = os.Stdout
	if cfg.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputFile), 0755); err != nil {
			return nil, nil, err
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.OutputFile,
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
		cleanups = append(cleanups, func() { _ = rotator.Close() })
		out = io.MultiWriter(os.Stdout, rotator)
	}
	log.SetOutput(out)

	addPrometheusHook(log)

	if cfg.LokiURL != "" {
		pusher, err := addLokiHook(ctx, log, loki.Config{
			Url:      cfg.LokiURL,
			Username: cfg.LokiUser,
			Password: cfg.LokiPassword,
			Labels:   map[string]string{"app": cfg.AppName},
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, pusher.Stop)
	}

	return log, cleanup, nil
}

func parseLevel(level config.LogLevel) logrus.Level {
	switch level {
	case config.LevelDebug:
		return logrus.DebugLevel
	case config.LevelWarning:
		return logrus.WarnLevel
	case config.LevelError:
		return logrus.ErrorLevel
	case config.LevelFatal:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}
