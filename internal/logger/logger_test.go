package logger

import (
	"context"
	"github.com/maxaizer/funding-digest/internal/config"
	"github.com/maxaizer/funding-digest/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func Test_New_WritesToRotatingFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "digest.log")

	log, cleanup, err := New(context.Background(), config.LoggerConfig{LogLevel: config.LevelDebug, OutputFile: file})
	require.NoError(t, err)

	log.WithField("count", 3).Debug("fetched opportunities")
	cleanup()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "fetched opportunities")
	assert.Contains(t, string(data), "count=3")
}

func Test_New_LevelFromConfig(t *testing.T) {
	for level, expected := range map[config.LogLevel]logrus.Level{
		config.LevelDebug:   logrus.DebugLevel,
		config.LevelInfo:    logrus.InfoLevel,
		config.LevelWarning: logrus.WarnLevel,
		config.LevelError:   logrus.ErrorLevel,
		"":                  logrus.InfoLevel,
	} {
		log, cleanup, err := New(context.Background(), config.LoggerConfig{LogLevel: level})
		require.NoError(t, err)
		assert.Equal(t, expected, log.GetLevel(), "level %q", level)
		cleanup()
	}
}

func Test_PrometheusHook_CountsErrorsByType(t *testing.T) {
	log, cleanup, err := New(context.Background(), config.LoggerConfig{LogLevel: config.LevelInfo})
	require.NoError(t, err)
	defer cleanup()
	log.SetOutput(io.Discard)

	storeBefore := testutil.ToFloat64(metrics.ErrorsCounter.WithLabelValues(ErrorTypeStore))
	unknownBefore := testutil.ToFloat64(metrics.ErrorsCounter.WithLabelValues("unknown"))

	log.WithField(ErrorTypeField, ErrorTypeStore).Error("write failed")
	log.WithField(ErrorTypeField, ErrorTypeStore).Warn("read failed")
	log.Error("no type")

	assert.Equal(t, storeBefore+1, testutil.ToFloat64(metrics.ErrorsCounter.WithLabelValues(ErrorTypeStore)))
	assert.Equal(t, unknownBefore+1, testutil.ToFloat64(metrics.ErrorsCounter.WithLabelValues("unknown")))
}

func Test_New_LokiHookFlushesOnCleanup(t *testing.T) {
	var pushes atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushes.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	log, cleanup, err := New(ctx, config.LoggerConfig{
		LogLevel: config.LevelInfo,
		AppName:  "funding-digest",
		LokiURL:  server.URL + "/loki/api/v1/push",
	})
	require.NoError(t, err)
	log.SetOutput(io.Discard)

	log.Info("run finished")
	// a signal cancels main's context before the deferred cleanup runs
	cancel()
	log.Info("Shutting down scheduler...")
	cleanup()

	assert.Equal(t, int32(1), pushes.Load())
}

func Test_New_RejectsInvalidLokiURL(t *testing.T) {
	_, _, err := New(context.Background(), config.LoggerConfig{LogLevel: config.LevelInfo, LokiURL: "not a url"})
	assert.Error(t, err)
}
