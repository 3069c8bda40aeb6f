package loki

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type recordingReporter struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingReporter) Error(msg string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func Test_ConfigValidation(t *testing.T) {
	_, err := New(context.Background(), Config{}, &recordingReporter{})
	assert.Error(t, err)

	pusher, err := New(context.Background(), Config{Url: "http://localhost:3100/loki/api/v1/push"}, &recordingReporter{})
	require.NoError(t, err)
	defer pusher.Stop()

	assert.Equal(t, 500, pusher.config.BatchMaxSize)
	assert.Equal(t, 5*time.Second, pusher.config.BatchMaxWait)
	assert.Equal(t, map[string]string{}, pusher.config.Labels)
}

func Test_Pusher_StopFlushesBatchGroupedByLevel(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []pushRequest
		user     string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gz, err := gzip.NewReader(r.Body)
		require.NoError(t, err)
		var req pushRequest
		require.NoError(t, json.NewDecoder(gz).Decode(&req))

		mu.Lock()
		requests = append(requests, req)
		user, _, _ = r.BasicAuth()
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	reporter := &recordingReporter{}
	pusher, err := New(context.Background(), Config{
		Url:          server.URL,
		BatchMaxWait: time.Hour,
		Labels:       map[string]string{"app": "funding-digest"},
		Username:     "user",
		Password:     "secret",
	}, reporter)
	require.NoError(t, err)

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	pusher.Push(LogEntry{Level: "info", Message: "fetched", Fields: map[string]string{"source": "ucla"}, Time: at})
	pusher.Push(LogEntry{Level: "error", Message: "failed", Time: at})
	pusher.Push(LogEntry{Level: "info", Message: "scored", Time: at})
	pusher.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, requests, 1)
	assert.Equal(t, "user", user)
	assert.Empty(t, reporter.messages)

	streams := requests[0].Streams
	require.Len(t, streams, 2)
	assert.Equal(t, map[string]string{"app": "funding-digest", "level": "error"}, streams[0].Stream)
	assert.Equal(t, "info", streams[1].Stream["level"])
	require.Len(t, streams[1].Values, 2)
	assert.Equal(t, "1740830400000000000", streams[1].Values[0][0])
	assert.JSONEq(t, `{"msg":"fetched","source":"ucla"}`, streams[1].Values[0][1])
}

func Test_Pusher_ReportsRejectedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	reporter := &recordingReporter{}
	pusher, err := New(context.Background(), Config{Url: server.URL, BatchMaxWait: time.Hour}, reporter)
	require.NoError(t, err)

	pusher.Push(LogEntry{Level: "info", Message: "hello"})
	pusher.Stop()
	pusher.Push(LogEntry{Level: "info", Message: "dropped"})

	assert.Equal(t, []string{"failed to send logs"}, reporter.messages)
}

func Test_Pusher_FlushesAfterParentContextIsCancelled(t *testing.T) {
	var (
		mu       sync.Mutex
		messages int
		requests int
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gz, err := gzip.NewReader(r.Body)
		require.NoError(t, err)
		var req pushRequest
		require.NoError(t, json.NewDecoder(gz).Decode(&req))

		mu.Lock()
		requests++
		for _, s := range req.Streams {
			messages += len(s.Values)
		}
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	reporter := &recordingReporter{}
	pusher, err := New(ctx, Config{Url: server.URL, BatchMaxWait: time.Hour}, reporter)
	require.NoError(t, err)

	pusher.Push(LogEntry{Level: "info", Message: "run finished"})
	cancel()
	pusher.Push(LogEntry{Level: "info", Message: "Shutting down scheduler..."})
	pusher.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, requests)
	assert.Equal(t, 2, messages)
	assert.Empty(t, reporter.messages)
}
