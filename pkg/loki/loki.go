package loki

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"github.com/go-playground/validator/v10"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"
)

type Reporter interface {
	Error(msg string, args ...any)
}

type Config struct {

	// Url of the loki push endpoint, e.g. https://example-prod.grafana.net/loki/api/v1/push
	Url string `validate:"required,url"`

	// TenantKey and TenantValue set an optional tenant header for multi-tenant installations.
	TenantKey   string
	TenantValue string

	// BatchMaxSize is the maximum number of lines sent in one request.
	BatchMaxSize int `validate:"gte=1"`

	// BatchMaxWait is the maximum time a line waits before being sent.
	BatchMaxWait time.Duration `validate:"gte=1"`

	// Labels are attached to every stream; the line level is added as the "level" label.
	Labels map[string]string

	Username string
	Password string
}

func (cfg *Config) setDefaults() {
	if cfg.BatchMaxSize == 0 {
		cfg.BatchMaxSize = 500
	}
	if cfg.BatchMaxWait == 0 {
		cfg.BatchMaxWait = 5 * time.Second
	}
	if cfg.Labels == nil {
		cfg.Labels = map[string]string{}
	}
}

type LogEntry struct {
	Level   string
	Message string
	Fields  map[string]string
	Time    time.Time
}

type pushRequest struct {
	Streams []stream `json:"streams"`
}

type stream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

type Pusher struct {
	config   Config
	ctx      context.Context
	cancel   context.CancelFunc
	client   *http.Client
	entries  chan LogEntry
	quit     chan struct{}
	stopOnce sync.Once
	done     sync.WaitGroup
	batch    []LogEntry
	reporter Reporter
}

// New starts the background sender. Cancelling ctx does not stop it: the pusher lives until Stop,
// so lines logged during shutdown are still delivered.
func New(ctx context.Context, cfg Config, reporter Reporter) (*Pusher, error) {
	cfg.setDefaults()
	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p := &Pusher{
		config:   cfg,
		ctx:      ctx,
		cancel:   cancel,
		client:   &http.Client{Timeout: 10 * time.Second},
		entries:  make(chan LogEntry, cfg.BatchMaxSize),
		quit:     make(chan struct{}),
		batch:    make([]LogEntry, 0, cfg.BatchMaxSize),
		reporter: reporter,
	}

	p.done.Add(1)
	go p.run()
	return p, nil
}

// Push queues an entry. Entries pushed after Stop are dropped.
func (p *Pusher) Push(e LogEntry) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	select {
	case <-p.quit:
	case p.entries <- e:
	}
}

// Stop flushes the pending batch and waits for the background sender.
func (p *Pusher) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
		p.done.Wait()
		p.cancel()
	})
}

func (p *Pusher) run() {
	defer p.done.Done()

	ticker := time.NewTicker(p.config.BatchMaxWait)
	defer ticker.Stop()

	flush := func() {
		if len(p.batch) == 0 {
			return
		}
		if err := p.send(p.batch); err != nil {
			p.reporter.Error("failed to send logs", "error", err)
		}
		p.batch = p.batch[:0]
	}

	for {
		select {
		case <-p.quit:
			for {
				select {
				case entry := <-p.entries:
					p.batch = append(p.batch, entry)
				default:
					flush()
					return
				}
			}
		case entry := <-p.entries:
			p.batch = append(p.batch, entry)
			if len(p.batch) >= p.config.BatchMaxSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (p *Pusher) buildRequest(entries []LogEntry) pushRequest {
	byLevel := map[string][][2]string{}
	for _, entry := range entries {
		line := map[string]any{"msg": entry.Message}
		for key, value := range entry.Fields {
			line[key] = value
		}
		encoded, err := json.Marshal(line)
		if err != nil {
			continue
		}
		byLevel[entry.Level] = append(byLevel[entry.Level],
			[2]string{strconv.FormatInt(entry.Time.UnixNano(), 10), string(encoded)})
	}

	levels := make([]string, 0, len(byLevel))
	for level := range byLevel {
		levels = append(levels, level)
	}
	sort.Strings(levels)

	request := pushRequest{}
	for _, level := range levels {
		labels := make(map[string]string, len(p.config.Labels)+1)
		for key, value := range p.config.Labels {
			labels[key] = value
		}
		labels["level"] = level
		request.Streams = append(request.Streams, stream{Stream: labels, Values: byLevel[level]})
	}
	return request
}

func (p *Pusher) send(entries []LogEntry) error {
	buf := &bytes.Buffer{}
	gz := gzip.NewWriter(buf)

	if err := json.NewEncoder(gz).Encode(p.buildRequest(entries)); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(p.ctx, http.MethodPost, p.config.Url, buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")

	if p.config.TenantKey != "" {
		req.Header.Set(p.config.TenantKey, p.config.TenantValue)
	}
	if p.config.Username != "" && p.config.Password != "" {
		req.SetBasicAuth(p.config.Username, p.config.Password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected response code from loki: %s, body: %s", resp.Status, string(body))
	}
	return nil
}
