package metrics

import (
	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/funding-digest/internal/events"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	ErrorsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_errors_total",
			Help: "Total number of logged errors by type.",
		},
		[]string{"type"},
	)
	FetchedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_opportunities_fetched_total",
			Help: "Opportunities returned by each source.",
		},
		[]string{"source"},
	)
	SourceFailuresCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_source_failures_total",
			Help: "Source fetches that failed and contributed nothing.",
		},
		[]string{"source"},
	)
	SourceDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "digest_source_fetch_duration_seconds",
			Help:       "Duration of each source fetch.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"source"},
	)
	DispatchCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_dispatch_total",
			Help: "Pipeline runs by final outcome.",
		},
		[]string{"outcome"},
	)
	ScoredGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "digest_opportunities_scored",
			Help: "Opportunities at or above the score threshold in the last run.",
		},
	)
	UnseenGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "digest_opportunities_unseen",
			Help: "Scored opportunities not reported before, in the last run.",
		},
	)
	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "digest_run_duration_seconds",
			Help:    "Duration of a whole pipeline run.",
			Buckets: []float64{5, 15, 30, 60, 120, 300},
		},
	)
)

var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(ErrorsCounter, FetchedCounter, SourceFailuresCounter, SourceDuration,
		DispatchCounter, ScoredGauge, UnseenGauge, RunDuration)
}

// Subscribe feeds pipeline events into the collectors.
func Subscribe(bus EventBus.Bus) error {
	if err := bus.Subscribe(events.SourceFetchedTopic, onSourceFetched); err != nil {
		return err
	}
	return bus.Subscribe(events.RunFinishedTopic, onRunFinished)
}

func onSourceFetched(event events.SourceFetched) {
	SourceDuration.WithLabelValues(event.Source).Observe(event.Duration.Seconds())
	if event.Skipped {
		return
	}
	if event.Err != nil {
		SourceFailuresCounter.WithLabelValues(event.Source).Inc()
		return
	}
	FetchedCounter.WithLabelValues(event.Source).Add(float64(event.Count))
}

func onRunFinished(event events.RunFinished) {
	ScoredGauge.Set(float64(event.Scored))
	UnseenGauge.Set(float64(event.Unseen))
	DispatchCounter.WithLabelValues(event.Outcome).Inc()
	RunDuration.Observe(event.Duration.Seconds())
}

// Push sends the registry to a Prometheus Pushgateway; a batch job has no scrape endpoint.
func Push(url, job string) error {
	if url == "" {
		return nil
	}
	err := push.New(url, job).Gatherer(Registry).Push()
	return errors.Wrapf(err, "push metrics to %s", url)
}
