package services

import (
	"context"
	"fmt"
	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/funding-digest/internal/config"
	"github.com/maxaizer/funding-digest/internal/entities"
	"github.com/maxaizer/funding-digest/internal/events"
	"github.com/maxaizer/funding-digest/internal/logger"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"time"
)

var (
	ErrDispatchFailed = errors.New("digest dispatch failed")
	ErrStateWrite     = errors.New("seen store write failed")
)

type Outcome string

const (
	OutcomeNothingNew       Outcome = "nothing_new"
	OutcomeDispatched       Outcome = "dispatched"
	OutcomeDispatchFailed   Outcome = "dispatch_failed"
	OutcomeStateWriteFailed Outcome = "state_write_failed"
)

type RunReport struct {
	RunID      string
	Fetched    int
	Scored     int
	Unseen     int
	Dispatched int
	Outcome    Outcome
}

type opportunityFetcher interface {
	FetchAll(ctx context.Context) []entities.Opportunity
}

type seenStore interface {
	Load(ctx context.Context) entities.SeenIDs
	Save(ctx context.Context, seen entities.SeenIDs) error
}

type digestDispatcher interface {
	Send(ctx context.Context, opportunities []entities.ScoredOpportunity) error
}

type stage int

const (
	stageFetch stage = iota
	stageScoreFilter
	stageDedup
	stageDispatch
	stageRecord
	stageDone
)

var stageNames = map[stage]string{
	stageFetch:       "fetch",
	stageScoreFilter: "score_filter",
	stageDedup:       "dedup",
	stageDispatch:    "dispatch",
	stageRecord:      "record",
}

// Pipeline runs fetch, scoring, dedup and dispatch in a fixed order.
// The seen store is written only after the digest went out.
type Pipeline struct {
	fetcher    opportunityFetcher
	store      seenStore
	dispatcher digestDispatcher
	profile    config.ProfileConfig
	bus        EventBus.Bus
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewPipeline(fetcher opportunityFetcher, store seenStore, dispatcher digestDispatcher,
	profile config.ProfileConfig, bus EventBus.Bus, log logrus.FieldLogger) *Pipeline {

	return &Pipeline{
		fetcher:    fetcher,
		store:      store,
		dispatcher: dispatcher,
		profile:    profile,
		bus:        bus,
		log:        log.WithField("component", "pipeline"),
		now:        time.Now,
	}
}

func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
}

type runState struct {
	opportunities []entities.Opportunity
	scored        []entities.ScoredOpportunity
	unseen        []entities.ScoredOpportunity
	seen          entities.SeenIDs
}

// Run executes one pipeline run. The returned error wraps ErrDispatchFailed or ErrStateWrite;
// a run that finds nothing new is a success.
func (p *Pipeline) Run(ctx context.Context, runID string) (RunReport, error) {
	start := p.now()
	log := p.log.WithField("run_id", runID)
	report := RunReport{RunID: runID}
	state := runState{}

	var runErr error
	current := stageFetch

	for current != stageDone {
		log.Debugf("entering stage %s", stageNames[current])

		switch current {
		case stageFetch:
			state.opportunities = p.fetcher.FetchAll(ctx)
			report.Fetched = len(state.opportunities)
			log.WithField("count", report.Fetched).Info("fetched opportunities")
			current = stageScoreFilter

		case stageScoreFilter:
			state.scored = ScoreAndFilter(state.opportunities, p.profile)
			report.Scored = len(state.scored)
			log.WithFields(logrus.Fields{"count": report.Scored, "threshold": p.profile.ScoreThreshold}).
				Info("scored opportunities")
			current = stageDedup

		case stageDedup:
			state.seen = p.store.Load(ctx)
			state.unseen = FilterNew(state.scored, state.seen)
			report.Unseen = len(state.unseen)
			log.WithFields(logrus.Fields{"count": report.Unseen, "known": len(state.seen)}).Info("filtered seen opportunities")

			if report.Unseen == 0 {
				report.Outcome = OutcomeNothingNew
				current = stageDone
			} else {
				current = stageDispatch
			}

		case stageDispatch:
			if err := p.dispatcher.Send(ctx, state.unseen); err != nil {
				report.Outcome = OutcomeDispatchFailed
				runErr = fmt.Errorf("%w: %w", ErrDispatchFailed, err)
				log.WithField(logger.ErrorTypeField, logger.ErrorTypeDispatch).Errorf("dispatch failed: %v", err)
				current = stageDone
				break
			}
			report.Dispatched = len(state.unseen)
			current = stageRecord

		case stageRecord:
			updated := MarkSeen(state.unseen, state.seen, entities.Today(p.now()))
			if err := p.store.Save(ctx, updated); err != nil {
				report.Outcome = OutcomeStateWriteFailed
				runErr = fmt.Errorf("%w: %w", ErrStateWrite, err)
				log.WithField(logger.ErrorTypeField, logger.ErrorTypeStore).
					Errorf("digest was sent but seen ids were not saved, next run may repeat it: %v", err)
			} else {
				report.Outcome = OutcomeDispatched
			}
			current = stageDone
		}
	}

	p.finish(log, report, p.now().Sub(start))
	return report, runErr
}

func (p *Pipeline) finish(log logrus.FieldLogger, report RunReport, duration time.Duration) {
	log.WithFields(logrus.Fields{
		"fetched":    report.Fetched,
		"scored":     report.Scored,
		"unseen":     report.Unseen,
		"dispatched": report.Dispatched,
		"outcome":    report.Outcome,
		"duration":   duration.Round(time.Millisecond),
	}).Info("run finished")

	if p.bus != nil {
		p.bus.Publish(events.RunFinishedTopic, events.RunFinished{
			RunID:      report.RunID,
			Fetched:    report.Fetched,
			Scored:     report.Scored,
			Unseen:     report.Unseen,
			Dispatched: report.Dispatched,
			Outcome:    string(report.Outcome),
			Duration:   duration,
		})
	}
}
