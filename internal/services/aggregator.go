package services

import (
	"context"
	"fmt"
	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/funding-digest/internal/entities"
	"github.com/maxaizer/funding-digest/internal/events"
	"github.com/maxaizer/funding-digest/internal/logger"
	"github.com/maxaizer/funding-digest/internal/sources"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"time"
)

type Aggregator struct {
	sources     []sources.Source
	timeout     time.Duration
	concurrency int
	bus         EventBus.Bus
	log         logrus.FieldLogger
}

func NewAggregator(srcs []sources.Source, timeout time.Duration, concurrency int,
	bus EventBus.Bus, log logrus.FieldLogger) *Aggregator {

	if concurrency <= 0 {
		concurrency = 1
	}
	return &Aggregator{
		sources:     srcs,
		timeout:     timeout,
		concurrency: concurrency,
		bus:         bus,
		log:         log.WithField("component", "aggregator"),
	}
}

type fetchResult struct {
	opportunities []entities.Opportunity
	err           error
}

// FetchAll invokes every source once and concatenates the results in source order.
// A failing source contributes nothing; FetchAll itself never fails.
func (a *Aggregator) FetchAll(ctx context.Context) []entities.Opportunity {
	results := make([]fetchResult, len(a.sources))

	group := errgroup.Group{}
	group.SetLimit(a.concurrency)

	for i, source := range a.sources {
		group.Go(func() error {
			start := time.Now()
			opportunities, err := a.fetchOne(ctx, source)
			results[i] = fetchResult{opportunities: opportunities, err: err}
			a.report(source.Name(), opportunities, err, time.Since(start))
			return nil
		})
	}
	_ = group.Wait()

	var all []entities.Opportunity
	for _, result := range results {
		all = append(all, result.opportunities...)
	}
	return all
}

// fetchOne bounds the call by the per-source timeout even when the source ignores its context.
func (a *Aggregator) fetchOne(ctx context.Context, source sources.Source) ([]entities.Opportunity, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		opportunities, err := source.Fetch(ctx)
		done <- fetchResult{opportunities: opportunities, err: err}
	}()

	select {
	case result := <-done:
		if result.err != nil {
			return nil, result.err
		}
		return result.opportunities, nil
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "no response within %v", a.timeout)
	}
}

func (a *Aggregator) report(name string, opportunities []entities.Opportunity, err error, duration time.Duration) {
	entry := a.log.WithFields(logrus.Fields{"source": name, "duration": duration.Round(time.Millisecond)})

	switch {
	case errors.Is(err, sources.ErrSourceFileMissing):
		entry.Infof("source skipped: %v", err)
	case err != nil:
		entry.WithField(logger.ErrorTypeField, logger.ErrorTypeSource).Errorf("source failed: %v", err)
	default:
		entry.WithField("count", len(opportunities)).Info("source fetched")
	}

	if a.bus != nil {
		a.bus.Publish(events.SourceFetchedTopic, events.SourceFetched{
			Source:   name,
			Count:    len(opportunities),
			Err:      err,
			Skipped:  errors.Is(err, sources.ErrSourceFileMissing),
			Duration: duration,
		})
	}
}
