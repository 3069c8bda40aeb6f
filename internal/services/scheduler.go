package services

import (
	"context"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler triggers a job on a cron spec. A tick that arrives while the previous run is still going is skipped.
type Scheduler struct {
	cron    *cron.Cron
	stopJob context.CancelFunc
	log     logrus.FieldLogger
}

func NewScheduler(spec string, job func(ctx context.Context), log logrus.FieldLogger) (*Scheduler, error) {
	if spec == "" {
		return nil, errors.New("schedule must not be empty")
	}

	log = log.WithField("component", "scheduler")
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{log}),
			cron.SkipIfStillRunning(cronLogger{log}),
		)),
		log: log,
	}

	ctx, cancel := context.WithCancel(context.Background())
	_, err := s.cron.AddFunc(spec, func() { job(ctx) })
	if err != nil {
		cancel()
		return nil, errors.Wrapf(err, "invalid schedule %q", spec)
	}

	s.stopJob = cancel
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop cancels a run in progress and waits for it to return.
func (s *Scheduler) Stop() {
	s.stopJob()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Warn(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Errorf("%s: %v", msg, err)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	result := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			result[key] = keysAndValues[i+1]
		}
	}
	return result
}
