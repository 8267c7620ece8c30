// Package scheduler drives the two periodic ticks spec.md §6 names —
// threat-feed refresh and event aggregation — on the same cadence whether
// triggered by the in-process cron driver or by an operator hitting the
// matching /ops endpoint directly.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Tick is one periodic job's unit of work. Handlers and the cron driver
// both call the same Tick so a manual POST to /ops/feeds/refresh and the
// scheduled firing do identical work.
type Tick func(ctx context.Context) error

// Scheduler wraps a robfig/cron driver, logging each tick's outcome.
type Scheduler struct {
	cron *cron.Cron
	log  *logrus.Entry
}

// New returns a Scheduler using cron's standard 5-field parser.
func New(log *logrus.Entry) *Scheduler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scheduler{cron: cron.New(), log: log}
}

// Register schedules tick to run on spec, logging name and any error on
// each firing. spec is a standard 5-field cron expression (e.g. "*/15 * * * *")
// or a descriptor such as "@every 15m".
func (s *Scheduler) Register(name, spec string, tick Tick) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := tick(context.Background()); err != nil {
			s.log.WithError(err).WithField("job", name).Warn("scheduled tick failed")
			return
		}
		s.log.WithField("job", name).Debug("scheduled tick completed")
	})
	return err
}

// Start runs the scheduler's background goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler and waits for any running job to finish.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }
