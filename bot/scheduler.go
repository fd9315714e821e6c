package bot

import (
	"context"
	"errors"
	"fmt"

	"devtracker-bot/config"
	"devtracker-bot/tracker"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Refresher runs one refresh cycle.
type Refresher interface {
	Refresh(ctx context.Context) (*tracker.CycleReport, error)
}

// Pruner drops seen-set rows of games nobody follows.
type Pruner interface {
	PruneSeenPosts(ctx context.Context) (int64, error)
}

// Recorder keeps the outcome of each cycle.
type Recorder interface {
	Record(report *tracker.CycleReport, err error)
}

// Scheduler runs the refresh and prune jobs. A refresh that is still
// running when the next tick fires makes that tick a no-op.
type Scheduler struct {
	cron     *cron.Cron
	refresh  cron.Job
	cfg      config.TrackerConfig
	tracker  Refresher
	pruner   Pruner
	recorder Recorder
	log      *logrus.Entry
	ctx      context.Context
}

func NewScheduler(cfg config.TrackerConfig, r Refresher, p Pruner, rec Recorder, log *logrus.Entry) (*Scheduler, error) {
	logger := cronLogger{log}
	s := &Scheduler{
		cron:     cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger))),
		cfg:      cfg,
		tracker:  r,
		pruner:   p,
		recorder: rec,
		log:      log,
		ctx:      context.Background(),
	}
	// The same wrapped job serves the ticks and RunRefresh, so they share
	// the skip-if-running guard.
	s.refresh = cron.NewChain(cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(s.runRefresh))

	if _, err := s.cron.AddJob(cfg.Schedule, s.refresh); err != nil {
		return nil, fmt.Errorf("could not schedule refresh %q: %w", cfg.Schedule, err)
	}
	if cfg.PruneSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.PruneSchedule, s.runPrune); err != nil {
			return nil, fmt.Errorf("could not schedule prune %q: %w", cfg.PruneSchedule, err)
		}
	}
	return s, nil
}

// Start starts the cron jobs and, if configured, a first refresh right away.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	s.log.Infof("Refresh scheduled %q, prune scheduled %q.", s.cfg.Schedule, s.cfg.PruneSchedule)

	if s.cfg.RefreshAtStartup {
		s.log.Info("Performing initial refresh on startup...")
		go s.RunRefresh()
	} else {
		s.log.Info("Skipping initial refresh on startup as per configuration.")
	}
}

// RunRefresh runs a refresh now unless one is already running.
func (s *Scheduler) RunRefresh() {
	s.refresh.Run()
}

// Stop stops the cron jobs and waits for running ones to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped.")
}

func (s *Scheduler) runRefresh() {
	report, err := s.tracker.Refresh(s.ctx)
	s.recorder.Record(report, err)
	switch {
	case errors.Is(err, tracker.ErrNoPosts):
		// Already logged by the tracker.
	case err != nil:
		s.log.WithError(err).Error("Refresh failed")
	}
}

func (s *Scheduler) runPrune() {
	n, err := s.pruner.PruneSeenPosts(s.ctx)
	if err != nil {
		s.log.WithError(err).Error("Pruning seen posts failed")
		return
	}
	s.log.Infof("Pruned %d seen posts of unfollowed games.", n)
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	log *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).WithError(err).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
