// Package scheduler runs the periodic feed refresh (and optional preview
// capture) on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "volcal/internal/log"
)

// Refresher refreshes event feeds.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Job is an extra step run after every refresh (e.g. preview capture).
type Job func(ctx context.Context) error

// Scheduler runs Refresher.Refresh, then each follow-up job, on a cron spec.
// Runs never overlap: a tick that fires while a run is in progress is
// skipped.
type Scheduler struct {
	spec      string
	refresher Refresher
	after     []Job
	timeout   time.Duration

	cron *cron.Cron

	mu      sync.Mutex
	running bool
}

// New validates spec and builds a scheduler. Standard 5-field specs and
// descriptors such as "@every 10m" are accepted.
func New(spec string, r Refresher, after ...Job) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("scheduler: invalid spec %q: %w", spec, err)
	}
	return &Scheduler{
		spec:      spec,
		refresher: r,
		after:     after,
		timeout:   2 * time.Minute,
		cron:      cron.New(),
	}, nil
}

// Start registers the job and starts the cron loop. The first refresh runs
// immediately in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("scheduler: add job: %w", err)
	}
	s.cron.Start()
	appLog.Info("scheduler started", "spec", s.spec)

	go s.RunOnce(ctx)
	return nil
}

// Stop stops the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	appLog.Info("scheduler stopped")
}

// RunOnce performs one refresh followed by the follow-up jobs. It reports
// false when another run was already in progress.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		appLog.Warn("scheduler: previous run still in progress; skipping")
		return false
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if ctx.Err() != nil {
		return true
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	if err := s.refresher.Refresh(runCtx); err != nil {
		// Partial failures still leave usable data; keep going.
		appLog.Error("scheduled refresh failed", err)
	}
	for i, job := range s.after {
		if err := job(runCtx); err != nil {
			appLog.Error("scheduled follow-up job failed", err, "job", i)
		}
	}
	appLog.Debug("scheduled run finished", "elapsed", time.Since(started).String())
	return true
}
