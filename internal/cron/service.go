package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/bookstore-backend/pkg/logger"
	"github.com/angelmondragon/bookstore-backend/pkg/metrics"
)

const defaultInterval = time.Minute

// Job is one unit of scheduled work. A failing job never stops the others.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger   *logger.Logger
	Jobs     []Job
	Lock     Lock
	Metrics  *metrics.JobMetrics
	Interval time.Duration
	// CycleTimeout caps one cycle. It defaults to four fifths of the lock's
	// TTL so a slow cycle is cut off before its lease can expire.
	CycleTimeout time.Duration
}

// expiringLock is a Lock that is lost after a fixed TTL.
type expiringLock interface {
	TTL() time.Duration
}

// Service runs every job once per interval, starting immediately. Each cycle
// holds the lock from the first job to the last.
type Service struct {
	ServiceParams
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("cron: logger required")
	case params.Lock == nil:
		return nil, errors.New("cron: lock required")
	}
	if params.Interval <= 0 {
		params.Interval = defaultInterval
	}
	jobs := params.Jobs[:0:0]
	for _, job := range params.Jobs {
		if job != nil {
			jobs = append(jobs, job)
		}
	}
	params.Jobs = jobs
	if params.CycleTimeout <= 0 {
		if lease, ok := params.Lock.(expiringLock); ok && lease.TTL() > 0 {
			params.CycleTimeout = lease.TTL() - lease.TTL()/5
		}
	}
	return &Service{ServiceParams: params}, nil
}

// Run blocks until ctx is cancelled and returns its error.
func (s *Service) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		if err := s.cycle(ctx); err != nil {
			s.Logger.Error(ctx, "worker.cycle_failed", err)
		}
		timer.Reset(s.Interval)
	}
}

// cycle errors only when the lock cannot be consulted; job failures are
// logged and counted.
func (s *Service) cycle(ctx context.Context) error {
	acquired, err := s.Lock.Acquire(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		s.Logger.Debug(ctx, "worker.lock_held_elsewhere")
		return nil
	}
	defer func() {
		if err := s.Lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.Logger.Error(ctx, "worker.lock_release_failed", err)
		}
	}()

	if s.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.CycleTimeout)
		defer cancel()
	}

	for _, job := range s.Jobs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cycle stopped before %s: %w", job.Name(), err)
		}
		s.execute(ctx, job)
	}
	return nil
}

func (s *Service) execute(ctx context.Context, job Job) {
	name := job.Name()
	started := time.Now()
	err := job.Run(s.Logger.WithField(ctx, "job", name))
	took := time.Since(started)

	s.Metrics.ObserveDuration(name, took)
	ctx = s.Logger.WithFields(ctx, map[string]any{"job": name, "duration_ms": took.Milliseconds()})
	if err != nil {
		s.Metrics.IncRun(name, metrics.OutcomeFailed)
		s.Logger.Error(ctx, "worker.job_failed", err)
		return
	}
	s.Metrics.IncRun(name, metrics.OutcomeSuccess)
	s.Logger.Info(ctx, "worker.job_completed")
}
