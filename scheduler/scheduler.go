package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"rentwatch/models"
)

const DefaultInterval = 10 * time.Minute

// Monitor is the tick the scheduler drives for each user.
type Monitor interface {
	RunTick(ctx context.Context, userID int64) (*models.TickRun, error)
	Reset(ctx context.Context, userID int64) error
}

// job is one user's recurring tick. mu is held for the duration of a tick,
// which keeps ticks of the same user strictly sequential.
type job struct {
	userID  int64
	mu      sync.Mutex
	stopped bool
}

// Scheduler keeps at most one monitoring job per user.
type Scheduler struct {
	ctx      context.Context
	runner   Runner
	monitor  Monitor
	interval time.Duration

	mu       sync.Mutex
	jobs     map[int64]*job
	draining map[int64]chan struct{}
}

// New creates a scheduler whose ticks run with ctx.
func New(ctx context.Context, runner Runner, monitor Monitor, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		ctx:      ctx,
		runner:   runner,
		monitor:  monitor,
		interval: interval,
		jobs:     make(map[int64]*job),
		draining: make(map[int64]chan struct{}),
	}
}

func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

func jobKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// Start registers a job for userID that ticks immediately and then every
// interval. It returns false when the user is already being monitored.
func (s *Scheduler) Start(userID int64) (bool, error) {
	for {
		s.mu.Lock()
		if _, ok := s.jobs[userID]; ok {
			s.mu.Unlock()
			return false, nil
		}
		// A stop still waiting for its last tick must finish resetting
		// before a new job may begin.
		if done, ok := s.draining[userID]; ok {
			s.mu.Unlock()
			<-done
			continue
		}

		j := &job{userID: userID}
		if err := s.runner.Register(jobKey(userID), s.interval, true, func() { s.tick(j) }); err != nil {
			s.mu.Unlock()
			return false, fmt.Errorf("register job for user %d: %w", userID, err)
		}
		s.jobs[userID] = j
		s.mu.Unlock()

		slog.Info("monitoring started", "user_id", userID, "interval", s.interval)
		return true, nil
	}
}

// Stop cancels the user's job, waits for a tick in progress and then clears
// the user's seen state. The reset is applied last so a finishing tick cannot
// write a marker after it. Stop on a user without a job only resets.
func (s *Scheduler) Stop(ctx context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	j, ok := s.jobs[userID]
	if !ok {
		s.mu.Unlock()
		return false, s.monitor.Reset(ctx, userID)
	}
	delete(s.jobs, userID)
	done := make(chan struct{})
	s.draining[userID] = done
	s.runner.Cancel(jobKey(userID))
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.draining, userID)
		close(done)
		s.mu.Unlock()
	}()

	j.mu.Lock()
	j.stopped = true
	j.mu.Unlock()

	if err := s.monitor.Reset(ctx, userID); err != nil {
		return true, err
	}
	slog.Info("monitoring stopped", "user_id", userID)
	return true, nil
}

// Reset clears the seen state of userID between ticks.
func (s *Scheduler) Reset(ctx context.Context, userID int64) error {
	s.mu.Lock()
	j, ok := s.jobs[userID]
	s.mu.Unlock()

	if ok {
		j.mu.Lock()
		defer j.mu.Unlock()
	}
	return s.monitor.Reset(ctx, userID)
}

// TickNow runs an extra tick for an active user in the background.
func (s *Scheduler) TickNow(userID int64) bool {
	s.mu.Lock()
	j, ok := s.jobs[userID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	go s.tick(j)
	return true
}

func (s *Scheduler) Active(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[userID]
	return ok
}

func (s *Scheduler) ActiveUsers() []int64 {
	s.mu.Lock()
	users := make([]int64, 0, len(s.jobs))
	for id := range s.jobs {
		users = append(users, id)
	}
	s.mu.Unlock()

	sort.Slice(users, func(i, k int) bool { return users[i] < users[k] })
	return users
}

func (s *Scheduler) tick(j *job) {
	if !j.mu.TryLock() {
		slog.Warn("previous tick still running, skipping", "user_id", j.userID)
		return
	}
	defer j.mu.Unlock()

	if j.stopped || s.ctx.Err() != nil {
		return
	}

	if _, err := s.monitor.RunTick(s.ctx, j.userID); err != nil {
		slog.Error("tick failed", "user_id", j.userID, "error", err)
	}
}

// Shutdown stops the runner and waits for ticks it is running.
func (s *Scheduler) Shutdown() {
	s.runner.Stop()
}
