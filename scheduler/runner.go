package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner executes keyed recurring jobs. Cancel stops future runs of a key but
// does not wait for a run in progress.
type Runner interface {
	Register(key string, every time.Duration, runNow bool, fn func()) error
	Cancel(key string)
	Start()
	Stop()
}

// CronRunner schedules jobs on a robfig/cron instance with constant-delay
// schedules.
type CronRunner struct {
	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func NewCronRunner() *CronRunner {
	return &CronRunner{
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
	}
}

func (r *CronRunner) Register(key string, every time.Duration, runNow bool, fn func()) error {
	if every < time.Second {
		return fmt.Errorf("interval %s below cron resolution", every)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; ok {
		return fmt.Errorf("job %s already registered", key)
	}
	r.entries[key] = r.cron.Schedule(cron.Every(every), cron.FuncJob(fn))

	if runNow {
		go fn()
	}
	return nil
}

func (r *CronRunner) Cancel(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.entries[key]; ok {
		r.cron.Remove(id)
		delete(r.entries, key)
	}
}

func (r *CronRunner) Start() {
	r.cron.Start()
}

// Stop halts the cron loop and waits for running jobs.
func (r *CronRunner) Stop() {
	<-r.cron.Stop().Done()
}

// TickerRunner runs each job on its own time.Ticker goroutine.
type TickerRunner struct {
	mu    sync.Mutex
	stops map[string]chan struct{}
	wg    sync.WaitGroup
}

func NewTickerRunner() *TickerRunner {
	return &TickerRunner{stops: make(map[string]chan struct{})}
}

func (r *TickerRunner) Register(key string, every time.Duration, runNow bool, fn func()) error {
	if every <= 0 {
		return fmt.Errorf("invalid interval %s", every)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stops[key]; ok {
		return fmt.Errorf("job %s already registered", key)
	}
	stopCh := make(chan struct{})
	r.stops[key] = stopCh

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if runNow {
			fn()
		}
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-stopCh:
				return
			}
		}
	}()
	return nil
}

func (r *TickerRunner) Cancel(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stopCh, ok := r.stops[key]; ok {
		close(stopCh)
		delete(r.stops, key)
	}
}

func (r *TickerRunner) Start() {}

// Stop cancels every job and waits for their goroutines to exit.
func (r *TickerRunner) Stop() {
	r.mu.Lock()
	for key, stopCh := range r.stops {
		close(stopCh)
		delete(r.stops, key)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// NewRunner picks the runner for mode ("cron" or "ticker").
func NewRunner(mode string) (Runner, error) {
	switch mode {
	case "", "cron":
		return NewCronRunner(), nil
	case "ticker":
		return NewTickerRunner(), nil
	default:
		return nil, fmt.Errorf("unknown scheduler mode %q", mode)
	}
}
