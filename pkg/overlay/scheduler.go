package overlay

import (
	"sync"
	"time"
)

// Reason says why a re-resolve was requested.
type Reason string

const (
	ReasonResize      Reason = "resize"
	ReasonPage        Reason = "page"
	ReasonAnnotations Reason = "annotations"
)

// Trigger is one request to re-resolve. Page is 0 when the request is not
// tied to a page.
type Trigger struct {
	Reason Reason `json:"reason"`
	Page   int    `json:"page,omitempty"`
}

// SchedulerConfig controls batching.
type SchedulerConfig struct {
	// Window is the quiet period before a batch is flushed. Default: 150ms.
	Window time.Duration
	// MaxPending flushes immediately when this many triggers are queued.
	// Default: 64.
	MaxPending int
}

func (c *SchedulerConfig) defaults() {
	if c.Window <= 0 {
		c.Window = 150 * time.Millisecond
	}
	if c.MaxPending <= 0 {
		c.MaxPending = 64
	}
}

// Scheduler coalesces bursts of resize and page-change events into one
// call of the flush function. The flush function receives the distinct
// triggers in arrival order and runs on the timer's goroutine.
type Scheduler struct {
	mu      sync.Mutex
	cfg     SchedulerConfig
	pending []Trigger
	timer   *time.Timer
	flushFn func([]Trigger)
	stopped bool
}

// NewScheduler returns a scheduler calling fn for each batch.
func NewScheduler(cfg SchedulerConfig, fn func([]Trigger)) *Scheduler {
	cfg.defaults()
	return &Scheduler{cfg: cfg, flushFn: fn}
}

// Trigger queues t and restarts the window. It reports whether the queue was
// full and flushed synchronously.
func (s *Scheduler) Trigger(t Trigger) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	s.pending = append(s.pending, t)
	if len(s.pending) >= s.cfg.MaxPending {
		batch := s.take()
		s.mu.Unlock()
		s.flushFn(batch)
		return true
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.Window, s.Flush)
	s.mu.Unlock()
	return false
}

// Flush emits the queued triggers now, if any.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	batch := s.take()
	s.mu.Unlock()
	if len(batch) > 0 {
		s.flushFn(batch)
	}
}

// Stop cancels the pending window and drops queued triggers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.take()
	s.mu.Unlock()
}

// take must be called with mu held.
func (s *Scheduler) take() []Trigger {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if len(s.pending) == 0 {
		return nil
	}
	batch := dedupe(s.pending)
	s.pending = nil
	return batch
}

// dedupe keeps the first occurrence of each distinct trigger.
func dedupe(ts []Trigger) []Trigger {
	seen := make(map[Trigger]struct{}, len(ts))
	out := make([]Trigger, 0, len(ts))
	for _, t := range ts {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
