// Package scheduler runs the periodic decay cycle. The engine never schedules
// itself; the server starts a DecayScheduler and the CLI can trigger a cycle
// directly.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/scrypster/resonance/internal/storage"
)

// Decayer runs one decay cycle.
type Decayer interface {
	Decay(ctx context.Context) (storage.DecayResult, error)
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running    bool                `json:"running"`
	Interval   time.Duration       `json:"interval"`
	Runs       int                 `json:"runs"`
	LastRun    time.Time           `json:"last_run,omitempty"`
	NextRun    time.Time           `json:"next_run,omitempty"`
	LastResult storage.DecayResult `json:"last_result"`
	LastError  string              `json:"last_error,omitempty"`
}

// DecayScheduler triggers Decay at a fixed interval.
type DecayScheduler struct {
	decayer  Decayer
	interval time.Duration

	mu         sync.Mutex
	running    bool
	stopCh     chan struct{}
	runs       int
	lastRun    time.Time
	nextRun    time.Time
	lastResult storage.DecayResult
	lastErr    error
}

// NewDecayScheduler creates a scheduler. interval must be positive.
func NewDecayScheduler(decayer Decayer, interval time.Duration) (*DecayScheduler, error) {
	if decayer == nil {
		return nil, fmt.Errorf("decayer is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("decay interval must be positive, got %v", interval)
	}
	return &DecayScheduler{decayer: decayer, interval: interval}, nil
}

// Start runs decay cycles until ctx is cancelled or Stop is called. It blocks;
// run it in its own goroutine.
func (s *DecayScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("decay scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.nextRun = time.Now().Add(s.interval)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("scheduler: decay started, interval=%v", s.interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: decay stopping (context cancelled)")
			return ctx.Err()

		case <-stopCh:
			log.Println("scheduler: decay stopping (stop requested)")
			return nil

		case <-ticker.C:
			res, err := s.RunNow(ctx)
			if err != nil {
				log.Printf("scheduler: decay cycle failed: %v", err)
			} else {
				log.Printf("scheduler: decay cycle done, decayed=%d cooled=%d", res.Decayed, res.Cooled)
			}

			s.mu.Lock()
			s.nextRun = time.Now().Add(s.interval)
			s.mu.Unlock()
		}
	}
}

// Stop ends a running Start loop.
func (s *DecayScheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.stopCh == nil {
		return fmt.Errorf("decay scheduler is not running")
	}
	select {
	case <-s.stopCh:
		return fmt.Errorf("decay scheduler is already stopping")
	default:
		close(s.stopCh)
	}
	return nil
}

// RunNow performs one decay cycle immediately and records its outcome.
func (s *DecayScheduler) RunNow(ctx context.Context) (storage.DecayResult, error) {
	res, err := s.decayer.Decay(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	s.lastRun = time.Now()
	s.lastErr = err
	if err == nil {
		s.lastResult = res
	}
	return res, err
}

// Status returns the current scheduler state.
func (s *DecayScheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:    s.running,
		Interval:   s.interval,
		Runs:       s.runs,
		LastRun:    s.lastRun,
		NextRun:    s.nextRun,
		LastResult: s.lastResult,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
