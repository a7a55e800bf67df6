package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultMergeWindow = 500 * time.Millisecond

// MergeScheduler collapses bursts of feed events into single refreshes. Each
// event restarts the merge window, and exactly one refresh runs once the
// burst has been quiet for a full window.
type MergeScheduler struct {
	refresh func(ctx context.Context) error
	window  time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
	wg     sync.WaitGroup
}

// NewMergeScheduler wires a refresh function to a merge window. A window of
// zero or less falls back to the default.
func NewMergeScheduler(refresh func(ctx context.Context) error, window time.Duration, logger *slog.Logger) *MergeScheduler {
	if window <= 0 {
		window = defaultMergeWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MergeScheduler{
		refresh: refresh,
		window:  window,
		logger:  logger,
	}
}

// Notify records a change event, restarting the merge window.
func (s *MergeScheduler) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.window, s.flush)
}

func (s *MergeScheduler) flush() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.refresh(ctx); err != nil {
		s.logger.WarnContext(ctx, "merged refresh failed", "error", err)
	}
}

// Run consumes a subscription until the context ends, feeding every event
// into the merge window.
func (s *MergeScheduler) Run(ctx context.Context, sub Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
			s.Notify()
		}
	}
}

// Stop cancels any open window and waits for an in-progress refresh.
func (s *MergeScheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}
