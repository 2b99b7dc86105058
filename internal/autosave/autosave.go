// Package autosave debounces per-article persistence: repeated queues for
// the same article within the delay window collapse into one save.
package autosave

import (
	"log/slog"
	"sync"
	"time"
)

// PersistFunc saves one article by id.
type PersistFunc func(articleID string)

// Scheduler owns one debounce timer per article id.
type Scheduler struct {
	delay   time.Duration
	persist PersistFunc
	logger  *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewScheduler creates a scheduler that calls persist once per article after
// delay of queue inactivity.
func NewScheduler(delay time.Duration, persist PersistFunc, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		delay:   delay,
		persist: persist,
		logger:  logger,
		timers:  map[string]*time.Timer{},
	}
}

// Queue arms or re-arms the article's timer. The persist callback runs on the
// timer goroutine once the delay elapses without another Queue for the same
// id.
func (s *Scheduler) Queue(articleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if timer, ok := s.timers[articleID]; ok {
		timer.Reset(s.delay)
		return
	}
	s.timers[articleID] = time.AfterFunc(s.delay, func() {
		s.fire(articleID)
	})
}

func (s *Scheduler) fire(articleID string) {
	s.mu.Lock()
	delete(s.timers, articleID)
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.persist(articleID)
}

// Flush persists the article immediately, cancelling any pending timer.
// It is a no-op when nothing is queued for the id.
func (s *Scheduler) Flush(articleID string) {
	s.mu.Lock()
	timer, ok := s.timers[articleID]
	if ok {
		timer.Stop()
		delete(s.timers, articleID)
	}
	closed := s.closed
	s.mu.Unlock()
	if !ok || closed {
		return
	}
	s.persist(articleID)
}

// Cancel drops any pending save for the article without persisting.
func (s *Scheduler) Cancel(articleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[articleID]; ok {
		timer.Stop()
		delete(s.timers, articleID)
	}
}

// Close flushes every pending article and rejects further queues.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pending := make([]string, 0, len(s.timers))
	for id, timer := range s.timers {
		timer.Stop()
		pending = append(pending, id)
	}
	s.timers = map[string]*time.Timer{}
	s.mu.Unlock()

	for _, id := range pending {
		s.persist(id)
	}
	if len(pending) > 0 {
		s.logger.Debug("autosave: flushed pending on close", slog.Int("count", len(pending)))
	}
}
