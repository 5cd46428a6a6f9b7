// Package scheduler coalesces persistence writes. Each storage key holds at
// most one pending value; scheduling a key again replaces its value and
// restarts its trailing timer, so a burst of keystrokes becomes one write.
package scheduler

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/logger"
)

// Writer persists a value. storage.Store satisfies it.
type Writer interface {
	WriteJSON(key string, v any)
}

// Timer is the part of *time.Timer the scheduler uses.
type Timer interface {
	Stop() bool
}

// AfterFunc arms a timer. It defaults to time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

type entry struct {
	value json.RawMessage
	timer Timer
	gen   uint64
}

type Scheduler struct {
	mu        sync.Mutex
	writer    Writer
	delay     time.Duration
	after     AfterFunc
	pending   map[string]*entry
	gen       uint64
	hydrating int
	stopped   bool
}

type Option func(*Scheduler)

// WithDelay overrides the trailing debounce interval.
func WithDelay(d time.Duration) Option {
	return func(s *Scheduler) { s.delay = d }
}

// WithAfterFunc replaces the timer factory. Tests use it to drive time.
func WithAfterFunc(f AfterFunc) Option {
	return func(s *Scheduler) { s.after = f }
}

func New(w Writer, opts ...Option) *Scheduler {
	s := &Scheduler{
		writer:  w,
		delay:   constants.SaveDebounce,
		pending: make(map[string]*entry),
		after: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule queues value for key. The value is encoded immediately so later
// mutation by the caller cannot leak into the write. Writes scheduled while
// hydrating or after Stop are dropped.
func (s *Scheduler) Schedule(key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		logger.Warn("Dropping unencodable write", "key", key, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if s.hydrating > 0 {
		logger.Debug("Write suppressed during hydration", "key", key)
		return
	}

	e, ok := s.pending[key]
	if !ok {
		e = &entry{}
		s.pending[key] = e
	} else if e.timer != nil {
		e.timer.Stop()
	}
	s.gen++
	gen := s.gen
	e.value = data
	e.gen = gen
	e.timer = s.after(s.delay, func() { s.fire(key, gen) })
}

func (s *Scheduler) fire(key string, gen uint64) {
	s.mu.Lock()
	e, ok := s.pending[key]
	if !ok || e.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	s.mu.Unlock()

	s.writer.WriteJSON(key, e.value)
}

// Flush writes every pending value now, in key order.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	batch := s.pending
	s.pending = make(map[string]*entry)
	s.mu.Unlock()

	keys := make([]string, 0, len(batch))
	for k, e := range batch {
		if e.timer != nil {
			e.timer.Stop()
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.writer.WriteJSON(k, batch[k].value)
	}
}

// Cancel discards any pending write for key.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.pending[key]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(s.pending, key)
	}
}

// CancelPrefix discards pending writes for every key starting with prefix.
func (s *Scheduler) CancelPrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.pending {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			if e.timer != nil {
				e.timer.Stop()
			}
			delete(s.pending, k)
		}
	}
}

// Pending returns the number of keys waiting to be written.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop flushes pending writes and refuses new ones.
func (s *Scheduler) Stop() {
	s.Flush()
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

// BeginHydration suppresses writes until the matching EndHydration. Calls
// nest.
func (s *Scheduler) BeginHydration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hydrating++
}

func (s *Scheduler) EndHydration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hydrating > 0 {
		s.hydrating--
	}
}

func (s *Scheduler) Hydrating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrating > 0
}
