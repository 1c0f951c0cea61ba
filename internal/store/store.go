package store

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shibinsp/ocrapillm/internal/logging"
)

// Listener receives the state after each dispatched action.
type Listener func(s State, a Action)

type event struct {
	state  State
	action Action
}

// Store serializes dispatches and fans snapshots out to listeners. Listeners
// run outside the state lock, in dispatch order, and may dispatch themselves;
// such nested actions are delivered after the current one.
type Store struct {
	mu        sync.Mutex
	state     State
	listeners map[int]Listener
	nextID    int
	queue     []event
	draining  bool
	log       *zerolog.Logger
}

// New returns a store seeded with initial.
func New(initial State, log *zerolog.Logger) *Store {
	if log == nil {
		log = logging.Nop()
	}
	return &Store{state: initial, listeners: make(map[int]Listener), log: log}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies a and notifies listeners.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	s.state = Reduce(s.state, a)
	s.queue = append(s.queue, event{state: s.state, action: a})
	s.log.Trace().Str("action", Name(a)).Msg("dispatch")
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.queue) > 0 {
		ev := s.queue[0]
		s.queue = s.queue[1:]
		ls := s.snapshotListeners()
		s.mu.Unlock()
		for _, l := range ls {
			l(ev.state, ev.action)
		}
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) snapshotListeners() []Listener {
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Listener, len(ids))
	for i, id := range ids {
		out[i] = s.listeners[id]
	}
	return out
}
