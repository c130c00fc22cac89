package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	ErrSuperseded    = errors.New("playback superseded")
	ErrSessionClosed = errors.New("playback session closed")
)

// Task is one unit of serialized playback work. The context it receives
// is cancelled when the session is reset or removed.
type Task func(ctx context.Context) error

// Session serializes playback for one target channel. Tasks run in FIFO
// enqueue order, one at a time; a failure in one task does not cancel
// the tasks behind it. Resets bump the generation counter so that a
// task still executing under an old generation reports ErrSuperseded
// instead of its own outcome.
type Session struct {
	id  string
	log *slog.Logger

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	tail       chan struct{}
	closed     bool
}

func newSession(id string, log *slog.Logger) *Session {
	return &Session{
		id:  id,
		log: log.With("session_id", id),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Enqueue appends task behind all previously enqueued work for this
// session and returns a channel that receives the task's outcome once
// it settles. The channel is buffered; the caller may discard it.
func (s *Session) Enqueue(task Task) <-chan error {
	result := make(chan error, 1)

	s.mu.Lock()
	prev := s.tail
	done := make(chan struct{})
	s.tail = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			result <- ErrSessionClosed
			return
		}
		s.generation++
		gen := s.generation
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.mu.Unlock()

		err := task(ctx)

		s.mu.Lock()
		current := s.generation
		if gen == current {
			s.cancel = nil
		}
		s.mu.Unlock()
		cancel()

		if gen != current {
			s.log.Debug("playback superseded", "generation", gen, "current", current)
			result <- ErrSuperseded
			return
		}
		result <- err
	}()

	return result
}

// Reset invalidates the active attempt: the generation moves past it
// and its context is cancelled. Queued tasks are unaffected and will
// run under fresh generations.
func (s *Session) Reset() {
	s.mu.Lock()
	s.generation++
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (s *Session) close() {
	s.mu.Lock()
	s.generation++
	cancel := s.cancel
	s.cancel = nil
	s.closed = true
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Registry owns the process-wide session table, creating sessions on
// first use and tearing them down on removal.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	log      *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		log:      log.With("component", "playback_registry"),
	}
}

func (r *Registry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		s = newSession(id, r.log)
		r.sessions[id] = s
		r.log.Debug("session created", "session_id", id)
	}
	return s
}

func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove tears the session down: the active attempt is cancelled and
// any still-queued tasks settle with ErrSessionClosed.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if ok {
		s.close()
		r.log.Debug("session removed", "session_id", id)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
