// Package session tracks the signed-in user of a process and fans engine
// events out to in-process subscribers.
package session

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JamesPrial/liferpg/internal/engine"
)

// BufferSize is the capacity of each subscriber channel. Events for a full
// channel are dropped.
const BufferSize = 64

type subscription struct {
	ch    chan engine.Event
	types []engine.EventType
}

func (s *subscription) wants(t engine.EventType) bool {
	return len(s.types) == 0 || slices.Contains(s.types, t)
}

// Session holds the current user and the subscriber set. The zero value is
// not usable; call New.
type Session struct {
	mu      sync.RWMutex
	current *engine.User
	subs    map[string]*subscription
	closed  bool
	now     func() time.Time
}

// New returns an empty session with no user signed in.
func New() *Session {
	return &Session{
		subs: make(map[string]*subscription),
		now:  time.Now,
	}
}

// Current returns a copy of the signed-in user, or nil.
func (s *Session) Current() *engine.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.current)
}

// Set replaces the signed-in user. Passing nil signs out. Subscribers receive
// a user_changed event carrying the new user.
func (s *Session) Set(u *engine.User) {
	ev := engine.NewEvent(engine.EventUserChanged, s.now())
	s.mu.Lock()
	s.current = cloneUser(u)
	if u != nil {
		ev.UserID, ev.UserName, ev.User = u.ID, u.Name, cloneUser(u)
	}
	s.mu.Unlock()

	s.fanOut(ev)
}

// Subscribe registers a listener for the given event types, or for every
// type when none are given. The returned id is passed to Unsubscribe.
func (s *Session) Subscribe(types ...engine.EventType) (string, <-chan engine.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &subscription{
		ch:    make(chan engine.Event, BufferSize),
		types: types,
	}
	id := uuid.New().String()
	if s.closed {
		close(sub.ch)
		return id, sub.ch
	}
	s.subs[id] = sub
	return id, sub.ch
}

// Unsubscribe removes a subscription and closes its channel. Unknown ids are
// ignored.
func (s *Session) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, ok := s.subs[id]; ok {
		close(sub.ch)
		delete(s.subs, id)
	}
}

// Publish implements engine.Publisher. Events that carry the signed-in user
// refresh the cached copy before being fanned out.
func (s *Session) Publish(ev engine.Event) {
	if ev.User != nil {
		s.mu.Lock()
		if s.current != nil && s.current.ID == ev.User.ID {
			s.current = cloneUser(ev.User)
		}
		s.mu.Unlock()
	}
	s.fanOut(ev)
}

// Close closes every subscriber channel. Later subscriptions receive an
// already-closed channel.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sub := range s.subs {
		close(sub.ch)
		delete(s.subs, id)
	}
	s.closed = true
}

func (s *Session) fanOut(ev engine.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subs {
		if !sub.wants(ev.Type) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

func cloneUser(u *engine.User) *engine.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
