// Package auth holds the session store, the sign-in/sign-up/sign-out
// controller and the email-verification poller for a single principal.
package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/backend"
)

// Event mirrors the hosted backend's auth state change notifications.
type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventUserUpdated    Event = "USER_UPDATED"
)

// Listener observes session changes. Listeners run synchronously on the
// goroutine that applied the change.
type Listener func(ctx context.Context, event Event, session *backend.Session)

// Store is the single source of truth for who is signed in. All mutation
// goes through Apply; readers get copies. Listeners registered before
// Bootstrap are guaranteed to see every event, including one that lands
// while Bootstrap's fetch is still in flight.
type Store struct {
	mu         sync.Mutex
	session    *backend.Session
	generation uint64
	listeners  map[int]Listener
	nextID     int
}

func NewStore() *Store {
	return &Store{listeners: make(map[int]Listener)}
}

// Subscribe registers a listener and returns an unsubscribe function.
// Registration must happen before Bootstrap so no event is missed.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Bootstrap asks the given fetch function for any existing session and
// populates the store. It has no effect if none exists. If an event was
// applied while the fetch was in flight, the event's session wins: the
// fetched snapshot is stale by definition and is dropped.
func (s *Store) Bootstrap(ctx context.Context, fetch func(ctx context.Context) (*backend.Session, error)) error {
	s.mu.Lock()
	generation := s.generation
	s.mu.Unlock()

	session, err := fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetching existing session: %w", err)
	}
	if session == nil {
		return nil
	}

	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		return nil
	}
	s.session = session
	s.generation++
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	copied := *session
	for _, fn := range listeners {
		fn(ctx, EventSignedIn, &copied)
	}

	return nil
}

// Apply is the store's only mutation entry point. A SIGNED_OUT event clears
// the session; every other event replaces it.
func (s *Store) Apply(ctx context.Context, event Event, session *backend.Session) {
	s.mu.Lock()
	if event == EventSignedOut {
		s.session = nil
	} else if session != nil {
		copied := *session
		s.session = &copied
	}
	s.generation++
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	var copied *backend.Session
	if session != nil {
		c := *session
		copied = &c
	}
	for _, fn := range listeners {
		fn(ctx, event, copied)
	}
}

// Current returns a copy of the session, or nil when signed out.
func (s *Store) Current() *backend.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	copied := *s.session

	return &copied
}

func (s *Store) snapshotListeners() []Listener {
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}

	return listeners
}
