package server

import (
	"context"
	"sync"
	"time"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/auth"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/backend"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/config"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/routing"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/websession"
)

// Notice is a user-facing message produced by an auth flow, delivered to the
// client on its next session poll.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// notices implements auth.Notifier by buffering messages until the client
// picks them up.
type notices struct {
	mu    sync.Mutex
	items []Notice
}

func (n *notices) Success(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, Notice{Level: "success", Message: message})
}

func (n *notices) Error(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, Notice{Level: "error", Message: message})
}

func (n *notices) Drain() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()

	drained := n.items
	n.items = nil

	return drained
}

// lastDestination implements auth.Navigator by remembering the most recent
// destination the role router produced, so the client learns where to go on
// its next poll.
type lastDestination struct {
	mu   sync.Mutex
	dest routing.Destination
	set  bool
}

func (d *lastDestination) NavigateTo(_ context.Context, dest routing.Destination) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dest = dest
	d.set = true
}

func (d *lastDestination) Last() (routing.Destination, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.dest, d.set
}

// principal is the server-side runtime for one signed-in browser: its
// session store, controller and verification poller, plus the buffered
// notices and pending navigation the client has not yet seen.
type principal struct {
	store      *auth.Store
	controller *auth.Controller
	notices    *notices
	nav        *lastDestination

	mu       sync.Mutex
	lastSeen time.Time
}

func (p *principal) touch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSeen = time.Now()
}

func (p *principal) idleSince() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.lastSeen
}

// adoptSession realigns the runtime with the record when resolving rotated
// the backend tokens. The old access token is expired and the old refresh
// token was consumed, so a runtime left on them could never reach the
// backend again.
func (p *principal) adoptSession(ctx context.Context, record websession.Record) {
	current := p.store.Current()
	if current == nil || current.AccessToken == record.Session.AccessToken {
		return
	}

	session := record.Session
	p.store.Apply(ctx, auth.EventTokenRefreshed, &session)
}

// Registry maps web session IDs to their principal runtimes. A principal
// survives between requests so the verification poller can run server-side;
// after a restart Acquire rebuilds it from the persisted session record.
type Registry struct {
	backend      backend.Client
	profiles     auth.ProfileChecker
	verification config.Verification

	mu         sync.Mutex
	principals map[string]*principal
}

func NewRegistry(client backend.Client, profiles auth.ProfileChecker, verification config.Verification) *Registry {
	return &Registry{
		backend:      client,
		profiles:     profiles,
		verification: verification,
		principals:   make(map[string]*principal),
	}
}

// NewPrincipal builds an unbound principal for a sign-in or sign-up attempt.
// The subscription is installed by the controller before any event can fire.
func (r *Registry) NewPrincipal() *principal {
	p := &principal{
		store:    auth.NewStore(),
		notices:  &notices{},
		nav:      &lastDestination{},
		lastSeen: time.Now(),
	}
	p.controller = auth.NewController(r.backend, p.store, r.profiles, p.notices, p.nav, r.verification)

	return p
}

// Bind attaches a principal to its web session ID once the session cookie
// has been issued. A displaced previous principal is closed so its poller
// and subscription do not leak.
func (r *Registry) Bind(recordID string, p *principal) {
	r.mu.Lock()
	displaced := r.principals[recordID]
	r.principals[recordID] = p
	r.mu.Unlock()

	if displaced != nil && displaced != p {
		displaced.controller.Close()
	}
}

// Acquire returns the principal for a resolved web session, rebuilding it
// from the record's session snapshot when the runtime is gone, e.g. after a
// restart.
func (r *Registry) Acquire(ctx context.Context, record websession.Record) (*principal, error) {
	r.mu.Lock()
	p, ok := r.principals[record.ID]
	r.mu.Unlock()

	if ok {
		p.touch()
		p.adoptSession(ctx, record)
		return p, nil
	}

	p = r.NewPrincipal()
	if err := p.store.Bootstrap(ctx, func(context.Context) (*backend.Session, error) {
		session := record.Session
		return &session, nil
	}); err != nil {
		p.controller.Close()
		return nil, err
	}

	// A concurrent request for the same cookie may have rebuilt the
	// principal first; that one wins and ours winds down.
	r.mu.Lock()
	if winner, ok := r.principals[record.ID]; ok {
		r.mu.Unlock()
		p.controller.Close()
		winner.touch()
		winner.adoptSession(ctx, record)
		return winner, nil
	}
	r.principals[record.ID] = p
	r.mu.Unlock()

	return p, nil
}

// Release tears the principal down, stopping its poller.
func (r *Registry) Release(recordID string) {
	r.mu.Lock()
	p, ok := r.principals[recordID]
	delete(r.principals, recordID)
	r.mu.Unlock()

	if ok {
		p.controller.Close()
	}
}

// PruneIdle drops principals that have not served a request for maxIdle and
// returns how many were evicted. The session records themselves are owned by
// the repository and are not touched here.
func (r *Registry) PruneIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	var evicted []*principal
	for id, p := range r.principals {
		if p.idleSince().Before(cutoff) {
			evicted = append(evicted, p)
			delete(r.principals, id)
		}
	}
	r.mu.Unlock()

	for _, p := range evicted {
		p.controller.Close()
	}

	return len(evicted)
}

// Len reports the number of live principals.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.principals)
}
