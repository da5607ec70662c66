package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"

	slogctx "github.com/veqryn/slog-context"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/backend"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/config"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/routing"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/serviceerr"
)

// ProfileChecker looks up whether a lender has built a profile yet. A
// missing profile is a valid answer, not an error; any error returned here
// is a real lookup failure and poisons the routing decision.
type ProfileChecker interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// Navigator receives the destination the role router computed. Transports
// decide what "navigate" means for them.
type Navigator interface {
	NavigateTo(ctx context.Context, dest routing.Destination)
}

// Controller orchestrates credentialed actions for one principal and tracks
// verification progress. Navigation is never performed by the credentialed
// operations themselves; it is driven by the session-change listener and the
// poller so there is exactly one routing code path.
type Controller struct {
	backend  backend.Client
	store    *Store
	profiles ProfileChecker
	notify   Notifier
	nav      Navigator
	poller   *Poller

	mu          sync.Mutex
	isVerified  bool
	unsubscribe func()
}

func NewController(
	client backend.Client,
	store *Store,
	profiles ProfileChecker,
	notify Notifier,
	nav Navigator,
	verification config.Verification,
) *Controller {
	c := &Controller{
		backend:  client,
		store:    store,
		profiles: profiles,
		notify:   notify,
		nav:      nav,
	}
	c.poller = NewPoller(verification, c.pollTick, c.onVerified, c.onGaveUp)

	// Listener first, then the caller bootstraps the store. This ordering is
	// what guarantees no session event is lost during startup.
	c.unsubscribe = store.Subscribe(c.onSessionChange)

	return c
}

// Close releases the store subscription and stops any active polling.
func (c *Controller) Close() {
	c.unsubscribe()
	c.poller.Stop()
}

// SignIn delegates to the backend. Failures are returned to the caller with
// the backend's message intact; success is applied to the store, whose
// listener drives the verification check and any navigation.
func (c *Controller) SignIn(ctx context.Context, email, password string) error {
	session, err := c.backend.SignInWithPassword(ctx, email, password)
	if err != nil {
		return err
	}

	c.store.Apply(ctx, EventSignedIn, &session)

	return nil
}

// SignUp creates the account with the role stored as user metadata and signs
// the new identity in. A fresh identity normally starts unverified, which
// puts the controller into polling rather than navigating anywhere.
func (c *Controller) SignUp(ctx context.Context, name, email, password string, role backend.Role) error {
	first, rest, _ := strings.Cut(strings.TrimSpace(name), " ")
	metadata := map[string]any{
		"first_name": first,
		"last_name":  rest,
		"full_name":  strings.TrimSpace(name),
		"user_type":  string(role),
	}

	session, err := c.backend.SignUp(ctx, email, password, metadata)
	if err != nil {
		return err
	}

	// Deployments that require email confirmation answer sign-up without a
	// token; signing in explicitly matches what the sign-up form does.
	if session.AccessToken == "" {
		session, err = c.backend.SignInWithPassword(ctx, email, password)
		if err != nil {
			return err
		}
	}

	c.store.Apply(ctx, EventSignedIn, &session)

	return nil
}

// SignOut reports a backend failure but never skips the local SIGNED_OUT
// event: the store must not keep looking signed in after a user asked to
// leave. Cleanup itself lives in the session-change listener.
func (c *Controller) SignOut(ctx context.Context) error {
	var err error
	if session := c.store.Current(); session != nil {
		if err = c.backend.SignOut(ctx, session.AccessToken); err != nil {
			slogctx.Warn(ctx, "Backend sign-out failed, clearing local session anyway", "error", err)
			c.notify.Error(ctx, "Failed to log out")
		}
	}

	c.store.Apply(ctx, EventSignedOut, nil)

	return err
}

// CheckVerification fetches the identity fresh from the backend and derives
// the verification flag from its confirmation timestamp. Safe to call
// repeatedly; two calls with no backend change yield the same answer.
func (c *Controller) CheckVerification(ctx context.Context) (bool, error) {
	session := c.store.Current()
	if session == nil {
		return false, nil
	}

	identity, err := c.backend.GetUser(ctx, session.AccessToken)
	if err != nil {
		return false, fmt.Errorf("fetching user for verification check: %w", err)
	}

	verified := identity.Verified()
	c.mu.Lock()
	c.isVerified = verified
	c.mu.Unlock()

	return verified, nil
}

// IsVerified returns the last derived verification state.
func (c *Controller) IsVerified() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.isVerified
}

// ResendVerificationEmail surfaces its outcome as a notification and never
// as an error to the caller.
func (c *Controller) ResendVerificationEmail(ctx context.Context) {
	session := c.store.Current()
	if session == nil || session.User.Email == "" {
		c.notify.Error(ctx, "No email found to send verification")
		return
	}

	if err := c.backend.ResendVerification(ctx, session.User.Email); err != nil {
		slogctx.Warn(ctx, "Resending verification email failed", "error", err)
		c.notify.Error(ctx, "Failed to resend verification email")
		return
	}

	c.notify.Success(ctx, "Verification email sent! Please check your inbox")
}

// Route computes the destination for the current auth state. Profile
// existence is only looked up when it can influence the answer.
func (c *Controller) Route(ctx context.Context) (routing.Destination, error) {
	state := routing.State{}
	session := c.store.Current()
	if session != nil {
		state.HasIdentity = true
		state.Role = session.User.Role()
		state.IsVerified = c.IsVerified()
	}

	if state.HasIdentity && state.IsVerified && state.Role == backend.RoleLender {
		exists, err := c.profiles.Exists(ctx, session.User.ID)
		if err != nil {
			return "", fmt.Errorf("checking lender profile existence: %w", err)
		}
		if exists {
			state.LenderProfile = routing.ProfileExists
		} else {
			state.LenderProfile = routing.ProfileMissing
		}
	}

	return routing.Route(state), nil
}

// Poller exposes the verification poller, mainly so owners can observe its
// state and stop it when the verification screen goes away.
func (c *Controller) Poller() *Poller {
	return c.poller
}

func (c *Controller) onSessionChange(ctx context.Context, event Event, session *backend.Session) {
	switch event {
	case EventSignedOut:
		c.poller.Stop()
		c.mu.Lock()
		c.isVerified = false
		c.mu.Unlock()
		c.notify.Success(ctx, "Successfully logged out")
		c.nav.NavigateTo(ctx, routing.GoToHome)

	case EventSignedIn, EventUserUpdated:
		if session == nil {
			return
		}
		verified, err := c.CheckVerification(ctx)
		if err != nil {
			// One failed check must not strand an unverified principal in
			// idle; the poller's ticks retry the lookup.
			slogctx.Warn(ctx, "Verification check after session change failed, polling will retry", "error", err)
		}
		if !verified {
			c.poller.Start(ctx)
		}
	}
}

func (c *Controller) pollTick(ctx context.Context) (bool, error) {
	return c.CheckVerification(ctx)
}

func (c *Controller) onVerified(ctx context.Context) {
	dest, err := c.Route(ctx)
	if err != nil {
		slogctx.Error(ctx, "Routing after verification failed", "error", err)
		c.notify.Error(ctx, "Could not determine where to send you, please reload")
		return
	}

	c.nav.NavigateTo(ctx, dest)
}

func (c *Controller) onGaveUp(ctx context.Context) {
	c.notify.Error(ctx, serviceerr.ErrVerificationGaveUp.Description)
}
