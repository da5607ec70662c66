package websession

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	slogctx "github.com/veqryn/slog-context"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/backend"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/config"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/serviceerr"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/pkg/fingerprint"
)

// Manager issues, resolves and revokes web sessions. A web session binds a
// browser cookie to the backend tokens obtained at sign-in; the backend
// access token is refreshed transparently during Resolve when it has
// expired while the web session itself is still valid.
type Manager struct {
	backend  backend.Client
	records  Repository
	cookie   config.CookieTemplate
	duration time.Duration
}

func NewManager(client backend.Client, records Repository, cookie config.CookieTemplate, duration time.Duration) *Manager {
	return &Manager{
		backend:  client,
		records:  records,
		cookie:   cookie,
		duration: duration,
	}
}

// Issue stores a fresh record for the signed-in principal, bound to the
// issuing browser's fingerprint, and returns the cookie that addresses it.
func (m *Manager) Issue(ctx context.Context, r *http.Request, session backend.Session) (Record, *http.Cookie, error) {
	fp, err := fingerprint.FromHTTPRequest(r)
	if err != nil {
		return Record{}, nil, fmt.Errorf("computing client fingerprint: %w", err)
	}

	now := time.Now()
	record := Record{
		ID:          uuid.NewString(),
		Fingerprint: fp,
		Session:     session,
		CreatedAt:   now,
		Expiry:      now.Add(m.duration),
	}

	if err := m.records.StoreRecord(ctx, record); err != nil {
		return Record{}, nil, fmt.Errorf("storing session record: %w", err)
	}

	return record, m.cookie.ToCookie(record.ID), nil
}

// Resolve maps the request's session cookie back to its record. An expired
// backend access token is refreshed in place; an expired web session is
// deleted and reported as such.
func (m *Manager) Resolve(ctx context.Context, r *http.Request) (Record, error) {
	cookie, err := r.Cookie(m.cookie.Name)
	if err != nil {
		return Record{}, serviceerr.ErrNotSignedIn
	}

	record, err := m.records.LoadRecord(ctx, cookie.Value)
	if err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			return Record{}, serviceerr.ErrNotSignedIn
		}

		return Record{}, fmt.Errorf("loading session record: %w", err)
	}

	// A cookie presented by a different client than the one the session was
	// issued to is rejected without detail.
	if fp, err := fingerprint.FromHTTPRequest(r); err != nil || fp != record.Fingerprint {
		return Record{}, serviceerr.ErrUnauthorized
	}

	if record.Expired() {
		if err := m.records.DeleteRecord(ctx, record.ID); err != nil {
			slogctx.Warn(ctx, "Failed to delete expired session record", "error", err)
		}

		return Record{}, serviceerr.ErrSessionExpired
	}

	if record.Session.Expired() {
		refreshed, err := m.backend.RefreshSession(ctx, record.Session.RefreshToken)
		if err != nil {
			return Record{}, fmt.Errorf("refreshing backend session: %w", err)
		}

		record.Session = refreshed
		if err := m.records.StoreRecord(ctx, record); err != nil {
			return Record{}, fmt.Errorf("storing refreshed session record: %w", err)
		}
	}

	return record, nil
}

// Clear deletes the request's record, if any, and returns a cookie that
// removes the session cookie from the browser. Clearing is best effort:
// a missing record is not an error.
func (m *Manager) Clear(ctx context.Context, r *http.Request) (*http.Cookie, error) {
	expired := m.cookie.ToCookie("")
	expired.MaxAge = -1

	cookie, err := r.Cookie(m.cookie.Name)
	if err != nil {
		return expired, nil
	}

	if err := m.records.DeleteRecord(ctx, cookie.Value); err != nil && !errors.Is(err, serviceerr.ErrNotFound) {
		return expired, fmt.Errorf("deleting session record: %w", err)
	}

	return expired, nil
}
