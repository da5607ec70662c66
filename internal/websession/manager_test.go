package websession_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/backend"
	backendmock "github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/backend/mock"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/config"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/serviceerr"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/websession"
	websessionmock "github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/websession/mock"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/pkg/fingerprint"
)

var testCookie = config.CookieTemplate{
	Name:     "loanlounge-session",
	Path:     "/",
	HTTPOnly: true,
	SameSite: config.CookieSameSiteLax,
}

func signedInBackend(t *testing.T) (*backendmock.Client, backend.Session) {
	t.Helper()

	client := backendmock.NewClient(
		backendmock.WithAccount("user@example.com", "secret", backend.RoleCustomer, true))
	session, err := client.SignInWithPassword(t.Context(), "user@example.com", "secret")
	require.NoError(t, err)

	return client, session
}

func browserRequest(recordID string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	r.Header.Set("User-Agent", "browser/1.0")
	if recordID != "" {
		r.AddCookie(testCookie.ToCookie(recordID))
	}

	return r
}

// browserFingerprint matches what browserRequest produces.
func browserFingerprint(t *testing.T) string {
	t.Helper()

	fp, err := fingerprint.FromHTTPRequest(browserRequest(""))
	require.NoError(t, err)

	return fp
}

func TestManager_Issue(t *testing.T) {
	client, session := signedInBackend(t)
	records := websessionmock.NewRepository()
	manager := websession.NewManager(client, records, testCookie, 12*time.Hour)

	record, cookie, err := manager.Issue(t.Context(), browserRequest(""), session)
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, record.ID, cookie.Value)
	assert.Equal(t, "loanlounge-session", cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, browserFingerprint(t), record.Fingerprint)

	stored, ok := records.Record(record.ID)
	require.True(t, ok)
	assert.Equal(t, session.AccessToken, stored.Session.AccessToken)
	assert.WithinDuration(t, time.Now().Add(12*time.Hour), stored.Expiry, time.Minute)
}

func TestManager_Resolve(t *testing.T) {
	t.Run("Round trip", func(t *testing.T) {
		client, session := signedInBackend(t)
		records := websessionmock.NewRepository()
		manager := websession.NewManager(client, records, testCookie, 12*time.Hour)

		record, _, err := manager.Issue(t.Context(), browserRequest(""), session)
		require.NoError(t, err)

		resolved, err := manager.Resolve(t.Context(), browserRequest(record.ID))
		require.NoError(t, err)
		assert.Equal(t, record.ID, resolved.ID)
		assert.Equal(t, "user@example.com", resolved.Session.User.Email)
	})

	t.Run("No cookie means not signed in", func(t *testing.T) {
		client, _ := signedInBackend(t)
		manager := websession.NewManager(client, websessionmock.NewRepository(), testCookie, 12*time.Hour)

		_, err := manager.Resolve(t.Context(), browserRequest(""))
		require.ErrorIs(t, err, serviceerr.ErrNotSignedIn)
	})

	t.Run("Unknown cookie means not signed in", func(t *testing.T) {
		client, _ := signedInBackend(t)
		manager := websession.NewManager(client, websessionmock.NewRepository(), testCookie, 12*time.Hour)

		_, err := manager.Resolve(t.Context(), browserRequest("no-such-record"))
		require.ErrorIs(t, err, serviceerr.ErrNotSignedIn)
	})

	t.Run("Cookie from a different client is rejected", func(t *testing.T) {
		client, session := signedInBackend(t)
		records := websessionmock.NewRepository()
		manager := websession.NewManager(client, records, testCookie, 12*time.Hour)

		record, _, err := manager.Issue(t.Context(), browserRequest(""), session)
		require.NoError(t, err)

		hijacked := browserRequest(record.ID)
		hijacked.Header.Set("User-Agent", "other-browser/2.0")

		_, err = manager.Resolve(t.Context(), hijacked)
		require.ErrorIs(t, err, serviceerr.ErrUnauthorized)
	})

	t.Run("Expired web session is deleted and reported", func(t *testing.T) {
		client, session := signedInBackend(t)
		records := websessionmock.NewRepository(websessionmock.WithRecord(websession.Record{
			ID:          "expired-record",
			Fingerprint: browserFingerprint(t),
			Session:     session,
			Expiry:      time.Now().Add(-time.Minute),
		}))
		manager := websession.NewManager(client, records, testCookie, 12*time.Hour)

		_, err := manager.Resolve(t.Context(), browserRequest("expired-record"))
		require.ErrorIs(t, err, serviceerr.ErrSessionExpired)
		assert.Zero(t, records.Len())
	})

	t.Run("Expired backend token is refreshed in place", func(t *testing.T) {
		client, session := signedInBackend(t)
		session.Expiry = time.Now().Add(-time.Minute)
		records := websessionmock.NewRepository(websessionmock.WithRecord(websession.Record{
			ID:          "stale-token",
			Fingerprint: browserFingerprint(t),
			Session:     session,
			Expiry:      time.Now().Add(time.Hour),
		}))
		manager := websession.NewManager(client, records, testCookie, 12*time.Hour)

		resolved, err := manager.Resolve(t.Context(), browserRequest("stale-token"))
		require.NoError(t, err)
		assert.NotEqual(t, session.AccessToken, resolved.Session.AccessToken)
		assert.False(t, resolved.Session.Expired())

		stored, ok := records.Record("stale-token")
		require.True(t, ok)
		assert.Equal(t, resolved.Session.AccessToken, stored.Session.AccessToken)
	})

	t.Run("Failed refresh is surfaced", func(t *testing.T) {
		client, session := signedInBackend(t)
		session.Expiry = time.Now().Add(-time.Minute)
		session.RefreshToken = "revoked"
		records := websessionmock.NewRepository(websessionmock.WithRecord(websession.Record{
			ID:          "revoked-token",
			Fingerprint: browserFingerprint(t),
			Session:     session,
			Expiry:      time.Now().Add(time.Hour),
		}))
		manager := websession.NewManager(client, records, testCookie, 12*time.Hour)

		_, err := manager.Resolve(t.Context(), browserRequest("revoked-token"))
		require.ErrorIs(t, err, serviceerr.ErrSessionExpired)
	})
}

func TestManager_Clear(t *testing.T) {
	client, session := signedInBackend(t)
	records := websessionmock.NewRepository()
	manager := websession.NewManager(client, records, testCookie, 12*time.Hour)

	record, _, err := manager.Issue(t.Context(), browserRequest(""), session)
	require.NoError(t, err)

	cookie, err := manager.Clear(t.Context(), browserRequest(record.ID))
	require.NoError(t, err)
	assert.Equal(t, -1, cookie.MaxAge)
	assert.Zero(t, records.Len())

	// Clearing an already-cleared session stays quiet.
	cookie, err = manager.Clear(t.Context(), browserRequest(record.ID))
	require.NoError(t, err)
	assert.Equal(t, -1, cookie.MaxAge)
}
