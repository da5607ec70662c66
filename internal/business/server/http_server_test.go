package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/backend"
	backendmock "github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/backend/mock"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/config"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/profile"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/providers"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/websession"
	websessionmock "github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/websession/mock"
)

type fixture struct {
	ts         *httptest.Server
	hc         *http.Client
	backend    *backendmock.Client
	principals *Registry
}

func newFixture(t *testing.T, opts ...backendmock.ClientOption) *fixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.Application.Name = "loan-lounge"
	cfg.Application.Environment = "test"
	cfg.Marketplace.SessionDuration = time.Hour
	cfg.Marketplace.ProfileCacheTTL = time.Minute
	cfg.Marketplace.Verification = config.Verification{
		PollInterval: 2 * time.Millisecond,
		MaxAttempts:  1000,
		MaxInterval:  2 * time.Millisecond,
	}
	cfg.Marketplace.SessionCookieTemplate = config.CookieTemplate{
		Name:     "loanlounge-session",
		Path:     "/",
		HTTPOnly: true,
		SameSite: config.CookieSameSiteLax,
	}

	client := backendmock.NewClient(opts...)
	records := websessionmock.NewRepository()
	sessions := websession.NewManager(client, records, cfg.Marketplace.SessionCookieTemplate, cfg.Marketplace.SessionDuration)
	profiles := profile.NewService(client, cfg.Marketplace.ProfileCacheTTL, "lender-logos")
	principals := NewRegistry(client, profiles, cfg.Marketplace.Verification)

	require.NoError(t, initMeters(t.Context(), cfg))
	srv := createHTTPServer(t.Context(), cfg, sessions, profiles, providers.NewService(client), principals)

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &fixture{
		ts:         ts,
		hc:         &http.Client{Jar: jar},
		backend:    client,
		principals: principals,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, f.ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.hc.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))

	return resp.StatusCode, decoded
}

func TestHTTPServer_Ping(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ping", body["result"])
}

func TestHTTPServer_Login(t *testing.T) {
	t.Run("Verified customer signs in", func(t *testing.T) {
		f := newFixture(t,
			backendmock.WithAccount("user@example.com", "secret", backend.RoleCustomer, true))

		status, body := f.do(t, http.MethodPost, "/auth/login",
			map[string]string{"email": "user@example.com", "password": "secret"})
		require.Equal(t, http.StatusOK, status)

		user, ok := body["user"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "user@example.com", user["email"])
		assert.Equal(t, "customer", user["role"])
		assert.Equal(t, true, user["verified"])
		assert.Equal(t, "idle", body["verification"])

		status, body = f.do(t, http.MethodGet, "/auth/route", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "home", body["destination"])
	})

	t.Run("Wrong password surfaces the backend error", func(t *testing.T) {
		f := newFixture(t,
			backendmock.WithAccount("user@example.com", "secret", backend.RoleCustomer, true))

		status, body := f.do(t, http.MethodPost, "/auth/login",
			map[string]string{"email": "user@example.com", "password": "wrong"})
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "invalid_credentials", body["error"])
		assert.Zero(t, f.principals.Len())
	})

	t.Run("Unverified account starts polling", func(t *testing.T) {
		f := newFixture(t,
			backendmock.WithAccount("new@example.com", "secret", backend.RoleCustomer, false))

		status, body := f.do(t, http.MethodPost, "/auth/login",
			map[string]string{"email": "new@example.com", "password": "secret"})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "running", body["verification"])

		status, body = f.do(t, http.MethodGet, "/auth/route", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "verification", body["destination"])
	})
}

func TestHTTPServer_SignupVerificationJourney(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/auth/signup", map[string]string{
		"name":     "Asha Kapoor",
		"email":    "asha@lender.example",
		"password": "secret",
		"role":     "lender",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "running", body["verification"])

	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "lender", user["role"])
	assert.Equal(t, "Asha Kapoor", user["full_name"])

	// The user clicks the verification link; the server-side poller notices
	// and routes the fresh lender to the profile builder.
	f.backend.Confirm("asha@lender.example")

	require.Eventually(t, func() bool {
		status, body := f.do(t, http.MethodGet, "/auth/session", nil)
		return status == http.StatusOK &&
			body["verification"] == "verified" &&
			body["destination"] == "lender-profile-builder"
	}, time.Second, 5*time.Millisecond)
}

func TestHTTPServer_Signup_ExistingEmail(t *testing.T) {
	f := newFixture(t,
		backendmock.WithAccount("taken@example.com", "secret", backend.RoleCustomer, true))

	status, body := f.do(t, http.MethodPost, "/auth/signup", map[string]string{
		"name":     "Someone Else",
		"email":    "taken@example.com",
		"password": "other",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "User already registered", body["error_description"])
}

func TestHTTPServer_CheckAndResendVerification(t *testing.T) {
	f := newFixture(t,
		backendmock.WithAccount("new@example.com", "secret", backend.RoleCustomer, false))

	status, _ := f.do(t, http.MethodPost, "/auth/login",
		map[string]string{"email": "new@example.com", "password": "secret"})
	require.Equal(t, http.StatusOK, status)

	status, body := f.do(t, http.MethodPost, "/auth/resend-verification", nil)
	require.Equal(t, http.StatusOK, status)
	notices, ok := body["notices"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, notices)
	assert.Equal(t, 1, f.backend.ResendCount())

	// Still unverified; an explicit check says so.
	status, body = f.do(t, http.MethodPost, "/auth/check-verification", nil)
	require.Equal(t, http.StatusOK, status)
	user := body["user"].(map[string]any)
	assert.Equal(t, false, user["verified"])

	f.backend.Confirm("new@example.com")

	status, body = f.do(t, http.MethodPost, "/auth/check-verification", nil)
	require.Equal(t, http.StatusOK, status)
	user = body["user"].(map[string]any)
	assert.Equal(t, true, user["verified"])
}

func TestHTTPServer_Logout(t *testing.T) {
	f := newFixture(t,
		backendmock.WithAccount("user@example.com", "secret", backend.RoleCustomer, true))

	status, _ := f.do(t, http.MethodPost, "/auth/login",
		map[string]string{"email": "user@example.com", "password": "secret"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, f.principals.Len())

	status, body := f.do(t, http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "home", body["destination"])
	assert.Zero(t, f.principals.Len())

	status, _ = f.do(t, http.MethodGet, "/auth/session", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHTTPServer_Route_Anonymous(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/auth/route", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "login", body["destination"])
}

func TestHTTPServer_AddProvider(t *testing.T) {
	f := newFixture(t,
		backendmock.WithAccount("user@example.com", "secret", backend.RoleCustomer, true))

	status, _ := f.do(t, http.MethodPost, "/auth/login",
		map[string]string{"email": "user@example.com", "password": "secret"})
	require.Equal(t, http.StatusOK, status)

	status, body := f.do(t, http.MethodPost, "/providers", map[string]string{
		"name":         "QuickDocs Notary",
		"service_type": "Documentation",
		"phone":        "+91-9876543210",
		"location":     "Mumbai",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, body["user_id"])

	status, body = f.do(t, http.MethodPost, "/providers", map[string]string{"name": "Nameless"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_request", body["error"])
}

func TestHTTPServer_Profile(t *testing.T) {
	draft := map[string]any{
		"profile": map[string]any{
			"name":    "Acme Loans",
			"city":    "Pune",
			"user_id": "spoofed-user-id",
		},
		"employment_types": []string{"Salaried"},
		"products": []map[string]any{
			{"id": "prod-1", "type": "Personal Loan"},
		},
	}

	t.Run("Lender saves and reads back a profile", func(t *testing.T) {
		f := newFixture(t,
			backendmock.WithAccount("asha@lender.example", "secret", backend.RoleLender, true))

		status, _ := f.do(t, http.MethodPost, "/auth/login",
			map[string]string{"email": "asha@lender.example", "password": "secret"})
		require.Equal(t, http.StatusOK, status)

		status, _ = f.do(t, http.MethodPut, "/profile", draft)
		require.Equal(t, http.StatusOK, status)

		rows := f.backend.Rows(backend.TableLoanAgents)
		require.Len(t, rows, 1)
		assert.NotEqual(t, "spoofed-user-id", rows[0]["user_id"])

		status, body := f.do(t, http.MethodGet, "/profile", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Acme Loans", body["name"])

		// With the profile in place the lender routes to the dashboard.
		status, body = f.do(t, http.MethodGet, "/auth/route", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "lender-dashboard", body["destination"])
	})

	t.Run("Customers cannot save a lender profile", func(t *testing.T) {
		f := newFixture(t,
			backendmock.WithAccount("user@example.com", "secret", backend.RoleCustomer, true))

		status, _ := f.do(t, http.MethodPost, "/auth/login",
			map[string]string{"email": "user@example.com", "password": "secret"})
		require.Equal(t, http.StatusOK, status)

		status, body := f.do(t, http.MethodPut, "/profile", draft)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "unauthorized", body["error"])
	})

	t.Run("Missing profile reads as not found", func(t *testing.T) {
		f := newFixture(t,
			backendmock.WithAccount("new@lender.example", "secret", backend.RoleLender, true))

		status, _ := f.do(t, http.MethodPost, "/auth/login",
			map[string]string{"email": "new@lender.example", "password": "secret"})
		require.Equal(t, http.StatusOK, status)

		status, _ = f.do(t, http.MethodGet, "/profile", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})
}
