package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	slogctx "github.com/veqryn/slog-context"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/backend"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/profile"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/providers"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/routing"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/serviceerr"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/websession"
)

// apiServer implements the public HTTP API on top of the domain services.
type apiServer struct {
	sessions   *websession.Manager
	profiles   *profile.Service
	providers  *providers.Service
	principals *Registry
}

func newAPIServer(
	sessions *websession.Manager,
	profiles *profile.Service,
	providerSvc *providers.Service,
	principals *Registry,
) *apiServer {
	return &apiServer{
		sessions:   sessions,
		profiles:   profiles,
		providers:  providerSvc,
		principals: principals,
	}
}

type errorModel struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// toErrorModel maps any service error to its HTTP presentation. Backend
// descriptions pass through verbatim so the client can show them.
func toErrorModel(err error) (errorModel, int) {
	var serr *serviceerr.Error
	if errors.As(err, &serr) {
		return errorModel{
			Error:            string(serr.Err),
			ErrorDescription: serr.Description,
		}, serr.HTTPStatus()
	}

	switch {
	case errors.Is(err, serviceerr.ErrNotSignedIn):
		return errorModel{Error: string(serviceerr.CodeUnauthorized), ErrorDescription: "not signed in"}, http.StatusUnauthorized
	case errors.Is(err, serviceerr.ErrSessionExpired):
		return errorModel{Error: string(serviceerr.CodeSessionExpired), ErrorDescription: "session expired"}, http.StatusUnauthorized
	case errors.Is(err, serviceerr.ErrNotFound):
		return errorModel{Error: string(serviceerr.CodeNotFound)}, http.StatusNotFound
	case errors.Is(err, serviceerr.ErrConflict):
		return errorModel{Error: string(serviceerr.CodeConflict)}, http.StatusConflict
	default:
		return errorModel{Error: string(serviceerr.CodeUnknown)}, http.StatusInternalServerError
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slogctx.Error(ctx, "Failed to encode a response body", "error", err)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	slogctx.Warn(ctx, "Request failed", "error", err)
	body, status := toErrorModel(err)
	writeJSON(ctx, w, status, body)
}

func decodeBody(r *http.Request, into any) error {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return &serviceerr.Error{Err: serviceerr.CodeInvalidRequest, Description: "malformed request body"}
	}

	return nil
}

type userView struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role"`
	Verified bool   `json:"verified"`
}

type sessionView struct {
	User         *userView           `json:"user"`
	Verification string              `json:"verification"`
	Destination  routing.Destination `json:"destination,omitempty"`
	Notices      []Notice            `json:"notices,omitempty"`
}

func (s *apiServer) viewOf(p *principal) sessionView {
	view := sessionView{
		Verification: p.controller.Poller().State().String(),
		Notices:      p.notices.Drain(),
	}

	if session := p.store.Current(); session != nil {
		name, _ := session.User.Metadata["full_name"].(string)
		view.User = &userView{
			ID:       session.User.ID,
			Email:    session.User.Email,
			FullName: name,
			Role:     string(session.User.Role()),
			Verified: p.controller.IsVerified(),
		}
	}

	if dest, ok := p.nav.Last(); ok {
		view.Destination = dest
	}

	return view
}

// resolve maps the request cookie to its record and principal runtime.
func (s *apiServer) resolve(r *http.Request) (*principal, websession.Record, error) {
	record, err := s.sessions.Resolve(r.Context(), r)
	if err != nil {
		return nil, websession.Record{}, err
	}

	p, err := s.principals.Acquire(r.Context(), record)
	if err != nil {
		return nil, websession.Record{}, err
	}

	return p, record, nil
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *apiServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	p := s.principals.NewPrincipal()
	if err := p.controller.SignIn(ctx, req.Email, req.Password); err != nil {
		p.controller.Close()
		writeError(ctx, w, err)
		return
	}

	s.bindSession(w, r, p)
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s *apiServer) handleSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req signupRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	role := backend.RoleCustomer
	if backend.Role(req.Role) == backend.RoleLender {
		role = backend.RoleLender
	}

	p := s.principals.NewPrincipal()
	if err := p.controller.SignUp(ctx, req.Name, req.Email, req.Password, role); err != nil {
		p.controller.Close()
		writeError(ctx, w, err)
		return
	}

	s.bindSession(w, r, p)
}

// bindSession issues the web session for a freshly signed-in principal and
// hands the session view back, cookie attached.
func (s *apiServer) bindSession(w http.ResponseWriter, r *http.Request, p *principal) {
	ctx := r.Context()

	session := p.store.Current()
	if session == nil {
		p.controller.Close()
		writeError(ctx, w, serviceerr.ErrUnknown)
		return
	}

	record, cookie, err := s.sessions.Issue(ctx, r, *session)
	if err != nil {
		p.controller.Close()
		writeError(ctx, w, err)
		return
	}

	s.principals.Bind(record.ID, p)
	http.SetCookie(w, cookie)
	writeJSON(ctx, w, http.StatusOK, s.viewOf(p))
}

func (s *apiServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view := sessionView{Verification: "idle", Destination: routing.GoToHome}
	if p, record, err := s.resolve(r); err == nil {
		if err := p.controller.SignOut(ctx); err != nil {
			slogctx.Warn(ctx, "Backend sign-out failed", "error", err)
		}

		view = s.viewOf(p)
		s.principals.Release(record.ID)
	}

	cookie, err := s.sessions.Clear(ctx, r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	http.SetCookie(w, cookie)
	writeJSON(ctx, w, http.StatusOK, view)
}

func (s *apiServer) handleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, _, err := s.resolve(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, s.viewOf(p))
}

func (s *apiServer) handleRoute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, _, err := s.resolve(r)
	if err != nil {
		// Anonymous visitors still get a routing decision.
		if errors.Is(err, serviceerr.ErrNotSignedIn) || errors.Is(err, serviceerr.ErrSessionExpired) {
			writeJSON(ctx, w, http.StatusOK, map[string]routing.Destination{"destination": routing.Route(routing.State{})})
			return
		}

		writeError(ctx, w, err)
		return
	}

	dest, err := p.controller.Route(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]routing.Destination{"destination": dest})
}

func (s *apiServer) handleCheckVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, _, err := s.resolve(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	if _, err := p.controller.CheckVerification(ctx); err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, s.viewOf(p))
}

func (s *apiServer) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, _, err := s.resolve(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	// Outcome arrives as a notice, success or not.
	p.controller.ResendVerificationEmail(ctx)
	writeJSON(ctx, w, http.StatusOK, s.viewOf(p))
}

func (s *apiServer) handleAddProvider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	_, record, err := s.resolve(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var provider providers.Provider
	if err := decodeBody(r, &provider); err != nil {
		writeError(ctx, w, err)
		return
	}

	created, err := s.providers.Add(ctx, record.Session.AccessToken, provider)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusCreated, created)
}

func (s *apiServer) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, record, err := s.resolve(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	if record.Session.User.Role() != backend.RoleLender {
		writeError(ctx, w, serviceerr.ErrUnauthorized)
		return
	}

	var draft profile.Draft
	if err := decodeBody(r, &draft); err != nil {
		writeError(ctx, w, err)
		return
	}

	// The profile always belongs to the caller, whatever the body claims.
	draft.Profile.UserID = record.Session.User.ID
	if err := s.profiles.Save(ctx, draft); err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, s.viewOf(p))
}

func (s *apiServer) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	_, record, err := s.resolve(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	lenderProfile, err := s.profiles.Get(ctx, record.Session.User.ID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, lenderProfile)
}
