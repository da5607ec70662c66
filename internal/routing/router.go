// Package routing decides which screen a principal lands on. The decision is
// a pure function of the auth state so it can be tested without any I/O.
package routing

import "github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/backend"

type Destination string

const (
	GoToLogin                Destination = "login"
	GoToVerification         Destination = "verification"
	GoToHome                 Destination = "home"
	GoToLenderProfileBuilder Destination = "lender-profile-builder"
	GoToLenderDashboard      Destination = "lender-dashboard"
)

// ProfileExistence is a three-valued input: the caller may not have been able
// to look the profile up before routing.
type ProfileExistence int

const (
	ProfileUnknown ProfileExistence = iota
	ProfileMissing
	ProfileExists
)

// State is everything the router is allowed to look at. Callers fetch the
// profile existence themselves before routing a verified lender; the router
// performs no I/O.
type State struct {
	HasIdentity   bool
	IsVerified    bool
	Role          backend.Role
	LenderProfile ProfileExistence
}

// Route maps an auth state to a destination screen:
//
//	no identity                      -> login
//	unverified                       -> verification
//	verified customer                -> home
//	verified lender with profile     -> lender dashboard
//	verified lender without profile  -> profile builder
//
// An unknown profile existence counts as missing; the profile builder is the
// safe destination because it tolerates an already-existing profile.
func Route(s State) Destination {
	if !s.HasIdentity {
		return GoToLogin
	}
	if !s.IsVerified {
		return GoToVerification
	}
	if s.Role != backend.RoleLender {
		return GoToHome
	}
	if s.LenderProfile == ProfileExists {
		return GoToLenderDashboard
	}

	return GoToLenderProfileBuilder
}
