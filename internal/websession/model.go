// Package websession holds the cookie-addressed session records that tie a
// browser to its backend tokens.
package websession

import (
	"time"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/backend"
)

// Record represents one browser session in our system.
type Record struct {
	ID          string          // Session ID, carried in the session cookie
	Fingerprint string          // Fingerprint to bind the session to a specific client
	Session     backend.Session // Backend tokens plus the identity snapshot
	CreatedAt   time.Time       // When the browser signed in
	Expiry      time.Time       // Hard expiry of the web session
}

func (r Record) Expired() bool {
	return !r.Expiry.IsZero() && time.Now().After(r.Expiry)
}
