package backend

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleLender   Role = "lender"
)

// Identity is the authenticated principal's durable record as held by the
// hosted backend. It is immutable once created except for ConfirmedAt,
// which transitions once from nil to a value when the email is verified.
type Identity struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	Phone       string         `json:"phone,omitempty"`
	ConfirmedAt *time.Time     `json:"email_confirmed_at"`
	Metadata    map[string]any `json:"user_metadata"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Role reads the role claim from the sign-up metadata. Unknown or missing
// claims default to customer, matching the sign-up form's default.
func (i Identity) Role() Role {
	if v, ok := i.Metadata["user_type"].(string); ok && Role(v) == RoleLender {
		return RoleLender
	}
	return RoleCustomer
}

// Verified reports whether the backend has confirmed the identity's email.
func (i Identity) Verified() bool {
	return i.ConfirmedAt != nil && !i.ConfirmedAt.IsZero()
}

// Session is the live, time-bounded credential referencing exactly one
// Identity. It is replaced wholesale on token refresh.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry,omitzero"`
	User         Identity  `json:"user"`
}

func (s Session) Expired() bool {
	return !s.Expiry.IsZero() && time.Now().After(s.Expiry)
}
