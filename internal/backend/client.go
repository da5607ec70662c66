// Package backend is the capability interface to the hosted
// backend-as-a-service that owns authentication, row-level table CRUD and
// object storage. The application never talks to a database of its own;
// everything durable lives behind this interface.
package backend

import "context"

// Filter restricts table reads and deletes to rows whose columns equal the
// given values.
type Filter map[string]string

type Client interface {
	// Password-based auth.
	SignInWithPassword(ctx context.Context, email, password string) (Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (Session, error)
	SignOut(ctx context.Context, accessToken string) error
	RefreshSession(ctx context.Context, refreshToken string) (Session, error)

	// GetUser fetches the identity fresh from the backend, bypassing any
	// cached session state. Verification checks rely on this.
	GetUser(ctx context.Context, accessToken string) (Identity, error)

	ResendVerification(ctx context.Context, email string) error

	// Row-level CRUD on the relational tables.
	Select(ctx context.Context, table string, filter Filter, dest any) error
	Insert(ctx context.Context, table string, rows any) error
	Upsert(ctx context.Context, table string, onConflict string, rows any) error
	Delete(ctx context.Context, table string, filter Filter) error

	// UploadObject stores a blob and returns its public URL.
	UploadObject(ctx context.Context, bucket, path, contentType string, data []byte) (string, error)
}

// Table names owned by the hosted backend.
const (
	TableProfiles        = "profiles"
	TableLoanAgents      = "loanagents"
	TableLoanProducts    = "loan_products"
	TableEmploymentTypes = "loanagent_employment_types"
	TableProviders       = "service_providers"
)
