package providers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/backend"
	backendmock "github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/backend/mock"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/providers"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/serviceerr"
)

func TestService_Add(t *testing.T) {
	valid := providers.Provider{
		Name:        "QuickDocs Notary",
		ServiceType: "Documentation",
		Phone:       "+91-9876543210",
		Location:    "Mumbai",
	}

	t.Run("Inserts the provider attributed to the caller", func(t *testing.T) {
		client := backendmock.NewClient(
			backendmock.WithAccount("agent@example.com", "secret", backend.RoleLender, true))
		session, err := client.SignInWithPassword(t.Context(), "agent@example.com", "secret")
		require.NoError(t, err)

		created, err := providers.NewService(client).Add(t.Context(), session.AccessToken, valid)
		require.NoError(t, err)
		assert.Equal(t, session.User.ID, created.UserID)

		rows := client.Rows(backend.TableProviders)
		require.Len(t, rows, 1)
		assert.Equal(t, "QuickDocs Notary", rows[0]["name"])
		assert.Equal(t, session.User.ID, rows[0]["user_id"])
	})

	t.Run("Rejects incomplete submissions", func(t *testing.T) {
		client := backendmock.NewClient()
		service := providers.NewService(client)

		for _, incomplete := range []providers.Provider{
			{ServiceType: "Documentation", Phone: "1", Location: "Mumbai"},
			{Name: "X", Phone: "1", Location: "Mumbai"},
			{Name: "X", ServiceType: "Documentation", Location: "Mumbai"},
			{Name: "X", ServiceType: "Documentation", Phone: "1"},
		} {
			_, err := service.Add(t.Context(), "token", incomplete)
			var serr *serviceerr.Error
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, serviceerr.CodeInvalidRequest, serr.Err)
		}
		assert.Empty(t, client.Rows(backend.TableProviders))
	})

	t.Run("Rejects callers without a valid token", func(t *testing.T) {
		client := backendmock.NewClient()

		_, err := providers.NewService(client).Add(t.Context(), "stale-token", valid)
		require.ErrorIs(t, err, serviceerr.ErrNotSignedIn)
		assert.Empty(t, client.Rows(backend.TableProviders))
	})

	t.Run("Never trusts a caller-supplied user id", func(t *testing.T) {
		client := backendmock.NewClient(
			backendmock.WithAccount("agent@example.com", "secret", backend.RoleLender, true))
		session, err := client.SignInWithPassword(t.Context(), "agent@example.com", "secret")
		require.NoError(t, err)

		spoofed := valid
		spoofed.UserID = "somebody-else"
		created, err := providers.NewService(client).Add(t.Context(), session.AccessToken, spoofed)
		require.NoError(t, err)
		assert.Equal(t, session.User.ID, created.UserID)
	})
}
