package profile_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/backend"
	backendmock "github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/backend/mock"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/profile"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/serviceerr"
)

func testDraft() profile.Draft {
	return profile.Draft{
		Profile: profile.LenderProfile{
			UserID:  "user-1",
			Name:    "Acme Loans",
			Tagline: "Fast approvals",
			City:    "Pune",
		},
		EmploymentTypes: []string{"Salaried", "Self-Employed"},
		Products: []profile.LoanProduct{
			{
				ID:              "prod-1",
				Type:            "Personal Loan",
				MinInterestRate: "10.5",
				MaxInterestRate: "18",
			},
		},
		Logo: &profile.Logo{
			FileName:    "logo.png",
			ContentType: "image/png",
			Data:        []byte("png-bytes"),
		},
	}
}

func TestService_Exists(t *testing.T) {
	t.Run("Missing profile is a normal answer", func(t *testing.T) {
		client := backendmock.NewClient()
		service := profile.NewService(client, time.Minute, "lender-logos")

		exists, err := service.Exists(t.Context(), "user-1")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Existing row is found", func(t *testing.T) {
		client := backendmock.NewClient(
			backendmock.WithRows(backend.TableLoanAgents,
				map[string]any{"id": "agent-1", "user_id": "user-1", "name": "Acme Loans"}))
		service := profile.NewService(client, time.Minute, "lender-logos")

		exists, err := service.Exists(t.Context(), "user-1")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("Lookup failure is surfaced, not treated as missing", func(t *testing.T) {
		client := backendmock.NewClient(
			backendmock.WithSelectError(errors.New("backend outage")))
		service := profile.NewService(client, time.Minute, "lender-logos")

		_, err := service.Exists(t.Context(), "user-1")
		require.Error(t, err)
	})

	t.Run("Answer is cached", func(t *testing.T) {
		client := backendmock.NewClient(
			backendmock.WithRows(backend.TableLoanAgents,
				map[string]any{"id": "agent-1", "user_id": "user-1", "name": "Acme Loans"}))
		service := profile.NewService(client, time.Minute, "lender-logos")

		exists, err := service.Exists(t.Context(), "user-1")
		require.NoError(t, err)
		require.True(t, exists)

		// A backend outage after the first lookup does not matter while the
		// cache entry is fresh.
		client.SetSelectError(errors.New("outage"))

		exists, err = service.Exists(t.Context(), "user-1")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

func TestService_Save(t *testing.T) {
	client := backendmock.NewClient(
		backendmock.WithRows(backend.TableEmploymentTypes,
			map[string]any{"loanagent_id": "", "employment_type": "Stale"}))
	service := profile.NewService(client, time.Minute, "lender-logos")

	require.NoError(t, service.Save(t.Context(), testDraft()))

	agents := client.Rows(backend.TableLoanAgents)
	require.Len(t, agents, 1)
	assert.Equal(t, "Acme Loans", agents[0]["name"])
	assert.NotEmpty(t, agents[0]["logo_url"])

	products := client.Rows(backend.TableLoanProducts)
	require.Len(t, products, 1)
	assert.Equal(t, "Personal Loan", products[0]["type"])

	employment := client.Rows(backend.TableEmploymentTypes)
	types := make([]string, 0, len(employment))
	for _, row := range employment {
		types = append(types, row["employment_type"].(string))
	}
	assert.ElementsMatch(t, []string{"Salaried", "Self-Employed", "Stale"}, types)

	exists, err := service.Exists(t.Context(), "user-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestService_SaveValidatesDraft(t *testing.T) {
	service := profile.NewService(backendmock.NewClient(), time.Minute, "lender-logos")

	err := service.Save(t.Context(), profile.Draft{Profile: profile.LenderProfile{Name: "No Owner"}})
	var serr *serviceerr.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, serviceerr.CodeInvalidRequest, serr.Err)

	err = service.Save(t.Context(), profile.Draft{Profile: profile.LenderProfile{UserID: "user-1"}})
	require.ErrorAs(t, err, &serr)
}

func TestService_SaveIsIdempotent(t *testing.T) {
	client := backendmock.NewClient()
	service := profile.NewService(client, time.Minute, "lender-logos")

	require.NoError(t, service.Save(t.Context(), testDraft()))
	require.NoError(t, service.Save(t.Context(), testDraft()))

	assert.Len(t, client.Rows(backend.TableLoanAgents), 1)
	assert.Len(t, client.Rows(backend.TableLoanProducts), 1)
	assert.Len(t, client.Rows(backend.TableEmploymentTypes), 2)
}

// A failure partway through the save leaves a resume point; the retried
// submission picks up at the failed step instead of re-running the logo
// upload and the lender upsert.
func TestService_SaveResumesAfterPartialFailure(t *testing.T) {
	client := backendmock.NewClient(
		backendmock.WithInsertError(errors.New("employment insert failed")))
	service := profile.NewService(client, time.Minute, "lender-logos")

	err := service.Save(t.Context(), testDraft())
	require.Error(t, err)

	// The lender row was written before the failure; the draft is not lost.
	require.Len(t, client.Rows(backend.TableLoanAgents), 1)
	assert.Empty(t, client.Rows(backend.TableLoanProducts))

	// Backend recovers; the retry completes the remaining steps.
	client.SetInsertError(nil)
	require.NoError(t, service.Save(t.Context(), testDraft()))

	assert.Len(t, client.Rows(backend.TableLoanAgents), 1)
	assert.Len(t, client.Rows(backend.TableEmploymentTypes), 2)
	assert.Len(t, client.Rows(backend.TableLoanProducts), 1)
}
