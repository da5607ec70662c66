// Package providers registers third-party service providers on behalf of a
// signed-in user.
package providers

import (
	"context"
	"fmt"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/backend"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/serviceerr"
)

// Provider is one row of the service_providers table.
type Provider struct {
	ID          string `json:"id,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	Name        string `json:"name"`
	ServiceType string `json:"service_type"`
	Phone       string `json:"phone"`
	Location    string `json:"location"`
}

type Service struct {
	backend backend.Client
}

func NewService(client backend.Client) *Service {
	return &Service{backend: client}
}

// Add validates the submission, resolves the caller from their access token
// and inserts the provider attributed to them. All four descriptive fields
// are required.
func (s *Service) Add(ctx context.Context, accessToken string, provider Provider) (Provider, error) {
	if provider.Name == "" || provider.ServiceType == "" || provider.Phone == "" || provider.Location == "" {
		return Provider{}, &serviceerr.Error{
			Err:         serviceerr.CodeInvalidRequest,
			Description: "Missing required fields",
		}
	}

	identity, err := s.backend.GetUser(ctx, accessToken)
	if err != nil {
		return Provider{}, fmt.Errorf("resolving caller: %w", err)
	}

	provider.ID = ""
	provider.UserID = identity.ID
	if err := s.backend.Insert(ctx, backend.TableProviders, provider); err != nil {
		return Provider{}, fmt.Errorf("inserting provider: %w", err)
	}

	return provider, nil
}
