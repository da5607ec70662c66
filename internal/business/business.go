// Package business wires the domain services together and runs them.
package business

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/valkey-io/valkey-go"

	slogctx "github.com/veqryn/slog-context"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/backend"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/business/server"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/config"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/profile"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/providers"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/websession"
	websessionvalkey "github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/websession/valkey"
)

// services holds everything the HTTP server and the housekeeper need.
type services struct {
	sessions   *websession.Manager
	records    websession.Repository
	profiles   *profile.Service
	providers  *providers.Service
	principals *server.Registry
}

// Main starts the public API server and the housekeeper and blocks until
// either fails or the context is cancelled.
func Main(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	svcs, closeFn, err := initServices(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising services: %w", err)
	}

	defer closeFn()

	// errChan is used to capture the first error and shutdown everything.
	errChan := make(chan error, 1)

	// wg is used to wait for all parts to shutdown.
	var wg sync.WaitGroup

	// start the public HTTP REST API server
	wg.Go(func() {
		errChan <- server.StartHTTPServer(ctx, cfg, svcs.sessions, svcs.profiles, svcs.providers, svcs.principals)
	})

	// start the periodic cleanup of expired sessions and idle runtimes
	wg.Go(func() {
		errChan <- startHousekeeper(ctx, cfg, svcs)
	})

	// wait for any error to initiate the shutdown
	if err := <-errChan; err != nil {
		slogctx.Error(ctx, "Shutting down", "error", err)
	}
	cancel()

	// wait for everything to shutdown
	wg.Wait()

	return nil
}

func initServices(_ context.Context, cfg *config.Config) (_ *services, closeFn func(), _ error) {
	apiKey, err := loadAPIKey(cfg.Backend)
	if err != nil {
		return nil, nil, fmt.Errorf("loading backend API key: %w", err)
	}

	backendClient, err := backend.NewHTTPClient(cfg.Backend.BaseURL, apiKey, cfg.Backend.RequestTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("creating a backend client: %w", err)
	}

	valkeyClient, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.ValKey.Host},
		Username:    cfg.ValKey.User,
		Password:    cfg.ValKey.Password,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating a new valkey client: %w", err)
	}

	records := websessionvalkey.NewRepository(valkeyClient, cfg.ValKey.Prefix, cfg.Marketplace.SessionDuration)
	sessions := websession.NewManager(
		backendClient,
		records,
		cfg.Marketplace.SessionCookieTemplate,
		cfg.Marketplace.SessionDuration,
	)
	profiles := profile.NewService(backendClient, cfg.Marketplace.ProfileCacheTTL, cfg.Backend.LogoBucket)
	principals := server.NewRegistry(backendClient, profiles, cfg.Marketplace.Verification)

	return &services{
		sessions:   sessions,
		records:    records,
		profiles:   profiles,
		providers:  providers.NewService(backendClient),
		principals: principals,
	}, valkeyClient.Close, nil
}

// loadAPIKey prefers the key file when one is configured, so deployments can
// mount the key as a secret instead of writing it into the config.
func loadAPIKey(cfg config.Backend) (string, error) {
	if cfg.APIKeyFile == "" {
		return cfg.APIKey, nil
	}

	data, err := os.ReadFile(cfg.APIKeyFile)
	if err != nil {
		return "", fmt.Errorf("reading API key file: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}
