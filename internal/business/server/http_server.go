package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/samber/oops"

	slogctx "github.com/veqryn/slog-context"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/config"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/profile"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/providers"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/websession"
)

// createHTTPServer wires the public API routes using the given config.
func createHTTPServer(
	_ context.Context,
	cfg *config.Config,
	sessions *websession.Manager,
	profiles *profile.Service,
	providerSvc *providers.Service,
	principals *Registry,
) *http.Server {
	api := newAPIServer(sessions, profiles, providerSvc, principals)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", withTelemetry(cfg, "login", api.handleLogin))
	mux.HandleFunc("POST /auth/signup", withTelemetry(cfg, "signup", api.handleSignup))
	mux.HandleFunc("POST /auth/logout", withTelemetry(cfg, "logout", api.handleLogout))
	mux.HandleFunc("GET /auth/session", withTelemetry(cfg, "session", api.handleSession))
	mux.HandleFunc("GET /auth/route", withTelemetry(cfg, "route", api.handleRoute))
	mux.HandleFunc("POST /auth/check-verification", withTelemetry(cfg, "check-verification", api.handleCheckVerification))
	mux.HandleFunc("POST /auth/resend-verification", withTelemetry(cfg, "resend-verification", api.handleResendVerification))
	mux.HandleFunc("POST /providers", withTelemetry(cfg, "add-provider", api.handleAddProvider))
	mux.HandleFunc("PUT /profile", withTelemetry(cfg, "save-profile", api.handleSaveProfile))
	mux.HandleFunc("GET /profile", withTelemetry(cfg, "get-profile", api.handleGetProfile))
	mux.HandleFunc("GET /ping", pingHandlerFunc(cfg))

	return &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: mux,
	}
}

// StartHTTPServer starts the HTTP server using the given config and blocks
// until the context is cancelled, then shuts it down gracefully.
func StartHTTPServer(
	ctx context.Context,
	cfg *config.Config,
	sessions *websession.Manager,
	profiles *profile.Service,
	providerSvc *providers.Service,
	principals *Registry,
) error {
	if err := initMeters(ctx, cfg); err != nil {
		return err
	}

	server := createHTTPServer(ctx, cfg, sessions, profiles, providerSvc, principals)

	slogctx.Info(ctx, "Starting a listener", "address", server.Addr)

	// Parse network if the address if provided in the format of network://address.
	// Otherwise use tcp network by default. Some integration tests are easier to implement
	// by binding a listener to a unix socket rather than a TCP port,
	// since we don't need to look up for a free port or scan /proc/net on Linux or call sysctl on macOS
	// to discover which port the process is bound to.
	network := "tcp"
	if idx := strings.IndexRune(server.Addr, ':'); idx != -1 && len(server.Addr) > idx+3 && server.Addr[idx:idx+3] == "://" {
		network = server.Addr[:idx]
		server.Addr = server.Addr[idx+3:]
	}

	listener, err := new(net.ListenConfig).Listen(ctx, network, server.Addr)
	if err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed to create a listener")
	}

	slogctx.Info(ctx, "A listener started", "address", listener.Addr().String())

	go func() {
		slogctx.Info(ctx, "Serving an HTTP server", "address", listener.Addr().String())
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogctx.Error(ctx, "Failed to serve an HTTP server", "error", err)
		}

		slogctx.Info(ctx, "Stopped an HTTP server")
	}()

	<-ctx.Done()

	shutdownCtx, shutdownRelease := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer shutdownRelease()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed shutting down HTTP server")
	}

	slogctx.Info(ctx, "Completed graceful shutdown of HTTP server")

	return nil
}
