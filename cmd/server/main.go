// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/relaychat/internal/api"
	"github.com/tomtom215/relaychat/internal/auth"
	"github.com/tomtom215/relaychat/internal/chat"
	"github.com/tomtom215/relaychat/internal/config"
	"github.com/tomtom215/relaychat/internal/logging"
	"github.com/tomtom215/relaychat/internal/presence"
	"github.com/tomtom215/relaychat/internal/session"
	"github.com/tomtom215/relaychat/internal/store"
	"github.com/tomtom215/relaychat/internal/supervisor"
	"github.com/tomtom215/relaychat/internal/supervisor/services"
	ws "github.com/tomtom215/relaychat/internal/websocket"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(loggingConfig(cfg))

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("auth_mode", cfg.Security.AuthMode).
		Str("relay_backend", cfg.Relay.Backend).
		Msg("Starting Relaychat with supervisor tree")

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows every origin; set CORS_ORIGINS before exposing this server")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Open(storeConfig(cfg))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing storage")
		}
	}()
	logging.Info().
		Str("path", cfg.Storage.Path).
		Bool("in_memory", cfg.Storage.InMemory).
		Msg("Storage opened")

	// The dispatcher is the relay's local delivery target, so it exists first.
	dispatcher := ws.NewDispatcher()

	relayComponents, err := InitRelay(cfg, dispatcher)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize relay")
	}
	defer func() {
		if err := relayComponents.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing relay")
		}
	}()
	rel := relayComponents.Relay()

	publisher := presence.NewPublisher(rel, cfg.Relay.PublishTimeout)
	registry := session.NewRegistry(publisher)

	var jwtManager *auth.JWTManager
	mode := auth.AuthMode(cfg.Security.AuthMode)
	if mode == auth.AuthModeJWT || mode == auth.AuthModeMulti {
		jwtManager, err = auth.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL, cfg.Security.JWTIssuer)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create JWT manager")
		}
	}
	authenticator, err := auth.NewAuthenticator(mode, jwtManager)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create authenticator")
	}
	logging.Info().Str("authenticator", authenticator.Name()).Msg("Authentication configured")

	gateway := ws.NewGateway(dispatcher, registry, authenticator, gatewayConfig(cfg))
	gateway.SetBaseContext(ctx)

	chatService := chat.NewService(rel, db.Messages(), db.Directory(), publisher, cfg.Relay.PublishTimeout)
	chatService.RegisterRoutes(gateway)

	// A nil *JWTManager must not become a non-nil interface.
	var tokens api.TokenIssuer
	devTokens := false
	if jwtManager != nil {
		tokens = jwtManager
		devTokens = cfg.IsDevelopment()
	}
	if devTokens {
		logging.Warn().Msg("Development token endpoint enabled at /api/v1/auth/dev-token")
	}

	handler := api.NewHandler(registry, rel, tokens, cfg.Security.TokenTTL)
	router := api.NewRouter(handler, gateway, api.NewChiMiddleware(middlewareConfig(cfg)), devTokens)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), treeConfig(cfg))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	relayComponents.AddToSupervisor(tree, cfg.Server.ShutdownTimeout)

	tree.AddMessagingService(services.NewDispatcherService(dispatcher))
	logging.Info().Msg("WebSocket dispatcher added to supervisor tree")

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Log level follows config file edits without a restart.
	if path := config.ConfigFile(); path != "" {
		err := config.WatchConfigFile(path, func() {
			newCfg, err := config.LoadWithKoanf()
			if err != nil {
				logging.Warn().Err(err).Msg("Ignoring invalid config reload")
				return
			}
			logging.SetLevelString(newCfg.Logging.Level)
			logging.Info().Str("level", newCfg.Logging.Level).Msg("Configuration reloaded")
		})
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Config file watch disabled")
		}
	}

	// === START SUPERVISOR TREE ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// The channel yields exactly one value and is never closed.
	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		serveErr = <-errCh
	case serveErr = <-errCh:
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
