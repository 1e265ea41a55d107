// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

/*
Package supervisor runs the long-lived Relaychat services under suture v4.

# Overview

Services are grouped into three layers so a failure in one does not restart
the others:

	RootSupervisor ("relaychat")
	├── TransportSupervisor ("transport-layer")
	│   └── EmbeddedNATSService (if NATS_EMBEDDED=true)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── DispatcherService
	│   └── RelayService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A relay subscription that ends makes RelayService return an error; suture
restarts it with backoff while publishes keep falling back to local delivery.

# Logging

Supervisor events (service panics, restarts, backoff) are logged through
sutureslog. Pass logging.NewSlogLogger() so they share the zerolog sink:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddMessagingService(services.NewRelayService(rel))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	err = tree.Serve(ctx)

Service wrappers live in the services subpackage.
*/
package supervisor
