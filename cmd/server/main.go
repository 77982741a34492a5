// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

// Package main is the entry point for the Cuecore server.
//
// Cuecore is the collaboration and library backend of a live-show cueing
// rig. Editors connect over WebSocket to browse and edit the show
// library, upload media, and hand finished projects to the playback
// engine.
//
// # Application Architecture
//
// Startup wires the components in order:
//
//  1. Configuration: koanf v2 layered load (defaults, YAML file, CUECORE_* env)
//  2. Library: on-disk layout bootstrap plus the SQLite index
//  3. Media toolchain: ffprobe/ffmpeg/audiowaveform wrappers
//  4. Engine bridge: request/response RPC over the message bus
//  5. WebSocket server: editor sessions at "/" and uploads at "/upload"
//  6. Supervisor tree: suture keeps the bridge and listeners running
//
// A second listener serves /metrics and /healthz so operational probes
// stay off the editor port.
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the root context; the supervisor then shuts
// every service down with a bounded timeout.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stagelab/cuecore/internal/config"
	"github.com/stagelab/cuecore/internal/engine"
	"github.com/stagelab/cuecore/internal/library"
	"github.com/stagelab/cuecore/internal/logging"
	"github.com/stagelab/cuecore/internal/media"
	"github.com/stagelab/cuecore/internal/project"
	"github.com/stagelab/cuecore/internal/script"
	"github.com/stagelab/cuecore/internal/server"
	"github.com/stagelab/cuecore/internal/store"
	"github.com/stagelab/cuecore/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	log := logging.Logger()

	logging.Info().
		Str("library_path", cfg.Library.Path).
		Str("db_path", cfg.Library.DatabasePath).
		Int("port", cfg.Server.Port).
		Msg("Starting Cuecore")

	layout := library.NewLayout(cfg.Library.Path)
	if err := layout.Bootstrap(); err != nil {
		logging.Fatal().Err(err).Msg("Failed to bootstrap library layout")
	}
	if err := os.MkdirAll(cfg.Library.TmpUploadPath, 0o755); err != nil {
		logging.Fatal().Err(err).Msg("Failed to create upload tmp directory")
	}

	st, err := store.Open(cfg.Library.DatabasePath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open library index")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing library index")
		}
	}()
	logging.Info().Msg("Library index opened")

	tools := media.NewToolchain()
	mediaSvc := media.NewService(st, layout, tools, tools, log)
	projectSvc := project.NewService(st, layout, script.NewXMLCodec(), log)

	registry := server.NewRegistry(log)

	// The engine shares the process-local bus; uncorrelated engine
	// messages are playback status and fan out to every session.
	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	bridge := engine.NewBridge(bus, bus, log,
		engine.WithTimeout(cfg.Engine.CallTimeout),
		engine.WithPollInterval(cfg.Engine.PollInterval),
		engine.WithResponseTTL(cfg.Engine.ResponseTTL),
		engine.WithStatusHandler(func(resp engine.Response) {
			registry.BroadcastPlayStatus(resp.Value)
		}),
	)

	handlers := server.NewHandlers(projectSvc, mediaSvc, bridge, log)
	srv := server.New(server.Config{
		DispatchersPerSession: cfg.Server.DispatchersPerSession,
		UploadTmpDir:          cfg.Library.TmpUploadPath,
		Mappings:              cfg.Mappings,
	}, registry, handlers, mediaSvc, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddMessagingService(supervisor.NewRunnerService("engine-bridge", bridge))

	editorServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  0, // WebSocket connections stay open indefinitely
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	tree.AddAPIService(supervisor.NewHTTPService("editor-listener", editorServer, 10*time.Second))
	logging.Info().Str("addr", editorServer.Addr).Msg("Editor listener added to supervisor tree")

	if cfg.Server.MetricsPort > 0 {
		metricsServer := &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
			Handler:      metricsMux(st),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		tree.AddAPIService(supervisor.NewHTTPService("metrics-listener", metricsServer, 5*time.Second))
		logging.Info().Str("addr", metricsServer.Addr).Msg("Metrics listener added to supervisor tree")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Server stopped gracefully")
}

// metricsMux serves the Prometheus endpoint and a liveness probe that
// checks the library index.
func metricsMux(st *store.Store) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			http.Error(w, "library index unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
