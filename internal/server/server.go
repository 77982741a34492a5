// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

// Package server hosts the WebSocket surface of the cueing server: the
// editor session endpoint with its action dispatch, and the binary
// upload endpoint.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stagelab/cuecore/internal/metrics"
	"github.com/stagelab/cuecore/internal/upload"
)

const (
	editorReadLimit = 512 * 1024
	uploadReadLimit = 64 * 1024 * 1024
)

// Config carries the server knobs the session layer needs.
type Config struct {
	// DispatchersPerSession is the number of concurrent action workers
	// per editor socket.
	DispatchersPerSession int
	// UploadTmpDir receives in-flight upload temp files.
	UploadTmpDir string
	// Mappings is the hardware mapping object relayed verbatim to every
	// new session in the initial_mappings frame.
	Mappings map[string]any
}

// Server accepts editor and upload WebSocket connections.
type Server struct {
	cfg      Config
	registry *Registry
	handlers *Handlers
	ingester upload.Ingester
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// New wires the WebSocket server.
func New(cfg Config, registry *Registry, handlers *Handlers, ingester upload.Ingester, log zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		registry: registry,
		handlers: handlers,
		ingester: ingester,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The editor runs on the same machine or a trusted LAN.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log.With().Str("component", "server").Logger(),
	}
}

// Router returns the HTTP routes: editor sessions at "/", uploads at
// "/upload". Anything else is a 404.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleEditor)
	r.Get("/upload", s.handleUpload)
	return r
}

// handleEditor runs one editor session to completion.
func (s *Server) handleEditor(w http.ResponseWriter, r *http.Request) {
	id, err := s.registry.Resolve(r.URL.Query().Get("session"))
	if err != nil {
		http.Error(w, "session setup failed", http.StatusInternalServerError)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("editor upgrade failed")
		return
	}
	ws.SetReadLimit(editorReadLimit)
	defer func() { _ = ws.Close() }()

	sess := newSession(id, ws, s.registry, s.handlers, s.cfg.DispatchersPerSession, s.log)
	sess.enqueue(textFrame(reply{Type: TypeSessionID, Value: id}))
	sess.enqueue(textFrame(reply{Type: TypeInitialMappings, Value: s.cfg.Mappings}))

	s.registry.Register(sess)
	defer s.registry.Unregister(sess)

	_ = sess.run(r.Context())
}

// handleUpload runs one upload pipeline to completion. The upload
// socket is strictly request-reply, so a single loop drives it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("upload upgrade failed")
		return
	}
	ws.SetReadLimit(uploadReadLimit)
	defer func() { _ = ws.Close() }()

	pipeline := upload.NewPipeline(s.cfg.UploadTmpDir, s.ingester, s.log)
	defer pipeline.Close()

	for {
		messageType, payload, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var ev upload.Event
		switch messageType {
		case websocket.TextMessage:
			ev = pipeline.HandleText(r.Context(), payload)
		case websocket.BinaryMessage:
			metrics.RecordUploadChunk(len(payload))
			ev = pipeline.HandleBinary(r.Context(), payload)
		default:
			continue
		}

		for _, frame := range ev.Replies {
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
		if ev.Committed {
			metrics.RecordUpload(true)
			s.registry.BroadcastListUpdate("", ListFiles)
			return
		}
		if ev.Fatal {
			metrics.RecordUpload(false)
			return
		}
	}
}
