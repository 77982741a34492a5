// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

package server

import (
	"context"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// conn is the slice of *websocket.Conn the session workers use. Tests
// substitute a scripted connection.
type conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Session is one connected editor: a reader draining the socket into an
// unbounded inbound queue, a writer serializing the outbound queue onto
// the socket, and a small pool of dispatchers in between. Several
// dispatchers per session keep a slow action (list, load, duplicate)
// from blocking quick ones sent right after it on the same socket.
type Session struct {
	id          string
	conn        conn
	registry    *Registry
	handlers    *Handlers
	dispatchers int
	log         zerolog.Logger

	inbound  *queue[[]byte]
	outbound *queue[outFrame]
}

func newSession(id string, c conn, registry *Registry, handlers *Handlers, dispatchers int, log zerolog.Logger) *Session {
	if dispatchers < 1 {
		dispatchers = 1
	}
	return &Session{
		id:          id,
		conn:        c,
		registry:    registry,
		handlers:    handlers,
		dispatchers: dispatchers,
		log:         log.With().Str("component", "session").Str("session_id", id).Logger(),
		inbound:     newQueue[[]byte](),
		outbound:    newQueue[outFrame](),
	}
}

// ID returns the session identifier the client resumes with.
func (s *Session) ID() string { return s.id }

// enqueue queues one outbound frame. Never blocks.
func (s *Session) enqueue(frame outFrame) {
	s.outbound.push(frame)
}

// run drives the session workers until the socket closes or ctx is
// cancelled. The first worker to fail takes the others down with it.
func (s *Session) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.reader(ctx) })
	g.Go(func() error { return s.writer(ctx) })
	for i := 0; i < s.dispatchers; i++ {
		g.Go(func() error { return s.dispatcher(ctx) })
	}

	err := g.Wait()
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.log.Debug().Err(err).Msg("session ended")
	}
	return err
}

// reader drains socket frames into the inbound queue. It always makes
// progress; backpressure is absorbed by the queue, not the socket.
func (s *Session) reader(ctx context.Context) error {
	defer s.inbound.close()
	for {
		messageType, payload, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.inbound.push(payload)
	}
}

// dispatcher pops inbound messages, runs the action, and applies its
// session-local and cross-session effects.
func (s *Session) dispatcher(ctx context.Context) error {
	for {
		payload, ok := s.inbound.pop(ctx)
		if !ok {
			return ctx.Err()
		}
		res := s.handlers.Handle(ctx, payload)
		for _, frame := range res.frames {
			s.outbound.push(frame)
		}
		if res.loadedProject != "" {
			s.registry.BindProject(s.id, res.loadedProject)
		}
		for _, list := range res.listUpdates {
			s.registry.BroadcastListUpdate(s.id, list)
		}
		if res.projectUpdate != "" {
			s.registry.BroadcastProjectUpdate(s.id, res.projectUpdate)
		}
	}
}

// writer serializes outbound frames onto the socket.
func (s *Session) writer(ctx context.Context) error {
	for {
		frame, ok := s.outbound.pop(ctx)
		if !ok {
			return ctx.Err()
		}
		if err := s.conn.WriteMessage(frame.kind, frame.data); err != nil {
			return err
		}
	}
}
