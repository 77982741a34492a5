// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

package server

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stagelab/cuecore/internal/metrics"
)

// Registry tracks the connected sessions and the session-to-project
// bindings behind same-project broadcasts. Bindings outlive the
// connection so a reconnecting client resumes on its loaded project
// without re-loading; the registry itself is process-local and transient.
type Registry struct {
	log zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	bindings map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		log:      log.With().Str("component", "registry").Logger(),
		sessions: make(map[string]*Session),
		bindings: make(map[string]string),
	}
}

// Resolve returns requested when it names a known session identity, or a
// freshly minted time-ordered uuid otherwise.
func (r *Registry) Resolve(requested string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if requested != "" {
		if _, known := r.bindings[requested]; known {
			return requested, nil
		}
	}
	id, err := uuid.NewUUID()
	if err != nil {
		return "", err
	}
	r.bindings[id.String()] = ""
	return id.String(), nil
}

// Register adds a live session and announces the new user count.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	r.sessions[s.id] = s
	count := len(r.sessions)
	r.mu.Unlock()

	metrics.ActiveSessions.Set(float64(count))
	metrics.SessionsTotal.Inc()
	r.log.Info().Str("session_id", s.id).Int("users", count).Msg("session connected")
	r.broadcastUsers()
}

// Unregister drops a live session, keeping its project binding for a
// later resume, and announces the new user count.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	if r.sessions[s.id] == s {
		delete(r.sessions, s.id)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	metrics.ActiveSessions.Set(float64(count))
	r.log.Info().Str("session_id", s.id).Int("users", count).Msg("session disconnected")
	r.broadcastUsers()
}

// BindProject marks the project a session currently has loaded.
func (r *Registry) BindProject(sessionID, projectUUID string) {
	r.mu.Lock()
	r.bindings[sessionID] = projectUUID
	r.mu.Unlock()
}

// Project returns the project bound to a session identity.
func (r *Registry) Project(sessionID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bindings[sessionID]
}

// Users returns the number of live sessions.
func (r *Registry) Users() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// peers returns the live sessions except the named one, in a stable
// order.
func (r *Registry) peers(except string) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		if id == except {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// BroadcastListUpdate tells every other session that a list changed.
func (r *Registry) BroadcastListUpdate(except, listName string) {
	frame := textFrame(reply{Type: TypeListUpdate, Value: listName})
	for _, s := range r.peers(except) {
		s.enqueue(frame)
		metrics.RecordBroadcast(TypeListUpdate)
	}
}

// BroadcastProjectUpdate tells every other session bound to the same
// project that its content changed.
func (r *Registry) BroadcastProjectUpdate(except, projectUUID string) {
	frame := textFrame(reply{Type: TypeProjectUpdate, Value: projectUUID})
	for _, s := range r.peers(except) {
		if r.Project(s.id) != projectUUID {
			continue
		}
		s.enqueue(frame)
		metrics.RecordBroadcast(TypeProjectUpdate)
	}
}

// BroadcastPlayStatus relays an unsolicited engine status frame to every
// session.
func (r *Registry) BroadcastPlayStatus(value any) {
	frame := textFrame(reply{Type: TypePlayStatus, Value: value})
	for _, s := range r.peers("") {
		s.enqueue(frame)
		metrics.RecordBroadcast(TypePlayStatus)
	}
}

func (r *Registry) broadcastUsers() {
	frame := textFrame(reply{Type: TypeUsers, Value: r.Users()})
	for _, s := range r.peers("") {
		s.enqueue(frame)
		metrics.RecordBroadcast(TypeUsers)
	}
}
