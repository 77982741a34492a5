// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

package server

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagelab/cuecore/internal/logging"
)

var errConnClosed = errors.New("connection closed")

// fakeConn scripts the socket side of a session.
type fakeConn struct {
	reads chan []byte

	mu     sync.Mutex
	writes []outFrame

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads:  make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case p := <-c.reads:
		return websocket.TextMessage, p, nil
	case <-c.closed:
		return 0, nil, errConnClosed
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	c.mu.Lock()
	c.writes = append(c.writes, outFrame{kind: messageType, data: data})
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// frameOfType scans the frames written so far for the first with the
// given type field.
func (c *fakeConn) frameOfType(frameType string) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, frame := range c.writes {
		if frame.kind != websocket.TextMessage {
			continue
		}
		var m map[string]any
		if json.Unmarshal(frame.data, &m) == nil && m["type"] == frameType {
			return m, true
		}
	}
	return nil, false
}

func waitForFrame(t *testing.T, c *fakeConn, frameType string) map[string]any {
	t.Helper()
	var frame map[string]any
	require.Eventually(t, func() bool {
		m, ok := c.frameOfType(frameType)
		frame = m
		return ok
	}, 2*time.Second, 5*time.Millisecond, "no %s frame", frameType)
	return frame
}

type sessionFixture struct {
	*handlerFixture
	registry *Registry
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	return &sessionFixture{
		handlerFixture: newHandlerFixture(t),
		registry:       NewRegistry(logging.NewTestLogger(os.Stderr)),
	}
}

// startSession registers and runs a session over a fake conn.
func (f *sessionFixture) startSession(t *testing.T, id string) *fakeConn {
	t.Helper()
	c := newFakeConn()
	sess := newSession(id, c, f.registry, f.handlers, 3, logging.NewTestLogger(os.Stderr))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	f.registry.Register(sess)
	go func() {
		defer close(done)
		_ = sess.run(ctx)
	}()
	t.Cleanup(func() {
		f.registry.Unregister(sess)
		cancel()
		_ = c.Close()
		<-done
	})
	return c
}

func TestSessionRepliesOnOwnSocket(t *testing.T) {
	f := newSessionFixture(t)
	c := f.startSession(t, "s1")

	c.reads <- action(t, "project_list", nil)
	frame := waitForFrame(t, c, "project_list")
	assert.NotNil(t, frame)
}

func TestSessionBroadcastsListUpdateToPeers(t *testing.T) {
	f := newSessionFixture(t)
	c1 := f.startSession(t, "s1")
	c2 := f.startSession(t, "s2")

	c1.reads <- action(t, "project_save", saveBody("demo"))
	waitForFrame(t, c1, "project_save")

	frame := waitForFrame(t, c2, TypeListUpdate)
	assert.Equal(t, ListProjects, frame["value"])

	// The saving session never hears its own list_update.
	_, selfHeard := c1.frameOfType(TypeListUpdate)
	assert.False(t, selfHeard)
}

func TestProjectUpdateOnlyReachesSameProjectPeers(t *testing.T) {
	f := newSessionFixture(t)
	c1 := f.startSession(t, "s1")
	c2 := f.startSession(t, "s2")
	c3 := f.startSession(t, "s3")

	c1.reads <- action(t, "project_save", saveBody("demo"))
	saved := waitForFrame(t, c1, "project_save")
	projectUUID := saved["value"].(string)

	// Session 2 loads the same project; session 3 stays unbound.
	c2.reads <- action(t, "project_load", projectUUID)
	waitForFrame(t, c2, "project")

	body := saveBody("demo")
	body["CuemsScript"].(map[string]any)["uuid"] = projectUUID
	c1.reads <- action(t, "project_save", body)

	frame := waitForFrame(t, c2, TypeProjectUpdate)
	assert.Equal(t, projectUUID, frame["value"])
	_, heard := c3.frameOfType(TypeProjectUpdate)
	assert.False(t, heard)
}

func TestProjectDeleteNotifiesSameProjectPeers(t *testing.T) {
	f := newSessionFixture(t)
	c1 := f.startSession(t, "s1")
	c2 := f.startSession(t, "s2")

	c1.reads <- action(t, "project_save", saveBody("demo"))
	saved := waitForFrame(t, c1, "project_save")
	projectUUID := saved["value"].(string)

	c2.reads <- action(t, "project_load", projectUUID)
	waitForFrame(t, c2, "project")

	c1.reads <- action(t, "project_delete", projectUUID)
	waitForFrame(t, c1, "project_delete")

	frame := waitForFrame(t, c2, TypeProjectUpdate)
	assert.Equal(t, projectUUID, frame["value"])
}

func TestUsersBroadcastOnRegister(t *testing.T) {
	f := newSessionFixture(t)
	c1 := f.startSession(t, "s1")
	f.startSession(t, "s2")

	frame := waitForFrame(t, c1, TypeUsers)
	assert.Equal(t, float64(2), frame["value"])
}

func TestDispatcherParallelism(t *testing.T) {
	f := newSessionFixture(t)
	c := f.startSession(t, "s1")

	// A slow engine call must not block a list request sent right after.
	f.engine.err = nil
	blocked := make(chan struct{})
	f.engine.block = blocked

	c.reads <- action(t, "hw_discovery", nil)
	c.reads <- action(t, "project_list", nil)

	waitForFrame(t, c, "project_list")
	close(blocked)
	waitForFrame(t, c, "hw_discovery")
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry(logging.NewTestLogger(os.Stderr))

	id, err := r.Resolve("")
	require.NoError(t, err)
	assert.Len(t, id, 36)

	// A known identity is reused; an unknown one is replaced.
	again, err := r.Resolve(id)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	other, err := r.Resolve("not-a-known-session")
	require.NoError(t, err)
	assert.NotEqual(t, "not-a-known-session", other)
}

func TestRegistryBindingSurvivesDisconnect(t *testing.T) {
	r := NewRegistry(logging.NewTestLogger(os.Stderr))
	id, err := r.Resolve("")
	require.NoError(t, err)

	sess := newSession(id, newFakeConn(), r, nil, 1, logging.NewTestLogger(os.Stderr))
	r.Register(sess)
	r.BindProject(id, "p1")
	r.Unregister(sess)

	resumed, err := r.Resolve(id)
	require.NoError(t, err)
	assert.Equal(t, id, resumed)
	assert.Equal(t, "p1", r.Project(id))
}
