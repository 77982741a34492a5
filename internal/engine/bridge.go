// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

// Package engine bridges the editor to the playback engine over a pair
// of message topics. Requests carry a freshly minted action uuid; a
// single drain loop collects responses into a pending list that callers
// poll until their uuid shows up or the call times out.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stagelab/cuecore/internal/errs"
	"github.com/stagelab/cuecore/internal/metrics"
)

// Topics of the engine queue pair.
const (
	TopicRequests  = "engine.requests"
	TopicResponses = "engine.responses"
)

// Defaults for the polling RPC discipline.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultPollInterval = 250 * time.Millisecond
	DefaultResponseTTL  = 30 * time.Second
)

// Request is one editor-to-engine message.
type Request struct {
	Action     string `json:"action"`
	ActionUUID string `json:"action_uuid"`
	Value      any    `json:"value,omitempty"`
}

// Response is one engine-to-editor message. Responses without an action
// uuid are unsolicited status updates, not RPC replies.
type Response struct {
	Type       string `json:"type"`
	ActionUUID string `json:"action_uuid,omitempty"`
	Value      any    `json:"value"`
}

type pendingResponse struct {
	resp Response
	at   time.Time
}

// Bridge is the RPC endpoint towards the engine process.
type Bridge struct {
	pub message.Publisher
	sub message.Subscriber
	log zerolog.Logger

	timeout      time.Duration
	pollInterval time.Duration
	responseTTL  time.Duration

	mu       sync.Mutex
	pending  []pendingResponse
	onStatus func(Response)

	clock func() time.Time
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.timeout = d }
}

// WithPollInterval overrides the pending-list polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(b *Bridge) { b.pollInterval = d }
}

// WithResponseTTL overrides how long an unclaimed response is kept
// before the drain loop drops it.
func WithResponseTTL(d time.Duration) Option {
	return func(b *Bridge) { b.responseTTL = d }
}

// WithStatusHandler registers a callback for unsolicited engine messages
// (play position, transport state). Called from the drain goroutine.
func WithStatusHandler(fn func(Response)) Option {
	return func(b *Bridge) { b.onStatus = fn }
}

// NewBridge wires a bridge over the given pub/sub pair.
func NewBridge(pub message.Publisher, sub message.Subscriber, log zerolog.Logger, opts ...Option) *Bridge {
	b := &Bridge{
		pub:          pub,
		sub:          sub,
		log:          log.With().Str("component", "engine").Logger(),
		timeout:      DefaultTimeout,
		pollInterval: DefaultPollInterval,
		responseTTL:  DefaultResponseTTL,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Serve drains the response topic until ctx is cancelled. Intended to
// run under the supervision tree.
func (b *Bridge) Serve(ctx context.Context) error {
	messages, err := b.sub.Subscribe(ctx, TopicResponses)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			b.consume(msg)
		}
	}
}

func (b *Bridge) consume(msg *message.Message) {
	defer msg.Ack()

	var resp Response
	if err := json.Unmarshal(msg.Payload, &resp); err != nil {
		b.log.Warn().Err(err).Msg("undecodable engine message")
		return
	}

	if resp.ActionUUID == "" {
		if b.onStatus != nil {
			b.onStatus(resp)
		}
		return
	}

	b.mu.Lock()
	b.evictLocked()
	b.pending = append(b.pending, pendingResponse{resp: resp, at: b.clock()})
	b.mu.Unlock()
}

// evictLocked drops responses nobody claimed within the TTL, so replies
// to timed-out calls do not pile up.
func (b *Bridge) evictLocked() {
	cutoff := b.clock().Add(-b.responseTTL)
	kept := b.pending[:0]
	for _, p := range b.pending {
		if p.at.After(cutoff) {
			kept = append(kept, p)
		}
	}
	b.pending = kept
}

// take removes and returns the pending response matching actionUUID.
func (b *Bridge) take(actionUUID string) (Response, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.pending {
		if p.resp.ActionUUID == actionUUID {
			b.pending = append(b.pending[:i], b.pending[i+1:]...)
			return p.resp, true
		}
	}
	return Response{}, false
}

// Call performs one RPC round trip: publish the request, then poll the
// pending list for the matching response. The engine acknowledges with
// type mirroring the action and value "OK"; anything else is an engine
// error.
func (b *Bridge) Call(ctx context.Context, action string, value any) (Response, error) {
	start := b.clock()
	resp, err := b.call(ctx, action, value)
	metrics.RecordEngineCall(action, b.clock().Sub(start), err)
	return resp, err
}

func (b *Bridge) call(ctx context.Context, action string, value any) (Response, error) {
	id, err := uuid.NewUUID()
	if err != nil {
		return Response{}, err
	}
	req := Request{Action: action, ActionUUID: id.String(), Value: value}
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, err
	}
	if err := b.pub.Publish(TopicRequests, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		return Response{}, err
	}

	b.log.Debug().Str("action", action).Str("action_uuid", req.ActionUUID).Msg("engine request")

	deadline := b.clock().Add(b.timeout)
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()
	for {
		if resp, ok := b.take(req.ActionUUID); ok {
			if resp.Type != action {
				return Response{}, &errs.EngineError{Action: action, Message: "unexpected response type " + resp.Type}
			}
			if v, _ := resp.Value.(string); v != "OK" {
				return Response{}, &errs.EngineError{Action: action, Message: "engine replied not OK"}
			}
			return resp, nil
		}
		if !b.clock().Before(deadline) {
			return Response{}, &errs.TimeoutError{Action: action}
		}
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
