// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

// Package upload implements the per-connection upload state machine:
// announce, stream binary frames with per-frame acks, verify the final
// MD5, and hand the temp file to the media ingest.
package upload

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/stagelab/cuecore/internal/errs"
	"github.com/stagelab/cuecore/internal/sanitize"
	"github.com/stagelab/cuecore/internal/store"
)

// State of the pipeline.
type State int

// Pipeline states.
const (
	StateIdle State = iota
	StateStreaming
	StateCommitted
	StateFailed
)

// Ingester moves a completed temp file into the library.
type Ingester interface {
	Ingest(ctx context.Context, tmpPath, requestedName string) (*store.MediaRecord, error)
}

// Event is the outcome of feeding one frame to the pipeline: zero or
// more reply frames plus the resulting state transitions the session
// loop acts on.
type Event struct {
	Replies   [][]byte
	Committed bool
	Fatal     bool
	Media     *store.MediaRecord
}

type announceMsg struct {
	Action string `json:"action"`
	Value  struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	} `json:"value"`
}

type finishMsg struct {
	Action string `json:"action"`
	Value  string `json:"value"`
}

// Pipeline is the state machine behind one upload socket. It is driven
// by a single goroutine; no internal locking.
type Pipeline struct {
	tmpDir   string
	ingester Ingester
	log      zerolog.Logger

	state    State
	name     string
	tmpPath  string
	file     *os.File
	sum      hash.Hash
	expected int64
	received int64

	randInt func(lo, hi int) int
}

// NewPipeline returns an idle pipeline writing temp files under tmpDir.
func NewPipeline(tmpDir string, ingester Ingester, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		tmpDir:   tmpDir,
		ingester: ingester,
		log:      log.With().Str("component", "upload").Logger(),
		randInt:  func(lo, hi int) int { return lo + rand.IntN(hi-lo+1) },
	}
}

// State returns the current pipeline state.
func (p *Pipeline) State() State { return p.state }

// HandleText feeds one text frame to the pipeline.
func (p *Pipeline) HandleText(ctx context.Context, payload []byte) Event {
	var probe struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return p.fail(fmt.Errorf("decode upload message: %w", err))
	}

	switch probe.Action {
	case "upload":
		return p.announce(payload)
	case "finished":
		return p.finish(ctx, payload)
	default:
		return p.fail(&errs.UnknownActionError{Action: probe.Action})
	}
}

func (p *Pipeline) announce(payload []byte) Event {
	if p.state != StateIdle {
		return p.fail(fmt.Errorf("upload announced twice"))
	}
	var msg announceMsg
	if err := json.Unmarshal(payload, &msg); err != nil {
		return p.fail(fmt.Errorf("decode upload announce: %w", err))
	}
	name := sanitize.FileName(msg.Value.Name)
	if name == "" {
		return p.fail(fmt.Errorf("upload without a file name"))
	}

	tmpPath := filepath.Join(p.tmpDir, fmt.Sprintf("%s.tmp%06d", name, p.randInt(100000, 999999)))
	file, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return p.fail(fmt.Errorf("open temp file: %w", err))
	}

	p.state = StateStreaming
	p.name = msg.Value.Name
	p.tmpPath = tmpPath
	p.file = file
	p.sum = md5.New()
	p.expected = msg.Value.Size

	p.log.Info().Str("name", name).Int64("size", msg.Value.Size).Msg("upload announced")
	return Event{Replies: [][]byte{readyFrame()}}
}

// HandleBinary appends one chunk to the temp file and acks it.
func (p *Pipeline) HandleBinary(_ context.Context, chunk []byte) Event {
	if p.state != StateStreaming {
		return p.fail(fmt.Errorf("binary frame outside an upload"))
	}
	if _, err := p.file.Write(chunk); err != nil {
		return p.fail(fmt.Errorf("write temp file: %w", err))
	}
	_, _ = p.sum.Write(chunk)
	p.received += int64(len(chunk))
	return Event{Replies: [][]byte{readyFrame()}}
}

func (p *Pipeline) finish(ctx context.Context, payload []byte) Event {
	if p.state != StateStreaming {
		return p.fail(fmt.Errorf("finished outside an upload"))
	}
	var msg finishMsg
	if err := json.Unmarshal(payload, &msg); err != nil {
		return p.fail(fmt.Errorf("decode upload finish: %w", err))
	}

	if err := p.file.Close(); err != nil {
		return p.fail(fmt.Errorf("close temp file: %w", err))
	}
	p.file = nil

	if p.expected > 0 && p.received != p.expected {
		p.log.Warn().Int64("expected", p.expected).Int64("received", p.received).
			Msg("upload size mismatch")
	}

	actual := hex.EncodeToString(p.sum.Sum(nil))
	if actual != strings.ToLower(msg.Value) {
		return p.fail(&errs.FileIntegrityError{Expected: msg.Value, Actual: actual})
	}

	media, err := p.ingester.Ingest(ctx, p.tmpPath, p.name)
	if err != nil {
		return p.fail(err)
	}
	p.state = StateCommitted
	p.tmpPath = ""

	p.log.Info().Str("uuid", media.UUID).Str("unix_name", media.UnixName).Msg("upload committed")
	return Event{Replies: [][]byte{closeFrame()}, Committed: true, Media: media}
}

// fail flips the pipeline to Failed and emits a fatal error frame. All
// upload errors end the session; the client reconnects for a retry.
func (p *Pipeline) fail(err error) Event {
	p.log.Error().Err(err).Msg("upload failed")
	p.state = StateFailed
	p.cleanup()
	return Event{Replies: [][]byte{errorFrame()}, Fatal: true}
}

// Close releases the temp file. Safe to call in any state; committed
// uploads have nothing left to remove.
func (p *Pipeline) Close() {
	p.cleanup()
}

func (p *Pipeline) cleanup() {
	if p.file != nil {
		_ = p.file.Close()
		p.file = nil
	}
	if p.tmpPath != "" {
		if err := os.Remove(p.tmpPath); err != nil && !os.IsNotExist(err) {
			p.log.Warn().Err(err).Str("path", p.tmpPath).Msg("temp file cleanup failed")
		}
		p.tmpPath = ""
	}
}

func readyFrame() []byte {
	b, _ := json.Marshal(map[string]any{"ready": true})
	return b
}

func closeFrame() []byte {
	b, _ := json.Marshal(map[string]any{"close": true})
	return b
}

func errorFrame() []byte {
	b, _ := json.Marshal(map[string]any{"error": "error saving file", "fatal": true})
	return b
}
