// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

package upload

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagelab/cuecore/internal/logging"
	"github.com/stagelab/cuecore/internal/store"
)

type fakeIngester struct {
	err     error
	tmpPath string
	name    string
}

func (f *fakeIngester) Ingest(_ context.Context, tmpPath, name string) (*store.MediaRecord, error) {
	f.tmpPath = tmpPath
	f.name = name
	if f.err != nil {
		return nil, f.err
	}
	// Real ingest consumes the temp file by moving it.
	if err := os.Remove(tmpPath); err != nil {
		return nil, err
	}
	return &store.MediaRecord{UUID: "9cdda9ad-b75b-11eb-b941-7560b1bb1c37", UnixName: "clip_one.mov"}, nil
}

func newPipeline(t *testing.T) (*Pipeline, *fakeIngester, string) {
	t.Helper()
	tmpDir := t.TempDir()
	ing := &fakeIngester{}
	p := NewPipeline(tmpDir, ing, logging.NewTestLogger(os.Stderr))
	p.randInt = func(lo, _ int) int { return lo }
	return p, ing, tmpDir
}

func announce(name string, size int64) []byte {
	b, _ := json.Marshal(map[string]any{
		"action": "upload",
		"value":  map[string]any{"name": name, "size": size},
	})
	return b
}

func finished(md5hex string) []byte {
	b, _ := json.Marshal(map[string]any{"action": "finished", "value": md5hex})
	return b
}

func decodeReply(t *testing.T, frame []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(frame, &m))
	return m
}

func TestUploadHappyPath(t *testing.T) {
	p, ing, tmpDir := newPipeline(t)
	ctx := context.Background()

	ev := p.HandleText(ctx, announce("Clip One.mov", 10))
	require.Len(t, ev.Replies, 1)
	assert.Equal(t, map[string]any{"ready": true}, decodeReply(t, ev.Replies[0]))
	assert.Equal(t, StateStreaming, p.State())
	assert.FileExists(t, filepath.Join(tmpDir, "clip_one.mov.tmp100000"))

	sum := md5.New()
	for _, chunk := range [][]byte{[]byte("01234"), []byte("56789")} {
		sum.Write(chunk)
		ev = p.HandleBinary(ctx, chunk)
		require.Len(t, ev.Replies, 1)
		assert.Equal(t, map[string]any{"ready": true}, decodeReply(t, ev.Replies[0]))
	}

	ev = p.HandleText(ctx, finished(hex.EncodeToString(sum.Sum(nil))))
	require.True(t, ev.Committed)
	assert.False(t, ev.Fatal)
	assert.Equal(t, map[string]any{"close": true}, decodeReply(t, ev.Replies[0]))
	assert.Equal(t, StateCommitted, p.State())
	require.NotNil(t, ev.Media)
	assert.Equal(t, "clip_one.mov", ev.Media.UnixName)

	// The original pretty name reaches the ingester, not the temp name.
	assert.Equal(t, "Clip One.mov", ing.name)
	assert.Equal(t, filepath.Join(tmpDir, "clip_one.mov.tmp100000"), ing.tmpPath)

	p.Close()
}

func TestUploadWrongMD5IsFatal(t *testing.T) {
	p, _, tmpDir := newPipeline(t)
	ctx := context.Background()

	p.HandleText(ctx, announce("clip.mov", 5))
	p.HandleBinary(ctx, []byte("hello"))

	ev := p.HandleText(ctx, finished("deadbeefdeadbeefdeadbeefdeadbeef"))
	require.True(t, ev.Fatal)
	reply := decodeReply(t, ev.Replies[0])
	assert.Equal(t, "error saving file", reply["error"])
	assert.Equal(t, true, reply["fatal"])
	assert.Equal(t, StateFailed, p.State())

	// The temp file is gone immediately, not only at session teardown.
	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadMD5IsCaseInsensitive(t *testing.T) {
	p, _, _ := newPipeline(t)
	ctx := context.Background()

	p.HandleText(ctx, announce("clip.mov", 5))
	p.HandleBinary(ctx, []byte("hello"))

	sum := md5.Sum([]byte("hello"))
	upper := fmt.Sprintf("%X", sum[:])
	ev := p.HandleText(ctx, finished(upper))
	assert.True(t, ev.Committed)
}

func TestUploadTempCollisionIsFatal(t *testing.T) {
	p, _, tmpDir := newPipeline(t)
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "clip.mov.tmp100000"), nil, 0o644))

	ev := p.HandleText(context.Background(), announce("clip.mov", 5))
	assert.True(t, ev.Fatal)
	assert.Equal(t, StateFailed, p.State())
}

func TestUploadMissingTmpDirIsFatal(t *testing.T) {
	ing := &fakeIngester{}
	p := NewPipeline(filepath.Join(t.TempDir(), "gone"), ing, logging.NewTestLogger(os.Stderr))
	p.randInt = func(lo, _ int) int { return lo }

	ev := p.HandleText(context.Background(), announce("clip.mov", 5))
	require.True(t, ev.Fatal)
	reply := decodeReply(t, ev.Replies[0])
	assert.Equal(t, "error saving file", reply["error"])
	assert.Equal(t, StateFailed, p.State())
}

func TestUploadIngestFailureIsFatal(t *testing.T) {
	p, ing, tmpDir := newPipeline(t)
	ing.err = errors.New("ffprobe exploded")
	ctx := context.Background()

	p.HandleText(ctx, announce("clip.mov", 5))
	p.HandleBinary(ctx, []byte("hello"))

	sum := md5.Sum([]byte("hello"))
	ev := p.HandleText(ctx, finished(hex.EncodeToString(sum[:])))
	assert.True(t, ev.Fatal)
	assert.False(t, ev.Committed)

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBinaryBeforeAnnounceIsFatal(t *testing.T) {
	p, _, _ := newPipeline(t)

	ev := p.HandleBinary(context.Background(), []byte("hello"))
	assert.True(t, ev.Fatal)
}

func TestCloseRemovesDanglingTemp(t *testing.T) {
	p, _, tmpDir := newPipeline(t)
	ctx := context.Background()

	p.HandleText(ctx, announce("clip.mov", 5))
	p.HandleBinary(ctx, []byte("hel"))
	p.Close()

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUnknownActionIsFatal(t *testing.T) {
	p, _, _ := newPipeline(t)

	b, _ := json.Marshal(map[string]any{"action": "project_list"})
	ev := p.HandleText(context.Background(), b)
	assert.True(t, ev.Fatal)
}
