// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

package project

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagelab/cuecore/internal/errs"
	"github.com/stagelab/cuecore/internal/library"
	"github.com/stagelab/cuecore/internal/logging"
	"github.com/stagelab/cuecore/internal/script"
	"github.com/stagelab/cuecore/internal/store"
)

type fixture struct {
	svc    *Service
	store  *store.Store
	layout *library.Layout
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()

	st, err := store.Open(filepath.Join(root, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	layout := library.NewLayout(filepath.Join(root, "library"))
	require.NoError(t, layout.Bootstrap())

	svc := NewService(st, layout, script.NewXMLCodec(), logging.NewTestLogger(os.Stderr))
	svc.now = func() string { return "2026-08-24T10:00:00Z" }

	return &fixture{svc: svc, store: st, layout: layout}
}

func (f *fixture) addMedia(t *testing.T, uuid, unixName string) {
	t.Helper()
	require.NoError(t, f.store.CreateMedia(context.Background(), f.store.DB(), &store.MediaRecord{
		UUID: uuid, Name: unixName, UnixName: unixName,
		Created: "2026-08-24T09:00:00Z", Modified: "2026-08-24T09:00:00Z",
		Type: store.MediaTypeAudio, Duration: "0:00:03.123",
	}))
}

func showScript(unixName string, refs ...string) script.Script {
	contents := make([]any, 0, len(refs))
	for _, ref := range refs {
		contents = append(contents, map[string]any{
			"AudioCue": map[string]any{
				"Media": map[string]any{"file_name": ref},
			},
		})
	}
	return script.New(map[string]any{
		"name":        "Demo Show",
		"unix_name":   unixName,
		"description": "opening night",
		"cuelist":     map[string]any{"contents": contents},
	})
}

func TestNewProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addMedia(t, "m1", "intro.wav")

	rec, err := f.svc.New(ctx, showScript("demo", "intro.wav"))
	require.NoError(t, err)

	assert.Equal(t, "demo", rec.UnixName)
	assert.Equal(t, "Demo Show", rec.Name)
	assert.Len(t, rec.UUID, 36)
	assert.FileExists(t, f.layout.ScriptFile("demo", false))

	edges, err := f.store.ProjectMediaEdges(ctx, f.store.DB(), rec.UUID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"intro.wav": "m1"}, edges)

	loaded, err := f.svc.Load(ctx, rec.UUID)
	require.NoError(t, err)
	assert.Equal(t, rec.UUID, loaded.UUID())
	assert.Equal(t, "demo", loaded.UnixName())
	assert.Contains(t, script.MediaRefs(loaded), "intro.wav")
}

func TestNewProjectRequiresUnixName(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.New(context.Background(), showScript(""))
	assert.ErrorIs(t, err, ErrMissingUnixName)
}

func TestNewProjectUnknownMediaCleansUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.New(ctx, showScript("demo", "ghost.wav"))
	var nonExistent *errs.NonExistentItemError
	require.ErrorAs(t, err, &nonExistent)

	assert.NoDirExists(t, f.layout.ProjectDir("demo", false))
	projects, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestNewProjectVersionsOnDirCollision(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.layout.ProjectDir("demo", false), 0o755))

	rec, err := f.svc.New(context.Background(), showScript("demo"))
	require.NoError(t, err)
	assert.Equal(t, "demo-001", rec.UnixName)
	assert.FileExists(t, f.layout.ScriptFile("demo-001", false))
}

func TestNewProjectSanitizesUnixName(t *testing.T) {
	f := newFixture(t)

	rec, err := f.svc.New(context.Background(), showScript("Demo Show!"))
	require.NoError(t, err)
	assert.Equal(t, "demo_show", rec.UnixName)
}

func TestUpdateRecomputesEdges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addMedia(t, "m1", "intro.wav")
	f.addMedia(t, "m2", "outro.wav")

	rec, err := f.svc.New(ctx, showScript("demo", "intro.wav"))
	require.NoError(t, err)

	doc := showScript("sneaky_rename", "outro.wav")
	doc.SetName("Demo Show v2")
	f.svc.now = func() string { return "2026-08-24T11:00:00Z" }
	require.NoError(t, f.svc.Update(ctx, rec.UUID, doc))

	edges, err := f.store.ProjectMediaEdges(ctx, f.store.DB(), rec.UUID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"outro.wav": "m2"}, edges)

	got, err := f.store.GetProject(ctx, f.store.DB(), rec.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Demo Show v2", got.Name)
	assert.Equal(t, "demo", got.UnixName)
	assert.Equal(t, "2026-08-24T11:00:00Z", got.Modified)

	// Renames are not supported: the written script keeps the stored name.
	loaded, err := f.svc.Load(ctx, rec.UUID)
	require.NoError(t, err)
	assert.Equal(t, "demo", loaded.UnixName())
}

func TestUpdateUnknownMediaRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addMedia(t, "m1", "intro.wav")

	rec, err := f.svc.New(ctx, showScript("demo", "intro.wav"))
	require.NoError(t, err)

	err = f.svc.Update(ctx, rec.UUID, showScript("demo", "ghost.wav"))
	var nonExistent *errs.NonExistentItemError
	require.ErrorAs(t, err, &nonExistent)

	edges, err := f.store.ProjectMediaEdges(ctx, f.store.DB(), rec.UUID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"intro.wav": "m1"}, edges)
}

func TestDuplicatePreservesEdges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addMedia(t, "m1", "intro.wav")
	f.addMedia(t, "m2", "outro.wav")

	rec, err := f.svc.New(ctx, showScript("demo", "intro.wav", "outro.wav"))
	require.NoError(t, err)

	newUUID, err := f.svc.Duplicate(ctx, rec.UUID)
	require.NoError(t, err)
	assert.NotEqual(t, rec.UUID, newUUID)

	dup, err := f.store.GetProject(ctx, f.store.DB(), newUUID)
	require.NoError(t, err)
	assert.Equal(t, "demo-001", dup.UnixName)
	assert.Equal(t, "Demo Show - Copy", dup.Name)

	edges, err := f.store.ProjectMediaEdges(ctx, f.store.DB(), newUUID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"intro.wav": "m1", "outro.wav": "m2"}, edges)

	loaded, err := f.svc.Load(ctx, newUUID)
	require.NoError(t, err)
	assert.Equal(t, newUUID, loaded.UUID())
}

func TestDeleteRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.New(ctx, showScript("demo"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, rec.UUID))
	assert.NoDirExists(t, f.layout.ProjectDir("demo", false))
	assert.DirExists(t, f.layout.ProjectDir("demo", true))

	_, err = f.svc.Load(ctx, rec.UUID)
	var nonExistent *errs.NonExistentItemError
	assert.ErrorAs(t, err, &nonExistent)

	trashed, err := f.svc.ListTrash(ctx)
	require.NoError(t, err)
	require.Len(t, trashed, 1)

	require.NoError(t, f.svc.Restore(ctx, rec.UUID))
	assert.DirExists(t, f.layout.ProjectDir("demo", false))
	assert.NoDirExists(t, f.layout.ProjectDir("demo", true))
}

func TestPurge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addMedia(t, "m1", "intro.wav")

	rec, err := f.svc.New(ctx, showScript("demo", "intro.wav"))
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, rec.UUID))
	require.NoError(t, f.svc.Purge(ctx, rec.UUID))

	assert.NoDirExists(t, f.layout.ProjectDir("demo", true))

	// The media row survives the cascade, only edges go.
	_, err = f.store.GetMedia(ctx, f.store.DB(), "m1")
	assert.NoError(t, err)

	live, trash, err := f.store.MediaProjects(ctx, f.store.DB(), "m1")
	require.NoError(t, err)
	assert.Empty(t, live)
	assert.Empty(t, trash)
}

func TestUnixName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.New(ctx, showScript("demo"))
	require.NoError(t, err)

	name, err := f.svc.UnixName(ctx, rec.UUID)
	require.NoError(t, err)
	assert.Equal(t, "demo", name)
}
