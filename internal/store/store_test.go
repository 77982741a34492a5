// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagelab/cuecore/internal/errs"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testProject(uuid, name string) *ProjectRecord {
	return &ProjectRecord{
		UUID: uuid, Name: name, UnixName: name,
		Created: "2026-08-24T10:00:00Z", Modified: "2026-08-24T10:00:00Z",
	}
}

func testMedia(uuid, name string, typ MediaType) *MediaRecord {
	return &MediaRecord{
		UUID: uuid, Name: name, UnixName: name,
		Created: "2026-08-24T10:00:00Z", Modified: "2026-08-24T10:00:00Z",
		Duration: "0:00:03.123", Type: typ,
	}
}

func TestProjectRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateProject(ctx, s.DB(), testProject("p1", "demo")))

	got, err := s.GetProject(ctx, s.DB(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Name)
	assert.False(t, got.InTrash)

	got.Name = "demo renamed"
	got.Modified = "2026-08-24T11:00:00Z"
	require.NoError(t, s.UpdateProject(ctx, s.DB(), got))

	got, err = s.GetProjectInState(ctx, s.DB(), "p1", false)
	require.NoError(t, err)
	assert.Equal(t, "demo renamed", got.Name)
	assert.Equal(t, "2026-08-24T11:00:00Z", got.Modified)
}

func TestGetProjectWrongTrashState(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateProject(ctx, s.DB(), testProject("p1", "demo")))

	_, err := s.GetProjectInState(ctx, s.DB(), "p1", true)
	var nonExistent *errs.NonExistentItemError
	require.ErrorAs(t, err, &nonExistent)
	assert.Equal(t, "p1", nonExistent.UUID)
}

func TestUniqueNamesConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateProject(ctx, s.DB(), testProject("p1", "demo")))
	err := s.CreateProject(ctx, s.DB(), testProject("p2", "demo"))

	var conflict *errs.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestEdgeCascadeOnDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateProject(ctx, s.DB(), testProject("p1", "demo")))
	require.NoError(t, s.CreateMedia(ctx, s.DB(), testMedia("m1", "intro.wav", MediaTypeAudio)))
	require.NoError(t, s.AddProjectMedia(ctx, s.DB(), "p1", "m1"))

	edges, err := s.ProjectMediaEdges(ctx, s.DB(), "p1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"intro.wav": "m1"}, edges)

	require.NoError(t, s.DeleteMedia(ctx, s.DB(), "m1"))

	edges, err = s.ProjectMediaEdges(ctx, s.DB(), "p1")
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestListCountsSplitByTrash(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateProject(ctx, s.DB(), testProject("p1", "live_show")))
	trashed := testProject("p2", "old_show")
	trashed.InTrash = true
	require.NoError(t, s.CreateProject(ctx, s.DB(), trashed))

	require.NoError(t, s.CreateMedia(ctx, s.DB(), testMedia("m1", "intro.wav", MediaTypeAudio)))
	require.NoError(t, s.AddProjectMedia(ctx, s.DB(), "p1", "m1"))
	require.NoError(t, s.AddProjectMedia(ctx, s.DB(), "p2", "m1"))

	media, err := s.ListMedia(ctx, s.DB(), false)
	require.NoError(t, err)
	require.Len(t, media, 1)
	assert.Equal(t, 1, media[0].ProjectCount)
	assert.Equal(t, 1, media[0].ProjectTrashCount)

	projects, err := s.ListProjects(ctx, s.DB(), false)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "p1", projects[0].UUID)
	assert.Equal(t, 1, projects[0].MediaCount)
	assert.Equal(t, 0, projects[0].MediaTrashCount)
}

func TestMediaProjectsPartition(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateProject(ctx, s.DB(), testProject("p1", "live_show")))
	trashed := testProject("p2", "old_show")
	trashed.InTrash = true
	require.NoError(t, s.CreateProject(ctx, s.DB(), trashed))
	require.NoError(t, s.CreateMedia(ctx, s.DB(), testMedia("m1", "intro.wav", MediaTypeAudio)))
	require.NoError(t, s.AddProjectMedia(ctx, s.DB(), "p1", "m1"))
	require.NoError(t, s.AddProjectMedia(ctx, s.DB(), "p2", "m1"))

	live, trash, err := s.MediaProjects(ctx, s.DB(), "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, live)
	assert.Equal(t, []string{"p2"}, trash)
}

func TestTransactionRollback(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, s.CreateMedia(ctx, tx, testMedia("m1", "intro.wav", MediaTypeAudio)))
	require.NoError(t, tx.Rollback())

	_, err = s.GetMedia(ctx, s.DB(), "m1")
	var nonExistent *errs.NonExistentItemError
	assert.ErrorAs(t, err, &nonExistent)
}

func TestImageMediaHasNoDuration(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	img := testMedia("m1", "poster.png", MediaTypeImage)
	img.Duration = ""
	require.NoError(t, s.CreateMedia(ctx, s.DB(), img))

	got, err := s.GetMedia(ctx, s.DB(), "m1")
	require.NoError(t, err)
	assert.Empty(t, got.Duration)
	assert.Equal(t, MediaTypeImage, got.Type)
}
