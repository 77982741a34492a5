// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMoveVersionedPlain(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in", "clip.mov")
	dest := filepath.Join(dir, "media")
	writeFile(t, src, "payload")
	require.NoError(t, os.MkdirAll(dest, 0o755))

	name, err := MoveVersioned(src, dest, "clip.mov")
	require.NoError(t, err)
	assert.Equal(t, "clip.mov", name)

	data, err := os.ReadFile(filepath.Join(dest, name))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.NoFileExists(t, src)
}

func TestMoveVersionedCollisionKeepsExtension(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "media")
	writeFile(t, filepath.Join(dest, "clip.mov"), "old")
	writeFile(t, filepath.Join(dest, "clip-001.mov"), "older")

	src := filepath.Join(dir, "clip.mov")
	writeFile(t, src, "new")

	name, err := MoveVersioned(src, dest, "clip.mov")
	require.NoError(t, err)
	assert.Equal(t, "clip-002.mov", name)

	// Never overwrites.
	old, err := os.ReadFile(filepath.Join(dest, "clip.mov"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))
}

func TestMoveVersionedDirectory(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "trash")
	require.NoError(t, os.MkdirAll(filepath.Join(dest, "demo"), 0o755))

	src := filepath.Join(dir, "projects", "demo")
	writeFile(t, filepath.Join(src, "script.xml"), "<CuemsScript/>")

	name, err := MoveVersioned(src, dest, "demo")
	require.NoError(t, err)
	assert.Equal(t, "demo-001", name)
	assert.FileExists(t, filepath.Join(dest, "demo-001", "script.xml"))
	assert.NoDirExists(t, src)
}

func TestMoveVersionedDefaultsToBasename(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "take.wav")
	dest := filepath.Join(dir, "out")
	writeFile(t, src, "x")
	require.NoError(t, os.MkdirAll(dest, 0o755))

	name, err := MoveVersioned(src, dest, "")
	require.NoError(t, err)
	assert.Equal(t, "take.wav", name)
}

func TestCopyDirVersioned(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "projects", "demo")
	writeFile(t, filepath.Join(src, "script.xml"), "<CuemsScript/>")
	writeFile(t, filepath.Join(src, "notes", "a.txt"), "n")

	dest := filepath.Join(dir, "projects")
	name, err := CopyDirVersioned(src, dest, "demo")
	require.NoError(t, err)
	assert.Equal(t, "demo-001", name)

	assert.FileExists(t, filepath.Join(dest, "demo-001", "script.xml"))
	assert.FileExists(t, filepath.Join(dest, "demo-001", "notes", "a.txt"))
	// Source untouched.
	assert.FileExists(t, filepath.Join(src, "script.xml"))
}

func TestLayoutPaths(t *testing.T) {
	l := NewLayout("/lib")

	assert.Equal(t, "/lib/projects/demo/script.xml", l.ScriptFile("demo", false))
	assert.Equal(t, "/lib/trash/projects/demo", l.ProjectDir("demo", true))
	assert.Equal(t, "/lib/media/intro.wav", l.MediaFile("intro.wav", false))
	assert.Equal(t, "/lib/media/thumbnail/intro_wav.png", l.ThumbnailFile("intro.wav", false))
	assert.Equal(t, "/lib/trash/media/waveform/intro_wav.dat", l.WaveformFile("intro.wav", true))
}

func TestLayoutBootstrap(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(root)
	require.NoError(t, l.Bootstrap())

	for _, dir := range []string{
		"projects", "media", "trash/projects", "trash/media",
		"media/thumbnail", "media/waveform", "trash/media/thumbnail", "trash/media/waveform",
	} {
		assert.DirExists(t, filepath.Join(root, dir))
	}
	// Idempotent.
	require.NoError(t, l.Bootstrap())
}

func TestMakeDirVersioned(t *testing.T) {
	dir := t.TempDir()

	name, err := MakeDirVersioned(dir, "demo")
	require.NoError(t, err)
	assert.Equal(t, "demo", name)

	name, err = MakeDirVersioned(dir, "demo")
	require.NoError(t, err)
	assert.Equal(t, "demo-001", name)
	assert.DirExists(t, filepath.Join(dir, "demo-001"))
}
