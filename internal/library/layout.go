// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

// Package library models the on-disk layout of the show library and the
// versioned move/copy primitives that keep it collision-free.
//
// Layout under the library root:
//
//	projects/<unix_name>/script.xml
//	media/<unix_name>
//	media/thumbnail/<stem>_<ext>.png
//	media/waveform/<stem>_<ext>.dat
//	trash/projects/..., trash/media/...   (mirroring the live layout)
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	scriptFileName      = "script.xml"
	projectsFolderName  = "projects"
	mediaFolderName     = "media"
	trashFolderName     = "trash"
	thumbnailFolderName = "thumbnail"
	waveformFolderName  = "waveform"

	// ThumbnailExt is the extension of generated thumbnail images.
	ThumbnailExt = ".png"
	// WaveformExt is the extension of generated waveform data files.
	WaveformExt = ".dat"
)

// Layout computes canonical paths for live and trashed projects, media and
// derivatives below a single library root.
type Layout struct {
	Root string
}

// NewLayout returns a Layout rooted at root.
func NewLayout(root string) *Layout {
	return &Layout{Root: root}
}

// ProjectsDir returns the live or trash projects directory.
func (l *Layout) ProjectsDir(trash bool) string {
	if trash {
		return filepath.Join(l.Root, trashFolderName, projectsFolderName)
	}
	return filepath.Join(l.Root, projectsFolderName)
}

// MediaDir returns the live or trash media directory.
func (l *Layout) MediaDir(trash bool) string {
	if trash {
		return filepath.Join(l.Root, trashFolderName, mediaFolderName)
	}
	return filepath.Join(l.Root, mediaFolderName)
}

// ThumbnailDir returns the live or trash thumbnail directory.
func (l *Layout) ThumbnailDir(trash bool) string {
	return filepath.Join(l.MediaDir(trash), thumbnailFolderName)
}

// WaveformDir returns the live or trash waveform directory.
func (l *Layout) WaveformDir(trash bool) string {
	return filepath.Join(l.MediaDir(trash), waveformFolderName)
}

// ProjectDir returns the directory of a project by unix name.
func (l *Layout) ProjectDir(unixName string, trash bool) string {
	return filepath.Join(l.ProjectsDir(trash), unixName)
}

// ScriptFile returns the cue-script path of a project by unix name.
func (l *Layout) ScriptFile(unixName string, trash bool) string {
	return filepath.Join(l.ProjectDir(unixName, trash), scriptFileName)
}

// MediaFile returns the path of a media file by unix name.
func (l *Layout) MediaFile(unixName string, trash bool) string {
	return filepath.Join(l.MediaDir(trash), unixName)
}

// DerivativeName folds the media extension into the stem so that media
// sharing a stem but not an extension keep distinct derivatives:
// "foo.wav" -> "foo_wav<ext>".
func DerivativeName(unixName, ext string) string {
	fileExt := filepath.Ext(unixName)
	stem := strings.TrimSuffix(unixName, fileExt)
	return fmt.Sprintf("%s_%s%s", stem, strings.TrimPrefix(fileExt, "."), ext)
}

// ThumbnailFile returns the thumbnail path for a media unix name.
func (l *Layout) ThumbnailFile(unixName string, trash bool) string {
	return filepath.Join(l.ThumbnailDir(trash), DerivativeName(unixName, ThumbnailExt))
}

// WaveformFile returns the waveform data path for a media unix name.
func (l *Layout) WaveformFile(unixName string, trash bool) string {
	return filepath.Join(l.WaveformDir(trash), DerivativeName(unixName, WaveformExt))
}

// Bootstrap creates every missing library directory.
func (l *Layout) Bootstrap() error {
	dirs := []string{
		l.ProjectsDir(false),
		l.ProjectsDir(true),
		l.MediaDir(false),
		l.MediaDir(true),
		l.ThumbnailDir(false),
		l.ThumbnailDir(true),
		l.WaveformDir(false),
		l.WaveformDir(true),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create library dir %s: %w", dir, err)
		}
	}
	return nil
}
