// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

// Package media implements the library file service: ingest of uploaded
// files with duration probing and derivative generation, metadata access,
// and the soft-delete lifecycle with compensating filesystem moves.
package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stagelab/cuecore/internal/library"
	"github.com/stagelab/cuecore/internal/sanitize"
	"github.com/stagelab/cuecore/internal/store"
	"github.com/stagelab/cuecore/internal/timecode"
)

// TypeForExtension maps a filename extension to the media type, or ""
// when the extension is not supported.
func TypeForExtension(name string) store.MediaType {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mov", ".avi", ".mkv", ".mpg", ".mp4":
		return store.MediaTypeMovie
	case ".aif", ".aiff", ".wav", ".mp3":
		return store.MediaTypeAudio
	case ".png", ".jpg", ".tga":
		return store.MediaTypeImage
	default:
		return ""
	}
}

// Meta is the full metadata reply for a single media item, including the
// uuids of projects referencing it.
type Meta struct {
	UUID        string      `json:"uuid"`
	Name        string      `json:"name"`
	UnixName    string      `json:"unix_name"`
	Description string      `json:"description"`
	Created     string      `json:"created"`
	Modified    string      `json:"modified"`
	Duration    string      `json:"duration,omitempty"`
	Type        string      `json:"type"`
	InProjects  MetaInUsage `json:"in_projects"`
}

// MetaInUsage partitions referencing projects by their trash state.
type MetaInUsage struct {
	Live  []string `json:"live"`
	Trash []string `json:"trash"`
}

// Service owns the media side of the library.
type Service struct {
	store   *store.Store
	layout  *library.Layout
	prober  Prober
	deriver Deriver
	log     zerolog.Logger

	now func() string
}

// NewService wires a media service over the given store and layout.
func NewService(st *store.Store, layout *library.Layout, prober Prober, deriver Deriver, log zerolog.Logger) *Service {
	return &Service{
		store:   st,
		layout:  layout,
		prober:  prober,
		deriver: deriver,
		log:     log.With().Str("component", "media").Logger(),
		now:     func() string { return time.Now().UTC().Format(time.RFC3339) },
	}
}

// Ingest moves a fully uploaded temp file into the media directory,
// probes and derives, and commits the row. The returned record carries
// the versioned unix_name actually written.
//
// Any failure after the move removes every file produced so far and
// rolls the transaction back.
func (s *Service) Ingest(ctx context.Context, tmpPath, requestedName string) (rec *store.MediaRecord, err error) {
	destName, err := library.MoveVersioned(tmpPath, s.layout.MediaDir(false), sanitize.FileName(requestedName))
	if err != nil {
		return nil, fmt.Errorf("ingest move: %w", err)
	}

	produced := []string{s.layout.MediaFile(destName, false)}
	defer func() {
		if err != nil {
			for _, path := range produced {
				if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
					s.log.Warn().Err(rmErr).Str("path", path).Msg("ingest cleanup failed")
				}
			}
		}
	}()

	mediaType := TypeForExtension(destName)
	if mediaType == "" {
		return nil, fmt.Errorf("unsupported media extension: %s", filepath.Ext(destName))
	}

	srcPath := s.layout.MediaFile(destName, false)
	var duration string
	if mediaType != store.MediaTypeImage {
		duration, err = s.prober.Duration(ctx, srcPath)
		if err != nil {
			return nil, err
		}
	}

	thumbPath := s.layout.ThumbnailFile(destName, false)
	switch mediaType {
	case store.MediaTypeMovie, store.MediaTypeImage:
		produced = append(produced, thumbPath)
		if err = s.deriver.Thumbnail(ctx, srcPath, thumbPath, mediaType == store.MediaTypeMovie); err != nil {
			return nil, err
		}
	case store.MediaTypeAudio:
		var seconds float64
		seconds, err = timecode.Seconds(duration)
		if err != nil {
			return nil, err
		}
		produced = append(produced, thumbPath)
		if err = s.deriver.WaveformImage(ctx, srcPath, thumbPath, seconds); err != nil {
			return nil, err
		}
		wavePath := s.layout.WaveformFile(destName, false)
		produced = append(produced, wavePath)
		if err = s.deriver.WaveformData(ctx, srcPath, wavePath); err != nil {
			return nil, err
		}
	}

	id, err := uuid.NewUUID()
	if err != nil {
		return nil, fmt.Errorf("mint uuid: %w", err)
	}
	now := s.now()
	rec = &store.MediaRecord{
		UUID:     id.String(),
		Name:     destName,
		UnixName: destName,
		Created:  now,
		Modified: now,
		Duration: duration,
		Type:     mediaType,
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	if err = s.store.CreateMedia(ctx, tx, rec); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}

	s.log.Info().Str("uuid", rec.UUID).Str("unix_name", destName).
		Str("type", string(mediaType)).Msg("media ingested")
	return rec, nil
}

// List returns all live media with project usage counts.
func (s *Service) List(ctx context.Context) ([]store.MediaListing, error) {
	return s.store.ListMedia(ctx, s.store.DB(), false)
}

// ListTrash returns all trashed media with project usage counts.
func (s *Service) ListTrash(ctx context.Context) ([]store.MediaListing, error) {
	return s.store.ListMedia(ctx, s.store.DB(), true)
}

// Update rewrites the mutable metadata of a live media item.
func (s *Service) Update(ctx context.Context, uuid, name, description string) error {
	rec, err := s.store.GetMediaInState(ctx, s.store.DB(), uuid, false)
	if err != nil {
		return err
	}
	rec.Name = sanitize.Name(name)
	rec.Description = sanitize.Description(description)
	rec.Modified = s.now()
	return s.store.UpdateMedia(ctx, s.store.DB(), rec)
}

// LoadMeta returns the full metadata of a media item together with the
// projects referencing it, partitioned by trash state.
func (s *Service) LoadMeta(ctx context.Context, uuid string) (*Meta, error) {
	rec, err := s.store.GetMedia(ctx, s.store.DB(), uuid)
	if err != nil {
		return nil, err
	}
	live, trash, err := s.store.MediaProjects(ctx, s.store.DB(), uuid)
	if err != nil {
		return nil, err
	}
	return &Meta{
		UUID:        rec.UUID,
		Name:        rec.Name,
		UnixName:    rec.UnixName,
		Description: rec.Description,
		Created:     rec.Created,
		Modified:    rec.Modified,
		Duration:    rec.Duration,
		Type:        string(rec.Type),
		InProjects:  MetaInUsage{Live: live, Trash: trash},
	}, nil
}

// LoadThumbnail returns the thumbnail PNG prefixed with the 36-byte
// ASCII uuid header the binary frame protocol requires.
func (s *Service) LoadThumbnail(ctx context.Context, uuid string) ([]byte, error) {
	return s.loadDerivative(ctx, uuid, func(rec *store.MediaRecord) string {
		return s.layout.ThumbnailFile(rec.UnixName, rec.InTrash)
	})
}

// LoadWaveform returns the waveform data file with the uuid header.
func (s *Service) LoadWaveform(ctx context.Context, uuid string) ([]byte, error) {
	return s.loadDerivative(ctx, uuid, func(rec *store.MediaRecord) string {
		return s.layout.WaveformFile(rec.UnixName, rec.InTrash)
	})
}

func (s *Service) loadDerivative(ctx context.Context, uuid string, pathOf func(*store.MediaRecord) string) ([]byte, error) {
	rec, err := s.store.GetMedia(ctx, s.store.DB(), uuid)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(pathOf(rec))
	if err != nil {
		return nil, err
	}
	return FrameWithUUID(rec.UUID, data), nil
}

// FrameWithUUID prepends the fixed-width ASCII uuid header to a binary
// payload. The canonical uuid text form is exactly 36 bytes.
func FrameWithUUID(uuid string, payload []byte) []byte {
	out := make([]byte, 0, len(uuid)+len(payload))
	out = append(out, uuid...)
	return append(out, payload...)
}

// Delete soft-deletes a live media item: main file and derivatives move
// to their trash counterparts and the row flips to in_trash.
func (s *Service) Delete(ctx context.Context, uuid string) error {
	return s.transition(ctx, uuid, false)
}

// Restore moves a trashed media item back to the live side.
func (s *Service) Restore(ctx context.Context, uuid string) error {
	return s.transition(ctx, uuid, true)
}

// transition moves a media item between the live and trash sides of the
// tree. Moves already performed are reversed when a later one fails.
func (s *Service) transition(ctx context.Context, uuid string, fromTrash bool) (err error) {
	rec, err := s.store.GetMediaInState(ctx, s.store.DB(), uuid, fromTrash)
	if err != nil {
		return err
	}
	toTrash := !fromTrash

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.store.SetMediaTrash(ctx, tx, uuid, toTrash); err != nil {
		return err
	}

	type hop struct{ from, to string }
	hops := []hop{
		{s.layout.ThumbnailFile(rec.UnixName, fromTrash), s.layout.ThumbnailFile(rec.UnixName, toTrash)},
		{s.layout.MediaFile(rec.UnixName, fromTrash), s.layout.MediaFile(rec.UnixName, toTrash)},
	}
	if rec.Type == store.MediaTypeAudio {
		hops = append([]hop{{s.layout.WaveformFile(rec.UnixName, fromTrash), s.layout.WaveformFile(rec.UnixName, toTrash)}}, hops...)
	}

	var done []hop
	for _, h := range hops {
		if err = os.Rename(h.from, h.to); err != nil {
			for _, d := range done {
				if undoErr := os.Rename(d.to, d.from); undoErr != nil {
					s.log.Error().Err(undoErr).Str("path", d.to).Msg("compensating move failed")
				}
			}
			return fmt.Errorf("move %s: %w", h.from, err)
		}
		done = append(done, h)
	}

	if err = tx.Commit(); err != nil {
		for _, d := range done {
			if undoErr := os.Rename(d.to, d.from); undoErr != nil {
				s.log.Error().Err(undoErr).Str("path", d.to).Msg("compensating move failed")
			}
		}
		return err
	}

	s.log.Info().Str("uuid", uuid).Bool("in_trash", toTrash).Msg("media moved")
	return nil
}

// Purge permanently removes a trashed media item: the row (cascading its
// edges) and every trash-side file.
func (s *Service) Purge(ctx context.Context, uuid string) error {
	rec, err := s.store.GetMediaInState(ctx, s.store.DB(), uuid, true)
	if err != nil {
		return err
	}
	if err := s.store.DeleteMedia(ctx, s.store.DB(), uuid); err != nil {
		return err
	}

	paths := []string{
		s.layout.MediaFile(rec.UnixName, true),
		s.layout.ThumbnailFile(rec.UnixName, true),
	}
	if rec.Type == store.MediaTypeAudio {
		paths = append(paths, s.layout.WaveformFile(rec.UnixName, true))
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn().Err(err).Str("path", path).Msg("purge leftover")
		}
	}

	s.log.Info().Str("uuid", uuid).Str("unix_name", rec.UnixName).Msg("media purged")
	return nil
}

// UnixName resolves the on-disk basename of a media item.
func (s *Service) UnixName(ctx context.Context, uuid string) (string, error) {
	rec, err := s.store.GetMedia(ctx, s.store.DB(), uuid)
	if err != nil {
		return "", err
	}
	return rec.UnixName, nil
}
