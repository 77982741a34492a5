// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

// Package project implements the project side of the library: script
// persistence, project lifecycle, and the project-media edges derived
// from the script's media references.
package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stagelab/cuecore/internal/library"
	"github.com/stagelab/cuecore/internal/sanitize"
	"github.com/stagelab/cuecore/internal/script"
	"github.com/stagelab/cuecore/internal/store"
)

// ErrMissingUnixName reports a new-project save without a unix_name.
var ErrMissingUnixName = errors.New("project: unix_name is required")

// CopySuffix is appended to the name of a duplicated project.
const CopySuffix = " - Copy"

// Service owns the project side of the library.
type Service struct {
	store  *store.Store
	layout *library.Layout
	codec  script.Codec
	log    zerolog.Logger

	now func() string
}

// NewService wires a project service over the given store and layout.
func NewService(st *store.Store, layout *library.Layout, codec script.Codec, log zerolog.Logger) *Service {
	return &Service{
		store:  st,
		layout: layout,
		codec:  codec,
		log:    log.With().Str("component", "project").Logger(),
		now:    func() string { return time.Now().UTC().Format(time.RFC3339) },
	}
}

// New creates a project from a script document. The directory name is
// sanitized and versioned, the uuid is minted here, and one edge is
// materialized per media reference in the script. Referencing a media
// basename absent from the library fails the whole save.
func (s *Service) New(ctx context.Context, doc script.Script) (rec *store.ProjectRecord, err error) {
	if !doc.Valid() {
		return nil, script.ErrNoRoot
	}
	requested := sanitize.DirNameVersioned(doc.UnixName())
	if requested == "" {
		return nil, ErrMissingUnixName
	}

	unixName, err := library.MakeDirVersioned(s.layout.ProjectsDir(false), requested)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(s.layout.ProjectDir(unixName, false)); rmErr != nil {
				s.log.Warn().Err(rmErr).Str("unix_name", unixName).Msg("project cleanup failed")
			}
		}
	}()

	id, err := uuid.NewUUID()
	if err != nil {
		return nil, fmt.Errorf("mint uuid: %w", err)
	}
	now := s.now()
	name := sanitize.Name(doc.Name())
	if name == "" {
		name = unixName
	}
	rec = &store.ProjectRecord{
		UUID:        id.String(),
		Name:        name,
		UnixName:    unixName,
		Description: sanitize.Description(doc.Description()),
		Created:     now,
		Modified:    now,
	}

	doc.SetUUID(rec.UUID)
	doc.SetUnixName(unixName)
	doc.SetName(name)
	doc.SetCreated(now)
	doc.SetModified(now)

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.store.CreateProject(ctx, tx, rec); err != nil {
		return nil, err
	}
	if err = s.materializeEdges(ctx, tx, rec.UUID, script.MediaRefs(doc)); err != nil {
		return nil, err
	}
	if err = s.codec.Write(s.layout.ScriptFile(unixName, false), doc); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}

	s.log.Info().Str("uuid", rec.UUID).Str("unix_name", unixName).Msg("project created")
	return rec, nil
}

// Update rewrites a live project from a script document. Renames are not
// supported: any unix_name in the document is replaced by the stored one.
// Edges are recomputed as the symmetric difference between the stored set
// and the document's references.
func (s *Service) Update(ctx context.Context, projectUUID string, doc script.Script) (err error) {
	if !doc.Valid() {
		return script.ErrNoRoot
	}
	rec, err := s.store.GetProjectInState(ctx, s.store.DB(), projectUUID, false)
	if err != nil {
		return err
	}

	now := s.now()
	if name := sanitize.Name(doc.Name()); name != "" {
		rec.Name = name
	}
	rec.Description = sanitize.Description(doc.Description())
	rec.Modified = now

	doc.SetUUID(rec.UUID)
	doc.SetUnixName(rec.UnixName)
	doc.SetName(rec.Name)
	doc.SetCreated(rec.Created)
	doc.SetModified(now)

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.store.UpdateProject(ctx, tx, rec); err != nil {
		return err
	}

	old, err := s.store.ProjectMediaEdges(ctx, tx, rec.UUID)
	if err != nil {
		return err
	}
	refs := script.MediaRefs(doc)
	for unixName, mediaUUID := range old {
		if _, still := refs[unixName]; still {
			continue
		}
		if err = s.store.RemoveProjectMedia(ctx, tx, rec.UUID, mediaUUID); err != nil {
			return err
		}
	}
	added := make(map[string]any, len(refs))
	for unixName, ref := range refs {
		if _, had := old[unixName]; !had {
			added[unixName] = ref
		}
	}
	if err = s.materializeEdges(ctx, tx, rec.UUID, added); err != nil {
		return err
	}

	if err = s.codec.Write(s.layout.ScriptFile(rec.UnixName, false), doc); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}

	s.log.Info().Str("uuid", rec.UUID).Msg("project updated")
	return nil
}

// materializeEdges creates one edge per referenced media basename,
// failing on the first reference the media table cannot resolve.
func (s *Service) materializeEdges(ctx context.Context, q store.Querier, projectUUID string, refs map[string]any) error {
	for unixName := range refs {
		media, err := s.store.GetMediaByUnixName(ctx, q, unixName)
		if err != nil {
			return err
		}
		if err := s.store.AddProjectMedia(ctx, q, projectUUID, media.UUID); err != nil {
			return err
		}
	}
	return nil
}

// Load returns the parsed script of a live project.
func (s *Service) Load(ctx context.Context, projectUUID string) (script.Script, error) {
	rec, err := s.store.GetProjectInState(ctx, s.store.DB(), projectUUID, false)
	if err != nil {
		return nil, err
	}
	return s.codec.Read(s.layout.ScriptFile(rec.UnixName, false))
}

// List returns all live projects with media usage counts.
func (s *Service) List(ctx context.Context) ([]store.ProjectListing, error) {
	return s.store.ListProjects(ctx, s.store.DB(), false)
}

// ListTrash returns all trashed projects with media usage counts.
func (s *Service) ListTrash(ctx context.Context) ([]store.ProjectListing, error) {
	return s.store.ListProjects(ctx, s.store.DB(), true)
}

// Duplicate copies a live project directory under a versioned name and
// registers the copy as a new project whose name carries the copy
// suffix. Edges are re-derived from the copied script.
func (s *Service) Duplicate(ctx context.Context, projectUUID string) (newUUID string, err error) {
	rec, err := s.store.GetProjectInState(ctx, s.store.DB(), projectUUID, false)
	if err != nil {
		return "", err
	}

	unixName, err := library.CopyDirVersioned(
		s.layout.ProjectDir(rec.UnixName, false), s.layout.ProjectsDir(false), rec.UnixName)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(s.layout.ProjectDir(unixName, false)); rmErr != nil {
				s.log.Warn().Err(rmErr).Str("unix_name", unixName).Msg("duplicate cleanup failed")
			}
		}
	}()

	id, err := uuid.NewUUID()
	if err != nil {
		return "", fmt.Errorf("mint uuid: %w", err)
	}
	now := s.now()
	dup := &store.ProjectRecord{
		UUID:        id.String(),
		Name:        sanitize.Name(rec.Name + CopySuffix),
		UnixName:    unixName,
		Description: rec.Description,
		Created:     rec.Created,
		Modified:    now,
	}

	doc, err := s.codec.Read(s.layout.ScriptFile(unixName, false))
	if err != nil {
		return "", err
	}
	doc.SetUUID(dup.UUID)
	doc.SetUnixName(unixName)
	doc.SetName(dup.Name)
	doc.SetModified(now)

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.store.CreateProject(ctx, tx, dup); err != nil {
		return "", err
	}
	if err = s.materializeEdges(ctx, tx, dup.UUID, script.MediaRefs(doc)); err != nil {
		return "", err
	}
	if err = s.codec.Write(s.layout.ScriptFile(unixName, false), doc); err != nil {
		return "", err
	}
	if err = tx.Commit(); err != nil {
		return "", err
	}

	s.log.Info().Str("uuid", projectUUID).Str("new_uuid", dup.UUID).Msg("project duplicated")
	return dup.UUID, nil
}

// Delete soft-deletes a live project by moving its directory to trash.
func (s *Service) Delete(ctx context.Context, projectUUID string) error {
	return s.transition(ctx, projectUUID, false)
}

// Restore moves a trashed project back to the live side.
func (s *Service) Restore(ctx context.Context, projectUUID string) error {
	return s.transition(ctx, projectUUID, true)
}

func (s *Service) transition(ctx context.Context, projectUUID string, fromTrash bool) (err error) {
	rec, err := s.store.GetProjectInState(ctx, s.store.DB(), projectUUID, fromTrash)
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

	if err = s.store.SetProjectTrash(ctx, tx, projectUUID, toTrash); err != nil {
		return err
	}
	from := s.layout.ProjectDir(rec.UnixName, fromTrash)
	to := s.layout.ProjectDir(rec.UnixName, toTrash)
	if err = os.Rename(from, to); err != nil {
		return fmt.Errorf("move %s: %w", from, err)
	}
	if err = tx.Commit(); err != nil {
		if undoErr := os.Rename(to, from); undoErr != nil {
			s.log.Error().Err(undoErr).Str("path", to).Msg("compensating move failed")
		}
		return err
	}

	s.log.Info().Str("uuid", projectUUID).Bool("in_trash", toTrash).Msg("project moved")
	return nil
}

// Purge permanently removes a trashed project: the row (cascading its
// edges) and the whole project directory.
func (s *Service) Purge(ctx context.Context, projectUUID string) error {
	rec, err := s.store.GetProjectInState(ctx, s.store.DB(), projectUUID, true)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, s.store.DB(), projectUUID); err != nil {
		return err
	}
	if err := os.RemoveAll(s.layout.ProjectDir(rec.UnixName, true)); err != nil {
		s.log.Warn().Err(err).Str("unix_name", rec.UnixName).Msg("purge leftover")
	}

	s.log.Info().Str("uuid", projectUUID).Str("unix_name", rec.UnixName).Msg("project purged")
	return nil
}

// UnixName resolves the directory name of a live project, as needed when
// handing a project to the playback engine.
func (s *Service) UnixName(ctx context.Context, projectUUID string) (string, error) {
	rec, err := s.store.GetProjectInState(ctx, s.store.DB(), projectUUID, false)
	if err != nil {
		return "", err
	}
	return rec.UnixName, nil
}
