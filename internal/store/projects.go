// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

package store

import (
	"context"
)

// GetProject fetches a project row regardless of trash state.
func (s *Store) GetProject(ctx context.Context, q Querier, uuid string) (*ProjectRecord, error) {
	return scanProject(q.QueryRowContext(ctx, `
		SELECT uuid, name, unix_name, description, created, modified, in_trash
		FROM project WHERE uuid = ?`, uuid), uuid)
}

// GetProjectInState fetches a project row with the given trash state.
// A row in the other state reports NonExistentItemError, matching the
// item-not-found semantics of the action surface.
func (s *Store) GetProjectInState(ctx context.Context, q Querier, uuid string, inTrash bool) (*ProjectRecord, error) {
	return scanProject(q.QueryRowContext(ctx, `
		SELECT uuid, name, unix_name, description, created, modified, in_trash
		FROM project WHERE uuid = ? AND in_trash = ?`, uuid, inTrash), uuid)
}

// CreateProject inserts a project row.
func (s *Store) CreateProject(ctx context.Context, q Querier, rec *ProjectRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO project (uuid, name, unix_name, description, created, modified, in_trash)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.UUID, rec.Name, rec.UnixName, rec.Description, rec.Created, rec.Modified, rec.InTrash)
	return mapErr(err, rec.UnixName)
}

// UpdateProject persists the mutable fields of a project row.
func (s *Store) UpdateProject(ctx context.Context, q Querier, rec *ProjectRecord) error {
	_, err := q.ExecContext(ctx, `
		UPDATE project SET name = ?, description = ?, modified = ? WHERE uuid = ?`,
		rec.Name, rec.Description, rec.Modified, rec.UUID)
	return mapErr(err, rec.UUID)
}

// SetProjectTrash flips the trash flag.
func (s *Store) SetProjectTrash(ctx context.Context, q Querier, uuid string, inTrash bool) error {
	_, err := q.ExecContext(ctx, `UPDATE project SET in_trash = ? WHERE uuid = ?`, inTrash, uuid)
	return mapErr(err, uuid)
}

// DeleteProject removes the row; edges cascade.
func (s *Store) DeleteProject(ctx context.Context, q Querier, uuid string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM project WHERE uuid = ?`, uuid)
	return mapErr(err, uuid)
}

// ListProjects returns all projects in the given trash state together with
// counts of their media split by the media trash state. One grouped query.
func (s *Store) ListProjects(ctx context.Context, q Querier, inTrash bool) ([]ProjectListing, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT p.uuid, p.name, p.unix_name, p.description, p.created, p.modified, p.in_trash,
		       COUNT(CASE WHEN m.in_trash = 0 THEN 1 END),
		       COUNT(CASE WHEN m.in_trash = 1 THEN 1 END)
		FROM project p
		LEFT JOIN project_media pm ON pm.project = p.uuid
		LEFT JOIN media m ON m.uuid = pm.media
		WHERE p.in_trash = ?
		GROUP BY p.uuid
		ORDER BY p.created`, inTrash)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []ProjectListing
	for rows.Next() {
		var l ProjectListing
		if err := rows.Scan(&l.UUID, &l.Name, &l.UnixName, &l.Description, &l.Created,
			&l.Modified, &l.InTrash, &l.MediaCount, &l.MediaTrashCount); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ProjectMediaEdges returns the media currently linked to a project as a
// unix_name -> media uuid map.
func (s *Store) ProjectMediaEdges(ctx context.Context, q Querier, projectUUID string) (map[string]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT m.unix_name, m.uuid
		FROM media m
		JOIN project_media pm ON pm.media = m.uuid
		WHERE pm.project = ?
		ORDER BY m.created`, projectUUID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	edges := make(map[string]string)
	for rows.Next() {
		var unixName, uuid string
		if err := rows.Scan(&unixName, &uuid); err != nil {
			return nil, err
		}
		edges[unixName] = uuid
	}
	return edges, rows.Err()
}

// AddProjectMedia creates one association edge.
func (s *Store) AddProjectMedia(ctx context.Context, q Querier, projectUUID, mediaUUID string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO project_media (project, media) VALUES (?, ?)`, projectUUID, mediaUUID)
	return mapErr(err, projectUUID)
}

// RemoveProjectMedia drops one association edge.
func (s *Store) RemoveProjectMedia(ctx context.Context, q Querier, projectUUID, mediaUUID string) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM project_media WHERE project = ? AND media = ?`, projectUUID, mediaUUID)
	return mapErr(err, projectUUID)
}

func scanProject(row interface{ Scan(...any) error }, uuid string) (*ProjectRecord, error) {
	var p ProjectRecord
	err := row.Scan(&p.UUID, &p.Name, &p.UnixName, &p.Description, &p.Created, &p.Modified, &p.InTrash)
	if err != nil {
		return nil, mapErr(err, uuid)
	}
	return &p, nil
}
