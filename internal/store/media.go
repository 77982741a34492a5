// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

package store

import (
	"context"
	"database/sql"
)

// GetMedia fetches a media row regardless of trash state.
func (s *Store) GetMedia(ctx context.Context, q Querier, uuid string) (*MediaRecord, error) {
	return scanMedia(q.QueryRowContext(ctx, `
		SELECT uuid, name, unix_name, description, created, modified, duration, media_type, in_trash
		FROM media WHERE uuid = ?`, uuid), uuid)
}

// GetMediaInState fetches a media row with the given trash state.
func (s *Store) GetMediaInState(ctx context.Context, q Querier, uuid string, inTrash bool) (*MediaRecord, error) {
	return scanMedia(q.QueryRowContext(ctx, `
		SELECT uuid, name, unix_name, description, created, modified, duration, media_type, in_trash
		FROM media WHERE uuid = ? AND in_trash = ?`, uuid, inTrash), uuid)
}

// GetMediaByUnixName resolves a media row from its on-disk basename, as
// needed when materializing script references into edges.
func (s *Store) GetMediaByUnixName(ctx context.Context, q Querier, unixName string) (*MediaRecord, error) {
	return scanMedia(q.QueryRowContext(ctx, `
		SELECT uuid, name, unix_name, description, created, modified, duration, media_type, in_trash
		FROM media WHERE unix_name = ?`, unixName), unixName)
}

// CreateMedia inserts a media row.
func (s *Store) CreateMedia(ctx context.Context, q Querier, rec *MediaRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO media (uuid, name, unix_name, description, created, modified, duration, media_type, in_trash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UUID, rec.Name, rec.UnixName, rec.Description, rec.Created, rec.Modified,
		nullable(rec.Duration), string(rec.Type), rec.InTrash)
	return mapErr(err, rec.UnixName)
}

// UpdateMedia persists the mutable fields of a media row.
func (s *Store) UpdateMedia(ctx context.Context, q Querier, rec *MediaRecord) error {
	_, err := q.ExecContext(ctx, `
		UPDATE media SET name = ?, description = ?, modified = ? WHERE uuid = ?`,
		rec.Name, rec.Description, rec.Modified, rec.UUID)
	return mapErr(err, rec.UUID)
}

// SetMediaTrash flips the trash flag.
func (s *Store) SetMediaTrash(ctx context.Context, q Querier, uuid string, inTrash bool) error {
	_, err := q.ExecContext(ctx, `UPDATE media SET in_trash = ? WHERE uuid = ?`, inTrash, uuid)
	return mapErr(err, uuid)
}

// DeleteMedia removes the row; edges cascade.
func (s *Store) DeleteMedia(ctx context.Context, q Querier, uuid string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM media WHERE uuid = ?`, uuid)
	return mapErr(err, uuid)
}

// ListMedia returns all media in the given trash state together with counts
// of referencing projects split by the project trash state.
func (s *Store) ListMedia(ctx context.Context, q Querier, inTrash bool) ([]MediaListing, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT m.uuid, m.name, m.unix_name, m.description, m.created, m.modified,
		       m.duration, m.media_type, m.in_trash,
		       COUNT(CASE WHEN p.in_trash = 0 THEN 1 END),
		       COUNT(CASE WHEN p.in_trash = 1 THEN 1 END)
		FROM media m
		LEFT JOIN project_media pm ON pm.media = m.uuid
		LEFT JOIN project p ON p.uuid = pm.project
		WHERE m.in_trash = ?
		GROUP BY m.uuid
		ORDER BY m.created`, inTrash)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []MediaListing
	for rows.Next() {
		var l MediaListing
		var duration sql.NullString
		if err := rows.Scan(&l.UUID, &l.Name, &l.UnixName, &l.Description, &l.Created,
			&l.Modified, &duration, &l.Type, &l.InTrash,
			&l.ProjectCount, &l.ProjectTrashCount); err != nil {
			return nil, err
		}
		l.Duration = duration.String
		out = append(out, l)
	}
	return out, rows.Err()
}

// MediaProjects returns the uuids of projects referencing the media,
// partitioned into live and trashed.
func (s *Store) MediaProjects(ctx context.Context, q Querier, mediaUUID string) (live, trash []string, err error) {
	rows, err := q.QueryContext(ctx, `
		SELECT p.uuid, p.in_trash
		FROM project p
		JOIN project_media pm ON pm.project = p.uuid
		WHERE pm.media = ?
		ORDER BY p.created`, mediaUUID)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var uuid string
		var inTrash bool
		if err := rows.Scan(&uuid, &inTrash); err != nil {
			return nil, nil, err
		}
		if inTrash {
			trash = append(trash, uuid)
		} else {
			live = append(live, uuid)
		}
	}
	return live, trash, rows.Err()
}

func scanMedia(row interface{ Scan(...any) error }, uuid string) (*MediaRecord, error) {
	var m MediaRecord
	var duration sql.NullString
	err := row.Scan(&m.UUID, &m.Name, &m.UnixName, &m.Description, &m.Created,
		&m.Modified, &duration, &m.Type, &m.InTrash)
	if err != nil {
		return nil, mapErr(err, uuid)
	}
	m.Duration = duration.String
	return &m, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
