// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

package store

// MediaType classifies a media file by its extension.
type MediaType string

// Media types.
const (
	MediaTypeMovie MediaType = "MOVIE"
	MediaTypeAudio MediaType = "AUDIO"
	MediaTypeImage MediaType = "IMAGE"
)

// ProjectRecord is a row of the project table. Timestamps are ISO-8601 UTC.
type ProjectRecord struct {
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	UnixName    string `json:"unix_name"`
	Description string `json:"description"`
	Created     string `json:"created"`
	Modified    string `json:"modified"`
	InTrash     bool   `json:"in_trash"`
}

// MediaRecord is a row of the media table. Duration is an HH:MM:SS.mmm
// timecode, empty for images.
type MediaRecord struct {
	UUID        string    `json:"uuid"`
	Name        string    `json:"name"`
	UnixName    string    `json:"unix_name"`
	Description string    `json:"description"`
	Created     string    `json:"created"`
	Modified    string    `json:"modified"`
	Duration    string    `json:"duration,omitempty"`
	Type        MediaType `json:"type"`
	InTrash     bool      `json:"in_trash"`
}

// ProjectListing is a project row with counts of associated media
// partitioned by the media trash state. The counts only inform the UI.
type ProjectListing struct {
	ProjectRecord
	MediaCount      int `json:"media_count"`
	MediaTrashCount int `json:"media_trash_count"`
}

// MediaListing is a media row with counts of referencing projects
// partitioned by the project trash state.
type MediaListing struct {
	MediaRecord
	ProjectCount      int `json:"project_count"`
	ProjectTrashCount int `json:"project_trash_count"`
}
