// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/stagelab/cuecore/internal/engine"
	"github.com/stagelab/cuecore/internal/errs"
	"github.com/stagelab/cuecore/internal/media"
	"github.com/stagelab/cuecore/internal/metrics"
	"github.com/stagelab/cuecore/internal/project"
	"github.com/stagelab/cuecore/internal/script"
)

// List names used in list_update broadcasts.
const (
	ListProjects      = "project_list"
	ListProjectsTrash = "project_trash_list"
	ListFiles         = "file_list"
	ListFilesTrash    = "file_trash_list"
)

// EngineCaller is the slice of the engine bridge the handlers need.
type EngineCaller interface {
	Call(ctx context.Context, action string, value any) (engine.Response, error)
}

// dispatchResult is what one handled action hands back to the session
// loop: frames for the requesting socket plus cross-session effects.
type dispatchResult struct {
	frames        []outFrame
	listUpdates   []string
	projectUpdate string
	loadedProject string
}

// Handlers maps the editor action surface onto the library services and
// the engine bridge.
type Handlers struct {
	projects *project.Service
	media    *media.Service
	engine   EngineCaller
	log      zerolog.Logger
}

// NewHandlers wires the action surface.
func NewHandlers(projects *project.Service, mediaSvc *media.Service, engineCaller EngineCaller, log zerolog.Logger) *Handlers {
	return &Handlers{
		projects: projects,
		media:    mediaSvc,
		engine:   engineCaller,
		log:      log.With().Str("component", "dispatch").Logger(),
	}
}

// Handle decodes one editor frame and runs its action. Errors never
// propagate: they become error frames for the requesting socket.
func (h *Handlers) Handle(ctx context.Context, raw []byte) dispatchResult {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		return dispatchResult{frames: []outFrame{textFrame(errorReply("", "", fmt.Errorf("malformed message: %w", err)))}}
	}

	res, uuid, err := h.dispatch(ctx, req)
	if err != nil {
		metrics.RecordActionError(req.Action)
		h.log.Warn().Err(err).Str("action", req.Action).Str("uuid", uuid).Msg("action failed")
		return dispatchResult{frames: []outFrame{textFrame(errorReply(req.Action, uuid, err))}}
	}
	metrics.RecordAction(req.Action)
	return res
}

// dispatch returns the result of the action, plus the uuid the request
// referred to so error frames can carry it.
func (h *Handlers) dispatch(ctx context.Context, req request) (dispatchResult, string, error) {
	switch req.Action {
	case "project_list":
		list, err := h.projects.List(ctx)
		return listResult(req.Action, list), "", err

	case "project_trash_list":
		list, err := h.projects.ListTrash(ctx)
		return listResult(req.Action, list), "", err

	case "project_load":
		return h.projectLoad(ctx, req)

	case "project_save":
		return h.projectSave(ctx, req)

	case "project_duplicate":
		return h.projectDuplicate(ctx, req)

	case "project_delete":
		uuid, err := decodeUUID(req)
		if err == nil {
			err = h.projects.Delete(ctx, uuid)
		}
		// Peers with the project open must hear its state changed.
		res := mutationResult(req.Action, uuid, ListProjects, ListProjectsTrash)
		res.projectUpdate = uuid
		return res, uuid, err

	case "project_restore":
		uuid, err := decodeUUID(req)
		if err == nil {
			err = h.projects.Restore(ctx, uuid)
		}
		return mutationResult(req.Action, uuid, ListProjects, ListProjectsTrash), uuid, err

	case "project_trash_delete":
		uuid, err := decodeUUID(req)
		if err == nil {
			err = h.projects.Purge(ctx, uuid)
		}
		return mutationResult(req.Action, uuid, ListProjectsTrash), uuid, err

	case "file_list":
		list, err := h.media.List(ctx)
		return listResult(req.Action, list), "", err

	case "file_trash_list":
		list, err := h.media.ListTrash(ctx)
		return listResult(req.Action, list), "", err

	case "file_save":
		return h.fileSave(ctx, req)

	case "file_load_meta":
		uuid, err := decodeUUID(req)
		if err != nil {
			return dispatchResult{}, uuid, err
		}
		meta, err := h.media.LoadMeta(ctx, uuid)
		if err != nil {
			return dispatchResult{}, uuid, err
		}
		return replyResult(req.Action, meta), uuid, nil

	case "file_load_thumbnail":
		return h.binary(ctx, req, h.media.LoadThumbnail)

	case "file_load_waveform":
		return h.binary(ctx, req, h.media.LoadWaveform)

	case "file_delete":
		uuid, err := decodeUUID(req)
		if err == nil {
			err = h.media.Delete(ctx, uuid)
		}
		return mutationResult(req.Action, uuid, ListFiles, ListFilesTrash), uuid, err

	case "file_restore":
		uuid, err := decodeUUID(req)
		if err == nil {
			err = h.media.Restore(ctx, uuid)
		}
		return mutationResult(req.Action, uuid, ListFiles, ListFilesTrash), uuid, err

	case "file_trash_delete":
		uuid, err := decodeUUID(req)
		if err == nil {
			err = h.media.Purge(ctx, uuid)
		}
		return mutationResult(req.Action, uuid, ListFilesTrash), uuid, err

	case "project_ready":
		return h.engineProject(ctx, req, "load_project")

	case "project_deploy":
		return h.engineProject(ctx, req, "project_deploy")

	case "hw_discovery":
		resp, err := h.engine.Call(ctx, "hw_discovery", nil)
		if err != nil {
			return dispatchResult{}, "", err
		}
		return replyResult(req.Action, resp.Value), "", nil

	default:
		return dispatchResult{}, "", &errs.UnknownActionError{Action: req.Action}
	}
}

func (h *Handlers) projectLoad(ctx context.Context, req request) (dispatchResult, string, error) {
	uuid, err := decodeUUID(req)
	if err != nil {
		return dispatchResult{}, uuid, err
	}
	doc, err := h.projects.Load(ctx, uuid)
	if err != nil {
		return dispatchResult{}, uuid, err
	}
	res := replyResult(req.Action, map[string]any(doc))
	res.loadedProject = uuid
	return res, uuid, nil
}

// projectSave creates or updates depending on whether the incoming
// script already carries a uuid.
func (h *Handlers) projectSave(ctx context.Context, req request) (dispatchResult, string, error) {
	var body map[string]any
	if err := json.Unmarshal(req.Value, &body); err != nil {
		return dispatchResult{}, "", fmt.Errorf("malformed project data: %w", err)
	}
	doc := script.Script(body)
	if !doc.Valid() {
		return dispatchResult{}, "", script.ErrNoRoot
	}

	uuid := doc.UUID()
	if uuid == "" {
		rec, err := h.projects.New(ctx, doc)
		if err != nil {
			return dispatchResult{}, "", err
		}
		uuid = rec.UUID
	} else if err := h.projects.Update(ctx, uuid, doc); err != nil {
		return dispatchResult{}, uuid, err
	}

	res := replyResult(req.Action, uuid)
	res.listUpdates = []string{ListProjects}
	res.projectUpdate = uuid
	res.loadedProject = uuid
	return res, uuid, nil
}

func (h *Handlers) projectDuplicate(ctx context.Context, req request) (dispatchResult, string, error) {
	uuid, err := decodeUUID(req)
	if err != nil {
		return dispatchResult{}, uuid, err
	}
	newUUID, err := h.projects.Duplicate(ctx, uuid)
	if err != nil {
		return dispatchResult{}, uuid, err
	}
	res := replyResult(req.Action, map[string]any{"uuid": uuid, "new_uuid": newUUID})
	res.listUpdates = []string{ListProjects, ListFiles}
	return res, uuid, nil
}

func (h *Handlers) fileSave(ctx context.Context, req request) (dispatchResult, string, error) {
	var value struct {
		UUID        string `json:"uuid"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(req.Value, &value); err != nil {
		return dispatchResult{}, "", fmt.Errorf("malformed file data: %w", err)
	}
	if err := h.media.Update(ctx, value.UUID, value.Name, value.Description); err != nil {
		return dispatchResult{}, value.UUID, err
	}
	res := replyResult(req.Action, value.UUID)
	res.listUpdates = []string{ListFiles}
	return res, value.UUID, nil
}

func (h *Handlers) binary(ctx context.Context, req request, load func(context.Context, string) ([]byte, error)) (dispatchResult, string, error) {
	uuid, err := decodeUUID(req)
	if err != nil {
		return dispatchResult{}, uuid, err
	}
	data, err := load(ctx, uuid)
	if err != nil {
		return dispatchResult{}, uuid, err
	}
	return dispatchResult{frames: []outFrame{binaryFrame(data)}}, uuid, nil
}

// engineProject resolves the project and hands it to the engine under
// the given engine action, replying with the original uuid on OK.
func (h *Handlers) engineProject(ctx context.Context, req request, engineAction string) (dispatchResult, string, error) {
	uuid, err := decodeUUID(req)
	if err != nil {
		return dispatchResult{}, uuid, err
	}
	unixName, err := h.projects.UnixName(ctx, uuid)
	if err != nil {
		return dispatchResult{}, uuid, err
	}
	if _, err := h.engine.Call(ctx, engineAction, unixName); err != nil {
		return dispatchResult{}, uuid, err
	}
	res := dispatchResult{frames: []outFrame{textFrame(reply{Type: replyType(req.Action), UUID: uuid, Value: uuid})}}
	return res, uuid, nil
}

func decodeUUID(req request) (string, error) {
	var uuid string
	if err := json.Unmarshal(req.Value, &uuid); err != nil || uuid == "" {
		return "", errors.New("action requires a uuid value")
	}
	return uuid, nil
}

func listResult(action string, list any) dispatchResult {
	return replyResult(action, list)
}

func mutationResult(action, uuid string, lists ...string) dispatchResult {
	res := replyResult(action, uuid)
	res.listUpdates = lists
	return res
}

func replyResult(action string, value any) dispatchResult {
	return dispatchResult{frames: []outFrame{textFrame(reply{Type: replyType(action), Value: value})}}
}
