// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

package server

import (
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// Server-to-client frame types that do not mirror an action.
const (
	TypeSessionID       = "session_id"
	TypeInitialMappings = "initial_mappings"
	TypeError           = "error"
	TypeListUpdate      = "list_update"
	TypeProjectUpdate   = "project_update"
	TypeUsers           = "users"
	TypePlayStatus      = "play_status"
)

// request is the envelope of every editor client message.
type request struct {
	Action string          `json:"action"`
	Value  json.RawMessage `json:"value,omitempty"`
}

// reply is the envelope of every editor server text frame.
type reply struct {
	Type   string `json:"type"`
	Action string `json:"action,omitempty"`
	UUID   string `json:"uuid,omitempty"`
	Value  any    `json:"value,omitempty"`
}

// outFrame is one queued outbound WebSocket frame.
type outFrame struct {
	kind int
	data []byte
}

func textFrame(r reply) outFrame {
	data, _ := json.Marshal(r)
	return outFrame{kind: websocket.TextMessage, data: data}
}

func binaryFrame(data []byte) outFrame {
	return outFrame{kind: websocket.BinaryMessage, data: data}
}

// replyType returns the type field mirroring an action. The one historic
// exception: loading a project replies as "project".
func replyType(action string) string {
	if action == "project_load" {
		return "project"
	}
	return action
}

func errorReply(action, uuid string, err error) reply {
	return reply{Type: TypeError, Action: action, UUID: uuid, Value: err.Error()}
}
