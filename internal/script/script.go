// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

// Package script models the cue script as an opaque object tree. The
// server never interprets cue semantics; the only structure it relies on
// is the CuemsScript root envelope with its identity attributes and the
// Media nodes that reference library files by basename.
package script

import (
	"errors"
)

// Root is the envelope key every script document carries.
const Root = "CuemsScript"

// ErrNoRoot reports a document without the CuemsScript envelope.
var ErrNoRoot = errors.New("script: missing CuemsScript root")

// Script is the decoded script document: a JSON-style object tree keyed
// by CuemsScript at the top level.
type Script map[string]any

// New wraps a bare script body in the root envelope.
func New(body map[string]any) Script {
	return Script{Root: body}
}

// Body returns the tree under the root envelope, or nil if absent.
func (s Script) Body() map[string]any {
	body, _ := s[Root].(map[string]any)
	return body
}

// Valid reports whether the document carries the root envelope.
func (s Script) Valid() bool {
	return s.Body() != nil
}

func (s Script) attr(key string) string {
	body := s.Body()
	if body == nil {
		return ""
	}
	v, _ := body[key].(string)
	return v
}

func (s Script) setAttr(key, value string) {
	if body := s.Body(); body != nil {
		body[key] = value
	}
}

// UUID returns the script's project uuid, empty when unset.
func (s Script) UUID() string { return s.attr("uuid") }

// SetUUID stamps the project uuid into the envelope.
func (s Script) SetUUID(uuid string) { s.setAttr("uuid", uuid) }

// Name returns the human-readable project name.
func (s Script) Name() string { return s.attr("name") }

// SetName sets the human-readable project name.
func (s Script) SetName(name string) { s.setAttr("name", name) }

// UnixName returns the filesystem-safe project name.
func (s Script) UnixName() string { return s.attr("unix_name") }

// SetUnixName sets the filesystem-safe project name.
func (s Script) SetUnixName(name string) { s.setAttr("unix_name", name) }

// Description returns the free-text description.
func (s Script) Description() string { return s.attr("description") }

// SetDescription sets the free-text description.
func (s Script) SetDescription(d string) { s.setAttr("description", d) }

// Created returns the creation timestamp.
func (s Script) Created() string { return s.attr("created") }

// SetCreated sets the creation timestamp.
func (s Script) SetCreated(ts string) { s.setAttr("created", ts) }

// Modified returns the last-modified timestamp.
func (s Script) Modified() string { return s.attr("modified") }

// SetModified sets the last-modified timestamp.
func (s Script) SetModified(ts string) { s.setAttr("modified", ts) }

// MediaRefs walks the whole tree and collects every Media node, keyed by
// the file_name it references. This is the single structural contract the
// library holds over cue content: an edge exists iff the basename appears
// here.
func MediaRefs(s Script) map[string]any {
	refs := make(map[string]any)
	walkRefs(map[string]any(s), refs)
	return refs
}

func walkRefs(node any, refs map[string]any) {
	switch v := node.(type) {
	case map[string]any:
		for key, child := range v {
			if key == "Media" {
				if m, ok := child.(map[string]any); ok {
					if name, ok := m["file_name"].(string); ok && name != "" {
						refs[name] = child
					}
				}
			}
			walkRefs(child, refs)
		}
	case []any:
		for _, child := range v {
			walkRefs(child, refs)
		}
	}
}
