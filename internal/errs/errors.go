// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

// Package errs defines the error taxonomy shared by the library services,
// the upload pipeline, the engine bridge and the session dispatcher.
//
// Services return these types unchanged; the session dispatcher classifies
// them with errors.As/errors.Is and translates them into protocol error
// frames. Anything not covered here is treated as a transient I/O failure.
package errs

import (
	"errors"
	"fmt"
)

// ErrNotTimecode is returned when prober output does not match the expected
// sexagesimal timecode format.
var ErrNotTimecode = errors.New("prober output does not match timecode format")

// NonExistentItemError reports a uuid that was not found, or was found with
// the wrong trash state. The original uuid is carried so the dispatcher can
// echo it back on the originating action.
type NonExistentItemError struct {
	UUID string
}

func (e *NonExistentItemError) Error() string {
	return fmt.Sprintf("item with uuid: %s does not exist", e.UUID)
}

// FileIntegrityError reports an upload whose MD5 digest does not match the
// client-supplied value. Fatal for the upload session.
type FileIntegrityError struct {
	Expected string
	Actual   string
}

func (e *FileIntegrityError) Error() string {
	return fmt.Sprintf("MD5 mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// ConflictError reports a name or unix_name uniqueness violation.
type ConflictError struct {
	Field string
	Value string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Field, e.Value)
}

// EngineError reports a non-OK engine response or a response shape violation.
type EngineError struct {
	Action  string
	Message string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine reports error on %s: %s", e.Action, e.Message)
}

// TimeoutError reports an engine request that received no correlated
// response within the bridge deadline.
type TimeoutError struct {
	Action string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Timeout waiting %s response from engine", e.Action)
}

// UnknownActionError reports a client message whose action tag is not part
// of the protocol surface.
type UnknownActionError struct {
	Action string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unsupported action: %s", e.Action)
}
