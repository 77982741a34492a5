// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

// Package sanitize normalizes user-provided strings into safe file and
// directory names. All normalizers are idempotent: applying one twice yields
// the same result as applying it once.
package sanitize

import (
	"strings"
	"unicode/utf8"
)

const (
	// maxFileNameBytes leaves headroom below common 255-byte filesystem
	// limits for a version suffix plus a ".tmp" marker.
	maxFileNameBytes = 240

	// tailBytes is how much of the end of an overlong name survives
	// truncation, so extensions are not lost entirely.
	tailBytes = 4

	maxNameLen        = 255
	maxDescriptionLen = 65535
)

// FileName normalizes s into a safe media file basename: truncated to 240
// bytes preserving a 4-byte tail, spaces and hyphens folded to underscores,
// everything outside [A-Za-z0-9._] dropped, lowercased.
func FileName(s string) string {
	return sanitize(truncateKeepTail(s), "._")
}

// DirName normalizes s into a safe directory name keeping only
// [A-Za-z0-9_].
func DirName(s string) string {
	return sanitize(truncateKeepTail(s), "_")
}

// DirNameVersioned is DirName but additionally retains '-', so a -NNN
// version suffix survives re-sanitization.
func DirNameVersioned(s string) string {
	return sanitize(truncateKeepTail(s), "_-")
}

// Name caps a human-readable label at 255 characters. No character
// filtering is applied.
func Name(s string) string {
	return capLen(s, maxNameLen)
}

// Description caps free text at 65535 characters.
func Description(s string) string {
	return capLen(s, maxDescriptionLen)
}

func sanitize(s, keep string) string {
	s = strings.ReplaceAll(s, " ", "_")
	if !strings.ContainsRune(keep, '-') {
		s = strings.ReplaceAll(s, "-", "_")
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case strings.ContainsRune(keep, r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// truncateKeepTail caps s at maxFileNameBytes, keeping the last tailBytes
// bytes of the original so the extension hint survives.
func truncateKeepTail(s string) string {
	if len(s) <= maxFileNameBytes {
		return s
	}
	return s[:maxFileNameBytes-tailBytes] + s[len(s)-tailBytes:]
}

// capLen caps s at max bytes, backing up to a rune boundary so the
// result stays valid UTF-8.
func capLen(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
