// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

package library

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MoveVersioned moves src into destDir under destName, appending a -NNN
// suffix (001, 002, ...) until the destination is free. For file names the
// suffix is inserted before the extension so type detection by extension
// keeps working; directories get it appended. An empty destName defaults to
// src's basename. Returns the basename actually written.
//
// A same-filesystem rename is preferred; on failure the move degrades to a
// copy followed by removal of the source.
func MoveVersioned(src, destDir, destName string) (string, error) {
	if destName == "" {
		destName = filepath.Base(src)
	}
	name, err := freeName(destDir, destName)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(destDir, name)
	if err := os.Rename(src, dest); err == nil {
		return name, nil
	}
	// Cross-device fallback.
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("move %s: %w", src, err)
	}
	if info.IsDir() {
		if err := copyTree(src, dest); err != nil {
			return "", err
		}
		return name, os.RemoveAll(src)
	}
	if err := copyFile(src, dest); err != nil {
		return "", err
	}
	return name, os.Remove(src)
}

// CopyDirVersioned copies the directory src into destDir under destName,
// appending -NNN until free. Returns the basename actually written.
func CopyDirVersioned(src, destDir, destName string) (string, error) {
	if destName == "" {
		destName = filepath.Base(src)
	}
	name, err := freeName(destDir, destName)
	if err != nil {
		return "", err
	}
	if err := copyTree(src, filepath.Join(destDir, name)); err != nil {
		return "", err
	}
	return name, nil
}

// MakeDirVersioned creates destDir/destName, appending -NNN until free.
// Returns the basename actually created.
func MakeDirVersioned(destDir, destName string) (string, error) {
	name, err := freeName(destDir, destName)
	if err != nil {
		return "", err
	}
	if err := os.Mkdir(filepath.Join(destDir, name), 0o755); err != nil {
		return "", fmt.Errorf("create dir %s: %w", name, err)
	}
	return name, nil
}

// freeName probes destDir/name and appends version suffixes until the name
// does not exist. It never overwrites an existing entry.
func freeName(destDir, name string) (string, error) {
	candidate := name
	for n := 1; ; n++ {
		_, err := os.Lstat(filepath.Join(destDir, candidate))
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("probe %s: %w", filepath.Join(destDir, candidate), err)
		}
		if n > 999 {
			return "", fmt.Errorf("no free versioned name for %s in %s", name, destDir)
		}
		candidate = versionedName(name, n)
	}
}

// versionedName inserts -NNN before the extension, or appends it when the
// name has none (directories, extensionless files).
func versionedName(name string, n int) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s-%03d%s", stem, n, ext)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("copy to %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return fmt.Errorf("copy %s -> %s: %w", src, dest, err)
	}
	return out.Close()
}

func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return copyFile(path, target)
	})
}
