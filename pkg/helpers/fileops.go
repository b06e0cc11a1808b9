// Romstack Core
// Copyright (c) 2026 The Romstack Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Romstack Core.
//
// Romstack Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Romstack Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Romstack Core.  If not, see <http://www.gnu.org/licenses/>.

package helpers

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// MoveFile relocates a file, falling back to copy+delete when rename fails
// across filesystem boundaries. The destination only becomes visible once
// fully written: the copy path writes to a temp file in the destination
// directory and renames it into place.
func MoveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("error creating destination directory: %w", err)
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return fmt.Errorf("error moving file: %w", err)
	}

	if err := copyToTemp(src, dst); err != nil {
		return err
	}

	if err := os.Remove(src); err != nil {
		log.Warn().Err(err).Str("path", src).Msg("failed to remove source after copy")
	}
	return nil
}

func copyToTemp(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("error opening source file: %w", err)
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close source file")
		}
	}()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".move-*")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}

	_, err = io.Copy(tmp, in)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("error copying file contents: %w", err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("error renaming temp file: %w", err)
	}
	return nil
}

// PathInfo splits a path into its commonly used parts.
type PathInfo struct {
	Path      string
	Filename  string
	Extension string
	Name      string
}

// GetPathInfo returns the filename, lowercased extension and extensionless
// name for a path.
func GetPathInfo(path string) PathInfo {
	var info PathInfo
	info.Path = path
	info.Filename = filepath.Base(path)
	info.Extension = strings.ToLower(filepath.Ext(info.Filename))
	info.Name = strings.TrimSuffix(info.Filename, filepath.Ext(info.Filename))
	return info
}

// ReplaceInsensitive replaces all case-insensitive occurrences of old in s
// with new. Used to re-case cue sheet file references after companion files
// move.
func ReplaceInsensitive(s, old, replacement string) string {
	if old == "" {
		return s
	}

	var b strings.Builder
	lower := strings.ToLower(s)
	lowerOld := strings.ToLower(old)

	for {
		i := strings.Index(lower, lowerOld)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(replacement)
		s = s[i+len(old):]
		lower = lower[i+len(old):]
	}
}
