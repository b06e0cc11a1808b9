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

package importer

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

var ErrUnknownCompression = errors.New("unsupported archive format")

// Decompressor extracts an archive's entries next to the archive itself
// and returns the extracted paths. On success the archive is removed.
type Decompressor interface {
	Extract(archivePath string) ([]string, error)
}

// ZipDecompressor extracts zip archives. Other archive formats are
// reported as ErrUnknownCompression so the pipeline can skip them.
type ZipDecompressor struct{}

func (ZipDecompressor) Extract(archivePath string) ([]string, error) {
	if !strings.EqualFold(filepath.Ext(archivePath), ".zip") {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCompression, filepath.Ext(archivePath))
	}

	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close archive")
		}
	}()

	destDir := filepath.Dir(archivePath)
	extracted := make([]string, 0, len(reader.File))
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		// Flatten: archive sub-directories are not preserved.
		dest := filepath.Join(destDir, filepath.Base(entry.Name)) //nolint:gosec
		if err := extractEntry(entry, dest); err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", entry.Name, err)
		}
		extracted = append(extracted, dest)
	}

	if err := os.Remove(archivePath); err != nil {
		log.Warn().Err(err).Str("path", archivePath).Msg("failed to remove archive after extraction")
	}
	return extracted, nil
}

func extractEntry(entry *zip.File, dest string) error {
	in, err := entry.Open()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close archive entry")
		}
	}()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}

	_, err = io.Copy(out, in) //nolint:gosec // staged archives are user-supplied
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return err
	}
	return nil
}
