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

// Package importer implements the import pipeline: scanning staged files,
// routing them into per-system library directories, resolving multi-file
// disc sets, quarantining conflicts and enriching records with signature
// database metadata and artwork.
package importer

import (
	"crypto/md5" //nolint:gosec // ROM signature databases key on MD5
	"fmt"
	"io"
	"os"

	"github.com/RomstackProject/romstack-core/pkg/helpers"
	"github.com/RomstackProject/romstack-core/pkg/romname"
)

// Opener abstracts file opening so tests can count and fail reads.
type Opener func(path string) (io.ReadCloser, error)

func osOpener(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// CandidateFile is one file moving through the pipeline. Checksums are
// computed lazily and cached per header offset, so a candidate consulted
// by several routing steps reads its contents at most once per offset.
type CandidateFile struct {
	info      helpers.PathInfo
	open      Opener
	checksums map[int64]string
}

func NewCandidate(path string) *CandidateFile {
	return newCandidate(path, osOpener)
}

func newCandidate(path string, open Opener) *CandidateFile {
	return &CandidateFile{
		info:      helpers.GetPathInfo(path),
		open:      open,
		checksums: make(map[int64]string),
	}
}

func (c *CandidateFile) Path() string      { return c.info.Path }
func (c *CandidateFile) Filename() string  { return c.info.Filename }
func (c *CandidateFile) Extension() string { return c.info.Extension }

// Name returns the filename without its extension.
func (c *CandidateFile) Name() string { return c.info.Name }

// StrippedName returns the filename with extension and bracketed release
// tags removed.
func (c *CandidateFile) StrippedName() string {
	return romname.Strip(c.info.Filename)
}

// Checksum returns the lowercase hex MD5 of the file contents starting at
// the given header offset. The result is cached; the underlying file is
// read at most once per distinct offset. The file's existence is
// re-checked before hashing since candidates may outlive their source
// (disc set companions move before their siblings are hashed).
func (c *CandidateFile) Checksum(offset int64) (string, error) {
	if sum, ok := c.checksums[offset]; ok {
		return sum, nil
	}

	if _, err := os.Stat(c.info.Path); err != nil {
		return "", fmt.Errorf("candidate no longer readable: %w", err)
	}

	file, err := c.open(c.info.Path)
	if err != nil {
		return "", fmt.Errorf("failed to open candidate: %w", err)
	}

	sum, err := hashAt(file, offset)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash candidate: %w", err)
	}

	c.checksums[offset] = sum
	return sum, nil
}

func hashAt(r io.Reader, offset int64) (string, error) {
	if offset > 0 {
		// A file shorter than its header offset hashes as empty.
		if _, err := io.CopyN(io.Discard, r, offset); err != nil && err != io.EOF {
			return "", err
		}
	}

	h := md5.New() //nolint:gosec
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
