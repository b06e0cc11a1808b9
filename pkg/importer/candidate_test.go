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
	"crypto/md5" //nolint:gosec
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingOpener wraps the real opener and counts how many times the
// underlying file is opened.
type countingOpener struct {
	opens int
}

func (c *countingOpener) open(path string) (io.ReadCloser, error) {
	c.opens++
	return os.Open(path)
}

func TestChecksumCachesPerOffset(t *testing.T) {
	t.Parallel()

	content := []byte("HEADERDATA------rom payload bytes")
	path := filepath.Join(t.TempDir(), "game.nes")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	opener := &countingOpener{}
	cand := newCandidate(path, opener.open)

	full, err := cand.Checksum(0)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%x", md5.Sum(content)), full) //nolint:gosec

	skipped, err := cand.Checksum(16)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%x", md5.Sum(content[16:])), skipped) //nolint:gosec
	assert.NotEqual(t, full, skipped, "checksums must differ by header offset")

	// Repeats hit the cache: no further opens.
	assert.Equal(t, 2, opener.opens)
	again, err := cand.Checksum(0)
	require.NoError(t, err)
	assert.Equal(t, full, again)
	again, err = cand.Checksum(16)
	require.NoError(t, err)
	assert.Equal(t, skipped, again)
	assert.Equal(t, 2, opener.opens)
}

func TestChecksumMissingFile(t *testing.T) {
	t.Parallel()

	cand := NewCandidate(filepath.Join(t.TempDir(), "gone.nes"))
	_, err := cand.Checksum(0)
	assert.Error(t, err)
}

func TestChecksumRechecksExistence(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "game.gb")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o600))

	cand := NewCandidate(path)
	sum, err := cand.Checksum(0)
	require.NoError(t, err)

	// Cached offsets stay valid after the file disappears, new offsets
	// must fail instead of opening a dead path.
	require.NoError(t, os.Remove(path))

	cached, err := cand.Checksum(0)
	require.NoError(t, err)
	assert.Equal(t, sum, cached)

	_, err = cand.Checksum(16)
	assert.Error(t, err)
}

func TestChecksumOffsetBeyondFileSize(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tiny.lnx")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o600))

	cand := NewCandidate(path)
	sum, err := cand.Checksum(64)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%x", md5.Sum(nil)), sum) //nolint:gosec
}

func TestStrippedName(t *testing.T) {
	t.Parallel()

	cand := NewCandidate("/staging/Final Fantasy VII (USA) (Disc 1).cue")
	assert.Equal(t, "Final Fantasy VII", cand.StrippedName())
	assert.Equal(t, ".cue", cand.Extension())
	assert.Equal(t, "Final Fantasy VII (USA) (Disc 1).cue", cand.Filename())
}
