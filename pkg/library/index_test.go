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

package library

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RomstackProject/romstack-core/pkg/database"
	"github.com/RomstackProject/romstack-core/pkg/systemdefs"
	testhelpers "github.com/RomstackProject/romstack-core/pkg/testing/helpers"
)

func TestInsertAndFind(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	rec := &database.GameRecord{
		RelativePath: "NES/Zelda (USA).nes",
		SystemID:     systemdefs.SystemNES,
		Title:        "Zelda",
	}
	idx.Insert(rec)

	assert.Same(t, rec, idx.FindPath("NES/Zelda (USA).nes"))
	assert.Nil(t, idx.FindPath("NES/Other.nes"))

	// Name lookups strip decorations from the query too.
	assert.Same(t, rec, idx.FindName(systemdefs.SystemNES, "Zelda (Europe).nes"))
	assert.Same(t, rec, idx.FindName(systemdefs.SystemNES, "zelda"))
	assert.Nil(t, idx.FindName(systemdefs.SystemSNES, "Zelda"))

	assert.Equal(t, 1, idx.Len())
}

func TestFindNameAnySystem(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	idx.Insert(&database.GameRecord{RelativePath: "NES/Metroid.nes", SystemID: systemdefs.SystemNES})
	idx.Insert(&database.GameRecord{RelativePath: "SNES/Metroid.sfc", SystemID: systemdefs.SystemSNES})

	recs := idx.FindNameAnySystem("Metroid (USA)")
	assert.Len(t, recs, 2)

	assert.Empty(t, idx.FindNameAnySystem("Nothing"))
}

func TestRemoveKeepsSharedNameKey(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	first := &database.GameRecord{
		RelativePath: "NES/Contra (USA).nes",
		SystemID:     systemdefs.SystemNES,
	}
	second := &database.GameRecord{
		RelativePath: "NES/Contra (Europe).nes",
		SystemID:     systemdefs.SystemNES,
	}
	idx.Insert(first)
	idx.Insert(second)

	// Both records strip to the same name; the second insert owns the
	// name key. Removing the first must not orphan it.
	idx.Remove(first.RelativePath)

	assert.Nil(t, idx.FindPath(first.RelativePath))
	assert.Same(t, second, idx.FindPath(second.RelativePath))
	assert.Same(t, second, idx.FindName(systemdefs.SystemNES, "Contra"))
}

func TestInsertReplacesStaleNameKey(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	rec := &database.GameRecord{
		RelativePath: "GBA/Golden Sun.gba",
		SystemID:     systemdefs.SystemGBA,
	}
	idx.Insert(rec)
	require.NotNil(t, idx.FindName(systemdefs.SystemGBA, "Golden Sun"))

	// Re-inserting the same path must keep both structures consistent.
	idx.Insert(rec)
	assert.Equal(t, 1, idx.Len())
	assert.Same(t, rec, idx.FindName(systemdefs.SystemGBA, "Golden Sun"))
}

func TestRemove(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	rec := &database.GameRecord{RelativePath: "NES/A.nes", SystemID: systemdefs.SystemNES}
	idx.Insert(rec)
	idx.Remove("NES/A.nes")

	assert.Nil(t, idx.FindPath("NES/A.nes"))
	assert.Nil(t, idx.FindName(systemdefs.SystemNES, "A"))
	assert.Equal(t, 0, idx.Len())
}

func TestRebuild(t *testing.T) {
	t.Parallel()

	db := testhelpers.NewLibraryDB(t)
	ctx := context.Background()

	for _, rec := range []*database.GameRecord{
		{RelativePath: "NES/A.nes", SystemID: systemdefs.SystemNES, AddedAt: time.Now()},
		{RelativePath: "GBA/B.gba", SystemID: systemdefs.SystemGBA, AddedAt: time.Now()},
	} {
		require.NoError(t, db.SaveGame(ctx, rec))
	}

	idx := NewIndex()
	idx.Insert(&database.GameRecord{RelativePath: "Old/Stale.bin", SystemID: systemdefs.SystemGenesis})

	require.NoError(t, idx.Rebuild(ctx, db))
	assert.Equal(t, 2, idx.Len())
	assert.Nil(t, idx.FindPath("Old/Stale.bin"), "rebuild must drop stale entries")
	assert.NotNil(t, idx.FindPath("NES/A.nes"))
}
