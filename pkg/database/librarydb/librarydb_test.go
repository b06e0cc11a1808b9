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

package librarydb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RomstackProject/romstack-core/pkg/database"
	"github.com/RomstackProject/romstack-core/pkg/systemdefs"
)

func newTestDB(t *testing.T) *LibraryDB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if closeErr := db.Close(); closeErr != nil {
			t.Errorf("failed to close test database: %v", closeErr)
		}
	})
	return db
}

func TestSaveAndGetGame(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	rec := &database.GameRecord{
		RelativePath:       "NES/Zelda (USA).nes",
		Title:              "Zelda",
		SystemID:           systemdefs.SystemNES,
		MD5:                "AABBCCDD",
		RequiresEnrichment: true,
		RelatedFiles:       []string{"NES/Zelda (USA).m3u"},
		AddedAt:            time.Now(),
	}
	require.NoError(t, db.SaveGame(ctx, rec))
	assert.NotZero(t, rec.DBID, "save must backfill the row ID")

	got, err := db.GetGame(ctx, "NES/Zelda (USA).nes")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Zelda", got.Title)
	assert.Equal(t, "AABBCCDD", got.MD5)
	assert.True(t, got.RequiresEnrichment)
	assert.Equal(t, []string{"NES/Zelda (USA).m3u"}, got.RelatedFiles)
}

func TestGetGameMissingIsNil(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	got, err := db.GetGame(context.Background(), "NES/Nope.nes")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveGameUpsertsByRelativePath(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	rec := &database.GameRecord{
		RelativePath:       "SNES/Chrono Trigger.sfc",
		Title:              "Chrono Trigger",
		SystemID:           systemdefs.SystemSNES,
		RequiresEnrichment: true,
		AddedAt:            time.Now(),
	}
	require.NoError(t, db.SaveGame(ctx, rec))
	firstID := rec.DBID

	rec.Title = "Chrono Trigger (Enriched)"
	rec.RequiresEnrichment = false
	require.NoError(t, db.SaveGame(ctx, rec))

	all, err := db.AllGames(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1, "second save must update, not insert")
	assert.Equal(t, firstID, all[0].DBID)
	assert.Equal(t, "Chrono Trigger (Enriched)", all[0].Title)
	assert.False(t, all[0].RequiresEnrichment)
}

func TestAllGamesFilterBySystem(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	for _, rec := range []*database.GameRecord{
		{RelativePath: "NES/A.nes", SystemID: systemdefs.SystemNES, AddedAt: time.Now()},
		{RelativePath: "NES/B.nes", SystemID: systemdefs.SystemNES, AddedAt: time.Now()},
		{RelativePath: "GBA/C.gba", SystemID: systemdefs.SystemGBA, AddedAt: time.Now()},
	} {
		require.NoError(t, db.SaveGame(ctx, rec))
	}

	nes, err := db.AllGames(ctx, systemdefs.SystemNES)
	require.NoError(t, err)
	assert.Len(t, nes, 2)

	all, err := db.AllGames(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeleteGame(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	rec := &database.GameRecord{RelativePath: "GBA/D.gba", SystemID: systemdefs.SystemGBA, AddedAt: time.Now()}
	require.NoError(t, db.SaveGame(ctx, rec))
	require.NoError(t, db.DeleteGame(ctx, "GBA/D.gba"))

	got, err := db.GetGame(ctx, "GBA/D.gba")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveBIOSUniquePerSystem(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	rec := &database.BIOSRecord{
		Name:         "scph5501.bin",
		SystemID:     systemdefs.SystemPSX,
		MD5:          "490F666E1AFB15B7362B406ED1CEA246",
		RelativePath: "PSX/BIOS/scph5501.bin",
	}
	require.NoError(t, db.SaveBIOS(ctx, rec))
	// Re-importing the same BIOS overwrites, never duplicates.
	require.NoError(t, db.SaveBIOS(ctx, rec))

	all, err := db.AllBIOS(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
