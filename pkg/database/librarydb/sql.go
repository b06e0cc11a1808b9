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
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RomstackProject/romstack-core/pkg/database"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func sqlMigrateUp(db *sql.DB) error {
	if err := database.MigrateUp(db, migrationFiles, "migrations"); err != nil {
		return fmt.Errorf("failed librarydb migrate up: %w", err)
	}
	return nil
}

const saveGameSQL = `INSERT INTO Games (RelativePath, Title, SystemID, MD5,
	RequiresEnrichment, Region, RegionID, Genre, Developer, Publisher,
	Description, Serial, ReleaseID, ReferenceURL, ArtworkKey, RelatedFiles,
	AddedAt)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (RelativePath) DO UPDATE SET
		Title = excluded.Title,
		SystemID = excluded.SystemID,
		MD5 = excluded.MD5,
		RequiresEnrichment = excluded.RequiresEnrichment,
		Region = excluded.Region,
		RegionID = excluded.RegionID,
		Genre = excluded.Genre,
		Developer = excluded.Developer,
		Publisher = excluded.Publisher,
		Description = excluded.Description,
		Serial = excluded.Serial,
		ReleaseID = excluded.ReleaseID,
		ReferenceURL = excluded.ReferenceURL,
		ArtworkKey = excluded.ArtworkKey,
		RelatedFiles = excluded.RelatedFiles`

func sqlSaveGame(ctx context.Context, db *sql.DB, rec *database.GameRecord) error {
	related, err := json.Marshal(relatedOrEmpty(rec.RelatedFiles))
	if err != nil {
		return fmt.Errorf("failed to marshal related files: %w", err)
	}

	addedAt := rec.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now()
	}

	_, err = db.ExecContext(ctx, saveGameSQL,
		rec.RelativePath, rec.Title, rec.SystemID, rec.MD5,
		rec.RequiresEnrichment, rec.Region, rec.RegionID, rec.Genre,
		rec.Developer, rec.Publisher, rec.Description, rec.Serial,
		rec.ReleaseID, rec.ReferenceURL, rec.ArtworkKey, string(related),
		addedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save game record: %w", err)
	}

	var dbID int64
	err = db.QueryRowContext(ctx,
		"SELECT DBID FROM Games WHERE RelativePath = ?", rec.RelativePath,
	).Scan(&dbID)
	if err != nil {
		return fmt.Errorf("failed to read back game DBID: %w", err)
	}
	rec.DBID = dbID
	rec.AddedAt = addedAt
	return nil
}

const gameColumns = `DBID, RelativePath, Title, SystemID, MD5,
	RequiresEnrichment, Region, RegionID, Genre, Developer, Publisher,
	Description, Serial, ReleaseID, ReferenceURL, ArtworkKey, RelatedFiles,
	AddedAt`

func scanGame(scan func(...any) error) (*database.GameRecord, error) {
	var rec database.GameRecord
	var related string
	err := scan(
		&rec.DBID, &rec.RelativePath, &rec.Title, &rec.SystemID, &rec.MD5,
		&rec.RequiresEnrichment, &rec.Region, &rec.RegionID, &rec.Genre,
		&rec.Developer, &rec.Publisher, &rec.Description, &rec.Serial,
		&rec.ReleaseID, &rec.ReferenceURL, &rec.ArtworkKey, &related,
		&rec.AddedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(related), &rec.RelatedFiles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal related files: %w", err)
	}
	return &rec, nil
}

func sqlGetGame(ctx context.Context, db *sql.DB, relativePath string) (*database.GameRecord, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+gameColumns+" FROM Games WHERE RelativePath = ?",
		relativePath,
	)
	rec, err := scanGame(row.Scan)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func sqlAllGames(ctx context.Context, db *sql.DB, systemID string) ([]database.GameRecord, error) {
	query := "SELECT " + gameColumns + " FROM Games"
	args := []any{}
	if systemID != "" {
		query += " WHERE SystemID = ?"
		args = append(args, systemID)
	}
	query += " ORDER BY DBID"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close rows")
		}
	}()

	games := make([]database.GameRecord, 0)
	for rows.Next() {
		rec, err := scanGame(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game row: %w", err)
		}
		games = append(games, *rec)
	}
	return games, rows.Err()
}

func sqlDeleteGame(ctx context.Context, db *sql.DB, relativePath string) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM Games WHERE RelativePath = ?", relativePath)
	if err != nil {
		return fmt.Errorf("failed to delete game record: %w", err)
	}
	return nil
}

const saveBIOSSQL = `INSERT INTO BIOS (Name, SystemID, MD5, RelativePath)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (SystemID, Name) DO UPDATE SET
		MD5 = excluded.MD5,
		RelativePath = excluded.RelativePath`

func sqlSaveBIOS(ctx context.Context, db *sql.DB, rec *database.BIOSRecord) error {
	_, err := db.ExecContext(ctx, saveBIOSSQL,
		rec.Name, rec.SystemID, rec.MD5, rec.RelativePath)
	if err != nil {
		return fmt.Errorf("failed to save BIOS record: %w", err)
	}
	return nil
}

func sqlAllBIOS(ctx context.Context, db *sql.DB) ([]database.BIOSRecord, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT DBID, Name, SystemID, MD5, RelativePath FROM BIOS ORDER BY DBID")
	if err != nil {
		return nil, fmt.Errorf("failed to query BIOS records: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close rows")
		}
	}()

	records := make([]database.BIOSRecord, 0)
	for rows.Next() {
		var rec database.BIOSRecord
		if err := rows.Scan(&rec.DBID, &rec.Name, &rec.SystemID, &rec.MD5, &rec.RelativePath); err != nil {
			return nil, fmt.Errorf("failed to scan BIOS row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func relatedOrEmpty(files []string) []string {
	if files == nil {
		return []string{}
	}
	return files
}
