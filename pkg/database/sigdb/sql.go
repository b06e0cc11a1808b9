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

package sigdb

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/RomstackProject/romstack-core/pkg/database"
	"github.com/hbollon/go-edlib"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func sqlMigrateUp(db *sql.DB) error {
	if err := database.MigrateUp(db, migrationFiles, "migrations"); err != nil {
		return fmt.Errorf("failed sigdb migrate up: %w", err)
	}
	return nil
}

const signatureColumns = `DBID, MD5, SystemID, Title, Region, RegionID, Genre,
	Developer, Publisher, Description, FrontCoverURL, BackCoverURL, Serial,
	ReleaseID, ReferenceURL`

func scanSignatureRows(rows *sql.Rows) ([]database.SignatureRow, error) {
	results := make([]database.SignatureRow, 0)
	for rows.Next() {
		var r database.SignatureRow
		err := rows.Scan(
			&r.DBID, &r.MD5, &r.SystemID, &r.Title, &r.Region, &r.RegionID,
			&r.Genre, &r.Developer, &r.Publisher, &r.Description,
			&r.FrontCoverURL, &r.BackCoverURL, &r.Serial, &r.ReleaseID,
			&r.ReferenceURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signature row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func sqlLookupByChecksum(
	ctx context.Context,
	db *sql.DB,
	md5, systemID string,
) ([]database.SignatureRow, error) {
	query := "SELECT " + signatureColumns + " FROM Signatures WHERE MD5 = ?"
	args := []any{md5}
	if systemID != "" {
		query += " AND SystemID = ?"
		args = append(args, systemID)
	}
	query += " ORDER BY DBID"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signatures by checksum: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close rows")
		}
	}()

	return scanSignatureRows(rows)
}

func sqlLookupByTitle(
	ctx context.Context,
	db *sql.DB,
	name, systemID string,
) ([]database.SignatureRow, error) {
	query := "SELECT " + signatureColumns +
		" FROM Signatures WHERE Title LIKE ? ESCAPE '\\' COLLATE NOCASE"
	args := []any{"%" + escapeLike(name) + "%"}
	if systemID != "" {
		query += " AND SystemID = ?"
		args = append(args, systemID)
	}
	query += " ORDER BY DBID"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signatures by title: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close rows")
		}
	}()

	return scanSignatureRows(rows)
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

// rankRows orders filename-lookup results: exact-prefix matches first, then
// by Jaro-Winkler similarity against the query. Jaro-Winkler heavily
// weights matching prefixes, which fits game titles where the start of the
// name is usually right.
func rankRows(rows []database.SignatureRow, query string) {
	q := strings.ToLower(query)
	sort.SliceStable(rows, func(i, j int) bool {
		ti := strings.ToLower(rows[i].Title)
		tj := strings.ToLower(rows[j].Title)
		pi := strings.HasPrefix(ti, q)
		pj := strings.HasPrefix(tj, q)
		if pi != pj {
			return pi
		}
		return edlib.JaroWinklerSimilarity(q, ti) > edlib.JaroWinklerSimilarity(q, tj)
	})
}

const insertSignatureSQL = `INSERT INTO Signatures (MD5, SystemID, Title,
	Region, RegionID, Genre, Developer, Publisher, Description,
	FrontCoverURL, BackCoverURL, Serial, ReleaseID, ReferenceURL)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func sqlIngest(ctx context.Context, db *sql.DB, rows []database.SignatureRow) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin ingest transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSignatureSQL)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert signature statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx,
			strings.ToLower(r.MD5), r.SystemID, r.Title, r.Region, r.RegionID,
			r.Genre, r.Developer, r.Publisher, r.Description,
			r.FrontCoverURL, r.BackCoverURL, r.Serial, r.ReleaseID,
			r.ReferenceURL,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert signature row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ingest transaction: %w", err)
	}
	return nil
}
