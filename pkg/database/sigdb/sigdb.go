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

// Package sigdb wraps the bundled ROM signature database: a read-only
// lookup service keyed by content checksum and by filename. All queries
// are safe for concurrent use.
package sigdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RomstackProject/romstack-core/pkg/database"
	"github.com/RomstackProject/romstack-core/pkg/romname"
	"github.com/RomstackProject/romstack-core/pkg/systemdefs"
	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNullSQL       = errors.New("SigDB is not connected")
	ErrEmptyQuery    = errors.New("empty search key")
	ErrUnknownSystem = errors.New("unknown system ID")
)

const sqliteConnParams = "?_journal_mode=WAL&_busy_timeout=5000"

type SigDB struct {
	sql    *sql.DB
	dbPath string
}

// Open opens (creating and migrating if necessary) the signature database
// at path.
func Open(path string) (*SigDB, error) {
	db := &SigDB{dbPath: path}
	err := db.open()
	return db, err
}

func (db *SigDB) open() error {
	if _, err := os.Stat(db.dbPath); err != nil {
		if mkdirErr := os.MkdirAll(filepath.Dir(db.dbPath), 0o750); mkdirErr != nil {
			return fmt.Errorf("failed to create directory for database: %w", mkdirErr)
		}
	}
	sqlInstance, err := sql.Open("sqlite3", db.dbPath+sqliteConnParams)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.sql = sqlInstance
	return sqlMigrateUp(db.sql)
}

func (db *SigDB) Close() error {
	if db.sql == nil {
		return nil
	}
	return db.sql.Close()
}

func (db *SigDB) UnsafeGetSQLDb() *sql.DB {
	return db.sql
}

// LookupByChecksum returns all signature rows matching an MD5 checksum,
// optionally restricted to one system (empty systemID matches all). Zero
// rows is not an error.
func (db *SigDB) LookupByChecksum(ctx context.Context, md5, systemID string) ([]database.SignatureRow, error) {
	if db.sql == nil {
		return nil, ErrNullSQL
	}
	if strings.TrimSpace(md5) == "" {
		return nil, ErrEmptyQuery
	}
	if systemID != "" {
		if _, err := systemdefs.GetSystem(systemID); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSystem, systemID)
		}
	}
	return sqlLookupByChecksum(ctx, db.sql, strings.ToLower(md5), systemID)
}

// LookupByFilename returns signature rows whose title contains the query
// as a substring, ranked so exact-prefix matches sort first. Used as the
// fallback when checksum lookup yields nothing.
func (db *SigDB) LookupByFilename(ctx context.Context, name, systemID string) ([]database.SignatureRow, error) {
	if db.sql == nil {
		return nil, ErrNullSQL
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyQuery
	}
	if systemID != "" {
		if _, err := systemdefs.GetSystem(systemID); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSystem, systemID)
		}
	}

	rows, err := sqlLookupByTitle(ctx, db.sql, name, systemID)
	if err != nil {
		return nil, err
	}
	rankRows(rows, name)
	return rows, nil
}

// SystemForFile attempts to determine the unique system a file belongs to,
// first by checksum and then by stripped filename. Returns false when the
// lookups match zero systems or more than one.
func (db *SigDB) SystemForFile(ctx context.Context, md5, filename string) (string, bool) {
	if md5 != "" {
		rows, err := db.LookupByChecksum(ctx, md5, "")
		if err == nil {
			if id, ok := uniqueSystem(rows); ok {
				return id, true
			}
			if len(rows) > 0 {
				return "", false
			}
		}
	}

	key := romname.SearchKey(filename)
	if key == "" {
		return "", false
	}
	rows, err := db.LookupByFilename(ctx, key, "")
	if err != nil {
		return "", false
	}
	return uniqueSystem(rows)
}

// Ingest inserts signature rows in one transaction. Used by the seeding
// CLI path and test fixtures.
func (db *SigDB) Ingest(ctx context.Context, rows []database.SignatureRow) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlIngest(ctx, db.sql, rows)
}

func uniqueSystem(rows []database.SignatureRow) (string, bool) {
	systems := make(map[string]struct{})
	for _, row := range rows {
		systems[row.SystemID] = struct{}{}
	}
	if len(systems) != 1 {
		return "", false
	}
	return rows[0].SystemID, true
}
