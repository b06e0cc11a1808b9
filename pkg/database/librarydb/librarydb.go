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

// Package librarydb persists imported game and BIOS records. Game records
// upsert by relative path, which is the library's stable primary key.
package librarydb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RomstackProject/romstack-core/pkg/database"
	_ "github.com/mattn/go-sqlite3"
)

var ErrNullSQL = errors.New("LibraryDB is not connected")

const sqliteConnParams = "?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000"

type LibraryDB struct {
	sql    *sql.DB
	dbPath string
}

// Open opens (creating and migrating if necessary) the library database at
// path.
func Open(path string) (*LibraryDB, error) {
	db := &LibraryDB{dbPath: path}
	err := db.open()
	return db, err
}

func (db *LibraryDB) open() error {
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

func (db *LibraryDB) Close() error {
	if db.sql == nil {
		return nil
	}
	return db.sql.Close()
}

func (db *LibraryDB) UnsafeGetSQLDb() *sql.DB {
	return db.sql
}

// SaveGame upserts a game record by relative path and backfills its DBID.
func (db *LibraryDB) SaveGame(ctx context.Context, rec *database.GameRecord) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlSaveGame(ctx, db.sql, rec)
}

// GetGame returns the record at a relative path, or nil if absent.
func (db *LibraryDB) GetGame(ctx context.Context, relativePath string) (*database.GameRecord, error) {
	if db.sql == nil {
		return nil, ErrNullSQL
	}
	rec, err := sqlGetGame(ctx, db.sql, relativePath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// AllGames returns all records, optionally restricted to one system
// (empty systemID matches all). Used for library index warm-start.
func (db *LibraryDB) AllGames(ctx context.Context, systemID string) ([]database.GameRecord, error) {
	if db.sql == nil {
		return nil, ErrNullSQL
	}
	return sqlAllGames(ctx, db.sql, systemID)
}

// DeleteGame removes the record at a relative path. Missing rows are a
// no-op.
func (db *LibraryDB) DeleteGame(ctx context.Context, relativePath string) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlDeleteGame(ctx, db.sql, relativePath)
}

// SaveBIOS upserts a BIOS record by (system, name).
func (db *LibraryDB) SaveBIOS(ctx context.Context, rec *database.BIOSRecord) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlSaveBIOS(ctx, db.sql, rec)
}

// AllBIOS returns all installed BIOS records.
func (db *LibraryDB) AllBIOS(ctx context.Context) ([]database.BIOSRecord, error) {
	if db.sql == nil {
		return nil, ErrNullSQL
	}
	return sqlAllBIOS(ctx, db.sql)
}
