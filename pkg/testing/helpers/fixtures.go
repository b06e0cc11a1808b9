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

// Package helpers provides shared test fixtures: temp databases, temp
// library trees and signature row builders.
package helpers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/RomstackProject/romstack-core/pkg/config"
	"github.com/RomstackProject/romstack-core/pkg/database"
	"github.com/RomstackProject/romstack-core/pkg/database/librarydb"
	"github.com/RomstackProject/romstack-core/pkg/database/sigdb"
)

// NewTestConfig returns a config instance with every path rooted inside
// dir, so tests never touch real user directories.
func NewTestConfig(t *testing.T, dir string) *config.Instance {
	t.Helper()

	vals := config.Values{
		ConfigSchema: config.SchemaVersion,
		Library: config.Library{
			RootDir:      filepath.Join(dir, "library"),
			ImportsDir:   filepath.Join(dir, "library", config.ImportsDirName),
			ConflictsDir: filepath.Join(dir, "library", config.ConflictsDirName),
			Database:     filepath.Join(dir, config.LibraryDbFile),
		},
		Signatures: config.Sigs{
			Database: filepath.Join(dir, config.SignatureDbFile),
		},
		Artwork: config.Artwork{
			CacheDir: filepath.Join(dir, config.ArtworkDirName),
			MaxWidth: 400,
		},
	}

	cfg, err := config.NewConfig(filepath.Join(dir, "config"), vals)
	if err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	return cfg
}

// NewSigDB opens a migrated signature database in a temp directory and
// seeds it with the given rows.
func NewSigDB(t *testing.T, rows ...database.SignatureRow) *sigdb.SigDB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "signatures_test.db")
	db, err := sigdb.Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open test signature database: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := db.Close(); closeErr != nil {
			t.Errorf("Failed to close test signature database: %v", closeErr)
		}
	})

	if len(rows) > 0 {
		if err := db.Ingest(context.Background(), rows); err != nil {
			t.Fatalf("Failed to seed test signature database: %v", err)
		}
	}
	return db
}

// NewLibraryDB opens a migrated library database in a temp directory.
func NewLibraryDB(t *testing.T) *librarydb.LibraryDB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "library_test.db")
	db, err := librarydb.Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open test library database: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := db.Close(); closeErr != nil {
			t.Errorf("Failed to close test library database: %v", closeErr)
		}
	})
	return db
}

// SignatureRow builds a minimal valid signature row for tests.
func SignatureRow(md5, systemID, title string) database.SignatureRow {
	return database.SignatureRow{
		MD5:      md5,
		SystemID: systemID,
		Title:    title,
	}
}

// WriteFile creates a file (and its parent directories) with content.
func WriteFile(t *testing.T, path string, content []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}
