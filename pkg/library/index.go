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

// Package library provides the in-memory index of imported game records,
// keyed by relative path and by per-system alternate name. It avoids a
// database round trip on every duplicate/already-imported check during an
// import batch.
package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/RomstackProject/romstack-core/pkg/database"
	"github.com/RomstackProject/romstack-core/pkg/database/librarydb"
	"github.com/RomstackProject/romstack-core/pkg/helpers/syncutil"
	"github.com/RomstackProject/romstack-core/pkg/romname"
)

// Index holds both lookup structures. They are always updated together
// under one lock so no reader can observe one without the other.
type Index struct {
	byPath map[string]*database.GameRecord
	byName map[string]*database.GameRecord
	mu     syncutil.RWMutex
}

func NewIndex() *Index {
	return &Index{
		byPath: make(map[string]*database.GameRecord),
		byName: make(map[string]*database.GameRecord),
	}
}

func nameKey(systemID, stripped string) string {
	return systemID + "/" + strings.ToLower(stripped)
}

// Insert adds a record to both lookup structures atomically. The stored
// record replaces any previous entry at the same relative path.
func (idx *Index) Insert(rec *database.GameRecord) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if old, ok := idx.byPath[rec.RelativePath]; ok {
		key := nameKey(old.SystemID, romname.Strip(old.Filename()))
		// Only drop the name entry if it still points at the replaced
		// record; another record may have claimed the same name since.
		if idx.byName[key] == old {
			delete(idx.byName, key)
		}
	}
	idx.byPath[rec.RelativePath] = rec
	idx.byName[nameKey(rec.SystemID, romname.Strip(rec.Filename()))] = rec
}

// FindPath returns the record at a relative path, or nil.
func (idx *Index) FindPath(relativePath string) *database.GameRecord {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.byPath[relativePath]
}

// FindName returns the record matching an alternate name within one
// system, or nil. The name is matched case-insensitively after stripping.
func (idx *Index) FindName(systemID, name string) *database.GameRecord {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.byName[nameKey(systemID, romname.Strip(name))]
}

// FindNameAnySystem returns all records matching an alternate name across
// every system.
func (idx *Index) FindNameAnySystem(name string) []*database.GameRecord {
	stripped := strings.ToLower(romname.Strip(name))

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var matches []*database.GameRecord
	for key, rec := range idx.byName {
		i := strings.Index(key, "/")
		if i >= 0 && key[i+1:] == stripped {
			matches = append(matches, rec)
		}
	}
	return matches
}

// Remove drops a record from both lookup structures.
func (idx *Index) Remove(relativePath string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	rec, ok := idx.byPath[relativePath]
	if !ok {
		return
	}
	delete(idx.byPath, relativePath)

	key := nameKey(rec.SystemID, romname.Strip(rec.Filename()))
	if idx.byName[key] == rec {
		delete(idx.byName, key)
	}
}

// Len returns the number of indexed records.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.byPath)
}

// Rebuild replaces the index contents from persistent storage. Called on
// warm-start and after any external write to the library database.
func (idx *Index) Rebuild(ctx context.Context, db *librarydb.LibraryDB) error {
	games, err := db.AllGames(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to load games for index rebuild: %w", err)
	}

	byPath := make(map[string]*database.GameRecord, len(games))
	byName := make(map[string]*database.GameRecord, len(games))
	for i := range games {
		rec := &games[i]
		byPath[rec.RelativePath] = rec
		byName[nameKey(rec.SystemID, romname.Strip(rec.Filename()))] = rec
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.byPath = byPath
	idx.byName = byName
	return nil
}
