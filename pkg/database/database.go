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

// Package database holds the record structs shared between the signature
// and library databases, plus the common migration runner.
package database

import "time"

/*
 * Structs for SQL records
 */

// RegionIDUSA is the signature database's numeric code for a US release.
const RegionIDUSA = 21

// SignatureRow is one release entry in the signature database. A checksum
// can map to more than one row when a dump was released in multiple
// regions.
type SignatureRow struct {
	DBID          int64
	MD5           string
	SystemID      string
	Title         string
	Region        string
	RegionID      int
	Genre         string
	Developer     string
	Publisher     string
	Description   string
	FrontCoverURL string
	BackCoverURL  string
	Serial        string
	ReleaseID     string
	ReferenceURL  string
}

// GameRecord is one imported game in the library. RelativePath is unique
// and system-prefixed (e.g. "NES/Zelda.nes"). MD5 is uppercase hex and
// immutable once set.
type GameRecord struct {
	DBID               int64
	RelativePath       string
	Title              string
	SystemID           string
	MD5                string
	RequiresEnrichment bool
	Region             string
	RegionID           int
	Genre              string
	Developer          string
	Publisher          string
	Description        string
	Serial             string
	ReleaseID          string
	ReferenceURL       string
	ArtworkKey         string
	// RelatedFiles are library-relative paths of companion files owned by
	// this record (bin tracks for a cue sheet, m3u playlists, duplicates).
	RelatedFiles []string
	AddedAt      time.Time
}

// Filename returns the bare filename of the record's relative path.
func (g *GameRecord) Filename() string {
	for i := len(g.RelativePath) - 1; i >= 0; i-- {
		if g.RelativePath[i] == '/' {
			return g.RelativePath[i+1:]
		}
	}
	return g.RelativePath
}

// BIOSRecord tracks an installed BIOS file for a system.
type BIOSRecord struct {
	DBID         int64
	Name         string
	SystemID     string
	MD5          string
	RelativePath string
}
