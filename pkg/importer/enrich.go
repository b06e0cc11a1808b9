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
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/RomstackProject/romstack-core/pkg/artwork"
	"github.com/RomstackProject/romstack-core/pkg/config"
	"github.com/RomstackProject/romstack-core/pkg/database"
	"github.com/RomstackProject/romstack-core/pkg/database/librarydb"
	"github.com/RomstackProject/romstack-core/pkg/database/sigdb"
	"github.com/RomstackProject/romstack-core/pkg/romname"
	"github.com/RomstackProject/romstack-core/pkg/systemdefs"
)

// Enricher fills a freshly routed game record with signature database
// metadata and, when a fetcher is supplied, cover artwork. It mutates and
// persists the record. Safe for concurrent use on distinct records.
type Enricher struct {
	cfg  *config.Instance
	sigs *sigdb.SigDB
	lib  *librarydb.LibraryDB
	art  *artwork.Fetcher
}

func NewEnricher(cfg *config.Instance, sigs *sigdb.SigDB, lib *librarydb.LibraryDB, art *artwork.Fetcher) *Enricher {
	return &Enricher{cfg: cfg, sigs: sigs, lib: lib, art: art}
}

// Enrich looks the record up by checksum, falling back to filename, and
// applies the best-matching row. The enrichment flag clears whether or
// not a match was found; a miss is not retried automatically. Returns
// whether any metadata field changed and the artwork URL fetched, if any.
func (e *Enricher) Enrich(ctx context.Context, rec *database.GameRecord) (bool, string, error) {
	if !rec.RequiresEnrichment {
		return false, "", nil
	}

	if rec.MD5 == "" {
		e.computeChecksum(rec)
	}
	if rec.MD5 == "" {
		log.Warn().Str("path", rec.RelativePath).Msg("cannot enrich record without checksum")
		return false, "", nil
	}

	row := e.lookup(ctx, rec)

	changed := false
	artworkURL := ""
	if row != nil {
		changed = e.apply(rec, row)
		artworkURL = e.fetchArtwork(ctx, rec, row)
	} else {
		log.Info().Str("path", rec.RelativePath).Msg("no signature match for record")
	}

	rec.RequiresEnrichment = false
	if err := e.lib.SaveGame(ctx, rec); err != nil {
		return changed, artworkURL, err
	}
	return changed, artworkURL, nil
}

func (e *Enricher) computeChecksum(rec *database.GameRecord) {
	system, err := systemdefs.GetSystem(rec.SystemID)
	if err != nil {
		log.Warn().Err(err).Str("path", rec.RelativePath).Msg("unknown system on record")
		return
	}

	path := filepath.Join(e.cfg.LibraryRoot(), filepath.FromSlash(rec.RelativePath))
	sum, err := NewCandidate(path).Checksum(system.HeaderOffset)
	if err != nil {
		log.Warn().Err(err).Str("path", rec.RelativePath).Msg("failed to checksum record")
		return
	}
	rec.MD5 = strings.ToUpper(sum)
}

func (e *Enricher) lookup(ctx context.Context, rec *database.GameRecord) *database.SignatureRow {
	rows, err := e.sigs.LookupByChecksum(ctx, rec.MD5, rec.SystemID)
	if err != nil {
		log.Warn().Err(err).Str("path", rec.RelativePath).Msg("checksum lookup failed")
		rows = nil
	}

	if len(rows) == 0 {
		key := romname.SearchKey(rec.Filename())
		if key == "" {
			return nil
		}
		rows, err = e.sigs.LookupByFilename(ctx, key, rec.SystemID)
		if err != nil {
			log.Warn().Err(err).Str("path", rec.RelativePath).Msg("filename lookup failed")
			return nil
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return selectRow(rows, rec.RelativePath)
}

// selectRow picks among multiple regional releases: an exact US region
// code wins, then a region string mentioning USA, then the first row.
func selectRow(rows []database.SignatureRow, recPath string) *database.SignatureRow {
	for i := range rows {
		if rows[i].RegionID == database.RegionIDUSA {
			return &rows[i]
		}
	}
	for i := range rows {
		if strings.Contains(strings.ToUpper(rows[i].Region), "USA") {
			return &rows[i]
		}
	}
	if len(rows) > 1 {
		log.Info().
			Str("path", recPath).
			Int("candidates", len(rows)).
			Msg("multiple signature matches, using first")
	}
	return &rows[0]
}

// apply copies row fields onto the record. Empty fields always fill;
// populated ones are replaced only when overwrite is configured.
func (e *Enricher) apply(rec *database.GameRecord, row *database.SignatureRow) bool {
	overwrite := e.cfg.OverwriteMetadata()
	changed := false

	set := func(dst *string, src string) {
		if src == "" || (*dst != "" && !overwrite) || *dst == src {
			return
		}
		*dst = src
		changed = true
	}

	set(&rec.Title, row.Title)
	set(&rec.Region, row.Region)
	set(&rec.Genre, row.Genre)
	set(&rec.Developer, row.Developer)
	set(&rec.Publisher, row.Publisher)
	set(&rec.Description, row.Description)
	set(&rec.Serial, row.Serial)
	set(&rec.ReleaseID, row.ReleaseID)
	set(&rec.ReferenceURL, row.ReferenceURL)

	if row.RegionID != 0 && (rec.RegionID == 0 || overwrite) && rec.RegionID != row.RegionID {
		rec.RegionID = row.RegionID
		changed = true
	}
	return changed
}

// fetchArtwork downloads the row's front cover into the cache. Failures
// leave the record without artwork but never fail enrichment.
func (e *Enricher) fetchArtwork(ctx context.Context, rec *database.GameRecord, row *database.SignatureRow) string {
	if e.art == nil || row.FrontCoverURL == "" || rec.ArtworkKey != "" {
		return ""
	}

	key, err := e.art.Fetch(ctx, row.FrontCoverURL)
	if err != nil {
		log.Warn().Err(err).Str("url", row.FrontCoverURL).Msg("artwork fetch failed")
		return ""
	}
	rec.ArtworkKey = key
	return row.FrontCoverURL
}
