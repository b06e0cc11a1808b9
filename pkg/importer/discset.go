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
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RomstackProject/romstack-core/pkg/config"
	"github.com/RomstackProject/romstack-core/pkg/database"
	"github.com/RomstackProject/romstack-core/pkg/database/librarydb"
	"github.com/RomstackProject/romstack-core/pkg/database/sigdb"
	"github.com/RomstackProject/romstack-core/pkg/helpers"
	"github.com/RomstackProject/romstack-core/pkg/library"
	"github.com/RomstackProject/romstack-core/pkg/systemdefs"
)

// DiscSetResolver clusters a cue sheet with its companion track and
// playlist files and moves the whole set as a unit. A set either lands in
// one system directory together or is quarantined together.
type DiscSetResolver struct {
	cfg   *config.Instance
	sigs  *sigdb.SigDB
	lib   *librarydb.LibraryDB
	index *library.Index
}

func NewDiscSetResolver(cfg *config.Instance, sigs *sigdb.SigDB, lib *librarydb.LibraryDB, index *library.Index) *DiscSetResolver {
	return &DiscSetResolver{cfg: cfg, sigs: sigs, lib: lib, index: index}
}

// IsAnchor reports whether the candidate heads a disc set.
func (r *DiscSetResolver) IsAnchor(cand *CandidateFile) bool {
	return cand.Extension() == ".cue"
}

// Claim returns the companions belonging to an anchor from the remaining
// candidates. A companion either shares the anchor's stripped name (after
// truncation, so "Game (Track 2)" matches anchor "Game") or is a playlist
// whose text references the anchor's filename.
func (r *DiscSetResolver) Claim(anchor *CandidateFile, rest []*CandidateFile) []*CandidateFile {
	anchorDir := filepath.Dir(anchor.Path())
	anchorName := anchor.StrippedName()

	var companions []*CandidateFile
	for _, cand := range rest {
		if cand.Path() == anchor.Path() || filepath.Dir(cand.Path()) != anchorDir {
			continue
		}
		if nameMatchesAnchor(cand.StrippedName(), anchorName) {
			companions = append(companions, cand)
			continue
		}
		if cand.Extension() == ".m3u" && playlistReferences(cand.Path(), anchor.Filename()) {
			companions = append(companions, cand)
		}
	}
	return companions
}

func nameMatchesAnchor(name, anchorName string) bool {
	if len(name) > len(anchorName) {
		name = name[:len(anchorName)]
	}
	return strings.EqualFold(strings.TrimSpace(name), anchorName)
}

func playlistReferences(path, filename string) bool {
	data, err := os.ReadFile(path) //nolint:gosec // staged file
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), strings.ToLower(filename))
}

// Resolve determines the set's system and moves every member. When the
// system stays ambiguous the whole set goes to quarantine so no disc is
// ever split from its tracks.
func (r *DiscSetResolver) Resolve(ctx context.Context, anchor *CandidateFile, companions []*CandidateFile) (RouteResult, []ConflictEntry, error) {
	systemID, sum, ok := r.resolveSystem(ctx, anchor, companions)
	if !ok {
		conflicts, err := r.quarantineSet(anchor, companions)
		if err != nil {
			return RouteResult{}, conflicts, err
		}
		return RouteResult{Action: ActionConflict}, conflicts, nil
	}

	destDir := filepath.Join(r.cfg.LibraryRoot(), systemID)
	normalized := anchor.StrippedName()

	relatedFiles := make([]string, 0, len(companions))
	movedNames := make([]string, 0, len(companions))
	for _, comp := range companions {
		name := comp.Filename()
		if comp.Extension() == ".m3u" {
			name = normalized + ".m3u"
		}
		dst := filepath.Join(destDir, name)
		if comp.Path() != dst {
			if err := helpers.MoveFile(comp.Path(), dst); err != nil {
				return RouteResult{}, nil, err
			}
		}
		relatedFiles = append(relatedFiles, path.Join(systemID, name))
		if comp.Extension() != ".m3u" {
			movedNames = append(movedNames, name)
		}
	}

	anchorDst := filepath.Join(destDir, anchor.Filename())
	action := ActionRouted
	if anchor.Path() == anchorDst {
		action = ActionInPlace
	} else if err := helpers.MoveFile(anchor.Path(), anchorDst); err != nil {
		return RouteResult{}, nil, err
	}

	if err := recaseCueReferences(anchorDst, movedNames); err != nil {
		log.Warn().Err(err).Str("cue", anchor.Filename()).Msg("failed to re-case cue sheet references")
	}

	rel := path.Join(systemID, anchor.Filename())
	rec := r.index.FindPath(rel)
	if rec == nil {
		rec = &database.GameRecord{
			RelativePath:       rel,
			Title:              normalized,
			SystemID:           systemID,
			MD5:                strings.ToUpper(sum),
			RequiresEnrichment: true,
			AddedAt:            time.Now(),
		}
	}
	if rec.MD5 == "" {
		rec.MD5 = strings.ToUpper(sum)
	}
	for _, rf := range relatedFiles {
		if !containsString(rec.RelatedFiles, rf) {
			rec.RelatedFiles = append(rec.RelatedFiles, rf)
		}
	}

	if err := r.lib.SaveGame(ctx, rec); err != nil {
		return RouteResult{}, nil, err
	}
	r.index.Insert(rec)

	log.Info().
		Str("system", systemID).
		Str("path", rel).
		Int("companions", len(companions)).
		Msg("imported disc set")
	return RouteResult{Action: action, SystemID: systemID, Record: rec}, nil, nil
}

// resolveSystem identifies the set's system by checksumming its data
// tracks against the signature database, falling back to the anchor
// extension when it maps to a single CD-based system. Returns the data
// track checksum used, for the game record.
func (r *DiscSetResolver) resolveSystem(ctx context.Context, anchor *CandidateFile, companions []*CandidateFile) (string, string, bool) {
	var firstSum string
	for _, comp := range companions {
		if comp.Extension() == ".m3u" || comp.Extension() == ".cue" {
			continue
		}
		sum, err := comp.Checksum(0)
		if err != nil {
			log.Warn().Err(err).Str("file", comp.Filename()).Msg("failed to checksum disc track")
			continue
		}
		if firstSum == "" {
			firstSum = sum
		}
		rows, err := r.sigs.LookupByChecksum(ctx, sum, "")
		if err != nil {
			log.Warn().Err(err).Str("file", comp.Filename()).Msg("checksum lookup failed")
			continue
		}
		if id, ok := uniqueRowSystem(rows); ok {
			return id, sum, true
		}
	}

	cdSystems := cdSystemsForExt(anchor.Extension())
	if len(cdSystems) == 1 {
		return cdSystems[0], firstSum, true
	}
	return "", "", false
}

func cdSystemsForExt(ext string) []string {
	var ids []string
	for _, system := range systemdefs.SystemsForExt(ext) {
		if system.CDBased {
			ids = append(ids, system.ID)
		}
	}
	return ids
}

func (r *DiscSetResolver) quarantineSet(anchor *CandidateFile, companions []*CandidateFile) ([]ConflictEntry, error) {
	members := append([]*CandidateFile{anchor}, companions...)
	conflicts := make([]ConflictEntry, 0, len(members))
	for _, member := range members {
		dst := filepath.Join(r.cfg.ConflictsDir(), member.Filename())
		if err := helpers.MoveFile(member.Path(), dst); err != nil {
			return conflicts, err
		}
		conflicts = append(conflicts, ConflictEntry{Filename: member.Filename(), QuarantinePath: dst})
	}

	log.Warn().
		Str("anchor", anchor.Filename()).
		Int("files", len(members)).
		Msg("quarantined ambiguous disc set")
	return conflicts, nil
}

// recaseCueReferences rewrites the cue sheet so its FILE entries match the
// exact casing of the files that were moved. Case mismatches break discs
// on case-sensitive filesystems.
func recaseCueReferences(cuePath string, filenames []string) error {
	data, err := os.ReadFile(cuePath) //nolint:gosec // path built by the pipeline
	if err != nil {
		return err
	}

	text := string(data)
	rewritten := text
	for _, name := range filenames {
		rewritten = helpers.ReplaceInsensitive(rewritten, name, name)
	}
	if rewritten == text {
		return nil
	}
	return os.WriteFile(cuePath, []byte(rewritten), 0o640)
}
