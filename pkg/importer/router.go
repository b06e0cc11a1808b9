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
	"bufio"
	"context"
	"fmt"
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
	"github.com/RomstackProject/romstack-core/pkg/romname"
	"github.com/RomstackProject/romstack-core/pkg/systemdefs"
)

type RouteAction int

const (
	// ActionSkipped covers archives, unroutable files left in place, and
	// anything aborted by a per-file error.
	ActionSkipped RouteAction = iota
	ActionRouted
	ActionInPlace
	ActionBIOS
	ActionDuplicate
	ActionConflict
	ActionDeleted
)

func (a RouteAction) String() string {
	switch a {
	case ActionRouted:
		return "routed"
	case ActionInPlace:
		return "in-place"
	case ActionBIOS:
		return "bios"
	case ActionDuplicate:
		return "duplicate"
	case ActionConflict:
		return "conflict"
	case ActionDeleted:
		return "deleted"
	default:
		return "skipped"
	}
}

// ConflictEntry records one file moved to quarantine.
type ConflictEntry struct {
	Filename       string
	QuarantinePath string
}

// RouteResult describes what happened to one candidate. Record is set for
// routed, in-place and duplicate outcomes; Conflict for quarantined ones.
type RouteResult struct {
	Action   RouteAction
	SystemID string
	Record   *database.GameRecord
	Conflict *ConflictEntry
}

// Router places a single standalone candidate into the library tree.
// Disc set members never reach it; the pipeline claims those first.
type Router struct {
	cfg   *config.Instance
	sigs  *sigdb.SigDB
	lib   *librarydb.LibraryDB
	index *library.Index
}

func NewRouter(cfg *config.Instance, sigs *sigdb.SigDB, lib *librarydb.LibraryDB, index *library.Index) *Router {
	return &Router{cfg: cfg, sigs: sigs, lib: lib, index: index}
}

// Route applies the classification steps in order, short-circuiting on the
// first that claims the file. An error aborts this file only; the caller
// logs it and continues the batch.
func (r *Router) Route(ctx context.Context, cand *CandidateFile) (RouteResult, error) {
	if systemdefs.IsArchive(cand.Extension()) {
		// Archives are expanded upstream. One reaching this point was not
		// extractable and is left alone.
		return RouteResult{Action: ActionSkipped}, nil
	}

	if res, ok, err := r.routeBIOS(ctx, cand); err != nil || ok {
		return res, err
	}

	if cand.Extension() == ".m3u" {
		if res, ok, err := r.attachPlaylist(ctx, cand); err != nil || ok {
			return res, err
		}
	}

	systemID, res, done, err := r.selectSystem(ctx, cand)
	if err != nil || done {
		return res, err
	}

	return r.place(ctx, cand, systemID)
}

// routeBIOS matches the candidate against the known BIOS tables by name
// and by checksum. BIOS files never get a game record.
func (r *Router) routeBIOS(ctx context.Context, cand *CandidateFile) (RouteResult, bool, error) {
	sum, err := cand.Checksum(0)
	if err != nil {
		return RouteResult{}, false, err
	}

	system, bios, ok := systemdefs.LookupBIOS(cand.Filename(), sum)
	if !ok {
		return RouteResult{}, false, nil
	}

	biosDir := filepath.Join(r.cfg.LibraryRoot(), system.ID, config.BiosDirName)
	if err := os.MkdirAll(biosDir, 0o750); err != nil {
		return RouteResult{}, false, fmt.Errorf("failed to create BIOS directory: %w", err)
	}

	dst := filepath.Join(biosDir, bios.Name)
	if cand.Path() != dst {
		if _, statErr := os.Stat(dst); statErr == nil {
			if err := os.Remove(dst); err != nil {
				return RouteResult{}, false, fmt.Errorf("failed to replace existing BIOS: %w", err)
			}
		}
		if err := helpers.MoveFile(cand.Path(), dst); err != nil {
			return RouteResult{}, false, err
		}
	}

	rec := &database.BIOSRecord{
		Name:         bios.Name,
		SystemID:     system.ID,
		MD5:          strings.ToUpper(bios.MD5),
		RelativePath: path.Join(system.ID, config.BiosDirName, bios.Name),
	}
	if err := r.lib.SaveBIOS(ctx, rec); err != nil {
		return RouteResult{}, false, err
	}

	log.Info().
		Str("system", system.ID).
		Str("name", bios.Name).
		Msg("imported BIOS file")
	return RouteResult{Action: ActionBIOS, SystemID: system.ID}, true, nil
}

// attachPlaylist matches a loose m3u to an already-imported game, by the
// filename on the playlist's first line and then by the playlist's own
// stripped name. Matched playlists move next to the game under a
// normalized name; unmatched ones fall through to ordinary routing.
func (r *Router) attachPlaylist(ctx context.Context, cand *CandidateFile) (RouteResult, bool, error) {
	rec := r.matchPlaylist(cand)
	if rec == nil {
		return RouteResult{}, false, nil
	}

	name := romname.Strip(rec.Filename()) + ".m3u"
	dst := filepath.Join(r.cfg.LibraryRoot(), rec.SystemID, name)
	if cand.Path() != dst {
		if err := helpers.MoveFile(cand.Path(), dst); err != nil {
			return RouteResult{}, false, err
		}
	}

	rel := path.Join(rec.SystemID, name)
	if !containsString(rec.RelatedFiles, rel) {
		rec.RelatedFiles = append(rec.RelatedFiles, rel)
	}
	if err := r.lib.SaveGame(ctx, rec); err != nil {
		return RouteResult{}, false, err
	}
	r.index.Insert(rec)

	log.Info().
		Str("playlist", name).
		Str("game", rec.RelativePath).
		Msg("attached playlist to existing game")
	return RouteResult{Action: ActionDuplicate, SystemID: rec.SystemID, Record: rec}, true, nil
}

func (r *Router) matchPlaylist(cand *CandidateFile) *database.GameRecord {
	if first := playlistFirstEntry(cand.Path()); first != "" {
		if recs := r.index.FindNameAnySystem(first); len(recs) == 1 {
			return recs[0]
		}
	}
	if recs := r.index.FindNameAnySystem(cand.Filename()); len(recs) == 1 {
		return recs[0]
	}
	return nil
}

// playlistFirstEntry returns the first non-empty, non-comment line of an
// m3u file.
func playlistFirstEntry(path string) string {
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close playlist")
		}
	}()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line
	}
	return ""
}

// selectSystem implements the checksum and extension classification steps.
// done is true when the result is terminal (junk deleted, left in place,
// duplicate registered or quarantined) and no placement should follow.
func (r *Router) selectSystem(ctx context.Context, cand *CandidateFile) (string, RouteResult, bool, error) {
	sum, err := cand.Checksum(0)
	if err != nil {
		return "", RouteResult{}, false, err
	}

	rows, err := r.sigs.LookupByChecksum(ctx, sum, "")
	if err != nil {
		log.Warn().Err(err).Str("file", cand.Filename()).Msg("checksum lookup failed")
	} else if id, ok := uniqueRowSystem(rows); ok {
		return id, RouteResult{}, false, nil
	}

	systems := systemdefs.SystemsForExt(cand.Extension())
	switch len(systems) {
	case 0:
		return "", r.routeUnmatched(cand), true, nil
	case 1:
		return systems[0].ID, RouteResult{}, false, nil
	}

	// Ambiguous extension: retry the checksum per candidate system using
	// each system's header offset, then fall back to matching the stripped
	// name against already-imported games on those systems.
	if id, ok := r.disambiguateByChecksum(ctx, cand, systems); ok {
		return id, RouteResult{}, false, nil
	}

	if rec, ok := r.disambiguateByName(cand, systems); ok {
		res, err := r.registerDuplicate(ctx, cand, rec)
		return "", res, true, err
	}

	res, err := r.quarantine(cand)
	return "", res, true, err
}

func (r *Router) disambiguateByChecksum(ctx context.Context, cand *CandidateFile, systems []systemdefs.System) (string, bool) {
	var matched []string
	for i := range systems {
		sum, err := cand.Checksum(systems[i].HeaderOffset)
		if err != nil {
			log.Warn().Err(err).Str("file", cand.Filename()).Msg("failed to checksum candidate")
			return "", false
		}
		rows, err := r.sigs.LookupByChecksum(ctx, sum, systems[i].ID)
		if err != nil {
			log.Warn().Err(err).Str("system", systems[i].ID).Msg("checksum lookup failed")
			continue
		}
		if len(rows) > 0 {
			matched = append(matched, systems[i].ID)
		}
	}
	if len(matched) == 1 {
		return matched[0], true
	}
	return "", false
}

func (r *Router) disambiguateByName(cand *CandidateFile, systems []systemdefs.System) (*database.GameRecord, bool) {
	var matched []*database.GameRecord
	for i := range systems {
		if rec := r.index.FindName(systems[i].ID, cand.Filename()); rec != nil {
			matched = append(matched, rec)
		}
	}
	if len(matched) == 1 {
		return matched[0], true
	}
	return nil, false
}

// registerDuplicate files the candidate as a related copy of an existing
// record instead of importing it again.
func (r *Router) registerDuplicate(ctx context.Context, cand *CandidateFile, rec *database.GameRecord) (RouteResult, error) {
	dst := filepath.Join(r.cfg.LibraryRoot(), rec.SystemID, cand.Filename())
	if cand.Path() != dst {
		if err := helpers.MoveFile(cand.Path(), dst); err != nil {
			return RouteResult{}, err
		}
	}

	rel := path.Join(rec.SystemID, cand.Filename())
	if rel != rec.RelativePath && !containsString(rec.RelatedFiles, rel) {
		rec.RelatedFiles = append(rec.RelatedFiles, rel)
	}
	if err := r.lib.SaveGame(ctx, rec); err != nil {
		return RouteResult{}, err
	}
	r.index.Insert(rec)

	log.Info().
		Str("file", cand.Filename()).
		Str("game", rec.RelativePath).
		Msg("registered duplicate of existing game")
	return RouteResult{Action: ActionDuplicate, SystemID: rec.SystemID, Record: rec}, nil
}

// routeUnmatched handles files no system claims: junk inside the staging
// directory is deleted, anything else is left where it is.
func (r *Router) routeUnmatched(cand *CandidateFile) RouteResult {
	inStaging := pathWithin(r.cfg.ImportsDir(), cand.Path())
	if inStaging && !isAllowedExtension(cand.Extension()) {
		if err := os.Remove(cand.Path()); err != nil {
			log.Warn().Err(err).Str("path", cand.Path()).Msg("failed to delete junk file")
			return RouteResult{Action: ActionSkipped}
		}
		log.Info().Str("file", cand.Filename()).Msg("deleted junk file")
		return RouteResult{Action: ActionDeleted}
	}

	log.Info().Str("file", cand.Filename()).Msg("no system matched")
	return RouteResult{Action: ActionSkipped}
}

func (r *Router) quarantine(cand *CandidateFile) (RouteResult, error) {
	dst := filepath.Join(r.cfg.ConflictsDir(), cand.Filename())
	if err := helpers.MoveFile(cand.Path(), dst); err != nil {
		return RouteResult{}, err
	}

	log.Warn().Str("file", cand.Filename()).Msg("quarantined ambiguous file")
	return RouteResult{
		Action:   ActionConflict,
		Conflict: &ConflictEntry{Filename: cand.Filename(), QuarantinePath: dst},
	}, nil
}

// place moves the candidate into its system directory and creates (or
// refreshes) the game record. A candidate already at its destination is a
// no-op move that still signals re-enrichment, which makes re-importing an
// intact library after a database reset cheap.
func (r *Router) place(ctx context.Context, cand *CandidateFile, systemID string) (RouteResult, error) {
	system, err := systemdefs.GetSystem(systemID)
	if err != nil {
		return RouteResult{}, err
	}

	sum, err := cand.Checksum(system.HeaderOffset)
	if err != nil {
		return RouteResult{}, err
	}

	dst := filepath.Join(r.cfg.LibraryRoot(), systemID, cand.Filename())
	action := ActionRouted
	if cand.Path() == dst {
		action = ActionInPlace
	} else {
		if _, statErr := os.Stat(dst); statErr == nil {
			if err := os.Remove(dst); err != nil {
				return RouteResult{}, fmt.Errorf("failed to replace existing file: %w", err)
			}
		}
		if err := helpers.MoveFile(cand.Path(), dst); err != nil {
			return RouteResult{}, err
		}
	}

	rel := path.Join(systemID, cand.Filename())
	rec := r.index.FindPath(rel)
	if rec == nil {
		rec = &database.GameRecord{
			RelativePath:       rel,
			Title:              cand.StrippedName(),
			SystemID:           systemID,
			MD5:                strings.ToUpper(sum),
			RequiresEnrichment: true,
			AddedAt:            time.Now(),
		}
	}
	if rec.MD5 == "" {
		rec.MD5 = strings.ToUpper(sum)
	}

	if err := r.lib.SaveGame(ctx, rec); err != nil {
		return RouteResult{}, err
	}
	r.index.Insert(rec)

	log.Info().
		Str("system", systemID).
		Str("path", rel).
		Str("action", action.String()).
		Msg("routed file")
	return RouteResult{Action: action, SystemID: systemID, Record: rec}, nil
}

// isAllowedExtension reports whether any pipeline stage has a use for the
// extension. Anything else in the staging directory is junk.
func isAllowedExtension(ext string) bool {
	return systemdefs.IsKnownExtension(ext) ||
		systemdefs.IsArchive(ext) ||
		systemdefs.IsArtwork(ext) ||
		strings.EqualFold(ext, ".m3u")
}

func pathWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func uniqueRowSystem(rows []database.SignatureRow) (string, bool) {
	systems := make(map[string]struct{})
	for _, row := range rows {
		systems[row.SystemID] = struct{}{}
	}
	if len(systems) != 1 {
		return "", false
	}
	return rows[0].SystemID, true
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
