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
	"errors"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/RomstackProject/romstack-core/pkg/artwork"
	"github.com/RomstackProject/romstack-core/pkg/config"
	"github.com/RomstackProject/romstack-core/pkg/database"
	"github.com/RomstackProject/romstack-core/pkg/database/librarydb"
	"github.com/RomstackProject/romstack-core/pkg/database/sigdb"
	"github.com/RomstackProject/romstack-core/pkg/helpers"
	"github.com/RomstackProject/romstack-core/pkg/library"
	"github.com/RomstackProject/romstack-core/pkg/systemdefs"
)

// BatchState tracks a batch through the pipeline. Conflicts are a flag on
// the batch, not a separate state; they never halt processing.
type BatchState int

const (
	StateIdle BatchState = iota
	StateScanning
	StateRouting
	StateEnriching
	StateCompleted
)

func (s BatchState) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateRouting:
		return "routing"
	case StateEnriching:
		return "enriching"
	case StateCompleted:
		return "completed"
	default:
		return "idle"
	}
}

// Callbacks report pipeline progress. All hooks are optional and invoked
// from pipeline goroutines; implementations must be safe for that.
// ArtworkFinished fires once per enriched or artwork-matched record with
// the artwork's source URL or cache key; empty means no artwork was
// attached.
type Callbacks struct {
	ImportStarted   func(path string)
	ImportFinished  func(md5 string, wasModified bool)
	ArtworkFinished func(url string)
	BatchComplete   func(hadConflicts bool)
}

func (c Callbacks) importStarted(path string) {
	if c.ImportStarted != nil {
		c.ImportStarted(path)
	}
}

func (c Callbacks) importFinished(md5 string, wasModified bool) {
	if c.ImportFinished != nil {
		c.ImportFinished(md5, wasModified)
	}
}

func (c Callbacks) artworkFinished(url string) {
	if c.ArtworkFinished != nil {
		c.ArtworkFinished(url)
	}
}

func (c Callbacks) batchComplete(hadConflicts bool) {
	if c.BatchComplete != nil {
		c.BatchComplete(hadConflicts)
	}
}

type batchJob struct {
	id      string
	paths   []string
	mapping map[string]string
}

// Pipeline owns the serial import worker. All filesystem mutation happens
// on that one goroutine; only enrichment fans out, bounded by config.
type Pipeline struct {
	cfg      *config.Instance
	lib      *librarydb.LibraryDB
	index    *library.Index
	router   *Router
	discs    *DiscSetResolver
	enricher *Enricher
	art      *artwork.Fetcher
	decomp   Decompressor
	cb       Callbacks
	jobs     chan batchJob
	stopped  chan struct{}
}

func NewPipeline(
	cfg *config.Instance,
	sigs *sigdb.SigDB,
	lib *librarydb.LibraryDB,
	index *library.Index,
	art *artwork.Fetcher,
	decomp Decompressor,
	cb Callbacks,
) *Pipeline {
	if decomp == nil {
		decomp = ZipDecompressor{}
	}
	return &Pipeline{
		cfg:      cfg,
		lib:      lib,
		index:    index,
		router:   NewRouter(cfg, sigs, lib, index),
		discs:    NewDiscSetResolver(cfg, sigs, lib, index),
		enricher: NewEnricher(cfg, sigs, lib, art),
		art:      art,
		decomp:   decomp,
		cb:       cb,
		jobs:     make(chan batchJob, 32),
		stopped:  make(chan struct{}),
	}
}

// Start launches the serial worker. It returns immediately; the worker
// runs until the context is cancelled, then closes the channel returned
// by Done.
func (p *Pipeline) Start(ctx context.Context) {
	go func() {
		defer close(p.stopped)
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-p.jobs:
				p.runBatch(ctx, job)
			}
		}
	}()
}

// Done is closed once the worker has exited.
func (p *Pipeline) Done() <-chan struct{} {
	return p.stopped
}

// StartImport queues a batch of files or directories and returns its
// batch ID. Fire and forget; progress arrives through callbacks.
func (p *Pipeline) StartImport(paths []string) string {
	job := batchJob{id: uuid.NewString(), paths: paths}
	p.jobs <- job
	return job.id
}

// ResolveConflicts queues a re-routing pass for quarantined files with an
// explicit file to system ID mapping, bypassing automatic disambiguation.
func (p *Pipeline) ResolveConflicts(mapping map[string]string) string {
	paths := make([]string, 0, len(mapping))
	for path := range mapping {
		paths = append(paths, path)
	}
	job := batchJob{id: uuid.NewString(), paths: paths, mapping: mapping}
	p.jobs <- job
	return job.id
}

// RefreshIndex rebuilds the in-memory index from the library database.
// Called after external writes to the library.
func (p *Pipeline) RefreshIndex(ctx context.Context) error {
	return p.index.Rebuild(ctx, p.lib)
}

type enrichItem struct {
	record *database.GameRecord
}

func (p *Pipeline) runBatch(ctx context.Context, job batchJob) {
	logger := log.With().Str("batch", job.id).Logger()

	logger.Info().Str("state", StateScanning.String()).Int("inputs", len(job.paths)).Msg("batch started")
	files := ExpandPaths(ctx, job.paths)
	files = p.expandArchives(files)

	logger.Info().Str("state", StateRouting.String()).Int("files", len(files)).Msg("routing files")
	items, hadConflicts := p.routeAll(ctx, files, job.mapping)

	logger.Info().Str("state", StateEnriching.String()).Int("records", len(items)).Msg("enriching records")
	p.enrichAll(ctx, items)

	logger.Info().
		Str("state", StateCompleted.String()).
		Bool("hadConflicts", hadConflicts).
		Msg("batch complete")
	p.cb.batchComplete(hadConflicts)
}

// expandArchives extracts archive files in place and substitutes their
// entries into the batch. A failed extraction is logged and the archive
// skipped; one bad file never blocks the rest.
func (p *Pipeline) expandArchives(files []string) []string {
	expanded := make([]string, 0, len(files))
	for _, file := range files {
		if !systemdefs.IsArchive(helpers.GetPathInfo(file).Extension) {
			expanded = append(expanded, file)
			continue
		}

		entries, err := p.decomp.Extract(file)
		if err != nil {
			if errors.Is(err, ErrUnknownCompression) {
				log.Warn().Str("path", file).Msg("skipping archive with unsupported format")
			} else {
				log.Warn().Err(err).Str("path", file).Msg("failed to extract archive")
			}
			continue
		}
		expanded = append(expanded, entries...)
	}

	sortAnchorsFirst(expanded)
	return expanded
}

// routeAll runs two passes: disc set anchors first so they claim their
// companions away from generic routing, then everything left over.
func (p *Pipeline) routeAll(ctx context.Context, files []string, mapping map[string]string) ([]enrichItem, bool) {
	candidates := make([]*CandidateFile, 0, len(files))
	for _, file := range files {
		candidates = append(candidates, NewCandidate(file))
	}

	var items []enrichItem
	hadConflicts := false
	claimed := make(map[string]bool)

	collect := func(res RouteResult) {
		switch res.Action {
		case ActionConflict:
			hadConflicts = true
		case ActionRouted, ActionInPlace:
			if res.Record != nil && res.Record.RequiresEnrichment {
				items = append(items, enrichItem{record: res.Record})
			} else if res.Record != nil {
				p.cb.importFinished(res.Record.MD5, false)
			}
		case ActionDuplicate:
			if res.Record != nil {
				p.cb.importFinished(res.Record.MD5, true)
			}
		}
	}

	cancelled := func() bool {
		if ctx.Err() != nil {
			log.Warn().Msg("batch cancelled during routing")
			return true
		}
		return false
	}

	if mapping == nil {
		for _, cand := range candidates {
			if cancelled() {
				return items, hadConflicts
			}
			if claimed[cand.Path()] || !p.discs.IsAnchor(cand) {
				continue
			}
			p.cb.importStarted(cand.Path())
			claimed[cand.Path()] = true

			companions := p.discs.Claim(cand, candidates)
			for _, comp := range companions {
				claimed[comp.Path()] = true
			}

			res, _, err := p.discs.Resolve(ctx, cand, companions)
			if err != nil {
				log.Warn().Err(err).Str("path", cand.Path()).Msg("failed to route disc set")
				continue
			}
			collect(res)
		}
	}

	for _, cand := range candidates {
		if cancelled() {
			break
		}
		if claimed[cand.Path()] {
			continue
		}
		p.cb.importStarted(cand.Path())

		res, err := p.routeOne(ctx, cand, mapping)
		if err != nil {
			log.Warn().Err(err).Str("path", cand.Path()).Msg("failed to route file")
			continue
		}
		collect(res)
	}
	return items, hadConflicts
}

func (p *Pipeline) routeOne(ctx context.Context, cand *CandidateFile, mapping map[string]string) (RouteResult, error) {
	if mapping != nil {
		if systemID, ok := mapping[cand.Path()]; ok {
			return p.router.place(ctx, cand, systemID)
		}
		return RouteResult{Action: ActionSkipped}, nil
	}

	if systemdefs.IsArtwork(cand.Extension()) {
		return p.applyArtwork(ctx, cand)
	}

	return p.router.Route(ctx, cand)
}

// applyArtwork attaches a staged image to the game it names. The image
// filename carries the target's filename, e.g. "Mario.nes.png" targets
// "Mario.nes". Matched images are cached and the original deleted.
func (p *Pipeline) applyArtwork(ctx context.Context, cand *CandidateFile) (RouteResult, error) {
	target := strings.TrimSuffix(cand.Filename(), cand.Extension())
	recs := p.index.FindNameAnySystem(target)
	if len(recs) != 1 {
		log.Info().
			Str("file", cand.Filename()).
			Int("matches", len(recs)).
			Msg("artwork file does not match exactly one game")
		return RouteResult{Action: ActionSkipped}, nil
	}
	rec := recs[0]

	if p.art == nil {
		return RouteResult{Action: ActionSkipped}, nil
	}

	key, err := p.art.Import(cand.Path())
	if err != nil {
		return RouteResult{}, err
	}

	rec.ArtworkKey = key
	if err := p.lib.SaveGame(ctx, rec); err != nil {
		return RouteResult{}, err
	}
	p.index.Insert(rec)
	p.cb.artworkFinished(key)

	if err := os.Remove(cand.Path()); err != nil {
		log.Warn().Err(err).Str("path", cand.Path()).Msg("failed to remove applied artwork file")
	}

	log.Info().
		Str("game", rec.RelativePath).
		Str("key", key).
		Msg("applied custom artwork")
	return RouteResult{Action: ActionDuplicate, SystemID: rec.SystemID, Record: rec}, nil
}

// enrichAll runs enrichment with bounded concurrency. Relative paths are
// unique within a batch, so distinct items never target the same record.
func (p *Pipeline) enrichAll(ctx context.Context, items []enrichItem) {
	if len(items) == 0 {
		return
	}

	seen := make(map[string]bool, len(items))
	group := errgroup.Group{}
	group.SetLimit(p.cfg.EnrichmentWorkers())

	for _, item := range items {
		if seen[item.record.RelativePath] {
			continue
		}
		seen[item.record.RelativePath] = true

		rec := item.record
		group.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			changed, artworkURL, err := p.enricher.Enrich(ctx, rec)
			if err != nil {
				log.Warn().Err(err).Str("path", rec.RelativePath).Msg("failed to enrich record")
			}
			p.cb.importFinished(rec.MD5, changed)
			p.cb.artworkFinished(artworkURL)
			return nil
		})
	}
	_ = group.Wait()
}
