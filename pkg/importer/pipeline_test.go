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
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RomstackProject/romstack-core/pkg/artwork"
	"github.com/RomstackProject/romstack-core/pkg/database"
	"github.com/RomstackProject/romstack-core/pkg/helpers/syncutil"
	"github.com/RomstackProject/romstack-core/pkg/systemdefs"
	testhelpers "github.com/RomstackProject/romstack-core/pkg/testing/helpers"
)

// batchRecorder collects callback invocations for assertions.
type batchRecorder struct {
	mu        syncutil.Mutex
	started   []string
	finished  int
	artwork   []string
	conflicts []bool
	done      chan bool
}

func newBatchRecorder() *batchRecorder {
	return &batchRecorder{done: make(chan bool, 8)}
}

func (r *batchRecorder) callbacks() Callbacks {
	return Callbacks{
		ImportStarted: func(path string) {
			r.mu.Lock()
			r.started = append(r.started, path)
			r.mu.Unlock()
		},
		ImportFinished: func(_ string, _ bool) {
			r.mu.Lock()
			r.finished++
			r.mu.Unlock()
		},
		ArtworkFinished: func(url string) {
			r.mu.Lock()
			r.artwork = append(r.artwork, url)
			r.mu.Unlock()
		},
		BatchComplete: func(hadConflicts bool) {
			r.mu.Lock()
			r.conflicts = append(r.conflicts, hadConflicts)
			r.mu.Unlock()
			r.done <- hadConflicts
		},
	}
}

func (r *batchRecorder) wait(t *testing.T) bool {
	t.Helper()
	select {
	case hadConflicts := <-r.done:
		return hadConflicts
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for batch completion")
		return false
	}
}

type pipelineFixture struct {
	*routerFixture
	rec      *batchRecorder
	pipeline *Pipeline
	cancel   context.CancelFunc
}

func newPipelineFixture(t *testing.T, rows ...database.SignatureRow) *pipelineFixture {
	t.Helper()

	f := newRouterFixture(t, rows...)
	rec := newBatchRecorder()
	fetcher := artwork.NewFetcher(
		&http.Client{Timeout: time.Second},
		artwork.NewCache(f.cfg.ArtworkCacheDir()),
		f.cfg.ArtworkMaxWidth(),
	)
	pipeline := NewPipeline(f.cfg, f.sigs, f.lib, f.index, fetcher, nil, rec.callbacks())

	ctx, cancel := context.WithCancel(context.Background())
	pipeline.Start(ctx)
	t.Cleanup(func() {
		cancel()
		<-pipeline.Done()
	})
	return &pipelineFixture{routerFixture: f, rec: rec, pipeline: pipeline, cancel: cancel}
}

func TestPipelineImportsSingleROM(t *testing.T) {
	t.Parallel()

	p := newPipelineFixture(t)
	testhelpers.WriteFile(t, filepath.Join(p.cfg.ImportsDir(), "Zelda.nes"), []byte("0123456789abcdefROMDATA"))

	id := p.pipeline.StartImport([]string{p.cfg.ImportsDir()})
	assert.NotEmpty(t, id)

	hadConflicts := p.rec.wait(t)
	assert.False(t, hadConflicts)
	assert.FileExists(t, filepath.Join(p.cfg.LibraryRoot(), "NES", "Zelda.nes"))

	saved, err := p.lib.GetGame(context.Background(), "NES/Zelda.nes")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.False(t, saved.RequiresEnrichment, "enrichment ran and cleared the flag")
	assert.Equal(t, 1, p.rec.finished)

	// Enrichment found no artwork; the hook still reports the outcome.
	assert.Equal(t, []string{""}, p.rec.artwork)
}

func TestPipelineReportsConflicts(t *testing.T) {
	t.Parallel()

	p := newPipelineFixture(t)
	testhelpers.WriteFile(t, filepath.Join(p.cfg.ImportsDir(), "Ambig.bin"), []byte("mystery rom"))

	p.pipeline.StartImport([]string{p.cfg.ImportsDir()})
	hadConflicts := p.rec.wait(t)

	assert.True(t, hadConflicts)
	assert.FileExists(t, filepath.Join(p.cfg.ConflictsDir(), "Ambig.bin"))
}

func TestPipelineIdempotentRerun(t *testing.T) {
	t.Parallel()

	p := newPipelineFixture(t)
	testhelpers.WriteFile(t, filepath.Join(p.cfg.ImportsDir(), "Zelda.nes"), []byte("0123456789abcdefROMDATA"))

	p.pipeline.StartImport([]string{p.cfg.ImportsDir()})
	p.rec.wait(t)
	require.Equal(t, 1, p.index.Len())

	// Re-import the routed library: already-placed files are no-ops.
	p.pipeline.StartImport([]string{filepath.Join(p.cfg.LibraryRoot(), "NES")})
	hadConflicts := p.rec.wait(t)

	assert.False(t, hadConflicts)
	assert.Equal(t, 1, p.index.Len(), "second run must not create duplicate records")
	assert.FileExists(t, filepath.Join(p.cfg.LibraryRoot(), "NES", "Zelda.nes"))
}

func TestPipelineDiscSetBeforePlaylist(t *testing.T) {
	t.Parallel()

	trackContent := []byte("track one data")
	p := newPipelineFixture(t, database.SignatureRow{
		MD5:      md5hex(trackContent),
		SystemID: systemdefs.SystemPSX,
		Title:    "Game",
	})

	staging := p.cfg.ImportsDir()
	testhelpers.WriteFile(t, filepath.Join(staging, "Game.cue"), []byte(`FILE "Game (Track 1).bin" BINARY`))
	testhelpers.WriteFile(t, filepath.Join(staging, "Game (Track 1).bin"), trackContent)
	testhelpers.WriteFile(t, filepath.Join(staging, "Game.m3u"), []byte("Game.cue\n"))

	p.pipeline.StartImport([]string{staging})
	hadConflicts := p.rec.wait(t)

	assert.False(t, hadConflicts, "the playlist must be claimed by the disc set, not quarantined")
	destDir := filepath.Join(p.cfg.LibraryRoot(), "PSX")
	assert.FileExists(t, filepath.Join(destDir, "Game.cue"))
	assert.FileExists(t, filepath.Join(destDir, "Game (Track 1).bin"))
	assert.FileExists(t, filepath.Join(destDir, "Game.m3u"))

	saved, err := p.lib.GetGame(context.Background(), "PSX/Game.cue")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Contains(t, saved.RelatedFiles, "PSX/Game.m3u")
}

func TestPipelineExpandsZipArchives(t *testing.T) {
	t.Parallel()

	p := newPipelineFixture(t)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entry, err := zw.Create("Zelda.nes")
	require.NoError(t, err)
	_, err = entry.Write([]byte("0123456789abcdefROMDATA"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	archivePath := filepath.Join(p.cfg.ImportsDir(), "roms.zip")
	testhelpers.WriteFile(t, archivePath, buf.Bytes())

	p.pipeline.StartImport([]string{p.cfg.ImportsDir()})
	p.rec.wait(t)

	assert.FileExists(t, filepath.Join(p.cfg.LibraryRoot(), "NES", "Zelda.nes"))
	assert.NoFileExists(t, archivePath, "archive is removed after extraction")
}

func TestPipelineResolveConflicts(t *testing.T) {
	t.Parallel()

	p := newPipelineFixture(t)
	testhelpers.WriteFile(t, filepath.Join(p.cfg.ImportsDir(), "Ambig.bin"), []byte("mystery rom"))

	p.pipeline.StartImport([]string{p.cfg.ImportsDir()})
	require.True(t, p.rec.wait(t))

	quarantined := filepath.Join(p.cfg.ConflictsDir(), "Ambig.bin")
	require.FileExists(t, quarantined)

	p.pipeline.ResolveConflicts(map[string]string{quarantined: systemdefs.SystemGenesis})
	hadConflicts := p.rec.wait(t)

	assert.False(t, hadConflicts)
	assert.FileExists(t, filepath.Join(p.cfg.LibraryRoot(), "Genesis", "Ambig.bin"))
	assert.NoFileExists(t, quarantined)

	saved, err := p.lib.GetGame(context.Background(), "Genesis/Ambig.bin")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, systemdefs.SystemGenesis, saved.SystemID)
}

func TestPipelineAppliesArtwork(t *testing.T) {
	t.Parallel()

	p := newPipelineFixture(t)
	ctx := context.Background()

	existing := &database.GameRecord{
		RelativePath: "NES/Mario.nes",
		SystemID:     systemdefs.SystemNES,
		Title:        "Mario",
		AddedAt:      time.Now(),
	}
	require.NoError(t, p.lib.SaveGame(ctx, existing))
	p.index.Insert(existing)

	artworkPath := filepath.Join(p.cfg.ImportsDir(), "Mario.nes.png")
	testhelpers.WriteFile(t, artworkPath, testPNG(t))

	p.pipeline.StartImport([]string{p.cfg.ImportsDir()})
	p.rec.wait(t)

	assert.NoFileExists(t, artworkPath, "applied artwork file is deleted")
	saved, err := p.lib.GetGame(ctx, "NES/Mario.nes")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.NotEmpty(t, saved.ArtworkKey)

	cache := artwork.NewCache(p.cfg.ArtworkCacheDir())
	assert.FileExists(t, cache.Path(saved.ArtworkKey))

	assert.Equal(t, []string{saved.ArtworkKey}, p.rec.artwork)
}

func TestSortAnchorsFirst(t *testing.T) {
	t.Parallel()

	files := []string{
		"/in/Game (Track 1).bin",
		"/in/zz.m3u",
		"/in/Game.cue",
		"/in/Another.nes",
		"/in/aa.m3u",
	}
	sortAnchorsFirst(files)

	assert.Equal(t, []string{
		"/in/aa.m3u",
		"/in/zz.m3u",
		"/in/Game.cue",
		"/in/Another.nes",
		"/in/Game (Track 1).bin",
	}, files)

	// Stable and deterministic on repeat.
	shuffled := append([]string(nil), files...)
	sort.Strings(shuffled)
	sortAnchorsFirst(shuffled)
	assert.Equal(t, files, shuffled)
}

func TestExpandPathsSkipsHiddenFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testhelpers.WriteFile(t, filepath.Join(dir, "Game.nes"), []byte("rom"))
	testhelpers.WriteFile(t, filepath.Join(dir, ".DS_Store"), []byte("junk"))

	files := ExpandPaths(context.Background(), []string{dir})
	require.Len(t, files, 1)
	assert.Equal(t, "Game.nes", filepath.Base(files[0]))
}

func TestExpandPathsOneLevelOnly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testhelpers.WriteFile(t, filepath.Join(dir, "Top.nes"), []byte("rom"))
	testhelpers.WriteFile(t, filepath.Join(dir, "sub", "deep", "Nested.gba"), []byte("rom"))

	// A submitted directory contributes its own files only; nothing
	// below the first level enters the batch.
	files := ExpandPaths(context.Background(), []string{dir})
	require.Len(t, files, 1)
	assert.Equal(t, "Top.nes", filepath.Base(files[0]))

	// Submitting the subdirectory itself still reaches its files.
	files = ExpandPaths(context.Background(), []string{filepath.Join(dir, "sub", "deep")})
	require.Len(t, files, 1)
	assert.Equal(t, "Nested.gba", filepath.Base(files[0]))
}

func TestExpandPathsAcceptsFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "Game.nes")
	testhelpers.WriteFile(t, path, []byte("rom"))

	files := ExpandPaths(context.Background(), []string{path})
	require.Len(t, files, 1)
	assert.Equal(t, path, files[0])
}

func TestZipDecompressorRejectsOtherFormats(t *testing.T) {
	t.Parallel()

	_, err := ZipDecompressor{}.Extract("/staging/file.7z")
	assert.ErrorIs(t, err, ErrUnknownCompression)
}

// testPNG encodes a small valid PNG image.
func testPNG(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
