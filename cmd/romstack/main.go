/*
Romstack Core
Copyright (C) 2026 The Romstack Project Contributors

This file is part of Romstack Core.

Romstack Core is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Romstack Core is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Romstack Core.  If not, see <http://www.gnu.org/licenses/>.
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/RomstackProject/romstack-core/pkg/artwork"
	"github.com/RomstackProject/romstack-core/pkg/config"
	"github.com/RomstackProject/romstack-core/pkg/database/librarydb"
	"github.com/RomstackProject/romstack-core/pkg/database/sigdb"
	"github.com/RomstackProject/romstack-core/pkg/helpers"
	"github.com/RomstackProject/romstack-core/pkg/importer"
	"github.com/RomstackProject/romstack-core/pkg/library"
	"github.com/RomstackProject/romstack-core/pkg/systemdefs"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	configDir := flag.String(
		"config",
		config.DefaultConfigDir(),
		"path to config directory",
	)
	importPaths := flag.String(
		"import",
		"",
		"comma-separated files or directories to import",
	)
	watchMode := flag.Bool(
		"watch",
		false,
		"watch the staging directory and import continuously",
	)
	resolve := flag.String(
		"resolve",
		"",
		"resolve quarantined files, as comma-separated path=systemID pairs",
	)
	ingestDAT := flag.String(
		"ingest-dat",
		"",
		"ingest signature DAT files, as comma-separated path=systemID pairs",
	)
	verbose := flag.Bool(
		"verbose",
		false,
		"enable debug logging",
	)
	showVersion := flag.Bool(
		"version",
		false,
		"print version and exit",
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("romstack v" + config.AppVersion)
		return nil
	}

	cfg, err := config.NewConfig(*configDir, config.BaseDefaults())
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if err := helpers.InitLogging(*configDir, config.LogFile, []io.Writer{os.Stderr}); err != nil {
		return fmt.Errorf("error initializing logging: %w", err)
	}
	if *verbose || cfg.DebugLogging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	sigs, err := sigdb.Open(cfg.SignatureDBPath())
	if err != nil {
		return fmt.Errorf("error opening signature database: %w", err)
	}
	defer func() {
		if closeErr := sigs.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close signature database")
		}
	}()

	lib, err := librarydb.Open(cfg.LibraryDBPath())
	if err != nil {
		return fmt.Errorf("error opening library database: %w", err)
	}
	defer func() {
		if closeErr := lib.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close library database")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	index := library.NewIndex()
	if err := index.Rebuild(ctx, lib); err != nil {
		return fmt.Errorf("error building library index: %w", err)
	}
	log.Info().Int("games", index.Len()).Msg("library index ready")

	fetcher := artwork.NewFetcher(
		&http.Client{Timeout: 30 * time.Second},
		artwork.NewCache(cfg.ArtworkCacheDir()),
		cfg.ArtworkMaxWidth(),
	)

	batches := make(chan struct{}, 1)
	pipeline := importer.NewPipeline(cfg, sigs, lib, index, fetcher, nil, importer.Callbacks{
		ImportStarted: func(path string) {
			log.Debug().Str("path", path).Msg("import started")
		},
		ImportFinished: func(md5 string, wasModified bool) {
			log.Debug().Str("md5", md5).Bool("modified", wasModified).Msg("import finished")
		},
		BatchComplete: func(hadConflicts bool) {
			if hadConflicts {
				log.Warn().Str("dir", cfg.ConflictsDir()).Msg("batch completed with conflicts")
			}
			select {
			case batches <- struct{}{}:
			default:
			}
		},
	})
	pipeline.Start(ctx)

	switch {
	case *ingestDAT != "":
		mapping, err := parseResolve(*ingestDAT)
		if err != nil {
			return err
		}
		fs := afero.NewOsFs()
		for path, systemID := range mapping {
			if _, lookupErr := systemdefs.LookupSystem(systemID); lookupErr != nil {
				return fmt.Errorf("error ingesting %s: %w", path, lookupErr)
			}
			n, ingestErr := sigs.IngestDAT(ctx, fs, path, systemID)
			if ingestErr != nil {
				return fmt.Errorf("error ingesting %s: %w", path, ingestErr)
			}
			fmt.Printf("%s: %d signatures\n", path, n)
		}
	case *resolve != "":
		mapping, err := parseResolve(*resolve)
		if err != nil {
			return err
		}
		pipeline.ResolveConflicts(mapping)
		awaitBatch(ctx, batches)
	case *importPaths != "":
		pipeline.StartImport(strings.Split(*importPaths, ","))
		awaitBatch(ctx, batches)
	case *watchMode:
		watcher := importer.NewWatcher(cfg.ImportsDir(), cfg.WatchDebounce(), nil, func() {
			pipeline.StartImport([]string{cfg.ImportsDir()})
		})
		if err := watcher.Run(ctx); err != nil {
			return fmt.Errorf("error watching staging directory: %w", err)
		}
	default:
		flag.Usage()
		return nil
	}

	stop()
	<-pipeline.Done()
	return nil
}

func parseResolve(arg string) (map[string]string, error) {
	mapping := make(map[string]string)
	for _, pair := range strings.Split(arg, ",") {
		path, systemID, ok := strings.Cut(pair, "=")
		if !ok || path == "" || systemID == "" {
			return nil, fmt.Errorf("invalid resolve pair: %q", pair)
		}
		mapping[path] = systemID
	}
	return mapping, nil
}

func awaitBatch(ctx context.Context, batches <-chan struct{}) {
	select {
	case <-ctx.Done():
	case <-batches:
	}
}
