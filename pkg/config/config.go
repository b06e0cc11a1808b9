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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RomstackProject/romstack-core/pkg/helpers/syncutil"
	"github.com/adrg/xdg"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

const (
	SchemaVersion = 1
	CfgEnv        = "ROMSTACK_CFG"

	maxEnrichmentWorkers = 3
)

type Values struct {
	Library      Library  `toml:"library,omitempty"`
	Signatures   Sigs     `toml:"signatures,omitempty"`
	Artwork      Artwork  `toml:"artwork,omitempty"`
	Importer     Importer `toml:"importer,omitempty"`
	ConfigSchema int      `toml:"config_schema"`
	DebugLogging bool     `toml:"debug_logging"`
}

type Library struct {
	RootDir      string `toml:"root_dir,omitempty"`
	ImportsDir   string `toml:"imports_dir,omitempty"`
	ConflictsDir string `toml:"conflicts_dir,omitempty"`
	Database     string `toml:"database,omitempty"`
}

type Sigs struct {
	Database string `toml:"database,omitempty"`
}

type Artwork struct {
	CacheDir string `toml:"cache_dir,omitempty"`
	MaxWidth int    `toml:"max_width,omitempty"`
}

type Importer struct {
	EnrichmentWorkers int    `toml:"enrichment_workers,omitempty"`
	OverwriteMetadata *bool  `toml:"overwrite_metadata,omitempty"`
	WatchDebounce     string `toml:"watch_debounce,omitempty"`
}

// BaseDefaults returns the default configuration rooted in the user's XDG
// data directory.
func BaseDefaults() Values {
	dataDir := filepath.Join(xdg.DataHome, AppName)
	return Values{
		ConfigSchema: SchemaVersion,
		Library: Library{
			RootDir:      filepath.Join(dataDir, "library"),
			ImportsDir:   filepath.Join(dataDir, "library", ImportsDirName),
			ConflictsDir: filepath.Join(dataDir, "library", ConflictsDirName),
			Database:     filepath.Join(dataDir, LibraryDbFile),
		},
		Signatures: Sigs{
			Database: filepath.Join(dataDir, SignatureDbFile),
		},
		Artwork: Artwork{
			CacheDir: filepath.Join(dataDir, ArtworkDirName),
			MaxWidth: 400,
		},
		Importer: Importer{
			EnrichmentWorkers: maxEnrichmentWorkers,
			WatchDebounce:     "2s",
		},
	}
}

type Instance struct {
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

// NewConfig loads the config file from configDir, creating it with the
// given defaults if it does not exist. The ROMSTACK_CFG environment
// variable overrides the config directory.
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	if envDir := os.Getenv(CfgEnv); envDir != "" {
		configDir = envDir
	}

	cfg := &Instance{
		cfgPath:  filepath.Join(configDir, CfgFile),
		vals:     defaults,
		defaults: defaults,
	}

	err := cfg.Load()
	if errors.Is(err, os.ErrNotExist) {
		log.Info().Msg("no config file found, writing defaults")
		return cfg, cfg.Save()
	} else if err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultConfigDir returns the XDG config directory for the app.
func DefaultConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	vals := c.defaults
	if err := toml.Unmarshal(data, &vals); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	if vals.ConfigSchema != SchemaVersion {
		log.Warn().
			Int("schema", vals.ConfigSchema).
			Int("expected", SchemaVersion).
			Msg("config schema version mismatch")
	}

	c.vals = vals
	return nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	if err := os.MkdirAll(filepath.Dir(c.cfgPath), 0o750); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("error marshalling config: %w", err)
	}

	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

func (c *Instance) LibraryRoot() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Library.RootDir
}

func (c *Instance) ImportsDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Library.ImportsDir != "" {
		return c.vals.Library.ImportsDir
	}
	return filepath.Join(c.vals.Library.RootDir, ImportsDirName)
}

func (c *Instance) ConflictsDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Library.ConflictsDir != "" {
		return c.vals.Library.ConflictsDir
	}
	return filepath.Join(c.vals.Library.RootDir, ConflictsDirName)
}

func (c *Instance) LibraryDBPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Library.Database
}

func (c *Instance) SignatureDBPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Signatures.Database
}

func (c *Instance) ArtworkCacheDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Artwork.CacheDir
}

func (c *Instance) ArtworkMaxWidth() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Artwork.MaxWidth <= 0 {
		return 400
	}
	return c.vals.Artwork.MaxWidth
}

// EnrichmentWorkers returns the configured enrichment concurrency, clamped
// to the supported maximum of 3.
func (c *Instance) EnrichmentWorkers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := c.vals.Importer.EnrichmentWorkers
	if n <= 0 || n > maxEnrichmentWorkers {
		return maxEnrichmentWorkers
	}
	return n
}

// OverwriteMetadata reports whether enrichment replaces already-populated
// record fields. Defaults to true.
func (c *Instance) OverwriteMetadata() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Importer.OverwriteMetadata == nil {
		return true
	}
	return *c.vals.Importer.OverwriteMetadata
}

func (c *Instance) WatchDebounce() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, err := time.ParseDuration(c.vals.Importer.WatchDebounce)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
}
