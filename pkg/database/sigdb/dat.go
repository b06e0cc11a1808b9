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

package sigdb

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/RomstackProject/romstack-core/pkg/database"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var ErrEmptyDAT = errors.New("DAT file contains no games")

// Logiqx datafile format, as published by No-Intro and Redump.
type datFile struct {
	XMLName xml.Name  `xml:"datafile"`
	Header  datHeader `xml:"header"`
	Games   []datGame `xml:"game"`
}

type datHeader struct {
	Name    string `xml:"name"`
	Version string `xml:"version"`
}

type datGame struct {
	Name string   `xml:"name,attr"`
	ROMs []datROM `xml:"rom"`
}

type datROM struct {
	Name string `xml:"name,attr"`
	MD5  string `xml:"md5,attr"`
	Size int64  `xml:"size,attr"`
}

// LoadDAT parses a Logiqx XML DAT file into signature rows for systemID.
// ROM entries without an MD5 are skipped.
func LoadDAT(fs afero.Fs, path, systemID string) ([]database.SignatureRow, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read DAT file: %w", err)
	}

	var dat datFile
	if err := xml.Unmarshal(data, &dat); err != nil {
		return nil, fmt.Errorf("failed to parse DAT file: %w", err)
	}
	if len(dat.Games) == 0 {
		return nil, ErrEmptyDAT
	}

	rows := make([]database.SignatureRow, 0, len(dat.Games))
	skipped := 0
	for _, game := range dat.Games {
		region := regionFromName(game.Name)
		for _, rom := range game.ROMs {
			if rom.MD5 == "" {
				skipped++
				continue
			}
			row := database.SignatureRow{
				MD5:      strings.ToUpper(rom.MD5),
				SystemID: systemID,
				Title:    game.Name,
				Region:   region,
			}
			if strings.Contains(region, "USA") {
				row.RegionID = database.RegionIDUSA
			}
			rows = append(rows, row)
		}
	}
	if skipped > 0 {
		log.Debug().
			Int("skipped", skipped).
			Str("dat", dat.Header.Name).
			Msg("DAT entries without MD5 skipped")
	}

	return rows, nil
}

// IngestDAT loads a DAT file and stores its signatures for systemID,
// returning the number of rows ingested.
func (db *SigDB) IngestDAT(ctx context.Context, fs afero.Fs, path, systemID string) (int, error) {
	rows, err := LoadDAT(fs, path, systemID)
	if err != nil {
		return 0, err
	}
	if err := db.Ingest(ctx, rows); err != nil {
		return 0, err
	}
	log.Info().
		Int("rows", len(rows)).
		Str("system", systemID).
		Str("path", path).
		Msg("ingested DAT file")
	return len(rows), nil
}

// regionFromName pulls the region tag out of a No-Intro style name, e.g.
// "Chrono Trigger (USA)" or "Final Fantasy III (Japan, USA) (Rev 1)".
func regionFromName(name string) string {
	start := strings.Index(name, "(")
	if start < 0 {
		return ""
	}
	end := strings.Index(name[start:], ")")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(name[start+1 : start+end])
}
