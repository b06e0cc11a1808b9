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

package systemdefs

import (
	"fmt"
	"sort"
	"strings"
)

// The Systems list contains all the systems supported by the import
// pipeline. This is the reference list of hardcoded system IDs used
// throughout Romstack.
//
// The list also carries the heuristics which, given a file path, can be used
// to attempt to associate a file with a system: file extensions, known BIOS
// files and the per-system checksum header offset.

// A BIOSFile identifies a known BIOS image by filename and checksum.
type BIOSFile struct {
	Name string
	MD5  string
}

type System struct {
	ID      string
	Name    string
	Aliases []string
	// Extensions are lowercased and include the leading dot.
	Extensions []string
	BIOSFiles  []BIOSFile
	// HeaderOffset is the number of bytes skipped before hashing ROM
	// contents, per the system's dump convention (e.g. the 16-byte iNES
	// header).
	HeaderOffset int64
	// CDBased marks systems whose media arrives as cue/bin disc sets.
	CDBased bool
}

// Console system IDs.
const (
	SystemAtari2600      = "Atari2600"
	SystemAtariLynx      = "AtariLynx"
	SystemGameboy        = "Gameboy"
	SystemGameboyColor   = "GameboyColor"
	SystemGBA            = "GBA"
	SystemGenesis        = "Genesis"
	SystemMasterSystem   = "MasterSystem"
	SystemMegaCD         = "MegaCD"
	SystemNES            = "NES"
	SystemNintendo64     = "Nintendo64"
	SystemPSX            = "PSX"
	SystemSaturn         = "Saturn"
	SystemSNES           = "SNES"
	SystemTurboGrafx16   = "TurboGrafx16"
	SystemTurboGrafx16CD = "TurboGrafx16CD"
)

var Systems = map[string]System{
	SystemAtari2600: {
		ID:         SystemAtari2600,
		Name:       "Atari 2600",
		Aliases:    []string{"2600", "VCS"},
		Extensions: []string{".a26", ".bin"},
	},
	SystemAtariLynx: {
		ID:           SystemAtariLynx,
		Name:         "Atari Lynx",
		Aliases:      []string{"Lynx"},
		Extensions:   []string{".lnx"},
		HeaderOffset: 64,
	},
	SystemGameboy: {
		ID:         SystemGameboy,
		Name:       "Nintendo Game Boy",
		Aliases:    []string{"GB"},
		Extensions: []string{".gb"},
	},
	SystemGameboyColor: {
		ID:         SystemGameboyColor,
		Name:       "Nintendo Game Boy Color",
		Aliases:    []string{"GBC"},
		Extensions: []string{".gbc"},
	},
	SystemGBA: {
		ID:         SystemGBA,
		Name:       "Nintendo Game Boy Advance",
		Aliases:    []string{"GameboyAdvance"},
		Extensions: []string{".gba"},
	},
	SystemGenesis: {
		ID:         SystemGenesis,
		Name:       "Sega Genesis",
		Aliases:    []string{"MegaDrive"},
		Extensions: []string{".md", ".gen", ".smd", ".bin"},
	},
	SystemMasterSystem: {
		ID:         SystemMasterSystem,
		Name:       "Sega Master System",
		Aliases:    []string{"SMS"},
		Extensions: []string{".sms"},
	},
	SystemMegaCD: {
		ID:         SystemMegaCD,
		Name:       "Sega CD",
		Aliases:    []string{"SegaCD"},
		Extensions: []string{".cue", ".chd", ".m3u", ".bin", ".iso"},
		BIOSFiles: []BIOSFile{
			{Name: "bios_CD_U.bin", MD5: "2efd74e3232ff260e371b99f84024f7f"},
			{Name: "bios_CD_E.bin", MD5: "e66fa1dc5820d254611fdcdba0662372"},
			{Name: "bios_CD_J.bin", MD5: "278a9397d192149e84e820ac621a8edd"},
		},
		CDBased: true,
	},
	SystemNES: {
		ID:           SystemNES,
		Name:         "Nintendo Entertainment System",
		Aliases:      []string{"Famicom"},
		Extensions:   []string{".nes", ".fds"},
		HeaderOffset: 16,
	},
	SystemNintendo64: {
		ID:         SystemNintendo64,
		Name:       "Nintendo 64",
		Aliases:    []string{"N64"},
		Extensions: []string{".n64", ".z64", ".v64"},
	},
	SystemPSX: {
		ID:         SystemPSX,
		Name:       "Sony PlayStation",
		Aliases:    []string{"PlayStation", "PS1"},
		Extensions: []string{".cue", ".chd", ".m3u", ".bin", ".img", ".iso", ".pbp"},
		BIOSFiles: []BIOSFile{
			{Name: "scph5500.bin", MD5: "8dd7d5296a650fac7319bce665a6a53c"},
			{Name: "scph5501.bin", MD5: "490f666e1afb15b7362b406ed1cea246"},
			{Name: "scph5502.bin", MD5: "32736f17079d0b2b7024407c39bd3050"},
		},
		CDBased: true,
	},
	SystemSaturn: {
		ID:         SystemSaturn,
		Name:       "Sega Saturn",
		Extensions: []string{".cue", ".chd", ".m3u", ".bin", ".iso"},
		BIOSFiles: []BIOSFile{
			{Name: "saturn_bios.bin", MD5: "af5828fdff51384f99b3c4926be27762"},
		},
		CDBased: true,
	},
	SystemSNES: {
		ID:         SystemSNES,
		Name:       "Super Nintendo",
		Aliases:    []string{"SuperNES", "SuperFamicom"},
		Extensions: []string{".sfc", ".smc"},
	},
	SystemTurboGrafx16: {
		ID:         SystemTurboGrafx16,
		Name:       "NEC TurboGrafx-16",
		Aliases:    []string{"PCEngine"},
		Extensions: []string{".pce"},
	},
	SystemTurboGrafx16CD: {
		ID:         SystemTurboGrafx16CD,
		Name:       "NEC TurboGrafx-CD",
		Aliases:    []string{"PCEngineCD"},
		Extensions: []string{".cue", ".chd", ".m3u", ".bin", ".img"},
		BIOSFiles: []BIOSFile{
			{Name: "syscard3.pce", MD5: "38179df8f4ac870017db21ebcbf53114"},
		},
		CDBased: true,
	},
}

// Extensions that are never routed as ROMs.
var (
	ArchiveExtensions = []string{".zip", ".7z", ".rar", ".gz"}
	ArtworkExtensions = []string{".png", ".jpg", ".jpeg", ".gif"}
)

// GetSystem looks up an exact system definition by ID.
func GetSystem(id string) (*System, error) {
	if system, ok := Systems[id]; ok {
		return &system, nil
	}
	return nil, fmt.Errorf("unknown system: %s", id)
}

// LookupSystem case-insensitively looks up a system ID including aliases.
func LookupSystem(id string) (*System, error) {
	for k, v := range Systems {
		if strings.EqualFold(k, id) {
			return &v, nil
		}

		for _, alias := range v.Aliases {
			if strings.EqualFold(alias, id) {
				return &v, nil
			}
		}
	}

	return nil, fmt.Errorf("unknown system: %s", id)
}

// AllSystems returns every system definition sorted by ID.
func AllSystems() []System {
	keys := make([]string, 0, len(Systems))
	for k := range Systems {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	systems := make([]System, 0, len(Systems))
	for _, k := range keys {
		systems = append(systems, Systems[k])
	}
	return systems
}

// SystemsForExt returns all systems claiming a file extension, sorted by ID.
// The extension match is case-insensitive and tolerates a missing dot.
func SystemsForExt(ext string) []System {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	var matches []System
	for _, system := range AllSystems() {
		for _, e := range system.Extensions {
			if e == ext {
				matches = append(matches, system)
				break
			}
		}
	}
	return matches
}

// IsKnownExtension reports whether any system claims the extension.
func IsKnownExtension(ext string) bool {
	return len(SystemsForExt(ext)) > 0
}

// IsArchive reports whether the extension belongs to an archive format.
func IsArchive(ext string) bool {
	return containsFold(ArchiveExtensions, ext)
}

// IsArtwork reports whether the extension belongs to an image format.
func IsArtwork(ext string) bool {
	return containsFold(ArtworkExtensions, ext)
}

func containsFold(xs []string, s string) bool {
	for _, x := range xs {
		if strings.EqualFold(x, s) {
			return true
		}
	}
	return false
}

// LookupBIOS finds the system and BIOS definition matching a filename or an
// MD5 checksum. Filename matching is case-insensitive; checksum matching is
// case-insensitive hex. Returns false if the file is not a known BIOS.
func LookupBIOS(filename, md5 string) (*System, *BIOSFile, bool) {
	md5 = strings.ToLower(md5)
	for _, system := range AllSystems() {
		for i := range system.BIOSFiles {
			b := system.BIOSFiles[i]
			if strings.EqualFold(b.Name, filename) || (md5 != "" && strings.ToLower(b.MD5) == md5) {
				sys := system
				return &sys, &b, true
			}
		}
	}
	return nil, nil, false
}
