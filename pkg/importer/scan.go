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
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charlievieth/fastwalk"
	"github.com/rs/zerolog/log"

	"github.com/RomstackProject/romstack-core/pkg/helpers/syncutil"
)

// ExpandPaths resolves a mixed list of files and directories into a flat
// list of files. A directory is expanded one level: its files join the
// batch, subdirectories are not descended. Unreadable entries are logged
// and skipped.
func ExpandPaths(ctx context.Context, paths []string) []string {
	var mu syncutil.Mutex
	var files []string

	walkOpts := fastwalk.Config{Follow: false}
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}

		root := path
		err := fastwalk.Walk(&walkOpts, root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				log.Warn().Err(err).Str("path", p).Msg("skipping unreadable entry")
				return nil
			}
			if d.IsDir() {
				if p != root {
					return fs.SkipDir
				}
				return nil
			}
			if isHidden(p) {
				return nil
			}
			mu.Lock()
			files = append(files, p)
			mu.Unlock()
			return nil
		})
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to walk path")
		}
	}

	sortAnchorsFirst(files)
	return files
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// sortAnchorsFirst orders files so disc set anchors process before their
// companions: playlists first, then cue sheets, then everything else,
// alphabetical within each group. Routing a cue sheet claims its bin
// tracks, so the anchor must be seen before any companion.
func sortAnchorsFirst(files []string) {
	rank := func(path string) int {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".m3u":
			return 0
		case ".cue":
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		ri, rj := rank(files[i]), rank(files[j])
		if ri != rj {
			return ri < rj
		}
		return files[i] < files[j]
	})
}
