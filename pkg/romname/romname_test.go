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

package romname

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{
			name:     "plain filename",
			filename: "Zelda.nes",
			want:     "Zelda",
		},
		{
			name:     "region and disc markers",
			filename: "Final Fantasy VII (USA) (Disc 1).cue",
			want:     "Final Fantasy VII",
		},
		{
			name:     "dump info brackets",
			filename: "Super_Mario_Bros (USA) [!].nes",
			want:     "Super_Mario_Bros",
		},
		{
			name:     "track marker",
			filename: "Game (Track 12).bin",
			want:     "Game",
		},
		{
			name:     "disc of total",
			filename: "Game (Disc 2 of 3).cue",
			want:     "Game",
		},
		{
			name:     "no extension",
			filename: "SomeGame (Europe)",
			want:     "SomeGame",
		},
		{
			name:     "nested decorations collapse whitespace",
			filename: "Game  (USA)  [T+Eng] {beta}.gba",
			want:     "Game",
		},
		{
			name:     "dotfile keeps name",
			filename: ".hidden",
			want:     ".hidden",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Strip(tt.filename))
		})
	}
}

func TestSearchKeyTrimsTrailingDecoration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Chrono Trigger", SearchKey("Chrono Trigger (USA).sfc"))
	assert.Equal(t, "Mega Man X", SearchKey("Mega Man X - .snes"))
	assert.Equal(t, "", SearchKey("(USA).nes"))
}

func TestDiscMarker(t *testing.T) {
	t.Parallel()

	num, total, ok := DiscMarker("Game (Disc 2 of 3).cue")
	assert.True(t, ok)
	assert.Equal(t, 2, num)
	assert.Equal(t, 3, total)

	num, total, ok = DiscMarker("Game [CD1].cue")
	assert.True(t, ok)
	assert.Equal(t, 1, num)
	assert.Equal(t, 0, total)

	_, _, ok = DiscMarker("Game.cue")
	assert.False(t, ok)
}
