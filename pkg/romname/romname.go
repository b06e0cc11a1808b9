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

// Package romname normalizes ROM filenames following No-Intro/TOSEC
// conventions. The stripped "alternate name" is the loose-matching key used
// to associate multi-disc releases, artwork and companion files with the
// same game.
package romname

import (
	"regexp"
	"strconv"
	"strings"
)

// Package-level compiled regexes for filename parsing.
var (
	reDisc       = regexp.MustCompile(`(?i)[\(\[](?:Disc|Disk|CD)\s*(\d+)(?:\s+of\s+(\d+))?[\)\]]`)
	reTrack      = regexp.MustCompile(`(?i)\(Track\s*\d+\)`)
	reMultiSpace = regexp.MustCompile(`\s+`)
)

// Strip returns a filename's alternate name: extension removed and all
// bracketed decoration markers (region, revision, disc number, dump info)
// stripped, with whitespace normalized.
//
// Examples:
//
//	"Final Fantasy VII (USA) (Disc 1).cue" → "Final Fantasy VII"
//	"Super_Mario_Bros (USA) [!].nes"       → "Super_Mario_Bros"
func Strip(filename string) string {
	name := trimExt(filename)
	name = removeBracketed(name)
	name = reMultiSpace.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// SearchKey derives a loose database search key from a filename: the
// alternate name with trailing non-alphanumeric decoration trimmed.
func SearchKey(filename string) string {
	key := Strip(filename)
	key = strings.TrimRightFunc(key, func(r rune) bool {
		return !isAlphanumeric(r)
	})
	return strings.TrimSpace(key)
}

// DiscMarker extracts a disc number marker from a filename. The total is 0
// when the marker has no "of N" part.
func DiscMarker(filename string) (num, total int, ok bool) {
	m := reDisc.FindStringSubmatch(filename)
	if m == nil {
		return 0, 0, false
	}
	num, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		total, _ = strconv.Atoi(m[2])
	}
	return num, total, true
}

func trimExt(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i <= 0 {
		return filename
	}
	return filename[:i]
}

// removeBracketed removes all content enclosed in (), [], {} or <> using a
// manual state machine. Track markers handled by regex first so partially
// overlapping patterns cannot leave fragments behind.
func removeBracketed(name string) string {
	name = reTrack.ReplaceAllString(name, "")

	const (
		stateOutside = iota
		stateInParen
		stateInBracket
		stateInBrace
		stateInAngle
	)

	var b strings.Builder
	state := stateOutside

	for i := range len(name) {
		char := name[i]

		switch state {
		case stateOutside:
			switch char {
			case '(':
				state = stateInParen
			case '[':
				state = stateInBracket
			case '{':
				state = stateInBrace
			case '<':
				state = stateInAngle
			default:
				b.WriteByte(char)
			}
		case stateInParen:
			if char == ')' {
				state = stateOutside
			}
		case stateInBracket:
			if char == ']' {
				state = stateOutside
			}
		case stateInBrace:
			if char == '}' {
				state = stateOutside
			}
		case stateInAngle:
			if char == '>' {
				state = stateOutside
			}
		}
	}

	return b.String()
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r > 127
}
