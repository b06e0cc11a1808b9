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
	"testing"

	"github.com/RomstackProject/romstack-core/pkg/database"
	"github.com/RomstackProject/romstack-core/pkg/systemdefs"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDAT = `<?xml version="1.0"?>
<datafile>
	<header>
		<name>Nintendo - Nintendo Entertainment System</name>
		<version>20260101</version>
	</header>
	<game name="Mega Man (USA)">
		<rom name="Mega Man (USA).nes" size="131088" md5="2f79e136c21c3cb3f08373d1eab73b29"/>
	</game>
	<game name="Rockman (Japan)">
		<rom name="Rockman (Japan).nes" size="131088" md5="aaee53b30a3c389fa5e8ba575b22ec09"/>
	</game>
	<game name="No Checksum (Europe)">
		<rom name="No Checksum (Europe).nes" size="1024"/>
	</game>
</datafile>
`

func TestLoadDAT(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dats/nes.dat", []byte(sampleDAT), 0o600))

	rows, err := LoadDAT(fs, "/dats/nes.dat", systemdefs.SystemNES)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "2F79E136C21C3CB3F08373D1EAB73B29", rows[0].MD5)
	assert.Equal(t, "Mega Man (USA)", rows[0].Title)
	assert.Equal(t, "USA", rows[0].Region)
	assert.Equal(t, database.RegionIDUSA, rows[0].RegionID)

	assert.Equal(t, "Japan", rows[1].Region)
	assert.Zero(t, rows[1].RegionID)
}

func TestLoadDATErrors(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()

	_, err := LoadDAT(fs, "/missing.dat", systemdefs.SystemNES)
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/bad.dat", []byte("not xml at all <"), 0o600))
	_, err = LoadDAT(fs, "/bad.dat", systemdefs.SystemNES)
	assert.Error(t, err)

	empty := `<?xml version="1.0"?><datafile><header><name>empty</name></header></datafile>`
	require.NoError(t, afero.WriteFile(fs, "/empty.dat", []byte(empty), 0o600))
	_, err = LoadDAT(fs, "/empty.dat", systemdefs.SystemNES)
	assert.ErrorIs(t, err, ErrEmptyDAT)
}

func TestIngestDAT(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dats/nes.dat", []byte(sampleDAT), 0o600))

	db := newTestDB(t)
	ctx := context.Background()

	n, err := db.IngestDAT(ctx, fs, "/dats/nes.dat", systemdefs.SystemNES)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := db.LookupByChecksum(ctx, "2f79e136c21c3cb3f08373d1eab73b29", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, systemdefs.SystemNES, rows[0].SystemID)
}

func TestRegionFromName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "USA", regionFromName("Mega Man (USA)"))
	assert.Equal(t, "Japan, USA", regionFromName("Final Fantasy III (Japan, USA) (Rev 1)"))
	assert.Empty(t, regionFromName("Homebrew Title"))
	assert.Empty(t, regionFromName("Broken (USA"))
}
