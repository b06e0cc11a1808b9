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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherDebouncesEvents(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "staging")
	clock := clockwork.NewFakeClock()
	triggered := make(chan struct{}, 8)

	watcher := NewWatcher(dir, 2*time.Second, clock, func() {
		triggered <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	// Run creates the staging directory before watching it.
	require.Eventually(t, func() bool {
		_, err := os.Stat(dir)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.nes"), []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.nes"), []byte("b"), 0o600))

	// Wait for the debounce timer to arm, then let the remaining events
	// drain so resets land before the clock advances.
	clock.BlockUntil(1)
	time.Sleep(100 * time.Millisecond)
	clock.Advance(2 * time.Second)

	select {
	case <-triggered:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never triggered")
	}

	// A burst of events produces a single trigger.
	select {
	case <-triggered:
		t.Fatal("watcher triggered more than once")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatcherRetriggersAfterQuiet(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "staging")
	clock := clockwork.NewFakeClock()
	triggered := make(chan struct{}, 8)

	watcher := NewWatcher(dir, time.Second, clock, func() {
		triggered <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(dir)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "first.nes"), []byte("1"), 0o600))
	clock.BlockUntil(1)
	time.Sleep(100 * time.Millisecond)
	clock.Advance(time.Second)
	select {
	case <-triggered:
	case <-time.After(5 * time.Second):
		t.Fatal("first batch never triggered")
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "second.nes"), []byte("2"), 0o600))
	clock.BlockUntil(1)
	time.Sleep(100 * time.Millisecond)
	clock.Advance(time.Second)
	select {
	case <-triggered:
	case <-time.After(5 * time.Second):
		t.Fatal("second batch never triggered")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatcherNilClockDefaultsToRealClock(t *testing.T) {
	t.Parallel()

	watcher := NewWatcher(t.TempDir(), time.Second, nil, func() {})
	assert.NotNil(t, watcher.clock)
}
