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

// Package artwork downloads, scales and caches cover art. Cache entries
// are keyed by the MD5 of their source URL (or source file path for local
// artwork), so re-enriching the same record never refetches.
package artwork

import (
	"context"
	"crypto/md5" //nolint:gosec // cache key, not a security boundary
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/png"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

var ErrBadStatus = errors.New("unexpected response status")

const cacheFileExt = ".jpg"

type Cache struct {
	dir string
}

func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// Key returns the cache key for a source URL or file path.
func (c *Cache) Key(source string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(source))) //nolint:gosec
}

// Path returns the on-disk location for a cache key.
func (c *Cache) Path(key string) string {
	return filepath.Join(c.dir, key+cacheFileExt)
}

// Has reports whether a cache entry exists for the key.
func (c *Cache) Has(key string) bool {
	_, err := os.Stat(c.Path(key))
	return err == nil
}

// put scales the image down to maxWidth (preserving aspect) and writes it
// to the cache as jpeg. The entry only becomes visible once fully written.
func (c *Cache) put(key string, img image.Image, maxWidth int) error {
	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create artwork cache directory: %w", err)
	}

	img = scaleDown(img, maxWidth)

	tmp, err := os.CreateTemp(c.dir, ".artwork-*")
	if err != nil {
		return fmt.Errorf("failed to create artwork temp file: %w", err)
	}

	err = jpeg.Encode(tmp, img, &jpeg.Options{Quality: 85})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to encode artwork: %w", err)
	}

	if err := os.Rename(tmp.Name(), c.Path(key)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to move artwork into cache: %w", err)
	}
	return nil
}

func scaleDown(img image.Image, maxWidth int) image.Image {
	bounds := img.Bounds()
	if maxWidth <= 0 || bounds.Dx() <= maxWidth {
		return img
	}

	height := bounds.Dy() * maxWidth / bounds.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// Fetcher retrieves remote artwork into the cache. The HTTP client is
// supplied by the caller and owns timeout policy.
type Fetcher struct {
	client   *http.Client
	cache    *Cache
	maxWidth int
}

func NewFetcher(client *http.Client, cache *Cache, maxWidth int) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client, cache: cache, maxWidth: maxWidth}
}

// Fetch downloads, scales and caches the artwork at url, returning the
// cache key. A cache hit skips the network entirely.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", errors.New("empty artwork URL")
	}

	key := f.cache.Key(url)
	if f.cache.Has(key) {
		log.Debug().Str("url", url).Str("key", key).Msg("artwork cache hit")
		return key, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build artwork request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch artwork: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close artwork response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to decode artwork: %w", err)
	}

	if err := f.cache.put(key, img, f.maxWidth); err != nil {
		return "", err
	}
	return key, nil
}

// Import scales and caches a local image file, returning the cache key.
// Used for user-supplied artwork dropped into the staging directory.
func (f *Fetcher) Import(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open artwork file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close artwork file")
		}
	}()

	img, _, err := image.Decode(file)
	if err != nil {
		return "", fmt.Errorf("failed to decode artwork file: %w", err)
	}

	key := f.cache.Key(contentAddr(file, path))
	if err := f.cache.put(key, img, f.maxWidth); err != nil {
		return "", err
	}
	return key, nil
}

// contentAddr derives a stable cache-key source for a local file: the MD5
// of its contents when re-readable, otherwise its path.
func contentAddr(file *os.File, path string) string {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return path
	}
	h := md5.New() //nolint:gosec
	if _, err := io.Copy(h, file); err != nil {
		return path
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
