// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/flock"
	"github.com/google/renameio/v2"

	"github.com/tomtom215/crosswatch/internal/logging"
)

// cacheDir is the subdirectory for per-provider and per-pair caches.
const cacheDir = ".cw_state"

// ErrLocked is returned by Open when another process holds the state lock.
var ErrLocked = errors.New("state directory is locked by another process")

// Store owns all persisted engine state under a base path. Every file is a
// small JSON blob written atomically (temp file + fsync + rename); reads
// tolerate missing files by returning typed zero values. The store is
// single-writer: Open takes a file lock on the cache directory and Close
// releases it.
type Store struct {
	base string
	lock *flock.Flock
	now  func() time.Time
}

// Open creates the state directories and acquires the single-writer lock.
func Open(base string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(base, cacheDir), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	lock := flock.New(filepath.Join(base, cacheDir, "lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire state lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return &Store{base: base, lock: lock, now: time.Now}, nil
}

// Close releases the single-writer lock.
func (s *Store) Close() error {
	if s.lock == nil {
		return nil
	}
	return s.lock.Unlock()
}

// Base returns the state base path.
func (s *Store) Base() string { return s.base }

// SetClock overrides the store clock. Tests use it to pin TTL arithmetic.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Now returns the store's current epoch seconds.
func (s *Store) Now() int64 { return s.now().Unix() }

// path resolves a top-level state file.
func (s *Store) path(name string) string { return filepath.Join(s.base, name) }

// cachePath resolves a file inside the .cw_state cache directory.
func (s *Store) cachePath(name string) string {
	return filepath.Join(s.base, cacheDir, name)
}

// readJSON loads a JSON file into out. A missing file leaves out untouched
// and returns false; corrupt files are logged and treated as missing so one
// bad blob never wedges the cycle.
func readJSON(path string, out any) bool {
	buf, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Err(err).Str("path", path).Msg("read state file")
		}
		return false
	}
	if err := json.Unmarshal(buf, out); err != nil {
		logging.Err(err).Str("path", path).Msg("decode state file")
		return false
	}
	return true
}

// writeJSON atomically replaces path with the two-space-indented JSON
// encoding of v. renameio guarantees readers never observe a torn file.
func writeJSON(path string, v any) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending file for %s: %w", filepath.Base(path), err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logging.Debug().Err(err).Str("path", path).Msg("cleanup pending state file")
		}
	}()
	if _, err := pending.Write(append(buf, '\n')); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// providerFeature renders the "{provider}_{feature}" filename stem.
func providerFeature(provider, feature string) string {
	return strings.ToUpper(provider) + "_" + feature
}
