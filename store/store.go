// Copyright 2026 Ian Lewis
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ianlewis/go-bibindex/corpus"
)

var (
	// ErrNotFound indicates that no index file exists for a corpus.
	ErrNotFound = errors.New("index not found")

	// ErrStaleIndex indicates that the stored index was built from a corpus
	// that no longer matches the file on disk.
	ErrStaleIndex = errors.New("stale index")

	// ErrCorruptIndex indicates an unreadable index file.
	ErrCorruptIndex = errors.New("corrupt index")
)

// ext is the file extension of index files.
const ext = ".bibidx"

// Options are options for a Store.
type Options struct {
	// Compression is the payload compression used by Save.
	Compression Compression
}

// DefaultOptions is the default options for a Store.
var DefaultOptions = Options{
	Compression: CompressionZstd,
}

// Store is a directory of index files.
type Store struct {
	dir  string
	opts Options
}

// New returns a Store rooted at dir, creating the directory if needed.
func New(dir string, opts *Options) (*Store, error) {
	if opts == nil {
		opts = &DefaultOptions
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	return &Store{
		dir:  dir,
		opts: *opts,
	}, nil
}

// Dir returns the directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the index file path for the corpus at corpusPath. The name is
// derived from the absolute corpus path.
func (s *Store) Path(corpusPath string) (string, error) {
	abs, err := filepath.Abs(corpusPath)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", corpusPath, err)
	}
	sum := sha256.Sum256([]byte(abs))
	name := filepath.Base(abs) + "." + hex.EncodeToString(sum[:8]) + ext
	return filepath.Join(s.dir, name), nil
}

// Exists reports whether an index file exists for the corpus. It does not
// check whether the index is stale.
func (s *Store) Exists(corpusPath string) bool {
	path, err := s.Path(corpusPath)
	if err != nil {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// Save writes snap to the index file of the corpus it was built from. An
// existing index file is replaced atomically.
func (s *Store) Save(snap *Snapshot) (err error) {
	path, err := s.Path(snap.Identity.Path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating index file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	w := bufio.NewWriterSize(tmp, 256*1024)
	if err := encode(w, snap, s.opts.Compression); err != nil {
		return fmt.Errorf("writing index file: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing index file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing index file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming index file: %w", err)
	}

	// Make the rename durable. Not all platforms support syncing a directory.
	if d, err := os.Open(s.dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// Load reads the index of the corpus at corpusPath. It returns ErrNotFound if
// there is no index file, ErrStaleIndex if the corpus is missing or has
// changed since the index was built, and ErrCorruptIndex if the file cannot
// be decoded.
func (s *Store) Load(corpusPath string) (*Snapshot, error) {
	path, err := s.Path(corpusPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, corpusPath)
		}
		return nil, fmt.Errorf("reading index file: %w", err)
	}

	h, err := decodeHeader(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptIndex, path, err)
	}

	live, err := corpus.Stat(corpusPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStaleIndex, err)
	}
	if !live.Equal(h.identity) {
		return nil, fmt.Errorf("%w: built from %v, corpus is %v", ErrStaleIndex, h.identity, live)
	}

	raw, err := h.decompress()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptIndex, path, err)
	}
	snap, err := decodePayload(raw, h)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptIndex, path, err)
	}
	return snap, nil
}

// Remove removes the index file of the corpus at corpusPath. Removing a
// missing index is not an error.
func (s *Store) Remove(corpusPath string) error {
	path, err := s.Path(corpusPath)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing index file: %w", err)
	}
	return nil
}

// Clear removes every index file in the store along with leftover temporary
// files.
func (s *Store) Clear() error {
	var errs []error
	for _, pattern := range []string{"*" + ext, "*" + ext + ".tmp-*"} {
		matches, err := filepath.Glob(filepath.Join(s.dir, pattern))
		if err != nil {
			return fmt.Errorf("listing index files: %w", err)
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("clearing index files: %w", err)
	}
	return nil
}
