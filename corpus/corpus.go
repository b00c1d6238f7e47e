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

// Package corpus provides the immutable byte buffer backing an index session.
//
// Plain corpus files are memory mapped read-only. Corpora compressed with
// dictzip (".dz") are decompressed into memory once. In both cases the buffer
// is never modified; a new session opens a new Buffer.
package corpus

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ianlewis/go-dictzip"

	"github.com/ianlewis/go-bibindex/internal/mmap"
)

var (
	// ErrClosed is returned when reading from a closed Buffer.
	ErrClosed = errors.New("corpus: buffer closed")

	// ErrChanged indicates the corpus file changed while it was being opened.
	ErrChanged = errors.New("corpus: file changed while opening")
)

// Identity fingerprints a corpus file. Two identities are equal only if the
// path, size and modification time all match.
type Identity struct {
	// Path is the absolute path of the corpus file.
	Path string

	// Size is the file size in bytes.
	Size int64

	// ModTime is the file modification time.
	ModTime time.Time
}

// Equal reports whether id and other describe the same file contents.
func (id Identity) Equal(other Identity) bool {
	return id.Path == other.Path &&
		id.Size == other.Size &&
		id.ModTime.Equal(other.ModTime)
}

func (id Identity) String() string {
	return fmt.Sprintf("%s (%d bytes, modified %s)", id.Path, id.Size, id.ModTime.UTC().Format(time.RFC3339Nano))
}

// Stat returns the current Identity of the file at path.
func Stat(path string) (Identity, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Identity{}, fmt.Errorf("resolving %q: %w", path, err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return Identity{}, fmt.Errorf("stat corpus: %w", err)
	}
	if fi.IsDir() {
		return Identity{}, fmt.Errorf("stat corpus: %q is a directory", abs)
	}
	return Identity{
		Path:    abs,
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
	}, nil
}

// IsDictzip reports whether path names a dictzip compressed corpus.
func IsDictzip(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".dz")
}

// Buffer is the full byte content of one corpus file.
type Buffer struct {
	data   []byte
	id     Identity
	closer io.Closer
	closed atomic.Bool
}

// Open opens the corpus at path.
func Open(path string) (*Buffer, error) {
	id, err := Stat(path)
	if err != nil {
		return nil, err
	}

	var b *Buffer
	if IsDictzip(id.Path) {
		b, err = openDictzip(id)
	} else {
		b, err = openMapped(id)
	}
	if err != nil {
		return nil, err
	}

	// Guard against the file being replaced between Stat and mapping.
	after, err := Stat(id.Path)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	if !after.Equal(id) {
		_ = b.Close()
		return nil, fmt.Errorf("%w: %s", ErrChanged, id.Path)
	}

	return b, nil
}

func openMapped(id Identity) (*Buffer, error) {
	m, err := mmap.Open(id.Path)
	if err != nil {
		return nil, err
	}
	return &Buffer{
		data:   m.Bytes(),
		id:     id,
		closer: m,
	}, nil
}

func openDictzip(id Identity) (*Buffer, error) {
	f, err := os.Open(id.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", id.Path, err)
	}
	defer f.Close()

	z, err := dictzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("reading dictzip header %q: %w", id.Path, err)
	}
	data, err := io.ReadAll(z)
	if err != nil {
		return nil, fmt.Errorf("decompressing %q: %w", id.Path, err)
	}

	return &Buffer{
		data: data,
		id:   id,
	}, nil
}

// New returns a Buffer over data that is already in memory. The caller must
// not modify data afterwards.
func New(data []byte, id Identity) *Buffer {
	if id.Size == 0 {
		id.Size = int64(len(data))
	}
	return &Buffer{
		data: data,
		id:   id,
	}
}

// Bytes returns the corpus bytes. The slice must not be modified and is only
// valid until Close.
func (b *Buffer) Bytes() []byte {
	if b.closed.Load() {
		return nil
	}
	return b.data
}

// Len returns the size of the corpus in bytes.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Identity returns the fingerprint of the file the buffer was read from.
func (b *Buffer) Identity() Identity {
	return b.id
}

// ReadAt implements [io.ReaderAt].
func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	if b.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("corpus: negative offset %d", off)
	}
	if off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close releases the buffer. Slices obtained from Bytes must no longer be
// used.
func (b *Buffer) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	if b.closer != nil {
		if err := b.closer.Close(); err != nil {
			return fmt.Errorf("closing corpus: %w", err)
		}
	}
	return nil
}
