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

package bibindex

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"golang.org/x/text/encoding"

	"github.com/ianlewis/go-bibindex/corpus"
	"github.com/ianlewis/go-bibindex/internal/index"
	"github.com/ianlewis/go-bibindex/record"
)

// session is a loaded index together with the corpus buffer its keys refer
// to. Readers hold mu for reading while they use the session. Retiring a
// session takes mu for writing, which waits for those readers, before the
// buffer is released.
type session struct {
	buf    *corpus.Buffer
	set    *index.Set
	mat    *record.Materializer
	enc    encoding.Encoding
	result *Result

	mu     sync.RWMutex
	closed bool

	recordsOnce sync.Once
	records     *roaring64.Bitmap
}

func newSession(buf *corpus.Buffer, set *index.Set, enc encoding.Encoding, opts *Options, res *Result) *session {
	return &session{
		buf: buf,
		set: set,
		mat: record.NewMaterializer(buf.Bytes(), &record.Options{
			Extract:  opts.Extract,
			Encoding: enc,
		}),
		enc:    enc,
		result: res,
	}
}

// acquire returns true if the session may be read. The caller must call
// release afterwards.
func (s *session) acquire() bool {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return false
	}
	return true
}

func (s *session) release() {
	s.mu.RUnlock()
}

// close waits for readers and releases the corpus buffer.
func (s *session) close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.buf.Close()
}

// key converts a query to the character set of the index keys. Folded keys
// are UTF-8. Otherwise keys are raw corpus bytes. It returns false if the
// query cannot be represented in the corpus character set.
func (s *session) key(q string) ([]byte, bool) {
	if s.enc == nil || s.set.Folded() {
		return []byte(q), true
	}
	b, err := s.enc.NewEncoder().Bytes([]byte(q))
	if err != nil {
		return nil, false
	}
	return b, true
}

// lookup returns the positions of records whose key of the given kind
// matches q.
func (s *session) lookup(kind index.Kind, q string) ([]uint64, error) {
	key, ok := s.key(q)
	if !ok {
		return nil, nil
	}
	return s.set.Lookup(kind, key)
}

// isRecord reports whether pos is the position of an indexed record.
func (s *session) isRecord(pos uint64) bool {
	s.recordsOnce.Do(func() {
		rb := roaring64.New()
		for _, idx := range []*index.Index{s.set.Author, s.set.Title} {
			for _, e := range idx.Entries() {
				rb.Add(e.Pos)
			}
		}
		rb.RunOptimize()
		s.records = rb
	})
	return s.records.Contains(pos)
}
