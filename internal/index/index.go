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

// Package index implements sorted span indexes over a corpus.
//
// Keys are not copied out of the corpus. An index entry holds a Span, a pair
// of offsets into a Text, and the position of the record the key belongs to.
// Text is the corpus bytes followed by an arena of keys that do not appear
// verbatim in the corpus, such as field values with inline markup removed.
package index

import (
	"bytes"
	"sort"
)

// Span is a half-open byte range [Start, End) into a Text.
type Span struct {
	Start uint64
	End   uint64
}

// Len returns the length of the span in bytes.
func (s Span) Len() uint64 {
	return s.End - s.Start
}

// Text is the address space index keys refer to.
type Text struct {
	corpus []byte
	arena  []byte
}

// NewText returns a Text over the corpus bytes and the key arena. Neither
// slice is copied.
func NewText(corpus, arena []byte) *Text {
	return &Text{
		corpus: corpus,
		arena:  arena,
	}
}

// Bytes returns the bytes referenced by s. The result aliases the corpus or
// the arena and must not be modified.
func (t *Text) Bytes(s Span) []byte {
	n := uint64(len(t.corpus))
	if s.Start >= n {
		return t.arena[s.Start-n : s.End-n]
	}
	return t.corpus[s.Start:s.End]
}

// Valid reports whether s lies entirely within either the corpus or the
// arena.
func (t *Text) Valid(s Span) bool {
	return ValidSpan(uint64(len(t.corpus)), uint64(len(t.arena)), s)
}

// ValidSpan reports whether s lies entirely within either the first
// corpusLen bytes of a Text or the arenaLen bytes that follow them. Spans
// that cross from the corpus into the arena are invalid.
func ValidSpan(corpusLen, arenaLen uint64, s Span) bool {
	if s.Start > s.End {
		return false
	}
	if s.Start >= corpusLen {
		return s.End-corpusLen <= arenaLen
	}
	return s.End <= corpusLen
}

// Arena returns the arena bytes.
func (t *Text) Arena() []byte {
	return t.arena
}

// CorpusLen returns the length of the corpus part of the address space.
func (t *Text) CorpusLen() uint64 {
	return uint64(len(t.corpus))
}

// Entry is an index entry.
type Entry struct {
	// Key is the indexed text.
	Key Span

	// Pos is the offset of the start of the record the key belongs to.
	Pos uint64
}

// Index is a sorted array index. Entries are ordered by the bytes of their
// keys and entries with equal keys are ordered by record position.
type Index struct {
	text    *Text
	entries []Entry
}

// New returns an index over entries which must already be sorted.
func New(text *Text, entries []Entry) *Index {
	return &Index{
		text:    text,
		entries: entries,
	}
}

// Len returns the number of entries in the index.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Entries returns the sorted entries. The slice must not be modified.
func (idx *Index) Entries() []Entry {
	return idx.entries
}

// Key returns the key bytes of the i-th entry.
func (idx *Index) Key(i int) []byte {
	return idx.text.Bytes(idx.entries[i].Key)
}

// LowerBound returns the position of the first entry whose key is not less
// than key.
func (idx *Index) LowerBound(key []byte) int {
	i, _ := sort.Find(len(idx.entries), func(i int) int {
		return bytes.Compare(key, idx.Key(i))
	})
	return i
}

// UpperBound returns the position of the first entry whose key is greater
// than key.
func (idx *Index) UpperBound(key []byte) int {
	return sort.Search(len(idx.entries), func(i int) bool {
		return bytes.Compare(idx.Key(i), key) > 0
	})
}

// EqualRange returns the half-open range [lo, hi) of entries whose key equals
// key. For absent keys lo == hi.
func (idx *Index) EqualRange(key []byte) (int, int) {
	lo := idx.LowerBound(key)
	rest := idx.entries[lo:]
	hi := lo + sort.Search(len(rest), func(i int) bool {
		return bytes.Compare(idx.text.Bytes(rest[i].Key), key) > 0
	})
	return lo, hi
}

// Search performs a binary search over the index and returns the matching
// entries.
func (idx *Index) Search(key []byte) []Entry {
	lo, hi := idx.EqualRange(key)
	if lo == hi {
		return nil
	}
	return idx.entries[lo:hi:hi]
}

// Positions returns the record positions of the entries matching key in
// corpus order.
func (idx *Index) Positions(key []byte) []uint64 {
	lo, hi := idx.EqualRange(key)
	if lo == hi {
		return nil
	}
	pos := make([]uint64, 0, hi-lo)
	for _, e := range idx.entries[lo:hi] {
		pos = append(pos, e.Pos)
	}
	return pos
}

// IsSorted reports whether the entries are in index order.
func (idx *Index) IsSorted() bool {
	for i := 1; i < len(idx.entries); i++ {
		if compareEntries(idx.text, idx.entries[i-1], idx.entries[i]) > 0 {
			return false
		}
	}
	return true
}
