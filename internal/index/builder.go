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

package index

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/transform"

	"github.com/ianlewis/go-bibindex/extract"
)

// Kind identifies one of the indexes in a Set.
type Kind int

const (
	// Author is the by-author index.
	Author Kind = iota

	// Title is the by-title index.
	Title
)

func (k Kind) String() string {
	switch k {
	case Author:
		return "author"
	case Title:
		return "title"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// BuilderOptions are options for a Builder.
type BuilderOptions struct {
	// Folder returns a [transform.Transformer] applied to every key at build
	// time and to every query. A nil Folder indexes raw corpus bytes.
	Folder func() transform.Transformer

	// Decoder returns a [transform.Transformer] that converts keys from the
	// corpus character set to UTF-8 before they are folded. It is ignored
	// without a Folder. Queries against the resulting Set are UTF-8.
	Decoder func() transform.Transformer
}

// Builder accumulates index entries during a scan.
type Builder struct {
	corpus  []byte
	arena   []byte
	authors []Entry
	titles  []Entry
	folder  func() transform.Transformer
	decoder func() transform.Transformer
}

// NewBuilder returns a Builder for keys from corpus.
func NewBuilder(corpus []byte, opts *BuilderOptions) *Builder {
	b := &Builder{
		corpus: corpus,
	}
	if opts != nil {
		b.folder = opts.Folder
		b.decoder = opts.Decoder
	}
	return b
}

// Add adds the field f of the record at pos to the index of the given kind.
// Fields that appear verbatim in the corpus are referenced in place. Others
// are copied into the arena.
func (b *Builder) Add(kind Kind, pos uint64, f extract.Field) error {
	text, direct := f.Text, f.Direct
	if b.folder != nil {
		t := b.folder()
		if b.decoder != nil {
			t = transform.Chain(b.decoder(), t)
		}
		folded, _, err := transform.Bytes(t, text)
		if err != nil {
			return fmt.Errorf("folding %s key at %d: %w", kind, pos, err)
		}
		if !bytes.Equal(folded, text) {
			text, direct = folded, false
		}
	}

	key := Span{Start: f.Start, End: f.End}
	if !direct {
		off := uint64(len(b.corpus)) + uint64(len(b.arena))
		b.arena = append(b.arena, text...)
		key = Span{Start: off, End: off + uint64(len(text))}
	}

	e := Entry{Key: key, Pos: pos}
	switch kind {
	case Author:
		b.authors = append(b.authors, e)
	case Title:
		b.titles = append(b.titles, e)
	default:
		return fmt.Errorf("unknown index kind %v", kind)
	}
	return nil
}

// Len returns the number of entries added for kind.
func (b *Builder) Len(kind Kind) int {
	switch kind {
	case Author:
		return len(b.authors)
	case Title:
		return len(b.titles)
	default:
		return 0
	}
}

// Build sorts the accumulated entries and returns the finished Set. The
// Builder must not be used afterwards.
func (b *Builder) Build(ctx context.Context) (*Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := NewText(b.corpus, b.arena)

	var g errgroup.Group
	g.Go(func() error {
		sortEntries(text, b.authors)
		return nil
	})
	g.Go(func() error {
		sortEntries(text, b.titles)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Sorting is not interruptible. Report cancellation that arrived
	// during the sort rather than publishing the result.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return NewSet(text, b.authors, b.titles, b.folder), nil
}

func compareEntries(text *Text, a, b Entry) int {
	if c := bytes.Compare(text.Bytes(a.Key), text.Bytes(b.Key)); c != 0 {
		return c
	}
	return cmp.Compare(a.Pos, b.Pos)
}

func sortEntries(text *Text, entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		return compareEntries(text, a, b)
	})
}

// Set is the pair of indexes built from one corpus.
type Set struct {
	Text   *Text
	Author *Index
	Title  *Index

	folder func() transform.Transformer
}

// NewSet returns a Set from already sorted entries.
func NewSet(text *Text, authors, titles []Entry, folder func() transform.Transformer) *Set {
	return &Set{
		Text:   text,
		Author: New(text, authors),
		Title:  New(text, titles),
		folder: folder,
	}
}

// Index returns the index of the given kind.
func (s *Set) Index(kind Kind) *Index {
	if kind == Title {
		return s.Title
	}
	return s.Author
}

// Folded reports whether the Set's keys are folded.
func (s *Set) Folded() bool {
	return s.folder != nil
}

// Fold applies the Set's key folding to q.
func (s *Set) Fold(q []byte) ([]byte, error) {
	if s.folder == nil {
		return q, nil
	}
	folded, _, err := transform.Bytes(s.folder(), q)
	if err != nil {
		return nil, fmt.Errorf("folding query %q: %w", q, err)
	}
	return folded, nil
}

// Lookup returns the record positions of the entries of kind matching q
// after folding.
func (s *Set) Lookup(kind Kind, q []byte) ([]uint64, error) {
	key, err := s.Fold(q)
	if err != nil {
		return nil, err
	}
	return s.Index(kind).Positions(key), nil
}
