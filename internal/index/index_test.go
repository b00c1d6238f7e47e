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
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/ianlewis/go-bibindex/extract"
	"github.com/ianlewis/go-bibindex/internal/folding"
	"github.com/ianlewis/go-bibindex/internal/testutil"
)

// build indexes every record of data.
func build(t *testing.T, data []byte, opts *BuilderOptions) *Set {
	t.Helper()

	b := NewBuilder(data, opts)
	s := extract.NewScanner(data, nil)
	for s.Scan() {
		r := s.Record()
		for _, a := range r.Authors {
			if err := b.Add(Author, r.Pos, a); err != nil {
				t.Fatalf("Add: %v", err)
			}
		}
		if r.HasTitle {
			if err := b.Add(Title, r.Pos, r.Title); err != nil {
				t.Fatalf("Add: %v", err)
			}
		}
	}
	if err := s.Err(); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	set, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return set
}

func TestSet_scenario(t *testing.T) {
	t.Parallel()

	data, pos := testutil.MakeCorpus(testutil.ScenarioRecords())
	set := build(t, data, nil)

	tests := []struct {
		name     string
		kind     Kind
		query    string
		expected []uint64
	}{
		{
			name:     "title multiple",
			kind:     Title,
			query:    "X",
			expected: []uint64{pos[0], pos[2]},
		},
		{
			name:     "title single",
			kind:     Title,
			query:    "Y",
			expected: []uint64{pos[1]},
		},
		{
			name:     "author multiple",
			kind:     Author,
			query:    "Bob Lee",
			expected: []uint64{pos[0], pos[1]},
		},
		{
			name:     "author single",
			kind:     Author,
			query:    "Alice Smith",
			expected: []uint64{pos[0]},
		},
		{
			name:     "author missing",
			kind:     Author,
			query:    "Dave",
			expected: nil,
		},
		{
			name:     "prefix does not match",
			kind:     Author,
			query:    "Bob",
			expected: nil,
		},
		{
			name:     "case sensitive",
			kind:     Author,
			query:    "bob lee",
			expected: nil,
		},
		{
			name:     "empty query",
			kind:     Title,
			query:    "",
			expected: nil,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			got, err := set.Lookup(test.kind, []byte(test.query))
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if diff := cmp.Diff(test.expected, got); diff != "" {
				t.Fatalf("Lookup (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestIndex_bounds(t *testing.T) {
	t.Parallel()

	corpus := []byte("bar baz foo foo foo pico")
	span := func(s, e uint64) Span { return Span{Start: s, End: e} }
	text := NewText(corpus, nil)
	idx := New(text, []Entry{
		{Key: span(0, 3), Pos: 1},
		{Key: span(4, 7), Pos: 2},
		{Key: span(8, 11), Pos: 3},
		{Key: span(12, 15), Pos: 4},
		{Key: span(16, 19), Pos: 5},
		{Key: span(20, 24), Pos: 6},
	})
	if !idx.IsSorted() {
		t.Fatal("index not sorted")
	}

	tests := []struct {
		query string
		lo    int
		hi    int
	}{
		{query: "foo", lo: 2, hi: 5},
		{query: "bar", lo: 0, hi: 1},
		{query: "pico", lo: 5, hi: 6},
		{query: "aaa", lo: 0, hi: 0},
		{query: "zzz", lo: 6, hi: 6},
		{query: "fo", lo: 2, hi: 2},
		{query: "fooo", lo: 5, hi: 5},
	}

	for _, test := range tests {
		t.Run(test.query, func(t *testing.T) {
			t.Parallel()

			q := []byte(test.query)
			if got := idx.LowerBound(q); got != test.lo {
				t.Errorf("LowerBound: got %d, want %d", got, test.lo)
			}
			if got := idx.UpperBound(q); got != test.hi {
				t.Errorf("UpperBound: got %d, want %d", got, test.hi)
			}
			lo, hi := idx.EqualRange(q)
			if lo != test.lo || hi != test.hi {
				t.Errorf("EqualRange: got [%d, %d), want [%d, %d)", lo, hi, test.lo, test.hi)
			}
			if got := len(idx.Search(q)); got != test.hi-test.lo {
				t.Errorf("Search: got %d entries, want %d", got, test.hi-test.lo)
			}
		})
	}
}

func TestIndex_empty(t *testing.T) {
	t.Parallel()

	idx := New(NewText(nil, nil), nil)
	lo, hi := idx.EqualRange([]byte("foo"))
	if lo != 0 || hi != 0 {
		t.Fatalf("EqualRange: got [%d, %d), want [0, 0)", lo, hi)
	}
	if got := idx.Positions([]byte("foo")); got != nil {
		t.Fatalf("Positions: got %v, want nil", got)
	}
}

func TestSet_sorted(t *testing.T) {
	t.Parallel()

	records := []*testutil.Record{
		{Key: "a", Authors: []string{"Zed", "Amy"}, Title: "Gamma"},
		{Key: "b", Authors: []string{"amy", "Amy", "Amy"}, Title: "<i>Alpha</i>"},
		{Key: "c", Authors: []string{"Amy"}, Title: "Beta"},
		{Key: "d", Authors: []string{"Émile"}, Title: "Alpha"},
	}
	data, pos := testutil.MakeCorpus(records)
	set := build(t, data, nil)

	for _, idx := range []*Index{set.Author, set.Title} {
		if !idx.IsSorted() {
			t.Fatalf("index not sorted")
		}
		for i := 1; i < idx.Len(); i++ {
			if bytes.Compare(idx.Key(i-1), idx.Key(i)) > 0 {
				t.Fatalf("keys out of order: %q > %q", idx.Key(i-1), idx.Key(i))
			}
		}
	}

	// "Amy" appears twice in record b; duplicates are kept.
	got, err := set.Lookup(Author, []byte("Amy"))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if diff := cmp.Diff([]uint64{pos[0], pos[1], pos[1], pos[2]}, got); diff != "" {
		t.Fatalf("Lookup (-want, +got):\n%s", diff)
	}

	// The markup-stripped title lives in the arena and sorts with the
	// verbatim one.
	got, err = set.Lookup(Title, []byte("Alpha"))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if diff := cmp.Diff([]uint64{pos[1], pos[3]}, got); diff != "" {
		t.Fatalf("Lookup (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff([]byte("Alpha"), set.Text.Arena()); diff != "" {
		t.Fatalf("Arena (-want, +got):\n%s", diff)
	}
}

func TestSet_idempotent(t *testing.T) {
	t.Parallel()

	data, _ := testutil.MakeCorpus(testutil.ScenarioRecords())
	keys := func(set *Set) [][]string {
		var out [][]string
		for _, idx := range []*Index{set.Author, set.Title} {
			var ks []string
			for i := range idx.Len() {
				ks = append(ks, string(idx.Key(i)))
			}
			out = append(out, ks)
		}
		return out
	}

	a, b := build(t, data, nil), build(t, data, nil)
	if diff := cmp.Diff(keys(a), keys(b)); diff != "" {
		t.Fatalf("rebuild (-first, +second):\n%s", diff)
	}
	if diff := cmp.Diff(a.Author.Entries(), b.Author.Entries()); diff != "" {
		t.Fatalf("author entries (-first, +second):\n%s", diff)
	}
}

func TestSet_folding(t *testing.T) {
	t.Parallel()

	f, err := folding.Lookup(folding.Full)
	if err != nil {
		t.Fatalf("folding.Lookup: %v", err)
	}

	records := []*testutil.Record{
		{Key: "a", Authors: []string{"Alice  Smith"}, Title: "X"},
		{Key: "b", Authors: []string{"alice smith"}, Title: "x"},
	}
	data, pos := testutil.MakeCorpus(records)
	set := build(t, data, &BuilderOptions{Folder: f})

	got, err := set.Lookup(Author, []byte(" ALICE SMITH"))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if diff := cmp.Diff([]uint64{pos[0], pos[1]}, got); diff != "" {
		t.Fatalf("Lookup (-want, +got):\n%s", diff)
	}
}

func TestSet_foldingDecoded(t *testing.T) {
	t.Parallel()

	f, err := folding.Lookup(folding.Case)
	if err != nil {
		t.Fatalf("folding.Lookup: %v", err)
	}

	records := []*testutil.Record{
		{Key: "a", Authors: []string{"\xc9va"}, Title: "X"},
		{Key: "b", Authors: []string{"\xe9va"}, Title: "Y"},
	}
	data, pos := testutil.MakeCorpus(records)
	set := build(t, data, &BuilderOptions{
		Folder: f,
		Decoder: func() transform.Transformer {
			return charmap.ISO8859_1.NewDecoder()
		},
	})

	if !set.Folded() {
		t.Fatalf("Folded: got false")
	}
	got, err := set.Lookup(Author, []byte("ÉVA"))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if diff := cmp.Diff([]uint64{pos[0], pos[1]}, got); diff != "" {
		t.Fatalf("Lookup (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff([]byte("éva"), set.Author.Key(0)); diff != "" {
		t.Errorf("Key (-want, +got):\n%s", diff)
	}
}

func TestBuilder_cancelled(t *testing.T) {
	t.Parallel()

	data, _ := testutil.MakeCorpus(testutil.ScenarioRecords())
	b := NewBuilder(data, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Build(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Build: want %v, got %v", context.Canceled, err)
	}
}

func TestText_Valid(t *testing.T) {
	t.Parallel()

	text := NewText([]byte("0123456789"), []byte("abc"))
	tests := []struct {
		span  Span
		valid bool
	}{
		{span: Span{0, 10}, valid: true},
		{span: Span{10, 13}, valid: true},
		{span: Span{11, 12}, valid: true},
		{span: Span{5, 4}, valid: false},
		{span: Span{10, 14}, valid: false},
		{span: Span{8, 11}, valid: false},
		{span: Span{9, 12}, valid: false},
	}
	for _, test := range tests {
		if got := text.Valid(test.span); got != test.valid {
			t.Errorf("Valid(%v): got %v, want %v", test.span, got, test.valid)
		}
	}
	if diff := cmp.Diff([]byte("b"), text.Bytes(Span{11, 12})); diff != "" {
		t.Errorf("Bytes (-want, +got):\n%s", diff)
	}
}
