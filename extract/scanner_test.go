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

package extract_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ianlewis/go-bibindex/extract"
	"github.com/ianlewis/go-bibindex/internal/testutil"
)

type rec struct {
	Pos     uint64
	Type    string
	Key     string
	MDate   string
	Authors []string
	Title   string
	Year    string
}

func toRec(r *extract.Record) rec {
	out := rec{
		Pos:   r.Pos,
		Type:  string(r.Type),
		Key:   string(r.Key),
		MDate: string(r.MDate),
		Title: string(r.Title.Text),
		Year:  string(r.Year.Text),
	}
	for _, a := range r.Authors {
		out.Authors = append(out.Authors, string(a.Text))
	}
	return out
}

func scanAll(t *testing.T, data []byte) ([]rec, extract.Stats, error) {
	t.Helper()

	s := extract.NewScanner(data, nil)
	var recs []rec
	for s.Scan() {
		recs = append(recs, toRec(s.Record()))
	}
	return recs, s.Stats(), s.Err()
}

func TestScanner_scenario(t *testing.T) {
	t.Parallel()

	data, pos := testutil.MakeCorpus(testutil.ScenarioRecords())
	recs, stats, err := scanAll(t, data)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	want := []rec{
		{Pos: pos[0], Type: "article", Key: "r1", MDate: "2020-01-01", Authors: []string{"Alice Smith", "Bob Lee"}, Title: "X", Year: "2020"},
		{Pos: pos[1], Type: "inproceedings", Key: "r2", MDate: "2021-02-02", Authors: []string{"Bob Lee"}, Title: "Y", Year: "2021"},
		{Pos: pos[2], Type: "article", Key: "r3", MDate: "2022-03-03", Authors: []string{"Carol Doe"}, Title: "X", Year: "2022"},
	}
	if diff := cmp.Diff(want, recs); diff != "" {
		t.Fatalf("records (-want, +got):\n%s", diff)
	}

	wantStats := extract.Stats{
		Version:     "1.0",
		Encoding:    "UTF-8",
		DTDName:     "dblp",
		DTDSystemID: "dblp.dtd",
		Root:        "dblp",
		Counts:      map[string]int{"article": 2, "inproceedings": 1},
		Records:     3,
		Offset:      int64(len(data) - 1),
	}
	if diff := cmp.Diff(wantStats, stats); diff != "" {
		t.Fatalf("Stats (-want, +got):\n%s", diff)
	}
}

func TestScanner_fields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		title   string
		direct  bool
	}{
		{
			name:    "plain",
			content: "Deep Learning",
			title:   "Deep Learning",
			direct:  true,
		},
		{
			name:    "inline markup",
			content: "On <i>X</i> and H<sub>2</sub>O",
			title:   "On X and H2O",
		},
		{
			name:    "nested same name",
			content: "a<i>b<i>c</i>d</i>e",
			title:   "abcde",
		},
		{
			name:    "nested outer name",
			content: "a<title>b</title>c",
			title:   "abc",
		},
		{
			name:    "empty inline",
			content: "a<br/>b",
			title:   "ab",
		},
		{
			name:    "cdata",
			content: "a<![CDATA[<b>]]>c",
			title:   "a<b>c",
		},
		{
			name:    "comment",
			content: "a<!-- note -->b",
			title:   "ab",
		},
		{
			name:    "entities kept",
			content: "Caf&eacute; &amp; Bar",
			title:   "Caf&eacute; &amp; Bar",
			direct:  true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			data, _ := testutil.MakeCorpus([]*testutil.Record{{
				Key:     "k",
				Authors: []string{"A"},
				Title:   test.content,
			}})
			s := extract.NewScanner(data, nil)
			if !s.Scan() {
				t.Fatalf("Scan: %v", s.Err())
			}
			r := s.Record()
			if diff := cmp.Diff(test.title, string(r.Title.Text)); diff != "" {
				t.Fatalf("title (-want, +got):\n%s", diff)
			}
			if diff := cmp.Diff(test.direct, r.Title.Direct); diff != "" {
				t.Fatalf("direct (-want, +got):\n%s", diff)
			}
			if diff := cmp.Diff(test.content, string(data[r.Title.Start:r.Title.End])); diff != "" {
				t.Fatalf("raw content (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestScanner_skipsOtherChildren(t *testing.T) {
	t.Parallel()

	data, _ := testutil.MakeCorpus([]*testutil.Record{{
		Key:     "k",
		Authors: []string{"A"},
		Title:   "T",
		Extra:   "<ee>https://doi.org/x</ee>\n<crossref><author>not a field</author></crossref>\n<url/>\n",
	}})
	recs, _, err := scanAll(t, data)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	// Authors nested in other children are still direct children of a
	// skipped element, not of the record.
	if diff := cmp.Diff([]string{"A"}, recs[0].Authors); diff != "" {
		t.Fatalf("authors (-want, +got):\n%s", diff)
	}
}

func TestScanner_corrupt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{
			name: "empty",
			data: "",
		},
		{
			name: "text before root",
			data: "hello <dblp></dblp>",
		},
		{
			name: "unterminated declaration",
			data: `<?xml version="1.0"`,
		},
		{
			name: "bad doctype",
			data: "<?xml version=\"1.0\"?>\n<!DOCTYPE dblp SYSTEM dblp.dtd>\n<dblp></dblp>",
		},
		{
			name: "first record malformed",
			data: testutil.Header + "<article key=\"a\"><title>x</author></article>\n" + testutil.Footer,
		},
		{
			name: "first record unterminated",
			data: testutil.Header + "<article key=\"a\"><title>x</title>",
		},
		{
			name: "text before first record",
			data: testutil.Header + "junk\n<article key=\"a\"></article>" + testutil.Footer,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			recs, _, err := scanAll(t, []byte(test.data))
			if !errors.Is(err, extract.ErrCorruptCorpus) {
				t.Fatalf("Err: want %v, got %v", extract.ErrCorruptCorpus, err)
			}
			if len(recs) != 0 {
				t.Fatalf("got %d records, want 0", len(recs))
			}
		})
	}
}

func TestScanner_recordErrors(t *testing.T) {
	t.Parallel()

	good := testutil.ScenarioRecords()
	tests := []struct {
		name     string
		data     string
		keys     []string
		errCount int
	}{
		{
			name: "mismatched field",
			data: testutil.Header + good[0].XML() +
				"<article key=\"bad\"><author>B</author><title>bad</author></article>\n" +
				good[2].XML() + testutil.Footer,
			keys:     []string{"r1", "r3"},
			errCount: 1,
		},
		{
			name: "bad attribute",
			data: testutil.Header + good[0].XML() +
				"<article key=bad><title>t</title></article>\n" +
				good[1].XML() + testutil.Footer,
			keys:     []string{"r1", "r2"},
			errCount: 1,
		},
		{
			name: "missing end tag",
			data: testutil.Header + good[0].XML() +
				"<article key=\"bad\">\n<title>T2</title>\n" +
				good[2].XML() + good[1].XML() + testutil.Footer,
			keys:     []string{"r1", "r3", "r2"},
			errCount: 1,
		},
		{
			name: "missing end tag before new record type",
			data: testutil.Header + good[0].XML() +
				"<article key=\"bad\">\n<title>T2</title>\n" +
				good[1].XML() + testutil.Footer,
			keys:     []string{"r1", "r2"},
			errCount: 1,
		},
		{
			name: "missing end tag before root end",
			data: testutil.Header + good[0].XML() +
				"<article key=\"bad\">\n<title>T2</title>\n" + testutil.Footer,
			keys:     []string{"r1"},
			errCount: 1,
		},
		{
			name: "text between records",
			data: testutil.Header + good[0].XML() + "junk\n" + good[1].XML() + testutil.Footer,
			keys:     []string{"r1", "r2"},
			errCount: 1,
		},
		{
			name:     "truncated",
			data:     testutil.Header + good[0].XML() + good[1].XML(),
			keys:     []string{"r1", "r2"},
			errCount: 1,
		},
		{
			name:     "truncated mid record",
			data:     testutil.Header + good[0].XML() + "<article key=\"x\"><title>abc",
			keys:     []string{"r1"},
			errCount: 1,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			recs, stats, err := scanAll(t, []byte(test.data))
			if err != nil {
				t.Fatalf("Err: %v", err)
			}
			var keys []string
			for _, r := range recs {
				keys = append(keys, r.Key)
			}
			if diff := cmp.Diff(test.keys, keys); diff != "" {
				t.Fatalf("keys (-want, +got):\n%s", diff)
			}
			if diff := cmp.Diff(test.errCount, stats.Errors); diff != "" {
				t.Fatalf("Errors (-want, +got):\n%s", diff)
			}
			if diff := cmp.Diff(len(test.keys), stats.Records); diff != "" {
				t.Fatalf("Records (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestScanner_emptyRoot(t *testing.T) {
	t.Parallel()

	for _, data := range []string{
		"<dblp/>",
		"<?xml version=\"1.0\"?><dblp></dblp>",
		"\xef\xbb\xbf<!-- c --><dblp>\n<!-- nothing -->\n</dblp>",
	} {
		recs, stats, err := scanAll(t, []byte(data))
		if err != nil {
			t.Fatalf("%q: Err: %v", data, err)
		}
		if len(recs) != 0 || stats.Records != 0 || stats.Errors != 0 {
			t.Fatalf("%q: got %d records, stats %+v", data, len(recs), stats)
		}
	}
}

func TestScanner_boundedOffsets(t *testing.T) {
	t.Parallel()

	data, _ := testutil.MakeCorpus(testutil.ScenarioRecords())
	s := extract.NewScanner(data, nil)
	last := int64(0)
	for s.Scan() {
		if s.Offset() < last {
			t.Fatalf("offset went backwards: %d < %d", s.Offset(), last)
		}
		last = s.Offset()
	}
	if s.Err() != nil {
		t.Fatalf("Err: %v", s.Err())
	}
	if got, want := s.Offset(), int64(len(data)-1); got != want {
		t.Fatalf("Offset: got %d, want %d", got, want)
	}
}

func TestDecodeAt(t *testing.T) {
	t.Parallel()

	data, pos := testutil.MakeCorpus(testutil.ScenarioRecords())

	r, err := extract.DecodeAt(data, int64(pos[1]), nil)
	if err != nil {
		t.Fatalf("DecodeAt: %v", err)
	}
	want := rec{Pos: pos[1], Type: "inproceedings", Key: "r2", MDate: "2021-02-02", Authors: []string{"Bob Lee"}, Title: "Y", Year: "2021"}
	if diff := cmp.Diff(want, toRec(r)); diff != "" {
		t.Fatalf("DecodeAt (-want, +got):\n%s", diff)
	}
	if got, want := r.End, pos[2]; got != want-1 {
		t.Fatalf("End: got %d, want %d", got, want-1)
	}

	for _, p := range []int64{-1, int64(len(data)), int64(len(data) + 10), int64(pos[1]) + 1} {
		if _, err := extract.DecodeAt(data, p, nil); !errors.Is(err, extract.ErrInvalidPosition) {
			t.Errorf("DecodeAt(%d): want %v, got %v", p, extract.ErrInvalidPosition, err)
		}
	}
}

func TestDecodeAt_malformed(t *testing.T) {
	t.Parallel()

	data := []byte("<article><title>x</author></article>")
	if _, err := extract.DecodeAt(data, 0, nil); !errors.Is(err, extract.ErrRecordDecode) {
		t.Fatalf("DecodeAt: want %v, got %v", extract.ErrRecordDecode, err)
	}
}

func TestScanner_options(t *testing.T) {
	t.Parallel()

	data, _ := testutil.MakeCorpus([]*testutil.Record{{
		Key:     "k",
		Authors: []string{"A"},
		Title:   "T",
		Extra:   "<editor>E</editor>\n",
	}})
	s := extract.NewScanner(data, &extract.Options{
		AuthorFields: []string{"author", "editor"},
		TitleField:   "title",
	})
	if !s.Scan() {
		t.Fatalf("Scan: %v", s.Err())
	}
	got := toRec(s.Record())
	if diff := cmp.Diff([]string{"A", "E"}, got.Authors); diff != "" {
		t.Fatalf("authors (-want, +got):\n%s", diff)
	}
	if got.Year != "" {
		t.Fatalf("year: got %q, want empty", got.Year)
	}
}
