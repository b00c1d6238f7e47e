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

package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ianlewis/go-bibindex"
	"github.com/ianlewis/go-bibindex/internal/testutil"
	"github.com/ianlewis/go-bibindex/record"
)

func newEngine(t *testing.T, ready bool) (*bibindex.Engine, []uint64) {
	t.Helper()

	e, err := bibindex.New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		_ = e.Close()
	})

	data, pos := testutil.MakeCorpus(testutil.ScenarioRecords())
	if !ready {
		return e, pos
	}

	job, err := e.Build(context.Background(), testutil.MakeTempCorpus(t, data, nil))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := job.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return e, pos
}

func get(t *testing.T, s *Server, url string, v any) int {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if got, want := rec.Header().Get("Content-Type"), "application/json"; got != want {
		t.Fatalf("GET %s: Content-Type %q, want %q", url, got, want)
	}
	if v != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
			t.Fatalf("GET %s: decoding %q: %v", url, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func TestServer_search(t *testing.T) {
	t.Parallel()

	e, pos := newEngine(t, true)
	s := NewServer(e, nil, nil)

	tests := []struct {
		name     string
		url      string
		expected searchResponse
	}{
		{
			name: "author",
			url:  "/api/search?author=Bob+Lee",
			expected: searchResponse{
				Field: "author",
				Query: "Bob Lee",
				Total: 2,
				Results: []*record.Record{
					{Pos: pos[0], End: pos[1] - 1, Type: "article", Key: "r1", MDate: "2020-01-01", Title: "X", Year: "2020"},
					{Pos: pos[1], End: pos[2] - 1, Type: "inproceedings", Key: "r2", MDate: "2021-02-02", Title: "Y", Year: "2021"},
				},
			},
		},
		{
			name: "title",
			url:  "/api/search?title=X",
			expected: searchResponse{
				Field: "title",
				Query: "X",
				Total: 2,
				Results: []*record.Record{
					{
						Pos: pos[0], End: pos[1] - 1, Type: "article", Key: "r1", MDate: "2020-01-01", Title: "X", Year: "2020",
						Authors: []string{"Alice Smith", "Bob Lee"},
					},
					{
						Pos: pos[2], End: pos[2] + uint64(len(testutil.ScenarioRecords()[2].XML())) - 1,
						Type: "article", Key: "r3", MDate: "2022-03-03", Title: "X", Year: "2022",
						Authors: []string{"Carol Doe"},
					},
				},
			},
		},
		{
			name: "no match",
			url:  "/api/search?author=Dave",
			expected: searchResponse{
				Field:   "author",
				Query:   "Dave",
				Results: []*record.Record{},
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			var got searchResponse
			if code := get(t, s, test.url, &got); code != http.StatusOK {
				t.Fatalf("status: got %d, want %d", code, http.StatusOK)
			}
			if diff := cmp.Diff(test.expected, got); diff != "" {
				t.Fatalf("search (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestServer_searchLimit(t *testing.T) {
	t.Parallel()

	e, pos := newEngine(t, true)
	s := NewServer(e, nil, &Options{MaxResults: 1})

	var got searchResponse
	if code := get(t, s, "/api/search?title=X", &got); code != http.StatusOK {
		t.Fatalf("status: got %d", code)
	}
	if got.Total != 2 || len(got.Results) != 1 || got.Results[0].Pos != pos[0] {
		t.Fatalf("search: got total %d with %d results", got.Total, len(got.Results))
	}
}

func TestServer_notReady(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, false)
	s := NewServer(e, nil, nil)

	var search searchResponse
	if code := get(t, s, "/api/search?author=Bob+Lee", &search); code != http.StatusOK {
		t.Errorf("search status: got %d, want %d", code, http.StatusOK)
	}
	if search.Total != 0 || len(search.Results) != 0 {
		t.Errorf("search: got %+v, want no results", search)
	}

	var status statusResponse
	if code := get(t, s, "/api/status", &status); code != http.StatusOK {
		t.Errorf("status status: got %d", code)
	}
	if got, want := status.State, "uninitialized"; got != want {
		t.Errorf("state: got %q, want %q", got, want)
	}

	if code := get(t, s, "/api/records/0", nil); code != http.StatusServiceUnavailable {
		t.Errorf("record status: got %d, want %d", code, http.StatusServiceUnavailable)
	}

	var co coauthorsResponse
	if code := get(t, s, "/api/coauthors?author=Bob+Lee", &co); code != http.StatusOK {
		t.Errorf("coauthors status: got %d", code)
	}
	if len(co.Coauthors) != 0 {
		t.Errorf("coauthors: got %v, want none", co.Coauthors)
	}
}

func TestServer_status(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, true)
	s := NewServer(e, nil, nil)

	var got statusResponse
	if code := get(t, s, "/api/status", &got); code != http.StatusOK {
		t.Fatalf("status: got %d", code)
	}
	res, _ := e.Stats()
	want := statusResponse{
		State:    "ready",
		Path:     res.Identity.Path,
		Records:  3,
		Counts:   map[string]int{"article": 2, "inproceedings": 1},
		Authors:  4,
		Titles:   3,
		Encoding: "UTF-8",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("status (-want, +got):\n%s", diff)
	}
}

func TestServer_record(t *testing.T) {
	t.Parallel()

	e, pos := newEngine(t, true)
	s := NewServer(e, nil, nil)

	tests := []struct {
		url  string
		code int
	}{
		{url: fmt.Sprintf("/api/records/%d", pos[1]), code: http.StatusOK},
		{url: fmt.Sprintf("/api/records/%d", pos[1]+1), code: http.StatusNotFound},
		{url: "/api/records/999999", code: http.StatusNotFound},
		{url: "/api/records/abc", code: http.StatusBadRequest},
	}
	for _, test := range tests {
		var body map[string]any
		if code := get(t, s, test.url, &body); code != test.code {
			t.Errorf("GET %s: got %d, want %d", test.url, code, test.code)
		}
	}

	var got record.Record
	get(t, s, fmt.Sprintf("/api/records/%d", pos[1]), &got)
	if diff := cmp.Diff([]string{"Bob Lee"}, got.Authors); diff != "" {
		t.Errorf("Authors (-want, +got):\n%s", diff)
	}
}

func TestServer_coauthors(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, true)
	s := NewServer(e, nil, nil)

	var got coauthorsResponse
	if code := get(t, s, "/api/coauthors?author=Bob+Lee", &got); code != http.StatusOK {
		t.Fatalf("status: got %d", code)
	}
	want := coauthorsResponse{
		Author:    "Bob Lee",
		Coauthors: []bibindex.Coauthor{{Name: "Alice Smith", Count: 1}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("coauthors (-want, +got):\n%s", diff)
	}

	if code := get(t, s, "/api/coauthors", nil); code != http.StatusBadRequest {
		t.Errorf("missing author: got %d, want %d", code, http.StatusBadRequest)
	}
}

func TestServer_health(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, false)
	s := NewServer(e, nil, nil)

	var got map[string]string
	if code := get(t, s, "/health", &got); code != http.StatusOK {
		t.Fatalf("status: got %d", code)
	}
	if diff := cmp.Diff(map[string]string{"status": "ok"}, got); diff != "" {
		t.Fatalf("health (-want, +got):\n%s", diff)
	}
}
