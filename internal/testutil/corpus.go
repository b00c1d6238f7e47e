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

package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ianlewis/go-dictzip"
)

// Record is a test corpus record. Authors and Title are raw XML content and
// may contain inline markup.
type Record struct {
	Type    string
	Key     string
	MDate   string
	Authors []string
	Title   string
	Year    string

	// Extra is raw XML appended to the record content.
	Extra string
}

// XML returns the record serialized as a corpus record element.
func (r *Record) XML() string {
	typ := r.Type
	if typ == "" {
		typ = "article"
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "<%s", typ)
	if r.Key != "" {
		fmt.Fprintf(&b, " key=%q", r.Key)
	}
	if r.MDate != "" {
		fmt.Fprintf(&b, " mdate=%q", r.MDate)
	}
	b.WriteString(">\n")
	for _, a := range r.Authors {
		fmt.Fprintf(&b, "<author>%s</author>\n", a)
	}
	if r.Title != "" {
		fmt.Fprintf(&b, "<title>%s</title>\n", r.Title)
	}
	if r.Year != "" {
		fmt.Fprintf(&b, "<year>%s</year>\n", r.Year)
	}
	b.WriteString(r.Extra)
	fmt.Fprintf(&b, "</%s>\n", typ)
	return b.String()
}

// Header is the prolog written by MakeCorpus.
const Header = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE dblp SYSTEM "dblp.dtd">
<dblp>
`

// Footer is the root end tag written by MakeCorpus.
const Footer = "</dblp>\n"

// MakeCorpus creates a test corpus and returns it along with the position of
// each record.
func MakeCorpus(records []*Record) ([]byte, []uint64) {
	var b bytes.Buffer
	b.WriteString(Header)
	pos := make([]uint64, 0, len(records))
	for _, r := range records {
		pos = append(pos, uint64(b.Len()))
		b.WriteString(r.XML())
	}
	b.WriteString(Footer)
	return b.Bytes(), pos
}

// MakeCorpusOptions are options for MakeTempCorpus.
type MakeCorpusOptions struct {
	// DictZip compresses the corpus with dictzip.
	DictZip bool
}

// MakeTempCorpus writes data to a corpus file in a temporary directory and
// returns its path.
func MakeTempCorpus(t *testing.T, data []byte, opts *MakeCorpusOptions) string {
	t.Helper()

	name := "dblp.xml"
	if opts != nil && opts.DictZip {
		name += ".dz"
	}
	path := filepath.Join(t.TempDir(), name)

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if opts != nil && opts.DictZip {
		z, err := dictzip.NewWriter(f)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := z.Write(data); err != nil {
			t.Fatal(err)
		}
		if err := z.Close(); err != nil {
			t.Fatal(err)
		}
	} else if _, err := f.Write(data); err != nil {
		t.Fatal(err)
	}

	return path
}

// ScenarioRecords is the three record corpus used across tests: R1 by Alice
// Smith and Bob Lee titled X, R2 by Bob Lee titled Y, R3 by Carol Doe titled
// X.
func ScenarioRecords() []*Record {
	return []*Record{
		{
			Key:     "r1",
			MDate:   "2020-01-01",
			Authors: []string{"Alice Smith", "Bob Lee"},
			Title:   "X",
			Year:    "2020",
		},
		{
			Type:    "inproceedings",
			Key:     "r2",
			MDate:   "2021-02-02",
			Authors: []string{"Bob Lee"},
			Title:   "Y",
			Year:    "2021",
		},
		{
			Key:     "r3",
			MDate:   "2022-03-03",
			Authors: []string{"Carol Doe"},
			Title:   "X",
			Year:    "2022",
		},
	}
}
