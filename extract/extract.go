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

package extract

import (
	"bytes"
	"errors"
)

var (
	// ErrCorruptCorpus indicates that the corpus is malformed before the
	// first complete record. It is fatal for the scan.
	ErrCorruptCorpus = errors.New("corrupt corpus")

	// ErrRecordDecode indicates that a single record is malformed.
	ErrRecordDecode = errors.New("record decode error")

	// ErrInvalidPosition indicates that a position does not point at the
	// start of a record.
	ErrInvalidPosition = errors.New("invalid record position")

	// errSyntax is the underlying cause of both fatal and per-record errors.
	errSyntax = errors.New("xml syntax error")
)

// Options configures which record children are extracted.
type Options struct {
	// AuthorFields are the element names indexed as authors.
	AuthorFields []string

	// TitleField is the element name indexed as the title.
	TitleField string

	// YearField is the element name holding the publication year.
	YearField string
}

// DefaultOptions are the options for dblp style corpora.
var DefaultOptions = &Options{
	AuthorFields: []string{"author"},
	TitleField:   "title",
	YearField:    "year",
}

// fieldKind identifies a record child that is extracted.
type fieldKind int

const (
	fieldNone fieldKind = iota
	fieldAuthor
	fieldTitle
	fieldYear
)

// fieldNames is the compiled form of Options.
type fieldNames struct {
	authors [][]byte
	title   []byte
	year    []byte
}

func compile(opts *Options) fieldNames {
	if opts == nil {
		opts = DefaultOptions
	}
	var n fieldNames
	for _, a := range opts.AuthorFields {
		n.authors = append(n.authors, []byte(a))
	}
	n.title = []byte(opts.TitleField)
	n.year = []byte(opts.YearField)
	return n
}

func (n *fieldNames) kind(name []byte) fieldKind {
	for _, a := range n.authors {
		if bytes.Equal(a, name) {
			return fieldAuthor
		}
	}
	if len(n.title) > 0 && bytes.Equal(n.title, name) {
		return fieldTitle
	}
	if len(n.year) > 0 && bytes.Equal(n.year, name) {
		return fieldYear
	}
	return fieldNone
}

// Field is the text of one extracted element.
type Field struct {
	// Start and End delimit the raw element content in the corpus.
	Start, End uint64

	// Text is the logical value of the field with inline markup removed.
	Text []byte

	// Direct is true when Text is exactly the corpus bytes [Start, End).
	Direct bool
}

// Record is one extracted record. Its slices alias either the corpus or the
// Scanner's scratch space and are only valid until the next call to Scan.
type Record struct {
	// Pos is the offset of the record's start tag.
	Pos uint64

	// End is the offset just past the record's end tag.
	End uint64

	// Type is the record element name, e.g. "article".
	Type []byte

	// Key and MDate are the raw values of the key and mdate attributes.
	Key   []byte
	MDate []byte

	Authors []Field

	Title    Field
	HasTitle bool

	Year    Field
	HasYear bool
}

func (r *Record) reset() {
	authors := r.Authors[:0]
	*r = Record{}
	r.Authors = authors
}

// Stats are counters accumulated during a scan.
type Stats struct {
	// Version and Encoding come from the XML declaration.
	Version  string
	Encoding string

	// DTDName and DTDSystemID come from the document type declaration.
	DTDName     string
	DTDSystemID string

	// Root is the name of the root element.
	Root string

	// Counts is the number of extracted records per record type.
	Counts map[string]int

	// Records is the number of successfully extracted records.
	Records int

	// Errors is the number of skipped malformed records.
	Errors int

	// Offset is the number of corpus bytes consumed.
	Offset int64
}

func (s Stats) clone() Stats {
	c := s
	c.Counts = make(map[string]int, len(s.Counts))
	for k, v := range s.Counts {
		c.Counts[k] = v
	}
	return c
}
