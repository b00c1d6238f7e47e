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

// Package record materializes individual corpus records for display.
//
// A Materializer decodes only the bytes of the record at a given position.
// Text is converted to UTF-8 when the corpus uses another character set.
// Character references and entities are left as they appear in the corpus.
package record

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/k3a/html2text"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/ianlewis/go-bibindex/extract"
)

// ErrUnsupportedEncoding indicates a corpus character set that cannot be
// decoded.
var ErrUnsupportedEncoding = errors.New("unsupported encoding")

// Record is a decoded corpus record.
type Record struct {
	// Pos is the offset of the record in the corpus.
	Pos uint64 `json:"pos"`

	// End is the offset just past the end of the record.
	End uint64 `json:"end"`

	// Type is the record element name, e.g. "article".
	Type string `json:"type"`

	Key   string `json:"key,omitempty"`
	MDate string `json:"mdate,omitempty"`
	Title string `json:"title,omitempty"`
	Year  string `json:"year,omitempty"`

	Authors []string `json:"authors,omitempty"`
}

// Coauthors returns the authors of the record other than exclude, in record
// order and without duplicates.
func (r *Record) Coauthors(exclude string) []string {
	var out []string
	for _, a := range r.Authors {
		if a == exclude || slices.Contains(out, a) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// ClearAuthors removes the authors from the record.
func (r *Record) ClearAuthors() {
	r.Authors = nil
}

// Display returns a copy of r with character references decoded and any
// remaining markup removed from the title and author names.
func (r *Record) Display() *Record {
	c := *r
	c.Title = html2text.HTML2Text(r.Title)
	if r.Authors != nil {
		c.Authors = make([]string, len(r.Authors))
		for i, a := range r.Authors {
			c.Authors[i] = html2text.HTML2Text(a)
		}
	}
	return &c
}

// Encoding returns the encoding for the XML declaration encoding name. It
// returns nil for UTF-8 and its subsets, which need no conversion.
func Encoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		return nil, nil
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1, nil
	}

	e, err := ianaindex.IANA.Encoding(name)
	if err != nil || e == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
	}
	return e, nil
}

// Options are options for a Materializer.
type Options struct {
	// Extract selects the record fields. It must match the options the
	// corpus was indexed with.
	Extract *extract.Options

	// Encoding is the corpus character set. Nil means UTF-8.
	Encoding encoding.Encoding
}

// Materializer decodes records from a corpus buffer. It is safe for
// concurrent use.
type Materializer struct {
	buf  []byte
	opts Options
}

// NewMaterializer returns a Materializer over the corpus bytes buf.
func NewMaterializer(buf []byte, opts *Options) *Materializer {
	m := &Materializer{
		buf: buf,
	}
	if opts != nil {
		m.opts = *opts
	}
	if m.opts.Extract == nil {
		m.opts.Extract = extract.DefaultOptions
	}
	return m
}

// Record decodes the record that starts at pos. Positions that are out of
// range or do not start an element return [extract.ErrInvalidPosition].
func (m *Materializer) Record(pos uint64) (*Record, error) {
	if pos >= uint64(len(m.buf)) {
		return nil, fmt.Errorf("%w: %d", extract.ErrInvalidPosition, pos)
	}
	raw, err := extract.DecodeAt(m.buf, int64(pos), m.opts.Extract)
	if err != nil {
		return nil, err
	}

	var dec *encoding.Decoder
	if m.opts.Encoding != nil {
		dec = m.opts.Encoding.NewDecoder()
	}
	text := func(b []byte) (string, error) {
		if dec == nil {
			return string(b), nil
		}
		s, err := dec.Bytes(b)
		if err != nil {
			return "", fmt.Errorf("%w: decoding text at %d: %w", extract.ErrRecordDecode, pos, err)
		}
		return string(s), nil
	}

	r := &Record{
		Pos: raw.Pos,
		End: raw.End,
	}
	for _, f := range []struct {
		dst *string
		src []byte
	}{
		{&r.Type, raw.Type},
		{&r.Key, raw.Key},
		{&r.MDate, raw.MDate},
		{&r.Title, raw.Title.Text},
		{&r.Year, raw.Year.Text},
	} {
		if *f.dst, err = text(f.src); err != nil {
			return nil, err
		}
	}
	if len(raw.Authors) > 0 {
		r.Authors = make([]string, len(raw.Authors))
	}
	for i, a := range raw.Authors {
		if r.Authors[i], err = text(a.Text); err != nil {
			return nil, err
		}
	}
	return r, nil
}
