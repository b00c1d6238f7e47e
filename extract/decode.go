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
	"fmt"
)

// decoder holds the reusable state for decoding records.
type decoder struct {
	names   fieldNames
	stack   [][]byte
	scratch []byte
}

// decode decodes the record whose start tag begins at p into rec and
// returns the offset just past the record's end tag.
func (d *decoder) decode(buf []byte, p int, rec *Record) (int, error) {
	t, err := parseStartTag(buf, p)
	if err != nil {
		return 0, err
	}
	rec.Pos = uint64(p)
	rec.Type = t.name
	if rec.Key, _, err = attr(t.attrs, "key"); err != nil {
		return 0, err
	}
	if rec.MDate, _, err = attr(t.attrs, "mdate"); err != nil {
		return 0, err
	}
	if t.empty {
		rec.End = uint64(t.end)
		return t.end, nil
	}

	i := t.end
	for {
		j := bytes.IndexByte(buf[i:], '<')
		if j < 0 {
			return 0, syntaxErr(p, "unterminated record <%s>", t.name)
		}
		lt := i + j

		switch {
		case bytes.HasPrefix(buf[lt:], endTagStart):
			cname, e, err := parseEndTag(buf, lt)
			if err != nil {
				return 0, err
			}
			if !bytes.Equal(cname, t.name) {
				return 0, syntaxErr(lt, "end tag </%s> does not match <%s>", cname, t.name)
			}
			rec.End = uint64(e)
			return e, nil

		case bytes.HasPrefix(buf[lt:], commentStart):
			if i, err = skipUntil(buf, lt+len(commentStart), commentEnd, "comment"); err != nil {
				return 0, err
			}

		case bytes.HasPrefix(buf[lt:], cdataStart):
			if i, err = skipUntil(buf, lt+len(cdataStart), cdataEnd, "CDATA section"); err != nil {
				return 0, err
			}

		case bytes.HasPrefix(buf[lt:], piStart):
			if i, err = skipUntil(buf, lt+len(piStart), piEnd, "processing instruction"); err != nil {
				return 0, err
			}

		default:
			if i, err = d.child(buf, lt, rec); err != nil {
				return 0, err
			}
		}
	}
}

// child decodes or skips the record child element starting at p.
func (d *decoder) child(buf []byte, p int, rec *Record) (int, error) {
	t, err := parseStartTag(buf, p)
	if err != nil {
		return 0, err
	}
	kind := d.names.kind(t.name)

	if t.empty {
		if kind != fieldNone {
			rec.set(kind, Field{
				Start:  uint64(t.end),
				End:    uint64(t.end),
				Text:   buf[t.end:t.end],
				Direct: true,
			})
		}
		return t.end, nil
	}

	var out *[]byte
	mark := len(d.scratch)
	if kind != fieldNone {
		out = &d.scratch
	}
	contentEnd, end, direct, err := walkContent(buf, t.name, t.end, &d.stack, out)
	if err != nil {
		return 0, err
	}
	if kind == fieldNone {
		return end, nil
	}

	f := Field{
		Start:  uint64(t.end),
		End:    uint64(contentEnd),
		Direct: direct,
	}
	if direct {
		f.Text = buf[t.end:contentEnd]
	} else {
		f.Text = d.scratch[mark:len(d.scratch):len(d.scratch)]
	}
	rec.set(kind, f)
	return end, nil
}

// set stores f in the record. Only the first title and year are kept.
func (r *Record) set(kind fieldKind, f Field) {
	switch kind {
	case fieldAuthor:
		r.Authors = append(r.Authors, f)
	case fieldTitle:
		if !r.HasTitle {
			r.Title, r.HasTitle = f, true
		}
	case fieldYear:
		if !r.HasYear {
			r.Year, r.HasYear = f, true
		}
	case fieldNone:
	}
}

// DecodeAt decodes the single record starting at pos. Only the bytes of that
// record are read.
func DecodeAt(buf []byte, pos int64, opts *Options) (*Record, error) {
	if pos < 0 || pos+1 >= int64(len(buf)) || buf[pos] != '<' || !isNameStart(buf[pos+1]) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPosition, pos)
	}

	d := decoder{names: compile(opts)}
	var rec Record
	if _, err := d.decode(buf, int(pos), &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecordDecode, err)
	}
	return &rec, nil
}
