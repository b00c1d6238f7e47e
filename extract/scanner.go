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

// Scanner scans a corpus from start to end, one record at a time.
type Scanner struct {
	buf  []byte
	root []byte
	pos  int

	dec decoder
	rec Record

	stats   Stats
	started bool
	done    bool
	err     error
}

// NewScanner returns a Scanner over the corpus bytes in buf. The Scanner
// does not copy buf and buf must not be modified during the scan.
func NewScanner(buf []byte, opts *Options) *Scanner {
	return &Scanner{
		buf: buf,
		dec: decoder{names: compile(opts)},
		stats: Stats{
			Counts: map[string]int{},
		},
	}
}

// Scan advances to the next record. It returns false when the end of the
// corpus is reached or a fatal error occurs.
func (s *Scanner) Scan() bool {
	if s.done {
		return false
	}
	if !s.started {
		s.started = true
		if err := s.prolog(); err != nil {
			s.fatal(err)
			return false
		}
		if s.done {
			return false
		}
	}

	for {
		i, err := s.skipMisc(s.pos)
		if err != nil {
			s.truncated(err)
			return false
		}
		if i >= len(s.buf) {
			s.truncated(syntaxErr(i, "missing end tag </%s>", s.root))
			return false
		}

		if s.buf[i] != '<' {
			if !s.recordError(syntaxErr(i, "character data outside of record")) {
				return false
			}
			k := bytes.IndexByte(s.buf[i:], '<')
			if k < 0 {
				s.truncated(syntaxErr(i, "missing end tag </%s>", s.root))
				return false
			}
			s.pos = i + k
			continue
		}

		if bytes.HasPrefix(s.buf[i:], endTagStart) {
			name, e, err := parseEndTag(s.buf, i)
			if err == nil && !bytes.Equal(name, s.root) {
				err = syntaxErr(i, "end tag </%s> does not match <%s>", name, s.root)
			}
			if err != nil {
				s.truncated(err)
				return false
			}
			s.pos = e
			s.stats.Offset = int64(e)
			s.done = true
			return false
		}

		s.dec.scratch = s.dec.scratch[:0]
		s.rec.reset()
		end, err := s.dec.decode(s.buf, i, &s.rec)
		if err != nil {
			if !s.recordError(err) {
				return false
			}
			s.pos = s.resync(i)
			if s.pos >= len(s.buf) {
				s.done = true
				s.stats.Offset = int64(len(s.buf))
				return false
			}
			continue
		}

		s.pos = end
		s.stats.Records++
		s.stats.Counts[string(s.rec.Type)]++
		s.stats.Offset = int64(end)
		return true
	}
}

// Record returns the most recently scanned record. It is only valid until
// the next call to Scan.
func (s *Scanner) Record() *Record {
	return &s.rec
}

// Err returns the fatal error that stopped the scan, if any. Per-record
// errors are counted in Stats and are not returned.
func (s *Scanner) Err() error {
	return s.err
}

// Offset returns the number of corpus bytes consumed so far.
func (s *Scanner) Offset() int64 {
	return int64(s.pos)
}

// Encoding returns the encoding name from the XML declaration. It is set
// once Scan has been called.
func (s *Scanner) Encoding() string {
	return s.stats.Encoding
}

// Len returns the total size of the corpus in bytes.
func (s *Scanner) Len() int64 {
	return int64(len(s.buf))
}

// Stats returns a snapshot of the scan counters.
func (s *Scanner) Stats() Stats {
	st := s.stats.clone()
	st.Offset = int64(s.pos)
	return st
}

// prolog reads everything up to and including the root start tag.
func (s *Scanner) prolog() error {
	i := 0
	if bytes.HasPrefix(s.buf, bom) {
		i = len(bom)
	}

	for {
		i = skipSpace(s.buf, i)
		if i >= len(s.buf) {
			return syntaxErr(i, "missing root element")
		}
		if s.buf[i] != '<' {
			return syntaxErr(i, "character data before root element")
		}

		rest := s.buf[i:]
		switch {
		case bytes.HasPrefix(rest, []byte("<?xml")) && len(rest) > 5 && (isSpace(rest[5]) || rest[5] == '?'):
			e, err := skipUntil(s.buf, i+5, piEnd, "XML declaration")
			if err != nil {
				return err
			}
			decl := s.buf[i+5 : e-len(piEnd)]
			version, _, err := attr(decl, "version")
			if err != nil {
				return err
			}
			encoding, _, err := attr(decl, "encoding")
			if err != nil {
				return err
			}
			s.stats.Version = string(version)
			s.stats.Encoding = string(encoding)
			i = e

		case bytes.HasPrefix(rest, piStart):
			e, err := skipUntil(s.buf, i+len(piStart), piEnd, "processing instruction")
			if err != nil {
				return err
			}
			i = e

		case bytes.HasPrefix(rest, commentStart):
			e, err := skipUntil(s.buf, i+len(commentStart), commentEnd, "comment")
			if err != nil {
				return err
			}
			i = e

		case bytes.HasPrefix(rest, doctypeStart):
			name, sys, e, err := parseDoctype(s.buf, i)
			if err != nil {
				return err
			}
			s.stats.DTDName = string(name)
			s.stats.DTDSystemID = string(sys)
			i = e

		default:
			t, err := parseStartTag(s.buf, i)
			if err != nil {
				return err
			}
			s.root = t.name
			s.stats.Root = string(t.name)
			s.pos = t.end
			s.stats.Offset = int64(t.end)
			if t.empty {
				s.done = true
			}
			return nil
		}
	}
}

// skipMisc skips whitespace, comments and processing instructions between
// records.
func (s *Scanner) skipMisc(i int) (int, error) {
	var err error
	for {
		i = skipSpace(s.buf, i)
		switch {
		case bytes.HasPrefix(s.buf[i:], commentStart):
			if i, err = skipUntil(s.buf, i+len(commentStart), commentEnd, "comment"); err != nil {
				return 0, err
			}
		case bytes.HasPrefix(s.buf[i:], piStart):
			if i, err = skipUntil(s.buf, i+len(piStart), piEnd, "processing instruction"); err != nil {
				return 0, err
			}
		default:
			return i, nil
		}
	}
}

// resync returns the offset at which scanning resumes after the malformed
// record starting at p: just past the record's own end tag, unless the next
// record starts before it.
func (s *Scanner) resync(p int) int {
	e, ok := readName(s.buf, p+1)
	if !ok {
		return s.nextRecord(p+1, nil)
	}
	typ := s.buf[p+1 : e]
	next := s.nextRecord(p+1, typ)

	closing := make([]byte, 0, len(typ)+3)
	closing = append(closing, endTagStart...)
	closing = append(closing, typ...)
	closing = append(closing, '>')
	if k := bytes.Index(s.buf[p+1:next], closing); k >= 0 {
		return p + 1 + k + len(closing)
	}
	return next
}

// nextRecord returns the offset of the first line at or after i that starts
// a record, or the end of the corpus.
func (s *Scanner) nextRecord(i int, typ []byte) int {
	for i < len(s.buf) {
		k := bytes.Index(s.buf[i:], []byte("\n<"))
		if k < 0 {
			break
		}
		next := i + k + 1
		if s.isRecordStart(next, typ) {
			return next
		}
		i = next
	}
	return len(s.buf)
}

// isRecordStart reports whether the start tag at i opens a record. Records
// are recognized by a key attribute, by the type of the malformed record or
// by a record type already seen.
func (s *Scanner) isRecordStart(i int, typ []byte) bool {
	if i+1 >= len(s.buf) || !isNameStart(s.buf[i+1]) {
		return false
	}
	t, err := parseStartTag(s.buf, i)
	if err != nil {
		return false
	}
	if typ != nil && bytes.Equal(t.name, typ) {
		return true
	}
	if _, ok := s.stats.Counts[string(t.name)]; ok {
		return true
	}
	_, ok, _ := attr(t.attrs, "key")
	return ok
}

// recordError records a per-record error. Before the first complete record
// any error is fatal, in which case recordError returns false.
func (s *Scanner) recordError(err error) bool {
	if s.stats.Records == 0 {
		s.fatal(err)
		return false
	}
	s.stats.Errors++
	return true
}

// truncated ends the scan after an error that cannot be resynchronized.
func (s *Scanner) truncated(err error) {
	if s.recordError(err) {
		s.done = true
		s.pos = len(s.buf)
		s.stats.Offset = int64(len(s.buf))
	}
}

func (s *Scanner) fatal(err error) {
	s.err = fmt.Errorf("%w: %w", ErrCorruptCorpus, err)
	s.done = true
}
