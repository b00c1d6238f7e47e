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

var (
	bom          = []byte("\xef\xbb\xbf")
	commentStart = []byte("<!--")
	commentEnd   = []byte("-->")
	cdataStart   = []byte("<![CDATA[")
	cdataEnd     = []byte("]]>")
	piStart      = []byte("<?")
	piEnd        = []byte("?>")
	doctypeStart = []byte("<!DOCTYPE")
	endTagStart  = []byte("</")
)

func syntaxErr(off int, format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", errSyntax, off, fmt.Sprintf(format, args...))
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isNameStart(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || c == '_' || c == ':' || c >= 0x80
}

func isNameChar(c byte) bool {
	return isNameStart(c) || '0' <= c && c <= '9' || c == '-' || c == '.'
}

func skipSpace(buf []byte, i int) int {
	for i < len(buf) && isSpace(buf[i]) {
		i++
	}
	return i
}

// readName returns the end of the XML name starting at i.
func readName(buf []byte, i int) (int, bool) {
	if i >= len(buf) || !isNameStart(buf[i]) {
		return i, false
	}
	j := i + 1
	for j < len(buf) && isNameChar(buf[j]) {
		j++
	}
	return j, true
}

// startTag is a parsed start tag or empty element tag.
type startTag struct {
	name  []byte
	attrs []byte
	end   int
	empty bool
}

// parseStartTag parses the tag beginning with the '<' at p.
func parseStartTag(buf []byte, p int) (startTag, error) {
	var t startTag
	e, ok := readName(buf, p+1)
	if !ok {
		return t, syntaxErr(p, "invalid start tag")
	}
	if e < len(buf) && !isSpace(buf[e]) && buf[e] != '/' && buf[e] != '>' {
		return t, syntaxErr(e, "invalid character %q in tag name", buf[e])
	}
	t.name = buf[p+1 : e]

	for j := e; j < len(buf); j++ {
		switch c := buf[j]; c {
		case '"', '\'':
			k := bytes.IndexByte(buf[j+1:], c)
			if k < 0 {
				return t, syntaxErr(j, "unterminated attribute value")
			}
			j += k + 1
		case '<':
			return t, syntaxErr(j, "unexpected '<' in tag <%s>", t.name)
		case '>':
			attrEnd := j
			if j > e && buf[j-1] == '/' {
				t.empty = true
				attrEnd = j - 1
			}
			t.attrs = buf[e:attrEnd]
			t.end = j + 1
			return t, nil
		}
	}
	return t, syntaxErr(p, "unterminated tag <%s>", t.name)
}

// parseEndTag parses the end tag beginning with the "</" at p.
func parseEndTag(buf []byte, p int) ([]byte, int, error) {
	e, ok := readName(buf, p+2)
	if !ok {
		return nil, 0, syntaxErr(p, "invalid end tag")
	}
	j := skipSpace(buf, e)
	if j >= len(buf) || buf[j] != '>' {
		return nil, 0, syntaxErr(p, "unterminated end tag </%s>", buf[p+2:e])
	}
	return buf[p+2 : e], j + 1, nil
}

// attr returns the raw value of the named attribute.
func attr(attrs []byte, name string) ([]byte, bool, error) {
	i := 0
	for {
		i = skipSpace(attrs, i)
		if i >= len(attrs) {
			return nil, false, nil
		}
		e, ok := readName(attrs, i)
		if !ok {
			return nil, false, syntaxErr(i, "invalid attribute name")
		}
		n := attrs[i:e]
		i = skipSpace(attrs, e)
		if i >= len(attrs) || attrs[i] != '=' {
			return nil, false, syntaxErr(i, "attribute %q missing value", n)
		}
		i = skipSpace(attrs, i+1)
		if i >= len(attrs) || (attrs[i] != '"' && attrs[i] != '\'') {
			return nil, false, syntaxErr(i, "attribute %q value not quoted", n)
		}
		q := attrs[i]
		k := bytes.IndexByte(attrs[i+1:], q)
		if k < 0 {
			return nil, false, syntaxErr(i, "unterminated attribute value")
		}
		v := attrs[i+1 : i+1+k]
		i += k + 2
		if string(n) == name {
			return v, true, nil
		}
	}
}

// skipUntil returns the offset just past the first occurrence of end at or
// after i.
func skipUntil(buf []byte, i int, end []byte, what string) (int, error) {
	k := bytes.Index(buf[i:], end)
	if k < 0 {
		return 0, syntaxErr(i, "unterminated %s", what)
	}
	return i + k + len(end), nil
}

// quoted reads a quoted literal at i.
func quoted(buf []byte, i int) ([]byte, int, error) {
	if i >= len(buf) || (buf[i] != '"' && buf[i] != '\'') {
		return nil, 0, syntaxErr(i, "expected quoted literal")
	}
	k := bytes.IndexByte(buf[i+1:], buf[i])
	if k < 0 {
		return nil, 0, syntaxErr(i, "unterminated literal")
	}
	return buf[i+1 : i+1+k], i + k + 2, nil
}

// parseDoctype parses the document type declaration at p and returns the
// document type name and system identifier.
func parseDoctype(buf []byte, p int) ([]byte, []byte, int, error) {
	i := skipSpace(buf, p+len(doctypeStart))
	e, ok := readName(buf, i)
	if !ok {
		return nil, nil, 0, syntaxErr(i, "invalid DOCTYPE name")
	}
	name := buf[i:e]
	i = skipSpace(buf, e)

	var sys []byte
	var err error
	switch {
	case bytes.HasPrefix(buf[i:], []byte("SYSTEM")):
		sys, i, err = quoted(buf, skipSpace(buf, i+6))
		if err != nil {
			return nil, nil, 0, err
		}
	case bytes.HasPrefix(buf[i:], []byte("PUBLIC")):
		_, i, err = quoted(buf, skipSpace(buf, i+6))
		if err != nil {
			return nil, nil, 0, err
		}
		sys, i, err = quoted(buf, skipSpace(buf, i))
		if err != nil {
			return nil, nil, 0, err
		}
	}
	i = skipSpace(buf, i)

	if i < len(buf) && buf[i] == '[' {
		// Internal subset. Declarations may quote ']' so literals are
		// skipped whole.
		i++
		for i < len(buf) && buf[i] != ']' {
			switch {
			case buf[i] == '"' || buf[i] == '\'':
				_, i, err = quoted(buf, i)
				if err != nil {
					return nil, nil, 0, err
				}
			case bytes.HasPrefix(buf[i:], commentStart):
				i, err = skipUntil(buf, i+len(commentStart), commentEnd, "comment")
				if err != nil {
					return nil, nil, 0, err
				}
			default:
				i++
			}
		}
		if i >= len(buf) {
			return nil, nil, 0, syntaxErr(p, "unterminated DOCTYPE internal subset")
		}
		i = skipSpace(buf, i+1)
	}

	if i >= len(buf) || buf[i] != '>' {
		return nil, nil, 0, syntaxErr(p, "unterminated DOCTYPE")
	}
	return name, sys, i + 1, nil
}

// walkContent walks element content starting at start up to and including
// the end tag matching name. Nested elements are tracked with stack so that
// nested tags of the same name as the outer element do not end it early.
//
// When out is non-nil the character data of the content is appended to it
// with all markup removed. direct is true when the content contains no
// markup at all, in which case nothing is appended and the text is exactly
// buf[start:contentEnd].
func walkContent(buf, name []byte, start int, stack *[][]byte, out *[]byte) (contentEnd, end int, direct bool, err error) {
	st := (*stack)[:0]
	defer func() { *stack = st[:0] }()

	direct = true
	seg := start
	flush := func(lt int) {
		if out != nil {
			*out = append(*out, buf[seg:lt]...)
		}
	}

	i := start
	for {
		j := bytes.IndexByte(buf[i:], '<')
		if j < 0 {
			return 0, 0, false, syntaxErr(start, "unterminated element <%s>", name)
		}
		lt := i + j

		switch {
		case bytes.HasPrefix(buf[lt:], endTagStart):
			cname, e, err := parseEndTag(buf, lt)
			if err != nil {
				return 0, 0, false, err
			}
			if len(st) == 0 {
				if !bytes.Equal(cname, name) {
					return 0, 0, false, syntaxErr(lt, "end tag </%s> does not match <%s>", cname, name)
				}
				if !direct {
					flush(lt)
				}
				return lt, e, direct, nil
			}
			if top := st[len(st)-1]; !bytes.Equal(top, cname) {
				return 0, 0, false, syntaxErr(lt, "end tag </%s> does not match <%s>", cname, top)
			}
			st = st[:len(st)-1]
			direct = false
			flush(lt)
			seg, i = e, e

		case bytes.HasPrefix(buf[lt:], commentStart):
			direct = false
			flush(lt)
			e, err := skipUntil(buf, lt+len(commentStart), commentEnd, "comment")
			if err != nil {
				return 0, 0, false, err
			}
			seg, i = e, e

		case bytes.HasPrefix(buf[lt:], cdataStart):
			direct = false
			flush(lt)
			e, err := skipUntil(buf, lt+len(cdataStart), cdataEnd, "CDATA section")
			if err != nil {
				return 0, 0, false, err
			}
			if out != nil {
				*out = append(*out, buf[lt+len(cdataStart):e-len(cdataEnd)]...)
			}
			seg, i = e, e

		case bytes.HasPrefix(buf[lt:], piStart):
			direct = false
			flush(lt)
			e, err := skipUntil(buf, lt+len(piStart), piEnd, "processing instruction")
			if err != nil {
				return 0, 0, false, err
			}
			seg, i = e, e

		default:
			t, err := parseStartTag(buf, lt)
			if err != nil {
				return 0, 0, false, err
			}
			direct = false
			flush(lt)
			if !t.empty {
				st = append(st, t.name)
			}
			seg, i = t.end, t.end
		}
	}
}
