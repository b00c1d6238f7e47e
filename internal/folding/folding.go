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

// Package folding provides key normalizations that are applied identically
// when an index is built and when it is queried.
package folding

import (
	"errors"
	"fmt"
	"sort"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/transform"
)

// ErrUnknownFolder indicates an unknown folder name.
var ErrUnknownFolder = errors.New("unknown folder")

const (
	// None indexes raw corpus bytes.
	None = "none"

	// Whitespace trims keys and collapses internal whitespace runs.
	Whitespace = "whitespace"

	// Case applies Unicode case folding.
	Case = "case"

	// Full applies whitespace and case folding.
	Full = "full"
)

var folders = map[string]func() transform.Transformer{
	None: nil,
	Whitespace: func() transform.Transformer {
		return &SpaceFolder{}
	},
	Case: func() transform.Transformer {
		return cases.Fold()
	},
	Full: func() transform.Transformer {
		return transform.Chain(&SpaceFolder{}, cases.Fold())
	},
}

// Lookup returns the folder constructor registered under name. The empty
// name is the same as None. None returns a nil constructor.
func Lookup(name string) (func() transform.Transformer, error) {
	if name == "" {
		return nil, nil
	}
	f, ok := folders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFolder, name)
	}
	return f, nil
}

// Names returns the registered folder names.
func Names() []string {
	names := make([]string, 0, len(folders))
	for n := range folders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SpaceFolder removes leading and trailing whitespace and replaces every
// internal whitespace run with a single ASCII space.
type SpaceFolder struct {
	// seenText is set once the first non-space rune has been emitted.
	seenText bool

	// pending is set while inside a whitespace run that follows text.
	pending bool
}

// Transform implements [transform.Transformer.Transform].
func (f *SpaceFolder) Transform(dst, src []byte, atEOF bool) (int, int, error) {
	nDst, nSrc := 0, 0
	for nSrc < len(src) {
		r, size := utf8.DecodeRune(src[nSrc:])
		if r == utf8.RuneError && size <= 1 && !atEOF && !utf8.FullRune(src[nSrc:]) {
			return nDst, nSrc, transform.ErrShortSrc
		}

		if unicode.IsSpace(r) {
			if f.seenText {
				f.pending = true
			}
			nSrc += size
			continue
		}

		need := size
		if f.pending {
			need++
		}
		if nDst+need > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		if f.pending {
			dst[nDst] = ' '
			nDst++
			f.pending = false
		}
		// Copy the source bytes so invalid UTF-8 passes through unchanged.
		nDst += copy(dst[nDst:], src[nSrc:nSrc+size])
		nSrc += size
		f.seenText = true
	}
	return nDst, nSrc, nil
}

// Reset implements [transform.Transformer.Reset].
func (f *SpaceFolder) Reset() {
	*f = SpaceFolder{}
}
