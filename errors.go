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

package bibindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/ianlewis/go-bibindex/extract"
	"github.com/ianlewis/go-bibindex/store"
)

var (
	// ErrCancelled indicates that a build was cancelled.
	ErrCancelled = errors.New("build cancelled")

	// ErrBuildInProgress is returned when a build is started while another
	// is running.
	ErrBuildInProgress = errors.New("build in progress")

	// ErrNotReady is returned by record queries when no index is loaded.
	ErrNotReady = errors.New("index not ready")

	// ErrClosed is returned after the Engine is closed.
	ErrClosed = errors.New("engine closed")
)

// ErrorKind classifies build failures.
type ErrorKind int

const (
	// KindNone is the kind of a nil error.
	KindNone ErrorKind = iota

	// KindCorruptCorpus indicates that the corpus could not be parsed.
	KindCorruptCorpus

	// KindStaleIndex indicates that a stored index does not match its
	// corpus or is unreadable.
	KindStaleIndex

	// KindCancelled indicates that the build was cancelled.
	KindCancelled

	// KindIO indicates an I/O or other failure.
	KindIO
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindCorruptCorpus:
		return "corrupt corpus"
	case KindStaleIndex:
		return "stale index"
	case KindCancelled:
		return "cancelled"
	case KindIO:
		return "io"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// KindOf returns the kind of err.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, extract.ErrCorruptCorpus):
		return KindCorruptCorpus
	case errors.Is(err, store.ErrStaleIndex), errors.Is(err, store.ErrCorruptIndex):
		return KindStaleIndex
	default:
		return KindIO
	}
}
