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
	"log/slog"
	"time"

	"github.com/ianlewis/go-bibindex/extract"
	"github.com/ianlewis/go-bibindex/internal/folding"
	"github.com/ianlewis/go-bibindex/store"
)

// Key folding names accepted by Options.Folding.
const (
	FoldNone       = folding.None
	FoldWhitespace = folding.Whitespace
	FoldCase       = folding.Case
	FoldFull       = folding.Full
)

// Options are options for an Engine.
type Options struct {
	// StoreDir is the directory built indexes are saved to. If empty,
	// indexes are not persisted.
	StoreDir string

	// Compression is the compression of saved index files.
	Compression store.Compression

	// Folding is the name of the key normalization applied to indexed keys
	// and queries. See FoldNone, FoldWhitespace, FoldCase and FoldFull.
	Folding string

	// Extract selects the record fields that are indexed.
	Extract *extract.Options

	// Logger receives log messages. If nil, nothing is logged.
	Logger *slog.Logger

	// ProgressInterval is the minimum time between progress events.
	ProgressInterval time.Duration

	// EventBuffer is the capacity of a Job's event channel. Progress events
	// are dropped when the buffer is full.
	EventBuffer int
}

// DefaultOptions are the default options for an Engine.
var DefaultOptions = Options{
	Compression:      store.CompressionZstd,
	Folding:          FoldNone,
	Extract:          extract.DefaultOptions,
	ProgressInterval: 100 * time.Millisecond,
	EventBuffer:      16,
}

// FoldingNames returns the accepted folding names.
func FoldingNames() []string {
	return folding.Names()
}
