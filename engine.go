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
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"github.com/ianlewis/go-bibindex/corpus"
	"github.com/ianlewis/go-bibindex/extract"
	"github.com/ianlewis/go-bibindex/internal/folding"
	"github.com/ianlewis/go-bibindex/internal/index"
	"github.com/ianlewis/go-bibindex/record"
	"github.com/ianlewis/go-bibindex/store"
)

// State is the state of an Engine.
type State int32

const (
	// StateUninitialized means no index is loaded.
	StateUninitialized State = iota

	// StateParsing means a build is running.
	StateParsing

	// StateReady means an index is loaded and queries are served.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateParsing:
		return "parsing"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Coauthor is an author sharing records with a queried author.
type Coauthor struct {
	// Name is the author name as it appears in the records.
	Name string `json:"name"`

	// Count is the number of shared records.
	Count int `json:"count"`
}

// Engine builds, loads and queries the index of one corpus at a time.
// Queries are safe to call concurrently with each other and with builds.
type Engine struct {
	opts     Options
	log      *slog.Logger
	store    *store.Store
	folder   func() transform.Transformer
	foldName string

	cur   atomic.Pointer[session]
	state atomic.Int32

	// mu serializes builds, loads and session changes.
	mu     sync.Mutex
	job    *Job
	closed bool
}

// New returns a new Engine.
func New(opts *Options) (*Engine, error) {
	if opts == nil {
		opts = &DefaultOptions
	}
	e := &Engine{
		opts: *opts,
		log:  opts.Logger,
	}
	if e.log == nil {
		e.log = slog.New(slog.DiscardHandler)
	}
	if e.opts.Extract == nil {
		e.opts.Extract = extract.DefaultOptions
	}

	folder, err := folding.Lookup(opts.Folding)
	if err != nil {
		return nil, err
	}
	e.folder = folder
	e.foldName = opts.Folding
	if e.foldName == "" {
		e.foldName = folding.None
	}

	if opts.StoreDir != "" {
		e.store, err = store.New(opts.StoreDir, &store.Options{
			Compression: opts.Compression,
		})
		if err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Store returns the index store or nil if indexes are not persisted.
func (e *Engine) Store() *store.Store {
	return e.store
}

// State returns the current state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// IsReady reports whether queries are served.
func (e *Engine) IsReady() bool {
	return e.State() == StateReady
}

// Stats returns the result of the build or load of the current index.
func (e *Engine) Stats() (*Result, bool) {
	s := e.acquire()
	if s == nil {
		return nil, false
	}
	defer s.release()
	res := *s.result
	return &res, true
}

// Build starts building the index of the corpus at path in the background.
// The current index, if any, is dropped. Only one build runs at a time.
func (e *Engine) Build(ctx context.Context, path string) (*Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	if e.job != nil && e.job.running() {
		return nil, ErrBuildInProgress
	}

	ctx, cancel := context.WithCancel(ctx)
	job := newJob(cancel, e.opts.EventBuffer, e.opts.ProgressInterval)
	e.job = job
	e.retire(StateParsing)

	go e.run(ctx, job, path)

	return job, nil
}

func (e *Engine) run(ctx context.Context, job *Job, path string) {
	start := time.Now()
	log := e.log.With(slog.String("path", path))
	log.Info("building index")

	sess, err := e.build(ctx, job, path)
	if err == nil {
		sess.result.Duration = time.Since(start)
	}

	e.mu.Lock()
	if err == nil {
		e.publish(sess)
	} else {
		e.state.Store(int32(StateUninitialized))
	}
	e.mu.Unlock()

	var res *Result
	switch KindOf(err) {
	case KindNone:
		res = sess.result
		log.Info("index ready",
			slog.Int("records", res.Records),
			slog.Int("errors", res.Errors),
			slog.Duration("duration", res.Duration),
		)
	case KindCancelled:
		log.Info("build cancelled")
	default:
		log.Error("build failed", slog.Any("err", err))
	}

	job.finish(res, err)
}

// build scans the corpus and returns the new session. The corpus buffer is
// released on failure.
func (e *Engine) build(ctx context.Context, job *Job, path string) (_ *session, err error) {
	buf, err := corpus.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = buf.Close()
		}
	}()

	data := buf.Bytes()
	sc := extract.NewScanner(data, e.opts.Extract)
	size := float64(max(sc.Len(), 1))

	var (
		b   *index.Builder
		enc encoding.Encoding
	)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		if b == nil {
			enc, b = e.newBuilder(data, sc.Encoding(), path)
		}

		rec := sc.Record()
		for _, a := range rec.Authors {
			if err := b.Add(index.Author, rec.Pos, a); err != nil {
				return nil, err
			}
		}
		if rec.HasTitle {
			if err := b.Add(index.Title, rec.Pos, rec.Title); err != nil {
				return nil, err
			}
		}

		job.report(float64(sc.Offset()) / size)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if b == nil {
		enc, b = e.newBuilder(data, sc.Encoding(), path)
	}

	set, err := b.Build(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		return nil, err
	}

	stats := sc.Stats()
	res := &Result{
		Stats:    stats,
		Identity: buf.Identity(),
		Authors:  set.Author.Len(),
		Titles:   set.Title.Len(),
	}

	if e.store != nil {
		if err := e.store.Save(&store.Snapshot{
			Identity:  buf.Identity(),
			CorpusLen: uint64(buf.Len()),
			Folding:   e.foldName,
			Stats:     stats,
			Arena:     set.Text.Arena(),
			Authors:   set.Author.Entries(),
			Titles:    set.Title.Entries(),
		}); err != nil {
			// The index is still usable for this session.
			e.log.Warn("saving index", slog.String("path", path), slog.Any("err", err))
		}
	}

	return newSession(buf, set, enc, &e.opts, res), nil
}

// newBuilder returns the corpus encoding and a Builder for its keys. Folded
// keys of corpora that are not UTF-8 are decoded before folding.
func (e *Engine) newBuilder(data []byte, name, path string) (encoding.Encoding, *index.Builder) {
	enc, err := record.Encoding(name)
	if err != nil {
		e.log.Warn("treating corpus as UTF-8", slog.String("path", path), slog.Any("err", err))
	}
	opts := &index.BuilderOptions{Folder: e.folder}
	if enc != nil {
		opts.Decoder = func() transform.Transformer {
			return enc.NewDecoder()
		}
	}
	return enc, index.NewBuilder(data, opts)
}

// Open loads the stored index of the corpus at path. It returns false if
// there is no usable stored index, in which case the corpus must be built.
// Stale stored indexes are removed.
func (e *Engine) Open(ctx context.Context, path string) (bool, error) {
	if e.store == nil {
		return false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false, ErrClosed
	}
	if e.job != nil && e.job.running() {
		return false, ErrBuildInProgress
	}
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	start := time.Now()
	log := e.log.With(slog.String("path", path))

	snap, err := e.store.Load(path)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	case errors.Is(err, store.ErrStaleIndex), errors.Is(err, store.ErrCorruptIndex):
		log.Info("discarding stored index", slog.Any("err", err))
		return false, e.store.Remove(path)
	case err != nil:
		return false, err
	}
	if snap.Folding != e.foldName {
		log.Info("discarding stored index",
			slog.String("folding", snap.Folding),
			slog.String("want", e.foldName),
		)
		return false, e.store.Remove(path)
	}

	buf, err := corpus.Open(path)
	if err != nil {
		return false, err
	}
	if !buf.Identity().Equal(snap.Identity) || uint64(buf.Len()) != snap.CorpusLen {
		_ = buf.Close()
		log.Info("discarding stored index", slog.String("reason", "corpus changed"))
		return false, e.store.Remove(path)
	}

	enc, err := record.Encoding(snap.Stats.Encoding)
	if err != nil {
		log.Warn("treating corpus as UTF-8", slog.Any("err", err))
	}

	set := index.NewSet(snap.Text(buf.Bytes()), snap.Authors, snap.Titles, e.folder)
	res := &Result{
		Stats:    snap.Stats,
		Identity: snap.Identity,
		Authors:  set.Author.Len(),
		Titles:   set.Title.Len(),
		Duration: time.Since(start),
		Loaded:   true,
	}

	e.retire(StateUninitialized)
	e.publish(newSession(buf, set, enc, &e.opts, res))

	log.Info("index loaded",
		slog.Int("records", res.Records),
		slog.Duration("duration", res.Duration),
	)
	return true, nil
}

// publish makes s the current session. e.mu must be held.
func (e *Engine) publish(s *session) {
	e.cur.Store(s)
	e.state.Store(int32(StateReady))
}

// retire drops the current session and sets the state. It waits for readers
// of the old session before releasing its buffer. e.mu must be held.
func (e *Engine) retire(next State) {
	old := e.cur.Swap(nil)
	e.state.Store(int32(next))
	if old != nil {
		if err := old.close(); err != nil {
			e.log.Warn("releasing corpus", slog.Any("err", err))
		}
	}
}

// acquire returns the current session for reading or nil. The caller must
// release it.
func (e *Engine) acquire() *session {
	s := e.cur.Load()
	if s == nil || !s.acquire() {
		return nil
	}
	return s
}

// wait cancels a running build and waits for it to finish.
func (e *Engine) wait() {
	e.mu.Lock()
	job := e.job
	e.mu.Unlock()
	if job != nil {
		job.Cancel()
		<-job.Done()
	}
}

// ClearIndex cancels a running build, drops the current index and removes
// all stored indexes.
func (e *Engine) ClearIndex() error {
	e.wait()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.retire(StateUninitialized)
	if e.store != nil {
		if err := e.store.Clear(); err != nil {
			return err
		}
	}
	e.log.Info("index cleared")
	return nil
}

// Close cancels a running build and releases the current index. Stored
// indexes are kept.
func (e *Engine) Close() error {
	e.wait()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.retire(StateUninitialized)
	return nil
}

// FindByAuthor returns the positions of the records with an author equal to
// name, in corpus order. It returns nil if no index is ready.
func (e *Engine) FindByAuthor(name string) []uint64 {
	return e.find(index.Author, name)
}

// FindByTitle returns the positions of the records with a title equal to
// title, in corpus order. It returns nil if no index is ready.
func (e *Engine) FindByTitle(title string) []uint64 {
	return e.find(index.Title, title)
}

func (e *Engine) find(kind index.Kind, q string) []uint64 {
	s := e.acquire()
	if s == nil {
		return nil
	}
	defer s.release()

	pos, err := s.lookup(kind, q)
	if err != nil {
		e.log.Debug("lookup", slog.String("kind", kind.String()), slog.Any("err", err))
		return nil
	}
	return pos
}

// Materialize decodes the record at pos. Only positions of indexed records,
// as returned by FindByAuthor and FindByTitle, are accepted. Other positions
// return [extract.ErrInvalidPosition].
func (e *Engine) Materialize(pos uint64) (*record.Record, error) {
	s := e.acquire()
	if s == nil {
		return nil, ErrNotReady
	}
	defer s.release()
	if !s.isRecord(pos) {
		return nil, fmt.Errorf("%w: %d", extract.ErrInvalidPosition, pos)
	}
	return s.mat.Record(pos)
}

// SearchResult is the result of SearchAuthor and SearchTitle.
type SearchResult struct {
	// Total is the number of matching records.
	Total int

	// Records are the matching records in corpus order, up to the limit.
	Records []*record.Record
}

// SearchAuthor returns the records with an author equal to name. The lookup
// and the decoding of the records use the same index, even if a build
// replaces it in the meantime. A limit of zero or less returns all records.
func (e *Engine) SearchAuthor(name string, limit int) (*SearchResult, error) {
	return e.search(index.Author, name, limit)
}

// SearchTitle returns the records with a title equal to title. See
// SearchAuthor.
func (e *Engine) SearchTitle(title string, limit int) (*SearchResult, error) {
	return e.search(index.Title, title, limit)
}

func (e *Engine) search(kind index.Kind, q string, limit int) (*SearchResult, error) {
	s := e.acquire()
	if s == nil {
		return nil, ErrNotReady
	}
	defer s.release()

	pos, err := s.lookup(kind, q)
	if err != nil {
		return nil, err
	}
	res := &SearchResult{Total: len(pos)}
	if limit > 0 && len(pos) > limit {
		pos = pos[:limit]
	}
	res.Records = make([]*record.Record, 0, len(pos))
	for _, p := range pos {
		r, err := s.mat.Record(p)
		if err != nil {
			return nil, err
		}
		res.Records = append(res.Records, r)
	}
	return res, nil
}

// Coauthors returns the authors who share records with name, ordered by the
// number of shared records and then by name. The queried author is excluded
// using the index's key folding.
func (e *Engine) Coauthors(name string) ([]Coauthor, error) {
	s := e.acquire()
	if s == nil {
		return nil, ErrNotReady
	}
	defer s.release()

	pos, err := s.lookup(index.Author, name)
	if err != nil {
		return nil, err
	}

	// An author may be listed twice in one record.
	records := roaring64.New()
	for _, p := range pos {
		records.Add(p)
	}

	self, err := s.set.Fold([]byte(name))
	if err != nil {
		return nil, err
	}

	isSelf := func(a string) (bool, error) {
		key, err := s.set.Fold([]byte(a))
		if err != nil {
			return false, err
		}
		return string(key) == string(self), nil
	}

	counts := map[string]int{}
	for _, p := range records.ToArray() {
		r, err := s.mat.Record(p)
		if err != nil {
			return nil, err
		}
		for _, a := range r.Coauthors(name) {
			ok, err := isSelf(a)
			if err != nil {
				return nil, err
			}
			if !ok {
				counts[a]++
			}
		}
	}

	out := make([]Coauthor, 0, len(counts))
	for n, c := range counts {
		out = append(out, Coauthor{Name: n, Count: c})
	}
	slices.SortFunc(out, func(a, b Coauthor) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out, nil
}
