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

// Package httpapi serves index queries as JSON over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ianlewis/go-bibindex"
	"github.com/ianlewis/go-bibindex/extract"
	"github.com/ianlewis/go-bibindex/record"
)

// Engine is the query interface served by a Server.
type Engine interface {
	State() bibindex.State
	Stats() (*bibindex.Result, bool)
	SearchAuthor(name string, limit int) (*bibindex.SearchResult, error)
	SearchTitle(title string, limit int) (*bibindex.SearchResult, error)
	Materialize(pos uint64) (*record.Record, error)
	Coauthors(name string) ([]bibindex.Coauthor, error)
}

// Options are options for a Server.
type Options struct {
	// MaxResults is the maximum number of records returned by a search.
	MaxResults int
}

// DefaultOptions is the default options for a Server.
var DefaultOptions = Options{
	MaxResults: 1000,
}

// Server is the HTTP query server.
type Server struct {
	router chi.Router
	engine Engine
	log    *slog.Logger
	opts   Options
}

// NewServer returns a Server for engine.
func NewServer(engine Engine, log *slog.Logger, opts *Options) *Server {
	if opts == nil {
		opts = &DefaultOptions
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		engine: engine,
		log:    log,
		opts:   *opts,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/search", s.handleSearch)
		r.Get("/coauthors", s.handleCoauthors)
		r.Get("/records/{pos}", s.handleRecord)
	})

	s.router = r
}

// RequestLogger logs each request.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusResponse is the body of /api/status.
type statusResponse struct {
	State    string         `json:"state"`
	Path     string         `json:"path,omitempty"`
	Records  int            `json:"records"`
	Errors   int            `json:"errors"`
	Counts   map[string]int `json:"counts,omitempty"`
	Authors  int            `json:"authors"`
	Titles   int            `json:"titles"`
	Encoding string         `json:"encoding,omitempty"`
	Loaded   bool           `json:"loaded"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		State: s.engine.State().String(),
	}
	if res, ok := s.engine.Stats(); ok {
		resp.Path = res.Identity.Path
		resp.Records = res.Records
		resp.Errors = res.Errors
		resp.Counts = res.Counts
		resp.Authors = res.Authors
		resp.Titles = res.Titles
		resp.Encoding = res.Encoding
		resp.Loaded = res.Loaded
	}
	writeJSON(w, http.StatusOK, resp)
}

// searchResponse is the body of /api/search.
type searchResponse struct {
	Field   string           `json:"field"`
	Query   string           `json:"query"`
	Total   int              `json:"total"`
	Results []*record.Record `json:"results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp := searchResponse{
		Results: []*record.Record{},
	}

	var (
		res *bibindex.SearchResult
		err error
	)
	switch {
	case q.Has("author"):
		resp.Field, resp.Query = "author", q.Get("author")
		res, err = s.engine.SearchAuthor(resp.Query, s.opts.MaxResults)
	case q.Has("title"):
		resp.Field, resp.Query = "title", q.Get("title")
		res, err = s.engine.SearchTitle(resp.Query, s.opts.MaxResults)
	default:
		jsonError(w, "author or title query parameter is required", http.StatusBadRequest)
		return
	}

	switch {
	case errors.Is(err, bibindex.ErrNotReady):
	case err != nil:
		jsonError(w, "searching: "+err.Error(), http.StatusInternalServerError)
		return
	default:
		resp.Total = res.Total
		for _, rec := range res.Records {
			rec = rec.Display()
			if resp.Field == "author" {
				// Author results list the records; the authors are known.
				rec.ClearAuthors()
			}
			resp.Results = append(resp.Results, rec)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// coauthorsResponse is the body of /api/coauthors.
type coauthorsResponse struct {
	Author    string              `json:"author"`
	Coauthors []bibindex.Coauthor `json:"coauthors"`
}

func (s *Server) handleCoauthors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("author") {
		jsonError(w, "author query parameter is required", http.StatusBadRequest)
		return
	}
	resp := coauthorsResponse{
		Author:    q.Get("author"),
		Coauthors: []bibindex.Coauthor{},
	}

	co, err := s.engine.Coauthors(resp.Author)
	switch {
	case errors.Is(err, bibindex.ErrNotReady):
	case err != nil:
		jsonError(w, "listing coauthors: "+err.Error(), http.StatusInternalServerError)
		return
	default:
		resp.Coauthors = append(resp.Coauthors, co...)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	pos, err := strconv.ParseUint(chi.URLParam(r, "pos"), 10, 64)
	if err != nil {
		jsonError(w, "invalid record position", http.StatusBadRequest)
		return
	}

	rec, err := s.engine.Materialize(pos)
	switch {
	case errors.Is(err, bibindex.ErrNotReady):
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	case errors.Is(err, extract.ErrInvalidPosition):
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, rec.Display())
}
