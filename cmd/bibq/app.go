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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"
	"sigs.k8s.io/release-utils/version"

	"github.com/ianlewis/go-bibindex"
	"github.com/ianlewis/go-bibindex/store"
)

const (
	// ExitCodeSuccess is successful error code.
	ExitCodeSuccess int = iota

	// ExitCodeFlagParseError is the exit code for a flag parsing error.
	ExitCodeFlagParseError

	// ExitCodeUnknownError is the exit code for an unknown error.
	ExitCodeUnknownError
)

// ErrBibq is a parent error for all command errors.
var ErrBibq = errors.New("bibq")

// ErrFlagParse is a flag parsing error.
var ErrFlagParse = fmt.Errorf("%w: parsing flags", ErrBibq)

var copyrightNames = []string{
	"2026 Ian Lewis",
}

//nolint:gochecknoinits // init needed needed for global variable.
func init() {
	// Set the HelpFlag to a random name so that it isn't used. `cli` handles
	// the flag with the root command such that it takes a command name argument
	// but the help flag is defined explicitly below.
	//
	// This flag is hidden by the help output.
	// See: github.com/urfave/cli/issues/1809
	cli.HelpFlag = &cli.BoolFlag{
		// NOTE: Use a random name no one would guess.
		Name:               "d41d8cd98f00b204e980",
		DisableDefaultText: true,
	}
}

// check checks the error and panics if not nil.
func check(err error) {
	if err != nil {
		panic(err)
	}
}

func newBibqApp() *cli.App {
	return &cli.App{
		Name:  filepath.Base(os.Args[0]),
		Usage: "Index and search XML bibliographies.",
		Description: strings.Join([]string{
			"Bibliography indexer written in Go.",
			"http://github.com/ianlewis/go-bibindex",
		}, "\n"),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "index-dir",
				Usage:   "store built indexes in `DIR`",
				EnvVars: []string{"BIBQ_INDEX_DIR"},
				Value:   indexLocation(),
			},
			&cli.StringFlag{
				Name:  "fold",
				Usage: "key normalization `NAME` (" + strings.Join(bibindex.FoldingNames(), ", ") + ")",
				Value: bibindex.FoldNone,
			},
			&cli.StringFlag{
				Name:  "compression",
				Usage: "index file compression `NAME` (zstd, lz4, none)",
				Value: store.CompressionZstd.String(),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log `LEVEL` (debug, info, warn, error)",
				Value: "warn",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log `FORMAT` (text, json)",
				Value: "text",
			},

			// Special flags are shown at the end.
			&cli.BoolFlag{
				Name:               "help",
				Usage:              "print this help text and exit",
				Aliases:            []string{"h"},
				DisableDefaultText: true,
			},
			&cli.BoolFlag{
				Name:               "version",
				Usage:              "print version information and exit",
				Aliases:            []string{"V"},
				DisableDefaultText: true,
			},
		},
		Copyright:       strings.Join(copyrightNames, "\n"),
		HideHelp:        true,
		HideHelpCommand: true,
		OnUsageError: func(_ *cli.Context, err error, _ bool) error {
			return fmt.Errorf("%w: %w", ErrFlagParse, err)
		},
		Action: func(c *cli.Context) error {
			if c.Bool("version") {
				return printVersion(c)
			}

			check(cli.ShowAppHelp(c))
			return nil
		},
		Commands: []*cli.Command{
			buildCommand(),
			authorCommand(),
			titleCommand(),
			coauthorsCommand(),
			recordCommand(),
			statusCommand(),
			clearCommand(),
			serveCommand(),
		},
	}
}

func printVersion(c *cli.Context) error {
	info := version.GetVersionInfo()
	fmt.Fprintf(c.App.Writer, "%s %s\n", c.App.Name, info.GitVersion)
	fmt.Fprintln(c.App.Writer, "Copyright (c)", c.App.Copyright)
	fmt.Fprintln(c.App.Writer)
	fmt.Fprint(c.App.Writer, info.String())
	fmt.Fprintln(c.App.Writer)
	return nil
}

// newLogger returns the logger configured by the global flags.
func newLogger(c *cli.Context) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		return nil, fmt.Errorf("%w: --log-level: %w", ErrFlagParse, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch format := c.String("log-format"); format {
	case "text":
		return slog.New(slog.NewTextHandler(c.App.ErrWriter, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(c.App.ErrWriter, opts)), nil
	default:
		return nil, fmt.Errorf("%w: --log-format: unknown format %q", ErrFlagParse, format)
	}
}

// newEngine returns an Engine configured by the global flags.
func newEngine(c *cli.Context) (*bibindex.Engine, error) {
	log, err := newLogger(c)
	if err != nil {
		return nil, err
	}
	compression, err := store.ParseCompression(c.String("compression"))
	if err != nil {
		return nil, fmt.Errorf("%w: --compression: %w", ErrFlagParse, err)
	}

	dir := c.String("index-dir")
	if dir == "" {
		return nil, fmt.Errorf("%w: --index-dir is required", ErrFlagParse)
	}

	opts := bibindex.DefaultOptions
	opts.StoreDir = dir
	opts.Compression = compression
	opts.Folding = c.String("fold")
	opts.Logger = log

	e, err := bibindex.New(&opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBibq, err)
	}
	return e, nil
}

// openIndex loads the stored index of the corpus at path or builds it.
func openIndex(ctx context.Context, c *cli.Context, e *bibindex.Engine, path string) (*bibindex.Result, error) {
	ok, err := e.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: loading index: %w", ErrBibq, err)
	}
	if ok {
		res, _ := e.Stats()
		return res, nil
	}
	return buildIndex(ctx, c, e, path)
}

// buildIndex builds the index of the corpus at path, reporting progress on
// stderr.
func buildIndex(ctx context.Context, c *cli.Context, e *bibindex.Engine, path string) (*bibindex.Result, error) {
	job, err := e.Build(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBibq, err)
	}
	for ev := range job.Events() {
		if ev.Kind == bibindex.EventProgress {
			fmt.Fprintf(c.App.ErrWriter, "\rindexing %s: %3.0f%%", filepath.Base(path), ev.Ratio*100)
		}
	}
	fmt.Fprintln(c.App.ErrWriter)

	res, err := job.Wait()
	if err != nil {
		return nil, fmt.Errorf("%w: building index (%v): %w", ErrBibq, bibindex.KindOf(err), err)
	}
	return res, nil
}

// args returns the command's positional arguments, which must number n.
func args(c *cli.Context, n int) ([]string, error) {
	if c.NArg() != n {
		return nil, fmt.Errorf("%w: expected %d arguments, got %d", ErrFlagParse, n, c.NArg())
	}
	return c.Args().Slice(), nil
}
