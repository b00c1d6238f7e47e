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
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ianlewis/go-bibindex"
	"github.com/ianlewis/go-bibindex/internal/httpapi"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:      "serve",
		Usage:     "serve queries over HTTP",
		ArgsUsage: "CORPUS",
		Description: "Serves the JSON query API. Queries return empty results until\n" +
			"the index of the corpus is loaded or built.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "listen on `ADDR`",
				EnvVars: []string{"BIBQ_ADDR"},
				Value:   "localhost:8080",
			},
			&cli.IntFlag{
				Name:  "max-results",
				Usage: "return at most `N` records per search",
				Value: httpapi.DefaultOptions.MaxResults,
			},
		},
		Action: func(c *cli.Context) error {
			a, err := args(c, 1)
			if err != nil {
				return err
			}

			log, err := newLogger(c)
			if err != nil {
				return err
			}
			e, err := newEngine(c)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := c.Context
			ok, err := e.Open(ctx, a[0])
			if err != nil {
				return fmt.Errorf("%w: loading index: %w", ErrBibq, err)
			}
			if !ok {
				job, err := e.Build(ctx, a[0])
				if err != nil {
					return fmt.Errorf("%w: %w", ErrBibq, err)
				}
				go func() {
					for ev := range job.Events() {
						if ev.Kind.Terminal() {
							log.Info("build finished", slog.String("result", ev.Kind.String()), slog.Any("err", ev.Err))
						}
					}
				}()
			}

			srv := &http.Server{
				Addr: c.String("addr"),
				Handler: httpapi.NewServer(e, log, &httpapi.Options{
					MaxResults: c.Int("max-results"),
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("listening", slog.String("addr", srv.Addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("%w: %w", ErrBibq, err)
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("%w: shutting down: %w", ErrBibq, err)
			}
			return nil
		},
	}
}

// Ensure the engine satisfies the server's interface.
var _ httpapi.Engine = (*bibindex.Engine)(nil)
