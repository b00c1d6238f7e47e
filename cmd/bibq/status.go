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
	"fmt"

	"github.com/urfave/cli/v2"
)

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "show the stored index of a corpus",
		ArgsUsage: "CORPUS",
		Action: func(c *cli.Context) error {
			a, err := args(c, 1)
			if err != nil {
				return err
			}

			e, err := newEngine(c)
			if err != nil {
				return err
			}
			defer e.Close()

			ok, err := e.Open(c.Context, a[0])
			if err != nil {
				return fmt.Errorf("%w: loading index: %w", ErrBibq, err)
			}
			if !ok {
				fmt.Fprintf(c.App.Writer, "No current index for %s in %s\n", a[0], e.Store().Dir())
				return nil
			}

			res, _ := e.Stats()
			printResult(c, res)
			return nil
		},
	}
}

func clearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "remove all stored indexes",
		Action: func(c *cli.Context) error {
			if _, err := args(c, 0); err != nil {
				return err
			}

			e, err := newEngine(c)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.ClearIndex(); err != nil {
				return fmt.Errorf("%w: %w", ErrBibq, err)
			}
			fmt.Fprintf(c.App.Writer, "Removed stored indexes in %s\n", e.Store().Dir())
			return nil
		},
	}
}
