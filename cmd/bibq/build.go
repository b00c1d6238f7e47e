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
	"maps"
	"slices"

	"github.com/rodaine/table"
	"github.com/urfave/cli/v2"

	"github.com/ianlewis/go-bibindex"
)

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "build the index of a corpus",
		ArgsUsage: "CORPUS",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "rebuild even if a stored index is current",
			},
		},
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

			var res *bibindex.Result
			if c.Bool("force") {
				res, err = buildIndex(c.Context, c, e, a[0])
			} else {
				res, err = openIndex(c.Context, c, e, a[0])
			}
			if err != nil {
				return err
			}

			printResult(c, res)
			return nil
		},
	}
}

// printResult prints a summary of an index followed by the record counts per
// type.
func printResult(c *cli.Context, res *bibindex.Result) {
	w := c.App.Writer
	fmt.Fprintf(w, "Corpus:    %s\n", res.Identity.Path)
	if res.Loaded {
		fmt.Fprintf(w, "Loaded in: %s\n", res.Duration)
	} else {
		fmt.Fprintf(w, "Built in:  %s\n", res.Duration)
	}
	fmt.Fprintf(w, "XML:       version %s, encoding %s\n", res.Version, res.Encoding)
	if res.DTDName != "" {
		fmt.Fprintf(w, "DOCTYPE:   %s %s\n", res.DTDName, res.DTDSystemID)
	}
	fmt.Fprintf(w, "Records:   %d\n", res.Records)
	fmt.Fprintf(w, "Errors:    %d\n", res.Errors)
	fmt.Fprintf(w, "Authors:   %d\n", res.Authors)
	fmt.Fprintf(w, "Titles:    %d\n", res.Titles)
	fmt.Fprintln(w)

	tbl := table.New("TYPE", "RECORDS").WithWriter(w)
	for _, typ := range slices.Sorted(maps.Keys(res.Counts)) {
		tbl.AddRow(typ, res.Counts[typ])
	}
	tbl.Print()
}
