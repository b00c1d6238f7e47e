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
	"strconv"
	"strings"

	"github.com/rodaine/table"
	"github.com/urfave/cli/v2"

	"github.com/ianlewis/go-bibindex"
)

func limitFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "limit",
		Usage:   "print at most `N` records (0 for all)",
		Aliases: []string{"n"},
		Value:   50,
	}
}

func authorCommand() *cli.Command {
	return &cli.Command{
		Name:      "author",
		Usage:     "list the records of an author",
		ArgsUsage: "CORPUS NAME",
		Flags:     []cli.Flag{limitFlag()},
		Action: func(c *cli.Context) error {
			return search(c, (*bibindex.Engine).SearchAuthor, false)
		},
	}
}

func titleCommand() *cli.Command {
	return &cli.Command{
		Name:      "title",
		Usage:     "list the records with a title",
		ArgsUsage: "CORPUS TITLE",
		Flags:     []cli.Flag{limitFlag()},
		Action: func(c *cli.Context) error {
			return search(c, (*bibindex.Engine).SearchTitle, true)
		},
	}
}

// search runs a lookup and prints the matching records. Author names are
// printed for title searches.
func search(c *cli.Context, find func(*bibindex.Engine, string, int) (*bibindex.SearchResult, error), withAuthors bool) error {
	a, err := args(c, 2)
	if err != nil {
		return err
	}

	e, err := newEngine(c)
	if err != nil {
		return err
	}
	defer e.Close()

	if _, err := openIndex(c.Context, c, e, a[0]); err != nil {
		return err
	}

	res, err := find(e, a[1], c.Int("limit"))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBibq, err)
	}

	headers := []interface{}{"POS", "TITLE", "MDATE", "KEY"}
	if withAuthors {
		headers = []interface{}{"POS", "TITLE", "YEAR", "AUTHORS"}
	}
	tbl := table.New(headers...).WithWriter(c.App.Writer)
	for _, r := range res.Records {
		r = r.Display()
		if withAuthors {
			tbl.AddRow(r.Pos, r.Title, r.Year, strings.Join(r.Authors, ", "))
		} else {
			tbl.AddRow(r.Pos, r.Title, r.MDate, r.Key)
		}
	}
	tbl.Print()

	if res.Total > len(res.Records) {
		fmt.Fprintf(c.App.Writer, "\n%d of %d records shown\n", len(res.Records), res.Total)
	}
	return nil
}

func coauthorsCommand() *cli.Command {
	return &cli.Command{
		Name:      "coauthors",
		Usage:     "list the co-authors of an author",
		ArgsUsage: "CORPUS NAME",
		Action: func(c *cli.Context) error {
			a, err := args(c, 2)
			if err != nil {
				return err
			}

			e, err := newEngine(c)
			if err != nil {
				return err
			}
			defer e.Close()

			if _, err := openIndex(c.Context, c, e, a[0]); err != nil {
				return err
			}

			co, err := e.Coauthors(a[1])
			if err != nil {
				return fmt.Errorf("%w: %w", ErrBibq, err)
			}
			tbl := table.New("NAME", "RECORDS").WithWriter(c.App.Writer)
			for _, ca := range co {
				tbl.AddRow(ca.Name, ca.Count)
			}
			tbl.Print()
			return nil
		},
	}
}

func recordCommand() *cli.Command {
	return &cli.Command{
		Name:      "record",
		Usage:     "print the record at a position",
		ArgsUsage: "CORPUS POS",
		Action: func(c *cli.Context) error {
			a, err := args(c, 2)
			if err != nil {
				return err
			}
			pos, err := strconv.ParseUint(a[1], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: invalid position %q", ErrFlagParse, a[1])
			}

			e, err := newEngine(c)
			if err != nil {
				return err
			}
			defer e.Close()

			if _, err := openIndex(c.Context, c, e, a[0]); err != nil {
				return err
			}

			r, err := e.Materialize(pos)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrBibq, err)
			}
			r = r.Display()

			w := c.App.Writer
			fmt.Fprintf(w, "Type:    %s\n", r.Type)
			fmt.Fprintf(w, "Key:     %s\n", r.Key)
			fmt.Fprintf(w, "MDate:   %s\n", r.MDate)
			fmt.Fprintf(w, "Title:   %s\n", r.Title)
			fmt.Fprintf(w, "Year:    %s\n", r.Year)
			for i, au := range r.Authors {
				label := ""
				if i == 0 {
					label = "Authors:"
				}
				fmt.Fprintf(w, "%-8s %s\n", label, au)
			}
			return nil
		},
	}
}
