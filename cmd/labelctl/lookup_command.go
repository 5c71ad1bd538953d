package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JoelleM-design/veeni-app-sub002/internal/models"
)

func newLookupCommand(opts *options) *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "lookup <name>",
		Short: "Find a wine in the dataset",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := opts.dataset()
			if err != nil {
				return err
			}
			name := strings.Join(args, " ")
			entry, ok := ds.Find(name, year)
			if !ok {
				return fmt.Errorf("no dataset entry matches %q", name)
			}
			if opts.format == formatJSON {
				return writeJSON(cmd, entry)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderEntry(entry))
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Vintage to match (ignored when 0)")
	return cmd
}

func renderEntry(e models.DatasetEntry) string {
	year := ""
	if e.Year != 0 {
		year = strconv.Itoa(e.Year)
	}
	rating := ""
	if e.Rating != 0 {
		rating = strconv.FormatFloat(e.Rating, 'f', -1, 64)
	}
	price := ""
	if !e.Price.IsZero() {
		price = e.Price.StringFixed(2)
	}
	headers := []string{"Name", "Year", "Producer", "Region", "Country", "Grapes", "Price", "Rating"}
	rows := [][]string{{
		e.Name, year, e.Producer, e.Region, e.Country,
		strings.Join(e.Grapes, ", "), price, rating,
	}}
	aligns := []columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight}
	return renderTable(headers, rows, aligns)
}
