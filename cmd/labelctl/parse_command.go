package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JoelleM-design/veeni-app-sub002/internal/models"
)

func newParseCommand(opts *options) *cobra.Command {
	var enrich bool
	var fields []string

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse OCR text from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			if bad := models.UnknownFields(fields); len(bad) > 0 {
				return fmt.Errorf("unknown fields: %s (want one of %s)",
					strings.Join(bad, ", "), strings.Join(models.StructuralFields, ", "))
			}
			if (enrich || len(fields) > 0) && opts.remoteURL == "" {
				return fmt.Errorf("--enrich requires --remote")
			}

			p, err := opts.pipeline(cmd)
			if err != nil {
				return err
			}

			var (
				wine    models.ParsedWine
				warning string
			)
			switch {
			case strings.TrimSpace(text) == "":
				wine = p.Parse(text)
			case len(fields) > 0:
				rec := models.NewRecord(p.Parse(text))
				if err := p.EnrichFields(cmd.Context(), rec, fields); err != nil {
					warning = err.Error()
				}
				wine = rec.Snapshot()
			case enrich:
				wine, err = p.Process(cmd.Context(), text)
				if err != nil {
					warning = err.Error()
				}
			default:
				wine = p.Parse(text)
			}

			if warning != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: enrichment failed: %s\n", warning)
			}
			if opts.format == formatJSON {
				return writeJSON(cmd, wine)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderWine(wine))
			return nil
		},
	}

	cmd.Flags().BoolVar(&enrich, "enrich", false, "Request AI enrichment for missing fields")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "Request AI values for these fields, overriding local ones")
	return cmd
}

func renderWine(w models.ParsedWine) string {
	vintage := ""
	if w.Vintage != 0 {
		vintage = strconv.Itoa(w.Vintage)
	}
	rows := [][]string{
		{"Name", w.Name},
		{"Producer", w.Producer},
		{"Vintage", vintage},
		{"Type", string(w.WineType)},
		{"Appellation", w.Appellation},
		{"Region", w.Region},
		{"Country", w.Country},
		{"Grapes", strings.Join(w.GrapeVarieties, ", ")},
	}
	if !w.Price.IsZero() {
		rows = append(rows, []string{"Price", w.Price.StringFixed(2)})
	}
	if w.Rating != 0 {
		rows = append(rows, []string{"Rating", strconv.FormatFloat(w.Rating, 'f', -1, 64)})
	}
	rows = append(rows,
		[]string{"Confidence", strconv.Itoa(w.Confidence)},
		[]string{"Uncertain", strings.Join(w.UncertainFields, ", ")},
	)
	if len(w.EnrichedBy) > 0 {
		rows = append(rows, []string{"Enriched by", strings.Join(w.EnrichedBy, ", ")})
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}
