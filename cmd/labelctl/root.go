package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JoelleM-design/veeni-app-sub002/internal/ai"
	"github.com/JoelleM-design/veeni-app-sub002/internal/dataset"
	"github.com/JoelleM-design/veeni-app-sub002/internal/labels"
	"github.com/JoelleM-design/veeni-app-sub002/internal/pipeline"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	datasetPath      string
	dictionariesPath string
	remoteURL        string
	format           string
	timeout          time.Duration
	verbose          bool
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "labelctl",
		Short:         "Interpret wine label OCR text",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.format {
			case formatJSON, formatTable:
				return nil
			default:
				return fmt.Errorf("unsupported format %q (want json or table)", opts.format)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.datasetPath, "dataset", "", "Wine dataset file (yaml or json); the bundled dataset is used when empty")
	flags.StringVar(&opts.dictionariesPath, "dictionaries", "", "Dictionaries file; the bundled dictionaries are used when empty")
	flags.StringVar(&opts.remoteURL, "remote", "", "Base URL of a label service used for AI enrichment")
	flags.StringVarP(&opts.format, "format", "o", formatTable, "Output format: json or table")
	flags.DurationVar(&opts.timeout, "timeout", 20*time.Second, "Timeout for remote enrichment")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log pipeline events to stderr")

	rootCmd.AddCommand(newParseCommand(opts))
	rootCmd.AddCommand(newLookupCommand(opts))

	return rootCmd
}

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	if !o.verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (o *options) dictionaries() (*labels.Dictionaries, error) {
	if o.dictionariesPath == "" {
		return labels.DefaultDictionaries(), nil
	}
	return labels.LoadDictionaries(o.dictionariesPath)
}

func (o *options) dataset() (*dataset.Dataset, error) {
	if o.datasetPath == "" {
		return dataset.Embedded()
	}
	return dataset.LoadFile(o.datasetPath)
}

// pipeline assembles the local parser, the dataset and, when --remote is
// set, a remote enrichment client.
func (o *options) pipeline(cmd *cobra.Command) (*pipeline.Pipeline, error) {
	dict, err := o.dictionaries()
	if err != nil {
		return nil, err
	}
	ds, err := o.dataset()
	if err != nil {
		return nil, err
	}
	logger := o.logger(cmd)
	parser := labels.NewParser(dict, logger)

	popts := pipeline.Options{
		Dataset: ds,
		Timeout: o.timeout,
		Logger:  logger,
	}
	if o.remoteURL != "" {
		popts.Client = ai.NewRemoteClient(o.remoteURL, parser.Normalizer(), ai.WithLogger(logger))
	}
	return pipeline.New(parser, popts), nil
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(data), nil
}
