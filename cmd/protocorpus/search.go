package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/dgallion1/protocorpus/internal/corpus"
	"github.com/dgallion1/protocorpus/internal/search"
	"github.com/spf13/cobra"
)

func indexCmd(opts *options) *cobra.Command {
	var years corpus.YearRange
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the utterance search index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := opts.indexer().List(opts.cfg.CorpusRoot, years)
			if err != nil {
				return err
			}

			idx, err := search.Create(opts.cfg.IndexDir)
			if err != nil {
				return err
			}
			defer idx.Close()

			stats, err := idx.IndexCorpus(cmd.Context(), opts.walker(), paths, func(path string, err error) {
				opts.log.Warn("skipping document", "path", path, "error", err)
			})
			if err != nil {
				return err
			}
			opts.log.Info("index built", "dir", opts.cfg.IndexDir,
				"documents", stats.Documents, "utterances", stats.Utterances, "failed", stats.Failed)
			return json.NewEncoder(cmd.OutOrStdout()).Encode(stats)
		},
	}
	addYearFlags(cmd, &years, 0, 0)
	return cmd
}

func searchCmd(opts *options) *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed utterances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := search.Open(opts.cfg.IndexDir)
			if err != nil {
				return err
			}
			defer idx.Close()

			res, err := idx.Search(args[0], size)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "%d hits\n", res.Total)
			for _, h := range res.Hits {
				fmt.Fprintf(tw, "%.3f\t%s\t%s\t%s\n", h.Score, h.ID, h.Who, h.Text)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&size, "size", "n", 10, "Maximum number of hits")
	return cmd
}
