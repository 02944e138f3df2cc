package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dgallion1/protocorpus/internal/corpus"
	"github.com/dgallion1/protocorpus/internal/document"
	"github.com/dgallion1/protocorpus/internal/metadata"
	"github.com/spf13/cobra"
)

func listCmd(opts *options) *cobra.Command {
	var years corpus.YearRange
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List protocol files, optionally by year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := opts.indexer().List(opts.cfg.CorpusRoot, years)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for path, err := range seq {
				if err != nil {
					return err
				}
				fmt.Fprintln(out, path)
			}
			return nil
		},
	}
	addYearFlags(cmd, &years, 0, 0)
	return cmd
}

func metadataCmd(opts *options) *cobra.Command {
	var (
		years   corpus.YearRange
		summary bool
	)
	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Infer metadata for every listed protocol (CSV)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := opts.indexer().List(opts.cfg.CorpusRoot, years)
			if err != nil {
				return err
			}
			var records []metadata.ProtocolMetadata
			for path, err := range seq {
				if err != nil {
					return err
				}
				records = append(records, metadata.Infer(filepath.Base(path)))
			}

			if summary {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(metadata.Summarize(records))
			}
			return metadata.WriteCSV(cmd.OutOrStdout(), records)
		},
	}
	addYearFlags(cmd, &years, 0, 0)
	cmd.Flags().BoolVar(&summary, "summary", false, "Print per-year and per-chamber counts as JSON")
	return cmd
}

func elementsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "elements <file>",
		Short: "Print the content elements of one protocol in document order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := document.ReadFile(args[0])
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tID\tWHO\tTAG")
			for el := range opts.walker().Elements(doc) {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					el.Kind,
					el.Node.SelectAttrValue("xml:id", "-"),
					el.Node.SelectAttrValue("who", "-"),
					el.Tag(),
				)
			}
			return tw.Flush()
		},
	}
}

func html2xmlCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "html2xml <in.html> <out.xml>",
		Short: "Convert an HTML protocol rendition to well-formed XML",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			doc, err := document.ReadHTML(in)
			if err != nil {
				return fmt.Errorf("convert %s: %w", args[0], err)
			}
			if err := document.WriteFile(doc, args[1]); err != nil {
				return err
			}
			opts.log.Info("converted", "in", args[0], "out", args[1], "title", document.Title(doc))
			return nil
		},
	}
}
