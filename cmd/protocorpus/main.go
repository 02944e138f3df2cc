// Package main provides the protocorpus command line tool for listing,
// inspecting, editing and indexing a corpus of parliamentary TEI protocols.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgallion1/protocorpus/internal/config"
	"github.com/dgallion1/protocorpus/internal/corpus"
	"github.com/dgallion1/protocorpus/internal/logging"
	"github.com/dgallion1/protocorpus/internal/tei"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "protocorpus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the persistent flags and the configuration resolved from
// them before any subcommand runs.
type options struct {
	configPath string
	root       string
	ext        string
	namespace  string
	indexDir   string
	logLevel   string
	logFormat  string

	cfg config.Config
	log *slog.Logger
}

func rootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Parliamentary protocol corpus tool",
		Long: `protocorpus works on a directory tree of TEI-encoded parliamentary
protocols. It lists protocols by year, infers metadata from filenames,
walks protocol content elements, removes attributes in bulk and maintains
a full-text index of utterances.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	f.StringVar(&opts.root, "root", "", "Corpus root directory (overrides CORPUS_ROOT)")
	f.StringVar(&opts.ext, "ext", "", "Document file extension (overrides DOCUMENT_EXT)")
	f.StringVar(&opts.namespace, "namespace", "", "TEI namespace URI (overrides TEI_NAMESPACE)")
	f.StringVar(&opts.indexDir, "index-dir", "", "Search index directory (overrides INDEX_DIR)")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.StringVar(&opts.logFormat, "log-format", "", "Log format (json, text)")

	cmd.AddCommand(
		listCmd(opts),
		metadataCmd(opts),
		elementsCmd(opts),
		checkCmd(opts),
		removeAttributeCmd(opts),
		html2xmlCmd(opts),
		indexCmd(opts),
		searchCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)

	return cmd
}

// load resolves configuration in order: environment, config file, flags.
func (o *options) load(cmd *cobra.Command) error {
	cfg := config.Load()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(o.configPath, cfg); err != nil {
			return err
		}
	}
	cfg.Merge(config.Config{
		CorpusRoot:   o.root,
		DocumentExt:  o.ext,
		TEINamespace: o.namespace,
		IndexDir:     o.indexDir,
		LogLevel:     o.logLevel,
		LogFormat:    o.logFormat,
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	o.cfg = cfg
	o.log = logging.New(cfg, cmd.ErrOrStderr())
	return nil
}

func (o *options) indexer() *corpus.Indexer {
	return corpus.NewIndexer(corpus.WithExtension(o.cfg.DocumentExt))
}

func (o *options) walker() *tei.Walker {
	return tei.NewWalker(o.log, tei.WithNamespace(o.cfg.TEINamespace))
}

// addYearFlags registers --start and --end on cmd.
func addYearFlags(cmd *cobra.Command, years *corpus.YearRange, start, end int) {
	cmd.Flags().IntVar(&years.Start, "start", start, "First year (inclusive, padded by one)")
	cmd.Flags().IntVar(&years.End, "end", end, "Last year (inclusive, padded by one)")
}
