package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/protocorpus/internal/corpus"
	"github.com/dgallion1/protocorpus/internal/pipeline"
	"github.com/spf13/cobra"
)

// errRunFailed is returned when a run finished with failed documents.
var errRunFailed = errors.New("run finished with failures")

func removeAttributeCmd(opts *options) *cobra.Command {
	var (
		years corpus.YearRange
		key   string
	)
	cmd := &cobra.Command{
		Use:   "remove-attribute",
		Short: "Remove an attribute from every content element of the listed protocols",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key = strings.TrimSpace(key)
			if key == "" {
				return fmt.Errorf("--key must not be empty")
			}
			return runTask(cmd, opts, years, pipeline.RemoveAttributeTask{Key: key, Walker: opts.walker()})
		},
	}
	addYearFlags(cmd, &years, 1920, 2022)
	cmd.Flags().StringVar(&key, "key", "", "Attribute to remove, e.g. prev or xml:id")
	cmd.MarkFlagRequired("key")
	return cmd
}

func checkCmd(opts *options) *cobra.Command {
	var (
		years  corpus.YearRange
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Parse and walk the listed protocols, reporting unrecognized elements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask(cmd, opts, years, pipeline.CheckTask{Walker: opts.walker(), Strict: strict})
		},
	}
	addYearFlags(cmd, &years, 0, 0)
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail documents that contain unrecognized elements")
	return cmd
}

// runTask applies task to the listed protocols on a local worker pool and
// prints the run summary as JSON.
func runTask(cmd *cobra.Command, opts *options, years corpus.YearRange, task pipeline.Task) error {
	paths, err := opts.indexer().List(opts.cfg.CorpusRoot, years)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	orch := pipeline.NewOrchestrator(opts.cfg, opts.log)
	orch.Start(ctx)
	defer orch.Stop()

	run, err := orch.StartRun(ctx, task, paths)
	if err != nil {
		return err
	}
	if err := run.Wait(ctx); err != nil {
		return err
	}

	snap := run.Snapshot()
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return err
	}
	if snap.Failed > 0 {
		return fmt.Errorf("%w: %d of %d documents", errRunFailed, snap.Failed, snap.Total)
	}
	return nil
}
