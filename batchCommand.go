package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// errBatchFailures makes the process exit non-zero after the summary has
// already been printed.
var errBatchFailures = errors.New("one or more recipes failed to render")

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var (
		outDir        string
		workers       int
		skipUnchanged bool
		format        string
		noLedger      bool
	)

	cmd := &cobra.Command{
		Use:   "batch <zip|dir>...",
		Short: "Render many recipe bundles into an output directory",
		Long: "Render every bundle given. Directories expand to the .zip files they contain.\n" +
			"A bundle that fails is reported and the rest still render.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			fonts, err := ctx.ensureFonts()
			if err != nil {
				return err
			}
			logger := ctx.log()

			inputs, err := expandInputs(args)
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				return fmt.Errorf("no bundles found in %v", args)
			}

			opts := batchOptions{
				OutputDir:     cfg.Batch.OutputDir,
				Workers:       cfg.Batch.Workers,
				SkipUnchanged: cfg.Batch.SkipUnchanged,
				Render:        renderOptionsFromConfig(cfg),
			}
			if cmd.Flags().Changed("out-dir") {
				opts.OutputDir = outDir
			}
			if cmd.Flags().Changed("workers") && workers > 0 {
				opts.Workers = workers
			}
			if cmd.Flags().Changed("skip-unchanged") {
				opts.SkipUnchanged = skipUnchanged
			}
			if format != "" {
				if opts.Render.Format, err = normalizeFormat(format); err != nil {
					return err
				}
			}
			if isTerminal(os.Stderr) {
				opts.Progress = os.Stderr
			}

			var led *ledger
			if cfg.Batch.LedgerPath != "" && !noLedger {
				led, err = openLedger(cfg.Batch.LedgerPath)
				if err != nil {
					return err
				}
				defer led.Close()
			}

			report, err := runBatch(cmd.Context(), inputs, opts, fonts, led, logger)
			if err != nil {
				return err
			}
			printBatchSummary(cmd.OutOrStdout(), report)
			if report.hasFailures() {
				return errBatchFailures
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "Output directory (default from config)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent renders (default from config)")
	cmd.Flags().BoolVar(&skipUnchanged, "skip-unchanged", false, "Skip bundles already rendered with the same input and settings")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: svg, html, png, jpg (default from config)")
	cmd.Flags().BoolVar(&noLedger, "no-ledger", false, "Do not record renders in the ledger")
	return cmd
}

func printBatchSummary(w io.Writer, report *batchReport) {
	ok, failed, skipped := report.counts()
	fmt.Fprintln(w, batchSummaryTable(report))
	fmt.Fprintf(w, "Run %s: %d rendered, %d failed, %d skipped\n", shortID(report.RunID), ok, failed, skipped)
}
