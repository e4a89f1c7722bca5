// =============================================================================
// Fiscal XML Reader - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs the whole pipeline
// over the input directory.
//
// COMMAND USAGE:
//   fiscalreader process [flags]
//
// FLAGS:
//   --input     : Input directory (overrides input_dir)
//   --output    : Output directory (overrides output_dir)
//   --hint      : Preferred document type, or "auto" (overrides hint)
//   --workers   : Worker pool width, clamped to 4..64 (overrides max_concurrency)
//   --dry-run   : Process and summarize without writing any file
//
// PROCESSING PIPELINE:
//   1. Load configuration and apply flag overrides
//   2. Discover .xml documents in the input directory
//   3. Extract every document concurrently (failures isolated per document)
//   4. Reconcile cancellation events against invoices
//   5. Export the workbook, the exception log and the summary log
//   6. Print the summary
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/fiscal-xml-reader/internal/batch"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/config"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/export"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/logging"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/reconcile"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/types"
	"github.com/ginjaninja78/fiscal-xml-reader/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	dryRun    bool
	inputDir  string
	outputDir string
	hintFlag  string
	workers   int
)

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

// processCmd represents the 'process' command.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Read every fiscal XML in the input directory and export a workbook",
	Long: `The process command scans the input directory recursively for .xml files,
detects each document's type, extracts a normalized record and applies NF-e
cancellation events to the invoices they target.

Processing is concurrent. A document that cannot be read, is not recognized
or fails extraction never stops the batch: it is listed in the "Erros" sheet
together with a best-effort description of what the file seems to be.

Outputs (in the output directory):
  - <output_format>.xlsx with the sheets "Notas" and "Erros"
  - error_log_<timestamp>.txt when there are exceptions (write_error_log)
  - processing_summary_<timestamp>.txt`,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := applyFlags(cmd, cfg); err != nil {
			return err
		}

		logger, err := logging.New(cfg.LogLevel, cfg.LogFile, verbose)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		_, err = runProcess(ctx, cfg, processOptions{DryRun: dryRun, Logger: logger}, cmd.OutOrStdout())
		return err
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Process and summarize without writing output files")
	processCmd.Flags().StringVar(&inputDir, "input", "", "Input directory (overrides input_dir)")
	processCmd.Flags().StringVar(&outputDir, "output", "", "Output directory (overrides output_dir)")
	processCmd.Flags().StringVar(&hintFlag, "hint", "", `Preferred document type, e.g. "NF-e" or "auto" (see 'variants')`)
	processCmd.Flags().IntVar(&workers, "workers", 0, "Worker pool width, clamped to 4..64 (overrides max_concurrency)")
}

// applyFlags copies explicitly set flags over the loaded configuration and
// validates the result again.
func applyFlags(cmd *cobra.Command, cfg *config.MainConfig) error {
	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.InputDir = inputDir
	}
	if flags.Changed("output") {
		cfg.OutputDir = outputDir
	}
	if flags.Changed("hint") {
		cfg.Hint = hintFlag
	}
	if flags.Changed("workers") {
		cfg.MaxConcurrency = workers
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// processOptions carries the run-level switches that are not configuration.
type processOptions struct {
	DryRun bool
	Logger *zap.Logger
}

// runReport is what one run produced.
type runReport struct {
	Summary      utils.ProcessingSummary
	Result       types.BatchResult
	Workbook     string
	ExceptionLog string
	SummaryLog   string
}

// runProcess executes the pipeline and prints the summary to out.
func runProcess(ctx context.Context, cfg *config.MainConfig, opts processOptions, out io.Writer) (*runReport, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	report := &runReport{}
	summary := &report.Summary
	summary.RunID = utils.NewRunID()
	summary.StartTime = time.Now()
	summary.Workers = cfg.MaxConcurrency
	summary.Hint = cfg.Hint

	log = log.With(zap.String("run", summary.RunID))

	// =========================================================================
	// STEP 1: DISCOVER
	// =========================================================================

	fm := utils.NewFileManager(cfg.InputDir, cfg.OutputDir)

	fmt.Fprintln(out, "=== Fiscal XML Reader ===")
	fmt.Fprintf(out, "Input:  %s\nOutput: %s\n", cfg.InputDir, cfg.OutputDir)

	// =========================================================================
	// STEP 2: EXTRACT
	// =========================================================================

	var lastShown time.Time
	progress := func(processed, total int) {
		if processed == total || time.Since(lastShown) > 500*time.Millisecond {
			lastShown = time.Now()
			log.Info("progress", zap.Int("processed", processed), zap.Int("total", total))
		}
	}

	outcomes, err := batch.Run(ctx, fm, batch.Options{
		Workers:  cfg.MaxConcurrency,
		Hint:     cfg.Variant(),
		Progress: progress,
		Logger:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover input files: %w", err)
	}
	summary.TotalFiles = len(outcomes)

	if len(outcomes) == 0 {
		fmt.Fprintln(out, "No XML files found in the input directory.")
		return report, nil
	}

	records, failures := batch.Split(outcomes)
	summary.Extracted = len(records)
	summary.ParseFailures = len(failures)
	summary.PerVariant = make(map[string]int)
	for _, r := range records {
		summary.PerVariant[r.Variant.String()]++
	}

	// =========================================================================
	// STEP 3: RECONCILE
	// =========================================================================

	result := reconcile.Reconcile(records, failures)
	report.Result = result
	summary.Cancelled = result.Count(types.CancelledInvoice)
	summary.Orphans = result.Count(types.OrphanCancellation)
	summary.Active = len(result.Active)

	// =========================================================================
	// STEP 4: EXPORT
	// =========================================================================

	if !opts.DryRun {
		if err := fm.EnsureOutputDir(); err != nil {
			return nil, err
		}

		name := utils.GenerateOutputFileName(cfg.OutputFormat, map[string]string{"run": summary.RunID})
		report.Workbook = filepath.Join(cfg.OutputDir, name)
		if err := export.WriteWorkbook(report.Workbook, result, export.Options{Location: cfg.Location()}); err != nil {
			return nil, fmt.Errorf("failed to export workbook: %w", err)
		}
		summary.Workbook = report.Workbook
		log.Info("workbook written", zap.String("path", report.Workbook))

		if cfg.ErrorLogEnabled() {
			report.ExceptionLog, err = utils.WriteExceptionLog(result.Exceptions, cfg.OutputDir, summary.RunID)
			if err != nil {
				log.Warn("failed to write exception log", zap.Error(err))
			}
		}
	}

	summary.EndTime = time.Now()

	if !opts.DryRun {
		report.SummaryLog, err = utils.WriteSummaryLog(*summary, cfg.OutputDir)
		if err != nil {
			log.Warn("failed to write summary log", zap.Error(err))
		}
	}

	// =========================================================================
	// STEP 5: PRINT SUMMARY
	// =========================================================================

	fmt.Fprintln(out)
	fmt.Fprint(out, utils.FormatSummary(*summary))
	if opts.DryRun {
		fmt.Fprintln(out, "Dry run: no files were written.")
	} else if report.ExceptionLog != "" {
		fmt.Fprintf(out, "Exceptions have been logged to %s\n", report.ExceptionLog)
	}

	return report, nil
}
