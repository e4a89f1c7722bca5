// =============================================================================
// Fiscal XML Reader - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (fiscalreader)
//   ├── processCmd  (fiscalreader process)
//   ├── variantsCmd (fiscalreader variants)
//   └── versionCmd  (fiscalreader version)
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the YAML configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "fiscalreader",
	Short: "Fiscal XML Reader - Turn a folder of Brazilian fiscal XML into one reconciled workbook",
	Long: `Fiscal XML Reader reads a folder of Brazilian fiscal documents (NF-e, NFC-e,
CT-e, NFS-e and NF-e lifecycle events), extracts a normalized record from each
one, applies cancellation events to the invoices they target and exports the
result as an XLSX workbook.

Key Features:
  - Automatic document type detection, with an optional preferred type
  - Concurrent processing with per-document failure isolation
  - Cancellation reconciliation (latest event wins, orphans reported)
  - Diagnostic sniffing of unreadable files

Example Usage:
  fiscalreader process                       # Process ./input into ./output
  fiscalreader process --input ./xml --hint NF-e
  fiscalreader variants                      # List document types and hints`,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},

	SilenceUsage:  true,
	SilenceErrors: true,
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	// --config flag: a missing file means defaults.
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the configuration file",
	)

	// --verbose flag: debug logging.
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}
