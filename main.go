// =============================================================================
// Fiscal XML Reader - Main Entry Point
// =============================================================================
//
// USAGE:
//   fiscalreader process       - Read the input directory and export a workbook
//   fiscalreader variants      - List document types and hint names
//   fiscalreader version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Parsing, classification, extraction, reconciliation
//   - pkg/           : File-system utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/fiscal-xml-reader/cmd"
)

func main() {
	cmd.Execute()
}
