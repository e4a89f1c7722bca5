// =============================================================================
// Fiscal XML Reader - File Manager Utility
// =============================================================================
//
// This module provides the file-system side of a run:
//   - Document discovery (recursive, .xml in any letter case)
//   - Output directory management
//   - Output file naming
//   - Plain-text exception and summary logs
//
// DISCOVERY RULES:
//   - Every regular file under InputDir whose extension is .xml, ignoring case
//   - Paths are resolved to absolute form and deduplicated
//   - The result is sorted, so runs over the same tree are reproducible
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/fiscal-xml-reader/internal/types"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for a run. It implements
// types.SourceSet over InputDir.
type FileManager struct {
	// InputDir is scanned recursively for documents.
	InputDir string

	// OutputDir receives the workbook and the logs.
	OutputDir string
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir string) *FileManager {
	return &FileManager{
		InputDir:  inputDir,
		OutputDir: outputDir,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureOutputDir creates OutputDir if it doesn't exist.
func (fm *FileManager) EnsureOutputDir() error {
	if err := os.MkdirAll(fm.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", fm.OutputDir, err)
	}
	return nil
}

// =============================================================================
// DOCUMENT DISCOVERY
// =============================================================================

// Sources lists every .xml document under InputDir.
//
// RETURNS:
//   - One types.Source per unique absolute path, sorted by path. Sources
//     carry a Path only; the bytes are read by the worker that owns them.
//   - An error if InputDir is missing or cannot be walked.
func (fm *FileManager) Sources() ([]types.Source, error) {
	paths, err := fm.DiscoverDocuments()
	if err != nil {
		return nil, err
	}

	sources := make([]types.Source, 0, len(paths))
	for _, p := range paths {
		sources = append(sources, types.Source{Label: fm.label(p), Path: p})
	}
	return sources, nil
}

// DiscoverDocuments returns the sorted, deduplicated absolute paths of the
// documents under InputDir.
func (fm *FileManager) DiscoverDocuments() ([]string, error) {
	root, err := filepath.Abs(fm.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input directory: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input path %s is not a directory", root)
	}

	seen := make(map[string]bool)
	var files []string

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".xml") {
			return nil
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		}
		if !seen[abs] {
			seen[abs] = true
			files = append(files, abs)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk input directory: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// label is the path relative to InputDir when possible, so nested files
// with the same base name stay distinguishable in the reports.
func (fm *FileManager) label(path string) string {
	root, err := filepath.Abs(fm.InputDir)
	if err == nil {
		if resolved, err := filepath.EvalSymlinks(root); err == nil {
			root = resolved
		}
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.Base(path)
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// NewRunID returns the identifier shared by every artifact of one run.
func NewRunID() string {
	return uuid.New().String()
}

// GenerateOutputFileName generates a unique output file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//             Placeholders:
//               {uuid}      - A random UUID
//               {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//               {date}      - Current date (YYYYMMDD)
//               {time}      - Current time (HHMMSS)
//               {run}       - params["run"]
//   - params: Extra placeholder values, keyed without braces.
//
// RETURNS:
//   - The generated file name, always ending in .xlsx.
//
// EXAMPLE:
//   format: "notas_{date}_{uuid}"
//   output: "notas_20240115_a1b2c3d4-e5f6-7890-abcd-ef1234567890.xlsx"
func GenerateOutputFileName(format string, params map[string]string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if !strings.HasSuffix(strings.ToLower(result), ".xlsx") {
		result += ".xlsx"
	}
	return result
}

// =============================================================================
// EXCEPTION LOG
// =============================================================================

const rule = "================================================================================\n"

// WriteExceptionLog writes the exception rows to a text file in outputDir.
//
// RETURNS:
//   - The path to the log, or "" when there is nothing to write.
//   - An error if writing fails.
func WriteExceptionLog(exceptions []types.Exception, outputDir, runID string) (string, error) {
	if len(exceptions) == 0 {
		return "", nil
	}

	now := time.Now()
	logPath := filepath.Join(outputDir, fmt.Sprintf("error_log_%s.txt", now.Format("20060102_150405")))

	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)

	fmt.Fprintf(w, "Fiscal XML Reader - Exception Log\n"+
		"Run:        %s\n"+
		"Generated:  %s\n"+
		"Exceptions: %d\n"+
		rule+"\n",
		runID, now.Format("2006-01-02 15:04:05"), len(exceptions))

	for i, e := range exceptions {
		fmt.Fprintf(w, "Exception #%d\n  Type:           %s\n", i+1, e.Kind)
		writeField(w, "File", e.Source)
		writeField(w, "Key", e.Key)
		writeField(w, "Emitter", e.Emitter)
		writeField(w, "Hint", e.Hint)
		writeField(w, "Message", e.Message())
		if c := e.Cancellation; c != nil {
			if c.CancelledAt != nil {
				writeField(w, "Cancelled At", c.CancelledAt.Format(time.RFC3339))
			}
			writeField(w, "Protocol", c.Protocol)
			writeField(w, "Event File", c.EventSource)
		}
		if d := e.Diagnostic; d != nil {
			writeField(w, "Sniffed Type", d.Kind)
			writeField(w, "Sniffed Key", d.Key)
			writeField(w, "Sniffed Number", d.Number)
			writeField(w, "Model", d.Model)
			writeField(w, "Environment", d.Environment)
			writeField(w, "Competence", d.Competence)
			writeField(w, "Sniff Error", d.Error)
		}
		w.WriteString("\n")
	}

	w.WriteString(rule + "End of Exception Log\n")

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush error log: %w", err)
	}
	return logPath, nil
}

func writeField(w *bufio.Writer, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(w, "  %-15s %s\n", name+":", value)
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains the totals of one run.
type ProcessingSummary struct {
	RunID     string
	StartTime time.Time
	EndTime   time.Time
	Workers   int
	Hint      string

	TotalFiles    int
	Extracted     int
	ParseFailures int
	Cancelled     int
	Orphans       int
	Active        int

	// PerVariant counts extracted records by display name.
	PerVariant map[string]int

	// Workbook is the exported file, or "" on a dry run.
	Workbook string
}

// WriteSummaryLog writes a processing summary to a log file.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	summaryPath := filepath.Join(outputDir,
		fmt.Sprintf("processing_summary_%s.txt", summary.EndTime.Format("20060102_150405")))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	w.WriteString(FormatSummary(summary))
	w.WriteString(rule + "End of Summary\n")

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}
	return summaryPath, nil
}

// FormatSummary renders the summary as the text block shared by the
// summary log and the console.
func FormatSummary(s ProcessingSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Fiscal XML Reader - Processing Summary\n"+
		rule+"\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n"+
		"  Workers:        %d\n"+
		"  Hint:           %s\n\n"+
		"Statistics:\n"+
		"  Total Files:        %d\n"+
		"  Extracted:          %d\n"+
		"  Read Failures:      %d\n"+
		"  Cancelled Invoices: %d\n"+
		"  Orphan Cancels:     %d\n"+
		"  Active Records:     %d\n\n",
		s.RunID,
		s.StartTime.Format("2006-01-02 15:04:05"),
		s.EndTime.Format("2006-01-02 15:04:05"),
		s.EndTime.Sub(s.StartTime).Round(time.Millisecond),
		s.Workers,
		s.Hint,
		s.TotalFiles, s.Extracted, s.ParseFailures, s.Cancelled, s.Orphans, s.Active)

	if len(s.PerVariant) > 0 {
		names := make([]string, 0, len(s.PerVariant))
		for name := range s.PerVariant {
			names = append(names, name)
		}
		sort.Strings(names)

		b.WriteString("By Document Type:\n")
		for _, name := range names {
			fmt.Fprintf(&b, "  %-20s %d\n", name+":", s.PerVariant[name])
		}
		b.WriteString("\n")
	}

	if s.Workbook != "" {
		fmt.Fprintf(&b, "Workbook: %s\n\n", s.Workbook)
	}
	return b.String()
}
