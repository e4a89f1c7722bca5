// =============================================================================
// Fiscal XML Reader - Workbook Export
// =============================================================================
//
// This module writes a reconciled batch to an XLSX workbook.
//
// SHEETS:
//   Notas - one row per active record, with Portuguese headers
//   Erros - one row per exception (read failures, cancelled invoices,
//           orphan cancellations), sorted for review
//
// FORMATS:
//   Money columns:  R$ #,##0.00
//   Date columns:   dd/mm/yyyy hh:mm:ss, shown in the configured timezone
//                   and stored as naive local times
//
// A sheet with no rows still gets its header row.
//
// =============================================================================

package export

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/fiscal-xml-reader/internal/types"
)

// Sheet names.
const (
	SheetRecords    = "Notas"
	SheetExceptions = "Erros"
)

// Number formats.
const (
	MoneyFormat = "R$ #,##0.00"
	DateFormat  = "dd/mm/yyyy hh:mm:ss"
)

// Options configures WriteWorkbook.
type Options struct {
	// Location is the display timezone. Nil means UTC.
	Location *time.Location
}

// =============================================================================
// COLUMN MODEL
// =============================================================================

type cellFormat int

const (
	formatText cellFormat = iota
	formatMoney
	formatDate
)

// column describes one sheet column: its header and how to read the cell
// from a row value. value returns a string, bool, decimal.NullDecimal,
// *time.Time or nil.
type column[T any] struct {
	header string
	format cellFormat
	value  func(T) any
}

// =============================================================================
// WRITE
// =============================================================================

// WriteWorkbook writes result to path.
//
// PARAMETERS:
//   - path: the .xlsx destination; its directory must exist
//   - result: the reconciled batch
//   - opts: display options
//
// RETURNS:
//   - An error if a sheet cannot be built or the file cannot be saved
func WriteWorkbook(path string, result types.BatchResult, opts Options) error {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetRecords); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetExceptions); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	records := make([]types.Record, 0, len(result.Active))
	for _, r := range result.Active {
		if r.Variant != types.LifecycleEvent {
			records = append(records, r)
		}
	}
	if err := writeSheet(f, SheetRecords, recordColumns, records, styles, loc); err != nil {
		return err
	}

	rows := exceptionRows(result.Exceptions)
	if err := writeSheet(f, SheetExceptions, exceptionColumns, rows, styles, loc); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

type styleSet struct {
	header, money, date int
}

func newStyles(f *excelize.File) (styleSet, error) {
	var s styleSet
	var err error

	if s.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return s, fmt.Errorf("failed to create header style: %w", err)
	}
	money := MoneyFormat
	if s.money, err = f.NewStyle(&excelize.Style{CustomNumFmt: &money}); err != nil {
		return s, fmt.Errorf("failed to create money style: %w", err)
	}
	date := DateFormat
	if s.date, err = f.NewStyle(&excelize.Style{CustomNumFmt: &date}); err != nil {
		return s, fmt.Errorf("failed to create date style: %w", err)
	}
	return s, nil
}

func writeSheet[T any](f *excelize.File, sheet string, cols []column[T], rows []T, styles styleSet, loc *time.Location) error {
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c.header
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	last, _ := excelize.ColumnNumberToName(len(cols))
	if err := f.SetCellStyle(sheet, "A1", last+"1", styles.header); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}

	for r, row := range rows {
		values := make([]any, len(cols))
		for i, c := range cols {
			values[i] = cellValue(c.value(row), loc)
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, r+2, err)
		}
	}

	if len(rows) == 0 {
		return nil
	}
	for i, c := range cols {
		var style int
		switch c.format {
		case formatMoney:
			style = styles.money
		case formatDate:
			style = styles.date
		default:
			continue
		}
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetCellStyle(sheet, name+"2", fmt.Sprintf("%s%d", name, len(rows)+1), style); err != nil {
			return fmt.Errorf("failed to style %s column %s: %w", sheet, name, err)
		}
	}
	return nil
}

// cellValue converts a column value into something excelize stores natively.
// Missing values become empty strings.
func cellValue(v any, loc *time.Location) any {
	switch x := v.(type) {
	case nil:
		return ""
	case decimal.NullDecimal:
		if !x.Valid {
			return ""
		}
		return x.Decimal.InexactFloat64()
	case *time.Time:
		if x == nil {
			return ""
		}
		return NaiveLocal(*x, loc)
	default:
		return v
	}
}

// NaiveLocal converts t into loc and drops the zone, so the workbook shows
// the local wall-clock time.
func NaiveLocal(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), 0, time.UTC)
}

// =============================================================================
// NOTAS
// =============================================================================

var recordColumns = []column[types.Record]{
	{"_parser", formatText, func(r types.Record) any { return r.Variant.String() }},
	{"_arquivo", formatText, func(r types.Record) any { return r.Source }},
	{"chave", formatText, func(r types.Record) any { return recordKey(r) }},
	{"Número NF", formatText, func(r types.Record) any { return r.Number }},
	{"Série", formatText, func(r types.Record) any { return r.Series }},
	{"Data de Emissão", formatDate, func(r types.Record) any { return r.IssuedAt }},
	{"CNPJ Emitente", formatText, func(r types.Record) any { return r.Emitter.TaxID }},
	{"Nome Emitente", formatText, func(r types.Record) any { return r.Emitter.Name }},
	{"CNPJ Destinatário", formatText, func(r types.Record) any { return r.Recipient.TaxID }},
	{"Nome Destinatário", formatText, func(r types.Record) any { return r.Recipient.Name }},
	{"Valor", formatMoney, func(r types.Record) any { return r.Total }},
	{"Tipo (Entrada/Saída)", formatText, func(r types.Record) any { return r.Direction }},
	{"CFOP(s) da Nota", formatText, func(r types.Record) any { return r.Items.Joined() }},
	{"CFOP Predominante", formatText, func(r types.Record) any { return r.Items.Predominant }},
	{"BC ICMS", formatMoney, func(r types.Record) any { return r.Taxes.ICMSBase }},
	{"Valor ICMS", formatMoney, func(r types.Record) any { return r.Taxes.ICMS }},
	{"BC ICMS ST", formatMoney, func(r types.Record) any { return r.Taxes.STBase }},
	{"Valor ICMS ST", formatMoney, func(r types.Record) any { return r.Taxes.ST }},
}

// recordKey prefers the normalized key and falls back to the raw one for
// families reconciliation does not key.
func recordKey(r types.Record) string {
	if r.Key != "" {
		return r.Key
	}
	return r.AccessKey
}
