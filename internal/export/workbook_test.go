package export

import (
	"errors"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/fiscal-xml-reader/internal/types"
)

const key = "24240112345678000190550010000000011000000010"

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func money(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func raw(t *testing.T, f *excelize.File, sheet, cell string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatalf("GetCellValue(%s!%s): %v", sheet, cell, err)
	}
	return v
}

func sampleResult() types.BatchResult {
	invoice := types.Record{
		Source:    "nf.xml",
		Variant:   types.PrimaryInvoice,
		Key:       key,
		Number:    "1",
		Series:    "1",
		Direction: "Saída",
		IssuedAt:  ts("2024-01-15T13:30:00Z"),
		Emitter:   types.Party{TaxID: "12345678000190", Name: "Emitente"},
		Total:     money("1234.56"),
		Items:     types.ItemSummary{Codes: []string{"5102", "5405"}, Predominant: "5102"},
		Taxes:     types.TaxTotals{ICMS: money("180")},
	}
	return types.BatchResult{
		Active: []types.Record{
			invoice,
			{Source: "ev.xml", Variant: types.LifecycleEvent},
		},
		Exceptions: []types.Exception{
			{
				Kind:   types.ParseFailure,
				Source: "zz.xml",
				Hint:   types.HintAuto,
				Err:    errors.New("malformed document: zz.xml: EOF"),
				Diagnostic: &types.Diagnostic{
					OK: true, Kind: "NFe/NFCe", Key: "NFe" + key, Number: "9", IssuedRaw: "2024-02-01T10:00:00-03:00",
					Model: "55", Environment: "2", Competence: "2024-02",
				},
			},
			{
				Kind:         types.OrphanCancellation,
				Key:          "99" + key[2:],
				Emitter:      "12345678000190",
				Cancellation: &types.Cancellation{Protocol: "P2", EventSource: "orphan.xml"},
			},
			{
				Kind:         types.CancelledInvoice,
				Source:       "cancelled.xml",
				Key:          key,
				Record:       &invoice,
				Cancellation: &types.Cancellation{CancelledAt: ts("2024-01-16T12:00:00Z"), Protocol: "P1", EventSource: "ev.xml"},
			},
			{Kind: types.ParseFailure, Source: "aa.xml", Hint: "CT-e", Err: errors.New("unrecognized schema")},
		},
	}
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	loc := time.FixedZone("BRT", -3*3600)

	if err := WriteWorkbook(path, sampleResult(), Options{Location: loc}); err != nil {
		t.Fatalf("WriteWorkbook: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != SheetRecords || sheets[1] != SheetExceptions {
		t.Fatalf("sheets = %v", sheets)
	}

	rows, err := f.GetRows(SheetRecords)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("Notas has %d rows, want header + 1 (events excluded)", len(rows))
	}
	if rows[0][3] != "Número NF" || rows[0][10] != "Valor" || rows[0][17] != "Valor ICMS ST" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][2] != key || rows[1][12] != "5102; 5405" || rows[1][11] != "Saída" {
		t.Errorf("row = %v", rows[1])
	}

	if v := raw(t, f, SheetRecords, "K2"); v != "1234.56" {
		t.Errorf("Valor raw = %q", v)
	}
	if v := raw(t, f, SheetRecords, "O2"); v != "" {
		t.Errorf("missing BC ICMS should be blank, got %q", v)
	}
	if style, _ := f.GetCellStyle(SheetRecords, "K2"); style == 0 {
		t.Error("money column has no style")
	}

	serial, err := strconv.ParseFloat(raw(t, f, SheetRecords, "F2"), 64)
	if err != nil {
		t.Fatalf("emission date is not numeric: %v", err)
	}
	got, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	if d := got.Sub(want); d > time.Second || d < -time.Second {
		t.Errorf("emission = %v, want local wall clock %v", got, want)
	}
}

func TestWriteWorkbookEmptySheetsKeepHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	if err := WriteWorkbook(path, types.BatchResult{}, Options{}); err != nil {
		t.Fatalf("WriteWorkbook: %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	for sheet, width := range map[string]int{SheetRecords: len(recordColumns), SheetExceptions: len(exceptionColumns)} {
		rows, err := f.GetRows(sheet)
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) != 1 || len(rows[0]) != width {
			t.Errorf("%s rows = %v", sheet, rows)
		}
	}
}

func TestExceptionRowsSortAndFlatten(t *testing.T) {
	rows := exceptionRows(sampleResult().Exceptions)
	if len(rows) != 4 {
		t.Fatalf("rows = %d", len(rows))
	}

	// "Falha de leitura" < "NF cancelada" < "NF cancelada (sem XML da nota)".
	wantKinds := []string{"Falha de leitura", "Falha de leitura", "NF cancelada", "NF cancelada (sem XML da nota)"}
	for i, r := range rows {
		if r.kind != wantKinds[i] {
			t.Errorf("row %d kind = %q, want %q", i, r.kind, wantKinds[i])
		}
	}

	// Empty key sorts before the sniffed one.
	if rows[0].file != "aa.xml" || rows[1].file != "zz.xml" {
		t.Errorf("failure order = %q, %q", rows[0].file, rows[1].file)
	}
	sniffed := rows[1]
	if sniffed.key != key || sniffed.number != "9" || sniffed.issuedAt == nil || sniffed.sniffOK != true {
		t.Errorf("sniffed row = %+v", sniffed)
	}
	if sniffed.model != "55" || sniffed.environment != "2" || sniffed.competence != "2024-02" {
		t.Errorf("sniffed model/tpAmb/competencia = %q/%q/%q", sniffed.model, sniffed.environment, sniffed.competence)
	}
	if rows[0].sniffOK != nil {
		t.Errorf("no diagnostic should leave _sniff_ok blank, got %v", rows[0].sniffOK)
	}

	cancelled := rows[2]
	if cancelled.invoiceFile != "cancelled.xml" || cancelled.eventFile != "ev.xml" || cancelled.protocol != "P1" || cancelled.emitterName != "Emitente" {
		t.Errorf("cancelled row = %+v", cancelled)
	}
	if orphan := rows[3]; orphan.emitterID != "12345678000190" || orphan.eventFile != "orphan.xml" || orphan.file != "" {
		t.Errorf("orphan row = %+v", orphan)
	}
}

func TestNaiveLocal(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	got := NaiveLocal(time.Date(2024, 1, 1, 2, 0, 0, 500, time.UTC), loc)
	want := time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NaiveLocal = %v, want %v", got, want)
	}
}
