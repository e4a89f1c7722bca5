package export

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/fiscal-xml-reader/internal/keys"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/types"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/xmldoc"
)

// exceptionRow is one flattened line of the Erros sheet.
type exceptionRow struct {
	kind         string
	key          string
	number       string
	series       string
	issuedAt     *time.Time
	total        decimal.NullDecimal
	emitterID    string
	emitterName  string
	recipientID  string
	recipientNm  string
	cancelledAt  *time.Time
	protocol     string
	invoiceFile  string
	eventFile    string
	file         string
	hint         string
	message      string
	model        string
	environment  string
	competence   string
	sniffKind    string
	sniffOK      any
	sniffMessage string
}

var exceptionColumns = []column[exceptionRow]{
	{"tipo", formatText, func(r exceptionRow) any { return r.kind }},
	{"chave", formatText, func(r exceptionRow) any { return r.key }},
	{"nNF", formatText, func(r exceptionRow) any { return r.number }},
	{"serie", formatText, func(r exceptionRow) any { return r.series }},
	{"emissao", formatDate, func(r exceptionRow) any { return r.issuedAt }},
	{"vNF", formatMoney, func(r exceptionRow) any { return r.total }},
	{"emit_CNPJ", formatText, func(r exceptionRow) any { return r.emitterID }},
	{"emit_xNome", formatText, func(r exceptionRow) any { return r.emitterName }},
	{"dest_CNPJ", formatText, func(r exceptionRow) any { return r.recipientID }},
	{"dest_xNome", formatText, func(r exceptionRow) any { return r.recipientNm }},
	{"cancelado_em", formatDate, func(r exceptionRow) any { return r.cancelledAt }},
	{"cancel_nProt", formatText, func(r exceptionRow) any { return r.protocol }},
	{"_arquivo_nota", formatText, func(r exceptionRow) any { return r.invoiceFile }},
	{"_arquivo_evento", formatText, func(r exceptionRow) any { return r.eventFile }},
	{"_arquivo", formatText, func(r exceptionRow) any { return r.file }},
	{"_parser_ui", formatText, func(r exceptionRow) any { return r.hint }},
	{"_erro", formatText, func(r exceptionRow) any { return r.message }},
	{"modelo", formatText, func(r exceptionRow) any { return r.model }},
	{"tpAmb", formatText, func(r exceptionRow) any { return r.environment }},
	{"competencia", formatText, func(r exceptionRow) any { return r.competence }},
	{"_sniff_tipo", formatText, func(r exceptionRow) any { return r.sniffKind }},
	{"_sniff_ok", formatText, func(r exceptionRow) any { return r.sniffOK }},
	{"_sniff_erro", formatText, func(r exceptionRow) any { return r.sniffMessage }},
}

// exceptionRows flattens and sorts the exceptions.
func exceptionRows(exceptions []types.Exception) []exceptionRow {
	rows := make([]exceptionRow, 0, len(exceptions))
	for _, e := range exceptions {
		rows = append(rows, flatten(e))
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.kind != b.kind {
			return a.kind < b.kind
		}
		if a.key != b.key {
			return a.key < b.key
		}
		if c := compareTimes(a.issuedAt, b.issuedAt); c != 0 {
			return c < 0
		}
		if a.invoiceFile != b.invoiceFile {
			return a.invoiceFile < b.invoiceFile
		}
		return a.eventFile < b.eventFile
	})
	return rows
}

func flatten(e types.Exception) exceptionRow {
	row := exceptionRow{
		kind:      e.Kind.String(),
		key:       e.Key,
		emitterID: e.Emitter,
		hint:      e.Hint,
		message:   e.Message(),
	}

	switch e.Kind {
	case types.ParseFailure:
		row.file = e.Source
	case types.CancelledInvoice:
		row.invoiceFile = e.Source
	}

	if r := e.Record; r != nil {
		row.key = xmldoc.FirstOf(row.key, r.Key, r.AccessKey)
		row.number = r.Number
		row.series = r.Series
		row.issuedAt = r.IssuedAt
		row.total = r.Total
		row.emitterID = xmldoc.FirstOf(row.emitterID, r.Emitter.TaxID)
		row.emitterName = r.Emitter.Name
		row.recipientID = r.Recipient.TaxID
		row.recipientNm = r.Recipient.Name
	}

	if c := e.Cancellation; c != nil {
		row.cancelledAt = c.CancelledAt
		row.protocol = c.Protocol
		row.eventFile = c.EventSource
	}

	if d := e.Diagnostic; d != nil {
		row.key = xmldoc.FirstOf(row.key, keys.NormalizeKey(d.Key), d.Key)
		row.number = xmldoc.FirstOf(row.number, d.Number)
		if row.issuedAt == nil {
			row.issuedAt = keys.ParseTimestamp(d.IssuedRaw)
		}
		row.model = d.Model
		row.environment = d.Environment
		row.competence = d.Competence
		row.sniffKind = d.Kind
		row.sniffOK = d.OK
		row.sniffMessage = d.Error
	}
	return row
}

// compareTimes orders nil first.
func compareTimes(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}
