// =============================================================================
// Fiscal XML Reader - Shared Types
// =============================================================================
//
// This package contains the types shared by every stage of the pipeline so
// that extractor, batch, reconcile and export never import each other for
// data shapes alone. Types defined here are used by:
//   - extractor / classifier / sniffer (producers)
//   - batch (carrier)
//   - reconcile (consumer and relocator)
//   - export (renderer)
//
// RECORD SHAPE:
//   One Record type covers every document family. Every field except Source
//   and Variant is optional: text fields use "" for absent, money uses
//   decimal.NullDecimal, timestamps use *time.Time.
//
// =============================================================================

package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SCHEMA VARIANTS
// =============================================================================

// Variant identifies which extractor produced a record.
type Variant int

const (
	VariantUnknown Variant = iota
	PrimaryInvoice
	ConsumerInvoice
	TransportDocument
	ServiceInvoiceGeneric
	ServiceInvoiceRegionalRendered
	ServiceInvoiceRegionalReceived
	LifecycleEvent
)

// AllVariants lists every known variant in declaration order.
var AllVariants = []Variant{
	PrimaryInvoice,
	ConsumerInvoice,
	TransportDocument,
	ServiceInvoiceGeneric,
	ServiceInvoiceRegionalRendered,
	ServiceInvoiceRegionalReceived,
	LifecycleEvent,
}

var variantNames = map[Variant]string{
	PrimaryInvoice:                 "NF-e",
	ConsumerInvoice:                "NFC-e",
	TransportDocument:              "CT-e",
	ServiceInvoiceGeneric:          "NFS-e (ABRASF)",
	ServiceInvoiceRegionalRendered: "NFSe RN (Prestado)",
	ServiceInvoiceRegionalReceived: "NFSe RN (Tomado)",
	LifecycleEvent:                 "Evento NF-e",
}

var variantIdents = map[Variant]string{
	PrimaryInvoice:                 "PrimaryInvoice",
	ConsumerInvoice:                "ConsumerInvoice",
	TransportDocument:              "TransportDocument",
	ServiceInvoiceGeneric:          "ServiceInvoiceGeneric",
	ServiceInvoiceRegionalRendered: "ServiceInvoiceRegionalRendered",
	ServiceInvoiceRegionalReceived: "ServiceInvoiceRegionalReceived",
	LifecycleEvent:                 "LifecycleEvent",
}

// String returns the display name used in exported sheets ("NF-e", "CT-e", ...).
func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return "Desconhecido"
}

// Ident returns the Go-style identifier ("PrimaryInvoice"), also accepted
// as a hint.
func (v Variant) Ident() string { return variantIdents[v] }

// IsInvoice reports whether records of this variant take part in
// cancellation matching.
func (v Variant) IsInvoice() bool {
	return v == PrimaryInvoice || v == ConsumerInvoice
}

// HintAuto is the hint value that skips the preferred-extractor phase.
const HintAuto = "auto"

// ParseVariant resolves a hint to a variant.
//
// PARAMETERS:
//   - s: A display name ("NF-e"), a Go identifier ("PrimaryInvoice") or
//        "auto"/"". Matching is case-insensitive.
//
// RETURNS:
//   - The variant, or VariantUnknown for "auto"/"".
//   - An error if the name is not recognized.
func ParseVariant(s string) (Variant, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, HintAuto) {
		return VariantUnknown, nil
	}
	for _, v := range AllVariants {
		if strings.EqualFold(s, variantNames[v]) || strings.EqualFold(s, variantIdents[v]) {
			return v, nil
		}
	}
	return VariantUnknown, fmt.Errorf("unknown document variant %q", s)
}

// =============================================================================
// SOURCES
// =============================================================================

// Source is one input document: a label (path or upload name) plus either
// its bytes or a path to read them from.
type Source struct {
	// Label identifies the document in outputs. Never empty.
	Label string

	// Data holds the document bytes for in-memory sources.
	Data []byte

	// Path is read on demand when Data is nil.
	Path string
}

// SourceSet enumerates the documents of one batch. An error here is a
// batch-level failure.
type SourceSet interface {
	Sources() ([]Source, error)
}

// StaticSources is an in-memory SourceSet.
type StaticSources []Source

// Sources returns the slice itself.
func (s StaticSources) Sources() ([]Source, error) {
	return s, nil
}

// =============================================================================
// RECORD
// =============================================================================

// Party is an emitter, recipient or sender block.
type Party struct {
	// TaxID is the CNPJ or CPF, digits as they appear in the document.
	TaxID string

	// Name is xNome / RazaoSocial / Nome.
	Name string

	// MunicipalRegistration is only filled for NFS-e providers.
	MunicipalRegistration string
}

// ItemSummary is the result of line-item aggregation.
type ItemSummary struct {
	// Codes are the distinct CFOP codes, sorted ascending.
	Codes []string

	// Predominant is the code with the largest summed item value.
	Predominant string
}

// Joined renders Codes the way the sheet expects ("5102; 5405").
func (s ItemSummary) Joined() string {
	return strings.Join(s.Codes, "; ")
}

// TaxTotals are the document-level ICMS totals.
type TaxTotals struct {
	ICMSBase decimal.NullDecimal
	ICMS     decimal.NullDecimal
	STBase   decimal.NullDecimal
	ST       decimal.NullDecimal
}

// ServiceInfo carries NFS-e specific fields.
type ServiceInfo struct {
	VerificationCode       string
	CompetenceAt           *time.Time
	ISSValue               decimal.NullDecimal
	ISSRate                decimal.NullDecimal // fraction, 0.05 for 5%
	ISSWithheld            string
	ServiceListItem        string
	CNAE                   string
	Description            string
	ServiceMunicipality    string
	IssuerBodyMunicipality string
	IssuerBodyState        string

	// RegionalModel is "RN" for the regional variants.
	RegionalModel string

	// Flow is "Prestado" or "Tomado" for the regional variants.
	Flow string
}

// TransportInfo carries CT-e specific fields.
type TransportInfo struct {
	CTeType      string
	CFOP         string
	Nature       string
	Received     decimal.NullDecimal
	CargoValue   decimal.NullDecimal
	Status       string
	StatusReason string
}

// EventInfo carries lifecycle-event fields.
type EventInfo struct {
	// TargetKey is chNFe as extracted, not normalized.
	TargetKey   string
	TypeCode    string
	Description string
	OccurredAt  *time.Time
	OccurredRaw string
	Protocol    string
	Actor       string
}

// Record is the normalized output of one extractor.
type Record struct {
	// Source is the label of the originating document.
	Source string

	// Variant is the extractor that produced the record.
	Variant Variant

	// AccessKey is the raw key as found in the document (Id attribute minus
	// its prefix). Key is the normalized 44-digit form, filled during
	// reconciliation.
	AccessKey string
	Key       string

	Number        string
	Series        string
	Model         string
	OperationType string // tpNF
	Direction     string // derived from OperationType
	IssuedAt      *time.Time
	IssuedRaw     string
	Municipality  string

	Emitter   Party
	Recipient Party
	Sender    Party

	Total decimal.NullDecimal
	Items ItemSummary
	Taxes TaxTotals

	Service   *ServiceInfo
	Transport *TransportInfo
	Event     *EventInfo
}

// =============================================================================
// DIAGNOSTICS AND EXCEPTIONS
// =============================================================================

// Diagnostic is the shallow read produced for failed documents.
type Diagnostic struct {
	OK          bool
	Kind        string // "NFe/NFCe", "CTe", "NFSe"
	Key         string
	Model       string
	Environment string
	Number      string
	IssuedRaw   string
	Competence  string
	Error       string
}

// ExceptionKind tags an exception row.
type ExceptionKind int

const (
	ParseFailure ExceptionKind = iota
	CancelledInvoice
	OrphanCancellation
)

// String returns the label shown in the "tipo" column.
func (k ExceptionKind) String() string {
	switch k {
	case CancelledInvoice:
		return "NF cancelada"
	case OrphanCancellation:
		return "NF cancelada (sem XML da nota)"
	default:
		return "Falha de leitura"
	}
}

// Cancellation is the metadata merged into cancelled records.
type Cancellation struct {
	CancelledAt *time.Time
	Protocol    string
	EventSource string
	Actor       string
}

// Exception is one row of the exception set.
type Exception struct {
	Kind ExceptionKind

	// Source is the failed document (ParseFailure) or the invoice document
	// (CancelledInvoice). Empty for orphans.
	Source string

	// Hint is the classification hint in effect for the batch.
	Hint string

	// Err is the per-document failure. Nil for cancellation rows.
	Err error

	Diagnostic *Diagnostic

	// Record is the original invoice for CancelledInvoice.
	Record *Record

	// Key and Emitter identify orphan cancellations.
	Key     string
	Emitter string

	Cancellation *Cancellation
}

// Message returns Err's text, or "".
func (e Exception) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// =============================================================================
// BATCH RESULT
// =============================================================================

// BatchResult is the final active/exception split.
type BatchResult struct {
	Active     []Record
	Exceptions []Exception
}

// Count returns the number of exceptions of the given kind.
func (r BatchResult) Count(kind ExceptionKind) int {
	n := 0
	for _, e := range r.Exceptions {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
