// =============================================================================
// Fiscal XML Reader - Schema Extractors
// =============================================================================
//
// One Extractor per document family. Each pairs a cheap structural match
// predicate with a tolerant field extraction into types.Record.
//
// EXTRACTION RULES:
//   - A missing optional field is never an error: it stays "" / invalid / nil.
//   - Numbers go through keys.ParseAmount, rates through keys.ParsePercent,
//     timestamps through keys.ParseTimestamp.
//   - Extract returns types.ErrExtractionFailure only when the anchor element
//     the whole record hangs off (infNFe, infCte, InfNfse, infEvento) is
//     missing from a document that otherwise matched.
//
// ORDER:
//   Default() returns the classification order. The regional NFS-e variants
//   sit before the generic ABRASF one, whose predicate also accepts them.
//
// =============================================================================

package extractor

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/ginjaninja78/fiscal-xml-reader/internal/types"
)

// Extractor is one schema variant.
type Extractor interface {
	// Name is the display name used in outputs and hints.
	Name() string

	// Variant tags the records this extractor produces.
	Variant() types.Variant

	// Matches inspects structural markers only.
	Matches(root *etree.Element) bool

	// Extract builds the record. source is copied into Record.Source.
	Extract(root *etree.Element, source string) (types.Record, error)
}

// Default returns the extractors in classification order.
func Default() []Extractor {
	return []Extractor{
		NewPrimaryInvoice(),
		NewConsumerInvoice(),
		NewRegionalServiceInvoice(types.ServiceInvoiceRegionalRendered),
		NewRegionalServiceInvoice(types.ServiceInvoiceRegionalReceived),
		NewGenericServiceInvoice(),
		NewLifecycleEvent(),
		NewTransportDocument(),
	}
}

// ForVariant returns the extractor in list that produces v, or nil.
func ForVariant(list []Extractor, v types.Variant) Extractor {
	for _, e := range list {
		if e.Variant() == v {
			return e
		}
	}
	return nil
}

// missingAnchor builds the error returned when a matched document lacks the
// element every field hangs off.
func missingAnchor(source, element string) error {
	return types.NewDocumentError(types.ErrExtractionFailure, source,
		fmt.Errorf("required element %s not found", element))
}
