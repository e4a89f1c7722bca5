package extractor

import (
	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/fiscal-xml-reader/internal/keys"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/types"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/xmldoc"
)

const nfeNS = xmldoc.NFeNS

// invoiceExtractor covers NF-e (model 55) and NFC-e (model 65). Both share
// the NF-e layout and differ only in the ide/mod discriminator.
type invoiceExtractor struct {
	variant types.Variant
	model   string

	// acceptMissingModel lets a document without ide/mod match. Only the
	// model 55 extractor does this.
	acceptMissingModel bool
}

// NewPrimaryInvoice returns the NF-e (model 55) extractor.
func NewPrimaryInvoice() Extractor {
	return &invoiceExtractor{variant: types.PrimaryInvoice, model: "55", acceptMissingModel: true}
}

// NewConsumerInvoice returns the NFC-e (model 65) extractor.
func NewConsumerInvoice() Extractor {
	return &invoiceExtractor{variant: types.ConsumerInvoice, model: "65"}
}

func (x *invoiceExtractor) Name() string           { return x.variant.String() }
func (x *invoiceExtractor) Variant() types.Variant { return x.variant }

// invoiceNode locates the NFe element whether the document is a bare <NFe>
// or wrapped in <nfeProc>.
func invoiceNode(root *etree.Element) *etree.Element {
	if nfe := xmldoc.Find(root, nfeNS, "NFe"); nfe != nil {
		return nfe
	}
	if root != nil && root.Tag == "NFe" {
		return root
	}
	return nil
}

func (x *invoiceExtractor) Matches(root *etree.Element) bool {
	nfe := invoiceNode(root)
	if nfe == nil {
		return false
	}
	mod := xmldoc.ChildText(xmldoc.Find(nfe, nfeNS, "ide"), nfeNS, "mod")
	if mod == "" {
		return x.acceptMissingModel
	}
	return mod == x.model
}

func (x *invoiceExtractor) Extract(root *etree.Element, source string) (types.Record, error) {
	nfe := invoiceNode(root)
	if nfe == nil {
		nfe = root
	}
	inf := xmldoc.Find(nfe, nfeNS, "infNFe")
	if inf == nil {
		return types.Record{}, missingAnchor(source, "infNFe")
	}

	ide := xmldoc.Find(nfe, nfeNS, "ide")
	emit := xmldoc.Find(nfe, nfeNS, "emit")
	dest := xmldoc.Find(nfe, nfeNS, "dest")
	tot := xmldoc.Child(xmldoc.Find(nfe, nfeNS, "total"), nfeNS, "ICMSTot")

	rec := types.Record{
		Source:        source,
		Variant:       x.variant,
		AccessKey:     xmldoc.KeyFromID(inf, "NFe"),
		Number:        xmldoc.ChildText(ide, nfeNS, "nNF"),
		Series:        xmldoc.ChildText(ide, nfeNS, "serie"),
		Model:         xmldoc.FirstOf(xmldoc.ChildText(ide, nfeNS, "mod"), x.model),
		OperationType: xmldoc.ChildText(ide, nfeNS, "tpNF"),
		IssuedRaw:     xmldoc.FirstOf(xmldoc.ChildText(ide, nfeNS, "dhEmi"), xmldoc.ChildText(ide, nfeNS, "dEmi")),
		Emitter:       nfeParty(emit),
		Recipient:     nfeParty(dest),
		Total:         keys.ParseAmount(xmldoc.ChildText(tot, nfeNS, "vNF")),
		Taxes: types.TaxTotals{
			ICMSBase: keys.ParseAmount(xmldoc.ChildText(tot, nfeNS, "vBC")),
			ICMS:     keys.ParseAmount(xmldoc.ChildText(tot, nfeNS, "vICMS")),
			STBase:   keys.ParseAmount(xmldoc.ChildText(tot, nfeNS, "vBCST")),
			ST:       keys.ParseAmount(xmldoc.ChildText(tot, nfeNS, "vST")),
		},
	}
	rec.IssuedAt = keys.ParseTimestamp(rec.IssuedRaw)

	items := xmldoc.FindAll(nfe, nfeNS, "det")
	var lines []itemLine
	for _, det := range items {
		prod := xmldoc.Child(det, nfeNS, "prod")
		if prod == nil {
			continue
		}
		value := keys.ParseAmount(xmldoc.ChildText(prod, nfeNS, "vProd"))
		lines = append(lines, itemLine{
			code:  xmldoc.ChildText(prod, nfeNS, "CFOP"),
			value: nullToZero(value),
		})
	}
	rec.Items = aggregateItems(lines)
	applyTaxFallback(&rec.Taxes, icmsGroups(items, nfeNS), nfeNS)

	return rec, nil
}

// nfeParty reads CNPJ (or CPF) and xNome from an emit/dest block.
func nfeParty(el *etree.Element) types.Party {
	return types.Party{
		TaxID: xmldoc.FirstOf(xmldoc.ChildText(el, nfeNS, "CNPJ"), xmldoc.ChildText(el, nfeNS, "CPF")),
		Name:  xmldoc.ChildText(el, nfeNS, "xNome"),
	}
}

func nullToZero(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}
