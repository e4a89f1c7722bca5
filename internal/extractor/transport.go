package extractor

import (
	"github.com/beevik/etree"

	"github.com/ginjaninja78/fiscal-xml-reader/internal/keys"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/types"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/xmldoc"
)

const cteNS = xmldoc.CTeNS

// transportExtractor reads CT-e (model 57), bare or inside cteProc.
type transportExtractor struct{}

// NewTransportDocument returns the CT-e extractor.
func NewTransportDocument() Extractor { return transportExtractor{} }

func (transportExtractor) Name() string           { return types.TransportDocument.String() }
func (transportExtractor) Variant() types.Variant { return types.TransportDocument }

func transportNode(root *etree.Element) *etree.Element {
	if cte := xmldoc.Find(root, cteNS, "CTe"); cte != nil {
		return cte
	}
	return root
}

func (transportExtractor) Matches(root *etree.Element) bool {
	ide := xmldoc.Find(transportNode(root), cteNS, "ide")
	return xmldoc.ChildText(ide, cteNS, "mod") == "57"
}

func (transportExtractor) Extract(root *etree.Element, source string) (types.Record, error) {
	inf := xmldoc.Find(transportNode(root), cteNS, "infCte")
	if inf == nil {
		return types.Record{}, missingAnchor(source, "infCte")
	}

	ide := xmldoc.Find(inf, cteNS, "ide")
	prest := xmldoc.Find(inf, cteNS, "vPrest")
	cargo := xmldoc.Find(inf, cteNS, "infCarga")
	prot := xmldoc.Child(xmldoc.Find(root, cteNS, "protCTe"), cteNS, "infProt")

	rec := types.Record{
		Source:    source,
		Variant:   types.TransportDocument,
		AccessKey: xmldoc.KeyFromID(inf, "CTe"),
		Number:    xmldoc.ChildText(ide, cteNS, "nCT"),
		Series:    xmldoc.ChildText(ide, cteNS, "serie"),
		Model:     xmldoc.FirstOf(xmldoc.ChildText(ide, cteNS, "mod"), "57"),
		IssuedRaw: xmldoc.ChildText(ide, cteNS, "dhEmi"),
		Emitter:   cteParty(xmldoc.Find(inf, cteNS, "emit")),
		Sender:    cteParty(xmldoc.Find(inf, cteNS, "rem")),
		Recipient: cteParty(xmldoc.Find(inf, cteNS, "dest")),
		Total:     keys.ParseAmount(xmldoc.ChildText(prest, cteNS, "vTPrest")),
		Transport: &types.TransportInfo{
			CTeType:      xmldoc.ChildText(ide, cteNS, "tpCTe"),
			CFOP:         xmldoc.ChildText(ide, cteNS, "CFOP"),
			Nature:       xmldoc.ChildText(ide, cteNS, "natOp"),
			Received:     keys.ParseAmount(xmldoc.ChildText(prest, cteNS, "vRec")),
			CargoValue:   keys.ParseAmount(xmldoc.ChildText(cargo, cteNS, "vCarga")),
			Status:       xmldoc.ChildText(prot, cteNS, "cStat"),
			StatusReason: xmldoc.ChildText(prot, cteNS, "xMotivo"),
		},
	}
	rec.IssuedAt = keys.ParseTimestamp(rec.IssuedRaw)

	// A CT-e is classified once, at ide level, and priced by vTPrest.
	rec.Items = aggregateItems([]itemLine{{code: rec.Transport.CFOP, value: nullToZero(rec.Total)}})

	// imp/ICMS holds a single choice group (ICMS00, ICMS20, ICMS60, ...)
	// with no separate document totals.
	if g := xmldoc.FirstElement(xmldoc.Path(xmldoc.Find(inf, cteNS, "imp"), cteNS, "ICMS")); g != nil {
		applyTaxFallback(&rec.Taxes, []*etree.Element{g}, cteNS)
	}

	return rec, nil
}

func cteParty(el *etree.Element) types.Party {
	return types.Party{
		TaxID: xmldoc.FirstOf(xmldoc.ChildText(el, cteNS, "CNPJ"), xmldoc.ChildText(el, cteNS, "CPF")),
		Name:  xmldoc.ChildText(el, cteNS, "xNome"),
	}
}
