// =============================================================================
// Fiscal XML Reader - Diagnostic Sniffer
// =============================================================================
//
// When a document fails, the sniffer takes a second, shallow look at its raw
// bytes so the error report can still say what the file probably was.
//
// PROBES (first hit wins):
//   NFe/NFCe  infNFe   key, mod, tpAmb, nNF, dhEmi|dEmi
//   CTe       infCte   key, mod, tpAmb, nCT, dhEmi
//   NFSe      InfNfse  Numero, DataEmissao, Competencia
//
// Lookups are by local name only; a failed document is often one whose
// namespace is wrong.
//
// =============================================================================

package sniffer

import (
	"github.com/beevik/etree"

	"github.com/ginjaninja78/fiscal-xml-reader/internal/types"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/xmldoc"
)

// Sniff never fails. Malformed input yields OK=false with Error set;
// well-formed input with no known marker yields OK=false and no error.
func Sniff(raw []byte) types.Diagnostic {
	root, err := xmldoc.NewParser().Parse(raw)
	if err != nil {
		return types.Diagnostic{Error: "XML inválido: " + err.Error()}
	}

	for _, probe := range probes {
		if d, ok := probe(root); ok {
			d.OK = true
			return d
		}
	}
	return types.Diagnostic{}
}

var probes = []func(*etree.Element) (types.Diagnostic, bool){
	sniffInvoice,
	sniffTransport,
	sniffService,
}

// selfOrLocal matches root itself or its first descendant named local.
func selfOrLocal(root *etree.Element, local string) *etree.Element {
	if root.Tag == local {
		return root
	}
	return xmldoc.FindLocal(root, local)
}

func sniffInvoice(root *etree.Element) (types.Diagnostic, bool) {
	inf := selfOrLocal(root, "infNFe")
	if inf == nil {
		return types.Diagnostic{}, false
	}
	ide := xmldoc.FindLocal(inf, "ide")
	return types.Diagnostic{
		Kind:        "NFe/NFCe",
		Key:         xmldoc.FirstOf(xmldoc.KeyFromID(inf, "NFe"), xmldoc.LocalText(root, "chNFe")),
		Model:       xmldoc.LocalText(ide, "mod"),
		Environment: xmldoc.LocalText(ide, "tpAmb"),
		Number:      xmldoc.LocalText(ide, "nNF"),
		IssuedRaw:   xmldoc.FirstOf(xmldoc.LocalText(ide, "dhEmi"), xmldoc.LocalText(ide, "dEmi")),
	}, true
}

func sniffTransport(root *etree.Element) (types.Diagnostic, bool) {
	inf := selfOrLocal(root, "infCte")
	if inf == nil {
		return types.Diagnostic{}, false
	}
	ide := xmldoc.FindLocal(inf, "ide")
	return types.Diagnostic{
		Kind:        "CTe",
		Key:         xmldoc.FirstOf(xmldoc.KeyFromID(inf, "CTe"), xmldoc.LocalText(root, "chCTe")),
		Model:       xmldoc.LocalText(ide, "mod"),
		Environment: xmldoc.LocalText(ide, "tpAmb"),
		Number:      xmldoc.LocalText(ide, "nCT"),
		IssuedRaw:   xmldoc.LocalText(ide, "dhEmi"),
	}, true
}

func sniffService(root *etree.Element) (types.Diagnostic, bool) {
	inf := selfOrLocal(root, "InfNfse")
	if inf == nil {
		return types.Diagnostic{}, false
	}
	return types.Diagnostic{
		Kind:       "NFSe",
		Number:     xmldoc.LocalText(inf, "Numero"),
		IssuedRaw:  xmldoc.LocalText(inf, "DataEmissao"),
		Competence: xmldoc.LocalText(inf, "Competencia"),
	}, true
}
