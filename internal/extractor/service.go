package extractor

import (
	"github.com/beevik/etree"

	"github.com/ginjaninja78/fiscal-xml-reader/internal/keys"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/types"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/xmldoc"
)

const abrasfNS = xmldoc.ABRASFNS

// =============================================================================
// GENERIC ABRASF
// =============================================================================

// genericServiceExtractor reads any ABRASF-shaped NFS-e. Municipal layouts
// diverge in namespace and nesting, so every lookup is by local name.
type genericServiceExtractor struct{}

// NewGenericServiceInvoice returns the namespace-agnostic NFS-e extractor.
func NewGenericServiceInvoice() Extractor { return genericServiceExtractor{} }

func (genericServiceExtractor) Name() string           { return types.ServiceInvoiceGeneric.String() }
func (genericServiceExtractor) Variant() types.Variant { return types.ServiceInvoiceGeneric }

func (genericServiceExtractor) Matches(root *etree.Element) bool {
	if root == nil {
		return false
	}
	if root.Tag == "CompNfse" || root.Tag == "Nfse" {
		return true
	}
	return xmldoc.FindLocal(root, "InfNfse") != nil
}

func (genericServiceExtractor) Extract(root *etree.Element, source string) (types.Record, error) {
	inf := xmldoc.FindLocal(root, "InfNfse")
	rps := xmldoc.FindLocal(root, "IdentificacaoRps")
	if rps == nil {
		rps = root
	}
	provider := xmldoc.FindLocal(root, "PrestadorServico")
	taker := xmldoc.FindLocal(root, "TomadorServico")
	values := xmldoc.FindLocal(root, "Valores")

	rec := types.Record{
		Source:    source,
		Variant:   types.ServiceInvoiceGeneric,
		Number:    xmldoc.LocalText(rps, "Numero"),
		Series:    xmldoc.LocalText(rps, "Serie"),
		IssuedRaw: xmldoc.LocalText(inf, "DataEmissao"),
		Emitter: types.Party{
			TaxID: xmldoc.FirstOf(xmldoc.LocalText(provider, "Cnpj"), xmldoc.LocalText(provider, "Cpf")),
			Name:  xmldoc.LocalText(provider, "RazaoSocial"),
		},
		Recipient: types.Party{
			TaxID: xmldoc.FirstOf(xmldoc.LocalText(taker, "Cnpj"), xmldoc.LocalText(taker, "Cpf")),
			Name:  xmldoc.FirstOf(xmldoc.LocalText(taker, "RazaoSocial"), xmldoc.LocalText(taker, "Nome")),
		},
		Total: keys.ParseAmount(xmldoc.FirstOf(
			xmldoc.LocalText(values, "ValorServicos"),
			xmldoc.LocalText(inf, "OutrasInformacoes"),
		)),
		Municipality: xmldoc.LocalText(inf, "CodigoMunicipio"),
	}
	rec.IssuedAt = keys.ParseTimestamp(rec.IssuedRaw)
	return rec, nil
}

// =============================================================================
// REGIONAL (RN) RENDERED / RECEIVED
// =============================================================================

// regionalServiceExtractor reads the RN municipal layout in the ABRASF
// namespace. The two variants share every field and differ in who the taker
// is: a person (Cpf) for services rendered to consumers, a company (Cnpj)
// for services taken by a business.
type regionalServiceExtractor struct {
	variant types.Variant
	flow    string
}

// NewRegionalServiceInvoice returns the RN extractor for either
// ServiceInvoiceRegionalRendered or ServiceInvoiceRegionalReceived.
func NewRegionalServiceInvoice(v types.Variant) Extractor {
	flow := "Prestado"
	if v == types.ServiceInvoiceRegionalReceived {
		flow = "Tomado"
	}
	return &regionalServiceExtractor{variant: v, flow: flow}
}

func (x *regionalServiceExtractor) Name() string           { return x.variant.String() }
func (x *regionalServiceExtractor) Variant() types.Variant { return x.variant }

func (x *regionalServiceExtractor) Matches(root *etree.Element) bool {
	inf := xmldoc.Find(root, abrasfNS, "InfNfse")
	if inf == nil {
		return false
	}
	if xmldoc.ChildText(xmldoc.Child(inf, abrasfNS, "OrgaoGerador"), abrasfNS, "Uf") != "RN" {
		return false
	}
	taker := xmldoc.Child(inf, abrasfNS, "TomadorServico")
	hasCPF := xmldoc.Find(taker, abrasfNS, "Cpf") != nil
	if x.variant == types.ServiceInvoiceRegionalRendered {
		return hasCPF
	}
	return !hasCPF && xmldoc.Find(taker, abrasfNS, "Cnpj") != nil
}

func (x *regionalServiceExtractor) Extract(root *etree.Element, source string) (types.Record, error) {
	inf := xmldoc.Find(root, abrasfNS, "InfNfse")
	if inf == nil {
		return types.Record{}, missingAnchor(source, "InfNfse")
	}

	service := xmldoc.Child(inf, abrasfNS, "Servico")
	values := xmldoc.Child(service, abrasfNS, "Valores")
	provider := xmldoc.Child(inf, abrasfNS, "PrestadorServico")
	providerID := xmldoc.Child(provider, abrasfNS, "IdentificacaoPrestador")
	taker := xmldoc.Child(inf, abrasfNS, "TomadorServico")
	body := xmldoc.Child(inf, abrasfNS, "OrgaoGerador")

	text := func(el *etree.Element, local string) string {
		return xmldoc.ChildText(el, abrasfNS, local)
	}

	info := &types.ServiceInfo{
		VerificationCode:       text(inf, "CodigoVerificacao"),
		CompetenceAt:           keys.ParseTimestamp(text(inf, "Competencia")),
		ISSValue:               keys.ParseAmount(text(values, "ValorIss")),
		ISSRate:                keys.ParsePercent(text(values, "Aliquota")),
		ISSWithheld:            text(values, "IssRetido"),
		ServiceListItem:        text(service, "ItemListaServico"),
		CNAE:                   text(service, "CodigoCnae"),
		Description:            text(service, "Discriminacao"),
		ServiceMunicipality:    text(service, "CodigoMunicipio"),
		IssuerBodyMunicipality: text(body, "CodigoMunicipio"),
		IssuerBodyState:        text(body, "Uf"),
		RegionalModel:          "RN",
		Flow:                   x.flow,
	}

	rec := types.Record{
		Source:    source,
		Variant:   x.variant,
		Number:    text(inf, "Numero"),
		IssuedRaw: text(inf, "DataEmissao"),
		Emitter: types.Party{
			TaxID:                 text(providerID, "Cnpj"),
			MunicipalRegistration: text(providerID, "InscricaoMunicipal"),
			Name:                  text(provider, "RazaoSocial"),
		},
		Recipient: types.Party{
			TaxID: xmldoc.FirstOf(
				xmldoc.FindText(taker, abrasfNS, "Cnpj"),
				xmldoc.FindText(taker, abrasfNS, "Cpf"),
			),
			Name: text(taker, "RazaoSocial"),
		},
		Total:        keys.ParseAmount(text(values, "ValorServicos")),
		Municipality: info.ServiceMunicipality,
		Service:      info,
	}
	rec.IssuedAt = keys.ParseTimestamp(rec.IssuedRaw)
	return rec, nil
}
