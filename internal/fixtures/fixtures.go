// Package fixtures builds small but structurally faithful fiscal XML
// documents for tests across packages.
package fixtures

import (
	"fmt"
	"sort"
	"strings"
)

// Key builds a valid 44-digit access key for the given issuer CNPJ.
// Layout: cUF(2) AAMM(4) CNPJ(14) mod(2) serie(3) nNF(9) tpEmis(1) cNF(8) cDV(1).
func Key(cnpj string, number int) string {
	return fmt.Sprintf("24%s%s55001%09d1%08d0", "2401", cnpj, number, number)
}

func tag(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "<%s>%s</%s>", name, value, name)
}

func sortedTags(b *strings.Builder, fields map[string]string) {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		tag(b, k, fields[k])
	}
}

// =============================================================================
// NF-e / NFC-e
// =============================================================================

// Item is one det/prod line.
type Item struct {
	CFOP  string
	Value string

	// Group is the ICMS choice group name, "ICMS00" when empty.
	Group string

	// Taxes are the children of the ICMS group (vBC, vICMS, vBCST, ...).
	Taxes map[string]string
}

// Invoice describes an NF-e or NFC-e.
type Invoice struct {
	Key           string
	Model         string // "" omits ide/mod
	Number        string
	Series        string
	OperationType string
	IssuedAt      string
	EmitterCNPJ   string
	EmitterName   string
	RecipientCNPJ string
	RecipientCPF  string
	RecipientName string
	Total         string

	// Totals are extra ICMSTot children (vBC, vICMS, vBCST, vST).
	Totals map[string]string
	Items  []Item

	// Bare omits the nfeProc wrapper.
	Bare bool
}

// XML renders the invoice.
func (inv Invoice) XML() []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	if !inv.Bare {
		b.WriteString(`<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">`)
		b.WriteString(`<NFe>`)
	} else {
		b.WriteString(`<NFe xmlns="http://www.portalfiscal.inf.br/nfe">`)
	}
	fmt.Fprintf(&b, `<infNFe Id="NFe%s" versao="4.00">`, inv.Key)

	b.WriteString("<ide>")
	tag(&b, "mod", inv.Model)
	tag(&b, "serie", inv.Series)
	tag(&b, "nNF", inv.Number)
	tag(&b, "dhEmi", inv.IssuedAt)
	tag(&b, "tpNF", inv.OperationType)
	b.WriteString("</ide>")

	b.WriteString("<emit>")
	tag(&b, "CNPJ", inv.EmitterCNPJ)
	tag(&b, "xNome", inv.EmitterName)
	b.WriteString("</emit>")

	if inv.RecipientCNPJ != "" || inv.RecipientCPF != "" || inv.RecipientName != "" {
		b.WriteString("<dest>")
		tag(&b, "CNPJ", inv.RecipientCNPJ)
		tag(&b, "CPF", inv.RecipientCPF)
		tag(&b, "xNome", inv.RecipientName)
		b.WriteString("</dest>")
	}

	for i, it := range inv.Items {
		fmt.Fprintf(&b, `<det nItem="%d"><prod>`, i+1)
		tag(&b, "CFOP", it.CFOP)
		tag(&b, "vProd", it.Value)
		b.WriteString("</prod>")
		if len(it.Taxes) > 0 {
			group := it.Group
			if group == "" {
				group = "ICMS00"
			}
			fmt.Fprintf(&b, "<imposto><ICMS><%s>", group)
			sortedTags(&b, it.Taxes)
			fmt.Fprintf(&b, "</%s></ICMS></imposto>", group)
		}
		b.WriteString("</det>")
	}

	b.WriteString("<total><ICMSTot>")
	sortedTags(&b, inv.Totals)
	tag(&b, "vNF", inv.Total)
	b.WriteString("</ICMSTot></total>")

	b.WriteString("</infNFe>")
	if !inv.Bare {
		b.WriteString("</NFe>")
		fmt.Fprintf(&b, `<protNFe><infProt><chNFe>%s</chNFe><cStat>100</cStat></infProt></protNFe>`, inv.Key)
		b.WriteString("</nfeProc>")
	} else {
		b.WriteString("</NFe>")
	}
	return []byte(b.String())
}

// =============================================================================
// EVENTS
// =============================================================================

// Event describes a procEventoNFe.
type Event struct {
	TargetKey   string
	TypeCode    string
	Description string
	OccurredAt  string
	Protocol    string
	Actor       string

	// InlineProtocol places nProt inside detEvento and omits retEvento.
	InlineProtocol bool
}

// Cancellation returns a 110111 event for key.
func Cancellation(key, occurredAt, protocol string) Event {
	return Event{
		TargetKey:   key,
		TypeCode:    "110111",
		Description: "Cancelamento",
		OccurredAt:  occurredAt,
		Protocol:    protocol,
	}
}

// XML renders the event.
func (e Event) XML() []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<procEventoNFe xmlns="http://www.portalfiscal.inf.br/nfe" versao="1.00">`)
	b.WriteString(`<evento versao="1.00"><infEvento Id="ID` + e.TypeCode + e.TargetKey + `01">`)
	tag(&b, "cOrgao", "24")
	tag(&b, "CNPJ", e.Actor)
	tag(&b, "chNFe", e.TargetKey)
	tag(&b, "dhEvento", e.OccurredAt)
	tag(&b, "tpEvento", e.TypeCode)
	b.WriteString(`<detEvento versao="1.00">`)
	tag(&b, "descEvento", e.Description)
	if e.InlineProtocol {
		tag(&b, "nProt", e.Protocol)
	} else {
		tag(&b, "nProt", "124240000000001")
	}
	tag(&b, "xJust", "Erro na emissao da nota fiscal")
	b.WriteString(`</detEvento></infEvento></evento>`)
	if !e.InlineProtocol {
		b.WriteString(`<retEvento versao="1.00"><infEvento>`)
		tag(&b, "cStat", "135")
		tag(&b, "chNFe", e.TargetKey)
		tag(&b, "nProt", e.Protocol)
		b.WriteString(`</infEvento></retEvento>`)
	}
	b.WriteString(`</procEventoNFe>`)
	return []byte(b.String())
}

// =============================================================================
// CT-e
// =============================================================================

// Transport renders a cteProc with a single ICMS00 group.
func Transport(key, cfop, total string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<cteProc xmlns="http://www.portalfiscal.inf.br/cte" versao="4.00"><CTe><infCte Id="CTe` + key + `" versao="4.00">` +
		`<ide><CFOP>` + cfop + `</CFOP><natOp>PRESTACAO DE SERVICO DE TRANSPORTE</natOp><mod>57</mod><serie>1</serie><nCT>321</nCT>` +
		`<dhEmi>2024-01-10T08:00:00-03:00</dhEmi><tpCTe>0</tpCTe></ide>` +
		`<emit><CNPJ>11222333000181</CNPJ><xNome>Transportadora Potiguar</xNome></emit>` +
		`<rem><CNPJ>12345678000190</CNPJ><xNome>Remetente SA</xNome></rem>` +
		`<dest><CNPJ>99888777000166</CNPJ><xNome>Destino Ltda</xNome></dest>` +
		`<vPrest><vTPrest>` + total + `</vTPrest><vRec>` + total + `</vRec></vPrest>` +
		`<imp><ICMS><ICMS00><CST>00</CST><vBC>` + total + `</vBC><pICMS>12.00</pICMS><vICMS>120.00</vICMS></ICMS00></ICMS></imp>` +
		`<infCTeNorm><infCarga><vCarga>5000.00</vCarga></infCarga></infCTeNorm>` +
		`</infCte></CTe>` +
		`<protCTe><infProt><chCTe>` + key + `</chCTe><cStat>100</cStat><xMotivo>Autorizado o uso do CT-e</xMotivo></infProt></protCTe>` +
		`</cteProc>`)
}

// =============================================================================
// NFS-e
// =============================================================================

// RegionalService renders an RN NFS-e. takerCPF selects a person taker
// (Prestado); otherwise the taker carries a CNPJ (Tomado).
func RegionalService(takerCPF bool) []byte {
	taker := `<Cnpj>99888777000166</Cnpj>`
	if takerCPF {
		taker = `<Cpf>12345678909</Cpf>`
	}
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<CompNfse xmlns="http://www.abrasf.org.br/ABRASF/arquivos/nfse.xsd"><Nfse><InfNfse>` +
		`<Numero>202400000000042</Numero><CodigoVerificacao>ABCD-1234</CodigoVerificacao>` +
		`<DataEmissao>2024-02-01T09:15:00</DataEmissao><Competencia>2024-02-01</Competencia>` +
		`<Servico><Valores><ValorServicos>1500,00</ValorServicos><IssRetido>2</IssRetido>` +
		`<ValorIss>75,00</ValorIss><Aliquota>5</Aliquota></Valores>` +
		`<ItemListaServico>17.01</ItemListaServico><CodigoCnae>6201501</CodigoCnae>` +
		`<Discriminacao>Consultoria em sistemas</Discriminacao><CodigoMunicipio>2408102</CodigoMunicipio></Servico>` +
		`<PrestadorServico><IdentificacaoPrestador><Cnpj>12345678000190</Cnpj>` +
		`<InscricaoMunicipal>1234567</InscricaoMunicipal></IdentificacaoPrestador>` +
		`<RazaoSocial>Prestadora Natal Ltda</RazaoSocial></PrestadorServico>` +
		`<TomadorServico><IdentificacaoTomador><CpfCnpj>` + taker + `</CpfCnpj></IdentificacaoTomador>` +
		`<RazaoSocial>Tomador do Servico</RazaoSocial></TomadorServico>` +
		`<OrgaoGerador><CodigoMunicipio>2408102</CodigoMunicipio><Uf>RN</Uf></OrgaoGerador>` +
		`</InfNfse></Nfse></CompNfse>`)
}

// GenericService renders an ABRASF NFS-e from another municipality, in a
// namespace none of the regional extractors know.
func GenericService() []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<ConsultarNfseResposta xmlns="http://www.ginfes.com.br/servico_consultar_nfse_resposta_v03.xsd">` +
		`<ListaNfse><CompNfse><Nfse><InfNfse>` +
		`<Numero>777</Numero><DataEmissao>2024-03-05T14:00:00</DataEmissao>` +
		`<IdentificacaoRps><Numero>55</Numero><Serie>A1</Serie></IdentificacaoRps>` +
		`<Servico><Valores><ValorServicos>980.50</ValorServicos></Valores></Servico>` +
		`<PrestadorServico><IdentificacaoPrestador><Cnpj>33444555000122</Cnpj></IdentificacaoPrestador>` +
		`<RazaoSocial>Servicos Gerais SA</RazaoSocial></PrestadorServico>` +
		`<TomadorServico><RazaoSocial>Cliente Final</RazaoSocial></TomadorServico>` +
		`<OrgaoGerador><CodigoMunicipio>3550308</CodigoMunicipio><Uf>SP</Uf></OrgaoGerador>` +
		`</InfNfse></Nfse></CompNfse></ListaNfse></ConsultarNfseResposta>`)
}

// =============================================================================
// FAILURES
// =============================================================================

// Truncated returns an NF-e cut off mid-document.
func Truncated(key string) []byte {
	full := Invoice{Key: key, Model: "55", Number: "1"}.XML()
	return full[:len(full)/2]
}

// Unknown returns well-formed XML that no extractor recognizes.
func Unknown() []byte {
	return []byte(`<?xml version="1.0"?><pedido><cliente>123</cliente></pedido>`)
}
