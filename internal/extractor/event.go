package extractor

import (
	"github.com/beevik/etree"

	"github.com/ginjaninja78/fiscal-xml-reader/internal/keys"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/types"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/xmldoc"
)

// eventExtractor reads NF-e lifecycle events (cancellation 110111, CC-e
// 110110, ...), either raw <evento> or authorized <procEventoNFe>.
type eventExtractor struct{}

// NewLifecycleEvent returns the NF-e event extractor.
func NewLifecycleEvent() Extractor { return eventExtractor{} }

func (eventExtractor) Name() string           { return types.LifecycleEvent.String() }
func (eventExtractor) Variant() types.Variant { return types.LifecycleEvent }

func (eventExtractor) Matches(root *etree.Element) bool {
	if root == nil {
		return false
	}
	if root.Tag == "procEventoNFe" || root.Tag == "evento" {
		return true
	}
	return xmldoc.Find(root, nfeNS, "procEventoNFe") != nil || xmldoc.Find(root, nfeNS, "evento") != nil
}

func (eventExtractor) Extract(root *etree.Element, source string) (types.Record, error) {
	event := xmldoc.Find(root, nfeNS, "evento")
	if event == nil {
		event = root
	}
	inf := xmldoc.Find(event, nfeNS, "infEvento")
	if inf == nil {
		return types.Record{}, missingAnchor(source, "infEvento")
	}
	detail := xmldoc.Find(event, nfeNS, "detEvento")

	// The acknowledgement (retEvento) carries the authoritative protocol;
	// some states only echo it inside detEvento.
	ack := xmldoc.Find(root, nfeNS, "retEvento")

	info := &types.EventInfo{
		TargetKey:   xmldoc.ChildText(inf, nfeNS, "chNFe"),
		TypeCode:    xmldoc.ChildText(inf, nfeNS, "tpEvento"),
		Description: xmldoc.ChildText(detail, nfeNS, "descEvento"),
		OccurredRaw: xmldoc.ChildText(inf, nfeNS, "dhEvento"),
		Protocol: xmldoc.FirstOf(
			xmldoc.FindText(ack, nfeNS, "nProt"),
			xmldoc.ChildText(detail, nfeNS, "nProt"),
		),
		Actor: xmldoc.FirstOf(xmldoc.ChildText(inf, nfeNS, "CNPJ"), xmldoc.ChildText(inf, nfeNS, "CPF")),
	}
	info.OccurredAt = keys.ParseTimestamp(info.OccurredRaw)

	return types.Record{
		Source:    source,
		Variant:   types.LifecycleEvent,
		AccessKey: info.TargetKey,
		IssuedAt:  info.OccurredAt,
		IssuedRaw: info.OccurredRaw,
		Emitter:   types.Party{TaxID: info.Actor},
		Event:     info,
	}, nil
}
