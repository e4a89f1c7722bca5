// =============================================================================
// Fiscal XML Reader - XML Document Access
// =============================================================================
//
// Thin helpers over beevik/etree used by every extractor, the classifier and
// the sniffer. Lookups are namespace-aware (matching the resolved namespace
// URI, not the prefix) and never fail: a missing element yields nil and a
// missing text yields "".
//
// PARSER OWNERSHIP:
//   A Parser carries its read settings (permissive mode, charset decoding).
//   Each batch task builds its own with NewParser; there is no shared parser
//   state between goroutines.
//
// LOOKUP VOCABULARY:
//   Child          - direct child in a namespace
//   Find           - first descendant (document order) in a namespace
//   FindLocal      - first descendant by local name, any namespace
//   FindAll        - every descendant in a namespace
//   SelfOrFind     - the element itself when it matches, else Find
//
// =============================================================================

package xmldoc

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
)

// Namespaces of the supported document families.
const (
	NFeNS    = "http://www.portalfiscal.inf.br/nfe"
	CTeNS    = "http://www.portalfiscal.inf.br/cte"
	ABRASFNS = "http://www.abrasf.org.br/ABRASF/arquivos/nfse.xsd"
)

// ErrNoRoot is returned for input that contains no element at all.
var ErrNoRoot = errors.New("document has no root element")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// =============================================================================
// PARSER
// =============================================================================

// Parser reads documents with tolerant settings.
type Parser struct {
	settings etree.ReadSettings
}

// NewParser returns a parser that accepts minor well-formedness slips
// (unquoted attributes, unknown entities) and decodes non-UTF-8 encodings
// declared in the XML prolog.
func NewParser() *Parser {
	return &Parser{
		settings: etree.ReadSettings{
			Permissive:    true,
			CharsetReader: charset.NewReaderLabel,
		},
	}
}

// Parse reads data and returns the root element.
func (p *Parser) Parse(data []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	doc.ReadSettings = p.settings
	if err := doc.ReadFromBytes(bytes.TrimPrefix(data, utf8BOM)); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, ErrNoRoot
	}
	return root, nil
}

// =============================================================================
// LOOKUPS
// =============================================================================

// Is reports whether el has the given namespace and local name.
func Is(el *etree.Element, ns, local string) bool {
	return el != nil && el.Tag == local && el.NamespaceURI() == ns
}

// Child returns the first direct child of el with the given name.
func Child(el *etree.Element, ns, local string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if Is(c, ns, local) {
			return c
		}
	}
	return nil
}

// Path walks direct children one name at a time, all in ns.
func Path(el *etree.Element, ns string, locals ...string) *etree.Element {
	for _, local := range locals {
		el = Child(el, ns, local)
		if el == nil {
			return nil
		}
	}
	return el
}

// Find returns the first descendant of el (excluding el) in document order.
func Find(el *etree.Element, ns, local string) *etree.Element {
	return find(el, func(c *etree.Element) bool { return Is(c, ns, local) })
}

// FindLocal is Find without the namespace check.
func FindLocal(el *etree.Element, local string) *etree.Element {
	return find(el, func(c *etree.Element) bool { return c.Tag == local })
}

// SelfOrFind returns el when it matches, otherwise its first matching
// descendant.
func SelfOrFind(el *etree.Element, ns, local string) *etree.Element {
	if Is(el, ns, local) {
		return el
	}
	return Find(el, ns, local)
}

// FindAll returns every descendant of el with the given name, in document
// order.
func FindAll(el *etree.Element, ns, local string) []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		for _, c := range e.ChildElements() {
			if Is(c, ns, local) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	if el != nil {
		walk(el)
	}
	return out
}

func find(el *etree.Element, match func(*etree.Element) bool) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if match(c) {
			return c
		}
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

// FirstElement returns the first child element of el, whatever its name.
// Used for choice groups such as ICMS00 / ICMS10 / ICMSSN102.
func FirstElement(el *etree.Element) *etree.Element {
	if el == nil {
		return nil
	}
	children := el.ChildElements()
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

// =============================================================================
// TEXT
// =============================================================================

// Text returns the trimmed text of el, or "".
func Text(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return strings.TrimSpace(el.Text())
}

// ChildText is Text(Child(el, ns, local)).
func ChildText(el *etree.Element, ns, local string) string {
	return Text(Child(el, ns, local))
}

// FindText is Text(Find(el, ns, local)).
func FindText(el *etree.Element, ns, local string) string {
	return Text(Find(el, ns, local))
}

// LocalText is Text(FindLocal(el, local)).
func LocalText(el *etree.Element, local string) string {
	return Text(FindLocal(el, local))
}

// FirstOf returns the first non-empty value.
func FirstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// KeyFromID strips the family prefix ("NFe", "CTe") from an Id attribute.
func KeyFromID(el *etree.Element, prefix string) string {
	if el == nil {
		return ""
	}
	id := strings.TrimSpace(el.SelectAttrValue("Id", ""))
	return strings.TrimPrefix(id, prefix)
}
