// =============================================================================
// Fiscal XML Reader - Document Classifier
// =============================================================================
//
// The classifier decides which extractor owns a parsed document.
//
// RESOLUTION ORDER:
//   1. The hinted variant, when the caller selected one and its predicate
//      accepts the document.
//   2. Every registered extractor in registration order; the first whose
//      predicate accepts the document wins.
//
// A predicate that panics is treated as "no match" for that extractor only.
//
// =============================================================================

package classifier

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/ginjaninja78/fiscal-xml-reader/internal/extractor"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/types"
)

// Classifier holds the ordered extractor registry. It is read-only after
// construction and safe for concurrent use.
type Classifier struct {
	extractors []extractor.Extractor
}

// New creates a classifier over the given extractors. A nil or empty list
// selects extractor.Default().
func New(list []extractor.Extractor) *Classifier {
	if len(list) == 0 {
		list = extractor.Default()
	}
	return &Classifier{extractors: append([]extractor.Extractor(nil), list...)}
}

// Extractors returns the registry in resolution order.
func (c *Classifier) Extractors() []extractor.Extractor {
	return append([]extractor.Extractor(nil), c.extractors...)
}

// Classify picks the extractor for root.
//
// PARAMETERS:
//   - root: the parsed document element
//   - hint: a preferred variant, or types.VariantUnknown for automatic
//
// RETURNS:
//   - The matching extractor
//   - An error wrapping types.ErrUnrecognizedSchema when nothing matches
func (c *Classifier) Classify(root *etree.Element, hint types.Variant) (extractor.Extractor, error) {
	if hint != types.VariantUnknown {
		if x := extractor.ForVariant(c.extractors, hint); x != nil && safeMatch(x, root) {
			return x, nil
		}
	}

	for _, x := range c.extractors {
		if safeMatch(x, root) {
			return x, nil
		}
	}

	name := "<nil>"
	if root != nil {
		name = root.FullTag()
	}
	return nil, fmt.Errorf("%w: root element %s", types.ErrUnrecognizedSchema, name)
}

// safeMatch runs the predicate and turns a panic into a miss.
func safeMatch(x extractor.Extractor, root *etree.Element) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return x.Matches(root)
}
