package extractor

import (
	"sort"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/fiscal-xml-reader/internal/keys"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/types"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/xmldoc"
)

// =============================================================================
// LINE-ITEM AGGREGATION
// =============================================================================

// itemLine is one classified line: its CFOP and the value it weighs.
type itemLine struct {
	code  string
	value decimal.Decimal
}

// aggregateItems collects the distinct codes and picks the predominant one.
// The predominant code has the largest summed value; on a tie the code
// encountered first in document order wins.
func aggregateItems(lines []itemLine) types.ItemSummary {
	sums := make(map[string]decimal.Decimal)
	var order []string
	for _, l := range lines {
		if l.code == "" {
			continue
		}
		if _, seen := sums[l.code]; !seen {
			order = append(order, l.code)
			sums[l.code] = decimal.Zero
		}
		sums[l.code] = sums[l.code].Add(l.value)
	}
	if len(order) == 0 {
		return types.ItemSummary{}
	}

	predominant := order[0]
	for _, code := range order[1:] {
		if sums[code].GreaterThan(sums[predominant]) {
			predominant = code
		}
	}

	codes := append([]string(nil), order...)
	sort.Strings(codes)
	return types.ItemSummary{Codes: codes, Predominant: predominant}
}

// =============================================================================
// TAX-TOTAL FALLBACK
// =============================================================================

// fieldSum accumulates one tax field across item groups.
type fieldSum struct {
	total decimal.Decimal
	found bool
}

func (s *fieldSum) add(v decimal.NullDecimal) {
	if v.Valid {
		s.total = s.total.Add(v.Decimal)
		s.found = true
	}
}

// applyTaxFallback recomputes zero or missing document tax totals from the
// per-item ICMS groups (the first child of each item's ICMS element).
//
// RULES:
//   - own ICMS:  base = Σ vBC,  tax = Σ vICMS
//   - ST:        base = Σ (vBCST + vBCSTRet)
//                tax  = Σ (vICMSST + vICMSSTRet + vICMSSubstituto)
//   - a pair is only recomputed when at least one of its totals is zero or
//     missing, and only when some item actually carried one of its fields
//   - a recomputed sum only replaces a total that is itself zero or missing
func applyTaxFallback(totals *types.TaxTotals, groups []*etree.Element, ns string) {
	amount := func(g *etree.Element, local string) decimal.NullDecimal {
		return keys.ParseAmount(xmldoc.ChildText(g, ns, local))
	}

	if keys.IsZeroOrMissing(totals.ICMSBase) || keys.IsZeroOrMissing(totals.ICMS) {
		var base, tax fieldSum
		for _, g := range groups {
			base.add(amount(g, "vBC"))
			tax.add(amount(g, "vICMS"))
		}
		if base.found || tax.found {
			if keys.IsZeroOrMissing(totals.ICMSBase) {
				totals.ICMSBase = decimal.NewNullDecimal(base.total)
			}
			if keys.IsZeroOrMissing(totals.ICMS) {
				totals.ICMS = decimal.NewNullDecimal(tax.total)
			}
		}
	}

	if keys.IsZeroOrMissing(totals.STBase) || keys.IsZeroOrMissing(totals.ST) {
		var base, tax fieldSum
		for _, g := range groups {
			base.add(amount(g, "vBCST"))
			base.add(amount(g, "vBCSTRet"))
			tax.add(amount(g, "vICMSST"))
			tax.add(amount(g, "vICMSSTRet"))
			tax.add(amount(g, "vICMSSubstituto"))
		}
		if base.found || tax.found {
			if keys.IsZeroOrMissing(totals.STBase) {
				totals.STBase = decimal.NewNullDecimal(base.total)
			}
			if keys.IsZeroOrMissing(totals.ST) {
				totals.ST = decimal.NewNullDecimal(tax.total)
			}
		}
	}
}

// icmsGroups returns the first child of every imposto/ICMS under the given
// item elements, skipping items without one.
func icmsGroups(items []*etree.Element, ns string) []*etree.Element {
	var groups []*etree.Element
	for _, det := range items {
		if g := xmldoc.FirstElement(xmldoc.Path(det, ns, "imposto", "ICMS")); g != nil {
			groups = append(groups, g)
		}
	}
	return groups
}
