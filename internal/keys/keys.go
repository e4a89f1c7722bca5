// =============================================================================
// Fiscal XML Reader - Key Normalizer
// =============================================================================
//
// Canonical key derivation and value coercion. Everything here is pure and
// never fails: unparseable input maps to the "missing" value of the return
// type ("" for keys, an invalid NullDecimal for numbers, nil for times).
//
// ACCESS KEY LAYOUT (44 digits):
//   [0:2)   cUF     - issuer state code
//   [2:6)   AAMM    - year/month of issue
//   [6:20)  CNPJ    - issuer tax id
//   [20:22) mod     - document model
//   ...     serie, number, emission type, random code, check digit
//
// =============================================================================

package keys

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// KeyLength is the number of digits in a fiscal access key.
const KeyLength = 44

// =============================================================================
// KEYS
// =============================================================================

// NormalizeKey strips non-digits and returns the last 44 digits, or "" when
// fewer than 44 remain.
func NormalizeKey(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < KeyLength {
		return ""
	}
	return digits[len(digits)-KeyLength:]
}

// EmitterFromKey returns the issuer CNPJ embedded at [6:20) of a valid key.
// Any input that is not exactly 44 digits yields "".
func EmitterFromKey(key string) string {
	if len(key) != KeyLength || NormalizeKey(key) != key {
		return ""
	}
	return key[6:20]
}

// =============================================================================
// NUMBERS
// =============================================================================

// ParseAmount parses a decimal written in either Brazilian ("1.234,56") or
// plain ("1234.56") notation.
//
// DISAMBIGUATION:
//   - both separators present: the rightmost one is the decimal separator
//   - only ',' present: ',' is the decimal separator
//   - otherwise: parsed as is
func ParseAmount(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// ParsePercent parses a rate and normalizes it to a 0..1 fraction: values
// above 1 are taken as percentages and divided by 100.
func ParsePercent(s string) decimal.NullDecimal {
	v := ParseAmount(s)
	if !v.Valid {
		return v
	}
	if v.Decimal.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewNullDecimal(v.Decimal.Div(decimal.NewFromInt(100)))
	}
	return v
}

// IsZeroOrMissing reports whether a total should be replaced by a
// recomputed value.
func IsZeroOrMissing(v decimal.NullDecimal) bool {
	return !v.Valid || v.Decimal.IsZero()
}

// =============================================================================
// TIMESTAMPS
// =============================================================================

// Brasilia is the zone applied to timestamps written without an offset.
// Fiscal documents without an explicit offset are issued in Brasília time.
var Brasilia = time.FixedZone("BRT", -3*60*60)

// timestampLayouts are tried in order. Layouts carrying an offset come
// first so that zone-less layouts never swallow an offset suffix.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"20060102",
}

// ParseTimestamp parses a timestamp permissively. Zone-less values are read
// in Brasília time. Unparseable or empty input returns nil.
func ParseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, Brasilia); err == nil {
			return &t
		}
	}
	return nil
}
