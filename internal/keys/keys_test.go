package keys

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const sampleKey = "24240112345678000190550010000001231000001234"

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already normalized", sampleKey, sampleKey},
		{"prefixed id", "NFe" + sampleKey, sampleKey},
		{"formatted with spaces", "2424 0112 3456 7800 0190 5500 1000 0001 2310 0000 1234", sampleKey},
		{"longer keeps last 44", "99" + sampleKey, sampleKey},
		{"too short", sampleKey[:43], ""},
		{"empty", "", ""},
		{"no digits", "NFe", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeKey(tt.in)
			if got != tt.want {
				t.Fatalf("NormalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if got != "" && len(got) != KeyLength {
				t.Fatalf("length = %d, want %d", len(got), KeyLength)
			}
		})
	}
}

func TestNormalizeKeyIdempotent(t *testing.T) {
	inputs := []string{sampleKey, "CTe" + sampleKey, "x1y2" + sampleKey + "z", strings.Repeat("7", 60)}
	for _, in := range inputs {
		once := NormalizeKey(in)
		if twice := NormalizeKey(once); twice != once {
			t.Errorf("NormalizeKey not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestEmitterFromKey(t *testing.T) {
	key := "00" + "0124" + "12345678000190" + strings.Repeat("0", 24)
	if got := EmitterFromKey(key); got != "12345678000190" {
		t.Fatalf("EmitterFromKey = %q, want 12345678000190", got)
	}

	for _, bad := range []string{"", key[:43], key + "1", "NFe" + key[3:]} {
		if got := EmitterFromKey(bad); got != "" {
			t.Errorf("EmitterFromKey(%q) = %q, want empty", bad, got)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		valid bool
	}{
		{"1.234,56", "1234.56", true},
		{"1234.56", "1234.56", true},
		{"1234,56", "1234.56", true},
		{"1,234.56", "1234.56", true},
		{" 10.00 ", "10", true},
		{"0", "0", true},
		{"", "", false},
		{"   ", "", false},
		{"abc", "", false},
	}

	for _, tt := range tests {
		got := ParseAmount(tt.in)
		if got.Valid != tt.valid {
			t.Errorf("ParseAmount(%q).Valid = %v, want %v", tt.in, got.Valid, tt.valid)
			continue
		}
		if tt.valid && !got.Decimal.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got.Decimal, tt.want)
		}
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"5", "0.05"},
		{"2,5", "0.025"},
		{"0.05", "0.05"},
		{"1", "1"},
	}
	for _, tt := range tests {
		got := ParsePercent(tt.in)
		if !got.Valid || !got.Decimal.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("ParsePercent(%q) = %v, want %s", tt.in, got, tt.want)
		}
	}
	if ParsePercent("").Valid {
		t.Error("ParsePercent(\"\") should be missing")
	}
}

func TestIsZeroOrMissing(t *testing.T) {
	if !IsZeroOrMissing(decimal.NullDecimal{}) {
		t.Error("missing should count")
	}
	if !IsZeroOrMissing(ParseAmount("0,00")) {
		t.Error("zero should count")
	}
	if IsZeroOrMissing(ParseAmount("0,01")) {
		t.Error("non-zero should not count")
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-15T10:30:00-03:00", time.Date(2024, 1, 15, 13, 30, 0, 0, time.UTC)},
		{"2024-01-15T10:30:00Z", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"2024-01-15T10:30:00", time.Date(2024, 1, 15, 13, 30, 0, 0, time.UTC)},
		{"2024-01-15", time.Date(2024, 1, 15, 3, 0, 0, 0, time.UTC)},
		{"15/01/2024 10:30:00", time.Date(2024, 1, 15, 13, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got := ParseTimestamp(tt.in)
		if got == nil {
			t.Errorf("ParseTimestamp(%q) = nil", tt.in)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%q) = %s, want %s", tt.in, got.UTC(), tt.want)
		}
	}

	for _, bad := range []string{"", "not a date", "2024-13-45"} {
		if got := ParseTimestamp(bad); got != nil {
			t.Errorf("ParseTimestamp(%q) = %v, want nil", bad, got)
		}
	}
}
