package sniffer

import (
	"strings"
	"testing"

	"github.com/ginjaninja78/fiscal-xml-reader/internal/fixtures"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/types"
)

func TestSniff(t *testing.T) {
	key := fixtures.Key("12345678000190", 15)

	tests := []struct {
		name string
		raw  []byte
		want types.Diagnostic
	}{
		{
			name: "nfe",
			raw: fixtures.Invoice{
				Key: key, Model: "55", Number: "15", IssuedAt: "2024-01-01T00:00:00-03:00",
			}.XML(),
			want: types.Diagnostic{OK: true, Kind: "NFe/NFCe", Key: key, Model: "55", Number: "15", IssuedRaw: "2024-01-01T00:00:00-03:00"},
		},
		{
			name: "nfe in the wrong namespace",
			raw:  []byte(`<NFe xmlns="urn:other"><infNFe Id="NFe` + key + `"><ide><mod>65</mod><tpAmb>2</tpAmb><nNF>3</nNF><dEmi>2009-05-01</dEmi></ide></infNFe></NFe>`),
			want: types.Diagnostic{OK: true, Kind: "NFe/NFCe", Key: key, Model: "65", Environment: "2", Number: "3", IssuedRaw: "2009-05-01"},
		},
		{
			name: "cte",
			raw:  fixtures.Transport(key, "5353", "1.00"),
			want: types.Diagnostic{OK: true, Kind: "CTe", Key: key, Model: "57", Number: "321", IssuedRaw: "2024-01-10T08:00:00-03:00"},
		},
		{
			name: "nfse",
			raw:  fixtures.RegionalService(true),
			want: types.Diagnostic{OK: true, Kind: "NFSe", Number: "202400000000042", IssuedRaw: "2024-02-01T09:15:00", Competence: "2024-02-01"},
		},
		{
			name: "well formed but unknown",
			raw:  fixtures.Unknown(),
			want: types.Diagnostic{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.raw); got != tt.want {
				t.Errorf("Sniff()\n got  %+v\n want %+v", got, tt.want)
			}
		})
	}
}

func TestSniffMalformed(t *testing.T) {
	got := Sniff(fixtures.Truncated(fixtures.Key("12345678000190", 1)))
	if got.OK {
		t.Fatal("OK = true for truncated input")
	}
	if !strings.HasPrefix(got.Error, "XML inválido: ") {
		t.Errorf("Error = %q", got.Error)
	}
}
