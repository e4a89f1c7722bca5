package classifier

import (
	"errors"
	"testing"

	"github.com/beevik/etree"

	"github.com/ginjaninja78/fiscal-xml-reader/internal/extractor"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/fixtures"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/types"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/xmldoc"
)

func parse(t *testing.T, data []byte) *etree.Element {
	t.Helper()
	root, err := xmldoc.NewParser().Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return root
}

// panicky matches everything but blows up first.
type panicky struct{ extractor.Extractor }

func (panicky) Matches(*etree.Element) bool { panic("boom") }

func TestClassifyAutomatic(t *testing.T) {
	key := fixtures.Key("12345678000190", 1)
	tests := []struct {
		name string
		doc  []byte
		want types.Variant
	}{
		{"nfe", fixtures.Invoice{Key: key, Model: "55"}.XML(), types.PrimaryInvoice},
		{"nfce", fixtures.Invoice{Key: key, Model: "65"}.XML(), types.ConsumerInvoice},
		{"cte", fixtures.Transport(key, "5353", "10.00"), types.TransportDocument},
		{"event", fixtures.Cancellation(key, "", "1").XML(), types.LifecycleEvent},
		{"rn prestado", fixtures.RegionalService(true), types.ServiceInvoiceRegionalRendered},
		{"rn tomado", fixtures.RegionalService(false), types.ServiceInvoiceRegionalReceived},
		{"generic nfse", fixtures.GenericService(), types.ServiceInvoiceGeneric},
	}

	c := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, err := c.Classify(parse(t, tt.doc), types.VariantUnknown)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if x.Variant() != tt.want {
				t.Errorf("got %s, want %s", x.Variant(), tt.want)
			}
		})
	}
}

func TestClassifyHint(t *testing.T) {
	c := New(nil)
	rn := parse(t, fixtures.RegionalService(true))

	// A hint that accepts the document wins over registration order.
	x, err := c.Classify(rn, types.ServiceInvoiceGeneric)
	if err != nil || x.Variant() != types.ServiceInvoiceGeneric {
		t.Fatalf("hinted generic: %v, %v", x, err)
	}

	// A hint that rejects the document falls back to the ordered search.
	x, err = c.Classify(rn, types.TransportDocument)
	if err != nil || x.Variant() != types.ServiceInvoiceRegionalRendered {
		t.Fatalf("wrong hint: %v, %v", x, err)
	}
}

func TestClassifyUnrecognized(t *testing.T) {
	_, err := New(nil).Classify(parse(t, fixtures.Unknown()), types.VariantUnknown)
	if !errors.Is(err, types.ErrUnrecognizedSchema) {
		t.Fatalf("err = %v, want ErrUnrecognizedSchema", err)
	}
}

func TestClassifyPanickingPredicateIsNoMatch(t *testing.T) {
	c := New([]extractor.Extractor{
		panicky{extractor.NewPrimaryInvoice()},
		extractor.NewTransportDocument(),
	})

	cte := parse(t, fixtures.Transport(fixtures.Key("11222333000181", 3), "5353", "1.00"))
	x, err := c.Classify(cte, types.VariantUnknown)
	if err != nil || x.Variant() != types.TransportDocument {
		t.Fatalf("got %v, %v", x, err)
	}

	nfe := parse(t, fixtures.Invoice{Key: fixtures.Key("11222333000181", 4), Model: "55"}.XML())
	if _, err := c.Classify(nfe, types.PrimaryInvoice); !errors.Is(err, types.ErrUnrecognizedSchema) {
		t.Fatalf("err = %v, want ErrUnrecognizedSchema", err)
	}
}

func TestExtractorsIsACopy(t *testing.T) {
	c := New(nil)
	list := c.Extractors()
	list[0] = nil
	if c.Extractors()[0] == nil {
		t.Fatal("registry was mutated through Extractors()")
	}
}
