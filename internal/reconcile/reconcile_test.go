package reconcile

import (
	"errors"
	"testing"
	"time"

	"github.com/ginjaninja78/fiscal-xml-reader/internal/fixtures"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/types"
)

const cnpj = "12345678000190"

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func invoice(key, source string) types.Record {
	return types.Record{
		Source:        source,
		Variant:       types.PrimaryInvoice,
		AccessKey:     key,
		OperationType: "1",
		Emitter:       types.Party{TaxID: cnpj},
	}
}

func event(key, source, code, desc string, when *time.Time, protocol, actor string) types.Record {
	return types.Record{
		Source:    source,
		Variant:   types.LifecycleEvent,
		AccessKey: key,
		Event: &types.EventInfo{
			TargetKey:   key,
			TypeCode:    code,
			Description: desc,
			OccurredAt:  when,
			Protocol:    protocol,
			Actor:       actor,
		},
	}
}

func TestDirection(t *testing.T) {
	tests := map[string]string{"1": "Saída", "0": "Entrada", " 1 ": "Saída", "": "Desconhecido", "2": "Desconhecido"}
	for in, want := range tests {
		if got := Direction(in); got != want {
			t.Errorf("Direction(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsCancellation(t *testing.T) {
	tests := []struct {
		name string
		ev   *types.EventInfo
		want bool
	}{
		{"code", &types.EventInfo{TypeCode: "110111"}, true},
		{"description only", &types.EventInfo{TypeCode: "999999", Description: "CANCELAMENTO"}, true},
		{"mixed case", &types.EventInfo{Description: "Pedido de Cancel"}, true},
		{"correction letter", &types.EventInfo{TypeCode: "110110", Description: "Carta de Correcao"}, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		if got := IsCancellation(tt.ev); got != tt.want {
			t.Errorf("%s: got %v", tt.name, got)
		}
	}
}

func TestReconcileSingleKey(t *testing.T) {
	key := fixtures.Key(cnpj, 1)
	other := fixtures.Key(cnpj, 2)
	cte := types.Record{Source: "cte.xml", Variant: types.TransportDocument, AccessKey: key}
	failure := types.Exception{Kind: types.ParseFailure, Source: "bad.xml", Err: errors.New("boom")}

	records := []types.Record{
		invoice("NFe"+key, "a.xml"),
		invoice(other, "b.xml"),
		cte,
		event(key, "ev.xml", "110111", "Cancelamento", at("2024-01-02T10:00:00-03:00"), "P1", cnpj),
		event(other, "cce.xml", "110110", "Carta de Correcao", nil, "P2", cnpj),
	}

	got := Reconcile(records, []types.Exception{failure})

	if len(got.Active) != 2 || got.Active[0].Source != "b.xml" || got.Active[1].Source != "cte.xml" {
		t.Fatalf("Active = %+v", got.Active)
	}
	if got.Active[0].Key != other || got.Active[0].Direction != "Saída" {
		t.Errorf("normalization: %+v", got.Active[0])
	}
	if got.Active[1].Key != "" {
		t.Errorf("transport records keep Key empty, got %q", got.Active[1].Key)
	}

	if len(got.Exceptions) != 2 {
		t.Fatalf("Exceptions = %+v", got.Exceptions)
	}
	if got.Exceptions[0].Source != "bad.xml" {
		t.Errorf("failures must come first: %+v", got.Exceptions[0])
	}
	c := got.Exceptions[1]
	if c.Kind != types.CancelledInvoice || c.Key != key || c.Source != "a.xml" || c.Record == nil {
		t.Fatalf("cancelled = %+v", c)
	}
	if c.Cancellation.Protocol != "P1" || c.Cancellation.EventSource != "ev.xml" || !c.Cancellation.CancelledAt.Equal(*at("2024-01-02T13:00:00Z")) {
		t.Errorf("metadata = %+v", c.Cancellation)
	}
	if got.Count(types.OrphanCancellation) != 0 {
		t.Error("no orphans expected")
	}
}

func TestReconcileLatestWins(t *testing.T) {
	key := fixtures.Key(cnpj, 3)
	records := []types.Record{
		event(key, "late.xml", "110111", "", at("2024-03-01T00:00:00Z"), "LATE", ""),
		event(key, "undated.xml", "110111", "", nil, "UNDATED", ""),
		event(key, "early.xml", "110111", "", at("2024-01-01T00:00:00Z"), "EARLY", ""),
		invoice(key, "nf.xml"),
	}

	got := Reconcile(records, nil)
	if len(got.Active) != 0 || len(got.Exceptions) != 1 {
		t.Fatalf("result = %+v", got)
	}
	if p := got.Exceptions[0].Cancellation.Protocol; p != "LATE" {
		t.Errorf("Protocol = %q, want LATE", p)
	}

	// Only undated events: the last one in input order wins.
	got = Reconcile([]types.Record{
		event(key, "1.xml", "110111", "", nil, "FIRST", ""),
		event(key, "2.xml", "110111", "", nil, "SECOND", ""),
	}, nil)
	if p := got.Exceptions[0].Cancellation.Protocol; p != "SECOND" {
		t.Errorf("Protocol = %q, want SECOND", p)
	}
}

func TestReconcileOrphans(t *testing.T) {
	withActor := fixtures.Key("99888777000166", 10)
	withoutActor := fixtures.Key(cnpj, 11)

	got := Reconcile([]types.Record{
		event(withoutActor, "b.xml", "110111", "", nil, "", ""),
		event(withActor, "a.xml", "", "Evento de cancelamento", nil, "", "11111111000111"),
		event("", "nokey.xml", "110111", "", nil, "", ""),
	}, nil)

	if len(got.Active) != 0 {
		t.Fatalf("events must leave the active set: %+v", got.Active)
	}
	if len(got.Exceptions) != 2 {
		t.Fatalf("Exceptions = %+v", got.Exceptions)
	}

	wantOrder := []string{withoutActor, withActor}
	if withActor < withoutActor {
		wantOrder = []string{withActor, withoutActor}
	}
	for i, e := range got.Exceptions {
		if e.Kind != types.OrphanCancellation || e.Key != wantOrder[i] {
			t.Errorf("exception %d = %+v", i, e)
		}
		want := cnpj
		if e.Key == withActor {
			want = "11111111000111"
		}
		if e.Emitter != want {
			t.Errorf("%s emitter = %q, want %q", e.Key, e.Emitter, want)
		}
	}
}

func TestReconcileMatchesInvoiceClassOnly(t *testing.T) {
	key := fixtures.Key(cnpj, 12)
	nfse := types.Record{Source: "s.xml", Variant: types.ServiceInvoiceGeneric, AccessKey: key}
	nfce := invoice(key, "c.xml")
	nfce.Variant = types.ConsumerInvoice

	got := Reconcile([]types.Record{nfse, event(key, "e.xml", "110111", "", nil, "", ""), nfce}, nil)
	if len(got.Active) != 1 || got.Active[0].Source != "s.xml" {
		t.Fatalf("Active = %+v", got.Active)
	}
	if got.Count(types.CancelledInvoice) != 1 || got.Count(types.OrphanCancellation) != 0 {
		t.Fatalf("Exceptions = %+v", got.Exceptions)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	key := fixtures.Key(cnpj, 13)
	first := Reconcile([]types.Record{
		invoice(key, "a.xml"),
		invoice(fixtures.Key(cnpj, 14), "b.xml"),
		event(key, "e.xml", "110111", "", nil, "", ""),
	}, nil)

	second := Reconcile(first.Active, nil)
	if len(second.Exceptions) != 0 {
		t.Fatalf("second pass moved %d records", len(second.Exceptions))
	}
	if len(second.Active) != len(first.Active) {
		t.Fatalf("Active %d -> %d", len(first.Active), len(second.Active))
	}
	for i := range second.Active {
		if second.Active[i].Key != first.Active[i].Key || second.Active[i].Direction != first.Active[i].Direction {
			t.Errorf("record %d changed: %+v", i, second.Active[i])
		}
	}
}

func TestReconcileDoesNotMutateInput(t *testing.T) {
	key := fixtures.Key(cnpj, 15)
	records := []types.Record{invoice(key, "a.xml")}
	Reconcile(records, nil)
	if records[0].Key != "" || records[0].Direction != "" {
		t.Errorf("input mutated: %+v", records[0])
	}
}

func TestNormalizeDirection(t *testing.T) {
	tests := []struct {
		name    string
		rec     types.Record
		wantDir string
		wantKey bool
	}{
		{"nfe", invoice(fixtures.Key(cnpj, 16), "a.xml"), DirectionOut, true},
		{"cte", types.Record{Variant: types.TransportDocument, AccessKey: fixtures.Key(cnpj, 17)}, DirectionUnknown, false},
		{"nfse", types.Record{Variant: types.ServiceInvoiceGeneric}, DirectionUnknown, false},
		{"event", event(fixtures.Key(cnpj, 18), "e.xml", "110111", "", nil, "", ""), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.rec)
			if got.Direction != tt.wantDir {
				t.Errorf("Direction = %q, want %q", got.Direction, tt.wantDir)
			}
			if (got.Key != "") != tt.wantKey {
				t.Errorf("Key = %q, want set=%v", got.Key, tt.wantKey)
			}
		})
	}
}
