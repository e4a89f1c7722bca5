// =============================================================================
// Fiscal XML Reader - Reconciliation
// =============================================================================
//
// Reconciliation turns the flat list of extracted records into the final
// active/exception split by applying cancellation events to invoices.
//
// STEPS:
//   1. Normalize: canonical Key for invoices and events, Direction from tpNF
//   2. Filter cancellation events (110111, or a description mentioning
//      "cancel" in any case)
//   3. Per key, the most recent event is authoritative (undated sorts first)
//   4. Cancelled invoices move to the exceptions with the event metadata
//   5. Cancelled keys with no invoice in the batch become orphan rows
//   6. Every lifecycle event leaves the active set
//
// Reconcile is single-threaded and pure: inputs are never modified.
//
// =============================================================================

package reconcile

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/ginjaninja78/fiscal-xml-reader/internal/keys"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/types"
)

// CancellationCode is the NF-e event type for cancellation.
const CancellationCode = "110111"

// Direction labels derived from tpNF.
const (
	DirectionOut     = "Saída"
	DirectionIn      = "Entrada"
	DirectionUnknown = "Desconhecido"
)

// Direction maps tpNF to its label.
func Direction(operationType string) string {
	switch strings.TrimSpace(operationType) {
	case "1":
		return DirectionOut
	case "0":
		return DirectionIn
	}
	return DirectionUnknown
}

// IsCancellation reports whether an event cancels its target.
func IsCancellation(ev *types.EventInfo) bool {
	if ev == nil {
		return false
	}
	if strings.TrimSpace(ev.TypeCode) == CancellationCode {
		return true
	}
	return strings.Contains(cases.Fold().String(ev.Description), "cancel")
}

// Normalize returns a copy of rec with Key and Direction derived. Every
// record except events gets a Direction; only NF-e, NFC-e and events get a
// Key.
func Normalize(rec types.Record) types.Record {
	if rec.Variant == types.LifecycleEvent {
		if rec.Event != nil {
			rec.Key = keys.NormalizeKey(rec.Event.TargetKey)
		}
		return rec
	}
	rec.Direction = Direction(rec.OperationType)
	if rec.Variant.IsInvoice() {
		rec.Key = keys.NormalizeKey(rec.AccessKey)
	}
	return rec
}

// cancellation is the authoritative event for one key.
type cancellation struct {
	at       *time.Time
	protocol string
	source   string
	actor    string
}

// Reconcile applies cancellations and builds the batch result.
//
// PARAMETERS:
//   - records: every extracted record, in input order
//   - failures: the ParseFailure exceptions from the batch
//
// RETURNS:
//   - Active: the records that survive, in input order
//   - Exceptions: failures, then cancelled invoices (input order), then
//     orphan cancellations (ascending key)
func Reconcile(records []types.Record, failures []types.Exception) types.BatchResult {
	normalized := make([]types.Record, len(records))
	for i, r := range records {
		normalized[i] = Normalize(r)
	}

	cancelled := latestCancellations(normalized)

	result := types.BatchResult{
		Exceptions: append([]types.Exception(nil), failures...),
	}

	invoiceKeys := make(map[string]bool)
	for i := range normalized {
		rec := normalized[i]
		if rec.Variant == types.LifecycleEvent {
			continue
		}
		if !rec.Variant.IsInvoice() {
			result.Active = append(result.Active, rec)
			continue
		}

		if rec.Key != "" {
			invoiceKeys[rec.Key] = true
		}
		c, ok := cancelled[rec.Key]
		if !ok || rec.Key == "" {
			result.Active = append(result.Active, rec)
			continue
		}

		result.Exceptions = append(result.Exceptions, types.Exception{
			Kind:    types.CancelledInvoice,
			Source:  rec.Source,
			Record:  &rec,
			Key:     rec.Key,
			Emitter: rec.Emitter.TaxID,
			Cancellation: &types.Cancellation{
				CancelledAt: c.at,
				Protocol:    c.protocol,
				EventSource: c.source,
				Actor:       c.actor,
			},
		})
	}

	orphans := make([]string, 0, len(cancelled))
	for key := range cancelled {
		if !invoiceKeys[key] {
			orphans = append(orphans, key)
		}
	}
	sort.Strings(orphans)

	for _, key := range orphans {
		c := cancelled[key]
		emitter := c.actor
		if emitter == "" {
			emitter = keys.EmitterFromKey(key)
		}
		result.Exceptions = append(result.Exceptions, types.Exception{
			Kind:    types.OrphanCancellation,
			Key:     key,
			Emitter: emitter,
			Cancellation: &types.Cancellation{
				CancelledAt: c.at,
				Protocol:    c.protocol,
				EventSource: c.source,
				Actor:       c.actor,
			},
		})
	}

	return result
}

// latestCancellations groups cancellation events by key and keeps the last
// one after a stable ascending sort on occurrence time.
func latestCancellations(records []types.Record) map[string]cancellation {
	groups := make(map[string][]types.Record)
	for _, r := range records {
		if r.Variant != types.LifecycleEvent || r.Key == "" || !IsCancellation(r.Event) {
			continue
		}
		groups[r.Key] = append(groups[r.Key], r)
	}

	out := make(map[string]cancellation, len(groups))
	for key, events := range groups {
		sort.SliceStable(events, func(i, j int) bool {
			return before(events[i].Event.OccurredAt, events[j].Event.OccurredAt)
		})
		last := events[len(events)-1]
		out[key] = cancellation{
			at:       last.Event.OccurredAt,
			protocol: last.Event.Protocol,
			source:   last.Source,
			actor:    last.Event.Actor,
		}
	}
	return out
}

// before orders nil ahead of every real timestamp.
func before(a, b *time.Time) bool {
	switch {
	case a == nil:
		return b != nil
	case b == nil:
		return false
	}
	return a.Before(*b)
}
