// =============================================================================
// Fiscal XML Reader - Batch Orchestrator
// =============================================================================
//
// This module runs the per-document pipeline for a whole batch on a bounded
// worker pool and collects exactly one outcome per input document.
//
// PER-DOCUMENT PIPELINE:
//   1. Read the bytes (in-memory data or the source path)
//   2. Parse with a task-owned parser
//   3. Classify (hint first, then registration order)
//   4. Extract the record
//
// Any failure in steps 1-4, including a panic, becomes a ParseFailure
// exception: the document is re-read and sniffed so the report still says
// what the file probably was.
//
// CONCURRENCY:
//   errgroup.Group with SetLimit(W). Tasks never return an error to the
//   group, so one bad document cannot cancel the others. Each task writes
//   only its own outcome slot; progress is counted and reported under one lock.
//
// =============================================================================

package batch

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/fiscal-xml-reader/internal/classifier"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/sniffer"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/types"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/xmldoc"
)

// Pool width bounds.
const (
	MinWorkers     = 4
	MaxWorkers     = 64
	DefaultWorkers = MaxWorkers
)

// ClampWorkers maps a requested width into [MinWorkers, MaxWorkers].
// Zero or negative selects DefaultWorkers.
func ClampWorkers(n int) int {
	switch {
	case n <= 0:
		return DefaultWorkers
	case n < MinWorkers:
		return MinWorkers
	case n > MaxWorkers:
		return MaxWorkers
	}
	return n
}

// =============================================================================
// OPTIONS AND OUTCOMES
// =============================================================================

// ProgressFunc receives (processed, total) after every completed document.
// Calls are serialized and processed increases by one on each call.
type ProgressFunc func(processed, total int)

// Options configures one Run.
type Options struct {
	// Workers is the requested pool width, clamped by ClampWorkers.
	Workers int

	// Hint is the preferred variant; types.VariantUnknown means automatic.
	Hint types.Variant

	// Progress is optional.
	Progress ProgressFunc

	// Classifier defaults to classifier.New(nil).
	Classifier *classifier.Classifier

	// Logger defaults to zap.NewNop().
	Logger *zap.Logger
}

// Outcome is the result for one document: exactly one of Record or Failure
// is set.
type Outcome struct {
	Source   string
	Record   *types.Record
	Failure  *types.Exception
	Duration time.Duration
}

// OK reports whether the document produced a record.
func (o Outcome) OK() bool { return o.Record != nil }

// Split separates outcomes into records and failure exceptions, keeping
// input order in both.
func Split(outcomes []Outcome) (records []types.Record, failures []types.Exception) {
	for _, o := range outcomes {
		switch {
		case o.OK():
			records = append(records, *o.Record)
		case o.Failure != nil:
			failures = append(failures, *o.Failure)
		}
	}
	return records, failures
}

// =============================================================================
// RUN
// =============================================================================

// Run processes every document in sources.
//
// PARAMETERS:
//   - ctx: stops admission of new tasks when done; in-flight tasks finish
//   - sources: the batch input
//   - opts: pool width, hint, progress sink, logger
//
// RETURNS:
//   - One outcome per document, in input order
//   - An error wrapping types.ErrSourceEnumeration when sources cannot be
//     listed; no outcomes are returned in that case
func Run(ctx context.Context, sources types.SourceSet, opts Options) ([]Outcome, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cls := opts.Classifier
	if cls == nil {
		cls = classifier.New(nil)
	}

	docs, err := sources.Sources()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrSourceEnumeration, err)
	}

	total := len(docs)
	workers := ClampWorkers(opts.Workers)
	outcomes := make([]Outcome, total)
	admitted := make([]bool, total)
	// processed and the progress call share one lock so the sink sees
	// counts in increasing order.
	var (
		mu        sync.Mutex
		processed int
	)

	log.Info("batch started",
		zap.Int("documents", total),
		zap.Int("workers", workers),
		zap.String("hint", hintLabel(opts.Hint)))

	done := func() {
		mu.Lock()
		defer mu.Unlock()
		processed++
		if opts.Progress != nil {
			opts.Progress(processed, total)
		}
	}

	var g errgroup.Group
	g.SetLimit(workers)

	for i := range docs {
		if ctx.Err() != nil {
			break
		}
		admitted[i] = true
		g.Go(func() error {
			outcomes[i] = process(docs[i], cls, opts.Hint, log)
			done()
			return nil
		})
	}
	_ = g.Wait()

	// Documents never admitted still get their outcome.
	for i, ok := range admitted {
		if ok {
			continue
		}
		outcomes[i] = Outcome{Source: docs[i].Label, Failure: failure(docs[i], opts.Hint, ctx.Err(), false)}
		done()
	}

	log.Info("batch finished",
		zap.Int("documents", total),
		zap.Int("processed", processed))

	return outcomes, nil
}

// =============================================================================
// PER-DOCUMENT PIPELINE
// =============================================================================

func process(src types.Source, cls *classifier.Classifier, hint types.Variant, log *zap.Logger) (out Outcome) {
	start := time.Now()
	out.Source = src.Label

	defer func() {
		if r := recover(); r != nil {
			err := types.NewDocumentError(types.ErrExtractionFailure, src.Label, fmt.Errorf("panic: %v", r))
			out.Record = nil
			out.Failure = failure(src, hint, err, true)
			log.Error("extractor panicked", zap.String("source", src.Label), zap.Any("panic", r))
		}
		out.Duration = time.Since(start)
		log.Debug("document done",
			zap.String("source", src.Label),
			zap.Bool("ok", out.OK()),
			zap.Duration("duration", out.Duration))
	}()

	rec, err := extract(src, cls, hint)
	if err != nil {
		log.Warn("document failed", zap.String("source", src.Label), zap.Error(err))
		out.Failure = failure(src, hint, err, true)
		return out
	}

	log.Debug("document extracted",
		zap.String("source", src.Label),
		zap.Stringer("variant", rec.Variant))
	out.Record = &rec
	return out
}

func extract(src types.Source, cls *classifier.Classifier, hint types.Variant) (types.Record, error) {
	data, err := read(src)
	if err != nil {
		return types.Record{}, types.NewDocumentError(types.ErrMalformedDocument, src.Label, err)
	}

	root, err := xmldoc.NewParser().Parse(data)
	if err != nil {
		return types.Record{}, types.NewDocumentError(types.ErrMalformedDocument, src.Label, err)
	}

	x, err := cls.Classify(root, hint)
	if err != nil {
		return types.Record{}, types.NewDocumentError(types.ErrUnrecognizedSchema, src.Label, err)
	}

	rec, err := x.Extract(root, src.Label)
	if err != nil {
		if types.KindOf(err) == nil {
			err = types.NewDocumentError(types.ErrExtractionFailure, src.Label, err)
		}
		return types.Record{}, err
	}
	return rec, nil
}

func read(src types.Source) ([]byte, error) {
	if src.Data != nil {
		return src.Data, nil
	}
	if src.Path == "" {
		return nil, fmt.Errorf("source %q has neither data nor path", src.Label)
	}
	data, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// failure builds the ParseFailure exception. With sniff set the document is
// read again from scratch; a read error there leaves the diagnostic carrying
// that error.
func failure(src types.Source, hint types.Variant, err error, sniff bool) *types.Exception {
	exc := &types.Exception{
		Kind:   types.ParseFailure,
		Source: src.Label,
		Hint:   hintLabel(hint),
		Err:    err,
	}
	if !sniff {
		return exc
	}

	data, rerr := read(src)
	if rerr != nil {
		exc.Diagnostic = &types.Diagnostic{Error: rerr.Error()}
		return exc
	}
	d := sniffer.Sniff(data)
	exc.Diagnostic = &d
	return exc
}

func hintLabel(v types.Variant) string {
	if v == types.VariantUnknown {
		return types.HintAuto
	}
	return v.String()
}
