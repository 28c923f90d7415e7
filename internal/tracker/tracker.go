package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"visabulletin/internal/bulletin"
	"visabulletin/internal/compare"
	"visabulletin/internal/components/assert"
	"visabulletin/internal/components/chrono"
	"visabulletin/internal/components/telemetry"
	"visabulletin/internal/notify"
	"visabulletin/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("visabulletin.internal.tracker")

const (
	report_tracker_previous = "tracker.previous"
	report_tracker_run      = "tracker.run"
	report_tracker_compare  = "tracker.compare"
	report_tracker_notify   = "tracker.notify"
)

// ErrNotBulletin is returned when the fetched page has no bulletin on it, the
// run is still recorded as failed.
var ErrNotBulletin = errors.New("tracker: page is not a visa bulletin")

type Fetcher interface {
	Current(ctx context.Context) (bulletin.RawDocument, error)
}

type Store interface {
	LastSuccessfulRun(ctx context.Context, runType store.RunType, excludeID int64) (store.Run, error)
	InsertRun(ctx context.Context, run store.Run) (int64, error)
	InsertComparison(ctx context.Context, runID, previousRunID int64, result compare.Result) (int64, error)
}

type Notifier interface {
	NotifyAll(ctx context.Context, result compare.Result, snapshot bulletin.Snapshot, updatedOnly bool) (notify.Stats, error)
}

type Options struct {
	RunType store.RunType
	// Notify sends emails once the run is stored.
	Notify      bool
	UpdatedOnly bool
}

type Outcome struct {
	RunID int64
	// PreviousRunID is zero when there was no earlier successful run.
	PreviousRunID int64
	Snapshot      bulletin.Snapshot
	// Result is an empty comparison when there was nothing to compare with.
	Result   compare.Result
	Compared bool
	Notified bool
	Stats    notify.Stats
}

// Tracker runs the whole pipeline: it finds the previous run, fetches and
// extracts the current bulletin, stores it, compares the two and notifies
// subscribers.
type Tracker struct {
	fetcher   Fetcher
	extractor bulletin.Extractor
	engine    compare.Engine
	store     Store
	notifier  Notifier
	tel       telemetry.API
	time      chrono.API
}

func New(
	fetcher Fetcher,
	extractor bulletin.Extractor,
	engine compare.Engine,
	store Store,
	notifier Notifier,
	tel telemetry.API,
	time chrono.API,
) Tracker {
	assert.NotNil(fetcher)
	assert.NotNil(store)
	assert.NotNil(tel)
	assert.NotNil(time)
	return Tracker{
		fetcher:   fetcher,
		extractor: extractor,
		engine:    engine,
		store:     store,
		notifier:  notifier,
		tel:       telemetry.NewScopedAPI("tracker", tel),
		time:      time,
	}
}

// Run fetches the current bulletin and processes it.
func (t Tracker) Run(ctx context.Context, opts Options) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "tracker:Run")
	defer span.End()

	if opts.RunType == "" {
		opts.RunType = store.RUN_OFFICIAL
	}
	span.SetAttributes(attribute.String("run_type", string(opts.RunType)))

	// the previous run is read before the new one is inserted so the new run
	// can never be compared with itself
	previous := t.previous(ctx, opts.RunType)
	startedAt := t.time.Now()

	doc, err := t.fetcher.Current(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		t.recordFailure(ctx, opts.RunType, startedAt, "", err)
		return Outcome{}, fmt.Errorf("tracker: %w", err)
	}
	return t.process(ctx, opts, previous, startedAt, doc)
}

// Process runs the pipeline on a document that was already retrieved.
func (t Tracker) Process(ctx context.Context, opts Options, doc bulletin.RawDocument) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "tracker:Process")
	defer span.End()

	if opts.RunType == "" {
		opts.RunType = store.RUN_MANUAL
	}
	previous := t.previous(ctx, opts.RunType)
	return t.process(ctx, opts, previous, t.time.Now(), doc)
}

func (t Tracker) previous(ctx context.Context, runType store.RunType) *store.Run {
	run, err := t.store.LastSuccessfulRun(ctx, runType, 0)
	if errors.Is(err, store.ErrNotFound) {
		t.tel.ReportDebug("no previous run", runType)
		return nil
	}
	if err != nil {
		t.tel.ReportWarning(report_tracker_previous, err)
		return nil
	}
	if run.Snapshot == nil {
		t.tel.ReportWarning(report_tracker_previous, "previous run has no snapshot", run.ID)
		return nil
	}
	return &run
}

func (t Tracker) recordFailure(ctx context.Context, runType store.RunType, startedAt time.Time, sourceURL string, cause error) {
	_, err := t.store.InsertRun(ctx, store.Run{
		Type:         runType,
		StartedAt:    startedAt,
		CompletedAt:  t.time.Now(),
		Success:      false,
		SourceURL:    sourceURL,
		ErrorMessage: cause.Error(),
	})
	if err != nil {
		t.tel.ReportBroken(report_tracker_run, fmt.Errorf("record failed run: %w", err))
	}
}

func (t Tracker) process(ctx context.Context, opts Options, previous *store.Run, startedAt time.Time, doc bulletin.RawDocument) (Outcome, error) {
	snapshot, err := t.extractor.Extract(doc)
	if err != nil {
		t.recordFailure(ctx, opts.RunType, startedAt, doc.SourceURL, err)
		return Outcome{}, fmt.Errorf("tracker: %w", err)
	}
	if snapshot.NotBulletin {
		t.recordFailure(ctx, opts.RunType, startedAt, doc.SourceURL, ErrNotBulletin)
		return Outcome{Snapshot: snapshot}, ErrNotBulletin
	}

	runID, err := t.store.InsertRun(ctx, store.Run{
		Type:        opts.RunType,
		StartedAt:   startedAt,
		CompletedAt: t.time.Now(),
		Success:     true,
		Snapshot:    &snapshot,
	})
	if err != nil {
		t.tel.ReportBroken(report_tracker_run, err)
		return Outcome{}, fmt.Errorf("tracker: %w", err)
	}

	out := Outcome{
		RunID:    runID,
		Snapshot: snapshot,
		Result:   compare.Empty(snapshot, t.time.Now()),
	}

	if previous != nil {
		result, err := t.engine.Compare(previous.Snapshot, &snapshot)
		if err != nil {
			t.tel.ReportBroken(report_tracker_compare, err)
			return out, fmt.Errorf("tracker: %w", err)
		}
		out.Result = result
		out.Compared = true
		out.PreviousRunID = previous.ID

		_, err = t.store.InsertComparison(ctx, runID, previous.ID, result)
		if err != nil {
			// the run itself is stored, a missing comparison can be recomputed
			t.tel.ReportWarning(report_tracker_compare, err)
		}
	}

	if !opts.Notify || t.notifier == nil {
		return out, nil
	}
	stats, err := t.notifier.NotifyAll(ctx, out.Result, snapshot, opts.UpdatedOnly)
	if err != nil {
		t.tel.ReportBroken(report_tracker_notify, err)
		return out, fmt.Errorf("tracker: %w", err)
	}
	out.Notified = true
	out.Stats = stats
	t.tel.ReportDebug("notified", stats.Sent, stats.Skipped, stats.Failed)
	return out, nil
}
