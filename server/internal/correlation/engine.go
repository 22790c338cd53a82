package correlation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/plantqc/historian-bridge/pkg/types"
	"github.com/plantqc/historian-bridge/server/internal/historian"
	"github.com/plantqc/historian-bridge/server/internal/metrics"
	"github.com/plantqc/historian-bridge/server/internal/registry"
	"github.com/plantqc/historian-bridge/server/internal/tags"
)

// SignalOutcome is the result of one signal's range query for one window.
// A failed query has Count 0 and a non-nil Err.
type SignalOutcome struct {
	Count int
	Err   error
}

// Failed reports whether the query failed.
func (o SignalOutcome) Failed() bool { return o.Err != nil }

// MarshalJSON renders the error as a string.
func (o SignalOutcome) MarshalJSON() ([]byte, error) {
	v := struct {
		Count int    `json:"count"`
		Error string `json:"error,omitempty"`
	}{Count: o.Count}
	if o.Err != nil {
		v.Error = o.Err.Error()
	}
	return json.Marshal(v)
}

// WindowResult is one batch window with its per-signal outcomes.
type WindowResult struct {
	types.BatchWindow
	Open bool          `json:"open"`
	PH   SignalOutcome `json:"ph"`
	TCC  SignalOutcome `json:"tcc"`
}

// BatchReading is a reading attributed to the batch and line it was
// recorded for.
type BatchReading struct {
	BatchID string            `json:"batch_id"`
	Line    types.ReactorLine `json:"line"`
	Signal  types.SignalKind  `json:"signal"`
	types.Reading
}

// Summary aggregates a correlation result.
type Summary struct {
	Windows           int `json:"windows"`
	OpenWindows       int `json:"open_windows"`
	ClosedWindows     int `json:"closed_windows"`
	PHReadings        int `json:"ph_readings"`
	TCCReadings       int `json:"tcc_readings"`
	FailedQueries     int `json:"failed_queries"`
	SyntheticReadings int `json:"synthetic_readings"`
}

// Result is the outcome of one Correlate call. Batches keep registry order;
// Readings are grouped by window in that order, pH before TCC.
type Result struct {
	RequestID string         `json:"request_id"`
	Selector  string         `json:"selector"`
	Batches   []WindowResult `json:"batches"`
	Readings  []BatchReading `json:"readings"`
	Summary   Summary        `json:"summary"`
	Notes     []Note         `json:"notes"`
}

// Engine correlates batch windows with historian readings.
type Engine struct {
	registry  registry.Registry
	historian *historian.Client
	tags      *tags.Resolver

	maxConcurrency atomic.Int64

	// now resolves the end of open windows.
	now func() time.Time
}

// New creates an Engine that queries at most maxConcurrency windows at once.
func New(reg registry.Registry, hc *historian.Client, res *tags.Resolver, maxConcurrency int) *Engine {
	e := &Engine{
		registry:  reg,
		historian: hc,
		tags:      res,
		now:       func() time.Time { return time.Now().UTC() },
	}
	e.maxConcurrency.Store(1)
	e.SetMaxConcurrency(maxConcurrency)
	return e
}

// SetMaxConcurrency changes the window query bound for subsequent calls.
// Non-positive values are ignored.
func (e *Engine) SetMaxConcurrency(n int) {
	if n > 0 {
		e.maxConcurrency.Store(int64(n))
	}
}

// Correlate resolves the windows selected by sel and fetches the pH and TCC
// range of each window's line. An invalid selector fails with
// types.ErrInvalidSelector before any I/O; a registry failure is returned as
// is. Per-window query failures are reported in the result, not as an error.
func (e *Engine) Correlate(ctx context.Context, sel registry.Selector) (*Result, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	windows, err := e.registry.Find(ctx, sel)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RequestID: uuid.NewString(),
		Selector:  sel.String(),
		Batches:   make([]WindowResult, len(windows)),
		Readings:  []BatchReading{},
	}
	perWindow := make([][]BatchReading, len(windows))
	now := e.now()

	sem := make(chan struct{}, e.maxConcurrency.Load())
	var wg sync.WaitGroup
	for i, w := range windows {
		wg.Add(1)
		go func(i int, w types.BatchWindow) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			res.Batches[i], perWindow[i] = e.window(ctx, w, now)
		}(i, w)
	}
	wg.Wait()

	for i, wr := range res.Batches {
		res.Readings = append(res.Readings, perWindow[i]...)
		res.Summary.add(wr, perWindow[i])
	}
	res.Notes = notes(res.Summary)

	slog.Debug("correlation: done",
		"request", res.RequestID,
		"selector", res.Selector,
		"windows", res.Summary.Windows,
		"failed", res.Summary.FailedQueries,
	)
	return res, nil
}

// window queries both signals for w, bounded to [Start, End or now].
func (e *Engine) window(ctx context.Context, w types.BatchWindow, now time.Time) (WindowResult, []BatchReading) {
	wr := WindowResult{BatchWindow: w, Open: w.Open()}

	line := w.Line
	if !line.Valid() {
		l, err := types.LineFromLotID(w.LotID)
		if err != nil {
			err = fmt.Errorf("correlation: batch %q: %w", w.BatchID, err)
			wr.PH, wr.TCC = failed(err), failed(err)
			return wr, nil
		}
		line = l
		wr.Line = l
	}

	end := w.EffectiveEnd(now)
	var out []BatchReading
	for _, kind := range types.SignalKinds {
		o, readings := e.signal(ctx, w.BatchID, line, kind, w.Start, end)
		if kind == types.SignalPH {
			wr.PH = o
		} else {
			wr.TCC = o
		}
		out = append(out, readings...)
	}
	return wr, out
}

func (e *Engine) signal(ctx context.Context, batchID string, line types.ReactorLine, kind types.SignalKind, start, end time.Time) (SignalOutcome, []BatchReading) {
	tag, err := e.tags.Resolve(line, kind)
	if err != nil {
		return failed(err), nil
	}
	readings, err := e.historian.Range(ctx, tag, start, end)
	if err != nil {
		slog.Warn("correlation: signal query failed", "batch", batchID, "tag", tag.Name, "err", err)
		return failed(err), nil
	}
	metrics.CorrelationSignals.WithLabelValues("ok").Inc()

	out := make([]BatchReading, len(readings))
	for i, r := range readings {
		out[i] = BatchReading{BatchID: batchID, Line: line, Signal: kind, Reading: r}
	}
	return SignalOutcome{Count: len(readings)}, out
}

func failed(err error) SignalOutcome {
	metrics.CorrelationSignals.WithLabelValues("failed").Inc()
	return SignalOutcome{Err: err}
}

func (s *Summary) add(wr WindowResult, readings []BatchReading) {
	s.Windows++
	if wr.Open {
		s.OpenWindows++
	} else {
		s.ClosedWindows++
	}
	s.PHReadings += wr.PH.Count
	s.TCCReadings += wr.TCC.Count
	for _, o := range []SignalOutcome{wr.PH, wr.TCC} {
		if o.Failed() {
			s.FailedQueries++
		}
	}
	for _, r := range readings {
		if r.Synthetic() {
			s.SyntheticReadings++
		}
	}
}
