package historian

import (
	"context"
	"time"

	"github.com/plantqc/historian-bridge/pkg/types"
)

// Conn is one way of answering historian queries: a real database handle or
// the fallback simulator.
type Conn interface {
	// Latest returns the newest sample of tag, or ok=false if the tag has none.
	Latest(ctx context.Context, tag types.Tag) (s Sample, ok bool, err error)

	// History returns the cyclic samples of q.Tag within [q.Start, q.End].
	History(ctx context.Context, q HistoryQuery) ([]Sample, error)

	// FlowRate returns the quantity/time pair for a batch, or nil when the
	// batch has no matching rows.
	FlowRate(ctx context.Context, q FlowRateQuery) (*FlowRateRow, error)

	// Simulated reports whether the connection fabricates data.
	Simulated() bool

	Close() error
}

// Sample is one row returned by the historian.
type Sample struct {
	Tag      types.Tag
	DateTime time.Time

	// IntervalStart is the start of the resampling interval the sample
	// represents. Cyclic retrieval can report one sample whose interval starts
	// before the requested window.
	IntervalStart time.Time

	Value   float64
	Quality types.Quality
}

// Reading converts the sample to its public form.
func (s Sample) Reading() types.Reading {
	return types.Reading{
		Tag:       s.Tag.Name,
		Timestamp: s.DateTime.UTC(),
		Value:     s.Value,
		Quality:   s.Quality,
		Unit:      s.Tag.Kind.Unit(),
	}
}

// HistoryQuery is a time-bounded, tag-filtered history request.
type HistoryQuery struct {
	Tag        types.Tag
	Start, End time.Time
	CycleCount int
}

// FlowRateQuery selects the rows joined to compute one batch's flow rate.
type FlowRateQuery struct {
	BatchID       string
	Operation     string
	Phase         string
	QtyParameter  string
	TimeParameter string
}

// FlowRateRow is the raw join result for one batch.
type FlowRateRow struct {
	BatchLogID  string
	ActualQty   float64
	ActualValue float64
}
