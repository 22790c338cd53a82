package historian

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/plantqc/historian-bridge/pkg/types"
	"github.com/plantqc/historian-bridge/server/internal/metrics"
)

// Client issues historian queries through the Manager.
type Client struct {
	mgr        *Manager
	cycleCount atomic.Int64
}

// NewClient creates a Client that resamples ranges to cycleCount points.
func NewClient(mgr *Manager, cycleCount int) *Client {
	c := &Client{mgr: mgr}
	c.SetCycleCount(cycleCount)
	return c
}

// SetCycleCount changes the sample count used by subsequent Range calls.
// Non-positive values are ignored.
func (c *Client) SetCycleCount(n int) {
	if n > 0 {
		c.cycleCount.Store(int64(n))
	}
}

// Manager returns the connection manager the client acquires through.
func (c *Client) Manager() *Manager { return c.mgr }

// Latest returns the newest reading of tag.
// Query errors wrap types.ErrQueryFailed; a tag with no value wraps
// types.ErrNotFound.
func (c *Client) Latest(ctx context.Context, tag types.Tag) (types.Reading, error) {
	if !tag.Line.Valid() {
		return types.Reading{}, fmt.Errorf("historian: latest %q: line %d: %w", tag.Name, tag.Line, types.ErrInvalidSelector)
	}
	conn := c.mgr.Acquire(ctx)

	start := time.Now()
	s, ok, err := conn.Latest(ctx, tag)
	metrics.QueryDuration.WithLabelValues("latest").Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		metrics.QueriesTotal.WithLabelValues("latest", "error").Inc()
		return types.Reading{}, fmt.Errorf("historian: latest %q: %w: %w", tag.Name, types.ErrQueryFailed, err)
	case !ok:
		metrics.QueriesTotal.WithLabelValues("latest", "empty").Inc()
		return types.Reading{}, fmt.Errorf("historian: latest %q: %w", tag.Name, types.ErrNotFound)
	}
	metrics.QueriesTotal.WithLabelValues("latest", "ok").Inc()
	return s.Reading(), nil
}

// Range returns the readings of tag within [start, end], sorted ascending.
// Samples whose interval starts before start are discarded: cyclic retrieval
// may return one extra boundary sample.
func (c *Client) Range(ctx context.Context, tag types.Tag, start, end time.Time) ([]types.Reading, error) {
	if !tag.Line.Valid() {
		return nil, fmt.Errorf("historian: range %q: line %d: %w", tag.Name, tag.Line, types.ErrInvalidSelector)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("historian: range %q: end %s before start %s: %w",
			tag.Name, end.Format(time.RFC3339), start.Format(time.RFC3339), types.ErrInvalidSelector)
	}
	conn := c.mgr.Acquire(ctx)

	began := time.Now()
	samples, err := conn.History(ctx, HistoryQuery{
		Tag:        tag,
		Start:      start,
		End:        end,
		CycleCount: int(c.cycleCount.Load()),
	})
	metrics.QueryDuration.WithLabelValues("range").Observe(time.Since(began).Seconds())
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("range", "error").Inc()
		return nil, fmt.Errorf("historian: range %q: %w: %w", tag.Name, types.ErrQueryFailed, err)
	}

	out := make([]types.Reading, 0, len(samples))
	for _, s := range samples {
		if s.IntervalStart.Before(start) || s.DateTime.Before(start) || s.DateTime.After(end) {
			continue
		}
		out = append(out, s.Reading())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	result := "ok"
	if len(out) == 0 {
		result = "empty"
	}
	metrics.QueriesTotal.WithLabelValues("range", result).Inc()
	return out, nil
}
