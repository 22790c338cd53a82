package flowrate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/plantqc/historian-bridge/pkg/types"
	"github.com/plantqc/historian-bridge/server/internal/config"
	"github.com/plantqc/historian-bridge/server/internal/historian"
	"github.com/plantqc/historian-bridge/server/internal/metrics"
)

// Result is the flow rate of one batch. ActualValue is the elapsed time in
// TimeUnit. FlowRate is nil when that time is zero or negative.
type Result struct {
	BatchID     string   `json:"batchId"`
	BatchLogID  string   `json:"batchLogId"`
	ActualQty   float64  `json:"actualQty"`
	ActualValue float64  `json:"actualValue"`
	TimeUnit    string   `json:"timeUnit"`
	FlowRate    *float64 `json:"flowRate"`
}

// Query computes flow rates through the historian connection manager.
type Query struct {
	mgr *historian.Manager

	mu  sync.RWMutex
	cfg config.FlowRateConfig
}

// New creates a Query selecting rows with cfg.
func New(mgr *historian.Manager, cfg config.FlowRateConfig) *Query {
	return &Query{mgr: mgr, cfg: cfg}
}

// SetConfig replaces the row selection for subsequent lookups.
func (q *Query) SetConfig(cfg config.FlowRateConfig) {
	q.mu.Lock()
	q.cfg = cfg
	q.mu.Unlock()
}

// FlowRate returns the flow rate of batchID, or nil when the historian has no
// matching rows (always the case in fallback mode). An empty batch id wraps
// types.ErrInvalidSelector; query errors wrap types.ErrQueryFailed.
func (q *Query) FlowRate(ctx context.Context, batchID string) (*Result, error) {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, fmt.Errorf("flowrate: empty batch id: %w", types.ErrInvalidSelector)
	}

	q.mu.RLock()
	cfg := q.cfg
	q.mu.RUnlock()

	row, err := q.mgr.Acquire(ctx).FlowRate(ctx, historian.FlowRateQuery{
		BatchID:       batchID,
		Operation:     cfg.Operation,
		Phase:         cfg.Phase,
		QtyParameter:  cfg.QtyParameter,
		TimeParameter: cfg.TimeParameter,
	})
	if err != nil {
		metrics.FlowRateLookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("flowrate: batch %q: %w: %w", batchID, types.ErrQueryFailed, err)
	}
	if row == nil {
		metrics.FlowRateLookups.WithLabelValues("empty").Inc()
		return nil, nil
	}
	metrics.FlowRateLookups.WithLabelValues("found").Inc()

	res := &Result{
		BatchID:     batchID,
		BatchLogID:  row.BatchLogID,
		ActualQty:   row.ActualQty,
		ActualValue: row.ActualValue,
		TimeUnit:    cfg.TimeUnit,
	}
	res.FlowRate = rate(row.ActualQty, row.ActualValue, cfg.TimeUnit)
	return res, nil
}

// rate returns quantity per minute, or nil when elapsed is not positive.
func rate(qty, elapsed float64, unit string) *float64 {
	if elapsed <= 0 {
		return nil
	}
	minutes := elapsed
	if unit != "minutes" {
		minutes = elapsed / 60
	}
	r := qty / minutes
	return &r
}
