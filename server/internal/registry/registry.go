package registry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/plantqc/historian-bridge/pkg/types"
	"github.com/plantqc/historian-bridge/server/internal/config"
)

// Registry resolves batch windows.
type Registry interface {
	// Find returns the windows matching sel ordered by open time. No match
	// is an empty slice, not an error.
	Find(ctx context.Context, sel Selector) ([]types.BatchWindow, error)
}

const selectColumns = `SELECT batch_id, lot_id, product_name, open_time, close_time FROM batches`

const (
	byBatchID = selectColumns + ` WHERE batch_id = $1 ORDER BY open_time, batch_id`
	byLotID   = selectColumns + ` WHERE lot_id = $1 ORDER BY open_time, batch_id`
	byLine    = selectColumns + ` WHERE right(lot_id, 1) = $1 ORDER BY open_time, batch_id`
	byRange   = selectColumns + ` WHERE open_time >= $1 AND open_time <= $2 ORDER BY open_time, batch_id`
)

var sqlOpen = sql.Open

// SQL reads the batches table through database/sql.
type SQL struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *SQL {
	return &SQL{db: db}
}

// Open opens a pool for cfg. The pool connects lazily, so an unreachable
// registry surfaces on the first Find rather than at startup.
func Open(cfg config.RegistryConfig) (*SQL, error) {
	dsn := cfg.DSN()
	if dsn == "" {
		return nil, fmt.Errorf("registry: %s is not set: %w", cfg.DSNEnv, types.ErrConnectionUnavailable)
	}
	db, err := sqlOpen(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("registry: open: %w", err)
	}
	return &SQL{db: db}, nil
}

// Close closes the underlying pool.
func (r *SQL) Close() error { return r.db.Close() }

// Find implements Registry. Invalid selectors are rejected before any query;
// query failures wrap types.ErrQueryFailed.
func (r *SQL) Find(ctx context.Context, sel Selector) ([]types.BatchWindow, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	var (
		query string
		args  []any
	)
	switch {
	case sel.BatchID != "":
		query, args = byBatchID, []any{sel.BatchID}
	case sel.LotID != "":
		query, args = byLotID, []any{sel.LotID}
	case sel.Line != 0:
		query, args = byLine, []any{fmt.Sprintf("%d", sel.Line)}
	default:
		query, args = byRange, []any{sel.From.UTC(), sel.To.UTC()}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("registry: find %s: %w: %w", sel, types.ErrQueryFailed, err)
	}
	defer rows.Close()

	out := []types.BatchWindow{}
	for rows.Next() {
		var (
			w       types.BatchWindow
			product sql.NullString
			closed  sql.NullTime
		)
		if err := rows.Scan(&w.BatchID, &w.LotID, &product, &w.Start, &closed); err != nil {
			return nil, fmt.Errorf("registry: scan batch row: %w: %w", types.ErrQueryFailed, err)
		}
		w.ProductName = product.String
		w.Start = w.Start.UTC()
		if closed.Valid {
			end := closed.Time.UTC()
			w.End = &end
		}
		// A lot id without a line suffix leaves Line at zero; callers treat
		// that window as unresolvable.
		if line, err := types.LineFromLotID(w.LotID); err == nil {
			w.Line = line
		} else {
			slog.Debug("registry: lot id carries no reactor line", "batch", w.BatchID, "lot", w.LotID)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registry: find %s: %w: %w", sel, types.ErrQueryFailed, err)
	}
	return out, nil
}

// Unavailable returns a Registry whose every Find fails with err wrapped in
// types.ErrQueryFailed. The server uses it when no registry DSN is
// configured so the correlation endpoint reports the cause.
func Unavailable(err error) Registry {
	return unavailable{err: err}
}

type unavailable struct{ err error }

func (u unavailable) Find(_ context.Context, sel Selector) ([]types.BatchWindow, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("registry: find %s: %w: %w", sel, types.ErrQueryFailed, u.err)
}

// Static is an in-memory Registry over a fixed window list.
type Static []types.BatchWindow

// Find implements Registry by filtering the list in order.
func (s Static) Find(_ context.Context, sel Selector) ([]types.BatchWindow, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	out := []types.BatchWindow{}
	for _, w := range s {
		if matches(sel, w) {
			out = append(out, w)
		}
	}
	return out, nil
}

func matches(sel Selector, w types.BatchWindow) bool {
	switch {
	case sel.BatchID != "":
		return w.BatchID == sel.BatchID
	case sel.LotID != "":
		return w.LotID == sel.LotID
	case sel.Line != 0:
		return w.Line == sel.Line
	default:
		return !w.Start.Before(*sel.From) && !w.Start.After(*sel.To)
	}
}
