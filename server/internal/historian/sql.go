package historian

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/plantqc/historian-bridge/pkg/types"
	"github.com/plantqc/historian-bridge/server/internal/config"
)

// Fixed retrieval options are part of the statement text so every history
// query carries them.
const historyQuery = `SELECT DateTime, StartDateTime, Value
FROM History
WHERE TagName = $1
  AND DateTime >= $2
  AND DateTime <= $3
  AND wwRetrievalMode = 'Cyclic'
  AND wwCycleCount = $4
  AND wwQualityRule = 'Extended'
  AND wwVersion = 'Latest'
  AND Value IS NOT NULL
ORDER BY DateTime`

const latestQuery = `SELECT DateTime, Value
FROM Live
WHERE TagName = $1
  AND Value IS NOT NULL`

const batchLogQuery = `SELECT BatchLogId FROM BatchIdLog WHERE BatchId = $1`

const flowRateQuery = `SELECT q.ActualValue, t.ActualValue
FROM MaterialInput q
JOIN ProcessVar t ON t.BatchLogId = q.BatchLogId
WHERE q.BatchLogId = $1
  AND q.Operation = $2 AND q.Phase = $3 AND q.Parameter = $4
  AND t.Operation = $2 AND t.Phase = $3 AND t.Parameter = $5`

var sqlOpen = sql.Open

// sqlConn answers queries from a database/sql pool. The pool reconnects
// individual connections on its own, so the handle stays valid across
// historian restarts once it has been opened successfully.
type sqlConn struct {
	db *sql.DB
}

// NewSQLConn wraps an open database handle.
func NewSQLConn(db *sql.DB) Conn {
	return &sqlConn{db: db}
}

// Dialer returns the production DialFunc: open a pool with cfg.Driver and
// the DSN from the environment, then ping it within cfg.ConnectTimeout.
func Dialer(cfg config.HistorianConfig) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		dsn := cfg.DSN()
		if dsn == "" {
			return nil, fmt.Errorf("historian: %s is not set: %w", cfg.DSNEnv, types.ErrConnectionUnavailable)
		}
		db, err := sqlOpen(cfg.Driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("historian: open: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, fmt.Errorf("historian: ping: %w", err)
		}
		return &sqlConn{db: db}, nil
	}
}

// Latest returns the newest sample of tag, or false when the historian has none.
func (c *sqlConn) Latest(ctx context.Context, tag types.Tag) (Sample, bool, error) {
	var (
		ts    time.Time
		value float64
	)
	err := c.db.QueryRowContext(ctx, latestQuery, tag.Name).Scan(&ts, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return Sample{}, false, nil
	}
	if err != nil {
		return Sample{}, false, err
	}
	return Sample{
		Tag:           tag,
		DateTime:      ts,
		IntervalStart: ts,
		Value:         value,
		Quality:       types.QualityGood,
	}, true, nil
}

// History returns the cyclic samples of q.Tag between q.Start and q.End.
func (c *sqlConn) History(ctx context.Context, q HistoryQuery) ([]Sample, error) {
	rows, err := c.db.QueryContext(ctx, historyQuery, q.Tag.Name, q.Start.UTC(), q.End.UTC(), q.CycleCount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		s := Sample{Tag: q.Tag, Quality: types.QualityGood}
		if err := rows.Scan(&s.DateTime, &s.IntervalStart, &s.Value); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// FlowRate returns the batch log row for q, or nil when nothing matches.
func (c *sqlConn) FlowRate(ctx context.Context, q FlowRateQuery) (*FlowRateRow, error) {
	var logID string
	err := c.db.QueryRowContext(ctx, batchLogQuery, q.BatchID).Scan(&logID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup batch log id: %w", err)
	}

	row := &FlowRateRow{BatchLogID: logID}
	err = c.db.QueryRowContext(ctx, flowRateQuery,
		logID, q.Operation, q.Phase, q.QtyParameter, q.TimeParameter,
	).Scan(&row.ActualQty, &row.ActualValue)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("join flow rate rows: %w", err)
	}
	return row, nil
}

// Simulated always reports false.
func (c *sqlConn) Simulated() bool { return false }

// Close closes the underlying pool.
func (c *sqlConn) Close() error { return c.db.Close() }
