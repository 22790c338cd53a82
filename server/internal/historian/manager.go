package historian

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/plantqc/historian-bridge/pkg/types"
	"github.com/plantqc/historian-bridge/server/internal/metrics"
)

// DialFunc opens a real historian connection.
type DialFunc func(ctx context.Context) (Conn, error)

// Manager owns the single cached historian connection and the process-wide
// ConnectionState. Construct one at startup and inject it everywhere.
//
// Manager is safe for concurrent use.
type Manager struct {
	dial     DialFunc
	fallback Conn
	now      func() time.Time // injectable for deterministic tests

	mu    sync.Mutex
	conn  Conn
	state types.ConnectionState
}

// NewManager creates a Manager that dials with dial and serves fallback
// whenever a dial fails.
func NewManager(dial DialFunc, fallback Conn) *Manager {
	return &Manager{
		dial:     dial,
		fallback: fallback,
		now:      time.Now,
		state: types.ConnectionState{
			Mode:      types.ModeFallback,
			LastError: "historian connection not attempted yet",
			UpdatedAt: time.Now().UTC(),
		},
	}
}

// Acquire returns the cached connection, or dials a new one. It never fails:
// when the dial fails the fallback simulator is returned for this call only,
// and the next call dials again.
func (m *Manager) Acquire(ctx context.Context) Conn {
	m.mu.Lock()
	if c := m.conn; c != nil {
		m.setState(types.ModeConnected, "")
		m.mu.Unlock()
		metrics.AcquireTotal.WithLabelValues("cached").Inc()
		return c
	}
	m.mu.Unlock()

	// Dial without holding the lock so a slow historian only delays callers
	// that also need to dial.
	c, err := m.dial(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		if m.conn != nil {
			// A concurrent dial succeeded while ours failed.
			return m.conn
		}
		if m.state.Mode != types.ModeFallback || m.state.LastError != err.Error() {
			slog.Warn("historian: connection unavailable, serving synthetic data", "err", err)
		} else {
			slog.Debug("historian: reconnect attempt failed", "err", err)
		}
		m.setState(types.ModeFallback, err.Error())
		metrics.AcquireTotal.WithLabelValues("fallback").Inc()
		return m.fallback
	}

	if m.conn != nil {
		// Lost the race against another successful dial; keep the cached one.
		c.Close() //nolint:errcheck
	} else {
		m.conn = c
		slog.Info("historian: connected")
	}
	m.setState(types.ModeConnected, "")
	metrics.AcquireTotal.WithLabelValues("connected").Inc()
	return m.conn
}

// State returns a copy of the current ConnectionState.
func (m *Manager) State() types.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Close releases the cached connection, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}

// setState must be called with m.mu held.
func (m *Manager) setState(mode types.ConnectionMode, lastErr string) {
	m.state = types.ConnectionState{
		Mode:      mode,
		LastError: lastErr,
		UpdatedAt: m.now().UTC(),
	}
	if mode == types.ModeConnected {
		metrics.Connected.Set(1)
	} else {
		metrics.Connected.Set(0)
	}
}
