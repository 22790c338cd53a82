package historian

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/plantqc/historian-bridge/pkg/types"
)

// fakeConn is an in-memory Conn returning canned samples.
type fakeConn struct {
	samples   []Sample
	latest    *Sample
	flow      *FlowRateRow
	err       error
	closed    atomic.Bool
	mu        sync.Mutex
	histories []HistoryQuery
}

func (f *fakeConn) Latest(_ context.Context, tag types.Tag) (Sample, bool, error) {
	if f.err != nil {
		return Sample{}, false, f.err
	}
	if f.latest == nil {
		return Sample{}, false, nil
	}
	s := *f.latest
	s.Tag = tag
	return s, true, nil
}

func (f *fakeConn) History(_ context.Context, q HistoryQuery) ([]Sample, error) {
	f.mu.Lock()
	f.histories = append(f.histories, q)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Sample, len(f.samples))
	for i, s := range f.samples {
		s.Tag = q.Tag
		out[i] = s
	}
	return out, nil
}

func (f *fakeConn) FlowRate(context.Context, FlowRateQuery) (*FlowRateRow, error) {
	return f.flow, f.err
}

func (f *fakeConn) Simulated() bool { return false }

func (f *fakeConn) Close() error {
	f.closed.Store(true)
	return nil
}

// scriptedDialer fails the first failures calls, then returns conn.
type scriptedDialer struct {
	failures int
	conn     Conn
	calls    atomic.Int32
}

var errUnreachable = errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")

func (d *scriptedDialer) dial(context.Context) (Conn, error) {
	n := int(d.calls.Add(1))
	if n <= d.failures {
		return nil, errUnreachable
	}
	return d.conn, nil
}
