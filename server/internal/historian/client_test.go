package historian

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/plantqc/historian-bridge/pkg/types"
)

var t0 = time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

func clientWith(conn Conn) *Client {
	return NewClient(NewManager((&scriptedDialer{conn: conn}).dial, NewSimulator(time.Minute)), 50)
}

func TestRange_SortsAscending(t *testing.T) {
	conn := &fakeConn{samples: []Sample{
		{DateTime: t0.Add(20 * time.Minute), IntervalStart: t0.Add(10 * time.Minute), Value: 7.1, Quality: types.QualityGood},
		{DateTime: t0.Add(5 * time.Minute), IntervalStart: t0, Value: 7.0, Quality: types.QualityGood},
		{DateTime: t0.Add(10 * time.Minute), IntervalStart: t0.Add(5 * time.Minute), Value: 7.2, Quality: types.QualityGood},
	}}
	got, err := clientWith(conn).Range(context.Background(), phTag, t0, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("readings: got %d, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Fatalf("readings not sorted at %d", i)
		}
	}
	if got[0].Unit != "pH" || got[0].Tag != phTag.Name || got[0].Quality != types.QualityGood {
		t.Errorf("reading[0]: got %+v", got[0])
	}
}

func TestRange_DropsBoundarySample(t *testing.T) {
	conn := &fakeConn{samples: []Sample{
		// Extra cyclic sample whose interval begins before the window.
		{DateTime: t0, IntervalStart: t0.Add(-time.Minute), Value: 6.9},
		{DateTime: t0.Add(time.Minute), IntervalStart: t0, Value: 7.0},
		{DateTime: t0.Add(2 * time.Minute), IntervalStart: t0.Add(time.Minute), Value: 7.1},
	}}
	got, err := clientWith(conn).Range(context.Background(), phTag, t0, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("readings: got %d, want 2", len(got))
	}
	for _, r := range got {
		if r.Timestamp.Before(t0) || r.Timestamp.After(t0.Add(time.Hour)) {
			t.Errorf("reading %v outside window", r.Timestamp)
		}
	}
}

func TestRange_PassesWindowAndCycleCount(t *testing.T) {
	conn := &fakeConn{}
	c := clientWith(conn)
	c.SetCycleCount(250)
	c.SetCycleCount(0) // ignored

	if _, err := c.Range(context.Background(), tccTag, t0, t0.Add(time.Hour)); err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(conn.histories) != 1 {
		t.Fatalf("history calls: got %d, want 1", len(conn.histories))
	}
	q := conn.histories[0]
	if q.Tag != tccTag || !q.Start.Equal(t0) || !q.End.Equal(t0.Add(time.Hour)) || q.CycleCount != 250 {
		t.Errorf("query: got %+v", q)
	}
}

func TestRange_EndBeforeStart(t *testing.T) {
	conn := &fakeConn{}
	_, err := clientWith(conn).Range(context.Background(), phTag, t0, t0.Add(-time.Second))
	if !errors.Is(err, types.ErrInvalidSelector) {
		t.Fatalf("got %v, want ErrInvalidSelector", err)
	}
	if len(conn.histories) != 0 {
		t.Error("query issued for an invalid range")
	}
}

func TestRange_InvalidLine(t *testing.T) {
	bad := types.Tag{Name: "R9_PH.PV", Kind: types.SignalPH, Line: 9}
	_, err := clientWith(&fakeConn{}).Range(context.Background(), bad, t0, t0.Add(time.Hour))
	if !errors.Is(err, types.ErrInvalidSelector) {
		t.Fatalf("got %v, want ErrInvalidSelector", err)
	}
}

func TestRange_QueryErrorWrapsQueryFailed(t *testing.T) {
	cause := errors.New("timeout expired")
	_, err := clientWith(&fakeConn{err: cause}).Range(context.Background(), phTag, t0, t0.Add(time.Hour))
	if !errors.Is(err, types.ErrQueryFailed) {
		t.Fatalf("got %v, want ErrQueryFailed", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("underlying cause lost: %v", err)
	}
}

func TestRange_FallbackIsSynthetic(t *testing.T) {
	m := NewManager((&scriptedDialer{failures: 1}).dial, NewSimulator(time.Minute))
	c := NewClient(m, 30)

	end := time.Now().UTC()
	got, err := c.Range(context.Background(), phTag, end.Add(-time.Hour), end)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("fallback returned no readings")
	}
	for _, r := range got {
		if !r.Synthetic() {
			t.Fatalf("reading %+v not flagged Synthetic", r)
		}
	}
}

func TestLatest_OK(t *testing.T) {
	conn := &fakeConn{latest: &Sample{DateTime: t0, Value: 0.512, Quality: types.QualityGood}}
	r, err := clientWith(conn).Latest(context.Background(), tccTag)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if r.Value != 0.512 || r.Unit != "%" || r.Tag != tccTag.Name {
		t.Errorf("reading: got %+v", r)
	}
}

func TestLatest_NoValueIsNotFound(t *testing.T) {
	_, err := clientWith(&fakeConn{}).Latest(context.Background(), phTag)
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestLatest_QueryError(t *testing.T) {
	_, err := clientWith(&fakeConn{err: errors.New("boom")}).Latest(context.Background(), phTag)
	if !errors.Is(err, types.ErrQueryFailed) {
		t.Fatalf("got %v, want ErrQueryFailed", err)
	}
}
