package historian

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/plantqc/historian-bridge/pkg/types"
)

// Baseline is the centre and maximum deviation of synthetic values for one
// signal kind.
type Baseline struct {
	Center float64
	Jitter float64
}

// Baselines holds the synthetic value envelope per signal kind.
var Baselines = map[types.SignalKind]Baseline{
	types.SignalPH:  {Center: 7.0, Jitter: 0.25},
	types.SignalTCC: {Center: 0.5, Jitter: 0.05},
}

// Simulator fabricates readings when the historian is unreachable.
// Every sample it produces has Quality=Synthetic.
type Simulator struct {
	step time.Duration
	now  func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator creates a Simulator whose range samples are step apart.
func NewSimulator(step time.Duration) *Simulator {
	return &Simulator{
		step: step,
		now:  time.Now,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // not security sensitive
	}
}

// Latest returns one synthetic sample stamped now.
func (s *Simulator) Latest(_ context.Context, tag types.Tag) (Sample, bool, error) {
	now := s.now().UTC()
	return s.sample(tag, now), true, nil
}

// History steps backwards from min(q.End, now) by the configured step,
// producing at most q.CycleCount samples and never crossing q.Start.
func (s *Simulator) History(_ context.Context, q HistoryQuery) ([]Sample, error) {
	end := q.End.UTC()
	if now := s.now().UTC(); now.Before(end) {
		end = now
	}
	n := q.CycleCount
	if n <= 0 {
		n = 1
	}

	out := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		ts := end.Add(-time.Duration(i) * s.step)
		if ts.Before(q.Start) {
			break
		}
		out = append(out, s.sample(q.Tag, ts))
	}
	// Reverse into ascending order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// FlowRate reports no rows: there is no synthetic batch log to join.
func (s *Simulator) FlowRate(context.Context, FlowRateQuery) (*FlowRateRow, error) {
	return nil, nil
}

// Simulated always reports true.
func (s *Simulator) Simulated() bool { return true }

// Close is a no-op.
func (s *Simulator) Close() error { return nil }

func (s *Simulator) sample(tag types.Tag, ts time.Time) Sample {
	return Sample{
		Tag:           tag,
		DateTime:      ts,
		IntervalStart: ts,
		Value:         s.value(tag.Kind),
		Quality:       types.QualitySynthetic,
	}
}

// value draws uniformly from the kind's envelope, rounded to 3 decimals like
// the historian reports.
func (s *Simulator) value(kind types.SignalKind) float64 {
	b := Baselines[kind]
	s.mu.Lock()
	f := s.rng.Float64()
	s.mu.Unlock()
	v := b.Center + (2*f-1)*b.Jitter
	return math.Round(v*1000) / 1000
}
