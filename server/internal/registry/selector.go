package registry

import (
	"fmt"
	"time"

	"github.com/plantqc/historian-bridge/pkg/types"
)

// Selector picks batch windows. Exactly one of BatchID, LotID, Line or the
// From/To pair must be set.
type Selector struct {
	BatchID string
	LotID   string
	Line    types.ReactorLine

	// From and To bound the window open time, both inclusive.
	From *time.Time
	To   *time.Time
}

// Validate reports a selector that names zero or several criteria, an
// out-of-range line, or a half-open or inverted time range. All failures
// wrap types.ErrInvalidSelector.
func (s Selector) Validate() error {
	n := 0
	if s.BatchID != "" {
		n++
	}
	if s.LotID != "" {
		n++
	}
	if s.Line != 0 {
		n++
		if !s.Line.Valid() {
			return fmt.Errorf("registry: line %d out of range %d..%d: %w", s.Line, types.MinLine, types.MaxLine, types.ErrInvalidSelector)
		}
	}
	if s.From != nil || s.To != nil {
		n++
		if s.From == nil || s.To == nil {
			return fmt.Errorf("registry: time range needs both from and to: %w", types.ErrInvalidSelector)
		}
		if s.To.Before(*s.From) {
			return fmt.Errorf("registry: time range to %s before from %s: %w",
				s.To.Format(time.RFC3339), s.From.Format(time.RFC3339), types.ErrInvalidSelector)
		}
	}
	switch n {
	case 0:
		return fmt.Errorf("registry: no batch selector given: %w", types.ErrInvalidSelector)
	case 1:
		return nil
	default:
		return fmt.Errorf("registry: %d batch selectors given, want exactly one: %w", n, types.ErrInvalidSelector)
	}
}

// String describes the selector for logs.
func (s Selector) String() string {
	switch {
	case s.BatchID != "":
		return "batch_id=" + s.BatchID
	case s.LotID != "":
		return "lot_id=" + s.LotID
	case s.Line != 0:
		return fmt.Sprintf("line=%d", s.Line)
	case s.From != nil && s.To != nil:
		return fmt.Sprintf("from=%s to=%s", s.From.Format(time.RFC3339), s.To.Format(time.RFC3339))
	}
	return "none"
}
