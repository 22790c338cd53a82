package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinLine and MaxLine bound the physical reactor lines.
const (
	MinLine = 1
	MaxLine = 6
)

// SignalKind identifies which probe a tag belongs to.
type SignalKind string

const (
	SignalPH  SignalKind = "pH"
	SignalTCC SignalKind = "TCC"
)

// SignalKinds lists every tracked signal kind in poll order.
var SignalKinds = []SignalKind{SignalPH, SignalTCC}

// ParseSignalKind accepts "ph" or "tcc" in any case.
func ParseSignalKind(s string) (SignalKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ph":
		return SignalPH, nil
	case "tcc":
		return SignalTCC, nil
	default:
		return "", fmt.Errorf("signal %q: want ph|tcc: %w", s, ErrInvalidSelector)
	}
}

// Unit returns the engineering unit the historian reports for the kind.
func (k SignalKind) Unit() string {
	switch k {
	case SignalPH:
		return "pH"
	case SignalTCC:
		return "%"
	default:
		return ""
	}
}

// ReactorLine is one of the six production trains.
type ReactorLine int

// Valid reports whether l is within [MinLine, MaxLine].
func (l ReactorLine) Valid() bool { return l >= MinLine && l <= MaxLine }

// ParseReactorLine parses a decimal line number and validates its range.
func ParseReactorLine(s string) (ReactorLine, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("line %q is not a number: %w", s, ErrInvalidSelector)
	}
	l := ReactorLine(n)
	if !l.Valid() {
		return 0, fmt.Errorf("line %d out of range [%d, %d]: %w", n, MinLine, MaxLine, ErrInvalidSelector)
	}
	return l, nil
}

// LineFromLotID derives the reactor line from the trailing character of a
// lot identifier, e.g. "L2024-0113" -> 3.
func LineFromLotID(lotID string) (ReactorLine, error) {
	lotID = strings.TrimSpace(lotID)
	if lotID == "" {
		return 0, fmt.Errorf("empty lot id: %w", ErrInvalidSelector)
	}
	l, err := ParseReactorLine(lotID[len(lotID)-1:])
	if err != nil {
		return 0, fmt.Errorf("lot %q: %w", lotID, err)
	}
	return l, nil
}

// Tag is a named sensor channel in the historian.
type Tag struct {
	Name string      `json:"name"`
	Kind SignalKind  `json:"signal"`
	Line ReactorLine `json:"line"`
}

// Quality marks whether a reading came from the historian or the simulator.
type Quality string

const (
	QualityGood      Quality = "Good"
	QualitySynthetic Quality = "Synthetic"
)

// Reading is one sample of one tag.
type Reading struct {
	Tag       string    `json:"tag"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Quality   Quality   `json:"quality"`
	Unit      string    `json:"unit"`
}

// Synthetic reports whether the reading was fabricated by the simulator.
func (r Reading) Synthetic() bool { return r.Quality == QualitySynthetic }

// ConnectionMode is the historian acquisition mode.
type ConnectionMode string

const (
	ModeConnected ConnectionMode = "Connected"
	ModeFallback  ConnectionMode = "Fallback"
)

// ConnectionState describes the outcome of the most recent acquire attempt.
type ConnectionState struct {
	Mode      ConnectionMode `json:"mode"`
	LastError string         `json:"last_error,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// BatchWindow is the time interval over which a batch's history is relevant.
// A nil End means the batch is still open.
type BatchWindow struct {
	BatchID     string      `json:"batch_id"`
	LotID       string      `json:"lot_id"`
	ProductName string      `json:"product_name,omitempty"`
	Line        ReactorLine `json:"line"`
	Start       time.Time   `json:"start"`
	End         *time.Time  `json:"end,omitempty"`
}

// Open reports whether the batch has not been closed yet.
func (w BatchWindow) Open() bool { return w.End == nil }

// EffectiveEnd returns End, or now for an open batch.
func (w BatchWindow) EffectiveEnd(now time.Time) time.Time {
	if w.End == nil {
		return now
	}
	return *w.End
}
