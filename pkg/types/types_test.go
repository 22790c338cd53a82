package types

import (
	"errors"
	"testing"
	"time"
)

func TestParseSignalKind(t *testing.T) {
	for in, want := range map[string]SignalKind{"ph": SignalPH, "PH": SignalPH, " tcc ": SignalTCC, "Tcc": SignalTCC} {
		got, err := ParseSignalKind(in)
		if err != nil || got != want {
			t.Errorf("ParseSignalKind(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseSignalKind("temp"); !errors.Is(err, ErrInvalidSelector) {
		t.Errorf("unknown kind: got %v, want ErrInvalidSelector", err)
	}
}

func TestSignalKind_Unit(t *testing.T) {
	if SignalPH.Unit() != "pH" || SignalTCC.Unit() != "%" {
		t.Errorf("units: pH=%q TCC=%q", SignalPH.Unit(), SignalTCC.Unit())
	}
}

func TestParseReactorLine(t *testing.T) {
	for _, s := range []string{"1", "6", " 3 "} {
		if _, err := ParseReactorLine(s); err != nil {
			t.Errorf("ParseReactorLine(%q): %v", s, err)
		}
	}
	for _, s := range []string{"0", "7", "-1", "", "three"} {
		if _, err := ParseReactorLine(s); !errors.Is(err, ErrInvalidSelector) {
			t.Errorf("ParseReactorLine(%q): got %v, want ErrInvalidSelector", s, err)
		}
	}
}

func TestLineFromLotID(t *testing.T) {
	got, err := LineFromLotID("L2024-0113")
	if err != nil || got != 3 {
		t.Errorf("LineFromLotID: got %d, %v; want 3", got, err)
	}
	for _, lot := range []string{"", "L2024-0110", "L2024-011X", "L2024-0117"} {
		if _, err := LineFromLotID(lot); !errors.Is(err, ErrInvalidSelector) {
			t.Errorf("LineFromLotID(%q): got %v, want ErrInvalidSelector", lot, err)
		}
	}
}

func TestBatchWindow_EffectiveEnd(t *testing.T) {
	start := time.Date(2024, 3, 11, 6, 0, 0, 0, time.UTC)
	now := start.Add(3 * time.Hour)

	open := BatchWindow{BatchID: "B1", Start: start}
	if !open.Open() || !open.EffectiveEnd(now).Equal(now) {
		t.Errorf("open window: open=%v end=%s", open.Open(), open.EffectiveEnd(now))
	}

	end := start.Add(time.Hour)
	closed := BatchWindow{BatchID: "B1", Start: start, End: &end}
	if closed.Open() || !closed.EffectiveEnd(now).Equal(end) {
		t.Errorf("closed window: open=%v end=%s", closed.Open(), closed.EffectiveEnd(now))
	}
}

func TestReading_Synthetic(t *testing.T) {
	if !(Reading{Quality: QualitySynthetic}).Synthetic() || (Reading{Quality: QualityGood}).Synthetic() {
		t.Error("Synthetic must reflect quality")
	}
}
