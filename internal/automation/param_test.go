package automation

import (
	"math"
	"testing"
)

func TestValueAtSegments(t *testing.T) {
	p := NewParam(0)
	p.SetValueAtTime(0, 1)
	p.LinearRampToValueAtTime(1, 2)
	p.ExponentialRampToValueAtTime(0.01, 3)

	cases := []struct {
		at   float64
		want float64
	}{
		{0.5, 0},
		{1, 0},
		{1.5, 0.5},
		{2, 1},
		{2.5, 0.1},
		{3, 0.01},
		{10, 0.01},
	}
	for _, tc := range cases {
		got := p.ValueAt(tc.at)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("ValueAt(%v) = %v, want %v", tc.at, got, tc.want)
		}
	}
}

func TestRampWithoutOriginHoldsInitial(t *testing.T) {
	p := NewParam(0.3)
	p.LinearRampToValueAtTime(1, 1)
	if got := p.ValueAt(0.5); got != 0.3 {
		t.Fatalf("ValueAt = %v, want initial value", got)
	}
}

func TestCancelScheduledValues(t *testing.T) {
	p := NewParam(0)
	p.SetValueAtTime(0, 0)
	p.LinearRampToValueAtTime(1, 1)
	p.LinearRampToValueAtTime(0, 2)
	p.CancelScheduledValues(1)
	if p.Len() != 1 {
		t.Fatalf("events left = %d, want 1", p.Len())
	}
	if got := p.ValueAt(5); got != 0 {
		t.Fatalf("after cancel the last set value should hold, got %v", got)
	}
}

func TestInsertKeepsTimeOrder(t *testing.T) {
	p := NewParam(0)
	p.LinearRampToValueAtTime(1, 2)
	p.SetValueAtTime(0.5, 1)
	if got := p.ValueAt(1.5); math.Abs(got-0.75) > 1e-12 {
		t.Fatalf("ValueAt(1.5) = %v, want 0.75", got)
	}
	if p.LastEventTime() != 2 {
		t.Fatalf("LastEventTime = %v", p.LastEventTime())
	}
}

func TestExponentialClampsToFloor(t *testing.T) {
	p := NewParam(0)
	p.SetValueAtTime(0, 0)
	p.ExponentialRampToValueAtTime(0, 1)
	v := p.ValueAt(0.5)
	if math.IsNaN(v) || v < MinPositive*0.999 {
		t.Fatalf("exponential ramp between zeros should stay at the floor, got %v", v)
	}
}
