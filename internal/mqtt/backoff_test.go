package mqtt

import (
	"testing"
	"time"
)

func TestIntervalGrowsEachCall(t *testing.T) {
	iv := NewInterval(time.Second, 2, 1024)
	iv.Next(100)
	iv.Next(100)
	if iv.k <= 2 {
		t.Fatalf("expected k to have grown past its initial value, got %v", iv.k)
	}
}

func TestIntervalDefaultsGuardAgainstZero(t *testing.T) {
	iv := NewInterval(time.Second, 0, 0)
	if iv.factor <= 0 || iv.bandwidth <= 0 {
		t.Fatal("expected NewInterval to substitute sane defaults for non-positive inputs")
	}
	d := iv.Next(10)
	if d < time.Second {
		t.Fatalf("expected delay to be at least the initial timeout, got %v", d)
	}
}

func TestIntervalLargerPayloadBacksOffMore(t *testing.T) {
	small := NewInterval(0, 2, 1024)
	large := NewInterval(0, 2, 1024)
	ds := small.Next(10)
	dl := large.Next(10000)
	if dl < ds {
		t.Fatalf("expected a larger payload to produce a larger or equal weighted delay, got small=%v large=%v", ds, dl)
	}
}
