package system

import (
	"testing"
	"time"
)

func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	before := time.Now().UTC().Add(-time.Second)
	got := clk.Now()
	after := time.Now().UTC().Add(time.Second)

	if got.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", got.Location())
	}
	if got.Before(before) || got.After(after) {
		t.Fatalf("expected %v to be between %v and %v", got, before, after)
	}
}

func TestClockNowMillisecondPrecision(t *testing.T) {
	t.Parallel()

	got := New().Now()
	if got.Nanosecond()%int(time.Millisecond) != 0 {
		t.Fatalf("expected millisecond precision, got %v", got)
	}
	if got.UnixMilli() != got.Truncate(time.Millisecond).UnixMilli() {
		t.Fatalf("unexpected truncation for %v", got)
	}
}
