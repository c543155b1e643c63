package model

import "testing"

func TestStatusRoundTrip(t *testing.T) {
	for _, s := range []Status{StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow} {
		parsed, err := ParseStatus(s.String())
		if err != nil {
			t.Fatalf("ParseStatus(%q): %v", s.String(), err)
		}
		if parsed != s {
			t.Fatalf("round trip mismatch: %v != %v", parsed, s)
		}
	}
	if _, err := ParseStatus("deleted"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusScheduled, StatusConfirmed, true},
		{StatusScheduled, StatusCompleted, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusScheduled, StatusNoShow, true},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusNoShow, true},
		{StatusConfirmed, StatusScheduled, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusNoShow, StatusCancelled, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Fatalf("%v -> %v: got %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestStatusBlocking(t *testing.T) {
	if StatusCancelled.Blocking() {
		t.Fatal("cancelled appointments must not block availability")
	}
	for _, s := range []Status{StatusScheduled, StatusConfirmed, StatusCompleted, StatusNoShow} {
		if !s.Blocking() {
			t.Fatalf("%v should block availability", s)
		}
	}
}
