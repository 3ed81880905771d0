package model

import (
	"testing"
	"time"
)

func TestValidTransition(t *testing.T) {
	cases := []struct {
		action string
		from   string
		valid  bool
	}{
		{"check_in", StatusUpcoming, true},
		{"check_in", StatusCheckedIn, true},
		{"check_in", StatusCompleted, false},
		{"check_in", StatusCancelled, false},
		{"consume", StatusUpcoming, true},
		{"consume", StatusCheckedIn, true},
		{"consume", StatusCompleted, false},
		{"cancel", StatusUpcoming, true},
		{"cancel", StatusCheckedIn, true},
		{"cancel", StatusCompleted, false},
		{"no_show", StatusUpcoming, true},
		{"no_show", StatusCheckedIn, false},
		{"review", StatusCompleted, true},
		{"review", StatusUpcoming, false},
		{"review", StatusCheckedIn, false},
		{"unknown", StatusUpcoming, false},
	}

	for _, tt := range cases {
		if got := ValidTransition(tt.action, tt.from); got != tt.valid {
			t.Fatalf("ValidTransition(%q, %q)=%v, want %v", tt.action, tt.from, got, tt.valid)
		}
	}
}

func TestTicketActive(t *testing.T) {
	if !TicketActive(StatusUpcoming) || !TicketActive(StatusCheckedIn) {
		t.Fatal("upcoming and checked_in bookings must carry a ticket")
	}
	for _, s := range []string{StatusCompleted, StatusCancelled, StatusNoShow} {
		if TicketActive(s) {
			t.Fatalf("status %q must not carry a ticket", s)
		}
	}
}

func TestSlotsOverlap(t *testing.T) {
	slot := 30 * time.Minute
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		existing time.Time
		next     time.Time
		want     bool
	}{
		{"identical", base, base, true},
		{"next inside existing", base, base.Add(15 * time.Minute), true},
		{"existing inside next", base.Add(15 * time.Minute), base, true},
		{"back to back", base, base.Add(30 * time.Minute), false},
		{"well apart", base, base.Add(2 * time.Hour), false},
		{"one minute short of clear", base, base.Add(29 * time.Minute), true},
	}
	for _, tt := range cases {
		if got := SlotsOverlap(tt.existing, tt.next, slot); got != tt.want {
			t.Fatalf("%s: SlotsOverlap=%v, want %v", tt.name, got, tt.want)
		}
	}
}
