package utils

import (
	"errors"
	"testing"
	"time"
)

const testSecret = "test-secret"

func testClaims() TicketClaims {
	return TicketClaims{
		BookingID:   42,
		VenueID:     7,
		BranchID:    3,
		DateKey:     "2026-03-02",
		QueueIndex:  5,
		QueueNumber: "A-05",
	}
}

func TestTicketTokenRoundTrip(t *testing.T) {
	raw, err := NewTicketToken(testSecret, testClaims(), time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	got, err := ParseTicketToken(testSecret, raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != testClaims() {
		t.Fatalf("claims mismatch: %+v", got)
	}
}

func TestTicketTokenWrongSecret(t *testing.T) {
	raw, err := NewTicketToken(testSecret, testClaims(), time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseTicketToken("other-secret", raw); err == nil {
		t.Fatal("token signed with a different secret must be rejected")
	}
}

func TestTicketTokenExpired(t *testing.T) {
	raw, err := NewTicketToken(testSecret, testClaims(), -time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseTicketToken(testSecret, raw); err == nil {
		t.Fatal("expired token must be rejected")
	}
}

func TestTicketTokenRejectsAccessToken(t *testing.T) {
	// An access token is a valid JWT under the same secret but carries a
	// user role, not the ticket role.
	access, err := NewAccessToken(testSecret, 42, "staff", 3, 60)
	if err != nil {
		t.Fatalf("mint access: %v", err)
	}
	_, err = ParseTicketToken(testSecret, access.Token)
	if !errors.Is(err, ErrNotTicket) {
		t.Fatalf("want ErrNotTicket, got %v", err)
	}
}

func TestTicketTokenGarbage(t *testing.T) {
	if _, err := ParseTicketToken(testSecret, "not.a.jwt"); err == nil {
		t.Fatal("garbage input must be rejected")
	}
}
