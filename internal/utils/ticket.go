package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// A ticket capability token is a signed, self-contained credential proving
// ticket identity without a store round trip. It embeds the booking's
// allocation facts so a scanner can cross-check them against the stored
// booking; the store record remains authoritative. Tokens are only minted
// for bookings whose status still admits check-in.

// TicketRole is the role claim value that distinguishes ticket tokens from
// access tokens signed with the same secret.
const TicketRole = "ticket"

// ErrNotTicket is returned when a structurally valid JWT does not carry the
// ticket role claim (e.g. an access token presented at the scanner).
var ErrNotTicket = errors.New("token is not a ticket")

// TicketClaims is the decoded payload of a ticket capability token.
type TicketClaims struct {
	BookingID   uint64
	VenueID     uint64
	BranchID    uint64
	DateKey     string
	QueueIndex  int
	QueueNumber string
}

// NewTicketToken signs a ticket capability token for a booking. The TTL
// bounds how long a ticket may be presented; the verify protocol
// additionally cross-checks dateKey and stored booking facts.
func NewTicketToken(secret string, tc TicketClaims, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"role":         TicketRole,
		"booking_id":   tc.BookingID,
		"venue_id":     tc.VenueID,
		"branch_id":    tc.BranchID,
		"date_key":     tc.DateKey,
		"queue_index":  tc.QueueIndex,
		"queue_number": tc.QueueNumber,
		"exp":          now.Add(ttl).Unix(),
		"iat":          now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

// ParseTicketToken verifies the signature and expiry of a ticket token and
// decodes its claims. It returns ErrNotTicket when the token is valid JWT
// but does not carry the ticket role; any other failure is the library's
// validation error (bad signature, expired, malformed).
func ParseTicketToken(secret, raw string) (TicketClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return TicketClaims{}, err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return TicketClaims{}, errors.New("invalid claims")
	}
	if role, _ := claims["role"].(string); role != TicketRole {
		return TicketClaims{}, ErrNotTicket
	}
	tc := TicketClaims{
		BookingID:   claimUint64(claims, "booking_id"),
		VenueID:     claimUint64(claims, "venue_id"),
		BranchID:    claimUint64(claims, "branch_id"),
		QueueIndex:  int(claimUint64(claims, "queue_index")),
		QueueNumber: claimString(claims, "queue_number"),
		DateKey:     claimString(claims, "date_key"),
	}
	if tc.BookingID == 0 {
		return TicketClaims{}, errors.New("ticket missing booking id")
	}
	return tc, nil
}

// claimUint64 extracts a numeric claim; JSON numbers decode as float64.
func claimUint64(claims jwt.MapClaims, key string) uint64 {
	switch v := claims[key].(type) {
	case float64:
		return uint64(v)
	case int64:
		return uint64(v)
	case uint64:
		return v
	}
	return 0
}

func claimString(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}
