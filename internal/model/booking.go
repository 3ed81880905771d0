package model

import "time"

// Booking is a daily queue ticket issued to a user at a branch. Each booking
// carries its allocation facts (dateKey, queueIndex, queueNumber), which are
// immutable once the row is created: status moves along the lifecycle below
// but the index is never reassigned. Corresponds to a row in the `bookings`
// table with a unique key over (branch_id, date_key, queue_index).
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – owner of the booking.
//  VenueID          – venue the branch belongs to.
//  BranchID         – branch scope of the daily allocation.
//  Title            – purpose of the visit as entered by the user.
//  OrganizationName – venue display name snapshotted at creation.
//  ScheduledAt      – requested visit instant (UTC in the database).
//  DateKey          – civil date "YYYY-MM-DD" in the fixed queue time zone.
//  QueueIndex       – 1-based position within (branch, dateKey).
//  QueueNumber      – display form of QueueIndex, e.g. "A-07".
//  Status           – lifecycle status, see the Status* constants.
//  CheckedIn        – set on first successful ticket scan.
//  CheckedInAt      – when the first scan happened (nullable).
//  UsedAt           – consumption instant; non-nil means the ticket is spent.
//  UsedBy           – staff user that consumed the ticket (nullable).
//  Rating           – post-visit rating 1..5, only once completed (nullable).
//  Review           – post-visit review text, 2..500 chars (nullable).
//  ReviewedAt       – when the review was (re)submitted (nullable).
//  CreatedAt        – timestamp of creation.
//  UpdatedAt        – timestamp of last update.
type Booking struct {
	ID               uint64     // bookings.id
	UserID           uint64     // bookings.user_id
	VenueID          uint64     // bookings.venue_id
	BranchID         uint64     // bookings.branch_id
	Title            string     // bookings.title
	OrganizationName string     // bookings.organization_name
	ScheduledAt      time.Time  // bookings.scheduled_at
	DateKey          string     // bookings.date_key
	QueueIndex       int        // bookings.queue_index
	QueueNumber      string     // bookings.queue_number
	Status           string     // bookings.status
	CheckedIn        bool       // bookings.checked_in
	CheckedInAt      *time.Time // bookings.checked_in_at (nullable)
	UsedAt           *time.Time // bookings.used_at (nullable)
	UsedBy           *uint64    // bookings.used_by (nullable)
	Rating           *uint8     // bookings.rating (nullable)
	Review           *string    // bookings.review (nullable)
	ReviewedAt       *time.Time // bookings.reviewed_at (nullable)
	CreatedAt        time.Time  // bookings.created_at
	UpdatedAt        time.Time  // bookings.updated_at
}

// Booking lifecycle statuses.
const (
	StatusUpcoming  = "upcoming"
	StatusCheckedIn = "checked_in"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

// transitionMap lists, per action, the statuses the action may start from.
// check_in includes checked_in because a repeated scan before consumption
// is a valid no-op re-confirmation rather than an error.
var transitionMap = map[string][]string{
	"check_in": {StatusUpcoming, StatusCheckedIn},
	"consume":  {StatusUpcoming, StatusCheckedIn},
	"cancel":   {StatusUpcoming, StatusCheckedIn},
	"no_show":  {StatusUpcoming},
	"review":   {StatusCompleted},
}

// ValidTransition reports whether the given action is allowed from the
// given booking status.
func ValidTransition(action, fromStatus string) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

// TicketActive reports whether a booking may still present its capability
// token. Tokens are only derived for bookings in this window.
func TicketActive(status string) bool {
	return status == StatusUpcoming || status == StatusCheckedIn
}

// SlotsOverlap reports whether two fixed-duration visit slots collide:
// existingStart < newEnd AND newStart < existingEnd. Used to reject a user
// double-booking overlapping windows at one branch on one day.
func SlotsOverlap(existingStart, newStart time.Time, slot time.Duration) bool {
	existingEnd := existingStart.Add(slot)
	newEnd := newStart.Add(slot)
	return existingStart.Before(newEnd) && newStart.Before(existingEnd)
}
