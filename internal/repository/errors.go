// Package repository implements persistence over MySQL with raw SQL. The
// sentinel errors defined here let handlers map each failure scenario to a
// distinct HTTP response without inspecting driver errors. For example,
// ErrDailyLimitReached becomes a capacity conflict while ErrForbidden
// becomes a 403.
package repository

import (
	"errors"
	"strings"
)

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own or a branch outside their assignment. Handlers
// should translate this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an insert or update cannot proceed because of
// conflicting existing state, such as a duplicate username. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrDailyLimitReached signals that the branch has already issued its full
// quota of tickets for the day. No booking row is created.
var ErrDailyLimitReached = errors.New("daily ticket limit reached")

// ErrSlotOverlap signals that the user already holds a non-cancelled booking
// whose visit window overlaps the requested one at the same branch and day.
var ErrSlotOverlap = errors.New("overlapping booking exists")

// ErrAlreadyUsed signals that a ticket was already consumed; consumption is
// at most once and a second attempt must not mutate anything.
var ErrAlreadyUsed = errors.New("ticket already used")

// ErrInvalidStatus signals a lifecycle action applied to a booking whose
// current status does not admit it (e.g. cancelling a completed booking).
var ErrInvalidStatus = errors.New("invalid status for this action")

// ErrQueueNotStarted signals a "next" call before staff opened the day.
var ErrQueueNotStarted = errors.New("queue not started")

// ErrQueueExhausted signals a "next" call after every issued ticket has been
// served. The serving cursor is left unchanged.
var ErrQueueExhausted = errors.New("queue finished")

// ErrNotCompleted signals a review submitted for a booking that has not
// been completed yet.
var ErrNotCompleted = errors.New("booking not completed")

// isDuplicate reports whether err is a MySQL duplicate-entry violation
// (error 1062). Allocation treats it as the transient signal to retry.
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}
