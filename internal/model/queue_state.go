package model

import "time"

// QueueState is the per-(branch, dateKey) serving cursor that staff drive
// forward. CurrentServingIndex is 0 while nothing has been served and is
// monotonically non-decreasing; it never exceeds the number of
// non-cancelled bookings in the scope. One row per (branch_id, date_key),
// enforced by a unique key.
//
// Fields:
//  ID                  – primary key identifier.
//  BranchID            – branch scope.
//  DateKey             – civil date "YYYY-MM-DD" in the fixed queue zone.
//  Started             – whether staff opened the day.
//  StartedAt           – when the day was first opened (nullable).
//  CurrentServingIndex – queue index currently being served (0 = none).
//  UpdatedAt           – timestamp of last update.
type QueueState struct {
	ID                  uint64     // queue_states.id
	BranchID            uint64     // queue_states.branch_id
	DateKey             string     // queue_states.date_key
	Started             bool       // queue_states.started
	StartedAt           *time.Time // queue_states.started_at (nullable)
	CurrentServingIndex int        // queue_states.current_serving_index
	UpdatedAt           time.Time  // queue_states.updated_at
}
