// Package queue defines message payloads exchanged over the message broker.
package queue

// TicketIssuedEvent is published when a booking is created and its queue
// number allocated. It carries enough for downstream consumers to log,
// notify or feed analytics without querying the primary database.
type TicketIssuedEvent struct {
	BookingID   uint64 `json:"booking_id"`
	UserID      uint64 `json:"user_id"`
	VenueID     uint64 `json:"venue_id"`
	VenueName   string `json:"venue_name"`
	BranchID    uint64 `json:"branch_id"`
	BranchName  string `json:"branch_name"`
	DateKey     string `json:"date_key"`
	QueueIndex  int    `json:"queue_index"`
	QueueNumber string `json:"queue_number"`
	ScheduledAt string `json:"scheduled_at"`
	IssuedAt    string `json:"issued_at"`
}

// TicketConsumedEvent is published when staff consume a ticket at the desk.
type TicketConsumedEvent struct {
	BookingID   uint64 `json:"booking_id"`
	UserID      uint64 `json:"user_id"`
	BranchID    uint64 `json:"branch_id"`
	DateKey     string `json:"date_key"`
	QueueNumber string `json:"queue_number"`
	StaffID     uint64 `json:"staff_id"`
	ConsumedAt  string `json:"consumed_at"`
}
