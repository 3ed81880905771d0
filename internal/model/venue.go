package model

import "time"

// Venue represents a service provider (a bank, a hospital, ...) that owns
// one or more physical branches. It corresponds to a row in the `venues`
// table. Only ID, Name and Logo are exposed through public API responses.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – display name of the venue.
//  Logo      – optional logo file name (e.g. "nabil.png").
//  IsActive  – whether the venue is shown in the public catalog.
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
type Venue struct {
	ID        uint64    // venues.id
	Name      string    // venues.name
	Logo      string    // venues.logo
	IsActive  bool      // venues.is_active
	CreatedAt time.Time // venues.created_at
	UpdatedAt time.Time // venues.updated_at
}

// Branch is a physical location of a Venue and the scope for all daily
// ticket allocation. It corresponds to a row in the `branches` table.
//
// Fields:
//  ID          – primary key identifier.
//  VenueID     – owning venue.
//  Name        – display name of the branch.
//  Address     – free-form street address.
//  IsAvailable – whether the branch currently accepts bookings.
//  CreatedAt   – timestamp of creation.
//  UpdatedAt   – timestamp of last update.
type Branch struct {
	ID          uint64    // branches.id
	VenueID     uint64    // branches.venue_id
	Name        string    // branches.name
	Address     string    // branches.address
	IsAvailable bool      // branches.is_available
	CreatedAt   time.Time // branches.created_at
	UpdatedAt   time.Time // branches.updated_at
}
