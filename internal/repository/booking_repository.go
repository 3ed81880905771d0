package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sujal-shrestha/queless-backend/internal/model"
	"github.com/sujal-shrestha/queless-backend/internal/utils"
)

// BookingRepo owns the bookings table: daily ticket allocation, lifecycle
// updates and the read paths users and staff render from.
//
// Allocation runs max(queue_index)+1 over non-cancelled rows inside a
// transaction. Uniqueness is enforced by a key over (branch_id, date_key,
// active_index), where active_index is a generated column equal to
// queue_index for non-cancelled rows and NULL once cancelled. Cancelling a
// booking therefore frees its index for reallocation while queue_index
// itself never changes. When two transactions compute the same next index
// the insert loses with a duplicate-key error and the whole allocate step
// is retried a bounded number of times.
type BookingRepo struct{ DB *sql.DB }

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{DB: db} }

// allocAttempts bounds the optimistic retries of allocate-and-insert before
// the race is surfaced to the caller as a conflict.
const allocAttempts = 5

const bookingCols = `id,user_id,venue_id,branch_id,title,organization_name,scheduled_at,date_key,
queue_index,queue_number,status,checked_in,checked_in_at,used_at,used_by,rating,review,reviewed_at,
created_at,updated_at`

// Create allocates the next queue index for (branch, dateKey) and persists
// the booking atomically. On success b is populated with the generated ID,
// queue index/number, status and timestamps. Returns ErrSlotOverlap,
// ErrDailyLimitReached or ErrConflict (retries exhausted).
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking, dailyCap int, slot time.Duration) error {
	err := utils.Retry(allocAttempts, isDuplicate, func() error {
		return r.createOnce(ctx, b, dailyCap, slot)
	})
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

func (r *BookingRepo) createOnce(ctx context.Context, b *model.Booking, dailyCap int, slot time.Duration) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Same user, same branch, same day: reject overlapping visit windows.
	rows, err := tx.QueryContext(ctx,
		`SELECT scheduled_at FROM bookings
		 WHERE user_id=? AND branch_id=? AND date_key=? AND status<>'cancelled'`,
		b.UserID, b.BranchID, b.DateKey)
	if err != nil {
		return err
	}
	for rows.Next() {
		var existing time.Time
		if err := rows.Scan(&existing); err != nil {
			rows.Close()
			return err
		}
		if model.SlotsOverlap(existing, b.ScheduledAt, slot) {
			rows.Close()
			return ErrSlotOverlap
		}
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var maxIndex int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(queue_index),0) FROM bookings
		 WHERE branch_id=? AND date_key=? AND status<>'cancelled'`,
		b.BranchID, b.DateKey).Scan(&maxIndex)
	if err != nil {
		return err
	}
	next := maxIndex + 1
	if next > dailyCap {
		return ErrDailyLimitReached
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings
		 (user_id, venue_id, branch_id, title, organization_name, scheduled_at,
		  date_key, queue_index, queue_number, status)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		b.UserID, b.VenueID, b.BranchID, b.Title, b.OrganizationName, b.ScheduledAt.UTC(),
		b.DateKey, next, utils.QueueNumber(next), model.StatusUpcoming)
	if err != nil {
		return err // 1062 from a lost race is retried by Create
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	b.ID = uint64(id)
	b.QueueIndex = next
	b.QueueNumber = utils.QueueNumber(next)
	b.Status = model.StatusUpcoming
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

func scanBooking(sc interface{ Scan(...any) error }) (model.Booking, error) {
	var (
		b           model.Booking
		checkedInAt sql.NullTime
		usedAt      sql.NullTime
		usedBy      sql.NullInt64
		rating      sql.NullInt64
		review      sql.NullString
		reviewedAt  sql.NullTime
	)
	err := sc.Scan(&b.ID, &b.UserID, &b.VenueID, &b.BranchID, &b.Title, &b.OrganizationName,
		&b.ScheduledAt, &b.DateKey, &b.QueueIndex, &b.QueueNumber, &b.Status, &b.CheckedIn,
		&checkedInAt, &usedAt, &usedBy, &rating, &review, &reviewedAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return model.Booking{}, err
	}
	if checkedInAt.Valid {
		t := checkedInAt.Time
		b.CheckedInAt = &t
	}
	if usedAt.Valid {
		t := usedAt.Time
		b.UsedAt = &t
	}
	if usedBy.Valid {
		v := uint64(usedBy.Int64)
		b.UsedBy = &v
	}
	if rating.Valid {
		v := uint8(rating.Int64)
		b.Rating = &v
	}
	if review.Valid {
		s := review.String
		b.Review = &s
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		b.ReviewedAt = &t
	}
	return b, nil
}

// GetByID fetches a booking by id.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	return scanBooking(r.DB.QueryRowContext(ctx,
		"SELECT "+bookingCols+" FROM bookings WHERE id=? LIMIT 1", id))
}

// ListByUser returns all of a user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+bookingCols+" FROM bookings WHERE user_id=? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// TodayForUser returns a user's non-cancelled bookings for the given
// dateKey ordered by scheduled time.
func (r *BookingRepo) TodayForUser(ctx context.Context, userID uint64, dateKey string) ([]model.Booking, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+bookingCols+` FROM bookings
		 WHERE user_id=? AND date_key=? AND status<>'cancelled' ORDER BY scheduled_at`,
		userID, dateKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func collectBookings(rows *sql.Rows) ([]model.Booking, error) {
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// RosterEntry is a roster row: the booking plus the owner's display handle.
type RosterEntry struct {
	Booking  model.Booking
	Username string
}

// RosterForDay returns the full non-cancelled roster of (branch, dateKey)
// in queue order with owner usernames, for the staff dashboard.
func (r *BookingRepo) RosterForDay(ctx context.Context, branchID uint64, dateKey string) ([]RosterEntry, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT b.id,b.user_id,b.venue_id,b.branch_id,b.title,b.organization_name,b.scheduled_at,b.date_key,
		 b.queue_index,b.queue_number,b.status,b.checked_in,b.checked_in_at,b.used_at,b.used_by,b.rating,
		 b.review,b.reviewed_at,b.created_at,b.updated_at,u.username
		 FROM bookings b JOIN users u ON u.id=b.user_id
		 WHERE b.branch_id=? AND b.date_key=? AND b.status<>'cancelled'
		 ORDER BY b.queue_index`,
		branchID, dateKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RosterEntry{}
	for rows.Next() {
		var (
			b           model.Booking
			checkedInAt sql.NullTime
			usedAt      sql.NullTime
			usedBy      sql.NullInt64
			rating      sql.NullInt64
			review      sql.NullString
			reviewedAt  sql.NullTime
			username    string
		)
		err := rows.Scan(&b.ID, &b.UserID, &b.VenueID, &b.BranchID, &b.Title, &b.OrganizationName,
			&b.ScheduledAt, &b.DateKey, &b.QueueIndex, &b.QueueNumber, &b.Status, &b.CheckedIn,
			&checkedInAt, &usedAt, &usedBy, &rating, &review, &reviewedAt, &b.CreatedAt, &b.UpdatedAt,
			&username)
		if err != nil {
			return nil, err
		}
		if checkedInAt.Valid {
			t := checkedInAt.Time
			b.CheckedInAt = &t
		}
		if usedAt.Valid {
			t := usedAt.Time
			b.UsedAt = &t
		}
		if usedBy.Valid {
			v := uint64(usedBy.Int64)
			b.UsedBy = &v
		}
		if rating.Valid {
			v := uint8(rating.Int64)
			b.Rating = &v
		}
		if review.Valid {
			s := review.String
			b.Review = &s
		}
		if reviewedAt.Valid {
			t := reviewedAt.Time
			b.ReviewedAt = &t
		}
		out = append(out, RosterEntry{Booking: b, Username: username})
	}
	return out, rows.Err()
}

// CountIssued counts non-cancelled bookings of (branch, dateKey). This is
// the serving cursor's upper bound.
func (r *BookingRepo) CountIssued(ctx context.Context, branchID uint64, dateKey string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookings WHERE branch_id=? AND date_key=? AND status<>'cancelled'",
		branchID, dateKey).Scan(&n)
	return n, err
}

// Cancel marks an owner's booking cancelled. Only upcoming and checked_in
// bookings can be cancelled; the freed index becomes reallocatable. Returns
// sql.ErrNoRows, ErrForbidden or ErrInvalidStatus on failure.
func (r *BookingRepo) Cancel(ctx context.Context, bookingID, userID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE bookings SET status='cancelled'
		 WHERE id=? AND user_id=? AND status IN ('upcoming','checked_in')`,
		bookingID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	b, err := r.GetByID(ctx, bookingID)
	if err != nil {
		return err // sql.ErrNoRows included
	}
	if b.UserID != userID {
		return ErrForbidden
	}
	return ErrInvalidStatus
}

// CheckIn records the first successful scan of a ticket. A repeated scan of
// an already checked-in, unconsumed ticket is a no-op success; the original
// checked_in_at is preserved. Returns ErrAlreadyUsed or ErrInvalidStatus.
func (r *BookingRepo) CheckIn(ctx context.Context, bookingID uint64, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE bookings SET status='checked_in', checked_in=1,
		 checked_in_at=COALESCE(checked_in_at, ?)
		 WHERE id=? AND used_at IS NULL AND status IN ('upcoming','checked_in')`,
		now.UTC(), bookingID)
	if err != nil {
		return err
	}
	// A fresh check-in changes the row, so a nonzero count alone proves
	// success; no re-read that a concurrent consume could skew. A re-scan
	// changes no column values and reports zero rows, the same as a rejected
	// scan, so only that case re-reads and judges from the row itself.
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	b, err := r.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.UsedAt != nil {
		return ErrAlreadyUsed
	}
	if b.Status != model.StatusCheckedIn {
		return ErrInvalidStatus
	}
	return nil
}

// Consume spends a ticket exactly once: the status moves to completed and
// used_at/used_by are set. The used_at IS NULL guard makes a second consume
// attempt affect zero rows. Returns ErrAlreadyUsed or ErrInvalidStatus.
func (r *BookingRepo) Consume(ctx context.Context, bookingID, staffID uint64, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE bookings SET status='completed', used_at=?, used_by=?,
		 checked_in=1, checked_in_at=COALESCE(checked_in_at, ?)
		 WHERE id=? AND used_at IS NULL AND status IN ('upcoming','checked_in')`,
		now.UTC(), staffID, now.UTC(), bookingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	b, err := r.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.UsedAt != nil {
		return ErrAlreadyUsed
	}
	return ErrInvalidStatus
}

// SetReview stores (or overwrites) the owner's rating and review on a
// completed booking. Returns sql.ErrNoRows, ErrForbidden or ErrNotCompleted.
func (r *BookingRepo) SetReview(ctx context.Context, bookingID, userID uint64, rating uint8, review string, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE bookings SET rating=?, review=?, reviewed_at=?
		 WHERE id=? AND user_id=? AND status='completed'`,
		rating, review, now.UTC(), bookingID, userID)
	if err != nil {
		return err
	}
	// Resubmitting identical text affects zero rows; re-read to tell an
	// unchanged overwrite apart from a rejected one.
	b, err := r.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.UserID != userID {
		return ErrForbidden
	}
	if b.Status != model.StatusCompleted {
		return ErrNotCompleted
	}
	return nil
}
