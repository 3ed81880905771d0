package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sujal-shrestha/queless-backend/internal/model"
)

// QueueStateRepo drives the per-(branch, dateKey) serving cursor. A missing
// row means the day was never started; only Start creates rows. A unique key
// over (branch_id, date_key) guarantees one cursor per scope.
type QueueStateRepo struct{ DB *sql.DB }

func NewQueueStateRepo(db *sql.DB) *QueueStateRepo { return &QueueStateRepo{DB: db} }

const queueStateCols = "id,branch_id,date_key,started,started_at,current_serving_index,updated_at"

// Get fetches the cursor row for (branch, dateKey). sql.ErrNoRows means the
// queue has not been started.
func (r *QueueStateRepo) Get(ctx context.Context, branchID uint64, dateKey string) (model.QueueState, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+queueStateCols+" FROM queue_states WHERE branch_id=? AND date_key=? LIMIT 1",
		branchID, dateKey))
}

// Start opens the day for a branch. The upsert makes repeated starts
// idempotent: the serving index and the original started_at are preserved,
// only the started flag is (re)asserted.
func (r *QueueStateRepo) Start(ctx context.Context, branchID uint64, dateKey string, now time.Time) (model.QueueState, error) {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO queue_states (branch_id, date_key, started, started_at, current_serving_index)
		 VALUES (?,?,1,?,0)
		 ON DUPLICATE KEY UPDATE started=1, started_at=COALESCE(started_at, VALUES(started_at))`,
		branchID, dateKey, now.UTC())
	if err != nil {
		return model.QueueState{}, err
	}
	return r.Get(ctx, branchID, dateKey)
}

// Next advances the serving cursor by exactly one, guarded so concurrent
// staff clicks can never skip a number or run past the issued tickets. The
// totalIssued bound is the current count of non-cancelled bookings in the
// scope. Returns ErrQueueNotStarted before Start and ErrQueueExhausted once
// every issued ticket has been served; the cursor is unchanged in both cases.
func (r *QueueStateRepo) Next(ctx context.Context, branchID uint64, dateKey string, totalIssued int) (model.QueueState, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE queue_states SET current_serving_index = current_serving_index + 1
		 WHERE branch_id=? AND date_key=? AND started=1 AND current_serving_index < ?`,
		branchID, dateKey, totalIssued)
	if err != nil {
		return model.QueueState{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.QueueState{}, err
	}
	st, getErr := r.Get(ctx, branchID, dateKey)
	if n > 0 {
		return st, getErr
	}
	if getErr == sql.ErrNoRows {
		return model.QueueState{}, ErrQueueNotStarted
	}
	if getErr != nil {
		return model.QueueState{}, getErr
	}
	if !st.Started {
		return st, ErrQueueNotStarted
	}
	return st, ErrQueueExhausted
}

func (r *QueueStateRepo) scanOne(row *sql.Row) (model.QueueState, error) {
	var (
		st        model.QueueState
		startedAt sql.NullTime
	)
	err := row.Scan(&st.ID, &st.BranchID, &st.DateKey, &st.Started, &startedAt,
		&st.CurrentServingIndex, &st.UpdatedAt)
	if err != nil {
		return model.QueueState{}, err
	}
	if startedAt.Valid {
		t := startedAt.Time
		st.StartedAt = &t
	}
	return st, nil
}
