package repository

import (
	"context"
	"database/sql"

	"github.com/sujal-shrestha/queless-backend/internal/model"
)

// BranchRepo reads branches, the scope of all daily ticket allocation.
type BranchRepo struct{ DB *sql.DB }

func NewBranchRepo(db *sql.DB) *BranchRepo { return &BranchRepo{DB: db} }

const branchCols = "id,venue_id,name,address,is_available,created_at,updated_at"

// ListByVenue returns all branches of a venue ordered by name, including
// currently unavailable ones so clients can render them greyed out.
func (r *BranchRepo) ListByVenue(ctx context.Context, venueID uint64) ([]model.Branch, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+branchCols+" FROM branches WHERE venue_id=? ORDER BY name", venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Branch{}
	for rows.Next() {
		var b model.Branch
		if err := rows.Scan(&b.ID, &b.VenueID, &b.Name, &b.Address, &b.IsAvailable, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetByID fetches a branch by id.
func (r *BranchRepo) GetByID(ctx context.Context, id uint64) (model.Branch, error) {
	var b model.Branch
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+branchCols+" FROM branches WHERE id=? LIMIT 1",
		id).Scan(&b.ID, &b.VenueID, &b.Name, &b.Address, &b.IsAvailable, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}
