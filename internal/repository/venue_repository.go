package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/sujal-shrestha/queless-backend/internal/model"
)

// VenueRepo reads the public venue catalog. Venues are seeded/managed out of
// band; the API only ever lists and resolves them.
type VenueRepo struct{ DB *sql.DB }

func NewVenueRepo(db *sql.DB) *VenueRepo { return &VenueRepo{DB: db} }

// List returns active venues ordered by name. A non-empty search term
// filters by case-insensitive substring match on the name.
func (r *VenueRepo) List(ctx context.Context, search string) ([]model.Venue, error) {
	const base = "SELECT id,name,logo,is_active,created_at,updated_at FROM venues WHERE is_active=1"
	var (
		rows *sql.Rows
		err  error
	)
	search = strings.TrimSpace(search)
	if search != "" {
		rows, err = r.DB.QueryContext(ctx, base+" AND name LIKE ? ORDER BY name", "%"+search+"%")
	} else {
		rows, err = r.DB.QueryContext(ctx, base+" ORDER BY name")
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Venue{}
	for rows.Next() {
		var v model.Venue
		if err := rows.Scan(&v.ID, &v.Name, &v.Logo, &v.IsActive, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetByID fetches an active venue by id. Missing and inactive venues both
// yield sql.ErrNoRows.
func (r *VenueRepo) GetByID(ctx context.Context, id uint64) (model.Venue, error) {
	var v model.Venue
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,name,logo,is_active,created_at,updated_at FROM venues WHERE id=? AND is_active=1 LIMIT 1",
		id).Scan(&v.ID, &v.Name, &v.Logo, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}
