package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/sujal-shrestha/queless-backend/internal/model"
	"github.com/sujal-shrestha/queless-backend/internal/utils"
)

// UserRepo provides account lookups and registration over the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// ErrAccountExists is returned when the username or email is already taken.
var ErrAccountExists = errors.New("username or email already exists")

// Create inserts a user and returns its ID. Staff accounts carry the branch
// they operate; branchID is nil for regular users.
func (r *UserRepo) Create(ctx context.Context, username, email, password, role string, branchID *uint64, cost int) (uint64, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, role, branch_id) VALUES (?,?,?,?,?)",
		username, email, hash, role, branchID)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrAccountExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

const userCols = "id,username,email,password_hash,role,branch_id,is_active,created_at,updated_at"

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u      model.User
		branch sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&branch, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	if branch.Valid {
		b := uint64(branch.Int64)
		u.BranchID = &b
	}
	return u, nil
}

// GetByUsername fetches a user by exact username. Login accepts the username
// as the identifier.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	username = strings.TrimSpace(username)
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE username=? LIMIT 1", username))
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id=? LIMIT 1", id))
}
