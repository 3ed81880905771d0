package model

import "time"

// User represents an application account as stored in the `users` table.
// Regular users book tickets; staff accounts additionally carry the branch
// they operate, which scopes every staff queue action.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Username     – unique login handle (3-20 chars, letters/digits/_/-).
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – "user" or "staff".
//  BranchID     – assigned branch for staff accounts (nil for users).
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	BranchID     *uint64   // users.branch_id (nullable)
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// Account roles.
const (
	RoleUser  = "user"
	RoleStaff = "staff"
)

// RefreshToken models an entry in the `refresh_tokens` table. Each refresh
// token belongs to a user and contains metadata for expiry and revocation.
// The plain token is not stored; only its SHA-256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
