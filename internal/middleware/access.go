package middleware

import "github.com/sujal-shrestha/queless-backend/internal/model"

// CanAccessBranch decides whether a caller may operate the queue of
// targetBranch. Staff are confined to their single assigned branch; regular
// users never operate queues (they only read the public live endpoint,
// which does not pass through this check). Pure so it can be tested apart
// from request handling.
func CanAccessBranch(role string, assignedBranch, targetBranch uint64) bool {
	if role != model.RoleStaff {
		return false
	}
	if assignedBranch == 0 || targetBranch == 0 {
		return false
	}
	return assignedBranch == targetBranch
}
