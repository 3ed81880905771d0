package middleware

import (
	"testing"

	"github.com/sujal-shrestha/queless-backend/internal/model"
)

func TestCanAccessBranch(t *testing.T) {
	cases := []struct {
		name     string
		role     string
		assigned uint64
		target   uint64
		want     bool
	}{
		{"staff own branch", model.RoleStaff, 3, 3, true},
		{"staff other branch", model.RoleStaff, 3, 4, false},
		{"staff without assignment", model.RoleStaff, 0, 3, false},
		{"staff zero target", model.RoleStaff, 3, 0, false},
		{"regular user", model.RoleUser, 3, 3, false},
		{"unknown role", "admin", 3, 3, false},
		{"empty role", "", 3, 3, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanAccessBranch(tc.role, tc.assigned, tc.target); got != tc.want {
				t.Fatalf("CanAccessBranch(%q,%d,%d)=%v, want %v",
					tc.role, tc.assigned, tc.target, got, tc.want)
			}
		})
	}
}
