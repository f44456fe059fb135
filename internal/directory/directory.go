// Package directory talks to the external identity service that owns users,
// their roles and their departments.
package directory

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means the directory answered and the user or supervisor does not exist.
	ErrNotFound = errors.New("directory: not found")
	// ErrUnavailable means the directory could not be consulted (breaker open, timeout, 5xx).
	ErrUnavailable = errors.New("directory: unavailable")
)

// User is the identity record returned by the directory.
type User struct {
	ID           string `json:"id"`
	Role         string `json:"role"`
	DepartmentID string `json:"departmentId"`
}

// IdentityDirectory resolves users and department supervisors.
type IdentityDirectory interface {
	GetUser(ctx context.Context, id string) (*User, error)
	SupervisorForDepartment(ctx context.Context, departmentID string) (string, error)
}
