// Package auth resolves the administrator behind a request and decides which
// institution it may act on.
package auth

import (
	"context"
	"strings"

	"github.com/edupresencia/fichai/internal/errors"
)

// Role describes a user role of the attendance application.
type Role string

const (
	RoleEmployee   Role = "employee"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// ValidRole reports whether role is a known role.
func ValidRole(role string) bool {
	switch Role(role) {
	case RoleEmployee, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// User is the authenticated caller.
type User struct {
	ID            string `json:"id"`
	Role          Role   `json:"role"`
	InstitutionID string `json:"institutionId"`
}

// IsAdmin reports whether the user may manage alert rules at all.
func (u *User) IsAdmin() bool {
	return u != nil && (u.Role == RoleAdmin || u.Role == RoleSuperAdmin)
}

// CanAccess reports whether the user may act on institutionID. A superadmin
// may act on any institution.
func (u *User) CanAccess(institutionID string) bool {
	if !u.IsAdmin() {
		return false
	}
	if u.Role == RoleSuperAdmin {
		return true
	}
	return u.InstitutionID != "" && u.InstitutionID == institutionID
}

// Scope returns the institution a request acts on. An empty requested
// institution falls back to the user's own.
func (u *User) Scope(requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		if u != nil {
			requested = u.InstitutionID
		}
		if requested == "" {
			return "", errors.Validation("institutionId is required",
				errors.FieldError{Field: "institutionId", Message: "institutionId is required"})
		}
	}
	if !u.CanAccess(requested) {
		return "", errors.Forbidden("access to institution %s denied", requested)
	}
	return requested, nil
}

type contextKey struct{}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// UserFromContext returns the user stored by WithUser, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(contextKey{}).(*User)
	return u
}
