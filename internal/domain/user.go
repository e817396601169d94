package domain

import "time"

// UserRole enumerates account roles. Customers submit tickets; agents,
// managers and admins are staff.
type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleAgent    UserRole = "agent"
	RoleManager  UserRole = "manager"
	RoleAdmin    UserRole = "admin"
)

// IsStaff reports whether the role belongs to the support organization.
func (r UserRole) IsStaff() bool {
	return r == RoleAgent || r == RoleManager || r == RoleAdmin
}

// EligibleAssignee reports whether the role can own ticket assignments.
func (r UserRole) EligibleAssignee() bool {
	return r.IsStaff()
}

// User is an account in the directory. The engine only reads users; all
// account management lives outside this service.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Role         UserRole
	IsActive     bool
	CreatedAt    time.Time
}
