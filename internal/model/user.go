package model

import "time"

// Role is the authorization role carried in access tokens.
type Role string

const (
	RoleEmployee   Role = "employee"
	RoleManagement Role = "management"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleManagement, RoleAdmin:
		return true
	}
	return false
}

// User mirrors the `users` table.  Only login reads it; user
// administration lives elsewhere.
//
// Fields:
//  ID           – primary key identifier.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – employee, management or admin.
//  FullName     – display name.
//  IsActive     – whether the account may log in.
//  CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         Role      // users.role
	FullName     string    // users.full_name
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
}

// Identity is the authenticated caller as established by the JWT
// middleware.
type Identity struct {
	UserID uint64 `json:"id"`
	Role   Role   `json:"role"`
}

// IsAdmin reports whether the caller has administrative rights.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// CanCede reports whether the caller's role may offer a spot.
func (i Identity) CanCede() bool { return i.Role == RoleManagement || i.Role == RoleAdmin }
