package auth

// Role of an authenticated caller of the admin surface.
type Role string

const (
	// RoleAdmin represents the operator holding the admin token
	RoleAdmin Role = "admin"
)

// IsAdmin checks if the role is admin
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}
