package models

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleFaculty UserRole = "faculty"
	RoleTutor   UserRole = "tutor"
	RoleStudent UserRole = "student"
)

// User is a login account. RefID points at the faculty or student record the
// account belongs to.
type User struct {
	Base
	Email        string   `json:"email"`
	Name         string   `json:"name"`
	Role         UserRole `json:"role"`
	PasswordHash string   `json:"passwordHash"`
	RefID        string   `json:"refId,omitempty"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Role  UserRole `json:"role"`
	RefID string   `json:"refId,omitempty"`
}

// Info strips credentials from the account.
func (u User) Info() UserInfo {
	return UserInfo{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, RefID: u.RefID}
}
