package domain

import "time"

// User roles on the marketplace.
const (
	RoleClient     = "CLIENT"
	RoleFreelancer = "FREELANCER"
	RoleAdmin      = "ADMIN"
)

// Identity is the authenticated user attached to a connection or request.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Name   string `json:"name,omitempty"`
}

// User is the minimal user record this service reads.
type User struct {
	ID        string
	Email     string
	Name      string
	Avatar    string
	Role      string
	Suspended bool
	CreatedAt time.Time
}

// Summary returns the denormalized sender view.
func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Name: u.Name, Avatar: u.Avatar, Role: u.Role}
}

// UserSummary is embedded in broadcast messages and conversation listings.
type UserSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Role   string `json:"role"`
}
