package model

import "time"

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

type Group struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	HasPassword  bool      `json:"has_password"`
	CreatedAt    time.Time `json:"created_at"`
}

// Membership is a user's relationship to a group. There is at most one per
// (user, group) pair.
type Membership struct {
	UserID    int64     `json:"user_id"`
	GroupID   int64     `json:"group_id"`
	Role      string    `json:"role"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Invite struct {
	ID        int64     `json:"id"`
	GroupID   int64     `json:"group_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token,omitempty"`
	Accepted  bool      `json:"accepted"`
	CreatedAt time.Time `json:"created_at"`
}
