package model

import "time"

// Role is the permission level of a user.
type Role string

// Status is the approval state of a user account.
type Status string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"

	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
)

// User is a registered portal account.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"uniqueIndex;size:80;not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:120;not null"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	Role         Role      `json:"role" gorm:"type:varchar(20);not null;default:'teacher'"`
	Status       Status    `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsApproved reports whether an administrator has approved the account.
func (u *User) IsApproved() bool {
	return u.Status == StatusApproved
}
