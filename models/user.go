package models

import "time"

// UserRole matches the user_role ENUM in the database.
type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleOrganizer UserRole = "organizer"
	RoleStudent   UserRole = "student"
)

type User struct {
	ID           int       `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Points       int       `json:"points"`
	CreatedAt    time.Time `json:"created_at"`
}
