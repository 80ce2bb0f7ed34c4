package models

import "time"

// Registration records a user's signup for a competition. Unique per
// (user, competition); creating one drives the user's point accrual.
type Registration struct {
	ID            int       `json:"id"`
	UserID        int       `json:"user_id"`
	CompetitionID int       `json:"competition_id"`
	CreatedAt     time.Time `json:"created_at"`

	User *User `json:"user,omitempty"`
}
