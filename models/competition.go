package models

import "time"

// Competition is the top-level contest entity. A competition is a draft until
// PublishedAt is set; publishing for the first time triggers the notification
// fan-out to all students.
type Competition struct {
	ID                 int        `json:"id"`
	OrganizerID        int        `json:"organizer_id"`
	Name               string     `json:"name"`
	Slug               string     `json:"slug"`
	Description        *string    `json:"description,omitempty"`
	StartDate          time.Time  `json:"start_date"`
	EndDate            time.Time  `json:"end_date"`
	WinnerSubmissionID *int       `json:"winner_submission_id,omitempty"`
	PublishedAt        *time.Time `json:"published_at,omitempty"`
	LogoKey            *string    `json:"-"`
	LogoURL            *string    `json:"logo_url,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`

	// Optional related entities, loaded on demand.
	Organizer         *User   `json:"organizer,omitempty"`
	Rounds            []Round `json:"rounds,omitempty"`
	Prizes            []Prize `json:"prizes,omitempty"`
	RegistrationCount *int    `json:"registration_count,omitempty"`
}

// Published reports whether the competition has ever been published.
func (c *Competition) Published() bool {
	return c.PublishedAt != nil
}
