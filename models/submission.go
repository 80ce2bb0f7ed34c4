package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SubmissionStatus matches the submission_status ENUM in the database.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

// Submission is a participant's entry for one round. CompetitionID is
// denormalized for query convenience and always equals the round's
// competition. At most one submission exists per (user, round), enforced by a
// unique constraint.
type Submission struct {
	ID                   int               `json:"id"`
	UserID               int               `json:"user_id"`
	RoundID              int               `json:"round_id"`
	CompetitionID        int               `json:"competition_id"`
	Content              SubmissionContent `json:"content"`
	Status               SubmissionStatus  `json:"status"`
	Feedback             *string           `json:"feedback,omitempty"`
	Advanced             bool              `json:"advanced"`
	NextRoundID          *int              `json:"next_round_id,omitempty"`
	WinningPrizeID       *int              `json:"winning_prize_id,omitempty"`
	WinningCompetitionID *int              `json:"winning_competition_id,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
	ReviewedAt           *time.Time        `json:"reviewed_at,omitempty"`

	Submitter *User `json:"submitter,omitempty"`
}

// SubmissionFile is a file already uploaded to object storage and referenced
// by a submission.
type SubmissionFile struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// SubmissionContent is the participant-provided payload, stored as JSONB.
type SubmissionContent struct {
	Links []string         `json:"links,omitempty"`
	Files []SubmissionFile `json:"files,omitempty"`
	Notes string           `json:"notes,omitempty"`
}

// Empty reports whether the content carries nothing at all.
func (c SubmissionContent) Empty() bool {
	return len(c.Links) == 0 && len(c.Files) == 0 && c.Notes == ""
}

func (c SubmissionContent) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *SubmissionContent) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*c = SubmissionContent{}
		return nil
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("unsupported type %T for SubmissionContent", src)
	}
}
