package models

import "time"

// Prize is a reward slot within a competition. Position 1 is the top prize;
// awarding it also promotes the winning submission to competition winner.
// WinnerSubmissionID is set exactly once and never cleared by normal
// operation.
type Prize struct {
	ID                 int       `json:"id"`
	CompetitionID      int       `json:"competition_id"`
	Title              string    `json:"title"`
	Position           int       `json:"position"`
	WinnerSubmissionID *int      `json:"winner_submission_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// TopPrizePosition marks the prize whose award sets the competition winner.
const TopPrizePosition = 1
