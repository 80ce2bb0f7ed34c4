package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RoundStatus matches the round_status ENUM in the database.
type RoundStatus string

const (
	RoundDraft RoundStatus = "draft"
	RoundLive  RoundStatus = "live"
)

// RoundPhase is derived from wall-clock comparison against the round window,
// it is never stored.
type RoundPhase string

const (
	PhaseUpcoming RoundPhase = "upcoming"
	PhaseActive   RoundPhase = "active"
	PhaseClosed   RoundPhase = "closed"
)

// Round is a single stage of a competition. Position is an explicit ordinal
// (1-based) within the competition; round ordering never depends on date
// sorting.
type Round struct {
	ID            int             `json:"id"`
	CompetitionID int             `json:"competition_id"`
	Name          string          `json:"name"`
	Position      int             `json:"position"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       time.Time       `json:"end_date"`
	Status        RoundStatus     `json:"status"`
	Rules         SubmissionRules `json:"rules"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PhaseAt derives the round phase from the given instant.
func (r *Round) PhaseAt(now time.Time) RoundPhase {
	switch {
	case now.Before(r.StartDate):
		return PhaseUpcoming
	case now.After(r.EndDate):
		return PhaseClosed
	default:
		return PhaseActive
	}
}

var (
	ErrRulesFileSizeInvalid  = errors.New("max file size must be positive when file upload is allowed")
	ErrRulesFileTypesMissing = errors.New("allowed file types must be set when file upload is allowed")
	ErrRulesNothingAllowed   = errors.New("submission rules must allow at least file upload or external links")
)

// SubmissionRules configures what a round accepts. Stored as JSONB on the
// rounds table.
type SubmissionRules struct {
	AllowFileUpload       bool     `json:"allow_file_upload"`
	AllowExternalLinks    bool     `json:"allow_external_links"`
	AcceptLateSubmissions bool     `json:"accept_late_submissions"`
	MaxFileSizeMB         int      `json:"max_file_size_mb,omitempty"`
	AllowedFileTypes      []string `json:"allowed_file_types,omitempty"`
}

// Validate rejects configurations that could never accept a submission.
func (r SubmissionRules) Validate() error {
	if !r.AllowFileUpload && !r.AllowExternalLinks {
		return ErrRulesNothingAllowed
	}
	if r.AllowFileUpload {
		if r.MaxFileSizeMB <= 0 {
			return ErrRulesFileSizeInvalid
		}
		if len(r.AllowedFileTypes) == 0 {
			return ErrRulesFileTypesMissing
		}
	}
	return nil
}

// AllowsFileType reports whether the given extension (with or without a
// leading dot, any case) is accepted.
func (r SubmissionRules) AllowsFileType(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, t := range r.AllowedFileTypes {
		if strings.ToLower(strings.TrimPrefix(t, ".")) == ext {
			return true
		}
	}
	return false
}

func (r SubmissionRules) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *SubmissionRules) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*r = SubmissionRules{}
		return nil
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return fmt.Errorf("unsupported type %T for SubmissionRules", src)
	}
}
