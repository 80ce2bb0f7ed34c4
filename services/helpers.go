package services

import (
	"fmt"
	"time"

	"github.com/contest-lab/competition-system/models"
	"github.com/contest-lab/competition-system/storage"
)

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func validateCompetitionDates(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return ErrCompetitionDatesRequired
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: start date (%s) must be before end date (%s)",
			ErrCompetitionInvalidDates, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}

// requireOrganizer is the capability check at the entry of every organizer
// operation: only the competition's organizer may review, advance, assign
// prizes or publish.
func requireOrganizer(competition *models.Competition, userID int) error {
	if competition.OrganizerID != userID {
		return ErrForbiddenOperation
	}
	return nil
}

func populateCompetitionLogoURL(competition *models.Competition, uploader storage.FileUploader) {
	if competition == nil || uploader == nil {
		return
	}
	if competition.LogoKey != nil && *competition.LogoKey != "" {
		url := uploader.GetPublicURL(*competition.LogoKey)
		if url != "" {
			competition.LogoURL = &url
		}
	}
}
