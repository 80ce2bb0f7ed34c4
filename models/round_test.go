package models

import (
	"errors"
	"testing"
	"time"
)

func TestRoundPhaseAt(t *testing.T) {
	round := &Round{
		StartDate: time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	}

	cases := []struct {
		now  time.Time
		want RoundPhase
	}{
		{time.Date(2025, 3, 4, 23, 59, 59, 0, time.UTC), PhaseUpcoming},
		{round.StartDate, PhaseActive},
		{time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC), PhaseActive},
		{round.EndDate, PhaseActive},
		{time.Date(2025, 3, 10, 0, 0, 1, 0, time.UTC), PhaseClosed},
	}
	for _, tc := range cases {
		if got := round.PhaseAt(tc.now); got != tc.want {
			t.Errorf("PhaseAt(%s) = %q, want %q", tc.now, got, tc.want)
		}
	}
}

func TestSubmissionRulesValidate(t *testing.T) {
	if err := (SubmissionRules{}).Validate(); !errors.Is(err, ErrRulesNothingAllowed) {
		t.Errorf("nothing allowed: err = %v", err)
	}
	if err := (SubmissionRules{AllowFileUpload: true, AllowedFileTypes: []string{"pdf"}}).Validate(); !errors.Is(err, ErrRulesFileSizeInvalid) {
		t.Errorf("missing size: err = %v", err)
	}
	if err := (SubmissionRules{AllowFileUpload: true, MaxFileSizeMB: 10}).Validate(); !errors.Is(err, ErrRulesFileTypesMissing) {
		t.Errorf("missing types: err = %v", err)
	}
	if err := (SubmissionRules{AllowExternalLinks: true}).Validate(); err != nil {
		t.Errorf("links only: err = %v", err)
	}
	if err := (SubmissionRules{AllowFileUpload: true, MaxFileSizeMB: 10, AllowedFileTypes: []string{"pdf"}}).Validate(); err != nil {
		t.Errorf("files configured: err = %v", err)
	}
}

func TestSubmissionRulesAllowsFileType(t *testing.T) {
	rules := SubmissionRules{AllowedFileTypes: []string{"pdf", ".ZIP"}}

	for _, ext := range []string{"pdf", ".pdf", "PDF", "zip", ".zip"} {
		if !rules.AllowsFileType(ext) {
			t.Errorf("AllowsFileType(%q) = false, want true", ext)
		}
	}
	if rules.AllowsFileType(".exe") {
		t.Error("AllowsFileType(.exe) = true, want false")
	}
}
