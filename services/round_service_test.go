package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contest-lab/competition-system/models"
)

func allowLinksRules() models.SubmissionRules {
	return models.SubmissionRules{AllowExternalLinks: true}
}

func TestCanSubmit(t *testing.T) {
	round := &models.Round{
		StartDate: time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Rules:     allowLinksRules(),
	}

	cases := []struct {
		name string
		now  time.Time
		late bool
		want bool
	}{
		{"before window", time.Date(2025, 3, 4, 23, 59, 0, 0, time.UTC), false, false},
		{"window opens", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), false, true},
		{"mid window", time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC), false, true},
		{"window closes", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), false, true},
		{"after window", time.Date(2025, 3, 10, 0, 0, 1, 0, time.UTC), false, false},
		{"after window, late accepted", time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), true, true},
		{"before window, late accepted", time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := *round
			r.Rules.AcceptLateSubmissions = tc.late
			if got := CanSubmit(&r, tc.now); got != tc.want {
				t.Errorf("CanSubmit(%s) = %v, want %v", tc.now, got, tc.want)
			}
		})
	}
}

func TestCanReview(t *testing.T) {
	round := &models.Round{
		StartDate: time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	}

	if CanReview(round, time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)) {
		t.Error("review must not open while the round is active")
	}
	if CanReview(round, round.EndDate) {
		t.Error("review must not open at the exact end instant")
	}
	if !CanReview(round, time.Date(2025, 3, 10, 0, 0, 1, 0, time.UTC)) {
		t.Error("review must open after the round ends")
	}
}

type roundFixture struct {
	svc          *roundService
	rounds       *fakeRoundRepo
	competitions *fakeCompetitionRepo

	organizerID   int
	competitionID int
}

func newRoundFixture(published bool) *roundFixture {
	competitions := newFakeCompetitionRepo()
	rounds := newFakeRoundRepo()

	competition := models.Competition{
		OrganizerID: 1,
		Name:        "Spring Data Challenge",
		StartDate:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	if published {
		at := time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC)
		competition.PublishedAt = &at
	}
	stored := competitions.add(competition)

	svc := &roundService{roundRepo: rounds, competitionRepo: competitions}
	return &roundFixture{
		svc:           svc,
		rounds:        rounds,
		competitions:  competitions,
		organizerID:   1,
		competitionID: stored.ID,
	}
}

func qualifierInput() CreateRoundInput {
	return CreateRoundInput{
		Name:      "Qualifier",
		StartDate: time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Rules:     allowLinksRules(),
	}
}

func TestCreateRoundAssignsSequentialPositions(t *testing.T) {
	fx := newRoundFixture(false)

	first, err := fx.svc.CreateRound(context.Background(), fx.organizerID, fx.competitionID, qualifierInput())
	if err != nil {
		t.Fatalf("CreateRound: unexpected error: %v", err)
	}
	second, err := fx.svc.CreateRound(context.Background(), fx.organizerID, fx.competitionID, CreateRoundInput{
		Name:      "Final",
		StartDate: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC),
		Rules:     allowLinksRules(),
	})
	if err != nil {
		t.Fatalf("CreateRound: unexpected error: %v", err)
	}

	if first.Position != 1 || second.Position != 2 {
		t.Errorf("positions = %d, %d, want 1, 2", first.Position, second.Position)
	}
	if first.Status != models.RoundDraft {
		t.Errorf("round on an unpublished competition should be draft, got %q", first.Status)
	}
}

func TestCreateRoundOnPublishedCompetitionIsLive(t *testing.T) {
	fx := newRoundFixture(true)

	round, err := fx.svc.CreateRound(context.Background(), fx.organizerID, fx.competitionID, qualifierInput())
	if err != nil {
		t.Fatalf("CreateRound: unexpected error: %v", err)
	}
	if round.Status != models.RoundLive {
		t.Errorf("status = %q, want live", round.Status)
	}
}

func TestCreateRoundOutsideCompetitionWindow(t *testing.T) {
	fx := newRoundFixture(false)
	input := qualifierInput()
	input.EndDate = time.Date(2025, 4, 5, 0, 0, 0, 0, time.UTC)

	_, err := fx.svc.CreateRound(context.Background(), fx.organizerID, fx.competitionID, input)
	if !errors.Is(err, ErrRoundOutsideCompetition) {
		t.Fatalf("err = %v, want ErrRoundOutsideCompetition", err)
	}
}

func TestCreateRoundInvalidDates(t *testing.T) {
	fx := newRoundFixture(false)
	input := qualifierInput()
	input.StartDate, input.EndDate = input.EndDate, input.StartDate

	_, err := fx.svc.CreateRound(context.Background(), fx.organizerID, fx.competitionID, input)
	if !errors.Is(err, ErrRoundInvalidDates) {
		t.Fatalf("err = %v, want ErrRoundInvalidDates", err)
	}
}

func TestCreateRoundRejectsDeadRules(t *testing.T) {
	fx := newRoundFixture(false)
	input := qualifierInput()
	input.Rules = models.SubmissionRules{}

	_, err := fx.svc.CreateRound(context.Background(), fx.organizerID, fx.competitionID, input)
	if !errors.Is(err, models.ErrRulesNothingAllowed) {
		t.Fatalf("err = %v, want ErrRulesNothingAllowed", err)
	}
}

func TestCreateRoundRequiresOrganizer(t *testing.T) {
	fx := newRoundFixture(false)

	_, err := fx.svc.CreateRound(context.Background(), 99, fx.competitionID, qualifierInput())
	if !errors.Is(err, ErrForbiddenOperation) {
		t.Fatalf("err = %v, want ErrForbiddenOperation", err)
	}
}

func TestUpdateRoundKeepsPosition(t *testing.T) {
	fx := newRoundFixture(false)
	created, err := fx.svc.CreateRound(context.Background(), fx.organizerID, fx.competitionID, qualifierInput())
	if err != nil {
		t.Fatalf("CreateRound: unexpected error: %v", err)
	}

	updated, err := fx.svc.UpdateRound(context.Background(), fx.organizerID, created.ID, UpdateRoundInput{
		Name:      "Qualifier (extended)",
		StartDate: created.StartDate,
		EndDate:   time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
		Rules:     allowLinksRules(),
	})
	if err != nil {
		t.Fatalf("UpdateRound: unexpected error: %v", err)
	}
	if updated.Position != created.Position {
		t.Errorf("update changed position from %d to %d", created.Position, updated.Position)
	}
	if updated.Name != "Qualifier (extended)" {
		t.Errorf("name = %q", updated.Name)
	}
}
