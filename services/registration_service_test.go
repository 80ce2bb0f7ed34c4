package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contest-lab/competition-system/models"
)

type registrationFixture struct {
	svc          *registrationService
	users        *fakeUserRepo
	competitions *fakeCompetitionRepo

	studentID     int
	competitionID int
}

func newRegistrationFixture(published bool) *registrationFixture {
	users := newFakeUserRepo()
	competitions := newFakeCompetitionRepo()
	registrations := newFakeRegistrationRepo()

	student := users.add(models.User{FirstName: "Sam", Role: models.RoleStudent, Points: 0})
	competition := models.Competition{
		OrganizerID: 99,
		Name:        "Spring Data Challenge",
		StartDate:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	if published {
		at := time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC)
		competition.PublishedAt = &at
	}
	stored := competitions.add(competition)

	svc := &registrationService{
		txRunner:         &fakeTxRunner{},
		registrationRepo: registrations,
		competitionRepo:  competitions,
		userRepo:         users,
		now:              func() time.Time { return time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC) },
	}
	return &registrationFixture{
		svc:           svc,
		users:         users,
		competitions:  competitions,
		studentID:     student.ID,
		competitionID: stored.ID,
	}
}

func TestRegisterCreditsSignupPoints(t *testing.T) {
	fx := newRegistrationFixture(true)

	registration, err := fx.svc.Register(context.Background(), fx.studentID, fx.competitionID)
	if err != nil {
		t.Fatalf("Register: unexpected error: %v", err)
	}
	if registration.ID == 0 {
		t.Error("registration was not assigned an ID")
	}
	if got := fx.users.users[fx.studentID].Points; got != RegistrationPoints {
		t.Errorf("points = %d, want %d", got, RegistrationPoints)
	}
}

func TestRegisterUnpublishedCompetition(t *testing.T) {
	fx := newRegistrationFixture(false)

	_, err := fx.svc.Register(context.Background(), fx.studentID, fx.competitionID)
	if !errors.Is(err, ErrCompetitionNotPublished) {
		t.Fatalf("err = %v, want ErrCompetitionNotPublished", err)
	}
}

func TestRegisterAfterCompetitionEnds(t *testing.T) {
	fx := newRegistrationFixture(true)
	fx.svc.now = func() time.Time { return time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC) }

	_, err := fx.svc.Register(context.Background(), fx.studentID, fx.competitionID)
	if !errors.Is(err, ErrRegistrationClosed) {
		t.Fatalf("err = %v, want ErrRegistrationClosed", err)
	}
}

func TestRegisterTwice(t *testing.T) {
	fx := newRegistrationFixture(true)

	if _, err := fx.svc.Register(context.Background(), fx.studentID, fx.competitionID); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := fx.svc.Register(context.Background(), fx.studentID, fx.competitionID)
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("err = %v, want ErrAlreadyRegistered", err)
	}
	if got := fx.users.users[fx.studentID].Points; got != RegistrationPoints {
		t.Errorf("points = %d, want %d after a single signup", got, RegistrationPoints)
	}
}
