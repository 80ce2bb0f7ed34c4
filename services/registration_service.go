package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contest-lab/competition-system/models"
	"github.com/contest-lab/competition-system/repositories"
)

// RegistrationPoints is credited on first signup for a competition.
const RegistrationPoints = 10

type RegistrationService interface {
	// Register signs a user up for a published competition and credits the
	// signup points, atomically.
	Register(ctx context.Context, userID, competitionID int) (*models.Registration, error)
	ListUserIDs(ctx context.Context, organizerID, competitionID int) ([]int, error)
}

type registrationService struct {
	txRunner         repositories.TxRunner
	registrationRepo repositories.RegistrationRepository
	competitionRepo  repositories.CompetitionRepository
	userRepo         repositories.UserRepository
	now              func() time.Time
}

func NewRegistrationService(
	txRunner repositories.TxRunner,
	registrationRepo repositories.RegistrationRepository,
	competitionRepo repositories.CompetitionRepository,
	userRepo repositories.UserRepository,
) RegistrationService {
	return &registrationService{
		txRunner:         txRunner,
		registrationRepo: registrationRepo,
		competitionRepo:  competitionRepo,
		userRepo:         userRepo,
		now:              time.Now,
	}
}

func (s *registrationService) Register(ctx context.Context, userID, competitionID int) (*models.Registration, error) {
	competition, err := s.competitionRepo.GetByID(ctx, competitionID)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("failed to get competition %d: %w", competitionID, err)
	}
	if !competition.Published() {
		return nil, ErrCompetitionNotPublished
	}
	if s.now().After(competition.EndDate) {
		return nil, ErrRegistrationClosed
	}

	registration := &models.Registration{
		UserID:        userID,
		CompetitionID: competitionID,
	}
	err = s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.registrationRepo.Create(ctx, exec, registration); err != nil {
			switch {
			case errors.Is(err, repositories.ErrRegistrationConflict):
				return ErrAlreadyRegistered
			case errors.Is(err, repositories.ErrRegistrationInvalidRef):
				return ErrUserNotFound
			default:
				return fmt.Errorf("failed to create registration: %w", err)
			}
		}
		return s.userRepo.AddPoints(ctx, exec, userID, RegistrationPoints)
	})
	if err != nil {
		return nil, err
	}
	return registration, nil
}

func (s *registrationService) ListUserIDs(ctx context.Context, organizerID, competitionID int) ([]int, error) {
	competition, err := s.competitionRepo.GetByID(ctx, competitionID)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("failed to get competition %d: %w", competitionID, err)
	}
	if err := requireOrganizer(competition, organizerID); err != nil {
		return nil, err
	}

	ids, err := s.registrationRepo.ListUserIDsByCompetition(ctx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations for competition %d: %w", competitionID, err)
	}
	return ids, nil
}
