package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/contest-lab/competition-system/models"
	"github.com/contest-lab/competition-system/repositories"
)

// PrizeAwardPoints is credited to the submitting user when their submission
// wins a prize.
const PrizeAwardPoints = 50

type CreatePrizeInput struct {
	Title    string `json:"title"`
	Position int    `json:"position"`
}

type PrizeService interface {
	CreatePrize(ctx context.Context, organizerID, competitionID int, input CreatePrizeInput) (*models.Prize, error)
	ListPrizes(ctx context.Context, competitionID int) ([]models.Prize, error)
	// AssignPrize awards a prize to a submission. All steps run in one
	// transaction: the prize row is locked, the winner set, the submission
	// marked, the submitter credited, and for the top prize the competition
	// winner promoted. Any failure rolls the whole call back.
	AssignPrize(ctx context.Context, organizerID, competitionID, prizeID, submissionID int) (*models.Prize, error)
	DeletePrize(ctx context.Context, organizerID, prizeID int) error
}

type prizeService struct {
	txRunner        repositories.TxRunner
	prizeRepo       repositories.PrizeRepository
	submissionRepo  repositories.SubmissionRepository
	competitionRepo repositories.CompetitionRepository
	userRepo        repositories.UserRepository
	logger          *slog.Logger
}

func NewPrizeService(
	txRunner repositories.TxRunner,
	prizeRepo repositories.PrizeRepository,
	submissionRepo repositories.SubmissionRepository,
	competitionRepo repositories.CompetitionRepository,
	userRepo repositories.UserRepository,
	logger *slog.Logger,
) PrizeService {
	return &prizeService{
		txRunner:        txRunner,
		prizeRepo:       prizeRepo,
		submissionRepo:  submissionRepo,
		competitionRepo: competitionRepo,
		userRepo:        userRepo,
		logger:          logger,
	}
}

func (s *prizeService) CreatePrize(ctx context.Context, organizerID, competitionID int, input CreatePrizeInput) (*models.Prize, error) {
	competition, err := s.getCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if err := requireOrganizer(competition, organizerID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, ErrPrizeTitleRequired
	}
	if input.Position <= 0 {
		return nil, ErrPrizeInvalidPosition
	}

	prize := &models.Prize{
		CompetitionID: competitionID,
		Title:         strings.TrimSpace(input.Title),
		Position:      input.Position,
	}
	if err := s.prizeRepo.Create(ctx, prize); err != nil {
		switch {
		case errors.Is(err, repositories.ErrPrizePositionConflict):
			return nil, ErrPrizePositionTaken
		case errors.Is(err, repositories.ErrPrizeInvalidReferences):
			return nil, ErrCompetitionNotFound
		default:
			return nil, fmt.Errorf("failed to create prize: %w", err)
		}
	}
	return prize, nil
}

func (s *prizeService) ListPrizes(ctx context.Context, competitionID int) ([]models.Prize, error) {
	prizes, err := s.prizeRepo.ListByCompetition(ctx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prizes for competition %d: %w", competitionID, err)
	}
	return prizes, nil
}

func (s *prizeService) AssignPrize(ctx context.Context, organizerID, competitionID, prizeID, submissionID int) (*models.Prize, error) {
	competition, err := s.getCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if err := requireOrganizer(competition, organizerID); err != nil {
		return nil, err
	}

	var prize *models.Prize
	err = s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		// The row lock serializes rival award attempts: the second caller
		// blocks here until the first commits, then observes the winner.
		p, err := s.prizeRepo.GetByIDForUpdate(ctx, exec, prizeID)
		if err != nil {
			if errors.Is(err, repositories.ErrPrizeNotFound) {
				return ErrPrizeNotFound
			}
			return fmt.Errorf("failed to load prize %d: %w", prizeID, err)
		}
		if p.CompetitionID != competitionID {
			return ErrPrizeNotFound
		}
		if p.WinnerSubmissionID != nil {
			return ErrPrizeAlreadyAwarded
		}

		submission, err := s.submissionRepo.GetByIDExec(ctx, exec, submissionID)
		if err != nil {
			if errors.Is(err, repositories.ErrSubmissionNotFound) {
				return ErrSubmissionNotFound
			}
			return fmt.Errorf("failed to load submission %d: %w", submissionID, err)
		}
		if submission.CompetitionID != competitionID {
			return ErrPrizeSubmissionMismatch
		}

		if err := s.prizeRepo.SetWinner(ctx, exec, prizeID, submissionID); err != nil {
			if errors.Is(err, repositories.ErrPrizeAlreadyAwarded) {
				return ErrPrizeAlreadyAwarded
			}
			return fmt.Errorf("failed to set prize winner: %w", err)
		}
		if err := s.submissionRepo.SetWinningPrize(ctx, exec, submissionID, prizeID, competitionID); err != nil {
			return fmt.Errorf("failed to mark winning submission: %w", err)
		}
		if err := s.userRepo.AddPoints(ctx, exec, submission.UserID, PrizeAwardPoints); err != nil {
			return fmt.Errorf("failed to credit award points: %w", err)
		}
		if p.Position == models.TopPrizePosition {
			if err := s.competitionRepo.UpdateWinner(ctx, exec, competitionID, submissionID); err != nil {
				return fmt.Errorf("failed to set competition winner: %w", err)
			}
		}

		p.WinnerSubmissionID = &submissionID
		prize = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("prize awarded",
		slog.Int("competition_id", competitionID),
		slog.Int("prize_id", prizeID),
		slog.Int("submission_id", submissionID),
		slog.Int("position", prize.Position),
	)
	return prize, nil
}

func (s *prizeService) DeletePrize(ctx context.Context, organizerID, prizeID int) error {
	prize, err := s.prizeRepo.GetByID(ctx, prizeID)
	if err != nil {
		if errors.Is(err, repositories.ErrPrizeNotFound) {
			return ErrPrizeNotFound
		}
		return fmt.Errorf("failed to get prize %d: %w", prizeID, err)
	}
	competition, err := s.getCompetition(ctx, prize.CompetitionID)
	if err != nil {
		return err
	}
	if err := requireOrganizer(competition, organizerID); err != nil {
		return err
	}

	if err := s.prizeRepo.Delete(ctx, prizeID); err != nil {
		if errors.Is(err, repositories.ErrPrizeNotFound) {
			return ErrPrizeNotFound
		}
		return fmt.Errorf("failed to delete prize %d: %w", prizeID, err)
	}
	return nil
}

func (s *prizeService) getCompetition(ctx context.Context, id int) (*models.Competition, error) {
	competition, err := s.competitionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("failed to get competition %d: %w", id, err)
	}
	return competition, nil
}
