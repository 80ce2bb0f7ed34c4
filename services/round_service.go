package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/contest-lab/competition-system/models"
	"github.com/contest-lab/competition-system/repositories"
)

// CanSubmit reports whether a round accepts a submission at the given
// instant. Before the window opens nothing is accepted; after it closes only
// rounds that opt into late submissions keep accepting.
func CanSubmit(round *models.Round, now time.Time) bool {
	if now.Before(round.StartDate) {
		return false
	}
	if now.After(round.EndDate) {
		return round.Rules.AcceptLateSubmissions
	}
	return true
}

// CanReview reports whether a round's submissions may be reviewed: only after
// the round has ended.
func CanReview(round *models.Round, now time.Time) bool {
	return now.After(round.EndDate)
}

type CreateRoundInput struct {
	Name      string                 `json:"name"`
	StartDate time.Time              `json:"start_date"`
	EndDate   time.Time              `json:"end_date"`
	Rules     models.SubmissionRules `json:"rules"`
}

type UpdateRoundInput struct {
	Name      string                 `json:"name"`
	StartDate time.Time              `json:"start_date"`
	EndDate   time.Time              `json:"end_date"`
	Rules     models.SubmissionRules `json:"rules"`
}

type RoundService interface {
	CreateRound(ctx context.Context, organizerID, competitionID int, input CreateRoundInput) (*models.Round, error)
	GetRoundByID(ctx context.Context, id int) (*models.Round, error)
	ListRounds(ctx context.Context, competitionID int) ([]models.Round, error)
	UpdateRound(ctx context.Context, organizerID, roundID int, input UpdateRoundInput) (*models.Round, error)
	DeleteRound(ctx context.Context, organizerID, roundID int) error
}

type roundService struct {
	roundRepo       repositories.RoundRepository
	competitionRepo repositories.CompetitionRepository
}

func NewRoundService(
	roundRepo repositories.RoundRepository,
	competitionRepo repositories.CompetitionRepository,
) RoundService {
	return &roundService{
		roundRepo:       roundRepo,
		competitionRepo: competitionRepo,
	}
}

func (s *roundService) CreateRound(ctx context.Context, organizerID, competitionID int, input CreateRoundInput) (*models.Round, error) {
	competition, err := s.getCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if err := requireOrganizer(competition, organizerID); err != nil {
		return nil, err
	}
	if err := validateRoundInput(competition, input.Name, input.StartDate, input.EndDate, input.Rules); err != nil {
		return nil, err
	}

	position, err := s.roundRepo.NextPosition(ctx, competitionID)
	if err != nil {
		return nil, err
	}

	status := models.RoundDraft
	if competition.Published() {
		status = models.RoundLive
	}

	round := &models.Round{
		CompetitionID: competitionID,
		Name:          strings.TrimSpace(input.Name),
		Position:      position,
		StartDate:     input.StartDate,
		EndDate:       input.EndDate,
		Status:        status,
		Rules:         input.Rules,
	}

	if err := s.roundRepo.Create(ctx, round); err != nil {
		switch {
		case errors.Is(err, repositories.ErrRoundPositionConflict):
			return nil, ErrRoundPositionTaken
		case errors.Is(err, repositories.ErrRoundInvalidCompetition):
			return nil, ErrCompetitionNotFound
		default:
			return nil, fmt.Errorf("failed to create round: %w", err)
		}
	}
	return round, nil
}

func (s *roundService) GetRoundByID(ctx context.Context, id int) (*models.Round, error) {
	round, err := s.roundRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("failed to get round %d: %w", id, err)
	}
	return round, nil
}

func (s *roundService) ListRounds(ctx context.Context, competitionID int) ([]models.Round, error) {
	rounds, err := s.roundRepo.ListByCompetition(ctx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds for competition %d: %w", competitionID, err)
	}
	return rounds, nil
}

func (s *roundService) UpdateRound(ctx context.Context, organizerID, roundID int, input UpdateRoundInput) (*models.Round, error) {
	round, err := s.GetRoundByID(ctx, roundID)
	if err != nil {
		return nil, err
	}
	competition, err := s.getCompetition(ctx, round.CompetitionID)
	if err != nil {
		return nil, err
	}
	if err := requireOrganizer(competition, organizerID); err != nil {
		return nil, err
	}
	if err := validateRoundInput(competition, input.Name, input.StartDate, input.EndDate, input.Rules); err != nil {
		return nil, err
	}

	round.Name = strings.TrimSpace(input.Name)
	round.StartDate = input.StartDate
	round.EndDate = input.EndDate
	round.Rules = input.Rules

	if err := s.roundRepo.Update(ctx, round); err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("failed to update round %d: %w", roundID, err)
	}
	return round, nil
}

func (s *roundService) DeleteRound(ctx context.Context, organizerID, roundID int) error {
	round, err := s.GetRoundByID(ctx, roundID)
	if err != nil {
		return err
	}
	competition, err := s.getCompetition(ctx, round.CompetitionID)
	if err != nil {
		return err
	}
	if err := requireOrganizer(competition, organizerID); err != nil {
		return err
	}

	if err := s.roundRepo.Delete(ctx, roundID); err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return ErrRoundNotFound
		}
		return fmt.Errorf("failed to delete round %d: %w", roundID, err)
	}
	return nil
}

func (s *roundService) getCompetition(ctx context.Context, id int) (*models.Competition, error) {
	competition, err := s.competitionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("failed to get competition %d: %w", id, err)
	}
	return competition, nil
}

func validateRoundInput(competition *models.Competition, name string, start, end time.Time, rules models.SubmissionRules) error {
	if strings.TrimSpace(name) == "" {
		return ErrRoundNameRequired
	}
	if !start.Before(end) {
		return ErrRoundInvalidDates
	}
	if start.Before(competition.StartDate) || end.After(competition.EndDate) {
		return ErrRoundOutsideCompetition
	}
	return rules.Validate()
}
