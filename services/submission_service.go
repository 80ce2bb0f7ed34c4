package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contest-lab/competition-system/models"
	"github.com/contest-lab/competition-system/repositories"
)

type SubmissionService interface {
	// Submit creates the user's submission for a round, or overwrites an
	// existing one. Resubmission restarts review: status returns to pending
	// and any feedback is cleared.
	Submit(ctx context.Context, userID, roundID, competitionID int, content models.SubmissionContent) (*models.Submission, error)
	// Review sets the verdict on a submission. Only the competition's
	// organizer may review, and only after the round has ended.
	Review(ctx context.Context, reviewerID, submissionID int, status models.SubmissionStatus, feedback string) (*models.Submission, error)
	// Advance promotes an approved submission to the next round. Calling it
	// on an already advanced submission is a no-op success.
	Advance(ctx context.Context, organizerID, submissionID int) (*models.Submission, error)
	// Withdraw retracts an advancement. The organizer may always do this.
	Withdraw(ctx context.Context, organizerID, submissionID int) (*models.Submission, error)
	GetSubmissionByID(ctx context.Context, id int) (*models.Submission, error)
	ListByRound(ctx context.Context, organizerID, roundID int) ([]models.Submission, error)
	// ListMine returns the caller's own submissions across a competition's
	// rounds.
	ListMine(ctx context.Context, userID, competitionID int) ([]models.Submission, error)
}

type submissionService struct {
	submissionRepo   repositories.SubmissionRepository
	roundRepo        repositories.RoundRepository
	competitionRepo  repositories.CompetitionRepository
	registrationRepo repositories.RegistrationRepository
	now              func() time.Time
}

func NewSubmissionService(
	submissionRepo repositories.SubmissionRepository,
	roundRepo repositories.RoundRepository,
	competitionRepo repositories.CompetitionRepository,
	registrationRepo repositories.RegistrationRepository,
) SubmissionService {
	return &submissionService{
		submissionRepo:   submissionRepo,
		roundRepo:        roundRepo,
		competitionRepo:  competitionRepo,
		registrationRepo: registrationRepo,
		now:              time.Now,
	}
}

func (s *submissionService) Submit(ctx context.Context, userID, roundID, competitionID int, content models.SubmissionContent) (*models.Submission, error) {
	round, err := s.getRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round.CompetitionID != competitionID {
		// The round exists but is not part of the named competition.
		return nil, ErrRoundNotFound
	}

	registered, err := s.registrationRepo.Exists(ctx, userID, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check registration: %w", err)
	}
	if !registered {
		return nil, ErrNotRegistered
	}

	if err := validateContent(content, round.Rules); err != nil {
		return nil, err
	}

	if !CanSubmit(round, s.now()) {
		return nil, ErrSubmissionWindowClosed
	}

	submission := &models.Submission{
		UserID:        userID,
		RoundID:       roundID,
		CompetitionID: competitionID,
		Content:       content,
	}
	if err := s.submissionRepo.Upsert(ctx, submission); err != nil {
		return nil, fmt.Errorf("failed to save submission: %w", err)
	}
	return submission, nil
}

func (s *submissionService) Review(ctx context.Context, reviewerID, submissionID int, status models.SubmissionStatus, feedback string) (*models.Submission, error) {
	if status != models.SubmissionApproved && status != models.SubmissionRejected {
		return nil, ErrInvalidReviewStatus
	}

	submission, err := s.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	competition, err := s.getCompetition(ctx, submission.CompetitionID)
	if err != nil {
		return nil, err
	}
	if err := requireOrganizer(competition, reviewerID); err != nil {
		return nil, err
	}

	round, err := s.getRound(ctx, submission.RoundID)
	if err != nil {
		return nil, err
	}
	reviewedAt := s.now()
	if !CanReview(round, reviewedAt) {
		return nil, ErrRoundStillOpen
	}

	var fb *string
	if feedback != "" {
		fb = &feedback
	}
	if err := s.submissionRepo.UpdateReview(ctx, submissionID, status, fb, reviewedAt); err != nil {
		if errors.Is(err, repositories.ErrSubmissionNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to review submission %d: %w", submissionID, err)
	}

	submission.Status = status
	submission.Feedback = fb
	submission.ReviewedAt = &reviewedAt
	return submission, nil
}

func (s *submissionService) Advance(ctx context.Context, organizerID, submissionID int) (*models.Submission, error) {
	submission, err := s.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	competition, err := s.getCompetition(ctx, submission.CompetitionID)
	if err != nil {
		return nil, err
	}
	if err := requireOrganizer(competition, organizerID); err != nil {
		return nil, err
	}

	// Already advanced: report success with the same next round.
	if submission.Advanced {
		return submission, nil
	}

	if submission.Status != models.SubmissionApproved {
		return nil, ErrSubmissionNotApproved
	}

	round, err := s.getRound(ctx, submission.RoundID)
	if err != nil {
		return nil, err
	}

	next, err := s.roundRepo.GetByPosition(ctx, competition.ID, round.Position+1)
	if err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return nil, ErrFinalRound
		}
		return nil, fmt.Errorf("failed to resolve next round: %w", err)
	}

	if err := s.submissionRepo.UpdateAdvancement(ctx, submissionID, true, &next.ID); err != nil {
		if errors.Is(err, repositories.ErrSubmissionNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to advance submission %d: %w", submissionID, err)
	}

	submission.Advanced = true
	submission.NextRoundID = &next.ID
	return submission, nil
}

func (s *submissionService) Withdraw(ctx context.Context, organizerID, submissionID int) (*models.Submission, error) {
	submission, err := s.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	competition, err := s.getCompetition(ctx, submission.CompetitionID)
	if err != nil {
		return nil, err
	}
	if err := requireOrganizer(competition, organizerID); err != nil {
		return nil, err
	}

	if err := s.submissionRepo.UpdateAdvancement(ctx, submissionID, false, nil); err != nil {
		if errors.Is(err, repositories.ErrSubmissionNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to withdraw submission %d: %w", submissionID, err)
	}

	submission.Advanced = false
	submission.NextRoundID = nil
	return submission, nil
}

func (s *submissionService) GetSubmissionByID(ctx context.Context, id int) (*models.Submission, error) {
	submission, err := s.submissionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrSubmissionNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission %d: %w", id, err)
	}
	return submission, nil
}

func (s *submissionService) ListByRound(ctx context.Context, organizerID, roundID int) ([]models.Submission, error) {
	round, err := s.getRound(ctx, roundID)
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

	submissions, err := s.submissionRepo.ListByRound(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions for round %d: %w", roundID, err)
	}
	return submissions, nil
}

func (s *submissionService) ListMine(ctx context.Context, userID, competitionID int) ([]models.Submission, error) {
	submissions, err := s.submissionRepo.ListByUserAndCompetition(ctx, userID, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions for user %d in competition %d: %w", userID, competitionID, err)
	}
	return submissions, nil
}

func (s *submissionService) getRound(ctx context.Context, id int) (*models.Round, error) {
	round, err := s.roundRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("failed to get round %d: %w", id, err)
	}
	return round, nil
}

func (s *submissionService) getCompetition(ctx context.Context, id int) (*models.Competition, error) {
	competition, err := s.competitionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("failed to get competition %d: %w", id, err)
	}
	return competition, nil
}

func validateContent(content models.SubmissionContent, rules models.SubmissionRules) error {
	if content.Empty() {
		return ErrSubmissionContentRequired
	}
	if len(content.Links) > 0 && !rules.AllowExternalLinks {
		return ErrLinksNotAllowed
	}
	if len(content.Files) > 0 && !rules.AllowFileUpload {
		return ErrFilesNotAllowed
	}
	return nil
}
