package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/contest-lab/competition-system/models"
	"github.com/contest-lab/competition-system/repositories"
	"github.com/contest-lab/competition-system/storage"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/sync/errgroup"
)

type CreateCompetitionInput struct {
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
}

type UpdateCompetitionInput struct {
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
}

type CompetitionService interface {
	CreateCompetition(ctx context.Context, organizerID int, input CreateCompetitionInput) (*models.Competition, error)
	GetCompetitionByID(ctx context.Context, id int) (*models.Competition, error)
	ListCompetitions(ctx context.Context, filter repositories.ListCompetitionsFilter) ([]models.Competition, error)
	UpdateCompetition(ctx context.Context, organizerID, competitionID int, input UpdateCompetitionInput) (*models.Competition, error)
	DeleteCompetition(ctx context.Context, organizerID, competitionID int) error
	UploadLogo(ctx context.Context, organizerID, competitionID int, contentType string, file io.Reader) (*models.Competition, error)
	// Publish makes the competition visible. Only the first publish flips
	// published_at and triggers the student fan-out; republishing is a
	// harmless no-op that never re-notifies.
	Publish(ctx context.Context, organizerID, competitionID int) (*models.Competition, error)
}

type competitionService struct {
	competitionRepo  repositories.CompetitionRepository
	roundRepo        repositories.RoundRepository
	prizeRepo        repositories.PrizeRepository
	registrationRepo repositories.RegistrationRepository
	notifications    NotificationService
	uploader         storage.FileUploader
	logger           *slog.Logger
	now              func() time.Time
	// dispatch runs the fan-out after the publish commits. The default runs
	// it on its own goroutine so a slow fan-out never blocks the response.
	dispatch func(func())
}

func NewCompetitionService(
	competitionRepo repositories.CompetitionRepository,
	roundRepo repositories.RoundRepository,
	prizeRepo repositories.PrizeRepository,
	registrationRepo repositories.RegistrationRepository,
	notifications NotificationService,
	uploader storage.FileUploader,
	logger *slog.Logger,
) CompetitionService {
	return &competitionService{
		competitionRepo:  competitionRepo,
		roundRepo:        roundRepo,
		prizeRepo:        prizeRepo,
		registrationRepo: registrationRepo,
		notifications:    notifications,
		uploader:         uploader,
		logger:           logger,
		now:              time.Now,
		dispatch:         func(f func()) { go f() },
	}
}

func (s *competitionService) CreateCompetition(ctx context.Context, organizerID int, input CreateCompetitionInput) (*models.Competition, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrCompetitionNameRequired
	}
	if err := validateCompetitionDates(input.StartDate, input.EndDate); err != nil {
		return nil, err
	}

	competition := &models.Competition{
		OrganizerID: organizerID,
		Name:        name,
		Slug:        slug.Make(name),
		Description: input.Description,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
	}
	if err := s.competitionRepo.Create(ctx, competition); err != nil {
		switch {
		case errors.Is(err, repositories.ErrCompetitionNameConflict):
			return nil, ErrCompetitionNameTaken
		case errors.Is(err, repositories.ErrCompetitionInvalidOrg):
			return nil, ErrUserNotFound
		default:
			return nil, fmt.Errorf("failed to create competition: %w", err)
		}
	}
	return competition, nil
}

func (s *competitionService) GetCompetitionByID(ctx context.Context, id int) (*models.Competition, error) {
	competition, err := s.getCompetition(ctx, id)
	if err != nil {
		return nil, err
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rounds, err := s.roundRepo.ListByCompetition(gCtx, id)
		if err != nil {
			return fmt.Errorf("failed to load rounds: %w", err)
		}
		competition.Rounds = rounds
		return nil
	})
	g.Go(func() error {
		prizes, err := s.prizeRepo.ListByCompetition(gCtx, id)
		if err != nil {
			return fmt.Errorf("failed to load prizes: %w", err)
		}
		competition.Prizes = prizes
		return nil
	})
	g.Go(func() error {
		count, err := s.registrationRepo.CountByCompetition(gCtx, id)
		if err != nil {
			return fmt.Errorf("failed to count registrations: %w", err)
		}
		competition.RegistrationCount = &count
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	populateCompetitionLogoURL(competition, s.uploader)
	return competition, nil
}

func (s *competitionService) ListCompetitions(ctx context.Context, filter repositories.ListCompetitionsFilter) ([]models.Competition, error) {
	competitions, err := s.competitionRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list competitions: %w", err)
	}
	for i := range competitions {
		populateCompetitionLogoURL(&competitions[i], s.uploader)
	}
	return competitions, nil
}

func (s *competitionService) UpdateCompetition(ctx context.Context, organizerID, competitionID int, input UpdateCompetitionInput) (*models.Competition, error) {
	competition, err := s.getCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if err := requireOrganizer(competition, organizerID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrCompetitionNameRequired
	}
	if err := validateCompetitionDates(input.StartDate, input.EndDate); err != nil {
		return nil, err
	}

	competition.Name = name
	competition.Slug = slug.Make(name)
	competition.Description = input.Description
	competition.StartDate = input.StartDate
	competition.EndDate = input.EndDate

	if err := s.competitionRepo.Update(ctx, competition); err != nil {
		switch {
		case errors.Is(err, repositories.ErrCompetitionNotFound):
			return nil, ErrCompetitionNotFound
		case errors.Is(err, repositories.ErrCompetitionNameConflict):
			return nil, ErrCompetitionNameTaken
		default:
			return nil, fmt.Errorf("failed to update competition %d: %w", competitionID, err)
		}
	}
	return competition, nil
}

func (s *competitionService) DeleteCompetition(ctx context.Context, organizerID, competitionID int) error {
	competition, err := s.getCompetition(ctx, competitionID)
	if err != nil {
		return err
	}
	if err := requireOrganizer(competition, organizerID); err != nil {
		return err
	}

	if err := s.competitionRepo.Delete(ctx, competitionID); err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return ErrCompetitionNotFound
		}
		return fmt.Errorf("failed to delete competition %d: %w", competitionID, err)
	}

	if competition.LogoKey != nil && s.uploader != nil {
		if delErr := s.uploader.Delete(ctx, *competition.LogoKey); delErr != nil {
			s.logger.Warn("failed to delete competition logo from storage",
				slog.Int("competition_id", competitionID), slog.Any("error", delErr))
		}
	}
	return nil
}

func (s *competitionService) UploadLogo(ctx context.Context, organizerID, competitionID int, contentType string, file io.Reader) (*models.Competition, error) {
	competition, err := s.getCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if err := requireOrganizer(competition, organizerID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("competitions/%d/logo-%s", competitionID, uuid.NewString())
	result, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return nil, fmt.Errorf("failed to upload competition logo: %w", err)
	}

	oldKey := competition.LogoKey
	if err := s.competitionRepo.UpdateLogoKey(ctx, competitionID, &result.Key); err != nil {
		return nil, fmt.Errorf("failed to store logo key: %w", err)
	}
	if oldKey != nil && *oldKey != "" {
		if delErr := s.uploader.Delete(ctx, *oldKey); delErr != nil {
			s.logger.Warn("failed to delete previous logo from storage",
				slog.Int("competition_id", competitionID), slog.Any("error", delErr))
		}
	}

	competition.LogoKey = &result.Key
	populateCompetitionLogoURL(competition, s.uploader)
	return competition, nil
}

func (s *competitionService) Publish(ctx context.Context, organizerID, competitionID int) (*models.Competition, error) {
	competition, err := s.getCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if err := requireOrganizer(competition, organizerID); err != nil {
		return nil, err
	}

	publishedAt := s.now()
	first, err := s.competitionRepo.MarkPublished(ctx, competitionID, publishedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to publish competition %d: %w", competitionID, err)
	}
	if !first {
		// Already published; never re-notify.
		return competition, nil
	}

	competition.PublishedAt = &publishedAt

	if err := s.roundRepo.UpdateStatusByCompetition(ctx, nil, competitionID, models.RoundLive); err != nil {
		s.logger.Error("failed to flip rounds live on publish",
			slog.Int("competition_id", competitionID), slog.Any("error", err))
	}

	// Fan-out runs after the publish is durable, decoupled from this
	// request. The request's deadline must not cancel it.
	event := PublishEventInput{
		Type:    models.NotificationCompetitionPublished,
		Title:   fmt.Sprintf("New competition: %s", competition.Name),
		Message: fmt.Sprintf("%s is now open. Check the rounds and submit your work.", competition.Name),
		Link:    "/competitions/" + competition.Slug,
		Metadata: models.NotificationMetadata{
			"competition_id": competition.ID,
		},
	}
	s.dispatch(func() {
		if _, err := s.notifications.PublishEvent(context.Background(), event, AudienceRole(models.RoleStudent)); err != nil {
			s.logger.Error("publish fan-out failed",
				slog.Int("competition_id", competitionID), slog.Any("error", err))
		}
	})

	s.logger.Info("competition published", slog.Int("competition_id", competitionID))
	return competition, nil
}

func (s *competitionService) getCompetition(ctx context.Context, id int) (*models.Competition, error) {
	competition, err := s.competitionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("failed to get competition %d: %w", id, err)
	}
	return competition, nil
}
