package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/contest-lab/competition-system/models"
	"github.com/contest-lab/competition-system/repositories"
)

// fanOutBatchSize bounds a single recipient insert. Batches are independent
// statements issued sequentially; a crash between batches leaves a prefix of
// the audience notified and a retry of the whole publish completes the rest
// without duplicates.
const fanOutBatchSize = 100

// NotificationPusher delivers a notification to connected clients, best
// effort. Implemented by the websocket hub.
type NotificationPusher interface {
	Push(userIDs []int, notification *models.Notification)
}

// Audience selects the users a notification fans out to. Exactly one selector
// should be set.
type Audience struct {
	Role          *models.UserRole
	CompetitionID *int
	UserIDs       []int
}

func AudienceRole(role models.UserRole) Audience {
	return Audience{Role: &role}
}

func AudienceCompetition(competitionID int) Audience {
	return Audience{CompetitionID: &competitionID}
}

func AudienceUsers(userIDs ...int) Audience {
	return Audience{UserIDs: userIDs}
}

type PublishEventInput struct {
	Type     models.NotificationType
	Title    string
	Message  string
	Link     string
	Metadata models.NotificationMetadata
}

type NotificationService interface {
	// PublishEvent creates the notification record and fans it out to the
	// audience in bounded batches. Retrying the same logical event only adds
	// recipients that are still missing.
	PublishEvent(ctx context.Context, input PublishEventInput, audience Audience) (*models.Notification, error)
	ListForUser(ctx context.Context, userID int, status *models.RecipientStatus, limit, offset int) ([]models.NotificationRecipient, error)
	MarkStatus(ctx context.Context, userID, notificationID int, status models.RecipientStatus) error
}

type notificationService struct {
	notificationRepo repositories.NotificationRepository
	userRepo         repositories.UserRepository
	registrationRepo repositories.RegistrationRepository
	pusher           NotificationPusher
	logger           *slog.Logger
}

func NewNotificationService(
	notificationRepo repositories.NotificationRepository,
	userRepo repositories.UserRepository,
	registrationRepo repositories.RegistrationRepository,
	pusher NotificationPusher,
	logger *slog.Logger,
) NotificationService {
	return &notificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		registrationRepo: registrationRepo,
		pusher:           pusher,
		logger:           logger,
	}
}

func (s *notificationService) PublishEvent(ctx context.Context, input PublishEventInput, audience Audience) (*models.Notification, error) {
	notification := &models.Notification{
		Type:     input.Type,
		Title:    input.Title,
		Message:  input.Message,
		Link:     input.Link,
		Metadata: input.Metadata,
	}
	// The notification row comes first: if it cannot be created, nothing is
	// partially visible.
	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	userIDs, err := s.resolveAudience(ctx, audience)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve notification audience: %w", err)
	}

	for start := 0; start < len(userIDs); start += fanOutBatchSize {
		end := start + fanOutBatchSize
		if end > len(userIDs) {
			end = len(userIDs)
		}
		if err := s.notificationRepo.InsertRecipients(ctx, notification.ID, userIDs[start:end]); err != nil {
			// Earlier batches are committed; the caller may retry the whole
			// publish and only the missing recipients will be added.
			return nil, fmt.Errorf("fan-out failed at recipient %d of %d: %w", start, len(userIDs), err)
		}
	}

	s.logger.Info("notification fan-out complete",
		slog.Int("notification_id", notification.ID),
		slog.String("type", string(notification.Type)),
		slog.Int("recipients", len(userIDs)),
	)

	if s.pusher != nil {
		s.pusher.Push(userIDs, notification)
	}
	return notification, nil
}

func (s *notificationService) resolveAudience(ctx context.Context, audience Audience) ([]int, error) {
	switch {
	case audience.Role != nil:
		return s.userRepo.ListIDsByRole(ctx, *audience.Role)
	case audience.CompetitionID != nil:
		return s.registrationRepo.ListUserIDsByCompetition(ctx, *audience.CompetitionID)
	case len(audience.UserIDs) > 0:
		return audience.UserIDs, nil
	default:
		return nil, errors.New("empty audience selector")
	}
}

func (s *notificationService) ListForUser(ctx context.Context, userID int, status *models.RecipientStatus, limit, offset int) ([]models.NotificationRecipient, error) {
	recipients, err := s.notificationRepo.ListByRecipient(ctx, userID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for user %d: %w", userID, err)
	}
	return recipients, nil
}

func (s *notificationService) MarkStatus(ctx context.Context, userID, notificationID int, status models.RecipientStatus) error {
	switch status {
	case models.RecipientUnread, models.RecipientRead, models.RecipientArchived:
	default:
		return fmt.Errorf("%w: unknown recipient status %q", ErrValidationFailed, status)
	}
	err := s.notificationRepo.UpdateRecipientStatus(ctx, notificationID, userID, status)
	if err != nil {
		if errors.Is(err, repositories.ErrRecipientNotFound) {
			return ErrNotificationNotFound
		}
		return fmt.Errorf("failed to update notification status: %w", err)
	}
	return nil
}
