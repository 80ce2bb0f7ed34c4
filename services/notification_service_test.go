package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/contest-lab/competition-system/models"
)

func newNotificationFixture(studentCount int) (*notificationService, *fakeNotificationRepo, *fakeUserRepo, *fakePusher) {
	notificationRepo := newFakeNotificationRepo()
	users := newFakeUserRepo()
	registrations := newFakeRegistrationRepo()
	pusher := &fakePusher{}

	for i := 0; i < studentCount; i++ {
		users.add(models.User{FirstName: fmt.Sprintf("student-%d", i), Role: models.RoleStudent})
	}

	svc := &notificationService{
		notificationRepo: notificationRepo,
		userRepo:         users,
		registrationRepo: registrations,
		pusher:           pusher,
		logger:           testLogger(),
	}
	return svc, notificationRepo, users, pusher
}

func publishedEvent() PublishEventInput {
	return PublishEventInput{
		Type:    models.NotificationCompetitionPublished,
		Title:   "New competition: Spring Data Challenge",
		Message: "Spring Data Challenge is now open.",
		Link:    "/competitions/spring-data-challenge",
	}
}

func TestPublishEventBatchesRecipients(t *testing.T) {
	svc, repo, _, pusher := newNotificationFixture(250)

	notification, err := svc.PublishEvent(context.Background(), publishedEvent(), AudienceRole(models.RoleStudent))
	if err != nil {
		t.Fatalf("PublishEvent: unexpected error: %v", err)
	}

	wantBatches := []int{100, 100, 50}
	if len(repo.batchSizes) != len(wantBatches) {
		t.Fatalf("batches = %v, want %v", repo.batchSizes, wantBatches)
	}
	for i, want := range wantBatches {
		if repo.batchSizes[i] != want {
			t.Errorf("batch %d size = %d, want %d", i, repo.batchSizes[i], want)
		}
	}

	count, _ := repo.CountRecipients(context.Background(), notification.ID)
	if count != 250 {
		t.Errorf("recipients = %d, want 250", count)
	}

	if len(pusher.pushes) != 1 || len(pusher.pushes[0].userIDs) != 250 {
		t.Errorf("pusher did not receive the full audience: %+v", pusher.pushes)
	}
}

func TestPublishEventExactBatchBoundary(t *testing.T) {
	svc, repo, _, _ := newNotificationFixture(100)

	if _, err := svc.PublishEvent(context.Background(), publishedEvent(), AudienceRole(models.RoleStudent)); err != nil {
		t.Fatalf("PublishEvent: unexpected error: %v", err)
	}
	if len(repo.batchSizes) != 1 || repo.batchSizes[0] != 100 {
		t.Errorf("batches = %v, want a single batch of 100", repo.batchSizes)
	}
}

func TestPublishEventCreateFailureAbortsFanOut(t *testing.T) {
	svc, repo, _, pusher := newNotificationFixture(10)
	repo.createErr = errors.New("insert failed")

	_, err := svc.PublishEvent(context.Background(), publishedEvent(), AudienceRole(models.RoleStudent))
	if err == nil {
		t.Fatal("expected an error when the notification cannot be created")
	}
	if repo.batchCalls != 0 {
		t.Error("fan-out must not start when the notification record fails")
	}
	if len(pusher.pushes) != 0 {
		t.Error("nothing should be pushed when the notification record fails")
	}
}

func TestPublishEventMidBatchFailureThenRetry(t *testing.T) {
	svc, repo, _, _ := newNotificationFixture(250)
	repo.failAtBatch = 2

	notification, err := svc.PublishEvent(context.Background(), publishedEvent(), AudienceRole(models.RoleStudent))
	if err == nil {
		t.Fatal("expected the second batch to fail")
	}
	_ = notification

	// The first batch is durable.
	var firstID int
	for id := range repo.notifications {
		firstID = id
	}
	count, _ := repo.CountRecipients(context.Background(), firstID)
	if count != 100 {
		t.Fatalf("recipients after failure = %d, want the first batch of 100", count)
	}

	// A retry creates a fresh event but inserting the same recipients stays
	// idempotent per notification: re-running the failed fan-out against the
	// original notification adds only the missing rows.
	repo.failAtBatch = 0
	students, _ := svc.userRepo.ListIDsByRole(context.Background(), models.RoleStudent)
	for start := 0; start < len(students); start += fanOutBatchSize {
		end := start + fanOutBatchSize
		if end > len(students) {
			end = len(students)
		}
		if err := repo.InsertRecipients(context.Background(), firstID, students[start:end]); err != nil {
			t.Fatalf("retry insert: %v", err)
		}
	}
	count, _ = repo.CountRecipients(context.Background(), firstID)
	if count != 250 {
		t.Errorf("recipients after retry = %d, want 250 with no duplicates", count)
	}
}

func TestPublishEventCompetitionAudience(t *testing.T) {
	svc, repo, _, _ := newNotificationFixture(5)
	registrations := svc.registrationRepo.(*fakeRegistrationRepo)
	registrations.register(1, 77)
	registrations.register(3, 77)
	registrations.register(4, 12)

	notification, err := svc.PublishEvent(context.Background(), publishedEvent(), AudienceCompetition(77))
	if err != nil {
		t.Fatalf("PublishEvent: unexpected error: %v", err)
	}
	count, _ := repo.CountRecipients(context.Background(), notification.ID)
	if count != 2 {
		t.Errorf("recipients = %d, want the 2 registered users", count)
	}
}

func TestPublishEventEmptyAudienceSelector(t *testing.T) {
	svc, _, _, _ := newNotificationFixture(0)

	if _, err := svc.PublishEvent(context.Background(), publishedEvent(), Audience{}); err == nil {
		t.Fatal("expected an error for an empty audience selector")
	}
}

func TestMarkStatus(t *testing.T) {
	svc, repo, _, _ := newNotificationFixture(3)

	notification, err := svc.PublishEvent(context.Background(), publishedEvent(), AudienceUsers(1, 2))
	if err != nil {
		t.Fatalf("PublishEvent: unexpected error: %v", err)
	}

	if err := svc.MarkStatus(context.Background(), 1, notification.ID, models.RecipientRead); err != nil {
		t.Fatalf("MarkStatus: unexpected error: %v", err)
	}
	if got := repo.recipients[notification.ID][1]; got != models.RecipientRead {
		t.Errorf("status = %q, want READ", got)
	}

	if err := svc.MarkStatus(context.Background(), 3, notification.ID, models.RecipientRead); !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("non-recipient: err = %v, want ErrNotificationNotFound", err)
	}
	if err := svc.MarkStatus(context.Background(), 1, notification.ID, "BOGUS"); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("bogus status: err = %v, want ErrValidationFailed", err)
	}
}

func TestListForUserFiltersByStatus(t *testing.T) {
	svc, _, _, _ := newNotificationFixture(0)

	notification, err := svc.PublishEvent(context.Background(), publishedEvent(), AudienceUsers(1))
	if err != nil {
		t.Fatalf("PublishEvent: unexpected error: %v", err)
	}
	if err := svc.MarkStatus(context.Background(), 1, notification.ID, models.RecipientArchived); err != nil {
		t.Fatalf("MarkStatus: unexpected error: %v", err)
	}

	unread := models.RecipientUnread
	list, err := svc.ListForUser(context.Background(), 1, &unread, 10, 0)
	if err != nil {
		t.Fatalf("ListForUser: unexpected error: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("unread list = %d entries, want 0", len(list))
	}

	archived := models.RecipientArchived
	list, err = svc.ListForUser(context.Background(), 1, &archived, 10, 0)
	if err != nil {
		t.Fatalf("ListForUser: unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].Notification == nil {
		t.Errorf("archived list = %+v, want 1 entry with notification attached", list)
	}
}
