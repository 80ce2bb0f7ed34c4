package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/contest-lab/competition-system/models"
	"github.com/contest-lab/competition-system/repositories"
	"github.com/contest-lab/competition-system/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTxRunner calls fn directly; the fakes below do not distinguish
// transactional from plain execution.
type fakeTxRunner struct{}

func (f *fakeTxRunner) RunInTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type fakeUserRepo struct {
	users        map[int]*models.User
	nextID       int
	addPointsErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int]*models.User{}, nextID: 1}
}

func (f *fakeUserRepo) add(user models.User) *models.User {
	if user.ID == 0 {
		user.ID = f.nextID
	}
	if user.ID >= f.nextID {
		f.nextID = user.ID + 1
	}
	u := user
	f.users[u.ID] = &u
	return &u
}

func (f *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	for _, u := range f.users {
		if u.Email == user.Email {
			return repositories.ErrUserEmailConflict
		}
	}
	user.ID = f.nextID
	f.nextID++
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (f *fakeUserRepo) ListIDsByRole(_ context.Context, role models.UserRole) ([]int, error) {
	var ids []int
	for id, u := range f.users {
		if u.Role == role {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (f *fakeUserRepo) AddPoints(_ context.Context, _ repositories.SQLExecutor, userID, delta int) error {
	if f.addPointsErr != nil {
		return f.addPointsErr
	}
	u, ok := f.users[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.Points += delta
	return nil
}

type fakeCompetitionRepo struct {
	competitions map[int]*models.Competition
	nextID       int
	winners      map[int]int // competitionID -> submissionID
}

func newFakeCompetitionRepo() *fakeCompetitionRepo {
	return &fakeCompetitionRepo{
		competitions: map[int]*models.Competition{},
		nextID:       1,
		winners:      map[int]int{},
	}
}

func (f *fakeCompetitionRepo) add(c models.Competition) *models.Competition {
	if c.ID == 0 {
		c.ID = f.nextID
	}
	if c.ID >= f.nextID {
		f.nextID = c.ID + 1
	}
	stored := c
	f.competitions[stored.ID] = &stored
	return &stored
}

func (f *fakeCompetitionRepo) Create(_ context.Context, c *models.Competition) error {
	for _, existing := range f.competitions {
		if existing.OrganizerID == c.OrganizerID && existing.Name == c.Name {
			return repositories.ErrCompetitionNameConflict
		}
	}
	c.ID = f.nextID
	f.nextID++
	stored := *c
	f.competitions[c.ID] = &stored
	return nil
}

func (f *fakeCompetitionRepo) GetByID(_ context.Context, id int) (*models.Competition, error) {
	c, ok := f.competitions[id]
	if !ok {
		return nil, repositories.ErrCompetitionNotFound
	}
	copied := *c
	return &copied, nil
}

func (f *fakeCompetitionRepo) List(_ context.Context, filter repositories.ListCompetitionsFilter) ([]models.Competition, error) {
	var out []models.Competition
	for _, c := range f.competitions {
		if filter.PublishedOnly && c.PublishedAt == nil {
			continue
		}
		if filter.OrganizerID != nil && c.OrganizerID != *filter.OrganizerID {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCompetitionRepo) Update(_ context.Context, c *models.Competition) error {
	if _, ok := f.competitions[c.ID]; !ok {
		return repositories.ErrCompetitionNotFound
	}
	stored := *c
	f.competitions[c.ID] = &stored
	return nil
}

func (f *fakeCompetitionRepo) Delete(_ context.Context, id int) error {
	if _, ok := f.competitions[id]; !ok {
		return repositories.ErrCompetitionNotFound
	}
	delete(f.competitions, id)
	return nil
}

func (f *fakeCompetitionRepo) UpdateLogoKey(_ context.Context, competitionID int, logoKey *string) error {
	c, ok := f.competitions[competitionID]
	if !ok {
		return repositories.ErrCompetitionNotFound
	}
	c.LogoKey = logoKey
	return nil
}

func (f *fakeCompetitionRepo) UpdateWinner(_ context.Context, _ repositories.SQLExecutor, competitionID, winnerSubmissionID int) error {
	c, ok := f.competitions[competitionID]
	if !ok {
		return repositories.ErrCompetitionNotFound
	}
	c.WinnerSubmissionID = &winnerSubmissionID
	f.winners[competitionID] = winnerSubmissionID
	return nil
}

func (f *fakeCompetitionRepo) MarkPublished(_ context.Context, competitionID int, publishedAt time.Time) (bool, error) {
	c, ok := f.competitions[competitionID]
	if !ok {
		return false, repositories.ErrCompetitionNotFound
	}
	if c.PublishedAt != nil {
		return false, nil
	}
	c.PublishedAt = &publishedAt
	return true, nil
}

type fakeRoundRepo struct {
	rounds map[int]*models.Round
	nextID int
}

func newFakeRoundRepo() *fakeRoundRepo {
	return &fakeRoundRepo{rounds: map[int]*models.Round{}, nextID: 1}
}

func (f *fakeRoundRepo) add(r models.Round) *models.Round {
	if r.ID == 0 {
		r.ID = f.nextID
	}
	if r.ID >= f.nextID {
		f.nextID = r.ID + 1
	}
	stored := r
	f.rounds[stored.ID] = &stored
	return &stored
}

func (f *fakeRoundRepo) Create(_ context.Context, r *models.Round) error {
	for _, existing := range f.rounds {
		if existing.CompetitionID == r.CompetitionID && existing.Position == r.Position {
			return repositories.ErrRoundPositionConflict
		}
	}
	r.ID = f.nextID
	f.nextID++
	stored := *r
	f.rounds[r.ID] = &stored
	return nil
}

func (f *fakeRoundRepo) GetByID(_ context.Context, id int) (*models.Round, error) {
	r, ok := f.rounds[id]
	if !ok {
		return nil, repositories.ErrRoundNotFound
	}
	copied := *r
	return &copied, nil
}

func (f *fakeRoundRepo) ListByCompetition(_ context.Context, competitionID int) ([]models.Round, error) {
	var out []models.Round
	for _, r := range f.rounds {
		if r.CompetitionID == competitionID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakeRoundRepo) GetByPosition(_ context.Context, competitionID, position int) (*models.Round, error) {
	for _, r := range f.rounds {
		if r.CompetitionID == competitionID && r.Position == position {
			copied := *r
			return &copied, nil
		}
	}
	return nil, repositories.ErrRoundNotFound
}

func (f *fakeRoundRepo) NextPosition(_ context.Context, competitionID int) (int, error) {
	max := 0
	for _, r := range f.rounds {
		if r.CompetitionID == competitionID && r.Position > max {
			max = r.Position
		}
	}
	return max + 1, nil
}

func (f *fakeRoundRepo) Update(_ context.Context, r *models.Round) error {
	if _, ok := f.rounds[r.ID]; !ok {
		return repositories.ErrRoundNotFound
	}
	stored := *r
	f.rounds[r.ID] = &stored
	return nil
}

func (f *fakeRoundRepo) UpdateStatusByCompetition(_ context.Context, _ repositories.SQLExecutor, competitionID int, status models.RoundStatus) error {
	for _, r := range f.rounds {
		if r.CompetitionID == competitionID {
			r.Status = status
		}
	}
	return nil
}

func (f *fakeRoundRepo) Delete(_ context.Context, id int) error {
	if _, ok := f.rounds[id]; !ok {
		return repositories.ErrRoundNotFound
	}
	delete(f.rounds, id)
	return nil
}

type fakeSubmissionRepo struct {
	submissions map[int]*models.Submission
	nextID      int
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{submissions: map[int]*models.Submission{}, nextID: 1}
}

func (f *fakeSubmissionRepo) add(s models.Submission) *models.Submission {
	if s.ID == 0 {
		s.ID = f.nextID
	}
	if s.ID >= f.nextID {
		f.nextID = s.ID + 1
	}
	stored := s
	f.submissions[stored.ID] = &stored
	return &stored
}

func (f *fakeSubmissionRepo) Upsert(_ context.Context, s *models.Submission) error {
	for _, existing := range f.submissions {
		if existing.UserID == s.UserID && existing.RoundID == s.RoundID {
			existing.Content = s.Content
			existing.Status = models.SubmissionPending
			existing.Feedback = nil
			existing.ReviewedAt = nil
			*s = *existing
			return nil
		}
	}
	s.ID = f.nextID
	f.nextID++
	s.Status = models.SubmissionPending
	stored := *s
	f.submissions[s.ID] = &stored
	return nil
}

func (f *fakeSubmissionRepo) GetByID(_ context.Context, id int) (*models.Submission, error) {
	s, ok := f.submissions[id]
	if !ok {
		return nil, repositories.ErrSubmissionNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSubmissionRepo) GetByIDExec(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Submission, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeSubmissionRepo) ListByRound(_ context.Context, roundID int) ([]models.Submission, error) {
	var out []models.Submission
	for _, s := range f.submissions {
		if s.RoundID == roundID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeSubmissionRepo) ListByUserAndCompetition(_ context.Context, userID, competitionID int) ([]models.Submission, error) {
	var out []models.Submission
	for _, s := range f.submissions {
		if s.UserID == userID && s.CompetitionID == competitionID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeSubmissionRepo) UpdateReview(_ context.Context, id int, status models.SubmissionStatus, feedback *string, reviewedAt time.Time) error {
	s, ok := f.submissions[id]
	if !ok {
		return repositories.ErrSubmissionNotFound
	}
	s.Status = status
	s.Feedback = feedback
	s.ReviewedAt = &reviewedAt
	return nil
}

func (f *fakeSubmissionRepo) UpdateAdvancement(_ context.Context, id int, advanced bool, nextRoundID *int) error {
	s, ok := f.submissions[id]
	if !ok {
		return repositories.ErrSubmissionNotFound
	}
	s.Advanced = advanced
	s.NextRoundID = nextRoundID
	return nil
}

func (f *fakeSubmissionRepo) SetWinningPrize(_ context.Context, _ repositories.SQLExecutor, id, prizeID, competitionID int) error {
	s, ok := f.submissions[id]
	if !ok {
		return repositories.ErrSubmissionNotFound
	}
	s.WinningPrizeID = &prizeID
	s.WinningCompetitionID = &competitionID
	return nil
}

type fakePrizeRepo struct {
	prizes map[int]*models.Prize
	nextID int
}

func newFakePrizeRepo() *fakePrizeRepo {
	return &fakePrizeRepo{prizes: map[int]*models.Prize{}, nextID: 1}
}

func (f *fakePrizeRepo) add(p models.Prize) *models.Prize {
	if p.ID == 0 {
		p.ID = f.nextID
	}
	if p.ID >= f.nextID {
		f.nextID = p.ID + 1
	}
	stored := p
	f.prizes[stored.ID] = &stored
	return &stored
}

func (f *fakePrizeRepo) Create(_ context.Context, p *models.Prize) error {
	for _, existing := range f.prizes {
		if existing.CompetitionID == p.CompetitionID && existing.Position == p.Position {
			return repositories.ErrPrizePositionConflict
		}
	}
	p.ID = f.nextID
	f.nextID++
	stored := *p
	f.prizes[p.ID] = &stored
	return nil
}

func (f *fakePrizeRepo) GetByID(_ context.Context, id int) (*models.Prize, error) {
	p, ok := f.prizes[id]
	if !ok {
		return nil, repositories.ErrPrizeNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakePrizeRepo) GetByIDForUpdate(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Prize, error) {
	return f.GetByID(ctx, id)
}

func (f *fakePrizeRepo) ListByCompetition(_ context.Context, competitionID int) ([]models.Prize, error) {
	var out []models.Prize
	for _, p := range f.prizes {
		if p.CompetitionID == competitionID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakePrizeRepo) SetWinner(_ context.Context, _ repositories.SQLExecutor, prizeID, submissionID int) error {
	p, ok := f.prizes[prizeID]
	if !ok {
		return repositories.ErrPrizeNotFound
	}
	if p.WinnerSubmissionID != nil {
		return repositories.ErrPrizeAlreadyAwarded
	}
	p.WinnerSubmissionID = &submissionID
	return nil
}

func (f *fakePrizeRepo) Delete(_ context.Context, id int) error {
	if _, ok := f.prizes[id]; !ok {
		return repositories.ErrPrizeNotFound
	}
	delete(f.prizes, id)
	return nil
}

type registrationKey struct {
	userID        int
	competitionID int
}

type fakeRegistrationRepo struct {
	registrations map[registrationKey]bool
	nextID        int
}

func newFakeRegistrationRepo() *fakeRegistrationRepo {
	return &fakeRegistrationRepo{registrations: map[registrationKey]bool{}, nextID: 1}
}

func (f *fakeRegistrationRepo) register(userID, competitionID int) {
	f.registrations[registrationKey{userID, competitionID}] = true
}

func (f *fakeRegistrationRepo) Create(_ context.Context, _ repositories.SQLExecutor, reg *models.Registration) error {
	key := registrationKey{reg.UserID, reg.CompetitionID}
	if f.registrations[key] {
		return repositories.ErrRegistrationConflict
	}
	f.registrations[key] = true
	reg.ID = f.nextID
	f.nextID++
	return nil
}

func (f *fakeRegistrationRepo) Exists(_ context.Context, userID, competitionID int) (bool, error) {
	return f.registrations[registrationKey{userID, competitionID}], nil
}

func (f *fakeRegistrationRepo) ListUserIDsByCompetition(_ context.Context, competitionID int) ([]int, error) {
	var ids []int
	for key := range f.registrations {
		if key.competitionID == competitionID {
			ids = append(ids, key.userID)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (f *fakeRegistrationRepo) CountByCompetition(ctx context.Context, competitionID int) (int, error) {
	ids, _ := f.ListUserIDsByCompetition(ctx, competitionID)
	return len(ids), nil
}

type fakeNotificationRepo struct {
	notifications map[int]*models.Notification
	recipients    map[int]map[int]models.RecipientStatus // notificationID -> userID -> status
	nextID        int

	batchSizes  []int
	createErr   error
	failAtBatch int // 1-based index of the InsertRecipients call that fails, 0 = never
	batchCalls  int
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{
		notifications: map[int]*models.Notification{},
		recipients:    map[int]map[int]models.RecipientStatus{},
		nextID:        1,
	}
}

func (f *fakeNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	n.ID = f.nextID
	f.nextID++
	stored := *n
	f.notifications[n.ID] = &stored
	f.recipients[n.ID] = map[int]models.RecipientStatus{}
	return nil
}

func (f *fakeNotificationRepo) GetByID(_ context.Context, id int) (*models.Notification, error) {
	n, ok := f.notifications[id]
	if !ok {
		return nil, repositories.ErrNotificationNotFound
	}
	copied := *n
	return &copied, nil
}

func (f *fakeNotificationRepo) InsertRecipients(_ context.Context, notificationID int, userIDs []int) error {
	f.batchCalls++
	if f.failAtBatch > 0 && f.batchCalls == f.failAtBatch {
		return fmt.Errorf("insert recipients failed")
	}
	f.batchSizes = append(f.batchSizes, len(userIDs))
	byUser, ok := f.recipients[notificationID]
	if !ok {
		byUser = map[int]models.RecipientStatus{}
		f.recipients[notificationID] = byUser
	}
	for _, userID := range userIDs {
		if _, exists := byUser[userID]; !exists {
			byUser[userID] = models.RecipientUnread
		}
	}
	return nil
}

func (f *fakeNotificationRepo) CountRecipients(_ context.Context, notificationID int) (int, error) {
	return len(f.recipients[notificationID]), nil
}

func (f *fakeNotificationRepo) ListByRecipient(_ context.Context, userID int, status *models.RecipientStatus, limit, offset int) ([]models.NotificationRecipient, error) {
	var out []models.NotificationRecipient
	for notificationID, byUser := range f.recipients {
		s, ok := byUser[userID]
		if !ok {
			continue
		}
		if status != nil && s != *status {
			continue
		}
		n := *f.notifications[notificationID]
		out = append(out, models.NotificationRecipient{
			NotificationID: notificationID,
			UserID:         userID,
			Status:         s,
			Notification:   &n,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NotificationID > out[j].NotificationID })
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeNotificationRepo) UpdateRecipientStatus(_ context.Context, notificationID, userID int, status models.RecipientStatus) error {
	byUser, ok := f.recipients[notificationID]
	if !ok {
		return repositories.ErrRecipientNotFound
	}
	if _, ok := byUser[userID]; !ok {
		return repositories.ErrRecipientNotFound
	}
	byUser[userID] = status
	return nil
}

type pushRecord struct {
	userIDs      []int
	notification *models.Notification
}

type fakePusher struct {
	pushes []pushRecord
}

func (f *fakePusher) Push(userIDs []int, notification *models.Notification) {
	f.pushes = append(f.pushes, pushRecord{userIDs: userIDs, notification: notification})
}

type fakeUploader struct {
	uploaded []string
	deleted  []string
}

func (f *fakeUploader) Upload(_ context.Context, key, _ string, _ io.Reader) (*storage.UploadResult, error) {
	f.uploaded = append(f.uploaded, key)
	return &storage.UploadResult{Key: key, Location: "https://cdn.test/" + key}, nil
}

func (f *fakeUploader) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}
