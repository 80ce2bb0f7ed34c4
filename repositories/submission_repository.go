package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/contest-lab/competition-system/models"
	"github.com/lib/pq"
)

var (
	ErrSubmissionNotFound     = errors.New("submission not found")
	ErrSubmissionInvalidRound = errors.New("invalid round reference")
	ErrSubmissionInvalidUser  = errors.New("invalid user reference")
)

type SubmissionRepository interface {
	// Upsert inserts a submission or, when one already exists for the same
	// (user, round), overwrites its content and resets the review: status
	// back to pending, feedback and reviewed_at cleared. Resubmission
	// restarts review by design.
	Upsert(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id int) (*models.Submission, error)
	GetByIDExec(ctx context.Context, exec SQLExecutor, id int) (*models.Submission, error)
	ListByRound(ctx context.Context, roundID int) ([]models.Submission, error)
	ListByUserAndCompetition(ctx context.Context, userID, competitionID int) ([]models.Submission, error)
	UpdateReview(ctx context.Context, id int, status models.SubmissionStatus, feedback *string, reviewedAt time.Time) error
	UpdateAdvancement(ctx context.Context, id int, advanced bool, nextRoundID *int) error
	SetWinningPrize(ctx context.Context, exec SQLExecutor, id, prizeID, competitionID int) error
}

type postgresSubmissionRepository struct {
	db *sql.DB
}

func NewPostgresSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &postgresSubmissionRepository{db: db}
}

func (r *postgresSubmissionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const submissionColumns = `
	id, user_id, round_id, competition_id, content, status, feedback,
	advanced, next_round_id, winning_prize_id, winning_competition_id,
	created_at, updated_at, reviewed_at`

func (r *postgresSubmissionRepository) Upsert(ctx context.Context, s *models.Submission) error {
	query := `
		INSERT INTO submissions (user_id, round_id, competition_id, content)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT submissions_user_id_round_id_key DO UPDATE SET
			content = EXCLUDED.content,
			status = 'pending',
			feedback = NULL,
			reviewed_at = NULL,
			updated_at = now()
		RETURNING id, status, advanced, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		s.UserID, s.RoundID, s.CompetitionID, s.Content,
	).Scan(&s.ID, &s.Status, &s.Advanced, &s.CreatedAt, &s.UpdatedAt)

	return r.handleSubmissionError(err)
}

func scanSubmission(scan func(dest ...interface{}) error) (*models.Submission, error) {
	s := &models.Submission{}
	err := scan(
		&s.ID, &s.UserID, &s.RoundID, &s.CompetitionID, &s.Content, &s.Status, &s.Feedback,
		&s.Advanced, &s.NextRoundID, &s.WinningPrizeID, &s.WinningCompetitionID,
		&s.CreatedAt, &s.UpdatedAt, &s.ReviewedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *postgresSubmissionRepository) GetByID(ctx context.Context, id int) (*models.Submission, error) {
	return r.GetByIDExec(ctx, nil, id)
}

func (r *postgresSubmissionRepository) GetByIDExec(ctx context.Context, exec SQLExecutor, id int) (*models.Submission, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`

	s, err := scanSubmission(executor.QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *postgresSubmissionRepository) ListByRound(ctx context.Context, roundID int) ([]models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE round_id = $1 ORDER BY created_at ASC`
	return r.list(ctx, query, roundID)
}

func (r *postgresSubmissionRepository) ListByUserAndCompetition(ctx context.Context, userID, competitionID int) ([]models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE user_id = $1 AND competition_id = $2 ORDER BY created_at ASC`
	return r.list(ctx, query, userID, competitionID)
}

func (r *postgresSubmissionRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Submission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	submissions := make([]models.Submission, 0)
	for rows.Next() {
		s, scanErr := scanSubmission(rows.Scan)
		if scanErr != nil {
			return nil, scanErr
		}
		submissions = append(submissions, *s)
	}
	return submissions, rows.Err()
}

func (r *postgresSubmissionRepository) UpdateReview(ctx context.Context, id int, status models.SubmissionStatus, feedback *string, reviewedAt time.Time) error {
	query := `
		UPDATE submissions SET
			status = $1,
			feedback = $2,
			reviewed_at = $3,
			updated_at = now()
		WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query, status, feedback, reviewedAt, id)
	if err != nil {
		return r.handleSubmissionError(err)
	}
	return checkAffectedRows(result, ErrSubmissionNotFound)
}

func (r *postgresSubmissionRepository) UpdateAdvancement(ctx context.Context, id int, advanced bool, nextRoundID *int) error {
	query := `
		UPDATE submissions SET
			advanced = $1,
			next_round_id = $2,
			updated_at = now()
		WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, advanced, nextRoundID, id)
	if err != nil {
		return r.handleSubmissionError(err)
	}
	return checkAffectedRows(result, ErrSubmissionNotFound)
}

func (r *postgresSubmissionRepository) SetWinningPrize(ctx context.Context, exec SQLExecutor, id, prizeID, competitionID int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE submissions SET
			winning_prize_id = $1,
			winning_competition_id = $2,
			updated_at = now()
		WHERE id = $3`

	result, err := executor.ExecContext(ctx, query, prizeID, competitionID, id)
	if err != nil {
		return fmt.Errorf("failed to set winning prize on submission %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrSubmissionNotFound)
}

func (r *postgresSubmissionRepository) handleSubmissionError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		switch pqErr.Constraint {
		case "submissions_round_id_fkey":
			return ErrSubmissionInvalidRound
		case "submissions_user_id_fkey":
			return ErrSubmissionInvalidUser
		}
	}
	return err
}
