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
	ErrCompetitionNotFound     = errors.New("competition not found")
	ErrCompetitionNameConflict = errors.New("competition name conflict for this organizer")
	ErrCompetitionInvalidOrg   = errors.New("invalid organizer reference")
	ErrCompetitionInUse        = errors.New("competition is in use (rounds/submissions exist)")
)

type ListCompetitionsFilter struct {
	OrganizerID   *int
	PublishedOnly bool
	Limit         int
	Offset        int
}

type CompetitionRepository interface {
	Create(ctx context.Context, competition *models.Competition) error
	GetByID(ctx context.Context, id int) (*models.Competition, error)
	List(ctx context.Context, filter ListCompetitionsFilter) ([]models.Competition, error)
	Update(ctx context.Context, competition *models.Competition) error
	Delete(ctx context.Context, id int) error
	UpdateLogoKey(ctx context.Context, competitionID int, logoKey *string) error
	UpdateWinner(ctx context.Context, exec SQLExecutor, competitionID int, winnerSubmissionID int) error
	// MarkPublished sets published_at only when it is still NULL and reports
	// whether this call performed the first publish. Republishing an already
	// published competition returns (false, nil).
	MarkPublished(ctx context.Context, competitionID int, publishedAt time.Time) (bool, error)
}

type postgresCompetitionRepository struct {
	db *sql.DB
}

func NewPostgresCompetitionRepository(db *sql.DB) CompetitionRepository {
	return &postgresCompetitionRepository{db: db}
}

func (r *postgresCompetitionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const competitionColumns = `
	id, organizer_id, name, slug, description, start_date, end_date,
	winner_submission_id, published_at, logo_key, created_at`

func (r *postgresCompetitionRepository) Create(ctx context.Context, c *models.Competition) error {
	query := `
		INSERT INTO competitions (organizer_id, name, slug, description, start_date, end_date, logo_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		c.OrganizerID, c.Name, c.Slug, c.Description, c.StartDate, c.EndDate, c.LogoKey,
	).Scan(&c.ID, &c.CreatedAt)

	return r.handleCompetitionError(err)
}

func scanCompetition(scan func(dest ...interface{}) error) (*models.Competition, error) {
	c := &models.Competition{}
	err := scan(
		&c.ID, &c.OrganizerID, &c.Name, &c.Slug, &c.Description, &c.StartDate, &c.EndDate,
		&c.WinnerSubmissionID, &c.PublishedAt, &c.LogoKey, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *postgresCompetitionRepository) GetByID(ctx context.Context, id int) (*models.Competition, error) {
	query := `SELECT ` + competitionColumns + ` FROM competitions WHERE id = $1`

	c, err := scanCompetition(r.db.QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCompetitionNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *postgresCompetitionRepository) List(ctx context.Context, filter ListCompetitionsFilter) ([]models.Competition, error) {
	query := `SELECT ` + competitionColumns + ` FROM competitions WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.OrganizerID != nil {
		query += fmt.Sprintf(" AND organizer_id = $%d", argID)
		args = append(args, *filter.OrganizerID)
		argID++
	}
	if filter.PublishedOnly {
		query += " AND published_at IS NOT NULL"
	}

	query += " ORDER BY start_date DESC, created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	competitions := make([]models.Competition, 0)
	for rows.Next() {
		c, scanErr := scanCompetition(rows.Scan)
		if scanErr != nil {
			return nil, scanErr
		}
		competitions = append(competitions, *c)
	}
	return competitions, rows.Err()
}

func (r *postgresCompetitionRepository) Update(ctx context.Context, c *models.Competition) error {
	query := `
		UPDATE competitions SET
			name = $1,
			slug = $2,
			description = $3,
			start_date = $4,
			end_date = $5
		WHERE id = $6`

	result, err := r.db.ExecContext(ctx, query,
		c.Name, c.Slug, c.Description, c.StartDate, c.EndDate, c.ID,
	)
	if err != nil {
		return r.handleCompetitionError(err)
	}
	return checkAffectedRows(result, ErrCompetitionNotFound)
}

func (r *postgresCompetitionRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM competitions WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return r.handleCompetitionError(err)
	}
	return checkAffectedRows(result, ErrCompetitionNotFound)
}

func (r *postgresCompetitionRepository) UpdateLogoKey(ctx context.Context, competitionID int, logoKey *string) error {
	query := `UPDATE competitions SET logo_key = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, logoKey, competitionID)
	if err != nil {
		return fmt.Errorf("failed to update competition logo key: %w", err)
	}
	return checkAffectedRows(result, ErrCompetitionNotFound)
}

func (r *postgresCompetitionRepository) UpdateWinner(ctx context.Context, exec SQLExecutor, competitionID int, winnerSubmissionID int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE competitions SET winner_submission_id = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, winnerSubmissionID, competitionID)
	if err != nil {
		return fmt.Errorf("failed to update winner for competition %d: %w", competitionID, err)
	}
	return checkAffectedRows(result, ErrCompetitionNotFound)
}

func (r *postgresCompetitionRepository) MarkPublished(ctx context.Context, competitionID int, publishedAt time.Time) (bool, error) {
	// The NULL guard makes the first-publish check atomic: a concurrent
	// publish of the same competition flips the row at most once.
	query := `UPDATE competitions SET published_at = $1 WHERE id = $2 AND published_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, publishedAt, competitionID)
	if err != nil {
		return false, fmt.Errorf("failed to mark competition %d published: %w", competitionID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return affected > 0, nil
}

func (r *postgresCompetitionRepository) handleCompetitionError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "competitions_organizer_id_name_key" {
				return ErrCompetitionNameConflict
			}
		case "23503":
			if pqErr.Constraint == "competitions_organizer_id_fkey" {
				return ErrCompetitionInvalidOrg
			}
			return ErrCompetitionInUse
		}
	}
	return err
}
