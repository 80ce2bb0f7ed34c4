package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/contest-lab/competition-system/models"
	"github.com/lib/pq"
)

var (
	ErrPrizeNotFound          = errors.New("prize not found")
	ErrPrizeAlreadyAwarded    = errors.New("prize has already been awarded")
	ErrPrizePositionConflict  = errors.New("prize position already taken in this competition")
	ErrPrizeInvalidReferences = errors.New("invalid competition or submission reference")
)

type PrizeRepository interface {
	Create(ctx context.Context, prize *models.Prize) error
	GetByID(ctx context.Context, id int) (*models.Prize, error)
	// GetByIDForUpdate locks the prize row for the duration of the
	// surrounding transaction, serializing concurrent award attempts.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Prize, error)
	ListByCompetition(ctx context.Context, competitionID int) ([]models.Prize, error)
	// SetWinner awards the prize. The update is guarded by
	// winner_submission_id IS NULL: a prize that is already awarded yields
	// ErrPrizeAlreadyAwarded, never a double award.
	SetWinner(ctx context.Context, exec SQLExecutor, prizeID, submissionID int) error
	Delete(ctx context.Context, id int) error
}

type postgresPrizeRepository struct {
	db *sql.DB
}

func NewPostgresPrizeRepository(db *sql.DB) PrizeRepository {
	return &postgresPrizeRepository{db: db}
}

func (r *postgresPrizeRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const prizeColumns = `id, competition_id, title, position, winner_submission_id, created_at`

func (r *postgresPrizeRepository) Create(ctx context.Context, p *models.Prize) error {
	query := `
		INSERT INTO prizes (competition_id, title, position)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, p.CompetitionID, p.Title, p.Position).Scan(&p.ID, &p.CreatedAt)
	return r.handlePrizeError(err)
}

func scanPrize(scan func(dest ...interface{}) error) (*models.Prize, error) {
	p := &models.Prize{}
	err := scan(&p.ID, &p.CompetitionID, &p.Title, &p.Position, &p.WinnerSubmissionID, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postgresPrizeRepository) GetByID(ctx context.Context, id int) (*models.Prize, error) {
	query := `SELECT ` + prizeColumns + ` FROM prizes WHERE id = $1`
	return r.getOne(ctx, r.db, query, id)
}

func (r *postgresPrizeRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Prize, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + prizeColumns + ` FROM prizes WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, executor, query, id)
}

func (r *postgresPrizeRepository) getOne(ctx context.Context, executor SQLExecutor, query string, id int) (*models.Prize, error) {
	p, err := scanPrize(executor.QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPrizeNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresPrizeRepository) ListByCompetition(ctx context.Context, competitionID int) ([]models.Prize, error) {
	query := `SELECT ` + prizeColumns + ` FROM prizes WHERE competition_id = $1 ORDER BY position ASC`

	rows, err := r.db.QueryContext(ctx, query, competitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prizes := make([]models.Prize, 0)
	for rows.Next() {
		p, scanErr := scanPrize(rows.Scan)
		if scanErr != nil {
			return nil, scanErr
		}
		prizes = append(prizes, *p)
	}
	return prizes, rows.Err()
}

func (r *postgresPrizeRepository) SetWinner(ctx context.Context, exec SQLExecutor, prizeID, submissionID int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE prizes SET winner_submission_id = $1 WHERE id = $2 AND winner_submission_id IS NULL`

	result, err := executor.ExecContext(ctx, query, submissionID, prizeID)
	if err != nil {
		return r.handlePrizeError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return ErrPrizeAlreadyAwarded
	}
	return nil
}

func (r *postgresPrizeRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM prizes WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return r.handlePrizeError(err)
	}
	return checkAffectedRows(result, ErrPrizeNotFound)
}

func (r *postgresPrizeRepository) handlePrizeError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "prizes_competition_id_position_key" {
				return ErrPrizePositionConflict
			}
		case "23503":
			return ErrPrizeInvalidReferences
		}
	}
	return err
}
