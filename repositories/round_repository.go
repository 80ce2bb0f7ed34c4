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
	ErrRoundNotFound           = errors.New("round not found")
	ErrRoundPositionConflict   = errors.New("round position already taken in this competition")
	ErrRoundInvalidCompetition = errors.New("invalid competition reference")
)

type RoundRepository interface {
	Create(ctx context.Context, round *models.Round) error
	GetByID(ctx context.Context, id int) (*models.Round, error)
	ListByCompetition(ctx context.Context, competitionID int) ([]models.Round, error)
	// GetByPosition returns the round at the given 1-based position within the
	// competition, or ErrRoundNotFound.
	GetByPosition(ctx context.Context, competitionID, position int) (*models.Round, error)
	NextPosition(ctx context.Context, competitionID int) (int, error)
	Update(ctx context.Context, round *models.Round) error
	UpdateStatusByCompetition(ctx context.Context, exec SQLExecutor, competitionID int, status models.RoundStatus) error
	Delete(ctx context.Context, id int) error
}

type postgresRoundRepository struct {
	db *sql.DB
}

func NewPostgresRoundRepository(db *sql.DB) RoundRepository {
	return &postgresRoundRepository{db: db}
}

func (r *postgresRoundRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const roundColumns = `id, competition_id, name, position, start_date, end_date, status, rules, created_at`

func (r *postgresRoundRepository) Create(ctx context.Context, round *models.Round) error {
	query := `
		INSERT INTO rounds (competition_id, name, position, start_date, end_date, status, rules)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		round.CompetitionID, round.Name, round.Position,
		round.StartDate, round.EndDate, round.Status, round.Rules,
	).Scan(&round.ID, &round.CreatedAt)

	return r.handleRoundError(err)
}

func scanRound(scan func(dest ...interface{}) error) (*models.Round, error) {
	round := &models.Round{}
	err := scan(
		&round.ID, &round.CompetitionID, &round.Name, &round.Position,
		&round.StartDate, &round.EndDate, &round.Status, &round.Rules, &round.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return round, nil
}

func (r *postgresRoundRepository) GetByID(ctx context.Context, id int) (*models.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE id = $1`

	round, err := scanRound(r.db.QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	return round, nil
}

func (r *postgresRoundRepository) ListByCompetition(ctx context.Context, competitionID int) ([]models.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE competition_id = $1 ORDER BY position ASC`

	rows, err := r.db.QueryContext(ctx, query, competitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rounds := make([]models.Round, 0)
	for rows.Next() {
		round, scanErr := scanRound(rows.Scan)
		if scanErr != nil {
			return nil, scanErr
		}
		rounds = append(rounds, *round)
	}
	return rounds, rows.Err()
}

func (r *postgresRoundRepository) GetByPosition(ctx context.Context, competitionID, position int) (*models.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE competition_id = $1 AND position = $2`

	round, err := scanRound(r.db.QueryRowContext(ctx, query, competitionID, position).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	return round, nil
}

func (r *postgresRoundRepository) NextPosition(ctx context.Context, competitionID int) (int, error) {
	query := `SELECT COALESCE(MAX(position), 0) + 1 FROM rounds WHERE competition_id = $1`

	var next int
	if err := r.db.QueryRowContext(ctx, query, competitionID).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to compute next round position for competition %d: %w", competitionID, err)
	}
	return next, nil
}

func (r *postgresRoundRepository) Update(ctx context.Context, round *models.Round) error {
	query := `
		UPDATE rounds SET
			name = $1,
			start_date = $2,
			end_date = $3,
			rules = $4
		WHERE id = $5`

	result, err := r.db.ExecContext(ctx, query,
		round.Name, round.StartDate, round.EndDate, round.Rules, round.ID,
	)
	if err != nil {
		return r.handleRoundError(err)
	}
	return checkAffectedRows(result, ErrRoundNotFound)
}

func (r *postgresRoundRepository) UpdateStatusByCompetition(ctx context.Context, exec SQLExecutor, competitionID int, status models.RoundStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE rounds SET status = $1 WHERE competition_id = $2`
	_, err := executor.ExecContext(ctx, query, status, competitionID)
	if err != nil {
		return fmt.Errorf("failed to update round statuses for competition %d: %w", competitionID, err)
	}
	return nil
}

func (r *postgresRoundRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM rounds WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return r.handleRoundError(err)
	}
	return checkAffectedRows(result, ErrRoundNotFound)
}

func (r *postgresRoundRepository) handleRoundError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "rounds_competition_id_position_key" {
				return ErrRoundPositionConflict
			}
		case "23503":
			if pqErr.Constraint == "rounds_competition_id_fkey" {
				return ErrRoundInvalidCompetition
			}
		}
	}
	return err
}
