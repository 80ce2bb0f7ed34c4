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
	ErrRegistrationNotFound   = errors.New("registration not found")
	ErrRegistrationConflict   = errors.New("user is already registered for this competition")
	ErrRegistrationInvalidRef = errors.New("invalid user or competition reference")
)

type RegistrationRepository interface {
	Create(ctx context.Context, exec SQLExecutor, registration *models.Registration) error
	Exists(ctx context.Context, userID, competitionID int) (bool, error)
	ListUserIDsByCompetition(ctx context.Context, competitionID int) ([]int, error)
	CountByCompetition(ctx context.Context, competitionID int) (int, error)
}

type postgresRegistrationRepository struct {
	db *sql.DB
}

func NewPostgresRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

func (r *postgresRegistrationRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRegistrationRepository) Create(ctx context.Context, exec SQLExecutor, reg *models.Registration) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO registrations (user_id, competition_id)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query, reg.UserID, reg.CompetitionID).Scan(&reg.ID, &reg.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505":
				return ErrRegistrationConflict
			case "23503":
				return ErrRegistrationInvalidRef
			}
		}
		return err
	}
	return nil
}

func (r *postgresRegistrationRepository) Exists(ctx context.Context, userID, competitionID int) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM registrations WHERE user_id = $1 AND competition_id = $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, competitionID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check registration for user %d in competition %d: %w", userID, competitionID, err)
	}
	return exists, nil
}

func (r *postgresRegistrationRepository) ListUserIDsByCompetition(ctx context.Context, competitionID int) ([]int, error) {
	query := `SELECT user_id FROM registrations WHERE competition_id = $1 ORDER BY user_id`

	rows, err := r.db.QueryContext(ctx, query, competitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, scanErr
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postgresRegistrationRepository) CountByCompetition(ctx context.Context, competitionID int) (int, error) {
	query := `SELECT COUNT(*) FROM registrations WHERE competition_id = $1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, competitionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count registrations for competition %d: %w", competitionID, err)
	}
	return count, nil
}
