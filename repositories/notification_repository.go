package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/contest-lab/competition-system/models"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrRecipientNotFound    = errors.New("notification recipient not found")
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	GetByID(ctx context.Context, id int) (*models.Notification, error)
	// InsertRecipients adds one delivery row per user in a single statement.
	// Pairs that already exist are silently skipped, which makes repeated
	// fan-out of the same notification idempotent.
	InsertRecipients(ctx context.Context, notificationID int, userIDs []int) error
	CountRecipients(ctx context.Context, notificationID int) (int, error)
	ListByRecipient(ctx context.Context, userID int, status *models.RecipientStatus, limit, offset int) ([]models.NotificationRecipient, error)
	UpdateRecipientStatus(ctx context.Context, notificationID, userID int, status models.RecipientStatus) error
}

type postgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (type, title, message, link, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		n.Type, n.Title, n.Message, n.Link, n.Metadata,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *postgresNotificationRepository) GetByID(ctx context.Context, id int) (*models.Notification, error) {
	query := `SELECT id, type, title, message, link, metadata, created_at FROM notifications WHERE id = $1`

	n := &models.Notification{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&n.ID, &n.Type, &n.Title, &n.Message, &n.Link, &n.Metadata, &n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return n, nil
}

func (r *postgresNotificationRepository) InsertRecipients(ctx context.Context, notificationID int, userIDs []int) error {
	if len(userIDs) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(userIDs))
	args := make([]interface{}, 0, len(userIDs)+1)
	args = append(args, notificationID)
	for i, userID := range userIDs {
		placeholders = append(placeholders, fmt.Sprintf("($1, $%d)", i+2))
		args = append(args, userID)
	}

	query := `
		INSERT INTO notification_recipients (notification_id, user_id)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (notification_id, user_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert %d recipients for notification %d: %w", len(userIDs), notificationID, err)
	}
	return nil
}

func (r *postgresNotificationRepository) CountRecipients(ctx context.Context, notificationID int) (int, error) {
	query := `SELECT COUNT(*) FROM notification_recipients WHERE notification_id = $1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, notificationID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recipients for notification %d: %w", notificationID, err)
	}
	return count, nil
}

func (r *postgresNotificationRepository) ListByRecipient(ctx context.Context, userID int, status *models.RecipientStatus, limit, offset int) ([]models.NotificationRecipient, error) {
	query := `
		SELECT nr.notification_id, nr.user_id, nr.status,
		       n.id, n.type, n.title, n.message, n.link, n.metadata, n.created_at
		FROM notification_recipients nr
		JOIN notifications n ON n.id = nr.notification_id
		WHERE nr.user_id = $1`

	args := []interface{}{userID}
	argID := 2

	if status != nil {
		query += fmt.Sprintf(" AND nr.status = $%d", argID)
		args = append(args, *status)
		argID++
	}

	query += " ORDER BY n.created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, limit)
		argID++
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipients := make([]models.NotificationRecipient, 0)
	for rows.Next() {
		var rec models.NotificationRecipient
		n := &models.Notification{}
		if scanErr := rows.Scan(
			&rec.NotificationID, &rec.UserID, &rec.Status,
			&n.ID, &n.Type, &n.Title, &n.Message, &n.Link, &n.Metadata, &n.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		rec.Notification = n
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}

func (r *postgresNotificationRepository) UpdateRecipientStatus(ctx context.Context, notificationID, userID int, status models.RecipientStatus) error {
	query := `UPDATE notification_recipients SET status = $1 WHERE notification_id = $2 AND user_id = $3`

	result, err := r.db.ExecContext(ctx, query, status, notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to update recipient status: %w", err)
	}
	return checkAffectedRows(result, ErrRecipientNotFound)
}
