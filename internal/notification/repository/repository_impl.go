package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/internal/notification/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO notifications (
			id, customer_id, channel, recipient, subject, body, status,
			attempts, last_error, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID,
		n.CustomerID,
		string(n.Channel),
		n.Recipient,
		n.Subject,
		n.Body,
		string(n.Status),
		n.Attempts,
		n.LastError,
		n.Metadata,
		n.CreatedAt,
		n.UpdatedAt,
	).Error
}

func (r *repo) ClaimDue(ctx context.Context, tx *gorm.DB, maxAttempts, limit int) ([]domain.Notification, error) {
	var items []domain.Notification
	stmt := tx.WithContext(ctx).
		Model(&domain.Notification{}).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status IN ?", []string{string(domain.StatusPending), string(domain.StatusFailed)})
	if maxAttempts > 0 {
		stmt = stmt.Where("attempts < ?", maxAttempts)
	}
	if err := stmt.Order("created_at asc, id asc").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkSent(ctx context.Context, tx *gorm.DB, id snowflake.ID, at time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE notifications
		SET status = ?, attempts = attempts + 1, last_error = NULL, sent_at = ?, updated_at = ?
		WHERE id = ?`,
		string(domain.StatusSent),
		at,
		at,
		id,
	).Error
}

func (r *repo) MarkFailed(ctx context.Context, tx *gorm.DB, id snowflake.ID, message string, at time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE notifications
		SET status = ?, attempts = attempts + 1, last_error = ?, updated_at = ?
		WHERE id = ?`,
		string(domain.StatusFailed),
		message,
		at,
		id,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Notification, error) {
	var item domain.Notification
	err := db.WithContext(ctx).Raw(
		`SELECT id, customer_id, channel, recipient, subject, body, status,
			attempts, last_error, metadata, created_at, updated_at, sent_at
		FROM notifications WHERE id = ? LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
