package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/internal/mpesa/domain"
	"github.com/smallbiznis/wastebill/pkg/db/option"
	"github.com/smallbiznis/wastebill/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const columns = `id, trans_id, transaction_type, trans_time, amount, business_short_code,
	bill_ref_number, msisdn, first_name, payload, processed, processed_at,
	attempts, last_error, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.InboundTransaction) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO mpesa_transactions (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (trans_id) DO NOTHING`,
		record.ID,
		record.TransID,
		record.TransactionType,
		record.TransTime,
		record.Amount,
		record.BusinessShortCode,
		record.BillRefNumber,
		record.MSISDN,
		record.FirstName,
		record.Payload,
		record.Processed,
		record.ProcessedAt,
		record.Attempts,
		record.LastError,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByTransID(ctx context.Context, db *gorm.DB, transID string) (*domain.InboundTransaction, error) {
	var item domain.InboundTransaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+columns+` FROM mpesa_transactions WHERE trans_id = ? LIMIT 1`,
		transID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) LockUnprocessed(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.InboundTransaction, error) {
	var items []domain.InboundTransaction
	err := tx.WithContext(ctx).
		Model(&domain.InboundTransaction{}).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("id = ? AND processed = ?", id, false).
		Limit(1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) ListUnprocessed(ctx context.Context, db *gorm.DB, maxAttempts, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	stmt := db.WithContext(ctx).
		Model(&domain.InboundTransaction{}).
		Where("processed = ?", false)
	if maxAttempts > 0 {
		stmt = stmt.Where("attempts < ?", maxAttempts)
	}
	err := stmt.Order("created_at asc, id asc").Limit(limit).Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) MarkProcessed(ctx context.Context, tx *gorm.DB, id snowflake.ID, at time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE mpesa_transactions
		SET processed = ?, processed_at = ?, last_error = NULL, updated_at = ?
		WHERE id = ?`,
		true,
		at,
		at,
		id,
	).Error
}

func (r *repo) RecordFailure(ctx context.Context, db *gorm.DB, id snowflake.ID, message string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE mpesa_transactions
		SET attempts = attempts + 1, last_error = ?, updated_at = ?
		WHERE id = ? AND processed = ?`,
		message,
		at,
		id,
		false,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.InboundTransaction, error) {
	var items []*domain.InboundTransaction
	stmt := db.WithContext(ctx).Model(&domain.InboundTransaction{})
	if filter.Processed != nil {
		stmt = stmt.Where("processed = ?", *filter.Processed)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Order("created_at desc, id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
