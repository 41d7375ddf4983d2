package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/internal/payment/domain"
	"github.com/smallbiznis/wastebill/pkg/db/option"
	"github.com/smallbiznis/wastebill/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	paymentColumns = `id, customer_id, amount, mode_of_payment, transaction_id, receipted,
		payer_name, payer_phone, reference, paid_at, created_at, updated_at`
	receiptColumns = `id, receipt_number, payment_id, customer_id, invoice_id, amount, paid_by, created_at`
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertPayment(ctx context.Context, tx *gorm.DB, payment *domain.Payment) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.CustomerID,
		payment.Amount,
		string(payment.ModeOfPayment),
		payment.TransactionID,
		payment.Receipted,
		payment.PayerName,
		payment.PayerPhone,
		payment.Reference,
		payment.PaidAt,
		payment.CreatedAt,
		payment.UpdatedAt,
	).Error
}

func (r *repo) FindPayment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var payment domain.Payment
	if err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+` FROM payments WHERE id = ?`,
		id,
	).Scan(&payment).Error; err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (r *repo) FindPaymentForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var payment domain.Payment
	err := tx.WithContext(ctx).
		Model(&domain.Payment{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (r *repo) FindPaymentByTransactionID(ctx context.Context, db *gorm.DB, transactionID string) (*domain.Payment, error) {
	var payment domain.Payment
	if err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+` FROM payments WHERE transaction_id = ? LIMIT 1`,
		transactionID,
	).Scan(&payment).Error; err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (r *repo) MarkReceipted(ctx context.Context, tx *gorm.DB, id, customerID snowflake.ID, at time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE payments SET receipted = ?, customer_id = ?, updated_at = ? WHERE id = ?`,
		true,
		customerID,
		at,
		id,
	).Error
}

func (r *repo) ListPayments(ctx context.Context, db *gorm.DB, filter domain.ListPaymentFilter, page pagination.Pagination) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	stmt := db.WithContext(ctx).Model(&domain.Payment{})
	if filter.CustomerID != nil {
		stmt = stmt.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Receipted != nil {
		stmt = stmt.Where("receipted = ?", *filter.Receipted)
	}
	if filter.Mode != "" {
		stmt = stmt.Where("mode_of_payment = ?", string(filter.Mode))
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Order("created_at desc, id desc").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) InsertReceipt(ctx context.Context, tx *gorm.DB, receipt *domain.Receipt) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO receipts (`+receiptColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		receipt.ID,
		receipt.ReceiptNumber,
		receipt.PaymentID,
		receipt.CustomerID,
		receipt.InvoiceID,
		receipt.Amount,
		receipt.PaidBy,
		receipt.CreatedAt,
	).Error
}

func (r *repo) ReceiptNumberExists(ctx context.Context, tx *gorm.DB, number string) (bool, error) {
	var count int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM receipts WHERE receipt_number = ?`,
		number,
	).Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) FindReceipt(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Receipt, error) {
	var receipt domain.Receipt
	if err := db.WithContext(ctx).Raw(
		`SELECT `+receiptColumns+` FROM receipts WHERE id = ?`,
		id,
	).Scan(&receipt).Error; err != nil {
		return nil, err
	}
	if receipt.ID == 0 {
		return nil, nil
	}
	return &receipt, nil
}

func (r *repo) ListReceipts(ctx context.Context, db *gorm.DB, filter domain.ListReceiptFilter, page pagination.Pagination) ([]*domain.Receipt, error) {
	var receipts []*domain.Receipt
	stmt := db.WithContext(ctx).Model(&domain.Receipt{})
	if filter.CustomerID != nil {
		stmt = stmt.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.InvoiceID != nil {
		stmt = stmt.Where("invoice_id = ?", *filter.InvoiceID)
	}
	if filter.PaymentID != nil {
		stmt = stmt.Where("payment_id = ?", *filter.PaymentID)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Order("created_at desc, id desc").Find(&receipts).Error; err != nil {
		return nil, err
	}
	return receipts, nil
}

func (r *repo) ListReceiptsByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]domain.Receipt, error) {
	var receipts []domain.Receipt
	if err := db.WithContext(ctx).Raw(
		`SELECT `+receiptColumns+` FROM receipts WHERE customer_id = ? ORDER BY created_at ASC, id ASC`,
		customerID,
	).Scan(&receipts).Error; err != nil {
		return nil, err
	}
	return receipts, nil
}
