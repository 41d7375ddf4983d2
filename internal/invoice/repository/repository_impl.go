package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/wastebill/internal/ledger/domain"
	"github.com/smallbiznis/wastebill/pkg/db/option"
	"github.com/smallbiznis/wastebill/pkg/db/pagination"
	"gorm.io/gorm"
)

const invoiceColumns = `id, invoice_number, customer_id, invoice_period, invoice_amount, amount_paid,
	status, closing_balance, is_system_generated, created_at, updated_at, cancelled_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.InvoiceNumber,
		invoice.CustomerID,
		invoice.InvoicePeriod,
		invoice.InvoiceAmount,
		invoice.AmountPaid,
		string(invoice.Status),
		invoice.ClosingBalance,
		invoice.IsSystemGenerated,
		invoice.CreatedAt,
		invoice.UpdatedAt,
		invoice.CancelledAt,
	).Error
}

func (r *repo) InsertItems(ctx context.Context, tx *gorm.DB, items []domain.InvoiceItem) error {
	for _, item := range items {
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO invoice_items (id, invoice_id, description, unit_amount, quantity, amount, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID,
			item.InvoiceID,
			item.Description,
			item.UnitAmount,
			item.Quantity,
			item.Amount,
			item.CreatedAt,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) NumberExists(ctx context.Context, tx *gorm.DB, number string) (bool, error) {
	var count int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM invoices WHERE invoice_number = ?`,
		number,
	).Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Invoice, error) {
	var invoice domain.Invoice
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&invoice).Error; err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.findOne(ctx, db,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`,
		id,
	)
}

func (r *repo) FindSystemInvoiceForPeriod(ctx context.Context, tx *gorm.DB, customerID snowflake.ID, period time.Time) (*domain.Invoice, error) {
	return r.findOne(ctx, tx,
		`SELECT `+invoiceColumns+` FROM invoices
		WHERE customer_id = ? AND invoice_period = ? AND is_system_generated = ? AND status <> ?
		LIMIT 1`,
		customerID,
		period,
		true,
		string(ledgerdomain.InvoiceStatusCancelled),
	)
}

func (r *repo) FindLatestSystemGenerated(ctx context.Context, db *gorm.DB) (*domain.Invoice, error) {
	return r.findOne(ctx, db,
		`SELECT `+invoiceColumns+` FROM invoices
		WHERE is_system_generated = ? AND status <> ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		true,
		string(ledgerdomain.InvoiceStatusCancelled),
	)
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListInvoiceFilter, page pagination.Pagination) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	stmt := db.WithContext(ctx).Model(&domain.Invoice{})
	if filter.CustomerID != nil {
		stmt = stmt.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", string(filter.Status))
	}
	if filter.Period != nil {
		stmt = stmt.Where("invoice_period = ?", *filter.Period)
	}
	if filter.InvoiceNumber != "" {
		stmt = stmt.Where("invoice_number = ?", filter.InvoiceNumber)
	}
	if filter.PhoneNumber != "" {
		stmt = stmt.Where("customer_id IN (SELECT id FROM customers WHERE phone_number = ?)", filter.PhoneNumber)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Order("created_at desc, id desc").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	if err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices WHERE customer_id = ? ORDER BY created_at ASC, id ASC`,
		customerID,
	).Scan(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.InvoiceItem, error) {
	var items []domain.InvoiceItem
	if err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, description, unit_amount, quantity, amount, created_at
		FROM invoice_items WHERE invoice_id = ? ORDER BY id ASC`,
		invoiceID,
	).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListOpenForCustomer(ctx context.Context, tx *gorm.DB, customerID snowflake.ID) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	if err := tx.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices
		WHERE customer_id = ? AND status IN (?, ?)
		ORDER BY created_at ASC, id ASC`,
		customerID,
		string(ledgerdomain.InvoiceStatusUnpaid),
		string(ledgerdomain.InvoiceStatusPartial),
	).Scan(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) UpdatePayment(ctx context.Context, tx *gorm.DB, id snowflake.ID, amountPaid int64, status ledgerdomain.InvoiceStatus, updatedAt time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE invoices SET amount_paid = ?, status = ?, updated_at = ? WHERE id = ?`,
		amountPaid,
		string(status),
		updatedAt,
		id,
	).Error
}

func (r *repo) MarkCancelled(ctx context.Context, tx *gorm.DB, id snowflake.ID, at time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE invoices SET status = ?, cancelled_at = ?, updated_at = ? WHERE id = ?`,
		string(ledgerdomain.InvoiceStatusCancelled),
		at,
		at,
		id,
	).Error
}
