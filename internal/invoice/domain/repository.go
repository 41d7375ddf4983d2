package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/wastebill/internal/ledger/domain"
	"github.com/smallbiznis/wastebill/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListInvoiceFilter struct {
	CustomerID *snowflake.ID
	Status     ledgerdomain.InvoiceStatus
	Period     *time.Time

	InvoiceNumber string
	PhoneNumber   string
}

type Repository interface {
	Insert(ctx context.Context, tx *gorm.DB, invoice *Invoice) error
	InsertItems(ctx context.Context, tx *gorm.DB, items []InvoiceItem) error
	NumberExists(ctx context.Context, tx *gorm.DB, number string) (bool, error)

	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindSystemInvoiceForPeriod(ctx context.Context, tx *gorm.DB, customerID snowflake.ID, period time.Time) (*Invoice, error)
	FindLatestSystemGenerated(ctx context.Context, db *gorm.DB) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListInvoiceFilter, page pagination.Pagination) ([]*Invoice, error)
	ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]Invoice, error)
	ListItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceItem, error)

	// ListOpenForCustomer returns UNPAID and PPAID invoices oldest first.
	ListOpenForCustomer(ctx context.Context, tx *gorm.DB, customerID snowflake.ID) ([]Invoice, error)
	UpdatePayment(ctx context.Context, tx *gorm.DB, id snowflake.ID, amountPaid int64, status ledgerdomain.InvoiceStatus, updatedAt time.Time) error
	MarkCancelled(ctx context.Context, tx *gorm.DB, id snowflake.ID, at time.Time) error
}
