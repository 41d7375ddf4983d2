package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListPaymentFilter struct {
	CustomerID *snowflake.ID
	Receipted  *bool
	Mode       Mode
}

type ListReceiptFilter struct {
	CustomerID *snowflake.ID
	InvoiceID  *snowflake.ID
	PaymentID  *snowflake.ID
}

type Repository interface {
	InsertPayment(ctx context.Context, tx *gorm.DB, payment *Payment) error
	FindPayment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	FindPaymentForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Payment, error)
	FindPaymentByTransactionID(ctx context.Context, db *gorm.DB, transactionID string) (*Payment, error)
	MarkReceipted(ctx context.Context, tx *gorm.DB, id, customerID snowflake.ID, at time.Time) error
	ListPayments(ctx context.Context, db *gorm.DB, filter ListPaymentFilter, page pagination.Pagination) ([]*Payment, error)

	InsertReceipt(ctx context.Context, tx *gorm.DB, receipt *Receipt) error
	ReceiptNumberExists(ctx context.Context, tx *gorm.DB, number string) (bool, error)
	FindReceipt(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Receipt, error)
	ListReceipts(ctx context.Context, db *gorm.DB, filter ListReceiptFilter, page pagination.Pagination) ([]*Receipt, error)
	ListReceiptsByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]Receipt, error)
}
