package domain

import (
	"context"

	"github.com/smallbiznis/wastebill/internal/billingerr"
	customerdomain "github.com/smallbiznis/wastebill/internal/customer/domain"
	"github.com/smallbiznis/wastebill/pkg/db/pagination"
	"gorm.io/gorm"
)

type AllocateRequest struct {
	PaymentID  string
	CustomerID string
}

type CashPaymentRequest struct {
	CustomerID string
	Amount     int64
	PaidBy     string
}

type ListPaymentRequest struct {
	PageToken  string
	PageSize   int32
	CustomerID string
	Receipted  *bool
	Mode       string
}

type ListPaymentResponse struct {
	pagination.PageInfo
	Payments []Payment `json:"payments"`
}

type ListReceiptRequest struct {
	PageToken  string
	PageSize   int32
	CustomerID string
	InvoiceID  string
	PaymentID  string
}

type ListReceiptResponse struct {
	pagination.PageInfo
	Receipts []Receipt `json:"receipts"`
}

// Notifier is told about payments after their transaction commits.
type Notifier interface {
	PaymentReceived(ctx context.Context, notice PaymentNotice)
}

type Service interface {
	Allocate(ctx context.Context, req AllocateRequest) (AllocationResult, error)
	RecordCashPayment(ctx context.Context, req CashPaymentRequest) (AllocationResult, error)

	// AllocateTx applies payment to customer's open invoices inside tx.
	// The caller must already hold the customer row lock.
	AllocateTx(ctx context.Context, tx *gorm.DB, payment *Payment, customer *customerdomain.Customer) (AllocationResult, error)
	CreateTx(ctx context.Context, tx *gorm.DB, payment *Payment) error
	FindByTransactionIDTx(ctx context.Context, tx *gorm.DB, transactionID string) (*Payment, error)
	NotifyAllocated(ctx context.Context, customer customerdomain.Customer, result AllocationResult)

	GetPayment(ctx context.Context, id string) (Payment, error)
	ListPayments(ctx context.Context, req ListPaymentRequest) (ListPaymentResponse, error)
	GetReceipt(ctx context.Context, id string) (Receipt, error)
	ListReceipts(ctx context.Context, req ListReceiptRequest) (ListReceiptResponse, error)
}

var (
	ErrInvalidID         = billingerr.New(billingerr.ErrInvalidInput, "invalid_payment_id")
	ErrInvalidReceiptID  = billingerr.New(billingerr.ErrInvalidInput, "invalid_receipt_id")
	ErrInvalidCustomerID = billingerr.New(billingerr.ErrInvalidInput, "invalid_customer_id")
	ErrInvalidAmount     = billingerr.New(billingerr.ErrInvalidInput, "invalid_payment_amount")
	ErrInvalidMode       = billingerr.New(billingerr.ErrInvalidInput, "invalid_payment_mode")
	ErrNotFound          = billingerr.New(billingerr.ErrNotFound, "payment_not_found")
	ErrReceiptNotFound   = billingerr.New(billingerr.ErrNotFound, "receipt_not_found")
	ErrAlreadyReceipted  = billingerr.New(billingerr.ErrConflict, "payment_already_receipted")
)
