package domain

import (
	"context"
	"io"

	"github.com/smallbiznis/wastebill/internal/billingerr"
	customerdomain "github.com/smallbiznis/wastebill/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/wastebill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/wastebill/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/wastebill/internal/payment/domain"
	"github.com/smallbiznis/wastebill/internal/providers/pdf"
	"gorm.io/gorm"
)

// Debtor is a customer who owes money, with the months of charges owed.
type Debtor struct {
	Customer   customerdomain.Customer `json:"customer"`
	MonthsOwed int                     `json:"months_owed"`
}

type AgeBucket struct {
	Label         string   `json:"label"`
	CustomerCount int      `json:"customer_count"`
	TotalBalance  int64    `json:"total_balance"`
	Customers     []Debtor `json:"customers"`
}

type AgeAnalysis struct {
	Currency      string      `json:"currency"`
	Buckets       []AgeBucket `json:"buckets"`
	CustomerCount int         `json:"customer_count"`
	TotalBalance  int64       `json:"total_balance"`
}

type Statement struct {
	Customer       customerdomain.Customer     `json:"customer"`
	Invoices       []invoicedomain.Invoice     `json:"invoices"`
	Receipts       []paymentdomain.Receipt     `json:"receipts"`
	Entries        []ledgerdomain.BalanceEntry `json:"entries"`
	ClosingBalance int64                       `json:"closing_balance"`
}

// Document is a rendered file ready to be downloaded.
type Document struct {
	Filename string
	Content  io.Reader
}

type Repository interface {
	// ListDebtors returns ACTIVE customers with a positive balance and charge.
	ListDebtors(ctx context.Context, db *gorm.DB) ([]customerdomain.Customer, error)
}

type Service interface {
	AgeAnalysis(ctx context.Context, bucket string) (AgeAnalysis, error)
	CustomerStatement(ctx context.Context, customerID string) (Statement, error)
	ReceiptDocument(ctx context.Context, receiptID string) (pdf.ReceiptData, error)
	RenderReceipt(ctx context.Context, receiptID string) (Document, error)
	RenderInvoice(ctx context.Context, invoiceID string) (Document, error)
}

var (
	ErrInvalidCustomerID = billingerr.New(billingerr.ErrInvalidInput, "invalid_customer_id")
	ErrInvalidReceiptID  = billingerr.New(billingerr.ErrInvalidInput, "invalid_receipt_id")
	ErrInvalidInvoiceID  = billingerr.New(billingerr.ErrInvalidInput, "invalid_invoice_id")
	ErrUnknownBucket     = billingerr.New(billingerr.ErrNotFound, "age_bucket_not_found")
	ErrEmptyDocument     = billingerr.New(billingerr.ErrNotFound, "document_not_available")
)
