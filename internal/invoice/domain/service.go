package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/internal/billingerr"
	customerdomain "github.com/smallbiznis/wastebill/internal/customer/domain"
	"github.com/smallbiznis/wastebill/pkg/db/pagination"
)

// IssueRequest selects the customers to bill for Period.
type IssueRequest struct {
	Period        time.Time
	CollectionDay *customerdomain.CollectionDay
	CustomerIDs   []snowflake.ID
}

// IssueResult reports what a batch run produced. Failed customers are
// counted and logged rather than returned as an error.
type IssueResult struct {
	Period   time.Time `json:"period"`
	Invoices []Invoice `json:"invoices"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
}

type InvoiceItemInput struct {
	Description string
	UnitAmount  int64
	Quantity    int64
}

type CreateInvoiceRequest struct {
	CustomerID string
	Period     *time.Time
	Items      []InvoiceItemInput
	Total      *int64
}

type ListInvoiceRequest struct {
	PageToken  string
	PageSize   int32
	CustomerID string
	Status     string
	Period     *time.Time
	// InvoiceNumber and PhoneNumber are exact-match search keys.
	InvoiceNumber string
	PhoneNumber   string
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	Issue(ctx context.Context, req IssueRequest) (IssueResult, error)
	IssueForMonth(ctx context.Context, month, year int) (IssueResult, error)
	IssueForCollectionDay(ctx context.Context, day customerdomain.CollectionDay, period time.Time) (IssueResult, error)
	CreateManual(ctx context.Context, req CreateInvoiceRequest) (Invoice, error)
	Cancel(ctx context.Context, id string) (Invoice, error)
	CancelLatestSystemGenerated(ctx context.Context) (Invoice, error)

	GetByID(ctx context.Context, id string) (Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	ListItems(ctx context.Context, invoiceID string) ([]InvoiceItem, error)
}

var (
	ErrInvalidID         = billingerr.New(billingerr.ErrInvalidInput, "invalid_invoice_id")
	ErrInvalidCustomerID = billingerr.New(billingerr.ErrInvalidInput, "invalid_customer_id")
	ErrInvalidMonth      = billingerr.New(billingerr.ErrInvalidInput, "invalid_month")
	ErrInvalidYear       = billingerr.New(billingerr.ErrInvalidInput, "invalid_year")
	ErrInvalidPeriod     = billingerr.New(billingerr.ErrInvalidInput, "invalid_period")
	ErrInvalidStatus     = billingerr.New(billingerr.ErrInvalidInput, "invalid_status")
	ErrEmptyItems        = billingerr.New(billingerr.ErrInvalidInput, "invoice_items_required")
	ErrInvalidItem       = billingerr.New(billingerr.ErrInvalidInput, "invalid_invoice_item")
	ErrInvalidAmount     = billingerr.New(billingerr.ErrInvalidInput, "invalid_invoice_amount")
	ErrTotalMismatch     = billingerr.New(billingerr.ErrInvalidInput, "invoice_total_mismatch")
	ErrNotFound          = billingerr.New(billingerr.ErrNotFound, "invoice_not_found")
	ErrNoSystemInvoice   = billingerr.New(billingerr.ErrNotFound, "no_system_generated_invoice")
	ErrAlreadyIssued     = billingerr.New(billingerr.ErrConflict, "invoice_already_issued")
)
