package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/wastebill/internal/invoice/domain"
)

type Mode string

const (
	ModeMpesa Mode = "MPESA"
	ModeCash  Mode = "CASH"
)

// Payment is money received from a customer. CustomerID is nil until the
// payment is matched to a customer.
type Payment struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	CustomerID    *snowflake.ID `gorm:"index" json:"customer_id,omitempty"`
	Amount        int64         `gorm:"not null" json:"amount"`
	ModeOfPayment Mode          `gorm:"type:text;not null" json:"mode_of_payment"`
	TransactionID string        `gorm:"type:text;not null;uniqueIndex" json:"transaction_id"`
	Receipted     bool          `gorm:"not null" json:"receipted"`
	PayerName     string        `json:"payer_name,omitempty"`
	PayerPhone    string        `json:"payer_phone,omitempty"`
	Reference     string        `json:"reference,omitempty"`
	PaidAt        time.Time     `gorm:"not null" json:"paid_at"`
	CreatedAt     time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"not null" json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

// Receipt records the portion of a payment applied to one invoice, or the
// unapplied remainder when InvoiceID is nil.
type Receipt struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	ReceiptNumber string        `gorm:"type:text;not null;uniqueIndex" json:"receipt_number"`
	PaymentID     snowflake.ID  `gorm:"not null;index" json:"payment_id"`
	CustomerID    snowflake.ID  `gorm:"not null;index" json:"customer_id"`
	InvoiceID     *snowflake.ID `json:"invoice_id,omitempty"`
	Amount        int64         `gorm:"not null" json:"amount"`
	PaidBy        string        `json:"paid_by,omitempty"`
	CreatedAt     time.Time     `gorm:"not null" json:"created_at"`
}

func (Receipt) TableName() string { return "receipts" }

// AllocationResult is everything one allocation touched.
type AllocationResult struct {
	Payment           Payment                 `json:"payment"`
	Receipts          []Receipt               `json:"receipts"`
	Invoices          []invoicedomain.Invoice `json:"invoices"`
	NewClosingBalance int64                   `json:"new_closing_balance"`
}

// PaymentNotice is the post-commit summary handed to the notifier.
type PaymentNotice struct {
	CustomerID snowflake.ID
	FirstName  string
	Phone      string
	Email      string
	Amount     int64
	Balance    int64
	PaymentID  snowflake.ID
}
