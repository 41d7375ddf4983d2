// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/wastebill/internal/ledger/domain"
)

// MonthlyChargeDescription labels the single item on a system-generated invoice.
const MonthlyChargeDescription = "Monthly Charge"

// Invoice is a charge raised against a customer for one billing period.
type Invoice struct {
	ID                snowflake.ID               `gorm:"primaryKey" json:"id"`
	InvoiceNumber     string                     `gorm:"type:text;not null;uniqueIndex" json:"invoice_number"`
	CustomerID        snowflake.ID               `gorm:"not null;index" json:"customer_id"`
	InvoicePeriod     time.Time                  `gorm:"not null" json:"invoice_period"`
	InvoiceAmount     int64                      `gorm:"not null" json:"invoice_amount"`
	AmountPaid        int64                      `gorm:"not null;default:0" json:"amount_paid"`
	Status            ledgerdomain.InvoiceStatus `gorm:"type:text;not null" json:"status"`
	ClosingBalance    int64                      `gorm:"not null" json:"closing_balance"`
	IsSystemGenerated bool                       `gorm:"not null" json:"is_system_generated"`
	CreatedAt         time.Time                  `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time                  `gorm:"not null" json:"updated_at"`
	CancelledAt       *time.Time                 `json:"cancelled_at,omitempty"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Due returns the amount still owed on the invoice.
func (i Invoice) Due() int64 {
	if i.Status == ledgerdomain.InvoiceStatusCancelled {
		return 0
	}
	return i.InvoiceAmount - i.AmountPaid
}

// InvoiceItem represents a line on an invoice.
type InvoiceItem struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID `gorm:"not null;index" json:"invoice_id"`
	Description string       `gorm:"type:text;not null" json:"description"`
	UnitAmount  int64        `gorm:"not null" json:"unit_amount"`
	Quantity    int64        `gorm:"not null" json:"quantity"`
	Amount      int64        `gorm:"not null" json:"amount"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

// PeriodStart truncates t to the first instant of its month in UTC.
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
