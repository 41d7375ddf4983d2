package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/internal/billingerr"
	"gorm.io/gorm"
)

// SourceType names the event that moved a customer balance.
type SourceType string

const (
	SourceTypeInvoice      SourceType = "invoice"
	SourceTypePayment      SourceType = "payment"
	SourceTypeCancellation SourceType = "cancellation"
)

// BalanceEntry is one immutable movement of a customer's closing balance.
type BalanceEntry struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	CustomerID   snowflake.ID `gorm:"not null;index"`
	SourceType   SourceType   `gorm:"type:text;not null;uniqueIndex:ux_balance_entries_source,priority:1"`
	SourceID     snowflake.ID `gorm:"not null;uniqueIndex:ux_balance_entries_source,priority:2"`
	Amount       int64        `gorm:"not null"`
	BalanceAfter int64        `gorm:"not null"`
	CreatedAt    time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (BalanceEntry) TableName() string { return "balance_entries" }

var (
	ErrInvalidAmount     = billingerr.New(billingerr.ErrInvalidInput, "invalid_amount")
	ErrInvalidSourceType = billingerr.New(billingerr.ErrInvalidInput, "invalid_source_type")
	ErrInvalidSourceID   = billingerr.New(billingerr.ErrInvalidInput, "invalid_source_id")
	ErrInvalidCustomer   = billingerr.New(billingerr.ErrInvalidInput, "invalid_customer")
)

// Service appends to and reads the balance journal.
type Service interface {
	// Post appends entry within tx. A second post for the same source is ignored.
	Post(ctx context.Context, tx *gorm.DB, entry BalanceEntry) error
	Replay(ctx context.Context, customerID snowflake.ID) (int64, error)
	Entries(ctx context.Context, customerID snowflake.ID) ([]BalanceEntry, error)
}
