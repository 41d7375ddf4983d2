package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// TransTimeLayout is the timestamp layout used in C2B callbacks.
const TransTimeLayout = "20060102150405"

// Callback is the C2B confirmation body posted by the provider.
type Callback struct {
	TransactionType   string `json:"TransactionType"`
	TransID           string `json:"TransID"`
	TransTime         string `json:"TransTime"`
	TransAmount       string `json:"TransAmount"`
	BusinessShortCode string `json:"BusinessShortCode"`
	BillRefNumber     string `json:"BillRefNumber"`
	InvoiceNumber     string `json:"InvoiceNumber"`
	OrgAccountBalance string `json:"OrgAccountBalance"`
	ThirdPartyTransID string `json:"ThirdPartyTransID"`
	MSISDN            string `json:"MSISDN"`
	FirstName         string `json:"FirstName"`
	MiddleName        string `json:"MiddleName"`
	LastName          string `json:"LastName"`
}

// PayerName joins the name parts the provider sent.
func (c Callback) PayerName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{c.FirstName, c.MiddleName, c.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// InboundTransaction is the durable record of one callback.
type InboundTransaction struct {
	ID                snowflake.ID   `gorm:"primaryKey" json:"id"`
	TransID           string         `gorm:"type:text;not null;uniqueIndex" json:"trans_id"`
	TransactionType   string         `json:"transaction_type,omitempty"`
	TransTime         *time.Time     `json:"trans_time,omitempty"`
	Amount            int64          `gorm:"not null" json:"amount"`
	BusinessShortCode string         `json:"business_short_code,omitempty"`
	BillRefNumber     string         `json:"bill_ref_number"`
	MSISDN            string         `gorm:"column:msisdn" json:"msisdn"`
	FirstName         string         `json:"first_name,omitempty"`
	Payload           datatypes.JSON `json:"payload,omitempty"`
	Processed         bool           `gorm:"not null" json:"processed"`
	ProcessedAt       *time.Time     `json:"processed_at,omitempty"`
	Attempts          int            `gorm:"not null" json:"attempts"`
	LastError         string         `json:"last_error,omitempty"`
	CreatedAt         time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null" json:"updated_at"`
}

func (InboundTransaction) TableName() string { return "mpesa_transactions" }

// Outcome describes what settling an inbound transaction did.
type Outcome string

const (
	OutcomeAllocated Outcome = "allocated"
	OutcomeUnmatched Outcome = "unmatched"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSkipped   Outcome = "skipped"
)
