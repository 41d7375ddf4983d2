package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/internal/billingerr"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// Notification is one outbox row.
type Notification struct {
	ID         snowflake.ID   `gorm:"primaryKey" json:"id"`
	CustomerID *snowflake.ID  `json:"customer_id,omitempty"`
	Channel    Channel        `gorm:"type:text;not null" json:"channel"`
	Recipient  string         `gorm:"not null" json:"recipient"`
	Subject    string         `json:"subject,omitempty"`
	Body       string         `gorm:"not null" json:"body"`
	Status     Status         `gorm:"type:text;not null" json:"status"`
	Attempts   int            `gorm:"not null" json:"attempts"`
	LastError  string         `json:"last_error,omitempty"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
	SentAt     *time.Time     `json:"sent_at,omitempty"`
}

func (Notification) TableName() string { return "notifications" }

// Message is a request to notify someone once the surrounding work committed.
type Message struct {
	CustomerID *snowflake.ID
	Channel    Channel
	To         string
	Subject    string
	Body       string
	Metadata   map[string]any
}

// Sender delivers a message body on one channel.
type Sender interface {
	Notify(ctx context.Context, to string, n Notification) error
}

type DrainResult struct {
	Sent   int
	Failed int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, n *Notification) error
	// ClaimDue locks up to limit undelivered rows that still have attempts left.
	ClaimDue(ctx context.Context, tx *gorm.DB, maxAttempts, limit int) ([]Notification, error)
	MarkSent(ctx context.Context, tx *gorm.DB, id snowflake.ID, at time.Time) error
	MarkFailed(ctx context.Context, tx *gorm.DB, id snowflake.ID, message string, at time.Time) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Notification, error)
}

var (
	ErrInvalidChannel   = billingerr.New(billingerr.ErrInvalidInput, "invalid_notification_channel")
	ErrInvalidRecipient = billingerr.New(billingerr.ErrInvalidInput, "invalid_notification_recipient")
	ErrEmptyBody        = billingerr.New(billingerr.ErrInvalidInput, "empty_notification_body")
)
