package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Processed *bool
}

type Repository interface {
	// Insert stores record unless its TransID is already known and reports
	// whether a row was written.
	Insert(ctx context.Context, db *gorm.DB, record *InboundTransaction) (bool, error)
	FindByTransID(ctx context.Context, db *gorm.DB, transID string) (*InboundTransaction, error)

	// LockUnprocessed returns nil when the row is processed or held by
	// another transaction.
	LockUnprocessed(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*InboundTransaction, error)
	ListUnprocessed(ctx context.Context, db *gorm.DB, maxAttempts, limit int) ([]snowflake.ID, error)
	MarkProcessed(ctx context.Context, tx *gorm.DB, id snowflake.ID, at time.Time) error
	RecordFailure(ctx context.Context, db *gorm.DB, id snowflake.ID, message string, at time.Time) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*InboundTransaction, error)
}
