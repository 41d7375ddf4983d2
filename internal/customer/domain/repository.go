package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/pkg/db/pagination"
	"gorm.io/gorm"
)

// BillingFilter narrows the customers eligible for invoice issuance.
type BillingFilter struct {
	CollectionDay *CollectionDay
	CustomerIDs   []snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Customer, error)
	FindByPhone(ctx context.Context, db *gorm.DB, phone string) (*Customer, error)
	List(ctx context.Context, db *gorm.DB, filter ListCustomerFilter, page pagination.Pagination) ([]*Customer, error)
	ListForBilling(ctx context.Context, db *gorm.DB, filter BillingFilter) ([]*Customer, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, updatedAt time.Time) (bool, error)
	// UpdateProfile writes every column except closing_balance, collected and status.
	UpdateProfile(ctx context.Context, tx *gorm.DB, customer *Customer) error
	SetCollected(ctx context.Context, tx *gorm.DB, id snowflake.ID, collected bool, updatedAt time.Time) error
	ResetCollected(ctx context.Context, db *gorm.DB, updatedAt time.Time) (int64, error)
	InsertCollection(ctx context.Context, tx *gorm.DB, record *CollectionRecord) error
	ListCollections(ctx context.Context, db *gorm.DB, customerID snowflake.ID, limit int) ([]*CollectionRecord, error)

	// LockForUpdate reads the customer row and holds its lock until tx ends.
	LockForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Customer, error)
	UpdateBalance(ctx context.Context, tx *gorm.DB, id snowflake.ID, balance int64, updatedAt time.Time) error
}
