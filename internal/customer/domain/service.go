package domain

import (
	"context"

	"github.com/smallbiznis/wastebill/internal/billingerr"
	"github.com/smallbiznis/wastebill/pkg/db/pagination"
)

type ListCustomerRequest struct {
	PageToken     string
	PageSize      int32
	Status        string
	CollectionDay string
	EstateName    string
	PhoneNumber   string
	// Name matches first or last name, case-insensitively.
	Name      string
	Collected *bool
}

type ListCustomerFilter struct {
	Status        Status
	CollectionDay CollectionDay
	EstateName    string
	PhoneNumber   string
	Name          string
	Collected     *bool
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type CreateCustomerRequest struct {
	FirstName      string
	LastName       string
	Email          string
	PhoneNumber    string
	Gender         string
	County         string
	Town           string
	Location       string
	EstateName     string
	Building       string
	HouseNumber    string
	Category       string
	MonthlyCharge  int64
	CollectionDay  string
	OpeningBalance int64
}

// UpdateCustomerRequest carries the profile fields to change. Nil fields are
// left as stored. The closing balance only moves through billing operations.
type UpdateCustomerRequest struct {
	FirstName     *string
	LastName      *string
	Email         *string
	PhoneNumber   *string
	Gender        *string
	County        *string
	Town          *string
	Location      *string
	EstateName    *string
	Building      *string
	HouseNumber   *string
	Category      *string
	MonthlyCharge *int64
	CollectionDay *string
}

type ResetCollectionsResult struct {
	Reset int64 `json:"reset"`
}

type Service interface {
	Create(context.Context, CreateCustomerRequest) (Customer, error)
	Update(ctx context.Context, id string, req UpdateCustomerRequest) (Customer, error)
	List(context.Context, ListCustomerRequest) (ListCustomerResponse, error)
	GetByID(ctx context.Context, id string) (Customer, error)
	FindByPhone(ctx context.Context, phone string) (Customer, error)
	SetStatus(ctx context.Context, id string, status Status) (Customer, error)

	// MarkCollected flags this week's pickup and appends a history row.
	// Marking an already collected customer is a no-op.
	MarkCollected(ctx context.Context, id string) (Customer, error)
	ListCollections(ctx context.Context, id string, limit int) ([]CollectionRecord, error)
	// ResetCollections clears every collected flag for the new week.
	ResetCollections(ctx context.Context) (ResetCollectionsResult, error)
}

var (
	ErrInvalidName          = billingerr.New(billingerr.ErrInvalidInput, "invalid_name")
	ErrInvalidPhone         = billingerr.New(billingerr.ErrInvalidInput, "invalid_phone_number")
	ErrInvalidMonthlyCharge = billingerr.New(billingerr.ErrInvalidInput, "invalid_monthly_charge")
	ErrInvalidCollectionDay = billingerr.New(billingerr.ErrInvalidInput, "invalid_collection_day")
	ErrInvalidStatus        = billingerr.New(billingerr.ErrInvalidInput, "invalid_status")
	ErrInvalidID            = billingerr.New(billingerr.ErrInvalidInput, "invalid_id")
	ErrNotFound             = billingerr.New(billingerr.ErrNotFound, "customer_not_found")
	ErrDuplicatePhone       = billingerr.New(billingerr.ErrConflict, "duplicate_phone_number")
)
