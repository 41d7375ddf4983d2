package domain

import (
	"context"

	"github.com/smallbiznis/wastebill/internal/billingerr"
	paymentdomain "github.com/smallbiznis/wastebill/internal/payment/domain"
	"github.com/smallbiznis/wastebill/pkg/db/pagination"
)

type IngestResult struct {
	Transaction InboundTransaction
	Outcome     Outcome
	Payment     *paymentdomain.Payment
	Allocation  *paymentdomain.AllocationResult
}

type ReprocessResult struct {
	Claimed   int
	Allocated int
	Unmatched int
	Failed    int
}

type ListRequest struct {
	PageToken string
	PageSize  int32
	Processed *bool
}

type ListResponse struct {
	pagination.PageInfo
	Transactions []InboundTransaction `json:"transactions"`
}

type Service interface {
	Ingest(ctx context.Context, callback Callback, payload []byte) (IngestResult, error)
	Reprocess(ctx context.Context, batchSize int) (ReprocessResult, error)
	Get(ctx context.Context, transID string) (InboundTransaction, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidTransID   = billingerr.New(billingerr.ErrInvalidInput, "invalid_trans_id")
	ErrInvalidAmount    = billingerr.New(billingerr.ErrInvalidInput, "invalid_trans_amount")
	ErrInvalidTransTime = billingerr.New(billingerr.ErrInvalidInput, "invalid_trans_time")
	ErrInvalidPayload   = billingerr.New(billingerr.ErrInvalidInput, "invalid_payload")
	ErrAlreadyProcessed = billingerr.New(billingerr.ErrConflict, "mpesa_transaction_already_processed")
	ErrNotFound         = billingerr.New(billingerr.ErrNotFound, "mpesa_transaction_not_found")
)
