package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/internal/billingerr"
	"github.com/smallbiznis/wastebill/internal/clock"
	"github.com/smallbiznis/wastebill/internal/config"
	customerdomain "github.com/smallbiznis/wastebill/internal/customer/domain"
	mpesadomain "github.com/smallbiznis/wastebill/internal/mpesa/domain"
	obsmetrics "github.com/smallbiznis/wastebill/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/wastebill/internal/payment/domain"
	"github.com/smallbiznis/wastebill/pkg/db/pagination"
	"github.com/smallbiznis/wastebill/pkg/money"
	"github.com/smallbiznis/wastebill/pkg/phone"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Callback timestamps are East Africa Time.
var eat = time.FixedZone("EAT", 3*60*60)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Cfg          config.Config
	Repo         mpesadomain.Repository
	CustomerRepo customerdomain.Repository
	PaymentSvc   paymentdomain.Service
	Clock        clock.Clock         `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         mpesadomain.Repository
	customerRepo customerdomain.Repository
	paymentSvc   paymentdomain.Service
	clock        clock.Clock
	obsMetrics   *obsmetrics.Metrics
	maxAttempts  int
}

func New(p Params) mpesadomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("mpesa.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
		paymentSvc:   p.PaymentSvc,
		clock:        clk,
		obsMetrics:   p.ObsMetrics,
		maxAttempts:  p.Cfg.Mpesa.ReprocessMaxTries,
	}
}

func (s *Service) Ingest(ctx context.Context, callback mpesadomain.Callback, payload []byte) (mpesadomain.IngestResult, error) {
	record, err := s.buildRecord(callback, payload)
	if err != nil {
		s.obsMetrics.RecordMpesaCallback(ctx, "invalid")
		return mpesadomain.IngestResult{}, err
	}

	inserted, err := s.repo.Insert(ctx, s.db, record)
	if err != nil {
		return mpesadomain.IngestResult{}, billingerr.Transaction(err)
	}
	if !inserted {
		s.obsMetrics.RecordMpesaCallback(ctx, string(mpesadomain.OutcomeDuplicate))
		s.log.Info("duplicate mpesa callback", zap.String("trans_id", record.TransID))
		return mpesadomain.IngestResult{}, mpesadomain.ErrAlreadyProcessed
	}

	result, err := s.settle(ctx, record.ID)
	if err != nil {
		s.obsMetrics.RecordMpesaCallback(ctx, "failed")
		return mpesadomain.IngestResult{}, err
	}
	s.obsMetrics.RecordMpesaCallback(ctx, string(result.Outcome))
	return result, nil
}

func (s *Service) buildRecord(callback mpesadomain.Callback, payload []byte) (*mpesadomain.InboundTransaction, error) {
	transID := strings.TrimSpace(callback.TransID)
	if transID == "" {
		return nil, mpesadomain.ErrInvalidTransID
	}
	amount, err := money.Parse(callback.TransAmount)
	if err != nil || amount <= 0 {
		return nil, mpesadomain.ErrInvalidAmount
	}

	var transTime *time.Time
	if value := strings.TrimSpace(callback.TransTime); value != "" {
		parsed, err := time.ParseInLocation(mpesadomain.TransTimeLayout, value, eat)
		if err != nil {
			return nil, mpesadomain.ErrInvalidTransTime
		}
		utc := parsed.UTC()
		transTime = &utc
	}

	if len(payload) == 0 {
		payload, err = json.Marshal(callback)
		if err != nil {
			return nil, mpesadomain.ErrInvalidPayload
		}
	}
	if !json.Valid(payload) {
		return nil, mpesadomain.ErrInvalidPayload
	}

	now := s.clock.Now()
	return &mpesadomain.InboundTransaction{
		ID:                s.genID.Generate(),
		TransID:           transID,
		TransactionType:   strings.TrimSpace(callback.TransactionType),
		TransTime:         transTime,
		Amount:            amount,
		BusinessShortCode: strings.TrimSpace(callback.BusinessShortCode),
		BillRefNumber:     strings.TrimSpace(callback.BillRefNumber),
		MSISDN:            strings.TrimSpace(callback.MSISDN),
		FirstName:         callback.PayerName(),
		Payload:           datatypes.JSON(payload),
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// settle turns one stored callback into a payment. Failures roll back the
// whole unit and are recorded on the row for the next sweep.
func (s *Service) settle(ctx context.Context, id snowflake.ID) (mpesadomain.IngestResult, error) {
	var (
		result   mpesadomain.IngestResult
		customer customerdomain.Customer
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.repo.LockUnprocessed(ctx, tx, id)
		if err != nil {
			return err
		}
		if record == nil {
			result.Outcome = mpesadomain.OutcomeSkipped
			return nil
		}
		result.Transaction = *record
		now := s.clock.Now()

		existing, err := s.paymentSvc.FindByTransactionIDTx(ctx, tx, record.TransID)
		if err != nil {
			return err
		}
		if existing != nil {
			result.Outcome = mpesadomain.OutcomeDuplicate
			result.Payment = existing
			return s.repo.MarkProcessed(ctx, tx, record.ID, now)
		}

		payment := &paymentdomain.Payment{
			ID:            s.genID.Generate(),
			Amount:        record.Amount,
			ModeOfPayment: paymentdomain.ModeMpesa,
			TransactionID: record.TransID,
			PayerName:     record.FirstName,
			PayerPhone:    record.MSISDN,
			Reference:     record.BillRefNumber,
			PaidAt:        now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if record.TransTime != nil {
			payment.PaidAt = *record.TransTime
		}

		matched, err := s.resolveCustomer(ctx, tx, record.BillRefNumber)
		if err != nil {
			return err
		}
		if err := s.paymentSvc.CreateTx(ctx, tx, payment); err != nil {
			return err
		}
		if matched == nil {
			result.Outcome = mpesadomain.OutcomeUnmatched
			result.Payment = payment
			return s.repo.MarkProcessed(ctx, tx, record.ID, now)
		}

		allocation, err := s.paymentSvc.AllocateTx(ctx, tx, payment, matched)
		if err != nil {
			return err
		}
		customer = *matched
		result.Outcome = mpesadomain.OutcomeAllocated
		result.Payment = &allocation.Payment
		result.Allocation = &allocation
		return s.repo.MarkProcessed(ctx, tx, record.ID, now)
	})
	if err != nil {
		s.recordFailure(ctx, id, err)
		return mpesadomain.IngestResult{}, billingerr.Transaction(err)
	}

	if result.Transaction.ID != 0 && result.Outcome != mpesadomain.OutcomeSkipped {
		result.Transaction.Processed = true
	}
	switch result.Outcome {
	case mpesadomain.OutcomeAllocated:
		s.paymentSvc.NotifyAllocated(ctx, customer, *result.Allocation)
	case mpesadomain.OutcomeUnmatched:
		s.log.Warn("mpesa payment has no matching customer",
			zap.String("trans_id", result.Transaction.TransID),
			zap.String("bill_ref_number", result.Transaction.BillRefNumber),
		)
	}
	return result, nil
}

// resolveCustomer locks the customer the bill reference points at, if any.
func (s *Service) resolveCustomer(ctx context.Context, tx *gorm.DB, billRef string) (*customerdomain.Customer, error) {
	number, err := phone.Sanitize(billRef)
	if err != nil {
		return nil, nil
	}
	found, err := s.customerRepo.FindByPhone(ctx, tx, number)
	if err != nil || found == nil {
		return nil, err
	}
	return s.customerRepo.LockForUpdate(ctx, tx, found.ID)
}

func (s *Service) recordFailure(ctx context.Context, id snowflake.ID, cause error) {
	if err := s.repo.RecordFailure(ctx, s.db, id, cause.Error(), s.clock.Now()); err != nil {
		s.log.Error("failed to record mpesa settle failure",
			zap.String("id", id.String()),
			zap.Error(err),
		)
	}
	s.log.Warn("mpesa settle failed", zap.String("id", id.String()), zap.Error(cause))
}

func (s *Service) Reprocess(ctx context.Context, batchSize int) (mpesadomain.ReprocessResult, error) {
	if batchSize <= 0 {
		batchSize = 50
	}
	ids, err := s.repo.ListUnprocessed(ctx, s.db, s.maxAttempts, batchSize)
	if err != nil {
		return mpesadomain.ReprocessResult{}, err
	}

	result := mpesadomain.ReprocessResult{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		settled, err := s.settle(ctx, id)
		if err != nil {
			result.Failed++
			continue
		}
		switch settled.Outcome {
		case mpesadomain.OutcomeSkipped:
			continue
		case mpesadomain.OutcomeAllocated:
			result.Allocated++
		case mpesadomain.OutcomeUnmatched:
			result.Unmatched++
		}
		result.Claimed++
	}
	return result, nil
}

func (s *Service) Get(ctx context.Context, transID string) (mpesadomain.InboundTransaction, error) {
	transID = strings.TrimSpace(transID)
	if transID == "" {
		return mpesadomain.InboundTransaction{}, mpesadomain.ErrInvalidTransID
	}
	item, err := s.repo.FindByTransID(ctx, s.db, transID)
	if err != nil {
		return mpesadomain.InboundTransaction{}, err
	}
	if item == nil {
		return mpesadomain.InboundTransaction{}, mpesadomain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req mpesadomain.ListRequest) (mpesadomain.ListResponse, error) {
	pageSize := int32(pagination.Pagination{PageSize: int(req.PageSize)}.Limit())
	items, err := s.repo.List(ctx, s.db, mpesadomain.ListFilter{Processed: req.Processed}, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return mpesadomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(t *mpesadomain.InboundTransaction) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        t.ID.String(),
			CreatedAt: t.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	out := make([]mpesadomain.InboundTransaction, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	resp := mpesadomain.ListResponse{Transactions: out}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}
