package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/internal/clock"
	customerdomain "github.com/smallbiznis/wastebill/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/wastebill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/wastebill/internal/ledger/domain"
	"github.com/smallbiznis/wastebill/internal/numbering"
	obsmetrics "github.com/smallbiznis/wastebill/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/wastebill/internal/payment/domain"
	"github.com/smallbiznis/wastebill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Repo         paymentdomain.Repository
	InvoiceRepo  invoicedomain.Repository
	CustomerRepo customerdomain.Repository
	LedgerSvc    ledgerdomain.Service
	Notifier     paymentdomain.Notifier `optional:"true"`
	Numbers      *numbering.Generator   `optional:"true"`
	Clock        clock.Clock            `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics    `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         paymentdomain.Repository
	invoiceRepo  invoicedomain.Repository
	customerRepo customerdomain.Repository
	ledgerSvc    ledgerdomain.Service
	notifier     paymentdomain.Notifier
	numbers      *numbering.Generator
	clock        clock.Clock
	obsMetrics   *obsmetrics.Metrics
}

func New(p Params) paymentdomain.Service {
	numbers := p.Numbers
	if numbers == nil {
		numbers = numbering.New()
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("payment.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		invoiceRepo:  p.InvoiceRepo,
		customerRepo: p.CustomerRepo,
		ledgerSvc:    p.LedgerSvc,
		notifier:     p.Notifier,
		numbers:      numbers,
		clock:        clk,
		obsMetrics:   p.ObsMetrics,
	}
}

func (s *Service) GetPayment(ctx context.Context, id string) (paymentdomain.Payment, error) {
	paymentID, err := parseID(id, paymentdomain.ErrInvalidID)
	if err != nil {
		return paymentdomain.Payment{}, err
	}
	item, err := s.repo.FindPayment(ctx, s.db, paymentID)
	if err != nil {
		return paymentdomain.Payment{}, err
	}
	if item == nil {
		return paymentdomain.Payment{}, paymentdomain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) ListPayments(ctx context.Context, req paymentdomain.ListPaymentRequest) (paymentdomain.ListPaymentResponse, error) {
	filter := paymentdomain.ListPaymentFilter{Receipted: req.Receipted}
	if strings.TrimSpace(req.CustomerID) != "" {
		customerID, err := parseID(req.CustomerID, paymentdomain.ErrInvalidCustomerID)
		if err != nil {
			return paymentdomain.ListPaymentResponse{}, err
		}
		filter.CustomerID = &customerID
	}
	if value := strings.TrimSpace(req.Mode); value != "" {
		mode := paymentdomain.Mode(strings.ToUpper(value))
		if mode != paymentdomain.ModeMpesa && mode != paymentdomain.ModeCash {
			return paymentdomain.ListPaymentResponse{}, paymentdomain.ErrInvalidMode
		}
		filter.Mode = mode
	}

	pageSize := int32(pagination.Pagination{PageSize: int(req.PageSize)}.Limit())
	items, err := s.repo.ListPayments(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return paymentdomain.ListPaymentResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(p *paymentdomain.Payment) string {
		return cursorFor(p.ID, p.CreatedAt)
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	payments := make([]paymentdomain.Payment, 0, len(items))
	for _, item := range items {
		if item != nil {
			payments = append(payments, *item)
		}
	}
	resp := paymentdomain.ListPaymentResponse{Payments: payments}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) GetReceipt(ctx context.Context, id string) (paymentdomain.Receipt, error) {
	receiptID, err := parseID(id, paymentdomain.ErrInvalidReceiptID)
	if err != nil {
		return paymentdomain.Receipt{}, err
	}
	item, err := s.repo.FindReceipt(ctx, s.db, receiptID)
	if err != nil {
		return paymentdomain.Receipt{}, err
	}
	if item == nil {
		return paymentdomain.Receipt{}, paymentdomain.ErrReceiptNotFound
	}
	return *item, nil
}

func (s *Service) ListReceipts(ctx context.Context, req paymentdomain.ListReceiptRequest) (paymentdomain.ListReceiptResponse, error) {
	filter := paymentdomain.ListReceiptFilter{}
	for _, f := range []struct {
		value string
		dst   **snowflake.ID
	}{
		{req.CustomerID, &filter.CustomerID},
		{req.InvoiceID, &filter.InvoiceID},
		{req.PaymentID, &filter.PaymentID},
	} {
		if strings.TrimSpace(f.value) == "" {
			continue
		}
		id, err := parseID(f.value, paymentdomain.ErrInvalidID)
		if err != nil {
			return paymentdomain.ListReceiptResponse{}, err
		}
		*f.dst = &id
	}

	pageSize := int32(pagination.Pagination{PageSize: int(req.PageSize)}.Limit())
	items, err := s.repo.ListReceipts(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return paymentdomain.ListReceiptResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(r *paymentdomain.Receipt) string {
		return cursorFor(r.ID, r.CreatedAt)
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	receipts := make([]paymentdomain.Receipt, 0, len(items))
	for _, item := range items {
		if item != nil {
			receipts = append(receipts, *item)
		}
	}
	resp := paymentdomain.ListReceiptResponse{Receipts: receipts}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func cursorFor(id snowflake.ID, createdAt time.Time) string {
	token, err := pagination.EncodeCursor(pagination.Cursor{
		ID:        id.String(),
		CreatedAt: createdAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return ""
	}
	return token
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}
