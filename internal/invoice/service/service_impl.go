package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/internal/clock"
	"github.com/smallbiznis/wastebill/internal/config"
	customerdomain "github.com/smallbiznis/wastebill/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/wastebill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/wastebill/internal/ledger/domain"
	"github.com/smallbiznis/wastebill/internal/numbering"
	obsmetrics "github.com/smallbiznis/wastebill/internal/observability/metrics"
	"github.com/smallbiznis/wastebill/pkg/db/pagination"
	"github.com/smallbiznis/wastebill/pkg/phone"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Cfg          config.Config
	Repo         invoicedomain.Repository
	CustomerRepo customerdomain.Repository
	LedgerSvc    ledgerdomain.Service
	Numbers      *numbering.Generator `optional:"true"`
	Clock        clock.Clock          `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics  `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         invoicedomain.Repository
	customerRepo customerdomain.Repository
	ledgerSvc    ledgerdomain.Service
	numbers      *numbering.Generator
	clock        clock.Clock
	obsMetrics   *obsmetrics.Metrics

	concurrency int
}

func New(p Params) invoicedomain.Service {
	numbers := p.Numbers
	if numbers == nil {
		numbers = numbering.New()
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	concurrency := p.Cfg.Scheduler.IssueConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("invoice.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
		ledgerSvc:    p.LedgerSvc,
		numbers:      numbers,
		clock:        clk,
		obsMetrics:   p.ObsMetrics,
		concurrency:  concurrency,
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	invoiceID, err := parseID(id, invoicedomain.ErrInvalidID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	item, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if item == nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	filter := invoicedomain.ListInvoiceFilter{}
	if strings.TrimSpace(req.CustomerID) != "" {
		customerID, err := parseID(req.CustomerID, invoicedomain.ErrInvalidCustomerID)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, err
		}
		filter.CustomerID = &customerID
	}
	if value := strings.TrimSpace(req.Status); value != "" {
		status := ledgerdomain.InvoiceStatus(strings.ToUpper(value))
		if !status.Valid() {
			return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidStatus
		}
		filter.Status = status
	}
	if req.Period != nil {
		period := invoicedomain.PeriodStart(*req.Period)
		filter.Period = &period
	}
	filter.InvoiceNumber = strings.TrimSpace(req.InvoiceNumber)
	if value := strings.TrimSpace(req.PhoneNumber); value != "" {
		sanitized, err := phone.Sanitize(value)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, customerdomain.ErrInvalidPhone
		}
		filter.PhoneNumber = sanitized
	}

	pageSize := int32(pagination.Pagination{PageSize: int(req.PageSize)}.Limit())

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(invoice *invoicedomain.Invoice) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        invoice.ID.String(),
			CreatedAt: invoice.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	invoices := make([]invoicedomain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}

	resp := invoicedomain.ListInvoiceResponse{Invoices: invoices}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) ListItems(ctx context.Context, invoiceID string) ([]invoicedomain.InvoiceItem, error) {
	invoice, err := s.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListItems(ctx, s.db, invoice.ID)
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}
