package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/smallbiznis/wastebill/internal/billingerr"
	customerdomain "github.com/smallbiznis/wastebill/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/wastebill/internal/invoice/domain"
	"github.com/smallbiznis/wastebill/pkg/db"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type issueOutcome int

const (
	outcomeIssued issueOutcome = iota
	outcomeSkipped
	outcomeFailed
)

func (s *Service) IssueForMonth(ctx context.Context, month, year int) (invoicedomain.IssueResult, error) {
	if month < 1 || month > 12 {
		return invoicedomain.IssueResult{}, invoicedomain.ErrInvalidMonth
	}
	if year < 2000 || year > 9999 {
		return invoicedomain.IssueResult{}, invoicedomain.ErrInvalidYear
	}
	return s.Issue(ctx, invoicedomain.IssueRequest{
		Period: time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC),
	})
}

func (s *Service) IssueForCollectionDay(ctx context.Context, day customerdomain.CollectionDay, period time.Time) (invoicedomain.IssueResult, error) {
	parsed, ok := customerdomain.ParseCollectionDay(string(day))
	if !ok {
		return invoicedomain.IssueResult{}, customerdomain.ErrInvalidCollectionDay
	}
	return s.Issue(ctx, invoicedomain.IssueRequest{
		Period:        period,
		CollectionDay: &parsed,
	})
}

func (s *Service) Issue(ctx context.Context, req invoicedomain.IssueRequest) (invoicedomain.IssueResult, error) {
	if req.Period.IsZero() {
		return invoicedomain.IssueResult{}, invoicedomain.ErrInvalidPeriod
	}
	period := invoicedomain.PeriodStart(req.Period)

	customers, err := s.customerRepo.ListForBilling(ctx, s.db, customerdomain.BillingFilter{
		CollectionDay: req.CollectionDay,
		CustomerIDs:   req.CustomerIDs,
	})
	if err != nil {
		return invoicedomain.IssueResult{}, billingerr.Transaction(err)
	}

	result := invoicedomain.IssueResult{Period: period}
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.concurrency)

	for _, customer := range customers {
		if customer == nil || customer.MonthlyCharge <= 0 {
			continue
		}
		eg.Go(func() error {
			invoice, outcome, err := s.issueOne(egCtx, customer, period)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeIssued:
				result.Invoices = append(result.Invoices, *invoice)
			case outcomeSkipped:
				result.Skipped++
			case outcomeFailed:
				result.Failed++
				s.log.Error("invoice issuance failed",
					zap.String("customer_id", customer.ID.String()),
					zap.Int64("monthly_charge", customer.MonthlyCharge),
					zap.Time("period", period),
					zap.Error(err),
				)
				s.obsMetrics.RecordIssuanceFailure(ctx, billingerr.CodeOf(err))
			}
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}

	sort.Slice(result.Invoices, func(i, j int) bool {
		return result.Invoices[i].CustomerID < result.Invoices[j].CustomerID
	})

	s.log.Info("invoice issuance completed",
		zap.Time("period", period),
		zap.Int("issued", len(result.Invoices)),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// issueOne bills one customer inside its own transaction.
func (s *Service) issueOne(ctx context.Context, customer *customerdomain.Customer, period time.Time) (*invoicedomain.Invoice, issueOutcome, error) {
	var issued *invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.customerRepo.LockForUpdate(ctx, tx, customer.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return customerdomain.ErrNotFound
		}
		if locked.Status != customerdomain.StatusActive || locked.MonthlyCharge <= 0 {
			return nil
		}

		existing, err := s.repo.FindSystemInvoiceForPeriod(ctx, tx, locked.ID, period)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}

		invoice, err := s.raiseInvoice(ctx, tx, locked, period, []invoicedomain.InvoiceItemInput{{
			Description: invoicedomain.MonthlyChargeDescription,
			UnitAmount:  locked.MonthlyCharge,
			Quantity:    1,
		}}, true)
		if err != nil {
			return err
		}
		issued = invoice
		return nil
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			// A concurrent run may have issued this period first.
			existing, ferr := s.repo.FindSystemInvoiceForPeriod(ctx, s.db, customer.ID, period)
			if ferr == nil && existing != nil {
				return nil, outcomeSkipped, nil
			}
		}
		return nil, outcomeFailed, billingerr.Transaction(err)
	}
	if issued == nil {
		return nil, outcomeSkipped, nil
	}
	s.obsMetrics.RecordInvoiceIssued(ctx, "system")
	return issued, outcomeIssued, nil
}
