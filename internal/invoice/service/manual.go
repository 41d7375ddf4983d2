package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/wastebill/internal/billingerr"
	customerdomain "github.com/smallbiznis/wastebill/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/wastebill/internal/invoice/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) CreateManual(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.Invoice, error) {
	customerID, err := parseID(req.CustomerID, invoicedomain.ErrInvalidCustomerID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if len(req.Items) == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrEmptyItems
	}

	items := make([]invoicedomain.InvoiceItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		if item.UnitAmount <= 0 || item.Quantity <= 0 {
			return invoicedomain.Invoice{}, invoicedomain.ErrInvalidItem
		}
		description := strings.TrimSpace(item.Description)
		if description == "" {
			description = invoicedomain.MonthlyChargeDescription
		}
		items = append(items, invoicedomain.InvoiceItemInput{
			Description: description,
			UnitAmount:  item.UnitAmount,
			Quantity:    item.Quantity,
		})
	}
	total, err := sumItems(items)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if total <= 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidAmount
	}
	if req.Total != nil && *req.Total != total {
		return invoicedomain.Invoice{}, invoicedomain.ErrTotalMismatch
	}

	period := invoicedomain.PeriodStart(s.clock.Now())
	if req.Period != nil && !req.Period.IsZero() {
		period = invoicedomain.PeriodStart(*req.Period)
	}

	var created *invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.customerRepo.LockForUpdate(ctx, tx, customerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return customerdomain.ErrNotFound
		}
		invoice, err := s.raiseInvoice(ctx, tx, customer, period, items, false)
		if err != nil {
			return err
		}
		created = invoice
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, billingerr.Transaction(err)
	}

	s.obsMetrics.RecordInvoiceIssued(ctx, "manual")
	s.log.Info("manual invoice created",
		zap.String("invoice_id", created.ID.String()),
		zap.String("customer_id", created.CustomerID.String()),
		zap.Int64("invoice_amount", created.InvoiceAmount),
	)
	return *created, nil
}
