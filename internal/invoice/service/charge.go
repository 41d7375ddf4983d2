package service

import (
	"context"
	"time"

	customerdomain "github.com/smallbiznis/wastebill/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/wastebill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/wastebill/internal/ledger/domain"
	"github.com/smallbiznis/wastebill/internal/numbering"
	"github.com/smallbiznis/wastebill/pkg/money"
	"gorm.io/gorm"
)

// sumItems totals unit_amount*quantity across items. A product or running sum
// outside the int64 range is reported as ErrInvalidAmount.
func sumItems(items []invoicedomain.InvoiceItemInput) (int64, error) {
	var total int64
	for _, item := range items {
		line, err := money.Mul(item.UnitAmount, item.Quantity)
		if err != nil {
			return 0, invoicedomain.ErrInvalidAmount
		}
		total, err = money.Add(total, line)
		if err != nil {
			return 0, invoicedomain.ErrInvalidAmount
		}
	}
	return total, nil
}

// raiseInvoice writes an invoice for a customer whose row is already locked by tx
// and moves the customer balance by the invoice amount.
func (s *Service) raiseInvoice(
	ctx context.Context,
	tx *gorm.DB,
	customer *customerdomain.Customer,
	period time.Time,
	items []invoicedomain.InvoiceItemInput,
	systemGenerated bool,
) (*invoicedomain.Invoice, error) {
	amount, err := sumItems(items)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, invoicedomain.ErrInvalidAmount
	}
	if _, err := money.Add(customer.ClosingBalance, amount); err != nil {
		return nil, invoicedomain.ErrInvalidAmount
	}

	number, err := s.numbers.Next(ctx, numbering.InvoiceTemplate, numbering.Tokens{
		IssuedAt: s.clock.Now(),
		Customer: customer.ID.String(),
	}, numbering.DefaultAttempts, func(ctx context.Context, candidate string) (bool, error) {
		return s.repo.NumberExists(ctx, tx, candidate)
	})
	if err != nil {
		return nil, err
	}

	issuance := ledgerdomain.ComputeIssuanceStatus(customer.ClosingBalance, amount)
	now := s.clock.Now()
	invoice := invoicedomain.Invoice{
		ID:                s.genID.Generate(),
		InvoiceNumber:     number,
		CustomerID:        customer.ID,
		InvoicePeriod:     period,
		InvoiceAmount:     amount,
		AmountPaid:        issuance.AmountPaidAtIssue,
		Status:            issuance.Status,
		ClosingBalance:    issuance.NewClosingBalance,
		IsSystemGenerated: systemGenerated,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Insert(ctx, tx, &invoice); err != nil {
		return nil, err
	}

	rows := make([]invoicedomain.InvoiceItem, 0, len(items))
	for _, item := range items {
		rows = append(rows, invoicedomain.InvoiceItem{
			ID:          s.genID.Generate(),
			InvoiceID:   invoice.ID,
			Description: item.Description,
			UnitAmount:  item.UnitAmount,
			Quantity:    item.Quantity,
			Amount:      item.UnitAmount * item.Quantity,
			CreatedAt:   now,
		})
	}
	if err := s.repo.InsertItems(ctx, tx, rows); err != nil {
		return nil, err
	}

	if err := s.customerRepo.UpdateBalance(ctx, tx, customer.ID, issuance.NewClosingBalance, now); err != nil {
		return nil, err
	}
	if err := s.ledgerSvc.Post(ctx, tx, ledgerdomain.BalanceEntry{
		CustomerID:   customer.ID,
		SourceType:   ledgerdomain.SourceTypeInvoice,
		SourceID:     invoice.ID,
		Amount:       amount,
		BalanceAfter: issuance.NewClosingBalance,
		CreatedAt:    now,
	}); err != nil {
		return nil, err
	}
	customer.ClosingBalance = issuance.NewClosingBalance

	return &invoice, nil
}
