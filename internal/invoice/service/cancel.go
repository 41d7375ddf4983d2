package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/internal/billingerr"
	customerdomain "github.com/smallbiznis/wastebill/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/wastebill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/wastebill/internal/ledger/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) Cancel(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	invoiceID, err := parseID(id, invoicedomain.ErrInvalidID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	return s.cancel(ctx, invoiceID)
}

func (s *Service) CancelLatestSystemGenerated(ctx context.Context) (invoicedomain.Invoice, error) {
	latest, err := s.repo.FindLatestSystemGenerated(ctx, s.db)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if latest == nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrNoSystemInvoice
	}
	return s.cancel(ctx, latest.ID)
}

// cancel reverses an invoice's effect on the customer balance. Receipts
// already issued against it are kept.
func (s *Service) cancel(ctx context.Context, invoiceID snowflake.ID) (invoicedomain.Invoice, error) {
	current, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if current == nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotFound
	}
	if current.Status == ledgerdomain.InvoiceStatusCancelled {
		return *current, nil
	}

	var cancelled invoicedomain.Invoice
	changed := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.customerRepo.LockForUpdate(ctx, tx, current.CustomerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return customerdomain.ErrNotFound
		}

		invoice, err := s.repo.FindByID(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrNotFound
		}
		if invoice.Status == ledgerdomain.InvoiceStatusCancelled {
			cancelled = *invoice
			return nil
		}

		now := s.clock.Now()
		balance := customer.ClosingBalance - invoice.InvoiceAmount
		if err := s.repo.MarkCancelled(ctx, tx, invoice.ID, now); err != nil {
			return err
		}
		if err := s.customerRepo.UpdateBalance(ctx, tx, customer.ID, balance, now); err != nil {
			return err
		}
		if err := s.ledgerSvc.Post(ctx, tx, ledgerdomain.BalanceEntry{
			CustomerID:   customer.ID,
			SourceType:   ledgerdomain.SourceTypeCancellation,
			SourceID:     invoice.ID,
			Amount:       -invoice.InvoiceAmount,
			BalanceAfter: balance,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		invoice.Status = ledgerdomain.InvoiceStatusCancelled
		invoice.CancelledAt = &now
		invoice.UpdatedAt = now
		cancelled = *invoice
		changed = true
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, billingerr.Transaction(err)
	}

	if changed {
		s.log.Info("invoice cancelled",
			zap.String("invoice_id", cancelled.ID.String()),
			zap.String("customer_id", cancelled.CustomerID.String()),
			zap.Int64("invoice_amount", cancelled.InvoiceAmount),
		)
	}
	return cancelled, nil
}
