package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/wastebill/internal/billingerr"
	customerdomain "github.com/smallbiznis/wastebill/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/wastebill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/wastebill/internal/ledger/domain"
	"github.com/smallbiznis/wastebill/internal/numbering"
	paymentdomain "github.com/smallbiznis/wastebill/internal/payment/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Allocate receipts a stored payment that intake could not match to a customer.
func (s *Service) Allocate(ctx context.Context, req paymentdomain.AllocateRequest) (paymentdomain.AllocationResult, error) {
	paymentID, err := parseID(req.PaymentID, paymentdomain.ErrInvalidID)
	if err != nil {
		return paymentdomain.AllocationResult{}, err
	}
	customerID, err := parseID(req.CustomerID, paymentdomain.ErrInvalidCustomerID)
	if err != nil {
		return paymentdomain.AllocationResult{}, err
	}

	var (
		result   paymentdomain.AllocationResult
		customer customerdomain.Customer
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.repo.FindPaymentForUpdate(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return paymentdomain.ErrNotFound
		}
		if payment.Receipted {
			return paymentdomain.ErrAlreadyReceipted
		}

		locked, err := s.customerRepo.LockForUpdate(ctx, tx, customerID)
		if err != nil {
			return err
		}
		if locked == nil {
			return customerdomain.ErrNotFound
		}

		result, err = s.AllocateTx(ctx, tx, payment, locked)
		if err != nil {
			return err
		}
		customer = *locked
		return nil
	})
	if err != nil {
		return paymentdomain.AllocationResult{}, billingerr.Transaction(err)
	}

	s.NotifyAllocated(ctx, customer, result)
	return result, nil
}

func (s *Service) RecordCashPayment(ctx context.Context, req paymentdomain.CashPaymentRequest) (paymentdomain.AllocationResult, error) {
	if req.Amount <= 0 {
		return paymentdomain.AllocationResult{}, paymentdomain.ErrInvalidAmount
	}
	customerID, err := parseID(req.CustomerID, paymentdomain.ErrInvalidCustomerID)
	if err != nil {
		return paymentdomain.AllocationResult{}, err
	}

	var (
		result   paymentdomain.AllocationResult
		customer customerdomain.Customer
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.customerRepo.LockForUpdate(ctx, tx, customerID)
		if err != nil {
			return err
		}
		if locked == nil {
			return customerdomain.ErrNotFound
		}

		now := s.clock.Now()
		payment := &paymentdomain.Payment{
			ID:            s.genID.Generate(),
			Amount:        req.Amount,
			ModeOfPayment: paymentdomain.ModeCash,
			TransactionID: "C" + ulid.Make().String(),
			PayerName:     strings.TrimSpace(req.PaidBy),
			PayerPhone:    locked.PhoneNumber,
			PaidAt:        now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.CreateTx(ctx, tx, payment); err != nil {
			return err
		}

		result, err = s.AllocateTx(ctx, tx, payment, locked)
		if err != nil {
			return err
		}
		customer = *locked
		return nil
	})
	if err != nil {
		return paymentdomain.AllocationResult{}, billingerr.Transaction(err)
	}

	s.NotifyAllocated(ctx, customer, result)
	return result, nil
}

func (s *Service) CreateTx(ctx context.Context, tx *gorm.DB, payment *paymentdomain.Payment) error {
	if payment == nil || payment.Amount <= 0 {
		return paymentdomain.ErrInvalidAmount
	}
	if payment.ID == 0 {
		payment.ID = s.genID.Generate()
	}
	now := s.clock.Now()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	if payment.UpdatedAt.IsZero() {
		payment.UpdatedAt = now
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = now
	}
	return s.repo.InsertPayment(ctx, tx, payment)
}

func (s *Service) FindByTransactionIDTx(ctx context.Context, tx *gorm.DB, transactionID string) (*paymentdomain.Payment, error) {
	return s.repo.FindPaymentByTransactionID(ctx, tx, transactionID)
}

func (s *Service) AllocateTx(ctx context.Context, tx *gorm.DB, payment *paymentdomain.Payment, customer *customerdomain.Customer) (paymentdomain.AllocationResult, error) {
	if payment == nil || customer == nil {
		return paymentdomain.AllocationResult{}, paymentdomain.ErrNotFound
	}
	if payment.Receipted {
		return paymentdomain.AllocationResult{}, paymentdomain.ErrAlreadyReceipted
	}
	if payment.Amount <= 0 {
		return paymentdomain.AllocationResult{}, paymentdomain.ErrInvalidAmount
	}

	open, err := s.invoiceRepo.ListOpenForCustomer(ctx, tx, customer.ID)
	if err != nil {
		return paymentdomain.AllocationResult{}, err
	}
	byID := make(map[snowflake.ID]invoicedomain.Invoice, len(open))
	candidates := make([]ledgerdomain.OpenInvoice, 0, len(open))
	for _, inv := range open {
		byID[inv.ID] = inv
		candidates = append(candidates, ledgerdomain.OpenInvoice{
			ID:            inv.ID,
			InvoiceAmount: inv.InvoiceAmount,
			AmountPaid:    inv.AmountPaid,
			CreatedAt:     inv.CreatedAt,
		})
	}

	plan, err := ledgerdomain.PlanAllocation(payment.Amount, candidates)
	if err != nil {
		return paymentdomain.AllocationResult{}, paymentdomain.ErrInvalidAmount
	}

	now := s.clock.Now()
	paidBy := payment.PayerName
	if paidBy == "" {
		paidBy = customer.FullName()
	}

	result := paymentdomain.AllocationResult{}
	for _, alloc := range plan.Allocations {
		if err := s.invoiceRepo.UpdatePayment(ctx, tx, alloc.InvoiceID, alloc.AmountPaid, alloc.Status, now); err != nil {
			return paymentdomain.AllocationResult{}, err
		}
		invoiceID := alloc.InvoiceID
		receipt, err := s.insertReceipt(ctx, tx, payment, customer.ID, &invoiceID, alloc.Applied, paidBy)
		if err != nil {
			return paymentdomain.AllocationResult{}, err
		}
		result.Receipts = append(result.Receipts, *receipt)

		inv := byID[alloc.InvoiceID]
		inv.AmountPaid = alloc.AmountPaid
		inv.Status = alloc.Status
		inv.UpdatedAt = now
		result.Invoices = append(result.Invoices, inv)
	}
	if plan.Remainder > 0 {
		receipt, err := s.insertReceipt(ctx, tx, payment, customer.ID, nil, plan.Remainder, paidBy)
		if err != nil {
			return paymentdomain.AllocationResult{}, err
		}
		result.Receipts = append(result.Receipts, *receipt)
	}

	balance := customer.ClosingBalance - payment.Amount
	if err := s.customerRepo.UpdateBalance(ctx, tx, customer.ID, balance, now); err != nil {
		return paymentdomain.AllocationResult{}, err
	}
	if err := s.ledgerSvc.Post(ctx, tx, ledgerdomain.BalanceEntry{
		CustomerID:   customer.ID,
		SourceType:   ledgerdomain.SourceTypePayment,
		SourceID:     payment.ID,
		Amount:       -payment.Amount,
		BalanceAfter: balance,
		CreatedAt:    now,
	}); err != nil {
		return paymentdomain.AllocationResult{}, err
	}
	if err := s.repo.MarkReceipted(ctx, tx, payment.ID, customer.ID, now); err != nil {
		return paymentdomain.AllocationResult{}, err
	}

	customer.ClosingBalance = balance
	customerID := customer.ID
	payment.CustomerID = &customerID
	payment.Receipted = true
	payment.UpdatedAt = now

	result.Payment = *payment
	result.NewClosingBalance = balance
	return result, nil
}

func (s *Service) insertReceipt(
	ctx context.Context,
	tx *gorm.DB,
	payment *paymentdomain.Payment,
	customerID snowflake.ID,
	invoiceID *snowflake.ID,
	amount int64,
	paidBy string,
) (*paymentdomain.Receipt, error) {
	number, err := s.numbers.Next(ctx, numbering.ReceiptTemplate, numbering.Tokens{
		IssuedAt: s.clock.Now(),
	}, numbering.DefaultAttempts, func(ctx context.Context, candidate string) (bool, error) {
		return s.repo.ReceiptNumberExists(ctx, tx, candidate)
	})
	if err != nil {
		return nil, err
	}
	receipt := &paymentdomain.Receipt{
		ID:            s.genID.Generate(),
		ReceiptNumber: number,
		PaymentID:     payment.ID,
		CustomerID:    customerID,
		InvoiceID:     invoiceID,
		Amount:        amount,
		PaidBy:        paidBy,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.InsertReceipt(ctx, tx, receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

// NotifyAllocated hands the committed allocation to the notifier. Failures
// are the notifier's concern and never reach the caller.
func (s *Service) NotifyAllocated(ctx context.Context, customer customerdomain.Customer, result paymentdomain.AllocationResult) {
	s.obsMetrics.RecordPaymentAllocated(ctx, string(result.Payment.ModeOfPayment))
	s.log.Info("payment allocated",
		zap.String("payment_id", result.Payment.ID.String()),
		zap.String("customer_id", customer.ID.String()),
		zap.Int64("amount", result.Payment.Amount),
		zap.Int("receipts", len(result.Receipts)),
		zap.Int64("closing_balance", result.NewClosingBalance),
	)
	if s.notifier == nil {
		return
	}
	s.notifier.PaymentReceived(ctx, paymentdomain.PaymentNotice{
		CustomerID: customer.ID,
		FirstName:  customer.FirstName,
		Phone:      customer.PhoneNumber,
		Email:      customer.Email,
		Amount:     result.Payment.Amount,
		Balance:    result.NewClosingBalance,
		PaymentID:  result.Payment.ID,
	})
}
