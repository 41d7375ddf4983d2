package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/internal/billingerr"
	"github.com/smallbiznis/wastebill/internal/clock"
	"github.com/smallbiznis/wastebill/internal/config"
	customerdomain "github.com/smallbiznis/wastebill/internal/customer/domain"
	customerrepo "github.com/smallbiznis/wastebill/internal/customer/repository"
	invoicedomain "github.com/smallbiznis/wastebill/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/wastebill/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/wastebill/internal/invoice/service"
	ledgerdomain "github.com/smallbiznis/wastebill/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/wastebill/internal/ledger/service"
	paymentdomain "github.com/smallbiznis/wastebill/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/wastebill/internal/payment/repository"
	paymentservice "github.com/smallbiznis/wastebill/internal/payment/service"
	"github.com/smallbiznis/wastebill/internal/testutil/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	notices []paymentdomain.PaymentNotice
}

func (n *recordingNotifier) PaymentReceived(_ context.Context, notice paymentdomain.PaymentNotice) {
	n.notices = append(n.notices, notice)
}

type fixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock
	customers customerdomain.Repository
	payments  paymentdomain.Repository
	ledger    ledgerdomain.Service
	invoices  invoicedomain.Service
	notifier  *recordingNotifier
	svc       paymentdomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testdb.Open(t)
	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 5, 3, 9, 0, 0, 0, time.UTC))

	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clk})
	customers := customerrepo.Provide()
	invoices := invoicerepo.Provide()
	payments := paymentrepo.Provide()
	notifier := &recordingNotifier{}

	invoiceSvc := invoiceservice.New(invoiceservice.Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Cfg:          config.Config{},
		Repo:         invoices,
		CustomerRepo: customers,
		LedgerSvc:    ledgerSvc,
		Clock:        clk,
	})
	svc := paymentservice.New(paymentservice.Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Repo:         payments,
		InvoiceRepo:  invoices,
		CustomerRepo: customers,
		LedgerSvc:    ledgerSvc,
		Notifier:     notifier,
		Clock:        clk,
	})
	return &fixture{
		db:        db,
		node:      node,
		clock:     clk,
		customers: customers,
		payments:  payments,
		ledger:    ledgerSvc,
		invoices:  invoiceSvc,
		notifier:  notifier,
		svc:       svc,
	}
}

func (f *fixture) seedCustomer(t *testing.T, phone string, balance int64) snowflake.ID {
	t.Helper()
	now := f.clock.Now()
	c := customerdomain.Customer{
		ID:             f.node.Generate(),
		FirstName:      "Amina",
		LastName:       "Otieno",
		PhoneNumber:    phone,
		MonthlyCharge:  500,
		ClosingBalance: balance,
		Status:         customerdomain.StatusActive,
		CollectionDay:  customerdomain.Monday,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, f.customers.Insert(context.Background(), f.db, &c))
	return c.ID
}

func (f *fixture) invoice(t *testing.T, customerID snowflake.ID, amount int64) invoicedomain.Invoice {
	t.Helper()
	f.clock.Advance(time.Minute)
	inv, err := f.invoices.CreateManual(context.Background(), invoicedomain.CreateInvoiceRequest{
		CustomerID: customerID.String(),
		Items:      []invoicedomain.InvoiceItemInput{{Description: "Collection", UnitAmount: amount, Quantity: 1}},
	})
	require.NoError(t, err)
	return inv
}

func (f *fixture) unmatchedPayment(t *testing.T, amount int64, transactionID string) paymentdomain.Payment {
	t.Helper()
	p := paymentdomain.Payment{
		Amount:        amount,
		ModeOfPayment: paymentdomain.ModeMpesa,
		TransactionID: transactionID,
		PayerName:     "AMINA OTIENO",
		PayerPhone:    "254799999999",
	}
	require.NoError(t, f.svc.CreateTx(context.Background(), f.db, &p))
	return p
}

func (f *fixture) customer(t *testing.T, id snowflake.ID) customerdomain.Customer {
	t.Helper()
	c, err := f.customers.FindByID(context.Background(), f.db, id)
	require.NoError(t, err)
	require.NotNil(t, c)
	return *c
}

func TestCashPaymentAllocatesOldestInvoiceFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customerID := f.seedCustomer(t, "254711000001", 0)
	older := f.invoice(t, customerID, 100)
	newer := f.invoice(t, customerID, 200)
	require.Equal(t, int64(300), f.customer(t, customerID).ClosingBalance)

	result, err := f.svc.RecordCashPayment(ctx, paymentdomain.CashPaymentRequest{
		CustomerID: customerID.String(),
		Amount:     150,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(150), result.NewClosingBalance)
	assert.Equal(t, paymentdomain.ModeCash, result.Payment.ModeOfPayment)
	assert.Regexp(t, `^C[0-9A-Z]{26}$`, result.Payment.TransactionID)
	assert.True(t, result.Payment.Receipted)

	require.Len(t, result.Receipts, 2)
	require.NotNil(t, result.Receipts[0].InvoiceID)
	assert.Equal(t, older.ID, *result.Receipts[0].InvoiceID)
	assert.Equal(t, int64(100), result.Receipts[0].Amount)
	require.NotNil(t, result.Receipts[1].InvoiceID)
	assert.Equal(t, newer.ID, *result.Receipts[1].InvoiceID)
	assert.Equal(t, int64(50), result.Receipts[1].Amount)
	for _, r := range result.Receipts {
		assert.Regexp(t, `^RCPT\d{8}$`, r.ReceiptNumber)
		assert.Equal(t, "Amina Otieno", r.PaidBy)
	}

	first, err := f.invoices.GetByID(ctx, older.ID.String())
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.InvoiceStatusPaid, first.Status)
	assert.Equal(t, int64(100), first.AmountPaid)

	second, err := f.invoices.GetByID(ctx, newer.ID.String())
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.InvoiceStatusPartial, second.Status)
	assert.Equal(t, int64(50), second.AmountPaid)

	assert.Equal(t, int64(150), f.customer(t, customerID).ClosingBalance)
	replayed, err := f.ledger.Replay(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), replayed)

	require.Len(t, f.notifier.notices, 1)
	assert.Equal(t, int64(150), f.notifier.notices[0].Amount)
	assert.Equal(t, int64(150), f.notifier.notices[0].Balance)
	assert.Equal(t, "254711000001", f.notifier.notices[0].Phone)
}

func TestOverpaymentLeavesCreditAndRemainderReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customerID := f.seedCustomer(t, "254711000002", 0)
	payment := f.unmatchedPayment(t, 500, "QKA1B2C3D4")

	result, err := f.svc.Allocate(ctx, paymentdomain.AllocateRequest{
		PaymentID:  payment.ID.String(),
		CustomerID: customerID.String(),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(-500), result.NewClosingBalance)
	require.Len(t, result.Receipts, 1)
	assert.Nil(t, result.Receipts[0].InvoiceID)
	assert.Equal(t, int64(500), result.Receipts[0].Amount)
	assert.Equal(t, "AMINA OTIENO", result.Receipts[0].PaidBy)
	assert.Empty(t, result.Invoices)

	stored, err := f.svc.GetPayment(ctx, payment.ID.String())
	require.NoError(t, err)
	assert.True(t, stored.Receipted)
	require.NotNil(t, stored.CustomerID)
	assert.Equal(t, customerID, *stored.CustomerID)

	assert.Equal(t, int64(-500), f.customer(t, customerID).ClosingBalance)
}

func TestPartialRemainderAfterSettlingAllInvoices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customerID := f.seedCustomer(t, "254711000003", 0)
	inv := f.invoice(t, customerID, 300)

	result, err := f.svc.RecordCashPayment(ctx, paymentdomain.CashPaymentRequest{
		CustomerID: customerID.String(),
		Amount:     450,
		PaidBy:     "Neighbour",
	})
	require.NoError(t, err)
	require.Len(t, result.Receipts, 2)
	assert.Equal(t, inv.ID, *result.Receipts[0].InvoiceID)
	assert.Equal(t, int64(300), result.Receipts[0].Amount)
	assert.Nil(t, result.Receipts[1].InvoiceID)
	assert.Equal(t, int64(150), result.Receipts[1].Amount)
	assert.Equal(t, "Neighbour", result.Receipts[1].PaidBy)
	assert.Equal(t, int64(-150), result.NewClosingBalance)

	var total int64
	for _, r := range result.Receipts {
		total += r.Amount
	}
	assert.Equal(t, result.Payment.Amount, total)
}

func TestAllocateTwiceIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customerID := f.seedCustomer(t, "254711000004", 0)
	f.invoice(t, customerID, 200)
	payment := f.unmatchedPayment(t, 200, "QKA9Z8Y7X6")

	req := paymentdomain.AllocateRequest{PaymentID: payment.ID.String(), CustomerID: customerID.String()}
	_, err := f.svc.Allocate(ctx, req)
	require.NoError(t, err)

	_, err = f.svc.Allocate(ctx, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, paymentdomain.ErrAlreadyReceipted))
	assert.True(t, errors.Is(err, billingerr.ErrConflict))

	assert.Equal(t, int64(0), f.customer(t, customerID).ClosingBalance)
	receipts, err := f.svc.ListReceipts(ctx, paymentdomain.ListReceiptRequest{PaymentID: payment.ID.String()})
	require.NoError(t, err)
	assert.Len(t, receipts.Receipts, 1)
	assert.Len(t, f.notifier.notices, 1)
}

func TestAllocateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customerID := f.seedCustomer(t, "254711000005", 0)

	_, err := f.svc.Allocate(ctx, paymentdomain.AllocateRequest{PaymentID: "nope", CustomerID: customerID.String()})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidID)

	_, err = f.svc.Allocate(ctx, paymentdomain.AllocateRequest{PaymentID: f.node.Generate().String(), CustomerID: customerID.String()})
	assert.ErrorIs(t, err, paymentdomain.ErrNotFound)

	payment := f.unmatchedPayment(t, 100, "QKB0000001")
	_, err = f.svc.Allocate(ctx, paymentdomain.AllocateRequest{PaymentID: payment.ID.String(), CustomerID: f.node.Generate().String()})
	assert.ErrorIs(t, err, customerdomain.ErrNotFound)

	_, err = f.svc.RecordCashPayment(ctx, paymentdomain.CashPaymentRequest{CustomerID: customerID.String(), Amount: 0})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)

	_, err = f.svc.ListPayments(ctx, paymentdomain.ListPaymentRequest{Mode: "cheque"})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidMode)
}

func TestListPaymentsFiltersUnreceipted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customerID := f.seedCustomer(t, "254711000006", 0)
	f.unmatchedPayment(t, 100, "QKC0000001")
	f.clock.Advance(time.Second)
	f.unmatchedPayment(t, 120, "QKC0000002")
	_, err := f.svc.RecordCashPayment(ctx, paymentdomain.CashPaymentRequest{CustomerID: customerID.String(), Amount: 80})
	require.NoError(t, err)

	receipted := false
	resp, err := f.svc.ListPayments(ctx, paymentdomain.ListPaymentRequest{Receipted: &receipted})
	require.NoError(t, err)
	require.Len(t, resp.Payments, 2)
	assert.Equal(t, "QKC0000002", resp.Payments[0].TransactionID)

	resp, err = f.svc.ListPayments(ctx, paymentdomain.ListPaymentRequest{Mode: "cash"})
	require.NoError(t, err)
	require.Len(t, resp.Payments, 1)
	assert.Equal(t, int64(80), resp.Payments[0].Amount)

	resp, err = f.svc.ListPayments(ctx, paymentdomain.ListPaymentRequest{PageSize: 1})
	require.NoError(t, err)
	assert.Len(t, resp.Payments, 1)
	assert.True(t, resp.HasMore)
	assert.NotEmpty(t, resp.NextPageToken)
}
