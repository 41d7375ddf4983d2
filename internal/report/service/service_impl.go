package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/wastebill/internal/config"
	customerdomain "github.com/smallbiznis/wastebill/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/wastebill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/wastebill/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/wastebill/internal/payment/domain"
	"github.com/smallbiznis/wastebill/internal/providers/pdf"
	"github.com/smallbiznis/wastebill/internal/report/domain"
	"github.com/smallbiznis/wastebill/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Cfg          config.Config
	Billing      *config.BillingConfigHolder `optional:"true"`
	Repo         domain.Repository
	CustomerRepo customerdomain.Repository
	InvoiceRepo  invoicedomain.Repository
	PaymentRepo  paymentdomain.Repository
	LedgerSvc    ledgerdomain.Service
	PDF          pdf.Provider `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	businessName string
	billing      *config.BillingConfigHolder
	repo         domain.Repository
	customerRepo customerdomain.Repository
	invoiceRepo  invoicedomain.Repository
	paymentRepo  paymentdomain.Repository
	ledgerSvc    ledgerdomain.Service
	pdf          pdf.Provider
}

func New(p Params) domain.Service {
	billing := p.Billing
	if billing == nil {
		billing = config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())
	}
	renderer := p.PDF
	if renderer == nil {
		renderer = pdf.New()
	}
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("report.service"),
		businessName: p.Cfg.AppName,
		billing:      billing,
		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
		invoiceRepo:  p.InvoiceRepo,
		paymentRepo:  p.PaymentRepo,
		ledgerSvc:    p.LedgerSvc,
		pdf:          renderer,
	}
}

// MonthsOwed is the number of monthly charges a positive balance covers, rounded up.
func MonthsOwed(balance, monthlyCharge int64) int {
	if balance <= 0 || monthlyCharge <= 0 {
		return 0
	}
	return int((balance + monthlyCharge - 1) / monthlyCharge)
}

func (s *Service) AgeAnalysis(ctx context.Context, bucket string) (domain.AgeAnalysis, error) {
	cfg := s.billing.Get()
	bucket = strings.TrimSpace(bucket)

	buckets := make([]domain.AgeBucket, 0, len(cfg.AgeBuckets))
	for _, b := range cfg.AgeBuckets {
		if bucket != "" && !strings.EqualFold(b.Label, bucket) {
			continue
		}
		buckets = append(buckets, domain.AgeBucket{Label: b.Label, Customers: []domain.Debtor{}})
	}
	if len(buckets) == 0 {
		return domain.AgeAnalysis{}, domain.ErrUnknownBucket
	}

	debtors, err := s.repo.ListDebtors(ctx, s.db)
	if err != nil {
		return domain.AgeAnalysis{}, err
	}

	result := domain.AgeAnalysis{Currency: cfg.Currency}
	for _, c := range debtors {
		months := MonthsOwed(c.ClosingBalance, c.MonthlyCharge)
		idx := bucketIndex(cfg.AgeBuckets, buckets, months)
		if idx < 0 {
			continue
		}
		buckets[idx].Customers = append(buckets[idx].Customers, domain.Debtor{Customer: c, MonthsOwed: months})
		buckets[idx].CustomerCount++
		buckets[idx].TotalBalance += c.ClosingBalance
		result.CustomerCount++
		result.TotalBalance += c.ClosingBalance
	}
	result.Buckets = buckets
	return result, nil
}

// bucketIndex finds the output slot for months, or -1 when its bucket was filtered out.
func bucketIndex(defs []config.AgeBucket, out []domain.AgeBucket, months int) int {
	for _, def := range defs {
		if !def.Contains(months) {
			continue
		}
		for i := range out {
			if out[i].Label == def.Label {
				return i
			}
		}
		return -1
	}
	return -1
}

func (s *Service) CustomerStatement(ctx context.Context, customerID string) (domain.Statement, error) {
	id, err := parseID(customerID, domain.ErrInvalidCustomerID)
	if err != nil {
		return domain.Statement{}, err
	}
	customer, err := s.customerRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Statement{}, err
	}
	if customer == nil {
		return domain.Statement{}, customerdomain.ErrNotFound
	}

	invoices, err := s.invoiceRepo.ListByCustomer(ctx, s.db, id)
	if err != nil {
		return domain.Statement{}, err
	}
	receipts, err := s.paymentRepo.ListReceiptsByCustomer(ctx, s.db, id)
	if err != nil {
		return domain.Statement{}, err
	}
	entries, err := s.ledgerSvc.Entries(ctx, id)
	if err != nil {
		return domain.Statement{}, err
	}

	return domain.Statement{
		Customer:       *customer,
		Invoices:       nonNil(invoices),
		Receipts:       nonNil(receipts),
		Entries:        nonNil(entries),
		ClosingBalance: customer.ClosingBalance,
	}, nil
}

func (s *Service) ReceiptDocument(ctx context.Context, receiptID string) (pdf.ReceiptData, error) {
	id, err := parseID(receiptID, domain.ErrInvalidReceiptID)
	if err != nil {
		return pdf.ReceiptData{}, err
	}
	receipt, err := s.paymentRepo.FindReceipt(ctx, s.db, id)
	if err != nil {
		return pdf.ReceiptData{}, err
	}
	if receipt == nil {
		return pdf.ReceiptData{}, paymentdomain.ErrReceiptNotFound
	}
	payment, err := s.paymentRepo.FindPayment(ctx, s.db, receipt.PaymentID)
	if err != nil {
		return pdf.ReceiptData{}, err
	}
	if payment == nil {
		return pdf.ReceiptData{}, paymentdomain.ErrNotFound
	}
	customer, err := s.customerRepo.FindByID(ctx, s.db, receipt.CustomerID)
	if err != nil {
		return pdf.ReceiptData{}, err
	}
	if customer == nil {
		return pdf.ReceiptData{}, customerdomain.ErrNotFound
	}

	invoiceRef := ""
	if receipt.InvoiceID != nil {
		inv, err := s.invoiceRepo.FindByID(ctx, s.db, *receipt.InvoiceID)
		if err != nil {
			return pdf.ReceiptData{}, err
		}
		if inv != nil {
			invoiceRef = inv.InvoiceNumber
		}
	}

	balanceAfter := customer.ClosingBalance
	entries, err := s.ledgerSvc.Entries(ctx, customer.ID)
	if err != nil {
		return pdf.ReceiptData{}, err
	}
	for _, e := range entries {
		if e.SourceType == ledgerdomain.SourceTypePayment && e.SourceID == payment.ID {
			balanceAfter = e.BalanceAfter
			break
		}
	}

	currency := s.billing.Get().Currency
	return pdf.ReceiptData{
		BusinessName:     s.businessName,
		ReceiptNumber:    receipt.ReceiptNumber,
		DatePaid:         payment.PaidAt.Format(dateLayout),
		InvoiceReference: invoiceRef,
		PaymentMode:      string(payment.ModeOfPayment),
		TransactionID:    payment.TransactionID,
		PaidBy:           receipt.PaidBy,
		Customer:         party(*customer),
		Amount:           money.Format(currency, receipt.Amount),
		BalanceAfter:     money.Format(currency, balanceAfter),
	}, nil
}

func (s *Service) RenderReceipt(ctx context.Context, receiptID string) (domain.Document, error) {
	data, err := s.ReceiptDocument(ctx, receiptID)
	if err != nil {
		return domain.Document{}, err
	}
	content, err := s.pdf.GenerateReceipt(ctx, data)
	if err != nil {
		return domain.Document{}, err
	}
	if content == nil {
		return domain.Document{}, domain.ErrEmptyDocument
	}
	return domain.Document{
		Filename: slug.Make(data.ReceiptNumber+" "+data.Customer.Name) + ".pdf",
		Content:  content,
	}, nil
}

func (s *Service) RenderInvoice(ctx context.Context, invoiceID string) (domain.Document, error) {
	id, err := parseID(invoiceID, domain.ErrInvalidInvoiceID)
	if err != nil {
		return domain.Document{}, err
	}
	inv, err := s.invoiceRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Document{}, err
	}
	if inv == nil {
		return domain.Document{}, invoicedomain.ErrNotFound
	}
	customer, err := s.customerRepo.FindByID(ctx, s.db, inv.CustomerID)
	if err != nil {
		return domain.Document{}, err
	}
	if customer == nil {
		return domain.Document{}, customerdomain.ErrNotFound
	}
	items, err := s.invoiceRepo.ListItems(ctx, s.db, inv.ID)
	if err != nil {
		return domain.Document{}, err
	}

	currency := s.billing.Get().Currency
	data := pdf.InvoiceData{
		BusinessName:  s.businessName,
		InvoiceNumber: inv.InvoiceNumber,
		IssueDate:     inv.CreatedAt.Format(dateLayout),
		Period:        inv.InvoicePeriod.Format("January 2006"),
		Status:        string(inv.Status),
		BillTo:        party(*customer),
		Total:         money.Format(currency, inv.InvoiceAmount),
		AmountPaid:    money.Format(currency, inv.AmountPaid),
		AmountDue:     money.Format(currency, max(inv.Due(), 0)),
	}
	for _, item := range items {
		data.Items = append(data.Items, pdf.InvoiceItem{
			Description: item.Description,
			Qty:         item.Quantity,
			UnitPrice:   money.Format(currency, item.UnitAmount),
			Amount:      money.Format(currency, item.Amount),
		})
	}

	content, err := s.pdf.GenerateInvoice(ctx, data)
	if err != nil {
		return domain.Document{}, err
	}
	if content == nil {
		return domain.Document{}, domain.ErrEmptyDocument
	}
	return domain.Document{
		Filename: slug.Make(inv.InvoiceNumber+" "+customer.FullName()) + ".pdf",
		Content:  content,
	}, nil
}

func party(c customerdomain.Customer) pdf.Party {
	address := strings.Join(nonEmpty(c.HouseNumber, c.Building, c.EstateName, c.Town), ", ")
	return pdf.Party{
		Name:    c.FullName(),
		Phone:   c.PhoneNumber,
		Email:   c.Email,
		Address: address,
	}
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}
