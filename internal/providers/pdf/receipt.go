package pdf

import (
	"context"
	"io"

	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type ReceiptData struct {
	BusinessName     string
	ReceiptNumber    string
	DatePaid         string
	InvoiceReference string
	PaymentMode      string
	TransactionID    string
	PaidBy           string

	Customer Party

	Amount       string
	BalanceAfter string
}

func (p *PDFProvider) GenerateReceipt(ctx context.Context, receipt ReceiptData) (io.Reader, error) {
	m := newDocument()
	addHeader(m, "Receipt", receipt.BusinessName)

	invoiceRef := receipt.InvoiceReference
	if invoiceRef == "" {
		invoiceRef = "Account credit"
	}
	m.AddRow(24,
		col.New(6).Add(
			text.New("Receipt number: "+receipt.ReceiptNumber, props.Text{Top: 0}),
			text.New("Date paid: "+receipt.DatePaid, props.Text{Top: 4}),
			text.New("Invoice: "+invoiceRef, props.Text{Top: 8}),
			text.New("Mode: "+receipt.PaymentMode+" "+receipt.TransactionID, props.Text{Top: 12}),
			text.New("Paid by: "+receipt.PaidBy, props.Text{Top: 16}),
		),
		col.New(6),
	)
	addParty(m, "Received from", receipt.Customer)

	addHeadline(m, receipt.Amount+" paid on "+receipt.DatePaid)
	addTotal(m, "Amount", receipt.Amount)
	addTotal(m, "Balance", receipt.BalanceAfter)

	return render(ctx, m)
}
