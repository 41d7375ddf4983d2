package pdf

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func TestGenerateReceiptProducesPDF(t *testing.T) {
	r, err := New().GenerateReceipt(context.Background(), ReceiptData{
		BusinessName:  "Taka Safi",
		ReceiptNumber: "RCPT12345678",
		DatePaid:      "2026-06-02",
		PaymentMode:   "MPESA",
		TransactionID: "RKTQDM7W6S",
		PaidBy:        "WANJIKU KAMAU",
		Customer:      Party{Name: "Wanjiku Kamau", Phone: "254722000001"},
		Amount:        "KES 300.00",
		BalanceAfter:  "KES 200.00",
	})
	if err != nil {
		t.Fatalf("generate receipt: %v", err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte("%PDF")) {
		t.Fatalf("expected PDF header, got %q", raw[:min(len(raw), 8)])
	}
}

func TestGenerateInvoiceProducesPDF(t *testing.T) {
	r, err := New().GenerateInvoice(context.Background(), InvoiceData{
		InvoiceNumber: "INV123456-1",
		Items:         []InvoiceItem{{Description: "Monthly Charge", Qty: 1, UnitPrice: "KES 500.00", Amount: "KES 500.00"}},
		Total:         "KES 500.00",
		AmountDue:     "KES 500.00",
	})
	if err != nil {
		t.Fatalf("generate invoice: %v", err)
	}
	raw, _ := io.ReadAll(r)
	if len(raw) == 0 {
		t.Fatal("expected non-empty document")
	}
}
