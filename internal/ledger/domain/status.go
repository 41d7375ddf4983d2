package domain

// InvoiceStatus is the settlement state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusUnpaid    InvoiceStatus = "UNPAID"
	InvoiceStatusPartial   InvoiceStatus = "PPAID"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// IsOpen reports whether the invoice can still receive allocations.
func (s InvoiceStatus) IsOpen() bool {
	return s == InvoiceStatusUnpaid || s == InvoiceStatusPartial
}

// Valid reports whether s is a known status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusUnpaid, InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	default:
		return false
	}
}

// IssuanceResult is the outcome of applying a new charge to a running balance.
type IssuanceResult struct {
	Status            InvoiceStatus
	NewClosingBalance int64
	AmountPaidAtIssue int64
}

// ComputeInvoiceStatus derives status from the amount paid against the invoice amount.
func ComputeInvoiceStatus(amountPaid, invoiceAmount int64) InvoiceStatus {
	switch {
	case amountPaid >= invoiceAmount:
		return InvoiceStatusPaid
	case amountPaid > 0:
		return InvoiceStatusPartial
	default:
		return InvoiceStatusUnpaid
	}
}

// ComputeIssuanceStatus applies invoiceAmount to currentClosingBalance.
// A negative balance is prepaid credit and is consumed first.
func ComputeIssuanceStatus(currentClosingBalance, invoiceAmount int64) IssuanceResult {
	newBalance := currentClosingBalance + invoiceAmount

	if currentClosingBalance < 0 && -currentClosingBalance >= invoiceAmount {
		return IssuanceResult{
			Status:            InvoiceStatusPaid,
			NewClosingBalance: newBalance,
			AmountPaidAtIssue: invoiceAmount,
		}
	}
	if newBalance == 0 {
		return IssuanceResult{
			Status:            InvoiceStatusPaid,
			NewClosingBalance: newBalance,
			AmountPaidAtIssue: invoiceAmount,
		}
	}
	if newBalance > 0 && currentClosingBalance < 0 {
		return IssuanceResult{
			Status:            InvoiceStatusPartial,
			NewClosingBalance: newBalance,
			AmountPaidAtIssue: -currentClosingBalance,
		}
	}
	return IssuanceResult{
		Status:            InvoiceStatusUnpaid,
		NewClosingBalance: newBalance,
		AmountPaidAtIssue: 0,
	}
}
