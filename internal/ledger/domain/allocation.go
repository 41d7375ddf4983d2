package domain

import (
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
)

// OpenInvoice is the allocation view of an invoice that still has an amount due.
type OpenInvoice struct {
	ID            snowflake.ID
	InvoiceAmount int64
	AmountPaid    int64
	CreatedAt     time.Time
}

// Due returns the outstanding amount.
func (i OpenInvoice) Due() int64 {
	return i.InvoiceAmount - i.AmountPaid
}

// Allocation is the portion of a payment applied to one invoice.
type Allocation struct {
	InvoiceID  snowflake.ID
	Applied    int64
	AmountPaid int64
	Status     InvoiceStatus
}

// AllocationPlan lists allocations in application order and what is left over.
type AllocationPlan struct {
	Allocations []Allocation
	Remainder   int64
}

// PlanAllocation walks invoices oldest first and applies amount until it runs out.
func PlanAllocation(amount int64, invoices []OpenInvoice) (AllocationPlan, error) {
	if amount <= 0 {
		return AllocationPlan{}, ErrInvalidAmount
	}

	ordered := make([]OpenInvoice, len(invoices))
	copy(ordered, invoices)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	remaining := amount
	plan := AllocationPlan{}
	for _, inv := range ordered {
		if remaining <= 0 {
			break
		}
		due := inv.Due()
		if due <= 0 {
			continue
		}
		applied := min(remaining, due)
		paid := inv.AmountPaid + applied
		plan.Allocations = append(plan.Allocations, Allocation{
			InvoiceID:  inv.ID,
			Applied:    applied,
			AmountPaid: paid,
			Status:     ComputeInvoiceStatus(paid, inv.InvoiceAmount),
		})
		remaining -= applied
	}
	plan.Remainder = remaining
	return plan, nil
}
