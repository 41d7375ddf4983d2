package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/internal/billingerr"
)

func TestComputeIssuanceStatus(t *testing.T) {
	cases := []struct {
		name    string
		current int64
		amount  int64
		want    IssuanceResult
	}{
		{name: "arrears", current: 100, amount: 50, want: IssuanceResult{InvoiceStatusUnpaid, 150, 0}},
		{name: "exact_credit", current: -50, amount: 50, want: IssuanceResult{InvoiceStatusPaid, 0, 50}},
		{name: "surplus_credit", current: -80, amount: 50, want: IssuanceResult{InvoiceStatusPaid, -30, 50}},
		{name: "partial_credit", current: -30, amount: 50, want: IssuanceResult{InvoiceStatusPartial, 20, 30}},
		{name: "zero_balance", current: 0, amount: 50, want: IssuanceResult{InvoiceStatusUnpaid, 50, 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeIssuanceStatus(tc.current, tc.amount)
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestComputeInvoiceStatus(t *testing.T) {
	cases := []struct {
		paid, amount int64
		want         InvoiceStatus
	}{
		{0, 100, InvoiceStatusUnpaid},
		{-5, 100, InvoiceStatusUnpaid},
		{40, 100, InvoiceStatusPartial},
		{100, 100, InvoiceStatusPaid},
		{120, 100, InvoiceStatusPaid},
	}
	for _, tc := range cases {
		if got := ComputeInvoiceStatus(tc.paid, tc.amount); got != tc.want {
			t.Fatalf("ComputeInvoiceStatus(%d, %d) = %s, want %s", tc.paid, tc.amount, got, tc.want)
		}
	}
}

func TestPlanAllocationFIFO(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	older := OpenInvoice{ID: snowflake.ID(2), InvoiceAmount: 100, CreatedAt: base}
	newer := OpenInvoice{ID: snowflake.ID(1), InvoiceAmount: 200, CreatedAt: base.Add(time.Hour)}

	plan, err := PlanAllocation(150, []OpenInvoice{newer, older})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Allocations) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(plan.Allocations))
	}
	first, second := plan.Allocations[0], plan.Allocations[1]
	if first.InvoiceID != older.ID || first.Applied != 100 || first.Status != InvoiceStatusPaid {
		t.Fatalf("unexpected first allocation: %+v", first)
	}
	if second.InvoiceID != newer.ID || second.Applied != 50 || second.Status != InvoiceStatusPartial {
		t.Fatalf("unexpected second allocation: %+v", second)
	}
	if plan.Remainder != 0 {
		t.Fatalf("expected no remainder, got %d", plan.Remainder)
	}
}

func TestPlanAllocationRemainderAndSkips(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	settled := OpenInvoice{ID: 1, InvoiceAmount: 100, AmountPaid: 100, CreatedAt: base}
	partial := OpenInvoice{ID: 2, InvoiceAmount: 100, AmountPaid: 70, CreatedAt: base.Add(time.Minute)}

	plan, err := PlanAllocation(50, []OpenInvoice{settled, partial})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Allocations) != 1 || plan.Allocations[0].InvoiceID != 2 {
		t.Fatalf("expected only the partial invoice to be touched, got %+v", plan.Allocations)
	}
	if plan.Allocations[0].AmountPaid != 100 || plan.Allocations[0].Status != InvoiceStatusPaid {
		t.Fatalf("unexpected allocation: %+v", plan.Allocations[0])
	}
	if plan.Remainder != 20 {
		t.Fatalf("expected remainder 20, got %d", plan.Remainder)
	}
}

func TestPlanAllocationNoInvoices(t *testing.T) {
	plan, err := PlanAllocation(500, nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Allocations) != 0 || plan.Remainder != 500 {
		t.Fatalf("expected full remainder, got %+v", plan)
	}
}

func TestPlanAllocationRejectsNonPositive(t *testing.T) {
	for _, amount := range []int64{0, -10} {
		_, err := PlanAllocation(amount, nil)
		if !errors.Is(err, ErrInvalidAmount) || !errors.Is(err, billingerr.ErrInvalidInput) {
			t.Fatalf("expected invalid amount for %d, got %v", amount, err)
		}
	}
}
