package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("customer_id", "456"),
		attribute.String("trans_id", "QK12AB"),
		attribute.String("source_type", "invoice"),
		attribute.String("outcome", "accepted"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "source_type" || attrs[1].Key != "outcome" {
		t.Fatalf("unexpected retained keys: %v, %v", attrs[0].Key, attrs[1].Key)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordInvoiceIssued(ctx, "system")
	m.RecordPaymentAllocated(ctx, "mpesa")
	m.RecordRateLimitDenied(ctx, "/api/mpesa/callback", "limited")
}

func TestNewRegistersCounters(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	if m.invoicesIssued == nil || m.rateLimitDenied == nil {
		t.Fatalf("expected counters to be initialised")
	}
	m.RecordBalanceEntry(context.Background(), "payment")
}
