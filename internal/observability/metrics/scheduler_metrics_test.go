package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/wastebill/internal/authorization"
	"github.com/smallbiznis/wastebill/internal/billingerr"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SchedulerJobReasonDeadlineExceeded},
		{name: "forbidden", err: authorization.ErrForbidden, want: SchedulerJobReasonForbidden},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SchedulerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SchedulerJobReasonUniqueViolation},
		{name: "transaction_failure", err: billingerr.Transaction(errors.New("conn reset")), want: SchedulerJobReasonTransactionFailure},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestClassifySchedulerErrorType(t *testing.T) {
	if got := ClassifySchedulerErrorType(billingerr.Transaction(errors.New("x"))); got != SchedulerErrorTypeDB {
		t.Fatalf("expected db, got %s", got)
	}
	if got := ClassifySchedulerErrorType(billingerr.ErrInvalidInput); got != SchedulerErrorTypeBusinessRule {
		t.Fatalf("expected business_rule, got %s", got)
	}
	if !IsSchedulerErrorRetryable(context.Canceled) {
		t.Fatalf("expected canceled to be retryable")
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{
		ServiceName: "wastebill",
		Environment: "test",
	})

	metrics.AddBatchProcessed("mpesa_reprocess", "mpesa_inbound_transactions", 3)

	got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("mpesa_reprocess", "mpesa_inbound_transactions"))
	if got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
}
