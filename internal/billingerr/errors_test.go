package billingerr

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"
)

var errCustomerMissing = New(ErrNotFound, "customer_not_found")

func TestErrorMatchesCodeAndKind(t *testing.T) {
	wrapped := fmt.Errorf("allocate: %w", errCustomerMissing)
	if !errors.Is(wrapped, errCustomerMissing) {
		t.Fatalf("expected specific sentinel match")
	}
	if !errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("expected kind match")
	}
	if errors.Is(wrapped, ErrConflict) {
		t.Fatalf("unexpected conflict match")
	}
	if got := CodeOf(wrapped); got != "customer_not_found" {
		t.Fatalf("expected customer_not_found, got %s", got)
	}
}

func TestTransactionClassification(t *testing.T) {
	if Transaction(nil) != nil {
		t.Fatalf("expected nil")
	}

	known := Transaction(errCustomerMissing)
	if !errors.Is(known, errCustomerMissing) || errors.Is(known, ErrTransactionFailure) {
		t.Fatalf("known domain error should pass through, got %v", known)
	}

	dup := Transaction(gorm.ErrDuplicatedKey)
	if !errors.Is(dup, ErrConflict) {
		t.Fatalf("duplicate key should be conflict, got %v", dup)
	}

	raw := errors.New("pq: connection reset")
	failed := Transaction(raw)
	if !errors.Is(failed, ErrTransactionFailure) {
		t.Fatalf("expected transaction failure, got %v", failed)
	}
	if !errors.Is(failed, raw) {
		t.Fatalf("expected cause to be kept")
	}
	if KindOf(failed) != ErrTransactionFailure {
		t.Fatalf("expected kind transaction failure")
	}
}
