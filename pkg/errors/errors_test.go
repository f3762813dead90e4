package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(CodeDependency, cause, "load product")

	if !errors.Is(err, cause) {
		t.Fatal("wrapped error should unwrap to cause")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", err.Code())
	}
	if err.Error() != "DEPENDENCY_ERROR: load product" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestAsFindsTypedErrorThroughChain(t *testing.T) {
	inner := New(CodeInsufficientStock, "2 requested, 1 available").
		WithDetails(map[string]any{"product_id": "p1", "color": "Black"})
	wrapped := fmt.Errorf("debit item: %w", inner)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error through %w chain")
	}
	if typed.Code() != CodeInsufficientStock {
		t.Fatalf("unexpected code %s", typed.Code())
	}
	details, ok := typed.Details().(map[string]any)
	if !ok || details["color"] != "Black" {
		t.Fatalf("details lost: %v", typed.Details())
	}
}

func TestIs(t *testing.T) {
	err := New(CodeStateConflict, "order already delivered")
	if !Is(err, CodeStateConflict) {
		t.Fatal("expected Is to match code")
	}
	if Is(err, CodeNotFound) {
		t.Fatal("Is matched wrong code")
	}
	if Is(nil, CodeNotFound) {
		t.Fatal("Is should be false for nil")
	}
}

func TestMetadataFor(t *testing.T) {
	meta := MetadataFor(CodeInsufficientStock)
	if meta.HTTPStatus != http.StatusConflict {
		t.Fatalf("unexpected status %d", meta.HTTPStatus)
	}
	if !meta.DetailsAllowed {
		t.Fatal("insufficient stock must surface the offending item")
	}

	unknown := MetadataFor(Code("NOPE"))
	if unknown.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unknown codes should map to internal, got %d", unknown.HTTPStatus)
	}

	timeout := MetadataFor(CodeTimeout)
	if !timeout.Retryable {
		t.Fatal("timeouts are retryable")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	cause := errors.New("root")
	err := Wrap(CodeInternal, cause, "outer")

	dump := Dump(err)
	if dump.Code != CodeInternal {
		t.Fatalf("unexpected code %s", dump.Code)
	}
	if len(dump.Chain) < 2 {
		t.Fatalf("expected full chain, got %v", dump.Chain)
	}
	if dump.PG != nil {
		t.Fatalf("no postgres detail expected, got %+v", dump.PG)
	}
}

func TestDumpExtractsPostgresDetail(t *testing.T) {
	cause := &pq.Error{Code: "23505", Constraint: "carts_user_id_key", Message: "duplicate key"}
	dump := Dump(Wrap(CodeConflict, cause, "db: create cart"))

	if dump.PG == nil {
		t.Fatal("expected postgres detail")
	}
	if dump.PG.Code != "23505" || dump.PG.Constraint != "carts_user_id_key" {
		t.Fatalf("unexpected pg dump: %+v", dump.PG)
	}
}
