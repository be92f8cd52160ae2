package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := Wrap(CodeDependency, cause, "fetch payment status")
	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected wrapped error to match cause")
	}
	if !IsCode(fmt.Errorf("outer: %w", err), CodeDependency) {
		t.Fatalf("expected dependency code through fmt wrapping")
	}
}

func TestMetadataFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("UNKNOWN"))
	if meta != MetadataFor(CodeInternal) {
		t.Fatalf("expected internal metadata fallback, got %+v", meta)
	}
	if MetadataFor(CodeNotFound).PublicMessage != "Payment not found" {
		t.Fatalf("unexpected not found message")
	}
}

func TestDumpCapturesPostgresDetails(t *testing.T) {
	pgErr := &pq.Error{Code: "23505", Constraint: "payments_reference_key", Table: "payments"}
	dump := Dump(Wrap(CodeStateConflict, pgErr, "insert payment"))
	if dump.Code != CodeStateConflict {
		t.Fatalf("expected code %s, got %s", CodeStateConflict, dump.Code)
	}
	if dump.PGConstraint != "payments_reference_key" || dump.PGTable != "payments" {
		t.Fatalf("unexpected pg fields %+v", dump)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %d", len(dump.Chain))
	}
	if _, ok := dump.Fields()["pg_code"]; !ok {
		t.Fatalf("expected pg_code in fields")
	}
}
