package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeTransaction, status: http.StatusServiceUnavailable, publicMsg: "transaction aborted, retry the request", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing amount")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing amount" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	base.WithDetails(map[string]any{"field": "amount"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeTransaction, cause, "commit ledger entry")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeTransaction {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
	if got := wrapped.Error(); got != "TRANSACTION_ABORTED: commit ledger entry: boom" {
		t.Fatalf("unexpected error string %q", got)
	}
	if got := base.Error(); got != "VALIDATION_ERROR: missing amount" {
		t.Fatalf("unexpected error string %q", got)
	}
}

func TestAsAndIsCodeWalkTheChain(t *testing.T) {
	err := fmt.Errorf("bridge: %w", New(CodeNotFound, "invoice not found"))
	if got := As(err); got == nil || got.Code() != CodeNotFound {
		t.Fatalf("As failed to return typed error")
	}
	if !IsCode(err, CodeNotFound) {
		t.Fatalf("expected IsCode to match not found")
	}
	if IsCode(err, CodeValidation) {
		t.Fatalf("IsCode matched the wrong code")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestDumpCapturesPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "40001", Message: "could not serialize access", TableName: "account_balances"}
	err := Wrap(CodeTransaction, fmt.Errorf("update aggregate: %w", pgErr), "record collection")

	dump := Dump(err)
	if dump.Code != CodeTransaction {
		t.Fatalf("unexpected dump code %s", dump.Code)
	}
	if dump.Postgres == nil || dump.Postgres.Code != "40001" || dump.Postgres.Table != "account_balances" {
		t.Fatalf("postgres details missing: %+v", dump.Postgres)
	}
	if len(dump.Chain) != 3 {
		t.Fatalf("expected three links in chain, got %v", dump.Chain)
	}

	fields := dump.Fields()
	if fields["pg_code"] != "40001" || fields["pg_table"] != "account_balances" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatalf("empty postgres fields should be omitted: %v", fields)
	}
}

func TestDumpReadsLibPQErrors(t *testing.T) {
	err := fmt.Errorf("insert entry: %w", &pq.Error{Code: "23505", Constraint: "ledger_entries_pkey"})
	dump := Dump(err)
	if dump.Postgres == nil || dump.Postgres.Code != "23505" || dump.Postgres.Constraint != "ledger_entries_pkey" {
		t.Fatalf("lib/pq details missing: %+v", dump.Postgres)
	}
	if dump.Code != "" {
		t.Fatalf("untyped error should have no code, got %s", dump.Code)
	}
}

func TestDumpWithoutPostgresError(t *testing.T) {
	dump := Dump(New(CodeNotFound, "account not found"))
	if dump.Postgres != nil {
		t.Fatalf("unexpected postgres details %+v", dump.Postgres)
	}
	if _, ok := dump.Fields()["pg_code"]; ok {
		t.Fatal("pg_code should be absent")
	}
	if empty := Dump(nil); empty.TopMessage != "" || empty.Chain != nil || empty.Postgres != nil {
		t.Fatalf("nil error should produce an empty dump, got %+v", empty)
	}
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("lookup: %w", Wrap(CodeNotFound, stdErrors.New("record not found"), "account not found"))
	if !stdErrors.Is(err, New(CodeNotFound, "")) {
		t.Fatalf("expected errors.Is to match on code")
	}
	if stdErrors.Is(err, New(CodeConflict, "")) {
		t.Fatalf("errors.Is matched the wrong code")
	}
	if IsCode(stdErrors.New("plain"), CodeInternal) {
		t.Fatalf("untyped errors carry no code")
	}
}

func TestNewfAndNilCause(t *testing.T) {
	err := Newf(CodeValidation, "%s must be numeric", "limit")
	if err.Message() != "limit must be numeric" {
		t.Fatalf("unexpected message %q", err.Message())
	}
	if got := Wrap(CodeConflict, nil, "already posted").Error(); got != "CONFLICT: already posted" {
		t.Fatalf("nil cause should render like New, got %q", got)
	}
}
