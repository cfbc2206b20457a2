package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    string
		propagate bool
		useCause  bool
	}{
		{code: CodeQuotaExceeded, status: "upload_blocked", propagate: false, useCause: false},
		{code: CodeAuth, status: "failed", propagate: true, useCause: true},
		{code: CodeUnknown, status: "failed", propagate: true, useCause: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.LessonStatus != tt.status {
			t.Fatalf("code %s expected status %q got %q", tt.code, tt.status, meta.LessonStatus)
		}
		if meta.Propagate != tt.propagate {
			t.Fatalf("code %s expected propagate %v got %v", tt.code, tt.propagate, meta.Propagate)
		}
		if meta.UseCauseMessage != tt.useCause {
			t.Fatalf("code %s expected use cause %v got %v", tt.code, tt.useCause, meta.UseCauseMessage)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToUnknownError(t *testing.T) {
	meta := MetadataFor("SOMETHING_ELSE")
	if meta.LessonStatus != "failed" || !meta.Propagate {
		t.Fatalf("expected unknown error metadata, got %+v", meta)
	}
	if Code("SOMETHING_ELSE").IsValid() {
		t.Fatalf("unexpected valid code")
	}
}

func TestLessonMessage(t *testing.T) {
	quota := Wrap(CodeQuotaExceeded, stdErrors.New("quotaExceeded: The request cannot be completed"), "upload")
	if got := quota.LessonMessage(); got != QuotaMessage {
		t.Fatalf("quota should use the fixed message, got %q", got)
	}

	auth := Wrap(CodeAuth, stdErrors.New("oauth2: invalid_grant"), "upload")
	if got := auth.LessonMessage(); got != "oauth2: invalid_grant" {
		t.Fatalf("auth should use the raw cause, got %q", got)
	}

	bare := New(CodeUnknown, "downloaded file is empty")
	if got := bare.LessonMessage(); got != "downloaded file is empty" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestErrorConstructors(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeAuth, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeAuth {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
	if wrapped.Error() != "AUTH_ERROR: ctx: boom" {
		t.Fatalf("unexpected error string %q", wrapped.Error())
	}
	if Wrap(CodeUnknown, nil, "x").Unwrap() != nil {
		t.Fatalf("nil cause should stay nil")
	}
}

func TestAsAndCodeOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeQuotaExceeded, "limit"))
	if got := As(err); got == nil || got.Code() != CodeQuotaExceeded {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
	if CodeOf(stdErrors.New("plain")) != CodeUnknown {
		t.Fatalf("plain errors should map to unknown")
	}
}

func TestDumpIncludesPgFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "lessons_pkey", TableName: "lessons", Message: "duplicate"}
	d := Dump(Wrap(CodeUnknown, pgErr, "mark ready"))
	if d.PGCode != "23505" || d.PGTable != "lessons" || d.Code != CodeUnknown {
		t.Fatalf("unexpected dump %+v", d)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %v", d.Chain)
	}
	if Dump(nil).TopMessage != "" {
		t.Fatalf("nil dump should be empty")
	}
}
