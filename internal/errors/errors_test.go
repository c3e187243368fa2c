package errors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"testing"
)

func TestUserMessage(t *testing.T) {
	wrapped := fmt.Errorf("upload: %w", NewValidationError("glucose value must be positive"))
	if got := UserMessage(wrapped); got != "glucose value must be positive" {
		t.Fatalf("validation message = %q", got)
	}
	if got := UserMessage(errors.New("disk on fire")); got != "Something went wrong. Please try again." {
		t.Fatalf("generic message = %q", got)
	}
	if got := UserMessage(nil); got != "" {
		t.Fatalf("nil message = %q", got)
	}
	expired := Wrap(errors.New("401"), ErrorTypePermission, "CREDENTIAL_EXPIRED", "refresh failed")
	if got := UserMessage(expired); got != "Your tracker connection has expired. Please reconnect it." {
		t.Fatalf("expired message = %q", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewValidationError("bad"), http.StatusBadRequest},
		{NewPermissionError("no owner"), http.StatusUnauthorized},
		{NewExternalAPIError(errors.New("502"), "fitbit"), http.StatusBadGateway},
		{fmt.Errorf("query: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{NewDatabaseError(errors.New("conn reset")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestAppErrorIsMatchesTypeAndCode(t *testing.T) {
	err := fmt.Errorf("sync: %w", Wrap(errors.New("401"), ErrorTypePermission, "CREDENTIAL_EXPIRED", "x"))
	if !errors.Is(err, ErrCredentialExpired) {
		t.Fatal("expected match on type and code")
	}
	if errors.Is(err, NewPermissionError("x")) {
		t.Fatal("different code must not match")
	}
}

func TestHandlerLogsBySeverity(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(slog.New(slog.NewJSONHandler(&buf, nil)))
	ctx := context.Background()

	h.Handle(ctx, NewValidationError("carbs must not be negative"), "request_id", "r1")
	h.Handle(ctx, fmt.Errorf("save: %w", NewDatabaseError(errors.New("conn reset"))))
	h.Handle(ctx, errors.New("boom"))
	h.Handle(ctx, nil)

	type entry struct {
		Level     string `json:"level"`
		Msg       string `json:"msg"`
		RequestID string `json:"request_id"`
		ErrorType string `json:"error_type"`
		Error     string `json:"error"`
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d log lines, want 3:\n%s", len(lines), buf.String())
	}
	var got []entry
	for _, line := range lines {
		var e entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		got = append(got, e)
	}

	if got[0].Level != "WARN" || got[0].Msg != "Validation error" || got[0].RequestID != "r1" {
		t.Errorf("validation entry = %+v", got[0])
	}
	if got[1].Level != "ERROR" || got[1].ErrorType != string(ErrorTypeDatabase) || !strings.Contains(got[1].Error, "save:") {
		t.Errorf("database entry = %+v", got[1])
	}
	if got[2].Level != "ERROR" || got[2].Msg != "Unhandled error" || got[2].Error != "boom" {
		t.Errorf("generic entry = %+v", got[2])
	}
}
