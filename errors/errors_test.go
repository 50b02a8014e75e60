package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestRateLimited(t *testing.T) {
	err := RateLimited("public", 3*time.Second)

	if err.Code != ErrCodeRateLimited {
		t.Errorf("expected RATE_LIMITED, got %s", err.Code)
	}
	if err.HTTPStatus != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", err.HTTPStatus)
	}
	if !err.Retryable {
		t.Error("expected retryable")
	}
	if err.Details["retry_after_seconds"] != 3.0 {
		t.Errorf("expected retry_after_seconds 3, got %v", err.Details["retry_after_seconds"])
	}
}

func TestCircuitOpen(t *testing.T) {
	err := CircuitOpen("orderbook_breaker")

	if err.Code != ErrCodeCircuitOpen {
		t.Errorf("expected CIRCUIT_OPEN, got %s", err.Code)
	}
	if err.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", err.HTTPStatus)
	}
	if err.Details["breaker"] != "orderbook_breaker" {
		t.Errorf("expected breaker detail, got %v", err.Details)
	}
}

func TestUpstream_UnwrapsToCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Upstream("get_fee", cause)

	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
	if err.HTTPStatus != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", err.HTTPStatus)
	}
}

func TestHasCode(t *testing.T) {
	err := Timeout("get_kline", 5*time.Second)

	if !HasCode(err, ErrCodeTimeout) {
		t.Error("expected HasCode to match TIMEOUT")
	}
	if HasCode(err, ErrCodeRateLimited) {
		t.Error("expected HasCode to reject a different code")
	}
	if HasCode(stderrors.New("plain"), ErrCodeTimeout) {
		t.Error("expected HasCode false for non-AppError")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !HasCode(wrapped, ErrCodeTimeout) {
		t.Error("expected HasCode to see through wrapping")
	}
}

func TestAsAppError(t *testing.T) {
	app, ok := AsAppError(CircuitOpen("b"))
	if !ok || app == nil {
		t.Fatal("expected AppError extraction to succeed")
	}
	if _, ok := AsAppError(stderrors.New("plain")); ok {
		t.Error("expected plain errors not to extract")
	}
}

func TestToResponse(t *testing.T) {
	resp := RateLimited("public", time.Second).ToResponse()

	if resp.Error.Code != ErrCodeRateLimited {
		t.Errorf("expected RATE_LIMITED in response, got %s", resp.Error.Code)
	}
	if resp.Error.Message == "" {
		t.Error("expected non-empty message")
	}
}

func TestIsRetryableCode(t *testing.T) {
	retryable := []ErrorCode{ErrCodeRateLimited, ErrCodeCircuitOpen, ErrCodeTimeout, ErrCodeUpstream}
	for _, code := range retryable {
		if !IsRetryableCode(code) {
			t.Errorf("expected %s retryable", code)
		}
	}
	if IsRetryableCode(ErrCodeNotFound) {
		t.Error("expected NOT_FOUND not retryable")
	}
}
