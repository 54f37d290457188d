package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestWithBackoff_Success(t *testing.T) {
	config := Config{MaxRetries: 3, BaseDelay: 1 * time.Millisecond}
	attempts := 0

	operation := func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	if err := WithBackoff(context.Background(), config, operation); err != nil {
		t.Fatalf("Expected success, got error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("Expected 3 attempts, got %d", attempts)
	}
}

func TestWithBackoff_FailureAfterMaxRetries(t *testing.T) {
	config := Config{MaxRetries: 2, BaseDelay: 1 * time.Millisecond}
	attempts := 0

	err := WithBackoff(context.Background(), config, func(ctx context.Context) error {
		attempts++
		return &StatusError{StatusCode: http.StatusServiceUnavailable}
	})
	if err == nil {
		t.Fatal("Expected failure, got success")
	}
	if attempts != 3 {
		t.Fatalf("Expected 3 attempts, got %d", attempts)
	}

	var status *StatusError
	if !errors.As(err, &status) || status.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected the status error to be wrapped, got %v", err)
	}
}

func TestWithBackoff_NonRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"client error", &StatusError{StatusCode: http.StatusBadRequest}},
		{"permanent", Permanent(errors.New("no audio in response"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := WithBackoff(context.Background(), Config{MaxRetries: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
				attempts++
				return tt.err
			})
			if err == nil {
				t.Fatal("Expected failure")
			}
			if attempts != 1 {
				t.Errorf("Expected 1 attempt, got %d", attempts)
			}
		})
	}
}

func TestWithBackoff_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	err := WithBackoff(ctx, Config{MaxRetries: 5, BaseDelay: time.Hour}, func(ctx context.Context) error {
		attempts++
		cancel()
		return errors.New("temporary error")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestHTTPStatusRetryable(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusOK, false},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		if got := HTTPStatusRetryable(tt.code); got != tt.want {
			t.Errorf("HTTPStatusRetryable(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
