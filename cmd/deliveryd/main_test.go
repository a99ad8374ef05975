package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestLoggingMiddleware_PassesThroughAndCapturesStatus(t *testing.T) {
	handler := loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rr.Code)
	}

	if body := rr.Body.String(); body != "ok" {
		t.Fatalf("expected body %q, got %q", "ok", body)
	}
}

type countingDeliverer struct {
	calls int
	err   error
}

func (d *countingDeliverer) Deliver(ctx context.Context, id uuid.UUID) error {
	d.calls++
	return d.err
}

func TestLateDeliverer(t *testing.T) {
	var d lateDeliverer

	if err := d.Deliver(context.Background(), uuid.New()); err == nil {
		t.Fatalf("expected error before Bind")
	}

	target := &countingDeliverer{err: errors.New("boom")}
	d.Bind(target)

	if err := d.Deliver(context.Background(), uuid.New()); err == nil || err.Error() != "boom" {
		t.Fatalf("expected bound deliverer error, got %v", err)
	}
	if target.calls != 1 {
		t.Fatalf("expected 1 delegated call, got %d", target.calls)
	}
}
