package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/pickupdesk/order-validation/internal/domain"
)

type fakeStatusStore struct {
	orderNumber string
	status      domain.WorkflowStatus
	calls       int

	rows int64
	err  error
}

func (f *fakeStatusStore) MarkStatus(_ context.Context, orderNumber string, status domain.WorkflowStatus) (int64, error) {
	f.calls++
	f.orderNumber = orderNumber
	f.status = status
	return f.rows, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCompletionHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("closes the open rows for the order", func(t *testing.T) {
		store := &fakeStatusStore{rows: 1}
		h := NewCompletionHandler(store, discardLogger())

		payload := []byte(`{"order_number":"SO-1001","status":"completed"}`)
		if err := h.Handle(ctx, payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if store.orderNumber != "SO-1001" || store.status != domain.WorkflowStatusCompleted {
			t.Errorf("marked %q as %q", store.orderNumber, store.status)
		}
	})

	t.Run("accepts cancellations", func(t *testing.T) {
		store := &fakeStatusStore{rows: 1}
		h := NewCompletionHandler(store, discardLogger())

		payload := []byte(`{"order_number":"SO-1001","status":"cancelled"}`)
		if err := h.Handle(ctx, payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("tolerates events with no open rows", func(t *testing.T) {
		store := &fakeStatusStore{rows: 0}
		h := NewCompletionHandler(store, discardLogger())

		payload := []byte(`{"order_number":"SO-1001","status":"completed"}`)
		if err := h.Handle(ctx, payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("rejects malformed payloads", func(t *testing.T) {
		store := &fakeStatusStore{}
		h := NewCompletionHandler(store, discardLogger())

		if err := h.Handle(ctx, []byte(`{`)); err == nil {
			t.Fatal("expected an error for malformed JSON")
		}
		if store.calls != 0 {
			t.Error("store must not be touched for malformed payloads")
		}
	})

	t.Run("rejects non-terminal statuses", func(t *testing.T) {
		store := &fakeStatusStore{}
		h := NewCompletionHandler(store, discardLogger())

		payload := []byte(`{"order_number":"SO-1001","status":"pending"}`)
		if err := h.Handle(ctx, payload); err == nil {
			t.Fatal("expected an error for a non-terminal status")
		}
		if store.calls != 0 {
			t.Error("store must not be touched for non-terminal statuses")
		}
	})

	t.Run("rejects events without an order number", func(t *testing.T) {
		h := NewCompletionHandler(&fakeStatusStore{}, discardLogger())

		payload := []byte(`{"status":"completed"}`)
		if err := h.Handle(ctx, payload); err == nil {
			t.Fatal("expected an error for a missing order number")
		}
	})

	t.Run("propagates store failures so the message is retried", func(t *testing.T) {
		store := &fakeStatusStore{err: errors.New("db down")}
		h := NewCompletionHandler(store, discardLogger())

		payload := []byte(`{"order_number":"SO-1001","status":"completed"}`)
		if err := h.Handle(ctx, payload); err == nil {
			t.Fatal("expected the store error to propagate")
		}
	})
}
