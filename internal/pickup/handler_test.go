package pickup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pickupdesk/order-validation/internal/domain"
)

type stubService struct {
	order *domain.Order
	err   error
}

func (s *stubService) Validate(_ context.Context, _, _ string) (*domain.Order, error) {
	return s.order, s.err
}

func newTestHandler(t *testing.T, svc Validator) *Handler {
	t.Helper()
	h, err := NewHandler(svc, "*", discardLogger())
	if err != nil {
		t.Fatalf("failed to create handler: %v", err)
	}
	return h
}

func postValidate(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/validate-order", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleValidate(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func TestHandleValidate(t *testing.T) {
	t.Run("returns the success envelope", func(t *testing.T) {
		h := newTestHandler(t, &stubService{order: &domain.Order{
			OrderNumber:    "SO-1001",
			CompanyName:    "Acme Corp",
			ItemCount:      3,
			Status:         "B",
			StatusName:     "Pending Fulfillment",
			EmailMatch:     true,
			ValidForPickup: true,
		}})

		rec := postValidate(h, `{"order_number":"SO-1001","email":"a@acme.com"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp validateResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !resp.Success {
			t.Error("expected success to be true")
		}
		if resp.Order == nil || resp.Order.OrderNumber != "SO-1001" || !resp.Order.ValidForPickup {
			t.Errorf("unexpected order: %+v", resp.Order)
		}
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		h := newTestHandler(t, &stubService{})

		rec := postValidate(h, `{"order_number":`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
		resp := decodeError(t, rec)
		if resp.ErrorCode != "INVALID_JSON" {
			t.Errorf("expected INVALID_JSON, got %s", resp.ErrorCode)
		}
		if len(resp.ReferenceID) != 8 {
			t.Errorf("expected 8-char reference id, got %q", resp.ReferenceID)
		}
	})

	t.Run("surfaces the first validation failure", func(t *testing.T) {
		h := newTestHandler(t, &stubService{})

		rec := postValidate(h, `{"email":"a@acme.com"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
		resp := decodeError(t, rec)
		if resp.ErrorCode != "VALIDATION_ERROR" {
			t.Errorf("expected VALIDATION_ERROR, got %s", resp.ErrorCode)
		}
		if resp.Error != "Invalid request: order_number is required" {
			t.Errorf("unexpected message: %q", resp.Error)
		}
	})

	t.Run("rejects an invalid email", func(t *testing.T) {
		h := newTestHandler(t, &stubService{})

		rec := postValidate(h, `{"order_number":"SO-1001","email":"not-an-email"}`)

		resp := decodeError(t, rec)
		if resp.ErrorCode != "VALIDATION_ERROR" {
			t.Errorf("expected VALIDATION_ERROR, got %s", resp.ErrorCode)
		}
		if resp.Error != "Invalid request: email must be a valid email address" {
			t.Errorf("unexpected message: %q", resp.Error)
		}
	})

	t.Run("rejects an over-long order number", func(t *testing.T) {
		h := newTestHandler(t, &stubService{})

		rec := postValidate(h, `{"order_number":"`+strings.Repeat("X", 51)+`","email":"a@acme.com"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
		if resp := decodeError(t, rec); resp.ErrorCode != "VALIDATION_ERROR" {
			t.Errorf("expected VALIDATION_ERROR, got %s", resp.ErrorCode)
		}
	})

	t.Run("maps a missing order to 404", func(t *testing.T) {
		h := newTestHandler(t, &stubService{err: domain.ErrOrderNotFound})

		rec := postValidate(h, `{"order_number":"SO-404","email":"a@acme.com"}`)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rec.Code)
		}
		resp := decodeError(t, rec)
		if resp.ErrorCode != "ORDER_NOT_FOUND" {
			t.Errorf("expected ORDER_NOT_FOUND, got %s", resp.ErrorCode)
		}
		if !strings.Contains(resp.Error, "SO-404") {
			t.Errorf("expected the order number in the message, got %q", resp.Error)
		}
	})

	t.Run("maps a source failure to 503 without leaking detail", func(t *testing.T) {
		h := newTestHandler(t, &stubService{err: domain.ErrSourceUnavailable})

		rec := postValidate(h, `{"order_number":"SO-1001","email":"a@acme.com"}`)

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected status 503, got %d", rec.Code)
		}
		resp := decodeError(t, rec)
		if resp.ErrorCode != "NETSUITE_ERROR" {
			t.Errorf("expected NETSUITE_ERROR, got %s", resp.ErrorCode)
		}
		if resp.Error != "Unable to verify order at this time. Please try again." {
			t.Errorf("unexpected message: %q", resp.Error)
		}
	})

	t.Run("maps anything unexpected to 500", func(t *testing.T) {
		h := newTestHandler(t, &stubService{err: context.DeadlineExceeded})

		rec := postValidate(h, `{"order_number":"SO-1001","email":"a@acme.com"}`)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected status 500, got %d", rec.Code)
		}
		resp := decodeError(t, rec)
		if resp.ErrorCode != "INTERNAL_ERROR" {
			t.Errorf("expected INTERNAL_ERROR, got %s", resp.ErrorCode)
		}
		if strings.Contains(resp.Error, "deadline") {
			t.Errorf("internal detail leaked: %q", resp.Error)
		}
	})

	t.Run("sets CORS headers on every response", func(t *testing.T) {
		h := newTestHandler(t, &stubService{err: domain.ErrOrderNotFound})

		rec := postValidate(h, `{"order_number":"SO-404","email":"a@acme.com"}`)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Access-Control-Allow-Origin = %q", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "POST,OPTIONS" {
			t.Errorf("Access-Control-Allow-Methods = %q", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type,X-Api-Key" {
			t.Errorf("Access-Control-Allow-Headers = %q", got)
		}
	})
}

func TestHandlePreflight(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodOptions, "/validate-order", nil)
	rec := httptest.NewRecorder()
	h.HandlePreflight(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["message"] != "OK" {
		t.Errorf("unexpected body: %v", resp)
	}
}

func TestRecover(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	wrapped := h.Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodPost, "/validate-order", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.ErrorCode != "INTERNAL_ERROR" {
		t.Errorf("expected INTERNAL_ERROR, got %s", resp.ErrorCode)
	}
	if strings.Contains(resp.Error, "boom") {
		t.Errorf("panic detail leaked: %q", resp.Error)
	}
}
