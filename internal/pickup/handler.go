package pickup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pickupdesk/order-validation/internal/domain"
)

const (
	codeInvalidJSON     = "INVALID_JSON"
	codeValidationError = "VALIDATION_ERROR"
	codeOrderNotFound   = "ORDER_NOT_FOUND"
	codeNetSuiteError   = "NETSUITE_ERROR"
	codeInternalError   = "INTERNAL_ERROR"
)

// Validator is the orchestration surface the handler depends on.
type Validator interface {
	Validate(ctx context.Context, orderNumber, email string) (*domain.Order, error)
}

type Handler struct {
	service       Validator
	validate      *validator.Validate
	allowedOrigin string
	logger        *slog.Logger
	validations   metric.Int64Counter
}

func NewHandler(service Validator, allowedOrigin string, logger *slog.Logger) (*Handler, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	validations, err := otel.Meter("pickup").Int64Counter("pickup_validations_total",
		metric.WithDescription("Order validation requests by outcome"))
	if err != nil {
		return nil, err
	}

	return &Handler{
		service:       service,
		validate:      v,
		allowedOrigin: allowedOrigin,
		logger:        logger,
		validations:   validations,
	}, nil
}

type validateRequest struct {
	OrderNumber string `json:"order_number" validate:"required,min=1,max=50"`
	Email       string `json:"email" validate:"required,email"`
}

type validateResponse struct {
	Success bool          `json:"success"`
	Order   *domain.Order `json:"order"`
}

type errorResponse struct {
	Success     bool   `json:"success"`
	Error       string `json:"error"`
	ErrorCode   string `json:"error_code"`
	ReferenceID string `json:"reference_id"`
}

// HandleValidate is POST /validate-order. Every terminal outcome except
// success carries a fresh 8-char reference id for out-of-band debugging;
// backend detail stays in the logs.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	h.setCORS(w)
	referenceID := newReferenceID()

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, codeInvalidJSON,
			"Invalid JSON in request body", referenceID)
		h.recordOutcome(r, "bad_request", false)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, codeValidationError,
			"Invalid request: "+firstViolation(err), referenceID)
		h.recordOutcome(r, "bad_request", false)
		return
	}

	order, err := h.service.Validate(r.Context(), req.OrderNumber, req.Email)
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		h.writeError(w, http.StatusNotFound, codeOrderNotFound,
			fmt.Sprintf("Order %s not found. Make sure you're using the SO number from your confirmation email.", req.OrderNumber),
			referenceID)
		h.recordOutcome(r, "not_found", false)

	case errors.Is(err, domain.ErrSourceUnavailable):
		h.logger.Error("netsuite lookup failed",
			"error", err, "order_number", req.OrderNumber, "reference_id", referenceID)
		h.writeError(w, http.StatusServiceUnavailable, codeNetSuiteError,
			"Unable to verify order at this time. Please try again.", referenceID)
		h.recordOutcome(r, "source_error", false)

	case err != nil:
		h.logger.Error("validation failed unexpectedly",
			"error", err, "order_number", req.OrderNumber, "reference_id", referenceID)
		h.writeError(w, http.StatusInternalServerError, codeInternalError,
			"An unexpected error occurred. Please try again.", referenceID)
		h.recordOutcome(r, "internal_error", false)

	default:
		h.writeJSON(w, http.StatusOK, validateResponse{Success: true, Order: order})
		h.recordOutcome(r, "success", order.FromCache)
	}
}

// HandlePreflight answers the CORS preflight with a no-op body.
func (h *Handler) HandlePreflight(w http.ResponseWriter, r *http.Request) {
	h.setCORS(w)
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "OK"})
}

// Recover converts panics anywhere below into the INTERNAL_ERROR envelope so
// the caller never sees a bare 500 without a reference id.
func (h *Handler) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				referenceID := newReferenceID()
				h.logger.Error("panic while handling request",
					"panic", v, "path", r.URL.Path, "reference_id", referenceID)
				h.setCORS(w)
				h.writeError(w, http.StatusInternalServerError, codeInternalError,
					"An unexpected error occurred. Please try again.", referenceID)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) setCORS(w http.ResponseWriter) {
	header := w.Header()
	header.Set("Access-Control-Allow-Origin", h.allowedOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type,X-Api-Key")
	header.Set("Access-Control-Allow-Methods", "POST,OPTIONS")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message, referenceID string) {
	h.writeJSON(w, status, errorResponse{
		Success:     false,
		Error:       message,
		ErrorCode:   code,
		ReferenceID: referenceID,
	})
}

func (h *Handler) recordOutcome(r *http.Request, outcome string, fromCache bool) {
	h.validations.Add(r.Context(), 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Bool("from_cache", fromCache),
	))
}

// firstViolation renders the first failed rule the way the envelope promises:
// one human-readable message, field named after its json tag.
func firstViolation(err error) string {
	var violations validator.ValidationErrors
	if !errors.As(err, &violations) || len(violations) == 0 {
		return "request body is invalid"
	}

	v := violations[0]
	switch v.Tag() {
	case "required":
		return v.Field() + " is required"
	case "email":
		return v.Field() + " must be a valid email address"
	case "min", "max":
		return fmt.Sprintf("%s must be between 1 and 50 characters", v.Field())
	default:
		return v.Field() + " is invalid"
	}
}

func newReferenceID() string {
	return uuid.NewString()[:8]
}
