package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pickupdesk/order-validation/internal/domain"
)

// StatusStore transitions pickup request rows; the completion handler is the
// only writer of terminal workflow statuses in this repo.
type StatusStore interface {
	MarkStatus(ctx context.Context, orderNumber string, status domain.WorkflowStatus) (int64, error)
}

// CompletionHandler applies pickup.completed events from the staff side to
// the pickup_requests table. Marking a row terminal also retires it as a
// cache candidate, which is how the staff workflow supersedes cached data.
type CompletionHandler struct {
	store  StatusStore
	logger *slog.Logger
}

func NewCompletionHandler(store StatusStore, logger *slog.Logger) *CompletionHandler {
	return &CompletionHandler{
		store:  store,
		logger: logger,
	}
}

func (h *CompletionHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.PickupCompletedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal pickup completed event: %w", err)
	}

	if event.OrderNumber == "" {
		return fmt.Errorf("pickup completed event has no order number")
	}
	if !event.Status.IsTerminal() {
		return fmt.Errorf("pickup completed event has non-terminal status %q", event.Status)
	}

	updated, err := h.store.MarkStatus(ctx, event.OrderNumber, event.Status)
	if err != nil {
		return fmt.Errorf("mark %s as %s: %w", event.OrderNumber, event.Status, err)
	}

	if updated == 0 {
		// Nothing open for this order; the event may have raced an earlier
		// transition. Safe to drop.
		h.logger.Info("no open pickup request for completion event",
			"order_number", event.OrderNumber, "status", event.Status)
		return nil
	}

	h.logger.Info("pickup request closed",
		"order_number", event.OrderNumber, "status", event.Status, "rows", updated)
	return nil
}
