package pickup

import (
	"context"
	"log/slog"
	"time"

	"github.com/pickupdesk/order-validation/internal/domain"
)

// SnapshotStore is the advisory cache over pickup_requests. Get returns nil
// on a miss and Put is fire-and-forget; both absorb backend errors.
type SnapshotStore interface {
	Get(ctx context.Context, orderNumber string) *domain.CachedSnapshot
	Put(ctx context.Context, orderNumber string, order *domain.Order, netsuiteEmail string)
}

// OrderSource is the authoritative lookup. It distinguishes a missing order
// (domain.ErrOrderNotFound) from a failing backend (domain.ErrSourceUnavailable).
type OrderSource interface {
	FindOrder(ctx context.Context, orderNumber, customerEmail string) (*domain.Order, string, error)
}

// EventPublisher emits validation events. Optional and best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Service sequences a validation request: cache read, source lookup on a
// miss, then cache write-back. Each step is strictly sequential; the cache
// never decides the outcome.
type Service struct {
	store     SnapshotStore
	source    OrderSource
	publisher EventPublisher
	logger    *slog.Logger
}

// NewService wires the orchestrator. publisher may be nil when no broker is
// configured.
func NewService(store SnapshotStore, source OrderSource, publisher EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		source:    source,
		publisher: publisher,
		logger:    logger,
	}
}

// Validate resolves the order for the submitted email. On a cache hit the
// email domain match is recomputed against the stored NetSuite email; the
// request's own email never touches the cache. On a miss the NetSuite result
// is written back best-effort before returning.
func (s *Service) Validate(ctx context.Context, orderNumber, email string) (*domain.Order, error) {
	if snap := s.store.Get(ctx, orderNumber); snap != nil {
		order := snap.Order(email)
		s.logger.Info("order served from cache",
			"order_number", orderNumber, "email_match", order.EmailMatch)
		return order, nil
	}

	order, netsuiteEmail, err := s.source.FindOrder(ctx, orderNumber, email)
	if err != nil {
		return nil, err
	}

	s.store.Put(ctx, orderNumber, order, netsuiteEmail)
	s.publishValidated(ctx, order)

	return order, nil
}

func (s *Service) publishValidated(ctx context.Context, order *domain.Order) {
	if s.publisher == nil {
		return
	}

	event := domain.OrderValidatedEvent{
		OrderNumber:    order.OrderNumber,
		CompanyName:    order.CompanyName,
		EmailMatch:     order.EmailMatch,
		ValidForPickup: order.ValidForPickup,
		FromCache:      order.FromCache,
		Timestamp:      time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, order.OrderNumber, event); err != nil {
		s.logger.Warn("failed to publish validation event",
			"error", err, "order_number", order.OrderNumber)
	}
}
