package domain

import "time"

// OrderValidatedEvent is published after a successful source lookup. It is
// best-effort: consumers (dashboards, wait-time estimators) must tolerate
// gaps.
type OrderValidatedEvent struct {
	OrderNumber    string    `json:"order_number"`
	CompanyName    string    `json:"company_name"`
	EmailMatch     bool      `json:"email_match"`
	ValidForPickup bool      `json:"valid_for_pickup"`
	FromCache      bool      `json:"from_cache"`
	Timestamp      time.Time `json:"timestamp"`
}

// PickupCompletedEvent is emitted by the staff side when a pickup request
// reaches a terminal state. The completion worker applies it to the
// pickup_requests rows, which also retires them as cache candidates.
type PickupCompletedEvent struct {
	OrderNumber string         `json:"order_number"`
	Status      WorkflowStatus `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
}
