package domain

import (
	"errors"
	"time"
)

// WorkflowStatus is the lifecycle state of a pickup request row. It is
// distinct from the NetSuite order status code carried inside the row.
type WorkflowStatus string

const (
	WorkflowStatusPending   WorkflowStatus = "pending"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusCancelled WorkflowStatus = "cancelled"
)

// IsTerminal reports whether the workflow reached a state in which the row
// must no longer be served from cache or updated in place.
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowStatusCompleted || s == WorkflowStatusCancelled
}

var (
	// ErrOrderNotFound means the order number does not exist in NetSuite.
	ErrOrderNotFound = errors.New("order not found")
	// ErrSourceUnavailable means the NetSuite lookup itself failed.
	ErrSourceUnavailable = errors.New("order source unavailable")
)

// Order is the canonical validation result returned to the caller.
// EmailMatch and ValidForPickup are computed for the current request; they
// are never copied verbatim from a cached row.
type Order struct {
	OrderNumber    string `json:"order_number"`
	CompanyName    string `json:"company_name"`
	ItemCount      int    `json:"item_count"`
	PONumber       string `json:"po_number,omitempty"`
	Status         string `json:"status"`
	StatusName     string `json:"status_name"`
	EmailMatch     bool   `json:"email_match"`
	ValidForPickup bool   `json:"valid_for_pickup"`
	FromCache      bool   `json:"from_cache"`
}

// CachedSnapshot is a pickup_requests row viewed as cache material: the
// NetSuite fields captured at lookup time plus the provenance needed to
// re-run the domain check later (NetSuiteEmail) and to judge freshness
// (CreatedAt, Status).
type CachedSnapshot struct {
	OrderNumber    string
	Status         WorkflowStatus
	CompanyName    string
	ItemCount      int
	PONumber       string
	NetSuiteStatus string
	NetSuiteName   string
	ValidForPickup bool
	NetSuiteEmail  string
	CreatedAt      time.Time
}

// Order materializes the snapshot for a request that submitted the given
// email. The domain match is recomputed here; the boolean stored at the
// original lookup is deliberately ignored.
func (s *CachedSnapshot) Order(submittedEmail string) *Order {
	return &Order{
		OrderNumber:    s.OrderNumber,
		CompanyName:    s.CompanyName,
		ItemCount:      s.ItemCount,
		PONumber:       s.PONumber,
		Status:         s.NetSuiteStatus,
		StatusName:     s.NetSuiteName,
		EmailMatch:     MatchDomain(submittedEmail, s.NetSuiteEmail),
		ValidForPickup: s.ValidForPickup,
		FromCache:      true,
	}
}
