package cache

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/pickupdesk/order-validation/internal/clock"
	"github.com/pickupdesk/order-validation/internal/domain"
)

// DefaultTTL is the freshness window for cached order data. Freshness is
// enforced at read time against created_at; rows are never deleted here.
const DefaultTTL = 2 * time.Hour

// SnapshotRepository reads and writes order snapshots in the shared
// pickup_requests table. The same table holds real pickup requests; cache-only
// rows are placeholders with status 'pending' and an empty customer_email that
// the submission flow upgrades later.
//
// The cache is advisory. Get degrades to a miss on any backend error and Put
// never fails the caller; both only log.
type SnapshotRepository struct {
	db     *sql.DB
	clock  clock.Clock
	ttl    time.Duration
	logger *slog.Logger
}

func NewSnapshotRepository(db *sql.DB, clk clock.Clock, ttl time.Duration, logger *slog.Logger) *SnapshotRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SnapshotRepository{
		db:     db,
		clock:  clk,
		ttl:    ttl,
		logger: logger,
	}
}

// Get returns the freshest usable snapshot for the order number, or nil on a
// miss. A row qualifies when its workflow status is not terminal and its
// created_at falls inside the freshness window. Rows without a company name
// are placeholders that never received NetSuite data and count as misses.
func (r *SnapshotRepository) Get(ctx context.Context, orderNumber string) *domain.CachedSnapshot {
	cutoff := r.clock.Now().Add(-r.ttl)

	snap := &domain.CachedSnapshot{}
	err := r.db.QueryRowContext(ctx, `
		SELECT sales_order_number, status,
		       COALESCE(company_name, ''), COALESCE(item_count, 0),
		       COALESCE(po_number, ''), COALESCE(netsuite_status, ''),
		       COALESCE(netsuite_status_name, ''), COALESCE(valid_for_pickup, FALSE),
		       COALESCE(netsuite_email, ''), created_at
		FROM pickup_requests
		WHERE sales_order_number = $1
		  AND status NOT IN ('completed', 'cancelled')
		  AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT 1
	`, orderNumber, cutoff).Scan(
		&snap.OrderNumber, &snap.Status,
		&snap.CompanyName, &snap.ItemCount,
		&snap.PONumber, &snap.NetSuiteStatus,
		&snap.NetSuiteName, &snap.ValidForPickup,
		&snap.NetSuiteEmail, &snap.CreatedAt,
	)
	if err != nil {
		if err != sql.ErrNoRows {
			r.logger.Warn("cache lookup failed, treating as miss", "error", err, "order_number", orderNumber)
		}
		return nil
	}

	if snap.CompanyName == "" {
		return nil
	}

	return snap
}

// Put stores the NetSuite fields for the order. An open (non-terminal) row is
// updated in place; otherwise a placeholder row is inserted so the data is
// available before a real pickup request exists. Failures are logged and
// swallowed.
func (r *SnapshotRepository) Put(ctx context.Context, orderNumber string, order *domain.Order, netsuiteEmail string) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		SELECT id
		FROM pickup_requests
		WHERE sales_order_number = $1
		  AND status NOT IN ('completed', 'cancelled')
		LIMIT 1
	`, orderNumber).Scan(&id)

	switch {
	case err == nil:
		_, err = r.db.ExecContext(ctx, `
			UPDATE pickup_requests
			SET company_name = $1, item_count = $2, po_number = $3,
			    netsuite_status = $4, netsuite_status_name = $5,
			    valid_for_pickup = $6, netsuite_email = $7, updated_at = NOW()
			WHERE id = $8
		`, order.CompanyName, order.ItemCount, nullIfEmpty(order.PONumber),
			order.Status, order.StatusName, order.ValidForPickup, netsuiteEmail, id)

	case err == sql.ErrNoRows:
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO pickup_requests
				(sales_order_number, customer_email, status,
				 company_name, item_count, po_number,
				 netsuite_status, netsuite_status_name,
				 valid_for_pickup, netsuite_email)
			VALUES ($1, '', 'pending', $2, $3, $4, $5, $6, $7, $8)
		`, orderNumber, order.CompanyName, order.ItemCount, nullIfEmpty(order.PONumber),
			order.Status, order.StatusName, order.ValidForPickup, netsuiteEmail)
	}

	if err != nil {
		r.logger.Warn("cache write failed", "error", err, "order_number", orderNumber)
	}
}

// MarkStatus transitions every open row for the order number to the given
// workflow status. Unlike Get/Put this is not advisory: the completion worker
// needs the error to decide whether to retry the message.
func (r *SnapshotRepository) MarkStatus(ctx context.Context, orderNumber string, status domain.WorkflowStatus) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE pickup_requests
		SET status = $2, updated_at = NOW()
		WHERE sales_order_number = $1
		  AND status NOT IN ('completed', 'cancelled')
	`, orderNumber, status)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
