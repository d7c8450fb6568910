package repository

import (
	"context"
	"time"

	"docsend/internal/model"
)

// DeliveryQuery holds pagination plus optional delivery filters.
type DeliveryQuery struct {
	Limit      int
	Offset     int
	Status     model.DeliveryStatus
	CustomerID string
}

// DeliveryRepository defines data access for delivery records.
type DeliveryRepository interface {
	// Create inserts a new delivery row and returns the stored row.
	Create(ctx context.Context, d *model.Delivery) (*model.Delivery, error)

	// FindByID returns a delivery by its ID.
	FindByID(ctx context.Context, id string) (*model.Delivery, error)

	// List returns deliveries matching the query plus a total count.
	List(ctx context.Context, q DeliveryQuery) (*PageResult[model.Delivery], error)

	// MarkDelivered records a successful attempt chain.
	MarkDelivered(ctx context.Context, id string, attempts, httpStatus int, deliveredAt time.Time) error

	// MarkFailed records an exhausted or permanently failed attempt chain.
	// httpStatus is 0 when no HTTP response was received.
	MarkFailed(ctx context.Context, id string, attempts, httpStatus int, lastError string) error

	// Requeue resets a failed delivery back to queued for manual retry.
	// Returns sql.ErrNoRows if the delivery does not exist.
	Requeue(ctx context.Context, id string) error
}
