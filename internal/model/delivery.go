package model

import "time"

// DeliveryStatus is the lifecycle state of a delivery.
type DeliveryStatus string

const (
	DeliveryStatusQueued    DeliveryStatus = "queued"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// IsValidDeliveryStatus reports whether s is a known delivery status.
func IsValidDeliveryStatus(s DeliveryStatus) bool {
	switch s {
	case DeliveryStatusQueued, DeliveryStatusDelivered, DeliveryStatusFailed:
		return true
	}
	return false
}

// Delivery records one request to push a document to a customer endpoint.
// A delivery row is created when the dispatch is accepted and updated after
// each attempt chain; it is the single source of truth for dispatch outcome.
type Delivery struct {
	ID          string         `json:"id"`
	DocumentID  string         `json:"document_id"`
	CustomerID  string         `json:"customer_id"`
	Status      DeliveryStatus `json:"status"`
	Attempts    int            `json:"attempts"`
	HTTPStatus  int            `json:"http_status,omitempty"`
	LastError   string         `json:"last_error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeliveredAt *time.Time     `json:"delivered_at,omitempty"`
}
