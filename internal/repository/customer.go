package repository

import (
	"context"

	"docsend/internal/model"
)

// CustomerRepository defines data access for delivery customers.
type CustomerRepository interface {
	// Create inserts a new customer record and returns the stored row.
	Create(ctx context.Context, c *model.Customer) (*model.Customer, error)

	// FindByID returns a customer by its ID.
	FindByID(ctx context.Context, id string) (*model.Customer, error)

	// List returns a paginated list of customers and a total count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Customer], error)

	// Deactivate marks a customer inactive. Deliveries to inactive customers fail fast.
	// Returns sql.ErrNoRows if the customer does not exist.
	Deactivate(ctx context.Context, id string) error
}
