package postgres

import (
	"context"
	"database/sql"

	"docsend/internal/model"
	"docsend/internal/repository"
)

// CustomerPostgres is a PostgreSQL implementation of repository.CustomerRepository.
type CustomerPostgres struct {
	db *sql.DB
}

// NewCustomerPostgres creates a new CustomerPostgres repository.
func NewCustomerPostgres(db *sql.DB) *CustomerPostgres {
	return &CustomerPostgres{db: db}
}

var _ repository.CustomerRepository = (*CustomerPostgres)(nil)

// Create inserts a new customer row and returns the stored record.
func (r *CustomerPostgres) Create(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	const q = `
		INSERT INTO customers (id, name, endpoint_url, signing_secret, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, name, endpoint_url, signing_secret, active, created_at
	`
	row := r.db.QueryRowContext(ctx, q,
		c.ID,
		c.Name,
		c.EndpointURL,
		c.SigningSecret,
		c.Active,
		c.CreatedAt,
	)
	var out model.Customer
	if err := row.Scan(
		&out.ID,
		&out.Name,
		&out.EndpointURL,
		&out.SigningSecret,
		&out.Active,
		&out.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByID fetches a single customer by its ID.
func (r *CustomerPostgres) FindByID(ctx context.Context, id string) (*model.Customer, error) {
	const q = `
		SELECT id, name, endpoint_url, signing_secret, active, created_at
		FROM customers
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, q, id)
	var c model.Customer
	if err := row.Scan(
		&c.ID,
		&c.Name,
		&c.EndpointURL,
		&c.SigningSecret,
		&c.Active,
		&c.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns customers using LIMIT/OFFSET pagination and a total count.
func (r *CustomerPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Customer], error) {
	const qCount = `SELECT COUNT(*) FROM customers`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT id, name, endpoint_url, signing_secret, active, created_at
		FROM customers
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Customer, 0)
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.EndpointURL,
			&c.SigningSecret,
			&c.Active,
			&c.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Customer]{
		Items: items,
		Total: total,
	}, nil
}

// Deactivate marks a customer inactive. Returns sql.ErrNoRows if no row matched.
func (r *CustomerPostgres) Deactivate(ctx context.Context, id string) error {
	const q = `UPDATE customers SET active = false WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
