package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"docsend/internal/model"
	"docsend/internal/repository"
)

// DeliveryPostgres is a PostgreSQL implementation of repository.DeliveryRepository.
type DeliveryPostgres struct {
	db *sql.DB
}

// NewDeliveryPostgres creates a new DeliveryPostgres repository.
func NewDeliveryPostgres(db *sql.DB) *DeliveryPostgres {
	return &DeliveryPostgres{db: db}
}

var _ repository.DeliveryRepository = (*DeliveryPostgres)(nil)

const deliveryColumns = `id, document_id, customer_id, status, attempts, http_status, last_error, created_at, updated_at, delivered_at`

func scanDelivery(row interface{ Scan(...any) error }) (*model.Delivery, error) {
	var (
		d           model.Delivery
		httpStatus  sql.NullInt64
		lastError   sql.NullString
		deliveredAt sql.NullTime
	)
	if err := row.Scan(
		&d.ID,
		&d.DocumentID,
		&d.CustomerID,
		&d.Status,
		&d.Attempts,
		&httpStatus,
		&lastError,
		&d.CreatedAt,
		&d.UpdatedAt,
		&deliveredAt,
	); err != nil {
		return nil, err
	}
	if httpStatus.Valid {
		d.HTTPStatus = int(httpStatus.Int64)
	}
	if lastError.Valid {
		d.LastError = lastError.String
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		d.DeliveredAt = &t
	}
	return &d, nil
}

// Create inserts a new delivery row and returns the stored record.
func (r *DeliveryPostgres) Create(ctx context.Context, d *model.Delivery) (*model.Delivery, error) {
	const q = `
		INSERT INTO deliveries (id, document_id, customer_id, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + deliveryColumns
	row := r.db.QueryRowContext(ctx, q,
		d.ID,
		d.DocumentID,
		d.CustomerID,
		d.Status,
		d.Attempts,
		d.CreatedAt,
		d.UpdatedAt,
	)
	return scanDelivery(row)
}

// FindByID fetches a single delivery by its ID.
func (r *DeliveryPostgres) FindByID(ctx context.Context, id string) (*model.Delivery, error) {
	const q = `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1`
	return scanDelivery(r.db.QueryRowContext(ctx, q, id))
}

// List returns deliveries matching the optional status/customer filters.
func (r *DeliveryPostgres) List(ctx context.Context, q repository.DeliveryQuery) (*repository.PageResult[model.Delivery], error) {
	where := ""
	args := []any{}
	n := 0
	if q.Status != "" {
		n++
		where += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, q.Status)
	}
	if q.CustomerID != "" {
		n++
		where += fmt.Sprintf(" AND customer_id = $%d", n)
		args = append(args, q.CustomerID)
	}

	qCount := `SELECT COUNT(*) FROM deliveries WHERE true` + where
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, args...).Scan(&total); err != nil {
		return nil, err
	}

	qList := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE true` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", n+1, n+2)
	args = append(args, q.Limit, q.Offset)

	rows, err := r.db.QueryContext(ctx, qList, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Delivery, 0)
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Delivery]{
		Items: items,
		Total: total,
	}, nil
}

// MarkDelivered records a successful attempt chain.
func (r *DeliveryPostgres) MarkDelivered(ctx context.Context, id string, attempts, httpStatus int, deliveredAt time.Time) error {
	const q = `
		UPDATE deliveries
		SET status = $2, attempts = $3, http_status = $4, last_error = NULL,
		    delivered_at = $5, updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, q, id, model.DeliveryStatusDelivered, attempts, httpStatus, deliveredAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkFailed records an exhausted or permanently failed attempt chain.
func (r *DeliveryPostgres) MarkFailed(ctx context.Context, id string, attempts, httpStatus int, lastError string) error {
	const q = `
		UPDATE deliveries
		SET status = $2, attempts = $3, http_status = NULLIF($4, 0), last_error = $5, updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, q, id, model.DeliveryStatusFailed, attempts, httpStatus, lastError)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Requeue resets a failed delivery back to queued.
func (r *DeliveryPostgres) Requeue(ctx context.Context, id string) error {
	const q = `
		UPDATE deliveries
		SET status = $2, http_status = NULL, last_error = NULL, updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, q, id, model.DeliveryStatusQueued)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
