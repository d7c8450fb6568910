package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"docsend/internal/model"
	"docsend/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

var deliveryCols = []string{
	"id", "document_id", "customer_id", "status", "attempts",
	"http_status", "last_error", "created_at", "updated_at", "delivered_at",
}

func TestDeliveryPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDeliveryPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	d := &model.Delivery{
		ID:         "01HZXD3A9V3N5T8S3W3F0Z8Q4K",
		DocumentID: "doc-uuid",
		CustomerID: "cust-uuid",
		Status:     model.DeliveryStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	rows := sqlmock.NewRows(deliveryCols).
		AddRow(d.ID, d.DocumentID, d.CustomerID, string(d.Status), 0, nil, nil, now, now, nil)

	mock.ExpectQuery("INSERT INTO deliveries").
		WithArgs(d.ID, d.DocumentID, d.CustomerID, d.Status, 0, now, now).
		WillReturnRows(rows)

	result, err := repo.Create(ctx, d)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, d.ID, result.ID)
	assert.Equal(t, model.DeliveryStatusQueued, result.Status)
	assert.Nil(t, result.DeliveredAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDeliveryPostgres(db)
	ctx := context.Background()

	t.Run("found with nullable fields set", func(t *testing.T) {
		now := time.Now().UTC()
		rows := sqlmock.NewRows(deliveryCols).
			AddRow("del-1", "doc-1", "cust-1", "delivered", 2, 200, nil, now, now, now)

		mock.ExpectQuery("SELECT (.+) FROM deliveries WHERE id = ?").
			WithArgs("del-1").
			WillReturnRows(rows)

		d, err := repo.FindByID(ctx, "del-1")

		assert.NoError(t, err)
		assert.Equal(t, 200, d.HTTPStatus)
		assert.Equal(t, 2, d.Attempts)
		assert.NotNil(t, d.DeliveredAt)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM deliveries WHERE id = ?").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		d, err := repo.FindByID(ctx, "missing")

		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Nil(t, d)
	})
}

func TestDeliveryPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDeliveryPostgres(db)
	ctx := context.Background()

	t.Run("no filters", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM deliveries").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		now := time.Now().UTC()
		rows := sqlmock.NewRows(deliveryCols).
			AddRow("del-1", "doc-1", "cust-1", "queued", 0, nil, nil, now, now, nil)

		mock.ExpectQuery("SELECT (.+) FROM deliveries WHERE true ORDER BY").
			WithArgs(10, 0).
			WillReturnRows(rows)

		res, err := repo.List(ctx, repository.DeliveryQuery{Limit: 10, Offset: 0})

		assert.NoError(t, err)
		assert.Equal(t, 1, res.Total)
		assert.Len(t, res.Items, 1)
	})

	t.Run("status and customer filters", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM deliveries").
			WithArgs(model.DeliveryStatusFailed, "cust-1").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		mock.ExpectQuery("SELECT (.+) FROM deliveries WHERE true AND status").
			WithArgs(model.DeliveryStatusFailed, "cust-1", 10, 0).
			WillReturnRows(sqlmock.NewRows(deliveryCols))

		res, err := repo.List(ctx, repository.DeliveryQuery{
			Limit:      10,
			Status:     model.DeliveryStatusFailed,
			CustomerID: "cust-1",
		})

		assert.NoError(t, err)
		assert.Equal(t, 0, res.Total)
		assert.Empty(t, res.Items)
	})
}

func TestDeliveryPostgres_MarkDelivered(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDeliveryPostgres(db)
	ctx := context.Background()
	deliveredAt := time.Now().UTC()

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec("UPDATE deliveries").
			WithArgs("del-1", model.DeliveryStatusDelivered, 1, 200, deliveredAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.MarkDelivered(ctx, "del-1", 1, 200, deliveredAt)
		assert.NoError(t, err)
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectExec("UPDATE deliveries").
			WithArgs("missing", model.DeliveryStatusDelivered, 1, 200, deliveredAt).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.MarkDelivered(ctx, "missing", 1, 200, deliveredAt)
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}

func TestDeliveryPostgres_MarkFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDeliveryPostgres(db)
	ctx := context.Background()

	mock.ExpectExec("UPDATE deliveries").
		WithArgs("del-1", model.DeliveryStatusFailed, 3, 503, "HTTP 503").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.MarkFailed(ctx, "del-1", 3, 503, "HTTP 503")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryPostgres_Requeue(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDeliveryPostgres(db)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec("UPDATE deliveries").
			WithArgs("del-1", model.DeliveryStatusQueued).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Requeue(ctx, "del-1"))
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectExec("UPDATE deliveries").
			WithArgs("missing", model.DeliveryStatusQueued).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Requeue(ctx, "missing"), sql.ErrNoRows)
	})
}
