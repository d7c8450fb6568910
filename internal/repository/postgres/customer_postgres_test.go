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

var customerCols = []string{"id", "name", "endpoint_url", "signing_secret", "active", "created_at"}

func TestCustomerPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewCustomerPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	c := &model.Customer{
		ID:            "cust-uuid",
		Name:          "Acme",
		EndpointURL:   "https://acme.example/inbox",
		SigningSecret: "secret",
		Active:        true,
		CreatedAt:     now,
	}

	rows := sqlmock.NewRows(customerCols).
		AddRow(c.ID, c.Name, c.EndpointURL, c.SigningSecret, c.Active, c.CreatedAt)

	mock.ExpectQuery("INSERT INTO customers").
		WithArgs(c.ID, c.Name, c.EndpointURL, c.SigningSecret, c.Active, c.CreatedAt).
		WillReturnRows(rows)

	result, err := repo.Create(ctx, c)

	assert.NoError(t, err)
	assert.Equal(t, c.ID, result.ID)
	assert.True(t, result.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewCustomerPostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows(customerCols).
			AddRow("cust-1", "Acme", "https://acme.example/inbox", "secret", true, time.Now())

		mock.ExpectQuery("SELECT (.+) FROM customers WHERE id = ?").
			WithArgs("cust-1").
			WillReturnRows(rows)

		c, err := repo.FindByID(ctx, "cust-1")

		assert.NoError(t, err)
		assert.Equal(t, "cust-1", c.ID)
		assert.Equal(t, "secret", c.SigningSecret)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM customers WHERE id = ?").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		c, err := repo.FindByID(ctx, "missing")

		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Nil(t, c)
	})
}

func TestCustomerPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewCustomerPostgres(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM customers").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	rows := sqlmock.NewRows(customerCols).
		AddRow("cust-1", "Acme", "https://acme.example/inbox", "s1", true, time.Now()).
		AddRow("cust-2", "Globex", "https://globex.example/inbox", "s2", false, time.Now())

	mock.ExpectQuery("SELECT (.+) FROM customers ORDER BY").
		WithArgs(10, 0).
		WillReturnRows(rows)

	res, err := repo.List(ctx, repository.PageQuery{Limit: 10, Offset: 0})

	assert.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Len(t, res.Items, 2)
}

func TestCustomerPostgres_Deactivate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewCustomerPostgres(db)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec("UPDATE customers SET active = false").
			WithArgs("cust-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Deactivate(ctx, "cust-1"))
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectExec("UPDATE customers SET active = false").
			WithArgs("missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Deactivate(ctx, "missing"), sql.ErrNoRows)
	})
}
