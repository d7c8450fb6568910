package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id           UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  filename     TEXT        NOT NULL,
  storage_path TEXT        NOT NULL UNIQUE,
  size         BIGINT      NOT NULL CHECK (size >= 0),
  content_type TEXT        NOT NULL,
  created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_documents_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents (created_at);`,
	},
	{
		Name: "create_table_customers",
		SQL: `CREATE TABLE IF NOT EXISTS customers (
  id             UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  name           TEXT        NOT NULL,
  endpoint_url   TEXT        NOT NULL,
  signing_secret TEXT        NOT NULL,
  active         BOOLEAN     NOT NULL DEFAULT true,
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_customers_active",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_customers_active ON customers (active);`,
	},
	{
		Name: "create_table_deliveries",
		SQL: `CREATE TABLE IF NOT EXISTS deliveries (
  id           TEXT        PRIMARY KEY,
  document_id  UUID        NOT NULL REFERENCES documents (id),
  customer_id  UUID        NOT NULL REFERENCES customers (id),
  status       TEXT        NOT NULL CHECK (status IN ('queued', 'delivered', 'failed')),
  attempts     INT         NOT NULL DEFAULT 0 CHECK (attempts >= 0),
  http_status  INT,
  last_error   TEXT,
  created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
  delivered_at TIMESTAMPTZ
);`,
	},
	{
		Name: "create_index_deliveries_status",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_deliveries_status ON deliveries (status);`,
	},
	{
		Name: "create_index_deliveries_customer_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_deliveries_customer_id ON deliveries (customer_id);`,
	},
	{
		Name: "create_index_deliveries_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_deliveries_created_at ON deliveries (created_at);`,
	},
}

// EnsureMigrated checks whether the schema exists and applies all steps if not.
// The deliveries table is the sentinel since it was added last.
func EnsureMigrated(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	start := time.Now()
	logger = logger.With("component", "database.migration")

	var exists bool
	query := "SELECT to_regclass('public.deliveries') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logger.Info("schema already exists, skipping migration",
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			logger.Error("migration step failed",
				"migration_step", step.Name,
				"error", err,
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		logger.Debug("migration step applied",
			"migration_step", step.Name,
			"step_duration_ms", time.Since(stepStart).Milliseconds(),
		)
	}

	logger.Info("migrations applied",
		"steps", len(steps),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
