package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"loyalty-tracker/internal/domain/customer"
	"loyalty-tracker/internal/infrastructure/monitoring"
	"loyalty-tracker/internal/pkg/apperrors"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	createTableQuery = `
        CREATE TABLE IF NOT EXISTS loyalty_customers (
            id                TEXT PRIMARY KEY,
            name              TEXT NOT NULL,
            normalized_name   TEXT NOT NULL UNIQUE,
            total_spent_cents BIGINT NOT NULL DEFAULT 0 CHECK (total_spent_cents >= 0),
            last_visit_iso    TEXT NOT NULL,
            position          INTEGER NOT NULL
        )`

	selectCustomersQuery = `
        SELECT id, name, normalized_name, total_spent_cents, last_visit_iso
        FROM loyalty_customers
        ORDER BY position, id`

	upsertCustomerQuery = `
        INSERT INTO loyalty_customers (id, name, normalized_name, total_spent_cents, last_visit_iso, position)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (id) DO UPDATE
        SET name = EXCLUDED.name,
            normalized_name = EXCLUDED.normalized_name,
            total_spent_cents = EXCLUDED.total_spent_cents,
            last_visit_iso = EXCLUDED.last_visit_iso,
            position = EXCLUDED.position`
)

// CustomerStorage keeps one row per customer. Replace writes every row in a
// single transaction, which is the atomic swap for this backend; rows are
// never deleted because customers are never removed.
type CustomerStorage struct {
	db     DBPool
	logger *slog.Logger
}

var _ customer.Storage = (*CustomerStorage)(nil)

func NewCustomerStorage(db DBPool, logger *slog.Logger) *CustomerStorage {
	if db == nil {
		panic("DBPool cannot be nil for CustomerStorage")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerStorage, using default stderr handler")
	}
	return &CustomerStorage{
		db:     db,
		logger: logger.With("component", "CustomerStorage"),
	}
}

func (r *CustomerStorage) EnsureSchema(ctx context.Context) error {
	r.logger.InfoContext(ctx, "Ensuring loyalty_customers table exists")
	if _, err := r.db.Exec(ctx, createTableQuery); err != nil {
		r.logger.ErrorContext(ctx, "Failed to create loyalty_customers table", slog.Any("error", err))
		return apperrors.WrapStorageError(err, "failed to create loyalty_customers table")
	}
	return nil
}

func (r *CustomerStorage) Load(ctx context.Context) (db *customer.Database, err error) {
	start := time.Now()
	defer func() { monitoring.ObserveStorage("postgres", "load", time.Since(start).Seconds(), err) }()

	rows, err := r.db.Query(ctx, selectCustomersQuery)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query customers", slog.Any("error", err))
		return nil, apperrors.WrapStorageError(err, "failed to query customers")
	}
	defer rows.Close()

	db = customer.NewDatabase()
	for rows.Next() {
		var c customer.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.NormalizedName, &c.TotalSpentCents, &c.LastVisitISO); err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan customer row", slog.Any("error", err))
			return nil, apperrors.WrapStorageError(err, "failed to scan customer row")
		}
		db.Customers = append(db.Customers, &c)
	}
	if err := rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating customer rows", slog.Any("error", err))
		return nil, apperrors.WrapStorageError(err, "failed to iterate customer rows")
	}

	r.logger.DebugContext(ctx, "Loaded customers", slog.Int("count", len(db.Customers)))
	return db, nil
}

func (r *CustomerStorage) Replace(ctx context.Context, db *customer.Database) (err error) {
	start := time.Now()
	defer func() { monitoring.ObserveStorage("postgres", "replace", time.Since(start).Seconds(), err) }()

	if db == nil {
		return fmt.Errorf("%w: database cannot be nil", apperrors.ErrInvalidArgument)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		return apperrors.WrapStorageError(err, "failed to begin transaction")
	}

	for i, c := range db.Customers {
		if _, err := tx.Exec(ctx, upsertCustomerQuery,
			c.ID,
			c.Name,
			c.NormalizedName,
			c.TotalSpentCents,
			c.LastVisitISO,
			i,
		); err != nil {
			r.logger.ErrorContext(ctx, "Failed to upsert customer", slog.String("customerID", c.ID), slog.Any("error", err))
			r.rollback(ctx, tx)
			return apperrors.WrapStorageError(err, "failed to upsert customer")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", slog.Any("error", err))
		return apperrors.WrapStorageError(err, "failed to commit transaction")
	}

	r.logger.DebugContext(ctx, "Replaced customers", slog.Int("count", len(db.Customers)))
	return nil
}

func (r *CustomerStorage) rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", slog.Any("error", err))
		return
	}
	r.logger.InfoContext(ctx, "Transaction rolled back")
}
